package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("REPORT_TIMEZONE", "")
	t.Setenv("CACHE_BACKEND", "")
	t.Setenv("LIGHTNING_URL", "")

	cfg, err := Load("testdata/missing.env")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 0, cfg.HTTPMaxRetries)
	assert.Equal(t, "Europe/Lisbon", cfg.Zone.String())
	assert.Equal(t, 31, cfg.MaxRangeDays)
	assert.Equal(t, "PT", cfg.GeocodingCountry)
	assert.Equal(t, 50, cfg.NearbyRadiusKm)
	assert.Equal(t, 5, cfg.NearbyStationLimit)
	assert.True(t, cfg.ReanalysisFallback)
	assert.True(t, cfg.WarningsEnabled)
	assert.Empty(t, cfg.LightningURL)
	assert.Equal(t, 5*time.Minute, cfg.LightningRefresh)
	assert.Equal(t, "memory", cfg.CacheBackend)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("REPORT_TIMEZONE", "UTC")
	t.Setenv("REANALYSIS_FALLBACK", "false")
	t.Setenv("CACHE_BACKEND", "Redis")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("LIGHTNING_RADIUS_KM", "25")
	t.Setenv("GEOCODING_COUNTRY", "es")

	cfg, err := Load("testdata/missing.env")
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, time.UTC.String(), cfg.Zone.String())
	assert.False(t, cfg.ReanalysisFallback)
	assert.Equal(t, "redis", cfg.CacheBackend)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, 25.0, cfg.LightningRadiusKm)
	assert.Equal(t, "ES", cfg.GeocodingCountry)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"HTTP_TIMEOUT":        "soon",
		"MAX_RANGE_DAYS":      "many",
		"REANALYSIS_FALLBACK": "maybe",
		"REPORT_TIMEZONE":     "Mars/Olympus",
		"CACHE_BACKEND":       "disk",
		"HTTP_MAX_RETRIES":    "-1",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load("testdata/missing.env")
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}
