package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type AppConfig struct {
	Port string

	// HTTPTimeout bounds every outbound upstream call.
	HTTPTimeout    time.Duration
	HTTPMaxRetries int

	// Zone is the default zone for the local calendar dates of a request.
	Zone         *time.Location
	MaxRangeDays int

	GeocodingURL     string
	GeocodingCountry string

	MeteostatURL       string
	MeteostatHost      string
	MeteostatAPIKey    string
	NearbyRadiusKm     int
	NearbyStationLimit int

	ReanalysisURL      string
	ArchiveURL         string
	ReanalysisFallback bool

	LightningURL      string
	LightningRadiusKm float64
	LightningRefresh  time.Duration

	IEMURL    string
	OgimetURL string

	WarningsURL     string
	WarningsEnabled bool

	CacheBackend  string
	CacheTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LogLevel  string
	LogFormat string
}

// Load reads configuration from the environment, after loading envFiles
// (or .env when none are given) with godotenv.
func Load(envFiles ...string) (*AppConfig, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}
	cfg := &AppConfig{}
	var err error

	cfg.Port = getenvDefault("PORT", "8080")

	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTPMaxRetries, err = getenvInt("HTTP_MAX_RETRIES", 0); err != nil {
		return nil, err
	}
	if cfg.HTTPMaxRetries < 0 {
		return nil, fmt.Errorf("invalid HTTP_MAX_RETRIES: must not be negative")
	}

	zoneName := getenvDefault("REPORT_TIMEZONE", "Europe/Lisbon")
	if cfg.Zone, err = time.LoadLocation(zoneName); err != nil {
		return nil, fmt.Errorf("invalid REPORT_TIMEZONE: %w", err)
	}
	if cfg.MaxRangeDays, err = getenvInt("MAX_RANGE_DAYS", 31); err != nil {
		return nil, err
	}

	cfg.GeocodingURL = getenvDefault("GEOCODING_URL", "https://geocoding-api.open-meteo.com/v1/search")
	cfg.GeocodingCountry = strings.ToUpper(getenvDefault("GEOCODING_COUNTRY", "PT"))

	cfg.MeteostatURL = getenvDefault("METEOSTAT_URL", "https://meteostat.p.rapidapi.com")
	cfg.MeteostatHost = getenvDefault("METEOSTAT_HOST", "meteostat.p.rapidapi.com")
	cfg.MeteostatAPIKey = os.Getenv("METEOSTAT_API_KEY")
	if cfg.NearbyRadiusKm, err = getenvInt("NEARBY_RADIUS_KM", 50); err != nil {
		return nil, err
	}
	if cfg.NearbyStationLimit, err = getenvInt("NEARBY_STATION_LIMIT", 5); err != nil {
		return nil, err
	}

	cfg.ReanalysisURL = getenvDefault("REANALYSIS_URL", "https://archive-api.open-meteo.com/v1/era5")
	cfg.ArchiveURL = getenvDefault("ARCHIVE_URL", "https://archive-api.open-meteo.com/v1/archive")
	if cfg.ReanalysisFallback, err = getenvBool("REANALYSIS_FALLBACK", true); err != nil {
		return nil, err
	}

	cfg.LightningURL = os.Getenv("LIGHTNING_URL")
	radius, err := getenvInt("LIGHTNING_RADIUS_KM", 50)
	if err != nil {
		return nil, err
	}
	cfg.LightningRadiusKm = float64(radius)
	if cfg.LightningRefresh, err = getenvDuration("LIGHTNING_REFRESH", 5*time.Minute); err != nil {
		return nil, err
	}

	cfg.IEMURL = getenvDefault("IEM_URL", "https://mesonet.agron.iastate.edu/cgi-bin/request/asos.py")
	cfg.OgimetURL = getenvDefault("OGIMET_URL", "https://www.ogimet.com/cgi-bin/getmetar")

	cfg.WarningsURL = getenvDefault("WARNINGS_URL", "https://feeds.meteoalarm.org/feeds/meteoalarm-legacy-atom-portugal")
	if cfg.WarningsEnabled, err = getenvBool("WARNINGS_ENABLED", true); err != nil {
		return nil, err
	}

	cfg.CacheBackend = strings.ToLower(getenvDefault("CACHE_BACKEND", "memory"))
	if cfg.CacheBackend != "memory" && cfg.CacheBackend != "redis" {
		return nil, fmt.Errorf("invalid CACHE_BACKEND %q: want memory or redis", cfg.CacheBackend)
	}
	if cfg.CacheTTL, err = getenvDuration("CACHE_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	cfg.RedisAddr = getenvDefault("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	if cfg.RedisDB, err = getenvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}

	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getenvDefault("LOG_FORMAT", "json")

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
