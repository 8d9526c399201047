package main

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/i474232898/weather-timeline/internal/config"
	"github.com/i474232898/weather-timeline/internal/observability"
	"github.com/i474232898/weather-timeline/internal/report"
	"github.com/i474232898/weather-timeline/internal/store"
	"github.com/i474232898/weather-timeline/internal/weather"
	"github.com/i474232898/weather-timeline/internal/weather/providers"
)

// components are the wired collaborators shared by serve and report.
type components struct {
	cfg       *config.AppConfig
	service   *weather.Service
	renderer  *report.PDFRenderer
	lightning *providers.CachedLightning
	closers   []func() error
}

func loadConfig(envFile string) (*config.AppConfig, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if envFile != "" {
		cfg, err = config.Load(envFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	observability.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	return cfg, nil
}

func buildComponents(ctx context.Context, cfg *config.AppConfig, metrics *observability.Metrics) (*components, error) {
	c := &components{cfg: cfg, renderer: report.NewPDFRenderer()}

	cache, err := newCache(ctx, cfg, c)
	if err != nil {
		return nil, err
	}

	// Shared HTTP client for outbound provider calls.
	backoff := providers.DefaultBackoff
	backoff.MaxRetries = cfg.HTTPMaxRetries
	httpCfg := providers.HTTPClientConfig{
		Client:  &http.Client{Timeout: cfg.HTTPTimeout},
		Backoff: backoff,
		Metrics: metrics,
	}

	geocoder := providers.NewCachedGeocoder(
		providers.NewOpenMeteoGeocoder(httpCfg, cfg.GeocodingURL, cfg.GeocodingCountry),
		cache, cfg.CacheTTL, metrics,
	)

	thunder := &weather.ThunderAnnotator{
		Primary:   providers.NewIEMArchive(httpCfg, cfg.IEMURL),
		Secondary: providers.NewOgimetArchive(httpCfg, cfg.OgimetURL),
		RadiusKm:  cfg.LightningRadiusKm,
	}
	if cfg.LightningURL != "" {
		c.lightning = providers.NewCachedLightning(
			providers.NewLightningFeed(httpCfg, cfg.LightningURL),
			cache, cfg.CacheTTL, metrics,
		)
		thunder.Lightning = c.lightning
	} else {
		log.Info().Msg("lightning feed disabled; recent thunder evidence will be empty")
	}

	var warnings *weather.WarningsFetcher
	if cfg.WarningsEnabled {
		warnings = &weather.WarningsFetcher{Source: providers.NewMeteoAlarmFeed(httpCfg, cfg.WarningsURL)}
	}

	c.service = weather.NewService(weather.Deps{
		Resolver: &weather.Resolver{Geocoder: geocoder, Country: cfg.GeocodingCountry},
		Station: providers.NewMeteostatStations(httpCfg, providers.MeteostatOptions{
			BaseURL:  cfg.MeteostatURL,
			Host:     cfg.MeteostatHost,
			APIKey:   cfg.MeteostatAPIKey,
			RadiusKm: cfg.NearbyRadiusKm,
			Limit:    cfg.NearbyStationLimit,
		}),
		Reanalysis:   providers.NewOpenMeteoReanalysis(httpCfg, cfg.ReanalysisURL, cfg.ArchiveURL),
		Thunder:      thunder,
		Warnings:     warnings,
		Metrics:      metrics,
		MaxRangeDays: cfg.MaxRangeDays,
	})
	return c, nil
}

func newCache(ctx context.Context, cfg *config.AppConfig, c *components) (store.Cache, error) {
	if cfg.CacheBackend == "redis" {
		rc, err := store.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, rc.Close)
		return rc, nil
	}
	return store.NewMemoryCache(cfg.CacheTTL), nil
}

func (c *components) Close() {
	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}
}
