package providers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-timeline/internal/observability"
	"github.com/i474232898/weather-timeline/internal/store"
	"github.com/i474232898/weather-timeline/internal/weather"
)

const DefaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"

// OpenMeteoGeocoder implements weather.Geocoder with the Open-Meteo
// geocoding API.
type OpenMeteoGeocoder struct {
	baseURL string
	country string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoGeocoder(cfg HTTPClientConfig, baseURL, country string) *OpenMeteoGeocoder {
	if baseURL == "" {
		baseURL = DefaultGeocodingURL
	}
	return &OpenMeteoGeocoder{
		baseURL: baseURL,
		country: country,
		httpCfg: cfg,
		circuit: newBreaker("geocoding"),
	}
}

type geocodingResponse struct {
	Results []struct {
		Name        string  `json:"name"`
		Latitude    float64 `json:"latitude"`
		Longitude   float64 `json:"longitude"`
		Admin1      string  `json:"admin1"`
		Admin2      string  `json:"admin2"`
		CountryCode string  `json:"country_code"`
		Population  int64   `json:"population"`
	} `json:"results"`
}

func (g *OpenMeteoGeocoder) Search(ctx context.Context, name string) ([]weather.GeoCandidate, error) {
	values := url.Values{}
	values.Set("name", name)
	values.Set("count", "10")
	values.Set("language", "pt")
	values.Set("format", "json")
	if g.country != "" {
		values.Set("countryCode", g.country)
	}
	u := fmt.Sprintf("%s?%s", g.baseURL, values.Encode())

	var payload geocodingResponse
	if err := fetchJSON(ctx, g.httpCfg, g.circuit, "geocoding", u, nil, &payload); err != nil {
		return nil, err
	}

	out := make([]weather.GeoCandidate, 0, len(payload.Results))
	for _, r := range payload.Results {
		out = append(out, weather.GeoCandidate{
			Name:        r.Name,
			Lat:         r.Latitude,
			Lon:         r.Longitude,
			Admin1:      r.Admin1,
			Admin2:      r.Admin2,
			CountryCode: r.CountryCode,
			Population:  r.Population,
		})
	}
	if len(out) == 0 {
		g.httpCfg.Metrics.Upstream("geocoding", "empty")
	} else {
		g.httpCfg.Metrics.Upstream("geocoding", "success")
	}
	return out, nil
}

// CachedGeocoder wraps a Geocoder with the shared upstream cache.
type CachedGeocoder struct {
	inner   weather.Geocoder
	cache   store.Cache
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner weather.Geocoder, cache store.Cache, ttl time.Duration, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{inner: inner, cache: cache, ttl: ttl, metrics: metrics}
}

func (c *CachedGeocoder) Search(ctx context.Context, name string) ([]weather.GeoCandidate, error) {
	key := "geo:" + strings.ToLower(strings.TrimSpace(name))

	var cached []weather.GeoCandidate
	err := store.GetJSON(ctx, c.cache, key, &cached)
	if err == nil {
		c.metrics.Cache(true)
		return cached, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		log.Debug().Err(err).Str("key", key).Msg("geocoding cache read failed")
	}
	c.metrics.Cache(false)

	result, err := c.inner.Search(ctx, name)
	if err != nil {
		return nil, err
	}
	// Only cache non-empty results so transient "not found" responses can be retried.
	if len(result) > 0 {
		if err := store.SetJSON(ctx, c.cache, key, result, c.ttl); err != nil {
			log.Debug().Err(err).Str("key", key).Msg("geocoding cache write failed")
		}
	}
	return result, nil
}
