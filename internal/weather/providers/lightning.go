package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-timeline/internal/observability"
	"github.com/i474232898/weather-timeline/internal/store"
	"github.com/i474232898/weather-timeline/internal/weather"
)

// LightningCacheKey is where the warmed strike feed is kept.
const LightningCacheKey = "lightning:feed"

var errLightningDisabled = errors.New("lightning feed url not configured")

// LightningFeed implements weather.LightningSource for a JSON strike feed
// covering the most recent 24 hours.
type LightningFeed struct {
	feedURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewLightningFeed(cfg HTTPClientConfig, feedURL string) *LightningFeed {
	return &LightningFeed{
		feedURL: feedURL,
		httpCfg: cfg,
		circuit: newBreaker("lightning"),
	}
}

type strikeDTO struct {
	Time  time.Time `json:"time"`
	Lat   flexFloat `json:"lat"`
	Lon   flexFloat `json:"lon"`
	Count flexFloat `json:"count"`
}

// URL returns the configured feed URL.
func (f *LightningFeed) URL() string {
	return f.feedURL
}

func (f *LightningFeed) Strikes(ctx context.Context) ([]weather.Strike, string, error) {
	raw, err := f.fetchRaw(ctx)
	if err != nil {
		return nil, f.feedURL, err
	}
	strikes, err := decodeStrikes(raw)
	if err != nil {
		f.httpCfg.Metrics.Upstream("lightning", "error")
		return nil, f.feedURL, err
	}
	return strikes, f.feedURL, nil
}

func (f *LightningFeed) fetchRaw(ctx context.Context) ([]byte, error) {
	if f.feedURL == "" {
		return nil, fmt.Errorf("%w: %v", weather.ErrUpstreamUnavailable, errLightningDisabled)
	}
	body, err := fetchBody(ctx, f.httpCfg, f.circuit, "lightning", f.feedURL, nil)
	if err != nil {
		return nil, err
	}
	f.httpCfg.Metrics.Upstream("lightning", "success")
	return body, nil
}

func decodeStrikes(raw []byte) ([]weather.Strike, error) {
	var dtos []strikeDTO
	if err := json.Unmarshal(raw, &dtos); err != nil {
		return nil, fmt.Errorf("%w: lightning: decode: %v", weather.ErrUpstreamUnavailable, err)
	}
	out := make([]weather.Strike, 0, len(dtos))
	for _, d := range dtos {
		if d.Time.IsZero() {
			continue
		}
		out = append(out, weather.Strike{
			Time:  d.Time.UTC(),
			Lat:   d.Lat.Ptr(),
			Lon:   d.Lon.Ptr(),
			Count: d.Count.Ptr(),
		})
	}
	return out, nil
}

// CachedLightning serves the feed from the shared cache, which the scheduler
// keeps warm, and fetches live on a miss.
type CachedLightning struct {
	feed    *LightningFeed
	cache   store.Cache
	ttl     time.Duration
	metrics *observability.Metrics
}

func NewCachedLightning(feed *LightningFeed, cache store.Cache, ttl time.Duration, metrics *observability.Metrics) *CachedLightning {
	return &CachedLightning{feed: feed, cache: cache, ttl: ttl, metrics: metrics}
}

func (c *CachedLightning) Strikes(ctx context.Context) ([]weather.Strike, string, error) {
	raw, err := c.cache.Get(ctx, LightningCacheKey)
	if err == nil {
		if strikes, derr := decodeStrikes(raw); derr == nil {
			c.metrics.Cache(true)
			return strikes, c.feed.URL(), nil
		}
	}
	c.metrics.Cache(false)

	raw, err = c.Refresh(ctx)
	if err != nil {
		return nil, c.feed.URL(), err
	}
	strikes, err := decodeStrikes(raw)
	return strikes, c.feed.URL(), err
}

// Refresh fetches the feed and replaces the cached copy.
func (c *CachedLightning) Refresh(ctx context.Context) ([]byte, error) {
	raw, err := c.feed.fetchRaw(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := decodeStrikes(raw); err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, LightningCacheKey, raw, c.ttl); err != nil {
		log.Debug().Err(err).Msg("lightning cache write failed")
	}
	return raw, nil
}
