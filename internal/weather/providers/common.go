package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-timeline/internal/observability"
	"github.com/i474232898/weather-timeline/internal/weather"
)

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
	Metrics *observability.Metrics
}

// DefaultBackoff performs no retries: each upstream gets exactly one call and
// the adapters' documented fallbacks take over from there.
var DefaultBackoff = BackoffConfig{
	MaxRetries:      0,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     5 * time.Second,
}

var (
	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errUnexpected    = errors.New("unexpected status code")
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

const maxBodyBytes = 16 << 20

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
}

// upstreamCall is one GET against a named upstream.
type upstreamCall struct {
	source  string
	url     string
	headers map[string]string
}

func (c upstreamCall) request(ctx context.Context) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// unavailable counts err against the source and wraps it with
// weather.ErrUpstreamUnavailable.
func (c upstreamCall) unavailable(cfg HTTPClientConfig, err error) error {
	cfg.Metrics.Upstream(c.source, "error")
	return fmt.Errorf("%w: %s: %w", weather.ErrUpstreamUnavailable, c.source, err)
}

// doRequestWithResilience runs call through cb. Transport errors, 429 and 5xx
// answers are retried with exponential backoff up to cfg.Backoff.MaxRetries
// times; other statuses and an open breaker end the call at once. Every
// failure is returned wrapped with weather.ErrUpstreamUnavailable.
func doRequestWithResilience(ctx context.Context, cfg HTTPClientConfig, cb *gobreaker.CircuitBreaker, call upstreamCall) (*http.Response, error) {
	if cfg.Client == nil {
		return nil, call.unavailable(cfg, errNoHTTPClient)
	}
	if cfg.Backoff.MaxRetries < 0 || cfg.Backoff.InitialInterval <= 0 {
		return nil, call.unavailable(cfg, errInvalidConfig)
	}

	for attempt := 0; ; attempt++ {
		req, err := call.request(ctx)
		if err != nil {
			return nil, call.unavailable(cfg, err)
		}

		result, err := cb.Execute(func() (interface{}, error) {
			resp, err := cfg.Client.Do(req)
			if err != nil {
				return nil, err
			}
			if err := statusError(resp.StatusCode); err != nil {
				resp.Body.Close()
				return nil, err
			}
			return resp, nil
		})
		if err == nil {
			return result.(*http.Response), nil
		}

		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return nil, call.unavailable(cfg, fmt.Errorf("%w: %v", errCircuitOpen, err))
		case errors.Is(err, errUnexpected), attempt >= cfg.Backoff.MaxRetries:
			return nil, call.unavailable(cfg, err)
		}

		cfg.Metrics.Upstream(call.source, "retry")
		if err := sleepBackoff(ctx, cfg.Backoff, attempt); err != nil {
			return nil, call.unavailable(cfg, err)
		}
	}
}

func statusError(code int) error {
	switch {
	case code == http.StatusTooManyRequests:
		return errRateLimited
	case code >= 500:
		return fmt.Errorf("%w: %d", errServerError, code)
	case code < 200 || code >= 300:
		return fmt.Errorf("%w: %d", errUnexpected, code)
	}
	return nil
}

// sleepBackoff waits InitialInterval doubled attempt times, capped at
// MaxInterval, or until ctx is done.
func sleepBackoff(ctx context.Context, b BackoffConfig, attempt int) error {
	delay := b.InitialInterval << attempt
	if b.MaxInterval > 0 && (delay > b.MaxInterval || delay <= 0) {
		delay = b.MaxInterval
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// fetchBody performs a GET through the resilience layer and returns the body.
func fetchBody(ctx context.Context, cfg HTTPClientConfig, cb *gobreaker.CircuitBreaker, source, rawURL string, headers map[string]string) ([]byte, error) {
	call := upstreamCall{source: source, url: rawURL, headers: headers}
	resp, err := doRequestWithResilience(ctx, cfg, cb, call)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, call.unavailable(cfg, fmt.Errorf("read body: %w", err))
	}
	return body, nil
}

// fetchJSON is fetchBody followed by a JSON decode into dst.
func fetchJSON(ctx context.Context, cfg HTTPClientConfig, cb *gobreaker.CircuitBreaker, source, rawURL string, headers map[string]string, dst any) error {
	body, err := fetchBody(ctx, cfg, cb, source, rawURL, headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		cfg.Metrics.Upstream(source, "error")
		return fmt.Errorf("%w: %s: decode: %v", weather.ErrUpstreamUnavailable, source, err)
	}
	return nil
}
