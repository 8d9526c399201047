package providers

import (
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/i474232898/weather-timeline/internal/observability"
	"github.com/i474232898/weather-timeline/internal/weather"
)

func testHTTPConfig(client *http.Client) HTTPClientConfig {
	return HTTPClientConfig{
		Client: client,
		Backoff: BackoffConfig{
			MaxRetries:      0,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
		},
		Metrics: observability.NewMetricsForTesting(),
	}
}

// newMockClient returns a client whose transport is an isolated httpmock
// transport, so tests never share responders.
func newMockClient() (*http.Client, *httpmock.MockTransport) {
	mt := httpmock.NewMockTransport()
	return &http.Client{Transport: mt}, mt
}

func testWindow(t *testing.T, start, end string) weather.Window {
	t.Helper()
	s, err := weather.ParseDate(start)
	if err != nil {
		t.Fatalf("parse start: %v", err)
	}
	e, err := weather.ParseDate(end)
	if err != nil {
		t.Fatalf("parse end: %v", err)
	}
	w, err := weather.NewWindow(s, e, time.UTC)
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	return w
}

func utcHour(day, hour int) weather.Epoch {
	return weather.EpochOf(time.Date(2025, 5, day, hour, 0, 0, 0, time.UTC))
}
