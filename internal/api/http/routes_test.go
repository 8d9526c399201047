package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-timeline/internal/observability"
	"github.com/i474232898/weather-timeline/internal/weather"
)

type emptyFetcher struct{ name string }

func (f emptyFetcher) Name() string { return f.name }

func (f emptyFetcher) Fetch(context.Context, weather.Place, weather.Window) weather.SeriesResult {
	return weather.SeriesResult{Series: weather.RawSeries{}}
}

type stubRenderer struct {
	doc []byte
	err error
}

func (r stubRenderer) Render(*weather.Report) ([]byte, error) {
	return r.doc, r.err
}

func newTestApp(t *testing.T, renderer Renderer) *fiber.App {
	t.Helper()

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	svc := weather.NewService(weather.Deps{
		Resolver:   &weather.Resolver{Country: "PT"},
		Station:    emptyFetcher{name: "station"},
		Reanalysis: emptyFetcher{name: "reanalysis"},
		Metrics:    observability.NewMetricsForTesting(),
	})
	RegisterRoutes(app, svc, renderer, Options{
		Zone:            time.UTC,
		AllowReanalysis: true,
		WarningsEnabled: true,
		Gatherer:        prometheus.NewRegistry(),
	})
	return app
}

func TestReportGeneratedTimelineWhenSourcesEmpty(t *testing.T) {
	app := newTestApp(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/report?lat=41.0&lon=-8.63&start=2025-05-02&end=2025-05-03&resolution=hourly", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		OK      bool `json:"ok"`
		Records []struct {
			Time     string   `json:"time"`
			WindKmh  *float64 `json:"wind_kmh"`
			GustKmh  *float64 `json:"gust_kmh"`
			PrecipMm *float64 `json:"precip_mm"`
			Sources  struct {
				Wind   *string `json:"wind"`
				Gust   *string `json:"gust"`
				Precip *string `json:"precip"`
			} `json:"sources"`
		} `json:"records"`
		Warnings []json.RawMessage `json:"warnings"`
		Notes    []string          `json:"notes"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.True(t, body.OK)
	require.Len(t, body.Records, 48)
	assert.Equal(t, "2025-05-02T00:00:00+00:00", body.Records[0].Time)
	assert.Equal(t, "2025-05-03T23:00:00+00:00", body.Records[47].Time)
	for _, r := range body.Records {
		assert.Nil(t, r.WindKmh)
		assert.Nil(t, r.GustKmh)
		assert.Nil(t, r.PrecipMm)
		assert.Nil(t, r.Sources.Wind)
		assert.Nil(t, r.Sources.Gust)
		assert.Nil(t, r.Sources.Precip)
	}
	assert.NotNil(t, body.Warnings)
	assert.Empty(t, body.Warnings)
	assert.Contains(t, body.Notes, "no source returned data, timeline generated")
}

func TestReportValidation(t *testing.T) {
	app := newTestApp(t, nil)

	cases := map[string]string{
		"missing place":      "/api/v1/report?start=2025-05-02&end=2025-05-03",
		"lat without lon":    "/api/v1/report?lat=41.0&start=2025-05-02&end=2025-05-03",
		"lat out of range":   "/api/v1/report?lat=141.0&lon=-8.6&start=2025-05-02&end=2025-05-03",
		"non-numeric lat":    "/api/v1/report?lat=north&lon=-8.6&start=2025-05-02&end=2025-05-03",
		"bad start date":     "/api/v1/report?place=Porto&start=02-05-2025&end=2025-05-03",
		"missing end":        "/api/v1/report?place=Porto&start=2025-05-02",
		"end before start":   "/api/v1/report?place=Porto&start=2025-05-03&end=2025-05-02",
		"unknown format":     "/api/v1/report?place=Porto&start=2025-05-02&end=2025-05-03&format=docx",
		"unknown time zone":  "/api/v1/report?place=Porto&start=2025-05-02&end=2025-05-03&tz=Mars/Olympus",
		"bad fallback value": "/api/v1/report?place=Porto&start=2025-05-02&end=2025-05-03&fallback=perhaps",
	}
	for name, target := range cases {
		t.Run(name, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var body map[string]any
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, false, body["ok"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestReportPDFAttachment(t *testing.T) {
	app := newTestApp(t, stubRenderer{doc: []byte("%PDF-1.3 test")})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/report?place=Porto&start=2025-05-02&end=2025-05-03&format=pdf", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "application/pdf", resp.Header.Get(fiber.HeaderContentType))
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "weather-porto-2025-05-02-2025-05-03.pdf")
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3 test", string(data))
}

func TestReportRenderFailure(t *testing.T) {
	app := newTestApp(t, stubRenderer{err: &weather.RenderError{Err: errors.New("font missing")}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/report?place=Porto&start=2025-05-02&end=2025-05-02&format=pdf", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

type ctxRecorder struct {
	err      error
	deadline bool
}

func (r *ctxRecorder) BuildReport(ctx context.Context, _ weather.Request) (*weather.Report, error) {
	r.err = ctx.Err()
	_, r.deadline = ctx.Deadline()
	return &weather.Report{OK: true, Records: []weather.MergedRecord{}}, nil
}

func TestReportContextFollowsBaseContext(t *testing.T) {
	base, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &ctxRecorder{}
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterRoutes(app, rec, nil, Options{
		Gatherer:       prometheus.NewRegistry(),
		RequestTimeout: time.Minute,
		BaseContext:    base,
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/report?place=Porto&start=2025-05-02&end=2025-05-02", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.ErrorIs(t, rec.err, context.Canceled)
	assert.True(t, rec.deadline)
}

func TestRequestContextWithoutBase(t *testing.T) {
	ctx, cancel := requestContext(context.Background(), Options{})
	assert.NoError(t, ctx.Err())
	_, hasDeadline := ctx.Deadline()
	assert.False(t, hasDeadline)
	cancel()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
