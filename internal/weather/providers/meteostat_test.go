package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-timeline/internal/weather"
)

const meteostatTestURL = "https://meteostat.test"

func newTestMeteostat(client *http.Client, key string) *MeteostatStations {
	return NewMeteostatStations(testHTTPConfig(client), MeteostatOptions{
		BaseURL: meteostatTestURL,
		Host:    "meteostat.test",
		APIKey:  key,
	})
}

func TestMeteostatWithoutKeySkipsUpstream(t *testing.T) {
	client, mt := newMockClient()

	res := newTestMeteostat(client, "").Fetch(context.Background(), weather.DefaultPlace, testWindow(t, "2025-05-02", "2025-05-02"))
	assert.False(t, res.Available)
	assert.Empty(t, res.Series)
	assert.Zero(t, mt.GetTotalCallCount())
}

func TestMeteostatPointQuery(t *testing.T) {
	client, mt := newMockClient()
	mt.RegisterResponder(http.MethodGet, meteostatTestURL+"/point/hourly", func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "secret", req.Header.Get("x-rapidapi-key"))
		assert.Equal(t, "meteostat.test", req.Header.Get("x-rapidapi-host"))
		assert.Equal(t, "false", req.URL.Query().Get("model"))
		assert.Equal(t, "UTC", req.URL.Query().Get("tz"))
		return httpmock.NewStringResponse(http.StatusOK, `{"data":[
			{"time":"2025-05-02 00:00:00","wspd":10.8,"wpgt":null,"prcp":0.0},
			{"time":"2025-05-02 01:00:00","wspd":null,"wpgt":null,"prcp":null},
			{"time":"2025-05-02 02:00:00","wspd":"12.6","wpgt":31.7,"prcp":1.2},
			{"time":"bad","wspd":1}
		]}`), nil
	})

	res := newTestMeteostat(client, "secret").Fetch(context.Background(), weather.DefaultPlace, testWindow(t, "2025-05-02", "2025-05-02"))
	require.True(t, res.Available)
	assert.False(t, res.UsedFallback)
	assert.Contains(t, res.URL, "/point/hourly?")
	require.Len(t, res.Series, 3)
	assert.True(t, res.Series[utcHour(2, 1)].Empty())
	assert.Equal(t, 10.8, *res.Series[utcHour(2, 0)].Wind)
	assert.Equal(t, 0.0, *res.Series[utcHour(2, 0)].Precip)
	assert.Equal(t, 12.6, *res.Series[utcHour(2, 2)].Wind)
	assert.Equal(t, 1, mt.GetTotalCallCount())
}

func TestMeteostatNearbyStationsMerge(t *testing.T) {
	client, mt := newMockClient()
	mt.RegisterResponder(http.MethodGet, meteostatTestURL+"/point/hourly",
		httpmock.NewStringResponder(http.StatusOK, `{"data":[]}`))
	mt.RegisterResponder(http.MethodGet, meteostatTestURL+"/stations/nearby", func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "50", req.URL.Query().Get("radius"))
		return httpmock.NewStringResponse(http.StatusOK, `{"data":[
			{"id":"FAR","distance":30000},
			{"id":"NEAR","distance":4000},
			{"id":"DOWN","distance":9000}
		]}`), nil
	})
	mt.RegisterResponder(http.MethodGet, meteostatTestURL+"/stations/hourly", func(req *http.Request) (*http.Response, error) {
		switch req.URL.Query().Get("station") {
		case "NEAR":
			return httpmock.NewStringResponse(http.StatusOK, `{"data":[
				{"time":"2025-05-02 00:00:00","wspd":5,"wpgt":null,"prcp":null}
			]}`), nil
		case "FAR":
			return httpmock.NewStringResponse(http.StatusOK, `{"data":[
				{"time":"2025-05-02 00:00:00","wspd":50,"wpgt":60,"prcp":null},
				{"time":"2025-05-02 03:00:00","wspd":7,"wpgt":null,"prcp":0.3}
			]}`), nil
		default:
			return httpmock.NewStringResponse(http.StatusInternalServerError, ""), nil
		}
	})

	res := newTestMeteostat(client, "secret").Fetch(context.Background(), weather.DefaultPlace, testWindow(t, "2025-05-02", "2025-05-02"))
	require.True(t, res.Available)
	assert.True(t, res.UsedFallback)
	assert.Contains(t, res.URL, "station=NEAR")

	require.Len(t, res.Series, 2)
	first := res.Series[utcHour(2, 0)]
	assert.Equal(t, 5.0, *first.Wind, "nearest station wins")
	assert.Equal(t, 60.0, *first.Gust, "gap filled from the next station")
	assert.Nil(t, first.Precip)
	assert.Equal(t, 0.3, *res.Series[utcHour(2, 3)].Precip)
}

func TestMeteostatNearbyNothing(t *testing.T) {
	client, mt := newMockClient()
	mt.RegisterResponder(http.MethodGet, meteostatTestURL+"/point/hourly",
		httpmock.NewStringResponder(http.StatusTooManyRequests, ""))
	mt.RegisterResponder(http.MethodGet, meteostatTestURL+"/stations/nearby",
		httpmock.NewStringResponder(http.StatusOK, `{"data":[]}`))

	res := newTestMeteostat(client, "secret").Fetch(context.Background(), weather.DefaultPlace, testWindow(t, "2025-05-02", "2025-05-02"))
	assert.False(t, res.Available)
	assert.False(t, res.UsedFallback)
	assert.Contains(t, res.URL, "/stations/nearby?")
}

func TestMeteostatKeepsHoursWithNullValues(t *testing.T) {
	client, mt := newMockClient()

	var rows []string
	for h := 0; h < 24; h++ {
		wind := "null"
		if h == 3 || h == 10 || h == 17 {
			wind = "9.5"
		}
		rows = append(rows, fmt.Sprintf(`{"time":"2025-05-02 %02d:00:00","wspd":%s,"wpgt":null,"prcp":null}`, h, wind))
	}
	mt.RegisterResponder(http.MethodGet, meteostatTestURL+"/point/hourly",
		httpmock.NewStringResponder(http.StatusOK, `{"data":[`+strings.Join(rows, ",")+`]}`))

	w := testWindow(t, "2025-05-02", "2025-05-02")
	res := newTestMeteostat(client, "secret").Fetch(context.Background(), weather.DefaultPlace, w)
	require.True(t, res.Available)
	assert.False(t, res.UsedFallback)
	assert.Len(t, res.Series, 24)
	assert.Equal(t, 3, res.Series.Valued())

	timeline, generated := weather.ObservedTimeline(w, res.Series, nil)
	assert.False(t, generated)
	records := weather.MergeTimeline(timeline, w.Offset, res.Series, nil, false)
	require.Len(t, records, 24)
	assert.Nil(t, records[4].WindKmh)
	assert.Equal(t, 9.5, *records[10].WindKmh)

	daily := weather.SummarizeDaily(records)
	require.Len(t, daily, 1)
	assert.Equal(t, 24, daily[0].Hours)
	assert.Zero(t, mt.GetCallCountInfo()["GET "+meteostatTestURL+"/stations/nearby"])
}

func TestMeteostatNullPointRowsSurviveEmptyNearby(t *testing.T) {
	client, mt := newMockClient()
	mt.RegisterResponder(http.MethodGet, meteostatTestURL+"/point/hourly",
		httpmock.NewStringResponder(http.StatusOK, `{"data":[
			{"time":"2025-05-02 05:00:00","wspd":null,"wpgt":null,"prcp":null}
		]}`))
	mt.RegisterResponder(http.MethodGet, meteostatTestURL+"/stations/nearby",
		httpmock.NewStringResponder(http.StatusOK, `{"data":[]}`))

	res := newTestMeteostat(client, "secret").Fetch(context.Background(), weather.DefaultPlace, testWindow(t, "2025-05-02", "2025-05-02"))
	assert.False(t, res.Available)
	assert.False(t, res.UsedFallback)
	require.Len(t, res.Series, 1)
	assert.True(t, res.Series[utcHour(2, 5)].Empty())
}
