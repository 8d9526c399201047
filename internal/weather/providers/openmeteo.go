package providers

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-timeline/internal/weather"
)

const (
	DefaultReanalysisURL = "https://archive-api.open-meteo.com/v1/era5"
	DefaultArchiveURL    = "https://archive-api.open-meteo.com/v1/archive"
)

// OpenMeteoReanalysis implements weather.SeriesFetcher for the Open-Meteo
// reanalysis endpoint, with the historical archive as fallback.
type OpenMeteoReanalysis struct {
	name       string
	primaryURL string
	archiveURL string
	httpCfg    HTTPClientConfig
	primary    *gobreaker.CircuitBreaker
	archive    *gobreaker.CircuitBreaker
}

func NewOpenMeteoReanalysis(cfg HTTPClientConfig, primaryURL, archiveURL string) *OpenMeteoReanalysis {
	if primaryURL == "" {
		primaryURL = DefaultReanalysisURL
	}
	if archiveURL == "" {
		archiveURL = DefaultArchiveURL
	}
	return &OpenMeteoReanalysis{
		name:       "open-meteo",
		primaryURL: primaryURL,
		archiveURL: archiveURL,
		httpCfg:    cfg,
		primary:    newBreaker("openmeteo-reanalysis"),
		archive:    newBreaker("openmeteo-archive"),
	}
}

func (p *OpenMeteoReanalysis) Name() string {
	return p.name
}

type openMeteoHourly struct {
	UTCOffsetSeconds int `json:"utc_offset_seconds"`
	Hourly           struct {
		Time          []flexFloat `json:"time"`
		WindSpeed     []flexFloat `json:"wind_speed_10m"`
		WindGusts     []flexFloat `json:"wind_gusts_10m"`
		Precipitation []flexFloat `json:"precipitation"`
	} `json:"hourly"`
}

// Fetch queries the primary endpoint and retries once against the archive
// when the primary yields no aligned rows.
func (p *OpenMeteoReanalysis) Fetch(ctx context.Context, place weather.Place, w weather.Window) weather.SeriesResult {
	u := p.buildURL(p.primaryURL, place, w)
	series, err := p.query(ctx, p.primary, "reanalysis", u, w)
	if err != nil {
		log.Warn().Err(err).Str("source", "reanalysis").Str("url", u).Msg("reanalysis primary failed")
	}
	if series.Valued() > 0 {
		return weather.SeriesResult{Series: series, URL: u, Available: true, Size: len(series)}
	}

	primaryRows := series
	u = p.buildURL(p.archiveURL, place, w)
	series, err = p.query(ctx, p.archive, "archive", u, w)
	if err != nil {
		log.Warn().Err(err).Str("source", "archive").Str("url", u).Msg("reanalysis archive failed")
	}
	if len(series) == 0 {
		series = primaryRows
	}
	return weather.SeriesResult{
		Series:       series,
		URL:          u,
		Available:    series.Valued() > 0,
		Size:         len(series),
		UsedFallback: true,
	}
}

func (p *OpenMeteoReanalysis) buildURL(base string, place weather.Place, w weather.Window) string {
	values := url.Values{}
	values.Set("latitude", fmt.Sprintf("%.4f", place.Lat))
	values.Set("longitude", fmt.Sprintf("%.4f", place.Lon))
	values.Set("start_date", w.Period().Start)
	values.Set("end_date", w.Period().End)
	values.Set("hourly", "wind_speed_10m,wind_gusts_10m,precipitation")
	values.Set("wind_speed_unit", "kmh")
	values.Set("timezone", w.Zone.String())
	values.Set("timeformat", "unixtime")
	return fmt.Sprintf("%s?%s", base, values.Encode())
}

func (p *OpenMeteoReanalysis) query(ctx context.Context, cb *gobreaker.CircuitBreaker, source, u string, w weather.Window) (weather.RawSeries, error) {
	var payload openMeteoHourly
	if err := fetchJSON(ctx, p.httpCfg, cb, source, u, nil, &payload); err != nil {
		return weather.RawSeries{}, err
	}

	series := alignOpenMeteo(payload, w)
	if series.Valued() == 0 {
		p.httpCfg.Metrics.Upstream(source, "empty")
	} else {
		p.httpCfg.Metrics.Upstream(source, "success")
	}
	return series, nil
}

// alignOpenMeteo keys the hourly arrays by epoch, keeping every row inside
// the window even when all of its values are null.
func alignOpenMeteo(payload openMeteoHourly, w weather.Window) weather.RawSeries {
	first, last := w.First(), w.EndExclusive()
	series := make(weather.RawSeries)
	for i, ts := range payload.Hourly.Time {
		sec := ts.Ptr()
		if sec == nil {
			continue
		}
		e := weather.EpochOf(time.Unix(int64(*sec), 0))
		if e < first || e >= last {
			continue
		}
		s := weather.Sample{
			Wind:   at(payload.Hourly.WindSpeed, i),
			Gust:   at(payload.Hourly.WindGusts, i),
			Precip: at(payload.Hourly.Precipitation, i),
		}
		series[e] = s
	}
	return series
}
