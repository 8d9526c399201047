package providers

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-timeline/internal/weather"
)

const (
	DefaultMeteostatURL  = "https://meteostat.p.rapidapi.com"
	DefaultMeteostatHost = "meteostat.p.rapidapi.com"

	meteostatTimeLayout = "2006-01-02 15:04:05"
)

// MeteostatStations implements weather.SeriesFetcher for observed station
// data: a point query first, then a ranked merge of nearby stations.
type MeteostatStations struct {
	name     string
	baseURL  string
	host     string
	apiKey   string
	radiusKm int
	limit    int
	httpCfg  HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
}

// MeteostatOptions configures NewMeteostatStations.
type MeteostatOptions struct {
	BaseURL  string
	Host     string
	APIKey   string
	RadiusKm int
	Limit    int
}

func NewMeteostatStations(cfg HTTPClientConfig, opts MeteostatOptions) *MeteostatStations {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultMeteostatURL
	}
	if opts.Host == "" {
		opts.Host = DefaultMeteostatHost
	}
	if opts.RadiusKm <= 0 {
		opts.RadiusKm = 50
	}
	if opts.Limit <= 0 {
		opts.Limit = 5
	}
	return &MeteostatStations{
		name:     "meteostat",
		baseURL:  opts.BaseURL,
		host:     opts.Host,
		apiKey:   opts.APIKey,
		radiusKm: opts.RadiusKm,
		limit:    opts.Limit,
		httpCfg:  cfg,
		circuit:  newBreaker("meteostat"),
	}
}

func (p *MeteostatStations) Name() string {
	return p.name
}

type meteostatHourly struct {
	Data []struct {
		Time string    `json:"time"`
		Wspd flexFloat `json:"wspd"`
		Wpgt flexFloat `json:"wpgt"`
		Prcp flexFloat `json:"prcp"`
	} `json:"data"`
}

type meteostatNearby struct {
	Data []struct {
		ID       string  `json:"id"`
		Distance float64 `json:"distance"`
	} `json:"data"`
}

// Fetch returns observed values only (model=false). An empty point query
// falls back to merging nearby stations in proximity order.
func (p *MeteostatStations) Fetch(ctx context.Context, place weather.Place, w weather.Window) weather.SeriesResult {
	if p.apiKey == "" {
		log.Debug().Str("source", "station").Msg("meteostat api key not configured")
		return weather.SeriesResult{Series: weather.RawSeries{}}
	}

	pointURL := p.hourlyURL("/point/hourly", url.Values{
		"lat": {fmt.Sprintf("%.4f", place.Lat)},
		"lon": {fmt.Sprintf("%.4f", place.Lon)},
	}, w)
	series, err := p.hourly(ctx, pointURL, w)
	if err != nil {
		log.Warn().Err(err).Str("source", "station").Str("url", pointURL).Msg("station point query failed")
	}
	if series.Valued() > 0 {
		return weather.SeriesResult{Series: series, URL: pointURL, Available: true, Size: len(series)}
	}

	merged, usedURL := p.nearby(ctx, place, w)
	if usedURL == "" {
		usedURL = pointURL
	}
	used := merged.Valued() > 0
	if !used {
		// Keep the hours the point query reported, even without values.
		merged = series
	}
	return weather.SeriesResult{
		Series:       merged,
		URL:          usedURL,
		Available:    used,
		Size:         len(merged),
		UsedFallback: used,
	}
}

func (p *MeteostatStations) nearby(ctx context.Context, place weather.Place, w weather.Window) (weather.RawSeries, string) {
	values := url.Values{}
	values.Set("lat", fmt.Sprintf("%.4f", place.Lat))
	values.Set("lon", fmt.Sprintf("%.4f", place.Lon))
	values.Set("limit", strconv.Itoa(p.limit))
	values.Set("radius", strconv.Itoa(p.radiusKm))
	nearbyURL := fmt.Sprintf("%s/stations/nearby?%s", p.baseURL, values.Encode())

	var stations meteostatNearby
	if err := fetchJSON(ctx, p.httpCfg, p.circuit, "station", nearbyURL, p.headers(), &stations); err != nil {
		log.Warn().Err(err).Str("source", "station").Str("url", nearbyURL).Msg("nearby station lookup failed")
		return weather.RawSeries{}, ""
	}
	sort.SliceStable(stations.Data, func(i, j int) bool {
		return stations.Data[i].Distance < stations.Data[j].Distance
	})

	var (
		ranked   []weather.RawSeries
		firstURL string
	)
	for i, st := range stations.Data {
		if i >= p.limit || ctx.Err() != nil {
			break
		}
		u := p.hourlyURL("/stations/hourly", url.Values{"station": {st.ID}}, w)
		s, err := p.hourly(ctx, u, w)
		if err != nil {
			log.Warn().Err(err).Str("source", "station").Str("station", st.ID).Msg("station hourly query failed")
			continue
		}
		if s.Valued() == 0 {
			continue
		}
		if firstURL == "" {
			firstURL = u
		}
		ranked = append(ranked, s)
	}
	if len(ranked) == 0 {
		return weather.RawSeries{}, nearbyURL
	}
	return weather.MergeRanked(ranked...), firstURL
}

func (p *MeteostatStations) hourlyURL(path string, values url.Values, w weather.Window) string {
	values.Set("start", w.Period().Start)
	values.Set("end", w.Period().End)
	values.Set("tz", w.Zone.String())
	values.Set("model", "false")
	return fmt.Sprintf("%s%s?%s", p.baseURL, path, values.Encode())
}

func (p *MeteostatStations) headers() map[string]string {
	return map[string]string{
		"x-rapidapi-key":  p.apiKey,
		"x-rapidapi-host": p.host,
	}
}

func (p *MeteostatStations) hourly(ctx context.Context, u string, w weather.Window) (weather.RawSeries, error) {
	var payload meteostatHourly
	if err := fetchJSON(ctx, p.httpCfg, p.circuit, "station", u, p.headers(), &payload); err != nil {
		return weather.RawSeries{}, err
	}

	first, last := w.First(), w.EndExclusive()
	series := make(weather.RawSeries)
	for _, row := range payload.Data {
		ts, err := time.ParseInLocation(meteostatTimeLayout, row.Time, w.Zone)
		if err != nil {
			continue
		}
		e := weather.EpochOf(ts)
		if e < first || e >= last {
			continue
		}
		series[e] = weather.Sample{Wind: row.Wspd.Ptr(), Gust: row.Wpgt.Ptr(), Precip: row.Prcp.Ptr()}
	}

	if series.Valued() == 0 {
		p.httpCfg.Metrics.Upstream("station", "empty")
	} else {
		p.httpCfg.Metrics.Upstream("station", "success")
	}
	return series, nil
}
