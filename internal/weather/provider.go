package weather

import (
	"context"
	"time"
)

// SeriesFetcher abstracts one hourly observation source (station network or
// reanalysis). Fetch never fails: upstream problems come back as
// Available=false with an empty series.
type SeriesFetcher interface {
	Name() string
	Fetch(ctx context.Context, place Place, w Window) SeriesResult
}

// GeoCandidate is one geocoding search hit.
type GeoCandidate struct {
	Name        string
	Lat         float64
	Lon         float64
	Admin1      string
	Admin2      string
	CountryCode string
	Population  int64
}

// Geocoder looks up free-text place names.
type Geocoder interface {
	Search(ctx context.Context, name string) ([]GeoCandidate, error)
}

// Strike is one lightning observation, or a pre-aggregated bin when Count is set.
type Strike struct {
	Time  time.Time
	Lat   *float64
	Lon   *float64
	Count *float64
}

// LightningSource returns the rolling recent-strike feed and the URL it used.
type LightningSource interface {
	Strikes(ctx context.Context) ([]Strike, string, error)
}

// METARReport is a raw report with its observation time.
type METARReport struct {
	Time time.Time
	Raw  string
}

// METARArchive serves historical METARs for one airport over an interval.
type METARArchive interface {
	Name() string
	Reports(ctx context.Context, icao string, from, to time.Time) ([]METARReport, string, error)
}

// WarningsSource returns the current official hazard warnings feed.
type WarningsSource interface {
	Warnings(ctx context.Context) ([]Warning, string, error)
}
