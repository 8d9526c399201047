package weather

import (
	"time"
)

// Epoch is a UTC instant in milliseconds, truncated to the top of an hour.
// It is the join key shared by every source.
type Epoch int64

// HourMillis is the spacing between two consecutive timeline entries.
const HourMillis int64 = 3_600_000

// EpochOf truncates t to its hour and returns it as an Epoch.
func EpochOf(t time.Time) Epoch {
	ms := t.UnixMilli()
	return Epoch(ms - mod(ms, HourMillis))
}

// Time converts the epoch back to a UTC time.
func (e Epoch) Time() time.Time {
	return time.UnixMilli(int64(e)).UTC()
}

func mod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// Place is a resolved location. Admin1 is the region used for warnings.
type Place struct {
	Name        string  `json:"name"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Admin1      string  `json:"admin1,omitempty"`
	Admin2      string  `json:"admin2,omitempty"`
	CountryCode string  `json:"countryCode,omitempty"`
}

// Field identifies one of the merged numeric fields.
type Field int

const (
	FieldWind Field = iota
	FieldGust
	FieldPrecip
)

// Fields lists every merged field in output order.
var Fields = []Field{FieldWind, FieldGust, FieldPrecip}

// Sample is one hour of optional values from a single source.
// A nil pointer means the source had nothing for that field.
type Sample struct {
	Wind   *float64
	Gust   *float64
	Precip *float64
}

// Get returns the value stored for f.
func (s Sample) Get(f Field) *float64 {
	switch f {
	case FieldWind:
		return s.Wind
	case FieldGust:
		return s.Gust
	case FieldPrecip:
		return s.Precip
	}
	return nil
}

// Set stores v for f.
func (s *Sample) Set(f Field, v *float64) {
	switch f {
	case FieldWind:
		s.Wind = v
	case FieldGust:
		s.Gust = v
	case FieldPrecip:
		s.Precip = v
	}
}

// Empty reports whether no field carries a value.
func (s Sample) Empty() bool {
	return s.Wind == nil && s.Gust == nil && s.Precip == nil
}

// RawSeries is a sparse, epoch-indexed series from one source.
type RawSeries map[Epoch]Sample

// Epochs returns every hour the source reported, including rows whose
// fields were all null.
func (r RawSeries) Epochs() []Epoch {
	out := make([]Epoch, 0, len(r))
	for e := range r {
		out = append(out, e)
	}
	return out
}

// Valued counts the hours carrying at least one value.
func (r RawSeries) Valued() int {
	n := 0
	for _, s := range r {
		if !s.Empty() {
			n++
		}
	}
	return n
}

// SourceTag names the provider that supplied a merged value.
type SourceTag string

const (
	SourceStation    SourceTag = "station"
	SourceReanalysis SourceTag = "reanalysis"
)

// SeriesResult is what a source fetcher hands to the merge stage.
type SeriesResult struct {
	Series    RawSeries
	URL       string
	Available bool
	Size      int

	// UsedFallback is set when the secondary strategy produced the series
	// (nearby stations for observations, archive endpoint for reanalysis).
	UsedFallback bool
}

// FieldSources tags the origin of each merged field; nil means no source.
type FieldSources struct {
	Wind   *SourceTag `json:"wind"`
	Gust   *SourceTag `json:"gust"`
	Precip *SourceTag `json:"precip"`
}

// MergedRecord is one hour of the reconciled timeline.
type MergedRecord struct {
	Epoch    Epoch           `json:"-"`
	Time     string          `json:"time"`
	WindKmh  *float64        `json:"wind_kmh"`
	GustKmh  *float64        `json:"gust_kmh"`
	PrecipMm *float64        `json:"precip_mm"`
	Sources  FieldSources    `json:"sources"`
	Thunder  ThunderEvidence `json:"thunder"`
}

// Warning is an official hazard warning clipped to the requested interval.
type Warning struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Phenomenon string    `json:"phenomenon"`
	Level      string    `json:"level"`
	Region     string    `json:"region,omitempty"`
	Link       string    `json:"link,omitempty"`
}

// SourceLinks maps a logical source name to the upstream URL actually used.
type SourceLinks map[string]string

// Period is the requested local date range, inclusive.
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Report is the assembled response of one pipeline run.
type Report struct {
	OK       bool           `json:"ok"`
	ID       string         `json:"id"`
	Place    Place          `json:"place"`
	Airport  string         `json:"airport,omitempty"`
	Period   Period         `json:"period"`
	Timezone string         `json:"timezone"`
	Records  []MergedRecord `json:"records"`
	Daily    []DailySummary `json:"daily"`
	Warnings []Warning      `json:"warnings"`
	Sources  SourceLinks    `json:"sources"`
	Notes    []string       `json:"notes"`
}
