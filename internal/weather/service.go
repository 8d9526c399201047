package weather

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/i474232898/weather-timeline/internal/observability"
)

// ResolutionHourly is the only resolution the pipeline computes.
const ResolutionHourly = "hourly"

// Request is the normalized boundary input, built once by the HTTP or CLI layer.
type Request struct {
	Place           PlaceQuery
	Start           time.Time
	End             time.Time
	Zone            *time.Location
	Resolution      string
	AllowReanalysis bool
	IncludeWarnings bool
}

// Deps are the collaborators of a Service. Station, Reanalysis, Thunder and
// Warnings may be nil; the pipeline degrades around them.
type Deps struct {
	Resolver     *Resolver
	Station      SeriesFetcher
	Reanalysis   SeriesFetcher
	Thunder      *ThunderAnnotator
	Warnings     *WarningsFetcher
	Clock        clockwork.Clock
	Metrics      *observability.Metrics
	MaxRangeDays int
}

// Service runs the timeline reconciliation pipeline for one request at a time.
// It holds no per-request state.
type Service struct {
	resolver     *Resolver
	station      SeriesFetcher
	reanalysis   SeriesFetcher
	thunder      *ThunderAnnotator
	warnings     *WarningsFetcher
	clock        clockwork.Clock
	metrics      *observability.Metrics
	maxRangeDays int
}

// NewService creates a new Service.
func NewService(d Deps) *Service {
	if d.Resolver == nil {
		d.Resolver = &Resolver{}
	}
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	return &Service{
		resolver:     d.Resolver,
		station:      d.Station,
		reanalysis:   d.Reanalysis,
		thunder:      d.Thunder,
		warnings:     d.Warnings,
		clock:        d.Clock,
		metrics:      d.Metrics,
		maxRangeDays: d.MaxRangeDays,
	}
}

// BuildReport resolves the place, fetches both sources concurrently, merges
// them onto the timeline and annotates thunder evidence and warnings. Only
// validation errors are returned; upstream problems become notes.
func (s *Service) BuildReport(ctx context.Context, req Request) (*Report, error) {
	started := s.clock.Now()
	defer func() { s.metrics.ObserveReport(s.clock.Since(started).Seconds()) }()

	w, err := NewWindow(req.Start, req.End, req.Zone)
	if err != nil {
		return nil, err
	}
	if s.maxRangeDays > 0 && w.Days() > s.maxRangeDays {
		return nil, &ValidationError{Field: "end", Reason: fmt.Sprintf("range exceeds %d days", s.maxRangeDays)}
	}

	place, notes, err := s.resolver.Resolve(ctx, req.Place)
	if err != nil {
		return nil, err
	}

	resolution := strings.ToLower(strings.TrimSpace(req.Resolution))
	if resolution != "" && resolution != ResolutionHourly {
		notes = append(notes, fmt.Sprintf("resolution %s unsupported, used hourly", req.Resolution))
	}

	log.Debug().Str("place", place.Name).Str("start", w.Period().Start).Str("end", w.Period().End).Msg("building report")

	station, reanalysis := s.fetchSources(ctx, place, w, req.AllowReanalysis)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	sources := SourceLinks{}
	notes = append(notes, s.sourceNotes(station, reanalysis, req.AllowReanalysis, sources)...)

	timeline, generated := ObservedTimeline(w, station.Series, reanalysis.Series)
	if generated {
		notes = append(notes, "no source returned data, timeline generated")
	}
	records := MergeTimeline(timeline, w.Offset, station.Series, reanalysis.Series, req.AllowReanalysis)

	report := &Report{
		OK:       true,
		ID:       uuid.NewString(),
		Place:    place,
		Period:   w.Period(),
		Timezone: w.Zone.String(),
		Records:  records,
		Warnings: []Warning{},
		Sources:  sources,
	}

	if s.thunder != nil {
		outcome := s.thunder.Annotate(ctx, place, timeline, s.clock.Now())
		s.metrics.Strategy(string(outcome.Strategy))
		Annotate(report.Records, outcome.Track)
		report.Airport = outcome.Airport
		if outcome.URL != "" {
			sources["thunder"] = outcome.URL
		}
		if outcome.Degraded {
			notes = append(notes, "thunder evidence unavailable")
		}
	} else {
		notes = append(notes, "thunder evidence unavailable")
	}

	notes = append(notes, s.attachWarnings(ctx, report, place, w, req.IncludeWarnings)...)

	report.Daily = SummarizeDaily(report.Records)
	report.Notes = notes
	if report.Notes == nil {
		report.Notes = []string{}
	}
	return report, nil
}

// fetchSources issues the station and reanalysis fetches concurrently and
// waits for both.
func (s *Service) fetchSources(ctx context.Context, place Place, w Window, allowReanalysis bool) (SeriesResult, SeriesResult) {
	var (
		wg         sync.WaitGroup
		station    SeriesResult
		reanalysis SeriesResult
	)

	fetch := func(f SeriesFetcher, dst *SeriesResult) {
		if f == nil {
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			*dst = f.Fetch(ctx, place, w)
		}()
	}

	fetch(s.station, &station)
	if allowReanalysis {
		fetch(s.reanalysis, &reanalysis)
	}
	wg.Wait()

	return station, reanalysis
}

func (s *Service) sourceNotes(station, reanalysis SeriesResult, allowReanalysis bool, links SourceLinks) []string {
	var notes []string

	if station.URL != "" {
		links["station"] = station.URL
	}
	switch {
	case !station.Available:
		notes = append(notes, "station observations unavailable")
	case station.UsedFallback:
		s.metrics.Fallback("nearby_stations")
		notes = append(notes, "station observations from nearby stations")
	}

	if !allowReanalysis {
		return append(notes, "reanalysis fallback disabled")
	}
	if reanalysis.URL != "" {
		links["reanalysis"] = reanalysis.URL
	}
	if reanalysis.UsedFallback {
		s.metrics.Fallback("archive")
		notes = append(notes, "used archive fallback")
	}
	if !reanalysis.Available {
		notes = append(notes, "reanalysis unavailable")
	}
	return notes
}

// attachWarnings clips warnings to the requested window, which may be wider
// than the observed timeline.
func (s *Service) attachWarnings(ctx context.Context, report *Report, place Place, w Window, include bool) []string {
	region := place.Admin1
	if region == "" && place.CountryCode != "" {
		region = place.Name
	}
	if !include || s.warnings == nil || region == "" {
		return []string{"warnings skipped"}
	}

	from := w.First().Time()
	to := w.EndExclusive().Time().Add(-time.Millisecond)
	ws, url, ok := s.warnings.Fetch(ctx, region, from, to)
	if url != "" {
		report.Sources["warnings"] = url
	}
	report.Warnings = ws
	if !ok {
		return []string{"warnings unavailable"}
	}
	return nil
}
