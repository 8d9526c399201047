package weather

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/i474232898/weather-timeline/internal/common"
)

// WarningKeywords selects thunder, rain and wind related phenomena.
var WarningKeywords = []string{
	"thunder", "trovoada", "storm",
	"rain", "chuva", "precipita",
	"wind", "vento",
}

// FilterWarnings keeps warnings for region whose phenomenon matches
// WarningKeywords and whose interval meets [from, to], clipped to it.
func FilterWarnings(ws []Warning, region string, from, to time.Time) []Warning {
	region = strings.ToLower(strings.TrimSpace(region))
	out := make([]Warning, 0)
	if region == "" {
		return out
	}

	for _, w := range ws {
		if !strings.Contains(strings.ToLower(w.Region), region) {
			continue
		}
		if !common.HasAny(strings.ToLower(w.Phenomenon), WarningKeywords...) {
			continue
		}
		if w.End.Before(w.Start) || w.Start.After(to) || w.End.Before(from) {
			continue
		}
		if w.Start.Before(from) {
			w.Start = from
		}
		if w.End.After(to) {
			w.End = to
		}
		out = append(out, w)
	}
	return out
}

// WarningsFetcher retrieves and filters warnings; failures yield an empty list.
type WarningsFetcher struct {
	Source WarningsSource
}

// Fetch returns the warnings for region intersecting [from, to], the feed URL
// and whether the feed answered.
func (f *WarningsFetcher) Fetch(ctx context.Context, region string, from, to time.Time) ([]Warning, string, bool) {
	if f == nil || f.Source == nil {
		return []Warning{}, "", false
	}
	all, url, err := f.Source.Warnings(ctx)
	if err != nil {
		log.Warn().Err(err).Str("source", "warnings").Str("url", url).Msg("warnings feed unavailable")
		return []Warning{}, url, false
	}
	return FilterWarnings(all, region, from, to), url, true
}
