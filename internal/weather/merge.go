package weather

import "math"

// RankedSeries is one source in a priority-ordered merge.
type RankedSeries struct {
	Tag    SourceTag
	Series RawSeries
}

// firstAvailable returns the value of f at e from the highest-ranked series
// that has one, together with that series' tag.
func firstAvailable(ranked []RankedSeries, e Epoch, f Field) (*float64, SourceTag, bool) {
	for _, r := range ranked {
		if r.Series == nil {
			continue
		}
		s, ok := r.Series[e]
		if !ok {
			continue
		}
		if v := s.Get(f); v != nil {
			return v, r.Tag, true
		}
	}
	return nil, "", false
}

// MergeRanked folds several series into one: for every hour and every field
// the first series in argument order holding a value wins. Hours reported
// only with null fields are kept as empty samples.
func MergeRanked(series ...RawSeries) RawSeries {
	ranked := make([]RankedSeries, 0, len(series))
	epochs := make(map[Epoch]struct{})
	for _, s := range series {
		ranked = append(ranked, RankedSeries{Series: s})
		for e := range s {
			epochs[e] = struct{}{}
		}
	}

	out := make(RawSeries, len(epochs))
	for e := range epochs {
		var merged Sample
		for _, f := range Fields {
			if v, _, ok := firstAvailable(ranked, e, f); ok {
				merged.Set(f, copyFloat(*v))
			}
		}
		out[e] = merged
	}
	return out
}

// MergeTimeline produces exactly one record per timeline entry, in order.
// Station values always win; reanalysis only fills gaps when allowed.
func MergeTimeline(timeline []Epoch, offsetSeconds int, station, reanalysis RawSeries, allowReanalysis bool) []MergedRecord {
	ranked := []RankedSeries{{Tag: SourceStation, Series: station}}
	if allowReanalysis {
		ranked = append(ranked, RankedSeries{Tag: SourceReanalysis, Series: reanalysis})
	}

	records := make([]MergedRecord, len(timeline))
	for i, e := range timeline {
		rec := MergedRecord{
			Epoch: e,
			Time:  FormatISOOffset(e, offsetSeconds),
		}
		for _, f := range Fields {
			v, tag, ok := firstAvailable(ranked, e, f)
			if !ok {
				continue
			}
			t := tag
			switch f {
			case FieldWind:
				rec.WindKmh = copyFloat(round1(*v))
				rec.Sources.Wind = &t
			case FieldGust:
				rec.GustKmh = copyFloat(round1(*v))
				rec.Sources.Gust = &t
			case FieldPrecip:
				rec.PrecipMm = copyFloat(*v)
				rec.Sources.Precip = &t
			}
		}
		records[i] = rec
	}
	return records
}

// round1 rounds to one decimal, halves away from zero.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func copyFloat(v float64) *float64 {
	return &v
}
