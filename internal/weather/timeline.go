package weather

import (
	"sort"
	"time"
)

const dateLayout = "2006-01-02"

// isoOffsetLayout renders local wall-clock time with an explicit ±HH:MM suffix.
const isoOffsetLayout = "2006-01-02T15:04:05-07:00"

// Window is the requested local date range together with the UTC offset used
// to pin it to absolute time.
type Window struct {
	Start  time.Time // civil date, midnight UTC
	End    time.Time // civil date, midnight UTC, inclusive
	Zone   *time.Location
	Offset int // seconds east of UTC
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

// NewWindow validates the range and derives the offset from zone at local
// midnight of the start date.
func NewWindow(start, end time.Time, zone *time.Location) (Window, error) {
	if zone == nil {
		zone = time.UTC
	}
	start = civil(start)
	end = civil(end)
	if end.Before(start) {
		return Window{}, &ValidationError{Field: "end", Reason: "must not be before start"}
	}
	_, offset := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, zone).Zone()
	return Window{Start: start, End: end, Zone: zone, Offset: offset}, nil
}

func civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Days returns the inclusive number of calendar days covered.
func (w Window) Days() int {
	return int(w.End.Sub(w.Start).Hours()/24) + 1
}

// First is the epoch of local midnight on the start date.
func (w Window) First() Epoch {
	return Epoch(w.Start.UnixMilli() - int64(w.Offset)*1000)
}

// EndExclusive is the epoch right after local 23:00 of the end date.
func (w Window) EndExclusive() Epoch {
	return w.First() + Epoch(int64(24*w.Days())*HourMillis)
}

// Period returns the window as formatted dates.
func (w Window) Period() Period {
	return Period{Start: w.Start.Format(dateLayout), End: w.End.Format(dateLayout)}
}

// BuildTimeline returns one epoch per hour from local midnight of start to
// local 23:00 of end, with local time pinned by offsetSeconds.
func BuildTimeline(start, end time.Time, offsetSeconds int) []Epoch {
	start = civil(start)
	end = civil(end)
	if end.Before(start) {
		return nil
	}
	days := int(end.Sub(start).Hours()/24) + 1
	base := start.UnixMilli() - int64(offsetSeconds)*1000

	out := make([]Epoch, 24*days)
	for i := range out {
		out[i] = Epoch(base + int64(i)*HourMillis)
	}
	return out
}

// ObservedTimeline builds the timeline from the epochs the sources actually
// returned inside the window. When no source has data it falls back to the
// synthetic hourly grid; the second result reports that fallback.
func ObservedTimeline(w Window, series ...RawSeries) ([]Epoch, bool) {
	first, last := w.First(), w.EndExclusive()
	seen := make(map[Epoch]struct{})
	for _, s := range series {
		for _, e := range s.Epochs() {
			if e >= first && e < last {
				seen[e] = struct{}{}
			}
		}
	}
	if len(seen) == 0 {
		return BuildTimeline(w.Start, w.End, w.Offset), true
	}

	out := make([]Epoch, 0, len(seen))
	for e := range seen {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, false
}

// FormatISOOffset renders e as local wall-clock time with an explicit offset.
func FormatISOOffset(e Epoch, offsetSeconds int) string {
	return e.Time().In(time.FixedZone("", offsetSeconds)).Format(isoOffsetLayout)
}
