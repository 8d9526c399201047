package weather

import (
	"context"
	"encoding/json"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ThunderKind distinguishes the two evidence shapes.
type ThunderKind string

const (
	ThunderCount ThunderKind = "count"
	ThunderFlag  ThunderKind = "flag"
)

// StormFlag is the categorical METAR thunderstorm state of an hour.
type StormFlag string

const (
	FlagNone StormFlag = ""
	FlagTS   StormFlag = "TS"
	FlagVCTS StormFlag = "VCTS"
)

// SourceLightningFeed tags counts taken from the rolling strike feed.
const SourceLightningFeed = "lightning-feed"

// ThunderEvidence is the per-hour annotation. Only StrikeCount and
// FlagEvidence implement it.
type ThunderEvidence interface {
	Kind() ThunderKind
	Positive() bool
	thunderEvidence()
}

// StrikeCount is the recent-strategy evidence: strikes observed in the hour.
type StrikeCount struct {
	Value  int
	Source string
}

func (StrikeCount) Kind() ThunderKind { return ThunderCount }
func (c StrikeCount) Positive() bool { return c.Value > 0 }
func (StrikeCount) thunderEvidence() {}

func (c StrikeCount) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type   ThunderKind `json:"type"`
		Value  int         `json:"value"`
		Source string      `json:"source"`
	}{ThunderCount, c.Value, c.Source})
}

// FlagEvidence is the historical-strategy evidence taken from METARs.
type FlagEvidence struct {
	Value  StormFlag
	Source string
}

func (FlagEvidence) Kind() ThunderKind { return ThunderFlag }
func (f FlagEvidence) Positive() bool { return f.Value != FlagNone }
func (FlagEvidence) thunderEvidence() {}

func (f FlagEvidence) MarshalJSON() ([]byte, error) {
	var value *StormFlag
	if f.Value != FlagNone {
		v := f.Value
		value = &v
	}
	return json.Marshal(struct {
		Type   ThunderKind `json:"type"`
		Value  *StormFlag  `json:"value"`
		Source string      `json:"source"`
	}{ThunderFlag, value, f.Source})
}

// ThunderTrack carries evidence of a single kind for a whole timeline, so a
// response can never mix counts and flags.
type ThunderTrack interface {
	Kind() ThunderKind
	Len() int
	At(i int) ThunderEvidence
}

// CountTrack is a timeline of strike counts from one source.
type CountTrack struct {
	Source string
	Counts []int
}

func (CountTrack) Kind() ThunderKind { return ThunderCount }
func (t CountTrack) Len() int { return len(t.Counts) }
func (t CountTrack) At(i int) ThunderEvidence {
	return StrikeCount{Value: t.Counts[i], Source: t.Source}
}

// FlagTrack is a timeline of METAR flags from one archive.
type FlagTrack struct {
	Source string
	Flags  []StormFlag
}

func (FlagTrack) Kind() ThunderKind { return ThunderFlag }
func (t FlagTrack) Len() int { return len(t.Flags) }
func (t FlagTrack) At(i int) ThunderEvidence {
	return FlagEvidence{Value: t.Flags[i], Source: t.Source}
}

// Annotate attaches the track to records position by position.
func Annotate(records []MergedRecord, track ThunderTrack) {
	for i := range records {
		if i < track.Len() {
			records[i].Thunder = track.At(i)
		}
	}
}

// ThunderStrategy is the evidence strategy chosen for a response.
type ThunderStrategy string

const (
	StrategyRecent     ThunderStrategy = "recent"
	StrategyHistorical ThunderStrategy = "historical"
)

// RecentWindow is how close to now an interval must end for the lightning
// feed to cover it.
const RecentWindow = 24 * time.Hour

// ChooseStrategy picks the recent strategy when the interval ends no more than
// RecentWindow before now. The choice applies to the whole response.
func ChooseStrategy(timeline []Epoch, now time.Time) ThunderStrategy {
	if len(timeline) == 0 {
		return StrategyHistorical
	}
	intervalEnd := int64(timeline[len(timeline)-1]) + HourMillis - 1
	if now.UnixMilli()-intervalEnd <= RecentWindow.Milliseconds() {
		return StrategyRecent
	}
	return StrategyHistorical
}

// BucketStrikes counts strikes per timeline hour. Strikes with coordinates
// farther than radiusKm from origin are skipped; radiusKm <= 0 keeps all.
func BucketStrikes(strikes []Strike, timeline []Epoch, origin Place, radiusKm float64) []int {
	buckets := make(map[Epoch]float64)
	for _, s := range strikes {
		if radiusKm > 0 && s.Lat != nil && s.Lon != nil &&
			Haversine(origin.Lat, origin.Lon, *s.Lat, *s.Lon) > radiusKm {
			continue
		}
		n := 1.0
		if s.Count != nil {
			n = *s.Count
		}
		buckets[EpochOf(s.Time)] += n
	}

	counts := make([]int, len(timeline))
	for i, e := range timeline {
		c := math.Floor(buckets[e])
		if math.IsNaN(c) || c < 0 {
			c = 0
		}
		counts[i] = int(c)
	}
	return counts
}

var (
	inProgressToken = regexp.MustCompile(`^[+-]?TS[A-Z]*$`)
	bodyTerminators = map[string]bool{"RMK": true, "TEMPO": true, "BECMG": true, "NOSIG": true}
)

// ParseThunder scans the observed part of a raw METAR. An in-progress
// thunderstorm token wins over a vicinity token in the same report.
func ParseThunder(raw string) StormFlag {
	flag := FlagNone
	for _, tok := range strings.Fields(strings.ToUpper(raw)) {
		tok = strings.TrimRight(tok, "=")
		if bodyTerminators[tok] {
			break
		}
		switch {
		case inProgressToken.MatchString(tok):
			return FlagTS
		case tok == "VCTS":
			flag = FlagVCTS
		}
	}
	return flag
}

// BucketFlags reduces reports to one flag per timeline hour. TS, once set
// for an hour, is never downgraded.
func BucketFlags(reports []METARReport, timeline []Epoch) []StormFlag {
	hours := make(map[Epoch]StormFlag)
	for _, r := range reports {
		f := ParseThunder(r.Raw)
		if f == FlagNone {
			continue
		}
		e := EpochOf(r.Time)
		if hours[e] == FlagTS {
			continue
		}
		hours[e] = f
	}

	flags := make([]StormFlag, len(timeline))
	for i, e := range timeline {
		flags[i] = hours[e]
	}
	return flags
}

// ThunderOutcome is the result of the annotator for one response.
type ThunderOutcome struct {
	Strategy ThunderStrategy
	Track    ThunderTrack
	Airport  string
	URL      string
	Degraded bool
}

// ThunderAnnotator chooses between the lightning feed and the METAR archives.
type ThunderAnnotator struct {
	Lightning LightningSource
	Primary   METARArchive
	Secondary METARArchive
	Airports  []Airport
	RadiusKm  float64
}

// Annotate computes evidence for timeline. Upstream failures degrade to
// empty evidence; the call itself never fails.
func (a *ThunderAnnotator) Annotate(ctx context.Context, place Place, timeline []Epoch, now time.Time) ThunderOutcome {
	strategy := ChooseStrategy(timeline, now)
	airport, _ := NearestAirport(place.Lat, place.Lon, a.airports())

	out := ThunderOutcome{Strategy: strategy, Airport: airport.ICAO}
	if strategy == StrategyRecent {
		a.recent(ctx, place, timeline, &out)
	} else {
		a.historical(ctx, airport, timeline, &out)
	}
	return out
}

func (a *ThunderAnnotator) airports() []Airport {
	if len(a.Airports) > 0 {
		return a.Airports
	}
	return Airports
}

func (a *ThunderAnnotator) recent(ctx context.Context, place Place, timeline []Epoch, out *ThunderOutcome) {
	empty := CountTrack{Source: SourceLightningFeed, Counts: make([]int, len(timeline))}
	out.Track = empty
	if a.Lightning == nil {
		out.Degraded = true
		return
	}

	strikes, url, err := a.Lightning.Strikes(ctx)
	out.URL = url
	if err != nil {
		log.Warn().Err(err).Str("source", SourceLightningFeed).Str("url", url).Msg("lightning feed unavailable")
		out.Degraded = true
		return
	}
	out.Track = CountTrack{Source: SourceLightningFeed, Counts: BucketStrikes(strikes, timeline, place, a.RadiusKm)}
}

func (a *ThunderAnnotator) historical(ctx context.Context, airport Airport, timeline []Epoch, out *ThunderOutcome) {
	out.Track = FlagTrack{Source: "none", Flags: make([]StormFlag, len(timeline))}
	if airport.ICAO == "" || len(timeline) == 0 {
		out.Degraded = true
		return
	}

	from := timeline[0].Time()
	to := timeline[len(timeline)-1].Time().Add(time.Hour)

	for _, archive := range []METARArchive{a.Primary, a.Secondary} {
		if archive == nil {
			continue
		}
		reports, url, err := archive.Reports(ctx, airport.ICAO, from, to)
		if err != nil {
			log.Warn().Err(err).Str("source", archive.Name()).Str("url", url).Str("icao", airport.ICAO).Msg("metar archive unavailable")
			continue
		}
		if len(reports) == 0 {
			log.Debug().Str("source", archive.Name()).Str("icao", airport.ICAO).Msg("metar archive returned no reports")
			continue
		}
		out.URL = url
		out.Track = FlagTrack{Source: archive.Name(), Flags: BucketFlags(reports, timeline)}
		return
	}
	out.Degraded = true
}
