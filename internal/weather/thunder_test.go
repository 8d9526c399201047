package weather

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLightning struct {
	strikes []Strike
	err     error
	calls   int
}

func (f *fakeLightning) Strikes(context.Context) ([]Strike, string, error) {
	f.calls++
	return f.strikes, "https://lightning.test/feed", f.err
}

type fakeArchive struct {
	name    string
	reports []METARReport
	err     error
	calls   int
	icao    string
}

func (f *fakeArchive) Name() string { return f.name }

func (f *fakeArchive) Reports(_ context.Context, icao string, _, _ time.Time) ([]METARReport, string, error) {
	f.calls++
	f.icao = icao
	return f.reports, "https://" + f.name + ".test/metar", f.err
}

func TestChooseStrategyBoundary(t *testing.T) {
	last := hourAt(10)
	timeline := []Epoch{hourAt(9), last}
	intervalEnd := last.Time().Add(time.Hour - time.Millisecond)

	assert.Equal(t, StrategyRecent, ChooseStrategy(timeline, intervalEnd.Add(RecentWindow)))
	assert.Equal(t, StrategyHistorical, ChooseStrategy(timeline, intervalEnd.Add(RecentWindow+time.Millisecond)))
	assert.Equal(t, StrategyRecent, ChooseStrategy(timeline, intervalEnd.Add(-48*time.Hour)))
	assert.Equal(t, StrategyHistorical, ChooseStrategy(nil, time.Now()))
}

func TestBucketStrikes(t *testing.T) {
	origin := Place{Lat: 41.15, Lon: -8.61}
	timeline := []Epoch{hourAt(0), hourAt(1), hourAt(2)}
	at := func(h, m int) time.Time { return time.Date(2025, 5, 2, h, m, 0, 0, time.UTC) }

	strikes := []Strike{
		{Time: at(0, 5), Lat: f64(41.16), Lon: f64(-8.62)},
		{Time: at(0, 55)},
		{Time: at(1, 10), Count: f64(2.9)},
		{Time: at(1, 20), Count: f64(-5)},
		{Time: at(2, 0), Lat: f64(38.7), Lon: f64(-9.1)}, // Lisbon, outside 50 km
		{Time: at(5, 0)},
	}

	assert.Equal(t, []int{2, 0, 0}, BucketStrikes(strikes, timeline, origin, 50))
	assert.Equal(t, []int{2, 0, 1}, BucketStrikes(strikes, timeline, origin, 0))
	assert.Equal(t, []int{0, 0, 0}, BucketStrikes(nil, timeline, origin, 50))
}

func TestParseThunder(t *testing.T) {
	cases := []struct {
		raw  string
		want StormFlag
	}{
		{"METAR LPPR 021200Z 22015KT 9999 TS SCT020CB 18/14 Q1009", FlagTS},
		{"LPPR 021200Z 22015KT 4000 -TSRA BKN015CB 17/15 Q1008", FlagTS},
		{"LPPR 021200Z 22015KT 2000 +TSRAGR BKN010CB 15/14 Q1007=", FlagTS},
		{"LPPR 021200Z 22015KT 9999 VCTS FEW020CB 20/12 Q1012", FlagVCTS},
		{"LPPR 021200Z 22015KT 9999 VCTS -TSRA FEW020CB 20/12 Q1012", FlagTS},
		{"LPPR 021200Z 22015KT 9999 FEW030 20/12 Q1015 RMK TS OHD", FlagNone},
		{"LPPR 021200Z 22015KT 9999 FEW030 20/12 Q1015 TEMPO TSRA", FlagNone},
		{"LPPR 021200Z 22015KT 9999 FEW030 20/12 Q1015 BECMG VCTS", FlagNone},
		{"LPPR 021200Z 22015KT 9999 FEW030 20/12 Q1015 NOSIG", FlagNone},
		{"lppr 021200z 22015kt 9999 -tsra", FlagTS},
		{"", FlagNone},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ParseThunder(tc.raw), tc.raw)
	}
}

func TestBucketFlagsNeverDowngradesTS(t *testing.T) {
	timeline := []Epoch{hourAt(0), hourAt(1), hourAt(2)}
	at := func(h, m int) time.Time { return time.Date(2025, 5, 2, h, m, 0, 0, time.UTC) }

	reports := []METARReport{
		{Time: at(0, 0), Raw: "LPPR 020000Z 9999 -TSRA"},
		{Time: at(0, 30), Raw: "LPPR 020030Z 9999 VCTS"},
		{Time: at(0, 45), Raw: "LPPR 020045Z 9999 NSW"},
		{Time: at(1, 0), Raw: "LPPR 020100Z 9999 VCTS"},
		{Time: at(1, 30), Raw: "LPPR 020130Z 9999 TS"},
		{Time: at(2, 0), Raw: "LPPR 020200Z 9999 NSC"},
	}
	assert.Equal(t, []StormFlag{FlagTS, FlagTS, FlagNone}, BucketFlags(reports, timeline))
}

func TestThunderEvidenceJSON(t *testing.T) {
	b, err := json.Marshal(StrikeCount{Value: 3, Source: SourceLightningFeed})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"count","value":3,"source":"lightning-feed"}`, string(b))

	b, err = json.Marshal(FlagEvidence{Value: FlagVCTS, Source: "iem"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"flag","value":"VCTS","source":"iem"}`, string(b))

	b, err = json.Marshal(FlagEvidence{Source: "ogimet"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"flag","value":null,"source":"ogimet"}`, string(b))
}

func TestAnnotateUsesOneTrack(t *testing.T) {
	recs := make([]MergedRecord, 3)
	Annotate(recs, FlagTrack{Source: "iem", Flags: []StormFlag{FlagNone, FlagTS, FlagVCTS}})
	for _, r := range recs {
		require.NotNil(t, r.Thunder)
		assert.Equal(t, ThunderFlag, r.Thunder.Kind())
	}
	assert.False(t, recs[0].Thunder.Positive())
	assert.True(t, recs[1].Thunder.Positive())
}

func TestThunderAnnotatorRecent(t *testing.T) {
	timeline := []Epoch{hourAt(0), hourAt(1)}
	now := hourAt(12).Time()
	porto := Place{Name: "Porto", Lat: 41.1496, Lon: -8.6109}

	lightning := &fakeLightning{strikes: []Strike{{Time: hourAt(1).Time(), Count: f64(4)}}}
	archive := &fakeArchive{name: "iem"}
	a := &ThunderAnnotator{Lightning: lightning, Primary: archive, RadiusKm: 50}

	out := a.Annotate(context.Background(), porto, timeline, now)
	assert.Equal(t, StrategyRecent, out.Strategy)
	assert.False(t, out.Degraded)
	assert.Equal(t, "LPPR", out.Airport)
	assert.Equal(t, "https://lightning.test/feed", out.URL)
	assert.Equal(t, CountTrack{Source: SourceLightningFeed, Counts: []int{0, 4}}, out.Track)
	assert.Zero(t, archive.calls)

	lightning.err = errors.New("feed down")
	out = a.Annotate(context.Background(), porto, timeline, now)
	assert.True(t, out.Degraded)
	assert.Equal(t, CountTrack{Source: SourceLightningFeed, Counts: []int{0, 0}}, out.Track)

	out = (&ThunderAnnotator{}).Annotate(context.Background(), porto, timeline, now)
	assert.True(t, out.Degraded)
	assert.Equal(t, 2, out.Track.Len())
}

func TestThunderAnnotatorHistoricalFallsBackToSecondary(t *testing.T) {
	timeline := []Epoch{hourAt(0), hourAt(1)}
	now := hourAt(0).Time().Add(30 * 24 * time.Hour)
	faro := Place{Name: "Faro", Lat: 37.0194, Lon: -7.9322}

	primary := &fakeArchive{name: "iem", err: errors.New("timeout")}
	secondary := &fakeArchive{name: "ogimet", reports: []METARReport{
		{Time: hourAt(1).Time(), Raw: "LPFR 020100Z 9999 VCTS"},
	}}
	lightning := &fakeLightning{}
	a := &ThunderAnnotator{Lightning: lightning, Primary: primary, Secondary: secondary}

	out := a.Annotate(context.Background(), faro, timeline, now)
	assert.Equal(t, StrategyHistorical, out.Strategy)
	assert.Equal(t, "LPFR", out.Airport)
	assert.Equal(t, "LPFR", secondary.icao)
	assert.Equal(t, FlagTrack{Source: "ogimet", Flags: []StormFlag{FlagNone, FlagVCTS}}, out.Track)
	assert.Equal(t, "https://ogimet.test/metar", out.URL)
	assert.False(t, out.Degraded)
	assert.Zero(t, lightning.calls)

	secondary.reports = nil
	out = a.Annotate(context.Background(), faro, timeline, now)
	assert.True(t, out.Degraded)
	assert.Equal(t, FlagTrack{Source: "none", Flags: []StormFlag{FlagNone, FlagNone}}, out.Track)
}

func TestNearestAirport(t *testing.T) {
	a, ok := NearestAirport(41.1496, -8.6109, Airports)
	require.True(t, ok)
	assert.Equal(t, "LPPR", a.ICAO)

	a, ok = NearestAirport(38.72, -9.14, Airports)
	require.True(t, ok)
	assert.Equal(t, "LPPT", a.ICAO)

	_, ok = NearestAirport(0, 0, nil)
	assert.False(t, ok)
}
