package weather

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeDaily(t *testing.T) {
	records := []MergedRecord{
		{Time: "2025-05-02T00:00:00+01:00", WindKmh: f64(10), GustKmh: f64(20), PrecipMm: f64(0.1), Thunder: StrikeCount{Value: 0}},
		{Time: "2025-05-02T01:00:00+01:00", WindKmh: f64(15), Thunder: StrikeCount{Value: 2}},
		{Time: "2025-05-02T02:00:00+01:00", GustKmh: f64(35.5), PrecipMm: f64(1.2)},
		{Time: "2025-05-03T00:00:00+01:00", Thunder: FlagEvidence{Value: FlagVCTS}},
		{Time: "2025-05-03T01:00:00+01:00"},
	}

	days := SummarizeDaily(records)
	require.Len(t, days, 2)

	assert.Equal(t, "2025-05-02", days[0].Date)
	assert.Equal(t, 3, days[0].Hours)
	assert.Equal(t, 12.5, *days[0].MeanWindKmh)
	assert.Equal(t, 35.5, *days[0].MaxGustKmh)
	assert.Equal(t, 1.2, *days[0].MaxPrecipMm)
	assert.Equal(t, 1, days[0].ThunderHours)

	assert.Equal(t, "2025-05-03", days[1].Date)
	assert.Equal(t, 2, days[1].Hours)
	assert.Nil(t, days[1].MeanWindKmh)
	assert.Nil(t, days[1].MaxGustKmh)
	assert.Nil(t, days[1].MaxPrecipMm)
	assert.Equal(t, 1, days[1].ThunderHours)

	assert.Empty(t, SummarizeDaily(nil))
}
