package weather

// DailySummary is the per-local-day aggregate handed to the renderer.
type DailySummary struct {
	Date         string   `json:"date"`
	Hours        int      `json:"hours"`
	MeanWindKmh  *float64 `json:"mean_wind_kmh"`
	MaxGustKmh   *float64 `json:"max_gust_kmh"`
	MaxPrecipMm  *float64 `json:"max_precip_mm"`
	ThunderHours int      `json:"thunder_hours"`
}

// SummarizeDaily aggregates records by the local date in their time field.
// Records must be in timeline order.
func SummarizeDaily(records []MergedRecord) []DailySummary {
	out := make([]DailySummary, 0)
	var (
		cur     *DailySummary
		windSum float64
		windN   int
	)
	flush := func() {
		if cur == nil {
			return
		}
		if windN > 0 {
			cur.MeanWindKmh = copyFloat(round1(windSum / float64(windN)))
		}
		out = append(out, *cur)
	}

	for _, r := range records {
		if len(r.Time) < 10 {
			continue
		}
		date := r.Time[:10]
		if cur == nil || cur.Date != date {
			flush()
			cur = &DailySummary{Date: date}
			windSum, windN = 0, 0
		}
		cur.Hours++
		if r.WindKmh != nil {
			windSum += *r.WindKmh
			windN++
		}
		cur.MaxGustKmh = maxOf(cur.MaxGustKmh, r.GustKmh)
		cur.MaxPrecipMm = maxOf(cur.MaxPrecipMm, r.PrecipMm)
		if r.Thunder != nil && r.Thunder.Positive() {
			cur.ThunderHours++
		}
	}
	flush()
	return out
}

func maxOf(cur, v *float64) *float64 {
	if v == nil {
		return cur
	}
	if cur == nil || *v > *cur {
		return copyFloat(*v)
	}
	return cur
}
