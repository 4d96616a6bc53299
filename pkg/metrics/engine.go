package metrics

import (
	"math"
	"sort"
	"time"

	"github.com/radmetrics/platform/pkg/common/models"
)

// Options tune secondary assumptions of the engine. Zero values fall back
// to the documented defaults.
type Options struct {
	// CaseMixTopN bounds the case-mix ranking (default 5).
	CaseMixTopN int
	// WorkdayHours is the assumed shift length behind RVUPerHour (default 8).
	WorkdayHours float64
	// AnnualWorkdays is the assumed working-day count behind the annual
	// projection (default 250). The projection is an approximation, not a
	// forecast.
	AnnualWorkdays int
}

type DailyPoint struct {
	Date  time.Time `json:"date"`
	RVU   float64   `json:"rvu"`
	MA7   float64   `json:"ma7"`
	Cases int       `json:"cases"`
}

type HourlyPoint struct {
	Hour      int     `json:"hour"`
	TotalRVU  float64 `json:"total_rvu"`
	AvgPerDay float64 `json:"avg_per_day"`
	Cases     int     `json:"cases"`
}

type HeatmapCell struct {
	Weekday  time.Weekday `json:"weekday"`
	Hour     int          `json:"hour"`
	TotalRVU float64      `json:"total_rvu"`
	Cases    int          `json:"cases"`
}

type CaseMixEntry struct {
	Label      string  `json:"label"`
	Modality   string  `json:"modality"`
	BodyPart   string  `json:"body_part"`
	TotalRVU   float64 `json:"total_rvu"`
	Cases      int     `json:"cases"`
	RVUPerCase float64 `json:"rvu_per_case"`
}

type ModalityShare struct {
	Modality string  `json:"modality"`
	TotalRVU float64 `json:"total_rvu"`
	Cases    int     `json:"cases"`
}

// GoalSuggestions are percentile-based daily targets drawn from the user's
// own daily-total distribution.
type GoalSuggestions struct {
	Conservative float64 `json:"conservative"` // P50
	Moderate     float64 `json:"moderate"`     // P65
	Aggressive   float64 `json:"aggressive"`   // P80
	Stretch      float64 `json:"stretch"`      // P90
}

// Snapshot is a fully derived view over one active record set. It is never
// persisted as a source of truth; recompute it on every relevant change.
type Snapshot struct {
	TotalRVU         float64          `json:"total_rvu"`
	Cases            int              `json:"cases"`
	RVUPerCase       float64          `json:"rvu_per_case"`
	DaysWorked       int              `json:"days_worked"`
	AvgCasesPerDay   float64          `json:"avg_cases_per_day"`
	AvgRVUPerDay     float64          `json:"avg_rvu_per_day"`
	WorkEfficiency   float64          `json:"work_efficiency"`
	AnnualProjection float64          `json:"annual_projection"`
	RVUPerHour       float64          `json:"rvu_per_hour"`
	Goal             float64          `json:"goal"`
	TargetHitRate    float64          `json:"target_hit_rate"`
	TrendSlope       float64          `json:"trend_slope"`
	BestDay          *DailyPoint      `json:"best_day,omitempty"`
	PeakHour         *int             `json:"peak_hour,omitempty"`
	PeakWeekday      *time.Weekday    `json:"peak_weekday,omitempty"`
	Daily            []DailyPoint     `json:"daily"`
	Hourly           []HourlyPoint    `json:"hourly"`
	Heatmap          []HeatmapCell    `json:"heatmap"`
	CaseMix          []CaseMixEntry   `json:"case_mix"`
	ModalityMix      []ModalityShare  `json:"modality_mix"`
	GoalSuggestions  *GoalSuggestions `json:"goal_suggestions,omitempty"`
	ComputedAt       time.Time        `json:"computed_at"`
}

// Compute derives all statistics from the active record set. Pure: no
// caching, no shared state. An empty set yields nil so consumers render an
// empty state instead of dividing by zero.
func Compute(records []models.CanonicalRecord, dailyGoal float64, opts Options) *Snapshot {
	if len(records) == 0 {
		return nil
	}
	if opts.CaseMixTopN <= 0 {
		opts.CaseMixTopN = 5
	}
	if opts.WorkdayHours <= 0 {
		opts.WorkdayHours = 8
	}
	if opts.AnnualWorkdays <= 0 {
		opts.AnnualWorkdays = 250
	}

	snapshot := &Snapshot{
		Cases:      len(records),
		Goal:       dailyGoal,
		ComputedAt: time.Now().UTC(),
	}

	for _, rec := range records {
		snapshot.TotalRVU += rec.WRVUEstimate
	}
	snapshot.RVUPerCase = snapshot.TotalRVU / float64(len(records))

	snapshot.Daily = dailySeries(records)
	snapshot.DaysWorked = len(snapshot.Daily)
	snapshot.AvgCasesPerDay = float64(snapshot.Cases) / float64(snapshot.DaysWorked)
	snapshot.AvgRVUPerDay = snapshot.TotalRVU / float64(snapshot.DaysWorked)
	snapshot.AnnualProjection = snapshot.AvgRVUPerDay * float64(opts.AnnualWorkdays)
	snapshot.RVUPerHour = snapshot.AvgRVUPerDay / opts.WorkdayHours

	first := snapshot.Daily[0].Date
	last := snapshot.Daily[len(snapshot.Daily)-1].Date
	spanDays := calendarDaysBetween(first, last) + 1
	if spanDays > 0 {
		snapshot.WorkEfficiency = float64(snapshot.DaysWorked) / float64(spanDays) * 100
	}

	hitDays := 0
	best := 0
	for i, day := range snapshot.Daily {
		if day.RVU >= dailyGoal {
			hitDays++
		}
		if day.RVU > snapshot.Daily[best].RVU {
			best = i
		}
	}
	snapshot.TargetHitRate = float64(hitDays) / float64(snapshot.DaysWorked) * 100
	bestDay := snapshot.Daily[best]
	snapshot.BestDay = &bestDay

	snapshot.TrendSlope = trendSlope(snapshot.Daily)
	snapshot.Hourly, snapshot.PeakHour = hourlySeries(records, snapshot.DaysWorked)
	snapshot.PeakWeekday = peakWeekday(records, snapshot.DaysWorked)
	snapshot.Heatmap = heatmap(records)
	snapshot.CaseMix = caseMix(records, opts.CaseMixTopN)
	snapshot.ModalityMix = modalityMix(records)
	snapshot.GoalSuggestions = suggestGoals(snapshot.Daily)

	return snapshot
}

func dateOf(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
}

// calendarDaysBetween counts whole days between two calendar dates. The
// dates are re-anchored in UTC so DST transitions inside the range cannot
// stretch or shrink the wall-clock difference.
func calendarDaysBetween(a, b time.Time) int {
	au := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bu := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au) / (24 * time.Hour))
}

// dailySeries groups records by calendar date and attaches the trailing
// 7-day moving average. The window at the start of the series is shorter
// than 7, never padded with zeros.
func dailySeries(records []models.CanonicalRecord) []DailyPoint {
	totals := make(map[time.Time]*DailyPoint)
	for _, rec := range records {
		date := dateOf(rec.DictationDatetime)
		point, ok := totals[date]
		if !ok {
			point = &DailyPoint{Date: date}
			totals[date] = point
		}
		point.RVU += rec.WRVUEstimate
		point.Cases++
	}

	series := make([]DailyPoint, 0, len(totals))
	for _, point := range totals {
		series = append(series, *point)
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })

	for i := range series {
		start := i - 6
		if start < 0 {
			start = 0
		}
		sum := 0.0
		for j := start; j <= i; j++ {
			sum += series[j].RVU
		}
		series[i].MA7 = sum / float64(i-start+1)
	}
	return series
}

// trendSlope fits daily totals against day index by ordinary least
// squares. Fewer than two distinct days yields slope 0.
func trendSlope(daily []DailyPoint) float64 {
	n := len(daily)
	if n < 2 {
		return 0
	}

	meanX := float64(n-1) / 2
	meanY := 0.0
	for _, day := range daily {
		meanY += day.RVU
	}
	meanY /= float64(n)

	var num, den float64
	for i, day := range daily {
		dx := float64(i) - meanX
		num += dx * (day.RVU - meanY)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// hourlySeries ranks hours by average RVU per worked day rather than raw
// total, so uneven day counts across hours don't skew the peak.
func hourlySeries(records []models.CanonicalRecord, daysWorked int) ([]HourlyPoint, *int) {
	totals := make(map[int]*HourlyPoint)
	for _, rec := range records {
		hour := rec.DictationDatetime.Hour()
		point, ok := totals[hour]
		if !ok {
			point = &HourlyPoint{Hour: hour}
			totals[hour] = point
		}
		point.TotalRVU += rec.WRVUEstimate
		point.Cases++
	}

	series := make([]HourlyPoint, 0, len(totals))
	for _, point := range totals {
		point.AvgPerDay = point.TotalRVU / float64(daysWorked)
		series = append(series, *point)
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Hour < series[j].Hour })

	if len(series) == 0 {
		return series, nil
	}
	peak := series[0].Hour
	peakAvg := series[0].AvgPerDay
	for _, point := range series[1:] {
		if point.AvgPerDay > peakAvg {
			peak = point.Hour
			peakAvg = point.AvgPerDay
		}
	}
	return series, &peak
}

func peakWeekday(records []models.CanonicalRecord, daysWorked int) *time.Weekday {
	totals := make(map[time.Weekday]float64)
	for _, rec := range records {
		totals[rec.DictationDatetime.Weekday()] += rec.WRVUEstimate
	}
	if len(totals) == 0 {
		return nil
	}

	var peak time.Weekday
	peakAvg := math.Inf(-1)
	for day := time.Sunday; day <= time.Saturday; day++ {
		total, ok := totals[day]
		if !ok {
			continue
		}
		avg := total / float64(daysWorked)
		if avg > peakAvg {
			peak = day
			peakAvg = avg
		}
	}
	return &peak
}

func heatmap(records []models.CanonicalRecord) []HeatmapCell {
	type key struct {
		weekday time.Weekday
		hour    int
	}
	cells := make(map[key]*HeatmapCell)
	for _, rec := range records {
		k := key{weekday: rec.DictationDatetime.Weekday(), hour: rec.DictationDatetime.Hour()}
		cell, ok := cells[k]
		if !ok {
			cell = &HeatmapCell{Weekday: k.weekday, Hour: k.hour}
			cells[k] = cell
		}
		cell.TotalRVU += rec.WRVUEstimate
		cell.Cases++
	}

	out := make([]HeatmapCell, 0, len(cells))
	for _, cell := range cells {
		out = append(out, *cell)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weekday != out[j].Weekday {
			return out[i].Weekday < out[j].Weekday
		}
		return out[i].Hour < out[j].Hour
	})
	return out
}

func caseMix(records []models.CanonicalRecord, topN int) []CaseMixEntry {
	entries := make(map[string]*CaseMixEntry)
	for _, rec := range records {
		label := rec.Modality + " - " + rec.BodyPart
		entry, ok := entries[label]
		if !ok {
			entry = &CaseMixEntry{Label: label, Modality: rec.Modality, BodyPart: rec.BodyPart}
			entries[label] = entry
		}
		entry.TotalRVU += rec.WRVUEstimate
		entry.Cases++
	}

	mix := make([]CaseMixEntry, 0, len(entries))
	for _, entry := range entries {
		entry.RVUPerCase = entry.TotalRVU / float64(entry.Cases)
		mix = append(mix, *entry)
	}
	sort.Slice(mix, func(i, j int) bool {
		if mix[i].TotalRVU != mix[j].TotalRVU {
			return mix[i].TotalRVU > mix[j].TotalRVU
		}
		return mix[i].Label < mix[j].Label
	})
	if len(mix) > topN {
		mix = mix[:topN]
	}
	return mix
}

func modalityMix(records []models.CanonicalRecord) []ModalityShare {
	shares := make(map[string]*ModalityShare)
	for _, rec := range records {
		share, ok := shares[rec.Modality]
		if !ok {
			share = &ModalityShare{Modality: rec.Modality}
			shares[rec.Modality] = share
		}
		share.TotalRVU += rec.WRVUEstimate
		share.Cases++
	}

	mix := make([]ModalityShare, 0, len(shares))
	for _, share := range shares {
		mix = append(mix, *share)
	}
	sort.Slice(mix, func(i, j int) bool {
		if mix[i].TotalRVU != mix[j].TotalRVU {
			return mix[i].TotalRVU > mix[j].TotalRVU
		}
		return mix[i].Modality < mix[j].Modality
	})
	return mix
}

// suggestGoals derives daily targets from the user's own daily-total
// distribution. Needs at least 5 distinct days; percentiles use linear
// interpolation between order statistics, rounded to the nearest 0.5.
func suggestGoals(daily []DailyPoint) *GoalSuggestions {
	if len(daily) < 5 {
		return nil
	}
	totals := make([]float64, len(daily))
	for i, day := range daily {
		totals[i] = day.RVU
	}
	sort.Float64s(totals)

	return &GoalSuggestions{
		Conservative: roundToHalf(percentile(totals, 50)),
		Moderate:     roundToHalf(percentile(totals, 65)),
		Aggressive:   roundToHalf(percentile(totals, 80)),
		Stretch:      roundToHalf(percentile(totals, 90)),
	}
}

// percentile interpolates linearly between order statistics of a sorted
// slice (not nearest-rank).
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

func roundToHalf(v float64) float64 {
	return math.Round(v*2) / 2
}
