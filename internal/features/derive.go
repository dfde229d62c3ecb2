// Package features derives threshold labels and rolling averages from box scores
// and turns upstream game-log rows into annotated GameRecords.
package features

import (
	"time"

	"github.com/hoopstats/propcast/internal/models"
)

// DefaultRollingWindow is the trailing window N used for rolling averages.
const DefaultRollingWindow = 5

// ThresholdLabel is 1 iff value >= cutoff. The boundary is inclusive.
func ThresholdLabel(value, cutoff float64) int {
	if value >= cutoff {
		return 1
	}
	return 0
}

// RollingMeans returns, for every position k, the mean of values[max(0,k-window+1) .. k].
// Early positions average only the games available so far; nothing is zero-padded
// and no later value is ever read.
func RollingMeans(values []float64, window int) []float64 {
	if window <= 0 {
		window = DefaultRollingWindow
	}
	out := make([]float64, len(values))
	for k := range values {
		start := k - window + 1
		if start < 0 {
			start = 0
		}
		var sum float64
		for _, v := range values[start : k+1] {
			sum += v
		}
		out[k] = sum / float64(k+1-start)
	}
	return out
}

// DefaultCutoffs returns the per-category label cutoffs.
func DefaultCutoffs() map[models.Category]float64 {
	out := make(map[models.Category]float64, len(models.AllCategories))
	for _, c := range models.AllCategories {
		out[c] = c.DefaultCutoff()
	}
	return out
}

// ApplyLabels attaches a ThresholdLabel column per category to records that report the stat.
// It returns the categories whose raw column was absent from every record.
func ApplyLabels(records []models.GameRecord, cutoffs map[models.Category]float64) []models.Category {
	var missing []models.Category
	for _, c := range models.AllCategories {
		cutoff, ok := cutoffs[c]
		if !ok {
			continue
		}
		found := false
		for i := range records {
			v, ok := records[i].CategoryValue(c)
			if !ok {
				continue
			}
			found = true
			if records[i].Labels == nil {
				records[i].Labels = make(map[string]int)
			}
			records[i].Labels[c.LabelColumn()] = ThresholdLabel(v, cutoff)
		}
		if !found {
			missing = append(missing, c)
		}
	}
	return missing
}

// ApplyRolling attaches a RollingAverage column per category. Records must already be
// in chronological order. Records without the stat are skipped and do not count
// towards the window.
func ApplyRolling(records []models.GameRecord, window int) {
	for _, c := range models.AllCategories {
		var idx []int
		var vals []float64
		for i := range records {
			if v, ok := records[i].CategoryValue(c); ok {
				idx = append(idx, i)
				vals = append(vals, v)
			}
		}
		if len(vals) == 0 {
			continue
		}
		means := RollingMeans(vals, window)
		for j, i := range idx {
			if records[i].Rolling == nil {
				records[i].Rolling = make(map[string]float64)
			}
			records[i].Rolling[c.RollingColumn()] = means[j]
		}
	}
}

// FilterByDateRange keeps records within [start, end]. Zero bounds are open.
func FilterByDateRange(records []models.GameRecord, start, end time.Time) []models.GameRecord {
	var out []models.GameRecord
	for _, r := range records {
		if !start.IsZero() && r.GameDate.Before(start) {
			continue
		}
		if !end.IsZero() && r.GameDate.After(end) {
			continue
		}
		out = append(out, r)
	}
	return out
}
