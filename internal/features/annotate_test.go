package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoopstats/propcast/internal/models"
)

func row(date, matchup string, stats map[string]float64) models.RawRow {
	r := models.RawRow{
		models.ColGameDate: models.StringCell(date),
		models.ColMatchup:  models.StringCell(matchup),
	}
	for k, v := range stats {
		r[k] = models.NumberCell(v)
	}
	return r
}

func TestAnnotate(t *testing.T) {
	athlete := models.Athlete{ID: 2544, Name: "LeBron James"}
	rows := []models.RawRow{
		// provider order is newest first
		row("NOV 03, 2023", "LAL @ DEN", map[string]float64{"PTS": 30, "REB": 8, "AST": 9}),
		row("OCT 30, 2023", "LAL vs. BOS", map[string]float64{"PTS": 18, "REB": 12, "AST": 4}),
	}

	got := Annotate(athlete, rows, DefaultOptions())
	require.Len(t, got.Records, 2)

	first := got.Records[0]
	assert.Equal(t, time.Date(2023, 10, 30, 0, 0, 0, 0, time.UTC), first.GameDate)
	assert.Equal(t, "LAL", first.Team)
	assert.Equal(t, "BOS", first.Opponent)
	assert.True(t, first.Home)
	assert.Equal(t, "LeBron James", first.Athlete)
	assert.Equal(t, 0, first.Labels["POINTS_THRESHOLD"])
	assert.Equal(t, 1, first.Labels["REBOUNDS_THRESHOLD"])
	assert.InDelta(t, 18.0, first.Rolling["ROLLING_PTS_AVG"], 1e-9)

	second := got.Records[1]
	assert.False(t, second.Home)
	assert.Equal(t, "AWAY", second.HomeAway())
	assert.Equal(t, 1, second.Labels["POINTS_THRESHOLD"])
	assert.InDelta(t, 24.0, second.Rolling["ROLLING_PTS_AVG"], 1e-9)

	// BLK, STL and FG3M were never reported
	assert.Len(t, got.Warnings, 3)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestAnnotate_SkipsMalformedRows(t *testing.T) {
	athlete := models.Athlete{ID: 1, Name: "A"}
	rows := []models.RawRow{
		row("not a date", "LAL @ DEN", map[string]float64{"PTS": 1}),
		row("2023-11-01", "LAL DEN", map[string]float64{"PTS": 1}),
		row("2023-11-02", "LAL @ DEN", map[string]float64{"PTS": -3}),
		row("2023-11-03", "LAL @ DEN", map[string]float64{"PTS": 10, "BLK": 2, "STL": 1, "FG3M": 2, "REB": 1, "AST": 1}),
	}

	got := Annotate(athlete, rows, DefaultOptions())
	require.Len(t, got.Records, 1)
	assert.Len(t, got.Warnings, 3)
	assert.Equal(t, 1, got.Records[0].Labels["BLOCKS_THRESHOLD"])
}

func TestRecordID_Stable(t *testing.T) {
	d := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, RecordID(1, "A", d, "LAL @ DEN"), RecordID(1, "A", d, "LAL @ DEN"))
	assert.NotEqual(t, RecordID(1, "A", d, "LAL @ DEN"), RecordID(1, "A", d, "LAL vs. DEN"))
}
