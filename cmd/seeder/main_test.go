package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoopstats/propcast/internal/dataset"
	"github.com/hoopstats/propcast/internal/models"
)

func TestGenerate(t *testing.T) {
	ds, warnings := Generate(Options{Season: "2023-24", Teams: []string{"LAL", "BOS", "DEN"}, PerTeam: 2, Games: 12, Seed: 7})
	assert.Empty(t, warnings)
	assert.Len(t, ds.Athletes(), 6)
	assert.Len(t, ds.Records, 6*12)

	for _, c := range models.AllCategories {
		assert.True(t, ds.HasColumn(c.LabelColumn()), c.LabelColumn())
		assert.True(t, ds.HasColumn(c.RollingColumn()), c.RollingColumn())
	}
	for _, r := range ds.Records {
		assert.NotEqual(t, r.Team, r.Opponent)
		for col, v := range r.Stats {
			assert.GreaterOrEqual(t, v, 0.0, col)
		}
	}
	assert.Equal(t, time.October, ds.Records[0].GameDate.Month())
}

func TestGenerate_Deterministic(t *testing.T) {
	opts := Options{Season: "2023-24", Teams: []string{"LAL", "BOS"}, PerTeam: 1, Games: 5, Seed: 3}
	a, _ := Generate(opts)
	b, _ := Generate(opts)
	assert.Equal(t, a.Records, b.Records)
}

func TestGenerate_RoundTripsThroughCSV(t *testing.T) {
	ds, _ := Generate(Options{Season: "2023-24", Teams: []string{"LAL", "BOS"}, PerTeam: 2, Games: 6, Seed: 1})
	path := filepath.Join(t.TempDir(), "player_data.csv")
	require.NoError(t, dataset.WriteFile(path, ds))

	got, err := dataset.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, got.Records, len(ds.Records))
}
