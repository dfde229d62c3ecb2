package trainer

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hoopstats/propcast/internal/artifact"
	"github.com/hoopstats/propcast/internal/dataset"
	"github.com/hoopstats/propcast/internal/features"
	"github.com/hoopstats/propcast/internal/forest"
	"github.com/hoopstats/propcast/internal/models"
)

// syntheticDataset has PTS, REB and AST only; blocks, steals and threes are absent.
func syntheticDataset(n int) *models.Dataset {
	rng := rand.New(rand.NewSource(11))
	var recs []models.GameRecord
	for i := 0; i < n; i++ {
		reb := float64(rng.Intn(15))
		ast := float64(rng.Intn(12))
		pts := 8 + reb + ast + float64(rng.Intn(6))
		recs = append(recs, models.GameRecord{
			Athlete:  "Athlete",
			Matchup:  "LAL @ DEN",
			GameDate: time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Stats:    map[string]float64{"PTS": pts, "REB": reb, "AST": ast},
		})
	}
	features.ApplyLabels(recs, features.DefaultCutoffs())
	features.ApplyRolling(recs, features.DefaultRollingWindow)
	return &models.Dataset{Season: "2023-24", Columns: dataset.Columns(recs), Records: recs}
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Params.Trees = 15
	return cfg
}

func TestTrainAll_SkipsMissingCategories(t *testing.T) {
	store := artifact.NewFile(t.TempDir())
	tr := New(fastConfig(), store, zap.NewNop())

	reports, err := tr.TrainAll(context.Background(), syntheticDataset(120))
	require.NoError(t, err)

	require.Len(t, reports, 3)
	for _, c := range []models.Category{models.CategoryPoints, models.CategoryRebounds, models.CategoryAssists} {
		r, ok := reports[c]
		require.True(t, ok, "missing report for %s", c)
		require.NotNil(t, r.Accuracy)
		assert.GreaterOrEqual(t, *r.Accuracy, 0.0)
		assert.LessOrEqual(t, *r.Accuracy, 1.0)
		assert.Equal(t, 96, r.TrainRows)
		assert.Equal(t, 24, r.TestRows)
		assert.NotContains(t, r.Features, c.Column(), "target stat is never a feature")

		_, err := store.Load(context.Background(), c)
		assert.NoError(t, err)
	}

	_, err = store.Load(context.Background(), models.CategoryBlocks)
	assert.ErrorIs(t, err, models.ErrModelUnavailable)
}

func TestTrainAll_GlobalValidation(t *testing.T) {
	ds := syntheticDataset(30)
	var cols []string
	for _, c := range ds.Columns {
		if c != "REB" {
			cols = append(cols, c)
		}
	}
	ds.Columns = cols

	_, err := New(fastConfig(), artifact.NewFile(t.TempDir()), zap.NewNop()).TrainAll(context.Background(), ds)
	assert.ErrorIs(t, err, models.ErrDatasetInvalid)
	assert.Contains(t, err.Error(), "REB")
}

func TestTrainAll_Regressor(t *testing.T) {
	cfg := fastConfig()
	cfg.Kind = models.KindRegressor
	cfg.Categories = []models.Category{models.CategoryPoints}

	reports, err := New(cfg, artifact.NewFile(t.TempDir()), zap.NewNop()).TrainAll(context.Background(), syntheticDataset(150))
	require.NoError(t, err)

	r := reports[models.CategoryPoints]
	assert.Equal(t, "PTS", r.Target)
	require.NotNil(t, r.MAE)
	require.NotNil(t, r.MSE)
	require.NotNil(t, r.R2)
	require.NotNil(t, r.BaselineR2)
	assert.Nil(t, r.Accuracy)
	// points are nearly linear in rebounds and assists
	assert.Greater(t, *r.BaselineR2, 0.5)
}

func TestTrainAll_WithSearch(t *testing.T) {
	cfg := fastConfig()
	cfg.Search = true
	cfg.SearchIterations = 3
	cfg.CVFolds = 2
	cfg.Categories = []models.Category{models.CategoryRebounds}

	reports, err := New(cfg, artifact.NewFile(t.TempDir()), zap.NewNop()).TrainAll(context.Background(), syntheticDataset(60))
	require.NoError(t, err)
	r := reports[models.CategoryRebounds]
	require.NotNil(t, r.CVScore)
	assert.GreaterOrEqual(t, *r.CVScore, 0.0)
}

func TestTrainAll_TooFewRows(t *testing.T) {
	_, err := New(fastConfig(), artifact.NewFile(t.TempDir()), zap.NewNop()).TrainAll(context.Background(), syntheticDataset(5))
	assert.ErrorIs(t, err, models.ErrDatasetInvalid)
}

func TestFeatures(t *testing.T) {
	ds := syntheticDataset(10)
	assert.Equal(t, []string{"REB", "AST", "ROLLING_PTS_AVG"}, Features(ds, models.CategoryPoints))
	assert.Equal(t, []string{"PTS", "REB", "AST"}, Features(ds, models.CategoryBlocks))
}

func TestSplit_DeterministicAndSized(t *testing.T) {
	X := make([][]float64, 10)
	y := make([]float64, 10)
	for i := range X {
		X[i] = []float64{float64(i)}
		y[i] = float64(i)
	}
	trX, trY, teX, teY := split(X, y, 0.2, 42)
	assert.Len(t, trX, 8)
	assert.Len(t, teX, 2)
	assert.Len(t, trY, 8)
	assert.Len(t, teY, 2)

	_, _, teX2, _ := split(X, y, 0.2, 42)
	assert.Equal(t, teX, teX2)
}

func TestSampleParams(t *testing.T) {
	got := sampleParams(rand.New(rand.NewSource(1)), 5)
	require.Len(t, got, 5)
	assert.Equal(t, forest.DefaultParams(), got[0])
	seen := map[models.Hyperparameters]bool{}
	for _, p := range got {
		assert.False(t, seen[p], "duplicate candidate %+v", p)
		seen[p] = true
	}
}

func TestMetrics(t *testing.T) {
	want := []float64{1, 0, 1, 1}
	got := []float64{1, 1, 1, 0}
	assert.Equal(t, 0.5, accuracy(want, got))

	assert.InDelta(t, 0.5, meanAbsoluteError([]float64{1, 2}, []float64{1.5, 2.5}), 1e-12)
	assert.InDelta(t, 0.25, meanSquaredError([]float64{1, 2}, []float64{1.5, 2.5}), 1e-12)
	assert.InDelta(t, 1.0, rSquared([]float64{1, 2, 3}, []float64{1, 2, 3}), 1e-12)
	assert.Equal(t, 0.0, rSquared([]float64{2, 2}, []float64{1, 3}))
}
