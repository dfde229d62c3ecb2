package logic

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hoopstats/propcast/internal/artifact"
	"github.com/hoopstats/propcast/internal/forest"
	"github.com/hoopstats/propcast/internal/models"
	"github.com/hoopstats/propcast/internal/store"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func game(athlete, team, matchup string, d int, pts, reb, ast float64) models.GameRecord {
	return models.GameRecord{
		Athlete:  athlete,
		Team:     team,
		Matchup:  matchup,
		GameDate: day(d),
		Stats:    map[string]float64{"PTS": pts, "REB": reb, "AST": ast},
	}
}

func ptr(f float64) *float64 { return &f }

// constantModel always answers p for any input.
func constantModel(c models.Category, p float64) *artifact.Model {
	return &artifact.Model{
		Category: c,
		Kind:     models.KindClassifier,
		Features: []string{"REB"},
		Cutoff:   c.DefaultCutoff(),
		Forest: &forest.Forest{
			Task:     forest.Classification,
			Features: 1,
			Trees:    []forest.Tree{{Nodes: []forest.Node{{Left: -1, Right: -1, Value: p}}}},
		},
	}
}

func allModels() *artifact.Registry {
	var ms []*artifact.Model
	for _, c := range models.AllCategories {
		ms = append(ms, constantModel(c, 0.75))
	}
	return artifact.NewRegistry(ms...)
}

type failingStore struct {
	store.FeatureStore
	err error
}

func (f failingStore) GetRecords(ctx context.Context, athlete string) ([]models.GameRecord, error) {
	return nil, f.err
}

func TestPredict_TwoOfThree(t *testing.T) {
	fs := store.NewMemory([]models.GameRecord{
		game("Athlete X", "LAL", "LAL vs. BOS", 1, 22, 5, 5),
		game("Athlete X", "LAL", "LAL @ BOS", 2, 18, 5, 5),
		game("Athlete X", "LAL", "LAL vs. BOS", 3, 25, 5, 5),
	})
	svc := NewPredictionService(fs, allModels(), zap.NewNop())

	res, err := svc.Predict(context.Background(), models.PredictRequest{
		Athlete:   "Athlete X",
		Opponent:  "BOS",
		Category:  models.CategoryPoints,
		Threshold: ptr(20),
	})
	require.NoError(t, err)
	assert.Equal(t, "66.67%", res.Likelihood)
	assert.Equal(t, 66.67, res.LikelihoodValue)
	assert.Equal(t, 3, res.GamesConsidered)
	assert.Equal(t, 2, res.GamesMet)
	assert.False(t, res.DynamicThreshold)
	assert.Equal(t, "store", res.Source)
	require.NotNil(t, res.ModelProbability)
	assert.InDelta(t, 0.75, *res.ModelProbability, 1e-12)

	require.Len(t, res.RecentGames, 3)
	assert.Equal(t, day(3), res.RecentGames[0].GameDate, "recent games newest first")
	assert.Len(t, res.Games, 3)
}

func TestPredict_RowWithoutStatCountsAgainst(t *testing.T) {
	partial := game("Athlete X", "LAL", "LAL vs. BOS", 4, 0, 5, 5)
	delete(partial.Stats, "PTS")
	fs := store.NewMemory([]models.GameRecord{
		game("Athlete X", "LAL", "LAL vs. BOS", 1, 22, 5, 5),
		game("Athlete X", "LAL", "LAL @ BOS", 2, 18, 5, 5),
		game("Athlete X", "LAL", "LAL vs. BOS", 3, 25, 5, 5),
		partial,
	})
	svc := NewPredictionService(fs, allModels(), zap.NewNop())

	res, err := svc.Predict(context.Background(), models.PredictRequest{
		Athlete:   "Athlete X",
		Opponent:  "BOS",
		Category:  models.CategoryPoints,
		Threshold: ptr(20),
	})
	require.NoError(t, err)
	assert.Equal(t, 4, res.GamesConsidered)
	assert.Equal(t, 2, res.GamesMet)
	assert.Equal(t, "50.00%", res.Likelihood)
}

func TestPredict_Table(t *testing.T) {
	// ten games against DEN and MIA alternating, points 10..28
	var recs []models.GameRecord
	for i := 0; i < 10; i++ {
		matchup := "LAL vs. DEN"
		if i%2 == 1 {
			matchup = "LAL @ MIA"
		}
		recs = append(recs, game("Athlete Y", "LAL", matchup, i, float64(10+2*i), 4, 3))
	}
	fs := store.NewMemory(recs)

	tests := []struct {
		name      string
		req       models.PredictRequest
		registry  ModelRegistry
		wantErr   error
		wantLike  string
		wantGames int
	}{
		{
			name:    "empty athlete",
			req:     models.PredictRequest{Opponent: "DEN", Category: models.CategoryPoints},
			wantErr: models.ErrValidation,
		},
		{
			name:    "unknown category",
			req:     models.PredictRequest{Athlete: "Athlete Y", Opponent: "DEN", Category: "dunks"},
			wantErr: models.ErrValidation,
		},
		{
			name:    "negative threshold",
			req:     models.PredictRequest{Athlete: "Athlete Y", Opponent: "DEN", Category: models.CategoryPoints, Threshold: ptr(-1)},
			wantErr: models.ErrValidation,
		},
		{
			name:     "no model",
			req:      models.PredictRequest{Athlete: "Athlete Y", Opponent: "DEN", Category: models.CategoryPoints},
			registry: artifact.NewRegistry(),
			wantErr:  models.ErrModelUnavailable,
		},
		{
			name:    "unknown athlete",
			req:     models.PredictRequest{Athlete: "Nobody", Opponent: "DEN", Category: models.CategoryPoints},
			wantErr: models.ErrNotFound,
		},
		{
			name:    "dynamic threshold without opponent history",
			req:     models.PredictRequest{Athlete: "Athlete Y", Opponent: "BOS", Category: models.CategoryPoints},
			wantErr: models.ErrInsufficientData,
		},
		{
			// recent five are days 5..9; DEN games are days 0,2,4,6,8 -> 8 distinct games
			name:      "always met",
			req:       models.PredictRequest{Athlete: "athlete y", Opponent: "den", Category: models.CategoryPoints, Threshold: ptr(1)},
			wantLike:  "100.00%",
			wantGames: 8,
		},
		{
			name:      "never met",
			req:       models.PredictRequest{Athlete: "Athlete Y", Opponent: "DEN", Category: models.CategoryPoints, Threshold: ptr(100)},
			wantLike:  "0.00%",
			wantGames: 8,
		},
		{
			// no opponent history, explicit threshold: recent form only
			name:      "explicit threshold with recent form only",
			req:       models.PredictRequest{Athlete: "Athlete Y", Opponent: "BOS", Category: models.CategoryPoints, Threshold: ptr(24)},
			wantLike:  "60.00%",
			wantGames: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := tt.registry
			if reg == nil {
				reg = allModels()
			}
			res, err := NewPredictionService(fs, reg, zap.NewNop()).Predict(context.Background(), tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, res)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLike, res.Likelihood)
			assert.Equal(t, tt.wantGames, res.GamesConsidered)
		})
	}
}

func TestPredict_DynamicThreshold(t *testing.T) {
	fs := store.NewMemory([]models.GameRecord{
		game("Athlete Z", "LAL", "LAL vs. PHX", 1, 10, 1, 1),
		game("Athlete Z", "LAL", "LAL @ PHX", 2, 20, 1, 1),
	})
	res, err := NewPredictionService(fs, allModels(), zap.NewNop()).Predict(context.Background(), models.PredictRequest{
		Athlete:  "Athlete Z",
		Opponent: "PHX",
		Category: models.CategoryPoints,
	})
	require.NoError(t, err)
	assert.True(t, res.DynamicThreshold)
	assert.InDelta(t, 15+0.5*math.Sqrt(50), res.Threshold, 1e-9)
	assert.Equal(t, "50.00%", res.Likelihood)
}

func TestPredict_ZeroThresholdIsDynamic(t *testing.T) {
	fs := store.NewMemory([]models.GameRecord{
		game("Athlete Z", "LAL", "LAL vs. PHX", 1, 10, 1, 1),
	})
	_, err := NewPredictionService(fs, allModels(), zap.NewNop()).Predict(context.Background(), models.PredictRequest{
		Athlete:   "Athlete Z",
		Opponent:  "PHX",
		Category:  models.CategoryPoints,
		Threshold: ptr(0),
	})
	assert.ErrorIs(t, err, models.ErrInsufficientData)
}

func TestPredict_StoreError(t *testing.T) {
	boom := errors.New("boom")
	svc := NewPredictionService(failingStore{err: boom}, allModels(), zap.NewNop())
	_, err := svc.Predict(context.Background(), models.PredictRequest{Athlete: "A", Opponent: "B", Category: models.CategoryPoints})
	assert.ErrorIs(t, err, boom)
}

func TestPredict_ReportsChainSource(t *testing.T) {
	fallback := store.NewMemory([]models.GameRecord{
		game("Athlete X", "LAL", "LAL vs. BOS", 1, 22, 5, 5),
	})
	chain := store.NewChain(zap.NewNop(),
		store.Tier{Name: "primary", Store: failingStore{err: errors.New("down")}},
		store.Tier{Name: "static", Store: fallback},
	)
	res, err := NewPredictionService(chain, allModels(), zap.NewNop()).Predict(context.Background(), models.PredictRequest{
		Athlete:   "Athlete X",
		Opponent:  "BOS",
		Category:  models.CategoryPoints,
		Threshold: ptr(20),
	})
	require.NoError(t, err)
	assert.Equal(t, "static", res.Source)
	assert.Equal(t, "100.00%", res.Likelihood)
}

func TestCombine_DropsDuplicates(t *testing.T) {
	a := game("X", "LAL", "LAL vs. BOS", 1, 10, 1, 1)
	b := game("X", "LAL", "LAL vs. BOS", 2, 12, 1, 1)
	withID := b
	withID.ID = "g2"
	sameID := withID
	sameID.Stats = map[string]float64{"PTS": 99}

	got := Combine([]models.GameRecord{b, a}, []models.GameRecord{a, withID, sameID})
	require.Len(t, got, 3)
	assert.Equal(t, day(1), got[0].GameDate)
}

func TestRecentForm(t *testing.T) {
	var recs []models.GameRecord
	for i := 7; i >= 0; i-- {
		recs = append(recs, game("X", "LAL", "LAL vs. BOS", i, float64(i), 0, 0))
	}
	got := RecentForm(recs, 5)
	require.Len(t, got, 5)
	assert.Equal(t, day(3), got[0].GameDate)
	assert.Equal(t, day(7), got[4].GameDate)
	assert.Len(t, RecentForm(recs[:2], 5), 2)
}

func TestFormatLikelihood(t *testing.T) {
	assert.Equal(t, "66.67%", FormatLikelihood(200.0/3))
	assert.Equal(t, "100.00%", FormatLikelihood(100))
	assert.Equal(t, "0.00%", FormatLikelihood(0))
}
