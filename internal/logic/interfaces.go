package logic

import (
	"context"

	"github.com/hoopstats/propcast/internal/artifact"
	"github.com/hoopstats/propcast/internal/models"
)

// PredictionService estimates how often an athlete meets a stat threshold.
type PredictionService interface {
	Predict(ctx context.Context, req models.PredictRequest) (*models.PredictionResult, error)
}

// RecommendationService ranks other athletes against a target athlete.
type RecommendationService interface {
	BySimilarity(ctx context.Context, athlete string) (*models.RecommendationResult, error)
	ByPrediction(ctx context.Context, req models.PredictRequest) (*models.RecommendationResult, error)
}

// ModelRegistry resolves the trained model for a category.
type ModelRegistry interface {
	Get(c models.Category) (*artifact.Model, bool)
}

// sourcedStore is implemented by stores that report which tier answered.
type sourcedStore interface {
	GetRecordsFrom(ctx context.Context, athlete string) ([]models.GameRecord, string, error)
}
