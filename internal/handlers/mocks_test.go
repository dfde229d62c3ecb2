package handlers

import (
	"context"

	"github.com/hoopstats/propcast/internal/models"
	"github.com/hoopstats/propcast/internal/store"
)

// MockPredictionService
type MockPredictionService struct {
	PredictFunc func(ctx context.Context, req models.PredictRequest) (*models.PredictionResult, error)
	LastRequest models.PredictRequest
}

func (m *MockPredictionService) Predict(ctx context.Context, req models.PredictRequest) (*models.PredictionResult, error) {
	m.LastRequest = req
	if m.PredictFunc != nil {
		return m.PredictFunc(ctx, req)
	}
	return &models.PredictionResult{Athlete: req.Athlete, Likelihood: "50.00%"}, nil
}

// MockRecommendationService
type MockRecommendationService struct {
	BySimilarityFunc func(ctx context.Context, athlete string) (*models.RecommendationResult, error)
	ByPredictionFunc func(ctx context.Context, req models.PredictRequest) (*models.RecommendationResult, error)
}

func (m *MockRecommendationService) BySimilarity(ctx context.Context, athlete string) (*models.RecommendationResult, error) {
	if m.BySimilarityFunc != nil {
		return m.BySimilarityFunc(ctx, athlete)
	}
	return &models.RecommendationResult{Athlete: athlete, Recommendations: []models.Recommendation{}}, nil
}

func (m *MockRecommendationService) ByPrediction(ctx context.Context, req models.PredictRequest) (*models.RecommendationResult, error) {
	if m.ByPredictionFunc != nil {
		return m.ByPredictionFunc(ctx, req)
	}
	return &models.RecommendationResult{Athlete: req.Athlete, Recommendations: []models.Recommendation{}}, nil
}

// MockFeatureStore
type MockFeatureStore struct {
	store.FeatureStore
	ListAthletesFunc func(ctx context.Context) ([]string, error)
	ListTeamsFunc    func(ctx context.Context) ([]string, error)
}

func (m *MockFeatureStore) ListAthletes(ctx context.Context) ([]string, error) {
	if m.ListAthletesFunc != nil {
		return m.ListAthletesFunc(ctx)
	}
	return nil, nil
}

func (m *MockFeatureStore) ListTeams(ctx context.Context) ([]string, error) {
	if m.ListTeamsFunc != nil {
		return m.ListTeamsFunc(ctx)
	}
	return nil, nil
}
