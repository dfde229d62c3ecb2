package models

import "time"

// PredictRequest is a likelihood query for one athlete against one opponent.
// A nil or zero Threshold asks for a dynamic threshold.
type PredictRequest struct {
	Athlete   string   `json:"player" validate:"required,max=128"`
	Opponent  string   `json:"team" validate:"required,max=64"`
	Category  Category `json:"stat_type" validate:"required"`
	Threshold *float64 `json:"threshold,omitempty"`
}

// PredictionResult is an ephemeral likelihood estimate. Never persisted.
type PredictionResult struct {
	Athlete          string       `json:"player"`
	Opponent         string       `json:"team"`
	Category         Category     `json:"stat_type"`
	Threshold        float64      `json:"threshold"`
	DynamicThreshold bool         `json:"dynamic_threshold"`
	Likelihood       string       `json:"likelihood"`
	LikelihoodValue  float64      `json:"likelihood_value"`
	GamesConsidered  int          `json:"games_considered"`
	GamesMet         int          `json:"games_met"`
	ModelProbability *float64     `json:"model_probability,omitempty"`
	Source           string       `json:"source"`
	RecentGames      []GameRecord `json:"recent_games"`
	Games            []GameRecord `json:"games"`
}

// Recommendation is one ranked candidate. Score is a distance in similarity
// mode and a likelihood percentage in predictive mode.
type Recommendation struct {
	Athlete    string  `json:"player"`
	Score      float64 `json:"score"`
	Likelihood string  `json:"likelihood,omitempty"`
}

// RecommendationResult wraps a ranked list.
type RecommendationResult struct {
	Athlete         string           `json:"player"`
	Mode            string           `json:"mode"`
	Team            string           `json:"team,omitempty"`
	Opponent        string           `json:"opponent,omitempty"`
	Category        Category         `json:"stat_type,omitempty"`
	Recommendations []Recommendation `json:"recommendations"`
	GeneratedAt     time.Time        `json:"generated_at"`
}
