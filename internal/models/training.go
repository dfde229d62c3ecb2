package models

import "time"

// ModelKind selects classification on the label column or regression on the raw stat.
type ModelKind string

const (
	KindClassifier ModelKind = "classifier"
	KindRegressor  ModelKind = "regressor"
)

// Hyperparameters of a decision-tree ensemble
type Hyperparameters struct {
	Trees           int    `json:"trees"`
	MaxDepth        int    `json:"max_depth"` // 0 = unlimited
	MinSamplesSplit int    `json:"min_samples_split"`
	MinSamplesLeaf  int    `json:"min_samples_leaf"`
	MaxFeatures     string `json:"max_features"` // sqrt, log2, all
	Bootstrap       bool   `json:"bootstrap"`
}

// TrainingReport summarizes one category's training run.
type TrainingReport struct {
	Category      Category        `json:"category"`
	Kind          ModelKind       `json:"kind"`
	Target        string          `json:"target"`
	Features      []string        `json:"features"`
	TrainRows     int             `json:"train_rows"`
	TestRows      int             `json:"test_rows"`
	Params        Hyperparameters `json:"params"`
	CVScore       *float64        `json:"cv_score,omitempty"`
	Accuracy      *float64        `json:"accuracy,omitempty"`
	MAE           *float64        `json:"mae,omitempty"`
	MSE           *float64        `json:"mse,omitempty"`
	R2            *float64        `json:"r2,omitempty"`
	BaselineR2    *float64        `json:"baseline_r2,omitempty"`
	Artifact      string          `json:"artifact"`
	TrainedAt     time.Time       `json:"trained_at"`
	TrainDuration time.Duration   `json:"train_duration"`
}
