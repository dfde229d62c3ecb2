// Package artifact persists trained category models and builds the
// read-only registry the prediction engine is constructed with.
package artifact

import (
	"context"
	"fmt"

	"github.com/hoopstats/propcast/internal/forest"
	"github.com/hoopstats/propcast/internal/models"
)

// Model is a trained artifact for one category.
type Model struct {
	Category models.Category       `json:"category"`
	Kind     models.ModelKind      `json:"kind"`
	Features []string              `json:"features"`
	Cutoff   float64               `json:"cutoff"`
	Forest   *forest.Forest        `json:"forest"`
	Report   models.TrainingReport `json:"report"`
}

// Name is the artifact name, e.g. "points_model".
func Name(c models.Category) string {
	return string(c) + "_model"
}

// Vector extracts the model's features from a record. Features come from raw stats
// or rolling averages; false if any is missing.
func (m *Model) Vector(r models.GameRecord) ([]float64, bool) {
	x := make([]float64, len(m.Features))
	for i, col := range m.Features {
		if v, ok := r.Stats[col]; ok {
			x[i] = v
			continue
		}
		if v, ok := r.Rolling[col]; ok {
			x[i] = v
			continue
		}
		return nil, false
	}
	return x, true
}

// MeanVector averages the feature vectors of the records that carry every feature.
func (m *Model) MeanVector(records []models.GameRecord) ([]float64, bool) {
	mean := make([]float64, len(m.Features))
	n := 0
	for _, r := range records {
		x, ok := m.Vector(r)
		if !ok {
			continue
		}
		for i, v := range x {
			mean[i] += v
		}
		n++
	}
	if n == 0 {
		return nil, false
	}
	for i := range mean {
		mean[i] /= float64(n)
	}
	return mean, true
}

// Probability is the classifier's P(stat >= Cutoff) for x. A regressor's
// estimate is turned into 0 or 1 against the cutoff.
func (m *Model) Probability(x []float64) float64 {
	if m.Forest == nil {
		return 0
	}
	p := m.Forest.Predict(x)
	if m.Kind == models.KindRegressor {
		if p >= m.Cutoff {
			return 1
		}
		return 0
	}
	return p
}

// Store saves and loads model artifacts by category.
type Store interface {
	Save(ctx context.Context, m *Model) error
	// Load returns an error wrapping models.ErrModelUnavailable when no artifact exists.
	Load(ctx context.Context, c models.Category) (*Model, error)
}

func validate(m *Model) error {
	if m == nil || m.Forest == nil {
		return fmt.Errorf("artifact has no fitted model")
	}
	if !m.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", models.ErrValidation, m.Category)
	}
	if m.Forest.Features != len(m.Features) {
		return fmt.Errorf("artifact %s: forest expects %d features, has %d names", Name(m.Category), m.Forest.Features, len(m.Features))
	}
	return nil
}
