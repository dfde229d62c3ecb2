package artifact

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/hoopstats/propcast/internal/models"
)

// Registry maps categories to loaded models. It is built once at startup and
// never mutated, so concurrent readers need no locking.
type Registry struct {
	models map[models.Category]*Model
}

// NewRegistry copies the given models into a registry.
func NewRegistry(ms ...*Model) *Registry {
	r := &Registry{models: make(map[models.Category]*Model, len(ms))}
	for _, m := range ms {
		if m != nil {
			r.models[m.Category] = m
		}
	}
	return r
}

// LoadRegistry loads every category from the store. Missing artifacts are
// logged and left out; any other load error is returned.
func LoadRegistry(ctx context.Context, store Store, logger *zap.Logger) (*Registry, error) {
	sugar := logger.Sugar()
	var loaded []*Model
	for _, c := range models.AllCategories {
		m, err := store.Load(ctx, c)
		if errors.Is(err, models.ErrModelUnavailable) {
			sugar.Warnw("No trained model for category", "category", c)
			continue
		}
		if err != nil {
			return nil, err
		}
		loaded = append(loaded, m)
	}
	sugar.Infow("Model registry loaded", "models", len(loaded))
	return NewRegistry(loaded...), nil
}

// Get returns the model for the category.
func (r *Registry) Get(c models.Category) (*Model, bool) {
	if r == nil {
		return nil, false
	}
	m, ok := r.models[c]
	return m, ok
}

// Categories lists the loaded categories in canonical order.
func (r *Registry) Categories() []models.Category {
	var out []models.Category
	for _, c := range models.AllCategories {
		if _, ok := r.Get(c); ok {
			out = append(out, c)
		}
	}
	return out
}
