package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/hoopstats/propcast/internal/models"
)

var tierLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "propcast_store_tier_lookups_total",
	Help: "Feature store lookups by tier and outcome",
}, []string{"tier", "outcome"})

// Tier is one named retrieval strategy.
type Tier struct {
	Name  string
	Store FeatureStore
}

// Chain walks its tiers in order. A tier that errors is logged and skipped;
// the first tier that answers, even with nothing, ends the walk.
// When every tier fails the error wraps models.ErrSourceUnavailable.
type Chain struct {
	tiers  []Tier
	logger *zap.SugaredLogger
}

// NewChain creates a chain. Tiers with a nil store are dropped.
func NewChain(logger *zap.Logger, tiers ...Tier) *Chain {
	kept := make([]Tier, 0, len(tiers))
	for _, t := range tiers {
		if t.Store != nil {
			kept = append(kept, t)
		}
	}
	return &Chain{tiers: kept, logger: logger.Sugar()}
}

// Tiers returns the tier names in walk order.
func (c *Chain) Tiers() []string {
	names := make([]string, len(c.tiers))
	for i, t := range c.tiers {
		names[i] = t.Name
	}
	return names
}

// GetRecordsFrom is GetRecords that also reports which tier answered.
func (c *Chain) GetRecordsFrom(ctx context.Context, athlete string) ([]models.GameRecord, string, error) {
	var recs []models.GameRecord
	tier, err := c.walk(ctx, "get_records", func(s FeatureStore) error {
		var err error
		recs, err = s.GetRecords(ctx, athlete)
		return err
	})
	return recs, tier, err
}

func (c *Chain) GetRecords(ctx context.Context, athlete string) ([]models.GameRecord, error) {
	recs, _, err := c.GetRecordsFrom(ctx, athlete)
	return recs, err
}

func (c *Chain) GetRecordsForTeam(ctx context.Context, team string) ([]models.GameRecord, error) {
	var recs []models.GameRecord
	_, err := c.walk(ctx, "get_records_for_team", func(s FeatureStore) error {
		var err error
		recs, err = s.GetRecordsForTeam(ctx, team)
		return err
	})
	return recs, err
}

func (c *Chain) ListAthletes(ctx context.Context) ([]string, error) {
	var names []string
	_, err := c.walk(ctx, "list_athletes", func(s FeatureStore) error {
		var err error
		names, err = s.ListAthletes(ctx)
		return err
	})
	return names, err
}

func (c *Chain) ListTeams(ctx context.Context) ([]string, error) {
	var teams []string
	_, err := c.walk(ctx, "list_teams", func(s FeatureStore) error {
		var err error
		teams, err = s.ListTeams(ctx)
		return err
	})
	return teams, err
}

func (c *Chain) walk(ctx context.Context, op string, fn func(FeatureStore) error) (string, error) {
	var errs []error
	for _, t := range c.tiers {
		err := fn(t.Store)
		if err == nil {
			tierLookups.WithLabelValues(t.Name, "ok").Inc()
			if len(errs) > 0 {
				c.logger.Infow("Feature store fallback answered", "op", op, "tier", t.Name, "failedTiers", len(errs))
			}
			return t.Name, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}

		tierLookups.WithLabelValues(t.Name, "error").Inc()
		c.logger.Warnw("Feature store tier failed", "op", op, "tier", t.Name, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", t.Name, err))
	}

	if len(c.tiers) == 0 {
		return "", fmt.Errorf("%w: no tiers configured", models.ErrSourceUnavailable)
	}
	return "", fmt.Errorf("%w: %w", models.ErrSourceUnavailable, errors.Join(errs...))
}
