package source

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hoopstats/propcast/internal/features"
	"github.com/hoopstats/propcast/internal/models"
	"github.com/hoopstats/propcast/internal/retry"
)

// LiveStore answers feature store queries straight from the upstream provider.
// It is the secondary retrieval tier when the feature store is unreachable.
type LiveStore struct {
	client  *Client
	season  string
	policy  retry.Policy
	options features.Options
	logger  *zap.SugaredLogger
}

// NewLiveStore creates a live tier for one season. Only retryable upstream errors are retried.
func NewLiveStore(client *Client, season string, policy retry.Policy, opts features.Options, logger *zap.Logger) *LiveStore {
	policy.Retryable = IsRetryable
	policy.WaitHint = RetryAfter
	return &LiveStore{
		client:  client,
		season:  season,
		policy:  policy,
		options: opts,
		logger:  logger.Sugar(),
	}
}

// GetRecords returns the athlete's annotated season log, oldest first.
// An athlete missing from the active roster answers with no records.
func (s *LiveStore) GetRecords(ctx context.Context, athlete string) ([]models.GameRecord, error) {
	a, err := s.client.FindAthlete(ctx, s.season, athlete)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return s.recordsFor(ctx, a)
}

// GetRecordsForTeam fetches the log of every rostered athlete on the team.
// Athletes whose fetch fails are skipped.
func (s *LiveStore) GetRecordsForTeam(ctx context.Context, team string) ([]models.GameRecord, error) {
	athletes, err := s.client.ActiveAthletes(ctx, s.season)
	if err != nil {
		return nil, err
	}

	var out []models.GameRecord
	for _, a := range athletes {
		if !strings.EqualFold(a.Team, team) {
			continue
		}
		recs, err := s.recordsFor(ctx, a)
		if err != nil {
			s.logger.Warnw("Skipping teammate in live lookup", "athlete", a.Name, "team", team, "error", err)
			continue
		}
		out = append(out, recs...)
	}
	return out, nil
}

// ListAthletes returns the active roster names.
func (s *LiveStore) ListAthletes(ctx context.Context) ([]string, error) {
	athletes, err := s.client.ActiveAthletes(ctx, s.season)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(athletes))
	for _, a := range athletes {
		names = append(names, a.Name)
	}
	sort.Strings(names)
	return names, nil
}

// ListTeams returns the team abbreviations present on the active roster.
func (s *LiveStore) ListTeams(ctx context.Context) ([]string, error) {
	athletes, err := s.client.ActiveAthletes(ctx, s.season)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var teams []string
	for _, a := range athletes {
		if a.Team == "" || seen[a.Team] {
			continue
		}
		seen[a.Team] = true
		teams = append(teams, a.Team)
	}
	sort.Strings(teams)
	return teams, nil
}

func (s *LiveStore) recordsFor(ctx context.Context, a models.Athlete) ([]models.GameRecord, error) {
	var rows []models.RawRow
	err := s.policy.Do(ctx, func(ctx context.Context) error {
		var err error
		rows, err = s.client.FetchSeasonLog(ctx, a.ID, s.season)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", a.Name, err)
	}

	annotated := features.Annotate(a, rows, s.options)
	for _, w := range annotated.Warnings {
		s.logger.Warnw("Annotation warning", "athlete", a.Name, "warning", w)
	}
	return annotated.Records, nil
}
