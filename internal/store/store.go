// Package store holds the feature store tiers queried by prediction and
// recommendation, and the ordered fallback chain that walks them.
package store

import (
	"context"
	"sort"
	"strings"

	"github.com/hoopstats/propcast/internal/features"
	"github.com/hoopstats/propcast/internal/models"
)

// FeatureStore is the narrow query contract over normalized game records.
type FeatureStore interface {
	// GetRecords returns the athlete's records oldest first; empty for an unknown athlete.
	GetRecords(ctx context.Context, athlete string) ([]models.GameRecord, error)
	// GetRecordsForTeam returns records of every athlete who played for the team.
	GetRecordsForTeam(ctx context.Context, team string) ([]models.GameRecord, error)
	ListAthletes(ctx context.Context) ([]string, error)
	ListTeams(ctx context.Context) ([]string, error)
}

// DatasetWriter persists a freshly built dataset.
type DatasetWriter interface {
	WriteDataset(ctx context.Context, ds *models.Dataset) error
}

func athleteKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func teamKey(team string) string {
	return strings.ToUpper(strings.TrimSpace(team))
}

// teamsOf lists both sides of every matchup, sorted.
func teamsOf(records []models.GameRecord) []string {
	matchups := make([]string, 0, len(records))
	for _, r := range records {
		matchups = append(matchups, r.Matchup)
	}
	teams := features.TeamsFromMatchups(matchups)
	sort.Strings(teams)
	return teams
}
