package store

import (
	"context"
	"sort"
	"sync"

	"github.com/hoopstats/propcast/internal/models"
)

// Memory is an in-process feature store indexed by athlete and team.
type Memory struct {
	mu        sync.RWMutex
	byAthlete map[string][]models.GameRecord
	names     map[string]string
	teams     []string
}

// NewMemory indexes the records. Each athlete's records are kept oldest first.
func NewMemory(records []models.GameRecord) *Memory {
	m := &Memory{}
	m.load(records)
	return m
}

func (m *Memory) load(records []models.GameRecord) {
	byAthlete := make(map[string][]models.GameRecord)
	names := make(map[string]string)
	for _, r := range records {
		k := athleteKey(r.Athlete)
		if _, ok := names[k]; !ok {
			names[k] = r.Athlete
		}
		byAthlete[k] = append(byAthlete[k], r)
	}
	for _, recs := range byAthlete {
		models.SortChronological(recs)
	}

	m.mu.Lock()
	m.byAthlete = byAthlete
	m.names = names
	m.teams = teamsOf(records)
	m.mu.Unlock()
}

// WriteDataset replaces the contents with a new dataset.
func (m *Memory) WriteDataset(ctx context.Context, ds *models.Dataset) error {
	m.load(ds.Records)
	return nil
}

func (m *Memory) GetRecords(ctx context.Context, athlete string) ([]models.GameRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	recs := m.byAthlete[athleteKey(athlete)]
	return append([]models.GameRecord(nil), recs...), nil
}

func (m *Memory) GetRecordsForTeam(ctx context.Context, team string) ([]models.GameRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	want := teamKey(team)
	keys := make([]string, 0, len(m.byAthlete))
	for k := range m.byAthlete {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []models.GameRecord
	for _, k := range keys {
		for _, r := range m.byAthlete[k] {
			if teamKey(r.Team) == want {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (m *Memory) ListAthletes(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.names))
	for _, n := range m.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) ListTeams(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.teams...), nil
}
