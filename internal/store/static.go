package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/hoopstats/propcast/internal/dataset"
	"github.com/hoopstats/propcast/internal/models"
)

// Static serves a previously exported dataset file, filtered by PLAYER_NAME and TEAM_NAME.
// The file is read on first use; a missing or unreadable file fails every query.
type Static struct {
	path string

	once sync.Once
	mem  *Memory
	err  error
}

// NewStatic creates a tier over the CSV export at path.
func NewStatic(path string) *Static {
	return &Static{path: path}
}

func (s *Static) load() (*Memory, error) {
	s.once.Do(func() {
		if s.path == "" {
			s.err = fmt.Errorf("static dataset: no path configured")
			return
		}
		ds, err := dataset.ReadFile(s.path)
		if err != nil {
			s.err = fmt.Errorf("static dataset %s: %w", s.path, err)
			return
		}
		s.mem = NewMemory(ds.Records)
	})
	return s.mem, s.err
}

func (s *Static) GetRecords(ctx context.Context, athlete string) ([]models.GameRecord, error) {
	mem, err := s.load()
	if err != nil {
		return nil, err
	}
	return mem.GetRecords(ctx, athlete)
}

func (s *Static) GetRecordsForTeam(ctx context.Context, team string) ([]models.GameRecord, error) {
	mem, err := s.load()
	if err != nil {
		return nil, err
	}
	return mem.GetRecordsForTeam(ctx, team)
}

func (s *Static) ListAthletes(ctx context.Context) ([]string, error) {
	mem, err := s.load()
	if err != nil {
		return nil, err
	}
	return mem.ListAthletes(ctx)
}

func (s *Static) ListTeams(ctx context.Context) ([]string, error) {
	mem, err := s.load()
	if err != nil {
		return nil, err
	}
	return mem.ListTeams(ctx)
}
