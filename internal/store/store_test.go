package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hoopstats/propcast/internal/dataset"
	"github.com/hoopstats/propcast/internal/models"
)

func day(d int) time.Time {
	return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC)
}

func rec(athlete, team, opp string, d int, pts float64) models.GameRecord {
	return models.GameRecord{
		ID:       athlete + "-" + opp,
		Athlete:  athlete,
		Team:     team,
		Opponent: opp,
		Matchup:  team + " @ " + opp,
		GameDate: day(d),
		Stats:    map[string]float64{"PTS": pts, "REB": 5, "AST": 3},
	}
}

func sampleRecords() []models.GameRecord {
	return []models.GameRecord{
		rec("LeBron James", "LAL", "DEN", 3, 25),
		rec("LeBron James", "LAL", "PHX", 1, 21),
		rec("Anthony Davis", "LAL", "DEN", 3, 30),
		rec("Stephen Curry", "GSW", "SAC", 2, 33),
	}
}

func TestMemory_Queries(t *testing.T) {
	m := NewMemory(sampleRecords())
	ctx := context.Background()

	recs, err := m.GetRecords(ctx, "lebron james")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.True(t, recs[0].GameDate.Before(recs[1].GameDate), "oldest first")

	recs, err = m.GetRecords(ctx, "Nobody")
	require.NoError(t, err)
	assert.Empty(t, recs)

	team, err := m.GetRecordsForTeam(ctx, "lal")
	require.NoError(t, err)
	assert.Len(t, team, 3)

	names, err := m.ListAthletes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Anthony Davis", "LeBron James", "Stephen Curry"}, names)

	teams, err := m.ListTeams(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"DEN", "GSW", "LAL", "PHX", "SAC"}, teams)
}

func TestStatic_FiltersExportedDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "player_data.csv")
	require.NoError(t, dataset.WriteFile(path, &models.Dataset{Records: sampleRecords()}))

	s := NewStatic(path)
	recs, err := s.GetRecords(context.Background(), "Stephen Curry")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 33.0, recs[0].Stats["PTS"])

	team, err := s.GetRecordsForTeam(context.Background(), "LAL")
	require.NoError(t, err)
	assert.Len(t, team, 3)
}

func TestStatic_MissingFileFails(t *testing.T) {
	s := NewStatic(filepath.Join(t.TempDir(), "absent.csv"))
	_, err := s.GetRecords(context.Background(), "LeBron James")
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, err = NewStatic("").ListTeams(context.Background())
	assert.Error(t, err)
}

func TestChain_Fallback(t *testing.T) {
	boom := errors.New("connection refused")
	ctx := context.Background()

	tests := []struct {
		name      string
		tiers     []*stubStore
		wantTier  string
		wantLen   int
		wantErr   error
		wantCalls []int
	}{
		{
			name:      "primary answers",
			tiers:     []*stubStore{{records: sampleRecords()[:1]}, {records: sampleRecords()}},
			wantTier:  "primary",
			wantLen:   1,
			wantCalls: []int{1, 0},
		},
		{
			name:      "primary fails, secondary answers",
			tiers:     []*stubStore{{err: boom}, {records: sampleRecords()}},
			wantTier:  "secondary",
			wantLen:   4,
			wantCalls: []int{1, 1},
		},
		{
			name:      "empty answer ends the walk",
			tiers:     []*stubStore{{}, {records: sampleRecords()}},
			wantTier:  "primary",
			wantLen:   0,
			wantCalls: []int{1, 0},
		},
		{
			name:      "all tiers fail",
			tiers:     []*stubStore{{err: boom}, {err: boom}},
			wantErr:   models.ErrSourceUnavailable,
			wantCalls: []int{1, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChain(zap.NewNop(),
				Tier{Name: "primary", Store: tt.tiers[0]},
				Tier{Name: "secondary", Store: tt.tiers[1]},
			)

			recs, tier, err := c.GetRecordsFrom(ctx, "LeBron James")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, boom)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantTier, tier)
				assert.Len(t, recs, tt.wantLen)
			}
			for i, s := range tt.tiers {
				assert.Equal(t, tt.wantCalls[i], s.calls, "tier %d calls", i)
			}
		})
	}
}

func TestChain_NoTiers(t *testing.T) {
	c := NewChain(zap.NewNop(), Tier{Name: "unset"})
	assert.Empty(t, c.Tiers())
	_, err := c.ListAthletes(context.Background())
	assert.ErrorIs(t, err, models.ErrSourceUnavailable)
}

func TestClickHouse_WriteDatasetBatches(t *testing.T) {
	var batches []*MockBatch
	conn := &MockConn{
		PrepareBatchFunc: func(ctx context.Context, query string) (driver.Batch, error) {
			assert.Contains(t, query, "INSERT INTO game_logs")
			b := &MockBatch{}
			batches = append(batches, b)
			return b, nil
		},
	}
	ch := NewClickHouse(conn, "2023-24", zap.NewNop())
	ch.batchSize = 3

	recs := sampleRecords()
	recs[0].Home = true
	recs[0].Labels = map[string]int{"POINTS_THRESHOLD": 1}
	err := ch.WriteDataset(context.Background(), &models.Dataset{Records: recs})
	require.NoError(t, err)

	require.Len(t, batches, 2)
	assert.Len(t, batches[0].Appended, 3)
	assert.Len(t, batches[1].Appended, 1)
	for _, b := range batches {
		assert.True(t, b.Sent)
	}

	first := batches[0].Appended[0]
	assert.Equal(t, "2023-24", first[1])
	assert.Equal(t, "lebron james", first[4])
	assert.Equal(t, uint8(1), first[8])
	assert.Equal(t, map[string]uint8{"POINTS_THRESHOLD": 1}, first[11])
}

func TestClickHouse_WriteDatasetSendError(t *testing.T) {
	conn := &MockConn{
		PrepareBatchFunc: func(ctx context.Context, query string) (driver.Batch, error) {
			return &MockBatch{SendErr: errors.New("too many parts")}, nil
		},
	}
	err := NewClickHouse(conn, "", zap.NewNop()).WriteDataset(context.Background(), &models.Dataset{Records: sampleRecords()})
	assert.Error(t, err)
}

func TestClickHouse_GetRecords(t *testing.T) {
	var gotQuery string
	var gotArgs []interface{}
	conn := &MockConn{
		QueryFunc: func(ctx context.Context, query string, args ...interface{}) (driver.Rows, error) {
			gotQuery, gotArgs = query, args
			return &MockRows{Data: [][]interface{}{
				{"g2", int64(2544), "LeBron James", "LAL", "PHX", "LAL vs. PHX", uint8(1), day(5),
					map[string]float64{"PTS": 30}, map[string]uint8{"POINTS_THRESHOLD": 1}, map[string]float64{"ROLLING_PTS_AVG": 25}},
				{"g1", int64(2544), "LeBron James", "LAL", "DEN", "LAL @ DEN", uint8(0), day(2),
					map[string]float64{"PTS": 20}, map[string]uint8{"POINTS_THRESHOLD": 1}, map[string]float64{"ROLLING_PTS_AVG": 20}},
			}}, nil
		},
	}

	ch := NewClickHouse(conn, "2023-24", zap.NewNop())
	recs, err := ch.GetRecords(context.Background(), " LeBron James ")
	require.NoError(t, err)

	assert.True(t, strings.Contains(gotQuery, "player_key = ?") && strings.Contains(gotQuery, "season = ?"))
	assert.Equal(t, []interface{}{"lebron james", "2023-24"}, gotArgs)

	require.Len(t, recs, 2)
	assert.Equal(t, "g1", recs[0].ID, "sorted oldest first")
	assert.True(t, recs[1].Home)
	assert.Equal(t, 1, recs[1].Labels["POINTS_THRESHOLD"])
}

func TestClickHouse_QueryErrorIsTierFailure(t *testing.T) {
	conn := &MockConn{
		QueryFunc: func(ctx context.Context, query string, args ...interface{}) (driver.Rows, error) {
			return nil, errors.New("dial tcp: connection refused")
		},
	}
	fallback := NewMemory(sampleRecords())
	c := NewChain(zap.NewNop(),
		Tier{Name: "clickhouse", Store: NewClickHouse(conn, "", zap.NewNop())},
		Tier{Name: "memory", Store: fallback},
	)
	recs, tier, err := c.GetRecordsFrom(context.Background(), "Anthony Davis")
	require.NoError(t, err)
	assert.Equal(t, "memory", tier)
	assert.Len(t, recs, 1)
}

func TestRedisSnapshot_RoundTrip(t *testing.T) {
	url := os.Getenv("PROPCAST_TEST_REDIS_URL")
	if url == "" {
		t.Skip("PROPCAST_TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	defer client.Close()

	s := NewRedisSnapshot(client, time.Minute, zap.NewNop())
	ctx := context.Background()
	require.NoError(t, s.WriteDataset(ctx, &models.Dataset{Records: sampleRecords()}))

	recs, err := s.GetRecords(ctx, "LeBron James")
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	team, err := s.GetRecordsForTeam(ctx, "LAL")
	require.NoError(t, err)
	assert.Len(t, team, 3)

	recs, err = s.GetRecords(ctx, "Nobody")
	require.NoError(t, err)
	assert.Empty(t, recs)
}
