package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hoopstats/propcast/internal/models"
)

const (
	snapshotPrefix  = "propcast:snapshot:"
	keyAthletes     = snapshotPrefix + "athletes"
	keyTeams        = snapshotPrefix + "teams"
	athletePrefix   = snapshotPrefix + "athlete:"
	teamPrefix      = snapshotPrefix + "team:"
	DefaultSnapshot = 48 * time.Hour
)

// RedisSnapshot keeps the latest dataset as one JSON document per athlete
// plus athlete and team sets. Keys expire after the configured TTL.
type RedisSnapshot struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.SugaredLogger
}

// NewRedisSnapshot creates a snapshot tier.
func NewRedisSnapshot(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisSnapshot {
	if ttl <= 0 {
		ttl = DefaultSnapshot
	}
	return &RedisSnapshot{client: client, ttl: ttl, logger: logger.Sugar()}
}

// WriteDataset stores the dataset in one pipeline.
func (s *RedisSnapshot) WriteDataset(ctx context.Context, ds *models.Dataset) error {
	byAthlete := make(map[string][]models.GameRecord)
	names := make(map[string]string)
	teamMembers := make(map[string]map[string]bool)
	for _, r := range ds.Records {
		k := athleteKey(r.Athlete)
		byAthlete[k] = append(byAthlete[k], r)
		names[k] = r.Athlete
		t := teamKey(r.Team)
		if t == "" {
			continue
		}
		if teamMembers[t] == nil {
			teamMembers[t] = make(map[string]bool)
		}
		teamMembers[t][k] = true
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, keyAthletes, keyTeams)

	for k, recs := range byAthlete {
		payload, err := json.Marshal(recs)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", names[k], err)
		}
		pipe.Set(ctx, athletePrefix+k, payload, s.ttl)
		pipe.SAdd(ctx, keyAthletes, names[k])
	}
	for _, t := range teamsOf(ds.Records) {
		pipe.SAdd(ctx, keyTeams, t)
	}
	for t, members := range teamMembers {
		key := teamPrefix + t
		pipe.Del(ctx, key)
		for k := range members {
			pipe.SAdd(ctx, key, k)
		}
		pipe.Expire(ctx, key, s.ttl)
	}
	pipe.Expire(ctx, keyAthletes, s.ttl)
	pipe.Expire(ctx, keyTeams, s.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	s.logger.Infow("Dataset snapshot written to Redis", "athletes", len(byAthlete), "teams", len(teamMembers), "ttl", s.ttl)
	return nil
}

// Ping checks connectivity.
func (s *RedisSnapshot) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisSnapshot) GetRecords(ctx context.Context, athlete string) ([]models.GameRecord, error) {
	payload, err := s.client.Get(ctx, athletePrefix+athleteKey(athlete)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	var recs []models.GameRecord
	if err := json.Unmarshal(payload, &recs); err != nil {
		return nil, fmt.Errorf("decoding snapshot for %s: %w", athlete, err)
	}
	models.SortChronological(recs)
	return recs, nil
}

func (s *RedisSnapshot) GetRecordsForTeam(ctx context.Context, team string) ([]models.GameRecord, error) {
	members, err := s.client.SMembers(ctx, teamPrefix+teamKey(team)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading team members: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}
	sort.Strings(members)

	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = athletePrefix + m
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("reading snapshots: %w", err)
	}

	want := teamKey(team)
	var out []models.GameRecord
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var recs []models.GameRecord
		if err := json.Unmarshal([]byte(str), &recs); err != nil {
			s.logger.Warnw("Skipping undecodable snapshot", "key", keys[i], "error", err)
			continue
		}
		for _, r := range recs {
			if teamKey(r.Team) == want {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (s *RedisSnapshot) ListAthletes(ctx context.Context) ([]string, error) {
	return s.sortedMembers(ctx, keyAthletes)
}

func (s *RedisSnapshot) ListTeams(ctx context.Context) ([]string, error) {
	return s.sortedMembers(ctx, keyTeams)
}

func (s *RedisSnapshot) sortedMembers(ctx context.Context, key string) ([]string, error) {
	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	sort.Strings(members)
	return members, nil
}
