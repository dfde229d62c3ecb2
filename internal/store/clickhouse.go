package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/hoopstats/propcast/internal/models"
)

var (
	batchInsertDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "propcast_batch_insert_duration_seconds",
		Help:    "Duration of game log batch inserts to ClickHouse",
		Buckets: prometheus.DefBuckets,
	})

	rowsInserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "propcast_game_logs_inserted_total",
		Help: "Total number of game log rows inserted into ClickHouse",
	})
)

const gameLogsSchema = `
	CREATE TABLE IF NOT EXISTS game_logs (
		record_id   String,
		season      LowCardinality(String),
		player_id   Int64,
		player_name String,
		player_key  String,
		team_name   LowCardinality(String),
		opponent    LowCardinality(String),
		matchup     String,
		home        UInt8,
		game_date   Date,
		stats       Map(String, Float64),
		labels      Map(String, UInt8),
		rolling     Map(String, Float64),
		ingested_at DateTime DEFAULT now()
	) ENGINE = ReplacingMergeTree(ingested_at)
	ORDER BY (season, player_key, game_date, record_id)
`

const selectGameLogs = `
	SELECT record_id, player_id, player_name, team_name, opponent, matchup,
		home, game_date, stats, labels, rolling
	FROM game_logs FINAL
`

// ClickHouse is the primary feature store. Rows are keyed by season and lower-cased athlete name.
type ClickHouse struct {
	conn      driver.Conn
	season    string
	batchSize int
	logger    *zap.SugaredLogger
}

// NewClickHouse creates a feature store over conn. An empty season queries every season.
func NewClickHouse(conn driver.Conn, season string, logger *zap.Logger) *ClickHouse {
	return &ClickHouse{
		conn:      conn,
		season:    season,
		batchSize: 500,
		logger:    logger.Sugar(),
	}
}

// EnsureSchema creates the game_logs table if needed.
func (c *ClickHouse) EnsureSchema(ctx context.Context) error {
	if err := c.conn.Exec(ctx, gameLogsSchema); err != nil {
		return fmt.Errorf("creating game_logs: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (c *ClickHouse) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

// WriteDataset inserts the dataset in batches. Replayed rows collapse on record_id.
func (c *ClickHouse) WriteDataset(ctx context.Context, ds *models.Dataset) error {
	season := ds.Season
	if season == "" {
		season = c.season
	}

	for start := 0; start < len(ds.Records); start += c.batchSize {
		end := start + c.batchSize
		if end > len(ds.Records) {
			end = len(ds.Records)
		}
		if err := c.insertBatch(ctx, season, ds.Records[start:end]); err != nil {
			return err
		}
	}
	c.logger.Infow("Game logs written to ClickHouse", "season", season, "rows", len(ds.Records))
	return nil
}

func (c *ClickHouse) insertBatch(ctx context.Context, season string, records []models.GameRecord) error {
	start := time.Now()
	defer func() { batchInsertDuration.Observe(time.Since(start).Seconds()) }()

	batch, err := c.conn.PrepareBatch(ctx, `
		INSERT INTO game_logs (
			record_id, season, player_id, player_name, player_key, team_name, opponent,
			matchup, home, game_date, stats, labels, rolling
		)
	`)
	if err != nil {
		return fmt.Errorf("preparing batch: %w", err)
	}

	appended := 0
	for _, r := range records {
		var home uint8
		if r.Home {
			home = 1
		}
		labels := make(map[string]uint8, len(r.Labels))
		for k, v := range r.Labels {
			labels[k] = uint8(v)
		}
		stats := r.Stats
		if stats == nil {
			stats = map[string]float64{}
		}
		rolling := r.Rolling
		if rolling == nil {
			rolling = map[string]float64{}
		}

		err := batch.Append(
			r.ID,
			season,
			r.AthleteID,
			r.Athlete,
			athleteKey(r.Athlete),
			r.Team,
			r.Opponent,
			r.Matchup,
			home,
			r.GameDate,
			stats,
			labels,
			rolling,
		)
		if err != nil {
			c.logger.Warnw("Failed to append game log to batch", "error", err, "athlete", r.Athlete, "game", r.ID)
			continue
		}
		appended++
	}

	if err := batch.Send(); err != nil {
		c.logger.Errorw("Failed to send batch to ClickHouse", "error", err, "batchSize", len(records))
		return fmt.Errorf("sending batch: %w", err)
	}
	rowsInserted.Add(float64(appended))
	return nil
}

func (c *ClickHouse) GetRecords(ctx context.Context, athlete string) ([]models.GameRecord, error) {
	query, args := c.where(selectGameLogs+" WHERE player_key = ?", athleteKey(athlete))
	return c.queryRecords(ctx, query+" ORDER BY game_date", args...)
}

func (c *ClickHouse) GetRecordsForTeam(ctx context.Context, team string) ([]models.GameRecord, error) {
	query, args := c.where(selectGameLogs+" WHERE upper(team_name) = ?", teamKey(team))
	return c.queryRecords(ctx, query+" ORDER BY player_key, game_date", args...)
}

func (c *ClickHouse) ListAthletes(ctx context.Context) ([]string, error) {
	query, args := c.where("SELECT DISTINCT player_name FROM game_logs WHERE 1 = 1")
	return c.queryStrings(ctx, query+" ORDER BY player_name", args...)
}

func (c *ClickHouse) ListTeams(ctx context.Context) ([]string, error) {
	query, args := c.where("SELECT DISTINCT arrayJoin([team_name, opponent]) AS team FROM game_logs WHERE 1 = 1")
	return c.queryStrings(ctx, query+" ORDER BY team", args...)
}

// where appends the season filter when the store is pinned to a season.
func (c *ClickHouse) where(query string, args ...interface{}) (string, []interface{}) {
	if c.season == "" {
		return query, args
	}
	return query + " AND season = ?", append(args, c.season)
}

func (c *ClickHouse) queryRecords(ctx context.Context, query string, args ...interface{}) ([]models.GameRecord, error) {
	rows, err := c.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying game_logs: %w", err)
	}
	defer rows.Close()

	var out []models.GameRecord
	for rows.Next() {
		var (
			r      models.GameRecord
			home   uint8
			labels map[string]uint8
		)
		if err := rows.Scan(
			&r.ID, &r.AthleteID, &r.Athlete, &r.Team, &r.Opponent, &r.Matchup,
			&home, &r.GameDate, &r.Stats, &labels, &r.Rolling,
		); err != nil {
			return nil, fmt.Errorf("scanning game log: %w", err)
		}
		r.Home = home == 1
		if len(labels) > 0 {
			r.Labels = make(map[string]int, len(labels))
			for k, v := range labels {
				r.Labels[k] = int(v)
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	models.SortChronological(out)
	return out, nil
}

func (c *ClickHouse) queryStrings(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := c.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying game_logs: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		if s != "" {
			out = append(out, s)
		}
	}
	return out, rows.Err()
}
