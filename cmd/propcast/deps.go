package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/hoopstats/propcast/internal/artifact"
	"github.com/hoopstats/propcast/internal/dataset"
	"github.com/hoopstats/propcast/internal/ingest"
	"github.com/hoopstats/propcast/internal/source"
	"github.com/hoopstats/propcast/internal/store"
	"github.com/hoopstats/propcast/internal/trainer"
)

const connectTimeout = 10 * time.Second

// backends are the optional external stores. A nil field is not configured.
type backends struct {
	chConn     driver.Conn
	clickhouse *store.ClickHouse
	pg         *pgxpool.Pool
	redis      *redis.Client
	snapshot   *store.RedisSnapshot
}

// connect opens every configured store. When required, a missing URL or a failed
// connection is fatal; otherwise the store is left out with a warning.
func (a *app) connect(ctx context.Context, required bool) (*backends, error) {
	if required {
		if err := a.cfg.RequireStores(); err != nil {
			return nil, err
		}
	}
	log := a.logger.Sugar()
	b := &backends{}

	fail := func(name string, err error) error {
		if required {
			b.Close()
			return fmt.Errorf("connecting to %s: %w", name, err)
		}
		log.Warnw("Store unavailable, continuing without it", "store", name, "error", err)
		return nil
	}

	if a.cfg.ClickHouseURL != "" {
		if err := b.openClickHouse(ctx, a); err != nil {
			if err := fail("clickhouse", err); err != nil {
				return nil, err
			}
		}
	}
	if a.cfg.PostgresURL != "" {
		if err := b.openPostgres(ctx, a); err != nil {
			if err := fail("postgres", err); err != nil {
				return nil, err
			}
		}
	}
	if a.cfg.RedisURL != "" {
		if err := b.openRedis(ctx, a); err != nil {
			if err := fail("redis", err); err != nil {
				return nil, err
			}
		}
	}
	return b, nil
}

func (b *backends) openClickHouse(ctx context.Context, a *app) error {
	opts, err := clickhouse.ParseDSN(a.cfg.ClickHouseURL)
	if err != nil {
		return err
	}
	conn, err := clickhouse.Open(opts)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	ch := store.NewClickHouse(conn, a.cfg.Season, a.logger)
	if err := ch.Ping(ctx); err != nil {
		conn.Close()
		return err
	}
	if err := ch.EnsureSchema(ctx); err != nil {
		conn.Close()
		return err
	}
	b.chConn, b.clickhouse = conn, ch
	return nil
}

func (b *backends) openPostgres(ctx context.Context, a *app) error {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, a.cfg.PostgresURL)
	if err != nil {
		return err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return err
	}
	b.pg = pool
	return nil
}

func (b *backends) openRedis(ctx context.Context, a *app) error {
	opts, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		return err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return err
	}
	b.redis = client
	b.snapshot = store.NewRedisSnapshot(client, a.cfg.SnapshotTTL, a.logger)
	return nil
}

func (b *backends) Close() {
	if b.chConn != nil {
		b.chConn.Close()
	}
	if b.pg != nil {
		b.pg.Close()
	}
	if b.redis != nil {
		b.redis.Close()
	}
}

// artifactStore keeps models in Postgres when it is connected, on disk otherwise.
func (a *app) artifactStore(ctx context.Context, b *backends) (artifact.Store, error) {
	if b.pg == nil {
		return artifact.NewFile(a.cfg.ModelDir), nil
	}
	pg := artifact.NewPostgres(b.pg)
	if err := pg.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return pg, nil
}

func (a *app) sourceClient() *source.Client {
	return source.New(a.cfg.SourceConfig(), a.logger)
}

func (a *app) staticPath() string {
	if a.cfg.StaticDatasetPath != "" {
		return a.cfg.StaticDatasetPath
	}
	return a.cfg.DatasetPath
}

// featureChain orders the retrieval tiers: ClickHouse, the live provider,
// the Redis snapshot, then the static dataset file.
func (a *app) featureChain(b *backends, client *source.Client) *store.Chain {
	tiers := []store.Tier{}
	if b.clickhouse != nil {
		tiers = append(tiers, store.Tier{Name: "clickhouse", Store: b.clickhouse})
	}
	if client != nil {
		live := source.NewLiveStore(client, a.cfg.Season, a.cfg.RetryPolicy(), a.cfg.FeatureOptions(), a.logger)
		tiers = append(tiers, store.Tier{Name: "live", Store: live})
	}
	if b.snapshot != nil {
		tiers = append(tiers, store.Tier{Name: "redis", Store: b.snapshot})
	}
	tiers = append(tiers, store.Tier{Name: "static", Store: store.NewStatic(a.staticPath())})
	return store.NewChain(a.logger, tiers...)
}

// pipeline writes to the dataset file (required) and to every connected store.
func (a *app) pipeline(b *backends, client *source.Client) *ingest.Pipeline {
	sinks := []ingest.Sink{
		{Name: "file", Writer: dataset.FileSink{Path: a.cfg.DatasetPath}, Required: true},
	}
	if b.clickhouse != nil {
		sinks = append(sinks, ingest.Sink{Name: "clickhouse", Writer: b.clickhouse})
	}
	if b.snapshot != nil {
		sinks = append(sinks, ingest.Sink{Name: "redis", Writer: b.snapshot})
	}
	return ingest.NewPipeline(client, ingest.Config{
		Workers:  a.cfg.WorkerCount,
		Retry:    a.cfg.RetryPolicy(),
		Features: a.cfg.FeatureOptions(),
	}, a.logger, sinks...)
}

// train fits every category from the dataset file.
func (a *app) train(ctx context.Context, artifacts artifact.Store, path string) error {
	ds, err := dataset.ReadFile(path)
	if err != nil {
		return err
	}
	reports, err := trainer.New(a.cfg.TrainerConfig(), artifacts, a.logger).TrainAll(ctx, ds)
	if err != nil {
		return err
	}
	a.logger.Sugar().Infow("Training finished", "models", len(reports), "dataset", path)
	return nil
}
