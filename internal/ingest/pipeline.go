// Package ingest builds the season dataset from the upstream provider and
// hands it to the configured sinks.
package ingest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/hoopstats/propcast/internal/dataset"
	"github.com/hoopstats/propcast/internal/features"
	"github.com/hoopstats/propcast/internal/models"
	"github.com/hoopstats/propcast/internal/retry"
	"github.com/hoopstats/propcast/internal/source"
	"github.com/hoopstats/propcast/internal/store"
	"github.com/hoopstats/propcast/internal/worker"
)

var (
	fetchAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "propcast_fetch_attempts_total",
		Help: "Season log fetch attempts including retries",
	})

	fetchRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "propcast_fetch_retries_total",
		Help: "Season log fetches retried after a failure",
	})

	fetchExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "propcast_fetch_exhausted_total",
		Help: "Athletes dropped from a run after every fetch attempt failed",
	})

	datasetRows = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "propcast_dataset_rows",
		Help: "Rows in the most recently built dataset",
	})
)

// Fetcher is the part of the source client the pipeline needs.
type Fetcher interface {
	ActiveAthletes(ctx context.Context, season string) ([]models.Athlete, error)
	FetchSeasonLog(ctx context.Context, athleteID int64, season string) ([]models.RawRow, error)
}

// Sink receives the finished dataset. A failing Required sink fails the run.
type Sink struct {
	Name     string
	Writer   store.DatasetWriter
	Required bool
}

// Config configures a pipeline.
type Config struct {
	Workers  int
	Retry    retry.Policy
	Features features.Options
}

// RunResult summarizes one ingestion run.
type RunResult struct {
	RunID     string        `json:"run_id"`
	Season    string        `json:"season"`
	Athletes  int           `json:"athletes"`
	Succeeded []string      `json:"succeeded"`
	Failed    []string      `json:"failed"`
	Rows      int           `json:"rows"`
	Warnings  []string      `json:"warnings,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Pipeline fetches every active athlete through a bounded pool.
type Pipeline struct {
	fetcher Fetcher
	cfg     Config
	sinks   []Sink
	logger  *zap.SugaredLogger
	zlog    *zap.Logger
}

// NewPipeline creates a pipeline.
func NewPipeline(fetcher Fetcher, cfg Config, logger *zap.Logger, sinks ...Sink) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = worker.DefaultWorkerCount
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.NewPolicy(3, 5*time.Second)
	}
	if cfg.Retry.Retryable == nil {
		cfg.Retry.Retryable = source.IsRetryable
	}
	if cfg.Retry.WaitHint == nil {
		cfg.Retry.WaitHint = source.RetryAfter
	}
	return &Pipeline{
		fetcher: fetcher,
		cfg:     cfg,
		sinks:   sinks,
		logger:  logger.Sugar(),
		zlog:    logger,
	}
}

// frame is one athlete's completed unit of work
type frame struct {
	index    int
	athlete  string
	records  []models.GameRecord
	warnings []string
}

// BuildDataset fetches, annotates and aggregates every active athlete's season log.
// Athletes that fail are logged and left out; only a run where nobody yielded rows fails,
// with models.ErrNoData.
func (p *Pipeline) BuildDataset(ctx context.Context, season string) (*models.Dataset, *RunResult, error) {
	result := &RunResult{
		RunID:     uuid.NewString(),
		Season:    season,
		StartedAt: time.Now(),
	}

	athletes, err := p.fetcher.ActiveAthletes(ctx, season)
	if err != nil {
		return nil, result, fmt.Errorf("listing active athletes: %w", err)
	}
	result.Athletes = len(athletes)
	p.logger.Infow("Starting dataset build", "run", result.RunID, "season", season, "athletes", len(athletes), "workers", p.cfg.Workers)

	var (
		mu     sync.Mutex
		frames []frame
		failed []string
	)

	pool := worker.NewPool(worker.PoolConfig{WorkerCount: p.cfg.Workers, Logger: p.zlog}, func(ctx context.Context, job worker.Job) error {
		rows, err := p.fetch(ctx, job.Athlete, job.Season)
		if err != nil {
			fetchExhausted.Inc()
			p.logger.Warnw("Athlete fetch failed, continuing without it", "athlete", job.Athlete.Name, "error", err)
			mu.Lock()
			failed = append(failed, job.Athlete.Name)
			mu.Unlock()
			return err
		}

		annotated := features.Annotate(job.Athlete, rows, p.cfg.Features)
		for _, w := range annotated.Warnings {
			p.logger.Warnw("Annotation warning", "athlete", job.Athlete.Name, "warning", w)
		}

		mu.Lock()
		frames = append(frames, frame{
			index:    job.Index,
			athlete:  job.Athlete.Name,
			records:  annotated.Records,
			warnings: annotated.Warnings,
		})
		mu.Unlock()
		return nil
	})

	pool.Start(ctx)
	for i, a := range athletes {
		if !pool.Enqueue(worker.Job{Index: i, Athlete: a, Season: season}) {
			mu.Lock()
			failed = append(failed, a.Name)
			mu.Unlock()
		}
	}
	pool.Stop()

	sort.Slice(frames, func(i, j int) bool { return frames[i].index < frames[j].index })

	ds := &models.Dataset{Season: season}
	for _, f := range frames {
		result.Warnings = append(result.Warnings, f.warnings...)
		if len(f.records) == 0 {
			continue
		}
		result.Succeeded = append(result.Succeeded, f.athlete)
		ds.Records = append(ds.Records, f.records...)
	}
	sort.Strings(failed)
	result.Failed = failed
	result.Rows = len(ds.Records)
	result.Duration = time.Since(result.StartedAt)

	if len(ds.Records) == 0 {
		p.logger.Errorw("No athlete yielded data", "run", result.RunID, "season", season, "failed", len(failed))
		return nil, result, fmt.Errorf("%w: season %s, %d athletes attempted", models.ErrNoData, season, len(athletes))
	}

	ds.Columns = dataset.Columns(ds.Records)
	datasetRows.Set(float64(len(ds.Records)))
	p.logger.Infow("Dataset built",
		"run", result.RunID,
		"season", season,
		"rows", result.Rows,
		"succeeded", len(result.Succeeded),
		"failed", len(result.Failed),
		"duration", result.Duration,
	)
	return ds, result, nil
}

// Run builds the dataset and writes it to every sink.
func (p *Pipeline) Run(ctx context.Context, season string) (*RunResult, error) {
	ds, result, err := p.BuildDataset(ctx, season)
	if err != nil {
		return result, err
	}

	for _, s := range p.sinks {
		if err := s.Writer.WriteDataset(ctx, ds); err != nil {
			if s.Required {
				return result, fmt.Errorf("writing dataset to %s: %w", s.Name, err)
			}
			p.logger.Warnw("Dataset sink failed", "sink", s.Name, "run", result.RunID, "error", err)
			continue
		}
		p.logger.Infow("Dataset written", "sink", s.Name, "run", result.RunID, "rows", len(ds.Records))
	}
	return result, nil
}

func (p *Pipeline) fetch(ctx context.Context, a models.Athlete, season string) ([]models.RawRow, error) {
	policy := p.cfg.Retry
	onRetry := policy.OnRetry
	policy.OnRetry = func(attempt int, err error, wait time.Duration) {
		fetchRetries.Inc()
		p.logger.Warnw("Fetch failed, retrying", "athlete", a.Name, "attempt", attempt, "wait", wait, "error", err)
		if onRetry != nil {
			onRetry(attempt, err, wait)
		}
	}

	var rows []models.RawRow
	err := policy.Do(ctx, func(ctx context.Context) error {
		fetchAttempts.Inc()
		var err error
		rows, err = p.fetcher.FetchSeasonLog(ctx, a.ID, season)
		return err
	})
	return rows, err
}
