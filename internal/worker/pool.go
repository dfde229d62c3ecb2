// Package worker implements the bounded worker pool used for per-athlete fetches.
// The pool width is the only parallelism in ingestion and keeps the upstream
// provider from being hammered by unbounded concurrency.

package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/hoopstats/propcast/internal/models"
)

// Prometheus metrics
var (
	jobsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "propcast_worker_jobs_enqueued_total",
		Help: "Total number of athlete jobs enqueued",
	})

	jobsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "propcast_worker_jobs_processed_total",
		Help: "Total number of athlete jobs completed successfully",
	})

	jobsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "propcast_worker_jobs_failed_total",
		Help: "Total number of athlete jobs that failed",
	})

	jobsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "propcast_worker_jobs_dropped_total",
		Help: "Total number of athlete jobs dropped because the pool was stopping",
	})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "propcast_worker_queue_depth",
		Help: "Current depth of the worker queue",
	})

	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "propcast_worker_job_duration_seconds",
		Help:    "Duration of a single athlete job including retries",
		Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 20, 40, 80},
	})
)

// DefaultWorkerCount bounds concurrent upstream fetches.
const DefaultWorkerCount = 10

// Job represents a unit of work for the worker pool
type Job struct {
	Index     int
	Athlete   models.Athlete
	Season    string
	Timestamp time.Time
}

// Handler processes one job. A returned error is logged and counted; it never stops the pool.
type Handler func(ctx context.Context, job Job) error

// PoolConfig configures the worker pool
type PoolConfig struct {
	WorkerCount int
	QueueSize   int
	Logger      *zap.Logger
}

// Pool manages a fixed set of workers draining a buffered job queue
type Pool struct {
	config   PoolConfig
	handler  Handler
	jobQueue chan Job
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *zap.SugaredLogger

	stopOnce sync.Once
	mu       sync.RWMutex
	closed   bool
}

// NewPool creates a new worker pool
func NewPool(cfg PoolConfig, handler Handler) *Pool {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultWorkerCount
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.WorkerCount * 4
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Pool{
		config:   cfg,
		handler:  handler,
		jobQueue: make(chan Job, cfg.QueueSize),
		logger:   cfg.Logger.Sugar(),
	}
}

// Start launches the worker goroutines
func (p *Pool) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < p.config.WorkerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	go p.reportQueueDepth()

	p.logger.Infow("Worker pool started",
		"workers", p.config.WorkerCount,
		"queueSize", p.config.QueueSize,
	)
}

// Stop closes the queue and waits for queued jobs to finish.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.logger.Info("Stopping worker pool...")

		p.mu.Lock()
		p.closed = true
		close(p.jobQueue)
		p.mu.Unlock()

		p.wg.Wait()
		if p.cancel != nil {
			p.cancel()
		}
		p.logger.Info("Worker pool stopped")
	})
}

// Enqueue adds a job to the queue. Blocks while the queue is full.
// Returns false if the pool is stopped or its context is done.
func (p *Pool) Enqueue(job Job) bool {
	if job.Timestamp.IsZero() {
		job.Timestamp = time.Now()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		jobsDropped.Inc()
		return false
	}

	select {
	case p.jobQueue <- job:
		jobsEnqueued.Inc()
		return true
	case <-p.ctx.Done():
		p.logger.Warnw("Worker pool context canceled, dropping job", "athlete", job.Athlete.Name)
		jobsDropped.Inc()
		return false
	}
}

// TryEnqueue adds a job without blocking.
func (p *Pool) TryEnqueue(job Job) bool {
	if job.Timestamp.IsZero() {
		job.Timestamp = time.Now()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		jobsDropped.Inc()
		return false
	}

	select {
	case p.jobQueue <- job:
		jobsEnqueued.Inc()
		return true
	default:
		jobsDropped.Inc()
		return false
	}
}

// QueueDepth returns current queue size
func (p *Pool) QueueDepth() int {
	return len(p.jobQueue)
}

// worker processes jobs until the queue is closed
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobQueue {
		start := time.Now()
		err := p.run(job)
		jobDuration.Observe(time.Since(start).Seconds())

		if err != nil {
			jobsFailed.Inc()
			p.logger.Warnw("Job failed",
				"worker", id,
				"athlete", job.Athlete.Name,
				"error", err,
			)
			continue
		}
		jobsProcessed.Inc()
	}
}

// run shields the pool from a panicking handler
func (p *Pool) run(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return p.handler(p.ctx, job)
}

func (p *Pool) reportQueueDepth() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			queueDepth.Set(float64(len(p.jobQueue)))
		case <-p.ctx.Done():
			queueDepth.Set(0)
			return
		}
	}
}
