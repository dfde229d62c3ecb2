package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hoopstats/propcast/internal/logic"
	"github.com/hoopstats/propcast/internal/store"
)

// Pinger is a dependency checked by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// RunFunc runs one generate-and-train job.
type RunFunc func(ctx context.Context, runID string) error

type Config struct {
	Store          store.FeatureStore
	Prediction     logic.PredictionService
	Recommendation logic.RecommendationService
	Checks         map[string]Pinger
	Logger         *zap.Logger

	// GenerateAndTrain runs ingestion then training. Nil disables the admin endpoint.
	GenerateAndTrain RunFunc
	// JobContext bounds background jobs; defaults to context.Background().
	JobContext context.Context

	AllowedOrigins []string
}

type Handler struct {
	store          store.FeatureStore
	prediction     logic.PredictionService
	recommendation logic.RecommendationService
	checks         map[string]Pinger
	logger         *zap.SugaredLogger
	validator      *validator.Validate
	origins        []string

	runJob RunFunc
	jobCtx context.Context

	runMu   sync.Mutex
	lastRun *RunStatus
	jobs    sync.WaitGroup
}

func New(cfg Config) *Handler {
	jobCtx := cfg.JobContext
	if jobCtx == nil {
		jobCtx = context.Background()
	}
	return &Handler{
		store:          cfg.Store,
		prediction:     cfg.Prediction,
		recommendation: cfg.Recommendation,
		checks:         cfg.Checks,
		logger:         cfg.Logger.Sugar(),
		validator:      validator.New(),
		origins:        cfg.AllowedOrigins,
		runJob:         cfg.GenerateAndTrain,
		jobCtx:         jobCtx,
	}
}

// Routes builds the HTTP router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Minute))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/predict/{category}/{athlete}/{opponent}", h.Predict)
		r.Get("/predict-{category}/{athlete}/{opponent}/{threshold}", h.PredictLegacy)

		r.Get("/recommend/similar/{athlete}", h.RecommendSimilar)
		r.Get("/recommend/teammates/{category}/{athlete}/{opponent}", h.RecommendTeammates)

		r.Get("/player-names", h.PlayerNames)
		r.Get("/team-names", h.TeamNames)

		r.Post("/generate-and-train", h.GenerateAndTrain)
		r.Get("/generate-and-train/status", h.GenerateAndTrainStatus)
	})

	return r
}

// Wait blocks until background jobs started by the handler finish.
func (h *Handler) Wait() {
	h.jobs.Wait()
}
