package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/hoopstats/propcast/internal/features"
	"github.com/hoopstats/propcast/internal/models"
	"github.com/hoopstats/propcast/internal/retry"
	"github.com/hoopstats/propcast/internal/source"
	"github.com/hoopstats/propcast/internal/trainer"
)

type Config struct {
	// Server
	Port int
	Env  string

	// CORS
	AllowedOrigins []string

	// Database URLs
	PostgresURL   string
	ClickHouseURL string
	RedisURL      string

	// Upstream stats provider
	Season                string
	UpstreamBaseURL       string
	UpstreamTimeout       time.Duration
	UpstreamRatePerSecond float64
	UpstreamBurst         int
	RosterCacheTTL        time.Duration

	// Ingestion
	WorkerCount        int
	FetchRetries       int
	FetchRetryDelay    time.Duration
	FetchRetryMaxDelay time.Duration
	FetchBackoff       retry.Backoff
	RollingWindow      int

	// Files
	DatasetPath       string
	StaticDatasetPath string
	ModelDir          string

	// Training
	TrainMode             models.ModelKind
	TrainSearch           bool
	TrainSearchIterations int
	TrainCVFolds          int
	TrainSeed             int64

	// Redis snapshot tier
	SnapshotTTL time.Duration
}

// Load loads configuration from environment variables, after an optional .env file.
// Store URLs are optional here; server mode checks them with RequireStores.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := &Config{
		Port: getEnvInt("PORT", 8080),
		Env:  getEnv("ENV", "development"),

		PostgresURL:   os.Getenv("POSTGRES_URL"),
		ClickHouseURL: os.Getenv("CLICKHOUSE_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),

		Season:                getEnv("SEASON", source.CurrentSeason(time.Now())),
		UpstreamBaseURL:       getEnv("UPSTREAM_BASE_URL", source.DefaultBaseURL),
		UpstreamTimeout:       getEnvDuration("UPSTREAM_TIMEOUT", 60*time.Second),
		UpstreamRatePerSecond: getEnvFloat("UPSTREAM_RATE_PER_SECOND", 2),
		UpstreamBurst:         getEnvInt("UPSTREAM_BURST", 1),
		RosterCacheTTL:        getEnvDuration("ROSTER_CACHE_TTL", 6*time.Hour),

		WorkerCount:        getEnvInt("WORKER_COUNT", 10),
		FetchRetries:       getEnvInt("FETCH_RETRIES", 3),
		FetchRetryDelay:    getEnvDuration("FETCH_RETRY_DELAY", 5*time.Second),
		FetchRetryMaxDelay: getEnvDuration("FETCH_RETRY_MAX_DELAY", 30*time.Second),
		FetchBackoff:       retry.Backoff(getEnv("FETCH_BACKOFF", string(retry.BackoffFixed))),
		RollingWindow:      getEnvInt("ROLLING_WINDOW", features.DefaultRollingWindow),

		DatasetPath:       getEnv("DATASET_PATH", "player_data.csv"),
		StaticDatasetPath: os.Getenv("STATIC_DATASET_PATH"),
		ModelDir:          getEnv("MODEL_DIR", "models"),

		TrainMode:             models.ModelKind(getEnv("TRAIN_MODE", string(models.KindClassifier))),
		TrainSearch:           getEnvBool("TRAIN_SEARCH", false),
		TrainSearchIterations: getEnvInt("TRAIN_SEARCH_ITERATIONS", 20),
		TrainCVFolds:          getEnvInt("TRAIN_CV_FOLDS", 3),
		TrainSeed:             int64(getEnvInt("TRAIN_SEED", 42)),

		SnapshotTTL: getEnvDuration("SNAPSHOT_TTL", 48*time.Hour),
	}

	// CORS
	origins := getEnv("ALLOWED_ORIGINS", "http://localhost:3000")
	rawOrigins := strings.Split(origins, ",")
	for _, o := range rawOrigins {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
		}
	}

	switch cfg.FetchBackoff {
	case retry.BackoffFixed, retry.BackoffExponential:
	default:
		return nil, fmt.Errorf("invalid FETCH_BACKOFF %q: want fixed or exponential", cfg.FetchBackoff)
	}
	switch cfg.TrainMode {
	case models.KindClassifier, models.KindRegressor:
	default:
		return nil, fmt.Errorf("invalid TRAIN_MODE %q: want classifier or regressor", cfg.TrainMode)
	}
	if cfg.FetchRetries < 1 {
		return nil, fmt.Errorf("invalid FETCH_RETRIES %d: need at least 1", cfg.FetchRetries)
	}

	return cfg, nil
}

// RequireStores fails when a store needed by the server is not configured.
func (c *Config) RequireStores() error {
	for _, kv := range []struct{ key, value string }{
		{"CLICKHOUSE_URL", c.ClickHouseURL},
		{"POSTGRES_URL", c.PostgresURL},
		{"REDIS_URL", c.RedisURL},
	} {
		if kv.value == "" {
			return fmt.Errorf("missing required environment variable: %s", kv.key)
		}
	}
	return nil
}

// SourceConfig builds the upstream client settings.
func (c *Config) SourceConfig() source.Config {
	sc := source.DefaultConfig()
	sc.BaseURL = c.UpstreamBaseURL
	sc.Timeout = c.UpstreamTimeout
	sc.RatePerSecond = c.UpstreamRatePerSecond
	sc.Burst = c.UpstreamBurst
	sc.RosterTTL = c.RosterCacheTTL
	return sc
}

// RetryPolicy builds the per-athlete fetch policy. Only rate-limited and
// unavailable upstream errors are retried, and an upstream-supplied wait is honoured.
func (c *Config) RetryPolicy() retry.Policy {
	p := retry.NewPolicy(c.FetchRetries, c.FetchRetryDelay)
	p.MaxDelay = c.FetchRetryMaxDelay
	p.Backoff = c.FetchBackoff
	p.Retryable = source.IsRetryable
	p.WaitHint = source.RetryAfter
	return p
}

// FeatureOptions builds the annotation options.
func (c *Config) FeatureOptions() features.Options {
	opts := features.DefaultOptions()
	if c.RollingWindow > 0 {
		opts.RollingWindow = c.RollingWindow
	}
	return opts
}

// TrainerConfig builds the training settings.
func (c *Config) TrainerConfig() trainer.Config {
	tc := trainer.DefaultConfig()
	tc.Kind = c.TrainMode
	tc.Search = c.TrainSearch
	tc.SearchIterations = c.TrainSearchIterations
	tc.CVFolds = c.TrainCVFolds
	tc.Seed = c.TrainSeed
	return tc
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
