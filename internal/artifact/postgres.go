package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hoopstats/propcast/internal/models"
)

// DBQuerier is the subset of pgxpool.Pool the store uses.
type DBQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const modelArtifactsSchema = `
	CREATE TABLE IF NOT EXISTS model_artifacts (
		category   TEXT PRIMARY KEY,
		kind       TEXT NOT NULL,
		payload    JSONB NOT NULL,
		report     JSONB NOT NULL,
		trained_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

// Postgres keeps the latest artifact per category in model_artifacts.
type Postgres struct {
	db DBQuerier
}

// NewPostgres creates a Postgres artifact store.
func NewPostgres(db DBQuerier) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates the model_artifacts table if needed.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, modelArtifactsSchema); err != nil {
		return fmt.Errorf("creating model_artifacts: %w", err)
	}
	return nil
}

func (p *Postgres) Save(ctx context.Context, m *Model) error {
	if err := validate(m); err != nil {
		return err
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", Name(m.Category), err)
	}
	report, err := json.Marshal(m.Report)
	if err != nil {
		return fmt.Errorf("encoding %s report: %w", Name(m.Category), err)
	}

	_, err = p.db.Exec(ctx, `
		INSERT INTO model_artifacts (category, kind, payload, report, trained_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (category) DO UPDATE SET
			kind = EXCLUDED.kind,
			payload = EXCLUDED.payload,
			report = EXCLUDED.report,
			trained_at = EXCLUDED.trained_at,
			updated_at = NOW()
	`, string(m.Category), string(m.Kind), payload, report, m.Report.TrainedAt)
	if err != nil {
		return fmt.Errorf("saving %s: %w", Name(m.Category), err)
	}
	return nil
}

func (p *Postgres) Load(ctx context.Context, c models.Category) (*Model, error) {
	var payload []byte
	err := p.db.QueryRow(ctx, `SELECT payload FROM model_artifacts WHERE category = $1`, string(c)).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrModelUnavailable, Name(c))
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", Name(c), err)
	}

	var m Model
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", Name(c), err)
	}
	if err := validate(&m); err != nil {
		return nil, err
	}
	return &m, nil
}
