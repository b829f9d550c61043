package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const taskResultsSchema = `
CREATE TABLE IF NOT EXISTS task_results (
	task_id    TEXT PRIMARY KEY,
	payload    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// Postgres is the production TaskStore. One row per task; a repeated
// Put for the same task ID overwrites the payload.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres ensures the task_results table exists on the given pool.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*Postgres, error) {
	if _, err := pool.Exec(ctx, taskResultsSchema); err != nil {
		return nil, fmt.Errorf("create task_results table: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Put(ctx context.Context, taskID string, payload json.RawMessage) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO task_results (task_id, payload)
		VALUES ($1, $2)
		ON CONFLICT (task_id)
		DO UPDATE SET payload = EXCLUDED.payload, updated_at = CURRENT_TIMESTAMP`,
		taskID, payload,
	)
	if err != nil {
		return fmt.Errorf("upsert task result %s: %w", taskID, err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, taskID string) (json.RawMessage, bool, error) {
	var payload json.RawMessage
	err := p.pool.QueryRow(ctx,
		`SELECT payload FROM task_results WHERE task_id = $1`, taskID,
	).Scan(&payload)
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read task result %s: %w", taskID, err)
	}
	return payload, true, nil
}
