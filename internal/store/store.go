package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/shopflow/internal/observability"
	"github.com/xkilldash9x/shopflow/internal/results"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS shopflow_runs (
    run_id      TEXT PRIMARY KEY,
    scenario    TEXT NOT NULL,
    base_url    TEXT NOT NULL,
    browser     TEXT NOT NULL,
    status      TEXT NOT NULL,
    started_at  TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS shopflow_steps (
    run_id      TEXT NOT NULL REFERENCES shopflow_runs(run_id) ON DELETE CASCADE,
    step_index  INTEGER NOT NULL,
    step        TEXT NOT NULL,
    status      TEXT NOT NULL,
    started_at  TIMESTAMPTZ NOT NULL,
    duration_ms BIGINT NOT NULL,
    expectation TEXT NOT NULL,
    error       TEXT NOT NULL,
    screenshot  TEXT NOT NULL,
    PRIMARY KEY (run_id, step_index)
);`

const sqlInsertRun = `
INSERT INTO shopflow_runs (run_id, scenario, base_url, browser, status, started_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (run_id) DO UPDATE SET
    status = EXCLUDED.status,
    finished_at = EXCLUDED.finished_at;`

const sqlSelectSteps = `
SELECT step_index, step, status, started_at, duration_ms, expectation, error, screenshot
FROM shopflow_steps
WHERE run_id = $1
ORDER BY step_index ASC;`

var stepColumns = []string{"run_id", "step_index", "step", "status", "started_at", "duration_ms", "expectation", "error", "screenshot"}

// Store persists run results to PostgreSQL.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

var _ results.Sink = (*Store)(nil)

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		pool: pool,
		log:  logger.Named(observability.ComponentStore),
	}, nil
}

// EnsureSchema creates the result tables when they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// WriteRun stores the run row and all of its steps in one transaction.
func (s *Store) WriteRun(ctx context.Context, summary results.RunSummary) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if _, err := tx.Exec(ctx, sqlInsertRun,
		summary.RunID, summary.Scenario, summary.BaseURL, summary.Browser,
		string(summary.Status), summary.Started.UTC(), summary.Finished.UTC(),
	); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", summary.RunID, err)
	}

	if len(summary.Steps) > 0 {
		if err := s.persistSteps(ctx, tx, summary.RunID, summary.Steps); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug("Run persisted.", observability.RunID(summary.RunID), zap.Int("steps", len(summary.Steps)))
	return nil
}

func (s *Store) persistSteps(ctx context.Context, tx pgx.Tx, runID string, steps []results.StepResult) error {
	rows := make([][]any, len(steps))
	for i, st := range steps {
		rows[i] = []any{
			runID, st.Index, st.Step, string(st.Status),
			st.Started.UTC(), st.Duration.Milliseconds(),
			st.Expectation, st.Error, st.Screenshot,
		}
	}

	copyCount, err := tx.CopyFrom(ctx, pgx.Identifier{"shopflow_steps"}, stepColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy steps: %w", err)
	}
	if int(copyCount) != len(steps) {
		return fmt.Errorf("mismatch in copied steps count: expected %d, got %d", len(steps), copyCount)
	}
	return nil
}

// GetSteps returns the stored steps of a run in execution order.
func (s *Store) GetSteps(ctx context.Context, runID string) ([]results.StepResult, error) {
	rows, err := s.pool.Query(ctx, sqlSelectSteps, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}
	defer rows.Close()

	var steps []results.StepResult
	for rows.Next() {
		var (
			st         results.StepResult
			status     string
			durationMs int64
		)
		if err := rows.Scan(&st.Index, &st.Step, &status, &st.Started, &durationMs, &st.Expectation, &st.Error, &st.Screenshot); err != nil {
			return nil, fmt.Errorf("failed to scan step row: %w", err)
		}
		st.RunID = runID
		st.Status = results.Status(status)
		st.Duration = time.Duration(durationMs) * time.Millisecond
		steps = append(steps, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating step rows: %w", err)
	}
	return steps, nil
}
