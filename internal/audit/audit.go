// Package audit persists consistency runs, detected conflicts and applied fixes.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatehouse-fm/gatehouse/internal/platform/httpx"
	"github.com/gatehouse-fm/gatehouse/internal/rolegraph"
)

// Run summarizes one consistency sweep.
type Run struct {
	ID              string    `json:"id"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	AccountsChecked int       `json:"accounts_checked"`
	ConflictsFound  int       `json:"conflicts_found"`
}

// ConflictRecord stores one detected conflict with its witnesses and the
// suggested removal set at detection time.
type ConflictRecord struct {
	RunID      string                     `json:"run_id"`
	AccountID  string                     `json:"account_id"`
	Partitions []string                   `json:"partitions"`
	Witnesses  map[string]rolegraph.Chain `json:"witnesses"`
	Suggested  []string                   `json:"suggested"`
}

// Resolution records roles actually removed from an account.
type Resolution struct {
	AccountID    string    `json:"account_id"`
	RemovedRoles []string  `json:"removed_roles"`
	AppliedBy    string    `json:"applied_by"`
	AppliedAt    time.Time `json:"applied_at"`
}

// Recorder writes run, conflict and resolution rows.
type Recorder struct {
	pool *pgxpool.Pool
}

// NewRecorder returns a new Recorder.
func NewRecorder(pool *pgxpool.Pool) *Recorder {
	return &Recorder{pool: pool}
}

// RecordRun persists a finished sweep and its conflicts.
func (r *Recorder) RecordRun(ctx context.Context, run Run, conflicts []ConflictRecord) error {
	if r == nil {
		return errors.New("audit recorder not initialised")
	}
	if run.ID == "" {
		return errors.New("audit run requires an id")
	}
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO check_runs (id, started_at, finished_at, accounts_checked, conflicts_found)
			VALUES ($1, $2, $3, $4, $5)`,
			run.ID, run.StartedAt, run.FinishedAt, run.AccountsChecked, run.ConflictsFound); err != nil {
			return err
		}
		for _, c := range conflicts {
			witnesses, err := json.Marshal(c.Witnesses)
			if err != nil {
				return err
			}
			suggested, err := json.Marshal(c.Suggested)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO check_conflicts (run_id, account_id, partitions, witnesses, suggested)
				VALUES ($1, $2, $3, $4, $5)`,
				c.RunID, c.AccountID, c.Partitions, witnesses, suggested); err != nil {
				return err
			}
		}
		return nil
	})
}

// RecordResolution persists an applied removal.
func (r *Recorder) RecordResolution(ctx context.Context, res Resolution) error {
	if r == nil {
		return errors.New("audit recorder not initialised")
	}
	if res.AccountID == "" || len(res.RemovedRoles) == 0 {
		return errors.New("audit resolution requires account and roles")
	}
	removed, err := json.Marshal(res.RemovedRoles)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO resolution_log (account_id, removed_roles, applied_by, applied_at)
		VALUES ($1, $2, $3, COALESCE($4, NOW()))`,
		res.AccountID, removed, res.AppliedBy, nullTime(res.AppliedAt))
	return err
}

// ListRuns returns the most recent runs, newest first.
func (r *Recorder) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, started_at, finished_at, accounts_checked, conflicts_found
		FROM check_runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.AccountsChecked, &run.ConflictsFound); err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// GetRun fetches a run and its conflicts.
func (r *Recorder) GetRun(ctx context.Context, id string) (Run, []ConflictRecord, error) {
	var run Run
	err := r.pool.QueryRow(ctx, `
		SELECT id, started_at, finished_at, accounts_checked, conflicts_found
		FROM check_runs WHERE id = $1`, id).
		Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.AccountsChecked, &run.ConflictsFound)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Run{}, nil, httpx.ErrNotFound
		}
		return Run{}, nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT run_id, account_id, partitions, witnesses, suggested
		FROM check_conflicts
		WHERE run_id = $1
		ORDER BY account_id`, id)
	if err != nil {
		return Run{}, nil, err
	}
	defer rows.Close()
	var conflicts []ConflictRecord
	for rows.Next() {
		var c ConflictRecord
		var witnesses, suggested []byte
		if err := rows.Scan(&c.RunID, &c.AccountID, &c.Partitions, &witnesses, &suggested); err != nil {
			return Run{}, nil, err
		}
		if err := json.Unmarshal(witnesses, &c.Witnesses); err != nil {
			return Run{}, nil, err
		}
		if err := json.Unmarshal(suggested, &c.Suggested); err != nil {
			return Run{}, nil, err
		}
		conflicts = append(conflicts, c)
	}
	return run, conflicts, rows.Err()
}

func withTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
