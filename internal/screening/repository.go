package screening

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository persists screening stage records
type Repository struct {
	db DB
}

// NewRepository creates a new screening repository
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

var _ RepositoryInterface = (*Repository)(nil)

const stageColumns = `
	id, host_id, stage, position, status, next_run_at, attempted_at, completed_at,
	notes, created_at, updated_at`

func scanStage(row pgx.Row) (*StageRecord, error) {
	s := &StageRecord{}
	err := row.Scan(
		&s.ID, &s.HostID, &s.Stage, &s.Position, &s.Status, &s.NextRunAt, &s.AttemptedAt, &s.CompletedAt,
		&s.Notes, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func collectStages(rows pgx.Rows) ([]*StageRecord, error) {
	defer rows.Close()

	stages := make([]*StageRecord, 0)
	for rows.Next() {
		s, err := scanStage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan screening stage: %w", err)
		}
		stages = append(stages, s)
	}
	return stages, rows.Err()
}

// HostExists reports whether the host row exists
func (r *Repository) HostExists(ctx context.Context, hostID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM hosts WHERE id = $1)`, hostID).Scan(&exists)
	return exists, err
}

// ListStages returns the stages of a host in pipeline order
func (r *Repository) ListStages(ctx context.Context, hostID uuid.UUID) ([]*StageRecord, error) {
	query := `SELECT` + stageColumns + `
		FROM host_screening_stages
		WHERE host_id = $1
		ORDER BY position`

	rows, err := r.db.Query(ctx, query, hostID)
	if err != nil {
		return nil, fmt.Errorf("list screening stages: %w", err)
	}
	return collectStages(rows)
}

// ReplaceStages starts a fresh pipeline for the host
func (r *Repository) ReplaceStages(ctx context.Context, hostID uuid.UUID, stages []*StageRecord) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM host_screening_stages WHERE host_id = $1`, hostID); err != nil {
		return fmt.Errorf("delete previous stages: %w", err)
	}

	insert := `
		INSERT INTO host_screening_stages (id, host_id, stage, position, status, next_run_at, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`
	for _, s := range stages {
		_, err := tx.Exec(ctx, insert, s.ID, hostID, s.Stage, s.Position, s.Status, s.NextRunAt, s.Notes, s.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert stage %s: %w", s.Stage, err)
		}
	}

	// a restarted pipeline revokes a previous verification
	_, err = tx.Exec(ctx, `UPDATE hosts SET is_verified = FALSE, verified_at = NULL, updated_at = NOW() WHERE id = $1`, hostID)
	if err != nil {
		return fmt.Errorf("reset host verification: %w", err)
	}

	return tx.Commit(ctx)
}

// ListDueStages returns pending stages, and in-progress stages whose lease expired, due at now
func (r *Repository) ListDueStages(ctx context.Context, now time.Time, limit int) ([]*StageRecord, error) {
	query := `SELECT` + stageColumns + `
		FROM host_screening_stages
		WHERE status IN ('pending', 'in_progress')
		  AND next_run_at IS NOT NULL
		  AND next_run_at <= $1
		ORDER BY next_run_at, position
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due screening stages: %w", err)
	}
	return collectStages(rows)
}

// ClaimStage marks a due stage in progress
func (r *Repository) ClaimStage(ctx context.Context, id uuid.UUID, at, leaseUntil time.Time) (bool, error) {
	query := `
		UPDATE host_screening_stages
		SET status = 'in_progress', attempted_at = $2, next_run_at = $3, updated_at = NOW()
		WHERE id = $1
		  AND status IN ('pending', 'in_progress')
		  AND next_run_at <= $2`

	tag, err := r.db.Exec(ctx, query, id, at, leaseUntil)
	if err != nil {
		return false, fmt.Errorf("claim screening stage: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// RescheduleStage puts a stage whose provider call failed back to pending
func (r *Repository) RescheduleStage(ctx context.Context, id uuid.UUID, nextRunAt time.Time, notes string) error {
	query := `
		UPDATE host_screening_stages
		SET status = 'pending', next_run_at = $2, notes = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'in_progress'`

	tag, err := r.db.Exec(ctx, query, id, nextRunAt, notes)
	if err != nil {
		return fmt.Errorf("reschedule screening stage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStageNotClaimed
	}
	return nil
}

// CompleteStage records a verdict and applies it to the rest of the pipeline
// in one transaction: the next stage is scheduled, later stages are skipped,
// or the host is marked verified.
func (r *Repository) CompleteStage(ctx context.Context, o Outcome) error {
	status := StatusFailed
	if o.Passed {
		status = StatusPassed
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE host_screening_stages
		SET status = $2, completed_at = $3, notes = $4, next_run_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'in_progress'`,
		o.Stage.ID, status, o.At, o.Notes,
	)
	if err != nil {
		return fmt.Errorf("update screening stage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStageNotClaimed
	}

	switch {
	case !o.Passed:
		_, err = tx.Exec(ctx, `
			UPDATE host_screening_stages
			SET status = 'skipped', next_run_at = NULL, notes = $3, updated_at = NOW()
			WHERE host_id = $1 AND position > $2 AND status = 'pending'`,
			o.Stage.HostID, o.Stage.Position, fmt.Sprintf("skipped after %s failed", o.Stage.Stage),
		)
		if err != nil {
			return fmt.Errorf("skip later stages: %w", err)
		}
	case o.Stage.Last():
		_, err = tx.Exec(ctx, `
			UPDATE hosts SET is_verified = TRUE, verified_at = $2, updated_at = NOW()
			WHERE id = $1`,
			o.Stage.HostID, o.At,
		)
		if err != nil {
			return fmt.Errorf("mark host verified: %w", err)
		}
	case o.NextRunAt != nil:
		_, err = tx.Exec(ctx, `
			UPDATE host_screening_stages
			SET next_run_at = $3, updated_at = NOW()
			WHERE host_id = $1 AND position = $2 AND status = 'pending'`,
			o.Stage.HostID, o.Stage.Position+1, *o.NextRunAt,
		)
		if err != nil {
			return fmt.Errorf("schedule next stage: %w", err)
		}
	}

	return tx.Commit(ctx)
}
