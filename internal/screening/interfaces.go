package screening

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrStageNotClaimed is returned when completing a stage that is no longer in progress
var ErrStageNotClaimed = errors.New("screening stage is not in progress")

// DB is the subset of *pgxpool.Pool used by the repository
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// RepositoryInterface defines the storage operations of the screening pipeline
type RepositoryInterface interface {
	HostExists(ctx context.Context, hostID uuid.UUID) (bool, error)
	ListStages(ctx context.Context, hostID uuid.UUID) ([]*StageRecord, error)
	// ReplaceStages drops any previous records of the host and inserts stages
	ReplaceStages(ctx context.Context, hostID uuid.UUID, stages []*StageRecord) error
	ListDueStages(ctx context.Context, now time.Time, limit int) ([]*StageRecord, error)
	// ClaimStage moves a due stage to in_progress until leaseUntil; false when
	// another worker got it first
	ClaimStage(ctx context.Context, id uuid.UUID, at, leaseUntil time.Time) (bool, error)
	RescheduleStage(ctx context.Context, id uuid.UUID, nextRunAt time.Time, notes string) error
	CompleteStage(ctx context.Context, o Outcome) error
}

// Checker runs one background check against a provider
type Checker interface {
	Check(ctx context.Context, stage *StageRecord) (*CheckResult, error)
}
