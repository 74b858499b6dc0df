package verification

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// ErrStatusChanged is returned when a conditional status update finds the
// booking no longer in the expected status
var ErrStatusChanged = errors.New("verification status changed concurrently")

// DB is the subset of *pgxpool.Pool used by the repository
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// QueueQuery selects one page of the verification queue
type QueueQuery struct {
	Thresholds Thresholds
	// Statuses is nil for every status
	Statuses []Status
	// LargePending is the pending total at which a row counts as urgent
	LargePending decimal.Decimal
	Limit        int
	Offset       int
}

// TripEndUpdate persists a return inspection and its status move atomically
type TripEndUpdate struct {
	BookingID      uuid.UUID
	From           Status
	To             Status
	EndedAt        time.Time
	StartOdometer  int
	EndOdometer    int
	StartFuelLevel string
	EndFuelLevel   string
	DamageReported bool
	PendingCharges decimal.Decimal
	// NewCharge is inserted for a first non-zero computed total, or to supersede
	// a pending computed record whose amounts changed
	NewCharge *TripCharge
}

// ResolveUpdate stamps an operator decision
type ResolveUpdate struct {
	BookingID  uuid.UUID
	From       Status
	To         Status
	ReviewerID uuid.UUID
	Notes      string
	At         time.Time
}

// RepositoryInterface defines the contract for verification repository operations
type RepositoryInterface interface {
	// Reads
	GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error)
	GetLatestCharge(ctx context.Context, bookingID uuid.UUID) (*TripCharge, error)
	ListQueue(ctx context.Context, q QueueQuery) ([]*QueueRow, int64, error)
	GetQueueCounts(ctx context.Context, t Thresholds) (*QueueCounts, error)

	// Conditional transitions; ErrStatusChanged when the booking moved meanwhile
	SetDocumentsSubmitted(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) error
	SaveTripEnd(ctx context.Context, u TripEndUpdate) error
	Resolve(ctx context.Context, u ResolveUpdate) error
}
