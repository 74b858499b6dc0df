package risk

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool used by the repository
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// RepositoryInterface defines the signal store operations of the risk engine
type RepositoryInterface interface {
	GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error)
	GetRecentScores(ctx context.Context, limit int) ([]ScoreSample, error)
	FindRelated(ctx context.Context, field IdentifierField, value string, excludeID uuid.UUID, since time.Time, limit int) ([]RelatedBooking, error)
	CountSharingIdentifiers(ctx context.Context, ids Identifiers, since time.Time) (int, error)
	ApplyAdminAction(ctx context.Context, cmd AdminCommand) (*ActionResult, error)
	ListAuditEntries(ctx context.Context, bookingID uuid.UUID, limit, offset int) ([]*AuditEntry, int64, error)
	ListUnscoredBookings(ctx context.Context, limit int) ([]*Booking, error)
	SetScoreIfNull(ctx context.Context, id uuid.UUID, score float64) (bool, error)
}

// ScoreSampleSource supplies recent composite scores, newest first
type ScoreSampleSource interface {
	RecentScores(ctx context.Context) ([]ScoreSample, error)
}
