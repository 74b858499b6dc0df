package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Repository handles verification queries against the signal store
type Repository struct {
	db DB
}

// NewRepository creates a new verification repository
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

var _ RepositoryInterface = (*Repository)(nil)

const bookingSelect = `
	SELECT b.id, b.code, b.status, b.start_date, b.end_date, b.number_of_days, b.total_amount,
		c.id, c.host_id, c.car_type, c.daily_rate, c.instant_book, h.is_verified,
		b.verification_status, b.documents_submitted_at, b.reviewed_by, b.reviewed_at,
		b.verification_notes, b.flagged_for_review, b.is_fraudulent,
		b.trip_status, b.trip_started_at, b.trip_ended_at, b.start_odometer, b.end_odometer,
		b.start_fuel_level, b.end_fuel_level, b.actual_return_at, b.damage_reported,
		b.pending_charges, b.created_at`

const bookingFrom = `
	FROM bookings b
	JOIN cars c ON c.id = b.car_id
	JOIN hosts h ON h.id = c.host_id`

// queueMembership is the gate predicate plus bookings holding pending charges.
// $1 luxury rate, $2 exotic types, $3 high value total, $4 long trip days.
const queueMembership = `(
	NOT c.instant_book
	OR c.daily_rate >= $1
	OR UPPER(c.car_type) = ANY($2)
	OR b.total_amount >= $3
	OR NOT h.is_verified
	OR b.number_of_days >= $4
	OR b.pending_charges > 0
)`

func membershipArgs(t Thresholds) []any {
	return []any{t.LuxuryDailyRate, t.ExoticCarTypes(), t.HighValueTotal, t.LongTripDays}
}

func bookingDest(b *Booking, status *string) []any {
	return []any{
		&b.ID, &b.Code, &b.Status, &b.StartDate, &b.EndDate, &b.NumberOfDays, &b.TotalAmount,
		&b.Car.ID, &b.Car.HostID, &b.Car.CarType, &b.Car.DailyRate, &b.Car.InstantBook, &b.Car.HostVerified,
		status, &b.DocumentsSubmittedAt, &b.ReviewedBy, &b.ReviewedAt,
		&b.VerificationNotes, &b.FlaggedForReview, &b.IsFraudulent,
		&b.Trip.Status, &b.Trip.StartedAt, &b.Trip.EndedAt, &b.Trip.StartOdometer, &b.Trip.EndOdometer,
		&b.Trip.StartFuelLevel, &b.Trip.EndFuelLevel, &b.Trip.ActualReturnAt, &b.Trip.DamageReported,
		&b.PendingCharges, &b.CreatedAt,
	}
}

// GetBooking returns the verification projection of a booking or pgx.ErrNoRows
func (r *Repository) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b := &Booking{}
	var status string
	err := r.db.QueryRow(ctx, bookingSelect+bookingFrom+` WHERE b.id = $1`, id).Scan(bookingDest(b, &status)...)
	if err != nil {
		return nil, err
	}
	b.VerificationStatus = Status(status)
	return b, nil
}

// GetLatestCharge returns the newest charge record of a booking, or nil when there is none
func (r *Repository) GetLatestCharge(ctx context.Context, bookingID uuid.UUID) (*TripCharge, error) {
	tc := &TripCharge{}
	var status, source string
	err := r.db.QueryRow(ctx, `
		SELECT id, booking_id, mileage_charge, fuel_charge, late_charge, damage_charge,
			total, status, source, failure_reason, created_at
		FROM trip_charges
		WHERE booking_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, bookingID).Scan(
		&tc.ID, &tc.BookingID, &tc.MileageCharge, &tc.FuelCharge, &tc.LateCharge, &tc.DamageCharge,
		&tc.Total, &status, &source, &tc.FailureReason, &tc.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest charge: %w", err)
	}
	tc.Status = ChargeStatus(status)
	tc.Source = ChargeSource(source)
	return tc, nil
}

func statusStrings(statuses []Status) []string {
	if statuses == nil {
		return nil
	}
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// ListQueue returns one page of queued bookings, urgent ones first, then oldest first.
// $5 status filter, $6 limit, $7 offset, $8 large pending amount.
func (r *Repository) ListQueue(ctx context.Context, q QueueQuery) ([]*QueueRow, int64, error) {
	args := append(membershipArgs(q.Thresholds), statusStrings(q.Statuses))
	where := ` WHERE ` + queueMembership + ` AND ($5::text[] IS NULL OR b.verification_status = ANY($5))`

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*)`+bookingFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count queue: %w", err)
	}

	query := bookingSelect + `,
		lc.id, lc.mileage_charge, lc.fuel_charge, lc.late_charge, lc.damage_charge,
		lc.total, lc.status, lc.source, lc.failure_reason, lc.created_at,
		flags.open_dispute, flags.failed_charge` + bookingFrom + `
	LEFT JOIN LATERAL (
		SELECT tc.id, tc.mileage_charge, tc.fuel_charge, tc.late_charge, tc.damage_charge,
			tc.total, tc.status, tc.source, tc.failure_reason, tc.created_at
		FROM trip_charges tc
		WHERE tc.booking_id = b.id
		ORDER BY tc.created_at DESC, tc.id DESC
		LIMIT 1
	) lc ON TRUE
	CROSS JOIN LATERAL (
		SELECT
			EXISTS (SELECT 1 FROM disputes d WHERE d.booking_id = b.id AND d.status IN ('open', 'under_review')) AS open_dispute,
			EXISTS (SELECT 1 FROM trip_charges f WHERE f.booking_id = b.id AND f.status = 'failed') AS failed_charge
	) flags` + where + `
	ORDER BY (flags.open_dispute OR flags.failed_charge OR b.pending_charges >= $8) DESC, b.created_at, b.id
	LIMIT $6 OFFSET $7`

	rows, err := r.db.Query(ctx, query, append(args, q.Limit, q.Offset, q.LargePending)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query queue: %w", err)
	}
	defer rows.Close()

	items := []*QueueRow{}
	for rows.Next() {
		b := &Booking{}
		var (
			status        string
			chargeID      *uuid.UUID
			mileage       decimal.NullDecimal
			fuel          decimal.NullDecimal
			late          decimal.NullDecimal
			damage        decimal.NullDecimal
			chargeTotal   decimal.NullDecimal
			chargeStatus  *string
			chargeSource  *string
			failureReason *string
			chargedAt     *time.Time
			row           QueueRow
		)
		dest := append(bookingDest(b, &status),
			&chargeID, &mileage, &fuel, &late, &damage,
			&chargeTotal, &chargeStatus, &chargeSource, &failureReason, &chargedAt,
			&row.OpenDispute, &row.FailedCharge,
		)
		if err := rows.Scan(dest...); err != nil {
			return nil, 0, fmt.Errorf("scan queue row: %w", err)
		}
		b.VerificationStatus = Status(status)
		row.Booking = b

		if chargeID != nil {
			row.LatestCharge = &TripCharge{
				ID:            *chargeID,
				BookingID:     b.ID,
				MileageCharge: mileage.Decimal,
				FuelCharge:    fuel.Decimal,
				LateCharge:    late.Decimal,
				DamageCharge:  damage.Decimal,
				Total:         chargeTotal.Decimal,
				FailureReason: failureReason,
			}
			if chargeStatus != nil {
				row.LatestCharge.Status = ChargeStatus(*chargeStatus)
			}
			if chargeSource != nil {
				row.LatestCharge.Source = ChargeSource(*chargeSource)
			}
			if chargedAt != nil {
				row.LatestCharge.CreatedAt = *chargedAt
			}
		}
		items = append(items, &row)
	}
	return items, total, rows.Err()
}

// GetQueueCounts returns the aggregate counts over every queued booking
func (r *Repository) GetQueueCounts(ctx context.Context, t Thresholds) (*QueueCounts, error) {
	query := `
	SELECT
		COUNT(*) FILTER (WHERE b.verification_status = 'SUBMITTED'),
		COUNT(*) FILTER (WHERE b.verification_status = 'PENDING_CHARGES'),
		COUNT(*) FILTER (WHERE b.verification_status = 'APPROVED'),
		COUNT(*) FILTER (WHERE b.verification_status = 'REJECTED'),
		COUNT(*) FILTER (WHERE b.verification_status = 'COMPLETED'),
		COUNT(*) FILTER (WHERE EXISTS (
			SELECT 1 FROM disputes d WHERE d.booking_id = b.id AND d.status IN ('open', 'under_review'))),
		COUNT(*) FILTER (WHERE EXISTS (
			SELECT 1 FROM trip_charges f WHERE f.booking_id = b.id AND f.status = 'failed'))` +
		bookingFrom + ` WHERE ` + queueMembership

	counts := &QueueCounts{}
	err := r.db.QueryRow(ctx, query, membershipArgs(t)...).Scan(
		&counts.PendingDocuments, &counts.PendingCharges, &counts.Approved,
		&counts.Rejected, &counts.Completed, &counts.Disputed, &counts.FailedCharges,
	)
	if err != nil {
		return nil, fmt.Errorf("count queue statuses: %w", err)
	}
	return counts, nil
}

// SetDocumentsSubmitted stamps the document arrival and moves from to to
func (r *Repository) SetDocumentsSubmitted(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE bookings
		SET verification_status = $3, documents_submitted_at = $4, updated_at = NOW()
		WHERE id = $1 AND verification_status = $2
	`, id, string(from), string(to), at)
	if err != nil {
		return fmt.Errorf("set documents submitted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusChanged
	}
	return nil
}

// SaveTripEnd writes the return inspection, the pending total, the status
// move and any new charge record in one transaction
func (r *Repository) SaveTripEnd(ctx context.Context, u TripEndUpdate) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE bookings
		SET trip_status = 'completed',
			trip_ended_at = $4,
			actual_return_at = CASE
				WHEN actual_return_at IS NULL OR actual_return_at = trip_ended_at THEN $4
				ELSE actual_return_at
			END,
			start_odometer = $5,
			end_odometer = $6,
			start_fuel_level = $7,
			end_fuel_level = $8,
			damage_reported = $9,
			pending_charges = $10,
			verification_status = $3,
			updated_at = NOW()
		WHERE id = $1 AND verification_status = $2
	`, u.BookingID, string(u.From), string(u.To), u.EndedAt,
		u.StartOdometer, u.EndOdometer, u.StartFuelLevel, u.EndFuelLevel, u.DamageReported, u.PendingCharges)
	if err != nil {
		return fmt.Errorf("update trip end: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusChanged
	}

	if c := u.NewCharge; c != nil {
		_, err = tx.Exec(ctx, `
			INSERT INTO trip_charges (id, booking_id, mileage_charge, fuel_charge, late_charge, damage_charge, total, status, source, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, clock_timestamp())
		`, c.ID, c.BookingID, c.MileageCharge, c.FuelCharge, c.LateCharge, c.DamageCharge, c.Total, string(c.Status), string(c.Source))
		if err != nil {
			return fmt.Errorf("insert trip charge: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit trip end: %w", err)
	}
	return nil
}

// Resolve stamps the reviewer and moves to a terminal status. COMPLETED clears the review flag.
func (r *Repository) Resolve(ctx context.Context, u ResolveUpdate) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE bookings
		SET verification_status = $3,
			reviewed_by = $4,
			reviewed_at = $5,
			verification_notes = $6,
			flagged_for_review = CASE WHEN $3 = 'COMPLETED' THEN FALSE ELSE flagged_for_review END,
			updated_at = NOW()
		WHERE id = $1 AND verification_status = $2
	`, u.BookingID, string(u.From), string(u.To), u.ReviewerID, u.At, u.Notes)
	if err != nil {
		return fmt.Errorf("resolve verification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusChanged
	}
	return nil
}
