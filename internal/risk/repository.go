package risk

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository handles signal store reads and admin-action writes
type Repository struct {
	db DB
}

// NewRepository creates a new risk repository
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

var _ RepositoryInterface = (*Repository)(nil)

const bookingColumns = `
	id, code, status, total_amount,
	risk_score, risk_flags, device_fingerprint, ip_address, ip_country, ip_city,
	email, email_domain, session_duration_ms, interaction_count, copy_paste_used,
	validation_errors, cookies_enabled, phone_verified, email_verified,
	license_verified, selfie_verified,
	verification_status, flagged_for_review, is_fraudulent, created_at`

func scanBooking(row pgx.Row) (*Booking, error) {
	b := &Booking{}
	err := row.Scan(
		&b.ID, &b.Code, &b.Status, &b.TotalAmount,
		&b.RiskScore, &b.RiskFlags, &b.DeviceFingerprint, &b.IPAddress, &b.IPCountry, &b.IPCity,
		&b.Email, &b.EmailDomain, &b.SessionDurationMs, &b.InteractionCount, &b.CopyPasteUsed,
		&b.ValidationErrors, &b.CookiesEnabled, &b.PhoneVerified, &b.EmailVerified,
		&b.LicenseVerified, &b.SelfieVerified,
		&b.VerificationStatus, &b.FlaggedForReview, &b.IsFraudulent, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// GetBooking returns the risk projection of a booking or pgx.ErrNoRows
func (r *Repository) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	query := `SELECT` + bookingColumns + ` FROM bookings WHERE id = $1`
	return scanBooking(r.db.QueryRow(ctx, query, id))
}

// GetRecentScores returns the most recent non-zero scores of non-cancelled bookings
func (r *Repository) GetRecentScores(ctx context.Context, limit int) ([]ScoreSample, error) {
	query := `
		SELECT id, risk_score
		FROM bookings
		WHERE risk_score IS NOT NULL
		  AND risk_score > 0
		  AND status <> 'cancelled'
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent scores: %w", err)
	}
	defer rows.Close()

	samples := make([]ScoreSample, 0, limit)
	for rows.Next() {
		var s ScoreSample
		if err := rows.Scan(&s.BookingID, &s.Score); err != nil {
			return nil, fmt.Errorf("scan score sample: %w", err)
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

func identifierColumn(field IdentifierField) (string, error) {
	switch field {
	case FieldDeviceFingerprint:
		return "device_fingerprint", nil
	case FieldIPAddress:
		return "ip_address", nil
	case FieldEmail:
		return "email", nil
	}
	return "", fmt.Errorf("unknown identifier field %q", field)
}

// FindRelated returns other bookings sharing one identifier, newest first
func (r *Repository) FindRelated(ctx context.Context, field IdentifierField, value string, excludeID uuid.UUID, since time.Time, limit int) ([]RelatedBooking, error) {
	column, err := identifierColumn(field)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT code, created_at, status, total_amount
		FROM bookings
		WHERE %s = $1
		  AND id <> $2
		  AND created_at >= $3
		ORDER BY created_at DESC
		LIMIT $4
	`, column)

	rows, err := r.db.Query(ctx, query, value, excludeID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query related by %s: %w", column, err)
	}
	defer rows.Close()

	related := []RelatedBooking{}
	for rows.Next() {
		var rb RelatedBooking
		if err := rows.Scan(&rb.Code, &rb.CreatedAt, &rb.Status, &rb.TotalAmount); err != nil {
			return nil, fmt.Errorf("scan related booking: %w", err)
		}
		related = append(related, rb)
	}
	return related, rows.Err()
}

// CountSharingIdentifiers counts bookings of any status created since the
// given time that match at least one non-empty identifier.
func (r *Repository) CountSharingIdentifiers(ctx context.Context, ids Identifiers, since time.Time) (int, error) {
	if ids.Empty() {
		return 0, nil
	}

	args := []any{since}
	var clauses []string
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("device_fingerprint", ids.DeviceFingerprint)
	add("ip_address", ids.IPAddress)
	add("email", ids.Email)

	query := `SELECT COUNT(*) FROM bookings WHERE created_at >= $1 AND (` + strings.Join(clauses, " OR ") + `)`

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count velocity: %w", err)
	}
	return count, nil
}

// ApplyAdminAction locks the booking, applies the mutation and appends the
// audit row in one transaction. Nothing is written unless all steps succeed.
func (r *Repository) ApplyAdminAction(ctx context.Context, cmd AdminCommand) (*ActionResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		previousScore *float64
		fingerprint   *string
		ipAddress     *string
	)
	err = tx.QueryRow(ctx, `
		SELECT risk_score, device_fingerprint, ip_address
		FROM bookings
		WHERE id = $1
		FOR UPDATE
	`, cmd.BookingID).Scan(&previousScore, &fingerprint, &ipAddress)
	if err != nil {
		return nil, err
	}

	newScore := previousScore
	switch cmd.Action {
	case ActionOverrideRisk:
		newScore = cmd.NewScore
		_, err = tx.Exec(ctx, `
			UPDATE bookings
			SET risk_score = $2, admin_notes = $3, updated_at = NOW()
			WHERE id = $1
		`, cmd.BookingID, cmd.NewScore, cmd.Notes)
	case ActionWhitelist:
		_, err = tx.Exec(ctx, `
			UPDATE bookings
			SET flagged_for_review = FALSE, admin_notes = $2, updated_at = NOW()
			WHERE id = $1
		`, cmd.BookingID, cmd.Notes)
	case ActionMarkFalsePositive:
		_, err = tx.Exec(ctx, `
			UPDATE bookings
			SET is_fraudulent = FALSE, flagged_for_review = FALSE, admin_notes = $2, updated_at = NOW()
			WHERE id = $1
		`, cmd.BookingID, cmd.Notes)
	case ActionBlockDevice:
		// the block list itself lives with the device service
	default:
		return nil, fmt.Errorf("unsupported admin action %q", cmd.Action)
	}
	if err != nil {
		return nil, fmt.Errorf("apply %s: %w", cmd.Action, err)
	}

	entry := &AuditEntry{
		ID:            uuid.New(),
		BookingID:     cmd.BookingID,
		Action:        cmd.Action,
		Notes:         cmd.Notes,
		PreviousScore: previousScore,
		NewScore:      newScore,
		AdminID:       cmd.AdminID,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO risk_admin_audit (id, booking_id, action, notes, previous_score, new_score, admin_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, clock_timestamp())
		RETURNING seq, created_at
	`, entry.ID, entry.BookingID, string(entry.Action), entry.Notes, entry.PreviousScore, entry.NewScore, entry.AdminID).Scan(&entry.Sequence, &entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert audit entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit admin action: %w", err)
	}

	return &ActionResult{
		Audit:             entry,
		DeviceFingerprint: deref(fingerprint),
		IPAddress:         deref(ipAddress),
	}, nil
}

// ListAuditEntries returns a booking's audit trail, most recently applied first
func (r *Repository) ListAuditEntries(ctx context.Context, bookingID uuid.UUID, limit, offset int) ([]*AuditEntry, int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM risk_admin_audit WHERE booking_id = $1`, bookingID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, seq, booking_id, action, notes, previous_score, new_score, admin_id, created_at
		FROM risk_admin_audit
		WHERE booking_id = $1
		ORDER BY seq DESC
		LIMIT $2 OFFSET $3
	`, bookingID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	entries := []*AuditEntry{}
	for rows.Next() {
		e := &AuditEntry{}
		var action string
		if err := rows.Scan(&e.ID, &e.Sequence, &e.BookingID, &action, &e.Notes, &e.PreviousScore, &e.NewScore, &e.AdminID, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Action = AdminAction(action)
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

// ListUnscoredBookings returns queued bookings that have no composite score yet, oldest first
func (r *Repository) ListUnscoredBookings(ctx context.Context, limit int) ([]*Booking, error) {
	query := `SELECT` + bookingColumns + `
		FROM bookings
		WHERE risk_score IS NULL
		  AND status <> 'cancelled'
		  AND verification_status IN ('SUBMITTED', 'PENDING_CHARGES')
		ORDER BY created_at
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query unscored bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unscored booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// SetScoreIfNull persists a derived score unless one was stored meanwhile
func (r *Repository) SetScoreIfNull(ctx context.Context, id uuid.UUID, score float64) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE bookings
		SET risk_score = $2, updated_at = NOW()
		WHERE id = $1 AND risk_score IS NULL
	`, id, score)
	if err != nil {
		return false, fmt.Errorf("set derived score: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
