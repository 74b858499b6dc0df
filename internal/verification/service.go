package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/richxcame/rental-risk/pkg/common"
	"github.com/richxcame/rental-risk/pkg/eventbus"
	"github.com/richxcame/rental-risk/pkg/logger"
	"github.com/richxcame/rental-risk/pkg/security"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const eventSource = "verification-service"

// Service evaluates the verification gate and drives the verification lifecycle
type Service struct {
	repo         RepositoryInterface
	thresholds   Thresholds
	largePending decimal.Decimal
	publisher    eventbus.Publisher
	now          func() time.Time
}

// NewService creates a new verification service. publisher may be nil.
func NewService(repo RepositoryInterface, thresholds Thresholds, largePending decimal.Decimal, publisher eventbus.Publisher) *Service {
	return &Service{
		repo:         repo,
		thresholds:   thresholds,
		largePending: largePending,
		publisher:    publisher,
		now:          time.Now,
	}
}

func (s *Service) getBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("booking not found", nil)
		}
		return nil, common.NewStoreUnavailableError("failed to load booking", err)
	}
	return b, nil
}

func (s *Service) view(b *Booking, latest *TripCharge) *GateView {
	return &GateView{
		BookingID:          b.ID,
		BookingCode:        b.Code,
		VerificationStatus: b.VerificationStatus,
		Gate:               Evaluate(s.thresholds, b),
		Mode:               ModeFor(b.VerificationStatus),
		Charges:            EffectiveCharges(b, latest),
	}
}

// GetGate evaluates the gate for one booking
func (s *Service) GetGate(ctx context.Context, bookingID uuid.UUID) (*GateView, error) {
	b, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	latest, err := s.repo.GetLatestCharge(ctx, bookingID)
	if err != nil {
		return nil, common.NewStoreUnavailableError("failed to load trip charges", err)
	}
	return s.view(b, latest), nil
}

// ========================================
// QUEUE
// ========================================

// ListQueue returns one annotated page of the verification queue together with aggregate counts
func (s *Service) ListQueue(ctx context.Context, filter string, limit, offset int) (*Queue, int64, error) {
	statuses, ok := QueueStatuses(filter)
	if !ok {
		return nil, 0, common.NewBadRequestError(fmt.Sprintf("unknown status filter %q", filter), nil)
	}

	var (
		rows   []*QueueRow
		total  int64
		counts *QueueCounts
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, total, err = s.repo.ListQueue(gctx, QueueQuery{
			Thresholds: s.thresholds,
			Statuses:     statuses,
			LargePending: s.largePending,
			Limit:        limit,
			Offset:       offset,
		})
		return err
	})
	g.Go(func() error {
		var err error
		counts, err = s.repo.GetQueueCounts(gctx, s.thresholds)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, common.NewStoreUnavailableError("failed to load verification queue", err)
	}

	items := make([]*QueueItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, s.annotate(row))
	}
	return &Queue{Items: items, Counts: *counts}, total, nil
}

func (s *Service) annotate(row *QueueRow) *QueueItem {
	b := row.Booking
	charges := EffectiveCharges(b, row.LatestCharge)
	return &QueueItem{
		Booking: b,
		Mode:    ModeFor(b.VerificationStatus),
		Reason:  Evaluate(s.thresholds, b).Reason,
		Charges: charges,
		Urgency: Urgency{
			OpenDispute:        row.OpenDispute,
			FailedCharge:       row.FailedCharge,
			LargePendingAmount: charges.Total.GreaterThanOrEqual(s.largePending),
		},
	}
}

// ========================================
// TRANSITIONS
// ========================================

// RecordDocuments stamps the arrival of guest documents. Bookings the gate
// requires move to SUBMITTED; others keep their status.
func (s *Service) RecordDocuments(ctx context.Context, bookingID uuid.UUID, submittedAt *time.Time) (*GateView, error) {
	b, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	at := s.now().UTC()
	if submittedAt != nil {
		at = submittedAt.UTC()
	}

	from := b.VerificationStatus
	to := from
	if Evaluate(s.thresholds, b).Required {
		to = StatusSubmitted
	}
	if from.Terminal() || (to != from && !CanTransition(from, to)) {
		return nil, common.NewConflictError(fmt.Sprintf("cannot record documents for booking in status %s", from))
	}

	if err := s.repo.SetDocumentsSubmitted(ctx, bookingID, from, to, at); err != nil {
		return nil, s.transitionError(err, "failed to record documents")
	}

	s.logTransition(ctx, b, from, to, "documents_submitted")
	b.VerificationStatus = to
	b.DocumentsSubmittedAt = &at
	return s.view(b, nil), nil
}

// RecordTripEnd stores the return inspection and its charges. A non-zero
// computed or recorded total promotes the booking to PENDING_CHARGES when
// the lifecycle allows it.
func (s *Service) RecordTripEnd(ctx context.Context, bookingID uuid.UUID, req *TripEndRequest) (*GateView, error) {
	if _, ok := FuelQuarters(req.StartFuelLevel); !ok {
		return nil, common.NewBadRequestError("invalid start_fuel_level", nil)
	}
	if _, ok := FuelQuarters(req.EndFuelLevel); !ok {
		return nil, common.NewBadRequestError("invalid end_fuel_level", nil)
	}
	if req.EndOdometer < req.StartOdometer {
		return nil, common.NewBadRequestError("end_odometer is below start_odometer", nil)
	}

	b, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	latest, err := s.repo.GetLatestCharge(ctx, bookingID)
	if err != nil {
		return nil, common.NewStoreUnavailableError("failed to load trip charges", err)
	}

	endedAt := s.now().UTC()
	if req.EndedAt != nil {
		endedAt = req.EndedAt.UTC()
	}
	// A return time defaulted from an earlier trip end follows the new one.
	returnedAt := b.Trip.ActualReturnAt
	if returnedAt == nil || (b.Trip.EndedAt != nil && returnedAt.Equal(*b.Trip.EndedAt)) {
		returnedAt = &endedAt
	}
	tripStatus := "completed"
	b.Trip = Trip{
		Status:         &tripStatus,
		StartedAt:      b.Trip.StartedAt,
		EndedAt:        &endedAt,
		StartOdometer:  &req.StartOdometer,
		EndOdometer:    &req.EndOdometer,
		StartFuelLevel: &req.StartFuelLevel,
		EndFuelLevel:   &req.EndFuelLevel,
		ActualReturnAt: returnedAt,
		DamageReported: req.DamageReported,
	}

	replaces := latest.Replaceable()
	charges := EffectiveCharges(b, latest)
	if replaces {
		charges = ComputeCharges(b.Trip, b.NumberOfDays, b.EndDate)
	}

	update := TripEndUpdate{
		BookingID:      bookingID,
		From:           b.VerificationStatus,
		To:             b.VerificationStatus,
		EndedAt:        endedAt,
		StartOdometer:  req.StartOdometer,
		EndOdometer:    req.EndOdometer,
		StartFuelLevel: req.StartFuelLevel,
		EndFuelLevel:   req.EndFuelLevel,
		DamageReported: req.DamageReported,
		PendingCharges: charges.Total,
	}
	if charges.Total.IsPositive() {
		if CanTransition(update.From, StatusPendingCharges) {
			update.To = StatusPendingCharges
		} else {
			logger.WithContext(ctx).Warn("verification: charges recorded on resolved booking",
				zap.String("booking_id", bookingID.String()),
				zap.String("status", string(update.From)),
				zap.String("total", charges.Total.StringFixed(2)),
			)
		}
	}
	// Charge records are append-only. A corrected computation is written as
	// a new record that supersedes the previous one.
	if charges.Source == SourceComputed {
		if (replaces && !charges.Matches(latest)) || (!replaces && charges.Total.IsPositive()) {
			update.NewCharge = &TripCharge{
				ID:            uuid.New(),
				BookingID:     bookingID,
				MileageCharge: charges.Mileage,
				FuelCharge:    charges.Fuel,
				LateCharge:    charges.Late,
				DamageCharge:  charges.Damage,
				Total:         charges.Total,
				Status:        ChargePending,
				Source:        SourceComputed,
			}
		}
	}

	if err := s.repo.SaveTripEnd(ctx, update); err != nil {
		return nil, s.transitionError(err, "failed to record trip end")
	}

	s.logTransition(ctx, b, update.From, update.To, "trip_ended")
	b.VerificationStatus = update.To
	b.PendingCharges = charges.Total
	return &GateView{
		BookingID:          b.ID,
		BookingCode:        b.Code,
		VerificationStatus: b.VerificationStatus,
		Gate:               Evaluate(s.thresholds, b),
		Mode:               ModeFor(b.VerificationStatus),
		Charges:            charges,
	}, nil
}

// Resolve applies an operator decision and stamps the reviewer
func (s *Service) Resolve(ctx context.Context, bookingID uuid.UUID, req *ResolveRequest, reviewerID uuid.UUID) (*Booking, error) {
	target, ok := Decision(req.Decision).Target()
	if !ok {
		return nil, common.NewBadRequestError(fmt.Sprintf("unknown decision %q", req.Decision), nil)
	}

	b, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	from := b.VerificationStatus
	if !CanTransition(from, target) {
		return nil, common.NewConflictError(fmt.Sprintf("cannot move booking from %s to %s", from, target))
	}

	at := s.now().UTC()
	notes := security.SanitizeNotes(req.Notes)
	err = s.repo.Resolve(ctx, ResolveUpdate{
		BookingID:  bookingID,
		From:       from,
		To:         target,
		ReviewerID: reviewerID,
		Notes:      notes,
		At:         at,
	})
	if err != nil {
		return nil, s.transitionError(err, "failed to resolve verification")
	}

	s.logTransition(ctx, b, from, target, "resolved")
	b.VerificationStatus = target
	b.ReviewedBy = &reviewerID
	b.ReviewedAt = &at
	b.VerificationNotes = &notes
	if target == StatusCompleted {
		b.FlaggedForReview = false
	}

	s.publishResolved(ctx, b, reviewerID)
	return b, nil
}

func (s *Service) transitionError(err error, msg string) error {
	if errors.Is(err, ErrStatusChanged) {
		return common.NewConflictError("booking verification status changed, reload and retry")
	}
	return common.NewStoreUnavailableError(msg, err)
}

func (s *Service) logTransition(ctx context.Context, b *Booking, from, to Status, cause string) {
	logger.WithContext(ctx).Info("verification: status recorded",
		zap.String("booking_id", b.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("cause", cause),
	)
}

func (s *Service) publishResolved(ctx context.Context, b *Booking, reviewerID uuid.UUID) {
	if s.publisher == nil {
		return
	}
	event, err := eventbus.NewEvent(eventbus.SubjectVerificationResolved, eventSource, eventbus.VerificationResolvedData{
		BookingID: b.ID.String(),
		Status:    string(b.VerificationStatus),
		AdminID:   reviewerID.String(),
	})
	if err == nil {
		err = s.publisher.Publish(ctx, eventbus.SubjectVerificationResolved, event)
	}
	if err != nil {
		logger.WithContext(ctx).Error("verification: failed to publish resolution",
			zap.String("booking_id", b.ID.String()),
			zap.Error(err),
		)
	}
}
