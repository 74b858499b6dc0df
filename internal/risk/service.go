package risk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/richxcame/rental-risk/pkg/common"
	"github.com/richxcame/rental-risk/pkg/config"
	"github.com/richxcame/rental-risk/pkg/eventbus"
	"github.com/richxcame/rental-risk/pkg/logger"
	"github.com/richxcame/rental-risk/pkg/resilience"
	"github.com/richxcame/rental-risk/pkg/security"
	"github.com/richxcame/rental-risk/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// RelatedLookback bounds the relationship lookups
	RelatedLookback = 30 * 24 * time.Hour
	// RelatedLimit caps each relationship list
	RelatedLimit = 10

	defaultAnalysisTimeout = 5 * time.Second
	eventSource            = "risk-service"
)

// ServiceConfig holds the immutable tunables injected at construction
type ServiceConfig struct {
	Weights         Weights
	AnalysisTimeout time.Duration
	StoreBreaker    config.BreakerConfig
}

// Service computes risk analyses and applies admin actions
type Service struct {
	repo      RepositoryInterface
	samples   ScoreSampleSource
	publisher eventbus.Publisher
	breaker   *resilience.Breaker
	scorer    Scorer
	timeout   time.Duration
	tracer    trace.Tracer
	now       func() time.Time
}

// NewService creates a new risk service. publisher may be nil when the event bus is disabled.
func NewService(repo RepositoryInterface, samples ScoreSampleSource, publisher eventbus.Publisher, breaker *resilience.Breaker, cfg ServiceConfig) *Service {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(
			resilience.FromConfig("risk-store", cfg.StoreBreaker, pgx.ErrNoRows),
			resilience.GracefulDegradation("signal-store"),
		)
	}
	timeout := cfg.AnalysisTimeout
	if timeout <= 0 {
		timeout = defaultAnalysisTimeout
	}
	return &Service{
		repo:      repo,
		samples:   samples,
		publisher: publisher,
		breaker:   breaker,
		scorer:    NewScorer(cfg.Weights),
		timeout:   timeout,
		tracer:    tracing.Tracer("github.com/richxcame/rental-risk/internal/risk"),
		now:       time.Now,
	}
}

// guard runs a store call through the circuit breaker
func guard[T any](ctx context.Context, b *resilience.Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	out, err := b.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}
	v, ok := out.(T)
	if !ok {
		return zero, nil
	}
	return v, nil
}

// aborts reports errors that must fail the whole analysis rather than degrade one part
func aborts(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, resilience.ErrCircuitOpen)
}

// ========================================
// RISK ANALYSIS
// ========================================

// Analyze computes the full risk report for a booking. Sub-component failures
// degrade to defaults; store unavailability, timeouts and missing bookings fail the call.
func (s *Service) Analyze(ctx context.Context, bookingID uuid.UUID) (*Analysis, error) {
	start := s.now()
	ctx, span := s.tracer.Start(ctx, "risk.Analyze", trace.WithAttributes(attribute.String("booking.id", bookingID.String())))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	booking, err := s.getBooking(ctx, bookingID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	categories := s.scorer.Score(booking)
	score := CompositeScore(booking, categories)
	ids := booking.Identifiers()
	now := s.now()

	historical := NeutralComparison(0)
	related := RelatedBookings{ByDevice: []RelatedBooking{}, ByIP: []RelatedBooking{}, ByEmail: []RelatedBooking{}}
	var (
		count24, count7, count30 int

		mu       sync.Mutex
		degraded []string
	)

	g, gctx := errgroup.WithContext(ctx)

	// run executes one independent read; non-fatal errors leave the default in place
	run := func(component string, fn func(ctx context.Context) error) {
		g.Go(func() error {
			cctx, cspan := s.tracer.Start(gctx, "risk."+component)
			defer cspan.End()

			err := fn(cctx)
			if err == nil {
				return nil
			}
			cspan.RecordError(err)
			if aborts(gctx, err) {
				return fmt.Errorf("%s: %w", component, err)
			}

			logger.WithContext(ctx).Warn("risk: component degraded",
				zap.String("booking_id", bookingID.String()),
				zap.String("component", component),
				zap.Error(err),
			)
			degradedComponents.WithLabelValues(component).Inc()
			mu.Lock()
			degraded = append(degraded, component)
			mu.Unlock()
			return nil
		})
	}

	run("historical", func(ctx context.Context) error {
		samples, err := s.samples.RecentScores(ctx)
		if err != nil {
			return err
		}
		historical = Compare(score, sampleScores(samples, booking.ID))
		return nil
	})

	lookup := func(component string, field IdentifierField, value string, dst *[]RelatedBooking) {
		if value == "" {
			return
		}
		run(component, func(ctx context.Context) error {
			found, err := guard(ctx, s.breaker, func(ctx context.Context) ([]RelatedBooking, error) {
				return s.repo.FindRelated(ctx, field, value, booking.ID, now.Add(-RelatedLookback), RelatedLimit)
			})
			if err != nil {
				return err
			}
			if found != nil {
				*dst = found
			}
			return nil
		})
	}
	lookup("related_by_device", FieldDeviceFingerprint, ids.DeviceFingerprint, &related.ByDevice)
	lookup("related_by_ip", FieldIPAddress, ids.IPAddress, &related.ByIP)
	lookup("related_by_email", FieldEmail, ids.Email, &related.ByEmail)

	window := func(component string, d time.Duration, dst *int) {
		run(component, func(ctx context.Context) error {
			n, err := guard(ctx, s.breaker, func(ctx context.Context) (int, error) {
				return s.repo.CountSharingIdentifiers(ctx, ids, now.Add(-d))
			})
			if err != nil {
				return err
			}
			*dst = n
			return nil
		})
	}
	window("velocity_24h", Window24h, &count24)
	window("velocity_7d", Window7d, &count7)
	window("velocity_30d", Window30d, &count30)

	if err := g.Wait(); err != nil {
		reason := "store_unavailable"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		analysisFailures.WithLabelValues(reason).Inc()
		span.SetStatus(codes.Error, err.Error())
		logger.WithContext(ctx).Error("risk: analysis aborted",
			zap.String("booking_id", bookingID.String()),
			zap.Error(err),
		)
		return nil, common.NewStoreUnavailableError("risk analysis could not be completed", err)
	}

	velocity := NewVelocity(count24, count7, count30)
	recommendations, priority := Recommend(RecommendationInput{
		Score:             score,
		Categories:        categories,
		VelocityTier:      velocity.Tier,
		IsAnomaly:         historical.IsAnomaly,
		LicenseVerified:   booking.LicenseVerified,
		SelfieVerified:    booking.SelfieVerified,
		SessionDurationMs: booking.SessionDurationMs,
	})
	disposition := SuggestDisposition(score, categories, velocity.Tier)

	analysis := &Analysis{
		BookingID:            booking.ID,
		BookingCode:          booking.Code,
		Score:                score,
		Level:                LevelFor(score),
		Percentile:           historical.Percentile,
		IsAnomaly:            historical.IsAnomaly,
		RequiresManualReview: booking.FlaggedForReview || score >= ManualReviewScore,
		Categories:           categories,
		Historical:           historical,
		Related:              related,
		Velocity:             velocity,
		Recommendations:      recommendations,
		Priority:             priority,
		SuggestedAction:      disposition,
		AvailableActions:     AvailableActions,
		OverrideOptions:      OverrideOptions,
		Degraded:             degraded,
		AnalyzedAt:           now.UTC(),
	}

	analysisDispositions.WithLabelValues(string(disposition)).Inc()
	analysisDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Float64("risk.score", score),
		attribute.String("risk.disposition", string(disposition)),
		attribute.String("risk.velocity_tier", string(velocity.Tier)),
	)

	return analysis, nil
}

func (s *Service) getBooking(ctx context.Context, bookingID uuid.UUID) (*Booking, error) {
	booking, err := guard(ctx, s.breaker, func(ctx context.Context) (*Booking, error) {
		return s.repo.GetBooking(ctx, bookingID)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("booking not found", nil)
		}
		return nil, common.NewStoreUnavailableError("failed to load booking", err)
	}
	if booking == nil {
		return nil, common.NewNotFoundError("booking not found", nil)
	}
	return booking, nil
}

// sampleScores drops the current booking and keeps at most HistorySampleSize values
func sampleScores(samples []ScoreSample, exclude uuid.UUID) []float64 {
	out := make([]float64, 0, HistorySampleSize)
	for _, smp := range samples {
		if smp.BookingID == exclude || smp.Score <= 0 {
			continue
		}
		out = append(out, smp.Score)
		if len(out) == HistorySampleSize {
			break
		}
	}
	return out
}

// ========================================
// ADMIN ACTIONS
// ========================================

// ApplyAdminAction validates and applies one operator action, then publishes
// its signal. The write and its audit row are atomic; publishing is best effort.
func (s *Service) ApplyAdminAction(ctx context.Context, bookingID uuid.UUID, req *ActionRequest, adminID uuid.UUID) (*AuditEntry, error) {
	action := AdminAction(req.Action)
	if !action.Valid() {
		return nil, common.NewBadRequestError(fmt.Sprintf("unknown action %q", req.Action), nil)
	}

	cmd := AdminCommand{
		BookingID: bookingID,
		Action:    action,
		Notes:     security.SanitizeNotes(req.Notes),
		AdminID:   adminID,
	}
	if action == ActionOverrideRisk {
		if req.NewScore == nil {
			return nil, common.NewBadRequestError("new_score is required for override_risk", nil)
		}
		if *req.NewScore < 0 || *req.NewScore > 100 {
			return nil, common.NewBadRequestError("new_score must be between 0 and 100", nil)
		}
		score := *req.NewScore
		cmd.NewScore = &score
	}

	result, err := guard(ctx, s.breaker, func(ctx context.Context) (*ActionResult, error) {
		return s.repo.ApplyAdminAction(ctx, cmd)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			adminActions.WithLabelValues(string(action), "not_found").Inc()
			return nil, common.NewNotFoundError("booking not found", nil)
		}
		adminActions.WithLabelValues(string(action), "failed").Inc()
		logger.WithContext(ctx).Error("risk: admin action failed",
			zap.String("booking_id", bookingID.String()),
			zap.String("action", string(action)),
			zap.Error(err),
		)
		return nil, common.NewStoreUnavailableError("failed to apply admin action", err)
	}

	adminActions.WithLabelValues(string(action), "applied").Inc()
	logger.WithContext(ctx).Info("risk: admin action applied",
		zap.String("booking_id", bookingID.String()),
		zap.String("action", string(action)),
		zap.String("admin_id", adminID.String()),
	)

	if action == ActionOverrideRisk {
		if inv, ok := s.samples.(interface{ Invalidate(context.Context) error }); ok {
			_ = inv.Invalidate(ctx)
		}
	}

	s.publishAction(ctx, result)
	return result.Audit, nil
}

var actionSubjects = map[AdminAction]string{
	ActionOverrideRisk:      eventbus.SubjectRiskOverride,
	ActionWhitelist:         eventbus.SubjectWhitelistAdded,
	ActionMarkFalsePositive: eventbus.SubjectFalsePositiveMarked,
	ActionBlockDevice:       eventbus.SubjectDeviceBlockRequested,
}

func (s *Service) publishAction(ctx context.Context, result *ActionResult) {
	if s.publisher == nil {
		return
	}
	entry := result.Audit
	subject := actionSubjects[entry.Action]

	data := eventbus.RiskAdminActionData{
		BookingID:     entry.BookingID.String(),
		Action:        string(entry.Action),
		AdminID:       entry.AdminID.String(),
		Notes:         entry.Notes,
		PreviousScore: entry.PreviousScore,
		NewScore:      entry.NewScore,
	}
	if entry.Action == ActionBlockDevice {
		data.DeviceFingerprint = result.DeviceFingerprint
		data.IPAddress = result.IPAddress
	}

	event, err := eventbus.NewEvent(subject, eventSource, data)
	if err != nil {
		logger.WithContext(ctx).Error("risk: failed to build admin event", zap.Error(err))
		return
	}

	_, err = resilience.Retry(ctx, resilience.FastRetryConfig(), func(ctx context.Context) (interface{}, error) {
		return nil, s.publisher.Publish(ctx, subject, event)
	})
	if err != nil {
		logger.WithContext(ctx).Error("risk: failed to publish admin event",
			zap.String("subject", subject),
			zap.String("booking_id", entry.BookingID.String()),
			zap.Error(err),
		)
	}
}

// ListAuditEntries returns the audit trail of a booking, newest first
func (s *Service) ListAuditEntries(ctx context.Context, bookingID uuid.UUID, limit, offset int) ([]*AuditEntry, int64, error) {
	if _, err := s.getBooking(ctx, bookingID); err != nil {
		return nil, 0, err
	}

	type page struct {
		entries []*AuditEntry
		total   int64
	}
	p, err := guard(ctx, s.breaker, func(ctx context.Context) (page, error) {
		entries, total, err := s.repo.ListAuditEntries(ctx, bookingID, limit, offset)
		return page{entries, total}, err
	})
	if err != nil {
		return nil, 0, common.NewStoreUnavailableError("failed to list audit entries", err)
	}
	return p.entries, p.total, nil
}

// ========================================
// BACKGROUND SCORING
// ========================================

// ScoreUnscored derives and stores composite scores for queued bookings that
// have none. A score written meanwhile (for example an override) is kept.
func (s *Service) ScoreUnscored(ctx context.Context, batch int) (int, error) {
	bookings, err := s.repo.ListUnscoredBookings(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("list unscored bookings: %w", err)
	}

	scored := 0
	for _, b := range bookings {
		score := CompositeScore(b, s.scorer.Score(b))
		updated, err := s.repo.SetScoreIfNull(ctx, b.ID, score)
		if err != nil {
			logger.WithContext(ctx).Warn("risk: failed to persist derived score",
				zap.String("booking_id", b.ID.String()), zap.Error(err))
			continue
		}
		if updated {
			scored++
		}
	}
	return scored, nil
}
