package screening

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/rental-risk/pkg/common"
	"github.com/richxcame/rental-risk/pkg/eventbus"
	"github.com/richxcame/rental-risk/pkg/logger"
	"go.uber.org/zap"
)

const (
	eventSource = "screening-service"
	// a claimed stage is handed to another worker after this long
	claimLease = 5 * time.Minute
)

// Service runs the host background-check pipeline
type Service struct {
	repo       RepositoryInterface
	checker    Checker
	stageDelay time.Duration
	publisher  eventbus.Publisher
	now        func() time.Time
}

// NewService creates a new screening service. publisher may be nil.
func NewService(repo RepositoryInterface, checker Checker, stageDelay time.Duration, publisher eventbus.Publisher) *Service {
	return &Service{
		repo:       repo,
		checker:    checker,
		stageDelay: stageDelay,
		publisher:  publisher,
		now:        time.Now,
	}
}

// GetPipeline returns the screening state of a host
func (s *Service) GetPipeline(ctx context.Context, hostID uuid.UUID) (*Pipeline, error) {
	stages, err := s.repo.ListStages(ctx, hostID)
	if err != nil {
		return nil, common.NewStoreUnavailableError("failed to load screening stages", err)
	}
	if len(stages) == 0 {
		return nil, common.NewNotFoundError("no screening pipeline for host", nil)
	}
	return &Pipeline{HostID: hostID, Status: Summarize(stages), Stages: stages}, nil
}

// StartPipeline creates the five stage records of a host. The first stage is
// due immediately, each later one stageDelay after its predecessor passes. A
// failed pipeline may be restarted; a running or passed one may not.
func (s *Service) StartPipeline(ctx context.Context, hostID uuid.UUID) (*Pipeline, error) {
	exists, err := s.repo.HostExists(ctx, hostID)
	if err != nil {
		return nil, common.NewStoreUnavailableError("failed to load host", err)
	}
	if !exists {
		return nil, common.NewNotFoundError("host not found", nil)
	}

	current, err := s.repo.ListStages(ctx, hostID)
	if err != nil {
		return nil, common.NewStoreUnavailableError("failed to load screening stages", err)
	}
	if len(current) > 0 {
		if status := Summarize(current); status != PipelineFailed {
			return nil, common.NewConflictError(fmt.Sprintf("screening pipeline already %s", status))
		}
	}

	now := s.now().UTC()
	stages := make([]*StageRecord, 0, len(Stages))
	for i, stage := range Stages {
		rec := &StageRecord{
			ID:        uuid.New(),
			HostID:    hostID,
			Stage:     stage,
			Position:  i + 1,
			Status:    StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if i == 0 {
			rec.NextRunAt = &now
		}
		stages = append(stages, rec)
	}

	if err := s.repo.ReplaceStages(ctx, hostID, stages); err != nil {
		return nil, common.NewStoreUnavailableError("failed to start screening pipeline", err)
	}

	logger.WithContext(ctx).Info("screening: pipeline started",
		zap.String("host_id", hostID.String()),
		zap.Bool("restart", len(current) > 0),
	)
	return &Pipeline{HostID: hostID, Status: PipelineInProgress, Stages: stages}, nil
}

// AdvanceDue runs every due stage once and returns how many reached a verdict.
// Provider errors put the stage back with a delay; they never fail the pipeline.
func (s *Service) AdvanceDue(ctx context.Context, batch int) (int, error) {
	due, err := s.repo.ListDueStages(ctx, s.now().UTC(), batch)
	if err != nil {
		return 0, fmt.Errorf("list due stages: %w", err)
	}

	completed := 0
	for _, stage := range due {
		if ctx.Err() != nil {
			return completed, ctx.Err()
		}
		done, err := s.advance(ctx, stage)
		if err != nil {
			logger.WithContext(ctx).Warn("screening: failed to advance stage",
				zap.String("host_id", stage.HostID.String()),
				zap.String("stage", string(stage.Stage)),
				zap.Error(err),
			)
			continue
		}
		if done {
			completed++
		}
	}
	return completed, nil
}

func (s *Service) advance(ctx context.Context, stage *StageRecord) (bool, error) {
	at := s.now().UTC()
	claimed, err := s.repo.ClaimStage(ctx, stage.ID, at, at.Add(claimLease))
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, nil
	}

	result, err := s.checker.Check(ctx, stage)
	if err != nil {
		retryAt := s.now().UTC().Add(s.stageDelay)
		if rerr := s.repo.RescheduleStage(ctx, stage.ID, retryAt, err.Error()); rerr != nil {
			return false, errors.Join(err, rerr)
		}
		return false, err
	}

	outcome := Outcome{
		Stage:  stage,
		Passed: result.Passed,
		Notes:  result.Notes,
		At:     s.now().UTC(),
	}
	if result.Passed && !stage.Last() {
		next := outcome.At.Add(s.stageDelay)
		outcome.NextRunAt = &next
	}
	if err := s.repo.CompleteStage(ctx, outcome); err != nil {
		if errors.Is(err, ErrStageNotClaimed) {
			return false, nil
		}
		return false, err
	}

	logger.WithContext(ctx).Info("screening: stage completed",
		zap.String("host_id", stage.HostID.String()),
		zap.String("stage", string(stage.Stage)),
		zap.Bool("passed", result.Passed),
	)
	if result.Passed && stage.Last() {
		s.publishVerified(ctx, stage.HostID, outcome.At)
	}
	return true, nil
}

func (s *Service) publishVerified(ctx context.Context, hostID uuid.UUID, at time.Time) {
	if s.publisher == nil {
		return
	}
	event, err := eventbus.NewEvent(eventbus.SubjectHostVerified, eventSource, eventbus.HostVerifiedData{
		HostID:     hostID.String(),
		VerifiedAt: at,
	})
	if err == nil {
		err = s.publisher.Publish(ctx, eventbus.SubjectHostVerified, event)
	}
	if err != nil {
		logger.WithContext(ctx).Error("screening: failed to publish host verification",
			zap.String("host_id", hostID.String()),
			zap.Error(err),
		)
	}
}
