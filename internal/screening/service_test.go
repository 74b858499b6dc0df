package screening

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/rental-risk/pkg/common"
	"github.com/richxcame/rental-risk/pkg/eventbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) HostExists(ctx context.Context, hostID uuid.UUID) (bool, error) {
	args := m.Called(ctx, hostID)
	return args.Bool(0), args.Error(1)
}

func (m *mockRepo) ListStages(ctx context.Context, hostID uuid.UUID) ([]*StageRecord, error) {
	args := m.Called(ctx, hostID)
	stages, _ := args.Get(0).([]*StageRecord)
	return stages, args.Error(1)
}

func (m *mockRepo) ReplaceStages(ctx context.Context, hostID uuid.UUID, stages []*StageRecord) error {
	args := m.Called(ctx, hostID, stages)
	return args.Error(0)
}

func (m *mockRepo) ListDueStages(ctx context.Context, now time.Time, limit int) ([]*StageRecord, error) {
	args := m.Called(ctx, now, limit)
	stages, _ := args.Get(0).([]*StageRecord)
	return stages, args.Error(1)
}

func (m *mockRepo) ClaimStage(ctx context.Context, id uuid.UUID, at, leaseUntil time.Time) (bool, error) {
	args := m.Called(ctx, id, at, leaseUntil)
	return args.Bool(0), args.Error(1)
}

func (m *mockRepo) RescheduleStage(ctx context.Context, id uuid.UUID, nextRunAt time.Time, notes string) error {
	args := m.Called(ctx, id, nextRunAt, notes)
	return args.Error(0)
}

func (m *mockRepo) CompleteStage(ctx context.Context, o Outcome) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

type mockChecker struct {
	mock.Mock
}

func (m *mockChecker) Check(ctx context.Context, stage *StageRecord) (*CheckResult, error) {
	args := m.Called(ctx, stage)
	res, _ := args.Get(0).(*CheckResult)
	return res, args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, subject string, event *eventbus.Event) error {
	args := m.Called(ctx, subject, event)
	return args.Error(0)
}

var fixedNow = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

const testDelay = 30 * time.Minute

func newTestService(repo *mockRepo, checker Checker, pub *mockPublisher) *Service {
	var publisher eventbus.Publisher
	if pub != nil {
		publisher = pub
	}
	svc := NewService(repo, checker, testDelay, publisher)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func stage(hostID uuid.UUID, position int, status StageStatus) *StageRecord {
	return &StageRecord{
		ID:       uuid.New(),
		HostID:   hostID,
		Stage:    Stages[position-1],
		Position: position,
		Status:   status,
	}
}

func pipeline(hostID uuid.UUID, statuses ...StageStatus) []*StageRecord {
	out := make([]*StageRecord, 0, len(statuses))
	for i, st := range statuses {
		out = append(out, stage(hostID, i+1, st))
	}
	return out
}

func requireAppErrorType(t *testing.T, err error, errType string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := common.AsAppError(err)
	require.True(t, ok, "expected AppError, got %T", err)
	assert.Equal(t, errType, appErr.Type)
}

// ========================================
// START / GET
// ========================================

func TestService_StartPipeline_CreatesFiveStages(t *testing.T) {
	repo := new(mockRepo)
	hostID := uuid.New()

	repo.On("HostExists", mock.Anything, hostID).Return(true, nil)
	repo.On("ListStages", mock.Anything, hostID).Return([]*StageRecord{}, nil)
	repo.On("ReplaceStages", mock.Anything, hostID, mock.Anything).Return(nil)

	p, err := newTestService(repo, LocalChecker{}, nil).StartPipeline(context.Background(), hostID)

	require.NoError(t, err)
	assert.Equal(t, PipelineInProgress, p.Status)
	require.Len(t, p.Stages, 5)
	for i, s := range p.Stages {
		assert.Equal(t, Stages[i], s.Stage)
		assert.Equal(t, i+1, s.Position)
		assert.Equal(t, StatusPending, s.Status)
	}
	require.NotNil(t, p.Stages[0].NextRunAt)
	assert.Equal(t, fixedNow, *p.Stages[0].NextRunAt)
	for _, s := range p.Stages[1:] {
		assert.Nil(t, s.NextRunAt)
	}
}

func TestService_StartPipeline_HostNotFound(t *testing.T) {
	repo := new(mockRepo)
	hostID := uuid.New()
	repo.On("HostExists", mock.Anything, hostID).Return(false, nil)

	_, err := newTestService(repo, LocalChecker{}, nil).StartPipeline(context.Background(), hostID)

	requireAppErrorType(t, err, common.ErrorTypeNotFound)
	repo.AssertNotCalled(t, "ReplaceStages", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_StartPipeline_RunningIsConflict(t *testing.T) {
	repo := new(mockRepo)
	hostID := uuid.New()
	repo.On("HostExists", mock.Anything, hostID).Return(true, nil)
	repo.On("ListStages", mock.Anything, hostID).
		Return(pipeline(hostID, StatusPassed, StatusPending, StatusPending, StatusPending, StatusPending), nil)

	_, err := newTestService(repo, LocalChecker{}, nil).StartPipeline(context.Background(), hostID)

	requireAppErrorType(t, err, common.ErrorTypeConflict)
}

func TestService_StartPipeline_RestartsFailed(t *testing.T) {
	repo := new(mockRepo)
	hostID := uuid.New()
	repo.On("HostExists", mock.Anything, hostID).Return(true, nil)
	repo.On("ListStages", mock.Anything, hostID).
		Return(pipeline(hostID, StatusPassed, StatusFailed, StatusSkipped, StatusSkipped, StatusSkipped), nil)
	repo.On("ReplaceStages", mock.Anything, hostID, mock.Anything).Return(nil)

	p, err := newTestService(repo, LocalChecker{}, nil).StartPipeline(context.Background(), hostID)

	require.NoError(t, err)
	assert.Len(t, p.Stages, 5)
	repo.AssertExpectations(t)
}

func TestService_GetPipeline(t *testing.T) {
	repo := new(mockRepo)
	hostID := uuid.New()
	repo.On("ListStages", mock.Anything, hostID).
		Return(pipeline(hostID, StatusPassed, StatusPassed, StatusPassed, StatusPassed, StatusPassed), nil)

	p, err := newTestService(repo, LocalChecker{}, nil).GetPipeline(context.Background(), hostID)

	require.NoError(t, err)
	assert.Equal(t, PipelinePassed, p.Status)
}

func TestService_GetPipeline_NotStarted(t *testing.T) {
	repo := new(mockRepo)
	hostID := uuid.New()
	repo.On("ListStages", mock.Anything, hostID).Return([]*StageRecord{}, nil)

	_, err := newTestService(repo, LocalChecker{}, nil).GetPipeline(context.Background(), hostID)

	requireAppErrorType(t, err, common.ErrorTypeNotFound)
}

func TestService_GetPipeline_StoreError(t *testing.T) {
	repo := new(mockRepo)
	hostID := uuid.New()
	repo.On("ListStages", mock.Anything, hostID).Return(nil, errors.New("connection reset"))

	_, err := newTestService(repo, LocalChecker{}, nil).GetPipeline(context.Background(), hostID)

	requireAppErrorType(t, err, common.ErrorTypeStoreUnavailable)
}

// ========================================
// ADVANCE
// ========================================

func TestService_AdvanceDue_PassSchedulesNext(t *testing.T) {
	repo := new(mockRepo)
	checker := new(mockChecker)
	s := stage(uuid.New(), 1, StatusPending)

	repo.On("ListDueStages", mock.Anything, fixedNow, 50).Return([]*StageRecord{s}, nil)
	repo.On("ClaimStage", mock.Anything, s.ID, fixedNow, fixedNow.Add(claimLease)).Return(true, nil)
	checker.On("Check", mock.Anything, s).Return(&CheckResult{Passed: true, Notes: "match"}, nil)
	repo.On("CompleteStage", mock.Anything, mock.MatchedBy(func(o Outcome) bool {
		return o.Stage == s && o.Passed && o.Notes == "match" &&
			o.NextRunAt != nil && o.NextRunAt.Equal(fixedNow.Add(testDelay))
	})).Return(nil)

	n, err := newTestService(repo, checker, nil).AdvanceDue(context.Background(), 50)

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	repo.AssertExpectations(t)
}

func TestService_AdvanceDue_FailureHasNoNextRun(t *testing.T) {
	repo := new(mockRepo)
	checker := new(mockChecker)
	s := stage(uuid.New(), 3, StatusPending)

	repo.On("ListDueStages", mock.Anything, fixedNow, 10).Return([]*StageRecord{s}, nil)
	repo.On("ClaimStage", mock.Anything, s.ID, mock.Anything, mock.Anything).Return(true, nil)
	checker.On("Check", mock.Anything, s).Return(&CheckResult{Passed: false, Notes: "record found"}, nil)
	repo.On("CompleteStage", mock.Anything, mock.MatchedBy(func(o Outcome) bool {
		return !o.Passed && o.NextRunAt == nil
	})).Return(nil)

	n, err := newTestService(repo, checker, nil).AdvanceDue(context.Background(), 10)

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	repo.AssertExpectations(t)
}

func TestService_AdvanceDue_LastPassPublishesHostVerified(t *testing.T) {
	repo := new(mockRepo)
	checker := new(mockChecker)
	pub := new(mockPublisher)
	s := stage(uuid.New(), 5, StatusPending)

	repo.On("ListDueStages", mock.Anything, fixedNow, 10).Return([]*StageRecord{s}, nil)
	repo.On("ClaimStage", mock.Anything, s.ID, mock.Anything, mock.Anything).Return(true, nil)
	checker.On("Check", mock.Anything, s).Return(&CheckResult{Passed: true}, nil)
	repo.On("CompleteStage", mock.Anything, mock.MatchedBy(func(o Outcome) bool {
		return o.Passed && o.NextRunAt == nil
	})).Return(nil)
	pub.On("Publish", mock.Anything, eventbus.SubjectHostVerified, mock.MatchedBy(func(e *eventbus.Event) bool {
		return e.Type == eventbus.SubjectHostVerified
	})).Return(nil)

	_, err := newTestService(repo, checker, pub).AdvanceDue(context.Background(), 10)

	require.NoError(t, err)
	pub.AssertExpectations(t)
}

func TestService_AdvanceDue_ProviderErrorReschedules(t *testing.T) {
	repo := new(mockRepo)
	checker := new(mockChecker)
	s := stage(uuid.New(), 2, StatusPending)

	repo.On("ListDueStages", mock.Anything, fixedNow, 10).Return([]*StageRecord{s}, nil)
	repo.On("ClaimStage", mock.Anything, s.ID, mock.Anything, mock.Anything).Return(true, nil)
	checker.On("Check", mock.Anything, s).Return(nil, errors.New("dmv check: HTTP 503: busy"))
	repo.On("RescheduleStage", mock.Anything, s.ID, fixedNow.Add(testDelay), "dmv check: HTTP 503: busy").Return(nil)

	n, err := newTestService(repo, checker, nil).AdvanceDue(context.Background(), 10)

	require.NoError(t, err)
	assert.Equal(t, 0, n)
	repo.AssertNotCalled(t, "CompleteStage", mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestService_AdvanceDue_SkipsStagesClaimedElsewhere(t *testing.T) {
	repo := new(mockRepo)
	checker := new(mockChecker)
	s := stage(uuid.New(), 1, StatusPending)

	repo.On("ListDueStages", mock.Anything, fixedNow, 10).Return([]*StageRecord{s}, nil)
	repo.On("ClaimStage", mock.Anything, s.ID, mock.Anything, mock.Anything).Return(false, nil)

	n, err := newTestService(repo, checker, nil).AdvanceDue(context.Background(), 10)

	require.NoError(t, err)
	assert.Equal(t, 0, n)
	checker.AssertNotCalled(t, "Check", mock.Anything, mock.Anything)
}

func TestService_AdvanceDue_ListError(t *testing.T) {
	repo := new(mockRepo)
	repo.On("ListDueStages", mock.Anything, fixedNow, 10).Return(nil, errors.New("timeout"))

	_, err := newTestService(repo, LocalChecker{}, nil).AdvanceDue(context.Background(), 10)

	assert.Error(t, err)
}
