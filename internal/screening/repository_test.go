package screening

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTx records statements run inside a transaction.
// Methods it does not override panic through the nil embedded pgx.Tx.
type fakeTx struct {
	pgx.Tx
	tags       []string
	execs      []string
	args       [][]any
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.execs = append(t.execs, sql)
	t.args = append(t.args, args)
	tag := "UPDATE 1"
	if len(t.tags) > 0 {
		tag, t.tags = t.tags[0], t.tags[1:]
	}
	return pgconn.NewCommandTag(tag), nil
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeDB struct {
	tx       *fakeTx
	execTag  string
	lastSQL  string
	lastArgs []any
}

func (f *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	if f.tx == nil {
		return nil, errors.New("no transaction configured")
	}
	return f.tx, nil
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return nil
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.lastSQL, f.lastArgs = sql, args
	return pgconn.NewCommandTag(f.execTag), nil
}

func TestRepository_CompleteStage_PassSchedulesNext(t *testing.T) {
	tx := &fakeTx{}
	repo := NewRepository(&fakeDB{tx: tx})
	s := stage(uuid.New(), 2, StatusInProgress)
	next := fixedNow.Add(testDelay)

	err := repo.CompleteStage(context.Background(), Outcome{Stage: s, Passed: true, At: fixedNow, NextRunAt: &next})

	require.NoError(t, err)
	require.Len(t, tx.execs, 2)
	assert.Equal(t, StatusPassed, tx.args[0][1])
	assert.Contains(t, tx.execs[1], "SET next_run_at = $3")
	assert.Equal(t, []any{s.HostID, 3, next}, tx.args[1])
	assert.True(t, tx.committed)
}

func TestRepository_CompleteStage_FailureSkipsLater(t *testing.T) {
	tx := &fakeTx{}
	repo := NewRepository(&fakeDB{tx: tx})
	s := stage(uuid.New(), 3, StatusInProgress)

	err := repo.CompleteStage(context.Background(), Outcome{Stage: s, Passed: false, Notes: "record found", At: fixedNow})

	require.NoError(t, err)
	require.Len(t, tx.execs, 2)
	assert.Equal(t, StatusFailed, tx.args[0][1])
	assert.Contains(t, tx.execs[1], "status = 'skipped'")
	assert.Equal(t, "skipped after criminal failed", tx.args[1][2])
	assert.True(t, tx.committed)
}

func TestRepository_CompleteStage_LastPassVerifiesHost(t *testing.T) {
	tx := &fakeTx{}
	repo := NewRepository(&fakeDB{tx: tx})
	s := stage(uuid.New(), 5, StatusInProgress)

	err := repo.CompleteStage(context.Background(), Outcome{Stage: s, Passed: true, At: fixedNow})

	require.NoError(t, err)
	require.Len(t, tx.execs, 2)
	assert.True(t, strings.Contains(tx.execs[1], "UPDATE hosts SET is_verified = TRUE"))
	assert.Equal(t, []any{s.HostID, fixedNow}, tx.args[1])
}

func TestRepository_CompleteStage_NotClaimedRollsBack(t *testing.T) {
	tx := &fakeTx{tags: []string{"UPDATE 0"}}
	repo := NewRepository(&fakeDB{tx: tx})

	err := repo.CompleteStage(context.Background(), Outcome{Stage: stage(uuid.New(), 1, StatusPending), Passed: true, At: fixedNow})

	assert.ErrorIs(t, err, ErrStageNotClaimed)
	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
	assert.Len(t, tx.execs, 1)
}

func TestRepository_ClaimStage(t *testing.T) {
	db := &fakeDB{execTag: "UPDATE 1"}
	repo := NewRepository(db)
	id := uuid.New()
	lease := fixedNow.Add(5 * time.Minute)

	ok, err := repo.ClaimStage(context.Background(), id, fixedNow, lease)

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []any{id, fixedNow, lease}, db.lastArgs)

	db.execTag = "UPDATE 0"
	ok, err = repo.ClaimStage(context.Background(), id, fixedNow, lease)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepository_RescheduleStage_NotClaimed(t *testing.T) {
	repo := NewRepository(&fakeDB{execTag: "UPDATE 0"})

	err := repo.RescheduleStage(context.Background(), uuid.New(), fixedNow, "timeout")

	assert.ErrorIs(t, err, ErrStageNotClaimed)
}

func TestRepository_ReplaceStages(t *testing.T) {
	tx := &fakeTx{}
	repo := NewRepository(&fakeDB{tx: tx})
	hostID := uuid.New()

	err := repo.ReplaceStages(context.Background(), hostID, pipeline(hostID, StatusPending, StatusPending, StatusPending, StatusPending, StatusPending))

	require.NoError(t, err)
	// delete, five inserts, host reset
	require.Len(t, tx.execs, 7)
	assert.Contains(t, tx.execs[0], "DELETE FROM host_screening_stages")
	assert.Contains(t, tx.execs[6], "is_verified = FALSE")
	assert.True(t, tx.committed)
}
