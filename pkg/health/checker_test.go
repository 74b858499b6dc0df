package health

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("probe called without deadline")
	}
	return f.err
}

func TestDatabaseChecker(t *testing.T) {
	assert.NoError(t, DatabaseChecker(fakePinger{})(context.Background()))

	boom := errors.New("connection refused")
	assert.ErrorIs(t, DatabaseChecker(fakePinger{err: boom})(context.Background()), boom)
}

func TestRedisChecker(t *testing.T) {
	client, mock := redismock.NewClientMock()
	mock.ExpectPing().SetVal("PONG")
	assert.NoError(t, RedisChecker(client)(context.Background()))

	mock.ExpectPing().SetErr(errors.New("down"))
	assert.Error(t, RedisChecker(client)(context.Background()))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNATSChecker_NilConnection(t *testing.T) {
	assert.Error(t, NATSChecker(nil)(context.Background()))
}
