package risk

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSampleCache_Hit(t *testing.T) {
	client, rmock := redismock.NewClientMock()
	repo := new(mockRepo)
	cached := []ScoreSample{{BookingID: uuid.New(), Score: 42}}
	payload, _ := json.Marshal(cached)

	rmock.ExpectGet(scoreSampleKey).SetVal(string(payload))

	got, err := NewSampleCache(client, repo, time.Minute).RecentScores(context.Background())

	require.NoError(t, err)
	assert.Equal(t, cached, got)
	repo.AssertNotCalled(t, "GetRecentScores", mock.Anything, mock.Anything)
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestSampleCache_MissLoadsAndStores(t *testing.T) {
	client, rmock := redismock.NewClientMock()
	repo := new(mockRepo)
	loaded := []ScoreSample{{BookingID: uuid.New(), Score: 12}, {BookingID: uuid.New(), Score: 81}}
	payload, _ := json.Marshal(loaded)

	rmock.ExpectGet(scoreSampleKey).RedisNil()
	rmock.ExpectSet(scoreSampleKey, payload, time.Minute).SetVal("OK")
	repo.On("GetRecentScores", mock.Anything, HistorySampleSize+1).Return(loaded, nil)

	got, err := NewSampleCache(client, repo, time.Minute).RecentScores(context.Background())

	require.NoError(t, err)
	assert.Equal(t, loaded, got)
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestSampleCache_RedisDownFallsThrough(t *testing.T) {
	client, rmock := redismock.NewClientMock()
	repo := new(mockRepo)
	loaded := []ScoreSample{{BookingID: uuid.New(), Score: 50}}
	payload, _ := json.Marshal(loaded)

	rmock.ExpectGet(scoreSampleKey).SetErr(errors.New("dial tcp: connection refused"))
	rmock.ExpectSet(scoreSampleKey, payload, time.Minute).SetErr(errors.New("dial tcp: connection refused"))
	repo.On("GetRecentScores", mock.Anything, HistorySampleSize+1).Return(loaded, nil)

	got, err := NewSampleCache(client, repo, time.Minute).RecentScores(context.Background())

	require.NoError(t, err)
	assert.Equal(t, loaded, got)
}

func TestSampleCache_StoreErrorSurfaces(t *testing.T) {
	client, rmock := redismock.NewClientMock()
	repo := new(mockRepo)

	rmock.ExpectGet(scoreSampleKey).RedisNil()
	repo.On("GetRecentScores", mock.Anything, HistorySampleSize+1).Return(nil, errors.New("timeout"))

	_, err := NewSampleCache(client, repo, time.Minute).RecentScores(context.Background())

	assert.Error(t, err)
}

func TestSampleCache_Invalidate(t *testing.T) {
	client, rmock := redismock.NewClientMock()
	rmock.ExpectDel(scoreSampleKey).SetVal(1)

	err := NewSampleCache(client, new(mockRepo), time.Minute).Invalidate(context.Background())

	require.NoError(t, err)
	assert.NoError(t, rmock.ExpectationsWereMet())
}
