package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/richxcame/rental-risk/pkg/config"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNotFound = errors.New("no rows")

func TestBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	b := NewCircuitBreaker(Settings{
		Name:             "test-trip",
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 2,
	}, NoopFallback)

	failing := func(ctx context.Context) (interface{}, error) { return nil, errTransient }

	_, err := b.Execute(context.Background(), failing)
	assert.ErrorIs(t, err, errTransient)
	_, err = b.Execute(context.Background(), failing)
	assert.ErrorIs(t, err, errTransient)

	assert.Equal(t, gobreaker.StateOpen, b.State())

	called := false
	_, err = b.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		called = true
		return "ok", nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreaker_IgnoredErrorsDoNotTrip(t *testing.T) {
	b := NewCircuitBreaker(Settings{
		Name:             "test-ignored",
		Timeout:          time.Minute,
		FailureThreshold: 1,
		IgnoredErrors:    []error{errNotFound},
	}, nil)

	for i := 0; i < 3; i++ {
		_, err := b.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
			return nil, errNotFound
		})
		assert.ErrorIs(t, err, errNotFound)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestRetryWithBreaker(t *testing.T) {
	b := NewCircuitBreaker(FromConfig("test-retry", config.BreakerConfig{IntervalSeconds: 1, TimeoutSeconds: 1, FailureThreshold: 5}), NoopFallback)
	attempts := 0

	result, err := RetryWithBreaker(context.Background(), fastConfig(), b, func(ctx context.Context) (interface{}, error) {
		attempts++
		if attempts < 2 {
			return nil, errTransient
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 2, attempts)
}

func TestFromConfig_Defaults(t *testing.T) {
	s := FromConfig("db", config.BreakerConfig{IntervalSeconds: -1})

	assert.Equal(t, "db", s.Name)
	assert.Equal(t, time.Minute, s.Interval)
	assert.Equal(t, 30*time.Second, s.Timeout)
	assert.Equal(t, uint32(5), s.FailureThreshold)
	assert.Equal(t, uint32(1), s.SuccessThreshold)
	assert.Nil(t, s.IgnoredErrors)
}

func TestFromConfig_Overrides(t *testing.T) {
	s := FromConfig("provider", config.BreakerConfig{
		IntervalSeconds:  120,
		TimeoutSeconds:   10,
		FailureThreshold: 3,
		SuccessThreshold: 2,
	}, errNotFound)

	assert.Equal(t, 2*time.Minute, s.Interval)
	assert.Equal(t, 10*time.Second, s.Timeout)
	assert.Equal(t, uint32(3), s.FailureThreshold)
	assert.Equal(t, uint32(2), s.SuccessThreshold)
	assert.Equal(t, []error{errNotFound}, s.IgnoredErrors)
}
