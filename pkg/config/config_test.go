package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("risk")
	require.NoError(t, err)

	assert.Equal(t, "risk", cfg.Server.ServiceName)
	assert.Equal(t, DefaultLuxuryDailyRate, cfg.Risk.LuxuryDailyRate)
	assert.Equal(t, DefaultLongTripDays, cfg.Risk.LongTripDays)
	assert.Equal(t, []string{"EXOTIC", "SUPERCAR", "CLASSIC"}, cfg.Risk.ExoticCarTypes)
	assert.Equal(t, 5*time.Second, cfg.Risk.AnalysisTimeout)
	assert.Equal(t, time.Minute, cfg.Scheduler.Interval)
	assert.Equal(t, 30*time.Minute, cfg.Screening.StageDelay)
	assert.Empty(t, cfg.Screening.ProviderURL)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window())
	assert.Equal(t, BreakerConfig{IntervalSeconds: 60, TimeoutSeconds: 30, FailureThreshold: 5, SuccessThreshold: 1}, cfg.Risk.StoreBreaker)
	assert.Equal(t, cfg.Risk.StoreBreaker, cfg.Screening.ProviderBreaker)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("RISK_LUXURY_DAILY_RATE", "450.5")
	t.Setenv("RISK_EXOTIC_CAR_TYPES", "exotic, vintage")
	t.Setenv("SCREENING_PROVIDER_URL", "https://checks.example.com")
	t.Setenv("SCHEDULER_INTERVAL_SECONDS", "15")
	t.Setenv("SCREENING_PROVIDER_BREAKER_FAILURES", "2")
	t.Setenv("RISK_STORE_BREAKER_TIMEOUT_SECONDS", "5")

	cfg, err := Load("risk")
	require.NoError(t, err)

	assert.Equal(t, 450.5, cfg.Risk.LuxuryDailyRate)
	assert.Len(t, cfg.Risk.ExoticCarTypes, 2)
	assert.Equal(t, "https://checks.example.com", cfg.Screening.ProviderURL)
	assert.Equal(t, 15*time.Second, cfg.Scheduler.Interval)
	assert.Equal(t, 2, cfg.Screening.ProviderBreaker.FailureThreshold)
	assert.Equal(t, 5, cfg.Risk.StoreBreaker.TimeoutSeconds)
	assert.Equal(t, 5, cfg.Risk.StoreBreaker.FailureThreshold)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	t.Run("long trip days", func(t *testing.T) {
		t.Setenv("RISK_LONG_TRIP_DAYS", "0")
		_, err := Load("risk")
		assert.Error(t, err)
	})

	t.Run("scheduler interval", func(t *testing.T) {
		t.Setenv("SCHEDULER_INTERVAL_SECONDS", "-5")
		_, err := Load("risk")
		assert.Error(t, err)
	})
}

func TestDatabaseConfig_MigrationURL(t *testing.T) {
	cfg := DatabaseConfig{User: "u", Password: "p", Host: "db", Port: "5432", DBName: "rentals", SSLMode: "disable"}
	assert.Equal(t, "pgx5://u:p@db:5432/rentals?sslmode=disable", cfg.MigrationURL())
}
