package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Default values for the risk engine block
const (
	DefaultLuxuryDailyRate     = 300.0
	DefaultHighValueTotal      = 2500.0
	DefaultLongTripDays        = 14
	DefaultExoticCarTypes      = "EXOTIC,SUPERCAR,CLASSIC"
	DefaultLargePendingAmount  = 500.0
	DefaultAnalysisTimeoutMs   = 5000
	DefaultHistoryCacheTTLSecs = 60
	DefaultSchedulerIntervalS  = 60
	DefaultScreeningDelayMins  = 30
	DefaultScreeningTimeoutS   = 10
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	NATS      NATSConfig
	JWT       JWTConfig
	Tracing   TracingConfig
	Sentry    SentryConfig
	Risk      RiskConfig
	Scheduler SchedulerConfig
	Screening ScreeningConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port           string
	Environment    string
	ServiceName    string
	Version        string
	ReadTimeout    int
	WriteTimeout   int
	RequestTimeout int    // seconds, applied by the timeout middleware
	CORSOrigins    string // Comma-separated list of allowed origins
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
	// AutoMigrate applies embedded migrations at service startup
	AutoMigrate bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// NATSConfig holds the event bus configuration
type NATSConfig struct {
	URL     string
	Enabled bool
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string
}

// TracingConfig holds OpenTelemetry exporter configuration
type TracingConfig struct {
	Enabled  bool
	Endpoint string
}

// SentryConfig holds error reporting configuration
type SentryConfig struct {
	DSN string
}

// RiskConfig holds the tunables of the risk and verification engine
type RiskConfig struct {
	LuxuryDailyRate    float64
	HighValueTotal     float64
	LongTripDays       int
	ExoticCarTypes     []string
	LargePendingAmount float64
	AnalysisTimeout    time.Duration
	HistoryCacheTTL    time.Duration
	// StoreBreaker guards signal store reads during an analysis
	StoreBreaker BreakerConfig
}

// BreakerConfig tunes one circuit breaker. Zero values take the breaker defaults.
type BreakerConfig struct {
	IntervalSeconds  int
	TimeoutSeconds   int
	FailureThreshold int
	SuccessThreshold int
}

// SchedulerConfig holds the background worker configuration
type SchedulerConfig struct {
	Enabled  bool
	Interval time.Duration
}

// ScreeningConfig holds the host background-check pipeline configuration.
// An empty ProviderURL clears stages locally after StageDelay.
type ScreeningConfig struct {
	ProviderURL     string
	ProviderTimeout time.Duration
	StageDelay      time.Duration
	ProviderBreaker BreakerConfig
}

// RateLimitConfig bounds how many mutating admin requests one operator may send per window
type RateLimitConfig struct {
	Enabled       bool
	WindowSeconds int
	AdminLimit    int
	RedisPrefix   string
}

// Window returns the limiter window, one minute when unset
func (c RateLimitConfig) Window() time.Duration {
	if c.WindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.WindowSeconds) * time.Second
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Environment:    getEnv("ENVIRONMENT", "development"),
			ServiceName:    serviceName,
			Version:        getEnv("SERVICE_VERSION", "dev"),
			ReadTimeout:    getEnvAsInt("READ_TIMEOUT", 10),
			WriteTimeout:   getEnvAsInt("WRITE_TIMEOUT", 10),
			RequestTimeout: getEnvAsInt("REQUEST_TIMEOUT", 15),
			CORSOrigins:    getEnv("CORS_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "rentals"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns: getEnvAsInt("DB_MIN_CONNS", 5),

			AutoMigrate: getEnvAsBool("DB_AUTO_MIGRATE", false),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		NATS: NATSConfig{
			URL:     getEnv("NATS_URL", "nats://localhost:4222"),
			Enabled: getEnvAsBool("NATS_ENABLED", true),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		},
		Tracing: TracingConfig{
			Enabled:  getEnvAsBool("TRACING_ENABLED", false),
			Endpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		},
		Sentry: SentryConfig{
			DSN: getEnv("SENTRY_DSN", ""),
		},
		Risk: RiskConfig{
			LuxuryDailyRate:    getEnvAsFloat("RISK_LUXURY_DAILY_RATE", DefaultLuxuryDailyRate),
			HighValueTotal:     getEnvAsFloat("RISK_HIGH_VALUE_TOTAL", DefaultHighValueTotal),
			LongTripDays:       getEnvAsInt("RISK_LONG_TRIP_DAYS", DefaultLongTripDays),
			ExoticCarTypes:     getEnvAsList("RISK_EXOTIC_CAR_TYPES", DefaultExoticCarTypes),
			LargePendingAmount: getEnvAsFloat("RISK_LARGE_PENDING_AMOUNT", DefaultLargePendingAmount),
			AnalysisTimeout:    time.Duration(getEnvAsInt("RISK_ANALYSIS_TIMEOUT_MS", DefaultAnalysisTimeoutMs)) * time.Millisecond,
			HistoryCacheTTL:    time.Duration(getEnvAsInt("RISK_HISTORY_CACHE_TTL_SECONDS", DefaultHistoryCacheTTLSecs)) * time.Second,
			StoreBreaker:       getBreaker("RISK_STORE_BREAKER", 60, 30, 5, 1),
		},
		Scheduler: SchedulerConfig{
			Enabled:  getEnvAsBool("SCHEDULER_ENABLED", true),
			Interval: time.Duration(getEnvAsInt("SCHEDULER_INTERVAL_SECONDS", DefaultSchedulerIntervalS)) * time.Second,
		},
		Screening: ScreeningConfig{
			ProviderURL:     getEnv("SCREENING_PROVIDER_URL", ""),
			ProviderTimeout: time.Duration(getEnvAsInt("SCREENING_PROVIDER_TIMEOUT_SECONDS", DefaultScreeningTimeoutS)) * time.Second,
			StageDelay:      time.Duration(getEnvAsInt("SCREENING_STAGE_DELAY_MINUTES", DefaultScreeningDelayMins)) * time.Minute,
			ProviderBreaker: getBreaker("SCREENING_PROVIDER_BREAKER", 60, 30, 5, 1),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getEnvAsBool("RATE_LIMIT_ENABLED", true),
			WindowSeconds: getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60),
			AdminLimit:    getEnvAsInt("RATE_LIMIT_ADMIN_ACTIONS", 120),
			RedisPrefix:   getEnv("RATE_LIMIT_REDIS_PREFIX", "ratelimit"),
		},
	}

	if cfg.Risk.LongTripDays <= 0 {
		return nil, fmt.Errorf("RISK_LONG_TRIP_DAYS must be positive, got %d", cfg.Risk.LongTripDays)
	}
	if cfg.Scheduler.Interval <= 0 {
		return nil, fmt.Errorf("SCHEDULER_INTERVAL_SECONDS must be positive")
	}

	return cfg, nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// MigrationURL returns the database URL understood by golang-migrate's pgx/v5 driver
func (c *DatabaseConfig) MigrationURL() string {
	return fmt.Sprintf(
		"pgx5://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToUpper(part))
		}
	}
	return out
}

// getBreaker reads <prefix>_INTERVAL_SECONDS, _TIMEOUT_SECONDS, _FAILURES and _SUCCESSES
func getBreaker(prefix string, interval, timeout, failures, successes int) BreakerConfig {
	return BreakerConfig{
		IntervalSeconds:  getEnvAsInt(prefix+"_INTERVAL_SECONDS", interval),
		TimeoutSeconds:   getEnvAsInt(prefix+"_TIMEOUT_SECONDS", timeout),
		FailureThreshold: getEnvAsInt(prefix+"_FAILURES", failures),
		SuccessThreshold: getEnvAsInt(prefix+"_SUCCESSES", successes),
	}
}
