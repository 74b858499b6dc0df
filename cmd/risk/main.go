package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/richxcame/rental-risk/db"
	"github.com/richxcame/rental-risk/internal/risk"
	"github.com/richxcame/rental-risk/internal/scheduler"
	"github.com/richxcame/rental-risk/internal/screening"
	"github.com/richxcame/rental-risk/internal/verification"
	"github.com/richxcame/rental-risk/pkg/common"
	"github.com/richxcame/rental-risk/pkg/config"
	"github.com/richxcame/rental-risk/pkg/database"
	"github.com/richxcame/rental-risk/pkg/eventbus"
	"github.com/richxcame/rental-risk/pkg/health"
	"github.com/richxcame/rental-risk/pkg/logger"
	"github.com/richxcame/rental-risk/pkg/middleware"
	"github.com/richxcame/rental-risk/pkg/ratelimit"
	"github.com/richxcame/rental-risk/pkg/redis"
	"github.com/richxcame/rental-risk/pkg/tracing"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const serviceName = "risk"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Sentry.DSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Server.Environment,
			Release:     cfg.Server.Version,
		})
		if err != nil {
			logger.Fatal("Failed to init sentry", zap.Error(err))
		}
		defer sentry.Flush(2 * time.Second)
	}

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, serviceName, cfg.Server.Version)
	if err != nil {
		logger.Fatal("Failed to init tracing", zap.Error(err))
	}

	if cfg.Database.AutoMigrate {
		if err := db.Up(cfg.Database.MigrationURL()); err != nil {
			logger.Fatal("Failed to apply migrations", zap.Error(err))
		}
		logger.Info("Migrations applied")
	}

	pool, err := database.NewPostgresPool(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(pool)
	logger.Info("Connected to PostgreSQL database")

	redisClient, err := redis.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Connected to Redis")

	checks := map[string]common.DependencyCheck{
		"database": health.DatabaseChecker(pool),
		"redis":    health.RedisChecker(redisClient),
	}

	var (
		bus       *eventbus.Bus
		publisher eventbus.Publisher
	)
	if cfg.NATS.Enabled {
		bus, err = eventbus.Connect(cfg.NATS.URL, serviceName)
		if err != nil {
			logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer bus.Close()
		publisher = bus
		checks["nats"] = health.NATSChecker(bus.Conn())
		logger.Info("Connected to NATS", zap.String("url", cfg.NATS.URL))
	}

	// Risk
	riskRepo := risk.NewRepository(pool)
	samples := risk.NewSampleCache(redisClient, riskRepo, cfg.Risk.HistoryCacheTTL)
	riskService := risk.NewService(riskRepo, samples, publisher, nil, risk.ServiceConfig{
		Weights:         risk.DefaultWeights(),
		AnalysisTimeout: cfg.Risk.AnalysisTimeout,
		StoreBreaker:    cfg.Risk.StoreBreaker,
	})

	// Verification
	verificationService := verification.NewService(
		verification.NewRepository(pool),
		verification.ThresholdsFromConfig(cfg.Risk),
		decimal.NewFromFloat(cfg.Risk.LargePendingAmount),
		publisher,
	)
	if bus != nil {
		if err := verification.NewEventHandler(verificationService).RegisterSubscriptions(ctx, bus); err != nil {
			logger.Fatal("Failed to subscribe to verification events", zap.Error(err))
		}
	}

	// Screening
	screeningService := screening.NewService(
		screening.NewRepository(pool),
		screening.NewChecker(cfg.Screening),
		cfg.Screening.StageDelay,
		publisher,
	)

	var worker *scheduler.Worker
	if cfg.Scheduler.Enabled {
		worker = scheduler.NewWorker(riskService, screeningService, cfg.Scheduler.Interval, logger.Get())
		go worker.Start(ctx)
	}

	limiter := ratelimit.NewLimiter(redisClient, cfg.RateLimit)

	router := newRouter(cfg, checks)
	admin := router.Group("/api/v1/admin")
	admin.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
	admin.Use(middleware.RequireRole(middleware.RoleAdmin))
	admin.Use(middleware.RateLimit(limiter, limiter.AdminRule()))
	admin.Use(middleware.Idempotency(redisClient))
	{
		risk.NewHandler(riskService).RegisterRoutes(admin)
		verification.NewHandler(verificationService).RegisterRoutes(admin)
		screening.NewHandler(screeningService).RegisterRoutes(admin)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Risk service starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down risk service")

	if worker != nil {
		worker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("Failed to flush traces", zap.Error(err))
	}
	logger.Info("Risk service stopped")
}

func newRouter(cfg *config.Config, checks map[string]common.DependencyCheck) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Recovery())
	router.Use(middleware.Metrics(serviceName))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.MaxBodySize(1 << 20))
	if cfg.Sentry.DSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.Server.CORSOrigins, ",")
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key", "X-Correlation-ID"}
	router.Use(cors.New(corsConfig))

	router.Use(middleware.Timeout(time.Duration(cfg.Server.RequestTimeout) * time.Second))

	// Health check and metrics (no auth required)
	router.GET("/healthz", common.HealthCheckWithDeps(serviceName, cfg.Server.Version, checks))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}
