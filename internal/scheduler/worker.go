package scheduler

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// BatchSize bounds the work of one job per tick
const BatchSize = 100

var jobRuns = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "scheduler_job_runs_total",
		Help: "Scheduler job runs by job and outcome",
	},
	[]string{"job", "outcome"},
)

// Worker runs the periodic background jobs of the risk service
type Worker struct {
	risk      RiskScorer
	screening ScreeningAdvancer
	interval  time.Duration
	logger    *zap.Logger
	done      chan struct{}
}

// NewWorker creates a new scheduler worker. Either job may be nil.
func NewWorker(risk RiskScorer, screening ScreeningAdvancer, interval time.Duration, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		risk:      risk,
		screening: screening,
		interval:  interval,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start runs the jobs once and then on every tick until ctx is cancelled or Stop is called
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Starting scheduler worker", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runJobs(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Scheduler worker stopped by context")
			return
		case <-w.done:
			w.logger.Info("Scheduler worker stopped")
			return
		case <-ticker.C:
			w.runJobs(ctx)
		}
	}
}

// Stop signals Start to return. It must be called at most once.
func (w *Worker) Stop() {
	close(w.done)
}

func (w *Worker) runJobs(ctx context.Context) {
	if w.risk != nil {
		w.run(ctx, "score_unscored", w.risk.ScoreUnscored)
	}
	if w.screening != nil {
		w.run(ctx, "advance_screening", w.screening.AdvanceDue)
	}
}

func (w *Worker) run(ctx context.Context, job string, fn func(context.Context, int) (int, error)) {
	start := time.Now()
	n, err := fn(ctx, BatchSize)
	if err != nil {
		jobRuns.WithLabelValues(job, "error").Inc()
		w.logger.Error("Scheduler job failed", zap.String("job", job), zap.Error(err))
		return
	}
	jobRuns.WithLabelValues(job, "ok").Inc()
	if n > 0 {
		w.logger.Info("Scheduler job completed",
			zap.String("job", job),
			zap.Int("processed", n),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
