package scheduler

import "context"

// RiskScorer persists derived composite scores for bookings that have none
type RiskScorer interface {
	ScoreUnscored(ctx context.Context, batch int) (int, error)
}

// ScreeningAdvancer runs host screening stages that are due
type ScreeningAdvancer interface {
	AdvanceDue(ctx context.Context, batch int) (int, error)
}
