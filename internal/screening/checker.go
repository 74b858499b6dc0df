package screening

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/richxcame/rental-risk/pkg/config"
	"github.com/richxcame/rental-risk/pkg/httpclient"
	"github.com/richxcame/rental-risk/pkg/resilience"
)

type checkRequest struct {
	HostID string `json:"host_id"`
	Stage  Stage  `json:"stage"`
}

// ProviderChecker asks an external background-check provider for a verdict
type ProviderChecker struct {
	client *httpclient.Client
}

// NewProviderChecker creates a checker for the provider at baseURL. Calls are
// retried on 5xx and transport errors and guarded by a circuit breaker.
func NewProviderChecker(baseURL string, timeout time.Duration, breakerCfg config.BreakerConfig) *ProviderChecker {
	breaker := resilience.NewCircuitBreaker(resilience.FromConfig("screening-provider", breakerCfg), nil)
	client := httpclient.NewClient(baseURL, timeout).Apply(
		httpclient.WithDefaultRetry(),
		httpclient.WithBreaker(breaker),
	)
	return &ProviderChecker{client: client}
}

// Check submits the stage. The stage id is the idempotency key so retried
// submissions never open a second check.
func (p *ProviderChecker) Check(ctx context.Context, stage *StageRecord) (*CheckResult, error) {
	body, err := p.client.PostWithIdempotency(ctx, "/checks/"+string(stage.Stage), checkRequest{
		HostID: stage.HostID.String(),
		Stage:  stage.Stage,
	}, nil, stage.ID.String())
	if err != nil {
		return nil, fmt.Errorf("%s check: %w", stage.Stage, err)
	}

	var result CheckResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode %s check: %w", stage.Stage, err)
	}
	return &result, nil
}

// LocalChecker clears every stage. Used when no provider is configured so the
// pipeline still advances on its schedule.
type LocalChecker struct{}

// Check always passes
func (LocalChecker) Check(_ context.Context, stage *StageRecord) (*CheckResult, error) {
	return &CheckResult{Passed: true, Notes: fmt.Sprintf("%s cleared without external provider", stage.Stage)}, nil
}

// NewChecker returns a ProviderChecker when baseURL is set, LocalChecker otherwise
func NewChecker(cfg config.ScreeningConfig) Checker {
	if cfg.ProviderURL == "" {
		return LocalChecker{}
	}
	return NewProviderChecker(cfg.ProviderURL, cfg.ProviderTimeout, cfg.ProviderBreaker)
}
