package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/richxcame/rental-risk/pkg/config"
)

// fixed window counter; returns {count, pttl}
const windowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {current, redis.call("PTTL", KEYS[1])}
`

// Rule is the quota of one key
type Rule struct {
	Limit  int
	Window time.Duration
}

// Result is the verdict for one request
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAfter time.Duration
}

// Limiter counts requests per key in Redis
type Limiter struct {
	client redis.Scripter
	cfg    config.RateLimitConfig
	script *redis.Script
}

// NewLimiter creates a limiter backed by client
func NewLimiter(client redis.Scripter, cfg config.RateLimitConfig) *Limiter {
	return &Limiter{
		client: client,
		cfg:    cfg,
		script: redis.NewScript(windowScript),
	}
}

// AdminRule is the configured quota for mutating admin requests
func (l *Limiter) AdminRule() Rule {
	return Rule{Limit: l.cfg.AdminLimit, Window: l.cfg.Window()}
}

// Allow counts one request against key. A disabled limiter or a non-positive
// limit always allows.
func (l *Limiter) Allow(ctx context.Context, key string, rule Rule) (*Result, error) {
	if !l.cfg.Enabled || rule.Limit <= 0 {
		return &Result{Allowed: true, Limit: rule.Limit, Remaining: rule.Limit}, nil
	}
	window := rule.Window
	if window <= 0 {
		window = l.cfg.Window()
	}

	raw, err := l.script.Run(ctx, l.client, []string{l.key(key)}, window.Milliseconds()).Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit script: %w", err)
	}
	if len(raw) != 2 {
		return nil, fmt.Errorf("rate limit script: unexpected reply %v", raw)
	}
	count, _ := raw[0].(int64)
	pttl, _ := raw[1].(int64)

	remaining := rule.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return &Result{
		Allowed:    int(count) <= rule.Limit,
		Limit:      rule.Limit,
		Remaining:  remaining,
		ResetAfter: time.Duration(pttl) * time.Millisecond,
	}, nil
}

func (l *Limiter) key(key string) string {
	return l.cfg.RedisPrefix + ":" + key
}
