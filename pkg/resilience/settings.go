package resilience

import (
	"time"

	"github.com/richxcame/rental-risk/pkg/config"
)

// Breaker defaults applied to unset or non-positive knobs
const (
	DefaultInterval         = time.Minute
	DefaultOpenTimeout      = 30 * time.Second
	DefaultFailureThreshold = 5
	DefaultSuccessThreshold = 1
)

// FromConfig builds breaker settings from a configured breaker block.
// ignored errors never count as failures.
func FromConfig(name string, c config.BreakerConfig, ignored ...error) Settings {
	s := Settings{
		Name:             name,
		Interval:         seconds(c.IntervalSeconds, DefaultInterval),
		Timeout:          seconds(c.TimeoutSeconds, DefaultOpenTimeout),
		FailureThreshold: threshold(c.FailureThreshold, DefaultFailureThreshold),
		SuccessThreshold: threshold(c.SuccessThreshold, DefaultSuccessThreshold),
	}
	if len(ignored) > 0 {
		s.IgnoredErrors = ignored
	}
	return s
}

func seconds(n int, fallback time.Duration) time.Duration {
	if n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}

func threshold(n int, fallback uint32) uint32 {
	if n <= 0 {
		return fallback
	}
	return uint32(n)
}
