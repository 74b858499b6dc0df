package verification

import (
	"strings"

	"github.com/richxcame/rental-risk/pkg/config"
	"github.com/shopspring/decimal"
)

// Thresholds are the immutable gate tunables. They are copied by value into the service.
type Thresholds struct {
	LuxuryDailyRate decimal.Decimal
	HighValueTotal  decimal.Decimal
	LongTripDays    int
	exotic          map[string]struct{}
}

// NewThresholds builds thresholds. Car types are matched case-insensitively.
func NewThresholds(luxuryDailyRate, highValueTotal decimal.Decimal, longTripDays int, exoticCarTypes []string) Thresholds {
	exotic := make(map[string]struct{}, len(exoticCarTypes))
	for _, t := range exoticCarTypes {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			exotic[t] = struct{}{}
		}
	}
	return Thresholds{
		LuxuryDailyRate: luxuryDailyRate,
		HighValueTotal:  highValueTotal,
		LongTripDays:    longTripDays,
		exotic:          exotic,
	}
}

// ThresholdsFromConfig builds thresholds from the risk config block
func ThresholdsFromConfig(cfg config.RiskConfig) Thresholds {
	return NewThresholds(
		decimal.NewFromFloat(cfg.LuxuryDailyRate),
		decimal.NewFromFloat(cfg.HighValueTotal),
		cfg.LongTripDays,
		cfg.ExoticCarTypes,
	)
}

// IsExotic reports whether carType is in the exotic set
func (t Thresholds) IsExotic(carType string) bool {
	_, ok := t.exotic[strings.ToUpper(strings.TrimSpace(carType))]
	return ok
}

// ExoticCarTypes returns the exotic set, used to parameterize store queries
func (t Thresholds) ExoticCarTypes() []string {
	out := make([]string, 0, len(t.exotic))
	for k := range t.exotic {
		out = append(out, k)
	}
	return out
}

type gateRule struct {
	reason Reason
	when   func(t Thresholds, b *Booking) bool
}

// Order matters: the first matching rule is the reported reason.
var gateRules = []gateRule{
	{ReasonHostApproval, func(_ Thresholds, b *Booking) bool { return !b.Car.InstantBook }},
	{ReasonLuxury, func(t Thresholds, b *Booking) bool { return b.Car.DailyRate.GreaterThanOrEqual(t.LuxuryDailyRate) }},
	{ReasonExotic, func(t Thresholds, b *Booking) bool { return t.IsExotic(b.Car.CarType) }},
	{ReasonHighValue, func(t Thresholds, b *Booking) bool { return b.TotalAmount.GreaterThanOrEqual(t.HighValueTotal) }},
	{ReasonUnverified, func(_ Thresholds, b *Booking) bool { return !b.Car.HostVerified }},
	{ReasonLongDuration, func(t Thresholds, b *Booking) bool { return b.NumberOfDays >= t.LongTripDays }},
}

// Evaluate runs the gate predicate against a booking
func Evaluate(t Thresholds, b *Booking) Gate {
	gate := Gate{Matched: []Reason{}}
	for _, r := range gateRules {
		if !r.when(t, b) {
			continue
		}
		if !gate.Required {
			gate.Required = true
			gate.Reason = r.reason
		}
		gate.Matched = append(gate.Matched, r.reason)
	}
	return gate
}
