package verification

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// MilesPerDay is the included mileage allowance per rental day
const MilesPerDay = 200

// Post-trip billing rates
var (
	MileageOverageRate = decimal.RequireFromString("0.45")
	FuelQuarterRate    = decimal.NewFromInt(75)
	LateHourRate       = decimal.NewFromInt(50)
	DamageBaseCharge   = decimal.NewFromInt(250)
)

// FuelQuarters converts a fuel level category into quarter tanks
func FuelQuarters(level string) (int, bool) {
	switch level {
	case "FULL":
		return 4, true
	case "3/4":
		return 3, true
	case "1/2":
		return 2, true
	case "1/4":
		return 1, true
	case "EMPTY":
		return 0, true
	}
	return 0, false
}

// ComputeCharges derives the pending charges from trip telemetry. Missing
// telemetry contributes nothing.
func ComputeCharges(trip Trip, days int, scheduledEnd time.Time) Charges {
	c := Charges{
		Mileage: decimal.Zero,
		Fuel:    decimal.Zero,
		Late:    decimal.Zero,
		Damage:  decimal.Zero,
		Source:  SourceComputed,
	}

	if trip.StartOdometer != nil && trip.EndOdometer != nil {
		allowance := days * MilesPerDay
		if over := *trip.EndOdometer - *trip.StartOdometer - allowance; over > 0 {
			c.Mileage = MileageOverageRate.Mul(decimal.NewFromInt(int64(over)))
		}
	}

	if trip.StartFuelLevel != nil && trip.EndFuelLevel != nil {
		start, okStart := FuelQuarters(*trip.StartFuelLevel)
		end, okEnd := FuelQuarters(*trip.EndFuelLevel)
		if okStart && okEnd && start > end {
			c.Fuel = FuelQuarterRate.Mul(decimal.NewFromInt(int64(start - end)))
		}
	}

	returnedAt := trip.ActualReturnAt
	if returnedAt == nil {
		returnedAt = trip.EndedAt
	}
	if returnedAt != nil && !scheduledEnd.IsZero() && returnedAt.After(scheduledEnd) {
		hours := int64(math.Ceil(returnedAt.Sub(scheduledEnd).Hours()))
		c.Late = LateHourRate.Mul(decimal.NewFromInt(hours))
	}

	if trip.DamageReported {
		c.Damage = DamageBaseCharge
	}

	c.Mileage = c.Mileage.Round(2)
	c.Total = c.Mileage.Add(c.Fuel).Add(c.Late).Add(c.Damage).Round(2)
	return c
}

// Matches reports whether the breakdown carries the same amounts as a record
func (c Charges) Matches(tc *TripCharge) bool {
	return tc != nil &&
		c.Mileage.Equal(tc.MileageCharge) &&
		c.Fuel.Equal(tc.FuelCharge) &&
		c.Late.Equal(tc.LateCharge) &&
		c.Damage.Equal(tc.DamageCharge) &&
		c.Total.Equal(tc.Total)
}

// FromRecord converts a persisted charge record into a breakdown
func FromRecord(tc *TripCharge) Charges {
	return Charges{
		Mileage: tc.MileageCharge,
		Fuel:    tc.FuelCharge,
		Late:    tc.LateCharge,
		Damage:  tc.DamageCharge,
		Total:   tc.Total,
		Source:  SourceRecorded,
	}
}

// EffectiveCharges prefers the latest charge record, then computes from
// telemetry once the trip has ended.
func EffectiveCharges(b *Booking, latest *TripCharge) Charges {
	if latest != nil {
		return FromRecord(latest)
	}
	if b.Trip.EndedAt == nil {
		return Charges{
			Mileage: decimal.Zero,
			Fuel:    decimal.Zero,
			Late:    decimal.Zero,
			Damage:  decimal.Zero,
			Total:   decimal.Zero,
			Source:  SourceNone,
		}
	}
	return ComputeCharges(b.Trip, b.NumberOfDays, b.EndDate)
}
