package verification

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the verification lifecycle state of a booking
type Status string

const (
	StatusNotRequired    Status = "NOT_REQUIRED"
	StatusSubmitted      Status = "SUBMITTED"
	StatusPendingCharges Status = "PENDING_CHARGES"
	StatusApproved       Status = "APPROVED"
	StatusRejected       Status = "REJECTED"
	StatusCompleted      Status = "COMPLETED"
)

// Mode tells operators what a queued booking is waiting on
type Mode string

const (
	ModeDocuments Mode = "documents"
	ModeCharges   Mode = "charges"
)

// Reason is the human-readable cause of a verification requirement
type Reason string

const (
	ReasonHostApproval Reason = "host_approval_required"
	ReasonLuxury       Reason = "luxury_vehicle"
	ReasonExotic       Reason = "exotic_vehicle"
	ReasonHighValue    Reason = "high_value_booking"
	ReasonUnverified   Reason = "unverified_host"
	ReasonLongDuration Reason = "long_duration_rental"
)

// Decision is an operator's resolution of a queued booking
type Decision string

const (
	DecisionApprove  Decision = "approve"
	DecisionReject   Decision = "reject"
	DecisionComplete Decision = "complete"
)

// Target returns the status a decision resolves to
func (d Decision) Target() (Status, bool) {
	switch d {
	case DecisionApprove:
		return StatusApproved, true
	case DecisionReject:
		return StatusRejected, true
	case DecisionComplete:
		return StatusCompleted, true
	}
	return "", false
}

// Car is the vehicle projection the gate looks at
type Car struct {
	ID           uuid.UUID       `json:"id"`
	HostID       uuid.UUID       `json:"host_id"`
	CarType      string          `json:"car_type"`
	DailyRate    decimal.Decimal `json:"daily_rate"`
	InstantBook  bool            `json:"instant_book"`
	HostVerified bool            `json:"host_verified"`
}

// Trip holds the return inspection of a booking. Nil pointers were never recorded.
type Trip struct {
	Status         *string    `json:"status,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	StartOdometer  *int       `json:"start_odometer,omitempty"`
	EndOdometer    *int       `json:"end_odometer,omitempty"`
	StartFuelLevel *string    `json:"start_fuel_level,omitempty"`
	EndFuelLevel   *string    `json:"end_fuel_level,omitempty"`
	ActualReturnAt *time.Time `json:"actual_return_at,omitempty"`
	DamageReported bool       `json:"damage_reported"`
}

// Booking is the verification projection of a booking row
type Booking struct {
	ID           uuid.UUID       `json:"id"`
	Code         string          `json:"code"`
	Status       string          `json:"status"`
	StartDate    time.Time       `json:"start_date"`
	EndDate      time.Time       `json:"end_date"`
	NumberOfDays int             `json:"number_of_days"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Car          Car             `json:"car"`

	VerificationStatus   Status     `json:"verification_status"`
	DocumentsSubmittedAt *time.Time `json:"documents_submitted_at,omitempty"`
	ReviewedBy           *uuid.UUID `json:"reviewed_by,omitempty"`
	ReviewedAt           *time.Time `json:"reviewed_at,omitempty"`
	VerificationNotes    *string    `json:"verification_notes,omitempty"`
	FlaggedForReview     bool       `json:"flagged_for_review"`
	IsFraudulent         bool       `json:"is_fraudulent"`

	Trip           Trip            `json:"trip"`
	PendingCharges decimal.Decimal `json:"pending_charges"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ChargeStatus of a TripCharge record
type ChargeStatus string

const (
	ChargePending  ChargeStatus = "pending"
	ChargeCharged  ChargeStatus = "charged"
	ChargeFailed   ChargeStatus = "failed"
	ChargeDisputed ChargeStatus = "disputed"
	ChargeWaived   ChargeStatus = "waived"
)

// TripCharge is a persisted post-trip charge record. It is authoritative over
// computed charges, except for pending records this service computed itself.
type TripCharge struct {
	ID            uuid.UUID       `json:"id"`
	BookingID     uuid.UUID       `json:"booking_id"`
	MileageCharge decimal.Decimal `json:"mileage_charge"`
	FuelCharge    decimal.Decimal `json:"fuel_charge"`
	LateCharge    decimal.Decimal `json:"late_charge"`
	DamageCharge  decimal.Decimal `json:"damage_charge"`
	Total         decimal.Decimal `json:"total"`
	Status        ChargeStatus    `json:"status"`
	Source        ChargeSource    `json:"source"`
	FailureReason *string         `json:"failure_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Replaceable reports whether a later trip end may supersede the record
// with charges derived from corrected telemetry.
func (tc *TripCharge) Replaceable() bool {
	return tc != nil && tc.Source == SourceComputed && tc.Status == ChargePending
}

// ChargeSource tells where a breakdown came from
type ChargeSource string

const (
	SourceNone     ChargeSource = "none"
	SourceComputed ChargeSource = "computed"
	SourceRecorded ChargeSource = "recorded"
)

// Charges is a pending-charge breakdown
type Charges struct {
	Mileage decimal.Decimal `json:"mileage"`
	Fuel    decimal.Decimal `json:"fuel"`
	Late    decimal.Decimal `json:"late"`
	Damage  decimal.Decimal `json:"damage"`
	Total   decimal.Decimal `json:"total"`
	Source  ChargeSource    `json:"source"`
}

// Gate is the verification requirement of one booking
type Gate struct {
	Required bool `json:"required"`
	// Reason is the first matching predicate; empty when not required
	Reason Reason `json:"reason,omitempty"`
	// Matched lists every predicate that held, in evaluation order
	Matched []Reason `json:"matched"`
}

// Urgency raises a queued booking's priority for operators
type Urgency struct {
	OpenDispute        bool `json:"open_dispute"`
	FailedCharge       bool `json:"failed_charge"`
	LargePendingAmount bool `json:"large_pending_amount"`
}

// Any reports whether any urgency flag is set
func (u Urgency) Any() bool {
	return u.OpenDispute || u.FailedCharge || u.LargePendingAmount
}

// GateView is the gate evaluation returned for one booking
type GateView struct {
	BookingID          uuid.UUID `json:"booking_id"`
	BookingCode        string    `json:"booking_code"`
	VerificationStatus Status    `json:"verification_status"`
	Gate               Gate      `json:"gate"`
	Mode               Mode      `json:"mode"`
	Charges            Charges   `json:"charges"`
}

// QueueRow is what the store returns for one queued booking
type QueueRow struct {
	Booking      *Booking
	LatestCharge *TripCharge
	OpenDispute  bool
	FailedCharge bool
}

// QueueItem is one annotated entry of the verification queue
type QueueItem struct {
	Booking *Booking `json:"booking"`
	Mode    Mode     `json:"mode"`
	Reason  Reason   `json:"reason,omitempty"`
	Charges Charges  `json:"charges"`
	Urgency Urgency  `json:"urgency"`
}

// QueueCounts are the aggregate counts shown above the queue
type QueueCounts struct {
	PendingDocuments int64 `json:"pending_documents"`
	PendingCharges   int64 `json:"pending_charges"`
	Approved         int64 `json:"approved"`
	Rejected         int64 `json:"rejected"`
	Completed        int64 `json:"completed"`
	Disputed         int64 `json:"disputed"`
	FailedCharges    int64 `json:"failed_charges"`
}

// Queue is one page of the verification queue plus aggregate counts
type Queue struct {
	Items  []*QueueItem `json:"items"`
	Counts QueueCounts  `json:"counts"`
}

// ========================================
// REQUESTS
// ========================================

// DocumentsRequest records that guest documents arrived
type DocumentsRequest struct {
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
}

// TripEndRequest carries the return inspection
type TripEndRequest struct {
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	StartOdometer  int        `json:"start_odometer" validate:"gte=0"`
	EndOdometer    int        `json:"end_odometer" validate:"gtefield=StartOdometer"`
	StartFuelLevel string     `json:"start_fuel_level" validate:"required,fuel_level"`
	EndFuelLevel   string     `json:"end_fuel_level" validate:"required,fuel_level"`
	DamageReported bool       `json:"damage_reported"`
}

// ResolveRequest is an operator's decision on a queued booking
type ResolveRequest struct {
	Decision string `json:"decision" validate:"required,resolve_decision"`
	Notes    string `json:"notes" validate:"max=2000"`
}
