package eventbus

import "time"

// Subjects consumed by the risk service
const (
	SubjectDocumentsSubmitted = "bookings.documents_submitted"
	SubjectTripEnded          = "trips.ended"
)

// Subjects published after admin actions commit
const (
	SubjectRiskOverride         = "risk.admin.risk_override"
	SubjectWhitelistAdded       = "risk.admin.whitelist_added"
	SubjectFalsePositiveMarked  = "risk.admin.false_positive_marked"
	SubjectDeviceBlockRequested = "risk.admin.device_block_requested"
	SubjectVerificationResolved = "risk.admin.verification_resolved"
	SubjectHostVerified         = "hosts.verified"
)

// DocumentsSubmittedData is published by the booking service when a renter
// uploads pickup photos and the license check
type DocumentsSubmittedData struct {
	BookingID   string    `json:"booking_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// TripEndedData carries the return inspection
type TripEndedData struct {
	BookingID      string    `json:"booking_id"`
	EndedAt        time.Time `json:"ended_at"`
	StartOdometer  int       `json:"start_odometer"`
	EndOdometer    int       `json:"end_odometer"`
	StartFuelLevel string    `json:"start_fuel_level"`
	EndFuelLevel   string    `json:"end_fuel_level"`
	DamageReported bool      `json:"damage_reported"`
}

// RiskAdminActionData describes a committed admin decision
type RiskAdminActionData struct {
	BookingID     string   `json:"booking_id"`
	Action        string   `json:"action"`
	AdminID       string   `json:"admin_id"`
	Notes         string   `json:"notes,omitempty"`
	PreviousScore *float64 `json:"previous_score,omitempty"`
	NewScore      *float64 `json:"new_score,omitempty"`
	// Set for device_block_requested only
	DeviceFingerprint string `json:"device_fingerprint,omitempty"`
	IPAddress         string `json:"ip_address,omitempty"`
}

// VerificationResolvedData is published when an admin resolves a verification
type VerificationResolvedData struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
	AdminID   string `json:"admin_id"`
}

// HostVerifiedData is published when the last screening stage passes
type HostVerifiedData struct {
	HostID     string    `json:"host_id"`
	VerifiedAt time.Time `json:"verified_at"`
}
