package risk

import (
	"time"

	"github.com/google/uuid"
)

// Booking is the risk-relevant projection of a booking row
type Booking struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Code        string    `json:"code" db:"code"`
	Status      string    `json:"status" db:"status"`
	TotalAmount float64   `json:"total_amount" db:"total_amount"`

	// Signals
	RiskScore         *float64 `json:"risk_score,omitempty" db:"risk_score"`
	RiskFlags         []string `json:"risk_flags" db:"risk_flags"`
	DeviceFingerprint *string  `json:"device_fingerprint,omitempty" db:"device_fingerprint"`
	IPAddress         *string  `json:"ip_address,omitempty" db:"ip_address"`
	IPCountry         *string  `json:"ip_country,omitempty" db:"ip_country"`
	IPCity            *string  `json:"ip_city,omitempty" db:"ip_city"`
	Email             string   `json:"email" db:"email"`
	EmailDomain       *string  `json:"email_domain,omitempty" db:"email_domain"`
	SessionDurationMs *int64   `json:"session_duration_ms,omitempty" db:"session_duration_ms"`
	InteractionCount  *int     `json:"interaction_count,omitempty" db:"interaction_count"`
	CopyPasteUsed     bool     `json:"copy_paste_used" db:"copy_paste_used"`
	ValidationErrors  int      `json:"validation_errors" db:"validation_errors"`
	CookiesEnabled    bool     `json:"cookies_enabled" db:"cookies_enabled"`
	PhoneVerified     bool     `json:"phone_verified" db:"phone_verified"`
	EmailVerified     bool     `json:"email_verified" db:"email_verified"`
	LicenseVerified   bool     `json:"license_verified" db:"license_verified"`
	SelfieVerified    bool     `json:"selfie_verified" db:"selfie_verified"`

	// Review state
	VerificationStatus string `json:"verification_status" db:"verification_status"`
	FlaggedForReview   bool   `json:"flagged_for_review" db:"flagged_for_review"`
	IsFraudulent       bool   `json:"is_fraudulent" db:"is_fraudulent"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Identifiers are the values used to link bookings to each other. Empty means not captured.
type Identifiers struct {
	DeviceFingerprint string
	IPAddress         string
	Email             string
}

// Empty reports whether no identifier was captured
func (i Identifiers) Empty() bool {
	return i.DeviceFingerprint == "" && i.IPAddress == "" && i.Email == ""
}

// Identifiers extracts the linkable values of b
func (b *Booking) Identifiers() Identifiers {
	return Identifiers{
		DeviceFingerprint: deref(b.DeviceFingerprint),
		IPAddress:         deref(b.IPAddress),
		Email:             b.Email,
	}
}

// IdentifierField names the column a related-booking lookup matches on
type IdentifierField string

const (
	FieldDeviceFingerprint IdentifierField = "device_fingerprint"
	FieldIPAddress         IdentifierField = "ip_address"
	FieldEmail             IdentifierField = "email"
)

// CategoryScore is one category's contribution
type CategoryScore struct {
	Score   float64                `json:"score"`
	Flags   []string               `json:"flags"`
	Details map[string]interface{} `json:"details"`
}

// CategoryBreakdown holds the five category scores
type CategoryBreakdown struct {
	Email    CategoryScore `json:"email"`
	Device   CategoryScore `json:"device"`
	Session  CategoryScore `json:"session"`
	Location CategoryScore `json:"location"`
	Identity CategoryScore `json:"identity"`
}

// Sum returns the uncapped total of the category scores
func (c CategoryBreakdown) Sum() float64 {
	return c.Email.Score + c.Device.Score + c.Session.Score + c.Location.Score + c.Identity.Score
}

// HistoricalComparison places a score within the recent population
type HistoricalComparison struct {
	Percentile float64 `json:"percentile"`
	ZScore     float64 `json:"z_score"`
	Mean       float64 `json:"mean"`
	StdDev     float64 `json:"std_dev"`
	SampleSize int     `json:"sample_size"`
	IsAnomaly  bool    `json:"is_anomaly"`
	// Sufficient is false when the sample was too small to judge
	Sufficient bool `json:"sufficient"`
}

// RelatedBooking is the projection returned by the relationship lookups
type RelatedBooking struct {
	Code        string    `json:"code"`
	CreatedAt   time.Time `json:"created_at"`
	Status      string    `json:"status"`
	TotalAmount float64   `json:"total_amount"`
}

// RelatedBookings are kept per identifier. A booking may appear in several lists.
type RelatedBookings struct {
	ByDevice []RelatedBooking `json:"by_device"`
	ByIP     []RelatedBooking `json:"by_ip"`
	ByEmail  []RelatedBooking `json:"by_email"`
}

// VelocityTier classifies booking volume
type VelocityTier string

const (
	VelocityNormal   VelocityTier = "normal"
	VelocityElevated VelocityTier = "elevated"
	VelocityHigh     VelocityTier = "high"
	VelocityCritical VelocityTier = "critical"
)

// Velocity holds window counts and their tier
type Velocity struct {
	Last24h int          `json:"last_24h"`
	Last7d  int          `json:"last_7d"`
	Last30d int          `json:"last_30d"`
	Tier    VelocityTier `json:"tier"`
}

// Priority of a recommendation
type Priority string

const (
	PriorityNone   Priority = ""
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Recommendation is one suggested operator action
type Recommendation struct {
	Action   string   `json:"action"`
	Reason   string   `json:"reason"`
	Priority Priority `json:"priority"`
}

// Disposition is the advisory decision. It is never executed automatically.
type Disposition string

const (
	DispositionApprove Disposition = "approve"
	DispositionReject  Disposition = "reject"
	DispositionReview  Disposition = "review"
)

// Level buckets the composite score
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// LevelFor maps a composite score onto a level
func LevelFor(score float64) Level {
	switch {
	case score < 30:
		return LevelLow
	case score < 50:
		return LevelMedium
	case score < 70:
		return LevelHigh
	default:
		return LevelCritical
	}
}

// ManualReviewScore is the composite score from which review is always required
const ManualReviewScore = 70

// AvailableActions is shown with every analysis
var AvailableActions = []string{
	"Approve booking",
	"Reject booking",
	"Request additional verification",
	"Flag for further review",
	"Add admin notes",
	"Contact guest",
	"Block device/IP",
	"Report to fraud database",
}

// OverrideOptions is shown with every analysis
var OverrideOptions = []string{
	"Override risk score",
	"Approve despite high risk",
	"Whitelist email/device",
	"Mark as false positive",
}

// Analysis is the full risk report for one booking
type Analysis struct {
	BookingID            uuid.UUID            `json:"booking_id"`
	BookingCode          string               `json:"booking_code"`
	Score                float64              `json:"score"`
	Level                Level                `json:"level"`
	Percentile           float64              `json:"percentile"`
	IsAnomaly            bool                 `json:"is_anomaly"`
	RequiresManualReview bool                 `json:"requires_manual_review"`
	Categories           CategoryBreakdown    `json:"categories"`
	Historical           HistoricalComparison `json:"historical"`
	Related              RelatedBookings      `json:"related_bookings"`
	Velocity             Velocity             `json:"velocity"`
	Recommendations      []Recommendation     `json:"recommendations"`
	Priority             Priority             `json:"priority,omitempty"`
	SuggestedAction      Disposition          `json:"suggested_action"`
	AvailableActions     []string             `json:"available_actions"`
	OverrideOptions      []string             `json:"override_options"`
	// Degraded lists sub-components that fell back to defaults
	Degraded   []string  `json:"degraded,omitempty"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

// ========================================
// ADMIN ACTIONS
// ========================================

// AdminAction names an operator mutation
type AdminAction string

const (
	ActionOverrideRisk      AdminAction = "override_risk"
	ActionWhitelist         AdminAction = "whitelist"
	ActionMarkFalsePositive AdminAction = "mark_false_positive"
	ActionBlockDevice       AdminAction = "block_device"
)

// Valid reports whether a is a known action
func (a AdminAction) Valid() bool {
	switch a {
	case ActionOverrideRisk, ActionWhitelist, ActionMarkFalsePositive, ActionBlockDevice:
		return true
	}
	return false
}

// ActionRequest is the body of the admin action endpoint
type ActionRequest struct {
	Action   string   `json:"action" validate:"required,admin_action"`
	Notes    string   `json:"notes" validate:"max=2000"`
	NewScore *float64 `json:"new_score,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// AdminCommand is a validated action ready for the store
type AdminCommand struct {
	BookingID uuid.UUID
	Action    AdminAction
	Notes     string
	NewScore  *float64
	AdminID   uuid.UUID
}

// AuditEntry is an immutable record of one admin action
type AuditEntry struct {
	ID            uuid.UUID   `json:"id" db:"id"`
	Sequence      int64       `json:"sequence" db:"seq"`
	BookingID     uuid.UUID   `json:"booking_id" db:"booking_id"`
	Action        AdminAction `json:"action" db:"action"`
	Notes         string      `json:"notes" db:"notes"`
	PreviousScore *float64    `json:"previous_score,omitempty" db:"previous_score"`
	NewScore      *float64    `json:"new_score,omitempty" db:"new_score"`
	AdminID       uuid.UUID   `json:"admin_id" db:"admin_id"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
}

// ActionResult is returned after an admin action commits
type ActionResult struct {
	Audit             *AuditEntry `json:"audit"`
	DeviceFingerprint string      `json:"-"`
	IPAddress         string      `json:"-"`
}

// ScoreSample is one historical composite score
type ScoreSample struct {
	BookingID uuid.UUID `json:"id"`
	Score     float64   `json:"score"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
