package risk

import "strings"

// Category is one of the five signal domains a flag contributes to
type Category string

const (
	CategoryEmail    Category = "email"
	CategoryDevice   Category = "device"
	CategorySession  Category = "session"
	CategoryLocation Category = "location"
	CategoryIdentity Category = "identity"
)

// Categories lists every category in report order
var Categories = []Category{CategoryEmail, CategoryDevice, CategorySession, CategoryLocation, CategoryIdentity}

// RiskFlag is a precomputed signal attached to a booking by upstream collectors
type RiskFlag string

// Email
const (
	FlagDisposableDomain RiskFlag = "disposable_domain"
	FlagSuspiciousEmail  RiskFlag = "suspicious_email"
	FlagEmailUnverified  RiskFlag = "email_unverified"
	FlagNewEmailDomain   RiskFlag = "new_email_domain"
)

// Device
const (
	FlagBotSignal          RiskFlag = "bot_signal"
	FlagHeadlessBrowser    RiskFlag = "headless_browser"
	FlagDeviceShared       RiskFlag = "device_shared"
	FlagEmulatorDetected   RiskFlag = "emulator_detected"
	FlagCookiesDisabled    RiskFlag = "cookies_disabled"
	FlagFingerprintMissing RiskFlag = "fingerprint_missing"
)

// Session
const (
	FlagShortSession      RiskFlag = "short_session"
	FlagRapidFormFill     RiskFlag = "rapid_form_fill"
	FlagCopyPasteDetected RiskFlag = "copy_paste_detected"
	FlagValidationErrors  RiskFlag = "validation_errors"
	FlagLowInteraction    RiskFlag = "low_interaction"
)

// Location
const (
	FlagVPNDetected       RiskFlag = "vpn_detected"
	FlagProxyDetected     RiskFlag = "proxy_detected"
	FlagTorExitNode       RiskFlag = "tor_exit_node"
	FlagIPCountryMismatch RiskFlag = "ip_country_mismatch"
	FlagHighRiskCountry   RiskFlag = "high_risk_country"
)

// Identity
const (
	FlagPhoneUnverified   RiskFlag = "phone_unverified"
	FlagLicenseUnverified RiskFlag = "license_unverified"
	FlagSelfieUnverified  RiskFlag = "selfie_unverified"
	FlagDocumentMismatch  RiskFlag = "document_mismatch"
	FlagNameMismatch      RiskFlag = "name_mismatch"
)

var knownFlags = map[RiskFlag]Category{
	FlagDisposableDomain: CategoryEmail,
	FlagSuspiciousEmail:  CategoryEmail,
	FlagEmailUnverified:  CategoryEmail,
	FlagNewEmailDomain:   CategoryEmail,

	FlagBotSignal:          CategoryDevice,
	FlagHeadlessBrowser:    CategoryDevice,
	FlagDeviceShared:       CategoryDevice,
	FlagEmulatorDetected:   CategoryDevice,
	FlagCookiesDisabled:    CategoryDevice,
	FlagFingerprintMissing: CategoryDevice,

	FlagShortSession:      CategorySession,
	FlagRapidFormFill:     CategorySession,
	FlagCopyPasteDetected: CategorySession,
	FlagValidationErrors:  CategorySession,
	FlagLowInteraction:    CategorySession,

	FlagVPNDetected:       CategoryLocation,
	FlagProxyDetected:     CategoryLocation,
	FlagTorExitNode:       CategoryLocation,
	FlagIPCountryMismatch: CategoryLocation,
	FlagHighRiskCountry:   CategoryLocation,

	FlagPhoneUnverified:   CategoryIdentity,
	FlagLicenseUnverified: CategoryIdentity,
	FlagSelfieUnverified:  CategoryIdentity,
	FlagDocumentMismatch:  CategoryIdentity,
	FlagNameMismatch:      CategoryIdentity,
}

// Collectors occasionally emit flags newer than this table. Those are placed
// by keyword, checked in Categories order, first match wins.
var categoryKeywords = []struct {
	category Category
	keywords []string
}{
	{CategoryEmail, []string{"email", "disposable", "domain"}},
	{CategoryDevice, []string{"device", "bot", "headless", "fingerprint", "emulator", "cookie", "browser"}},
	{CategorySession, []string{"session", "form", "paste", "interaction", "typing", "validation"}},
	{CategoryLocation, []string{"vpn", "proxy", "tor_", "country", "geo", "location", "ip_"}},
	{CategoryIdentity, []string{"phone", "license", "selfie", "document", "identity", "name"}},
}

// ParseFlag normalizes a stored flag string
func ParseFlag(s string) RiskFlag {
	return RiskFlag(strings.ToLower(strings.TrimSpace(s)))
}

// Category returns the category of f and false when f matches none
func (f RiskFlag) Category() (Category, bool) {
	if c, ok := knownFlags[f]; ok {
		return c, true
	}
	s := string(f)
	for _, entry := range categoryKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(s, kw) {
				return entry.category, true
			}
		}
	}
	return "", false
}

// IsBotSignal reports flags that indicate automated traffic
func (f RiskFlag) IsBotSignal() bool {
	return f == FlagBotSignal || f == FlagHeadlessBrowser || strings.Contains(string(f), "bot") || strings.Contains(string(f), "headless")
}

// IsMaskedNetwork reports vpn, proxy and tor flags
func (f RiskFlag) IsMaskedNetwork() bool {
	s := string(f)
	return strings.Contains(s, "vpn") || strings.Contains(s, "proxy") || strings.HasPrefix(s, "tor_")
}

// IsDisposableEmail reports throwaway-domain flags
func (f RiskFlag) IsDisposableEmail() bool {
	return strings.Contains(string(f), "disposable")
}

// PartitionFlags groups raw flag strings by category, preserving input order
// and dropping duplicates and unclassifiable flags.
func PartitionFlags(raw []string) map[Category][]RiskFlag {
	out := make(map[Category][]RiskFlag, len(Categories))
	seen := make(map[RiskFlag]struct{}, len(raw))
	for _, r := range raw {
		f := ParseFlag(r)
		if f == "" {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		if c, ok := f.Category(); ok {
			out[c] = append(out[c], f)
		}
	}
	return out
}

func anyFlag(flags []RiskFlag, pred func(RiskFlag) bool) bool {
	for _, f := range flags {
		if pred(f) {
			return true
		}
	}
	return false
}
