package risk

import (
	"math"
	"strings"
)

// Weights are the per-flag points each category adds
type Weights struct {
	Email    float64
	Device   float64
	Session  float64
	Location float64
	Identity float64
}

// DefaultWeights rank device and location signals above session ones
func DefaultWeights() Weights {
	return Weights{
		Email:    15,
		Device:   20,
		Session:  10,
		Location: 15,
		Identity: 10,
	}
}

func (w Weights) forCategory(c Category) float64 {
	switch c {
	case CategoryEmail:
		return w.Email
	case CategoryDevice:
		return w.Device
	case CategorySession:
		return w.Session
	case CategoryLocation:
		return w.Location
	case CategoryIdentity:
		return w.Identity
	}
	return 0
}

// Scorer converts booking flags into category scores. It is a pure function of the booking.
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer with the given weights
func NewScorer(weights Weights) Scorer {
	return Scorer{weights: weights}
}

// Score partitions the booking's flags and computes each category
func (s Scorer) Score(b *Booking) CategoryBreakdown {
	parts := PartitionFlags(b.RiskFlags)

	return CategoryBreakdown{
		Email:    s.category(CategoryEmail, parts[CategoryEmail], emailDetails(b, parts[CategoryEmail])),
		Device:   s.category(CategoryDevice, parts[CategoryDevice], deviceDetails(b, parts[CategoryDevice])),
		Session:  s.category(CategorySession, parts[CategorySession], sessionDetails(b)),
		Location: s.category(CategoryLocation, parts[CategoryLocation], locationDetails(b, parts[CategoryLocation])),
		Identity: s.category(CategoryIdentity, parts[CategoryIdentity], identityDetails(b)),
	}
}

func (s Scorer) category(c Category, flags []RiskFlag, details map[string]interface{}) CategoryScore {
	names := make([]string, 0, len(flags))
	for _, f := range flags {
		names = append(names, string(f))
	}
	return CategoryScore{
		Score:   clampScore(float64(len(flags)) * s.weights.forCategory(c)),
		Flags:   names,
		Details: details,
	}
}

// CompositeScore returns the stored score when present, otherwise the capped category sum
func CompositeScore(b *Booking, categories CategoryBreakdown) float64 {
	if b.RiskScore != nil {
		return clampScore(*b.RiskScore)
	}
	return clampScore(categories.Sum())
}

func emailDetails(b *Booking, flags []RiskFlag) map[string]interface{} {
	return map[string]interface{}{
		"address":    b.Email,
		"domain":     deref(b.EmailDomain),
		"verified":   b.EmailVerified,
		"disposable": anyFlag(flags, RiskFlag.IsDisposableEmail),
	}
}

func deviceDetails(b *Booking, flags []RiskFlag) map[string]interface{} {
	botSignals := []string{}
	cookiesDisabled := false
	for _, f := range flags {
		if f.IsBotSignal() {
			botSignals = append(botSignals, string(f))
		}
		if f == FlagCookiesDisabled {
			cookiesDisabled = true
		}
	}
	return map[string]interface{}{
		"fingerprint":     deref(b.DeviceFingerprint),
		"bot_signals":     botSignals,
		"cookies_enabled": b.CookiesEnabled && !cookiesDisabled,
	}
}

func sessionDetails(b *Booking) map[string]interface{} {
	details := map[string]interface{}{
		"duration_ms":       nil,
		"interactions":      nil,
		"copy_paste_used":   b.CopyPasteUsed,
		"validation_errors": b.ValidationErrors,
	}
	if b.SessionDurationMs != nil {
		details["duration_ms"] = *b.SessionDurationMs
	}
	if b.InteractionCount != nil {
		details["interactions"] = *b.InteractionCount
	}
	return details
}

func locationDetails(b *Booking, flags []RiskFlag) map[string]interface{} {
	vpn, proxy := false, false
	for _, f := range flags {
		switch {
		case strings.Contains(string(f), "proxy"):
			proxy = true
		case f.IsMaskedNetwork():
			vpn = true
		}
	}
	return map[string]interface{}{
		"ip":      deref(b.IPAddress),
		"country": deref(b.IPCountry),
		"city":    deref(b.IPCity),
		"vpn":     vpn,
		"proxy":   proxy,
	}
}

func identityDetails(b *Booking) map[string]interface{} {
	return map[string]interface{}{
		"phone_verified":   b.PhoneVerified,
		"email_verified":   b.EmailVerified,
		"license_verified": b.LicenseVerified,
		"selfie_verified":  b.SelfieVerified,
	}
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return math.Min(100, v)
}
