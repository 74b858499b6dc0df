package risk

// SlowSessionMs is the session length under which activity is monitored
const SlowSessionMs = 120000

const (
	RejectScore       = 85
	ApproveBelowScore = 30
)

// RecommendationInput is everything the rule table looks at
type RecommendationInput struct {
	Score             float64
	Categories        CategoryBreakdown
	VelocityTier      VelocityTier
	IsAnomaly         bool
	LicenseVerified   bool
	SelfieVerified    bool
	SessionDurationMs *int64
}

type rule struct {
	name string
	when func(in RecommendationInput) bool
	emit Recommendation
}

// Rules are evaluated in order; each fires at most once.
var recommendationRules = []rule{
	{
		name: "high_score",
		when: func(in RecommendationInput) bool { return in.Score >= ManualReviewScore },
		emit: Recommendation{Action: "require additional verification", Reason: "composite risk score is 70 or above", Priority: PriorityHigh},
	},
	{
		name: "bot_detected",
		when: func(in RecommendationInput) bool { return hasBotSignal(in.Categories) },
		emit: Recommendation{Action: "reject — automated bot detected", Reason: "device signals indicate automated or headless traffic", Priority: PriorityHigh},
	},
	{
		name: "critical_velocity",
		when: func(in RecommendationInput) bool { return in.VelocityTier == VelocityCritical },
		emit: Recommendation{Action: "review all related bookings", Reason: "more than 5 bookings share an identifier in the last 24 hours", Priority: PriorityHigh},
	},
	{
		name: "masked_network",
		when: func(in RecommendationInput) bool {
			return flagsMatch(in.Categories.Location.Flags, RiskFlag.IsMaskedNetwork)
		},
		emit: Recommendation{Action: "verify actual location", Reason: "booking was placed through a VPN or proxy", Priority: PriorityMedium},
	},
	{
		name: "disposable_email",
		when: func(in RecommendationInput) bool {
			return flagsMatch(in.Categories.Email.Flags, RiskFlag.IsDisposableEmail)
		},
		emit: Recommendation{Action: "request permanent email", Reason: "email address uses a disposable domain", Priority: PriorityMedium},
	},
	{
		name: "documents_incomplete",
		when: func(in RecommendationInput) bool { return !in.LicenseVerified || !in.SelfieVerified },
		emit: Recommendation{Action: "complete document verification", Reason: "driver license or selfie has not been verified", Priority: PriorityMedium},
	},
	{
		name: "short_session",
		when: func(in RecommendationInput) bool {
			return in.SessionDurationMs != nil && *in.SessionDurationMs < SlowSessionMs
		},
		emit: Recommendation{Action: "monitor for unusual activity", Reason: "booking session lasted under two minutes", Priority: PriorityLow},
	},
	{
		name: "statistical_outlier",
		when: func(in RecommendationInput) bool { return in.IsAnomaly },
		emit: Recommendation{Action: "flag for statistical review", Reason: "score is an outlier against recent bookings", Priority: PriorityLow},
	},
}

// Recommend runs the rule table and returns fired recommendations in rule order
// together with the highest priority among them.
func Recommend(in RecommendationInput) ([]Recommendation, Priority) {
	recs := []Recommendation{}
	top := PriorityNone
	for _, r := range recommendationRules {
		if !r.when(in) {
			continue
		}
		recs = append(recs, r.emit)
		if r.emit.Priority.rank() > top.rank() {
			top = r.emit.Priority
		}
	}
	return recs, top
}

// SuggestDisposition returns the advisory decision. Approval needs a low-level
// score (below ApproveBelowScore) and normal velocity.
func SuggestDisposition(score float64, categories CategoryBreakdown, tier VelocityTier) Disposition {
	if score >= RejectScore || hasBotSignal(categories) {
		return DispositionReject
	}
	if score < ApproveBelowScore && tier == VelocityNormal {
		return DispositionApprove
	}
	return DispositionReview
}

func hasBotSignal(c CategoryBreakdown) bool {
	return flagsMatch(c.Device.Flags, RiskFlag.IsBotSignal)
}

func flagsMatch(flags []string, pred func(RiskFlag) bool) bool {
	for _, f := range flags {
		if pred(RiskFlag(f)) {
			return true
		}
	}
	return false
}
