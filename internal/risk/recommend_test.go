package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func actions(recs []Recommendation) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Action)
	}
	return out
}

func verifiedInput() RecommendationInput {
	return RecommendationInput{
		VelocityTier:    VelocityNormal,
		LicenseVerified: true,
		SelfieVerified:  true,
	}
}

func TestRecommend_Rules(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(in *RecommendationInput)
		action   string
		priority Priority
	}{
		{"high score", func(in *RecommendationInput) { in.Score = 70 }, "require additional verification", PriorityHigh},
		{"bot", func(in *RecommendationInput) { in.Categories.Device.Flags = []string{"headless_browser"} }, "reject — automated bot detected", PriorityHigh},
		{"critical velocity", func(in *RecommendationInput) { in.VelocityTier = VelocityCritical }, "review all related bookings", PriorityHigh},
		{"proxy", func(in *RecommendationInput) { in.Categories.Location.Flags = []string{"proxy_detected"} }, "verify actual location", PriorityMedium},
		{"disposable", func(in *RecommendationInput) { in.Categories.Email.Flags = []string{"disposable_domain"} }, "request permanent email", PriorityMedium},
		{"selfie missing", func(in *RecommendationInput) { in.SelfieVerified = false }, "complete document verification", PriorityMedium},
		{"short session", func(in *RecommendationInput) { in.SessionDurationMs = int64Ptr(119999) }, "monitor for unusual activity", PriorityLow},
		{"anomaly", func(in *RecommendationInput) { in.IsAnomaly = true }, "flag for statistical review", PriorityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := verifiedInput()
			tt.mutate(&in)

			recs, priority := Recommend(in)

			assert.Equal(t, []string{tt.action}, actions(recs))
			assert.Equal(t, tt.priority, recs[0].Priority)
			assert.Equal(t, tt.priority, priority)
		})
	}
}

func TestRecommend_NoRulesFired(t *testing.T) {
	in := verifiedInput()
	in.SessionDurationMs = int64Ptr(SlowSessionMs)

	recs, priority := Recommend(in)

	assert.Empty(t, recs)
	assert.NotNil(t, recs)
	assert.Equal(t, PriorityNone, priority)
}

func TestRecommend_PriorityIsMaximum(t *testing.T) {
	in := verifiedInput()
	in.IsAnomaly = true
	in.Categories.Email.Flags = []string{"disposable_domain"}

	recs, priority := Recommend(in)

	assert.Equal(t, []string{"request permanent email", "flag for statistical review"}, actions(recs))
	assert.Equal(t, PriorityMedium, priority)
}

func TestRecommend_DisposableEmailAndVPN(t *testing.T) {
	in := verifiedInput()
	in.Score = 30
	in.Categories.Email.Flags = []string{"disposable_domain"}
	in.Categories.Location.Flags = []string{"vpn_detected"}

	recs, priority := Recommend(in)

	assert.Contains(t, recs, Recommendation{Action: "verify actual location", Reason: "booking was placed through a VPN or proxy", Priority: PriorityMedium})
	assert.Contains(t, actions(recs), "request permanent email")
	assert.Equal(t, PriorityMedium, priority)
}

func TestSuggestDisposition(t *testing.T) {
	bot := CategoryBreakdown{Device: CategoryScore{Flags: []string{"bot_signal"}}}

	assert.Equal(t, DispositionReject, SuggestDisposition(85, CategoryBreakdown{}, VelocityNormal))
	assert.Equal(t, DispositionReject, SuggestDisposition(10, bot, VelocityNormal), "bot rejects regardless of score")
	assert.Equal(t, DispositionApprove, SuggestDisposition(29.9, CategoryBreakdown{}, VelocityNormal))
	assert.Equal(t, DispositionReview, SuggestDisposition(30, CategoryBreakdown{}, VelocityNormal), "two medium flags summing to 30 still go to review")
	assert.Equal(t, DispositionReview, SuggestDisposition(31, CategoryBreakdown{}, VelocityNormal))
	assert.Equal(t, DispositionReview, SuggestDisposition(0, CategoryBreakdown{}, VelocityCritical), "low score with critical velocity is not approved")
	assert.Equal(t, DispositionReview, SuggestDisposition(10, CategoryBreakdown{}, VelocityElevated))
}
