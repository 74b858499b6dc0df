package risk

import "time"

// Velocity windows, all ending now
const (
	Window24h = 24 * time.Hour
	Window7d  = 7 * 24 * time.Hour
	Window30d = 30 * 24 * time.Hour
)

// ClassifyVelocity applies the tier table top-down, first match wins
func ClassifyVelocity(last24h, last7d, last30d int) VelocityTier {
	switch {
	case last24h > 5:
		return VelocityCritical
	case last24h > 3:
		return VelocityHigh
	case last7d > 10:
		return VelocityElevated
	case last30d > 20:
		return VelocityElevated
	default:
		return VelocityNormal
	}
}

// NewVelocity builds the classified velocity block
func NewVelocity(last24h, last7d, last30d int) Velocity {
	return Velocity{
		Last24h: last24h,
		Last7d:  last7d,
		Last30d: last30d,
		Tier:    ClassifyVelocity(last24h, last7d, last30d),
	}
}
