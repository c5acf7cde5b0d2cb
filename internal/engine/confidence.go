package engine

import "github.com/patrickwarner/openbidtuner/internal/models"

// ConfidenceLabel maps lifetime click volume to a display label. It never
// gates a recommendation; eligibility is the per-window minimum-click
// threshold applied during aggregation.
func ConfidenceLabel(lifetimeClicks int64) string {
	switch {
	case lifetimeClicks >= 1000:
		return models.ConfidenceExtreme
	case lifetimeClicks >= 300:
		return models.ConfidenceHigh
	case lifetimeClicks >= 100:
		return models.ConfidenceGood
	case lifetimeClicks >= 30:
		return models.ConfidenceOK
	default:
		return models.ConfidenceLow
	}
}
