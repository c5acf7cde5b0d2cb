package models

import "time"

// Recommendation actions.
const (
	ActionIncrease = "increase"
	ActionDecrease = "decrease"
)

// Confidence labels derived from lifetime click volume. Display-only; the
// minimum-click threshold, not the label, gates whether a recommendation fires.
const (
	ConfidenceLow     = "low"
	ConfidenceOK      = "ok"
	ConfidenceGood    = "good"
	ConfidenceHigh    = "high"
	ConfidenceExtreme = "extreme"
)

// Recommendation is a proposed bid or adjustment change together with the
// evaluation snapshot it was derived from. Immutable once created except for
// ImplementedAt, which a human sets after applying the change on the platform.
type Recommendation struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Country   string    `json:"country"`

	Entity TargetingEntity `json:"entity"`
	Action string          `json:"action"`

	OldValue         float64 `json:"old_value"`
	RecommendedValue float64 `json:"recommended_value"`

	// Per-window inputs captured at decision time.
	T0       WindowSnapshot `json:"t0"`
	Last30   WindowSnapshot `json:"d30"`
	Last365  WindowSnapshot `json:"d365"`
	Lifetime WindowSnapshot `json:"lifetime"`

	WeightedACOS float64 `json:"weighted_acos"`
	TargetACOS   float64 `json:"target_acos"`
	Confidence   string  `json:"confidence"`
	Reason       string  `json:"reason"`

	ImplementedAt *time.Time `json:"implemented_at,omitempty"`
}

// RunSummary reports what a per-country generation pass did. Returned even on
// partial failure; a run only hard-fails when nothing could be evaluated.
type RunSummary struct {
	RunID     string        `json:"run_id"`
	Country   string        `json:"country"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`

	EntitiesEvaluated int `json:"entities_evaluated"`
	Recommendations   int `json:"recommendations"`

	SuppressedCooldown     int `json:"suppressed_cooldown"`
	SuppressedInsufficient int `json:"suppressed_insufficient_data"`
	SuppressedInBand       int `json:"suppressed_in_band"`
	SkippedNoTarget        int `json:"skipped_no_target"`

	DataErrors  int `json:"data_errors"`
	WriteErrors int `json:"write_errors"`
}
