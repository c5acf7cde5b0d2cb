package models

import "time"

// BidChange is one row of the append-only change history. The most recent
// change date per entity defines the T0 window boundary and feeds the
// cooldown gate.
type BidChange struct {
	Entity     TargetingEntity `json:"entity"`
	ChangeDate time.Time       `json:"change_date"`
	// PreviousValue is nil for the first recorded value of an entity.
	PreviousValue *float64 `json:"previous_value,omitempty"`
	NewValue      float64  `json:"new_value"`
}
