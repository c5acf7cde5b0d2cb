package engine

import "time"

// neverChangedDays is reported for entities with no change on record. Large
// enough to pass any plausible cooldown configuration.
const neverChangedDays = 999

// DaysSinceChange returns whole days between the last change and today, or
// neverChangedDays when the entity was never changed.
func DaysSinceChange(today time.Time, lastChange *time.Time) int {
	if lastChange == nil {
		return neverChangedDays
	}
	days := int(today.Sub(*lastChange).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// CooldownEligible reports whether an entity may receive a recommendation.
// Entities changed within the cooldown period are suppressed regardless of
// how far their ACOS deviates from target.
func CooldownEligible(daysSinceChange, cooldownDays int) bool {
	return daysSinceChange >= cooldownDays
}
