// Package engine contains the bid recommendation core: four-window metrics
// aggregation, the weighted ACOS blend, and the keyword and placement
// decision rules. The decision functions are pure and take plain aggregated
// inputs so they can be tested without any backing store.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickwarner/openbidtuner/internal/history"
	"github.com/patrickwarner/openbidtuner/internal/models"
)

// nowFn is used to get the current time. In production it's time.Now,
// but in tests we can replace it to pin the reference date.
var nowFn = time.Now

// WindowSet holds the raw totals for all four evaluation windows.
type WindowSet struct {
	T0       models.WindowMetrics
	Last30   models.WindowMetrics
	Last365  models.WindowMetrics
	Lifetime models.WindowMetrics
}

// CollectWindows aggregates an entity's performance over the four windows.
// lastChange bounds the T0 window; nil means the entity was never changed and
// T0 spans all history. Read-only; any failure skips the entity upstream.
func CollectWindows(ctx context.Context, src history.Source, country string, e models.TargetingEntity, today time.Time, lastChange *time.Time) (WindowSet, error) {
	var set WindowSet
	var err error

	t0From := time.Time{}
	if lastChange != nil {
		t0From = *lastChange
	}
	if set.T0, err = src.WindowTotals(ctx, country, e, t0From, today); err != nil {
		return WindowSet{}, fmt.Errorf("t0 window: %w", err)
	}
	set.T0.Window = models.WindowT0

	if set.Last30, err = src.WindowTotals(ctx, country, e, today.AddDate(0, 0, -30), today); err != nil {
		return WindowSet{}, fmt.Errorf("30d window: %w", err)
	}
	set.Last30.Window = models.WindowLast30

	if set.Last365, err = src.WindowTotals(ctx, country, e, today.AddDate(0, 0, -365), today); err != nil {
		return WindowSet{}, fmt.Errorf("365d window: %w", err)
	}
	set.Last365.Window = models.WindowLast365

	if set.Lifetime, err = src.WindowTotals(ctx, country, e, time.Time{}, today); err != nil {
		return WindowSet{}, fmt.Errorf("lifetime window: %w", err)
	}
	set.Lifetime.Window = models.WindowLifetime

	return set, nil
}
