package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/openbidtuner/internal/models"
)

func TestWeightedACOS_AllWindowsUsable(t *testing.T) {
	wa := WindowACOS{
		T0:       validACOS(100, 0.40),
		Last30:   validACOS(200, 0.30),
		Last365:  validACOS(1000, 0.20),
		Lifetime: validACOS(2000, 0.10),
	}
	got, ok := WeightedACOS(wa, models.DefaultWeights("de"))
	require.True(t, ok)
	// 0.4x0.40 + 0.3x0.30 + 0.2x0.20 + 0.1x0.10
	assert.InDelta(t, 0.30, got, 1e-9)
}

func TestWeightedACOS_RenormalizesOverUsableWindows(t *testing.T) {
	// Only the lifetime window is usable; its weight of 0.1 must not dilute
	// the result toward zero.
	wa := WindowACOS{
		T0:       models.ACOS{State: models.ACOSInsufficient, Clicks: 5},
		Last30:   models.ACOS{State: models.ACOSInsufficient, Clicks: 12},
		Last365:  models.ACOS{State: models.ACOSNoSales, Clicks: 80},
		Lifetime: validACOS(400, 0.35),
	}
	got, ok := WeightedACOS(wa, models.DefaultWeights("de"))
	require.True(t, ok)
	assert.InDelta(t, 0.35, got, 1e-9)
}

func TestWeightedACOS_TwoUsableWindows(t *testing.T) {
	wa := WindowACOS{
		T0:       validACOS(100, 0.40),
		Last30:   models.ACOS{State: models.ACOSInsufficient, Clicks: 3},
		Last365:  models.ACOS{State: models.ACOSNoSales, Clicks: 50},
		Lifetime: validACOS(500, 0.20),
	}
	got, ok := WeightedACOS(wa, models.DefaultWeights("de"))
	require.True(t, ok)
	// (0.4x0.40 + 0.1x0.20) / (0.4 + 0.1)
	assert.InDelta(t, 0.36, got, 1e-9)
}

func TestWeightedACOS_NoUsableWindows(t *testing.T) {
	wa := WindowACOS{
		T0:       models.ACOS{State: models.ACOSInsufficient},
		Last30:   models.ACOS{State: models.ACOSNoSales, Clicks: 60},
		Last365:  models.ACOS{State: models.ACOSNoSales, Clicks: 90},
		Lifetime: models.ACOS{State: models.ACOSNoSales, Clicks: 150},
	}
	_, ok := WeightedACOS(wa, models.DefaultWeights("de"))
	assert.False(t, ok)
}

func TestEvaluateWindows(t *testing.T) {
	set := WindowSet{
		T0:       models.WindowMetrics{Clicks: 10, Cost: 5, Sales: 20},
		Last30:   models.WindowMetrics{Clicks: 60, Cost: 12, Sales: 0},
		Last365:  models.WindowMetrics{Clicks: 400, Cost: 80, Sales: 400},
		Lifetime: models.WindowMetrics{Clicks: 900, Cost: 200, Sales: 800},
	}
	wa := EvaluateWindows(set, 30)

	assert.Equal(t, models.ACOSInsufficient, wa.T0.State)
	assert.Equal(t, models.ACOSNoSales, wa.Last30.State)
	assert.Equal(t, models.ACOSValid, wa.Last365.State)
	assert.InDelta(t, 0.20, wa.Last365.Value, 1e-9)
	assert.InDelta(t, 0.25, wa.Lifetime.Value, 1e-9)
}

func TestConfidenceLabel(t *testing.T) {
	cases := []struct {
		clicks   int64
		expected string
	}{
		{0, models.ConfidenceLow},
		{29, models.ConfidenceLow},
		{30, models.ConfidenceOK},
		{100, models.ConfidenceGood},
		{300, models.ConfidenceHigh},
		{999, models.ConfidenceHigh},
		{1000, models.ConfidenceExtreme},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.expected, ConfidenceLabel(tc.clicks), "clicks=%d", tc.clicks)
	}
}

func TestDaysSinceChange(t *testing.T) {
	today := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, neverChangedDays, DaysSinceChange(today, nil))

	changed := today.AddDate(0, 0, -10)
	assert.Equal(t, 10, DaysSinceChange(today, &changed))

	future := today.AddDate(0, 0, 2)
	assert.Equal(t, 0, DaysSinceChange(today, &future))
}

func TestCooldownEligible(t *testing.T) {
	assert.False(t, CooldownEligible(13, 14))
	assert.True(t, CooldownEligible(14, 14))
	assert.True(t, CooldownEligible(neverChangedDays, 14))
}
