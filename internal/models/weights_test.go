package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeightsValidate(t *testing.T) {
	assert.NoError(t, DefaultWeights("de").Validate())

	bad := Weights{Country: "de", T0: 0.5, Last30: 0.5, Last365: 0.5, Lifetime: 0.5}
	assert.Error(t, bad.Validate())

	negative := Weights{Country: "de", T0: -0.1, Last30: 0.5, Last365: 0.5, Lifetime: 0.1}
	assert.Error(t, negative.Validate())
}

func TestComputeACOS(t *testing.T) {
	insufficient := ComputeACOS(WindowMetrics{Clicks: 10, Cost: 5, Sales: 20}, 30)
	assert.Equal(t, ACOSInsufficient, insufficient.State)
	assert.False(t, insufficient.Usable())

	noSales := ComputeACOS(WindowMetrics{Clicks: 80, Cost: 16, Sales: 0}, 30)
	assert.Equal(t, ACOSNoSales, noSales.State)
	assert.Equal(t, int64(80), noSales.Clicks)
	assert.False(t, noSales.Usable())

	valid := ComputeACOS(WindowMetrics{Clicks: 100, Cost: 40, Sales: 200}, 30)
	require.Equal(t, ACOSValid, valid.State)
	assert.InDelta(t, 0.20, valid.Value, 1e-9)
	assert.True(t, valid.Usable())
}

func TestACOSSnapshot(t *testing.T) {
	valid := ACOS{State: ACOSValid, Clicks: 100, Value: 0.25}
	s := valid.Snapshot()
	require.NotNil(t, s.ACOS)
	assert.Equal(t, 0.25, *s.ACOS)
	assert.False(t, s.NoSales)

	noSales := ACOS{State: ACOSNoSales, Clicks: 80}
	s = noSales.Snapshot()
	assert.Nil(t, s.ACOS)
	assert.True(t, s.NoSales)

	insufficient := ACOS{State: ACOSInsufficient, Clicks: 5}
	s = insufficient.Snapshot()
	assert.Nil(t, s.ACOS)
	assert.False(t, s.NoSales)
	assert.Equal(t, int64(5), s.Clicks)
}
