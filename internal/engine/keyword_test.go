package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/openbidtuner/internal/models"
)

func testKeywordParams() KeywordParams {
	return KeywordParams{
		BandAbs:        0.03,
		MaxIncreasePct: 0.25,
		MinRatio:       0.20,
		MaxRatio:       1.5,
		AbsoluteMin:    0.02,
	}
}

func validACOS(clicks int64, value float64) models.ACOS {
	return models.ACOS{State: models.ACOSValid, Clicks: clicks, Value: value}
}

func TestRecommendKeywordBid_DecreaseByRatio(t *testing.T) {
	prop, ok := RecommendKeywordBid(1.00, 0.40, true, 0.20, validACOS(500, 0.40), testKeywordParams())
	require.True(t, ok)
	assert.Equal(t, models.ActionDecrease, prop.Action)
	assert.Equal(t, 0.50, prop.NewValue)
	assert.False(t, prop.Clamped)
	assert.Contains(t, prop.Reason, "40.0%")
	assert.Contains(t, prop.Reason, "20.0%")
	assert.Contains(t, prop.Reason, "decrease")
}

func TestRecommendKeywordBid_IncreaseCappedAt25Pct(t *testing.T) {
	// Ratio alone would double the bid; the per-step cap holds it to +25%.
	prop, ok := RecommendKeywordBid(1.00, 0.10, true, 0.20, validACOS(500, 0.10), testKeywordParams())
	require.True(t, ok)
	assert.Equal(t, models.ActionIncrease, prop.Action)
	assert.Equal(t, 1.25, prop.NewValue)
}

func TestRecommendKeywordBid_InsideBandNoAction(t *testing.T) {
	for _, weighted := range []float64{0.18, 0.20, 0.22} {
		_, ok := RecommendKeywordBid(1.00, weighted, true, 0.20, validACOS(500, weighted), testKeywordParams())
		assert.False(t, ok, "weighted %.2f should be inside the band", weighted)
	}
}

func TestRecommendKeywordBid_ZeroSalesTiers(t *testing.T) {
	cases := []struct {
		clicks   int64
		expected float64
	}{
		{50, 1.60},  // -20%
		{150, 1.40}, // -30%
		{350, 1.20}, // -40%
	}
	for _, tc := range cases {
		lifetime := models.ACOS{State: models.ACOSNoSales, Clicks: tc.clicks}
		// The weighted ACOS is undecidable here; the rule must not need it.
		prop, ok := RecommendKeywordBid(2.00, 0, false, 0.20, lifetime, testKeywordParams())
		require.True(t, ok, "clicks=%d", tc.clicks)
		assert.Equal(t, models.ActionDecrease, prop.Action)
		assert.Equal(t, tc.expected, prop.NewValue, "clicks=%d", tc.clicks)
	}
}

func TestRecommendKeywordBid_FloorClamp(t *testing.T) {
	// Ratio wants 0.05 x 0.25 = 0.0125 but the floor is max(0.02, 0.20 x 0.05).
	prop, ok := RecommendKeywordBid(0.05, 0.80, true, 0.20, validACOS(500, 0.80), testKeywordParams())
	require.True(t, ok)
	assert.Equal(t, 0.02, prop.NewValue)
	assert.True(t, prop.Clamped)
}

func TestRecommendKeywordBid_CeilingRatio(t *testing.T) {
	p := testKeywordParams()
	p.MaxIncreasePct = 1.0 // disable the step cap to exercise the ratio ceiling
	prop, ok := RecommendKeywordBid(1.00, 0.10, true, 0.20, validACOS(500, 0.10), p)
	require.True(t, ok)
	assert.Equal(t, 1.5, prop.NewValue)
	assert.True(t, prop.Clamped)
}

func TestRecommendKeywordBid_RoundsToTwoDecimals(t *testing.T) {
	// 0.97 x (0.20/0.30) = 0.64666...
	prop, ok := RecommendKeywordBid(0.97, 0.30, true, 0.20, validACOS(500, 0.30), testKeywordParams())
	require.True(t, ok)
	assert.Equal(t, 0.65, prop.NewValue)
}

func TestRecommendKeywordBid_UnknownBid(t *testing.T) {
	_, ok := RecommendKeywordBid(0, 0.40, true, 0.20, validACOS(500, 0.40), testKeywordParams())
	assert.False(t, ok)
}

func TestRecommendKeywordBid_NoUsableWindows(t *testing.T) {
	lifetime := models.ACOS{State: models.ACOSInsufficient, Clicks: 10}
	_, ok := RecommendKeywordBid(1.00, 0, false, 0.20, lifetime, testKeywordParams())
	assert.False(t, ok)
}
