package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/openbidtuner/internal/models"
)

func testPlacementParams() PlacementParams {
	return PlacementParams{
		BandRel:        0.10,
		MaxIncreasePct: 0.25,
		MaxAdjustment:  900,
	}
}

func TestRecommendPlacementAdjustment_Decrease(t *testing.T) {
	// Multiplier 1.35 x (0.18/0.20) = 1.215, adjustment 21.5 -> 20.
	prop, ok := RecommendPlacementAdjustment(35, 0.20, true, 0.18, testPlacementParams())
	require.True(t, ok)
	assert.Equal(t, models.ActionDecrease, prop.Action)
	assert.Equal(t, 20.0, prop.NewValue)
}

func TestRecommendPlacementAdjustment_IncreaseCapped(t *testing.T) {
	// Ratio 2.0 would take the multiplier from 1.0 to 2.0; cap holds it at 1.25.
	prop, ok := RecommendPlacementAdjustment(0, 0.10, true, 0.20, testPlacementParams())
	require.True(t, ok)
	assert.Equal(t, models.ActionIncrease, prop.Action)
	assert.Equal(t, 25.0, prop.NewValue)
}

func TestRecommendPlacementAdjustment_ZeroAdjustmentCanRise(t *testing.T) {
	// The ratio applies to the effective multiplier, so 0% is not a dead end.
	prop, ok := RecommendPlacementAdjustment(0, 0.16, true, 0.20, testPlacementParams())
	require.True(t, ok)
	assert.Greater(t, prop.NewValue, 0.0)
}

func TestRecommendPlacementAdjustment_FloorAtZero(t *testing.T) {
	// Multiplier 1.10 x (0.10/0.40) = 0.275, adjustment -72.5 -> clamped to 0.
	prop, ok := RecommendPlacementAdjustment(10, 0.40, true, 0.10, testPlacementParams())
	require.True(t, ok)
	assert.Equal(t, 0.0, prop.NewValue)
	assert.True(t, prop.Clamped)
}

func TestRecommendPlacementAdjustment_CeilingAt900(t *testing.T) {
	p := testPlacementParams()
	p.MaxIncreasePct = 5
	prop, ok := RecommendPlacementAdjustment(800, 0.05, true, 0.20, p)
	require.True(t, ok)
	assert.Equal(t, 900.0, prop.NewValue)
	assert.True(t, prop.Clamped)
}

func TestRecommendPlacementAdjustment_InsideBandNoAction(t *testing.T) {
	_, ok := RecommendPlacementAdjustment(50, 0.21, true, 0.20, testPlacementParams())
	assert.False(t, ok)
}

func TestRecommendPlacementAdjustment_ClampSwallowsMove(t *testing.T) {
	// A decrease from 0% clamps back to 0%, so there is nothing to recommend.
	_, ok := RecommendPlacementAdjustment(0, 0.25, true, 0.20, testPlacementParams())
	assert.False(t, ok)
}

func TestRecommendPlacementAdjustment_DeepDecreaseRoundsToFive(t *testing.T) {
	// Multiplier 2.00 x (0.20/0.35) = 1.1429, adjustment 14.3 -> 15.
	prop, ok := RecommendPlacementAdjustment(100, 0.35, true, 0.20, testPlacementParams())
	require.True(t, ok)
	assert.Equal(t, models.ActionDecrease, prop.Action)
	assert.Equal(t, 15.0, prop.NewValue)
	assert.Zero(t, int(prop.NewValue)%5)
}

func placementRec(value float64) *models.Recommendation {
	return &models.Recommendation{
		Action:           models.ActionIncrease,
		RecommendedValue: value,
		Reason:           "test",
	}
}

func TestApplyPortfolioBalance_ForcesLowestToZero(t *testing.T) {
	recs := []*models.Recommendation{placementRec(25), placementRec(90), placementRec(150)}
	ApplyPortfolioBalance(recs, 3)

	assert.Equal(t, 0.0, recs[0].RecommendedValue)
	assert.Equal(t, models.ActionDecrease, recs[0].Action)
	assert.Contains(t, recs[0].Reason, "portfolio floor")
	assert.Equal(t, 90.0, recs[1].RecommendedValue)
	assert.Equal(t, 150.0, recs[2].RecommendedValue)
}

func TestApplyPortfolioBalance_NotAllProposed(t *testing.T) {
	// Three placements evaluated but one produced no proposal.
	recs := []*models.Recommendation{placementRec(25), placementRec(90)}
	ApplyPortfolioBalance(recs, 3)
	assert.Equal(t, 25.0, recs[0].RecommendedValue)
}

func TestApplyPortfolioBalance_ZeroPresent(t *testing.T) {
	recs := []*models.Recommendation{placementRec(0), placementRec(90), placementRec(150)}
	ApplyPortfolioBalance(recs, 3)
	assert.Equal(t, 90.0, recs[1].RecommendedValue)
	assert.Equal(t, models.ActionIncrease, recs[1].Action)
}

func TestApplyPortfolioBalance_TooFewPlacements(t *testing.T) {
	recs := []*models.Recommendation{placementRec(25), placementRec(90)}
	ApplyPortfolioBalance(recs, 2)
	assert.Equal(t, 25.0, recs[0].RecommendedValue)
}
