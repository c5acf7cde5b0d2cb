package engine

import (
	"fmt"
	"math"

	"github.com/patrickwarner/openbidtuner/internal/models"
)

// Proposal is an individual bid or adjustment decision before persistence.
type Proposal struct {
	Action   string
	NewValue float64
	Reason   string
	// Clamped is set when the safeguard bounds altered the formula output.
	Clamped bool
}

// KeywordParams are the tuning knobs for keyword bid decisions.
type KeywordParams struct {
	// BandAbs is the acceptance band around the target, absolute
	// (0.03 = no action within three percentage points).
	BandAbs float64
	// MaxIncreasePct caps upward moves relative to the current bid.
	MaxIncreasePct float64
	// MinRatio / MaxRatio bound the final bid as fractions of the current
	// bid; MaxRatio is 1.5 or 2.0 depending on deployment profile.
	MinRatio float64
	MaxRatio float64
	// AbsoluteMin is the lowest bid the platform accepts.
	AbsoluteMin float64
}

// zeroSalesCut returns the decrease fraction for a keyword that accumulated
// clicks without a single attributed sale. More spend with nothing to show
// for it warrants a deeper cut.
func zeroSalesCut(lifetimeClicks int64) float64 {
	switch {
	case lifetimeClicks >= 300:
		return 0.40
	case lifetimeClicks >= 100:
		return 0.30
	default:
		return 0.20
	}
}

// RecommendKeywordBid decides whether a keyword's bid should move and to
// what value. The zero-sales rule takes priority and needs no weighted ACOS;
// otherwise the decision is the band check against the target with the
// target/weighted ratio as the proposed move. Returns false when no
// recommendation should be made (unknown bid, or efficiency inside the band).
// weightedOK is false when no window had sufficient data for a weighted ACOS.
func RecommendKeywordBid(currentBid, weightedACOS float64, weightedOK bool, targetACOS float64, lifetime models.ACOS, p KeywordParams) (Proposal, bool) {
	if currentBid <= 0 {
		// Cannot compute a ratio without a known bid.
		return Proposal{}, false
	}

	if lifetime.State == models.ACOSNoSales {
		cut := zeroSalesCut(lifetime.Clicks)
		proposed := currentBid * (1 - cut)
		final, clamped := clampBid(proposed, currentBid, p)
		return Proposal{
			Action:   models.ActionDecrease,
			NewValue: final,
			Reason: fmt.Sprintf("no attributed sales over %d lifetime clicks: decrease bid %.2f -> %.2f (-%.0f%%)",
				lifetime.Clicks, currentBid, final, cut*100),
			Clamped: clamped,
		}, true
	}

	if !weightedOK {
		return Proposal{}, false
	}

	switch {
	case weightedACOS < targetACOS-p.BandAbs:
		// Efficient: room to bid up, capped so one good window can't
		// double a bid in a single step.
		proposed := currentBid * (targetACOS / weightedACOS)
		if ceiling := currentBid * (1 + p.MaxIncreasePct); proposed > ceiling {
			proposed = ceiling
		}
		final, clamped := clampBid(proposed, currentBid, p)
		return Proposal{
			Action:   models.ActionIncrease,
			NewValue: final,
			Reason: fmt.Sprintf("weighted ACOS %.1f%% below target %.1f%%: increase bid %.2f -> %.2f (ratio %.3f)",
				weightedACOS*100, targetACOS*100, currentBid, final, targetACOS/weightedACOS),
			Clamped: clamped,
		}, true

	case weightedACOS > targetACOS+p.BandAbs:
		proposed := currentBid * (targetACOS / weightedACOS)
		final, clamped := clampBid(proposed, currentBid, p)
		return Proposal{
			Action:   models.ActionDecrease,
			NewValue: final,
			Reason: fmt.Sprintf("weighted ACOS %.1f%% above target %.1f%%: decrease bid %.2f -> %.2f (ratio %.3f)",
				weightedACOS*100, targetACOS*100, currentBid, final, targetACOS/weightedACOS),
			Clamped: clamped,
		}, true
	}

	// Inside the acceptance band.
	return Proposal{}, false
}

// clampBid applies the safeguard bounds and 2-decimal rounding. The floor is
// max(AbsoluteMin, MinRatio x current); the ceiling is MaxRatio x current.
func clampBid(proposed, currentBid float64, p KeywordParams) (float64, bool) {
	floor := p.AbsoluteMin
	if r := currentBid * p.MinRatio; r > floor {
		floor = r
	}
	ceiling := currentBid * p.MaxRatio

	clamped := false
	if proposed < floor {
		proposed = floor
		clamped = true
	}
	if proposed > ceiling {
		proposed = ceiling
		clamped = true
	}
	return math.Round(proposed*100) / 100, clamped
}
