package engine

import (
	"fmt"
	"math"

	"github.com/patrickwarner/openbidtuner/internal/models"
)

// PlacementParams are the tuning knobs for placement adjustment decisions.
type PlacementParams struct {
	// BandRel is the acceptance band around the target, relative
	// (0.10 = no action within ten percent of the target).
	BandRel float64
	// MaxIncreasePct caps upward moves of the effective multiplier.
	MaxIncreasePct float64
	// MaxAdjustment is the platform ceiling in percentage points (900).
	MaxAdjustment float64
}

// RecommendPlacementAdjustment decides whether a placement's bid adjustment
// percentage should move. The target/weighted ratio is applied to the
// effective multiplier (1 + adj/100) rather than the raw percentage, so an
// adjustment of 0% can still be raised. Output is clamped to
// [0, MaxAdjustment] and rounded to the nearest 5 points.
func RecommendPlacementAdjustment(currentAdj, weightedACOS float64, weightedOK bool, targetACOS float64, p PlacementParams) (Proposal, bool) {
	if !weightedOK {
		return Proposal{}, false
	}
	if currentAdj < 0 {
		currentAdj = 0
	}

	low := targetACOS * (1 - p.BandRel)
	high := targetACOS * (1 + p.BandRel)
	if weightedACOS >= low && weightedACOS <= high {
		return Proposal{}, false
	}

	mult := 1 + currentAdj/100
	idealMult := mult * (targetACOS / weightedACOS)
	action := models.ActionDecrease
	if weightedACOS < low {
		action = models.ActionIncrease
		if ceiling := mult * (1 + p.MaxIncreasePct); idealMult > ceiling {
			idealMult = ceiling
		}
	}

	proposed := (idealMult - 1) * 100
	final, clamped := clampAdjustment(proposed, p)
	if final == roundAdjustment(currentAdj) {
		// Rounding swallowed the move; nothing worth recommending.
		return Proposal{}, false
	}

	verb := "decrease"
	if action == models.ActionIncrease {
		verb = "increase"
	}
	return Proposal{
		Action:   action,
		NewValue: final,
		Reason: fmt.Sprintf("weighted ACOS %.1f%% vs target %.1f%%: %s adjustment %.0f%% -> %.0f%% (ratio %.3f)",
			weightedACOS*100, targetACOS*100, verb, currentAdj, final, targetACOS/weightedACOS),
		Clamped: clamped,
	}, true
}

// ApplyPortfolioBalance enforces the cross-placement invariant for one
// campaign: when at least three placements were evaluated, every one of them
// received a proposal, and all proposals are positive, the lowest proposal is
// forced down to 0%. An all-positive portfolio signals the keyword-level bids
// are already carrying too much, so one placement must act as the floor.
// Must run as a second pass after all of a campaign's placements are
// evaluated; applying it during iteration would make the outcome depend on
// entity order.
func ApplyPortfolioBalance(recs []*models.Recommendation, placementsEvaluated int) {
	if placementsEvaluated < 3 || len(recs) != placementsEvaluated {
		return
	}
	lowest := -1
	for i, r := range recs {
		if r.RecommendedValue <= 0 {
			return
		}
		if lowest < 0 || r.RecommendedValue < recs[lowest].RecommendedValue {
			lowest = i
		}
	}
	r := recs[lowest]
	r.RecommendedValue = 0
	r.Action = models.ActionDecrease
	r.Reason += "; forced to 0% as portfolio floor (all sibling placements positive)"
}

// clampAdjustment bounds a proposed adjustment to [0, MaxAdjustment] and
// rounds to the nearest 5 points.
func clampAdjustment(proposed float64, p PlacementParams) (float64, bool) {
	clamped := false
	if proposed < 0 {
		proposed = 0
		clamped = true
	}
	if proposed > p.MaxAdjustment {
		proposed = p.MaxAdjustment
		clamped = true
	}
	return roundAdjustment(proposed), clamped
}

func roundAdjustment(v float64) float64 {
	return math.Round(v/5) * 5
}
