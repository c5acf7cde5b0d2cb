package models

import (
	"fmt"
	"math"
)

// GlobalCountry is the window_weights row used when no country-specific
// weights are configured.
const GlobalCountry = "global"

// Weights holds the per-window blending fractions for one country. The
// configuration boundary validates that a stored row sums to 1.0; the engine
// itself renormalizes over whichever windows are usable on a given call.
type Weights struct {
	Country  string  `json:"country"`
	T0       float64 `json:"t0"`
	Last30   float64 `json:"d30"`
	Last365  float64 `json:"d365"`
	Lifetime float64 `json:"lifetime"`
}

// DefaultWeights are used when neither a country row nor a global row exists.
func DefaultWeights(country string) Weights {
	return Weights{Country: country, T0: 0.4, Last30: 0.3, Last365: 0.2, Lifetime: 0.1}
}

// For returns the nominal weight assigned to a window.
func (w Weights) For(win Window) float64 {
	switch win {
	case WindowT0:
		return w.T0
	case WindowLast30:
		return w.Last30
	case WindowLast365:
		return w.Last365
	case WindowLifetime:
		return w.Lifetime
	}
	return 0
}

// Validate checks that the weights are non-negative and sum to 1.0 within a
// small tolerance. Applied when weights are written, not when they are used.
func (w Weights) Validate() error {
	for _, win := range Windows {
		if w.For(win) < 0 {
			return fmt.Errorf("weight for %s window is negative", win)
		}
	}
	sum := w.T0 + w.Last30 + w.Last365 + w.Lifetime
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("weights sum to %.4f, expected 1.0", sum)
	}
	return nil
}
