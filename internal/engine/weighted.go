package engine

import "github.com/patrickwarner/openbidtuner/internal/models"

// WindowACOS holds the tagged per-window ACOS values for one entity.
type WindowACOS struct {
	T0       models.ACOS
	Last30   models.ACOS
	Last365  models.ACOS
	Lifetime models.ACOS
}

// For returns the ACOS for a window.
func (w WindowACOS) For(win models.Window) models.ACOS {
	switch win {
	case models.WindowT0:
		return w.T0
	case models.WindowLast30:
		return w.Last30
	case models.WindowLast365:
		return w.Last365
	case models.WindowLifetime:
		return w.Lifetime
	}
	return models.ACOS{}
}

// EvaluateWindows derives the tagged ACOS for each window of a set.
func EvaluateWindows(set WindowSet, minClicks int64) WindowACOS {
	return WindowACOS{
		T0:       models.ComputeACOS(set.T0, minClicks),
		Last30:   models.ComputeACOS(set.Last30, minClicks),
		Last365:  models.ComputeACOS(set.Last365, minClicks),
		Lifetime: models.ComputeACOS(set.Lifetime, minClicks),
	}
}

// WeightedACOS blends the usable windows into one efficiency score. Windows
// that are insufficient or have no sales drop out of both numerator and
// denominator, so a brand-new keyword with only T0 data is scored purely on
// T0 rather than being diluted toward zero. Returns false when no window is
// usable; such entities produce no recommendation.
func WeightedACOS(wa WindowACOS, weights models.Weights) (float64, bool) {
	var num, den float64
	for _, win := range models.Windows {
		a := wa.For(win)
		if !a.Usable() {
			continue
		}
		w := weights.For(win)
		num += w * a.Value
		den += w
	}
	if den == 0 {
		return 0, false
	}
	return num / den, true
}
