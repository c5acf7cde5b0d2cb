package models

// Window names the four lookback ranges an entity is evaluated over.
type Window string

const (
	// WindowT0 covers performance since the entity's last bid change, or all
	// history if the entity was never changed.
	WindowT0 Window = "t0"
	// WindowLast30 is the trailing 30 days.
	WindowLast30 Window = "30d"
	// WindowLast365 is the trailing 365 days.
	WindowLast365 Window = "365d"
	// WindowLifetime spans all available history.
	WindowLifetime Window = "lifetime"
)

// Windows lists the evaluation windows in weighting order.
var Windows = []Window{WindowT0, WindowLast30, WindowLast365, WindowLifetime}

// WindowMetrics holds the raw totals for one entity over one window.
type WindowMetrics struct {
	Window Window  `json:"window"`
	Clicks int64   `json:"clicks"`
	Cost   float64 `json:"cost"`
	Sales  float64 `json:"sales"`
	Orders int64   `json:"orders"`
}

// ACOSState tags the per-window ACOS value. The no-sales case is a distinct
// state rather than a numeric sentinel so it can never be averaged by accident.
type ACOSState int

const (
	// ACOSInsufficient means the window had fewer clicks than the minimum
	// threshold and carries no signal.
	ACOSInsufficient ACOSState = iota
	// ACOSNoSales means the window had enough clicks but zero attributed
	// sales. Cost efficiency is unbounded; the window is excluded from the
	// weighted average but drives the zero-sales decrease rule.
	ACOSNoSales
	// ACOSValid means a finite cost/sales ratio was computed.
	ACOSValid
)

// ACOS is the tagged cost-efficiency value for one window.
type ACOS struct {
	State  ACOSState
	Clicks int64
	// Value is cost/sales, only meaningful when State == ACOSValid.
	Value float64
}

// ComputeACOS derives the tagged ACOS for a window given the minimum click
// threshold for eligibility.
func ComputeACOS(m WindowMetrics, minClicks int64) ACOS {
	if m.Clicks < minClicks {
		return ACOS{State: ACOSInsufficient, Clicks: m.Clicks}
	}
	if m.Sales <= 0 {
		return ACOS{State: ACOSNoSales, Clicks: m.Clicks}
	}
	return ACOS{State: ACOSValid, Clicks: m.Clicks, Value: m.Cost / m.Sales}
}

// Usable reports whether the window contributes to the weighted average.
func (a ACOS) Usable() bool { return a.State == ACOSValid }

// WindowSnapshot is the persisted form of one window's evaluation inputs,
// stored on a Recommendation so outcomes can be analyzed later.
type WindowSnapshot struct {
	Clicks int64 `json:"clicks"`
	// ACOS is nil when the window was insufficient or had no sales.
	ACOS    *float64 `json:"acos,omitempty"`
	NoSales bool     `json:"no_sales,omitempty"`
}

// Snapshot converts a tagged ACOS into its persisted form.
func (a ACOS) Snapshot() WindowSnapshot {
	s := WindowSnapshot{Clicks: a.Clicks}
	switch a.State {
	case ACOSValid:
		v := a.Value
		s.ACOS = &v
	case ACOSNoSales:
		s.NoSales = true
	}
	return s
}
