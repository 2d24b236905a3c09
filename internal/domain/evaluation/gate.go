package evaluation

import "time"

// IsOpen reports whether one activity row admits now. Missing bounds are
// unbounded on that side.
func IsOpen(a CycleActivity, now time.Time) bool {
	if !a.Enabled {
		return false
	}
	if a.StartAt != nil && now.Before(*a.StartAt) {
		return false
	}
	if a.EndAt != nil && now.After(*a.EndAt) {
		return false
	}
	return true
}

// EndOfDay returns the last instant of day's calendar date. Date-only window
// ends cover the whole day.
func EndOfDay(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, day.Location()).Add(-time.Nanosecond)
}

// GatesFor folds activity rows into one flag per gate type. A type is open
// when any of its rows is open.
func GatesFor(activities []CycleActivity, now time.Time) Gates {
	var g Gates
	for _, a := range activities {
		if !IsOpen(a, now) {
			continue
		}
		switch a.Type {
		case GateDefine:
			g.Define = true
		case GateEvaluate:
			g.Evaluate = true
		case GateSummary:
			g.Summary = true
		}
	}
	return g
}

func (g Gates) IsOpen(gate string) bool {
	switch gate {
	case GateDefine:
		return g.Define
	case GateEvaluate:
		return g.Evaluate
	case GateSummary:
		return g.Summary
	}
	return false
}

func RequireGate(g Gates, gate string) error {
	if !g.IsOpen(gate) {
		return errGateClosed(gate)
	}
	return nil
}
