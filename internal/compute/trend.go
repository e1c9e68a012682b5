package compute

// DefaultDeltaFactor is the tolerance used when callers do not set one: a
// change of 2% or less against the previous sample counts as flat.
const DefaultDeltaFactor = 0.02

// Trend is the direction of change between two consecutive samples.
type Trend int

const (
	TrendDown Trend = -1
	TrendFlat Trend = 0
	TrendUp   Trend = 1
)

func (t Trend) String() string {
	switch t {
	case TrendUp:
		return "up"
	case TrendDown:
		return "down"
	default:
		return "flat"
	}
}

// Arrow returns the glyph drawn next to the current value.
func (t Trend) Arrow() string {
	switch t {
	case TrendUp:
		return "↑"
	case TrendDown:
		return "↓"
	default:
		return "↔"
	}
}

// Delta compares latest to previous using a tolerance band of ±f around
// previous:
//
//	lower = previous * (1 - f)
//	upper = previous * (1 + f)
//
// latest above upper is TrendUp, below lower is TrendDown, anything else
// (including either reading being absent) is TrendFlat. The band is used as
// written, so for a negative previous value lower is the larger bound.
func Delta(latest, previous Reading, f float64) Trend {
	if !latest.Present || !previous.Present {
		return TrendFlat
	}
	lower := previous.Value * (1 - f)
	upper := previous.Value * (1 + f)
	switch {
	case latest.Value > upper:
		return TrendUp
	case latest.Value < lower:
		return TrendDown
	default:
		return TrendFlat
	}
}

// InTolerance reports whether first lies within ±f of second. Missing data is
// never flagged, so an absent reading on either side yields true.
func InTolerance(first, second Reading, f float64) bool {
	if !first.Present || !second.Present {
		return true
	}
	lo := second.Value * (1 - f)
	hi := second.Value * (1 + f)
	if lo > hi {
		lo, hi = hi, lo
	}
	return IsValid(first.Value, Range(lo, hi))
}
