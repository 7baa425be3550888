package filter

import "time"

const (
	MinYear       = 1900
	maxYearsAhead = 5
)

// MaxYear is the newest selectable year relative to now.
func MaxYear(now time.Time) int {
	return now.Year() + maxYearsAhead
}

// YearRange is an inclusive first-air-date year window. A bound sitting on its
// limit (MinYear or MaxYear) does not constrain the query.
type YearRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

func FullYearRange(now time.Time) YearRange {
	return YearRange{Min: MinYear, Max: MaxYear(now)}
}

// NewYearRange clamps both bounds into [MinYear, MaxYear(now)] and swaps them
// when inverted. Zero bounds mean "no constraint" on that side.
func NewYearRange(lo, hi int, now time.Time) YearRange {
	upper := MaxYear(now)
	if lo == 0 {
		lo = MinYear
	}
	if hi == 0 {
		hi = upper
	}
	lo = min(max(lo, MinYear), upper)
	hi = min(max(hi, MinYear), upper)
	if lo > hi {
		lo, hi = hi, lo
	}
	return YearRange{Min: lo, Max: hi}
}

// Bounds returns the constrained bounds, 0 for an unconstrained side.
func (y YearRange) Bounds(now time.Time) (lo, hi int) {
	if y.Min > MinYear {
		lo = y.Min
	}
	if y.Max != 0 && y.Max < MaxYear(now) {
		hi = y.Max
	}
	return lo, hi
}
