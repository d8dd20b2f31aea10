package dispatch

import (
	"sort"
	"time"

	"dispatchd/internal/model"
)

// Priority scoring constants. Age dominates so stale orders surface;
// both contributions are capped to keep scores comparable.
const (
	agePointsPerMinute = 2.0
	agePointsCap       = 60.0
	valueDivisor       = 10.0
	valuePointsCap     = 20.0
	cashBonus          = 5.0
	staleBonus30       = 20.0
	staleBonus45       = 30.0
)

// Score assigns a monotonic urgency score to an order at the given
// instant. Older and higher-value orders score higher; the staleness
// bonuses are cumulative.
func Score(o model.Order, now time.Time) float64 {
	ageMinutes := now.Sub(o.CreatedAt).Minutes()
	if ageMinutes < 0 {
		ageMinutes = 0
	}

	score := ageMinutes * agePointsPerMinute
	if score > agePointsCap {
		score = agePointsCap
	}

	value := o.Totals.Total / valueDivisor
	if value > valuePointsCap {
		value = valuePointsCap
	}
	score += value

	if o.Payment.Method == "cash" {
		score += cashBonus
	}
	if ageMinutes > 30 {
		score += staleBonus30
	}
	if ageMinutes > 45 {
		score += staleBonus45
	}
	return score
}

// SortByPriority returns the orders sorted descending by Score. The
// sort is stable so equal-priority orders keep their relative position
// between refreshes.
func SortByPriority(orders []model.Order, now time.Time) []model.Order {
	out := make([]model.Order, len(orders))
	copy(out, orders)
	sort.SliceStable(out, func(i, j int) bool {
		return Score(out[i], now) > Score(out[j], now)
	})
	return out
}
