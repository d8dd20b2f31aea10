// Package dispatch contains the merchant load, driver ranking, ETA
// composition, and order priority logic of the dispatch engine. All
// functions are pure over the snapshots they receive and safe for
// concurrent use.
package dispatch

import (
	"dispatchd/internal/model"
)

// Load tier thresholds over the active order count. Fixed for every
// merchant; not configurable.
const (
	loadMediumFrom   = 3
	loadHighFrom     = 5
	loadCriticalFrom = 7
)

const (
	multiplierLow      = 1.00
	multiplierMedium   = 1.15
	multiplierHigh     = 1.35
	multiplierCritical = 1.60
)

// activeKitchenStatus reports whether an order occupies the merchant's
// kitchen: confirmed but not yet handed to a driver.
func activeKitchenStatus(s model.OrderStatus) bool {
	return s == model.StatusConfirmed || s == model.StatusPreparing || s == model.StatusReady
}

// AnalyzeLoad classifies a merchant's backlog into a load tier and
// prep-time multiplier. An unknown merchant yields an empty low-tier
// report rather than an error.
func AnalyzeLoad(merchantID string, orders []model.Order) model.LoadReport {
	report := model.LoadReport{
		MerchantID:         merchantID,
		LoadLevel:          model.LoadLow,
		PrepTimeMultiplier: multiplierLow,
	}
	for _, o := range orders {
		if o.MerchantID != merchantID || !activeKitchenStatus(o.Status) {
			continue
		}
		report.ActiveOrderCount++
		if o.Status == model.StatusPreparing {
			report.PreparingCount++
		} else {
			report.WaitingCount++
		}
	}
	report.LoadLevel, report.PrepTimeMultiplier = tierFor(report.ActiveOrderCount)
	return report
}

func tierFor(n int) (model.LoadLevel, float64) {
	switch {
	case n >= loadCriticalFrom:
		return model.LoadCritical, multiplierCritical
	case n >= loadHighFrom:
		return model.LoadHigh, multiplierHigh
	case n >= loadMediumFrom:
		return model.LoadMedium, multiplierMedium
	default:
		return model.LoadLow, multiplierLow
	}
}

// AnalyzeAllLoads runs AnalyzeLoad per merchant for dashboard views.
func AnalyzeAllLoads(merchants []model.Merchant, orders []model.Order) []model.LoadReport {
	out := make([]model.LoadReport, 0, len(merchants))
	for _, m := range merchants {
		out = append(out, AnalyzeLoad(m.ID, orders))
	}
	return out
}
