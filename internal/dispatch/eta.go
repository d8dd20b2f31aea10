package dispatch

import (
	"context"
	"fmt"
	"math"

	"dispatchd/internal/geo"
	"dispatchd/internal/model"
)

// Fixed fallbacks used when a leg cannot be estimated from data.
const (
	defaultPrepMinutes     = 20
	fallbackPickupMinutes  = 8
	fallbackDeliveryMinutes = 10

	// Pickup legs longer than this get their own display factor.
	farPickupKm = 1.5

	// Display range half-width around the composed total.
	displaySlackMinutes = 5
)

// ComposeInput carries the snapshots an ETA is composed from. Any
// field may be missing; composition degrades instead of failing.
type ComposeInput struct {
	Merchant      *model.Merchant
	DeliveryPoint *model.GeoPoint
	Orders        []model.Order
	Drivers       []model.Driver
	Weather       *model.WeatherCondition
}

// Composer builds customer-facing ETA reports with a factor breakdown.
type Composer struct {
	Ranker *Ranker
}

// Compose produces a single ETA estimate. With no merchant at all it
// returns a fixed default report so the caller always has something to
// render.
func (c *Composer) Compose(ctx context.Context, in ComposeInput) model.ETAReport {
	if in.Merchant == nil {
		return DefaultReport()
	}

	factors := []model.ETAFactor{}

	basePrep := in.Merchant.AvgPrepTimeMinutes
	if basePrep <= 0 {
		basePrep = defaultPrepMinutes
	}

	load := AnalyzeLoad(in.Merchant.ID, in.Orders)
	adjustedPrep := int(math.Round(float64(basePrep) * load.PrepTimeMultiplier))
	if load.LoadLevel != model.LoadLow {
		label, icon := loadFactorDisplay(load.LoadLevel)
		factors = append(factors, model.ETAFactor{
			Label:  label,
			Icon:   icon,
			Impact: fmt.Sprintf("+%d min", adjustedPrep-basePrep),
		})
	}

	best, found := c.Ranker.BestAvailable(ctx, *in.Merchant, in.Drivers, in.Orders)
	pickupTime := fallbackPickupMinutes
	vehicle := model.VehicleMoto
	if found {
		pickupTime = best.EstimatedPickupMinutes
		if best.VehicleType != "" {
			vehicle = best.VehicleType
		}
		if best.DistanceKm > farPickupKm {
			factors = append(factors, model.ETAFactor{
				Label:  "Driver far away",
				Icon:   "🛵",
				Impact: fmt.Sprintf("+%d min", pickupTime),
			})
		}
	}

	deliveryTime := fallbackDeliveryMinutes
	if in.Merchant.Location != nil && in.DeliveryPoint != nil {
		deliveryTime = geo.TravelMinutes(geo.DistanceKm(*in.Merchant.Location, *in.DeliveryPoint), vehicle)
	}

	totalBase := adjustedPrep + pickupTime + deliveryTime
	totalMinutes := totalBase
	if in.Weather != nil && in.Weather.DelayMultiplier > 1.0 {
		totalMinutes = int(math.Round(float64(totalBase) * in.Weather.DelayMultiplier))
		factors = append(factors, model.ETAFactor{
			Label:  in.Weather.Label,
			Icon:   in.Weather.Icon,
			Impact: fmt.Sprintf("+%d min", totalMinutes-totalBase),
		})
	}

	// The lower bound never undercuts the prep time: nothing delivers
	// faster than the kitchen cooks.
	rangeMin := totalMinutes - displaySlackMinutes
	if rangeMin < adjustedPrep {
		rangeMin = adjustedPrep
	}
	rangeMax := totalMinutes + displaySlackMinutes

	return model.ETAReport{
		PrepTime:        adjustedPrep,
		PickupTime:      pickupTime,
		DeliveryTime:    deliveryTime,
		TotalMinutes:    totalMinutes,
		DisplayRangeMin: rangeMin,
		DisplayRangeMax: rangeMax,
		DisplayRange:    fmt.Sprintf("%d-%d", rangeMin, rangeMax),
		Factors:         factors,
	}
}

// DefaultReport is the fixed answer when no merchant can be resolved.
func DefaultReport() model.ETAReport {
	return model.ETAReport{
		PrepTime:        defaultPrepMinutes,
		PickupTime:      5,
		DeliveryTime:    10,
		TotalMinutes:    35,
		DisplayRangeMin: 30,
		DisplayRangeMax: 40,
		DisplayRange:    "30-40",
		Factors:         []model.ETAFactor{},
	}
}

func loadFactorDisplay(level model.LoadLevel) (label, icon string) {
	switch level {
	case model.LoadMedium:
		return "Moderate demand", "⏳"
	case model.LoadHigh:
		return "High demand", "🔥"
	case model.LoadCritical:
		return "Very high demand", "🚨"
	default:
		return "", ""
	}
}
