package dispatch

import (
	"context"
	"sort"

	"dispatchd/internal/geo"
	"dispatchd/internal/model"
)

// LocationSource is the external last-known-location store consulted
// before a driver's embedded location. Implementations must tolerate
// unknown ids by returning ok=false.
type LocationSource interface {
	LastKnown(ctx context.Context, driverID string) (model.GeoPoint, bool)
}

// Ranker orders active drivers by their fitness to pick up at a
// merchant. Locations resolve through an ordered fallback chain:
// override store, then the driver record, then excluded.
type Ranker struct {
	Locations LocationSource // optional
}

func (r *Ranker) resolveLocation(ctx context.Context, d model.Driver) (model.GeoPoint, bool) {
	if r != nil && r.Locations != nil {
		if pt, ok := r.Locations.LastKnown(ctx, d.ID); ok {
			return pt, true
		}
	}
	if d.CurrentLocation != nil {
		return *d.CurrentLocation, true
	}
	return model.GeoPoint{}, false
}

// busyDrivers collects driver ids referenced by any non-terminal order.
// One active order marks a driver busy; no batching policy applies.
func busyDrivers(orders []model.Order) map[string]bool {
	busy := map[string]bool{}
	for _, o := range orders {
		if o.DriverID != "" && !o.Status.Terminal() {
			busy[o.DriverID] = true
		}
	}
	return busy
}

// Rank returns dispatch candidates for the merchant, every non-busy
// driver before every busy one, each group ascending by distance.
// Inactive drivers and drivers with no resolvable location are excluded.
func (r *Ranker) Rank(ctx context.Context, merchant model.Merchant, drivers []model.Driver, orders []model.Order) []model.RankedDriver {
	if merchant.Location == nil {
		return nil
	}
	busy := busyDrivers(orders)

	ranked := make([]model.RankedDriver, 0, len(drivers))
	for _, d := range drivers {
		if !d.IsActive {
			continue
		}
		loc, ok := r.resolveLocation(ctx, d)
		if !ok {
			continue
		}
		dist := geo.DistanceKm(loc, *merchant.Location)
		ranked = append(ranked, model.RankedDriver{
			Driver:                 d,
			DistanceKm:             dist,
			EstimatedPickupMinutes: geo.TravelMinutes(dist, d.VehicleType),
			VehicleType:            d.VehicleType,
			IsBusy:                 busy[d.ID],
			Rating:                 d.Rating,
			TotalDeliveries:        d.TotalDeliveries,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].IsBusy != ranked[j].IsBusy {
			return !ranked[i].IsBusy
		}
		return ranked[i].DistanceKm < ranked[j].DistanceKm
	})
	return ranked
}

// BestAvailable returns the first non-busy candidate; if every driver
// is busy, the nearest one as a degraded hint; ok=false when nobody
// has a location.
func (r *Ranker) BestAvailable(ctx context.Context, merchant model.Merchant, drivers []model.Driver, orders []model.Order) (model.RankedDriver, bool) {
	ranked := r.Rank(ctx, merchant, drivers, orders)
	if len(ranked) == 0 {
		return model.RankedDriver{}, false
	}
	// The sort puts non-busy first; if all are busy, index 0 is still
	// the globally nearest.
	return ranked[0], true
}
