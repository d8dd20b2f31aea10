package dispatch

import (
	"context"
	"testing"

	"dispatchd/internal/model"
)

func pt(lat, lng float64) *model.GeoPoint {
	return &model.GeoPoint{Lat: lat, Lng: lng}
}

var testMerchant = model.Merchant{ID: "m1", Location: pt(0, 0)}

type mapLocations map[string]model.GeoPoint

func (m mapLocations) LastKnown(_ context.Context, driverID string) (model.GeoPoint, bool) {
	p, ok := m[driverID]
	return p, ok
}

func TestRankBusyAlwaysAfterFree(t *testing.T) {
	drivers := []model.Driver{
		{ID: "near-busy", IsActive: true, VehicleType: model.VehicleMoto, CurrentLocation: pt(0.001, 0)},
		{ID: "far-free", IsActive: true, VehicleType: model.VehicleMoto, CurrentLocation: pt(0.02, 0)},
		{ID: "mid-free", IsActive: true, VehicleType: model.VehicleBici, CurrentLocation: pt(0.01, 0)},
	}
	orders := []model.Order{
		{ID: "o1", MerchantID: "m1", DriverID: "near-busy", Status: model.StatusOnTheWay},
	}

	r := &Ranker{}
	ranked := r.Rank(context.Background(), testMerchant, drivers, orders)
	if len(ranked) != 3 {
		t.Fatalf("ranked %d drivers, want 3", len(ranked))
	}
	want := []string{"mid-free", "far-free", "near-busy"}
	for i, id := range want {
		if ranked[i].Driver.ID != id {
			t.Fatalf("position %d: got %s, want %s", i, ranked[i].Driver.ID, id)
		}
	}
	if !ranked[2].IsBusy || ranked[0].IsBusy {
		t.Fatalf("busy flags wrong: %+v", ranked)
	}
}

func TestRankExcludesInactiveAndUnlocated(t *testing.T) {
	drivers := []model.Driver{
		{ID: "ok", IsActive: true, CurrentLocation: pt(0.01, 0)},
		{ID: "inactive", IsActive: false, CurrentLocation: pt(0.001, 0)},
		{ID: "lost", IsActive: true}, // no location anywhere
	}
	r := &Ranker{}
	ranked := r.Rank(context.Background(), testMerchant, drivers, nil)
	if len(ranked) != 1 || ranked[0].Driver.ID != "ok" {
		t.Fatalf("ranked: %+v", ranked)
	}
}

func TestRankDeliveredDriverNotBusy(t *testing.T) {
	drivers := []model.Driver{
		{ID: "d1", IsActive: true, CurrentLocation: pt(0.01, 0)},
	}
	orders := []model.Order{
		{ID: "o1", MerchantID: "m1", DriverID: "d1", Status: model.StatusDelivered},
		{ID: "o2", MerchantID: "m1", DriverID: "d1", Status: model.StatusCancelled},
	}
	r := &Ranker{}
	ranked := r.Rank(context.Background(), testMerchant, drivers, orders)
	if len(ranked) != 1 || ranked[0].IsBusy {
		t.Fatalf("terminal orders should not mark a driver busy: %+v", ranked)
	}
}

func TestRankPrefersOverrideStore(t *testing.T) {
	drivers := []model.Driver{
		// Embedded record says far away; the override store knows better.
		{ID: "d1", IsActive: true, VehicleType: model.VehicleMoto, CurrentLocation: pt(0.5, 0.5)},
	}
	r := &Ranker{Locations: mapLocations{"d1": {Lat: 0.001, Lng: 0}}}
	ranked := r.Rank(context.Background(), testMerchant, drivers, nil)
	if len(ranked) != 1 {
		t.Fatalf("ranked: %+v", ranked)
	}
	if ranked[0].DistanceKm > 1 {
		t.Fatalf("override location ignored, distance %f", ranked[0].DistanceKm)
	}
}

func TestRankOverrideMissFallsBackToRecord(t *testing.T) {
	drivers := []model.Driver{
		{ID: "d1", IsActive: true, CurrentLocation: pt(0.001, 0)},
	}
	r := &Ranker{Locations: mapLocations{}}
	ranked := r.Rank(context.Background(), testMerchant, drivers, nil)
	if len(ranked) != 1 || ranked[0].DistanceKm > 1 {
		t.Fatalf("embedded location not used: %+v", ranked)
	}
}

func TestBestAvailable(t *testing.T) {
	r := &Ranker{}
	drivers := []model.Driver{
		{ID: "busy-near", IsActive: true, CurrentLocation: pt(0.001, 0)},
		{ID: "free-far", IsActive: true, CurrentLocation: pt(0.05, 0)},
	}
	orders := []model.Order{
		{ID: "o1", DriverID: "busy-near", Status: model.StatusPickedUp},
	}

	best, ok := r.BestAvailable(context.Background(), testMerchant, drivers, orders)
	if !ok || best.Driver.ID != "free-far" {
		t.Fatalf("best: %+v ok=%v", best, ok)
	}

	// All busy: nearest is returned as a degraded hint.
	orders = append(orders, model.Order{ID: "o2", DriverID: "free-far", Status: model.StatusOnTheWay})
	best, ok = r.BestAvailable(context.Background(), testMerchant, drivers, orders)
	if !ok || best.Driver.ID != "busy-near" || !best.IsBusy {
		t.Fatalf("all-busy hint: %+v ok=%v", best, ok)
	}

	// Nobody located: absent.
	_, ok = r.BestAvailable(context.Background(), testMerchant, []model.Driver{{ID: "x", IsActive: true}}, nil)
	if ok {
		t.Fatal("expected no candidate")
	}
}
