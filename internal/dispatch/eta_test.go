package dispatch

import (
	"context"
	"testing"

	"dispatchd/internal/model"
)

// Scenario from the dispatch runbook: prep 20 under high load (x1.35
// -> 27), moto driver 2.1 km out (pickup 6), delivery leg 1.8 km
// (delivery 5), clear weather.
func scenarioInput() ComposeInput {
	merchant := model.Merchant{
		ID:                 "m1",
		Location:           pt(0, 0),
		AvgPrepTimeMinutes: 20,
	}
	orders := []model.Order{
		{ID: "o1", MerchantID: "m1", Status: model.StatusPreparing},
		{ID: "o2", MerchantID: "m1", Status: model.StatusPreparing},
		{ID: "o3", MerchantID: "m1", Status: model.StatusConfirmed},
		{ID: "o4", MerchantID: "m1", Status: model.StatusConfirmed},
		{ID: "o5", MerchantID: "m1", Status: model.StatusReady},
	}
	drivers := []model.Driver{
		// 0.0189 deg latitude is ~2.10 km on the 6371 km sphere.
		{ID: "d1", IsActive: true, VehicleType: model.VehicleMoto, CurrentLocation: pt(0.0189, 0)},
	}
	return ComposeInput{
		Merchant: &merchant,
		// ~1.80 km from the merchant.
		DeliveryPoint: pt(-0.0162, 0),
		Orders:        orders,
		Drivers:       drivers,
	}
}

func TestComposeEndToEnd(t *testing.T) {
	c := &Composer{Ranker: &Ranker{}}
	rep := c.Compose(context.Background(), scenarioInput())

	if rep.PrepTime != 27 {
		t.Fatalf("prep: got %d, want 27", rep.PrepTime)
	}
	if rep.PickupTime != 6 {
		t.Fatalf("pickup: got %d, want 6", rep.PickupTime)
	}
	if rep.DeliveryTime != 5 {
		t.Fatalf("delivery: got %d, want 5", rep.DeliveryTime)
	}
	if rep.TotalMinutes != 38 {
		t.Fatalf("total: got %d, want 38", rep.TotalMinutes)
	}
	if rep.DisplayRange != "33-43" {
		t.Fatalf("range: got %s, want 33-43", rep.DisplayRange)
	}

	var labels []string
	for _, f := range rep.Factors {
		labels = append(labels, f.Label)
	}
	if len(rep.Factors) != 2 {
		t.Fatalf("factors: %v", labels)
	}
	if rep.Factors[0].Label != "High demand" || rep.Factors[0].Impact != "+7 min" {
		t.Fatalf("load factor: %+v", rep.Factors[0])
	}
	if rep.Factors[1].Label != "Driver far away" {
		t.Fatalf("distance factor: %+v", rep.Factors[1])
	}
}

func TestComposeStormWeather(t *testing.T) {
	in := scenarioInput()
	in.Weather = &model.WeatherCondition{
		ID:              "storm",
		Label:           "Storm",
		Icon:            "⛈️",
		DelayMultiplier: 1.7,
	}
	c := &Composer{Ranker: &Ranker{}}
	rep := c.Compose(context.Background(), in)

	if rep.TotalMinutes != 65 { // round(38 * 1.7)
		t.Fatalf("storm total: got %d, want 65", rep.TotalMinutes)
	}
	found := false
	for _, f := range rep.Factors {
		if f.Label == "Storm" {
			found = true
			if f.Impact != "+27 min" {
				t.Fatalf("storm impact: %s", f.Impact)
			}
		}
	}
	if !found {
		t.Fatalf("weather factor missing: %+v", rep.Factors)
	}
}

func TestComposeWeatherAtOrBelowOneIsClear(t *testing.T) {
	in := scenarioInput()
	in.Weather = &model.WeatherCondition{ID: "clear", Label: "Clear", DelayMultiplier: 1.0}
	c := &Composer{Ranker: &Ranker{}}
	rep := c.Compose(context.Background(), in)
	if rep.TotalMinutes != 38 || len(rep.Factors) != 2 {
		t.Fatalf("clear weather altered report: %+v", rep)
	}
}

func TestComposeNoDriverFallbacks(t *testing.T) {
	in := scenarioInput()
	in.Drivers = nil
	c := &Composer{Ranker: &Ranker{}}
	rep := c.Compose(context.Background(), in)
	if rep.PickupTime != 8 {
		t.Fatalf("pickup fallback: got %d, want 8", rep.PickupTime)
	}
	// Delivery leg still computed with the moto profile.
	if rep.DeliveryTime != 5 {
		t.Fatalf("delivery: got %d, want 5", rep.DeliveryTime)
	}
	for _, f := range rep.Factors {
		if f.Label == "Driver far away" {
			t.Fatal("distance factor without a driver")
		}
	}
}

func TestComposeMissingLocations(t *testing.T) {
	in := scenarioInput()
	in.DeliveryPoint = nil
	c := &Composer{Ranker: &Ranker{}}
	rep := c.Compose(context.Background(), in)
	if rep.DeliveryTime != 10 {
		t.Fatalf("delivery fallback: got %d, want 10", rep.DeliveryTime)
	}
}

func TestComposeNoMerchantDefaultReport(t *testing.T) {
	c := &Composer{Ranker: &Ranker{}}
	rep := c.Compose(context.Background(), ComposeInput{})
	want := DefaultReport()
	if rep.TotalMinutes != want.TotalMinutes || rep.DisplayRange != "30-40" || len(rep.Factors) != 0 {
		t.Fatalf("default report: %+v", rep)
	}
}

func TestComposeRangeLowerBoundClampsToPrep(t *testing.T) {
	merchant := model.Merchant{ID: "m1", Location: pt(0, 0), AvgPrepTimeMinutes: 40}
	c := &Composer{Ranker: &Ranker{}}
	rep := c.Compose(context.Background(), ComposeInput{
		Merchant: &merchant,
		// Nearby drop-off: total barely exceeds prep.
		DeliveryPoint: pt(0.0005, 0),
		Drivers: []model.Driver{
			{ID: "d1", IsActive: true, VehicleType: model.VehicleMoto, CurrentLocation: pt(0.0005, 0)},
		},
	})
	if rep.DisplayRangeMin < rep.PrepTime {
		t.Fatalf("lower bound %d fell below prep %d", rep.DisplayRangeMin, rep.PrepTime)
	}
}

func TestComposeDefaultPrepWhenAbsent(t *testing.T) {
	merchant := model.Merchant{ID: "m1", Location: pt(0, 0)}
	c := &Composer{Ranker: &Ranker{}}
	rep := c.Compose(context.Background(), ComposeInput{Merchant: &merchant})
	if rep.PrepTime != 20 {
		t.Fatalf("default prep: got %d, want 20", rep.PrepTime)
	}
}
