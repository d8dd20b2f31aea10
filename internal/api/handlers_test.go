package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"dispatchd/internal/cache"
	"dispatchd/internal/dispatch"
	"dispatchd/internal/model"
	"dispatchd/internal/store"
	"dispatchd/internal/weather"
)

func newTestServer() (*Server, *store.Memory) {
	mem := store.NewMemory()
	locs := store.NewMemoryLocations()
	group := cache.NewGroup()
	ranker := &dispatch.Ranker{Locations: locs}
	return &Server{
		Store:     mem,
		Locations: locs,
		Cache:     cache.New(nil),
		Dedup:     group,
		Weather:   weather.NewService(nil, group),
		Ranker:    ranker,
		Composer:  &dispatch.Composer{Ranker: ranker},
		Broker:    NewBroker(),
		limits:    newRateLimiters(rate.Limit(100), 100),
	}, mem
}

// seedBusyKitchen sets up a merchant at the origin with five orders in
// the kitchen and one moto driver about 2.1 km north.
func seedBusyKitchen(mem *store.Memory) {
	mem.PutMerchant(model.Merchant{
		ID:                 "m1",
		Name:               "Tacos Norte",
		Location:           &model.GeoPoint{Lat: 0, Lng: 0},
		AvgPrepTimeMinutes: 20,
	})
	for i := 0; i < 5; i++ {
		mem.PutOrder(model.Order{
			MerchantID: "m1",
			Status:     model.StatusPreparing,
			CreatedAt:  time.Now().Add(-10 * time.Minute),
		})
	}
	mem.PutDriver(model.Driver{
		ID:              "d1",
		IsActive:        true,
		VehicleType:     model.VehicleMoto,
		CurrentLocation: &model.GeoPoint{Lat: 0.0189, Lng: 0},
		Rating:          4.8,
	})
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestETAHandlerBusyKitchen(t *testing.T) {
	s, mem := newTestServer()
	seedBusyKitchen(mem)

	req := httptest.NewRequest(http.MethodGet, "/v1/eta?merchantId=m1&lat=-0.0162&lng=0", nil)
	rec := httptest.NewRecorder()
	s.ETAHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var rep model.ETAReport
	decodeBody(t, rec, &rep)

	if rep.PrepTime != 27 {
		t.Errorf("prepTime = %d, want 27", rep.PrepTime)
	}
	if rep.PickupTime != 6 {
		t.Errorf("pickupTime = %d, want 6", rep.PickupTime)
	}
	if rep.DeliveryTime != 5 {
		t.Errorf("deliveryTime = %d, want 5", rep.DeliveryTime)
	}
	if rep.TotalMinutes != 38 {
		t.Errorf("totalMinutes = %d, want 38", rep.TotalMinutes)
	}
	if rep.DisplayRange != "33-43" {
		t.Errorf("displayRange = %q, want 33-43", rep.DisplayRange)
	}
	if len(rep.Factors) != 2 {
		t.Fatalf("factors = %v, want 2 entries", rep.Factors)
	}
}

func TestETAHandlerUnknownMerchantReturnsDefault(t *testing.T) {
	s, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/v1/eta?merchantId=nope", nil)
	rec := httptest.NewRecorder()
	s.ETAHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var rep model.ETAReport
	decodeBody(t, rec, &rep)
	if rep.TotalMinutes != 35 || rep.DisplayRange != "30-40" {
		t.Errorf("got total=%d range=%q, want default 35 / 30-40", rep.TotalMinutes, rep.DisplayRange)
	}
}

func TestETAHandlerMissingMerchantID(t *testing.T) {
	s, _ := newTestServer()
	rec := httptest.NewRecorder()
	s.ETAHandler(rec, httptest.NewRequest(http.MethodGet, "/v1/eta", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestETAHandlerInvalidLat(t *testing.T) {
	s, mem := newTestServer()
	seedBusyKitchen(mem)
	rec := httptest.NewRecorder()
	s.ETAHandler(rec, httptest.NewRequest(http.MethodGet, "/v1/eta?merchantId=m1&lat=abc&lng=0", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestETAHandlerServesCachedReport(t *testing.T) {
	s, mem := newTestServer()
	seedBusyKitchen(mem)

	first := httptest.NewRecorder()
	s.ETAHandler(first, httptest.NewRequest(http.MethodGet, "/v1/eta?merchantId=m1&lat=-0.0162&lng=0", nil))

	// The kitchen slows down, but within the TTL the cached report
	// still holds.
	mem.PutMerchant(model.Merchant{
		ID:                 "m1",
		Location:           &model.GeoPoint{Lat: 0, Lng: 0},
		AvgPrepTimeMinutes: 40,
	})

	second := httptest.NewRecorder()
	s.ETAHandler(second, httptest.NewRequest(http.MethodGet, "/v1/eta?merchantId=m1&lat=-0.0162&lng=0", nil))

	if first.Body.String() != second.Body.String() {
		t.Errorf("cached response differs:\n%s\nvs\n%s", first.Body.String(), second.Body.String())
	}
}

func TestETAHandlerGeocodesAddressOnce(t *testing.T) {
	s, mem := newTestServer()
	seedBusyKitchen(mem)

	calls := 0
	s.Geocode = func(ctx context.Context, address string) (model.GeoPoint, error) {
		calls++
		return model.GeoPoint{Lat: -0.0162, Lng: 0}, nil
	}

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		s.ETAHandler(rec, httptest.NewRequest(http.MethodGet, "/v1/eta?merchantId=m1&address=Av.+Reforma+100", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	}
	if calls != 1 {
		t.Errorf("geocode calls = %d, want 1 (second lookup should come from cache)", calls)
	}
}

func TestMerchantLoadHandler(t *testing.T) {
	s, mem := newTestServer()
	seedBusyKitchen(mem)

	rec := httptest.NewRecorder()
	s.MerchantByIDHandler(rec, httptest.NewRequest(http.MethodGet, "/v1/merchants/m1/load", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var rep model.LoadReport
	decodeBody(t, rec, &rep)
	if rep.ActiveOrderCount != 5 || rep.LoadLevel != model.LoadHigh || rep.PrepTimeMultiplier != 1.35 {
		t.Errorf("got %+v, want 5 active / high / 1.35", rep)
	}
}

func TestAllMerchantsLoadHandler(t *testing.T) {
	s, mem := newTestServer()
	seedBusyKitchen(mem)
	mem.PutMerchant(model.Merchant{ID: "m2", Location: &model.GeoPoint{Lat: 1, Lng: 1}})

	rec := httptest.NewRecorder()
	s.AllMerchantsLoadHandler(rec, httptest.NewRequest(http.MethodGet, "/v1/merchants/load", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Items []model.LoadReport `json:"items"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(resp.Items))
	}
}

func TestRankDriversHandler(t *testing.T) {
	s, mem := newTestServer()
	seedBusyKitchen(mem)
	mem.PutDriver(model.Driver{
		ID:              "d2",
		IsActive:        true,
		VehicleType:     model.VehicleBici,
		CurrentLocation: &model.GeoPoint{Lat: 0.001, Lng: 0},
	})

	rec := httptest.NewRecorder()
	s.MerchantByIDHandler(rec, httptest.NewRequest(http.MethodGet, "/v1/merchants/m1/drivers", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Items []model.RankedDriver `json:"items"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(resp.Items))
	}
	if resp.Items[0].Driver.ID != "d2" {
		t.Errorf("nearest first: got %s, want d2", resp.Items[0].Driver.ID)
	}
}

func TestRankDriversBestQuery(t *testing.T) {
	s, mem := newTestServer()
	seedBusyKitchen(mem)

	rec := httptest.NewRecorder()
	s.MerchantByIDHandler(rec, httptest.NewRequest(http.MethodGet, "/v1/merchants/m1/drivers?best=1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var best model.RankedDriver
	decodeBody(t, rec, &best)
	if best.Driver.ID != "d1" {
		t.Errorf("best = %s, want d1", best.Driver.ID)
	}
}

func TestRankDriversUnknownMerchant(t *testing.T) {
	s, _ := newTestServer()
	rec := httptest.NewRecorder()
	s.MerchantByIDHandler(rec, httptest.NewRequest(http.MethodGet, "/v1/merchants/nope/drivers", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestOrdersQueueHandler(t *testing.T) {
	s, mem := newTestServer()
	mem.PutMerchant(model.Merchant{ID: "m1"})
	old := mem.PutOrder(model.Order{
		MerchantID: "m1",
		Status:     model.StatusCreated,
		CreatedAt:  time.Now().Add(-50 * time.Minute),
		Totals:     model.OrderTotals{Total: 100},
	})
	fresh := mem.PutOrder(model.Order{
		MerchantID: "m1",
		Status:     model.StatusCreated,
		CreatedAt:  time.Now().Add(-2 * time.Minute),
		Totals:     model.OrderTotals{Total: 100},
	})
	// Assigned orders never enter the queue.
	mem.PutOrder(model.Order{
		MerchantID: "m1",
		DriverID:   "d1",
		Status:     model.StatusAssignedToDriver,
		CreatedAt:  time.Now().Add(-90 * time.Minute),
	})

	rec := httptest.NewRecorder()
	s.OrdersQueueHandler(rec, httptest.NewRequest(http.MethodGet, "/v1/orders/queue", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Items []struct {
			Order model.Order `json:"order"`
			Score float64     `json:"score"`
		} `json:"items"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(resp.Items))
	}
	if resp.Items[0].Order.ID != old.ID || resp.Items[1].Order.ID != fresh.ID {
		t.Errorf("queue order = [%s %s], want oldest first", resp.Items[0].Order.ID, resp.Items[1].Order.ID)
	}
	if resp.Items[0].Score <= resp.Items[1].Score {
		t.Errorf("scores not descending: %v then %v", resp.Items[0].Score, resp.Items[1].Score)
	}
}

func TestDriverLocationHandler(t *testing.T) {
	s, mem := newTestServer()
	mem.PutDriver(model.Driver{ID: "d1", IsActive: true})

	body := strings.NewReader(`{"lat":19.43,"lng":-99.13}`)
	rec := httptest.NewRecorder()
	s.DriversHandler(rec, httptest.NewRequest(http.MethodPost, "/v1/drivers/d1/location", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	drivers, err := mem.ListDrivers(context.Background())
	if err != nil {
		t.Fatalf("list drivers: %v", err)
	}
	if drivers[0].CurrentLocation == nil || drivers[0].CurrentLocation.Lat != 19.43 {
		t.Errorf("store location not updated: %+v", drivers[0].CurrentLocation)
	}
	if pt, ok := s.Locations.LastKnown(context.Background(), "d1"); !ok || pt.Lng != -99.13 {
		t.Errorf("override store not updated: %v %v", pt, ok)
	}
}

func TestDriverLocationHandlerUnknownDriver(t *testing.T) {
	s, _ := newTestServer()
	rec := httptest.NewRecorder()
	s.DriversHandler(rec, httptest.NewRequest(http.MethodPost, "/v1/drivers/nope/location", strings.NewReader(`{"lat":1,"lng":2}`)))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestDriverLocationHandlerInvalidCoordinates(t *testing.T) {
	s, mem := newTestServer()
	mem.PutDriver(model.Driver{ID: "d1"})
	rec := httptest.NewRecorder()
	s.DriversHandler(rec, httptest.NewRequest(http.MethodPost, "/v1/drivers/d1/location", strings.NewReader(`{"lat":200,"lng":0}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDriverLocationHandlerRateLimited(t *testing.T) {
	s, mem := newTestServer()
	mem.PutDriver(model.Driver{ID: "d1"})
	s.limits = newRateLimiters(rate.Limit(0.001), 1)

	first := httptest.NewRecorder()
	s.DriversHandler(first, httptest.NewRequest(http.MethodPost, "/v1/drivers/d1/location", strings.NewReader(`{"lat":1,"lng":2}`)))
	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d", first.Code)
	}
	second := httptest.NewRecorder()
	s.DriversHandler(second, httptest.NewRequest(http.MethodPost, "/v1/drivers/d1/location", strings.NewReader(`{"lat":1,"lng":2}`)))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", second.Code)
	}
}
