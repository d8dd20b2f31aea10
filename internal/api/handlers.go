package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"dispatchd/internal/cache"
	"dispatchd/internal/dispatch"
	"dispatchd/internal/metrics"
	"dispatchd/internal/model"
	"dispatchd/internal/store"
)

// HealthHandler handles GET /healthz
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// ReadyHandler handles GET /readyz
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := s.Store.ListMerchants(r.Context()); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Store unavailable", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// ETAHandler handles GET /v1/eta?merchantId=...&lat=...&lng=... (or &address=...)
func (s *Server) ETAHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	merchantID := r.URL.Query().Get("merchantId")
	if merchantID == "" {
		writeProblem(w, http.StatusBadRequest, "Missing merchantId", "", r.URL.Path)
		return
	}

	merchant, err := s.Store.GetMerchant(r.Context(), merchantID)
	if errors.Is(err, store.ErrNotFound) {
		// ETA display must always render something.
		metrics.ETARequests.WithLabelValues("default").Inc()
		writeJSON(w, http.StatusOK, dispatch.DefaultReport())
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Merchant lookup failed", err.Error(), r.URL.Path)
		return
	}

	deliveryPoint, err := s.resolveDeliveryPoint(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid delivery point", err.Error(), r.URL.Path)
		return
	}

	if merchant.Location != nil && deliveryPoint != nil {
		if rep, ok := s.Cache.GetETA(merchant.Location.Lat, merchant.Location.Lng, deliveryPoint.Lat, deliveryPoint.Lng); ok {
			metrics.ETARequests.WithLabelValues("cached").Inc()
			writeJSON(w, http.StatusOK, rep)
			return
		}
	}

	orders, err := s.Store.ListOpenOrders(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Order snapshot failed", err.Error(), r.URL.Path)
		return
	}
	drivers, err := s.Store.ListDrivers(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Driver snapshot failed", err.Error(), r.URL.Path)
		return
	}

	rep := s.Composer.Compose(r.Context(), dispatch.ComposeInput{
		Merchant:      &merchant,
		DeliveryPoint: deliveryPoint,
		Orders:        orders,
		Drivers:       drivers,
		Weather:       s.Weather.Current(),
	})
	if merchant.Location != nil && deliveryPoint != nil {
		s.Cache.PutETA(r.Context(), merchant.Location.Lat, merchant.Location.Lng, deliveryPoint.Lat, deliveryPoint.Lng, rep)
	}
	metrics.ETARequests.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, rep)
}

// resolveDeliveryPoint parses lat/lng, or geocodes an address through
// the permanent cache and the dedup group. Returns nil when the
// request carries no destination at all; composition falls back.
func (s *Server) resolveDeliveryPoint(r *http.Request) (*model.GeoPoint, error) {
	q := r.URL.Query()
	if q.Get("lat") != "" || q.Get("lng") != "" {
		pt, err := parsePoint(q.Get("lat"), q.Get("lng"))
		if err != nil {
			return nil, err
		}
		return &pt, nil
	}

	address := strings.TrimSpace(q.Get("address"))
	if address == "" {
		return nil, nil
	}
	if pt, ok := s.Cache.GetGeocode(address); ok {
		return &pt, nil
	}
	if s.Geocode == nil {
		return nil, nil
	}
	key := "geocode:" + cache.NormalizeAddress(address)
	v, err := s.Dedup.Do(r.Context(), key, func(ctx context.Context) (any, error) {
		return s.Geocode(ctx, address)
	})
	if err != nil {
		// Geocoding is an optimization for the ETA path; compose with
		// the fallback delivery leg instead of failing the request.
		return nil, nil
	}
	pt, ok := v.(model.GeoPoint)
	if !ok {
		return nil, nil
	}
	s.Cache.PutGeocode(r.Context(), address, pt)
	return &pt, nil
}

// AllMerchantsLoadHandler handles GET /v1/merchants/load
func (s *Server) AllMerchantsLoadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	merchants, err := s.Store.ListMerchants(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Merchant snapshot failed", err.Error(), r.URL.Path)
		return
	}
	orders, err := s.Store.ListOpenOrders(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Order snapshot failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": dispatch.AnalyzeAllLoads(merchants, orders)})
}

// MerchantByIDHandler handles GET /v1/merchants/{id}/load and
// GET /v1/merchants/{id}/drivers
func (s *Server) MerchantByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/v1/merchants/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	id, action := parts[0], parts[1]

	switch action {
	case "load":
		orders, err := s.Store.ListOpenOrders(r.Context())
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Order snapshot failed", err.Error(), r.URL.Path)
			return
		}
		// An unknown merchant yields an empty low-tier report by design
		// of the analyzer; no lookup needed.
		writeJSON(w, http.StatusOK, dispatch.AnalyzeLoad(id, orders))
	case "drivers":
		s.rankDrivers(w, r, id)
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
	}
}

func (s *Server) rankDrivers(w http.ResponseWriter, r *http.Request, merchantID string) {
	merchant, err := s.Store.GetMerchant(r.Context(), merchantID)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Merchant not found", "", r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Merchant lookup failed", err.Error(), r.URL.Path)
		return
	}
	drivers, err := s.Store.ListDrivers(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Driver snapshot failed", err.Error(), r.URL.Path)
		return
	}
	orders, err := s.Store.ListOpenOrders(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Order snapshot failed", err.Error(), r.URL.Path)
		return
	}

	if r.URL.Query().Get("best") == "1" {
		best, ok := s.Ranker.BestAvailable(r.Context(), merchant, drivers, orders)
		if !ok {
			writeProblem(w, http.StatusNotFound, "No candidate drivers", "no active driver has a known location", r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, best)
		return
	}
	ranked := s.Ranker.Rank(r.Context(), merchant, drivers, orders)
	writeJSON(w, http.StatusOK, map[string]any{"items": ranked})
}

// OrdersQueueHandler handles GET /v1/orders/queue
func (s *Server) OrdersQueueHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	orders, err := s.Store.ListOpenOrders(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Order snapshot failed", err.Error(), r.URL.Path)
		return
	}
	pending := make([]model.Order, 0, len(orders))
	for _, o := range orders {
		if o.DriverID == "" {
			pending = append(pending, o)
		}
	}
	now := time.Now()
	sorted := dispatch.SortByPriority(pending, now)

	type queued struct {
		Order model.Order `json:"order"`
		Score float64     `json:"score"`
	}
	items := make([]queued, len(sorted))
	for i, o := range sorted {
		items[i] = queued{Order: o, Score: dispatch.Score(o, now)}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// DriversHandler routes /v1/drivers/{id}/location and
// /v1/drivers/{id}/events/stream
func (s *Server) DriversHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/drivers/")
	switch {
	case strings.HasSuffix(rest, "/location"):
		s.driverLocation(w, r, strings.TrimSuffix(rest, "/location"))
	case strings.HasSuffix(rest, "/events/stream"):
		s.DriverEventsStream(w, r, strings.TrimSuffix(rest, "/events/stream"))
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
	}
}

func (s *Server) driverLocation(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if id == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if !s.limits.allow(id) {
		writeProblem(w, http.StatusTooManyRequests, "Rate limited", "location updates too frequent", r.URL.Path)
		return
	}
	var req struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateCoordinates(req.Lat, req.Lng); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid coordinates", err.Error(), r.URL.Path)
		return
	}
	pt := model.GeoPoint{Lat: req.Lat, Lng: req.Lng}
	if err := s.ingestLocation(r.Context(), id, pt); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Driver not found", "", r.URL.Path)
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Location update failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"driverId": id, "applied": true})
}

// ingestLocation writes the snapshot store first, then the override
// store, so the ranker's fallback chain sees the freshest point either
// way. Stream subscribers are notified last.
func (s *Server) ingestLocation(ctx context.Context, driverID string, pt model.GeoPoint) error {
	if err := s.Store.UpdateDriverLocation(ctx, driverID, pt); err != nil {
		return err
	}
	s.Locations.Set(ctx, driverID, pt)
	if s.Broker != nil {
		s.Broker.Publish(driverID, Event{
			Type: "driver.location",
			Data: map[string]any{"driverId": driverID, "lat": pt.Lat, "lng": pt.Lng},
		})
	}
	return nil
}
