// Package cache implements the route/geocode/ETA cache and the
// in-flight request deduplication used by the dispatch engine.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"dispatchd/internal/metrics"
	"dispatchd/internal/model"
)

const (
	// RouteTTL bounds the age of cached route results.
	RouteTTL = 30 * time.Minute
	// ETATTL bounds the age of cached ETA results.
	ETATTL = 15 * time.Minute

	// routeCapacity is the hard bound on route entries; when exceeded the
	// oldest entries are dropped until routeLowWater remain.
	routeCapacity = 100
	routeLowWater = 80
)

// Backend is an optional write-through store for multi-instance
// deployments. A failing Put poisons the whole category: the cache
// clears it and drops the write.
type Backend interface {
	Put(ctx context.Context, category, key string, value []byte, ttl time.Duration) error
	Clear(ctx context.Context, category string) error
}

type routeEntry struct {
	data     model.RouteData
	storedAt time.Time
}

type etaEntry struct {
	report   model.ETAReport
	storedAt time.Time
}

// RouteCache is the engine's only shared mutable state. All methods are
// safe for concurrent use; reads and writes are linearizable per key.
type RouteCache struct {
	mu      sync.Mutex
	geocode map[string]model.GeoPoint
	routes  map[string]routeEntry
	etas    map[string]etaEntry

	persist Backend
	now     func() time.Time
}

// New returns an empty cache. persist may be nil for single-instance use.
func New(persist Backend) *RouteCache {
	return &RouteCache{
		geocode: map[string]model.GeoPoint{},
		routes:  map[string]routeEntry{},
		etas:    map[string]etaEntry{},
		persist: persist,
		now:     time.Now,
	}
}

// SetClock overrides the cache's clock. Tests only.
func (c *RouteCache) SetClock(now func() time.Time) { c.now = now }

// NormalizeAddress canonicalizes an address for use as a geocode key:
// trimmed, lowercased, inner whitespace collapsed.
func NormalizeAddress(address string) string {
	return strings.Join(strings.Fields(strings.ToLower(address)), " ")
}

// RouteKey builds a coordinate-pair key rounded to 4 decimal places
// (~11 m) to raise the hit rate across nearby requests.
func RouteKey(originLat, originLng, destLat, destLng float64) string {
	return fmt.Sprintf("%.4f,%.4f|%.4f,%.4f", originLat, originLng, destLat, destLng)
}

// GetGeocode looks up a normalized address. Geocode entries never expire.
func (c *RouteCache) GetGeocode(address string) (model.GeoPoint, bool) {
	key := NormalizeAddress(address)
	c.mu.Lock()
	pt, ok := c.geocode[key]
	c.mu.Unlock()
	countLookup("geocode", ok)
	return pt, ok
}

// PutGeocode stores an address -> point mapping. Physical addresses do
// not move, so there is no TTL; only ClearGeocode removes entries.
func (c *RouteCache) PutGeocode(ctx context.Context, address string, pt model.GeoPoint) {
	key := NormalizeAddress(address)
	if key == "" {
		return
	}
	c.mu.Lock()
	c.geocode[key] = pt
	c.mu.Unlock()
	c.writeThrough(ctx, "geocode", key, pt, 0)
}

// ClearGeocode drops every geocode entry.
func (c *RouteCache) ClearGeocode(ctx context.Context) {
	c.mu.Lock()
	c.geocode = map[string]model.GeoPoint{}
	c.mu.Unlock()
	if c.persist != nil {
		_ = c.persist.Clear(ctx, "geocode")
	}
}

// GetRoute returns a cached route result no older than RouteTTL.
// Expired entries are evicted and reported as absent.
func (c *RouteCache) GetRoute(originLat, originLng, destLat, destLng float64) (model.RouteData, bool) {
	key := RouteKey(originLat, originLng, destLat, destLng)
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.routes[key]
	if ok && c.now().Sub(e.storedAt) > RouteTTL {
		delete(c.routes, key)
		ok = false
	}
	countLookup("route", ok)
	if !ok {
		return model.RouteData{}, false
	}
	return e.data, true
}

// PutRoute stores a route result and enforces the entry bound.
func (c *RouteCache) PutRoute(ctx context.Context, originLat, originLng, destLat, destLng float64, data model.RouteData) {
	key := RouteKey(originLat, originLng, destLat, destLng)
	c.mu.Lock()
	c.routes[key] = routeEntry{data: data, storedAt: c.now()}
	if len(c.routes) > routeCapacity {
		c.evictOldestRoutes()
	}
	c.mu.Unlock()
	c.writeThrough(ctx, "route", key, data, RouteTTL)
}

// evictOldestRoutes drops entries oldest-first until routeLowWater
// remain. Caller holds c.mu.
func (c *RouteCache) evictOldestRoutes() {
	type aged struct {
		key      string
		storedAt time.Time
	}
	all := make([]aged, 0, len(c.routes))
	for k, e := range c.routes {
		all = append(all, aged{key: k, storedAt: e.storedAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].storedAt.Before(all[j].storedAt) })
	for i := 0; i < len(all)-routeLowWater; i++ {
		delete(c.routes, all[i].key)
		metrics.CacheEvictions.Inc()
	}
}

// GetETA returns a cached ETA report no older than ETATTL.
func (c *RouteCache) GetETA(originLat, originLng, destLat, destLng float64) (model.ETAReport, bool) {
	key := RouteKey(originLat, originLng, destLat, destLng)
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.etas[key]
	if ok && c.now().Sub(e.storedAt) > ETATTL {
		delete(c.etas, key)
		ok = false
	}
	countLookup("eta", ok)
	if !ok {
		return model.ETAReport{}, false
	}
	return e.report, true
}

// PutETA stores an ETA report. The ETA category is unbounded; entries
// are small and expire quickly.
func (c *RouteCache) PutETA(ctx context.Context, originLat, originLng, destLat, destLng float64, report model.ETAReport) {
	key := RouteKey(originLat, originLng, destLat, destLng)
	c.mu.Lock()
	c.etas[key] = etaEntry{report: report, storedAt: c.now()}
	c.mu.Unlock()
	c.writeThrough(ctx, "eta", key, report, ETATTL)
}

// writeThrough mirrors a write to the persistent backend. A failed put
// clears the category in both stores and drops the write; the cache is
// an optimization, never a correctness dependency, so the error stops
// here.
func (c *RouteCache) writeThrough(ctx context.Context, category, key string, v any, ttl time.Duration) {
	if c.persist == nil {
		return
	}
	b, err := json.Marshal(v)
	if err == nil {
		err = c.persist.Put(ctx, category, key, b, ttl)
	}
	if err == nil {
		return
	}
	log.Printf("cache: persist %s failed, clearing category: %v", category, err)
	c.mu.Lock()
	switch category {
	case "geocode":
		c.geocode = map[string]model.GeoPoint{}
	case "route":
		c.routes = map[string]routeEntry{}
	case "eta":
		c.etas = map[string]etaEntry{}
	}
	c.mu.Unlock()
	_ = c.persist.Clear(ctx, category)
}

func countLookup(category string, hit bool) {
	if hit {
		metrics.CacheHits.WithLabelValues(category).Inc()
	} else {
		metrics.CacheMisses.WithLabelValues(category).Inc()
	}
}
