package store

import (
	"context"
	"log"
	"sync"

	redis "github.com/redis/go-redis/v9"

	"dispatchd/internal/model"
)

// LocationStore holds the last known GPS position per driver, written
// on every location push and consulted by the ranker before the
// driver record's embedded location.
type LocationStore interface {
	LastKnown(ctx context.Context, driverID string) (model.GeoPoint, bool)
	Set(ctx context.Context, driverID string, pt model.GeoPoint)
}

// MemoryLocations keeps last known driver locations in-process.
type MemoryLocations struct {
	mu sync.Mutex
	m  map[string]model.GeoPoint
}

func NewMemoryLocations() *MemoryLocations {
	return &MemoryLocations{m: map[string]model.GeoPoint{}}
}

func (c *MemoryLocations) LastKnown(ctx context.Context, driverID string) (model.GeoPoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pt, ok := c.m[driverID]
	return pt, ok
}

func (c *MemoryLocations) Set(ctx context.Context, driverID string, pt model.GeoPoint) {
	if driverID == "" {
		return
	}
	c.mu.Lock()
	c.m[driverID] = pt
	c.mu.Unlock()
}

const driverGeoKey = "drivers:last_known"

// RedisLocations shares last known locations across instances through
// a Redis GEO set. Lookup failures degrade to "unknown"; the ranker
// then falls back to the driver record.
type RedisLocations struct {
	rdb *redis.Client
}

func NewRedisLocations(url string) (*RedisLocations, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisLocations{rdb: redis.NewClient(opt)}, nil
}

func (c *RedisLocations) LastKnown(ctx context.Context, driverID string) (model.GeoPoint, bool) {
	pos, err := c.rdb.GeoPos(ctx, driverGeoKey, driverID).Result()
	if err != nil || len(pos) == 0 || pos[0] == nil {
		return model.GeoPoint{}, false
	}
	return model.GeoPoint{Lat: pos[0].Latitude, Lng: pos[0].Longitude}, true
}

func (c *RedisLocations) Set(ctx context.Context, driverID string, pt model.GeoPoint) {
	if driverID == "" {
		return
	}
	err := c.rdb.GeoAdd(ctx, driverGeoKey, &redis.GeoLocation{
		Name:      driverID,
		Latitude:  pt.Lat,
		Longitude: pt.Lng,
	}).Err()
	if err != nil {
		log.Printf("locations: redis set %s: %v", driverID, err)
	}
}
