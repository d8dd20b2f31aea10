// Package api implements HTTP handlers and helpers for the dispatch service.
package api

import (
	"context"
	"log"

	"golang.org/x/time/rate"

	"dispatchd/internal/cache"
	"dispatchd/internal/config"
	"dispatchd/internal/dispatch"
	"dispatchd/internal/model"
	"dispatchd/internal/store"
	"dispatchd/internal/weather"
)

// GeocodeFunc resolves an address to coordinates. Supplied by the
// host; the engine only caches and deduplicates it.
type GeocodeFunc func(ctx context.Context, address string) (model.GeoPoint, error)

type Server struct {
	Store     store.Store
	Locations store.LocationStore
	Cache     *cache.RouteCache
	Dedup     *cache.Group
	Weather   *weather.Service
	Ranker    *dispatch.Ranker
	Composer  *dispatch.Composer
	Broker    EventBroker
	Geocode   GeocodeFunc // optional

	limits *rateLimiters
}

// NewServer wires the engine. With no DATABASE_URL the in-memory store
// is used; with no REDIS_URL locations and the cache stay in-process.
func NewServer(cfg config.Config) (*Server, error) {
	var st store.Store
	if cfg.DatabaseURL == "" {
		st = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		st = sp
	}

	var locs store.LocationStore
	var backend cache.Backend
	var broker EventBroker
	if cfg.RedisURL != "" {
		if rl, err := store.NewRedisLocations(cfg.RedisURL); err == nil {
			locs = rl
		} else {
			log.Printf("redis locations unavailable, using memory: %v", err)
		}
		if rb, err := cache.NewRedisBackend(cfg.RedisURL); err == nil {
			backend = rb
		}
		if eb, err := NewRedisBroker(cfg.RedisURL); err == nil {
			broker = eb
		}
	}
	if locs == nil {
		locs = store.NewMemoryLocations()
	}
	if broker == nil {
		broker = NewBroker()
	}

	group := cache.NewGroup()
	ranker := &dispatch.Ranker{Locations: locs}
	return &Server{
		Store:     st,
		Locations: locs,
		Cache:     cache.New(backend),
		Dedup:     group,
		Weather:   weather.NewService(nil, group),
		Ranker:    ranker,
		Composer:  &dispatch.Composer{Ranker: ranker},
		Broker:    broker,
		limits:    newRateLimiters(rate.Limit(cfg.RateRPS), cfg.RateBurst),
	}, nil
}
