// Package weather keeps the current weather condition fresh on a fixed
// interval. The raw API fetch is supplied by the host; this service
// only schedules and deduplicates it.
package weather

import (
	"context"
	"log"
	"sync"
	"time"

	"dispatchd/internal/cache"
	"dispatchd/internal/model"
)

// DefaultInterval is the weather refresh period.
const DefaultInterval = 10 * time.Minute

const fetchKey = "weather:current"

// FetchFunc retrieves the effective weather condition. Returning nil
// with no error means clear weather.
type FetchFunc func(ctx context.Context) (*model.WeatherCondition, error)

// Service caches the latest fetched condition. Overlapping refreshes
// (e.g. a slow fetch still outstanding when the timer fires again)
// collapse through the shared dedup group.
type Service struct {
	Interval time.Duration

	fetch FetchFunc
	group *cache.Group

	mu      sync.RWMutex
	current *model.WeatherCondition
}

func NewService(fetch FetchFunc, group *cache.Group) *Service {
	if group == nil {
		group = cache.NewGroup()
	}
	return &Service{Interval: DefaultInterval, fetch: fetch, group: group}
}

// Current returns the latest known condition, or nil when none has
// been fetched. Callers treat nil as clear weather.
func (s *Service) Current() *model.WeatherCondition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	c := *s.current
	return &c
}

// SetFetch installs the host's fetch function. Call it before Run, or
// later to swap providers; a nil fetch leaves the loop idle.
func (s *Service) SetFetch(fetch FetchFunc) {
	s.mu.Lock()
	s.fetch = fetch
	s.mu.Unlock()
}

// Refresh fetches once through the dedup group. On failure the last
// known condition is kept; a stale reading beats losing the signal.
func (s *Service) Refresh(ctx context.Context) error {
	s.mu.RLock()
	fetch := s.fetch
	s.mu.RUnlock()
	if fetch == nil {
		return nil
	}
	v, err := s.group.Do(ctx, fetchKey, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		return err
	}
	cond, _ := v.(*model.WeatherCondition)
	s.mu.Lock()
	s.current = cond
	s.mu.Unlock()
	return nil
}

// Run refreshes immediately and then on every tick until ctx ends.
func (s *Service) Run(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil {
		log.Printf("weather: initial refresh: %v", err)
	}
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				log.Printf("weather: refresh: %v", err)
			}
		}
	}
}
