package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"dispatchd/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu        sync.Mutex
	orders    map[string]model.Order
	merchants map[string]model.Merchant
	drivers   map[string]model.Driver
}

func NewMemory() *Memory {
	return &Memory{
		orders:    map[string]model.Order{},
		merchants: map[string]model.Merchant{},
		drivers:   map[string]model.Driver{},
	}
}

func (m *Memory) ListOpenOrders(ctx context.Context) ([]model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Order, 0, len(m.orders))
	for _, o := range m.orders {
		if !o.Status.Terminal() {
			out = append(out, o)
		}
	}
	// Map iteration order is random; callers expect a stable snapshot.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetMerchant(ctx context.Context, id string) (model.Merchant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mer, ok := m.merchants[id]
	if !ok {
		return model.Merchant{}, ErrNotFound
	}
	return mer, nil
}

func (m *Memory) ListMerchants(ctx context.Context) ([]model.Merchant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Merchant, 0, len(m.merchants))
	for _, mer := range m.merchants {
		out = append(out, mer)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListDrivers(ctx context.Context) ([]model.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Driver, 0, len(m.drivers))
	for _, d := range m.drivers {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) UpdateDriverLocation(ctx context.Context, driverID string, pt model.GeoPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[driverID]
	if !ok {
		return ErrNotFound
	}
	loc := pt
	d.CurrentLocation = &loc
	m.drivers[driverID] = d
	return nil
}

// Seed helpers for tests and local runs.

func (m *Memory) PutMerchant(mer model.Merchant) model.Merchant {
	if mer.ID == "" {
		mer.ID = uuid.New().String()
	}
	m.mu.Lock()
	m.merchants[mer.ID] = mer
	m.mu.Unlock()
	return mer
}

func (m *Memory) PutDriver(d model.Driver) model.Driver {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	m.mu.Lock()
	m.drivers[d.ID] = d
	m.mu.Unlock()
	return d
}

func (m *Memory) PutOrder(o model.Order) model.Order {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	m.mu.Lock()
	m.orders[o.ID] = o
	m.mu.Unlock()
	return o
}
