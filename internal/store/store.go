package store

import (
	"context"
	"errors"

	"dispatchd/internal/model"
)

// Store supplies the read-only snapshots the engine consumes and the
// single write path it needs: driver location refresh. The engine never
// transitions order status or mutates catalogs through this interface.
type Store interface {
	// Orders: every non-terminal order. The engine filters per call and
	// never caches the snapshot beyond one request.
	ListOpenOrders(ctx context.Context) ([]model.Order, error)

	// Catalogs
	GetMerchant(ctx context.Context, id string) (model.Merchant, error)
	ListMerchants(ctx context.Context) ([]model.Merchant, error)
	ListDrivers(ctx context.Context) ([]model.Driver, error)

	// Driver GPS push path.
	UpdateDriverLocation(ctx context.Context, driverID string, pt model.GeoPoint) error
}

var ErrNotFound = errors.New("not found")
