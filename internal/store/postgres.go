package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"dispatchd/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Postgres) ListOpenOrders(ctx context.Context) ([]model.Order, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id::text, merchant_id::text, COALESCE(driver_id::text,''), status, created_at,
		       subtotal, delivery_fee, total, COALESCE(payment_method,'')
		FROM orders
		WHERE status NOT IN ('delivered','cancelled')
		ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list open orders: %w", err)
	}
	defer rows.Close()

	out := []model.Order{}
	for rows.Next() {
		var o model.Order
		var status string
		if err := rows.Scan(&o.ID, &o.MerchantID, &o.DriverID, &status, &o.CreatedAt,
			&o.Totals.Subtotal, &o.Totals.DeliveryFee, &o.Totals.Total, &o.Payment.Method); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Status = model.OrderStatus(status)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (p *Postgres) GetMerchant(ctx context.Context, id string) (model.Merchant, error) {
	var m model.Merchant
	var lat, lng sql.NullFloat64
	err := p.db.QueryRowContext(ctx, `
		SELECT id::text, name, lat, lng, avg_prep_time_minutes, delivery_fee
		FROM merchants WHERE id=$1`, id).
		Scan(&m.ID, &m.Name, &lat, &lng, &m.AvgPrepTimeMinutes, &m.DeliveryFee)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Merchant{}, ErrNotFound
	}
	if err != nil {
		return model.Merchant{}, fmt.Errorf("get merchant: %w", err)
	}
	if lat.Valid && lng.Valid {
		m.Location = &model.GeoPoint{Lat: lat.Float64, Lng: lng.Float64}
	}
	return m, nil
}

func (p *Postgres) ListMerchants(ctx context.Context) ([]model.Merchant, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id::text, name, lat, lng, avg_prep_time_minutes, delivery_fee
		FROM merchants ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list merchants: %w", err)
	}
	defer rows.Close()

	out := []model.Merchant{}
	for rows.Next() {
		var m model.Merchant
		var lat, lng sql.NullFloat64
		if err := rows.Scan(&m.ID, &m.Name, &lat, &lng, &m.AvgPrepTimeMinutes, &m.DeliveryFee); err != nil {
			return nil, fmt.Errorf("scan merchant: %w", err)
		}
		if lat.Valid && lng.Valid {
			m.Location = &model.GeoPoint{Lat: lat.Float64, Lng: lng.Float64}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (p *Postgres) ListDrivers(ctx context.Context) ([]model.Driver, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id::text, name, is_active, vehicle_type, lat, lng, rating, total_deliveries
		FROM drivers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list drivers: %w", err)
	}
	defer rows.Close()

	out := []model.Driver{}
	for rows.Next() {
		var d model.Driver
		var vehicle string
		var lat, lng sql.NullFloat64
		if err := rows.Scan(&d.ID, &d.Name, &d.IsActive, &vehicle, &lat, &lng, &d.Rating, &d.TotalDeliveries); err != nil {
			return nil, fmt.Errorf("scan driver: %w", err)
		}
		d.VehicleType = model.VehicleType(vehicle)
		if lat.Valid && lng.Valid {
			d.CurrentLocation = &model.GeoPoint{Lat: lat.Float64, Lng: lng.Float64}
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) UpdateDriverLocation(ctx context.Context, driverID string, pt model.GeoPoint) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE drivers SET lat=$1, lng=$2, location_updated_at=now() WHERE id=$3`,
		pt.Lat, pt.Lng, driverID)
	if err != nil {
		return fmt.Errorf("update driver location: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
