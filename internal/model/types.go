package model

import "time"

// GeoPoint is an immutable WGS84-like lat/lng pair in decimal degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// VehicleType is the driver's vehicle class, which fixes the speed profile.
type VehicleType string

const (
	VehicleMoto VehicleType = "moto"
	VehicleBici VehicleType = "bici"
	VehicleAuto VehicleType = "auto"
)

// OrderStatus values form a fixed progression; cancelled is a terminal
// branch from any pre-pickup state.
type OrderStatus string

const (
	StatusCreated           OrderStatus = "created"
	StatusConfirmed         OrderStatus = "confirmed"
	StatusPreparing         OrderStatus = "preparing"
	StatusReady             OrderStatus = "ready"
	StatusSearchingDriver   OrderStatus = "searching_driver"
	StatusAssignedToDriver  OrderStatus = "assigned_to_driver"
	StatusArrivedAtMerchant OrderStatus = "arrived_at_merchant"
	StatusPickedUp          OrderStatus = "picked_up"
	StatusOnTheWay          OrderStatus = "on_the_way"
	StatusDelivered         OrderStatus = "delivered"
	StatusCancelled         OrderStatus = "cancelled"
)

// Terminal reports whether the status ends the order's lifecycle.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

type Merchant struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name,omitempty"`
	Location           *GeoPoint `json:"location,omitempty"`
	AvgPrepTimeMinutes int       `json:"avgPrepTimeMinutes,omitempty"`
	DeliveryFee        float64   `json:"deliveryFee,omitempty"`
}

type Driver struct {
	ID              string      `json:"id"`
	Name            string      `json:"name,omitempty"`
	IsActive        bool        `json:"isActive"`
	VehicleType     VehicleType `json:"vehicleType,omitempty"`
	CurrentLocation *GeoPoint   `json:"currentLocation,omitempty"`
	Rating          float64     `json:"rating,omitempty"`
	TotalDeliveries int         `json:"totalDeliveries,omitempty"`
}

type OrderTotals struct {
	Subtotal    float64 `json:"subtotal"`
	DeliveryFee float64 `json:"deliveryFee"`
	Total       float64 `json:"total"`
}

type OrderPayment struct {
	Method string `json:"method,omitempty"` // cash, card
}

type Order struct {
	ID         string       `json:"id"`
	MerchantID string       `json:"merchantId"`
	DriverID   string       `json:"driverId,omitempty"`
	Status     OrderStatus  `json:"status"`
	CreatedAt  time.Time    `json:"createdAt"`
	Totals     OrderTotals  `json:"totals"`
	Payment    OrderPayment `json:"payment"`
}

// WeatherCondition is supplied externally; absence means clear weather.
type WeatherCondition struct {
	ID                string  `json:"id"`
	Label             string  `json:"label"`
	Icon              string  `json:"icon,omitempty"`
	DelayMultiplier   float64 `json:"delayMultiplier"`
	DeliverySurcharge float64 `json:"deliverySurcharge,omitempty"`
}

// LoadLevel classifies a merchant's backlog.
type LoadLevel string

const (
	LoadLow      LoadLevel = "low"
	LoadMedium   LoadLevel = "medium"
	LoadHigh     LoadLevel = "high"
	LoadCritical LoadLevel = "critical"
)

type LoadReport struct {
	MerchantID         string    `json:"merchantId"`
	ActiveOrderCount   int       `json:"activeOrderCount"`
	LoadLevel          LoadLevel `json:"loadLevel"`
	PrepTimeMultiplier float64   `json:"prepTimeMultiplier"`
	PreparingCount     int       `json:"preparingCount"`
	WaitingCount       int       `json:"waitingCount"`
}

// RankedDriver annotates a driver with dispatch-ordering data.
type RankedDriver struct {
	Driver                 Driver      `json:"driver"`
	DistanceKm             float64     `json:"distanceKm"`
	EstimatedPickupMinutes int         `json:"estimatedPickupMinutes"`
	VehicleType            VehicleType `json:"vehicleType"`
	IsBusy                 bool        `json:"isBusy"`
	Rating                 float64     `json:"rating"`
	TotalDeliveries        int         `json:"totalDeliveries"`
}

// ETAFactor names one contribution to a composed ETA, for display.
type ETAFactor struct {
	Label  string `json:"label"`
	Icon   string `json:"icon,omitempty"`
	Impact string `json:"impact"`
}

type ETAReport struct {
	PrepTime        int         `json:"prepTime"`
	PickupTime      int         `json:"pickupTime"`
	DeliveryTime    int         `json:"deliveryTime"`
	TotalMinutes    int         `json:"totalMinutes"`
	DisplayRangeMin int         `json:"displayRangeMin"`
	DisplayRangeMax int         `json:"displayRangeMax"`
	DisplayRange    string      `json:"displayRange"`
	Factors         []ETAFactor `json:"factors"`
}

// RouteData is the cached result of an external route computation.
type RouteData struct {
	DistanceKm      float64 `json:"distanceKm"`
	DurationMinutes int     `json:"durationMinutes"`
	Polyline        string  `json:"polyline,omitempty"`
}
