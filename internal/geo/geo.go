// Package geo provides great-circle distance and travel-time helpers.
package geo

import (
	"math"

	"dispatchd/internal/model"
)

const earthRadiusKm = 6371.0

// Average urban speeds in km/h per vehicle type.
const (
	speedMotoKmh = 25.0
	speedBiciKmh = 12.0
	speedAutoKmh = 20.0
)

// DistanceKm returns the haversine distance in kilometres between two points.
func DistanceKm(a, b model.GeoPoint) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	rLat1 := radians(a.Lat)
	rLat2 := radians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

// Speed returns the average speed in km/h for a vehicle type. Unknown
// types get the moto profile.
func Speed(v model.VehicleType) float64 {
	switch v {
	case model.VehicleBici:
		return speedBiciKmh
	case model.VehicleAuto:
		return speedAutoKmh
	case model.VehicleMoto:
		return speedMotoKmh
	default:
		return speedMotoKmh
	}
}

// TravelMinutes converts a distance to whole minutes of travel for the
// given vehicle type, rounding up.
func TravelMinutes(distanceKm float64, v model.VehicleType) int {
	if distanceKm <= 0 {
		return 0
	}
	return int(math.Ceil(distanceKm / Speed(v) * 60))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
