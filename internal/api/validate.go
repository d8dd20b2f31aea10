package api

import (
	"fmt"
	"strconv"

	"dispatchd/internal/model"
)

func validateCoordinates(lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("lat must be in [-90,90], got %v", lat)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("lng must be in [-180,180], got %v", lng)
	}
	return nil
}

// parsePoint requires both coordinates; a lone lat or lng is an error
// rather than a silent zero.
func parsePoint(latStr, lngStr string) (model.GeoPoint, error) {
	if latStr == "" || lngStr == "" {
		return model.GeoPoint{}, fmt.Errorf("both lat and lng are required")
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return model.GeoPoint{}, fmt.Errorf("invalid lat: %q", latStr)
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return model.GeoPoint{}, fmt.Errorf("invalid lng: %q", lngStr)
	}
	if err := validateCoordinates(lat, lng); err != nil {
		return model.GeoPoint{}, err
	}
	return model.GeoPoint{Lat: lat, Lng: lng}, nil
}
