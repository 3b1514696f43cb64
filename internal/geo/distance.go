package geo

import (
	"fmt"
	"math"
)

// EarthRadiusKm is the mean Earth radius used for great-circle math.
const EarthRadiusKm = 6371.0

// locationKeyScale quantizes coordinates to 4 decimal places (~11 m cells).
const locationKeyScale = 1e4

// DistanceKm returns the haversine great-circle distance between two points in kilometers.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	dLat := phi2 - phi1
	dLon := toRadians(lon2) - toRadians(lon1)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	a := sinLat*sinLat + math.Cos(phi1)*math.Cos(phi2)*sinLon*sinLon

	// Rounding can push a slightly above 1 for near-antipodal points.
	c := 2 * math.Asin(math.Min(1, math.Sqrt(a)))
	return EarthRadiusKm * c
}

// ValidLatitude reports whether lat lies in [-90, 90]. NaN is never valid.
func ValidLatitude(lat float64) bool {
	return lat >= -90 && lat <= 90
}

// ValidLongitude reports whether lon lies in [-180, 180]. NaN is never valid.
func ValidLongitude(lon float64) bool {
	return lon >= -180 && lon <= 180
}

// LocationKey quantizes a coordinate pair into a stable string key. Storage layers
// enforce uniqueness on it so that two racing registrations for the same spot collide.
func LocationKey(lat, lon float64) string {
	qLat := int64(math.Round(lat * locationKeyScale))
	qLon := int64(math.Round(lon * locationKeyScale))
	return fmt.Sprintf("%d:%d", qLat, qLon)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
