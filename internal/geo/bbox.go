package geo

import "math"

// BoundingBox is a latitude/longitude rectangle used to pre-filter candidates
// before the exact distance check.
type BoundingBox struct {
	MinLat float64 `json:"minLat"`
	MaxLat float64 `json:"maxLat"`
	MinLon float64 `json:"minLon"`
	MaxLon float64 `json:"maxLon"`
}

// BoundingBoxAround returns the smallest box containing every point within radiusKm
// of (lat, lon). Boxes touching a pole or crossing the antimeridian span all longitudes,
// so the box may over-include but never excludes a point inside the radius.
func BoundingBoxAround(lat, lon, radiusKm float64) BoundingBox {
	angular := radiusKm / EarthRadiusKm
	latRad := toRadians(lat)

	minLat := latRad - angular
	maxLat := latRad + angular

	box := BoundingBox{
		MinLat: toDegrees(minLat),
		MaxLat: toDegrees(maxLat),
		MinLon: -180,
		MaxLon: 180,
	}

	if minLat <= -math.Pi/2 || maxLat >= math.Pi/2 {
		box.MinLat = math.Max(box.MinLat, -90)
		box.MaxLat = math.Min(box.MaxLat, 90)
		return box
	}

	ratio := math.Sin(angular) / math.Cos(latRad)
	if ratio >= 1 {
		return box
	}
	dLon := toDegrees(math.Asin(ratio))

	minLon := lon - dLon
	maxLon := lon + dLon
	if minLon < -180 || maxLon > 180 {
		return box
	}

	box.MinLon = minLon
	box.MaxLon = maxLon
	return box
}

// Contains reports whether the point falls inside the box (edges inclusive).
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat &&
		lon >= b.MinLon && lon <= b.MaxLon
}
