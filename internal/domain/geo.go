package domain

import "math"

const (
	earthRadiusMeters = 6371000.0
	metersPerMile     = 1609.34
)

// WithinRadiusMiles reports whether the two points are at most radiusMiles
// apart by great-circle distance.
func WithinRadiusMiles(lat1, lng1, lat2, lng2, radiusMiles float64) bool {
	return haversineMeters(lat1, lng1, lat2, lng2) <= radiusMiles*metersPerMile
}

func haversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := rad(lat2 - lat1)
	dLng := rad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(a))
}
