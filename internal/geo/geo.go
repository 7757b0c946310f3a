// Package geo holds the small amount of spherical geometry the
// dispatch core needs: great-circle distance and coordinate checks.
package geo

import "math"

const earthRadiusKm = 6371.0

// DistanceKm returns the haversine distance between two points given
// as (longitude, latitude) pairs in degrees.
func DistanceKm(lng1, lat1, lng2, lat2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLng := radians(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// DistanceMeters is DistanceKm scaled to meters, matching the unit the
// nearby queries speak.
func DistanceMeters(lng1, lat1, lng2, lat2 float64) float64 {
	return DistanceKm(lng1, lat1, lng2, lat2) * 1000
}

// ValidCoordinates reports whether coords is a usable [lng, lat] pair.
func ValidCoordinates(coords []float64) bool {
	if len(coords) != 2 {
		return false
	}
	lng, lat := coords[0], coords[1]
	return lng >= -180 && lng <= 180 && lat >= -90 && lat <= 90
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
