package geo

import "math"

const (
	earthRadiusKm = 6371.0

	// avgDriveSpeedKmh is an assumed average urban driving speed.
	// The result is an estimate, not a routing answer.
	avgDriveSpeedKmh = 50.0
)

// DistanceKm returns the great-circle (haversine) distance in kilometers
// between two coordinate pairs.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	if lat1 == lat2 && lng1 == lng2 {
		return 0
	}

	dLat := toRadians(lat2 - lat1)
	dLng := toRadians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	// Clamp before Asin: floating point drift can push a just above 1.
	if a > 1 {
		a = 1
	}

	c := 2 * math.Asin(math.Sqrt(a))
	return earthRadiusKm * c
}

// DriveMinutes estimates driving time in whole minutes between two
// coordinate pairs, assuming avgDriveSpeedKmh. Identical points yield 0.
func DriveMinutes(lat1, lng1, lat2, lng2 float64) int {
	km := DistanceKm(lat1, lng1, lat2, lng2)
	if km == 0 || math.IsNaN(km) {
		return 0
	}
	minutes := km / avgDriveSpeedKmh * 60
	return int(math.Round(minutes))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
