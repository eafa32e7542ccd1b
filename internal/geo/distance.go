// Package geo provides great-circle distance math.
package geo

import (
	"math"

	"github.com/maptrack/maptrack/internal/tracking"
)

// earthRadiusKm is the mean Earth radius.
const earthRadiusKm = 6371.0

// Distance returns the great-circle distance in kilometers between two
// points, using the haversine formula.
func Distance(a, b tracking.Coords) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)

	h := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*math.Pow(math.Sin(dLon/2), 2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
