// Package geo provides great-circle distance between WGS84 coordinates and
// distance formatting for display.
package geo

import (
	"fmt"
	"math"
)

// earthRadius is the mean Earth radius in meters.
const earthRadius = 6371000.0

// Coordinates is a WGS84 point in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Distance returns the Haversine great-circle distance between a and b,
// rounded to the nearest meter. Distance(a, a) == 0 for any a.
func Distance(a, b Coordinates) int {
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Latitude))*math.Cos(toRadians(b.Latitude))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return int(math.Round(earthRadius * c))
}

func toRadians(degrees float64) float64 {
	return degrees * (math.Pi / 180)
}

// FormatDistance renders meters for display: "999m" below one kilometer,
// otherwise kilometers with exactly one decimal digit ("1.0km", "1.5km").
func FormatDistance(meters int) string {
	if meters < 1000 {
		return fmt.Sprintf("%dm", meters)
	}
	return fmt.Sprintf("%.1fkm", float64(meters)/1000)
}
