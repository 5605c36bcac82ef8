package geo

import (
	"fmt"
	"math"

	"github.com/wanderer-app/wanderer/internal/app/models"
)

const earthRadiusMeters = 6371000

// Haversine returns the great-circle distance between two coordinates in
// meters.
func Haversine(a, b models.Coordinate) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

// FormatDistance renders meters for display: whole meters below 1 km,
// kilometers with one decimal at and above it.
func FormatDistance(meters float64) string {
	rounded := math.Round(meters)
	if rounded < 1000 {
		return fmt.Sprintf("%d m", int(rounded))
	}
	return fmt.Sprintf("%.1f km", meters/1000)
}

// ValidateCoordinates checks if latitude and longitude are valid.
// Latitude must be between -90 and 90, longitude between -180 and 180;
// the (0,0) null island reading is treated as missing data.
func ValidateCoordinates(lat, lng float64) bool {
	if lat == 0 && lng == 0 {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// QuantizeKey collapses a coordinate to ~110m precision (3 decimal degrees)
// so repeated nearby queries share a cache slot.
func QuantizeKey(c models.Coordinate, radiusMeters int, mode models.SearchMode) string {
	return fmt.Sprintf("%.3f:%.3f:%d:%s", c.Latitude, c.Longitude, radiusMeters, mode)
}

// RoundForDedup rounds a coordinate to ~1m precision (5 decimal degrees) for
// duplicate detection.
func RoundForDedup(c models.Coordinate) (float64, float64) {
	return math.Round(c.Latitude*1e5) / 1e5, math.Round(c.Longitude*1e5) / 1e5
}
