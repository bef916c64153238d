package types

import (
	"fmt"
	"math"
)

// EarthRadiusMeters is the mean Earth radius used for great-circle distance.
const EarthRadiusMeters = 6371000.0

// GeographyPoint is a WGS84 coordinate pair.
type GeographyPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate rejects coordinates outside the WGS84 range.
func (g GeographyPoint) Validate() error {
	if math.IsNaN(g.Lat) || g.Lat < -90 || g.Lat > 90 {
		return fmt.Errorf("geography: latitude %v out of range", g.Lat)
	}
	if math.IsNaN(g.Lng) || g.Lng < -180 || g.Lng > 180 {
		return fmt.Errorf("geography: longitude %v out of range", g.Lng)
	}
	return nil
}

// IsZero reports whether the point was never set.
func (g GeographyPoint) IsZero() bool {
	return g.Lat == 0 && g.Lng == 0
}

// DistanceMeters returns the haversine distance between two points.
func (g GeographyPoint) DistanceMeters(other GeographyPoint) float64 {
	lat1 := toRadians(g.Lat)
	lat2 := toRadians(other.Lat)
	dLat := toRadians(other.Lat - g.Lat)
	dLng := toRadians(other.Lng - g.Lng)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	// rounding can push a just past 1 for antipodal points
	a = math.Min(1, math.Max(0, a))
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

func (g GeographyPoint) String() string {
	return fmt.Sprintf("POINT(%f %f)", g.Lng, g.Lat)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
