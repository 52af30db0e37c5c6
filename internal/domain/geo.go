package domain

import "math"

const earthRadiusMeters = 6371000.0

// GeoPoint is a WGS84 coordinate pair, longitude first.
type GeoPoint struct {
	Longitude float64 `json:"lng"`
	Latitude  float64 `json:"lat"`
}

// Valid reports whether the point is inside the WGS84 coordinate ranges.
func (p GeoPoint) Valid() bool {
	return p.Longitude >= -180 && p.Longitude <= 180 &&
		p.Latitude >= -90 && p.Latitude <= 90
}

// DistanceMeters returns the great-circle distance between two points.
func (p GeoPoint) DistanceMeters(other GeoPoint) float64 {
	lat1 := p.Latitude * math.Pi / 180
	lat2 := other.Latitude * math.Pi / 180
	dLat := (other.Latitude - p.Latitude) * math.Pi / 180
	dLng := (other.Longitude - p.Longitude) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}
