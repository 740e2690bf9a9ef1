package model

import "math"

// Location is an immutable geocoordinate with an optional human label.
type Location struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Label string  `json:"label,omitempty"`
}

// Equal reports whether two locations reference the same coordinates.
// Labels are ignored.
func (l Location) Equal(o Location) bool {
	return l.Lat == o.Lat && l.Lon == o.Lon
}

// HaversineM returns the great-circle distance to o in meters. It is used for
// display and relatedness scoring only; planning distances always come from a
// cost.Provider.
func (l Location) HaversineM(o Location) float64 {
	const earthRadiusM = 6371000.0
	dLat := (o.Lat - l.Lat) * math.Pi / 180
	dLon := (o.Lon - l.Lon) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(l.Lat*math.Pi/180)*math.Cos(o.Lat*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}
