// Package geo holds the coordinate type shared by every place source and the
// distance function used to annotate places relative to a query origin.
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used by Distance.
const EarthRadiusMeters = 6371008.8

// Point is a WGS84 coordinate (SRID 4326).
type Point struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// NewPoint builds a point from longitude and latitude, the order PostGIS uses.
func NewPoint(lon, lat float64) Point {
	return Point{Lon: lon, Lat: lat}
}

// Distance returns the great-circle distance between a and b in metres.
func Distance(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180.0
	lat2 := b.Lat * math.Pi / 180.0
	dLat := lat2 - lat1
	dLon := (b.Lon - a.Lon) * math.Pi / 180.0

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMeters * c
}

// DegreesAround converts a metric radius into latitude and longitude deltas
// that bound a circle of that radius around center.
func DegreesAround(center Point, radiusMeters float64) (dLat, dLon float64) {
	dLat = (radiusMeters / EarthRadiusMeters) * (180 / math.Pi)
	cosLat := math.Cos(center.Lat * math.Pi / 180.0)
	if cosLat < 1e-6 {
		return dLat, 180
	}
	dLon = dLat / cosLat
	if dLon > 180 {
		dLon = 180
	}
	return dLat, dLon
}
