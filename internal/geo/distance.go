package geo

import (
	"github.com/golang/geo/s2"

	"ai-trip-planner/internal/poi"
)

// EarthRadiusKm is the mean earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance between two coordinates in
// kilometres. The same metric is used for clustering and intra-day ordering
// so results stay internally comparable.
func DistanceKm(a, b poi.Coordinates) float64 {
	p1 := s2.LatLngFromDegrees(a.Lat, a.Lng)
	p2 := s2.LatLngFromDegrees(b.Lat, b.Lng)
	return p1.Distance(p2).Radians() * EarthRadiusKm
}

// RouteKm sums the leg distances of an ordered coordinate sequence.
func RouteKm(route []poi.Coordinates) float64 {
	var total float64
	for i := 1; i < len(route); i++ {
		total += DistanceKm(route[i-1], route[i])
	}
	return total
}
