// Package geo holds the coordinate helpers shared by the event and routing
// services: great-circle distance and the duplicate-location guard.
package geo

import (
	"math"

	"github.com/dhconnelly/rtreego"
)

const (
	earthRadiusKm = 6371.0
	metersPerDeg  = 111320.0

	// half-width of the box each indexed point occupies in the R-tree
	pointEpsilon = 1e-9
	minChildren  = 2
	maxChildren  = 8
)

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether p lies within the latitude/longitude ranges.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// DistanceMeters is the great-circle distance between a and b.
func DistanceMeters(a, b Point) float64 {
	return HaversineKm(a.Lat, a.Lng, b.Lat, b.Lng) * 1000
}

type indexedPoint struct {
	Point
	rect *rtreego.Rect
}

func (ip *indexedPoint) Bounds() *rtreego.Rect {
	return ip.rect
}

// Occupied reports whether any of existing lies within toleranceM metres of
// candidate. A tolerance of zero only matches identical coordinates.
func Occupied(existing []Point, candidate Point, toleranceM float64) bool {
	if len(existing) == 0 {
		return false
	}
	if toleranceM < 0 {
		toleranceM = 0
	}

	latDeg := toleranceM/metersPerDeg + pointEpsilon
	lngDeg := latDeg / math.Max(math.Cos(toRad(candidate.Lat)), 0.01)
	if candidate.Lng-lngDeg < -180 || candidate.Lng+lngDeg > 180 || latDeg > 90 {
		// the search box would wrap; the list is small enough to scan
		return scan(existing, candidate, toleranceM)
	}

	tree := rtreego.NewTree(2, minChildren, maxChildren)
	for i := range existing {
		p := existing[i]
		tree.Insert(&indexedPoint{Point: p, rect: rtreego.Point{p.Lat, p.Lng}.ToRect(pointEpsilon)})
	}

	box, err := rtreego.NewRect(rtreego.Point{candidate.Lat - latDeg, candidate.Lng - lngDeg}, []float64{2 * latDeg, 2 * lngDeg})
	if err != nil {
		return scan(existing, candidate, toleranceM)
	}
	for _, hit := range tree.SearchIntersect(box) {
		ip, ok := hit.(*indexedPoint)
		if !ok {
			continue
		}
		if DistanceMeters(ip.Point, candidate) <= toleranceM {
			return true
		}
	}
	return false
}

func scan(existing []Point, candidate Point, toleranceM float64) bool {
	for _, p := range existing {
		if DistanceMeters(p, candidate) <= toleranceM {
			return true
		}
	}
	return false
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
