// Package geo holds the spatial logic behind the property map: great-circle
// distance, radius filtering and coordinate bucketing for marker clusters.
//
// Nothing in this package returns an error. Properties without usable
// coordinates are skipped, so one bad record never fails a whole query.
package geo

import (
	"fmt"
	"math"
	"sort"

	"github.com/babui-rent/babui/internal/domain"
)

const (
	// EarthRadiusKm is the sphere radius used by Haversine
	EarthRadiusKm = 6371.0
	// DefaultRadiusKm applies when a proximity query omits the radius
	DefaultRadiusKm = 5.0
)

// DhakaCenter is the default map center
var DhakaCenter = domain.Coordinates{Lat: 23.8103, Lng: 90.4125}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Haversine returns the great-circle distance between a and b in kilometres
func Haversine(a, b domain.Coordinates) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c
}

// Nearby pairs a property with its distance from the query center
type Nearby struct {
	Property   domain.Property
	DistanceKm float64
}

// WithinRadius returns the properties whose coordinates lie within radiusKm
// of center, in input order. Unlocatable properties are skipped. A negative
// or NaN radius, or an invalid center, matches nothing.
func WithinRadius(center domain.Coordinates, properties []domain.Property, radiusKm float64) []Nearby {
	out := []Nearby{}
	if !center.Valid() || math.IsNaN(radiusKm) || radiusKm < 0 {
		return out
	}
	for _, p := range properties {
		if !p.Location.Locatable() {
			continue
		}
		d := Haversine(center, *p.Location.Coordinates)
		if d <= radiusKm {
			out = append(out, Nearby{Property: p, DistanceKm: d})
		}
	}
	return out
}

// SortByDistance orders results nearest first. Ties keep input order.
func SortByDistance(results []Nearby) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].DistanceKm < results[j].DistanceKm
	})
}

// FormatCoordinates renders a pair the way the map shows an unresolved pin
func FormatCoordinates(c domain.Coordinates) string {
	return fmt.Sprintf("%.6f, %.6f", c.Lat, c.Lng)
}
