package geo

import (
	"fmt"
	"math"

	"github.com/babui-rent/babui/internal/domain"
)

// bucketScale rounds coordinates to three decimal places (~110 m of latitude)
const bucketScale = 1000

// BucketKey is a coarse coordinate cell shared by properties drawn as one marker
type BucketKey struct {
	Lat int64
	Lng int64
}

// String renders the key as "<lat>-<lng>", e.g. "23810-90412"
func (k BucketKey) String() string {
	return fmt.Sprintf("%d-%d", k.Lat, k.Lng)
}

// BucketKeyOf rounds each axis to the nearest thousandth of a degree.
// Halves round away from zero.
func BucketKeyOf(c domain.Coordinates) BucketKey {
	return BucketKey{
		Lat: int64(math.Round(c.Lat * bucketScale)),
		Lng: int64(math.Round(c.Lng * bucketScale)),
	}
}

// Bucket is a group of properties that share a BucketKey
type Bucket struct {
	Key        BucketKey
	Properties []domain.Property
}

// Count is the number of properties in the bucket
func (b Bucket) Count() int {
	return len(b.Properties)
}

// IsCluster reports whether the bucket renders as a counted cluster marker
func (b Bucket) IsCluster() bool {
	return len(b.Properties) > 1
}

// Center is the mean of the member coordinates
func (b Bucket) Center() domain.Coordinates {
	var c domain.Coordinates
	if len(b.Properties) == 0 {
		return c
	}
	for _, p := range b.Properties {
		c.Lat += p.Location.Coordinates.Lat
		c.Lng += p.Location.Coordinates.Lng
	}
	n := float64(len(b.Properties))
	c.Lat /= n
	c.Lng /= n
	return c
}

// PriceRange returns the lowest and highest price in the bucket
func (b Bucket) PriceRange() (lo, hi float64) {
	for i, p := range b.Properties {
		if i == 0 || p.Price < lo {
			lo = p.Price
		}
		if i == 0 || p.Price > hi {
			hi = p.Price
		}
	}
	return lo, hi
}

// Cluster groups locatable properties by BucketKey. Buckets are returned in
// the order their first member appears in the input; members keep input order.
func Cluster(properties []domain.Property) []Bucket {
	index := make(map[BucketKey]int)
	buckets := []Bucket{}

	for _, p := range properties {
		if !p.Location.Locatable() {
			continue
		}
		key := BucketKeyOf(*p.Location.Coordinates)
		i, ok := index[key]
		if !ok {
			i = len(buckets)
			index[key] = i
			buckets = append(buckets, Bucket{Key: key})
		}
		buckets[i].Properties = append(buckets[i].Properties, p)
	}

	return buckets
}
