package domain

import (
	"math"
	"slices"
	"time"
)

// PropertyType is the listing category shown on the map and in filters
type PropertyType string

const (
	TypeApartment PropertyType = "apartment"
	TypeRoom      PropertyType = "room"
	TypeOffice    PropertyType = "office"
	TypeShop      PropertyType = "shop"
	TypeParking   PropertyType = "parking"
	TypeStudio    PropertyType = "studio"
	TypeHouse     PropertyType = "house"
	TypeFamily    PropertyType = "family"
	TypeBachelor  PropertyType = "bachelor"
	TypeSublet    PropertyType = "sublet"
	TypeHostel    PropertyType = "hostel"
)

// PropertyTypes lists every accepted category
var PropertyTypes = []PropertyType{
	TypeApartment, TypeRoom, TypeOffice, TypeShop, TypeParking, TypeStudio,
	TypeHouse, TypeFamily, TypeBachelor, TypeSublet, TypeHostel,
}

// Valid reports whether t belongs to the closed category set
func (t PropertyType) Valid() bool {
	return slices.Contains(PropertyTypes, t)
}

// DefaultCurrency is used when a submission leaves the currency empty
const DefaultCurrency = "BDT"

// Coordinates is a WGS84 latitude/longitude pair in degrees
type Coordinates struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Valid reports whether the pair is finite and inside the WGS84 ranges.
// A nil receiver is not valid.
func (c *Coordinates) Valid() bool {
	if c == nil {
		return false
	}
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Location describes where a property is. Coordinates is nil when the
// submission never pinned the property on a map.
type Location struct {
	Address        string       `json:"address" yaml:"address"`
	AddressBn      string       `json:"addressBn,omitempty" yaml:"addressBn"`
	City           string       `json:"city" yaml:"city"`
	Area           string       `json:"area" yaml:"area"`
	AreaBn         string       `json:"areaBn,omitempty" yaml:"areaBn"`
	Coordinates    *Coordinates `json:"coordinates,omitempty" yaml:"coordinates"`
	NearbyPlaces   []string     `json:"nearbyPlaces,omitempty" yaml:"nearbyPlaces"`
	NearbyPlacesBn []string     `json:"nearbyPlacesBn,omitempty" yaml:"nearbyPlacesBn"`
}

// Locatable reports whether the location can take part in spatial queries
func (l Location) Locatable() bool {
	return l.Coordinates.Valid()
}

// Image is a listing photo
type Image struct {
	ID       string `json:"id" yaml:"id"`
	Src      string `json:"src" yaml:"src"`
	Alt      string `json:"alt" yaml:"alt"`
	AltBn    string `json:"altBn,omitempty" yaml:"altBn"`
	Priority bool   `json:"priority" yaml:"priority"`
}

// Landlord is the owning contact of a property. It has no lifecycle of its own.
type Landlord struct {
	ID       string  `json:"id" yaml:"id"`
	Name     string  `json:"name" yaml:"name"`
	NameBn   string  `json:"nameBn,omitempty" yaml:"nameBn"`
	Phone    string  `json:"phone" yaml:"phone"`
	Email    string  `json:"email,omitempty" yaml:"email"`
	Rating   float64 `json:"rating" yaml:"rating"`
	Verified bool    `json:"verified" yaml:"verified"`
}

// Property is a rental listing
type Property struct {
	ID            string       `json:"id" yaml:"id"`
	Title         string       `json:"title" yaml:"title"`
	TitleBn       string       `json:"titleBn" yaml:"titleBn"`
	Description   string       `json:"description,omitempty" yaml:"description"`
	DescriptionBn string       `json:"descriptionBn,omitempty" yaml:"descriptionBn"`
	Price         float64      `json:"price" yaml:"price"`
	Currency      string       `json:"currency" yaml:"currency"`
	Type          PropertyType `json:"type" yaml:"type"`
	Bedrooms      float64      `json:"bedrooms" yaml:"bedrooms"`
	Bathrooms     float64      `json:"bathrooms" yaml:"bathrooms"`
	Area          float64      `json:"area" yaml:"area"` // square feet
	Location      Location     `json:"location" yaml:"location"`
	Amenities     []string     `json:"amenities" yaml:"amenities"`
	AmenitiesBn   []string     `json:"amenitiesBn,omitempty" yaml:"amenitiesBn"`
	Images        []Image      `json:"images,omitempty" yaml:"images"`
	Landlord      Landlord     `json:"landlord" yaml:"landlord"`
	Available     bool         `json:"available" yaml:"available"`
	AvailableFrom time.Time    `json:"availableFrom" yaml:"availableFrom"`
	CreatedAt     time.Time    `json:"createdAt" yaml:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt" yaml:"updatedAt"`
}

// Clone returns a deep copy so that callers never share slices or
// coordinates with the repository's backing store.
func (p Property) Clone() Property {
	out := p
	out.Location = p.Location.clone()
	out.Amenities = slices.Clone(p.Amenities)
	out.AmenitiesBn = slices.Clone(p.AmenitiesBn)
	out.Images = slices.Clone(p.Images)
	return out
}

func (l Location) clone() Location {
	out := l
	if l.Coordinates != nil {
		c := *l.Coordinates
		out.Coordinates = &c
	}
	out.NearbyPlaces = slices.Clone(l.NearbyPlaces)
	out.NearbyPlacesBn = slices.Clone(l.NearbyPlacesBn)
	return out
}
