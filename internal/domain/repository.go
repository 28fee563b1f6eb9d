package domain

import (
	"context"
	"time"
)

// ChangeKind names the mutation that produced a ChangeEvent
type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeUpdated ChangeKind = "updated"
	ChangeRemoved ChangeKind = "removed"
)

// ChangeEvent is delivered to repository subscribers after a mutation commits.
// Property holds the post-update record, or the record that was removed.
type ChangeEvent struct {
	Kind       ChangeKind `json:"kind"`
	PropertyID string     `json:"propertyId"`
	Property   Property   `json:"property"`
	At         time.Time  `json:"at"`
}

// ChangeListener receives repository change notifications
type ChangeListener func(ChangeEvent)

// PropertyRepository defines data access for properties
type PropertyRepository interface {
	Add(p Property) error
	Update(id string, patch PropertyPatch) (bool, error)
	Remove(id string) bool
	Get(id string) (Property, bool)
	List() []Property
	Len() int
	Subscribe(fn ChangeListener) (unsubscribe func())
}

// GeocodeCandidate is one match returned by a forward geocoding search
type GeocodeCandidate struct {
	DisplayName string      `json:"displayName"`
	Coordinates Coordinates `json:"coordinates"`
	Source      string      `json:"source,omitempty"` // e.g. "nominatim", "gazetteer"
}

// Geocoder resolves coordinates to addresses and free text to coordinates
type Geocoder interface {
	Reverse(ctx context.Context, c Coordinates) (string, error)
	Search(ctx context.Context, query string, limit int) ([]GeocodeCandidate, error)
}
