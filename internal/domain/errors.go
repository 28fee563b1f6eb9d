package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no property has the requested id
	ErrNotFound = errors.New("property not found")
	// ErrDuplicateID is returned by Add when the id is already taken
	ErrDuplicateID = errors.New("duplicate property id")
	// ErrMissingID is returned by Add when the id is empty
	ErrMissingID = errors.New("property id required")
	// ErrInvalidCoordinate marks a missing or out-of-range latitude/longitude
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	// ErrGeocoderUnavailable marks a failed or unusable geocoding response
	ErrGeocoderUnavailable = errors.New("geocoder unavailable")
)

// DuplicateIDError reports which id collided on insert
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("property %q already exists", e.ID)
}

// Is lets errors.Is match ErrDuplicateID
func (e *DuplicateIDError) Is(target error) bool {
	return target == ErrDuplicateID
}

// ErrInvalidProperty marks a submission whose shape is wrong (unknown type,
// negative amounts, out-of-range coordinates)
var ErrInvalidProperty = errors.New("invalid property")

// ValidationError names the offending field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is lets errors.Is match ErrInvalidProperty, and ErrInvalidCoordinate for
// coordinate fields
func (e *ValidationError) Is(target error) bool {
	if target == ErrInvalidProperty {
		return true
	}
	return target == ErrInvalidCoordinate && e.Field == "location.coordinates"
}
