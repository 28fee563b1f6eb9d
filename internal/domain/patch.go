package domain

import (
	"slices"
	"time"
)

// PropertyPatch is a partial update. Nil fields keep the stored value;
// non-nil fields replace it wholesale (a shallow merge, so Location and
// Landlord are replaced as units).
type PropertyPatch struct {
	Title         *string       `json:"title,omitempty"`
	TitleBn       *string       `json:"titleBn,omitempty"`
	Description   *string       `json:"description,omitempty"`
	DescriptionBn *string       `json:"descriptionBn,omitempty"`
	Price         *float64      `json:"price,omitempty"`
	Currency      *string       `json:"currency,omitempty"`
	Type          *PropertyType `json:"type,omitempty"`
	Bedrooms      *float64      `json:"bedrooms,omitempty"`
	Bathrooms     *float64      `json:"bathrooms,omitempty"`
	Area          *float64      `json:"area,omitempty"`
	Location      *Location     `json:"location,omitempty"`
	Amenities     *[]string     `json:"amenities,omitempty"`
	AmenitiesBn   *[]string     `json:"amenitiesBn,omitempty"`
	Images        *[]Image      `json:"images,omitempty"`
	Landlord      *Landlord     `json:"landlord,omitempty"`
	Available     *bool         `json:"available,omitempty"`
	AvailableFrom *time.Time    `json:"availableFrom,omitempty"`
}

// IsEmpty reports whether the patch carries no fields
func (pp PropertyPatch) IsEmpty() bool {
	return pp == PropertyPatch{}
}

// ApplyTo merges the patch into p and stamps UpdatedAt when anything was set.
// Pointed-to values are copied so the patch can be reused by the caller.
func (pp PropertyPatch) ApplyTo(p *Property, now time.Time) {
	if pp.IsEmpty() {
		return
	}
	setIf(&p.Title, pp.Title)
	setIf(&p.TitleBn, pp.TitleBn)
	setIf(&p.Description, pp.Description)
	setIf(&p.DescriptionBn, pp.DescriptionBn)
	setIf(&p.Price, pp.Price)
	setIf(&p.Currency, pp.Currency)
	setIf(&p.Type, pp.Type)
	setIf(&p.Bedrooms, pp.Bedrooms)
	setIf(&p.Bathrooms, pp.Bathrooms)
	setIf(&p.Area, pp.Area)
	setIf(&p.Landlord, pp.Landlord)
	setIf(&p.Available, pp.Available)
	setIf(&p.AvailableFrom, pp.AvailableFrom)
	if pp.Location != nil {
		p.Location = pp.Location.clone()
	}
	if pp.Amenities != nil {
		p.Amenities = slices.Clone(*pp.Amenities)
	}
	if pp.AmenitiesBn != nil {
		p.AmenitiesBn = slices.Clone(*pp.AmenitiesBn)
	}
	if pp.Images != nil {
		p.Images = slices.Clone(*pp.Images)
	}
	p.UpdatedAt = now
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
