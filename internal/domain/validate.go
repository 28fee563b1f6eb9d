package domain

// ValidateShape checks the fields the API cannot accept: unknown types,
// negative amounts and coordinates outside WGS84. Missing fields are allowed.
func (p Property) ValidateShape() error {
	return validateShape(&p.Type, &p.Price, &p.Bedrooms, &p.Bathrooms, &p.Area, &p.Location)
}

// ValidateShape applies the same checks to the fields a patch sets
func (pp PropertyPatch) ValidateShape() error {
	return validateShape(pp.Type, pp.Price, pp.Bedrooms, pp.Bathrooms, pp.Area, pp.Location)
}

func validateShape(typ *PropertyType, price, bedrooms, bathrooms, area *float64, loc *Location) error {
	if typ != nil && *typ != "" && !typ.Valid() {
		return &ValidationError{Field: "type", Reason: "unknown property type " + string(*typ)}
	}
	for _, f := range []struct {
		name string
		v    *float64
	}{{"price", price}, {"bedrooms", bedrooms}, {"bathrooms", bathrooms}, {"area", area}} {
		if f.v != nil && !(*f.v >= 0) {
			return &ValidationError{Field: f.name, Reason: "must be a non-negative number"}
		}
	}
	if loc != nil && loc.Coordinates != nil && !loc.Coordinates.Valid() {
		return &ValidationError{Field: "location.coordinates", Reason: "latitude must be within [-90, 90] and longitude within [-180, 180]"}
	}
	return nil
}
