package geo

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/babui-rent/babui/internal/domain"
)

// maxEditDistance caps the typos an area lookup tolerates. Below that cap a
// query is allowed one edit per three runes.
const maxEditDistance = 2

// Place is a named neighbourhood centroid
type Place struct {
	Name        string
	NameBn      string
	City        string
	Coordinates domain.Coordinates
}

// Gazetteer is a small offline table of well-known areas. It stands in for
// the geocoding service when that service is down or finds nothing.
type Gazetteer struct {
	places []Place
}

// NewGazetteer builds a gazetteer over places, or over the Dhaka table when
// places is empty.
func NewGazetteer(places ...Place) *Gazetteer {
	if len(places) == 0 {
		places = dhakaAreas
	}
	return &Gazetteer{places: places}
}

var dhakaAreas = []Place{
	{Name: "Gulshan", City: "Dhaka", NameBn: "গুলশান", Coordinates: domain.Coordinates{Lat: 23.7925, Lng: 90.4078}},
	{Name: "Dhanmondi", City: "Dhaka", NameBn: "ধানমন্ডি", Coordinates: domain.Coordinates{Lat: 23.7461, Lng: 90.3742}},
	{Name: "Uttara", City: "Dhaka", NameBn: "উত্তরা", Coordinates: domain.Coordinates{Lat: 23.8759, Lng: 90.3795}},
	{Name: "Banani", City: "Dhaka", NameBn: "বনানী", Coordinates: domain.Coordinates{Lat: 23.7940, Lng: 90.4043}},
	{Name: "Mirpur", City: "Dhaka", NameBn: "মিরপুর", Coordinates: domain.Coordinates{Lat: 23.8223, Lng: 90.3654}},
	{Name: "Mohammadpur", City: "Dhaka", NameBn: "মোহাম্মদপুর", Coordinates: domain.Coordinates{Lat: 23.7662, Lng: 90.3589}},
	{Name: "Bashundhara", City: "Dhaka", NameBn: "বসুন্ধরা", Coordinates: domain.Coordinates{Lat: 23.8193, Lng: 90.4526}},
	{Name: "Motijheel", City: "Dhaka", NameBn: "মতিঝিল", Coordinates: domain.Coordinates{Lat: 23.7330, Lng: 90.4172}},
	{Name: "Badda", City: "Dhaka", NameBn: "বাড্ডা", Coordinates: domain.Coordinates{Lat: 23.7806, Lng: 90.4260}},
	{Name: "Tejgaon", City: "Dhaka", NameBn: "তেজগাঁও", Coordinates: domain.Coordinates{Lat: 23.7639, Lng: 90.3889}},
}

type scoredPlace struct {
	place    Place
	distance int
}

func (g *Gazetteer) score(query string) []scoredPlace {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	allowed := min(maxEditDistance, utf8.RuneCountInString(q)/3)

	var out []scoredPlace
	for _, p := range g.places {
		d := min(
			levenshtein.ComputeDistance(q, strings.ToLower(p.Name)),
			levenshtein.ComputeDistance(q, p.NameBn),
		)
		if d <= allowed {
			out = append(out, scoredPlace{place: p, distance: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].distance < out[j].distance })
	return out
}

// Lookup returns the closest place to name, tolerating small misspellings
func (g *Gazetteer) Lookup(name string) (Place, bool) {
	scored := g.score(name)
	if len(scored) == 0 {
		return Place{}, false
	}
	return scored[0].place, true
}

// Search returns up to limit candidates ordered by edit distance
func (g *Gazetteer) Search(query string, limit int) []domain.GeocodeCandidate {
	scored := g.score(query)
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	out := make([]domain.GeocodeCandidate, 0, len(scored))
	for _, s := range scored {
		out = append(out, domain.GeocodeCandidate{
			DisplayName: displayName(s.place),
			Coordinates: s.place.Coordinates,
			Source:      "gazetteer",
		})
	}
	return out
}

func displayName(p Place) string {
	if p.City == "" {
		return p.Name
	}
	return p.Name + ", " + p.City
}
