package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/babui-rent/babui/internal/domain"
	"github.com/babui-rent/babui/internal/geo"
	"github.com/babui-rent/babui/internal/service"
)

// NearbyResult is one property within the requested radius
type NearbyResult struct {
	Property   domain.Property `json:"property"`
	DistanceKm float64         `json:"distanceKm"`
}

// NearbyResponse is the body of GET /api/properties/nearby
type NearbyResponse struct {
	Center   domain.Coordinates `json:"center"`
	Area     string             `json:"area,omitempty"`
	RadiusKm float64            `json:"radiusKm"`
	Count    int                `json:"count"`
	Results  []NearbyResult     `json:"results"`
}

// ClusterMarker is one map marker; Count > 1 draws a cluster bubble
type ClusterMarker struct {
	Key        string             `json:"key"`
	Center     domain.Coordinates `json:"center"`
	Count      int                `json:"count"`
	Cluster    bool               `json:"cluster"`
	MinPrice   float64            `json:"minPrice"`
	MaxPrice   float64            `json:"maxPrice"`
	Properties []domain.Property  `json:"properties"`
}

// Nearby handles GET /api/properties/nearby?lat=&lng=&radius=&sort=distance
// or ?area=gulshan
func (h *PropertyHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	scope, area, err := h.parseScope(r)
	if err != nil {
		writeScopeError(w, err)
		return
	}
	if scope == nil {
		http.Error(w, "lat and lng, or area, are required", http.StatusBadRequest)
		return
	}

	found := h.properties.QueryByLocation(r.Context(), scope.Center, scope.RadiusKm)
	if r.URL.Query().Get("sort") == "distance" {
		geo.SortByDistance(found)
	}

	results := make([]NearbyResult, 0, len(found))
	for _, n := range found {
		results = append(results, NearbyResult{Property: n.Property, DistanceKm: n.DistanceKm})
	}
	writeJSON(w, h.logger, http.StatusOK, NearbyResponse{
		Center:   scope.Center,
		Area:     area,
		RadiusKm: scope.RadiusKm,
		Count:    len(results),
		Results:  results,
	})
}

// Clusters handles GET /api/properties/clusters. The nearby parameters, when
// present, restrict the markers to that circle.
func (h *PropertyHandler) Clusters(w http.ResponseWriter, r *http.Request) {
	scope, _, err := h.parseScope(r)
	if err != nil {
		writeScopeError(w, err)
		return
	}

	buckets := h.properties.Clusters(r.Context(), scope)
	markers := make([]ClusterMarker, 0, len(buckets))
	for _, b := range buckets {
		lo, hi := b.PriceRange()
		markers = append(markers, ClusterMarker{
			Key:        b.Key.String(),
			Center:     b.Center(),
			Count:      b.Count(),
			Cluster:    b.IsCluster(),
			MinPrice:   lo,
			MaxPrice:   hi,
			Properties: b.Properties,
		})
	}
	writeJSON(w, h.logger, http.StatusOK, markers)
}

type errUnknownArea string

func (e errUnknownArea) Error() string {
	return fmt.Sprintf("unknown area %q", string(e))
}

// parseScope reads lat/lng/radius or area. It returns a nil scope when
// neither is given.
func (h *PropertyHandler) parseScope(r *http.Request) (*service.NearbyScope, string, error) {
	q := r.URL.Query()

	radius := geo.DefaultRadiusKm
	if raw := q.Get("radius"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, "", fmt.Errorf("invalid radius: %w", err)
		}
		radius = v
	}

	if area := q.Get("area"); area != "" {
		place, ok := h.properties.AreaCenter(area)
		if !ok {
			return nil, "", errUnknownArea(area)
		}
		return &service.NearbyScope{Center: place.Coordinates, RadiusKm: radius}, place.Name, nil
	}

	if q.Get("lat") == "" && q.Get("lng") == "" {
		return nil, "", nil
	}
	center, err := parseCoordinates(r)
	if err != nil {
		return nil, "", err
	}
	return &service.NearbyScope{Center: center, RadiusKm: radius}, "", nil
}

func parseCoordinates(r *http.Request) (domain.Coordinates, error) {
	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("%w: lat", domain.ErrInvalidCoordinate)
	}
	lng, err := strconv.ParseFloat(q.Get("lng"), 64)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("%w: lng", domain.ErrInvalidCoordinate)
	}
	c := domain.Coordinates{Lat: lat, Lng: lng}
	if !c.Valid() {
		return domain.Coordinates{}, fmt.Errorf("%w: %s", domain.ErrInvalidCoordinate, geo.FormatCoordinates(c))
	}
	return c, nil
}

func writeScopeError(w http.ResponseWriter, err error) {
	var unknown errUnknownArea
	if errors.As(err, &unknown) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusBadRequest)
}
