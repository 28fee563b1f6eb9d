package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/babui-rent/babui/internal/service"
)

// GeocodeHandler serves address lookups for the location picker
type GeocodeHandler struct {
	properties *service.PropertyService
	logger     *slog.Logger
}

// NewGeocodeHandler creates a new geocode handler
func NewGeocodeHandler(properties *service.PropertyService, logger *slog.Logger) *GeocodeHandler {
	return &GeocodeHandler{properties: properties, logger: logger}
}

// Reverse handles GET /api/geocode/reverse?lat=&lng=. Upstream failures
// degrade to formatted coordinates, never to a 5xx.
func (h *GeocodeHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	c, err := parseCoordinates(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, h.properties.ResolveAddress(r.Context(), c))
}

// Search handles GET /api/geocode/search?q=&limit=
func (h *GeocodeHandler) Search(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	writeJSON(w, h.logger, http.StatusOK, h.properties.Search(r.Context(), r.URL.Query().Get("q"), limit))
}
