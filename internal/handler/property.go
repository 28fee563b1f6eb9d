package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/babui-rent/babui/internal/domain"
	"github.com/babui-rent/babui/internal/service"
)

// PropertyHandler serves the property collection and the map queries over it
type PropertyHandler struct {
	properties *service.PropertyService
	logger     *slog.Logger
}

// NewPropertyHandler creates a new property handler
func NewPropertyHandler(properties *service.PropertyService, logger *slog.Logger) *PropertyHandler {
	return &PropertyHandler{
		properties: properties,
		logger:     logger,
	}
}

// List handles GET /api/properties
func (h *PropertyHandler) List(w http.ResponseWriter, r *http.Request) {
	t := domain.PropertyType(r.URL.Query().Get("type"))
	if t != "" && !t.Valid() {
		http.Error(w, "unknown property type", http.StatusBadRequest)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, h.properties.List(r.Context(), t))
}

// Create handles POST /api/properties
func (h *PropertyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var p domain.Property
	if !decodeBody(w, r, h.logger, &p) {
		return
	}

	stored, err := h.properties.Add(r.Context(), p)
	if err != nil {
		h.writeMutationError(w, err, p.ID)
		return
	}

	w.Header().Set("Location", "/api/properties/"+stored.ID)
	writeJSON(w, h.logger, http.StatusCreated, stored)
}

// Get handles GET /api/properties/{id}
func (h *PropertyHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.properties.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		http.Error(w, "property not found", http.StatusNotFound)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, p)
}

// Patch handles PATCH /api/properties/{id}
func (h *PropertyHandler) Patch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var patch domain.PropertyPatch
	if !decodeBody(w, r, h.logger, &patch) {
		return
	}

	updated, err := h.properties.Update(r.Context(), id, patch)
	if err != nil {
		h.writeMutationError(w, err, id)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, updated)
}

// Delete handles DELETE /api/properties/{id}
func (h *PropertyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.properties.Remove(r.Context(), r.PathValue("id")); err != nil {
		h.writeMutationError(w, err, r.PathValue("id"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PropertyHandler) writeMutationError(w http.ResponseWriter, err error, id string) {
	var verr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "property not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrDuplicateID):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &verr):
		http.Error(w, verr.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrInvalidProperty), errors.Is(err, domain.ErrMissingID):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("property mutation failed",
			slog.String("property_id", id),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// decodeBody reads a JSON request body into dst, replying on failure
func decodeBody(w http.ResponseWriter, r *http.Request, logger *slog.Logger, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		logger.Debug("failed to decode request", slog.String("error", err.Error()))
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}
