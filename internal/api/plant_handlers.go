package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/greenify/plant-store/internal/api/middleware"
	"github.com/greenify/plant-store/internal/domain/catalog"
	"github.com/greenify/plant-store/internal/model"
)

// ListPlants returns active plants, optionally filtered by category and search.
// Admins may pass includeInactive=true to see soft-deleted entries.
func (h *Handlers) ListPlants(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.PlantFilter{
		Category: q.Get("category"),
		Search:   q.Get("search"),
	}
	if claims, ok := middleware.GetUserFromContext(r.Context()); ok && claims.IsAdmin() {
		filter.IncludeInactive = q.Get("includeInactive") == "true"
	}

	plants, err := h.catalog.List(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"plants": plants})
}

func (h *Handlers) GetPlant(w http.ResponseWriter, r *http.Request) {
	plant, err := h.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"plant": plant})
}

func (h *Handlers) CreatePlant(w http.ResponseWriter, r *http.Request) {
	var in catalog.PlantInput
	if !decodeJSON(w, r, &in) {
		return
	}

	plant, err := h.catalog.Create(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"plant": plant})
}

func (h *Handlers) UpdatePlant(w http.ResponseWriter, r *http.Request) {
	var in catalog.PlantInput
	if !decodeJSON(w, r, &in) {
		return
	}

	plant, err := h.catalog.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"plant": plant})
}

// DeletePlant deactivates a plant; existing orders keep their snapshot
func (h *Handlers) DeletePlant(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Plant deleted"})
}
