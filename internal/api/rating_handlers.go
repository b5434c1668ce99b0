package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/greenify/plant-store/internal/api/middleware"
)

type submitRatingRequest struct {
	PlantID string `json:"plantId"`
	OrderID string `json:"orderId"`
	Rating  int    `json:"rating"`
}

// SubmitRating creates or replaces the caller's score for a delivered order line
func (h *Handlers) SubmitRating(w http.ResponseWriter, r *http.Request) {
	var req submitRatingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rating, isUpdate, err := h.ratings.Submit(r.Context(), middleware.GetUserID(r.Context()), req.PlantID, req.OrderID, req.Rating)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	status := http.StatusCreated
	if isUpdate {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]any{"rating": rating, "isUpdate": isUpdate})
}

func (h *Handlers) ListPlantRatings(w http.ResponseWriter, r *http.Request) {
	ratings, err := h.ratings.ListForPlant(r.Context(), chi.URLParam(r, "plantId"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ratings": ratings})
}

func (h *Handlers) EligibleItems(w http.ResponseWriter, r *http.Request) {
	items, status, err := h.ratings.Eligible(r.Context(), chi.URLParam(r, "orderId"), middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"eligibleItems": items, "orderStatus": status})
}
