package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/greenify/plant-store/internal/api/middleware"
)

type cartItemRequest struct {
	PlantID  string `json:"plantId"`
	Quantity int    `json:"quantity"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Get(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart": c})
}

func (h *Handlers) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.PlantID == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "plantId is required", nil)
		return
	}
	if !validID(req.PlantID) {
		writeInvalidID(w, "plantId")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	c, err := h.carts.AddItem(r.Context(), middleware.GetUserID(r.Context()), req.PlantID, req.Quantity)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart": c})
}

func (h *Handlers) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.carts.UpdateItem(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "plantId"), req.Quantity)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart": c})
}

func (h *Handlers) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.RemoveItem(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "plantId"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart": c})
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.Clear(r.Context(), middleware.GetUserID(r.Context())); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Cart cleared"})
}
