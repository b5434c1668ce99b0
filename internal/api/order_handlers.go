package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/greenify/plant-store/internal/api/middleware"
	"github.com/greenify/plant-store/internal/domain/order"
	"github.com/greenify/plant-store/internal/model"
)

type placeOrderRequest struct {
	DeliveryAddress model.Address       `json:"deliveryAddress"`
	PaymentMethod   model.PaymentMethod `json:"paymentMethod"`
}

type statusRequest struct {
	Status model.OrderStatus `json:"status"`
}

// PlaceOrder converts the caller's cart into a pending order
func (h *Handlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.PaymentMethod != "" && req.PaymentMethod != model.PaymentCOD {
		writeError(w, http.StatusBadRequest, "validation_error", "only cash on delivery is supported", nil)
		return
	}

	o, err := h.orders.Place(r.Context(), middleware.GetUserID(r.Context()), req.DeliveryAddress)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"order": o})
}

func (h *Handlers) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListByUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"), requester(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": o})
}

func (h *Handlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Cancel(r.Context(), chi.URLParam(r, "id"), middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": o})
}

// ListAllOrders is the admin listing with optional status filter and paging
func (h *Handlers) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.OrderFilter{Status: model.OrderStatus(q.Get("status"))}

	var err error
	if filter.Limit, err = intParam(q.Get("limit"), 50); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "limit must be a number", nil)
		return
	}
	if filter.Offset, err = intParam(q.Get("offset"), 0); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "offset must be a number", nil)
		return
	}

	orders, total, err := h.orders.ListAll(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders, "total": total})
}

func (h *Handlers) OrderStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.orders.Stats(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": stats})
}

func (h *Handlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": o})
}

func requester(r *http.Request) order.Requester {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		return order.Requester{}
	}
	return order.Requester{UserID: claims.UserID, Admin: claims.IsAdmin()}
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
