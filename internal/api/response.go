package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/greenify/plant-store/internal/domain/cart"
	"github.com/greenify/plant-store/internal/domain/catalog"
	"github.com/greenify/plant-store/internal/domain/order"
	"github.com/greenify/plant-store/internal/domain/rating"
	"github.com/greenify/plant-store/internal/domain/user"
	"github.com/greenify/plant-store/internal/infrastructure/store"
	"github.com/greenify/plant-store/internal/validation"
	"go.uber.org/zap"
)

type apiError struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if v == nil {
		return
	}

	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	writeJSON(w, status, apiError{
		Error:   code,
		Message: message,
		Details: details,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body", map[string]any{"error": err.Error()})
		return false
	}
	return true
}

// errorMapping translates a domain error into an HTTP response
type errorMapping struct {
	target error
	status int
	code   string
}

// checked in order; the first match wins
var errorMappings = []errorMapping{
	// validation
	{order.ErrInvalidAddress, http.StatusBadRequest, "validation_error"},
	{catalog.ErrInvalidPlant, http.StatusBadRequest, "validation_error"},
	{user.ErrInvalidUser, http.StatusBadRequest, "validation_error"},
	{rating.ErrInvalidScore, http.StatusBadRequest, "validation_error"},
	{rating.ErrInvalidID, http.StatusBadRequest, "validation_error"},
	{cart.ErrInvalidQuantity, http.StatusBadRequest, "validation_error"},
	{order.ErrInvalidStatus, http.StatusBadRequest, "validation_error"},

	// state conflicts
	{order.ErrEmptyCart, http.StatusBadRequest, "empty_cart"},
	{store.ErrInsufficientStock, http.StatusBadRequest, "insufficient_stock"},
	{order.ErrInvalidTransition, http.StatusBadRequest, "invalid_transition"},
	{user.ErrEmailTaken, http.StatusConflict, "email_taken"},

	// authorization
	{user.ErrInvalidCredentials, http.StatusUnauthorized, "unauthorized"},
	{user.ErrUserDeactivated, http.StatusForbidden, "forbidden"},
	{order.ErrForbidden, http.StatusForbidden, "forbidden"},
	{rating.ErrForbidden, http.StatusForbidden, "forbidden"},

	// existence
	{rating.ErrNotEligible, http.StatusNotFound, "not_eligible"},
	{order.ErrOrderNotFound, http.StatusNotFound, "not_found"},
	{rating.ErrOrderNotFound, http.StatusNotFound, "not_found"},
	{catalog.ErrPlantNotFound, http.StatusNotFound, "not_found"},
	{cart.ErrItemNotInCart, http.StatusNotFound, "not_found"},
	{user.ErrUserNotFound, http.StatusNotFound, "not_found"},
}

// writeDomainError maps err to a status code. Anything unknown is a 500
// and gets logged; its text never reaches the client.
func (h *Handlers) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var cannotCancel *order.CannotCancelError
	if errors.As(err, &cannotCancel) {
		writeError(w, http.StatusBadRequest, "cannot_cancel", cannotCancel.Error(), map[string]any{"status": cannotCancel.Status})
		return
	}

	var stockErr *catalog.InsufficientStockError
	if errors.As(err, &stockErr) {
		writeError(w, http.StatusBadRequest, "insufficient_stock", stockErr.Error(), map[string]any{"plant": stockErr.PlantName})
		return
	}

	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		var details interface{}
		if fields := validation.FormatValidationError(err); fields != nil {
			details = fields
		}
		message := err.Error()
		if details != nil {
			message = m.target.Error()
		}
		writeError(w, m.status, m.code, message, details)
		return
	}

	h.logger.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong", nil)
}
