package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func writeInvalidID(w http.ResponseWriter, field string) {
	writeError(w, http.StatusBadRequest, "validation_error", "Validation failed",
		map[string]string{field: "must be a valid id"})
}

// requireIDs rejects the request unless every named URL parameter is a UUID
func requireIDs(params ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, p := range params {
				if !validID(chi.URLParam(r, p)) {
					writeInvalidID(w, p)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
