package api

import (
	"context"
	"net/http"

	"github.com/greenify/plant-store/internal/auth"
	"github.com/greenify/plant-store/internal/domain/cart"
	"github.com/greenify/plant-store/internal/domain/catalog"
	"github.com/greenify/plant-store/internal/domain/order"
	"github.com/greenify/plant-store/internal/domain/rating"
	"github.com/greenify/plant-store/internal/domain/user"
	"go.uber.org/zap"
)

// HealthCheck reports whether a dependency is reachable
type HealthCheck func(ctx context.Context) error

type Handlers struct {
	catalog       catalog.Catalog
	carts         *cart.Service
	orders        *order.Service
	ratings       *rating.Service
	users         *user.Service
	jwtService    *auth.JWTService
	health        HealthCheck
	secureCookies bool
	logger        *zap.Logger
}

type Services struct {
	Catalog catalog.Catalog
	Carts   *cart.Service
	Orders  *order.Service
	Ratings *rating.Service
	Users   *user.Service
}

func NewHandlers(svc Services, jwtService *auth.JWTService, health HealthCheck, secureCookies bool, logger *zap.Logger) *Handlers {
	if health == nil {
		health = func(context.Context) error { return nil }
	}
	return &Handlers{
		catalog:       svc.Catalog,
		carts:         svc.Carts,
		orders:        svc.Orders,
		ratings:       svc.Ratings,
		users:         svc.Users,
		jwtService:    jwtService,
		health:        health,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.health(r.Context()); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
