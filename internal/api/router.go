package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/greenify/plant-store/internal/api/middleware"
	"github.com/greenify/plant-store/internal/model"
	"go.uber.org/zap"
)

// NewRouter wires every route of the storefront API. metrics may be nil.
func NewRouter(h *Handlers, logger *zap.Logger, metrics *middleware.Metrics) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	if metrics != nil {
		r.Use(metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}

	r.Get("/healthz", h.Health)

	authn := middleware.AuthMiddleware(h.jwtService)
	admin := middleware.RequireRole(model.RoleAdmin)
	byID := requireIDs("id")

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/refresh", h.Refresh)
			r.Post("/logout", h.Logout)
			r.With(authn).Get("/me", h.Me)
		})

		r.Route("/plants", func(r chi.Router) {
			r.With(middleware.OptionalAuthMiddleware(h.jwtService)).Get("/", h.ListPlants)
			r.With(byID).Get("/{id}", h.GetPlant)

			r.Group(func(r chi.Router) {
				r.Use(authn, admin)
				r.Post("/", h.CreatePlant)
				r.With(byID).Put("/{id}", h.UpdatePlant)
				r.With(byID).Delete("/{id}", h.DeletePlant)
			})
		})

		r.Route("/cart", func(r chi.Router) {
			r.Use(authn)
			r.Get("/", h.GetCart)
			r.Post("/items", h.AddCartItem)
			r.With(requireIDs("plantId")).Put("/items/{plantId}", h.UpdateCartItem)
			r.With(requireIDs("plantId")).Delete("/items/{plantId}", h.RemoveCartItem)
			r.Delete("/", h.ClearCart)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(authn)
			r.Post("/", h.PlaceOrder)
			r.Get("/", h.ListMyOrders)

			r.Group(func(r chi.Router) {
				r.Use(admin)
				r.Get("/admin/all", h.ListAllOrders)
				r.Get("/admin/stats", h.OrderStats)
				r.With(byID).Put("/{id}/status", h.UpdateOrderStatus)
			})

			r.With(byID).Get("/{id}", h.GetOrder)
			r.With(byID).Put("/{id}/cancel", h.CancelOrder)
		})

		r.Route("/ratings", func(r chi.Router) {
			r.With(requireIDs("plantId")).Get("/plant/{plantId}", h.ListPlantRatings)

			r.Group(func(r chi.Router) {
				r.Use(authn)
				r.Post("/", h.SubmitRating)
				r.With(requireIDs("orderId")).Get("/user/eligible/{orderId}", h.EligibleItems)
			})
		})
	})

	return r
}
