package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	callHandler "github.com/medicura/medicura/backend/internal/handler/call"
	middlewarePkg "github.com/medicura/medicura/backend/internal/middleware"
	callService "github.com/medicura/medicura/backend/internal/service/call"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(registry *callService.Registry, hub *callHandler.Hub) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	calls := callHandler.New(registry, hub)

	r.Route("/api", func(api chi.Router) {
		calls.RegisterRoutes(api)
	})

	return r
}
