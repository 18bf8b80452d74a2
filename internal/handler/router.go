package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/serene-care/backend/internal/config"
	"github.com/zhouzirui/serene-care/backend/internal/handler/healthchat"
	"github.com/zhouzirui/serene-care/backend/internal/handler/persona"
	"github.com/zhouzirui/serene-care/backend/internal/metrics"
	middlewarePkg "github.com/zhouzirui/serene-care/backend/internal/middleware"
	personaModel "github.com/zhouzirui/serene-care/backend/internal/model/persona"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(personas personaModel.Store, completer healthchat.Completer, m *metrics.Metrics, rl config.RateLimitConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if rl.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/health"))
	r.Use(middlewarePkg.CORS)

	r.Handle("/metrics", m.Handler())

	r.Group(func(proxy chi.Router) {
		proxy.Use(m.Middleware("healthchat"))
		if rl.Enabled() {
			proxy.Use(middlewarePkg.RateLimit(rl.RPS, rl.Burst, m.RateLimited))
		}
		healthchat.New(completer).RegisterRoutes(proxy)
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(m.Middleware("api"))
		persona.New(personas).RegisterRoutes(api)
	})

	return r
}
