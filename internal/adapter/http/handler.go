package httpadapter

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"meta-ads/internal/core/port"
	"meta-ads/internal/pkg/token"
)

// Handler contains dependencies and routes. It is an inbound adapter for HTTP.
// It holds the escrow use case, the token service that identifies callers
// and a logger for structured logging. Routes are registered on a
// chi.Router for convenient method handling.
type Handler struct {
	svc      port.EscrowUseCase
	tokens   *token.Service
	platform string
	logger   *slog.Logger
	router   chi.Router
}

// NewHandler creates a handler with all routes configured. platform is the
// contract account every caller is calling into. metrics, when not nil, is
// mounted at /metrics.
func NewHandler(svc port.EscrowUseCase, tokens *token.Service, platform string, metrics http.Handler, logger *slog.Logger) *Handler {
	h := &Handler{svc: svc, tokens: tokens, platform: platform, logger: logger}
	r := chi.NewRouter()
	r.Use(h.requestID, middleware.Recoverer)

	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.identify)

		r.Get("/creatives", h.handleListCreatives)
		r.Get("/creatives/{id}", h.handleGetCreative)
		r.Get("/adspots", h.handleListAdSpots)
		r.Get("/adspots/{id}", h.handleGetAdSpot)
		r.Get("/agreements", h.handleListAgreements)
		r.Get("/agreements/{id}", h.handleGetAgreement)

		r.Group(func(r chi.Router) {
			r.Use(requireCaller)
			r.Post("/creatives", h.handleRegisterCreative)
			r.Post("/adspots", h.handleRegisterAdSpot)
			r.Post("/agreements", h.handleFormAgreement)
			r.Post("/agreements/{id}/settle", h.handleSettle)
		})
	})
	h.router = r
	return h
}

// Router returns the underlying http.Handler.
func (h *Handler) Router() http.Handler {
	return h.router
}
