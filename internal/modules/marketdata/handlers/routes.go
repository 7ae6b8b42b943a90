package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all market data routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/market-data", func(r chi.Router) {
		// Collection
		r.Post("/collect", h.HandleCollect)

		// Query-time intelligence
		r.Get("/trends", h.HandleGetTrends)
		r.Get("/price-recommendation", h.HandleGetPriceRecommendation)
		r.Get("/insights", h.HandleGetInsights)
		r.Get("/analytics", h.HandleGetAnalytics)
	})
}
