// Package handlers provides HTTP handlers for market data operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/openmandi/marketpulse/internal/modules/marketdata"
)

// CollectionTrigger runs one collection cycle on demand.
type CollectionTrigger interface {
	TriggerCollection() (marketdata.CycleSummary, error)
}

// Handler handles market data HTTP requests
type Handler struct {
	collector   CollectionTrigger
	trends      *marketdata.TrendEngine
	insights    *marketdata.InsightEngine
	analytics   *marketdata.AnalyticsService
	recommender *marketdata.RecommendationEngine
	validate    *validator.Validate
	limiter     *rate.Limiter
	log         zerolog.Logger
}

// NewHandler creates a new market data handler
func NewHandler(
	collector CollectionTrigger,
	trends *marketdata.TrendEngine,
	insights *marketdata.InsightEngine,
	analytics *marketdata.AnalyticsService,
	recommender *marketdata.RecommendationEngine,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		collector:   collector,
		trends:      trends,
		insights:    insights,
		analytics:   analytics,
		recommender: recommender,
		validate:    validator.New(),
		// Collection cycles are heavy; allow one manual trigger per 10s.
		limiter: rate.NewLimiter(rate.Every(10*time.Second), 1),
		log:     log.With().Str("handler", "marketdata").Logger(),
	}
}

// trendsParams are the validated query parameters for GET /trends.
type trendsParams struct {
	Category  string `validate:"required"`
	Location  string
	TimeRange string `validate:"omitempty,oneof=1_week 1_month 3_months 6_months"`
}

// recommendationParams are the validated query parameters for
// GET /price-recommendation.
type recommendationParams struct {
	Category         string  `validate:"required"`
	Subcategory      string
	Location         string
	BasePrice        float64 `validate:"required,gt=0"`
	VendorReputation float64 `validate:"gte=0,lte=5"`
}

// insightsParams are the validated query parameters for GET /insights.
type insightsParams struct {
	Category string
	Location string
	Limit    int `validate:"gte=1,lte=50"`
}

// HandleCollect handles POST /api/market-data/collect
func (h *Handler) HandleCollect(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow() {
		h.writeError(w, http.StatusTooManyRequests, "Too many collection requests")
		return
	}

	summary, err := h.collector.TriggerCollection()
	if errors.Is(err, marketdata.ErrCycleInProgress) {
		// Benign: the scheduled cycle (or another caller) got there first.
		h.writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "Market data collection already in progress",
			"summary": marketdata.CycleSummary{},
		})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Manual collection cycle failed")
		h.writeError(w, http.StatusInternalServerError, "Market data collection failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Market data collection completed",
		"summary": summary,
	})
}

// HandleGetTrends handles GET /api/market-data/trends
func (h *Handler) HandleGetTrends(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := trendsParams{
		Category:  q.Get("category"),
		Location:  q.Get("location"),
		TimeRange: q.Get("timeRange"),
	}
	if err := h.validate.Struct(params); err != nil {
		h.writeError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	trend, buckets, err := h.trends.GetTrends(params.Category, params.Location, params.TimeRange, time.Now())
	if err != nil {
		h.log.Error().Err(err).Str("category", params.Category).Msg("Failed to compute market trends")
		h.writeError(w, http.StatusInternalServerError, "Failed to fetch market trends")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"trend":   trend,
		"data":    buckets,
	})
}

// HandleGetPriceRecommendation handles GET /api/market-data/price-recommendation
func (h *Handler) HandleGetPriceRecommendation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	basePrice, err := strconv.ParseFloat(q.Get("basePrice"), 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Validation failed: basePrice must be a positive number")
		return
	}

	reputation := 0.0
	if raw := q.Get("vendorReputation"); raw != "" {
		reputation, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Validation failed: vendorReputation must be a number between 0 and 5")
			return
		}
	}

	params := recommendationParams{
		Category:         q.Get("category"),
		Subcategory:      q.Get("subcategory"),
		Location:         q.Get("location"),
		BasePrice:        basePrice,
		VendorReputation: reputation,
	}
	if err := h.validate.Struct(params); err != nil {
		h.writeError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	recommendation, marketData, err := h.recommender.Recommend(marketdata.RecommendationRequest{
		Category:         params.Category,
		Subcategory:      params.Subcategory,
		Location:         params.Location,
		BasePrice:        params.BasePrice,
		VendorReputation: params.VendorReputation,
	}, time.Now())
	if err != nil {
		h.log.Error().Err(err).Str("category", params.Category).Msg("Failed to compute price recommendation")
		h.writeError(w, http.StatusInternalServerError, "Failed to generate price recommendation")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"recommendation": recommendation,
		"marketData": map[string]interface{}{
			"averagePrice": marketData.AveragePrice,
			"priceRange": marketdata.PriceRange{
				Min: marketData.MinPrice,
				Max: marketData.MaxPrice,
			},
			"transactionCount": marketData.TransactionCount,
			"lastUpdated":      time.Now(),
		},
	})
}

// HandleGetInsights handles GET /api/market-data/insights
func (h *Handler) HandleGetInsights(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := marketdata.DefaultInsightLimit
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Validation failed: limit must be an integer between 1 and 50")
			return
		}
		limit = parsed
	}

	params := insightsParams{
		Category: q.Get("category"),
		Location: q.Get("location"),
		Limit:    limit,
	}
	if err := h.validate.Struct(params); err != nil {
		h.writeError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	insights, summary, err := h.insights.GetInsights(params.Category, params.Location, params.Limit, time.Now())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute market insights")
		h.writeError(w, http.StatusInternalServerError, "Failed to fetch market insights")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"insights": insights,
		"summary":  summary,
	})
}

// HandleGetAnalytics handles GET /api/market-data/analytics
func (h *Handler) HandleGetAnalytics(w http.ResponseWriter, r *http.Request) {
	analytics, err := h.analytics.GetAnalytics(time.Now())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute market analytics")
		h.writeError(w, http.StatusInternalServerError, "Failed to fetch market analytics")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"analytics": analytics,
	})
}

// writeError writes a JSON error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
