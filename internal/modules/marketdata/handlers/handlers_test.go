package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmandi/marketpulse/internal/domain"
	"github.com/openmandi/marketpulse/internal/modules/marketdata"
	"github.com/openmandi/marketpulse/internal/modules/marketplace"
)

type stubTrigger struct {
	summary marketdata.CycleSummary
	err     error
	calls   int
}

func (s *stubTrigger) TriggerCollection() (marketdata.CycleSummary, error) {
	s.calls++
	return s.summary, s.err
}

type stubPoints struct {
	points []marketdata.MarketDataPoint
}

func (s *stubPoints) PointsSince(f marketdata.PointFilter) ([]marketdata.MarketDataPoint, error) {
	var out []marketdata.MarketDataPoint
	for _, p := range s.points {
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.City != "" && p.Location.City != f.City {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

type stubStats struct{}

func (stubStats) TransactionTotals(since time.Time) (marketplace.TransactionTotals, error) {
	return marketplace.TransactionTotals{TotalTransactions: 7, ActiveVendors: 2, AverageValue: 150}, nil
}

func (stubStats) CategoryProductStats() ([]marketplace.CategoryProductStat, error) {
	return []marketplace.CategoryProductStat{{Category: "electronics", ProductCount: 3, AveragePrice: 2000}}, nil
}

type stubCoverage struct{}

func (stubCoverage) CoverageStats(since time.Time) (marketdata.CoverageStats, error) {
	return marketdata.CoverageStats{TotalDataPoints: 5, Categories: []string{"electronics"}, Cities: []string{"Jaipur"}}, nil
}

type stubRanker struct{}

func (stubRanker) TopCompetitors(category, subcategory string, limit int) ([]marketplace.VendorCompetitor, error) {
	return nil, nil
}

func dataPoint(category, city string, ts time.Time, prices ...float64) marketdata.MarketDataPoint {
	pps := make([]marketdata.PricePoint, 0, len(prices))
	for _, price := range prices {
		pps = append(pps, marketdata.PricePoint{Price: price, VendorReputation: 4.0})
	}
	return marketdata.MarketDataPoint{
		Category:    category,
		Location:    domain.Location{City: city},
		PricePoints: pps,
		Timestamp:   ts,
	}
}

// newTestRouter wires a handler over stub engines and mounts it the way the
// server does.
func newTestRouter(trigger *stubTrigger, points []marketdata.MarketDataPoint) chi.Router {
	log := zerolog.Nop()
	source := &stubPoints{points: points}

	h := NewHandler(
		trigger,
		marketdata.NewTrendEngine(source, log),
		marketdata.NewInsightEngine(source, log),
		marketdata.NewAnalyticsService(stubStats{}, stubCoverage{}, log),
		marketdata.NewRecommendationEngine(source, stubRanker{}, log),
		log,
	)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		h.RegisterRoutes(r)
	})
	return r
}

func doRequest(t *testing.T, router chi.Router, method, target string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	router.ServeHTTP(rec, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestGetTrendsRequiresCategory(t *testing.T) {
	router := newTestRouter(&stubTrigger{}, nil)

	rec, body := doRequest(t, router, http.MethodGet, "/api/market-data/trends")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "Validation failed")
}

func TestGetTrendsRejectsUnknownTimeRange(t *testing.T) {
	router := newTestRouter(&stubTrigger{}, nil)

	rec, body := doRequest(t, router, http.MethodGet, "/api/market-data/trends?category=electronics&timeRange=2_years")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "Validation failed")
}

func TestGetTrendsReturnsTrendAndBuckets(t *testing.T) {
	now := time.Now()
	points := []marketdata.MarketDataPoint{
		dataPoint("electronics", "Jaipur", now.Add(-48*time.Hour), 100),
		dataPoint("electronics", "Jaipur", now.Add(-24*time.Hour), 104),
	}
	router := newTestRouter(&stubTrigger{}, points)

	rec, body := doRequest(t, router, http.MethodGet, "/api/market-data/trends?category=electronics&location=Jaipur&timeRange=1_week")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	trend, ok := body["trend"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "electronics", trend["category"])
	assert.Equal(t, "Jaipur", trend["location"])
	assert.Equal(t, "1_week", trend["duration"])

	data, ok := body["data"].([]interface{})
	require.True(t, ok)
	assert.Len(t, data, 2)
}

func TestGetPriceRecommendationValidation(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{"missing basePrice", "/api/market-data/price-recommendation?category=electronics"},
		{"zero basePrice", "/api/market-data/price-recommendation?category=electronics&basePrice=0"},
		{"missing category", "/api/market-data/price-recommendation?basePrice=100"},
		{"reputation out of range", "/api/market-data/price-recommendation?category=electronics&basePrice=100&vendorReputation=9"},
		{"non-numeric reputation", "/api/market-data/price-recommendation?category=electronics&basePrice=100&vendorReputation=best"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&stubTrigger{}, nil)
			rec, body := doRequest(t, router, http.MethodGet, tt.target)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, false, body["success"])
			assert.Contains(t, body["error"], "Validation failed")
		})
	}
}

func TestGetPriceRecommendationReturnsMarketData(t *testing.T) {
	now := time.Now()
	points := []marketdata.MarketDataPoint{
		dataPoint("electronics", "Jaipur", now.Add(-24*time.Hour), 100, 100, 100),
	}
	router := newTestRouter(&stubTrigger{}, points)

	rec, body := doRequest(t, router, http.MethodGet,
		"/api/market-data/price-recommendation?category=electronics&basePrice=120&vendorReputation=4.5")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	recommendation, ok := body["recommendation"].(map[string]interface{})
	require.True(t, ok)
	assert.NotZero(t, recommendation["suggestedPrice"])

	marketData, ok := body["marketData"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 3.0, marketData["transactionCount"])
	assert.Equal(t, 100.0, marketData["averagePrice"])
	priceRange, ok := marketData["priceRange"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 100.0, priceRange["min"])
	assert.NotEmpty(t, marketData["lastUpdated"])
}

func TestGetInsightsValidatesLimit(t *testing.T) {
	for _, target := range []string{
		"/api/market-data/insights?limit=51",
		"/api/market-data/insights?limit=0",
		"/api/market-data/insights?limit=ten",
	} {
		router := newTestRouter(&stubTrigger{}, nil)
		rec, body := doRequest(t, router, http.MethodGet, target)

		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Contains(t, body["error"], "Validation failed", target)
	}
}

func TestGetInsightsReturnsSummary(t *testing.T) {
	now := time.Now()
	points := []marketdata.MarketDataPoint{
		dataPoint("electronics", "Jaipur", now.Add(-24*time.Hour), 100, 101, 102),
	}
	router := newTestRouter(&stubTrigger{}, points)

	rec, body := doRequest(t, router, http.MethodGet, "/api/market-data/insights")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	insights, ok := body["insights"].([]interface{})
	require.True(t, ok)
	assert.Len(t, insights, 1)

	summary, ok := body["summary"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 1.0, summary["totalInsights"])
}

func TestGetAnalytics(t *testing.T) {
	router := newTestRouter(&stubTrigger{}, nil)

	rec, body := doRequest(t, router, http.MethodGet, "/api/market-data/analytics")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	analytics, ok := body["analytics"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 7.0, analytics["totalTransactions"])
	assert.Equal(t, 1.0, analytics["totalMarkets"])
}

func TestCollectTriggersCycle(t *testing.T) {
	trigger := &stubTrigger{summary: marketdata.CycleSummary{TransactionsProcessed: 3, DataPointsCreated: 2}}
	router := newTestRouter(trigger, nil)

	rec, body := doRequest(t, router, http.MethodPost, "/api/market-data/collect")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Market data collection completed", body["message"])

	summary, ok := body["summary"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 3.0, summary["transactionsProcessed"])
	assert.Equal(t, 2.0, summary["dataPointsCreated"])
	assert.Equal(t, 1, trigger.calls)
}

func TestCollectWhileCycleInProgress(t *testing.T) {
	trigger := &stubTrigger{err: marketdata.ErrCycleInProgress}
	router := newTestRouter(trigger, nil)

	rec, body := doRequest(t, router, http.MethodPost, "/api/market-data/collect")

	// Benign outcome, not an error.
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Market data collection already in progress", body["message"])
}

func TestCollectFailure(t *testing.T) {
	trigger := &stubTrigger{err: errors.New("store offline")}
	router := newTestRouter(trigger, nil)

	rec, body := doRequest(t, router, http.MethodPost, "/api/market-data/collect")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Market data collection failed", body["error"])
}

func TestCollectRateLimited(t *testing.T) {
	trigger := &stubTrigger{}
	router := newTestRouter(trigger, nil)

	rec, _ := doRequest(t, router, http.MethodPost, "/api/market-data/collect")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := doRequest(t, router, http.MethodPost, "/api/market-data/collect")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many collection requests", body["error"])
	assert.Equal(t, 1, trigger.calls)
}
