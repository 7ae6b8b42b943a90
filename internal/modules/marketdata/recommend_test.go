package marketdata

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmandi/marketpulse/internal/modules/marketplace"
)

type stubRanker struct {
	competitors []marketplace.VendorCompetitor
	err         error
}

func (s *stubRanker) TopCompetitors(category, subcategory string, limit int) ([]marketplace.VendorCompetitor, error) {
	return s.competitors, s.err
}

func TestRecommendFromMarketData(t *testing.T) {
	now := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)
	ts := now.Add(-24 * time.Hour)

	// 12 price points at 100, vendor reputation 4.0 each.
	prices := make([]float64, 12)
	for i := range prices {
		prices[i] = 100
	}
	source := &stubPointSource{points: []MarketDataPoint{
		testPoint("electronics", "Jaipur", ts, prices...),
	}}
	engine := NewRecommendationEngine(source, &stubRanker{}, zerolog.Nop())

	rec, stats, err := engine.Recommend(RecommendationRequest{
		Category:         "electronics",
		Location:         "Jaipur",
		BasePrice:        120,
		VendorReputation: 4.5,
	}, now)
	require.NoError(t, err)

	assert.Equal(t, 12, stats.TransactionCount)
	assert.InDelta(t, 100.0, stats.AveragePrice, 0.001)
	assert.InDelta(t, 4.0, stats.AverageReputation, 0.001)

	// Reputation adjustment (4.5-4.0)*0.1 = +5% on the market average.
	assert.InDelta(t, 105.0, rec.SuggestedPrice, 0.001)
	assert.InDelta(t, 100.0, rec.PriceRange.Min, 0.001) // clamped to observed min
	assert.InDelta(t, 100.0, rec.PriceRange.Max, 0.001) // clamped to observed max
	assert.Equal(t, 95.0, rec.Confidence)               // 12/10*100 capped at 95

	require.Len(t, rec.Reasoning, 4)
	assert.Equal(t, "Based on 12 recent transactions in electronics", rec.Reasoning[0])
	assert.Equal(t, "Market average price: ₹100.00", rec.Reasoning[1])
	assert.Equal(t, "Your reputation adjustment: +5.0%", rec.Reasoning[2])
	assert.Equal(t, "Competitor analysis: 0 similar vendors found", rec.Reasoning[3])

	// No competitors: comparison falls back to the market average.
	assert.Equal(t, "above", rec.CompetitorComparison.PricePosition)
	assert.InDelta(t, 20.0, rec.CompetitorComparison.PercentageDifference, 0.001)
	assert.Equal(t, 0, rec.CompetitorComparison.CompetitorCount)

	assert.Equal(t, "medium", rec.DemandForecast.ExpectedDemand)
	assert.InDelta(t, 60.0, rec.DemandForecast.DemandScore, 0.001)
}

func TestRecommendColdCategory(t *testing.T) {
	now := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)
	engine := NewRecommendationEngine(&stubPointSource{}, &stubRanker{}, zerolog.Nop())

	rec, stats, err := engine.Recommend(RecommendationRequest{
		Category:         "quantum_gadgets",
		BasePrice:        120,
		VendorReputation: 4.5,
	}, now)
	require.NoError(t, err)

	// Synthetic baseline around the caller's base price, zero confidence.
	assert.Equal(t, 0, stats.TransactionCount)
	assert.InDelta(t, 120.0, stats.AveragePrice, 0.001)
	assert.InDelta(t, 96.0, stats.MinPrice, 0.001)
	assert.InDelta(t, 144.0, stats.MaxPrice, 0.001)
	assert.Equal(t, 0.0, rec.Confidence)
	assert.Equal(t, "low", rec.DemandForecast.ExpectedDemand)
}

func TestRecommendUsesCompetitorAverage(t *testing.T) {
	now := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)
	ts := now.Add(-24 * time.Hour)

	source := &stubPointSource{points: []MarketDataPoint{
		testPoint("electronics", "Jaipur", ts, 100, 100, 100),
	}}
	ranker := &stubRanker{competitors: []marketplace.VendorCompetitor{
		{VendorID: "v1", AveragePrice: 200, Reputation: 4.2},
		{VendorID: "v2", AveragePrice: 220, Reputation: 4.8},
	}}
	engine := NewRecommendationEngine(source, ranker, zerolog.Nop())

	rec, _, err := engine.Recommend(RecommendationRequest{
		Category:         "electronics",
		BasePrice:        199,
		VendorReputation: 4.0,
	}, now)
	require.NoError(t, err)

	// (199-210)/210 = -5.2%: below the competitor average.
	assert.Equal(t, "below", rec.CompetitorComparison.PricePosition)
	assert.InDelta(t, 210.0, rec.CompetitorComparison.AverageCompetitorPrice, 0.001)
	assert.Equal(t, 2, rec.CompetitorComparison.CompetitorCount)
	assert.Equal(t, "Competitor analysis: 2 similar vendors found", rec.Reasoning[3])
}

func TestForecastDemandTiers(t *testing.T) {
	tests := []struct {
		count    int
		expected string
		score    float64
	}{
		{0, "low", 0},
		{10, "low", 50},
		{11, "medium", 55},
		{21, "high", 100},
		{30, "high", 100},
	}

	for _, tt := range tests {
		forecast := forecastDemand(tt.count)
		assert.Equal(t, tt.expected, forecast.ExpectedDemand, "count %d", tt.count)
		assert.InDelta(t, tt.score, forecast.DemandScore, 0.001, "count %d", tt.count)
	}
}
