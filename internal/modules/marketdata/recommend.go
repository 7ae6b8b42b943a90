package marketdata

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/openmandi/marketpulse/internal/modules/marketplace"
)

const (
	recommendationWindow   = 30 * 24 * time.Hour
	recommendationMaxComps = 10
)

// RecommendationRequest carries the caller's pricing context.
type RecommendationRequest struct {
	Category         string
	Subcategory      string
	Location         string
	BasePrice        float64
	VendorReputation float64
}

// VendorRanker lists the top vendors in a category by reputation.
type VendorRanker interface {
	TopCompetitors(category, subcategory string, limit int) ([]marketplace.VendorCompetitor, error)
}

// RecommendationEngine blends market average, reputation, competition, and
// demand into a suggested price band. Purely query-time; nothing is
// persisted. A category with zero historical data degrades to a synthetic
// baseline around the caller's base price with zero confidence - never an
// error.
type RecommendationEngine struct {
	points  PointSource
	catalog VendorRanker
	log     zerolog.Logger
}

// NewRecommendationEngine creates a new price recommendation engine
func NewRecommendationEngine(points PointSource, catalog VendorRanker, log zerolog.Logger) *RecommendationEngine {
	return &RecommendationEngine{
		points:  points,
		catalog: catalog,
		log:     log.With().Str("component", "recommendation_engine").Logger(),
	}
}

// Recommend computes the price recommendation and the 30-day market stats
// it was derived from.
func (e *RecommendationEngine) Recommend(req RecommendationRequest, now time.Time) (PriceRecommendation, MarketStats, error) {
	stats, err := e.marketStats(req, now)
	if err != nil {
		return PriceRecommendation{}, MarketStats{}, err
	}

	competitors, err := e.catalog.TopCompetitors(req.Category, req.Subcategory, recommendationMaxComps)
	if err != nil {
		return PriceRecommendation{}, MarketStats{}, fmt.Errorf("failed to load competitors: %w", err)
	}

	comparison := compareToCompetitors(req.BasePrice, stats.AveragePrice, competitors)

	reputationAdjustment := (req.VendorReputation - stats.AverageReputation) * 0.1

	suggested := stats.AveragePrice * (1 + reputationAdjustment)
	priceRange := PriceRange{
		Min: math.Max(stats.MinPrice, suggested*0.9),
		Max: math.Min(stats.MaxPrice, suggested*1.1),
	}

	confidence := math.Round(math.Min(float64(stats.TransactionCount)/10*100, 95))

	sign := ""
	if reputationAdjustment > 0 {
		sign = "+"
	}
	reasoning := []string{
		fmt.Sprintf("Based on %d recent transactions in %s", stats.TransactionCount, req.Category),
		fmt.Sprintf("Market average price: ₹%.2f", stats.AveragePrice),
		fmt.Sprintf("Your reputation adjustment: %s%.1f%%", sign, reputationAdjustment*100),
		fmt.Sprintf("Competitor analysis: %d similar vendors found", len(competitors)),
	}

	competitionImpact := 0.1
	if len(competitors) > 5 {
		competitionImpact = -0.1
	}

	recommendation := PriceRecommendation{
		SuggestedPrice: math.Round(suggested*100) / 100,
		PriceRange:     priceRange,
		Confidence:     confidence,
		Reasoning:      reasoning,
		MarketFactors: []MarketFactor{
			{
				Factor:      "Market Average",
				Impact:      0.6,
				Description: fmt.Sprintf("Average price in %s category", req.Category),
				Source:      "transaction_data",
				Reliability: 0.9,
			},
			{
				Factor:      "Vendor Reputation",
				Impact:      reputationAdjustment,
				Description: "Reputation-based price adjustment",
				Source:      "vendor_profiles",
				Reliability: 0.8,
			},
			{
				Factor:      "Competition Level",
				Impact:      competitionImpact,
				Description: fmt.Sprintf("%d competitors in market", len(competitors)),
				Source:      "competitor_analysis",
				Reliability: 0.7,
			},
		},
		SeasonalAdjustments:  0,
		CompetitorComparison: comparison,
		DemandForecast:       forecastDemand(stats.TransactionCount),
	}

	return recommendation, stats, nil
}

// marketStats aggregates 30-day price points for the requested category,
// falling back to a synthetic baseline around the caller's base price when
// the category is cold.
func (e *RecommendationEngine) marketStats(req RecommendationRequest, now time.Time) (MarketStats, error) {
	points, err := e.points.PointsSince(PointFilter{
		Category:    req.Category,
		Subcategory: req.Subcategory,
		City:        req.Location,
		Since:       now.Add(-recommendationWindow),
	})
	if err != nil {
		return MarketStats{}, fmt.Errorf("failed to load market data for recommendation: %w", err)
	}

	var prices, reputations []float64
	for _, point := range points {
		for _, pp := range point.PricePoints {
			prices = append(prices, pp.Price)
			reputations = append(reputations, pp.VendorReputation)
		}
	}

	if len(prices) == 0 {
		// Cold category: synthetic ±20% baseline with zero transaction
		// count, so confidence comes out exactly 0.
		return MarketStats{
			AveragePrice:      req.BasePrice,
			MinPrice:          req.BasePrice * 0.8,
			MaxPrice:          req.BasePrice * 1.2,
			MedianPrice:       req.BasePrice,
			TransactionCount:  0,
			AverageReputation: 0,
		}, nil
	}

	minPrice, maxPrice := prices[0], prices[0]
	for _, p := range prices[1:] {
		if p < minPrice {
			minPrice = p
		}
		if p > maxPrice {
			maxPrice = p
		}
	}

	mean := stat.Mean(prices, nil)
	return MarketStats{
		AveragePrice: mean,
		MinPrice:     minPrice,
		MaxPrice:     maxPrice,
		// MedianPrice repeats the average; see the MarketStats doc comment.
		MedianPrice:       mean,
		TransactionCount:  len(prices),
		AverageReputation: stat.Mean(reputations, nil),
	}, nil
}

// compareToCompetitors positions the caller's base price against the top
// competitors' average, using the same ±5% threshold as trend
// classification.
func compareToCompetitors(basePrice, marketAverage float64, competitors []marketplace.VendorCompetitor) CompetitorComparison {
	average := marketAverage
	if len(competitors) > 0 {
		var sum float64
		for _, c := range competitors {
			sum += c.AveragePrice
		}
		average = sum / float64(len(competitors))
	}

	comparison := CompetitorComparison{
		AverageCompetitorPrice: average,
		CompetitorCount:        len(competitors),
		MarketShare:            0, // would need volume attribution across vendors
		PricePosition:          "at",
	}

	if average == 0 {
		return comparison
	}

	diff := (basePrice - average) / average * 100
	comparison.PercentageDifference = math.Abs(diff)
	switch {
	case diff > 5:
		comparison.PricePosition = "above"
	case diff < -5:
		comparison.PricePosition = "below"
	}

	return comparison
}

// forecastDemand maps the transaction count to the heuristic demand outlook.
func forecastDemand(transactionCount int) DemandForecast {
	expected := "low"
	switch {
	case transactionCount > 20:
		expected = "high"
	case transactionCount > 10:
		expected = "medium"
	}

	return DemandForecast{
		ExpectedDemand: expected,
		DemandScore:    math.Min(float64(transactionCount)*5, 100),
		PeakTimes:      []string{"09:00-11:00", "15:00-17:00"},
		SeasonalImpact: 0,
		TrendDirection: "stable",
	}
}
