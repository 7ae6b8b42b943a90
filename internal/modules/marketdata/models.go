// Package marketdata implements the market intelligence engine: a periodic
// collection pipeline that normalizes completed transactions into market
// data observations, and the query-time engines that derive trends,
// insights, and price recommendations from them.
package marketdata

import (
	"time"

	"github.com/openmandi/marketpulse/internal/domain"
)

// Quality classifies a transaction price relative to the product base price.
type Quality string

const (
	QualityBasic    Quality = "basic"    // price < 80% of base price
	QualityStandard Quality = "standard" // within 80%..120%
	QualityPremium  Quality = "premium"  // price > 120% of base price
)

// PriceStrategy is the coarse label assigned to a vendor relative to a
// category reference price.
type PriceStrategy string

const (
	StrategyPremium     PriceStrategy = "premium"
	StrategyCompetitive PriceStrategy = "competitive"
	StrategyBudget      PriceStrategy = "budget"
)

// PricePoint is a single transaction's contribution within a market data point.
type PricePoint struct {
	Price             float64 `json:"price" msgpack:"price"`
	Quantity          float64 `json:"quantity" msgpack:"quantity"`
	VendorReputation  float64 `json:"vendorReputation" msgpack:"vendorReputation"`
	TransactionVolume float64 `json:"transactionVolume" msgpack:"transactionVolume"`
	TimeOfDay         string  `json:"timeOfDay" msgpack:"timeOfDay"`   // HH:MM
	DayOfWeek         string  `json:"dayOfWeek" msgpack:"dayOfWeek"`   // long English weekday
	Quality           Quality `json:"quality" msgpack:"quality"`
	Verified          bool    `json:"verified" msgpack:"verified"`
}

// DemandIndicator is a heuristic demand signal extracted from transaction
// metadata.
type DemandIndicator struct {
	Indicator  string  `json:"indicator" msgpack:"indicator"`
	Value      float64 `json:"value" msgpack:"value"`
	Trend      string  `json:"trend" msgpack:"trend"` // increasing | decreasing | stable
	Confidence float64 `json:"confidence" msgpack:"confidence"`
	Timeframe  string  `json:"timeframe" msgpack:"timeframe"`
}

// SeasonalDataPoint is a historical observation backing a seasonal factor.
type SeasonalDataPoint struct {
	Month      int     `json:"month" msgpack:"month"`
	Year       int     `json:"year" msgpack:"year"`
	Multiplier float64 `json:"multiplier" msgpack:"multiplier"`
	Volume     float64 `json:"volume" msgpack:"volume"`
}

// SeasonalFactor annotates a data point with a named calendar effect.
type SeasonalFactor struct {
	Factor         string              `json:"factor" msgpack:"factor"`
	Impact         float64             `json:"impact" msgpack:"impact"` // roughly [-0.3, 0.3]
	Months         []int               `json:"months" msgpack:"months"`
	Description    string              `json:"description" msgpack:"description"`
	HistoricalData []SeasonalDataPoint `json:"historicalData" msgpack:"historicalData"`
}

// CompetitorSummary is one vendor's standing within a category, recomputed
// on each aggregator pass.
type CompetitorSummary struct {
	VendorID        string        `json:"vendorId" msgpack:"vendorId"`
	AveragePrice    float64       `json:"averagePrice" msgpack:"averagePrice"`
	MarketShare     float64       `json:"marketShare" msgpack:"marketShare"`
	Reputation      float64       `json:"reputation" msgpack:"reputation"`
	Specializations []string      `json:"specializations" msgpack:"specializations"`
	PriceStrategy   PriceStrategy `json:"priceStrategy" msgpack:"priceStrategy"`
}

// MarketDataPoint is one aggregated observation unit for a
// (category, location, time) combination. Created by the normalizer,
// enriched in place by the competitor aggregator, immutable otherwise.
type MarketDataPoint struct {
	DataID             string              `json:"dataId"`
	Category           string              `json:"category"`
	Subcategory        string              `json:"subcategory"`
	Location           domain.Location     `json:"location"`
	PricePoints        []PricePoint        `json:"pricePoints"`
	DemandIndicators   []DemandIndicator   `json:"demandIndicators"`
	SeasonalFactors    []SeasonalFactor    `json:"seasonalFactors"`
	CompetitorAnalysis []CompetitorSummary `json:"competitorAnalysis"`
	Timestamp          time.Time           `json:"timestamp"`
	DataSource         string              `json:"dataSource"`
	Reliability        float64             `json:"reliability"` // [0,1]
}

// CycleSummary reports what one collection cycle accomplished.
type CycleSummary struct {
	TransactionsProcessed int `json:"transactionsProcessed"`
	DataPointsCreated     int `json:"dataPointsCreated"`
}

// TrendBucket is one grouped row of the trends query: per day (and location)
// price statistics expanded from individual price points.
type TrendBucket struct {
	Date              string  `json:"date"` // YYYY-MM-DD
	Category          string  `json:"category"`
	Location          string  `json:"location"`
	AveragePrice      float64 `json:"averagePrice"`
	MinPrice          float64 `json:"minPrice"`
	MaxPrice          float64 `json:"maxPrice"`
	TransactionCount  int     `json:"transactionCount"`
	AverageReputation float64 `json:"averageReputation"`
}

// TrendFactor describes one input to a trend classification.
type TrendFactor struct {
	Factor      string  `json:"factor"`
	Impact      string  `json:"impact"` // positive | negative | neutral
	Weight      float64 `json:"weight"`
	Description string  `json:"description"`
}

// PriceRange bounds a price interval.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// MarketPrediction is the bounded-heuristic forecast attached to a trend.
type MarketPrediction struct {
	Timeframe      string     `json:"timeframe"`
	PredictedTrend string     `json:"predictedTrend"` // up | down | stable
	Confidence     float64    `json:"confidence"`     // 0..95
	PriceRange     PriceRange `json:"priceRange"`
	KeyFactors     []string   `json:"keyFactors"`
}

// MarketTrend is the derived trend for a category/location window.
// Never persisted; computed per request.
type MarketTrend struct {
	TrendID     string           `json:"trendId"`
	Category    string           `json:"category"`
	Location    string           `json:"location"`
	Trend       string           `json:"trend"`    // bullish | bearish | stable
	Strength    float64          `json:"strength"` // 0..100
	Duration    string           `json:"duration"`
	Factors     []TrendFactor    `json:"factors"`
	Prediction  MarketPrediction `json:"prediction"`
	LastUpdated time.Time        `json:"lastUpdated"`
}

// MarketInsight is one actionable observation derived from recent data.
type MarketInsight struct {
	InsightID       string    `json:"insightId"`
	Type            string    `json:"type"` // price_opportunity | demand_surge | market_anomaly
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Category        string    `json:"category"`
	Location        string    `json:"location"`
	Severity        string    `json:"severity"` // low | medium | high
	Actionable      bool      `json:"actionable"`
	Recommendations []string  `json:"recommendations"`
	ValidUntil      time.Time `json:"validUntil"`
	CreatedAt       time.Time `json:"createdAt"`
}

// InsightSummary counts insights by severity.
type InsightSummary struct {
	TotalInsights  int `json:"totalInsights"`
	HighSeverity   int `json:"highSeverity"`
	MediumSeverity int `json:"mediumSeverity"`
	LowSeverity    int `json:"lowSeverity"`
}

// MarketStats are windowed price statistics for a category.
// MedianPrice is computed as a second average of the same values, not a true
// median; the field is kept because downstream consumers depend on the
// existing behavior.
type MarketStats struct {
	AveragePrice      float64 `json:"averagePrice"`
	MinPrice          float64 `json:"minPrice"`
	MaxPrice          float64 `json:"maxPrice"`
	MedianPrice       float64 `json:"medianPrice"`
	TransactionCount  int     `json:"transactionCount"`
	AverageReputation float64 `json:"averageReputation"`
}

// MarketFactor is one weighted input to a price recommendation.
type MarketFactor struct {
	Factor      string  `json:"factor"`
	Impact      float64 `json:"impact"` // -1..1
	Description string  `json:"description"`
	Source      string  `json:"source"`
	Reliability float64 `json:"reliability"`
}

// CompetitorComparison positions the caller's base price against the
// category's top competitors.
type CompetitorComparison struct {
	AverageCompetitorPrice float64 `json:"averageCompetitorPrice"`
	PricePosition          string  `json:"pricePosition"` // below | at | above
	PercentageDifference   float64 `json:"percentageDifference"`
	CompetitorCount        int     `json:"competitorCount"`
	MarketShare            float64 `json:"marketShare"`
}

// DemandForecast is the heuristic demand outlook attached to a recommendation.
type DemandForecast struct {
	ExpectedDemand string   `json:"expectedDemand"` // low | medium | high
	DemandScore    float64  `json:"demandScore"`    // 0..100
	PeakTimes      []string `json:"peakTimes"`
	SeasonalImpact float64  `json:"seasonalImpact"`
	TrendDirection string   `json:"trendDirection"`
}

// PriceRecommendation is the multi-factor price suggestion for a vendor.
// Never persisted; computed per request.
type PriceRecommendation struct {
	SuggestedPrice       float64              `json:"suggestedPrice"`
	PriceRange           PriceRange           `json:"priceRange"`
	Confidence           float64              `json:"confidence"` // 0..100, exactly 0 for cold categories
	Reasoning            []string             `json:"reasoning"`
	MarketFactors        []MarketFactor       `json:"marketFactors"`
	SeasonalAdjustments  float64              `json:"seasonalAdjustments"`
	CompetitorComparison CompetitorComparison `json:"competitorComparison"`
	DemandForecast       DemandForecast       `json:"demandForecast"`
}

// CategoryAnalytics is the per-category slice of the dashboard.
type CategoryAnalytics struct {
	Category         string   `json:"category"`
	TransactionCount int      `json:"transactionCount"`
	TotalValue       float64  `json:"totalValue"`
	AveragePrice     float64  `json:"averagePrice"`
	Growth           float64  `json:"growth"`
	TopVendors       []string `json:"topVendors"`
}

// LocationAnalytics is the per-location slice of the dashboard.
type LocationAnalytics struct {
	Location         string  `json:"location"`
	TransactionCount int     `json:"transactionCount"`
	TotalValue       float64 `json:"totalValue"`
	AveragePrice     float64 `json:"averagePrice"`
	VendorCount      int     `json:"vendorCount"`
	Growth           float64 `json:"growth"`
}

// DataQuality reports analytics-store coverage for the dashboard.
type DataQuality struct {
	TotalDataPoints   int       `json:"totalDataPoints"`
	CategoriesCovered int       `json:"categoriesCovered"`
	LocationsCovered  int       `json:"locationsCovered"`
	LastUpdated       time.Time `json:"lastUpdated"`
}

// MarketAnalytics is the point-in-time dashboard snapshot.
type MarketAnalytics struct {
	TotalMarkets            int                 `json:"totalMarkets"`
	ActiveVendors           int                 `json:"activeVendors"`
	TotalTransactions       int                 `json:"totalTransactions"`
	AverageTransactionValue float64             `json:"averageTransactionValue"`
	MarketGrowth            float64             `json:"marketGrowth"`
	CategoryBreakdown       []CategoryAnalytics `json:"categoryBreakdown"`
	LocationBreakdown       []LocationAnalytics `json:"locationBreakdown"`
	DataQuality             DataQuality         `json:"dataQuality"`
}
