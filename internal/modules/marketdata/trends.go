package marketdata

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeRange applies when the trends request omits timeRange.
const DefaultTimeRange = "1_month"

// timeRangeDays maps the API time ranges to lookback day counts.
var timeRangeDays = map[string]int{
	"1_week":   7,
	"1_month":  30,
	"3_months": 90,
	"6_months": 180,
}

// PointSource reads decoded market data points from the analytics store.
type PointSource interface {
	PointsSince(f PointFilter) ([]MarketDataPoint, error)
}

// TrendEngine derives trend direction, strength, and a bounded-heuristic
// forecast from windowed price points. Purely query-time; nothing is
// persisted.
type TrendEngine struct {
	points PointSource
	log    zerolog.Logger
}

// NewTrendEngine creates a new trend engine
func NewTrendEngine(points PointSource, log zerolog.Logger) *TrendEngine {
	return &TrendEngine{
		points: points,
		log:    log.With().Str("component", "trend_engine").Logger(),
	}
}

// GetTrends computes the market trend for a category (optionally narrowed
// to a location) over the requested time range, along with the grouped
// per-day data the classification was derived from.
func (e *TrendEngine) GetTrends(category, location, timeRange string, now time.Time) (MarketTrend, []TrendBucket, error) {
	if timeRange == "" {
		timeRange = DefaultTimeRange
	}
	days, ok := timeRangeDays[timeRange]
	if !ok {
		return MarketTrend{}, nil, fmt.Errorf("unknown time range %q", timeRange)
	}

	points, err := e.points.PointsSince(PointFilter{
		Category: category,
		City:     location,
		Since:    now.AddDate(0, 0, -days),
	})
	if err != nil {
		return MarketTrend{}, nil, fmt.Errorf("failed to load market data for trends: %w", err)
	}

	buckets := groupByDay(points)

	direction, strength := classifyTrend(buckets)

	priceRange := PriceRange{}
	if len(buckets) > 0 {
		priceRange.Min = buckets[0].MinPrice
		priceRange.Max = buckets[0].MaxPrice
		for _, b := range buckets[1:] {
			if b.MinPrice < priceRange.Min {
				priceRange.Min = b.MinPrice
			}
			if b.MaxPrice > priceRange.Max {
				priceRange.Max = b.MaxPrice
			}
		}
	}

	predictedTrend := "stable"
	switch direction {
	case "bullish":
		predictedTrend = "up"
	case "bearish":
		predictedTrend = "down"
	}

	locationLabel := location
	if locationLabel == "" {
		locationLabel = "all"
	}

	priceImpact := "neutral"
	switch direction {
	case "bullish":
		priceImpact = "positive"
	case "bearish":
		priceImpact = "negative"
	}

	trend := MarketTrend{
		TrendID:  fmt.Sprintf("%s_%s_%d", category, locationLabel, now.UnixMilli()),
		Category: category,
		Location: locationLabel,
		Trend:    direction,
		Strength: strength,
		Duration: timeRange,
		Factors: []TrendFactor{
			{
				Factor:      "Price Movement",
				Impact:      priceImpact,
				Weight:      0.7,
				Description: fmt.Sprintf("Price trend over %s", timeRange),
			},
			{
				Factor:      "Transaction Volume",
				Impact:      "neutral",
				Weight:      0.3,
				Description: "Market activity level",
			},
		},
		Prediction: MarketPrediction{
			Timeframe:      timeRange,
			PredictedTrend: predictedTrend,
			Confidence:     clampConfidence(strength / 10 * 100),
			PriceRange:     priceRange,
			KeyFactors: []string{
				"Historical transaction data",
				"Vendor reputation trends",
				"Market volume patterns",
			},
		},
		LastUpdated: now,
	}

	return trend, buckets, nil
}

// groupByDay expands points into individual price points and groups them by
// (date, location), ordered by date.
func groupByDay(points []MarketDataPoint) []TrendBucket {
	type key struct {
		date string
		city string
	}
	type acc struct {
		category string
		sum      float64
		min      float64
		max      float64
		repSum   float64
		count    int
	}

	groups := make(map[key]*acc)
	for _, point := range points {
		k := key{date: point.Timestamp.Format("2006-01-02"), city: point.Location.City}
		for _, pp := range point.PricePoints {
			g, ok := groups[k]
			if !ok {
				g = &acc{category: point.Category, min: pp.Price, max: pp.Price}
				groups[k] = g
			}
			g.sum += pp.Price
			g.repSum += pp.VendorReputation
			g.count++
			if pp.Price < g.min {
				g.min = pp.Price
			}
			if pp.Price > g.max {
				g.max = pp.Price
			}
		}
	}

	buckets := make([]TrendBucket, 0, len(groups))
	for k, g := range groups {
		buckets = append(buckets, TrendBucket{
			Date:              k.date,
			Category:          g.category,
			Location:          k.city,
			AveragePrice:      g.sum / float64(g.count),
			MinPrice:          g.min,
			MaxPrice:          g.max,
			TransactionCount:  g.count,
			AverageReputation: g.repSum / float64(g.count),
		})
	}

	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Date != buckets[j].Date {
			return buckets[i].Date < buckets[j].Date
		}
		return buckets[i].Location < buckets[j].Location
	})

	return buckets
}

// classifyTrend compares the mean price of the first seven grouped days
// against the last seven (or all available days when fewer). Above +5% is
// bullish, below -5% bearish, otherwise stable. Strength is the absolute
// percent change, capped at 100 for directional trends.
func classifyTrend(buckets []TrendBucket) (string, float64) {
	if len(buckets) < 2 {
		return "stable", 0
	}

	window := len(buckets)
	if window > 7 {
		window = 7
	}

	first := buckets[:window]
	last := buckets[len(buckets)-window:]

	var firstSum, lastSum float64
	for _, b := range first {
		firstSum += b.AveragePrice
	}
	for _, b := range last {
		lastSum += b.AveragePrice
	}

	firstAvg := firstSum / float64(len(first))
	lastAvg := lastSum / float64(len(last))
	if firstAvg == 0 {
		return "stable", 0
	}

	percentChange := (lastAvg - firstAvg) / firstAvg * 100

	abs := percentChange
	if abs < 0 {
		abs = -abs
	}

	switch {
	case percentChange > 5:
		return "bullish", minFloat(abs, 100)
	case percentChange < -5:
		return "bearish", minFloat(abs, 100)
	default:
		return "stable", abs
	}
}

// clampConfidence bounds a forecast confidence to [0, 95].
func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	return minFloat(v, 95)
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
