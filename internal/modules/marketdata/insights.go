package marketdata

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

// Insight tuning: groups below the sample floor are discarded entirely.
const (
	insightWindow       = 7 * 24 * time.Hour
	insightSampleFloor  = 3
	DefaultInsightLimit = 10
	MaxInsightLimit     = 50
)

// InsightEngine derives actionable market observations from the last week
// of data points. Purely query-time; nothing is persisted.
type InsightEngine struct {
	points PointSource
	log    zerolog.Logger
}

// NewInsightEngine creates a new insight engine
func NewInsightEngine(points PointSource, log zerolog.Logger) *InsightEngine {
	return &InsightEngine{
		points: points,
		log:    log.With().Str("component", "insight_engine").Logger(),
	}
}

// GetInsights aggregates the last seven days grouped by (category,
// location), discards groups with fewer than three transactions, ranks by
// transaction count, and classifies each surviving group.
func (e *InsightEngine) GetInsights(category, location string, limit int, now time.Time) ([]MarketInsight, InsightSummary, error) {
	if limit <= 0 {
		limit = DefaultInsightLimit
	}

	points, err := e.points.PointsSince(PointFilter{
		Category: category,
		City:     location,
		Since:    now.Add(-insightWindow),
	})
	if err != nil {
		return nil, InsightSummary{}, fmt.Errorf("failed to load market data for insights: %w", err)
	}

	type key struct {
		category string
		city     string
	}
	groups := make(map[key][]float64)
	for _, point := range points {
		k := key{category: point.Category, city: point.Location.City}
		for _, pp := range point.PricePoints {
			groups[k] = append(groups[k], pp.Price)
		}
	}

	type groupStat struct {
		category string
		city     string
		count    int
		mean     float64
		stddev   float64
	}

	stats := make([]groupStat, 0, len(groups))
	for k, prices := range groups {
		if len(prices) < insightSampleFloor {
			continue
		}
		stats = append(stats, groupStat{
			category: k.category,
			city:     k.city,
			count:    len(prices),
			mean:     stat.Mean(prices, nil),
			stddev:   stat.PopStdDev(prices, nil),
		})
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].count != stats[j].count {
			return stats[i].count > stats[j].count
		}
		if stats[i].category != stats[j].category {
			return stats[i].category < stats[j].category
		}
		return stats[i].city < stats[j].city
	})

	if len(stats) > limit {
		stats = stats[:limit]
	}

	insights := make([]MarketInsight, 0, len(stats))
	var summary InsightSummary

	for i, g := range stats {
		insight := MarketInsight{
			InsightID:  fmt.Sprintf("insight_%d_%d", now.UnixMilli(), i),
			Category:   g.category,
			Location:   g.city,
			Actionable: true,
			ValidUntil: now.Add(7 * 24 * time.Hour),
			CreatedAt:  now,
		}

		switch {
		case g.count > 10:
			insight.Type = "demand_surge"
			insight.Severity = "high"
			insight.Title = fmt.Sprintf("High Demand in %s", g.category)
			insight.Description = fmt.Sprintf(
				"%s in %s is experiencing high transaction volume (%d transactions this week)",
				g.category, g.city, g.count,
			)
			insight.Recommendations = []string{
				"Consider increasing inventory for this category",
				"Optimize pricing to capture demand",
				"Expand product offerings in this category",
			}
			summary.HighSeverity++

		case g.stddev > g.mean*0.2:
			insight.Type = "market_anomaly"
			insight.Severity = "medium"
			insight.Title = fmt.Sprintf("Price Volatility in %s", g.category)
			insight.Description = fmt.Sprintf(
				"High price variation detected in %s (±₹%.2f)",
				g.category, g.stddev,
			)
			insight.Recommendations = []string{
				"Monitor competitor pricing closely",
				"Consider price stabilization strategies",
				"Review market positioning",
			}
			summary.MediumSeverity++

		default:
			insight.Type = "price_opportunity"
			insight.Severity = "low"
			insight.Title = fmt.Sprintf("Stable Market in %s", g.category)
			insight.Description = fmt.Sprintf(
				"%s shows stable pricing around ₹%.2f",
				g.category, g.mean,
			)
			insight.Recommendations = []string{
				"Good opportunity for consistent pricing",
				"Focus on quality differentiation",
				"Build customer loyalty",
			}
			summary.LowSeverity++
		}

		insights = append(insights, insight)
	}

	summary.TotalInsights = len(insights)
	return insights, summary, nil
}
