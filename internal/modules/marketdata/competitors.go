package marketdata

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/openmandi/marketpulse/internal/modules/marketplace"
)

// Aggregator eligibility and ranking bounds.
const (
	competitorMinProducts = 3
	competitorLimit       = 20
	aggregationWindow     = 24 * time.Hour
)

// defaultReferencePrice applies to categories without a reference entry.
const defaultReferencePrice = 500.0

// categoryReferencePrices anchor the price-strategy classification,
// in currency units.
var categoryReferencePrices = map[string]float64{
	"food_beverages":      100,
	"clothing_textiles":   500,
	"electronics":         2000,
	"jewelry_accessories": 1500,
	"handicrafts":         300,
}

// CompetitorSource lists vendors active in a category from current
// relational state.
type CompetitorSource interface {
	CompetitorsByCategory(category string, minProducts, limit int) ([]marketplace.VendorCompetitor, error)
}

// CompetitorSink finds categories with fresh data points and attaches
// competitor summaries to the points that do not yet carry them.
type CompetitorSink interface {
	CategoriesWithPointsSince(since time.Time) ([]string, error)
	AttachCompetitorAnalysis(category string, since time.Time, summaries []CompetitorSummary) (int, error)
}

// CompetitorAggregator recomputes per-category competitor summaries once per
// collection cycle and annotates recent data points with them.
type CompetitorAggregator struct {
	catalog   CompetitorSource
	analytics CompetitorSink
	log       zerolog.Logger
}

// NewCompetitorAggregator creates a new competitor aggregator
func NewCompetitorAggregator(catalog CompetitorSource, analytics CompetitorSink, log zerolog.Logger) *CompetitorAggregator {
	return &CompetitorAggregator{
		catalog:   catalog,
		analytics: analytics,
		log:       log.With().Str("component", "competitor_aggregator").Logger(),
	}
}

// Run annotates the last 24 hours of data points in every category that
// received new points. A failure in one category is logged and must not
// block the others.
func (a *CompetitorAggregator) Run(now time.Time) error {
	since := now.Add(-aggregationWindow)

	categories, err := a.analytics.CategoriesWithPointsSince(since)
	if err != nil {
		return err
	}

	for _, category := range categories {
		competitors, err := a.catalog.CompetitorsByCategory(category, competitorMinProducts, competitorLimit)
		if err != nil {
			a.log.Error().Err(err).Str("category", category).Msg("Failed to load competitors, skipping category")
			continue
		}
		if len(competitors) == 0 {
			// Nothing to attach; leave the points unannotated so a future
			// pass can fill them in once vendors qualify.
			continue
		}

		summaries := make([]CompetitorSummary, 0, len(competitors))
		for _, comp := range competitors {
			summaries = append(summaries, CompetitorSummary{
				VendorID:        comp.VendorID,
				AveragePrice:    comp.AveragePrice,
				MarketShare:     0, // would need volume attribution across vendors
				Reputation:      comp.Reputation,
				Specializations: comp.Specializations,
				PriceStrategy:   classifyPriceStrategy(comp.AveragePrice, category),
			})
		}

		attached, err := a.analytics.AttachCompetitorAnalysis(category, since, summaries)
		if err != nil {
			a.log.Error().Err(err).Str("category", category).Msg("Failed to attach competitor analysis, skipping category")
			continue
		}

		a.log.Debug().
			Str("category", category).
			Int("competitors", len(summaries)).
			Int("points_annotated", attached).
			Msg("Competitor analysis updated")
	}

	a.log.Info().Int("categories_processed", len(categories)).Msg("Competitor analysis pass completed")
	return nil
}

// classifyPriceStrategy labels a vendor's average price against the
// category reference: above 130% is premium, below 70% is budget.
func classifyPriceStrategy(averagePrice float64, category string) PriceStrategy {
	reference, ok := categoryReferencePrices[category]
	if !ok {
		reference = defaultReferencePrice
	}

	switch {
	case averagePrice > reference*1.3:
		return StrategyPremium
	case averagePrice < reference*0.7:
		return StrategyBudget
	default:
		return StrategyCompetitive
	}
}
