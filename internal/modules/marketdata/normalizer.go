package marketdata

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/openmandi/marketpulse/internal/domain"
	"github.com/openmandi/marketpulse/internal/modules/marketplace"
)

// Negotiations shorter than this signal increasing demand.
const negotiationDemandThreshold = 300 // seconds

// Lookback window for each collection cycle. Wider than the collection
// interval to tolerate scheduler jitter and store latency; the idempotency
// markers prevent double-counting within the overlap.
const defaultLookback = 2 * time.Hour

// TransactionSource provides unprocessed completed transactions and their
// idempotency markers.
type TransactionSource interface {
	RecentCompleted(since time.Time) ([]marketplace.CompletedTransaction, error)
	MarkProcessed(transactionID string, processedAt time.Time) error
}

// PointWriter persists market data points.
type PointWriter interface {
	InsertPoint(p MarketDataPoint) error
}

// Normalizer converts completed transactions into market data points,
// exactly one contribution per transaction id.
type Normalizer struct {
	transactions TransactionSource
	points       PointWriter
	seasonal     *SeasonalCalculator
	lookback     time.Duration
	log          zerolog.Logger
}

// NewNormalizer creates a new transaction normalizer
func NewNormalizer(transactions TransactionSource, points PointWriter, seasonal *SeasonalCalculator, log zerolog.Logger) *Normalizer {
	return &Normalizer{
		transactions: transactions,
		points:       points,
		seasonal:     seasonal,
		lookback:     defaultLookback,
		log:          log.With().Str("component", "normalizer").Logger(),
	}
}

// Run processes one batch of transactions. A failure on a single
// transaction is logged and skipped; only a failure to read the batch
// itself aborts the run.
func (n *Normalizer) Run(now time.Time) (CycleSummary, error) {
	transactions, err := n.transactions.RecentCompleted(now.Add(-n.lookback))
	if err != nil {
		return CycleSummary{}, fmt.Errorf("failed to load recent transactions: %w", err)
	}

	summary := CycleSummary{TransactionsProcessed: len(transactions)}

	for _, tx := range transactions {
		location := tx.MarketLocation()
		if location == nil {
			// No partial point without a location. The transaction stays
			// unmarked and ages out of the lookback window naturally.
			n.log.Debug().Str("transaction_id", tx.TransactionID).Msg("Skipping transaction without location")
			continue
		}

		point := n.buildPoint(tx, *location, now)

		if err := n.points.InsertPoint(point); err != nil {
			n.log.Error().Err(err).Str("transaction_id", tx.TransactionID).Msg("Failed to persist market data point")
			continue
		}

		// Marker after point: if this write fails the point stands and the
		// transaction may contribute again next cycle - an accepted
		// at-least-once over-count bounded to one retry window.
		if err := n.transactions.MarkProcessed(tx.TransactionID, now); err != nil {
			n.log.Warn().Err(err).Str("transaction_id", tx.TransactionID).Msg("Point persisted but marker write failed")
		}

		summary.DataPointsCreated++
	}

	n.log.Info().
		Int("transactions_processed", summary.TransactionsProcessed).
		Int("data_points_created", summary.DataPointsCreated).
		Msg("Normalization pass completed")

	return summary, nil
}

func (n *Normalizer) buildPoint(tx marketplace.CompletedTransaction, location domain.Location, now time.Time) MarketDataPoint {
	pricePoint := PricePoint{
		Price:             tx.Amount,
		Quantity:          1, // Default quantity - could be extracted from metadata
		VendorReputation:  tx.VendorReputation,
		TransactionVolume: 1,
		TimeOfDay:         tx.CompletedAt.Format("15:04"),
		DayOfWeek:         tx.CompletedAt.Weekday().String(),
		Quality:           classifyQuality(tx.Amount, tx.BasePrice),
		Verified:          true,
	}

	demandIndicators := []DemandIndicator{}
	if tx.Metadata.NegotiationDuration != nil {
		duration := *tx.Metadata.NegotiationDuration
		trend := "decreasing"
		if duration < negotiationDemandThreshold {
			trend = "increasing"
		}
		demandIndicators = append(demandIndicators, DemandIndicator{
			Indicator:  "negotiation_duration",
			Value:      duration,
			Trend:      trend,
			Confidence: 0.8,
			Timeframe:  "transaction",
		})
	}

	return MarketDataPoint{
		Category:           tx.Category,
		Subcategory:        tx.Subcategory,
		Location:           location,
		PricePoints:        []PricePoint{pricePoint},
		DemandIndicators:   demandIndicators,
		SeasonalFactors:    n.seasonal.Factors(tx.Category, tx.CompletedAt),
		CompetitorAnalysis: []CompetitorSummary{}, // populated by the aggregator pass
		Timestamp:          now,
		DataSource:         "transaction_data",
		Reliability:        1.0,
	}
}

// classifyQuality derives the quality tier from the price relative to the
// product base price. A missing base price defaults to standard.
func classifyQuality(price, basePrice float64) Quality {
	if basePrice <= 0 {
		return QualityStandard
	}
	ratio := price / basePrice
	switch {
	case ratio < 0.8:
		return QualityBasic
	case ratio > 1.2:
		return QualityPremium
	default:
		return QualityStandard
	}
}
