package marketdata

import (
	"time"

	"github.com/openmandi/marketpulse/internal/domain"
)

// stubPointSource serves canned points to the query-time engines, honoring
// the category/city/since narrowing the engines rely on.
type stubPointSource struct {
	points []MarketDataPoint
	err    error
}

func (s *stubPointSource) PointsSince(f PointFilter) ([]MarketDataPoint, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []MarketDataPoint
	for _, p := range s.points {
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.Subcategory != "" && p.Subcategory != f.Subcategory {
			continue
		}
		if f.City != "" && p.Location.City != f.City {
			continue
		}
		if p.Timestamp.Before(f.Since) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// testPoint builds a data point carrying one price point per price, with a
// fixed vendor reputation of 4.0.
func testPoint(category, city string, ts time.Time, prices ...float64) MarketDataPoint {
	pricePoints := make([]PricePoint, 0, len(prices))
	for _, price := range prices {
		pricePoints = append(pricePoints, PricePoint{
			Price:            price,
			Quantity:         1,
			VendorReputation: 4.0,
			TimeOfDay:        ts.Format("15:04"),
			DayOfWeek:        ts.Weekday().String(),
			Quality:          QualityStandard,
			Verified:         true,
		})
	}
	return MarketDataPoint{
		Category:           category,
		Location:           domain.Location{City: city, State: "Test State"},
		PricePoints:        pricePoints,
		DemandIndicators:   []DemandIndicator{},
		SeasonalFactors:    []SeasonalFactor{},
		CompetitorAnalysis: []CompetitorSummary{},
		Timestamp:          ts,
		DataSource:         "transaction_data",
		Reliability:        1.0,
	}
}
