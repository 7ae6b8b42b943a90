// Package marketplace provides read access to the relational transactional
// store (accounts, vendor profiles, products, completed transactions). The
// store is owned by the external CRUD collaborators; the only table the
// intelligence engine writes here is market_data_processed, the idempotency
// marker table.
package marketplace

import (
	"time"

	"github.com/openmandi/marketpulse/internal/domain"
)

// TransactionMetadata carries optional per-transaction signals recorded by
// the negotiation collaborator. Absence of metadata is not an error.
type TransactionMetadata struct {
	NegotiationDuration *float64 `json:"negotiationDuration,omitempty"` // seconds
}

// CompletedTransaction is one completed transaction joined with its product
// and vendor records, ready for normalization into a market data point.
type CompletedTransaction struct {
	TransactionID    string
	VendorID         string
	BuyerID          string
	ProductID        string
	Amount           float64
	CompletedAt      time.Time
	Location         *domain.Location // transaction-level location, may be nil
	Metadata         TransactionMetadata
	Category         string
	Subcategory      string
	ProductName      string
	BasePrice        float64
	VendorReputation float64
	VendorLocation   *domain.Location // vendor account location, may be nil
}

// MarketLocation resolves the location that identifies the market for this
// transaction: the transaction-level location when present, otherwise the
// vendor's account location. Nil means the transaction cannot contribute a
// data point.
func (t CompletedTransaction) MarketLocation() *domain.Location {
	if t.Location != nil && t.Location.Valid() {
		return t.Location
	}
	if t.VendorLocation != nil && t.VendorLocation.Valid() {
		return t.VendorLocation
	}
	return nil
}

// VendorCompetitor is one vendor's aggregated presence in a category.
type VendorCompetitor struct {
	VendorID        string
	AveragePrice    float64
	ProductCount    int
	Reputation      float64
	Specializations []string
}

// TransactionTotals summarizes completed transactions over a window.
type TransactionTotals struct {
	TotalTransactions int
	TotalValue        float64
	AverageValue      float64
	ActiveVendors     int
	ActiveBuyers      int
}

// CategoryProductStat is the per-category product inventory summary.
type CategoryProductStat struct {
	Category     string
	ProductCount int
	AveragePrice float64
}
