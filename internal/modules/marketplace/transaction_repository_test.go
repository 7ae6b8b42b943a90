package marketplace

import (
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbtest "github.com/openmandi/marketpulse/internal/testing"
)

func mustExec(t *testing.T, db *sql.DB, query string, args ...interface{}) {
	t.Helper()
	_, err := db.Exec(query, args...)
	require.NoError(t, err)
}

func seedUser(t *testing.T, db *sql.DB, userID, userType, location string, now time.Time) {
	t.Helper()
	var loc interface{}
	if location != "" {
		loc = location
	}
	mustExec(t, db, `INSERT INTO users (user_id, name, user_type, location, created_at) VALUES (?, ?, ?, ?, ?)`,
		userID, userID, userType, loc, now.Unix())
}

func seedProduct(t *testing.T, db *sql.DB, productID, vendorID, category, subcategory string, basePrice float64, now time.Time) {
	t.Helper()
	mustExec(t, db, `INSERT INTO products (product_id, vendor_id, name, category, subcategory, base_price, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		productID, vendorID, productID, category, subcategory, basePrice, now.Unix())
}

func seedCompletedTransaction(t *testing.T, db *sql.DB, txID, vendorID, productID string, amount float64, completedAt time.Time, location, metadata string) {
	t.Helper()
	var loc, meta interface{}
	if location != "" {
		loc = location
	}
	if metadata != "" {
		meta = metadata
	}
	mustExec(t, db, `INSERT INTO transactions (transaction_id, vendor_id, buyer_id, product_id, amount, status, completed_at, location, metadata, created_at) VALUES (?, ?, ?, ?, ?, 'completed', ?, ?, ?, ?)`,
		txID, vendorID, "buyer-1", productID, amount, completedAt.Unix(), loc, meta, completedAt.Unix())
}

func TestRecentCompletedJoinsProductAndVendor(t *testing.T) {
	now := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)

	db, cleanup := dbtest.NewTestDB(t, "marketplace")
	defer cleanup()
	conn := db.Conn()

	seedUser(t, conn, "vendor-1", "vendor", `{"city":"Jaipur","state":"Rajasthan"}`, now)
	seedUser(t, conn, "buyer-1", "buyer", "", now)
	mustExec(t, conn, `INSERT INTO vendor_profiles (vendor_id, reputation, specializations, created_at) VALUES (?, ?, ?, ?)`,
		"vendor-1", `{"overall": 4.2}`, `["mobile"]`, now.Unix())
	seedProduct(t, conn, "product-1", "vendor-1", "electronics", "mobile", 2000, now)
	seedCompletedTransaction(t, conn, "tx-1", "vendor-1", "product-1", 2500, now.Add(-30*time.Minute),
		`{"city":"Udaipur"}`, `{"negotiationDuration": 240}`)

	repo := NewTransactionRepository(conn, zerolog.Nop())

	txs, err := repo.RecentCompleted(now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, txs, 1)

	tx := txs[0]
	assert.Equal(t, "tx-1", tx.TransactionID)
	assert.Equal(t, 2500.0, tx.Amount)
	assert.Equal(t, "electronics", tx.Category)
	assert.Equal(t, "mobile", tx.Subcategory)
	assert.Equal(t, 2000.0, tx.BasePrice)
	assert.Equal(t, 4.2, tx.VendorReputation)

	// Transaction-level location wins over the vendor's account location.
	require.NotNil(t, tx.Location)
	assert.Equal(t, "Udaipur", tx.Location.City)
	require.NotNil(t, tx.VendorLocation)
	assert.Equal(t, "Jaipur", tx.VendorLocation.City)
	assert.Equal(t, "Udaipur", tx.MarketLocation().City)

	require.NotNil(t, tx.Metadata.NegotiationDuration)
	assert.Equal(t, 240.0, *tx.Metadata.NegotiationDuration)
}

func TestRecentCompletedDefaultsReputationWithoutProfile(t *testing.T) {
	now := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)

	db, cleanup := dbtest.NewTestDB(t, "marketplace")
	defer cleanup()
	conn := db.Conn()

	seedUser(t, conn, "vendor-1", "vendor", `{"city":"Jaipur"}`, now)
	seedUser(t, conn, "buyer-1", "buyer", "", now)
	seedProduct(t, conn, "product-1", "vendor-1", "electronics", "", 2000, now)
	seedCompletedTransaction(t, conn, "tx-1", "vendor-1", "product-1", 2000, now.Add(-time.Minute), "", "")

	repo := NewTransactionRepository(conn, zerolog.Nop())

	txs, err := repo.RecentCompleted(now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, 0.0, txs[0].VendorReputation)
	assert.Nil(t, txs[0].Location)
	require.NotNil(t, txs[0].MarketLocation())
	assert.Equal(t, "Jaipur", txs[0].MarketLocation().City)
}

func TestRecentCompletedToleratesMalformedJSON(t *testing.T) {
	now := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)

	db, cleanup := dbtest.NewTestDB(t, "marketplace")
	defer cleanup()
	conn := db.Conn()

	seedUser(t, conn, "vendor-1", "vendor", "not json", now)
	seedUser(t, conn, "buyer-1", "buyer", "", now)
	seedProduct(t, conn, "product-1", "vendor-1", "electronics", "", 2000, now)
	seedCompletedTransaction(t, conn, "tx-1", "vendor-1", "product-1", 2000, now.Add(-time.Minute), "{broken", "{broken")

	repo := NewTransactionRepository(conn, zerolog.Nop())

	// The row degrades to no location/metadata instead of failing the batch.
	txs, err := repo.RecentCompleted(now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Nil(t, txs[0].Location)
	assert.Nil(t, txs[0].VendorLocation)
	assert.Nil(t, txs[0].Metadata.NegotiationDuration)
	assert.Nil(t, txs[0].MarketLocation())
}

func TestMarkProcessedExcludesAndIsIdempotent(t *testing.T) {
	now := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)

	db, cleanup := dbtest.NewTestDB(t, "marketplace")
	defer cleanup()
	conn := db.Conn()

	seedUser(t, conn, "vendor-1", "vendor", `{"city":"Jaipur"}`, now)
	seedUser(t, conn, "buyer-1", "buyer", "", now)
	seedProduct(t, conn, "product-1", "vendor-1", "electronics", "", 2000, now)
	seedCompletedTransaction(t, conn, "tx-1", "vendor-1", "product-1", 2000, now.Add(-time.Minute), "", "")

	repo := NewTransactionRepository(conn, zerolog.Nop())

	require.NoError(t, repo.MarkProcessed("tx-1", now))
	require.NoError(t, repo.MarkProcessed("tx-1", now.Add(time.Hour))) // duplicate marker ignored

	count, err := repo.ProcessedCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	txs, err := repo.RecentCompleted(now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, txs)
}
