package marketplace

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbtest "github.com/openmandi/marketpulse/internal/testing"
)

func TestCompetitorsByCategoryMinimumProducts(t *testing.T) {
	now := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)

	db, cleanup := dbtest.NewTestDB(t, "marketplace")
	defer cleanup()
	conn := db.Conn()

	// vendor-1 qualifies with three products, vendor-2 does not with two.
	seedUser(t, conn, "vendor-1", "vendor", "", now)
	seedUser(t, conn, "vendor-2", "vendor", "", now)
	mustExec(t, conn, `INSERT INTO vendor_profiles (vendor_id, reputation, specializations, created_at) VALUES (?, ?, ?, ?)`,
		"vendor-1", `{"overall": 4.0}`, `["mobile"]`, now.Unix())
	mustExec(t, conn, `INSERT INTO vendor_profiles (vendor_id, reputation, specializations, created_at) VALUES (?, ?, ?, ?)`,
		"vendor-2", `{"overall": 4.9}`, `[]`, now.Unix())

	for i := 1; i <= 3; i++ {
		seedProduct(t, conn, fmt.Sprintf("p1-%d", i), "vendor-1", "electronics", "mobile", 2000, now)
	}
	for i := 1; i <= 2; i++ {
		seedProduct(t, conn, fmt.Sprintf("p2-%d", i), "vendor-2", "electronics", "mobile", 1500, now)
	}

	repo := NewCatalogRepository(conn, zerolog.Nop())

	competitors, err := repo.CompetitorsByCategory("electronics", 3, 20)
	require.NoError(t, err)
	require.Len(t, competitors, 1)

	comp := competitors[0]
	assert.Equal(t, "vendor-1", comp.VendorID)
	assert.Equal(t, 3, comp.ProductCount)
	assert.InDelta(t, 2000.0, comp.AveragePrice, 0.001)
	assert.InDelta(t, 4.0, comp.Reputation, 0.001)
	assert.Equal(t, []string{"mobile"}, comp.Specializations)
}

func TestCompetitorsByCategoryOrdersByReputation(t *testing.T) {
	now := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)

	db, cleanup := dbtest.NewTestDB(t, "marketplace")
	defer cleanup()
	conn := db.Conn()

	for i, rep := range []float64{3.5, 4.8, 4.1} {
		vendorID := fmt.Sprintf("vendor-%d", i+1)
		seedUser(t, conn, vendorID, "vendor", "", now)
		mustExec(t, conn, `INSERT INTO vendor_profiles (vendor_id, reputation, specializations, created_at) VALUES (?, ?, ?, ?)`,
			vendorID, fmt.Sprintf(`{"overall": %.1f}`, rep), `[]`, now.Unix())
		seedProduct(t, conn, fmt.Sprintf("p-%d", i+1), vendorID, "handicrafts", "", 300, now)
	}

	repo := NewCatalogRepository(conn, zerolog.Nop())

	competitors, err := repo.CompetitorsByCategory("handicrafts", 1, 2)
	require.NoError(t, err)
	require.Len(t, competitors, 2) // limit applies after ranking

	assert.Equal(t, "vendor-2", competitors[0].VendorID)
	assert.Equal(t, "vendor-3", competitors[1].VendorID)
}

func TestTopCompetitorsSubcategoryFilter(t *testing.T) {
	now := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)

	db, cleanup := dbtest.NewTestDB(t, "marketplace")
	defer cleanup()
	conn := db.Conn()

	seedUser(t, conn, "vendor-1", "vendor", "", now)
	seedProduct(t, conn, "p-1", "vendor-1", "electronics", "mobile", 2000, now)
	seedProduct(t, conn, "p-2", "vendor-1", "electronics", "audio", 800, now)

	repo := NewCatalogRepository(conn, zerolog.Nop())

	// No subcategory: both products average together.
	competitors, err := repo.TopCompetitors("electronics", "", 10)
	require.NoError(t, err)
	require.Len(t, competitors, 1)
	assert.InDelta(t, 1400.0, competitors[0].AveragePrice, 0.001)
	// No profile row: reputation defaults to zero, specializations to empty.
	assert.Equal(t, 0.0, competitors[0].Reputation)
	assert.Equal(t, []string{}, competitors[0].Specializations)

	competitors, err = repo.TopCompetitors("electronics", "mobile", 10)
	require.NoError(t, err)
	require.Len(t, competitors, 1)
	assert.InDelta(t, 2000.0, competitors[0].AveragePrice, 0.001)
}
