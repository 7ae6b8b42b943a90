package marketplace

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
)

// CatalogRepository aggregates the product/vendor catalog into per-category
// competitor views. All queries run against the current relational state,
// not historical data-point content.
type CatalogRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *sql.DB, log zerolog.Logger) *CatalogRepository {
	return &CatalogRepository{
		db:  db,
		log: log.With().Str("repo", "catalog").Logger(),
	}
}

// CompetitorsByCategory returns vendors active in a category, ranked by
// reputation. Only vendors with at least minProducts listed products are
// eligible; the result is capped at limit.
func (r *CatalogRepository) CompetitorsByCategory(category string, minProducts, limit int) ([]VendorCompetitor, error) {
	query := `
		SELECT
			p.vendor_id,
			AVG(p.base_price) AS average_price,
			COUNT(*) AS product_count,
			COALESCE(AVG(json_extract(vp.reputation, '$.overall')), 0) AS reputation,
			COALESCE(vp.specializations, '[]')
		FROM products p
		LEFT JOIN vendor_profiles vp ON p.vendor_id = vp.vendor_id
		WHERE p.category = ?
		GROUP BY p.vendor_id, vp.specializations
		HAVING COUNT(*) >= ?
		ORDER BY reputation DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, category, minProducts, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query competitors for category %s: %w", category, err)
	}
	defer rows.Close()

	return r.scanCompetitors(rows)
}

// TopCompetitors returns the highest-reputation vendors in a category
// (optionally narrowed to a subcategory), with no minimum product count.
// Used by the price recommendation engine.
func (r *CatalogRepository) TopCompetitors(category, subcategory string, limit int) ([]VendorCompetitor, error) {
	query := `
		SELECT
			p.vendor_id,
			AVG(p.base_price) AS average_price,
			COUNT(*) AS product_count,
			COALESCE(AVG(json_extract(vp.reputation, '$.overall')), 0) AS reputation,
			COALESCE(vp.specializations, '[]')
		FROM products p
		LEFT JOIN vendor_profiles vp ON p.vendor_id = vp.vendor_id
		WHERE p.category = ?
	`
	args := []interface{}{category}
	if subcategory != "" {
		query += ` AND p.subcategory = ?`
		args = append(args, subcategory)
	}
	query += `
		GROUP BY p.vendor_id, vp.specializations
		ORDER BY reputation DESC
		LIMIT ?
	`
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query top competitors for category %s: %w", category, err)
	}
	defer rows.Close()

	return r.scanCompetitors(rows)
}

func (r *CatalogRepository) scanCompetitors(rows *sql.Rows) ([]VendorCompetitor, error) {
	var competitors []VendorCompetitor
	for rows.Next() {
		var (
			comp            VendorCompetitor
			specializations string
		)
		if err := rows.Scan(
			&comp.VendorID,
			&comp.AveragePrice,
			&comp.ProductCount,
			&comp.Reputation,
			&specializations,
		); err != nil {
			return nil, fmt.Errorf("failed to scan competitor row: %w", err)
		}

		if err := json.Unmarshal([]byte(specializations), &comp.Specializations); err != nil {
			r.log.Warn().Err(err).Str("vendor_id", comp.VendorID).Msg("Unparseable specializations, defaulting to empty")
			comp.Specializations = []string{}
		}
		if comp.Specializations == nil {
			comp.Specializations = []string{}
		}

		competitors = append(competitors, comp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate competitor rows: %w", err)
	}

	return competitors, nil
}
