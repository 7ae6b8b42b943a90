package marketplace

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// StatsRepository serves the read-only aggregate counts used by the
// analytics dashboard.
type StatsRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewStatsRepository creates a new stats repository
func NewStatsRepository(db *sql.DB, log zerolog.Logger) *StatsRepository {
	return &StatsRepository{
		db:  db,
		log: log.With().Str("repo", "stats").Logger(),
	}
}

// TransactionTotals summarizes completed transactions since the given time.
func (r *StatsRepository) TransactionTotals(since time.Time) (TransactionTotals, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(amount), 0),
			COALESCE(AVG(amount), 0),
			COUNT(DISTINCT vendor_id),
			COUNT(DISTINCT buyer_id)
		FROM transactions
		WHERE status = 'completed'
		AND completed_at >= ?
	`

	var totals TransactionTotals
	err := r.db.QueryRow(query, since.Unix()).Scan(
		&totals.TotalTransactions,
		&totals.TotalValue,
		&totals.AverageValue,
		&totals.ActiveVendors,
		&totals.ActiveBuyers,
	)
	if err != nil {
		return TransactionTotals{}, fmt.Errorf("failed to query transaction totals: %w", err)
	}

	return totals, nil
}

// CategoryProductStats returns product counts and average base prices per
// category, most populated categories first.
func (r *StatsRepository) CategoryProductStats() ([]CategoryProductStat, error) {
	query := `
		SELECT category, COUNT(*), COALESCE(AVG(base_price), 0)
		FROM products
		GROUP BY category
		ORDER BY COUNT(*) DESC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query category product stats: %w", err)
	}
	defer rows.Close()

	var stats []CategoryProductStat
	for rows.Next() {
		var stat CategoryProductStat
		if err := rows.Scan(&stat.Category, &stat.ProductCount, &stat.AveragePrice); err != nil {
			return nil, fmt.Errorf("failed to scan category stat row: %w", err)
		}
		stats = append(stats, stat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate category stat rows: %w", err)
	}

	return stats, nil
}
