package marketplace

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/openmandi/marketpulse/internal/domain"
)

// TransactionRepository reads completed transactions and manages the
// processed-transaction markers that make normalization idempotent.
type TransactionRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *sql.DB, log zerolog.Logger) *TransactionRepository {
	return &TransactionRepository{
		db:  db,
		log: log.With().Str("repo", "transaction").Logger(),
	}
}

// RecentCompleted returns completed transactions since the given time that
// do not yet carry a processed marker, joined with product and vendor data.
// Vendor reputation defaults to 0 when the vendor has no profile.
func (r *TransactionRepository) RecentCompleted(since time.Time) ([]CompletedTransaction, error) {
	query := `
		SELECT
			t.transaction_id,
			t.vendor_id,
			t.buyer_id,
			t.product_id,
			t.amount,
			t.completed_at,
			t.location,
			t.metadata,
			p.category,
			COALESCE(p.subcategory, ''),
			p.name,
			p.base_price,
			COALESCE(json_extract(vp.reputation, '$.overall'), 0),
			u.location
		FROM transactions t
		JOIN products p ON t.product_id = p.product_id
		JOIN users u ON t.vendor_id = u.user_id
		LEFT JOIN vendor_profiles vp ON t.vendor_id = vp.vendor_id
		WHERE t.status = 'completed'
		AND t.completed_at >= ?
		AND t.product_id IS NOT NULL
		AND NOT EXISTS (
			SELECT 1 FROM market_data_processed mdp
			WHERE mdp.transaction_id = t.transaction_id
		)
		ORDER BY t.completed_at
	`

	rows, err := r.db.Query(query, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query recent completed transactions: %w", err)
	}
	defer rows.Close()

	var transactions []CompletedTransaction
	for rows.Next() {
		var (
			tx             CompletedTransaction
			completedAt    int64
			txLocation     sql.NullString
			metadata       sql.NullString
			vendorLocation sql.NullString
		)

		if err := rows.Scan(
			&tx.TransactionID,
			&tx.VendorID,
			&tx.BuyerID,
			&tx.ProductID,
			&tx.Amount,
			&completedAt,
			&txLocation,
			&metadata,
			&tx.Category,
			&tx.Subcategory,
			&tx.ProductName,
			&tx.BasePrice,
			&tx.VendorReputation,
			&vendorLocation,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}

		tx.CompletedAt = time.Unix(completedAt, 0)

		// Malformed location or metadata JSON on a single row must not
		// abort the batch; the row degrades to "no location"/"no metadata".
		if txLocation.Valid {
			loc, err := domain.ParseLocation([]byte(txLocation.String))
			if err != nil {
				r.log.Warn().Err(err).Str("transaction_id", tx.TransactionID).Msg("Skipping unparseable transaction location")
			} else {
				tx.Location = loc
			}
		}
		if vendorLocation.Valid {
			loc, err := domain.ParseLocation([]byte(vendorLocation.String))
			if err != nil {
				r.log.Warn().Err(err).Str("transaction_id", tx.TransactionID).Msg("Skipping unparseable vendor location")
			} else {
				tx.VendorLocation = loc
			}
		}
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &tx.Metadata); err != nil {
				r.log.Warn().Err(err).Str("transaction_id", tx.TransactionID).Msg("Skipping unparseable transaction metadata")
			}
		}

		transactions = append(transactions, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transaction rows: %w", err)
	}

	return transactions, nil
}

// MarkProcessed durably records that a transaction has contributed a market
// data point. INSERT OR IGNORE keeps the marker unique even across
// overlapping or retried cycles.
func (r *TransactionRepository) MarkProcessed(transactionID string, processedAt time.Time) error {
	_, err := r.db.Exec(
		`INSERT OR IGNORE INTO market_data_processed (transaction_id, processed_at) VALUES (?, ?)`,
		transactionID, processedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark transaction %s processed: %w", transactionID, err)
	}
	return nil
}

// ProcessedCount returns the number of processed-transaction markers.
func (r *TransactionRepository) ProcessedCount() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM market_data_processed`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count processed markers: %w", err)
	}
	return count, nil
}
