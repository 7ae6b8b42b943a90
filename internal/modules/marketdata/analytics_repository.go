package marketdata

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/openmandi/marketpulse/internal/database"
	"github.com/openmandi/marketpulse/internal/domain"
)

// pointDocument is the msgpack-encoded part of a market_data row: the nested
// arrays plus the optional coordinates. The scalar columns carry everything
// the query paths filter on.
type pointDocument struct {
	PricePoints        []PricePoint        `msgpack:"pricePoints"`
	DemandIndicators   []DemandIndicator   `msgpack:"demandIndicators"`
	SeasonalFactors    []SeasonalFactor    `msgpack:"seasonalFactors"`
	CompetitorAnalysis []CompetitorSummary `msgpack:"competitorAnalysis"`
	Coordinates        *domain.Coordinates `msgpack:"coordinates"`
}

// PointFilter narrows analytics-store reads. Zero-value fields are ignored.
type PointFilter struct {
	Category    string
	Subcategory string
	City        string
	Since       time.Time
}

// CoverageStats reports analytics-store coverage over a window.
type CoverageStats struct {
	TotalDataPoints int
	Categories      []string
	Cities          []string
}

// AnalyticsRepository is the document store for market data points. It is
// written only by the collection cycle (normalizer and competitor
// aggregator) and read-only everywhere else.
type AnalyticsRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewAnalyticsRepository creates a new analytics repository
func NewAnalyticsRepository(db *sql.DB, log zerolog.Logger) *AnalyticsRepository {
	return &AnalyticsRepository{
		db:  db,
		log: log.With().Str("repo", "analytics").Logger(),
	}
}

// InsertPoint persists one market data point. A missing DataID is assigned.
func (r *AnalyticsRepository) InsertPoint(p MarketDataPoint) error {
	if p.DataID == "" {
		p.DataID = uuid.NewString()
	}

	doc := pointDocument{
		PricePoints:        p.PricePoints,
		DemandIndicators:   p.DemandIndicators,
		SeasonalFactors:    p.SeasonalFactors,
		CompetitorAnalysis: p.CompetitorAnalysis,
		Coordinates:        p.Location.Coordinates,
	}
	blob, err := msgpack.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode point document: %w", err)
	}

	hasCompetitorData := 0
	if len(p.CompetitorAnalysis) > 0 {
		hasCompetitorData = 1
	}

	_, err = r.db.Exec(`
		INSERT INTO market_data
		(data_id, category, subcategory, city, state, timestamp, data_source, reliability, has_competitor_data, document)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.DataID,
		p.Category,
		p.Subcategory,
		p.Location.City,
		p.Location.State,
		p.Timestamp.Unix(),
		p.DataSource,
		p.Reliability,
		hasCompetitorData,
		blob,
	)
	if err != nil {
		return fmt.Errorf("failed to insert market data point: %w", err)
	}

	return nil
}

// PointsSince returns decoded points matching the filter, oldest first.
func (r *AnalyticsRepository) PointsSince(f PointFilter) ([]MarketDataPoint, error) {
	query := `
		SELECT data_id, category, subcategory, city, state, timestamp, data_source, reliability, document
		FROM market_data
		WHERE timestamp >= ?
	`
	args := []interface{}{f.Since.Unix()}
	if f.Category != "" {
		query += ` AND category = ?`
		args = append(args, f.Category)
	}
	if f.Subcategory != "" {
		query += ` AND subcategory = ?`
		args = append(args, f.Subcategory)
	}
	if f.City != "" {
		query += ` AND city = ?`
		args = append(args, f.City)
	}
	query += ` ORDER BY timestamp`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query market data points: %w", err)
	}
	defer rows.Close()

	var points []MarketDataPoint
	for rows.Next() {
		point, err := scanPoint(rows)
		if err != nil {
			return nil, err
		}
		points = append(points, point)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate market data rows: %w", err)
	}

	return points, nil
}

// CategoriesWithPointsSince returns the distinct categories that received
// new data points since the given time.
func (r *AnalyticsRepository) CategoriesWithPointsSince(since time.Time) ([]string, error) {
	rows, err := r.db.Query(
		`SELECT DISTINCT category FROM market_data WHERE timestamp >= ? ORDER BY category`,
		since.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var category string
		if err := rows.Scan(&category); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, category)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate categories: %w", err)
	}

	return categories, nil
}

// AttachCompetitorAnalysis writes the given competitor summaries onto every
// point in the category since the given time that does not yet carry
// competitor data. Points already annotated are left untouched, so
// re-running the aggregator is a no-op rather than a correctness risk.
// Returns the number of points annotated.
func (r *AnalyticsRepository) AttachCompetitorAnalysis(category string, since time.Time, summaries []CompetitorSummary) (int, error) {
	attached := 0

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		rows, err := tx.Query(`
			SELECT data_id, document
			FROM market_data
			WHERE category = ? AND timestamp >= ? AND has_competitor_data = 0
		`, category, since.Unix())
		if err != nil {
			return fmt.Errorf("failed to query unannotated points: %w", err)
		}

		type pending struct {
			dataID string
			doc    pointDocument
		}
		var updates []pending

		for rows.Next() {
			var (
				dataID string
				blob   []byte
			)
			if err := rows.Scan(&dataID, &blob); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan unannotated point: %w", err)
			}

			var doc pointDocument
			if err := msgpack.Unmarshal(blob, &doc); err != nil {
				rows.Close()
				return fmt.Errorf("failed to decode point document %s: %w", dataID, err)
			}

			doc.CompetitorAnalysis = summaries
			updates = append(updates, pending{dataID: dataID, doc: doc})
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("failed to iterate unannotated points: %w", err)
		}
		rows.Close()

		for _, u := range updates {
			blob, err := msgpack.Marshal(u.doc)
			if err != nil {
				return fmt.Errorf("failed to encode updated document %s: %w", u.dataID, err)
			}
			if _, err := tx.Exec(
				`UPDATE market_data SET document = ?, has_competitor_data = 1 WHERE data_id = ?`,
				blob, u.dataID,
			); err != nil {
				return fmt.Errorf("failed to update document %s: %w", u.dataID, err)
			}
			attached++
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return attached, nil
}

// PurgeOlderThan deletes points older than the cutoff (retention pass).
func (r *AnalyticsRepository) PurgeOlderThan(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM market_data WHERE timestamp < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge old market data: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read purge row count: %w", err)
	}
	return deleted, nil
}

// CoverageStats reports point count and distinct category/city coverage
// since the given time.
func (r *AnalyticsRepository) CoverageStats(since time.Time) (CoverageStats, error) {
	var stats CoverageStats

	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM market_data WHERE timestamp >= ?`, since.Unix(),
	).Scan(&stats.TotalDataPoints)
	if err != nil {
		return CoverageStats{}, fmt.Errorf("failed to count data points: %w", err)
	}

	stats.Categories, err = r.distinctSince("category", since)
	if err != nil {
		return CoverageStats{}, err
	}
	stats.Cities, err = r.distinctSince("city", since)
	if err != nil {
		return CoverageStats{}, err
	}

	return stats, nil
}

func (r *AnalyticsRepository) distinctSince(column string, since time.Time) ([]string, error) {
	// column is one of the fixed identifiers below, never user input
	query := fmt.Sprintf(
		`SELECT DISTINCT %s FROM market_data WHERE timestamp >= ? ORDER BY %s`,
		column, column,
	)
	rows, err := r.db.Query(query, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query distinct %s: %w", column, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("failed to scan distinct %s: %w", column, err)
		}
		values = append(values, value)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate distinct %s: %w", column, err)
	}

	return values, nil
}

func scanPoint(rows *sql.Rows) (MarketDataPoint, error) {
	var (
		point     MarketDataPoint
		timestamp int64
		blob      []byte
	)
	if err := rows.Scan(
		&point.DataID,
		&point.Category,
		&point.Subcategory,
		&point.Location.City,
		&point.Location.State,
		&timestamp,
		&point.DataSource,
		&point.Reliability,
		&blob,
	); err != nil {
		return MarketDataPoint{}, fmt.Errorf("failed to scan market data row: %w", err)
	}

	var doc pointDocument
	if err := msgpack.Unmarshal(blob, &doc); err != nil {
		return MarketDataPoint{}, fmt.Errorf("failed to decode point document %s: %w", point.DataID, err)
	}

	point.Timestamp = time.Unix(timestamp, 0)
	point.PricePoints = doc.PricePoints
	point.DemandIndicators = doc.DemandIndicators
	point.SeasonalFactors = doc.SeasonalFactors
	point.CompetitorAnalysis = doc.CompetitorAnalysis
	point.Location.Coordinates = doc.Coordinates

	return point, nil
}
