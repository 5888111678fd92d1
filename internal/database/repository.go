package database

import (
	"context"
	"time"
)

// Repository provides data access methods
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck performs a database health check
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// ============================================================================
// RECOMMENDATIONS
// ============================================================================

// UpsertRecommendation inserts a recommendation or, when a row already
// exists for (symbol, trade_date), refreshes it in place. The unique key
// guarantees no duplicate rows for the same symbol-day.
func (r *Repository) UpsertRecommendation(ctx context.Context, rec *Recommendation) error {
	query := `
		INSERT INTO recommendations (
			symbol, trade_date, sector, probability, price, volume, rel_volume, rsi,
			ref_price_1020, peak_high_1020, trough_1020,
			ref_price_1200, peak_high_1200, trough_1200,
			ref_price_1400, peak_high_1400, trough_1400
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (symbol, trade_date) DO UPDATE SET
			sector = EXCLUDED.sector,
			probability = EXCLUDED.probability,
			price = EXCLUDED.price,
			volume = EXCLUDED.volume,
			rel_volume = EXCLUDED.rel_volume,
			rsi = EXCLUDED.rsi,
			ref_price_1020 = EXCLUDED.ref_price_1020,
			peak_high_1020 = EXCLUDED.peak_high_1020,
			trough_1020 = EXCLUDED.trough_1020,
			ref_price_1200 = EXCLUDED.ref_price_1200,
			peak_high_1200 = EXCLUDED.peak_high_1200,
			trough_1200 = EXCLUDED.trough_1200,
			ref_price_1400 = EXCLUDED.ref_price_1400,
			peak_high_1400 = EXCLUDED.peak_high_1400,
			trough_1400 = EXCLUDED.trough_1400,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id, created_at, updated_at
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		rec.Symbol, rec.Date, rec.Sector, rec.Probability, rec.Price, rec.Volume, rec.RelVolume, rec.RSI,
		rec.RefPrice1020, rec.PeakHigh1020, rec.Trough1020,
		rec.RefPrice1200, rec.PeakHigh1200, rec.Trough1200,
		rec.RefPrice1400, rec.PeakHigh1400, rec.Trough1400,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
}

// UpdateRecommendationWindows refreshes only the window statistics of an
// existing recommendation, keyed by (symbol, trade_date).
func (r *Repository) UpdateRecommendationWindows(ctx context.Context, rec *Recommendation) error {
	query := `
		UPDATE recommendations SET
			ref_price_1020 = $3, peak_high_1020 = $4, trough_1020 = $5,
			ref_price_1200 = $6, peak_high_1200 = $7, trough_1200 = $8,
			ref_price_1400 = $9, peak_high_1400 = $10, trough_1400 = $11,
			updated_at = CURRENT_TIMESTAMP
		WHERE symbol = $1 AND trade_date = $2
	`
	_, err := r.db.Pool.Exec(
		ctx, query,
		rec.Symbol, rec.Date,
		rec.RefPrice1020, rec.PeakHigh1020, rec.Trough1020,
		rec.RefPrice1200, rec.PeakHigh1200, rec.Trough1200,
		rec.RefPrice1400, rec.PeakHigh1400, rec.Trough1400,
	)
	return err
}

// GetRecommendationsByDate retrieves all recommendations for one day
func (r *Repository) GetRecommendationsByDate(ctx context.Context, date time.Time) ([]*Recommendation, error) {
	query := recommendationSelect + `
		WHERE trade_date = $1
		ORDER BY probability DESC, symbol
	`
	return r.queryRecommendations(ctx, query, date)
}

// GetRecommendationsBetween retrieves recommendations over a date range,
// inclusive, ordered by date then symbol. Used by the backtest engine.
func (r *Repository) GetRecommendationsBetween(ctx context.Context, from, to time.Time) ([]*Recommendation, error) {
	query := recommendationSelect + `
		WHERE trade_date >= $1 AND trade_date <= $2
		ORDER BY trade_date, symbol
	`
	return r.queryRecommendations(ctx, query, from, to)
}

const recommendationSelect = `
	SELECT id, symbol, trade_date, sector, probability, price, volume, rel_volume, rsi,
	       ref_price_1020, peak_high_1020, trough_1020,
	       ref_price_1200, peak_high_1200, trough_1200,
	       ref_price_1400, peak_high_1400, trough_1400,
	       created_at, updated_at
	FROM recommendations
`

func (r *Repository) queryRecommendations(ctx context.Context, query string, args ...interface{}) ([]*Recommendation, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*Recommendation
	for rows.Next() {
		rec := &Recommendation{}
		err := rows.Scan(
			&rec.ID, &rec.Symbol, &rec.Date, &rec.Sector, &rec.Probability,
			&rec.Price, &rec.Volume, &rec.RelVolume, &rec.RSI,
			&rec.RefPrice1020, &rec.PeakHigh1020, &rec.Trough1020,
			&rec.RefPrice1200, &rec.PeakHigh1200, &rec.Trough1200,
			&rec.RefPrice1400, &rec.PeakHigh1400, &rec.Trough1400,
			&rec.CreatedAt, &rec.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// ============================================================================
// TRADE LOG
// ============================================================================

// CreateTradeLogEntry appends a trade log entry. The trade log is an
// append-only audit trail; there is deliberately no update method.
func (r *Repository) CreateTradeLogEntry(ctx context.Context, entry *TradeLogEntry) error {
	query := `
		INSERT INTO trade_log (
			session_id, symbol, status, reason, entry_price, quantity,
			take_profit_price, stop_loss_price, entry_order_id, tp_order_id, sl_order_id, attempts
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		entry.SessionID, entry.Symbol, entry.Status, entry.Reason,
		entry.EntryPrice, entry.Quantity, entry.TakeProfitPrice, entry.StopLossPrice,
		entry.EntryOrderID, entry.TPOrderID, entry.SLOrderID, entry.Attempts,
	).Scan(&entry.ID, &entry.CreatedAt)
}

// GetTradeLogBySession retrieves all entries for one execution session
func (r *Repository) GetTradeLogBySession(ctx context.Context, sessionID string) ([]*TradeLogEntry, error) {
	query := `
		SELECT id, session_id, symbol, status, reason, entry_price, quantity,
		       take_profit_price, stop_loss_price, entry_order_id, tp_order_id, sl_order_id,
		       attempts, created_at
		FROM trade_log
		WHERE session_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.Pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*TradeLogEntry
	for rows.Next() {
		entry := &TradeLogEntry{}
		err := rows.Scan(
			&entry.ID, &entry.SessionID, &entry.Symbol, &entry.Status, &entry.Reason,
			&entry.EntryPrice, &entry.Quantity, &entry.TakeProfitPrice, &entry.StopLossPrice,
			&entry.EntryOrderID, &entry.TPOrderID, &entry.SLOrderID,
			&entry.Attempts, &entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
