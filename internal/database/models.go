package database

import "time"

// Recommendation is a daily equity candidate, unique per (symbol, date).
// The three window stat groups are nullable: a nil RefPrice means the
// market-data provider had no bar at or after that cutoff.
type Recommendation struct {
	ID          int64     `json:"id"`
	Symbol      string    `json:"symbol"`
	Date        time.Time `json:"date"`
	Sector      string    `json:"sector"`
	Probability float64   `json:"probability"` // ingestion score, 0-100
	Price       float64   `json:"price"`       // listed price at ingestion
	Volume      float64   `json:"volume"`
	RelVolume   float64   `json:"rel_volume"`
	RSI         float64   `json:"rsi"`

	RefPrice1020 *float64 `json:"ref_price_1020"`
	PeakHigh1020 *float64 `json:"peak_high_1020"`
	Trough1020   *float64 `json:"trough_1020"`

	RefPrice1200 *float64 `json:"ref_price_1200"`
	PeakHigh1200 *float64 `json:"peak_high_1200"`
	Trough1200   *float64 `json:"trough_1200"`

	RefPrice1400 *float64 `json:"ref_price_1400"`
	PeakHigh1400 *float64 `json:"peak_high_1400"`
	Trough1400   *float64 `json:"trough_1400"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PrimaryWindow returns the 10:20 window stats, or ok=false when the
// window was absent for this day.
func (r *Recommendation) PrimaryWindow() (refPrice, peakHigh, trough float64, ok bool) {
	if r.RefPrice1020 == nil || r.PeakHigh1020 == nil || r.Trough1020 == nil {
		return 0, 0, 0, false
	}
	return *r.RefPrice1020, *r.PeakHigh1020, *r.Trough1020, true
}

// ReferencePrice returns the primary window reference price, falling back
// to the listed price when the reference window is absent. This fallback
// rule is applied uniformly everywhere a live gain is computed.
func (r *Recommendation) ReferencePrice() float64 {
	if r.RefPrice1020 != nil && *r.RefPrice1020 > 0 {
		return *r.RefPrice1020
	}
	return r.Price
}

// Trade log status values. A trade_log row is written exactly once, when
// an execution automaton reaches a terminal state.
const (
	TradeLogStatusFilling   = "filling"
	TradeLogStatusExhausted = "exhausted"
	TradeLogStatusRejected  = "rejected"
)

// TradeLogEntry records the terminal outcome of one automaton run.
type TradeLogEntry struct {
	ID              int64     `json:"id"`
	SessionID       string    `json:"session_id"`
	Symbol          string    `json:"symbol"`
	Status          string    `json:"status"`
	Reason          string    `json:"reason,omitempty"`
	EntryPrice      float64   `json:"entry_price"`
	Quantity        float64   `json:"quantity"`
	TakeProfitPrice float64   `json:"take_profit_price"`
	StopLossPrice   float64   `json:"stop_loss_price"`
	EntryOrderID    string    `json:"entry_order_id,omitempty"`
	TPOrderID       string    `json:"tp_order_id,omitempty"`
	SLOrderID       string    `json:"sl_order_id,omitempty"`
	Attempts        int       `json:"attempts"`
	CreatedAt       time.Time `json:"created_at"`
}
