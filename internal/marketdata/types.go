package marketdata

import "time"

// Bar represents a single minute candle for one symbol.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// PricePath is the ordered minute-bar sequence for one symbol on one
// trading day. It is immutable once fetched; bar timestamps are in the
// market's local timezone.
type PricePath struct {
	Symbol   string         `json:"symbol"`
	Date     time.Time      `json:"date"` // trading day, midnight market-local
	Bars     []Bar          `json:"bars"`
	Location *time.Location `json:"-"`
}

// SessionClose is the regular-session close in market-local time.
var SessionClose = Cutoff{Hour: 16, Minute: 0}

// Cutoff is a time-of-day in the market's local timezone.
type Cutoff struct {
	Hour   int
	Minute int
}

// MinutesOfDay returns the cutoff as minutes since midnight.
func (c Cutoff) MinutesOfDay() int {
	return c.Hour*60 + c.Minute
}

// Contains reports whether t is at or after the cutoff on its own day.
func (c Cutoff) Contains(t time.Time) bool {
	return t.Hour()*60+t.Minute() >= c.MinutesOfDay()
}
