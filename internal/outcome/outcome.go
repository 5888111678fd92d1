// Package outcome maps reference-window excursion statistics and a TP/SL
// parameter pair to the realized, clamped return of a hypothetical trade.
package outcome

import (
	"errors"

	"equity-trading-bot/internal/excursion"
)

// ErrInvalidReferencePrice is returned for a zero or negative reference
// price. The record is skipped; this is local and non-retryable.
var ErrInvalidReferencePrice = errors.New("invalid reference price")

// Class is the outcome classification of a simulated trade.
type Class string

const (
	HitTakeProfit Class = "hit_take_profit"
	HitStopLoss   Class = "hit_stop_loss"
	Neither       Class = "neither"
)

// TradeOutcome is the evaluated result for one recommendation and one
// (takeProfitPct, stopLossPct) pair. Derived on demand, never persisted.
type TradeOutcome struct {
	RawExcursionPct        float64 `json:"raw_excursion_pct"`
	MaxAdverseExcursionPct float64 `json:"max_adverse_excursion_pct"`
	ClampedReturnPct       float64 `json:"clamped_return_pct"`
	Class                  Class   `json:"class"`
}

// Evaluate computes the trade outcome for the given window statistics.
// Deterministic and free of I/O. The stop-loss takes precedence: if the
// adverse excursion breaches -stopLossPct the trade is stopped out no
// matter how high the path later peaked, because the stop fires first.
func Evaluate(stats excursion.WindowStats, takeProfitPct, stopLossPct float64) (TradeOutcome, error) {
	if stats.RefPrice <= 0 {
		return TradeOutcome{}, ErrInvalidReferencePrice
	}

	raw := (stats.PeakHigh - stats.RefPrice) / stats.RefPrice * 100
	adverse := (stats.TroughBeforePeak - stats.RefPrice) / stats.RefPrice * 100

	stoppedOut := adverse < -stopLossPct

	effective := raw
	if stoppedOut {
		effective = -stopLossPct
	}

	clamped := effective
	if effective > 0 && effective > takeProfitPct {
		clamped = takeProfitPct
	}

	class := Neither
	switch {
	case stoppedOut:
		class = HitStopLoss
	case raw >= takeProfitPct:
		class = HitTakeProfit
	}

	return TradeOutcome{
		RawExcursionPct:        raw,
		MaxAdverseExcursionPct: adverse,
		ClampedReturnPct:       clamped,
		Class:                  class,
	}, nil
}
