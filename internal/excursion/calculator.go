// Package excursion derives reference-window statistics from intraday
// minute-bar price paths. A window is anchored at the close of the first
// bar at or after a named cutoff time and measures the best and worst
// prices reached between that anchor and the session close.
package excursion

import (
	"equity-trading-bot/internal/marketdata"
)

// WindowStats holds the excursion statistics for one reference window.
type WindowStats struct {
	RefPrice         float64 `json:"ref_price"`
	PeakHigh         float64 `json:"peak_high"`
	TroughBeforePeak float64 `json:"trough_before_peak"`
}

// Window is a named cutoff time within the trading day.
type Window struct {
	Name   string
	Cutoff marketdata.Cutoff
}

// DefaultWindows are the three cutoffs computed for every recommendation.
// The 10:20 window is the primary one used for selection and backtests.
var DefaultWindows = []Window{
	{Name: "1020", Cutoff: marketdata.Cutoff{Hour: 10, Minute: 20}},
	{Name: "1200", Cutoff: marketdata.Cutoff{Hour: 12, Minute: 0}},
	{Name: "1400", Cutoff: marketdata.Cutoff{Hour: 14, Minute: 0}},
}

// PrimaryWindow is the window whose stats drive selection and backtests.
const PrimaryWindow = "1020"

// ComputeWindow derives WindowStats from a price path for one cutoff.
// Returns ok=false when no bar exists at or after the cutoff; the window
// is then absent rather than an error.
//
// The trough is deliberately measured only over [refIdx, peakIdx] — the
// worst price before the eventual peak, not over the full remaining
// session. Do not widen this interval without revisiting every consumer
// of TroughBeforePeak.
func ComputeWindow(path *marketdata.PricePath, cutoff marketdata.Cutoff) (WindowStats, bool) {
	if path == nil || len(path.Bars) == 0 {
		return WindowStats{}, false
	}

	refIdx := -1
	for i, bar := range path.Bars {
		if cutoff.Contains(bar.Timestamp) {
			refIdx = i
			break
		}
	}
	if refIdx < 0 {
		return WindowStats{}, false
	}

	refPrice := path.Bars[refIdx].Close

	// Forward scan to session close for the maximum high.
	peakHigh := refPrice
	peakIdx := refIdx
	for i := refIdx; i < len(path.Bars); i++ {
		bar := path.Bars[i]
		if marketdata.SessionClose.Contains(bar.Timestamp) {
			break
		}
		if bar.High > peakHigh {
			peakHigh = bar.High
			peakIdx = i
		}
	}

	// Minimum low on the inclusive sub-range up to the peak.
	trough := refPrice
	for i := refIdx; i <= peakIdx; i++ {
		if path.Bars[i].Low < trough {
			trough = path.Bars[i].Low
		}
	}

	return WindowStats{
		RefPrice:         refPrice,
		PeakHigh:         peakHigh,
		TroughBeforePeak: trough,
	}, true
}

// ComputeAll computes every window independently from the same path.
// Later windows are never derived from earlier ones: each cutoff implies
// its own reference index. Absent windows are omitted from the result.
func ComputeAll(path *marketdata.PricePath, windows []Window) map[string]WindowStats {
	out := make(map[string]WindowStats, len(windows))
	for _, w := range windows {
		if stats, ok := ComputeWindow(path, w.Cutoff); ok {
			out[w.Name] = stats
		}
	}
	return out
}
