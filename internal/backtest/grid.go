// Package backtest sweeps take-profit/stop-loss parameter grids over
// historical recommendations and aggregates the resulting risk metrics.
package backtest

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"equity-trading-bot/internal/database"
	"equity-trading-bot/internal/excursion"
	"equity-trading-bot/internal/outcome"
	"equity-trading-bot/internal/risk"
)

// Filters narrow the historical set before evaluation. Zero values mean
// no constraint.
type Filters struct {
	MinVolume      float64 `json:"min_volume"`
	MinPrice       float64 `json:"min_price"`
	MinProbability float64 `json:"min_probability"`
}

// GridConfig defines the inclusive TP and SL ranges to sweep.
type GridConfig struct {
	TPStart float64 `json:"tp_start"`
	TPEnd   float64 `json:"tp_end"`
	TPStep  float64 `json:"tp_step"`
	SLStart float64 `json:"sl_start"`
	SLEnd   float64 `json:"sl_end"`
	SLStep  float64 `json:"sl_step"`
	Filters Filters `json:"filters"`
}

// Validate checks the ranges are well-formed.
func (c GridConfig) Validate() error {
	if c.TPStep <= 0 || c.SLStep <= 0 {
		return fmt.Errorf("grid steps must be positive (tp=%.2f sl=%.2f)", c.TPStep, c.SLStep)
	}
	if c.TPStart < 0 || c.SLStart < 0 {
		return fmt.Errorf("grid range starts must not be negative (tp=%.2f sl=%.2f)", c.TPStart, c.SLStart)
	}
	if c.TPEnd < c.TPStart || c.SLEnd < c.SLStart {
		return fmt.Errorf("grid range end before start")
	}
	return nil
}

// Run holds the aggregated metrics for one (tp, sl) grid cell.
type Run struct {
	TakeProfitPct float64 `json:"take_profit_pct"`
	StopLossPct   float64 `json:"stop_loss_pct"`
	TotalReturn   float64 `json:"total_return"`
	WinRate       float64 `json:"win_rate"`
	ProfitFactor  float64 `json:"profit_factor"`
	MaxDrawdown   float64 `json:"max_drawdown"`
	MaxWinStreak  int     `json:"max_win_streak"`
	MaxLossStreak int     `json:"max_loss_streak"`
	TradeCount    int     `json:"trade_count"`
	Efficiency    float64 `json:"efficiency"` // total return per unit of stop-loss risk
}

// GridSearchResult is the ranked collection of runs, best first.
type GridSearchResult struct {
	Runs []Run `json:"runs"`
	Best *Run  `json:"best,omitempty"`
}

// RunGridSearch evaluates every (tp, sl) cell over the filtered
// recommendations. Evaluation is deterministic: identical inputs produce
// identical ordering and values. Cells are independent, so the sweep
// could be parallelized, but the result must not depend on cell order.
func RunGridSearch(recs []*database.Recommendation, cfg GridConfig) (*GridSearchResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	filtered := applyFilters(recs, cfg.Filters)

	var runs []Run
	for tp := cfg.TPStart; tp <= cfg.TPEnd+1e-9; tp += cfg.TPStep {
		for sl := cfg.SLStart; sl <= cfg.SLEnd+1e-9; sl += cfg.SLStep {
			runs = append(runs, evaluateCell(filtered, round2(tp), round2(sl)))
		}
	}

	// Rank by total return descending; ties broken by (tp, sl) so the
	// ordering stays stable across invocations.
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].TotalReturn != runs[j].TotalReturn {
			return runs[i].TotalReturn > runs[j].TotalReturn
		}
		if runs[i].TakeProfitPct != runs[j].TakeProfitPct {
			return runs[i].TakeProfitPct < runs[j].TakeProfitPct
		}
		return runs[i].StopLossPct < runs[j].StopLossPct
	})

	result := &GridSearchResult{Runs: runs}
	if len(runs) > 0 {
		result.Best = &runs[0]
	}
	return result, nil
}

// evaluateCell runs every recommendation through the outcome model at one
// (tp, sl) pair and aggregates the returns.
func evaluateCell(recs []*database.Recommendation, tp, sl float64) Run {
	agg := risk.NewAggregator()

	for _, rec := range recs {
		result, err := evaluateRecommendation(rec, tp, sl)
		if err != nil {
			// Invalid or absent reference data: skip the record.
			continue
		}
		agg.Add(result.ClampedReturnPct)
	}

	s := agg.Summary()
	run := Run{
		TakeProfitPct: tp,
		StopLossPct:   sl,
		TotalReturn:   s.TotalReturn,
		WinRate:       s.WinRate,
		ProfitFactor:  s.ProfitFactor,
		MaxDrawdown:   s.MaxDrawdown,
		MaxWinStreak:  s.MaxWinStreak,
		MaxLossStreak: s.MaxLossStreak,
		TradeCount:    s.TradeCount,
	}
	if sl > 0 {
		run.Efficiency = s.TotalReturn / sl
	}
	return run
}

var errAbsentWindow = errors.New("primary window absent")

// evaluateRecommendation maps one recommendation through the outcome
// model using its primary reference window.
func evaluateRecommendation(rec *database.Recommendation, tp, sl float64) (outcome.TradeOutcome, error) {
	refPrice, peakHigh, trough, ok := rec.PrimaryWindow()
	if !ok {
		return outcome.TradeOutcome{}, errAbsentWindow
	}
	return outcome.Evaluate(excursion.WindowStats{
		RefPrice:         refPrice,
		PeakHigh:         peakHigh,
		TroughBeforePeak: trough,
	}, tp, sl)
}

func applyFilters(recs []*database.Recommendation, f Filters) []*database.Recommendation {
	out := make([]*database.Recommendation, 0, len(recs))
	for _, rec := range recs {
		if f.MinVolume > 0 && rec.Volume < f.MinVolume {
			continue
		}
		if f.MinPrice > 0 && rec.Price < f.MinPrice {
			continue
		}
		if f.MinProbability > 0 && rec.Probability < f.MinProbability {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
