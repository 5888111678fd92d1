package backtest

import (
	"fmt"
	"sort"

	"equity-trading-bot/internal/database"
	"equity-trading-bot/internal/risk"
)

// Fixed TP/SL used for the comparative aggregations. These breakdowns
// provide context independent of the swept grid, so they use one
// deliberately unoptimized parameter pair.
const (
	FixedTakeProfitPct = 5.0
	FixedStopLossPct   = 2.0
)

// GroupPerformance summarizes outcomes for one group key (sector or RSI).
type GroupPerformance struct {
	Key         string  `json:"key"`
	TradeCount  int     `json:"trade_count"`
	TotalReturn float64 `json:"total_return"`
	WinRate     float64 `json:"win_rate"`
	AvgReturn   float64 `json:"avg_return"`
}

// VolumeBucket is a boxplot-ready summary of clamped returns for one
// traded-volume band.
type VolumeBucket struct {
	Label      string  `json:"label"`
	TradeCount int     `json:"trade_count"`
	Min        float64 `json:"min"`
	Q1         float64 `json:"q1"`
	Median     float64 `json:"median"`
	Q3         float64 `json:"q3"`
	Max        float64 `json:"max"`
}

// ScatterPoint pairs a recommendation's relative volume with its clamped
// return at the fixed TP/SL.
type ScatterPoint struct {
	Symbol           string  `json:"symbol"`
	RelVolume        float64 `json:"rel_volume"`
	ClampedReturnPct float64 `json:"clamped_return_pct"`
}

// Aggregates bundles all comparative breakdowns for one historical set.
type Aggregates struct {
	BySector         []GroupPerformance `json:"by_sector"`
	ByRSI            []GroupPerformance `json:"by_rsi"`
	ByVolumeBucket   []VolumeBucket     `json:"by_volume_bucket"`
	RelVolumeScatter []ScatterPoint     `json:"rel_volume_scatter"`
}

// ComputeAggregates builds the sector/RSI/volume/relative-volume
// breakdowns over the same filtered set the grid search uses.
func ComputeAggregates(recs []*database.Recommendation, filters Filters) *Aggregates {
	filtered := applyFilters(recs, filters)

	type sample struct {
		rec       *database.Recommendation
		returnPct float64
	}

	samples := make([]sample, 0, len(filtered))
	for _, rec := range filtered {
		result, err := evaluateRecommendation(rec, FixedTakeProfitPct, FixedStopLossPct)
		if err != nil {
			continue
		}
		samples = append(samples, sample{rec: rec, returnPct: result.ClampedReturnPct})
	}

	// Sector and RSI groupings share the same accumulation shape.
	sectorAggs := make(map[string]*risk.Aggregator)
	rsiAggs := make(map[string]*risk.Aggregator)
	volumeReturns := make(map[string][]float64)
	scatter := make([]ScatterPoint, 0, len(samples))

	for _, s := range samples {
		sector := s.rec.Sector
		if sector == "" {
			sector = "Unknown"
		}
		if sectorAggs[sector] == nil {
			sectorAggs[sector] = risk.NewAggregator()
		}
		sectorAggs[sector].Add(s.returnPct)

		rsiKey := rsiBand(s.rec.RSI)
		if rsiAggs[rsiKey] == nil {
			rsiAggs[rsiKey] = risk.NewAggregator()
		}
		rsiAggs[rsiKey].Add(s.returnPct)

		bucket := volumeBucketLabel(s.rec.Volume)
		volumeReturns[bucket] = append(volumeReturns[bucket], s.returnPct)

		scatter = append(scatter, ScatterPoint{
			Symbol:           s.rec.Symbol,
			RelVolume:        s.rec.RelVolume,
			ClampedReturnPct: s.returnPct,
		})
	}

	return &Aggregates{
		BySector:         groupPerformances(sectorAggs),
		ByRSI:            groupPerformances(rsiAggs),
		ByVolumeBucket:   volumeBuckets(volumeReturns),
		RelVolumeScatter: scatter,
	}
}

func groupPerformances(aggs map[string]*risk.Aggregator) []GroupPerformance {
	out := make([]GroupPerformance, 0, len(aggs))
	for key, agg := range aggs {
		s := agg.Summary()
		gp := GroupPerformance{
			Key:         key,
			TradeCount:  s.TradeCount,
			TotalReturn: s.TotalReturn,
			WinRate:     s.WinRate,
		}
		if s.TradeCount > 0 {
			gp.AvgReturn = s.TotalReturn / float64(s.TradeCount)
		}
		out = append(out, gp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// rsiBand groups RSI readings into bands of ten.
func rsiBand(rsi float64) string {
	if rsi <= 0 {
		return "unknown"
	}
	lo := int(rsi/10) * 10
	if lo >= 90 {
		lo = 90
	}
	return fmt.Sprintf("%d-%d", lo, lo+10)
}

var volumeBands = []struct {
	label string
	upper float64
}{
	{"<1M", 1_000_000},
	{"1M-5M", 5_000_000},
	{"5M-20M", 20_000_000},
	{">20M", 0},
}

func volumeBucketLabel(volume float64) string {
	for _, band := range volumeBands {
		if band.upper > 0 && volume < band.upper {
			return band.label
		}
	}
	return volumeBands[len(volumeBands)-1].label
}

func volumeBuckets(returns map[string][]float64) []VolumeBucket {
	out := make([]VolumeBucket, 0, len(volumeBands))
	for _, band := range volumeBands {
		values := returns[band.label]
		if len(values) == 0 {
			continue
		}
		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)

		out = append(out, VolumeBucket{
			Label:      band.label,
			TradeCount: len(sorted),
			Min:        sorted[0],
			Q1:         quantile(sorted, 0.25),
			Median:     quantile(sorted, 0.5),
			Q3:         quantile(sorted, 0.75),
			Max:        sorted[len(sorted)-1],
		})
	}
	return out
}

// quantile interpolates linearly between adjacent sorted values.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
