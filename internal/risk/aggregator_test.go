package risk

import (
	"math"
	"testing"
)

func TestAggregator_DrawdownAndStreaks(t *testing.T) {
	agg := NewAggregator()
	returns := []float64{2, 3, -1, -2, -1, 4, 1, -3}
	for _, r := range returns {
		agg.Add(r)
	}

	s := agg.Summary()

	if s.TotalReturn != 3 {
		t.Errorf("Expected total return 3, got %.4f", s.TotalReturn)
	}
	// Peak after +2+3 = 5; trough at 5-1-2-1 = 1, drawdown 4.
	if s.PeakEquity != 6 {
		t.Errorf("Expected peak equity 6, got %.4f", s.PeakEquity)
	}
	if s.MaxDrawdown != 4 {
		t.Errorf("Expected max drawdown 4, got %.4f", s.MaxDrawdown)
	}
	if s.MaxWinStreak != 2 {
		t.Errorf("Expected max win streak 2, got %d", s.MaxWinStreak)
	}
	if s.MaxLossStreak != 3 {
		t.Errorf("Expected max loss streak 3, got %d", s.MaxLossStreak)
	}
	if s.TradeCount != 8 || s.Wins != 4 {
		t.Errorf("Expected 8 trades / 4 wins, got %d / %d", s.TradeCount, s.Wins)
	}
}

func TestAggregator_ProfitFactor(t *testing.T) {
	agg := NewAggregator()
	for _, r := range []float64{5, 5, -4} {
		agg.Add(r)
	}

	s := agg.Summary()
	if math.Abs(s.ProfitFactor-2.5) > 1e-9 {
		t.Errorf("Expected profit factor 2.5, got %.4f", s.ProfitFactor)
	}
}

func TestAggregator_ProfitFactorNoLosses(t *testing.T) {
	agg := NewAggregator()
	agg.Add(3)
	agg.Add(2)

	// With zero gross loss the profit factor degrades to the gross win.
	s := agg.Summary()
	if s.ProfitFactor != 5 {
		t.Errorf("Expected profit factor 5 with no losses, got %.4f", s.ProfitFactor)
	}
}

func TestAggregator_DrawdownNonNegative(t *testing.T) {
	sequences := [][]float64{
		{},
		{1, 2, 3},
		{-1, -2, -3},
		{0, 0, 0},
		{5, -10, 5, -10},
		{-0.5, 1.5, -2.5, 3.5},
	}

	for _, seq := range sequences {
		agg := NewAggregator()
		for _, r := range seq {
			agg.Add(r)
		}
		if agg.MaxDrawdown() < 0 {
			t.Errorf("MaxDrawdown must be non-negative, got %.4f for %v", agg.MaxDrawdown(), seq)
		}
	}
}

func TestAggregator_AllLossesDrawdownEqualsSum(t *testing.T) {
	agg := NewAggregator()
	for _, r := range []float64{-1, -2, -3} {
		agg.Add(r)
	}

	// Peak stays at 0, so drawdown is the full decline.
	if agg.MaxDrawdown() != 6 {
		t.Errorf("Expected max drawdown 6, got %.4f", agg.MaxDrawdown())
	}
	s := agg.Summary()
	if s.MaxLossStreak != 3 || s.MaxWinStreak != 0 {
		t.Errorf("Expected streaks 0/3, got %d/%d", s.MaxWinStreak, s.MaxLossStreak)
	}
}

func TestAggregator_FlatTradeBreaksStreaks(t *testing.T) {
	agg := NewAggregator()
	for _, r := range []float64{1, 1, 0, 1} {
		agg.Add(r)
	}

	s := agg.Summary()
	if s.MaxWinStreak != 2 {
		t.Errorf("Expected flat trade to break the win streak, got %d", s.MaxWinStreak)
	}
}
