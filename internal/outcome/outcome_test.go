package outcome

import (
	"errors"
	"testing"

	"equity-trading-bot/internal/excursion"
)

func TestEvaluate_TakeProfitClamp(t *testing.T) {
	// refPrice=10, peakHigh=10.6, trough=9.9, tp=3, sl=2:
	// raw excursion 6%, adverse -1%, not stopped out, clamped to 3%.
	stats := excursion.WindowStats{RefPrice: 10, PeakHigh: 10.6, TroughBeforePeak: 9.9}

	result, err := Evaluate(stats, 3, 2)
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}

	if result.RawExcursionPct < 5.99 || result.RawExcursionPct > 6.01 {
		t.Errorf("Expected raw excursion 6%%, got %.4f", result.RawExcursionPct)
	}
	if result.MaxAdverseExcursionPct < -1.01 || result.MaxAdverseExcursionPct > -0.99 {
		t.Errorf("Expected adverse excursion -1%%, got %.4f", result.MaxAdverseExcursionPct)
	}
	if result.ClampedReturnPct != 3 {
		t.Errorf("Expected clamped return 3%%, got %.4f", result.ClampedReturnPct)
	}
	if result.Class != HitTakeProfit {
		t.Errorf("Expected class %s, got %s", HitTakeProfit, result.Class)
	}
}

func TestEvaluate_StopLossPrecedence(t *testing.T) {
	// Same peak but trough=9.7: adverse -3%% breaches sl=2, so the trade
	// is stopped out regardless of the 6%% peak.
	stats := excursion.WindowStats{RefPrice: 10, PeakHigh: 10.6, TroughBeforePeak: 9.7}

	result, err := Evaluate(stats, 3, 2)
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}

	if result.ClampedReturnPct != -2 {
		t.Errorf("Expected clamped return -2%%, got %.4f", result.ClampedReturnPct)
	}
	if result.Class != HitStopLoss {
		t.Errorf("Expected class %s, got %s", HitStopLoss, result.Class)
	}
}

func TestEvaluate_StopLossBeatsAnyPeak(t *testing.T) {
	// Stop-loss precedence must hold for arbitrarily large peaks.
	peaks := []float64{10.1, 11, 15, 50, 1000}
	for _, peak := range peaks {
		stats := excursion.WindowStats{RefPrice: 10, PeakHigh: peak, TroughBeforePeak: 9.5}
		result, err := Evaluate(stats, 3, 2)
		if err != nil {
			t.Fatalf("Evaluate returned error: %v", err)
		}
		if result.Class != HitStopLoss {
			t.Errorf("peak %.1f: expected %s, got %s", peak, HitStopLoss, result.Class)
		}
		if result.ClampedReturnPct != -2 {
			t.Errorf("peak %.1f: expected clamped -2%%, got %.4f", peak, result.ClampedReturnPct)
		}
	}
}

func TestEvaluate_ClampInvariant(t *testing.T) {
	tests := []struct {
		name               string
		ref, peak, trough  float64
		tp, sl             float64
	}{
		{"flat path", 100, 100, 100, 5, 2},
		{"big winner", 100, 130, 99, 5, 2},
		{"big loser", 100, 101, 80, 5, 2},
		{"small move", 100, 100.5, 99.8, 5, 2},
		{"exact tp", 100, 105, 99.5, 5, 2},
		{"exact sl boundary", 100, 110, 98, 5, 2},
		{"tight params", 50, 60, 45, 0.5, 0.5},
		{"wide params", 50, 60, 45, 12, 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := excursion.WindowStats{RefPrice: tt.ref, PeakHigh: tt.peak, TroughBeforePeak: tt.trough}
			result, err := Evaluate(stats, tt.tp, tt.sl)
			if err != nil {
				t.Fatalf("Evaluate returned error: %v", err)
			}
			if result.ClampedReturnPct > tt.tp {
				t.Errorf("Clamped return %.4f exceeds take profit %.2f", result.ClampedReturnPct, tt.tp)
			}
			if result.ClampedReturnPct < -tt.sl {
				t.Errorf("Clamped return %.4f below stop loss floor %.2f", result.ClampedReturnPct, -tt.sl)
			}
		})
	}
}

func TestEvaluate_ExactStopLossBoundaryNotStopped(t *testing.T) {
	// adverse == -sl exactly is not a breach: stoppedOut requires < -sl.
	stats := excursion.WindowStats{RefPrice: 100, PeakHigh: 104, TroughBeforePeak: 98}

	result, err := Evaluate(stats, 5, 2)
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if result.Class == HitStopLoss {
		t.Errorf("adverse exactly at -sl should not stop out, got %s", result.Class)
	}
	if result.ClampedReturnPct != 4 {
		t.Errorf("Expected clamped return 4%%, got %.4f", result.ClampedReturnPct)
	}
}

func TestEvaluate_InvalidReferencePrice(t *testing.T) {
	for _, ref := range []float64{0, -1} {
		stats := excursion.WindowStats{RefPrice: ref, PeakHigh: 10, TroughBeforePeak: 9}
		_, err := Evaluate(stats, 5, 2)
		if !errors.Is(err, ErrInvalidReferencePrice) {
			t.Errorf("refPrice=%.1f: expected ErrInvalidReferencePrice, got %v", ref, err)
		}
	}
}

func TestEvaluate_NegativeExcursionPassesThrough(t *testing.T) {
	// Peak below reference: effective return is negative but above the
	// stop floor, so it passes through unclamped.
	stats := excursion.WindowStats{RefPrice: 100, PeakHigh: 99, TroughBeforePeak: 99}

	result, err := Evaluate(stats, 5, 2)
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if result.ClampedReturnPct != -1 {
		t.Errorf("Expected clamped return -1%%, got %.4f", result.ClampedReturnPct)
	}
	if result.Class != Neither {
		t.Errorf("Expected class %s, got %s", Neither, result.Class)
	}
}
