package excursion

import (
	"testing"
	"time"

	"equity-trading-bot/internal/marketdata"
)

func pathWith(bars []marketdata.Bar) *marketdata.PricePath {
	return &marketdata.PricePath{
		Symbol:   "TEST",
		Date:     time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		Bars:     bars,
		Location: time.UTC,
	}
}

func bar(hour, minute int, open, high, low, close float64) marketdata.Bar {
	return marketdata.Bar{
		Timestamp: time.Date(2025, 6, 2, hour, minute, 0, 0, time.UTC),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    100000,
	}
}

func TestComputeWindow_Basic(t *testing.T) {
	path := pathWith([]marketdata.Bar{
		bar(9, 30, 10.0, 10.1, 9.9, 10.0),
		bar(10, 20, 10.0, 10.1, 9.95, 10.0), // ref bar: close 10.0
		bar(10, 30, 10.0, 10.2, 9.90, 10.1), // low 9.90 before peak
		bar(11, 0, 10.1, 10.6, 10.0, 10.5),  // peak high 10.6
		bar(12, 0, 10.5, 10.5, 9.50, 9.6),   // after peak, ignored for trough
	})

	stats, ok := ComputeWindow(path, marketdata.Cutoff{Hour: 10, Minute: 20})
	if !ok {
		t.Fatal("Expected a window result")
	}
	if stats.RefPrice != 10.0 {
		t.Errorf("Expected refPrice 10.0, got %.4f", stats.RefPrice)
	}
	if stats.PeakHigh != 10.6 {
		t.Errorf("Expected peakHigh 10.6, got %.4f", stats.PeakHigh)
	}
	// Trough considers [refIdx, peakIdx] only: the 9.50 low after the
	// peak must not count.
	if stats.TroughBeforePeak != 9.90 {
		t.Errorf("Expected trough 9.90, got %.4f", stats.TroughBeforePeak)
	}
}

func TestComputeWindow_FirstBarAtOrAfterCutoff(t *testing.T) {
	// No bar at exactly 10:20; the 10:23 bar anchors the window.
	path := pathWith([]marketdata.Bar{
		bar(10, 15, 10.0, 10.1, 9.9, 10.0),
		bar(10, 23, 10.2, 10.3, 10.1, 10.2),
		bar(10, 24, 10.2, 10.4, 10.15, 10.3),
	})

	stats, ok := ComputeWindow(path, marketdata.Cutoff{Hour: 10, Minute: 20})
	if !ok {
		t.Fatal("Expected a window result")
	}
	if stats.RefPrice != 10.2 {
		t.Errorf("Expected refPrice from 10:23 bar, got %.4f", stats.RefPrice)
	}
}

func TestComputeWindow_NoBarAfterCutoff(t *testing.T) {
	path := pathWith([]marketdata.Bar{
		bar(9, 30, 10.0, 10.1, 9.9, 10.0),
		bar(9, 45, 10.0, 10.1, 9.9, 10.0),
	})

	if _, ok := ComputeWindow(path, marketdata.Cutoff{Hour: 14, Minute: 0}); ok {
		t.Error("Expected no result when no bar exists at/after cutoff")
	}
}

func TestComputeWindow_EmptyPath(t *testing.T) {
	if _, ok := ComputeWindow(pathWith(nil), marketdata.Cutoff{Hour: 10, Minute: 20}); ok {
		t.Error("Expected no result for empty path")
	}
	if _, ok := ComputeWindow(nil, marketdata.Cutoff{Hour: 10, Minute: 20}); ok {
		t.Error("Expected no result for nil path")
	}
}

func TestComputeWindow_NoPeakAboveRef(t *testing.T) {
	// Monotonic decline: peak defaults to refPrice and the trough range
	// collapses to the ref bar itself.
	path := pathWith([]marketdata.Bar{
		bar(10, 20, 10.0, 10.0, 9.95, 10.0),
		bar(10, 30, 9.9, 9.9, 9.8, 9.85),
		bar(10, 40, 9.8, 9.8, 9.7, 9.75),
	})

	stats, ok := ComputeWindow(path, marketdata.Cutoff{Hour: 10, Minute: 20})
	if !ok {
		t.Fatal("Expected a window result")
	}
	if stats.PeakHigh != 10.0 {
		t.Errorf("Expected peakHigh to default to refPrice, got %.4f", stats.PeakHigh)
	}
	if stats.TroughBeforePeak != 9.95 {
		t.Errorf("Expected trough from the ref bar only, got %.4f", stats.TroughBeforePeak)
	}
}

func TestComputeWindow_SessionCloseBound(t *testing.T) {
	// A high printed at/after 16:00 must not count as the peak.
	path := pathWith([]marketdata.Bar{
		bar(10, 20, 10.0, 10.1, 9.95, 10.0),
		bar(11, 0, 10.0, 10.3, 9.98, 10.2),
		bar(16, 0, 10.2, 11.0, 10.2, 10.9),
	})

	stats, ok := ComputeWindow(path, marketdata.Cutoff{Hour: 10, Minute: 20})
	if !ok {
		t.Fatal("Expected a window result")
	}
	if stats.PeakHigh != 10.3 {
		t.Errorf("Expected post-close high to be excluded, got peak %.4f", stats.PeakHigh)
	}
}

func TestComputeAll_WindowsIndependent(t *testing.T) {
	path := pathWith([]marketdata.Bar{
		bar(10, 20, 10.0, 10.1, 9.95, 10.0),
		bar(11, 0, 10.0, 10.6, 9.90, 10.5),
		bar(12, 0, 10.5, 10.55, 10.3, 10.4), // 12:00 ref: close 10.4
		bar(13, 0, 10.4, 10.8, 10.2, 10.7),
		bar(14, 0, 10.7, 10.75, 10.5, 10.6), // 14:00 ref: close 10.6
		bar(15, 0, 10.6, 11.0, 10.4, 10.9),
	})

	all := ComputeAll(path, DefaultWindows)

	if len(all) != 3 {
		t.Fatalf("Expected 3 windows, got %d", len(all))
	}
	if all["1020"].RefPrice != 10.0 {
		t.Errorf("1020 refPrice: expected 10.0, got %.4f", all["1020"].RefPrice)
	}
	if all["1200"].RefPrice != 10.4 {
		t.Errorf("1200 refPrice: expected 10.4, got %.4f", all["1200"].RefPrice)
	}
	if all["1400"].RefPrice != 10.6 {
		t.Errorf("1400 refPrice: expected 10.6, got %.4f", all["1400"].RefPrice)
	}
	// Each window finds its own peak from its own anchor.
	if all["1400"].PeakHigh != 11.0 {
		t.Errorf("1400 peak: expected 11.0, got %.4f", all["1400"].PeakHigh)
	}
	if all["1020"].PeakHigh != 11.0 {
		t.Errorf("1020 peak: expected 11.0, got %.4f", all["1020"].PeakHigh)
	}
}

func TestPathCache_EvictsOnDateChange(t *testing.T) {
	cache := marketdata.NewPathCache()
	day1 := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)

	cache.Put("AAPL", day1, pathWith(nil))
	if cache.Get("AAPL", day1) == nil {
		t.Fatal("Expected cached path for day1")
	}

	cache.Put("MSFT", day2, pathWith(nil))
	if cache.Get("AAPL", day1) != nil {
		t.Error("Expected day1 entries to be evicted when the date key changed")
	}
	if cache.Len() != 1 {
		t.Errorf("Expected 1 entry after eviction, got %d", cache.Len())
	}
}
