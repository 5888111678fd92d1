package selector

import (
	"context"
	"errors"
	"testing"
	"time"

	"equity-trading-bot/internal/database"

	"github.com/rs/zerolog"
)

type fakePrices struct {
	prices map[string]float64
}

func (f *fakePrices) FetchLivePrice(ctx context.Context, symbol string) (float64, error) {
	if p, ok := f.prices[symbol]; ok {
		return p, nil
	}
	return 0, errors.New("unavailable")
}

type fakePortfolio struct {
	value float64
	err   error
}

func (f *fakePortfolio) GetPortfolioValue(ctx context.Context) (float64, error) {
	return f.value, f.err
}

func candidate(symbol string, price, volume, probability float64, refPrice *float64) *database.Recommendation {
	return &database.Recommendation{
		Symbol:       symbol,
		Date:         time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		Price:        price,
		Volume:       volume,
		Probability:  probability,
		RefPrice1020: refPrice,
	}
}

func ref(v float64) *float64 { return &v }

func defaultConfig() Config {
	return Config{
		MinVolume:          1_000_000,
		MinPrice:           5,
		MaxGainSkipPct:     3,
		MaxStocks:          5,
		MaxPositionPercent: 10,
	}
}

func TestSelector_FiltersVolumeAndPrice(t *testing.T) {
	recs := []*database.Recommendation{
		candidate("THIN", 50, 100_000, 80, ref(50)),   // volume too low
		candidate("PENY", 2, 5_000_000, 80, ref(2)),   // price too low
		candidate("GOOD", 50, 5_000_000, 80, ref(50)),
	}
	prices := &fakePrices{prices: map[string]float64{"THIN": 50, "PENY": 2, "GOOD": 50}}

	s := New(defaultConfig(), prices, &fakePortfolio{value: 100_000}, zerolog.Nop())
	intents, err := s.Select(context.Background(), recs)
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}

	if len(intents) != 1 || intents[0].Symbol != "GOOD" {
		t.Errorf("Expected only GOOD to survive, got %+v", intents)
	}
}

func TestSelector_SkipsRunners(t *testing.T) {
	recs := []*database.Recommendation{
		candidate("RAN", 100, 5_000_000, 80, ref(100)),  // live 105: +5% > 3%
		candidate("FLAT", 100, 5_000_000, 80, ref(100)), // live 100.5: +0.5%
	}
	prices := &fakePrices{prices: map[string]float64{"RAN": 105, "FLAT": 100.5}}

	s := New(defaultConfig(), prices, &fakePortfolio{value: 100_000}, zerolog.Nop())
	intents, err := s.Select(context.Background(), recs)
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}

	if len(intents) != 1 || intents[0].Symbol != "FLAT" {
		t.Errorf("Expected runner to be skipped, got %+v", intents)
	}
}

func TestSelector_ReferenceFallbackToListedPrice(t *testing.T) {
	// No reference window: the listed price is the baseline, uniformly.
	recs := []*database.Recommendation{
		candidate("NOREF", 100, 5_000_000, 80, nil), // live 105 vs listed 100: +5% > 3%
	}
	prices := &fakePrices{prices: map[string]float64{"NOREF": 105}}

	s := New(defaultConfig(), prices, &fakePortfolio{value: 100_000}, zerolog.Nop())
	intents, err := s.Select(context.Background(), recs)
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}

	if len(intents) != 0 {
		t.Errorf("Expected fallback reference to trigger the gain skip, got %+v", intents)
	}
}

func TestSelector_PrioritizeBelowReference(t *testing.T) {
	recs := []*database.Recommendation{
		candidate("ABOVE", 100, 5_000_000, 90, ref(100)), // live 101: +1%
		candidate("BELOW", 100, 5_000_000, 10, ref(100)), // live 98: -2%
	}
	prices := &fakePrices{prices: map[string]float64{"ABOVE": 101, "BELOW": 98}}

	cfg := defaultConfig()
	cfg.PrioritizeBelowRef = true

	s := New(cfg, prices, &fakePortfolio{value: 100_000}, zerolog.Nop())
	intents, err := s.Select(context.Background(), recs)
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}

	if len(intents) != 2 || intents[0].Symbol != "BELOW" {
		t.Errorf("Expected BELOW first, got %+v", intents)
	}
}

func TestSelector_SortByProbability(t *testing.T) {
	recs := []*database.Recommendation{
		candidate("LOW", 100, 5_000_000, 40, ref(100)),
		candidate("HIGH", 100, 5_000_000, 95, ref(100)),
	}
	prices := &fakePrices{prices: map[string]float64{"LOW": 100, "HIGH": 100}}

	cfg := defaultConfig()
	cfg.SortByProbability = true

	s := New(cfg, prices, &fakePortfolio{value: 100_000}, zerolog.Nop())
	intents, err := s.Select(context.Background(), recs)
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}

	if intents[0].Symbol != "HIGH" {
		t.Errorf("Expected HIGH first, got %+v", intents)
	}
}

func TestSelector_TruncatesToMaxStocks(t *testing.T) {
	var recs []*database.Recommendation
	prices := &fakePrices{prices: map[string]float64{}}
	for _, sym := range []string{"A", "B", "C", "D"} {
		recs = append(recs, candidate(sym, 100, 5_000_000, 50, ref(100)))
		prices.prices[sym] = 100
	}

	cfg := defaultConfig()
	cfg.MaxStocks = 2

	s := New(cfg, prices, &fakePortfolio{value: 100_000}, zerolog.Nop())
	intents, err := s.Select(context.Background(), recs)
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}

	if len(intents) != 2 {
		t.Errorf("Expected 2 intents after truncation, got %d", len(intents))
	}
}

func TestSelector_PositionSizing(t *testing.T) {
	recs := []*database.Recommendation{
		candidate("AAPL", 233, 5_000_000, 80, ref(233)),
	}
	prices := &fakePrices{prices: map[string]float64{"AAPL": 233}}

	// 10% of 100k = 10k per position; 10000/233 = 42.9 -> 42 shares.
	s := New(defaultConfig(), prices, &fakePortfolio{value: 100_000}, zerolog.Nop())
	intents, err := s.Select(context.Background(), recs)
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}

	if len(intents) != 1 || intents[0].Quantity != 42 {
		t.Errorf("Expected 42 shares, got %+v", intents)
	}
}

func TestSelector_DiscardsSubShareQuantity(t *testing.T) {
	recs := []*database.Recommendation{
		candidate("BRK", 700_000, 5_000_000, 80, ref(700_000)),
	}
	prices := &fakePrices{prices: map[string]float64{"BRK": 700_000}}

	cfg := defaultConfig()
	cfg.MinPrice = 0

	s := New(cfg, prices, &fakePortfolio{value: 100_000}, zerolog.Nop())
	intents, err := s.Select(context.Background(), recs)
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}

	if len(intents) != 0 {
		t.Errorf("Expected sub-share quantity to be discarded, got %+v", intents)
	}
}

func TestSelector_PortfolioUnavailableAborts(t *testing.T) {
	s := New(defaultConfig(), &fakePrices{}, &fakePortfolio{err: errors.New("gateway down")}, zerolog.Nop())

	intents, err := s.Select(context.Background(), []*database.Recommendation{
		candidate("AAPL", 100, 5_000_000, 80, ref(100)),
	})
	if err == nil {
		t.Fatal("Expected error when portfolio value is unavailable")
	}
	if len(intents) != 0 {
		t.Errorf("Expected zero intents on abort, got %d", len(intents))
	}
}
