package marketdata

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// MockClient provides simulated market data for development/testing.
// Paths are generated deterministically from the symbol name so repeated
// fetches for the same symbol/date return identical bars.
type MockClient struct {
	mu         sync.RWMutex
	prices     map[string]float64
	lastUpdate time.Time
	location   *time.Location
}

// NewMockClient creates a new mock market-data client.
func NewMockClient() *MockClient {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}

	mc := &MockClient{
		lastUpdate: time.Now(),
		location:   loc,
	}

	// Realistic base prices for a handful of liquid names.
	mc.prices = map[string]float64{
		"AAPL": 232.50,
		"MSFT": 428.00,
		"NVDA": 131.00,
		"TSLA": 248.00,
		"AMD":  155.00,
		"AMZN": 186.00,
		"META": 512.00,
		"PLTR": 29.50,
		"SOFI": 8.20,
		"RIOT": 10.40,
	}

	return mc
}

// FetchPricePath returns a simulated minute-bar day for the symbol.
func (mc *MockClient) FetchPricePath(ctx context.Context, symbol string, date time.Time) (*PricePath, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := mc.basePrice(symbol)

	// Seed from symbol+date so the path is stable across calls.
	seed := int64(date.Year())*10000 + int64(date.YearDay())
	for _, r := range symbol {
		seed = seed*31 + int64(r)
	}
	rng := rand.New(rand.NewSource(seed))

	open := time.Date(date.Year(), date.Month(), date.Day(), 9, 30, 0, 0, mc.location)
	const sessionMinutes = 390 // 09:30 to 16:00

	bars := make([]Bar, 0, sessionMinutes)
	price := base
	for i := 0; i < sessionMinutes; i++ {
		ts := open.Add(time.Duration(i) * time.Minute)

		change := (rng.Float64() - 0.5) * 0.004 // ±0.2% per minute
		o := price
		c := o * (1 + change)
		h := math.Max(o, c) * (1 + rng.Float64()*0.001)
		l := math.Min(o, c) * (1 - rng.Float64()*0.001)
		v := base * (500 + rng.Float64()*2000)

		bars = append(bars, Bar{
			Timestamp: ts,
			Open:      o,
			High:      h,
			Low:       l,
			Close:     c,
			Volume:    v,
		})
		price = c
	}

	return &PricePath{
		Symbol:   symbol,
		Date:     time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, mc.location),
		Bars:     bars,
		Location: mc.location,
	}, nil
}

// FetchLivePrice returns a simulated live price with a small random walk.
func (mc *MockClient) FetchLivePrice(ctx context.Context, symbol string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	mc.updatePrices()

	mc.mu.RLock()
	defer mc.mu.RUnlock()

	price, ok := mc.prices[symbol]
	if !ok {
		return 0, ErrPriceUnavailable
	}
	return price, nil
}

func (mc *MockClient) basePrice(symbol string) float64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	if p, ok := mc.prices[symbol]; ok {
		return p
	}
	return 100.0
}

// updatePrices adds small random variations to simulate market movement.
func (mc *MockClient) updatePrices() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if time.Since(mc.lastUpdate) < time.Second {
		return
	}

	for symbol, price := range mc.prices {
		change := (rand.Float64() - 0.5) * 0.01 // ±0.5%
		mc.prices[symbol] = price * (1 + change)
	}
	mc.lastUpdate = time.Now()
}

var _ Client = (*MockClient)(nil)
