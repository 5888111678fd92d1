package excursion

import (
	"context"
	"testing"
	"time"

	"equity-trading-bot/internal/database"
	"equity-trading-bot/internal/marketdata"

	"github.com/rs/zerolog"
)

type fakeStore struct {
	recs    []*database.Recommendation
	updates int
}

func (f *fakeStore) GetRecommendationsByDate(ctx context.Context, date time.Time) ([]*database.Recommendation, error) {
	return f.recs, nil
}

func (f *fakeStore) UpdateRecommendationWindows(ctx context.Context, rec *database.Recommendation) error {
	f.updates++
	return nil
}

type fakeMarket struct {
	paths   map[string]*marketdata.PricePath
	fetches int
}

func (f *fakeMarket) FetchPricePath(ctx context.Context, symbol string, date time.Time) (*marketdata.PricePath, error) {
	f.fetches++
	if path, ok := f.paths[symbol]; ok {
		return path, nil
	}
	return nil, marketdata.ErrNoData
}

func (f *fakeMarket) FetchLivePrice(ctx context.Context, symbol string) (float64, error) {
	return 0, marketdata.ErrPriceUnavailable
}

func TestRefresher_RefreshDate(t *testing.T) {
	date := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	path := pathWith([]marketdata.Bar{
		bar(10, 20, 10.0, 10.1, 9.95, 10.0),
		bar(11, 0, 10.0, 10.6, 9.90, 10.5),
		bar(12, 5, 10.5, 10.7, 10.3, 10.6),
		bar(14, 10, 10.6, 10.8, 10.4, 10.7),
	})

	store := &fakeStore{recs: []*database.Recommendation{
		{Symbol: "AAPL", Date: date, Price: 10},
		{Symbol: "GHOST", Date: date, Price: 5}, // no data
	}}
	market := &fakeMarket{paths: map[string]*marketdata.PricePath{"AAPL": path}}

	rf := NewRefresher(store, market, marketdata.NewPathCache(), zerolog.Nop())

	refreshed, err := rf.RefreshDate(context.Background(), date)
	if err != nil {
		t.Fatalf("RefreshDate returned error: %v", err)
	}
	if refreshed != 1 {
		t.Errorf("Expected 1 refreshed row, got %d", refreshed)
	}
	if store.updates != 1 {
		t.Errorf("Expected 1 store update, got %d", store.updates)
	}

	rec := store.recs[0]
	if rec.RefPrice1020 == nil || *rec.RefPrice1020 != 10.0 {
		t.Errorf("Expected 1020 refPrice 10.0, got %v", rec.RefPrice1020)
	}
	if rec.RefPrice1200 == nil || *rec.RefPrice1200 != 10.6 {
		t.Errorf("Expected 1200 refPrice 10.6, got %v", rec.RefPrice1200)
	}
	if rec.RefPrice1400 == nil || *rec.RefPrice1400 != 10.7 {
		t.Errorf("Expected 1400 refPrice 10.7, got %v", rec.RefPrice1400)
	}

	// GHOST had no data: windows stay absent.
	if store.recs[1].RefPrice1020 != nil {
		t.Error("Expected absent windows for symbol without data")
	}
}

func TestRefresher_UsesPathCache(t *testing.T) {
	date := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	path := pathWith([]marketdata.Bar{
		bar(10, 20, 10.0, 10.1, 9.95, 10.0),
	})

	store := &fakeStore{recs: []*database.Recommendation{{Symbol: "AAPL", Date: date}}}
	market := &fakeMarket{paths: map[string]*marketdata.PricePath{"AAPL": path}}
	cache := marketdata.NewPathCache()

	rf := NewRefresher(store, market, cache, zerolog.Nop())

	if _, err := rf.RefreshDate(context.Background(), date); err != nil {
		t.Fatalf("first refresh error: %v", err)
	}
	if _, err := rf.RefreshDate(context.Background(), date); err != nil {
		t.Fatalf("second refresh error: %v", err)
	}

	if market.fetches != 1 {
		t.Errorf("Expected second refresh to hit the cache, got %d fetches", market.fetches)
	}
}
