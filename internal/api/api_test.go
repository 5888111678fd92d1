package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"equity-trading-bot/config"
	"equity-trading-bot/internal/broker"
	"equity-trading-bot/internal/database"
	"equity-trading-bot/internal/marketdata"

	"github.com/rs/zerolog"
)

type fakeStore struct {
	mu      sync.Mutex
	recs    map[string][]*database.Recommendation
	entries []*database.TradeLogEntry
}

func newFakeStore() *fakeStore {
	return &fakeStore{recs: make(map[string][]*database.Recommendation)}
}

func (f *fakeStore) HealthCheck(ctx context.Context) error { return nil }

func (f *fakeStore) UpsertRecommendation(ctx context.Context, rec *database.Recommendation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := rec.Date.Format(dateLayout)
	f.recs[key] = append(f.recs[key], rec)
	return nil
}

func (f *fakeStore) GetRecommendationsByDate(ctx context.Context, date time.Time) ([]*database.Recommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recs[date.Format(dateLayout)], nil
}

func (f *fakeStore) GetRecommendationsBetween(ctx context.Context, from, to time.Time) ([]*database.Recommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*database.Recommendation
	for _, recs := range f.recs {
		out = append(out, recs...)
	}
	return out, nil
}

func (f *fakeStore) CreateTradeLogEntry(ctx context.Context, entry *database.TradeLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeStore) GetTradeLogBySession(ctx context.Context, sessionID string) ([]*database.TradeLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*database.TradeLogEntry
	for _, entry := range f.entries {
		if entry.SessionID == sessionID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (f *fakeStore) entryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

type fixedPrices map[string]float64

func (f fixedPrices) FetchLivePrice(ctx context.Context, symbol string) (float64, error) {
	if p, ok := f[symbol]; ok {
		return p, nil
	}
	return 0, marketdata.ErrPriceUnavailable
}

func (f fixedPrices) FetchPricePath(ctx context.Context, symbol string, date time.Time) (*marketdata.PricePath, error) {
	return nil, marketdata.ErrNoData
}

func newTestServer(store *fakeStore, market marketdata.Client, gateway broker.Client) *Server {
	cfg := config.Config{}
	cfg.ServerConfig.AllowedOrigins = "*"
	cfg.SelectorConfig = config.SelectorConfig{
		MaxGainSkipPct:     100,
		MaxStocks:          5,
		MaxPositionPercent: 10,
	}
	cfg.ExecutionConfig = config.ExecutionConfig{
		MaxAttempts:     2,
		ObserveWaitSecs: 2,
		TakeProfitPct:   5,
		StopLossPct:     2,
		BaseBufferPct:   0.05,
		BufferStepPct:   0.05,
		StepAttempt1:    3,
		StepAttempt2:    5,
	}
	return NewServer(cfg, store, nil, nil, market, gateway, zerolog.Nop())
}

// An execution session blocks for at least one observation wait per
// symbol, far past any HTTP write deadline, so the endpoint must answer
// with the session ID before the session completes.
func TestHandleExecuteSession_RespondsBeforeSessionCompletes(t *testing.T) {
	store := newFakeStore()
	store.recs["2026-02-02"] = []*database.Recommendation{
		{Symbol: "AAPL", Date: time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC), Price: 100, Volume: 2_000_000, Probability: 80},
	}

	gateway := broker.NewPaperClient(100_000, zerolog.Nop())
	server := newTestServer(store, fixedPrices{"AAPL": 100}, gateway)

	body := bytes.NewBufferString(`{"date":"2026-02-02"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/execute", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	start := time.Now()
	server.router.ServeHTTP(w, req)
	elapsed := time.Since(start)

	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", w.Code, w.Body.String())
	}
	// The fastest possible fill still sits through one observation wait.
	if elapsed >= 2*time.Second {
		t.Fatalf("Handler blocked on the session: took %v", elapsed)
	}
	if store.entryCount() != 0 {
		t.Fatal("Expected the session to still be running when the response was written")
	}

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			SessionID string `json:"session_id"`
			Intents   int    `json:"intents"`
			Status    string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !resp.Success || resp.Data.SessionID == "" {
		t.Fatalf("Expected a session ID in the response, got %s", w.Body.String())
	}
	if resp.Data.Intents != 1 || resp.Data.Status != "started" {
		t.Errorf("Expected 1 started intent, got %d %q", resp.Data.Intents, resp.Data.Status)
	}

	// The background session persists its trade log under the returned ID.
	deadline := time.Now().Add(10 * time.Second)
	for store.entryCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Session never persisted its trade log")
		}
		time.Sleep(20 * time.Millisecond)
	}

	entries, err := store.GetTradeLogBySession(context.Background(), resp.Data.SessionID)
	if err != nil {
		t.Fatalf("GetTradeLogBySession returned error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 trade log entry for the session, got %d", len(entries))
	}
	if entries[0].Status != database.TradeLogStatusFilling {
		t.Errorf("Expected the paper fill to land as filling, got %q", entries[0].Status)
	}

	sessReq := httptest.NewRequest(http.MethodGet, "/api/sessions/"+resp.Data.SessionID, nil)
	sessW := httptest.NewRecorder()
	server.router.ServeHTTP(sessW, sessReq)
	if sessW.Code != http.StatusOK {
		t.Errorf("Expected 200 fetching the session trade log, got %d", sessW.Code)
	}
}

func TestHandleExecuteSession_NoRecommendations(t *testing.T) {
	store := newFakeStore()
	gateway := broker.NewPaperClient(100_000, zerolog.Nop())
	server := newTestServer(store, fixedPrices{}, gateway)

	req := httptest.NewRequest(http.MethodPost, "/api/execute", bytes.NewBufferString(`{"date":"2026-02-02"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404 with no recommendations, got %d", w.Code)
	}
}
