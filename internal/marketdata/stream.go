package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// StreamClient wraps a push-based trade tick feed behind the same
// polling-shaped Client contract the rest of the core uses. The state
// machine in the executor never sees a callback: it asks for the latest
// price and gets whatever the stream last delivered. Historical price
// paths are delegated to the underlying REST client.
type StreamClient struct {
	mu sync.RWMutex

	rest     Client
	url      string
	symbols  []string
	conn     *websocket.Conn
	logger   zerolog.Logger
	stopChan chan struct{}
	running  bool

	// Latest tick per symbol, fed by the read loop.
	lastPrice  map[string]float64
	lastUpdate map[string]time.Time
	staleAfter time.Duration

	// Consecutive failed-connection count; cleared once a connect
	// succeeds so a late-day drop starts backing off from scratch.
	reconnects int
	backoff    time.Duration
}

// tickMessage is the provider's trade tick payload.
type tickMessage struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	TS     int64   `json:"ts"`
}

// NewStreamClient creates a stream adapter over the given REST client.
func NewStreamClient(rest Client, url string, symbols []string, logger zerolog.Logger) *StreamClient {
	return &StreamClient{
		rest:       rest,
		url:        url,
		symbols:    symbols,
		logger:     logger.With().Str("component", "StreamClient").Logger(),
		stopChan:   make(chan struct{}),
		lastPrice:  make(map[string]float64),
		lastUpdate: make(map[string]time.Time),
		staleAfter: 30 * time.Second,
		backoff:    5 * time.Second,
	}
}

// Start connects and begins the read loop. Reconnects with backoff until
// Stop is called.
func (sc *StreamClient) Start() error {
	sc.mu.Lock()
	if sc.running {
		sc.mu.Unlock()
		return nil
	}
	sc.running = true
	sc.mu.Unlock()

	if err := sc.connect(); err != nil {
		sc.mu.Lock()
		sc.running = false
		sc.mu.Unlock()
		return err
	}

	go sc.readLoop()
	return nil
}

// Stop closes the stream.
func (sc *StreamClient) Stop() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if !sc.running {
		return
	}
	sc.running = false
	close(sc.stopChan)
	if sc.conn != nil {
		sc.conn.Close()
	}
}

func (sc *StreamClient) connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(sc.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial price stream: %w", err)
	}

	sub := map[string]interface{}{
		"action":  "subscribe",
		"symbols": sc.symbols,
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	sc.mu.Lock()
	sc.conn = conn
	sc.reconnects = 0
	sc.mu.Unlock()

	sc.logger.Info().Int("symbols", len(sc.symbols)).Msg("Price stream connected")
	return nil
}

func (sc *StreamClient) readLoop() {
	for {
		select {
		case <-sc.stopChan:
			return
		default:
		}

		sc.mu.RLock()
		conn := sc.conn
		sc.mu.RUnlock()

		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-sc.stopChan:
				return
			default:
			}

			sc.mu.Lock()
			sc.reconnects++
			attempt := sc.reconnects
			sc.mu.Unlock()

			sc.logger.Warn().Err(err).Int("reconnects", attempt).Msg("Price stream disconnected, reconnecting")
			time.Sleep(time.Duration(minInt(attempt, 6)) * sc.backoff)
			if err := sc.connect(); err != nil {
				sc.logger.Error().Err(err).Msg("Reconnect failed")
			}
			continue
		}

		var tick tickMessage
		if err := json.Unmarshal(data, &tick); err != nil {
			continue
		}
		if tick.Symbol == "" || tick.Price <= 0 {
			continue
		}

		sc.mu.Lock()
		sc.lastPrice[tick.Symbol] = tick.Price
		sc.lastUpdate[tick.Symbol] = time.Now()
		sc.mu.Unlock()
	}
}

// FetchLivePrice returns the latest streamed price for symbol. Falls back
// to the REST client when the stream has no fresh tick.
func (sc *StreamClient) FetchLivePrice(ctx context.Context, symbol string) (float64, error) {
	sc.mu.RLock()
	price, ok := sc.lastPrice[symbol]
	updated := sc.lastUpdate[symbol]
	sc.mu.RUnlock()

	if ok && time.Since(updated) < sc.staleAfter {
		return price, nil
	}
	return sc.rest.FetchLivePrice(ctx, symbol)
}

// FetchPricePath delegates to the REST client.
func (sc *StreamClient) FetchPricePath(ctx context.Context, symbol string, date time.Time) (*PricePath, error) {
	return sc.rest.FetchPricePath(ctx, symbol, date)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

var _ Client = (*StreamClient)(nil)
