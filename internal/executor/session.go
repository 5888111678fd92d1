package executor

import (
	"context"
	"sync"

	"equity-trading-bot/internal/broker"
	"equity-trading-bot/internal/database"
	"equity-trading-bot/internal/excursion"
	"equity-trading-bot/internal/marketdata"
	"equity-trading-bot/internal/outcome"
	"equity-trading-bot/internal/risk"
	"equity-trading-bot/internal/selector"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TradeLogWriter persists terminal automaton outcomes.
type TradeLogWriter interface {
	CreateTradeLogEntry(ctx context.Context, entry *database.TradeLogEntry) error
}

// SessionResult summarizes one execution session after every automaton
// reached a terminal state.
type SessionResult struct {
	SessionID string                    `json:"session_id"`
	Entries   []*database.TradeLogEntry `json:"entries"`
	Filled    int                       `json:"filled"`
	Exhausted int                       `json:"exhausted"`
	Rejected  int                       `json:"rejected"`
}

// Session fans one automaton out per order intent and joins on their
// terminal states. Automatons share the gateway and market-data clients
// but never each other's state.
type Session struct {
	config Config
	broker broker.Client
	market marketdata.LivePriceFetcher
	store  TradeLogWriter
	logger zerolog.Logger
}

// NewSession creates an execution session runner. store may be nil for
// dry runs; terminal entries are then returned but not persisted.
func NewSession(cfg Config, gateway broker.Client, market marketdata.LivePriceFetcher, store TradeLogWriter, logger zerolog.Logger) *Session {
	return &Session{
		config: cfg,
		broker: gateway,
		market: market,
		store:  store,
		logger: logger.With().Str("component", "Session").Logger(),
	}
}

// NewSessionID mints the identifier for one execution session. Callers
// that launch Run in the background hand the ID out first so the trade
// log stays reachable while the session is still in flight.
func NewSessionID() string {
	return uuid.New().String()
}

// Run executes all intents concurrently and blocks until every automaton
// reaches a terminal state. A full session takes up to
// maxAttempts × observeWait per symbol, so callers serving requests
// should run it on a background context and poll the trade log by
// session ID.
func (s *Session) Run(ctx context.Context, sessionID string, intents []selector.OrderIntent) (*SessionResult, error) {
	logger := s.logger.With().Str("session_id", sessionID).Logger()

	logger.Info().Int("intents", len(intents)).Msg("Execution session starting")

	entries := make([]*database.TradeLogEntry, len(intents))
	var wg sync.WaitGroup
	for i, intent := range intents {
		wg.Add(1)
		go func(i int, intent selector.OrderIntent) {
			defer wg.Done()
			automaton := NewAutomaton(intent, s.config, s.broker, s.market, logger)
			entries[i] = automaton.Run(ctx, sessionID)
		}(i, intent)
	}
	wg.Wait()

	result := &SessionResult{SessionID: sessionID, Entries: entries}
	for _, entry := range entries {
		switch entry.Status {
		case database.TradeLogStatusFilling:
			result.Filled++
		case database.TradeLogStatusExhausted:
			result.Exhausted++
		case database.TradeLogStatusRejected:
			result.Rejected++
		}

		if s.store != nil {
			if err := s.store.CreateTradeLogEntry(ctx, entry); err != nil {
				logger.Error().Err(err).Str("symbol", entry.Symbol).Msg("Failed to persist trade log entry")
			}
		}
	}

	logger.Info().
		Int("filled", result.Filled).
		Int("exhausted", result.Exhausted).
		Int("rejected", result.Rejected).
		Msg("Execution session completed")

	return result, nil
}

// SummarizeTradeLog scores a completed session's filled entries against
// the day's excursion windows. Each filled entry is evaluated as a trade
// anchored at its actual entry price, clamped by the session's targets,
// and the clamped returns feed the same aggregator the backtests use.
// Entries without a window (or that never filled) contribute nothing.
func SummarizeTradeLog(entries []*database.TradeLogEntry, windows map[string]excursion.WindowStats, cfg Config) risk.Summary {
	agg := risk.NewAggregator()

	for _, entry := range entries {
		if entry.Status != database.TradeLogStatusFilling || entry.EntryPrice <= 0 {
			continue
		}
		stats, ok := windows[entry.Symbol]
		if !ok {
			continue
		}
		// Re-anchor the window at the fill price: same peak and trough,
		// but excursions are measured from where we actually got in.
		anchored := excursion.WindowStats{
			RefPrice:         entry.EntryPrice,
			PeakHigh:         stats.PeakHigh,
			TroughBeforePeak: stats.TroughBeforePeak,
		}
		result, err := outcome.Evaluate(anchored, cfg.TakeProfitPct, cfg.StopLossPct)
		if err != nil {
			continue
		}
		agg.Add(result.ClampedReturnPct)
	}

	return agg.Summary()
}
