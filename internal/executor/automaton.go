// Package executor drives live order placement for selected candidates.
// Each symbol gets its own automaton: an adaptive re-quoting state
// machine that chases a fill with a bounded number of limit orders and
// attaches a bracket exit once filled. Automatons never share state;
// a session fans them out and joins on their terminal states.
package executor

import (
	"context"
	"fmt"
	"math"
	"time"

	"equity-trading-bot/internal/broker"
	"equity-trading-bot/internal/database"
	"equity-trading-bot/internal/marketdata"
	"equity-trading-bot/internal/selector"

	"github.com/rs/zerolog"
)

// State is the automaton's position in its lifecycle.
type State string

const (
	StateQuoting   State = "quoting"
	StateRetrying  State = "retrying"
	StateFilling   State = "filling"
	StateActive    State = "active"    // terminal: position open, brackets attached
	StateExhausted State = "exhausted" // terminal: no fill within max attempts
	StateRejected  State = "rejected"  // terminal: gateway refused an order
)

// Config holds the execution parameters shared by all automatons in a
// session.
type Config struct {
	MaxAttempts   int           `json:"max_attempts"`
	ObserveWait   time.Duration `json:"observe_wait"`
	TakeProfitPct float64       `json:"take_profit_pct"`
	StopLossPct   float64       `json:"stop_loss_pct"`

	// Limit buffer over the live price, stepping up as attempts burn.
	BaseBufferPct float64 `json:"base_buffer_pct"`
	BufferStepPct float64 `json:"buffer_step_pct"`
	StepAttempt1  int     `json:"step_attempt_1"`
	StepAttempt2  int     `json:"step_attempt_2"`
}

// DefaultConfig returns the stock execution parameters.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   5,
		ObserveWait:   20 * time.Second,
		TakeProfitPct: 5.0,
		StopLossPct:   2.0,
		BaseBufferPct: 0.05,
		BufferStepPct: 0.05,
		StepAttempt1:  3,
		StepAttempt2:  5,
	}
}

// ExecutionState is the mutable per-symbol state. It is owned
// exclusively by its automaton and never shared across symbols.
type ExecutionState struct {
	AttemptNumber  int     `json:"attempt_number"`
	LastLimitPrice float64 `json:"last_limit_price"`
	BrokerOrderID  string  `json:"broker_order_id"`
	FilledQuantity float64 `json:"filled_quantity"`
	Status         State   `json:"status"`
}

// Automaton executes one OrderIntent to a terminal state.
type Automaton struct {
	intent selector.OrderIntent
	config Config
	broker broker.Client
	market marketdata.LivePriceFetcher
	logger zerolog.Logger
	state  ExecutionState

	// wait is injected so tests can collapse the observation wait.
	wait func(ctx context.Context, d time.Duration)
}

// NewAutomaton creates an automaton for one intent.
func NewAutomaton(intent selector.OrderIntent, cfg Config, gateway broker.Client, market marketdata.LivePriceFetcher, logger zerolog.Logger) *Automaton {
	return &Automaton{
		intent: intent,
		config: cfg,
		broker: gateway,
		market: market,
		logger: logger.With().Str("component", "Automaton").Str("symbol", intent.Symbol).Logger(),
		wait:   sleepWait,
	}
}

// State returns a copy of the current execution state.
func (a *Automaton) State() ExecutionState {
	return a.state
}

// Run drives the automaton to a terminal state and returns the trade log
// entry describing the outcome. Errors from the gateway terminate only
// this symbol; Run itself never returns an error.
func (a *Automaton) Run(ctx context.Context, sessionID string) *database.TradeLogEntry {
	for attempt := 1; attempt <= a.config.MaxAttempts; attempt++ {
		a.state.AttemptNumber = attempt
		a.state.Status = StateQuoting

		entry, retry := a.attempt(ctx, sessionID, attempt)
		if !retry {
			return entry
		}
		a.state.Status = StateRetrying
	}

	a.state.Status = StateExhausted
	a.logger.Warn().Int("attempts", a.config.MaxAttempts).Msg("No fill, giving up")

	return &database.TradeLogEntry{
		SessionID: sessionID,
		Symbol:    a.intent.Symbol,
		Status:    database.TradeLogStatusExhausted,
		Reason:    fmt.Sprintf("no fill after %d attempts", a.config.MaxAttempts),
		Quantity:  a.intent.Quantity,
		Attempts:  a.config.MaxAttempts,
	}
}

// attempt runs one quote/observe/decide cycle. retry=true means the
// order saw zero fill and was cancelled; any returned entry is terminal.
func (a *Automaton) attempt(ctx context.Context, sessionID string, attempt int) (entry *database.TradeLogEntry, retry bool) {
	livePrice, err := a.market.FetchLivePrice(ctx, a.intent.Symbol)
	if err != nil || livePrice <= 0 {
		a.state.Status = StateRejected
		a.logger.Error().Err(err).Msg("Live price unavailable, terminating")
		return a.terminalEntry(sessionID, database.TradeLogStatusRejected, "live price unavailable", attempt), false
	}

	buffer := a.bufferPct(attempt)
	limitPrice := round2(livePrice * (1 + buffer/100))
	a.state.LastLimitPrice = limitPrice

	orderID, err := a.broker.PlaceLimitBuy(ctx, a.intent.Symbol, a.intent.Quantity, limitPrice)
	if err != nil {
		a.state.Status = StateRejected
		a.logger.Error().Err(err).Float64("limit", limitPrice).Msg("Order placement rejected, terminating")
		return a.terminalEntry(sessionID, database.TradeLogStatusRejected, fmt.Sprintf("placement failed: %v", err), attempt), false
	}
	a.state.BrokerOrderID = orderID

	a.logger.Info().
		Int("attempt", attempt).
		Float64("limit", limitPrice).
		Float64("buffer_pct", buffer).
		Msg("Limit buy placed, observing")

	// Single fixed observation wait per attempt; no polling loop.
	a.wait(ctx, a.config.ObserveWait)

	status, err := a.broker.GetOrderStatus(ctx, orderID)
	if err != nil {
		// Treat an unreadable status as a zero fill: cancel and retry.
		a.logger.Warn().Err(err).Msg("Order status query failed")
		status = broker.OrderStatus{OrderID: orderID}
	}

	if status.FilledQty > 0 {
		return a.fill(ctx, sessionID, limitPrice, status, attempt), false
	}

	// Zero fill: cancel the resting order before re-quoting so there is
	// never more than one outstanding order for this symbol.
	if err := a.broker.CancelOrder(ctx, orderID); err != nil {
		a.logger.Warn().Err(err).Str("order_id", orderID).Msg("Cancel failed")
	}
	a.logger.Info().Int("attempt", attempt).Msg("No fill within observation window")
	return nil, true
}

// fill attaches the bracket exit pair and produces the terminal entry.
// A partial fill is accepted as-is: the remainder is not cancelled and
// no further entry attempts are made for this intent.
func (a *Automaton) fill(ctx context.Context, sessionID string, entryPrice float64, status broker.OrderStatus, attempt int) *database.TradeLogEntry {
	a.state.Status = StateFilling
	a.state.FilledQuantity = status.FilledQty

	a.logger.Info().
		Float64("filled_qty", status.FilledQty).
		Float64("entry", entryPrice).
		Msg("Order filled, attaching bracket exit")

	brackets, err := a.broker.PlaceBracketExit(
		ctx, a.intent.Symbol, status.FilledQty, entryPrice,
		a.config.TakeProfitPct, a.config.StopLossPct,
	)
	if err != nil {
		a.state.Status = StateRejected
		a.logger.Error().Err(err).Msg("Bracket exit placement failed, terminating")
		terminal := a.terminalEntry(sessionID, database.TradeLogStatusRejected, fmt.Sprintf("bracket exit failed: %v", err), attempt)
		terminal.EntryPrice = entryPrice
		terminal.EntryOrderID = status.OrderID
		return terminal
	}

	a.state.Status = StateActive

	return &database.TradeLogEntry{
		SessionID:       sessionID,
		Symbol:          a.intent.Symbol,
		Status:          database.TradeLogStatusFilling,
		EntryPrice:      entryPrice,
		Quantity:        status.FilledQty,
		TakeProfitPrice: round2(entryPrice * (1 + a.config.TakeProfitPct/100)),
		StopLossPrice:   round2(entryPrice * (1 - a.config.StopLossPct/100)),
		EntryOrderID:    status.OrderID,
		TPOrderID:       brackets.TakeProfitOrderID,
		SLOrderID:       brackets.StopLossOrderID,
		Attempts:        attempt,
	}
}

func (a *Automaton) terminalEntry(sessionID, status, reason string, attempt int) *database.TradeLogEntry {
	return &database.TradeLogEntry{
		SessionID: sessionID,
		Symbol:    a.intent.Symbol,
		Status:    status,
		Reason:    reason,
		Quantity:  a.intent.Quantity,
		Attempts:  attempt,
	}
}

// bufferPct grows the limit buffer as attempts accumulate so later
// quotes sit further above the market and fill more readily.
func (a *Automaton) bufferPct(attempt int) float64 {
	buffer := a.config.BaseBufferPct
	if attempt >= a.config.StepAttempt1 {
		buffer += a.config.BufferStepPct
	}
	if attempt >= a.config.StepAttempt2 {
		buffer += a.config.BufferStepPct
	}
	return buffer
}

func sleepWait(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
