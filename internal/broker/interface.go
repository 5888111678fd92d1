// Package broker defines the brokerage gateway contract the execution
// core depends on, plus an in-process paper implementation. Real gateway
// connectivity (sessions, reconnects, account sync) lives outside this
// module; anything speaking this interface can drive the executor.
package broker

import (
	"context"
	"errors"
)

// Gateway errors.
var (
	ErrOrderRejected        = errors.New("order placement rejected")
	ErrOrderNotFound        = errors.New("order not found")
	ErrPortfolioUnavailable = errors.New("portfolio value unavailable")
)

// Order status values reported by the gateway.
const (
	OrderStatusOpen      = "OPEN"
	OrderStatusFilled    = "FILLED"
	OrderStatusPartial   = "PARTIALLY_FILLED"
	OrderStatusCancelled = "CANCELLED"
)

// OrderStatus is a point-in-time fill snapshot for one order.
type OrderStatus struct {
	OrderID      string  `json:"order_id"`
	FilledQty    float64 `json:"filled_qty"`
	RemainingQty float64 `json:"remaining_qty"`
	Status       string  `json:"status"`
}

// BracketIDs identifies the two legs of a one-cancels-other exit pair.
type BracketIDs struct {
	TakeProfitOrderID string `json:"tp_order_id"`
	StopLossOrderID   string `json:"sl_order_id"`
}

// Client is the brokerage gateway contract. The contract is deliberately
// polling-shaped: implementations backed by push event streams must
// adapt events into GetOrderStatus snapshots so the executor state
// machine stays callback-free.
type Client interface {
	PlaceLimitBuy(ctx context.Context, symbol string, quantity float64, limitPrice float64) (string, error)
	GetOrderStatus(ctx context.Context, orderID string) (OrderStatus, error)
	CancelOrder(ctx context.Context, orderID string) error

	// PlaceBracketExit attaches a limit take-profit sell and a stop-loss
	// sell as an OCA group: whichever leg executes first cancels the
	// other.
	PlaceBracketExit(ctx context.Context, symbol string, quantity, entryPrice, takeProfitPct, stopLossPct float64) (BracketIDs, error)

	GetPortfolioValue(ctx context.Context) (float64, error)
}

// PortfolioValuer is the subset the candidate selector needs.
type PortfolioValuer interface {
	GetPortfolioValue(ctx context.Context) (float64, error)
}
