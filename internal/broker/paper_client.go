package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PaperClient is an in-process brokerage for dry runs and tests. Fill
// behaviour is scripted per symbol: by default every limit buy fills in
// full on the first status poll.
type PaperClient struct {
	mu sync.RWMutex

	portfolioValue float64
	orders         map[string]*paperOrder
	logger         zerolog.Logger

	// fillAfterPolls[symbol] = number of status polls (cumulative across
	// that symbol's entry orders) before a fill is reported; -1 means
	// never fill.
	fillAfterPolls map[string]int
	symbolPolls    map[string]int
	// partialFillQty[symbol], when set, caps the reported fill quantity.
	partialFillQty map[string]float64
	// rejectSymbols refuse order placement outright.
	rejectSymbols map[string]bool
}

type paperOrder struct {
	id       string
	symbol   string
	quantity float64
	price    float64
	polls    int
	status   string
	exit     bool
}

// NewPaperClient creates a paper broker with the given portfolio value.
func NewPaperClient(portfolioValue float64, logger zerolog.Logger) *PaperClient {
	return &PaperClient{
		portfolioValue: portfolioValue,
		orders:         make(map[string]*paperOrder),
		logger:         logger.With().Str("component", "PaperClient").Logger(),
		fillAfterPolls: make(map[string]int),
		symbolPolls:    make(map[string]int),
		partialFillQty: make(map[string]float64),
		rejectSymbols:  make(map[string]bool),
	}
}

// ScriptFill configures how many status polls a symbol's orders take to
// fill; -1 means the order never fills.
func (pc *PaperClient) ScriptFill(symbol string, afterPolls int) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.fillAfterPolls[symbol] = afterPolls
}

// ScriptPartialFill caps the fill quantity reported for a symbol.
func (pc *PaperClient) ScriptPartialFill(symbol string, qty float64) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.partialFillQty[symbol] = qty
}

// ScriptReject makes order placement fail for a symbol.
func (pc *PaperClient) ScriptReject(symbol string) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.rejectSymbols[symbol] = true
}

// PlaceLimitBuy submits a simulated limit buy.
func (pc *PaperClient) PlaceLimitBuy(ctx context.Context, symbol string, quantity, limitPrice float64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()

	if pc.rejectSymbols[symbol] {
		return "", fmt.Errorf("%w: %s", ErrOrderRejected, symbol)
	}

	order := &paperOrder{
		id:       uuid.New().String(),
		symbol:   symbol,
		quantity: quantity,
		price:    limitPrice,
		status:   OrderStatusOpen,
	}
	pc.orders[order.id] = order

	pc.logger.Debug().Str("symbol", symbol).Float64("qty", quantity).Float64("price", limitPrice).Msg("Paper limit buy placed")
	return order.id, nil
}

// GetOrderStatus reports the scripted fill state of an order.
func (pc *PaperClient) GetOrderStatus(ctx context.Context, orderID string) (OrderStatus, error) {
	if err := ctx.Err(); err != nil {
		return OrderStatus{}, err
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()

	order, ok := pc.orders[orderID]
	if !ok {
		return OrderStatus{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	order.polls++
	pc.symbolPolls[order.symbol]++

	threshold, scripted := pc.fillAfterPolls[order.symbol]
	if !scripted {
		threshold = 1
	}

	status := OrderStatus{OrderID: order.id, Status: order.status}
	if order.status == OrderStatusCancelled {
		return status, nil
	}

	if threshold >= 0 && pc.symbolPolls[order.symbol] >= threshold {
		filled := order.quantity
		if limit, ok := pc.partialFillQty[order.symbol]; ok && limit < filled {
			filled = limit
			status.Status = OrderStatusPartial
		} else {
			status.Status = OrderStatusFilled
		}
		status.FilledQty = filled
		status.RemainingQty = order.quantity - filled
	} else {
		status.FilledQty = 0
		status.RemainingQty = order.quantity
		status.Status = OrderStatusOpen
	}
	return status, nil
}

// CancelOrder cancels a simulated order.
func (pc *PaperClient) CancelOrder(ctx context.Context, orderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()

	order, ok := pc.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	order.status = OrderStatusCancelled
	return nil
}

// PlaceBracketExit records a simulated OCA exit pair.
func (pc *PaperClient) PlaceBracketExit(ctx context.Context, symbol string, quantity, entryPrice, takeProfitPct, stopLossPct float64) (BracketIDs, error) {
	if err := ctx.Err(); err != nil {
		return BracketIDs{}, err
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()

	tp := &paperOrder{
		id:       uuid.New().String(),
		symbol:   symbol,
		quantity: quantity,
		price:    entryPrice * (1 + takeProfitPct/100),
		status:   OrderStatusOpen,
		exit:     true,
	}
	sl := &paperOrder{
		id:       uuid.New().String(),
		symbol:   symbol,
		quantity: quantity,
		price:    entryPrice * (1 - stopLossPct/100),
		status:   OrderStatusOpen,
		exit:     true,
	}
	pc.orders[tp.id] = tp
	pc.orders[sl.id] = sl

	pc.logger.Debug().Str("symbol", symbol).Float64("tp", tp.price).Float64("sl", sl.price).Msg("Paper bracket exit placed")
	return BracketIDs{TakeProfitOrderID: tp.id, StopLossOrderID: sl.id}, nil
}

// GetPortfolioValue returns the configured portfolio value.
func (pc *PaperClient) GetPortfolioValue(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.portfolioValue, nil
}

// OrderCount returns how many orders were placed, optionally counting
// only entry orders. Used by tests and the session summary.
func (pc *PaperClient) OrderCount(entriesOnly bool) int {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	if !entriesOnly {
		return len(pc.orders)
	}
	n := 0
	for _, o := range pc.orders {
		if !o.exit {
			n++
		}
	}
	return n
}

// CancelledCount returns how many orders were cancelled.
func (pc *PaperClient) CancelledCount() int {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	n := 0
	for _, o := range pc.orders {
		if o.status == OrderStatusCancelled {
			n++
		}
	}
	return n
}

var _ Client = (*PaperClient)(nil)
