package marketdata

import (
	"context"
	"errors"
	"time"
)

// Client errors. ErrNoData means the provider has no bars for the
// symbol/date; callers record the window as absent rather than failing.
var (
	ErrNoData           = errors.New("no price data for symbol/date")
	ErrPriceUnavailable = errors.New("live price unavailable")
)

// Client defines the market-data provider operations the core needs.
type Client interface {
	// FetchPricePath returns the minute-bar path for symbol on the given
	// trading day, or ErrNoData.
	FetchPricePath(ctx context.Context, symbol string, date time.Time) (*PricePath, error)

	// FetchLivePrice returns the most recent traded price for symbol, or
	// ErrPriceUnavailable.
	FetchLivePrice(ctx context.Context, symbol string) (float64, error)
}

// LivePriceFetcher is the subset of Client the candidate selector needs.
type LivePriceFetcher interface {
	FetchLivePrice(ctx context.Context, symbol string) (float64, error)
}
