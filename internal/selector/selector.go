// Package selector filters and ranks the day's recommendations and
// sizes a position for each survivor. It performs no brokerage writes;
// its output feeds the execution automatons.
package selector

import (
	"context"
	"math"
	"sort"

	"equity-trading-bot/internal/broker"
	"equity-trading-bot/internal/database"
	"equity-trading-bot/internal/marketdata"

	"github.com/rs/zerolog"
)

// Config controls candidate filtering, ordering and sizing.
type Config struct {
	MinVolume          float64 `json:"min_volume"`
	MinPrice           float64 `json:"min_price"`
	MaxGainSkipPct     float64 `json:"max_gain_skip_pct"`   // skip names already up this much vs reference
	MaxStocks          int     `json:"max_stocks"`
	MaxPositionPercent float64 `json:"max_position_percent"` // of portfolio value, per position
	PrioritizeBelowRef bool    `json:"prioritize_below_ref"`
	SortByProbability  bool    `json:"sort_by_probability"` // otherwise ascending live gain
}

// OrderIntent is one sized entry request for the execution automaton.
type OrderIntent struct {
	Symbol         string  `json:"symbol"`
	Quantity       float64 `json:"quantity"`
	ReferencePrice float64 `json:"reference_price"`
	LivePrice      float64 `json:"live_price"`
	LiveGainPct    float64 `json:"live_gain_pct"`
	Probability    float64 `json:"probability"`
}

// Selector builds OrderIntents from recommendations.
type Selector struct {
	config Config
	market marketdata.LivePriceFetcher
	broker broker.PortfolioValuer
	logger zerolog.Logger
}

// New creates a selector.
func New(cfg Config, market marketdata.LivePriceFetcher, portfolio broker.PortfolioValuer, logger zerolog.Logger) *Selector {
	return &Selector{
		config: cfg,
		market: market,
		broker: portfolio,
		logger: logger.With().Str("component", "Selector").Logger(),
	}
}

// Select filters, ranks, truncates and sizes today's candidates.
// A portfolio value that cannot be fetched aborts with zero intents:
// positions cannot be sized without it.
func (s *Selector) Select(ctx context.Context, recs []*database.Recommendation) ([]OrderIntent, error) {
	portfolioValue, err := s.broker.GetPortfolioValue(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Cannot size positions, aborting selection")
		return nil, err
	}

	candidates := s.screen(ctx, recs)
	s.rank(candidates)

	if s.config.MaxStocks > 0 && len(candidates) > s.config.MaxStocks {
		candidates = candidates[:s.config.MaxStocks]
	}

	maxPerPosition := portfolioValue * s.config.MaxPositionPercent / 100

	intents := make([]OrderIntent, 0, len(candidates))
	for _, c := range candidates {
		quantity := math.Floor(maxPerPosition / c.LivePrice)
		if quantity < 1 {
			s.logger.Debug().Str("symbol", c.Symbol).Float64("price", c.LivePrice).Msg("Position too small, skipping")
			continue
		}
		c.Quantity = quantity
		intents = append(intents, c)
	}

	s.logger.Info().
		Int("candidates", len(recs)).
		Int("selected", len(intents)).
		Float64("portfolio_value", portfolioValue).
		Msg("Candidate selection completed")

	return intents, nil
}

// screen applies the volume/price filters and the live-gain skip.
func (s *Selector) screen(ctx context.Context, recs []*database.Recommendation) []OrderIntent {
	out := make([]OrderIntent, 0, len(recs))

	for _, rec := range recs {
		if rec.Volume < s.config.MinVolume || rec.Price < s.config.MinPrice {
			continue
		}

		livePrice, err := s.market.FetchLivePrice(ctx, rec.Symbol)
		if err != nil || livePrice <= 0 {
			s.logger.Debug().Str("symbol", rec.Symbol).Err(err).Msg("No live price, skipping")
			continue
		}

		// The reference price falls back to the listed price when the
		// primary window is absent; the same rule everywhere.
		refPrice := rec.ReferencePrice()
		if refPrice <= 0 {
			continue
		}

		liveGainPct := (livePrice - refPrice) / refPrice * 100
		if liveGainPct > s.config.MaxGainSkipPct {
			s.logger.Debug().
				Str("symbol", rec.Symbol).
				Float64("gain", liveGainPct).
				Msg("Already ran too far, skipping")
			continue
		}

		out = append(out, OrderIntent{
			Symbol:         rec.Symbol,
			ReferencePrice: refPrice,
			LivePrice:      livePrice,
			LiveGainPct:    liveGainPct,
			Probability:    rec.Probability,
		})
	}
	return out
}

// rank orders candidates: names below their reference first when
// configured, then by ascending gain or descending probability.
func (s *Selector) rank(candidates []OrderIntent) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if s.config.PrioritizeBelowRef {
			iBelow := candidates[i].LiveGainPct < 0
			jBelow := candidates[j].LiveGainPct < 0
			if iBelow != jBelow {
				return iBelow
			}
		}
		if s.config.SortByProbability {
			return candidates[i].Probability > candidates[j].Probability
		}
		return candidates[i].LiveGainPct < candidates[j].LiveGainPct
	})
}
