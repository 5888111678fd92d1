// Package risk computes equity-curve and streak statistics over a
// time-ordered sequence of trade returns. The same aggregator serves the
// historical backtest engine and live session summaries.
package risk

// Summary holds the aggregate risk metrics after all returns are added.
type Summary struct {
	TotalReturn   float64 `json:"total_return"`
	PeakEquity    float64 `json:"peak_equity"`
	MaxDrawdown   float64 `json:"max_drawdown"`
	ProfitFactor  float64 `json:"profit_factor"`
	WinRate       float64 `json:"win_rate"`
	MaxWinStreak  int     `json:"max_win_streak"`
	MaxLossStreak int     `json:"max_loss_streak"`
	TradeCount    int     `json:"trade_count"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
}

// Aggregator accumulates returns one trade at a time. Zero value is ready
// to use; it is not safe for concurrent use.
type Aggregator struct {
	cumulative float64
	peak       float64
	maxDD      float64

	grossWin  float64
	grossLoss float64 // stored positive

	winStreak     int
	lossStreak    int
	maxWinStreak  int
	maxLossStreak int

	count int
	wins  int
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Add accumulates one trade return (percent) in sequence order.
func (a *Aggregator) Add(returnPct float64) {
	a.count++
	a.cumulative += returnPct

	if a.cumulative > a.peak {
		a.peak = a.cumulative
	}
	if dd := a.peak - a.cumulative; dd > a.maxDD {
		a.maxDD = dd
	}

	switch {
	case returnPct > 0:
		a.wins++
		a.grossWin += returnPct
		a.winStreak++
		a.lossStreak = 0
		if a.winStreak > a.maxWinStreak {
			a.maxWinStreak = a.winStreak
		}
	case returnPct < 0:
		a.grossLoss += -returnPct
		a.lossStreak++
		a.winStreak = 0
		if a.lossStreak > a.maxLossStreak {
			a.maxLossStreak = a.lossStreak
		}
	default:
		// Flat trades break both streaks without counting as a win or loss.
		a.winStreak = 0
		a.lossStreak = 0
	}
}

// CumulativeReturn returns the running equity value.
func (a *Aggregator) CumulativeReturn() float64 {
	return a.cumulative
}

// MaxDrawdown returns the largest peak-to-trough equity decline so far.
func (a *Aggregator) MaxDrawdown() float64 {
	return a.maxDD
}

// Summary produces the final metrics.
func (a *Aggregator) Summary() Summary {
	s := Summary{
		TotalReturn:   a.cumulative,
		PeakEquity:    a.peak,
		MaxDrawdown:   a.maxDD,
		MaxWinStreak:  a.maxWinStreak,
		MaxLossStreak: a.maxLossStreak,
		TradeCount:    a.count,
		Wins:          a.wins,
		Losses:        a.count - a.wins,
	}

	if a.grossLoss > 0 {
		s.ProfitFactor = a.grossWin / a.grossLoss
	} else {
		s.ProfitFactor = a.grossWin
	}

	if a.count > 0 {
		s.WinRate = float64(a.wins) / float64(a.count) * 100
	}
	return s
}
