package excursion

import (
	"context"
	"errors"
	"time"

	"equity-trading-bot/internal/database"
	"equity-trading-bot/internal/marketdata"

	"github.com/rs/zerolog"
)

// RecommendationStore is the persistence surface the refresher needs.
type RecommendationStore interface {
	GetRecommendationsByDate(ctx context.Context, date time.Time) ([]*database.Recommendation, error)
	UpdateRecommendationWindows(ctx context.Context, rec *database.Recommendation) error
}

// Refresher recomputes window statistics for a day's recommendations
// from freshly fetched price paths. Safe to run repeatedly intraday:
// the upsert is keyed by (symbol, date) and simply overwrites.
type Refresher struct {
	store  RecommendationStore
	market marketdata.Client
	cache  *marketdata.PathCache
	logger zerolog.Logger
}

// NewRefresher creates a refresher. The path cache is owned by the
// caller and scoped to one run; passing a shared cache across dates is
// safe because it evicts on date change.
func NewRefresher(store RecommendationStore, market marketdata.Client, cache *marketdata.PathCache, logger zerolog.Logger) *Refresher {
	return &Refresher{
		store:  store,
		market: market,
		cache:  cache,
		logger: logger.With().Str("component", "Refresher").Logger(),
	}
}

// RefreshDate recomputes all named windows for every recommendation on
// the given date. A symbol with no price data keeps nil windows; that is
// an absent window, not a failure. Returns the number of refreshed rows.
func (rf *Refresher) RefreshDate(ctx context.Context, date time.Time) (int, error) {
	recs, err := rf.store.GetRecommendationsByDate(ctx, date)
	if err != nil {
		return 0, err
	}

	refreshed := 0
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return refreshed, err
		}

		path, err := rf.fetchPath(ctx, rec.Symbol, date)
		if err != nil {
			if errors.Is(err, marketdata.ErrNoData) {
				rf.logger.Debug().Str("symbol", rec.Symbol).Msg("No price data, windows left absent")
				continue
			}
			rf.logger.Warn().Err(err).Str("symbol", rec.Symbol).Msg("Price path fetch failed")
			continue
		}

		applyWindows(rec, ComputeAll(path, DefaultWindows))

		if err := rf.store.UpdateRecommendationWindows(ctx, rec); err != nil {
			rf.logger.Error().Err(err).Str("symbol", rec.Symbol).Msg("Window update failed")
			continue
		}
		refreshed++
	}

	rf.logger.Info().
		Str("date", date.Format("2006-01-02")).
		Int("total", len(recs)).
		Int("refreshed", refreshed).
		Msg("Window refresh completed")

	return refreshed, nil
}

func (rf *Refresher) fetchPath(ctx context.Context, symbol string, date time.Time) (*marketdata.PricePath, error) {
	if path := rf.cache.Get(symbol, date); path != nil {
		return path, nil
	}

	path, err := rf.market.FetchPricePath(ctx, symbol, date)
	if err != nil {
		return nil, err
	}
	rf.cache.Put(symbol, date, path)
	return path, nil
}

// applyWindows copies computed stats onto the recommendation's nullable
// window columns. Absent windows reset to nil.
func applyWindows(rec *database.Recommendation, windows map[string]WindowStats) {
	set := func(name string, ref, peak, trough **float64) {
		if stats, ok := windows[name]; ok {
			*ref = f64(stats.RefPrice)
			*peak = f64(stats.PeakHigh)
			*trough = f64(stats.TroughBeforePeak)
		} else {
			*ref, *peak, *trough = nil, nil, nil
		}
	}

	set("1020", &rec.RefPrice1020, &rec.PeakHigh1020, &rec.Trough1020)
	set("1200", &rec.RefPrice1200, &rec.PeakHigh1200, &rec.Trough1200)
	set("1400", &rec.RefPrice1400, &rec.PeakHigh1400, &rec.Trough1400)
}

func f64(v float64) *float64 {
	return &v
}
