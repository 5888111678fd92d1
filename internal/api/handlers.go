package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"equity-trading-bot/internal/backtest"
	"equity-trading-bot/internal/cache"
	"equity-trading-bot/internal/database"
	"equity-trading-bot/internal/excursion"
	"equity-trading-bot/internal/executor"
	"equity-trading-bot/internal/selector"

	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

// handleUpsertRecommendation ingests one daily candidate.
// POST /api/recommendations
func (s *Server) handleUpsertRecommendation(c *gin.Context) {
	var req struct {
		Symbol      string  `json:"symbol" binding:"required"`
		Date        string  `json:"date" binding:"required"`
		Sector      string  `json:"sector"`
		Probability float64 `json:"probability"`
		Price       float64 `json:"price"`
		Volume      float64 `json:"volume"`
		RelVolume   float64 `json:"rel_volume"`
		RSI         float64 `json:"rsi"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)")
		return
	}

	rec := &database.Recommendation{
		Symbol:      req.Symbol,
		Date:        date,
		Sector:      req.Sector,
		Probability: req.Probability,
		Price:       req.Price,
		Volume:      req.Volume,
		RelVolume:   req.RelVolume,
		RSI:         req.RSI,
	}

	if err := s.repo.UpsertRecommendation(c.Request.Context(), rec); err != nil {
		errorResponse(c, http.StatusInternalServerError, "Failed to save recommendation: "+err.Error())
		return
	}

	s.invalidateDate(c, req.Date)
	successResponse(c, rec)
}

// handleGetRecommendations returns the candidates for one trading date.
// GET /api/recommendations?date=YYYY-MM-DD
func (s *Server) handleGetRecommendations(c *gin.Context) {
	dateStr := c.DefaultQuery("date", time.Now().Format(dateLayout))
	date, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)")
		return
	}

	if s.cacheService != nil {
		var cached []*database.Recommendation
		if err := s.cacheService.GetJSON(c.Request.Context(), cache.RecommendationsKey(dateStr), &cached); err == nil {
			successResponse(c, cached)
			return
		}
	}

	recs, err := s.repo.GetRecommendationsByDate(c.Request.Context(), date)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "Failed to fetch recommendations: "+err.Error())
		return
	}

	if s.cacheService != nil {
		_ = s.cacheService.SetJSON(c.Request.Context(), cache.RecommendationsKey(dateStr), recs, cache.RecommendationsTTL)
	}
	successResponse(c, recs)
}

// handleRefreshWindows recomputes window statistics for one date.
// POST /api/recommendations/refresh?date=YYYY-MM-DD
func (s *Server) handleRefreshWindows(c *gin.Context) {
	dateStr := c.DefaultQuery("date", time.Now().Format(dateLayout))
	date, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)")
		return
	}

	refreshed, err := s.refresher.RefreshDate(c.Request.Context(), date)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "Window refresh failed: "+err.Error())
		return
	}

	s.invalidateDate(c, dateStr)
	successResponse(c, gin.H{"date": dateStr, "refreshed": refreshed})
}

// handleGridSearch runs the TP/SL parameter sweep over a date range.
// POST /api/backtest/grid
func (s *Server) handleGridSearch(c *gin.Context) {
	var req struct {
		StartDate string               `json:"start_date" binding:"required"`
		EndDate   string               `json:"end_date" binding:"required"`
		Grid      *backtest.GridConfig `json:"grid"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	from, to, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	gridCfg := s.defaultGridConfig()
	if req.Grid != nil {
		gridCfg = *req.Grid
	}
	if err := gridCfg.Validate(); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	dateRange := req.StartDate + ":" + req.EndDate
	cacheKey := cache.GridSearchKey(dateRange, gridConfigHash(gridCfg))
	if s.cacheService != nil {
		var cached backtest.GridSearchResult
		if err := s.cacheService.GetJSON(c.Request.Context(), cacheKey, &cached); err == nil {
			successResponse(c, &cached)
			return
		}
	}

	recs, err := s.repo.GetRecommendationsBetween(c.Request.Context(), from, to)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "Failed to fetch recommendations: "+err.Error())
		return
	}

	result, err := backtest.RunGridSearch(recs, gridCfg)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if s.cacheService != nil {
		_ = s.cacheService.SetJSON(c.Request.Context(), cacheKey, result, cache.GridSearchTTL)
	}
	successResponse(c, result)
}

// handleAggregates returns the comparative breakdowns at the fixed TP/SL.
// GET /api/backtest/aggregates?start_date=YYYY-MM-DD&end_date=YYYY-MM-DD
func (s *Server) handleAggregates(c *gin.Context) {
	from, to, err := parseRange(c.Query("start_date"), c.Query("end_date"))
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	dateRange := c.Query("start_date") + ":" + c.Query("end_date")
	if s.cacheService != nil {
		var cached backtest.Aggregates
		if err := s.cacheService.GetJSON(c.Request.Context(), cache.AggregatesKey(dateRange), &cached); err == nil {
			successResponse(c, &cached)
			return
		}
	}

	recs, err := s.repo.GetRecommendationsBetween(c.Request.Context(), from, to)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "Failed to fetch recommendations: "+err.Error())
		return
	}

	aggregates := backtest.ComputeAggregates(recs, backtest.Filters{
		MinVolume:      s.config.BacktestConfig.MinVolume,
		MinPrice:       s.config.BacktestConfig.MinPrice,
		MinProbability: s.config.BacktestConfig.MinProbability,
	})

	if s.cacheService != nil {
		_ = s.cacheService.SetJSON(c.Request.Context(), cache.AggregatesKey(dateRange), aggregates, cache.AggregatesTTL)
	}
	successResponse(c, aggregates)
}

// handleExecuteSession selects today's candidates and launches an
// execution session in the background. A session runs for up to
// maxAttempts × observeWait per symbol, far past any HTTP write
// deadline, so the handler answers 202 with the session ID at once;
// the trade log is polled via GET /api/sessions/:id and the summary
// lands in the cache when the session joins.
// POST /api/execute
func (s *Server) handleExecuteSession(c *gin.Context) {
	var req struct {
		Date string `json:"date"`
	}
	// Body is optional; default to today.
	_ = c.ShouldBindJSON(&req)
	if req.Date == "" {
		req.Date = time.Now().Format(dateLayout)
	}

	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)")
		return
	}

	recs, err := s.repo.GetRecommendationsByDate(c.Request.Context(), date)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "Failed to fetch recommendations: "+err.Error())
		return
	}
	if len(recs) == 0 {
		errorResponse(c, http.StatusNotFound, "No recommendations for "+req.Date)
		return
	}

	sel := selector.New(s.newSelectorConfig(), s.market, s.gateway, s.logger)
	intents, err := sel.Select(c.Request.Context(), recs)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, "Candidate selection failed: "+err.Error())
		return
	}
	if len(intents) == 0 {
		successResponse(c, gin.H{"message": "No candidates selected", "intents": 0})
		return
	}

	cfg := s.newExecutionConfig()
	session := executor.NewSession(cfg, s.gateway, s.market, s.repo, s.logger)
	sessionID := executor.NewSessionID()

	// Detach from the request: its context dies with the response.
	go func() {
		ctx := context.Background()
		result, err := session.Run(ctx, sessionID, intents)
		if err != nil {
			s.logger.Error().Err(err).Str("session_id", sessionID).Msg("Execution session failed")
			return
		}

		summary := executor.SummarizeTradeLog(result.Entries, windowsBySymbol(recs), cfg)
		if s.cacheService != nil {
			_ = s.cacheService.SetJSON(ctx, cache.SessionSummaryKey(sessionID), summary, cache.SessionSummaryTTL)
		}
		s.logger.Info().
			Str("session_id", sessionID).
			Int("trades", summary.TradeCount).
			Float64("total_return", summary.TotalReturn).
			Msg("Execution session summarized")
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"data": gin.H{
			"session_id": sessionID,
			"intents":    len(intents),
			"status":     "started",
		},
	})
}

// handleGetSession returns the persisted trade log for one session.
// GET /api/sessions/:id
func (s *Server) handleGetSession(c *gin.Context) {
	sessionID := c.Param("id")

	entries, err := s.repo.GetTradeLogBySession(c.Request.Context(), sessionID)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "Failed to fetch trade log: "+err.Error())
		return
	}
	if len(entries) == 0 {
		errorResponse(c, http.StatusNotFound, "Session not found")
		return
	}

	successResponse(c, gin.H{"session_id": sessionID, "entries": entries})
}

func (s *Server) invalidateDate(c *gin.Context, dateStr string) {
	if s.cacheService == nil {
		return
	}
	if err := s.cacheService.InvalidateDate(c.Request.Context(), dateStr); err != nil {
		s.logger.Debug().Err(err).Str("date", dateStr).Msg("Cache invalidation skipped")
	}
}

func (s *Server) defaultGridConfig() backtest.GridConfig {
	bc := s.config.BacktestConfig
	return backtest.GridConfig{
		TPStart: bc.TPStart,
		TPEnd:   bc.TPEnd,
		TPStep:  bc.TPStep,
		SLStart: bc.SLStart,
		SLEnd:   bc.SLEnd,
		SLStep:  bc.SLStep,
		Filters: backtest.Filters{
			MinVolume:      bc.MinVolume,
			MinPrice:       bc.MinPrice,
			MinProbability: bc.MinProbability,
		},
	}
}

func parseRange(startStr, endStr string) (time.Time, time.Time, error) {
	from, err := time.Parse(dateLayout, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date (use YYYY-MM-DD)")
	}
	to, err := time.Parse(dateLayout, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date (use YYYY-MM-DD)")
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("end_date before start_date")
	}
	return from, to, nil
}

// gridConfigHash builds a stable cache key fragment from the grid bounds.
func gridConfigHash(cfg backtest.GridConfig) string {
	return fmt.Sprintf("%.2f-%.2f-%.2f_%.2f-%.2f-%.2f_%.0f-%.2f-%.0f",
		cfg.TPStart, cfg.TPEnd, cfg.TPStep,
		cfg.SLStart, cfg.SLEnd, cfg.SLStep,
		cfg.Filters.MinVolume, cfg.Filters.MinPrice, cfg.Filters.MinProbability,
	)
}

// windowsBySymbol collects each recommendation's primary window stats.
func windowsBySymbol(recs []*database.Recommendation) map[string]excursion.WindowStats {
	windows := make(map[string]excursion.WindowStats, len(recs))
	for _, rec := range recs {
		if ref, peak, trough, ok := rec.PrimaryWindow(); ok {
			windows[rec.Symbol] = excursion.WindowStats{
				RefPrice:         ref,
				PeakHigh:         peak,
				TroughBeforePeak: trough,
			}
		}
	}
	return windows
}
