// Package api exposes the HTTP surface: recommendation ingestion and
// retrieval, window refresh, backtests, and execution sessions.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"equity-trading-bot/config"
	"equity-trading-bot/internal/broker"
	"equity-trading-bot/internal/cache"
	"equity-trading-bot/internal/database"
	"equity-trading-bot/internal/excursion"
	"equity-trading-bot/internal/executor"
	"equity-trading-bot/internal/marketdata"
	"equity-trading-bot/internal/selector"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Store is the persistence surface the handlers depend on.
type Store interface {
	HealthCheck(ctx context.Context) error
	UpsertRecommendation(ctx context.Context, rec *database.Recommendation) error
	GetRecommendationsByDate(ctx context.Context, date time.Time) ([]*database.Recommendation, error)
	GetRecommendationsBetween(ctx context.Context, from, to time.Time) ([]*database.Recommendation, error)
	CreateTradeLogEntry(ctx context.Context, entry *database.TradeLogEntry) error
	GetTradeLogBySession(ctx context.Context, sessionID string) ([]*database.TradeLogEntry, error)
}

var _ Store = (*database.Repository)(nil)

// Server is the HTTP API server.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	config     config.Config
	logger     zerolog.Logger

	repo         Store
	cacheService *cache.CacheService // nil when Redis is disabled
	refresher    *excursion.Refresher
	market       marketdata.Client
	gateway      broker.Client
}

// NewServer wires the API server. cacheService may be nil; every cached
// read then falls through to the database or recomputes.
func NewServer(
	cfg config.Config,
	repo Store,
	cacheService *cache.CacheService,
	refresher *excursion.Refresher,
	market marketdata.Client,
	gateway broker.Client,
	logger zerolog.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if cfg.ServerConfig.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(cfg.ServerConfig.AllowedOrigins, ",")
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:       router,
		config:       cfg,
		logger:       logger.With().Str("component", "APIServer").Logger(),
		repo:         repo,
		cacheService: cacheService,
		refresher:    refresher,
		market:       market,
		gateway:      gateway,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	{
		api.POST("/recommendations", s.handleUpsertRecommendation)
		api.GET("/recommendations", s.handleGetRecommendations)
		api.POST("/recommendations/refresh", s.handleRefreshWindows)

		api.POST("/backtest/grid", s.handleGridSearch)
		api.GET("/backtest/aggregates", s.handleAggregates)

		api.POST("/execute", s.handleExecuteSession)
		api.GET("/sessions/:id", s.handleGetSession)
	}
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.ServerConfig.Host, s.config.ServerConfig.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ServerConfig.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.ServerConfig.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// handleHealth reports component health.
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	dbHealthy := s.repo.HealthCheck(ctx) == nil

	cacheStatus := "disabled"
	if s.cacheService != nil {
		if s.cacheService.IsHealthy() {
			cacheStatus = "healthy"
		} else {
			cacheStatus = "degraded"
		}
	}

	if !dbHealthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "unhealthy",
			"cache":    cacheStatus,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": "healthy",
		"cache":    cacheStatus,
	})
}

// newExecutionConfig maps the loaded config onto the executor's.
func (s *Server) newExecutionConfig() executor.Config {
	ec := s.config.ExecutionConfig
	return executor.Config{
		MaxAttempts:   ec.MaxAttempts,
		ObserveWait:   ec.ObserveWait(),
		TakeProfitPct: ec.TakeProfitPct,
		StopLossPct:   ec.StopLossPct,
		BaseBufferPct: ec.BaseBufferPct,
		BufferStepPct: ec.BufferStepPct,
		StepAttempt1:  ec.StepAttempt1,
		StepAttempt2:  ec.StepAttempt2,
	}
}

// newSelectorConfig maps the loaded config onto the selector's.
func (s *Server) newSelectorConfig() selector.Config {
	sc := s.config.SelectorConfig
	return selector.Config{
		MinVolume:          sc.MinVolume,
		MinPrice:           sc.MinPrice,
		MaxGainSkipPct:     sc.MaxGainSkipPct,
		MaxStocks:          sc.MaxStocks,
		MaxPositionPercent: sc.MaxPositionPercent,
		PrioritizeBelowRef: sc.PrioritizeBelowRef,
		SortByProbability:  sc.SortByProbability,
	}
}

// errorResponse is a helper to send error responses
func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

// successResponse is a helper to send success responses
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}
