package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"equity-trading-bot/config"
	"equity-trading-bot/internal/api"
	"equity-trading-bot/internal/broker"
	"equity-trading-bot/internal/cache"
	"equity-trading-bot/internal/database"
	"equity-trading-bot/internal/excursion"
	"equity-trading-bot/internal/marketdata"
	"equity-trading-bot/internal/vault"

	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := setupLogger(cfg.LoggingConfig)
	logger.Info().Msg("Starting equity trading bot")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := database.NewDB(database.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run migrations")
	}
	repo := database.NewRepository(db)

	// Redis cache (optional, degrades gracefully)
	var cacheService *cache.CacheService
	if cfg.RedisConfig.Enabled {
		cacheService, err = cache.NewCacheService(cfg.RedisConfig, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("Cache disabled")
			cacheService = nil
		} else {
			defer cacheService.Close()
		}
	}

	// Vault-backed brokerage credentials
	vaultClient, err := vault.NewClient(cfg.VaultConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create vault client")
	}
	if vaultClient.IsEnabled() {
		if creds, err := vaultClient.GetCredentials(ctx); err != nil {
			logger.Warn().Err(err).Msg("Brokerage credentials unavailable")
		} else {
			logger.Info().Str("account", creds.AccountID).Bool("paper", creds.Paper).Msg("Brokerage credentials loaded")
		}
	}

	// Market data: simulated REST client, optionally fronted by the push
	// tick stream for live prices.
	var market marketdata.Client = marketdata.NewMockClient()
	var stream *marketdata.StreamClient
	if cfg.MarketDataConfig.StreamEnabled && cfg.MarketDataConfig.StreamURL != "" {
		stream = marketdata.NewStreamClient(market, cfg.MarketDataConfig.StreamURL, todaySymbols(ctx, repo), logger)
		if err := stream.Start(); err != nil {
			logger.Warn().Err(err).Msg("Price stream unavailable, using polling only")
		} else {
			market = stream
			defer stream.Stop()
		}
	}

	// Brokerage gateway. This build ships the in-process paper gateway;
	// a live gateway plugs in behind the same interface.
	var gateway broker.Client = broker.NewPaperClient(cfg.BrokerConfig.PaperPortfolio, logger)
	if !cfg.BrokerConfig.PaperTrading {
		logger.Warn().Msg("Live gateway not configured, falling back to paper trading")
	}

	// Intraday window refresh
	refresher := excursion.NewRefresher(repo, market, marketdata.NewPathCache(), logger)
	if cfg.RefreshConfig.Enabled {
		go refreshLoop(ctx, refresher, cacheService, cfg.RefreshConfig, logger)
	}

	// HTTP API
	server := api.NewServer(*cfg, repo, cacheService, refresher, market, gateway, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info().Str("signal", sig.String()).Msg("Shutting down")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second,
	)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}
	logger.Info().Msg("Shutdown complete")
}

// refreshLoop periodically recomputes window statistics for today's
// recommendations and invalidates the cached list.
func refreshLoop(ctx context.Context, refresher *excursion.Refresher, cacheService *cache.CacheService, cfg config.RefreshConfig, logger zerolog.Logger) {
	interval := time.Duration(cfg.IntervalSecs) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			today := time.Now()
			if _, err := refresher.RefreshDate(ctx, today); err != nil {
				logger.Error().Err(err).Msg("Scheduled window refresh failed")
				continue
			}
			if cacheService != nil {
				dateKey := today.Format("2006-01-02")
				if err := cacheService.InvalidateDate(ctx, dateKey); err != nil {
					logger.Debug().Err(err).Msg("Cache invalidation skipped")
				}
			}
		}
	}
}

// todaySymbols returns today's recommendation symbols for the stream
// subscription.
func todaySymbols(ctx context.Context, repo *database.Repository) []string {
	recs, err := repo.GetRecommendationsByDate(ctx, time.Now())
	if err != nil {
		return nil
	}
	symbols := make([]string, 0, len(recs))
	for _, rec := range recs {
		symbols = append(symbols, rec.Symbol)
	}
	return symbols
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	if cfg.JSONFormat {
		return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).Level(level).With().Timestamp().Logger()
}
