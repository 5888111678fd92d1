// Command backtest runs the TP/SL grid search over stored
// recommendations and prints the ranked results, without going through
// the HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"equity-trading-bot/config"
	"equity-trading-bot/internal/backtest"
	"equity-trading-bot/internal/database"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	godotenv.Load()
	godotenv.Load(".env")

	startStr := flag.String("start", "", "start date (YYYY-MM-DD)")
	endStr := flag.String("end", "", "end date (YYYY-MM-DD)")
	top := flag.Int("top", 10, "number of grid cells to print")
	flag.Parse()

	if *startStr == "" || *endStr == "" {
		fmt.Println("usage: backtest -start YYYY-MM-DD -end YYYY-MM-DD [-top N]")
		os.Exit(1)
	}

	from, err := time.Parse("2006-01-02", *startStr)
	if err != nil {
		fmt.Printf("invalid -start: %v\n", err)
		os.Exit(1)
	}
	to, err := time.Parse("2006-01-02", *endStr)
	if err != nil {
		fmt.Printf("invalid -end: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel).With().Timestamp().Logger()

	db, err := database.NewDB(database.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	}, logger)
	if err != nil {
		fmt.Printf("failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	repo := database.NewRepository(db)

	recs, err := repo.GetRecommendationsBetween(ctx, from, to)
	if err != nil {
		fmt.Printf("failed to fetch recommendations: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d recommendations for %s..%s\n\n", len(recs), *startStr, *endStr)

	bc := cfg.BacktestConfig
	gridCfg := backtest.GridConfig{
		TPStart: bc.TPStart, TPEnd: bc.TPEnd, TPStep: bc.TPStep,
		SLStart: bc.SLStart, SLEnd: bc.SLEnd, SLStep: bc.SLStep,
		Filters: backtest.Filters{
			MinVolume:      bc.MinVolume,
			MinPrice:       bc.MinPrice,
			MinProbability: bc.MinProbability,
		},
	}

	result, err := backtest.RunGridSearch(recs, gridCfg)
	if err != nil {
		fmt.Printf("grid search failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%-8s %-8s %12s %8s %8s %8s %8s %7s\n",
		"TP%", "SL%", "TotalRet%", "WinRate", "PF", "MaxDD", "Effic", "Trades")
	for i, run := range result.Runs {
		if i >= *top {
			break
		}
		fmt.Printf("%-8.2f %-8.2f %12.2f %7.1f%% %8.2f %8.2f %8.2f %7d\n",
			run.TakeProfitPct, run.StopLossPct, run.TotalReturn,
			run.WinRate, run.ProfitFactor, run.MaxDrawdown,
			run.Efficiency, run.TradeCount)
	}

	if result.Best != nil {
		fmt.Printf("\nBest cell: TP %.2f%% / SL %.2f%% (total return %.2f%%)\n",
			result.Best.TakeProfitPct, result.Best.StopLossPct, result.Best.TotalReturn)
	}

	aggregates := backtest.ComputeAggregates(recs, gridCfg.Filters)
	fmt.Printf("\nSector breakdown at fixed %.0f/%.0f:\n", backtest.FixedTakeProfitPct, backtest.FixedStopLossPct)
	for _, group := range aggregates.BySector {
		fmt.Printf("  %-20s trades=%-5d total=%8.2f%% win=%5.1f%%\n",
			group.Key, group.TradeCount, group.TotalReturn, group.WinRate)
	}
}
