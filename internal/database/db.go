package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool   *pgxpool.Pool
	logger zerolog.Logger
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDB creates a new database connection
func NewDB(cfg Config, logger zerolog.Logger) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log := logger.With().Str("component", "database").Logger()
	log.Info().Str("database", cfg.Database).Msg("Connected to PostgreSQL")

	return &DB{Pool: pool, logger: log}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info().Msg("Database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	db.logger.Info().Msg("Running database migrations")

	migrations := []string{
		// Daily candidate recommendations, one row per (symbol, date).
		// Window statistics are refreshed in place intraday.
		`CREATE TABLE IF NOT EXISTS recommendations (
			id SERIAL PRIMARY KEY,
			symbol VARCHAR(12) NOT NULL,
			trade_date DATE NOT NULL,
			sector VARCHAR(64),
			probability DECIMAL(6, 2) DEFAULT 0,
			price DECIMAL(14, 4) DEFAULT 0,
			volume DECIMAL(20, 2) DEFAULT 0,
			rel_volume DECIMAL(10, 2) DEFAULT 0,
			rsi DECIMAL(6, 2) DEFAULT 0,
			ref_price_1020 DECIMAL(14, 4),
			peak_high_1020 DECIMAL(14, 4),
			trough_1020 DECIMAL(14, 4),
			ref_price_1200 DECIMAL(14, 4),
			peak_high_1200 DECIMAL(14, 4),
			trough_1200 DECIMAL(14, 4),
			ref_price_1400 DECIMAL(14, 4),
			peak_high_1400 DECIMAL(14, 4),
			trough_1400 DECIMAL(14, 4),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT uq_recommendations_symbol_date UNIQUE (symbol, trade_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_date ON recommendations(trade_date)`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_sector ON recommendations(sector)`,

		// Append-only audit trail of execution automaton outcomes.
		// Rows are never updated after insert.
		`CREATE TABLE IF NOT EXISTS trade_log (
			id SERIAL PRIMARY KEY,
			session_id UUID NOT NULL,
			symbol VARCHAR(12) NOT NULL,
			status VARCHAR(20) NOT NULL,
			reason TEXT,
			entry_price DECIMAL(14, 4) DEFAULT 0,
			quantity DECIMAL(14, 4) DEFAULT 0,
			take_profit_price DECIMAL(14, 4) DEFAULT 0,
			stop_loss_price DECIMAL(14, 4) DEFAULT 0,
			entry_order_id VARCHAR(64),
			tp_order_id VARCHAR(64),
			sl_order_id VARCHAR(64),
			attempts INTEGER DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_log_session ON trade_log(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_log_symbol ON trade_log(symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_log_created ON trade_log(created_at)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	db.logger.Info().Msg("Database migrations completed")
	return nil
}
