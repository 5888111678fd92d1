package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerConfig     ServerConfig     `json:"server"`
	DatabaseConfig   DatabaseConfig   `json:"database"`
	RedisConfig      RedisConfig      `json:"redis"`
	VaultConfig      VaultConfig      `json:"vault"`
	MarketDataConfig MarketDataConfig `json:"market_data"`
	BrokerConfig     BrokerConfig     `json:"broker"`
	SelectorConfig   SelectorConfig   `json:"selector"`
	ExecutionConfig  ExecutionConfig  `json:"execution"`
	BacktestConfig   BacktestConfig   `json:"backtest"`
	RefreshConfig    RefreshConfig    `json:"refresh"`
	LoggingConfig    LoggingConfig    `json:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"` // CORS allowed origins
	ReadTimeout     int    `json:"read_timeout"`    // Seconds
	WriteTimeout    int    `json:"write_timeout"`   // Seconds
	ShutdownTimeout int    `json:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds Redis configuration for result caching
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// VaultConfig holds HashiCorp Vault configuration for brokerage credentials
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`  // KV secrets engine mount path
	SecretPath string `json:"secret_path"` // Path for brokerage credentials
}

// MarketDataConfig holds market data provider configuration
type MarketDataConfig struct {
	MockMode      bool   `json:"mock_mode"`       // Use simulated paths and quotes
	StreamEnabled bool   `json:"stream_enabled"`  // Subscribe to the push tick stream
	StreamURL     string `json:"stream_url"`
	Timezone      string `json:"timezone"`        // Exchange session timezone
	StaleTickSecs int    `json:"stale_tick_secs"` // Fall back to REST past this age
}

// BrokerConfig holds brokerage gateway configuration
type BrokerConfig struct {
	PaperTrading   bool    `json:"paper_trading"` // Simulate fills in process
	PaperPortfolio float64 `json:"paper_portfolio"`
}

// SelectorConfig holds candidate selection and position sizing configuration
type SelectorConfig struct {
	MinVolume          float64 `json:"min_volume"`
	MinPrice           float64 `json:"min_price"`
	MaxGainSkipPct     float64 `json:"max_gain_skip_pct"`
	MaxStocks          int     `json:"max_stocks"`
	MaxPositionPercent float64 `json:"max_position_percent"`
	PrioritizeBelowRef bool    `json:"prioritize_below_ref"`
	SortByProbability  bool    `json:"sort_by_probability"`
}

// ExecutionConfig holds order execution automaton configuration
type ExecutionConfig struct {
	MaxAttempts     int     `json:"max_attempts"`
	ObserveWaitSecs int     `json:"observe_wait_secs"`
	TakeProfitPct   float64 `json:"take_profit_pct"`
	StopLossPct     float64 `json:"stop_loss_pct"`
	BaseBufferPct   float64 `json:"base_buffer_pct"`
	BufferStepPct   float64 `json:"buffer_step_pct"`
	StepAttempt1    int     `json:"step_attempt_1"`
	StepAttempt2    int     `json:"step_attempt_2"`
}

// BacktestConfig holds grid-search defaults
type BacktestConfig struct {
	TPStart        float64 `json:"tp_start"`
	TPEnd          float64 `json:"tp_end"`
	TPStep         float64 `json:"tp_step"`
	SLStart        float64 `json:"sl_start"`
	SLEnd          float64 `json:"sl_end"`
	SLStep         float64 `json:"sl_step"`
	MinVolume      float64 `json:"min_volume"`
	MinPrice       float64 `json:"min_price"`
	MinProbability float64 `json:"min_probability"`
}

// RefreshConfig holds the intraday window refresh schedule
type RefreshConfig struct {
	Enabled      bool `json:"enabled"`
	IntervalSecs int  `json:"interval_secs"`
}

type LoggingConfig struct {
	Level      string `json:"level"`       // debug, info, warn, error
	JSONFormat bool   `json:"json_format"` // JSON output instead of console
}

func Load() (*Config, error) {
	// First try to load base config from file
	cfg, err := loadFromFile("config.json")
	if err != nil {
		// If no config file, start with empty config
		cfg = &Config{}
	}

	// Apply environment variable overrides (these take precedence)
	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Brokerage credentials are NOT read from environment; they come from
// Vault when it is enabled.
func applyEnvOverrides(cfg *Config) {
	// Server config
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", 8080)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", "0.0.0.0")
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", "*")
	cfg.ServerConfig.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", 30)
	cfg.ServerConfig.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", 30)
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10)

	// Database config
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", "localhost")
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", 5432)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", "postgres")
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", "equity_bot")
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", "disable")

	// Redis config
	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", "true") == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", "localhost:6379")
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", 0)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", 10)

	// Vault config
	cfg.VaultConfig.Enabled = getEnvOrDefault("VAULT_ENABLED", "false") == "true"
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", "http://localhost:8200")
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", "secret")
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", "equity-bot/brokerage")

	// Market data config
	cfg.MarketDataConfig.MockMode = getEnvOrDefault("MARKET_MOCK_MODE", "true") == "true"
	cfg.MarketDataConfig.StreamEnabled = getEnvOrDefault("MARKET_STREAM_ENABLED", "false") == "true"
	cfg.MarketDataConfig.StreamURL = getEnvOrDefault("MARKET_STREAM_URL", "")
	cfg.MarketDataConfig.Timezone = getEnvOrDefault("MARKET_TIMEZONE", "America/New_York")
	cfg.MarketDataConfig.StaleTickSecs = getEnvIntOrDefault("MARKET_STALE_TICK_SECS", 30)

	// Broker config
	cfg.BrokerConfig.PaperTrading = getEnvOrDefault("BROKER_PAPER_TRADING", "true") == "true"
	cfg.BrokerConfig.PaperPortfolio = getEnvFloatOrDefault("BROKER_PAPER_PORTFOLIO", 100000)

	// Selector config
	cfg.SelectorConfig.MinVolume = getEnvFloatOrDefault("SELECTOR_MIN_VOLUME", 1000000)
	cfg.SelectorConfig.MinPrice = getEnvFloatOrDefault("SELECTOR_MIN_PRICE", 5)
	cfg.SelectorConfig.MaxGainSkipPct = getEnvFloatOrDefault("SELECTOR_MAX_GAIN_SKIP_PCT", 3)
	cfg.SelectorConfig.MaxStocks = getEnvIntOrDefault("SELECTOR_MAX_STOCKS", 5)
	cfg.SelectorConfig.MaxPositionPercent = getEnvFloatOrDefault("SELECTOR_MAX_POSITION_PERCENT", 10)
	cfg.SelectorConfig.PrioritizeBelowRef = getEnvOrDefault("SELECTOR_PRIORITIZE_BELOW_REF", "true") == "true"
	cfg.SelectorConfig.SortByProbability = getEnvOrDefault("SELECTOR_SORT_BY_PROBABILITY", "true") == "true"

	// Execution config
	cfg.ExecutionConfig.MaxAttempts = getEnvIntOrDefault("EXECUTION_MAX_ATTEMPTS", 5)
	cfg.ExecutionConfig.ObserveWaitSecs = getEnvIntOrDefault("EXECUTION_OBSERVE_WAIT_SECS", 20)
	cfg.ExecutionConfig.TakeProfitPct = getEnvFloatOrDefault("EXECUTION_TAKE_PROFIT_PCT", 5.0)
	cfg.ExecutionConfig.StopLossPct = getEnvFloatOrDefault("EXECUTION_STOP_LOSS_PCT", 2.0)
	cfg.ExecutionConfig.BaseBufferPct = getEnvFloatOrDefault("EXECUTION_BASE_BUFFER_PCT", 0.05)
	cfg.ExecutionConfig.BufferStepPct = getEnvFloatOrDefault("EXECUTION_BUFFER_STEP_PCT", 0.05)
	cfg.ExecutionConfig.StepAttempt1 = getEnvIntOrDefault("EXECUTION_STEP_ATTEMPT_1", 3)
	cfg.ExecutionConfig.StepAttempt2 = getEnvIntOrDefault("EXECUTION_STEP_ATTEMPT_2", 5)

	// Backtest config
	cfg.BacktestConfig.TPStart = getEnvFloatOrDefault("BACKTEST_TP_START", 1.0)
	cfg.BacktestConfig.TPEnd = getEnvFloatOrDefault("BACKTEST_TP_END", 10.0)
	cfg.BacktestConfig.TPStep = getEnvFloatOrDefault("BACKTEST_TP_STEP", 0.5)
	cfg.BacktestConfig.SLStart = getEnvFloatOrDefault("BACKTEST_SL_START", 0.5)
	cfg.BacktestConfig.SLEnd = getEnvFloatOrDefault("BACKTEST_SL_END", 5.0)
	cfg.BacktestConfig.SLStep = getEnvFloatOrDefault("BACKTEST_SL_STEP", 0.5)
	cfg.BacktestConfig.MinVolume = getEnvFloatOrDefault("BACKTEST_MIN_VOLUME", 0)
	cfg.BacktestConfig.MinPrice = getEnvFloatOrDefault("BACKTEST_MIN_PRICE", 0)
	cfg.BacktestConfig.MinProbability = getEnvFloatOrDefault("BACKTEST_MIN_PROBABILITY", 0)

	// Refresh config
	cfg.RefreshConfig.Enabled = getEnvOrDefault("REFRESH_ENABLED", "true") == "true"
	cfg.RefreshConfig.IntervalSecs = getEnvIntOrDefault("REFRESH_INTERVAL_SECS", 300)

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", "true") == "true"
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

// ObserveWait returns the observation wait as a duration.
func (c ExecutionConfig) ObserveWait() time.Duration {
	return time.Duration(c.ObserveWaitSecs) * time.Second
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
