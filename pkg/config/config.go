package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config represents the application configuration
type Config struct {
	Sync     SyncConfig    `env:", prefix=SYNC_"`
	MySQL    MySQLConfig   `env:", prefix=MYSQL_"`
	InfluxDB InfluxConfig  `env:", prefix=INFLUXDB_"`
	Redis    RedisConfig   `env:", prefix=REDIS_"`
	NATS     NATSConfig    `env:", prefix=NATS_"`
	Logging  LoggingConfig `env:", prefix=LOG_"`

	// Provider configs are processed separately (flat env names)
	Providers ProviderConfig
}

// SyncConfig holds batch run configuration
type SyncConfig struct {
	CursorName      string        `env:"CURSOR_NAME, default=history_backfill"`
	CheckpointEvery int           `env:"CHECKPOINT_EVERY, default=10"`
	PaceInterval    time.Duration `env:"PACE_INTERVAL, default=2s"`
	BarInterval     string        `env:"BAR_INTERVAL, default=1d"`
	StatusTTL       time.Duration `env:"STATUS_TTL, default=24h"`
}

// MySQLConfig holds MySQL configuration
type MySQLConfig struct {
	Host            string        `env:"HOST, default=localhost"`
	Port            int           `env:"PORT, default=3306"`
	Database        string        `env:"DATABASE, default=candles"`
	User            string        `env:"USER, default=candles"`
	Password        string        `env:"PASSWORD, default=candles123"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS, default=25"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS, default=5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME, default=5m"`
}

// InfluxConfig holds InfluxDB configuration
type InfluxConfig struct {
	URL     string        `env:"URL, default=http://localhost:8086"`
	Token   string        `env:"TOKEN, default=my-super-secret-auth-token"`
	Org     string        `env:"ORG, default=candles-org"`
	Bucket  string        `env:"BUCKET, default=candles"`
	Timeout time.Duration `env:"TIMEOUT, default=10s"`
}

// RedisConfig holds Redis configuration for the status cache
type RedisConfig struct {
	Enabled      bool          `env:"ENABLED, default=false"`
	Host         string        `env:"HOST, default=localhost"`
	Port         int           `env:"PORT, default=6379"`
	Password     string        `env:"PASSWORD"`
	DB           int           `env:"DB, default=0"`
	PoolSize     int           `env:"POOL_SIZE, default=10"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT, default=5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT, default=3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT, default=3s"`
}

// NATSConfig holds NATS configuration for sync event publishing
type NATSConfig struct {
	Enabled       bool          `env:"ENABLED, default=false"`
	URL           string        `env:"URL, default=nats://localhost:4222"`
	MaxReconnect  int           `env:"MAX_RECONNECT, default=10"`
	ReconnectWait time.Duration `env:"RECONNECT_WAIT, default=2s"`
	DrainTimeout  time.Duration `env:"DRAIN_TIMEOUT, default=30s"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `env:"LEVEL, default=info"`
	Format string `env:"FORMAT, default=json"`
	Output string `env:"OUTPUT, default=stdout"`
}

// ProviderConfig groups the upstream data providers
type ProviderConfig struct {
	Binance      BinanceConfig
	OANDA        OANDAConfig
	AlphaVantage AlphaVantageConfig
}

// BinanceConfig holds Binance-specific configuration
type BinanceConfig struct {
	APIKey    string `env:"BINANCE_API_KEY"`
	SecretKey string `env:"BINANCE_SECRET_KEY"`
	APIURL    string `env:"BINANCE_API_URL, default=https://api.binance.com"`
}

// OANDAConfig holds OANDA-specific configuration
type OANDAConfig struct {
	APIKey      string `env:"OANDA_API_KEY"`
	AccountID   string `env:"OANDA_ACCOUNT_ID"`
	Environment string `env:"OANDA_ENVIRONMENT, default=practice"` // live or practice
	APIURL      string `env:"OANDA_API_URL"`                       // Auto-set based on environment
}

// AlphaVantageConfig holds Alpha Vantage configuration for equities and indices
type AlphaVantageConfig struct {
	APIKey string `env:"ALPHAVANTAGE_API_KEY"`
	APIURL string `env:"ALPHAVANTAGE_API_URL, default=https://www.alphavantage.co"`
}

// Load loads configuration from environment variables using go-envconfig
func Load() (*Config, error) {
	ctx := context.Background()
	var cfg Config

	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	// Provider configs use flat env names rather than nested prefixes
	var binanceCfg BinanceConfig
	if err := envconfig.Process(ctx, &binanceCfg); err != nil {
		return nil, fmt.Errorf("failed to process binance config: %w", err)
	}
	cfg.Providers.Binance = binanceCfg

	var oandaCfg OANDAConfig
	if err := envconfig.Process(ctx, &oandaCfg); err != nil {
		return nil, fmt.Errorf("failed to process oanda config: %w", err)
	}
	if oandaCfg.APIURL == "" {
		if oandaCfg.Environment == "live" {
			oandaCfg.APIURL = "https://api-fxtrade.oanda.com"
		} else {
			oandaCfg.APIURL = "https://api-fxpractice.oanda.com"
		}
	}
	cfg.Providers.OANDA = oandaCfg

	var avCfg AlphaVantageConfig
	if err := envconfig.Process(ctx, &avCfg); err != nil {
		return nil, fmt.Errorf("failed to process alphavantage config: %w", err)
	}
	cfg.Providers.AlphaVantage = avCfg

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.MySQL.Host == "" {
		return fmt.Errorf("MySQL host is required")
	}

	if c.InfluxDB.URL == "" {
		return fmt.Errorf("InfluxDB URL is required")
	}

	if c.Sync.CursorName == "" {
		return fmt.Errorf("sync cursor name is required")
	}

	if c.Sync.CheckpointEvery < 1 {
		return fmt.Errorf("invalid checkpoint group size: %d", c.Sync.CheckpointEvery)
	}

	if c.Sync.PaceInterval < 0 {
		return fmt.Errorf("invalid pace interval: %s", c.Sync.PaceInterval)
	}

	if c.Redis.Enabled && c.Redis.Host == "" {
		return fmt.Errorf("Redis host is required when Redis is enabled")
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("NATS URL is required when NATS is enabled")
	}

	return nil
}

// GetMySQLDSN returns MySQL DSN string
func (c *Config) GetMySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true",
		c.MySQL.User,
		c.MySQL.Password,
		c.MySQL.Host,
		c.MySQL.Port,
		c.MySQL.Database,
	)
}

// GetRedisAddr returns Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}
