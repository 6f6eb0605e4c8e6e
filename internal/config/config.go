// Package config loads run configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Feed types.
const (
	FeedRandomWalk = "RANDOM_WALK"
	FeedWebsocket  = "WEBSOCKET"
)

// Account models.
const (
	AccountCash   = "CASH"
	AccountMargin = "MARGIN"
)

// Storage backends.
const (
	StorageMemory = "MEMORY"
	StorageDB     = "DB"
)

// Config represents application configuration
type Config struct {
	Run      RunConfig      `yaml:"run"`
	Account  AccountConfig  `yaml:"account"`
	Strategy StrategyConfig `yaml:"strategy"`
	Policy   PolicyConfig   `yaml:"policy"`
	Feed     FeedConfig     `yaml:"feed"`
	Storage  StorageConfig  `yaml:"storage"`
}

// RunConfig represents scheduler settings
type RunConfig struct {
	Name            string `yaml:"name"`
	Runs            int    `yaml:"runs"`
	Parallelism     int    `yaml:"parallelism"`
	ChannelCapacity int    `yaml:"channel_capacity"`
	Verbose         bool   `yaml:"verbose"`
}

// AccountConfig represents the simulated account settings
type AccountConfig struct {
	BaseCurrency   string        `yaml:"base_currency"`
	InitialDeposit string        `yaml:"initial_deposit"`
	Model          string        `yaml:"model"`
	Leverage       string        `yaml:"leverage"`
	FeePct         string        `yaml:"fee_pct"`
	OrderTTL       time.Duration `yaml:"order_ttl"`

	// Parsed by Validate.
	Deposit     decimal.Decimal `yaml:"-"`
	Fee         decimal.Decimal `yaml:"-"`
	LeverageDec decimal.Decimal `yaml:"-"`
}

// StrategyConfig represents strategy settings
type StrategyConfig struct {
	Type       string `yaml:"type"`
	FastPeriod int    `yaml:"fast_period"`
	SlowPeriod int    `yaml:"slow_period"`
}

// PolicyConfig represents position-sizing settings
type PolicyConfig struct {
	OrderPct        string `yaml:"order_pct"`
	Shorting        bool   `yaml:"shorting"`
	OneOrderOnly    bool   `yaml:"one_order_only"`
	FractionalScale int32  `yaml:"fractional_scale"`

	// Parsed by Validate.
	OrderPctDec decimal.Decimal `yaml:"-"`
}

// FeedConfig represents event-source settings
type FeedConfig struct {
	Type     string        `yaml:"type"`
	Symbols  []string      `yaml:"symbols"`
	Steps    int           `yaml:"steps"`
	Seed     uint64        `yaml:"seed"`
	Interval time.Duration `yaml:"interval"`
	URL      string        `yaml:"url"`
}

// StorageConfig represents persistence settings
type StorageConfig struct {
	Backend       string `yaml:"backend"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Run: RunConfig{
			Name:        "backtest",
			Runs:        1,
			Parallelism: 4,
		},
		Account: AccountConfig{
			BaseCurrency:   "USD",
			InitialDeposit: "100000",
			Model:          AccountCash,
			FeePct:         "0",
		},
		Strategy: StrategyConfig{
			Type:       "EMA_CROSS",
			FastPeriod: 12,
			SlowPeriod: 26,
		},
		Policy: PolicyConfig{
			OrderPct:     "0.01",
			OneOrderOnly: true,
		},
		Feed: FeedConfig{
			Type:     FeedRandomWalk,
			Symbols:  []string{"SIM"},
			Steps:    1000,
			Seed:     1,
			Interval: time.Minute,
		},
		Storage: StorageConfig{
			Backend: StorageMemory,
		},
	}
}

// Load loads configuration from YAML file with env overrides
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.loadEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadEnvOverrides overrides config with environment variables
func (c *Config) loadEnvOverrides() {
	if v := os.Getenv("BACKSIM_POSTGRES_DSN"); v != "" {
		c.Storage.PostgresDSN = v
	}
	if v := os.Getenv("BACKSIM_CLICKHOUSE_DSN"); v != "" {
		c.Storage.ClickhouseDSN = v
	}
	if v := os.Getenv("BACKSIM_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("BACKSIM_FEED_URL"); v != "" {
		c.Feed.URL = v
	}
	if v := os.Getenv("BACKSIM_VERBOSE"); v != "" {
		c.Run.Verbose = v == "true" || v == "1"
	}
	if v := os.Getenv("BACKSIM_PARALLELISM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Run.Parallelism = n
		}
	}
}

// Validate checks the configuration and parses its decimal fields.
func (c *Config) Validate() error {
	if c.Run.Name == "" {
		return fmt.Errorf("run.name is required")
	}
	if c.Run.Runs <= 0 {
		c.Run.Runs = 1
	}
	if c.Run.Parallelism <= 0 {
		c.Run.Parallelism = 1
	}
	if c.Run.ChannelCapacity < 0 {
		return fmt.Errorf("run.channel_capacity must be >= 0")
	}

	var err error
	if c.Account.Deposit, err = decimal.NewFromString(c.Account.InitialDeposit); err != nil {
		return fmt.Errorf("account.initial_deposit: %w", err)
	}
	if !c.Account.Deposit.IsPositive() {
		return fmt.Errorf("account.initial_deposit must be positive")
	}
	if c.Account.FeePct == "" {
		c.Account.FeePct = "0"
	}
	if c.Account.Fee, err = decimal.NewFromString(c.Account.FeePct); err != nil {
		return fmt.Errorf("account.fee_pct: %w", err)
	}
	if c.Account.Fee.IsNegative() {
		return fmt.Errorf("account.fee_pct must not be negative")
	}
	switch c.Account.Model {
	case AccountCash:
	case AccountMargin:
		if c.Account.Leverage == "" {
			c.Account.Leverage = "2"
		}
		if c.Account.LeverageDec, err = decimal.NewFromString(c.Account.Leverage); err != nil {
			return fmt.Errorf("account.leverage: %w", err)
		}
		if !c.Account.LeverageDec.IsPositive() {
			return fmt.Errorf("account.leverage must be positive")
		}
	default:
		return fmt.Errorf("account.model must be %s or %s", AccountCash, AccountMargin)
	}

	if c.Strategy.Type == "" {
		return fmt.Errorf("strategy.type is required")
	}
	if c.Policy.OrderPctDec, err = decimal.NewFromString(c.Policy.OrderPct); err != nil {
		return fmt.Errorf("policy.order_pct: %w", err)
	}
	if !c.Policy.OrderPctDec.IsPositive() || c.Policy.OrderPctDec.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("policy.order_pct must be in (0, 1]")
	}
	if c.Policy.FractionalScale < 0 {
		return fmt.Errorf("policy.fractional_scale must be >= 0")
	}

	switch c.Feed.Type {
	case FeedRandomWalk:
		if len(c.Feed.Symbols) == 0 {
			return fmt.Errorf("feed.symbols is required")
		}
		if c.Feed.Steps <= 0 {
			return fmt.Errorf("feed.steps must be positive")
		}
		if c.Feed.Interval <= 0 {
			c.Feed.Interval = time.Minute
		}
	case FeedWebsocket:
		if c.Feed.URL == "" {
			return fmt.Errorf("feed.url is required for the websocket feed")
		}
	default:
		return fmt.Errorf("feed.type must be %s or %s", FeedRandomWalk, FeedWebsocket)
	}

	switch c.Storage.Backend {
	case StorageMemory:
	case StorageDB:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn is required for the db backend")
		}
		if c.Storage.ClickhouseDSN == "" {
			return fmt.Errorf("storage.clickhouse_dsn is required for the db backend")
		}
	default:
		return fmt.Errorf("storage.backend must be %s or %s", StorageMemory, StorageDB)
	}

	return nil
}
