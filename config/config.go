package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/quantumai/api"
	"github.com/rustyeddy/quantumai/market"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Environment overrides.
const (
	EnvAPIURL   = "QUANTUMAI_API_URL"
	EnvStore    = "QUANTUMAI_STORE"
	EnvRedisURL = "QUANTUMAI_REDIS_URL"
	EnvLogLevel = "QUANTUMAI_LOG_LEVEL"
)

// Config represents the complete client configuration
type Config struct {
	API       APIConfig       `json:"api" yaml:"api"`
	Store     StoreConfig     `json:"store" yaml:"store"`
	Trading   TradingConfig   `json:"trading" yaml:"trading"`
	Dashboard DashboardConfig `json:"dashboard" yaml:"dashboard"`
	Log       LogConfig       `json:"log" yaml:"log"`
}

// APIConfig points at the QuantumAI backend
type APIConfig struct {
	BaseURL string `json:"base_url" yaml:"base_url"`
	Timeout string `json:"timeout" yaml:"timeout"` // e.g. "15s"
}

// StoreConfig selects where the session lives
type StoreConfig struct {
	Type        string `json:"type" yaml:"type"` // "memory", "sqlite" or "redis"
	SQLitePath  string `json:"sqlite_path,omitempty" yaml:"sqlite_path,omitempty"`
	RedisURL    string `json:"redis_url,omitempty" yaml:"redis_url,omitempty"`
	RedisPrefix string `json:"redis_prefix,omitempty" yaml:"redis_prefix,omitempty"`
}

// TradingConfig holds display and scheduling settings
type TradingConfig struct {
	Currency       string    `json:"currency" yaml:"currency"`
	Start          time.Time `json:"start" yaml:"start"`
	WhatsAppNumber string    `json:"whatsapp_number" yaml:"whatsapp_number"`
}

// DashboardConfig configures the local dashboard server
type DashboardConfig struct {
	Addr string `json:"addr" yaml:"addr"`
	Tick string `json:"tick" yaml:"tick"` // feed interval, e.g. "3s"
	Seed int64  `json:"seed,omitempty" yaml:"seed,omitempty"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level"`
}

// Timeout parses API.Timeout.
func (c *Config) Timeout() (time.Duration, error) {
	return parseDuration(c.API.Timeout)
}

// TickInterval parses Dashboard.Tick.
func (c *Config) TickInterval() (time.Duration, error) {
	return parseDuration(c.Dashboard.Tick)
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// LoadFromFile loads configuration from a file (JSON or YAML based on extension)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Load reads path when it exists (defaults otherwise), applies a .env file
// from dotenv if present, then environment overrides, and validates.
func Load(path, dotenv string) (*Config, error) {
	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", dotenv, err)
		}
	}

	cfg := Default()
	if path != "" {
		loaded, err := LoadFromFile(path)
		switch {
		case err == nil:
			cfg = loaded
		case errors.Is(err, fs.ErrNotExist):
			// Defaults.
		default:
			return nil, err
		}
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from QUANTUMAI_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv(EnvStore); v != "" {
		c.Store.Type = strings.ToLower(v)
	}
	if v := os.Getenv(EnvRedisURL); v != "" {
		c.Store.RedisURL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url must be an http(s) URL")
	}
	if d, err := c.Timeout(); err != nil || d < 0 {
		return fmt.Errorf("api.timeout must be a non-negative duration")
	}

	switch c.Store.Type {
	case StoreMemory:
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path required for sqlite store")
		}
	case StoreRedis:
		if c.Store.RedisURL == "" {
			return fmt.Errorf("store.redis_url required for redis store")
		}
	default:
		return fmt.Errorf("store.type must be 'memory', 'sqlite' or 'redis'")
	}

	if c.Trading.Currency == "" {
		return fmt.Errorf("trading.currency is required")
	}
	if c.Trading.Start.IsZero() {
		return fmt.Errorf("trading.start is required")
	}

	if c.Dashboard.Addr == "" {
		return fmt.Errorf("dashboard.addr is required")
	}
	if d, err := c.TickInterval(); err != nil || d <= 0 {
		return fmt.Errorf("dashboard.tick must be a positive duration")
	}
	return nil
}

// TradingStart is the launch time of live trading, 8:00 WAT on 7 Feb 2026.
var TradingStart = time.Date(2026, 2, 7, 8, 0, 0, 0, time.FixedZone("WAT", 3600))

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: api.DefaultBaseURL,
			Timeout: "30s",
		},
		Store: StoreConfig{
			Type:        StoreSQLite,
			SQLitePath:  defaultSQLitePath(),
			RedisPrefix: "quantumai:",
		},
		Trading: TradingConfig{
			Currency:       market.DefaultCurrency,
			Start:          TradingStart,
			WhatsAppNumber: "237672815642",
		},
		Dashboard: DashboardConfig{
			Addr: ":8080",
			Tick: "3s",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultSQLitePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "./quantumai.sqlite"
	}
	return filepath.Join(dir, "quantumai", "session.sqlite")
}
