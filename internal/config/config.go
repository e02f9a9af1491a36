package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when no --config flag is given.
const DefaultPath = "warren.yml"

const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// WarrenConfig represents the top-level warren.yml configuration
type WarrenConfig struct {
	Version    string           `yaml:"version"`
	Instance   string           `yaml:"instance"` // Namespace for Redis keys and channels
	Backend    string           `yaml:"backend"`  // "redis" or "postgres"
	Redis      RedisConfig      `yaml:"redis,omitempty"`
	Postgres   PostgresConfig   `yaml:"postgres,omitempty"`
	Automation AutomationConfig `yaml:"automation,omitempty"`
	Rooms      RoomsConfig      `yaml:"rooms,omitempty"`
	Log        LogConfig        `yaml:"log,omitempty"`
	HTTP       HTTPConfig       `yaml:"http,omitempty"`
}

// RedisConfig locates the Redis backend
type RedisConfig struct {
	URL string `yaml:"url"`
}

// PostgresConfig locates the Postgres backend
type PostgresConfig struct {
	DSN     string `yaml:"dsn"`
	Migrate bool   `yaml:"migrate,omitempty"` // Apply the schema on startup
}

// AutomationConfig sets the periodic job intervals. A zero keepalive_interval disables keep-alive.
type AutomationConfig struct {
	TickInterval       time.Duration `yaml:"tick_interval,omitempty"`
	ResetCheckInterval time.Duration `yaml:"reset_check_interval,omitempty"`
	ClockInterval      time.Duration `yaml:"clock_interval,omitempty"`
	KeepaliveInterval  time.Duration `yaml:"keepalive_interval,omitempty"`
}

// RoomsConfig controls order keys of new rooms
type RoomsConfig struct {
	OrderIncrement int `yaml:"order_increment,omitempty"`
	OrderBaseline  int `yaml:"order_baseline,omitempty"`
}

// LogConfig selects the zap level and encoder
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error
	Format string `yaml:"format,omitempty"` // json or console
}

// HTTPConfig sets the health/read listener. Empty disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *WarrenConfig {
	c := &WarrenConfig{Version: "1.0"}
	c.applyDefaults()
	return c
}

func (c *WarrenConfig) applyDefaults() {
	if c.Instance == "" {
		c.Instance = "default"
	}
	if c.Backend == "" {
		c.Backend = BackendRedis
	}
	if c.Backend == BackendRedis && c.Redis.URL == "" {
		c.Redis.URL = "redis://localhost:6379"
	}
	if c.Automation.TickInterval == 0 {
		c.Automation.TickInterval = 10 * time.Second
	}
	if c.Automation.ResetCheckInterval == 0 {
		c.Automation.ResetCheckInterval = time.Hour
	}
	if c.Automation.ClockInterval == 0 {
		c.Automation.ClockInterval = time.Second
	}
	if c.Rooms.OrderIncrement == 0 {
		c.Rooms.OrderIncrement = 100
	}
	if c.Rooms.OrderBaseline == 0 {
		c.Rooms.OrderBaseline = 100
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// applyEnv lets the deployment environment override file values.
func (c *WarrenConfig) applyEnv() {
	c.Instance = getEnv("WARREN_INSTANCE", c.Instance)
	c.Redis.URL = getEnv("REDIS_URL", c.Redis.URL)
	c.Postgres.DSN = getEnv("DATABASE_URL", c.Postgres.DSN)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// Validate performs strict validation on the configuration
func (c *WarrenConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	switch c.Backend {
	case BackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("redis.url is required for the redis backend")
		}
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("invalid backend: %s (must be 'redis' or 'postgres')", c.Backend)
	}

	a := c.Automation
	if a.TickInterval < 0 || a.ResetCheckInterval < 0 || a.ClockInterval < 0 || a.KeepaliveInterval < 0 {
		return fmt.Errorf("automation intervals must not be negative")
	}

	if c.Rooms.OrderIncrement < 0 || c.Rooms.OrderBaseline < 0 {
		return fmt.Errorf("rooms.order_increment and rooms.order_baseline must be >= 0")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be 'debug', 'info', 'warn' or 'error')", c.Log.Level)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be 'json' or 'console')", c.Log.Format)
	}

	return nil
}

// Load reads warren.yml from path, applies environment overrides and defaults, and validates it.
// When optional is true a missing file yields the defaults instead of an error.
func Load(path string, optional bool) (*WarrenConfig, error) {
	config := &WarrenConfig{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case optional && errors.Is(err, os.ErrNotExist):
		config.Version = "1.0"
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	config.applyEnv()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
