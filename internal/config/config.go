// Package config provides configuration management using viper.
// It supports loading from YAML files, a .env file and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"clickearn/internal/catalog"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Rewards  RewardsConfig  `mapstructure:"rewards"`
	Dwell    DwellConfig    `mapstructure:"dwell"`
	Ads      AdsConfig      `mapstructure:"ads"`
	Console  ConsoleConfig  `mapstructure:"console"`
	Tasks    []TaskConfig   `mapstructure:"tasks"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	Driver     string `mapstructure:"driver"`
	Namespace  string `mapstructure:"namespace"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// RewardsConfig holds cooldown and withdrawal settings.
type RewardsConfig struct {
	Cooldown          time.Duration `mapstructure:"cooldown"`
	WithdrawThreshold string        `mapstructure:"withdraw_threshold"`
}

// DwellConfig holds the ad dwell heuristic timings.
type DwellConfig struct {
	Min    time.Duration `mapstructure:"min"`
	Margin time.Duration `mapstructure:"margin"`
}

// AdsConfig holds the ad destination opened for every slot.
type AdsConfig struct {
	URL string `mapstructure:"url"`
}

// ConsoleConfig holds line editor settings. An empty HistoryFile disables
// history.
type ConsoleConfig struct {
	HistoryFile string `mapstructure:"history_file"`
}

// TaskConfig overrides one catalogue entry.
type TaskConfig struct {
	ID          string `mapstructure:"id"`
	Title       string `mapstructure:"title"`
	Description string `mapstructure:"description"`
	Reward      string `mapstructure:"reward"`
	AdsRequired int    `mapstructure:"ads_required"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Threshold parses the withdrawal threshold.
func (r *RewardsConfig) Threshold() (decimal.Decimal, error) {
	v, err := decimal.NewFromString(r.WithdrawThreshold)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid withdraw threshold %q: %w", r.WithdrawThreshold, err)
	}
	return v, nil
}

// Catalog builds the task catalogue, falling back to the built-in tasks
// when none are configured.
func (c *Config) Catalog() (*catalog.Catalog, error) {
	if len(c.Tasks) == 0 {
		return catalog.Default(), nil
	}

	entries := make([]catalog.Entry, 0, len(c.Tasks))
	for _, t := range c.Tasks {
		reward, err := decimal.NewFromString(t.Reward)
		if err != nil {
			return nil, fmt.Errorf("task %s: invalid reward %q: %w", t.ID, t.Reward, err)
		}
		entries = append(entries, catalog.Entry{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			Reward:      reward,
			AdsRequired: t.AdsRequired,
		})
	}
	return catalog.New(entries)
}

// Validate checks values viper cannot type-check.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory, DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Namespace == "" {
		return errors.New("storage namespace cannot be empty")
	}
	// Keys are <namespace>_<kind>, so an underscore would let one
	// namespace's prefix cover another's keys.
	if strings.Contains(c.Storage.Namespace, "_") {
		return fmt.Errorf("storage namespace %q cannot contain '_'", c.Storage.Namespace)
	}
	if c.Ads.URL == "" {
		return errors.New("ads url cannot be empty")
	}
	if c.Rewards.Cooldown <= 0 {
		return errors.New("rewards cooldown must be positive")
	}
	if c.Dwell.Min <= 0 {
		return errors.New("dwell min must be positive")
	}
	if c.Dwell.Margin < 0 {
		return errors.New("dwell margin cannot be negative")
	}
	if _, err := c.Rewards.Threshold(); err != nil {
		return err
	}
	if _, err := c.Catalog(); err != nil {
		return err
	}
	return nil
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	// A missing .env is fine; it only seeds the environment.
	_ = godotenv.Load()

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g. STORAGE_DRIVER, DWELL_MIN, REWARDS_COOLDOWN
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")

	v.SetDefault("storage.driver", DriverSQLite)
	v.SetDefault("storage.namespace", "clickearn")
	v.SetDefault("storage.sqlite_path", "clickearn.db")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "clickearn")
	v.SetDefault("database.name", "clickearn")
	v.SetDefault("database.pool_size", 4)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("rewards.cooldown", "24h")
	v.SetDefault("rewards.withdraw_threshold", "110")

	v.SetDefault("dwell.min", "2s")
	v.SetDefault("dwell.margin", "500ms")

	v.SetDefault("ads.url", "https://example.com/ad")

	v.SetDefault("console.history_file", ".clickearn_history")
}
