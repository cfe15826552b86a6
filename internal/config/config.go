package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rewired-gh/eaanalyzer/internal/models"
)

// Config represents the complete application configuration
type Config struct {
	MT5      MT5Config      `mapstructure:"mt5"`
	Filters  FiltersConfig  `mapstructure:"filters"`
	Server   ServerConfig   `mapstructure:"server"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// MT5Config holds MT5 bridge API configuration
type MT5Config struct {
	BaseURL             string        `mapstructure:"base_url"`
	Timeout             time.Duration `mapstructure:"timeout"`
	Timezone            string        `mapstructure:"timezone"`
	MaxRetries          int           `mapstructure:"max_retries"`
	RetryDelayBase      time.Duration `mapstructure:"retry_delay_base"`
	MaxIdleConns        int           `mapstructure:"max_idle_conns"`
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `mapstructure:"idle_conn_timeout"`
	AutoConnect         bool          `mapstructure:"auto_connect"`
}

// FiltersConfig holds the filter criteria the dashboard starts with
type FiltersConfig struct {
	LookbackDays  int      `mapstructure:"lookback_days"` // 0 = since the first day of the current month
	Assets        []string `mapstructure:"assets"`
	EAs           []string `mapstructure:"eas"`
	Days          []string `mapstructure:"days"`
	Hours         []int    `mapstructure:"hours"`
	ResyncMinutes int      `mapstructure:"resync_minutes"`
}

// ServerConfig holds HTTP API configuration
type ServerConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	ListenAddr     string        `mapstructure:"listen_addr"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
	SummaryCron    string        `mapstructure:"summary_cron"` // empty = no daily summary
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	DBPath       string `mapstructure:"db_path"`
	MaxSnapshots int    `mapstructure:"max_snapshots"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
// An empty path skips the file and uses defaults plus environment.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	}

	setDefaults(v)

	// EA_ANALYZER_MT5_BASE_URL overrides mt5.base_url
	v.SetEnvPrefix("EA_ANALYZER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// MT5 bridge defaults
	v.SetDefault("mt5.base_url", "http://127.0.0.1:8000/api/v1")
	v.SetDefault("mt5.timeout", "30s")
	v.SetDefault("mt5.timezone", "Local")
	v.SetDefault("mt5.max_retries", 3)
	v.SetDefault("mt5.retry_delay_base", "1s")
	v.SetDefault("mt5.max_idle_conns", 10)
	v.SetDefault("mt5.max_idle_conns_per_host", 2)
	v.SetDefault("mt5.idle_conn_timeout", "90s")
	v.SetDefault("mt5.auto_connect", true)

	// Filter defaults
	v.SetDefault("filters.lookback_days", 0)
	v.SetDefault("filters.assets", []string{models.All})
	v.SetDefault("filters.eas", []string{models.All})
	v.SetDefault("filters.days", models.DefaultDays)
	v.SetDefault("filters.hours", models.DefaultHours())
	v.SetDefault("filters.resync_minutes", 1)

	// Server defaults
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.listen_addr", "127.0.0.1:8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")
	v.SetDefault("telegram.summary_cron", "")

	// Storage defaults
	v.SetDefault("storage.enabled", true)
	v.SetDefault("storage.db_path", "")
	v.SetDefault("storage.max_snapshots", 5000)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate MT5 config
	if c.MT5.BaseURL == "" {
		return fmt.Errorf("mt5.base_url is required")
	}
	if c.MT5.Timeout <= 0 {
		return fmt.Errorf("mt5.timeout must be positive")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("mt5.timezone is invalid: %w", err)
	}
	if c.MT5.MaxRetries < 1 {
		return fmt.Errorf("mt5.max_retries must be at least 1")
	}

	// Validate Filters config
	if c.Filters.LookbackDays < 0 {
		return fmt.Errorf("filters.lookback_days must not be negative")
	}
	for _, d := range c.Filters.Days {
		if !models.IsWeekdayName(d) {
			return fmt.Errorf("filters.days contains unknown day %q", d)
		}
	}
	for _, h := range c.Filters.Hours {
		if h < 0 || h > 23 {
			return fmt.Errorf("filters.hours must be between 0 and 23, got %d", h)
		}
	}
	if c.Filters.ResyncMinutes < 1 {
		return fmt.Errorf("filters.resync_minutes must be at least 1")
	}

	// Validate Server config
	if c.Server.Enabled && c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required when server is enabled")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Storage config
	if c.Storage.Enabled && c.Storage.MaxSnapshots < 1 {
		return fmt.Errorf("storage.max_snapshots must be at least 1")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// Location resolves mt5.timezone. An empty value means the local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.MT5.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.MT5.Timezone)
}

// Criteria builds the initial filter criteria relative to now.
func (c *Config) Criteria(now time.Time) models.FilterCriteria {
	criteria := models.DefaultCriteria(now)
	if c.Filters.LookbackDays > 0 {
		start := now.AddDate(0, 0, -c.Filters.LookbackDays)
		criteria.DateFrom = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, now.Location())
	}
	criteria.SelectedAssets = c.Filters.Assets
	criteria.SelectedEAs = c.Filters.EAs
	criteria.SelectedDays = c.Filters.Days
	criteria.SelectedHours = c.Filters.Hours
	criteria.ResyncMinutes = c.Filters.ResyncMinutes
	return criteria.Normalize()
}
