package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"StockFetch/internal/collector"
)

// DefaultPath is used when neither --config nor STOCKFETCH_CONFIG is given.
const DefaultPath = "configs/config.yaml"

// Config holds all application configuration.
type Config struct {
	Provider struct {
		Backend   string        `yaml:"backend"`
		BaseURL   string        `yaml:"base_url"`
		Timeout   time.Duration `yaml:"timeout"`
		Proxy     string        `yaml:"proxy"`
		UserAgent string        `yaml:"user_agent"`
	} `yaml:"provider"`
	Timezone string `yaml:"timezone"`
	History  struct {
		CutoffDays  int    `yaml:"cutoff_days"`
		MinuteRange string `yaml:"minute_range"`
		DayRange    string `yaml:"day_range"`
	} `yaml:"history"`
	Output struct {
		DoubleEncode bool `yaml:"double_encode"`
	} `yaml:"output"`
	Database struct {
		PostgresURL string `yaml:"postgres_url"`
		SQLitePath  string `yaml:"sqlite_path"`
		Name        string `yaml:"name"`
	} `yaml:"database"`
	Sync struct {
		ListenAddr    string        `yaml:"listen_addr"`
		BackfillPause time.Duration `yaml:"backfill_pause"`
		PriceCrons    []string      `yaml:"price_crons"`
		CompactCron   string        `yaml:"compact_cron"`
		PruneCron     string        `yaml:"prune_cron"`
		ReindexCron   string        `yaml:"reindex_cron"`
		SectorCron    string        `yaml:"sector_cron"`
	} `yaml:"sync"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Path resolves the config file location from a flag value and the environment.
func Path(flag string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv("STOCKFETCH_CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads .env, then the YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := newConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("STOCKFETCH_BACKEND"); v != "" {
		cfg.Provider.Backend = v
	}
	if v := os.Getenv("YAHOO_BASE_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Provider.Proxy = v
	}
	if v := os.Getenv("STOCKFETCH_TIMEZONE"); v != "" {
		cfg.Timezone = v
	}
	if v := os.Getenv("STOCKFETCH_DOUBLE_ENCODE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Output.DoubleEncode = b
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.PostgresURL = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.Sync.ListenAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	cfg.applyDefaults()
	return cfg, nil
}

// newConfig seeds the settings where an empty value is meaningful. The YAML
// decode only overwrites keys present in the file, so `compact_cron: ""` or
// `backfill_pause: 0s` switch the default off.
func newConfig() *Config {
	cfg := &Config{}
	cfg.Sync.BackfillPause = 5 * time.Second
	cfg.Sync.PriceCrons = []string{
		"CRON_TZ=America/New_York 30-59 9 * * 1-5",
		"CRON_TZ=America/New_York * 10-15 * * 1-5",
		"CRON_TZ=America/New_York 0-10 16 * * 1-5",
	}
	cfg.Sync.CompactCron = "CRON_TZ=Europe/Berlin 30 0 * * *"
	cfg.Sync.PruneCron = "CRON_TZ=Europe/Berlin 35 0 * * *"
	cfg.Sync.ReindexCron = "CRON_TZ=Europe/Berlin 40 0 * * *"
	return cfg
}

// applyDefaults fills settings that must not stay empty.
func (c *Config) applyDefaults() {
	if c.Provider.Backend == "" {
		c.Provider.Backend = collector.BackendYahoo
	}
	if c.Provider.Timeout == 0 {
		c.Provider.Timeout = 30 * time.Second
	}
	if c.Timezone == "" {
		c.Timezone = "Europe/Berlin"
	}
	if c.History.CutoffDays == 0 {
		c.History.CutoffDays = 9
	}
	if c.History.MinuteRange == "" {
		c.History.MinuteRange = "7d"
	}
	if c.History.DayRange == "" {
		c.History.DayRange = "3mo"
	}
	if c.Database.Name == "" {
		c.Database.Name = "swift"
	}
	if c.Sync.ListenAddr == "" {
		c.Sync.ListenAddr = ":5000"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

// Location returns the reference timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// FetcherOptions returns the HTTP options for the provider.
func (c *Config) FetcherOptions() collector.Options {
	return collector.Options{
		BaseURL:   c.Provider.BaseURL,
		Proxy:     c.Provider.Proxy,
		UserAgent: c.Provider.UserAgent,
		Timeout:   c.Provider.Timeout,
	}
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Provider.Backend) {
	case collector.BackendYahoo, collector.BackendFinanceGo:
	default:
		return fmt.Errorf("provider.backend must be %q or %q, got %q",
			collector.BackendYahoo, collector.BackendFinanceGo, c.Provider.Backend)
	}
	if c.Provider.Timeout < 0 {
		return fmt.Errorf("provider.timeout must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.History.CutoffDays <= 0 {
		return fmt.Errorf("history.cutoff_days must be positive")
	}
	now := time.Now()
	if _, err := collector.RangeStart(now, c.History.MinuteRange); err != nil {
		return fmt.Errorf("history.minute_range: %w", err)
	}
	if _, err := collector.RangeStart(now, c.History.DayRange); err != nil {
		return fmt.Errorf("history.day_range: %w", err)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}
	return nil
}

// ValidateSync additionally checks what the sync service needs.
func (c *Config) ValidateSync() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Database.PostgresURL == "" {
		return fmt.Errorf("database.postgres_url is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Sync.BackfillPause < 0 {
		return fmt.Errorf("sync.backfill_pause must not be negative")
	}
	return nil
}
