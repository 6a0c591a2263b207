// Package config loads runtime configuration from an optional YAML file and
// the environment. Environment variables win over file values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Deployment defaults.
const (
	DefaultPrice          = 5
	DefaultInitialCredits = 100
	DefaultValidityDays   = 30
	DefaultSearchTimeout  = 30 * time.Second
	DefaultDatabasePath   = "searchledger.db"
	DefaultHost           = "127.0.0.1"
	DefaultPort           = "8080"
)

// Config is the full runtime configuration.
type Config struct {
	AdminID        int64  `yaml:"admin_id"`
	PricePerSearch int64  `yaml:"price_per_search"`
	InitialCredits int64  `yaml:"initial_credits"`
	ValidityDays   int    `yaml:"validity_days"`
	DatabasePath   string `yaml:"database_path"`

	Host          string `yaml:"host"`
	Port          string `yaml:"port"`
	AdminPassword string `yaml:"admin_password"`

	ChannelAPIURL   string `yaml:"channel_api_url"`
	ChannelAPIToken string `yaml:"channel_api_token"`
	// SearchTimeout comes from the SEARCH_TIMEOUT env var only (Go duration
	// syntax, e.g. "30s"); yaml.v3 has no native duration support.
	SearchTimeout time.Duration `yaml:"-"`
}

// Load reads the config file named by SEARCHLEDGER_CONFIG (if any), applies
// environment overrides, then fills remaining defaults. ADMIN_ID must be set
// one way or the other.
func Load() (*Config, error) {
	cfg := &Config{}

	if path := os.Getenv("SEARCHLEDGER_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if cfg.AdminID == 0 {
		return nil, fmt.Errorf("ADMIN_ID is required")
	}
	if cfg.PricePerSearch < 0 {
		return nil, fmt.Errorf("PRICE_PER_SEARCH must be positive, got %d", cfg.PricePerSearch)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("ADMIN_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid ADMIN_ID %q: %w", v, err)
		}
		c.AdminID = id
	}
	if v := os.Getenv("PRICE_PER_SEARCH"); v != "" {
		price, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid PRICE_PER_SEARCH %q: %w", v, err)
		}
		c.PricePerSearch = price
	}
	if v := os.Getenv("INITIAL_CREDITS"); v != "" {
		credits, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid INITIAL_CREDITS %q: %w", v, err)
		}
		c.InitialCredits = credits
	}
	if v := os.Getenv("VALIDITY_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid VALIDITY_DAYS %q: %w", v, err)
		}
		c.ValidityDays = days
	}
	if v := os.Getenv("SEARCH_TIMEOUT"); v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SEARCH_TIMEOUT %q: %w", v, err)
		}
		c.SearchTimeout = timeout
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		c.DatabasePath = v
	}
	if v := os.Getenv("HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Port = v
	}
	if v := os.Getenv("ADMIN_PASSWORD"); v != "" {
		c.AdminPassword = v
	}
	if v := os.Getenv("CHANNEL_API_URL"); v != "" {
		c.ChannelAPIURL = v
	}
	if v := os.Getenv("CHANNEL_API_TOKEN"); v != "" {
		c.ChannelAPIToken = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.PricePerSearch == 0 {
		c.PricePerSearch = DefaultPrice
	}
	if c.InitialCredits == 0 {
		c.InitialCredits = DefaultInitialCredits
	}
	if c.ValidityDays == 0 {
		c.ValidityDays = DefaultValidityDays
	}
	if c.SearchTimeout == 0 {
		c.SearchTimeout = DefaultSearchTimeout
	}
	if c.DatabasePath == "" {
		c.DatabasePath = DefaultDatabasePath
	}
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == "" {
		c.Port = DefaultPort
	}
}
