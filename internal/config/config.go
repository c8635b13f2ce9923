// Package config defines all configuration for the triangular arbitrage
// detector. Config is loaded from a YAML file (default: configs/config.yaml)
// with sensitive fields overridable via ARB_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	DryRun     bool                       `mapstructure:"dry_run"`
	Exchange   string                     `mapstructure:"exchange"`
	StartAsset string                     `mapstructure:"start_asset"`
	Universe   []string                   `mapstructure:"universe"`
	Detector   DetectorConfig             `mapstructure:"detector"`
	API        APIConfig                  `mapstructure:"api"`
	Catalog    CatalogConfig              `mapstructure:"catalog"`
	Feed       FeedConfig                 `mapstructure:"feed"`
	Ordering   OrderingConfig             `mapstructure:"ordering"`
	Database   DatabaseConfig             `mapstructure:"database"`
	Logging    LoggingConfig              `mapstructure:"logging"`
	RateLimits map[string]RateLimitConfig `mapstructure:"rate_limits"`
}

// RateLimitConfig tunes one exchange.Category's token bucket. Capacity is
// the burst allowance, RatePerSecond the continuous refill rate.
type RateLimitConfig struct {
	Capacity      float64 `mapstructure:"capacity"`
	RatePerSecond float64 `mapstructure:"rate_per_second"`
}

// DetectorConfig tunes the evaluation loop shared by every triangle worker.
type DetectorConfig struct {
	QtyInitial      float64       `mapstructure:"qty_initial"`
	ProfitThreshold float64       `mapstructure:"profit_threshold"`
	ScaleEnabled    bool          `mapstructure:"scale_enabled"`
	TickBusBuffer   int           `mapstructure:"tick_bus_buffer"`
	ShutdownGrace   time.Duration `mapstructure:"shutdown_grace"`
}

// APIConfig holds exchange API credentials and base URLs used by the
// ordering sink. PrivateKey-style wallet auth does not apply here: the
// detector targets a centralized spot exchange authenticated by an API
// key/secret pair.
type APIConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	ApiKey     string `mapstructure:"api_key"`
	Secret     string `mapstructure:"secret"`
	Passphrase string `mapstructure:"passphrase"`
}

// CatalogConfig points at the two external lookup services the topology
// builder consults: the authoritative reference-data catalog and the
// persisted instrument list.
type CatalogConfig struct {
	ReferenceDataURL string `mapstructure:"reference_data_url"`
	InstrumentListURL string `mapstructure:"instrument_list_url"`
}

// FeedConfig points at the live BBO market-data WebSocket feed.
type FeedConfig struct {
	WSURL string `mapstructure:"ws_url"`
}

// OrderingConfig controls whether realized profits are submitted as live
// orders, and how the residual-balance reconciliation sweep behaves.
type OrderingConfig struct {
	Enabled             bool `mapstructure:"enabled"`
	ReconcileResiduals  bool `mapstructure:"reconcile_residuals"`
}

// DatabaseConfig is the Postgres DSN used for profit persistence.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: ARB_API_KEY, ARB_API_SECRET, ARB_API_PASSPHRASE, ARB_DATABASE_DSN.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("ARB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if key := os.Getenv("ARB_API_KEY"); key != "" {
		cfg.API.ApiKey = key
	}
	if secret := os.Getenv("ARB_API_SECRET"); secret != "" {
		cfg.API.Secret = secret
	}
	if pass := os.Getenv("ARB_API_PASSPHRASE"); pass != "" {
		cfg.API.Passphrase = pass
	}
	if dsn := os.Getenv("ARB_DATABASE_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if os.Getenv("ARB_DRY_RUN") == "true" || os.Getenv("ARB_DRY_RUN") == "1" {
		cfg.DryRun = true
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Exchange == "" {
		return fmt.Errorf("exchange is required")
	}
	if c.StartAsset == "" {
		return fmt.Errorf("start_asset is required")
	}
	if len(c.Universe) < 3 {
		return fmt.Errorf("universe must list at least 3 assets")
	}
	if c.Detector.QtyInitial <= 0 {
		return fmt.Errorf("detector.qty_initial must be > 0")
	}
	if c.Catalog.ReferenceDataURL == "" {
		return fmt.Errorf("catalog.reference_data_url is required")
	}
	if c.Catalog.InstrumentListURL == "" {
		return fmt.Errorf("catalog.instrument_list_url is required")
	}
	if c.Feed.WSURL == "" {
		return fmt.Errorf("feed.ws_url is required")
	}
	if c.Ordering.Enabled {
		if c.API.ApiKey == "" || c.API.Secret == "" {
			return fmt.Errorf("api.api_key and api.secret are required when ordering.enabled is true")
		}
	}
	return nil
}
