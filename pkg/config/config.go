// Package config defines the engine's typed configuration. Values load
// from file and environment through viper; every struct carries defaults
// so a zero-config run behaves sensibly.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/cloudvigil/cloudvigil/pkg/inventory"
)

// Config is the root configuration.
type Config struct {
	Account   AccountConfig   `mapstructure:"account"`
	Scan      ScanConfig      `mapstructure:"scan"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Policies  PoliciesConfig  `mapstructure:"policies"`
}

// AccountConfig identifies the account being scanned.
type AccountConfig struct {
	ID       string   `mapstructure:"id"`
	TenantID string   `mapstructure:"tenant_id"`
	Provider string   `mapstructure:"provider"`
	Regions  []string `mapstructure:"regions"`
}

// ScanConfig tunes scan orchestration.
type ScanConfig struct {
	// Concurrency caps parallel family pipelines.
	Concurrency int `mapstructure:"concurrency"`
	// RetryBudget bounds per-family retries of transient provider faults.
	RetryBudget time.Duration `mapstructure:"retry_budget"`
	// Mock substitutes the fabricated demo fleet for real collectors.
	Mock bool `mapstructure:"mock"`
	// MockSeed fixes the demo fleet's generated identifiers.
	MockSeed int64 `mapstructure:"mock_seed"`
}

// PricingConfig selects the price source.
type PricingConfig struct {
	// Static serves the shipped price table instead of the vendor API.
	Static bool `mapstructure:"static"`
	// CacheDir holds the TTL'd price cache.
	CacheDir string `mapstructure:"cache_dir"`
}

// StorageConfig selects where findings and rule overrides persist.
type StorageConfig struct {
	// Backend is "local" or "s3".
	Backend string `mapstructure:"backend"`
	// Dir is the local backend's root directory.
	Dir string `mapstructure:"dir"`
	// Bucket and Prefix locate the s3 backend.
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// ServerConfig tunes the HTTP API.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// TelemetryConfig controls tracing.
type TelemetryConfig struct {
	Disabled     bool   `mapstructure:"disabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// PoliciesConfig points at tenant-authored custom scenarios.
type PoliciesConfig struct {
	// File is a YAML list of custom scenarios registered into the
	// catalog at startup. Empty means built-in scenarios only.
	File string `mapstructure:"file"`
}

// Default returns the zero-config baseline.
func Default() Config {
	return Config{
		Account: AccountConfig{
			TenantID: "default",
			Provider: string(inventory.ProviderAWS),
			Regions:  []string{"us-east-1"},
		},
		Scan: ScanConfig{
			Concurrency: 4,
			RetryBudget: 2 * time.Minute,
			MockSeed:    1,
		},
		Pricing: PricingConfig{
			CacheDir: ".cloudvigil/cache",
		},
		Storage: StorageConfig{
			Backend: "local",
			Dir:     ".cloudvigil/data",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// Load reads configuration from the given file (optional), environment
// variables prefixed CLOUDVIGIL_, and defaults, in ascending priority of
// defaults < file < environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CLOUDVIGIL")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.Scan.Concurrency < 1 {
		return fmt.Errorf("scan.concurrency must be >= 1, got %d", c.Scan.Concurrency)
	}
	if !inventory.Provider(c.Account.Provider).Valid() {
		return fmt.Errorf("unsupported provider %q", c.Account.Provider)
	}
	switch c.Storage.Backend {
	case "local", "s3":
	default:
		return fmt.Errorf("storage.backend must be local or s3, got %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "s3" && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required for the s3 backend")
	}
	return nil
}
