package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
account:
  id: "123456789012"
  tenant_id: acme
scan:
  concurrency: 8
storage:
  backend: s3
  bucket: vigil-state
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Account.ID != "123456789012" || cfg.Account.TenantID != "acme" {
		t.Errorf("file values not applied: %+v", cfg.Account)
	}
	if cfg.Scan.Concurrency != 8 {
		t.Errorf("expected concurrency 8, got %d", cfg.Scan.Concurrency)
	}
	if cfg.Storage.Bucket != "vigil-state" {
		t.Errorf("expected bucket vigil-state, got %q", cfg.Storage.Bucket)
	}
	// Untouched sections keep defaults.
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("default shutdown timeout lost: %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Account.Provider != "aws" {
		t.Errorf("default provider lost: %q", cfg.Account.Provider)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero concurrency", func(c *Config) { c.Scan.Concurrency = 0 }},
		{"bad provider", func(c *Config) { c.Account.Provider = "digitalocean" }},
		{"bad backend", func(c *Config) { c.Storage.Backend = "ftp" }},
		{"s3 without bucket", func(c *Config) { c.Storage.Backend = "s3"; c.Storage.Bucket = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
