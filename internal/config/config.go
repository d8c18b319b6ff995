// Package config provides configuration loading and validation for the collector.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Defaults applied when neither the config file nor flags set a value.
const (
	DefaultPortalURL        = "https://www.nfse.gov.br/EmissorNacional/"
	DefaultOperationTimeout = 30 * time.Second
	DefaultQueueIdleTimeout = 60 * time.Second
	DefaultQueueCapacity    = 32
)

// Config represents the collector configuration that can be loaded from a
// JSON file. All fields are optional; missing values use defaults or must be
// provided via CLI flags.
type Config struct {
	// Paths
	DownloadsPath string `json:"downloads_path,omitempty"`  // Base directory for downloaded documents
	CertStorePath string `json:"cert_store_path,omitempty"` // Directory holding encrypted certificates

	// Portal
	PortalURL string `json:"portal_url,omitempty"` // Base URL of the fiscal portal

	// Behavior
	Headless             *bool `json:"headless,omitempty"`               // Run the browser without a visible window; nil means headless
	IgnoreTLSErrors      bool  `json:"ignore_tls_errors,omitempty"`      // Skip TLS verification against the portal
	OperationTimeoutSecs int   `json:"operation_timeout_secs,omitempty"` // Bounded wait for page operations
	QueueIdleTimeoutSecs int   `json:"queue_idle_timeout_secs,omitempty"`
	QueueCapacity        int   `json:"queue_capacity,omitempty"`

	// External services
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL for company metadata
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.OperationTimeoutSecs < 0 {
		return fmt.Errorf("config error: 'operation_timeout_secs' must be non-negative")
	}
	if c.QueueIdleTimeoutSecs < 0 {
		return fmt.Errorf("config error: 'queue_idle_timeout_secs' must be non-negative")
	}
	if c.QueueCapacity < 0 {
		return fmt.Errorf("config error: 'queue_capacity' must be non-negative")
	}
	if c.DownloadsPath != "" {
		if info, err := os.Stat(c.DownloadsPath); err == nil && !info.IsDir() {
			return fmt.Errorf("config error: downloads path is not a directory: %s", c.DownloadsPath)
		}
	}
	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.DownloadsPath == "" {
		result.DownloadsPath = defaults.DownloadsPath
	}
	if result.CertStorePath == "" {
		result.CertStorePath = defaults.CertStorePath
	}
	if result.PortalURL == "" {
		result.PortalURL = defaults.PortalURL
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.Headless == nil {
		result.Headless = defaults.Headless
	}
	if result.OperationTimeoutSecs == 0 {
		result.OperationTimeoutSecs = defaults.OperationTimeoutSecs
	}
	if result.QueueIdleTimeoutSecs == 0 {
		result.QueueIdleTimeoutSecs = defaults.QueueIdleTimeoutSecs
	}
	if result.QueueCapacity == 0 {
		result.QueueCapacity = defaults.QueueCapacity
	}

	return result
}

// HeadlessMode reports whether the browser runs without a visible window.
// An explicit "headless": false in the config file is honored; unset means
// headless.
func (c *Config) HeadlessMode() bool {
	if c.Headless != nil {
		return *c.Headless
	}
	return true
}

// OperationTimeout returns the configured per-operation timeout, or the default.
func (c *Config) OperationTimeout() time.Duration {
	if c.OperationTimeoutSecs > 0 {
		return time.Duration(c.OperationTimeoutSecs) * time.Second
	}
	return DefaultOperationTimeout
}

// QueueIdleTimeout returns the worker idle timeout, or the default.
func (c *Config) QueueIdleTimeout() time.Duration {
	if c.QueueIdleTimeoutSecs > 0 {
		return time.Duration(c.QueueIdleTimeoutSecs) * time.Second
	}
	return DefaultQueueIdleTimeout
}

// Portal returns the configured portal base URL, or the default.
func (c *Config) Portal() string {
	if c.PortalURL != "" {
		return c.PortalURL
	}
	return DefaultPortalURL
}
