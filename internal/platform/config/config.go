// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values. A local .env file is
loaded first when present so development setups need no exported variables.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (transport, stores) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// # Configuration Schema

// Config holds all runtime configuration for the Kaiwa client.
type Config struct {

	// Backend endpoint
	APIBaseURL string `env:"KAIWA_API_BASE_URL" envDefault:"http://localhost:8000"`

	// HTTPTimeout is the per-request deadline for every backend call.
	HTTPTimeout time.Duration `env:"KAIWA_HTTP_TIMEOUT" envDefault:"10s"`

	// ConfigDir overrides where the refresh token and preferences are stored.
	// Empty means the OS user config directory.
	ConfigDir string `env:"KAIWA_CONFIG_DIR"`

	// Logging
	LogLevel string `env:"KAIWA_LOG_LEVEL" envDefault:"warn"`
	Debug    bool   `env:"KAIWA_DEBUG"     envDefault:"false"`

	// Sandbox backend (kaiwa sandbox)
	SandboxPort   string `env:"KAIWA_SANDBOX_PORT"   envDefault:"8000"`
	SandboxSecret string `env:"KAIWA_SANDBOX_SECRET" envDefault:"kaiwa-sandbox-dev-secret"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
//
// A .env file in the working directory is merged first without overriding
// variables already exported in the process environment.
func Load() (*Config, error) {

	// Missing .env is the normal case outside development
	_ = godotenv.Load()

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects values the client cannot run with.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("config: KAIWA_API_BASE_URL must not be empty")
	}

	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("config: KAIWA_HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout)
	}

	return nil
}

// StateDir resolves the directory holding the refresh token file and the
// preferences blob, creating it with owner-only permissions if needed.
func (c *Config) StateDir() (string, error) {
	dir := c.ConfigDir

	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("config: failed to resolve user config directory: %w", err)
		}
		dir = filepath.Join(base, "kaiwa")
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("config: failed to create state directory: %w", err)
	}

	return dir, nil
}

// IsDebug reports whether verbose diagnostics are enabled.
func (c *Config) IsDebug() bool {
	return c.Debug
}
