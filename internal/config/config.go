// Package config loads the daemon's JSON configuration. Secrets never live
// in the file itself: fields ending in _env name the environment variable
// holding the value.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ChainPilot/pkg/logger"
)

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "CHAINPILOT_CONFIG"

// Duration decodes from either a Go duration string ("30s", "2m") or a
// nanosecond integer.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", raw, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var ns int64
	if err := json.Unmarshal(data, &ns); err != nil {
		return fmt.Errorf("parse duration: %w", err)
	}
	*d = Duration(ns)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the root configuration document.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Assistant AssistantConfig `json:"assistant"`
	Storage   StorageConfig   `json:"storage"`
	Chains    ChainsConfig    `json:"chains"`
	Bridge    BridgeConfig    `json:"bridge"`
	Events    EventsConfig    `json:"events"`
	Transfer  TransferConfig  `json:"transfer"`
	Logging   logger.Config   `json:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Address         string        `json:"address"`
	ShutdownTimeout Duration      `json:"shutdown_timeout"`
}

// AssistantConfig configures the model provider.
type AssistantConfig struct {
	BaseURL     string        `json:"base_url"`
	APIKeyEnv   string        `json:"api_key_env"`
	Model       string        `json:"model"`
	AssistantID string        `json:"assistant_id"`
	Timeout     Duration      `json:"timeout"`
	// PollInterval overrides the run status poll interval.
	PollInterval Duration `json:"poll_interval"`
}

// StorageConfig selects the wallet and session backends.
type StorageConfig struct {
	Wallets  WalletStoreConfig  `json:"wallets"`
	Sessions SessionStoreConfig `json:"sessions"`
}

// WalletStoreConfig selects memory or mysql.
type WalletStoreConfig struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

// SessionStoreConfig selects memory or redis.
type SessionStoreConfig struct {
	Driver    string `json:"driver"`
	Address   string `json:"address"`
	Password  string `json:"password"`
	DB        int    `json:"db"`
	KeyPrefix string `json:"key_prefix"`
}

// ChainsConfig points at the network definition file.
type ChainsConfig struct {
	DefinitionsPath string        `json:"definitions_path"`
	ConfirmTimeout  Duration `json:"confirm_timeout"`
}

// BridgeConfig configures the bridge quote backend.
type BridgeConfig struct {
	QuoteURL string `json:"quote_url"`
}

// EventsConfig selects the event publisher.
type EventsConfig struct {
	Driver string `json:"driver"`
	URL    string `json:"url"`
	Queue  string `json:"queue"`
}

// TransferConfig controls the funds-transfer tool.
type TransferConfig struct {
	// Ceiling is the per-call native transfer limit.
	Ceiling string `json:"ceiling"`
	// TreasuryKeyEnv names the env var holding the payout signing key.
	TreasuryKeyEnv string `json:"treasury_key_env"`
}

// Load parses the JSON configuration at path. An empty path falls back to
// the CHAINPILOT_CONFIG environment variable, then to built-in defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}

	cfg := &Config{}
	baseDir := "."
	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := json.Unmarshal(content, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
		baseDir = filepath.Dir(path)
	}

	cfg.applyDefaults(baseDir)
	return cfg, nil
}

// APIKey resolves the provider API key from the environment.
func (c *Config) APIKey() string {
	return os.Getenv(c.Assistant.APIKeyEnv)
}

// TreasuryKey resolves the transfer treasury key from the environment.
func (c *Config) TreasuryKey() string {
	return os.Getenv(c.Transfer.TreasuryKeyEnv)
}

func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if c.Assistant.BaseURL == "" {
		c.Assistant.BaseURL = "https://api.openai.com/v1"
	}
	if c.Assistant.APIKeyEnv == "" {
		c.Assistant.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.Assistant.Model == "" {
		c.Assistant.Model = "gpt-4o"
	}
	if c.Assistant.Timeout <= 0 {
		c.Assistant.Timeout = Duration(30 * time.Second)
	}

	if c.Storage.Wallets.Driver == "" {
		c.Storage.Wallets.Driver = "memory"
	}
	if c.Storage.Sessions.Driver == "" {
		c.Storage.Sessions.Driver = "memory"
	}

	if c.Chains.DefinitionsPath != "" && !filepath.IsAbs(c.Chains.DefinitionsPath) {
		c.Chains.DefinitionsPath = filepath.Join(baseDir, c.Chains.DefinitionsPath)
	}

	if c.Bridge.QuoteURL == "" {
		c.Bridge.QuoteURL = "https://gasyard-backendapi-v2-production-27d5.up.railway.app"
	}

	if c.Events.Driver == "" {
		c.Events.Driver = "memory"
	}

	if c.Transfer.Ceiling == "" {
		c.Transfer.Ceiling = "0.5"
	}
	if c.Transfer.TreasuryKeyEnv == "" {
		c.Transfer.TreasuryKeyEnv = "CHAINPILOT_TREASURY_KEY"
	}
}
