package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"nftfi/native/lending"
)

// Config is the daemon configuration. TOML is the canonical format; files
// ending in .yaml or .yml are decoded as YAML.
type Config struct {
	ListenAddress  string          `toml:"ListenAddress" yaml:"listen"`
	DataDir        string          `toml:"DataDir" yaml:"data_dir"`
	StorageBackend string          `toml:"StorageBackend" yaml:"storage_backend"`
	Admin          string          `toml:"Admin" yaml:"admin"`
	Lending        lending.Config  `toml:"lending" yaml:"lending"`
	Auth           AuthConfig      `toml:"auth" yaml:"auth"`
	RateLimit      RateLimitConfig `toml:"rate_limit" yaml:"rate_limit"`
	Audit          AuditConfig     `toml:"audit" yaml:"audit"`
	Webhook        WebhookConfig   `toml:"webhook" yaml:"webhook"`
	Telemetry      TelemetryConfig `toml:"telemetry" yaml:"telemetry"`
	Logging        LoggingConfig   `toml:"logging" yaml:"logging"`
	Devnet         DevnetConfig    `toml:"devnet" yaml:"devnet"`
}

type AuthConfig struct {
	Enabled    bool          `toml:"Enabled" yaml:"enabled"`
	HMACSecret string        `toml:"HMACSecret" yaml:"hmac_secret"`
	Issuer     string        `toml:"Issuer" yaml:"issuer"`
	Audience   string        `toml:"Audience" yaml:"audience"`
	ClockSkew  time.Duration `toml:"ClockSkew" yaml:"clock_skew"`
}

type RateLimitConfig struct {
	RequestsPerMinute float64 `toml:"RequestsPerMinute" yaml:"requests_per_minute"`
	Burst             int     `toml:"Burst" yaml:"burst"`
}

// AuditConfig points the audit sink at a database. Empty DSN disables it.
type AuditConfig struct {
	DSN string `toml:"DSN" yaml:"dsn"`
}

// WebhookConfig forwards committed events to an HTTP endpoint. Empty
// Endpoint disables it.
type WebhookConfig struct {
	Endpoint    string `toml:"Endpoint" yaml:"endpoint"`
	Secret      string `toml:"Secret" yaml:"secret"`
	MaxAttempts int    `toml:"MaxAttempts" yaml:"max_attempts"`
}

type TelemetryConfig struct {
	Enabled  bool   `toml:"Enabled" yaml:"enabled"`
	Endpoint string `toml:"Endpoint" yaml:"endpoint"`
	Insecure bool   `toml:"Insecure" yaml:"insecure"`
	Headers  string `toml:"Headers" yaml:"headers"`
	Metrics  bool   `toml:"Metrics" yaml:"metrics"`
	Traces   bool   `toml:"Traces" yaml:"traces"`
}

type LoggingConfig struct {
	Env        string `toml:"Env" yaml:"env"`
	Level      string `toml:"Level" yaml:"level"`
	File       string `toml:"File" yaml:"file"`
	MaxSizeMB  int    `toml:"MaxSizeMB" yaml:"max_size_mb"`
	MaxBackups int    `toml:"MaxBackups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"MaxAgeDays" yaml:"max_age_days"`
}

// DevnetConfig seeds the in-process token ledger. Balances maps bech32
// addresses to decimal wei amounts.
type DevnetConfig struct {
	Enabled  bool              `toml:"Enabled" yaml:"enabled"`
	Symbol   string            `toml:"Symbol" yaml:"symbol"`
	Balances map[string]string `toml:"Balances" yaml:"balances"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		ListenAddress:  ":8090",
		DataDir:        "./nftfi-data",
		StorageBackend: "leveldb",
		Lending:        lending.DefaultConfig(),
		Auth:           AuthConfig{ClockSkew: 2 * time.Minute},
		RateLimit:      RateLimitConfig{RequestsPerMinute: 600, Burst: 20},
		Telemetry:      TelemetryConfig{Endpoint: "localhost:4318", Metrics: true, Traces: true},
		Logging:        LoggingConfig{Env: "dev", Level: "info", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 28},
		Devnet:         DevnetConfig{Enabled: true, Symbol: "WETH", Balances: map[string]string{}},
	}
}

// Load reads the configuration at path. A missing file is created with the
// defaults so operators have something to edit.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := Default()
	if isYAML(path) {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	} else {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config: unknown keys in %s: %v", path, undecoded)
		}
	}
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func (c *Config) normalise() {
	c.StorageBackend = strings.ToLower(strings.TrimSpace(c.StorageBackend))
	c.Admin = strings.TrimSpace(c.Admin)
	if c.Devnet.Balances == nil {
		c.Devnet.Balances = map[string]string{}
	}
	if strings.TrimSpace(c.Devnet.Symbol) == "" {
		c.Devnet.Symbol = "WETH"
	}
}

// StoragePath returns where the selected backend keeps its files.
func (c *Config) StoragePath() string {
	switch c.StorageBackend {
	case "bolt", "bbolt":
		return filepath.Join(c.DataDir, "ledger.db")
	default:
		return filepath.Join(c.DataDir, "ledger")
	}
}

func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if isYAML(path) {
		enc := yaml.NewEncoder(f)
		defer enc.Close()
		return enc.Encode(cfg)
	}
	return toml.NewEncoder(f).Encode(cfg)
}
