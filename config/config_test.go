package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"nftfi/crypto"
)

var testAdmin = crypto.DeriveAddress([]byte("config-admin")).String()

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "nftfid.toml", `ListenAddress = "127.0.0.1:9000"
DataDir = "/var/lib/nftfi"
StorageBackend = "Bolt"
Admin = "`+testAdmin+`"

[lending]
DefaultFeeBps = 2500

[auth]
Enabled = true
HMACSecret = "s3cret"
ClockSkew = "30s"

[devnet]
Enabled = true
[devnet.Balances]
"`+testAdmin+`" = "1000000"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != "127.0.0.1:9000" || cfg.StorageBackend != "bolt" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Lending.DefaultFeeBps != 2500 || cfg.Lending.MaxPaymentCycles != 360 {
		t.Fatalf("lending defaults not merged: %+v", cfg.Lending)
	}
	if cfg.Auth.ClockSkew != 30*time.Second {
		t.Fatalf("unexpected clock skew %s", cfg.Auth.ClockSkew)
	}
	if cfg.StoragePath() != filepath.Join("/var/lib/nftfi", "ledger.db") {
		t.Fatalf("unexpected storage path %s", cfg.StoragePath())
	}
	amount, err := cfg.Devnet.Amount(testAdmin)
	if err != nil || amount.Int64() != 1_000_000 {
		t.Fatalf("unexpected devnet amount %v err %v", amount, err)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "nftfid.yaml", `listen: ":9100"
storage_backend: memory
lending:
  default_fee_bps: 3500
rate_limit:
  requests_per_minute: 60
  burst: 2
audit:
  dsn: "sqlite:audit.db"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":9100" || cfg.RateLimit.Burst != 2 || cfg.Audit.DSN != "sqlite:audit.db" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "nftfid.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not persisted: %v", err)
	}
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.ListenAddress != cfg.ListenAddress || reloaded.Lending != cfg.Lending {
		t.Fatalf("reloaded config differs: %+v vs %+v", reloaded, cfg)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "nftfid.toml", "ListenAddress = \":1\"\nBootnodes = []\n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unknown keys") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"backend":     func(c *Config) { c.StorageBackend = "redis" },
		"admin":       func(c *Config) { c.Admin = "not-an-address" },
		"fee":         func(c *Config) { c.Lending.DefaultFeeBps = 10_001 },
		"auth secret": func(c *Config) { c.Auth.Enabled = true },
		"audit dsn":   func(c *Config) { c.Audit.DSN = "mysql://db" },
		"webhook url": func(c *Config) { c.Webhook.Endpoint = "ftp://hooks" },
		"webhook key": func(c *Config) { c.Webhook.Endpoint = "https://hooks.example" },
		"devnet":      func(c *Config) { c.Devnet.Balances = map[string]string{testAdmin: "1.5"} },
		"listen":      func(c *Config) { c.ListenAddress = " " },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}
