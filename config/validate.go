package config

import (
	"fmt"
	"math/big"
	"net/url"
	"strings"

	"nftfi/crypto"
)

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("config: ListenAddress required")
	}
	switch c.StorageBackend {
	case "", "memory":
	case "leveldb", "bolt", "bbolt":
		if strings.TrimSpace(c.DataDir) == "" {
			return fmt.Errorf("config: DataDir required for %s storage", c.StorageBackend)
		}
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.StorageBackend)
	}
	if c.Admin != "" {
		if _, err := crypto.DecodeAddress(c.Admin); err != nil {
			return fmt.Errorf("config: invalid Admin: %w", err)
		}
	}
	if err := c.Lending.Validate(); err != nil {
		return err
	}
	if c.Auth.Enabled && strings.TrimSpace(c.Auth.HMACSecret) == "" {
		return fmt.Errorf("config: auth.HMACSecret required when auth is enabled")
	}
	if c.RateLimit.RequestsPerMinute < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("config: rate limits must not be negative")
	}
	if dsn := strings.TrimSpace(c.Audit.DSN); dsn != "" && !strings.HasPrefix(dsn, "sqlite:") &&
		!strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return fmt.Errorf("config: audit.DSN must start with sqlite: or postgres://")
	}
	if endpoint := strings.TrimSpace(c.Webhook.Endpoint); endpoint != "" {
		parsed, err := url.Parse(endpoint)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return fmt.Errorf("config: webhook.Endpoint must be an http(s) URL")
		}
		if strings.TrimSpace(c.Webhook.Secret) == "" {
			return fmt.Errorf("config: webhook.Secret required when an endpoint is set")
		}
	}
	if c.Webhook.MaxAttempts < 0 {
		return fmt.Errorf("config: webhook.MaxAttempts must not be negative")
	}
	for addr, amount := range c.Devnet.Balances {
		if _, err := crypto.DecodeAddress(addr); err != nil {
			return fmt.Errorf("config: devnet balance %s: %w", addr, err)
		}
		if _, err := c.Devnet.Amount(addr); err != nil {
			return fmt.Errorf("config: devnet balance %s: %q is not a whole amount", addr, amount)
		}
	}
	return nil
}

// Amount parses the configured devnet balance of addr.
func (d DevnetConfig) Amount(addr string) (*big.Int, error) {
	raw := strings.TrimSpace(d.Balances[addr])
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return value, nil
}
