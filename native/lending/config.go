package lending

import "fmt"

// DefaultFeeBps is the late-payment default fee charged on an installment's
// principal, in basis points.
const DefaultFeeBps = 3_500

// Config captures the runtime configuration for the pool registry.
type Config struct {
	DefaultFeeBps uint64 `toml:"DefaultFeeBps" yaml:"default_fee_bps"`
	// MaxPaymentCycles bounds the installments per loan. Zero disables the cap.
	MaxPaymentCycles uint64 `toml:"MaxPaymentCycles" yaml:"max_payment_cycles"`
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{DefaultFeeBps: DefaultFeeBps, MaxPaymentCycles: 360}
}

func (c Config) Validate() error {
	if c.DefaultFeeBps > basisPoints.Uint64() {
		return fmt.Errorf("lending: default fee %d bps exceeds 100%%", c.DefaultFeeBps)
	}
	return nil
}
