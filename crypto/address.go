package crypto

import (
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix is the human-readable part used when rendering addresses.
const AddressPrefix = "nft"

// AddressLength is the byte length of every address.
const AddressLength = 20

// Address represents a 20-byte participant or module address. The zero value is
// the empty address. Addresses are comparable and can be used as map keys.
type Address [AddressLength]byte

// NewAddress builds an address from exactly 20 bytes.
func NewAddress(b []byte) Address {
	if len(b) != AddressLength {
		panic("address must be 20 bytes long")
	}
	var addr Address
	copy(addr[:], b)
	return addr
}

// DeriveAddress hashes the supplied parts with keccak256 and keeps the trailing
// 20 bytes, mirroring how contract addresses are derived on EVM chains.
func DeriveAddress(parts ...[]byte) Address {
	digest := crypto.Keccak256(parts...)
	return NewAddress(digest[len(digest)-AddressLength:])
}

func (a Address) String() string {
	if a.IsZero() {
		return ""
	}
	conv, err := bech32.ConvertBits(a[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(AddressPrefix, conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a[:])
	return out
}

// IsZero reports whether the address is the empty address.
func (a Address) IsZero() bool {
	return a == Address{}
}

// MarshalText renders the bech32 form.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText accepts the bech32 form produced by MarshalText.
func (a *Address) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*a = Address{}
		return nil
	}
	decoded, err := DecodeAddress(string(text))
	if err != nil {
		return err
	}
	*a = decoded
	return nil
}

func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	if prefix != AddressPrefix {
		return Address{}, fmt.Errorf("unexpected address prefix %q", prefix)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != AddressLength {
		return Address{}, fmt.Errorf("invalid address length %d", len(conv))
	}
	return NewAddress(conv), nil
}

// AddressFromBytes restores an address from persisted bytes. Empty input yields
// the zero address.
func AddressFromBytes(b []byte) (Address, error) {
	if len(b) == 0 {
		return Address{}, nil
	}
	if len(b) != AddressLength {
		return Address{}, fmt.Errorf("invalid address length %d", len(b))
	}
	return NewAddress(b), nil
}
