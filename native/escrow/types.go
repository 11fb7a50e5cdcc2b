package escrow

import (
	"github.com/holiman/uint256"

	"nftfi/crypto"
)

// Status represents the lifecycle of a collateral escrow. Held is the only
// non-terminal state.
type Status uint8

const (
	StatusHeld Status = iota
	StatusReleased
	StatusReclaimed
)

func (s Status) String() string {
	switch s {
	case StatusHeld:
		return "held"
	case StatusReleased:
		return "released"
	case StatusReclaimed:
		return "reclaimed"
	default:
		return "unknown"
	}
}

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	return s <= StatusReclaimed
}

// Escrow custodies a single financed NFT until the loan backing it is either
// repaid (Released to the buyer) or liquidated (Reclaimed for the liquidator).
// The address is derived from the owning engine and the purchase id, so it is
// deterministic and never reused.
type Escrow struct {
	Seq        uint64
	Address    crypto.Address
	Collection crypto.Address
	TokenID    *uint256.Int
	Buyer      crypto.Address
	PurchaseID uint64
	Status     Status
	// Recipient is set once the escrow leaves Held.
	Recipient crypto.Address
	CreatedAt int64
	SettledAt int64
}

func (e *Escrow) SetID(id uint64) { e.Seq = id }

// Clone returns a deep copy of the escrow object so callers can safely mutate
// the copy without affecting the stored instance.
func (e *Escrow) Clone() *Escrow {
	if e == nil {
		return nil
	}
	clone := *e
	if e.TokenID != nil {
		clone.TokenID = e.TokenID.Clone()
	}
	return &clone
}
