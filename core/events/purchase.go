package events

import (
	"math/big"

	"github.com/holiman/uint256"

	"nftfi/core/types"
	"nftfi/crypto"
)

const (
	TypePurchaseCreated      = "purchase.created"
	TypePurchaseCompleted    = "purchase.completed"
	TypePurchaseCancelled    = "purchase.cancelled"
	TypeNFTClaimed           = "purchase.nft_claimed"
	TypeLiquidationStarted   = "liquidation.started"
	TypeLiquidationCompleted = "liquidation.completed"
	TypeBorrowerRefunded     = "liquidation.refunded"
	TypeEscrowCreated        = "escrow.created"
	TypeEscrowReleased       = "escrow.released"
	TypeEscrowReclaimed      = "escrow.reclaimed"
	TypePauseToggled         = "admin.pause_toggled"
)

type PurchaseCreated struct {
	PurchaseID  uint64
	Buyer       crypto.Address
	Collection  crypto.Address
	TokenID     *uint256.Int
	DownPayment *big.Int
	Principal   *big.Int
	PoolID      uint64
	LoanID      uint64
}

func (PurchaseCreated) EventType() string { return TypePurchaseCreated }

func (e PurchaseCreated) Event() *types.Event {
	return &types.Event{Type: TypePurchaseCreated, Attributes: map[string]string{
		"purchaseId":  formatID(e.PurchaseID),
		"buyer":       e.Buyer.String(),
		"collection":  e.Collection.String(),
		"tokenId":     formatTokenID(e.TokenID),
		"downPayment": formatAmount(e.DownPayment),
		"principal":   formatAmount(e.Principal),
		"poolId":      formatID(e.PoolID),
		"loanId":      formatID(e.LoanID),
	}}
}

type PurchaseCompleted struct {
	PurchaseID uint64
	Escrow     crypto.Address
	Seller     crypto.Address
}

func (PurchaseCompleted) EventType() string { return TypePurchaseCompleted }

func (e PurchaseCompleted) Event() *types.Event {
	return &types.Event{Type: TypePurchaseCompleted, Attributes: map[string]string{
		"purchaseId": formatID(e.PurchaseID),
		"escrow":     e.Escrow.String(),
		"seller":     e.Seller.String(),
	}}
}

type PurchaseCancelled struct {
	PurchaseID uint64
	Buyer      crypto.Address
	Refund     *big.Int
}

func (PurchaseCancelled) EventType() string { return TypePurchaseCancelled }

func (e PurchaseCancelled) Event() *types.Event {
	return &types.Event{Type: TypePurchaseCancelled, Attributes: map[string]string{
		"purchaseId": formatID(e.PurchaseID),
		"buyer":      e.Buyer.String(),
		"refund":     formatAmount(e.Refund),
	}}
}

type NFTClaimed struct {
	PurchaseID uint64
	Buyer      crypto.Address
}

func (NFTClaimed) EventType() string { return TypeNFTClaimed }

func (e NFTClaimed) Event() *types.Event {
	return &types.Event{Type: TypeNFTClaimed, Attributes: map[string]string{
		"purchaseId": formatID(e.PurchaseID),
		"buyer":      e.Buyer.String(),
	}}
}

type LiquidationStarted struct {
	LiquidationID   uint64
	PurchaseID      uint64
	PoolID          uint64
	DiscountAmount  *big.Int
	CurrentNFTPrice *big.Int
	Borrower        crypto.Address
}

func (LiquidationStarted) EventType() string { return TypeLiquidationStarted }

func (e LiquidationStarted) Event() *types.Event {
	return &types.Event{Type: TypeLiquidationStarted, Attributes: map[string]string{
		"liquidationId":   formatID(e.LiquidationID),
		"purchaseId":      formatID(e.PurchaseID),
		"poolId":          formatID(e.PoolID),
		"discountAmount":  formatAmount(e.DiscountAmount),
		"currentNftPrice": formatAmount(e.CurrentNFTPrice),
		"borrower":        e.Borrower.String(),
	}}
}

type LiquidationCompleted struct {
	LiquidationID uint64
	Liquidator    crypto.Address
	Proceeds      *big.Int
	Surplus       *big.Int
}

func (LiquidationCompleted) EventType() string { return TypeLiquidationCompleted }

func (e LiquidationCompleted) Event() *types.Event {
	return &types.Event{Type: TypeLiquidationCompleted, Attributes: map[string]string{
		"liquidationId": formatID(e.LiquidationID),
		"liquidator":    e.Liquidator.String(),
		"proceeds":      formatAmount(e.Proceeds),
		"surplus":       formatAmount(e.Surplus),
	}}
}

type BorrowerRefunded struct {
	LiquidationID uint64
	PurchaseID    uint64
	Borrower      crypto.Address
	Amount        *big.Int
}

func (BorrowerRefunded) EventType() string { return TypeBorrowerRefunded }

func (e BorrowerRefunded) Event() *types.Event {
	return &types.Event{Type: TypeBorrowerRefunded, Attributes: map[string]string{
		"liquidationId": formatID(e.LiquidationID),
		"purchaseId":    formatID(e.PurchaseID),
		"borrower":      e.Borrower.String(),
		"amount":        formatAmount(e.Amount),
	}}
}

// EscrowTransition covers escrow creation, release and reclaim; Kind selects
// the concrete event type.
type EscrowTransition struct {
	Kind       string
	Escrow     crypto.Address
	PurchaseID uint64
	Collection crypto.Address
	TokenID    *uint256.Int
	Recipient  crypto.Address
}

func (e EscrowTransition) EventType() string { return e.Kind }

func (e EscrowTransition) Event() *types.Event {
	attrs := map[string]string{
		"escrow":     e.Escrow.String(),
		"purchaseId": formatID(e.PurchaseID),
		"collection": e.Collection.String(),
		"tokenId":    formatTokenID(e.TokenID),
	}
	if !e.Recipient.IsZero() {
		attrs["recipient"] = e.Recipient.String()
	}
	return &types.Event{Type: e.Kind, Attributes: attrs}
}

type PauseToggled struct {
	Paused bool
	Admin  crypto.Address
}

func (PauseToggled) EventType() string { return TypePauseToggled }

func (e PauseToggled) Event() *types.Event {
	attrs := map[string]string{"admin": e.Admin.String(), "paused": "false"}
	if e.Paused {
		attrs["paused"] = "true"
	}
	return &types.Event{Type: TypePauseToggled, Attributes: attrs}
}
