package records

import (
	"math/big"

	"github.com/holiman/uint256"

	"nftfi/crypto"
)

type PoolStatus uint8

const (
	PoolOpen PoolStatus = iota
	PoolClosed
)

func (s PoolStatus) String() string {
	if s == PoolClosed {
		return "closed"
	}
	return "open"
}

type LoanStatus uint8

const (
	LoanOpen LoanStatus = iota
	LoanClosed
)

func (s LoanStatus) String() string {
	if s == LoanClosed {
		return "closed"
	}
	return "open"
}

type PurchaseStatus uint8

const (
	PurchasePending PurchaseStatus = iota
	PurchaseCompleted
	PurchaseCancelled
)

func (s PurchaseStatus) String() string {
	switch s {
	case PurchaseCompleted:
		return "completed"
	case PurchaseCancelled:
		return "cancelled"
	default:
		return "pending"
	}
}

type LiquidationStatus uint8

const (
	LiquidationPending LiquidationStatus = iota
	LiquidationCompleted
)

func (s LiquidationStatus) String() string {
	if s == LiquidationCompleted {
		return "completed"
	}
	return "pending"
}

// Pool is a lender-funded capital reserve. Amounts are denominated in the
// smallest unit of the settlement token.
type Pool struct {
	ID    uint64
	Owner crypto.Address
	// Balance is the capital currently available for new loans.
	Balance *big.Int
	// APR is the whole-percent interest charged over a loan's full term.
	APR               uint64
	PaymentCycleCount uint64
	DurationSecs      uint64
	// DurationMonths is informational and mirrors DurationSecs.
	DurationMonths uint64
	Status         PoolStatus
	CreatedAt      int64
}

func (p *Pool) SetID(id uint64) { p.ID = id }

func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Balance = cloneAmount(p.Balance)
	return &clone
}

// Loan is the debt a buyer owes a pool for one purchase.
type Loan struct {
	ID           uint64
	PoolID       uint64
	Borrower     crypto.Address
	Principal    *big.Int
	AmountRepaid *big.Int
	// TotalInterest is fixed when the loan is reserved.
	TotalInterest *big.Int
	// FeesCharged accumulates late-payment default fees.
	FeesCharged       *big.Int
	InstallmentsPaid  uint64
	PaymentCycleCount uint64
	DurationSecs      uint64
	// StartedAt is zero until the principal is disbursed.
	StartedAt int64
	Status    LoanStatus
}

func (l *Loan) SetID(id uint64) { l.ID = id }

func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	clone := *l
	clone.Principal = cloneAmount(l.Principal)
	clone.AmountRepaid = cloneAmount(l.AmountRepaid)
	clone.TotalInterest = cloneAmount(l.TotalInterest)
	clone.FeesCharged = cloneAmount(l.FeesCharged)
	return &clone
}

// Disbursed reports whether the repayment clock has started.
func (l *Loan) Disbursed() bool { return l != nil && l.StartedAt > 0 }

// LoanRepayment is an append-only entry in a loan's payment history.
type LoanRepayment struct {
	ID         uint64
	LoanID     uint64
	CycleIndex uint64
	AmountPaid *big.Int
	DefaultFee *big.Int
	WasLate    bool
	PaidAt     int64
}

func (r *LoanRepayment) SetID(id uint64) { r.ID = id }

func (r *LoanRepayment) Clone() *LoanRepayment {
	if r == nil {
		return nil
	}
	clone := *r
	clone.AmountPaid = cloneAmount(r.AmountPaid)
	clone.DefaultFee = cloneAmount(r.DefaultFee)
	return &clone
}

// Purchase links a buyer, the financed NFT and the loan backing it.
type Purchase struct {
	ID          uint64
	Buyer       crypto.Address
	Collection  crypto.Address
	TokenID     *uint256.Int
	DownPayment *big.Int
	Principal   *big.Int
	PoolID      uint64
	LoanID      uint64
	// Escrow is zero until the purchase completes.
	Escrow    crypto.Address
	Seller    crypto.Address
	Status    PurchaseStatus
	CreatedAt int64
}

func (p *Purchase) SetID(id uint64) { p.ID = id }

func (p *Purchase) Clone() *Purchase {
	if p == nil {
		return nil
	}
	clone := *p
	if p.TokenID != nil {
		clone.TokenID = p.TokenID.Clone()
	}
	clone.DownPayment = cloneAmount(p.DownPayment)
	clone.Principal = cloneAmount(p.Principal)
	return &clone
}

// Liquidation is a forced sale of a defaulted purchase's NFT.
type Liquidation struct {
	ID              uint64
	PurchaseID      uint64
	PoolID          uint64
	LoanID          uint64
	DiscountAmount  *big.Int
	CurrentNFTPrice *big.Int
	Borrower        crypto.Address
	Liquidator      crypto.Address
	// OutstandingDebt and Surplus are fixed at completion.
	OutstandingDebt *big.Int
	Surplus         *big.Int
	Refunded        bool
	Status          LiquidationStatus
	StartedAt       int64
	CompletedAt     int64
}

func (l *Liquidation) SetID(id uint64) { l.ID = id }

func (l *Liquidation) Clone() *Liquidation {
	if l == nil {
		return nil
	}
	clone := *l
	clone.DiscountAmount = cloneAmount(l.DiscountAmount)
	clone.CurrentNFTPrice = cloneAmount(l.CurrentNFTPrice)
	clone.OutstandingDebt = cloneAmount(l.OutstandingDebt)
	clone.Surplus = cloneAmount(l.Surplus)
	return &clone
}

func cloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
