package records

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"nftfi/crypto"
)

type storedPool struct {
	Owner             []byte
	Balance           []byte
	APR               uint64
	PaymentCycleCount uint64
	DurationSecs      uint64
	DurationMonths    uint64
	Status            uint8
	CreatedAt         uint64
}

type storedLoan struct {
	PoolID            uint64
	Borrower          []byte
	Principal         []byte
	AmountRepaid      []byte
	TotalInterest     []byte
	FeesCharged       []byte
	InstallmentsPaid  uint64
	PaymentCycleCount uint64
	DurationSecs      uint64
	StartedAt         uint64
	Status            uint8
}

type storedRepayment struct {
	LoanID     uint64
	CycleIndex uint64
	AmountPaid []byte
	DefaultFee []byte
	WasLate    bool
	PaidAt     uint64
}

type storedPurchase struct {
	Buyer       []byte
	Collection  []byte
	TokenID     []byte
	DownPayment []byte
	Principal   []byte
	PoolID      uint64
	LoanID      uint64
	Escrow      []byte
	Seller      []byte
	Status      uint8
	CreatedAt   uint64
}

type storedLiquidation struct {
	PurchaseID      uint64
	PoolID          uint64
	LoanID          uint64
	DiscountAmount  []byte
	CurrentNFTPrice []byte
	Borrower        []byte
	Liquidator      []byte
	OutstandingDebt []byte
	Surplus         []byte
	Refunded        bool
	Status          uint8
	StartedAt       uint64
	CompletedAt     uint64
}

func amountBytes(v *big.Int) []byte {
	if v == nil {
		return nil
	}
	return v.Bytes()
}

func amountFrom(b []byte) *big.Int { return new(big.Int).SetBytes(b) }

func addressFrom(b []byte) (crypto.Address, error) {
	if len(b) == 0 {
		return crypto.Address{}, nil
	}
	return crypto.AddressFromBytes(b)
}

func decodeAddresses(raw ...[]byte) ([]crypto.Address, error) {
	out := make([]crypto.Address, len(raw))
	for i, b := range raw {
		addr, err := addressFrom(b)
		if err != nil {
			return nil, err
		}
		out[i] = addr
	}
	return out, nil
}

var poolCodec = Codec[*Pool]{
	Encode: func(p *Pool) ([]byte, error) {
		return rlp.EncodeToBytes(storedPool{
			Owner:             p.Owner.Bytes(),
			Balance:           amountBytes(p.Balance),
			APR:               p.APR,
			PaymentCycleCount: p.PaymentCycleCount,
			DurationSecs:      p.DurationSecs,
			DurationMonths:    p.DurationMonths,
			Status:            uint8(p.Status),
			CreatedAt:         uint64(p.CreatedAt),
		})
	},
	Decode: func(data []byte) (*Pool, error) {
		var s storedPool
		if err := rlp.DecodeBytes(data, &s); err != nil {
			return nil, err
		}
		owner, err := addressFrom(s.Owner)
		if err != nil {
			return nil, err
		}
		return &Pool{
			Owner:             owner,
			Balance:           amountFrom(s.Balance),
			APR:               s.APR,
			PaymentCycleCount: s.PaymentCycleCount,
			DurationSecs:      s.DurationSecs,
			DurationMonths:    s.DurationMonths,
			Status:            PoolStatus(s.Status),
			CreatedAt:         int64(s.CreatedAt),
		}, nil
	},
}

var loanCodec = Codec[*Loan]{
	Encode: func(l *Loan) ([]byte, error) {
		return rlp.EncodeToBytes(storedLoan{
			PoolID:            l.PoolID,
			Borrower:          l.Borrower.Bytes(),
			Principal:         amountBytes(l.Principal),
			AmountRepaid:      amountBytes(l.AmountRepaid),
			TotalInterest:     amountBytes(l.TotalInterest),
			FeesCharged:       amountBytes(l.FeesCharged),
			InstallmentsPaid:  l.InstallmentsPaid,
			PaymentCycleCount: l.PaymentCycleCount,
			DurationSecs:      l.DurationSecs,
			StartedAt:         uint64(l.StartedAt),
			Status:            uint8(l.Status),
		})
	},
	Decode: func(data []byte) (*Loan, error) {
		var s storedLoan
		if err := rlp.DecodeBytes(data, &s); err != nil {
			return nil, err
		}
		borrower, err := addressFrom(s.Borrower)
		if err != nil {
			return nil, err
		}
		return &Loan{
			PoolID:            s.PoolID,
			Borrower:          borrower,
			Principal:         amountFrom(s.Principal),
			AmountRepaid:      amountFrom(s.AmountRepaid),
			TotalInterest:     amountFrom(s.TotalInterest),
			FeesCharged:       amountFrom(s.FeesCharged),
			InstallmentsPaid:  s.InstallmentsPaid,
			PaymentCycleCount: s.PaymentCycleCount,
			DurationSecs:      s.DurationSecs,
			StartedAt:         int64(s.StartedAt),
			Status:            LoanStatus(s.Status),
		}, nil
	},
}

var repaymentCodec = Codec[*LoanRepayment]{
	Encode: func(r *LoanRepayment) ([]byte, error) {
		return rlp.EncodeToBytes(storedRepayment{
			LoanID:     r.LoanID,
			CycleIndex: r.CycleIndex,
			AmountPaid: amountBytes(r.AmountPaid),
			DefaultFee: amountBytes(r.DefaultFee),
			WasLate:    r.WasLate,
			PaidAt:     uint64(r.PaidAt),
		})
	},
	Decode: func(data []byte) (*LoanRepayment, error) {
		var s storedRepayment
		if err := rlp.DecodeBytes(data, &s); err != nil {
			return nil, err
		}
		return &LoanRepayment{
			LoanID:     s.LoanID,
			CycleIndex: s.CycleIndex,
			AmountPaid: amountFrom(s.AmountPaid),
			DefaultFee: amountFrom(s.DefaultFee),
			WasLate:    s.WasLate,
			PaidAt:     int64(s.PaidAt),
		}, nil
	},
}

var purchaseCodec = Codec[*Purchase]{
	Encode: func(p *Purchase) ([]byte, error) {
		var tokenID []byte
		if p.TokenID != nil {
			tokenID = p.TokenID.Bytes()
		}
		return rlp.EncodeToBytes(storedPurchase{
			Buyer:       p.Buyer.Bytes(),
			Collection:  p.Collection.Bytes(),
			TokenID:     tokenID,
			DownPayment: amountBytes(p.DownPayment),
			Principal:   amountBytes(p.Principal),
			PoolID:      p.PoolID,
			LoanID:      p.LoanID,
			Escrow:      p.Escrow.Bytes(),
			Seller:      p.Seller.Bytes(),
			Status:      uint8(p.Status),
			CreatedAt:   uint64(p.CreatedAt),
		})
	},
	Decode: func(data []byte) (*Purchase, error) {
		var s storedPurchase
		if err := rlp.DecodeBytes(data, &s); err != nil {
			return nil, err
		}
		addrs, err := decodeAddresses(s.Buyer, s.Collection, s.Escrow, s.Seller)
		if err != nil {
			return nil, err
		}
		if len(s.TokenID) > 32 {
			return nil, fmt.Errorf("records: token id overflows 256 bits")
		}
		return &Purchase{
			Buyer:       addrs[0],
			Collection:  addrs[1],
			TokenID:     new(uint256.Int).SetBytes(s.TokenID),
			DownPayment: amountFrom(s.DownPayment),
			Principal:   amountFrom(s.Principal),
			PoolID:      s.PoolID,
			LoanID:      s.LoanID,
			Escrow:      addrs[2],
			Seller:      addrs[3],
			Status:      PurchaseStatus(s.Status),
			CreatedAt:   int64(s.CreatedAt),
		}, nil
	},
}

var liquidationCodec = Codec[*Liquidation]{
	Encode: func(l *Liquidation) ([]byte, error) {
		return rlp.EncodeToBytes(storedLiquidation{
			PurchaseID:      l.PurchaseID,
			PoolID:          l.PoolID,
			LoanID:          l.LoanID,
			DiscountAmount:  amountBytes(l.DiscountAmount),
			CurrentNFTPrice: amountBytes(l.CurrentNFTPrice),
			Borrower:        l.Borrower.Bytes(),
			Liquidator:      l.Liquidator.Bytes(),
			OutstandingDebt: amountBytes(l.OutstandingDebt),
			Surplus:         amountBytes(l.Surplus),
			Refunded:        l.Refunded,
			Status:          uint8(l.Status),
			StartedAt:       uint64(l.StartedAt),
			CompletedAt:     uint64(l.CompletedAt),
		})
	},
	Decode: func(data []byte) (*Liquidation, error) {
		var s storedLiquidation
		if err := rlp.DecodeBytes(data, &s); err != nil {
			return nil, err
		}
		addrs, err := decodeAddresses(s.Borrower, s.Liquidator)
		if err != nil {
			return nil, err
		}
		return &Liquidation{
			PurchaseID:      s.PurchaseID,
			PoolID:          s.PoolID,
			LoanID:          s.LoanID,
			DiscountAmount:  amountFrom(s.DiscountAmount),
			CurrentNFTPrice: amountFrom(s.CurrentNFTPrice),
			Borrower:        addrs[0],
			Liquidator:      addrs[1],
			OutstandingDebt: amountFrom(s.OutstandingDebt),
			Surplus:         amountFrom(s.Surplus),
			Refunded:        s.Refunded,
			Status:          LiquidationStatus(s.Status),
			StartedAt:       int64(s.StartedAt),
			CompletedAt:     int64(s.CompletedAt),
		}, nil
	},
}
