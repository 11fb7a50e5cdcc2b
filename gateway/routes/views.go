package routes

import (
	"math/big"

	"nftfi/native/escrow"
	"nftfi/native/lending"
	"nftfi/native/records"
)

func amount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

type poolView struct {
	ID                uint64 `json:"id"`
	Owner             string `json:"owner"`
	Balance           string `json:"balance"`
	APR               uint64 `json:"apr"`
	PaymentCycleCount uint64 `json:"paymentCycleCount"`
	DurationSecs      uint64 `json:"durationSecs"`
	DurationMonths    uint64 `json:"durationMonths"`
	Status            string `json:"status"`
	CreatedAt         int64  `json:"createdAt"`
}

func newPoolView(p *records.Pool) poolView {
	return poolView{
		ID:                p.ID,
		Owner:             p.Owner.String(),
		Balance:           amount(p.Balance),
		APR:               p.APR,
		PaymentCycleCount: p.PaymentCycleCount,
		DurationSecs:      p.DurationSecs,
		DurationMonths:    p.DurationMonths,
		Status:            p.Status.String(),
		CreatedAt:         p.CreatedAt,
	}
}

type loanView struct {
	ID               uint64 `json:"id"`
	PoolID           uint64 `json:"poolId"`
	Borrower         string `json:"borrower"`
	Principal        string `json:"principal"`
	TotalInterest    string `json:"totalInterest"`
	AmountRepaid     string `json:"amountRepaid"`
	FeesCharged      string `json:"feesCharged"`
	InstallmentsPaid uint64 `json:"installmentsPaid"`
	Installments     uint64 `json:"installments"`
	StartedAt        int64  `json:"startedAt"`
	Status           string `json:"status"`
}

func newLoanView(l *records.Loan) loanView {
	return loanView{
		ID:               l.ID,
		PoolID:           l.PoolID,
		Borrower:         l.Borrower.String(),
		Principal:        amount(l.Principal),
		TotalInterest:    amount(l.TotalInterest),
		AmountRepaid:     amount(l.AmountRepaid),
		FeesCharged:      amount(l.FeesCharged),
		InstallmentsPaid: l.InstallmentsPaid,
		Installments:     l.PaymentCycleCount,
		StartedAt:        l.StartedAt,
		Status:           l.Status.String(),
	}
}

type repaymentView struct {
	ID         uint64 `json:"id"`
	CycleIndex uint64 `json:"cycleIndex"`
	AmountPaid string `json:"amountPaid"`
	DefaultFee string `json:"defaultFee"`
	WasLate    bool   `json:"wasLate"`
	PaidAt     int64  `json:"paidAt"`
}

type purchaseView struct {
	ID          uint64 `json:"id"`
	Buyer       string `json:"buyer"`
	Collection  string `json:"collection"`
	TokenID     string `json:"tokenId"`
	DownPayment string `json:"downPayment"`
	Principal   string `json:"principal"`
	PoolID      uint64 `json:"poolId"`
	LoanID      uint64 `json:"loanId"`
	Escrow      string `json:"escrow,omitempty"`
	Seller      string `json:"seller,omitempty"`
	Status      string `json:"status"`
	CreatedAt   int64  `json:"createdAt"`
}

func newPurchaseView(p *records.Purchase) purchaseView {
	view := purchaseView{
		ID:          p.ID,
		Buyer:       p.Buyer.String(),
		Collection:  p.Collection.String(),
		DownPayment: amount(p.DownPayment),
		Principal:   amount(p.Principal),
		PoolID:      p.PoolID,
		LoanID:      p.LoanID,
		Escrow:      p.Escrow.String(),
		Seller:      p.Seller.String(),
		Status:      p.Status.String(),
		CreatedAt:   p.CreatedAt,
	}
	if p.TokenID != nil {
		view.TokenID = p.TokenID.Dec()
	}
	return view
}

type liquidationView struct {
	ID              uint64 `json:"id"`
	PurchaseID      uint64 `json:"purchaseId"`
	PoolID          uint64 `json:"poolId"`
	LoanID          uint64 `json:"loanId"`
	DiscountAmount  string `json:"discountAmount"`
	CurrentNFTPrice string `json:"currentNftPrice"`
	Borrower        string `json:"borrower"`
	Liquidator      string `json:"liquidator,omitempty"`
	OutstandingDebt string `json:"outstandingDebt"`
	Surplus         string `json:"surplus"`
	Refunded        bool   `json:"refunded"`
	Status          string `json:"status"`
}

func newLiquidationView(l *records.Liquidation) liquidationView {
	return liquidationView{
		ID:              l.ID,
		PurchaseID:      l.PurchaseID,
		PoolID:          l.PoolID,
		LoanID:          l.LoanID,
		DiscountAmount:  amount(l.DiscountAmount),
		CurrentNFTPrice: amount(l.CurrentNFTPrice),
		Borrower:        l.Borrower.String(),
		Liquidator:      l.Liquidator.String(),
		OutstandingDebt: amount(l.OutstandingDebt),
		Surplus:         amount(l.Surplus),
		Refunded:        l.Refunded,
		Status:          l.Status.String(),
	}
}

type repaymentResult struct {
	LoanID       uint64 `json:"loanId"`
	CycleIndex   uint64 `json:"cycleIndex"`
	Installments uint64 `json:"installments"`
	Principal    string `json:"principal"`
	Interest     string `json:"interest"`
	DefaultFee   string `json:"defaultFee"`
	Amount       string `json:"amount"`
	Late         bool   `json:"late"`
	LoanClosed   bool   `json:"loanClosed"`
}

func newRepaymentResult(r *lending.Repayment) repaymentResult {
	return repaymentResult{
		LoanID:       r.LoanID,
		CycleIndex:   r.CycleIndex,
		Installments: r.Installments,
		Principal:    amount(r.Principal),
		Interest:     amount(r.Interest),
		DefaultFee:   amount(r.DefaultFee),
		Amount:       amount(r.Amount),
		Late:         r.Late,
		LoanClosed:   r.LoanClosed,
	}
}

type escrowView struct {
	Address    string `json:"address"`
	PurchaseID uint64 `json:"purchaseId"`
	Collection string `json:"collection"`
	TokenID    string `json:"tokenId"`
	Buyer      string `json:"buyer"`
	Status     string `json:"status"`
	Recipient  string `json:"recipient,omitempty"`
	CreatedAt  int64  `json:"createdAt"`
	SettledAt  int64  `json:"settledAt,omitempty"`
}

func newEscrowView(e *escrow.Escrow) escrowView {
	view := escrowView{
		Address:    e.Address.String(),
		PurchaseID: e.PurchaseID,
		Collection: e.Collection.String(),
		Buyer:      e.Buyer.String(),
		Status:     e.Status.String(),
		Recipient:  e.Recipient.String(),
		CreatedAt:  e.CreatedAt,
		SettledAt:  e.SettledAt,
	}
	if e.TokenID != nil {
		view.TokenID = e.TokenID.Dec()
	}
	return view
}
