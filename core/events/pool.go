package events

import (
	"math/big"
	"strconv"

	"nftfi/core/types"
	"nftfi/crypto"
)

const (
	// TypePoolCreated is emitted when a lender opens a new pool.
	TypePoolCreated = "pool.created"
	// TypePoolFunded is emitted whenever capital is added to a pool.
	TypePoolFunded = "pool.funded"
	// TypePoolClosed is emitted when a pool is wound down and paid out.
	TypePoolClosed = "pool.closed"
	// TypeLoanRepaid is emitted for every accepted repayment.
	TypeLoanRepaid = "loan.repaid"
	// TypeLoanClosed is emitted once a loan is fully settled.
	TypeLoanClosed = "loan.closed"
)

type PoolCreated struct {
	PoolID            uint64
	Owner             crypto.Address
	Amount            *big.Int
	APR               uint64
	PaymentCycleCount uint64
	DurationSecs      uint64
}

func (PoolCreated) EventType() string { return TypePoolCreated }

func (e PoolCreated) Event() *types.Event {
	return &types.Event{Type: TypePoolCreated, Attributes: map[string]string{
		"poolId":            formatID(e.PoolID),
		"owner":             e.Owner.String(),
		"amount":            formatAmount(e.Amount),
		"apr":               strconv.FormatUint(e.APR, 10),
		"paymentCycleCount": strconv.FormatUint(e.PaymentCycleCount, 10),
		"durationSecs":      strconv.FormatUint(e.DurationSecs, 10),
	}}
}

type PoolFunded struct {
	PoolID  uint64
	Funder  crypto.Address
	Amount  *big.Int
	Balance *big.Int
}

func (PoolFunded) EventType() string { return TypePoolFunded }

func (e PoolFunded) Event() *types.Event {
	return &types.Event{Type: TypePoolFunded, Attributes: map[string]string{
		"poolId":  formatID(e.PoolID),
		"funder":  e.Funder.String(),
		"amount":  formatAmount(e.Amount),
		"balance": formatAmount(e.Balance),
	}}
}

type PoolClosed struct {
	PoolID    uint64
	Recipient crypto.Address
	Payout    *big.Int
}

func (PoolClosed) EventType() string { return TypePoolClosed }

func (e PoolClosed) Event() *types.Event {
	return &types.Event{Type: TypePoolClosed, Attributes: map[string]string{
		"poolId":    formatID(e.PoolID),
		"recipient": e.Recipient.String(),
		"payout":    formatAmount(e.Payout),
	}}
}

type LoanRepaid struct {
	LoanID     uint64
	PoolID     uint64
	CycleIndex uint64
	Amount     *big.Int
	DefaultFee *big.Int
	Late       bool
	Full       bool
}

func (LoanRepaid) EventType() string { return TypeLoanRepaid }

func (e LoanRepaid) Event() *types.Event {
	return &types.Event{Type: TypeLoanRepaid, Attributes: map[string]string{
		"loanId":     formatID(e.LoanID),
		"poolId":     formatID(e.PoolID),
		"cycleIndex": formatID(e.CycleIndex),
		"amount":     formatAmount(e.Amount),
		"defaultFee": formatAmount(e.DefaultFee),
		"late":       strconv.FormatBool(e.Late),
		"full":       strconv.FormatBool(e.Full),
	}}
}

type LoanClosed struct {
	LoanID       uint64
	PoolID       uint64
	AmountRepaid *big.Int
	Liquidated   bool
}

func (LoanClosed) EventType() string { return TypeLoanClosed }

func (e LoanClosed) Event() *types.Event {
	return &types.Event{Type: TypeLoanClosed, Attributes: map[string]string{
		"loanId":       formatID(e.LoanID),
		"poolId":       formatID(e.PoolID),
		"amountRepaid": formatAmount(e.AmountRepaid),
		"liquidated":   strconv.FormatBool(e.Liquidated),
	}}
}
