package lending

import (
	"fmt"
	"math/big"
	"time"

	"nftfi/core/events"
	"nftfi/crypto"
	nativecommon "nftfi/native/common"
	"nftfi/native/records"
	"nftfi/native/token"
)

var (
	errNotRegistryOwner   = nativecommon.Unauthorized("pool registry: caller is not the registry owner")
	errNilStore           = nativecommon.Validation("pool registry: pool store not configured")
	errNilFunds           = nativecommon.Validation("pool registry: settlement token not configured")
	errInvalidAmount      = nativecommon.Validation("pool registry: amount must be positive")
	errInvalidCycles      = nativecommon.Validation("pool registry: payment cycle count must be positive")
	errTooManyCycles      = nativecommon.Validation("pool registry: payment cycle count exceeds limit")
	errInvalidDuration    = nativecommon.Validation("pool registry: duration must be positive")
	errInsufficientFunds  = nativecommon.Validation("pool registry: insufficient pool funds")
	errMissingRecipient   = nativecommon.Validation("pool registry: recipient required")
	errPoolClosed         = nativecommon.State("pool registry: pool is closed")
	errPoolHasOpenLoans   = nativecommon.State("pool registry: pool has open loans")
	errLoanClosed         = nativecommon.State("pool registry: loan is closed")
	errLoanNotDisbursed   = nativecommon.State("pool registry: loan not disbursed")
	errLoanAlreadyStarted = nativecommon.State("pool registry: loan already disbursed")
	errRefundExceedsPool  = nativecommon.State("pool registry: refund exceeds pool balance")
	errNothingOutstanding = nativecommon.State("pool registry: no installments outstanding")
)

// Repayment describes what a repayment costs (as a quote) or what it settled
// (once applied).
type Repayment struct {
	LoanID uint64
	PoolID uint64
	// CycleIndex is the first installment covered.
	CycleIndex   uint64
	Installments uint64
	Principal    *big.Int
	Interest     *big.Int
	DefaultFee   *big.Int
	// Amount is Principal + Interest + DefaultFee.
	Amount     *big.Int
	Late       bool
	LoanClosed bool
}

// PoolRegistry owns the PoolStore and implements pool and loan accounting.
// It holds pool capital at its own address and only pays out; inbound funds
// are pulled into its custody by the owner.
type PoolRegistry struct {
	address crypto.Address
	owner   crypto.Address
	store   *records.PoolStore
	space   *records.Space
	funds   token.Fungible
	cfg     Config
	emitter events.Emitter
	nowFn   func() int64
}

// NewRegistry builds a registry writing store as address. The store must
// already be owned by address.
func NewRegistry(address, owner crypto.Address, space *records.Space, store *records.PoolStore, funds token.Fungible, cfg Config) (*PoolRegistry, error) {
	if store == nil {
		return nil, errNilStore
	}
	if funds == nil {
		return nil, errNilFunds
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store.Owner() != address {
		return nil, fmt.Errorf("pool registry: store owned by %s, not %s", store.Owner(), address)
	}
	return &PoolRegistry{
		address: address,
		owner:   owner,
		store:   store,
		space:   space,
		funds:   funds,
		cfg:     cfg,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}, nil
}

// Address is the custody address holding pool capital.
func (r *PoolRegistry) Address() crypto.Address { return r.address }

func (r *PoolRegistry) Owner() crypto.Address { return r.owner }

func (r *PoolRegistry) Config() Config { return r.cfg }

// SetNowFunc overrides the time source used by the registry.
func (r *PoolRegistry) SetNowFunc(now func() int64) {
	if now == nil {
		r.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	r.nowFn = now
}

// SetEmitter configures the event emitter used by the registry. Passing nil
// resets the emitter to a no-op implementation.
func (r *PoolRegistry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// TransferOwnership hands the registry to next.
func (r *PoolRegistry) TransferOwnership(caller, next crypto.Address) error {
	if caller != r.owner {
		return errNotRegistryOwner
	}
	if next.IsZero() {
		return errMissingRecipient
	}
	r.owner = next
	return nil
}

func (r *PoolRegistry) authorize(caller crypto.Address) error {
	if caller != r.owner {
		return errNotRegistryOwner
	}
	return nil
}

func positive(amount *big.Int) bool { return amount != nil && amount.Sign() > 0 }

// withSnapshot runs fn inside a nested journal section and rolls its writes
// back when fn fails.
func (r *PoolRegistry) withSnapshot(fn func() error) error {
	snap := r.space.Snapshot()
	if err := fn(); err != nil {
		if revertErr := r.space.RevertToSnapshot(snap); revertErr != nil {
			return fmt.Errorf("%w (revert: %v)", err, revertErr)
		}
		return err
	}
	return r.space.Commit(snap)
}

func (r *PoolRegistry) openPool(poolID uint64) (*records.Pool, error) {
	pool, err := r.store.Pool(poolID)
	if err != nil {
		return nil, err
	}
	if pool.Status != records.PoolOpen {
		return nil, errPoolClosed
	}
	return pool, nil
}

// CreatePool records a new pool with amount as its starting balance and
// returns its id.
func (r *PoolRegistry) CreatePool(caller crypto.Address, amount *big.Int, paymentCycleCount, apr, durationSecs, durationMonths uint64, owner crypto.Address) (uint64, error) {
	if err := r.authorize(caller); err != nil {
		return 0, err
	}
	if !positive(amount) {
		return 0, errInvalidAmount
	}
	if paymentCycleCount == 0 {
		return 0, errInvalidCycles
	}
	if r.cfg.MaxPaymentCycles > 0 && paymentCycleCount > r.cfg.MaxPaymentCycles {
		return 0, errTooManyCycles
	}
	if durationSecs == 0 {
		return 0, errInvalidDuration
	}
	if owner.IsZero() {
		return 0, errMissingRecipient
	}
	pool := &records.Pool{
		Owner:             owner,
		Balance:           new(big.Int).Set(amount),
		APR:               apr,
		PaymentCycleCount: paymentCycleCount,
		DurationSecs:      durationSecs,
		DurationMonths:    durationMonths,
		Status:            records.PoolOpen,
		CreatedAt:         r.nowFn(),
	}
	id, err := r.store.InsertPool(r.address, pool)
	if err != nil {
		return 0, err
	}
	r.emitter.Emit(events.PoolCreated{
		PoolID:            id,
		Owner:             owner,
		Amount:            amount,
		APR:               apr,
		PaymentCycleCount: paymentCycleCount,
		DurationSecs:      durationSecs,
	})
	r.emitter.Emit(events.PoolFunded{PoolID: id, Funder: owner, Amount: amount, Balance: pool.Balance})
	return id, nil
}

// FundPool adds amount to an open pool's balance.
func (r *PoolRegistry) FundPool(caller crypto.Address, poolID uint64, funder crypto.Address, amount *big.Int) error {
	if err := r.authorize(caller); err != nil {
		return err
	}
	pool, err := r.openPool(poolID)
	if err != nil {
		return err
	}
	if !positive(amount) {
		return errInvalidAmount
	}
	pool.Balance.Add(pool.Balance, amount)
	if err := r.store.UpdatePool(r.address, pool); err != nil {
		return err
	}
	r.emitter.Emit(events.PoolFunded{PoolID: poolID, Funder: funder, Amount: amount, Balance: pool.Balance})
	return nil
}

// ReserveLoan sets principal aside for borrower and records the loan. The
// repayment clock starts at DisburseLoan.
func (r *PoolRegistry) ReserveLoan(caller crypto.Address, poolID uint64, borrower crypto.Address, principal *big.Int) (uint64, error) {
	if err := r.authorize(caller); err != nil {
		return 0, err
	}
	pool, err := r.openPool(poolID)
	if err != nil {
		return 0, err
	}
	if !positive(principal) {
		return 0, errInvalidAmount
	}
	if principal.Cmp(pool.Balance) > 0 {
		return 0, errInsufficientFunds
	}
	loan := &records.Loan{
		PoolID:            poolID,
		Borrower:          borrower,
		Principal:         new(big.Int).Set(principal),
		AmountRepaid:      big.NewInt(0),
		TotalInterest:     totalInterest(principal, pool.APR),
		FeesCharged:       big.NewInt(0),
		PaymentCycleCount: pool.PaymentCycleCount,
		DurationSecs:      pool.DurationSecs,
		Status:            records.LoanOpen,
	}
	pool.Balance.Sub(pool.Balance, principal)
	if err := r.store.UpdatePool(r.address, pool); err != nil {
		return 0, err
	}
	return r.store.InsertLoan(r.address, loan)
}

// CancelLoan closes a loan that was never disbursed and returns its reserved
// principal to the pool.
func (r *PoolRegistry) CancelLoan(caller crypto.Address, loanID uint64) error {
	if err := r.authorize(caller); err != nil {
		return err
	}
	loan, err := r.store.Loan(loanID)
	if err != nil {
		return err
	}
	if loan.Status != records.LoanOpen {
		return errLoanClosed
	}
	if loan.Disbursed() {
		return errLoanAlreadyStarted
	}
	pool, err := r.store.Pool(loan.PoolID)
	if err != nil {
		return err
	}
	err = r.withSnapshot(func() error {
		loan.Status = records.LoanClosed
		if err := r.store.UpdateLoan(r.address, loan); err != nil {
			return err
		}
		pool.Balance.Add(pool.Balance, loan.Principal)
		return r.store.UpdatePool(r.address, pool)
	})
	if err != nil {
		return err
	}
	r.emitter.Emit(events.LoanClosed{LoanID: loan.ID, PoolID: loan.PoolID, AmountRepaid: loan.AmountRepaid})
	return nil
}

// DisburseLoan starts the repayment clock and pays the reserved principal to
// seller out of registry custody.
func (r *PoolRegistry) DisburseLoan(caller crypto.Address, loanID uint64, seller crypto.Address) error {
	if err := r.authorize(caller); err != nil {
		return err
	}
	if seller.IsZero() {
		return errMissingRecipient
	}
	loan, err := r.store.Loan(loanID)
	if err != nil {
		return err
	}
	if loan.Status != records.LoanOpen {
		return errLoanClosed
	}
	if loan.Disbursed() {
		return errLoanAlreadyStarted
	}
	return r.withSnapshot(func() error {
		loan.StartedAt = r.nowFn()
		if err := r.store.UpdateLoan(r.address, loan); err != nil {
			return err
		}
		if err := r.funds.Transfer(r.address, seller, loan.Principal); err != nil {
			return fmt.Errorf("pool registry: disburse principal: %w", err)
		}
		return nil
	})
}

func (r *PoolRegistry) repayableLoan(loanID uint64) (*records.Loan, error) {
	loan, err := r.store.Loan(loanID)
	if err != nil {
		return nil, err
	}
	if loan.Status != records.LoanOpen {
		return nil, errLoanClosed
	}
	if !loan.Disbursed() {
		return nil, errLoanNotDisbursed
	}
	if loan.InstallmentsPaid >= loan.PaymentCycleCount {
		return nil, errNothingOutstanding
	}
	return loan, nil
}

func (r *PoolRegistry) quote(loan *records.Loan, fullSettlement bool, now int64) *Repayment {
	q := &Repayment{
		LoanID:     loan.ID,
		PoolID:     loan.PoolID,
		CycleIndex: loan.InstallmentsPaid,
		Principal:  big.NewInt(0),
		Interest:   big.NewInt(0),
		DefaultFee: big.NewInt(0),
	}
	last := loan.InstallmentsPaid + 1
	if fullSettlement {
		last = loan.PaymentCycleCount
	}
	for k := loan.InstallmentsPaid; k < last; k++ {
		principalPart := installmentPrincipal(loan, k)
		q.Principal.Add(q.Principal, principalPart)
		q.Interest.Add(q.Interest, installmentInterest(loan, k))
		if now > dueAt(loan, k) {
			q.Late = true
			q.DefaultFee.Add(q.DefaultFee, defaultFee(principalPart, r.cfg.DefaultFeeBps))
		}
		q.Installments++
	}
	q.Amount = new(big.Int).Add(q.Principal, q.Interest)
	q.Amount.Add(q.Amount, q.DefaultFee)
	q.LoanClosed = loan.InstallmentsPaid+q.Installments >= loan.PaymentCycleCount
	return q
}

// QuoteRepayment prices the next installment, or every remaining one when
// fullSettlement is set, as of now.
func (r *PoolRegistry) QuoteRepayment(loanID uint64, fullSettlement bool) (*Repayment, error) {
	loan, err := r.repayableLoan(loanID)
	if err != nil {
		return nil, err
	}
	return r.quote(loan, fullSettlement, r.nowFn()), nil
}

// ApplyRepayment books a repayment already quoted. The caller moves the
// funds into registry custody.
func (r *PoolRegistry) ApplyRepayment(caller crypto.Address, loanID uint64, fullSettlement bool) (*Repayment, error) {
	if err := r.authorize(caller); err != nil {
		return nil, err
	}
	loan, err := r.repayableLoan(loanID)
	if err != nil {
		return nil, err
	}
	pool, err := r.store.Pool(loan.PoolID)
	if err != nil {
		return nil, err
	}
	now := r.nowFn()
	q := r.quote(loan, fullSettlement, now)

	for k := q.CycleIndex; k < q.CycleIndex+q.Installments; k++ {
		principalPart := installmentPrincipal(loan, k)
		paid := new(big.Int).Add(principalPart, installmentInterest(loan, k))
		fee := big.NewInt(0)
		late := now > dueAt(loan, k)
		if late {
			fee = defaultFee(principalPart, r.cfg.DefaultFeeBps)
			paid.Add(paid, fee)
		}
		if _, err := r.store.InsertRepayment(r.address, &records.LoanRepayment{
			LoanID:     loan.ID,
			CycleIndex: k,
			AmountPaid: paid,
			DefaultFee: fee,
			WasLate:    late,
			PaidAt:     now,
		}); err != nil {
			return nil, err
		}
	}
	loan.AmountRepaid.Add(loan.AmountRepaid, q.Amount)
	loan.FeesCharged.Add(loan.FeesCharged, q.DefaultFee)
	loan.InstallmentsPaid += q.Installments
	if q.LoanClosed {
		loan.Status = records.LoanClosed
	}
	if err := r.store.UpdateLoan(r.address, loan); err != nil {
		return nil, err
	}
	pool.Balance.Add(pool.Balance, q.Amount)
	if err := r.store.UpdatePool(r.address, pool); err != nil {
		return nil, err
	}
	r.emitter.Emit(events.LoanRepaid{
		LoanID:     loan.ID,
		PoolID:     loan.PoolID,
		CycleIndex: q.CycleIndex,
		Amount:     q.Amount,
		DefaultFee: q.DefaultFee,
		Late:       q.Late,
		Full:       fullSettlement,
	})
	if q.LoanClosed {
		r.emitter.Emit(events.LoanClosed{LoanID: loan.ID, PoolID: loan.PoolID, AmountRepaid: loan.AmountRepaid})
	}
	return q, nil
}

// SettleLiquidation credits the pool with the full liquidation proceeds,
// force-closes the loan and returns the debt outstanding at settlement.
func (r *PoolRegistry) SettleLiquidation(caller crypto.Address, loanID uint64, proceeds *big.Int) (*big.Int, error) {
	if err := r.authorize(caller); err != nil {
		return nil, err
	}
	if !positive(proceeds) {
		return nil, errInvalidAmount
	}
	loan, err := r.repayableLoan(loanID)
	if err != nil {
		return nil, err
	}
	pool, err := r.store.Pool(loan.PoolID)
	if err != nil {
		return nil, err
	}
	q := r.quote(loan, true, r.nowFn())
	debt := q.Amount

	recovered := new(big.Int).Set(proceeds)
	if recovered.Cmp(debt) > 0 {
		recovered.Set(debt)
	}
	loan.AmountRepaid.Add(loan.AmountRepaid, recovered)
	loan.FeesCharged.Add(loan.FeesCharged, q.DefaultFee)
	loan.Status = records.LoanClosed
	if err := r.store.UpdateLoan(r.address, loan); err != nil {
		return nil, err
	}
	pool.Balance.Add(pool.Balance, proceeds)
	if err := r.store.UpdatePool(r.address, pool); err != nil {
		return nil, err
	}
	r.emitter.Emit(events.LoanClosed{LoanID: loan.ID, PoolID: loan.PoolID, AmountRepaid: loan.AmountRepaid, Liquidated: true})
	return debt, nil
}

// RefundSurplus pays amount from the pool to borrower.
func (r *PoolRegistry) RefundSurplus(caller crypto.Address, poolID uint64, borrower crypto.Address, amount *big.Int) error {
	if err := r.authorize(caller); err != nil {
		return err
	}
	if !positive(amount) {
		return errInvalidAmount
	}
	if borrower.IsZero() {
		return errMissingRecipient
	}
	pool, err := r.store.Pool(poolID)
	if err != nil {
		return err
	}
	if amount.Cmp(pool.Balance) > 0 {
		return errRefundExceedsPool
	}
	return r.withSnapshot(func() error {
		pool.Balance.Sub(pool.Balance, amount)
		if err := r.store.UpdatePool(r.address, pool); err != nil {
			return err
		}
		if err := r.funds.Transfer(r.address, borrower, amount); err != nil {
			return fmt.Errorf("pool registry: refund surplus: %w", err)
		}
		return nil
	})
}

// ClosePool pays the remaining balance to recipient and closes the pool. It
// refuses while any loan drawn from the pool is still open.
func (r *PoolRegistry) ClosePool(caller crypto.Address, poolID uint64, recipient crypto.Address) (*big.Int, error) {
	if err := r.authorize(caller); err != nil {
		return nil, err
	}
	if recipient.IsZero() {
		return nil, errMissingRecipient
	}
	pool, err := r.openPool(poolID)
	if err != nil {
		return nil, err
	}
	for _, loan := range r.store.LoansByPool(poolID) {
		if loan.Status == records.LoanOpen {
			return nil, errPoolHasOpenLoans
		}
	}
	payout := new(big.Int).Set(pool.Balance)
	err = r.withSnapshot(func() error {
		pool.Balance = big.NewInt(0)
		pool.Status = records.PoolClosed
		if err := r.store.UpdatePool(r.address, pool); err != nil {
			return err
		}
		if payout.Sign() == 0 {
			return nil
		}
		if err := r.funds.Transfer(r.address, recipient, payout); err != nil {
			return fmt.Errorf("pool registry: pay out pool: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.emitter.Emit(events.PoolClosed{PoolID: poolID, Recipient: recipient, Payout: payout})
	return payout, nil
}

// ReleaseCustody pays amount out of registry custody without touching pool
// accounting. It unwinds an inbound pull whose booking was already reverted.
func (r *PoolRegistry) ReleaseCustody(caller, to crypto.Address, amount *big.Int) error {
	if err := r.authorize(caller); err != nil {
		return err
	}
	if !positive(amount) {
		return errInvalidAmount
	}
	if to.IsZero() {
		return errMissingRecipient
	}
	return r.funds.Transfer(r.address, to, amount)
}

func (r *PoolRegistry) Pool(poolID uint64) (*records.Pool, error) { return r.store.Pool(poolID) }

func (r *PoolRegistry) Loan(loanID uint64) (*records.Loan, error) { return r.store.Loan(loanID) }

func (r *PoolRegistry) Repayments(loanID uint64) ([]*records.LoanRepayment, error) {
	if _, err := r.store.Loan(loanID); err != nil {
		return nil, err
	}
	return r.store.RepaymentsByLoan(loanID), nil
}

// IsInDefault reports whether the next installment of an open, disbursed
// loan is past due.
func (r *PoolRegistry) IsInDefault(loanID uint64) (bool, error) {
	loan, err := r.store.Loan(loanID)
	if err != nil {
		return false, err
	}
	if loan.Status != records.LoanOpen || !loan.Disbursed() || loan.InstallmentsPaid >= loan.PaymentCycleCount {
		return false, nil
	}
	return r.nowFn() > dueAt(loan, loan.InstallmentsPaid), nil
}

// OutstandingDebt is the amount a full settlement would cost now. Closed
// loans owe nothing.
func (r *PoolRegistry) OutstandingDebt(loanID uint64) (*big.Int, error) {
	loan, err := r.store.Loan(loanID)
	if err != nil {
		return nil, err
	}
	if loan.Status != records.LoanOpen || loan.InstallmentsPaid >= loan.PaymentCycleCount {
		return big.NewInt(0), nil
	}
	if !loan.Disbursed() {
		return new(big.Int).Add(loan.Principal, loan.TotalInterest), nil
	}
	return r.quote(loan, true, r.nowFn()).Amount, nil
}
