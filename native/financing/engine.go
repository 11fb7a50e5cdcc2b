package financing

import (
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"time"

	"github.com/holiman/uint256"

	"nftfi/core/events"
	"nftfi/crypto"
	nativecommon "nftfi/native/common"
	"nftfi/native/escrow"
	"nftfi/native/lending"
	"nftfi/native/records"
	"nftfi/native/token"
)

const moduleName = nativecommon.ModuleFinancing

// Selectors accepted by RepayLoan.
const (
	SelectorFullSettlement  uint64 = 0
	SelectorNextInstallment uint64 = 1
)

// Params wires an Engine to the components it owns. Purchases, Registry and
// Vault must already be owned by Address.
type Params struct {
	Address   crypto.Address
	Admin     crypto.Address
	Space     *records.Space
	Purchases *records.PurchaseStore
	Registry  *lending.PoolRegistry
	Vault     *escrow.Vault
	Funds     token.Fungible
	NFTs      token.NonFungible
}

// Engine is the single entry point for lenders, buyers, liquidators and the
// admin. It is a sequential state machine: callers must serialise access.
type Engine struct {
	address   crypto.Address
	admin     crypto.Address
	space     *records.Space
	purchases *records.PurchaseStore
	registry  *lending.PoolRegistry
	vault     *escrow.Vault
	funds     token.Fungible
	nfts      token.NonFungible
	pauses    *nativecommon.Pauses
	deposits  *depositBook
	buffer    *eventBuffer
	emitter   events.Emitter
	logger    *slog.Logger
	nowFn     func() int64
	entered   bool
}

// NewEngine validates the ownership wiring and returns a ready engine.
func NewEngine(p Params) (*Engine, error) {
	switch {
	case p.Space == nil || p.Purchases == nil || p.Registry == nil || p.Vault == nil:
		return nil, fmt.Errorf("financing: incomplete wiring")
	case p.Funds == nil || p.NFTs == nil:
		return nil, fmt.Errorf("financing: token collaborators required")
	case p.Address.IsZero() || p.Admin.IsZero():
		return nil, errMissingAddress
	}
	for name, owner := range map[string]crypto.Address{
		"purchase store": p.Purchases.Owner(),
		"pool registry":  p.Registry.Owner(),
		"escrow vault":   p.Vault.Owner(),
	} {
		if owner != p.Address {
			return nil, fmt.Errorf("financing: %s owned by %s, not the engine", name, owner)
		}
	}
	deposits, err := loadDeposits(p.Space.DB())
	if err != nil {
		return nil, err
	}
	e := &Engine{
		address:   p.Address,
		admin:     p.Admin,
		space:     p.Space,
		purchases: p.Purchases,
		registry:  p.Registry,
		vault:     p.Vault,
		funds:     p.Funds,
		nfts:      p.NFTs,
		pauses:    nativecommon.NewPauses(),
		deposits:  deposits,
		buffer:    &eventBuffer{},
		emitter:   events.NoopEmitter{},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		nowFn:     func() int64 { return time.Now().Unix() },
	}
	p.Registry.SetEmitter(e.buffer)
	p.Vault.SetEmitter(e.buffer)
	return e, nil
}

// SetEmitter configures where committed events go. Passing nil resets the
// emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	e.logger = logger
}

// SetNowFunc overrides the clock for the engine and every component it owns.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	e.nowFn = now
	e.registry.SetNowFunc(now)
	e.vault.SetNowFunc(now)
}

func (e *Engine) Address() crypto.Address { return e.address }

func (e *Engine) Admin() crypto.Address { return e.admin }

// CustodyAddress is where pool capital and repayments are held.
func (e *Engine) CustodyAddress() crypto.Address { return e.registry.Address() }

func (e *Engine) Paused() bool { return e.pauses.IsPaused(moduleName) }

// checkPull verifies from can fund a pull of amount made by the engine.
func (e *Engine) checkPull(from crypto.Address, amount *big.Int) error {
	if e.funds.BalanceOf(from).Cmp(amount) < 0 {
		return errInsufficientBalance
	}
	if e.funds.Allowance(from, e.address).Cmp(amount) < 0 {
		return errInsufficientAllow
	}
	return nil
}

func (e *Engine) pull(from, to crypto.Address, amount *big.Int) func() error {
	return func() error { return e.funds.TransferFrom(e.address, from, to, amount) }
}

func positive(v *big.Int) bool { return v != nil && v.Sign() > 0 }

// CreatePool opens a pool owned by caller and pulls amount into custody.
func (e *Engine) CreatePool(caller crypto.Address, amount *big.Int, paymentCycleCount, apr, durationSecs, durationMonths uint64) (id uint64, err error) {
	if err := e.enter(); err != nil {
		return 0, err
	}
	defer e.exit()
	if err := e.guard(); err != nil {
		return 0, err
	}
	if !positive(amount) {
		return 0, errInvalidAmount
	}
	if err := e.checkPull(caller, amount); err != nil {
		return 0, err
	}

	tx := e.begin("create_pool")
	defer func() { err = tx.finish(err) }()
	id, err = e.registry.CreatePool(e.address, amount, paymentCycleCount, apr, durationSecs, durationMonths, caller)
	if err != nil {
		return 0, err
	}
	if err := tx.interact("pull pool capital", e.pull(caller, e.registry.Address(), amount), nil); err != nil {
		return 0, err
	}
	return id, nil
}

// FundPool adds amount from caller to an open pool.
func (e *Engine) FundPool(caller crypto.Address, poolID uint64, amount *big.Int) (err error) {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	if err := e.guard(); err != nil {
		return err
	}
	pool, err := e.registry.Pool(poolID)
	if err != nil {
		return err
	}
	if pool.Status != records.PoolOpen {
		return errPoolClosed
	}
	if !positive(amount) {
		return errInvalidAmount
	}
	if err := e.checkPull(caller, amount); err != nil {
		return err
	}

	tx := e.begin("fund_pool")
	defer func() { err = tx.finish(err) }()
	if err := e.registry.FundPool(e.address, poolID, caller, amount); err != nil {
		return err
	}
	return tx.interact("pull pool capital", e.pull(caller, e.registry.Address(), amount), nil)
}

// PurchaseNFT reserves principal from the pool, records a pending purchase
// and pulls the down payment from caller into engine custody.
func (e *Engine) PurchaseNFT(caller, collection crypto.Address, tokenID *uint256.Int, downPayment, principal *big.Int, poolID uint64) (id uint64, err error) {
	if err := e.enter(); err != nil {
		return 0, err
	}
	defer e.exit()
	if err := e.guard(); err != nil {
		return 0, err
	}
	if tokenID == nil {
		return 0, errMissingToken
	}
	if collection.IsZero() {
		return 0, errMissingAddress
	}
	if !positive(downPayment) || !positive(principal) {
		return 0, errInvalidAmount
	}
	if principal.Cmp(downPayment) < 0 {
		return 0, errInvalidPrincipal
	}
	pool, err := e.registry.Pool(poolID)
	if err != nil {
		return 0, err
	}
	if pool.Status != records.PoolOpen {
		return 0, errPoolClosed
	}
	if principal.Cmp(pool.Balance) > 0 {
		return 0, errPoolCantFund
	}
	if err := e.checkPull(caller, downPayment); err != nil {
		return 0, err
	}

	tx := e.begin("purchase_nft")
	defer func() { err = tx.finish(err) }()
	loanID, err := e.registry.ReserveLoan(e.address, poolID, caller, principal)
	if err != nil {
		return 0, err
	}
	purchase := &records.Purchase{
		Buyer:       caller,
		Collection:  collection,
		TokenID:     tokenID.Clone(),
		DownPayment: new(big.Int).Set(downPayment),
		Principal:   new(big.Int).Set(principal),
		PoolID:      poolID,
		LoanID:      loanID,
		Status:      records.PurchasePending,
		CreatedAt:   e.nowFn(),
	}
	id, err = e.purchases.InsertPurchase(e.address, purchase)
	if err != nil {
		return 0, err
	}
	e.buffer.Emit(events.PurchaseCreated{
		PurchaseID:  id,
		Buyer:       caller,
		Collection:  collection,
		TokenID:     purchase.TokenID,
		DownPayment: purchase.DownPayment,
		Principal:   purchase.Principal,
		PoolID:      poolID,
		LoanID:      loanID,
	})
	if err := tx.interact("pull down payment", e.pull(caller, e.address, downPayment), nil); err != nil {
		return 0, err
	}
	return id, nil
}

// OnNFTReceived records the seller of an NFT deposited with the engine. It
// implements token.Receiver.
func (e *Engine) OnNFTReceived(operator, from, collection crypto.Address, tokenID *uint256.Int) error {
	if tokenID == nil {
		return errMissingToken
	}
	if e.entered {
		// Escrows hand NFTs back to the engine while an operation unwinds.
		if _, err := e.vault.Escrow(from); err == nil {
			return nil
		}
		return nativecommon.ErrReentrantCall
	}
	if err := e.deposits.record(collection, tokenID, from); err != nil {
		return err
	}
	e.logger.Debug("nft deposited", "collection", collection.String(), "token_id", tokenID.Dec(), "seller", from.String(), "operator", operator.String())
	return nil
}

// CompleteNFTPurchase escrows the deposited NFT, pays the seller principal
// plus down payment and marks the purchase completed.
func (e *Engine) CompleteNFTPurchase(caller crypto.Address, purchaseID uint64) (err error) {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	if err := e.guard(); err != nil {
		return err
	}
	purchase, err := e.purchases.Purchase(purchaseID)
	if err != nil {
		return err
	}
	if purchase.Buyer != caller {
		return errNotBuyer
	}
	switch purchase.Status {
	case records.PurchaseCompleted:
		return errPurchaseCompleted
	case records.PurchaseCancelled:
		return errPurchaseCancelled
	}
	owner, err := e.nfts.OwnerOf(purchase.Collection, purchase.TokenID)
	if err != nil || owner != e.address {
		return errPurchaseIncomplete
	}
	seller, ok := e.deposits.seller(purchase.Collection, purchase.TokenID)
	if !ok {
		return errPurchaseIncomplete
	}
	if e.funds.BalanceOf(e.address).Cmp(purchase.DownPayment) < 0 ||
		e.funds.BalanceOf(e.registry.Address()).Cmp(purchase.Principal) < 0 {
		return errCustodyShort
	}

	tx := e.begin("complete_nft_purchase")
	defer func() { err = tx.finish(err) }()
	esc, err := e.vault.Create(e.address, purchaseID, purchase.Buyer, purchase.Collection, purchase.TokenID)
	if err != nil {
		return err
	}
	purchase.Escrow = esc.Address
	purchase.Seller = seller
	purchase.Status = records.PurchaseCompleted
	if err := e.purchases.UpdatePurchase(e.address, purchase); err != nil {
		return err
	}
	e.buffer.Emit(events.PurchaseCompleted{PurchaseID: purchaseID, Escrow: esc.Address, Seller: seller})

	if err := tx.interact("move nft into escrow",
		func() error {
			return e.nfts.SafeTransferFrom(e.address, purchase.Collection, e.address, esc.Address, purchase.TokenID)
		},
		func() error {
			return e.nfts.SafeTransferFrom(esc.Address, purchase.Collection, esc.Address, e.address, purchase.TokenID)
		},
	); err != nil {
		return err
	}
	if err := tx.interact("disburse principal",
		func() error { return e.registry.DisburseLoan(e.address, purchase.LoanID, seller) },
		e.pull(seller, e.registry.Address(), purchase.Principal),
	); err != nil {
		return err
	}
	if err := tx.interact("pay down payment",
		func() error { return e.funds.Transfer(e.address, seller, purchase.DownPayment) },
		nil,
	); err != nil {
		return err
	}
	tx.after(func() {
		if err := e.deposits.clear(purchase.Collection, purchase.TokenID); err != nil {
			e.logger.Error("clear nft deposit", "purchase_id", purchaseID, "error", err)
		}
	})
	return nil
}

// CancelPurchase abandons a pending purchase. The reserved principal goes back
// to the pool, the down payment back to the buyer and a deposited NFT back to
// its seller. Callable by the buyer, or by the admin while paused.
func (e *Engine) CancelPurchase(caller crypto.Address, purchaseID uint64) (err error) {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	if caller != e.admin {
		if err := e.guard(); err != nil {
			return err
		}
	}
	purchase, err := e.purchases.Purchase(purchaseID)
	if err != nil {
		return err
	}
	if purchase.Buyer != caller && caller != e.admin {
		return errNotBuyer
	}
	switch purchase.Status {
	case records.PurchaseCompleted:
		return errPurchaseCompleted
	case records.PurchaseCancelled:
		return errPurchaseCancelled
	}
	if e.funds.BalanceOf(e.address).Cmp(purchase.DownPayment) < 0 {
		return errCustodyShort
	}
	// The deposit goes back only if no other pending purchase can still use it.
	seller, deposited := e.deposits.seller(purchase.Collection, purchase.TokenID)
	if deposited {
		owner, ownerErr := e.nfts.OwnerOf(purchase.Collection, purchase.TokenID)
		deposited = ownerErr == nil && owner == e.address
	}
	if deposited && len(e.purchases.PendingPurchasesOf(purchase.Collection, purchase.TokenID)) > 1 {
		deposited = false
	}

	tx := e.begin("cancel_purchase")
	defer func() { err = tx.finish(err) }()
	if err := e.registry.CancelLoan(e.address, purchase.LoanID); err != nil {
		return err
	}
	purchase.Status = records.PurchaseCancelled
	if err := e.purchases.UpdatePurchase(e.address, purchase); err != nil {
		return err
	}
	e.buffer.Emit(events.PurchaseCancelled{PurchaseID: purchaseID, Buyer: purchase.Buyer, Refund: purchase.DownPayment})

	if err := tx.interact("refund down payment",
		func() error { return e.funds.Transfer(e.address, purchase.Buyer, purchase.DownPayment) },
		e.pull(purchase.Buyer, e.address, purchase.DownPayment),
	); err != nil {
		return err
	}
	if !deposited {
		return nil
	}
	if err := tx.interact("return nft to seller",
		func() error {
			return e.nfts.SafeTransferFrom(e.address, purchase.Collection, e.address, seller, purchase.TokenID)
		},
		nil,
	); err != nil {
		return err
	}
	tx.after(func() {
		if err := e.deposits.clear(purchase.Collection, purchase.TokenID); err != nil {
			e.logger.Error("clear nft deposit", "purchase_id", purchaseID, "error", err)
		}
	})
	return nil
}

// loadBuyerPurchase returns a completed purchase owned by caller.
func (e *Engine) loadBuyerPurchase(caller crypto.Address, purchaseID uint64) (*records.Purchase, error) {
	purchase, err := e.purchases.Purchase(purchaseID)
	if err != nil {
		return nil, err
	}
	if purchase.Buyer != caller {
		return nil, errNotBuyer
	}
	if purchase.Status != records.PurchaseCompleted {
		return nil, errPurchaseIncomplete
	}
	return purchase, nil
}

func selectorMode(cycleSelector uint64) (bool, error) {
	switch cycleSelector {
	case SelectorFullSettlement:
		return true, nil
	case SelectorNextInstallment:
		return false, nil
	default:
		return false, errInvalidSelector
	}
}

// Quote prices a repayment for the purchase without changing state.
func (e *Engine) Quote(purchaseID, cycleSelector uint64) (*lending.Repayment, error) {
	full, err := selectorMode(cycleSelector)
	if err != nil {
		return nil, err
	}
	purchase, err := e.purchases.Purchase(purchaseID)
	if err != nil {
		return nil, err
	}
	if purchase.Status != records.PurchaseCompleted {
		return nil, errPurchaseIncomplete
	}
	return e.registry.QuoteRepayment(purchase.LoanID, full)
}

// RepayLoan pays the next installment (selector 1) or settles the whole loan
// (selector 0), pulling the amount from caller into pool custody.
func (e *Engine) RepayLoan(caller crypto.Address, purchaseID, cycleSelector, poolID uint64) (rep *lending.Repayment, err error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()
	if err := e.guard(); err != nil {
		return nil, err
	}
	full, err := selectorMode(cycleSelector)
	if err != nil {
		return nil, err
	}
	purchase, err := e.loadBuyerPurchase(caller, purchaseID)
	if err != nil {
		return nil, err
	}
	if _, err := e.registry.Pool(poolID); err != nil {
		return nil, err
	}
	if purchase.PoolID != poolID {
		return nil, errPoolMismatch
	}
	quote, err := e.registry.QuoteRepayment(purchase.LoanID, full)
	if err != nil {
		return nil, err
	}
	if err := e.checkPull(caller, quote.Amount); err != nil {
		return nil, err
	}

	tx := e.begin("repay_loan")
	defer func() { err = tx.finish(err) }()
	rep, err = e.registry.ApplyRepayment(e.address, purchase.LoanID, full)
	if err != nil {
		return nil, err
	}
	if err := tx.interact("pull repayment", e.pull(caller, e.registry.Address(), rep.Amount), nil); err != nil {
		return nil, err
	}
	return rep, nil
}

// ClaimNFT releases the escrowed NFT to the buyer once the loan is closed.
func (e *Engine) ClaimNFT(caller crypto.Address, purchaseID, poolID uint64) (err error) {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	if err := e.guard(); err != nil {
		return err
	}
	purchase, err := e.loadBuyerPurchase(caller, purchaseID)
	if err != nil {
		return err
	}
	if _, err := e.registry.Pool(poolID); err != nil {
		return err
	}
	if purchase.PoolID != poolID {
		return errPoolMismatch
	}
	loan, err := e.registry.Loan(purchase.LoanID)
	if err != nil {
		return err
	}
	if loan.Status != records.LoanClosed {
		return errLoanNotRepaid
	}
	esc, err := e.vault.Escrow(purchase.Escrow)
	if err != nil {
		return err
	}
	if esc.Status != escrow.StatusHeld {
		return errNFTNotHeld
	}

	tx := e.begin("claim_nft")
	defer func() { err = tx.finish(err) }()
	if err := tx.interact("release nft",
		func() error { return e.vault.Release(e.address, esc.Address, caller) },
		nil,
	); err != nil {
		return err
	}
	e.buffer.Emit(events.NFTClaimed{PurchaseID: purchaseID, Buyer: caller})
	return nil
}

// StartLiquidation opens a liquidation for a defaulted purchase. Admin only.
// borrower must be the purchase's buyer.
func (e *Engine) StartLiquidation(caller crypto.Address, purchaseID uint64, discountAmount, currentNFTPrice *big.Int, borrower crypto.Address) (id uint64, err error) {
	if err := e.enter(); err != nil {
		return 0, err
	}
	defer e.exit()
	if caller != e.admin {
		return 0, errNotAdmin
	}
	if !positive(discountAmount) {
		return 0, errInvalidAmount
	}
	price := big.NewInt(0)
	if currentNFTPrice != nil {
		if currentNFTPrice.Sign() < 0 {
			return 0, errInvalidAmount
		}
		price.Set(currentNFTPrice)
	}
	purchase, err := e.purchases.Purchase(purchaseID)
	if err != nil {
		return 0, err
	}
	if purchase.Buyer != borrower {
		return 0, errBorrowerMismatch
	}
	if purchase.Status != records.PurchaseCompleted {
		return 0, errPurchaseIncomplete
	}
	loan, err := e.registry.Loan(purchase.LoanID)
	if err != nil {
		return 0, err
	}
	if loan.Status != records.LoanOpen {
		return 0, errLoanNotOpen
	}
	inDefault, err := e.registry.IsInDefault(loan.ID)
	if err != nil {
		return 0, err
	}
	if !inDefault {
		return 0, errLoanNotInDefault
	}
	for _, existing := range e.purchases.LiquidationsByPurchase(purchaseID) {
		if existing.Status == records.LiquidationPending {
			return 0, errLiquidationPending
		}
	}

	tx := e.begin("start_liquidation")
	defer func() { err = tx.finish(err) }()
	liquidation := &records.Liquidation{
		PurchaseID:      purchaseID,
		PoolID:          purchase.PoolID,
		LoanID:          purchase.LoanID,
		DiscountAmount:  new(big.Int).Set(discountAmount),
		CurrentNFTPrice: price,
		Borrower:        purchase.Buyer,
		OutstandingDebt: big.NewInt(0),
		Surplus:         big.NewInt(0),
		Status:          records.LiquidationPending,
		StartedAt:       e.nowFn(),
	}
	id, err = e.purchases.InsertLiquidation(e.address, liquidation)
	if err != nil {
		return 0, err
	}
	e.buffer.Emit(events.LiquidationStarted{
		LiquidationID:   id,
		PurchaseID:      purchaseID,
		PoolID:          purchase.PoolID,
		DiscountAmount:  liquidation.DiscountAmount,
		CurrentNFTPrice: price,
		Borrower:        purchase.Buyer,
	})
	return id, nil
}

// CompleteLiquidation sells the escrowed NFT to caller for the discount
// amount and settles the loan with the proceeds.
func (e *Engine) CompleteLiquidation(caller crypto.Address, liquidationID uint64, borrower crypto.Address) (err error) {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	if err := e.guard(); err != nil {
		return err
	}
	liquidation, err := e.purchases.Liquidation(liquidationID)
	if err != nil {
		return err
	}
	if liquidation.Status != records.LiquidationPending {
		return errLiquidationNotOpen
	}
	if liquidation.Borrower != borrower {
		return errBorrowerMismatch
	}
	purchase, err := e.purchases.Purchase(liquidation.PurchaseID)
	if err != nil {
		return err
	}
	loan, err := e.registry.Loan(liquidation.LoanID)
	if err != nil {
		return err
	}
	if loan.Status != records.LoanOpen {
		return errLoanNotOpen
	}
	esc, err := e.vault.Escrow(purchase.Escrow)
	if err != nil {
		return err
	}
	if esc.Status != escrow.StatusHeld {
		return errNFTNotHeld
	}
	proceeds := liquidation.DiscountAmount
	if err := e.checkPull(caller, proceeds); err != nil {
		return err
	}

	tx := e.begin("complete_liquidation")
	defer func() { err = tx.finish(err) }()
	debt, err := e.registry.SettleLiquidation(e.address, loan.ID, proceeds)
	if err != nil {
		return err
	}
	surplus := new(big.Int).Sub(proceeds, debt)
	if surplus.Sign() < 0 {
		surplus.SetInt64(0)
	}
	liquidation.Liquidator = caller
	liquidation.OutstandingDebt = debt
	liquidation.Surplus = surplus
	liquidation.Status = records.LiquidationCompleted
	liquidation.CompletedAt = e.nowFn()
	if err := e.purchases.UpdateLiquidation(e.address, liquidation); err != nil {
		return err
	}
	e.buffer.Emit(events.LiquidationCompleted{
		LiquidationID: liquidationID,
		Liquidator:    caller,
		Proceeds:      proceeds,
		Surplus:       surplus,
	})

	if err := tx.interact("pull liquidation proceeds",
		e.pull(caller, e.registry.Address(), proceeds),
		func() error { return e.registry.ReleaseCustody(e.address, caller, proceeds) },
	); err != nil {
		return err
	}
	return tx.interact("hand nft to liquidator",
		func() error { return e.vault.Reclaim(e.address, esc.Address, caller) },
		nil,
	)
}

// RefundBorrower pays the liquidation surplus to the borrower once.
func (e *Engine) RefundBorrower(caller crypto.Address, purchaseID, liquidationID uint64) (err error) {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	if err := e.guard(); err != nil {
		return err
	}
	liquidation, err := e.purchases.Liquidation(liquidationID)
	if err != nil {
		return err
	}
	if caller != liquidation.Borrower && caller != e.admin {
		return errNotBorrower
	}
	if liquidation.PurchaseID != purchaseID {
		return errPurchaseMismatch
	}
	if liquidation.Status != records.LiquidationCompleted {
		return errLiquidationOpen
	}
	if liquidation.Refunded {
		return errAlreadyRefunded
	}
	if !positive(liquidation.Surplus) {
		return errNoSurplus
	}

	tx := e.begin("refund_borrower")
	defer func() { err = tx.finish(err) }()
	liquidation.Refunded = true
	if err := e.purchases.UpdateLiquidation(e.address, liquidation); err != nil {
		return err
	}
	e.buffer.Emit(events.BorrowerRefunded{
		LiquidationID: liquidationID,
		PurchaseID:    purchaseID,
		Borrower:      liquidation.Borrower,
		Amount:        liquidation.Surplus,
	})
	return tx.interact("refund surplus",
		func() error {
			return e.registry.RefundSurplus(e.address, liquidation.PoolID, liquidation.Borrower, liquidation.Surplus)
		},
		nil,
	)
}

// ClosePool pays the pool balance to recipient, or to the owner when
// recipient is zero, and closes the pool. It refuses while a completed
// liquidation still owes its borrower a surplus.
func (e *Engine) ClosePool(caller crypto.Address, poolID uint64, recipient crypto.Address) (payout *big.Int, err error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()
	if err := e.guard(); err != nil {
		return nil, err
	}
	pool, err := e.registry.Pool(poolID)
	if err != nil {
		return nil, err
	}
	if pool.Owner != caller {
		return nil, errNotPoolOwner
	}
	for _, liq := range e.purchases.LiquidationsByPool(poolID) {
		if liq.Status == records.LiquidationCompleted && !liq.Refunded && positive(liq.Surplus) {
			return nil, errSurplusOwed
		}
	}
	if recipient.IsZero() {
		recipient = caller
	}

	tx := e.begin("close_pool")
	defer func() { err = tx.finish(err) }()
	err = tx.interact("close pool",
		func() error {
			var closeErr error
			payout, closeErr = e.registry.ClosePool(e.address, poolID, recipient)
			return closeErr
		},
		nil,
	)
	if err != nil {
		return nil, err
	}
	return payout, nil
}

// TogglePaused flips the module pause flag. Admin only.
func (e *Engine) TogglePaused(caller crypto.Address) (paused bool, err error) {
	if err := e.enter(); err != nil {
		return false, err
	}
	defer e.exit()
	if caller != e.admin {
		return false, errNotAdmin
	}
	paused = e.pauses.Toggle(moduleName)
	e.logger.Info("financing pause toggled", "paused", paused, "admin", caller.String())
	e.emitter.Emit(events.PauseToggled{Paused: paused, Admin: caller})
	return paused, nil
}

// TransferAdmin hands the admin role to next. Admin only.
func (e *Engine) TransferAdmin(caller, next crypto.Address) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	if caller != e.admin {
		return errNotAdmin
	}
	if next.IsZero() {
		return errMissingAddress
	}
	e.admin = next
	return nil
}

func (e *Engine) Purchase(purchaseID uint64) (*records.Purchase, error) {
	return e.purchases.Purchase(purchaseID)
}

// PurchasesOf lists the purchases made by buyer.
func (e *Engine) PurchasesOf(buyer crypto.Address) []*records.Purchase {
	return e.purchases.PurchasesByBuyer(buyer)
}

func (e *Engine) Liquidation(liquidationID uint64) (*records.Liquidation, error) {
	return e.purchases.Liquidation(liquidationID)
}

func (e *Engine) Pool(poolID uint64) (*records.Pool, error) { return e.registry.Pool(poolID) }

func (e *Engine) Loan(loanID uint64) (*records.Loan, error) { return e.registry.Loan(loanID) }

func (e *Engine) Repayments(loanID uint64) ([]*records.LoanRepayment, error) {
	return e.registry.Repayments(loanID)
}

func (e *Engine) Escrow(addr crypto.Address) (*escrow.Escrow, error) { return e.vault.Escrow(addr) }
