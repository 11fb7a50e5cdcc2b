package financing

import (
	"errors"
	"math/big"
	"testing"

	"github.com/holiman/uint256"

	"nftfi/core/events"
	"nftfi/crypto"
	nativecommon "nftfi/native/common"
	"nftfi/native/escrow"
	"nftfi/native/lending"
	"nftfi/native/records"
	"nftfi/native/token"
	"nftfi/storage"
)

const (
	startTime    = int64(1_700_000_000)
	durationSecs = uint64(5_260_000)
	fiveWeeks    = int64(5 * 7 * 24 * 60 * 60)
)

var (
	admin      = crypto.DeriveAddress([]byte("admin"))
	lender     = crypto.DeriveAddress([]byte("lender"))
	buyer      = crypto.DeriveAddress([]byte("buyer"))
	seller     = crypto.DeriveAddress([]byte("seller"))
	liquidator = crypto.DeriveAddress([]byte("liquidator"))
	collection = crypto.DeriveAddress([]byte("collection"))
	tokenID    = uint256.NewInt(1)
)

type harness struct {
	t        *testing.T
	dep      *Deployment
	engine   *Engine
	funds    *token.Ledger
	nfts     *token.Collection
	recorder *events.Recorder
	now      int64
}

func newHarness(t *testing.T) *harness {
	return newHarnessWith(t, nil, nil)
}

// newHarnessWith deploys against db, optionally wrapping the ledger.
func newHarnessWith(t *testing.T, db storage.Database, wrap func(*token.Ledger) token.Fungible) *harness {
	t.Helper()
	if db == nil {
		db = storage.NewMemDB()
	}
	funds := token.NewLedger("WETH")
	var fungible token.Fungible = funds
	if wrap != nil {
		fungible = wrap(funds)
	}
	nfts := token.NewCollection()
	dep, err := Deploy(db, admin, fungible, nfts, lending.DefaultConfig())
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	h := &harness{t: t, dep: dep, engine: dep.Engine, funds: funds, nfts: nfts, recorder: &events.Recorder{}, now: startTime}
	h.engine.SetNowFunc(func() int64 { return h.now })
	h.engine.SetEmitter(h.recorder)
	for addr, amount := range map[crypto.Address]int64{lender: 20_000, buyer: 5_000, liquidator: 5_000} {
		h.mustNoErr(funds.Mint(addr, big.NewInt(amount)), "mint")
		h.mustNoErr(funds.Approve(addr, EngineAddress, big.NewInt(amount)), "approve")
	}
	h.mustNoErr(nfts.Mint(collection, seller, tokenID), "mint nft")
	return h
}

func (h *harness) mustNoErr(err error, what string) {
	h.t.Helper()
	if err != nil {
		h.t.Fatalf("%s: %v", what, err)
	}
}

func (h *harness) balance(addr crypto.Address) int64 { return h.funds.BalanceOf(addr).Int64() }

func (h *harness) custody() int64 { return h.balance(RegistryAddress) }

func (h *harness) createPool() uint64 {
	h.t.Helper()
	id, err := h.engine.CreatePool(lender, big.NewInt(10_000), 2, 5, durationSecs, 2)
	h.mustNoErr(err, "create pool")
	return id
}

func (h *harness) purchase(poolID uint64) uint64 {
	h.t.Helper()
	id, err := h.engine.PurchaseNFT(buyer, collection, tokenID, big.NewInt(1_000), big.NewInt(1_000), poolID)
	h.mustNoErr(err, "purchase nft")
	return id
}

func (h *harness) deposit() {
	h.t.Helper()
	h.mustNoErr(h.nfts.SafeTransferFrom(seller, collection, seller, EngineAddress, tokenID), "deposit nft")
}

// financed runs pool creation, purchase, deposit and completion.
func (h *harness) financed() (poolID, purchaseID uint64) {
	h.t.Helper()
	poolID = h.createPool()
	purchaseID = h.purchase(poolID)
	h.deposit()
	h.mustNoErr(h.engine.CompleteNFTPurchase(buyer, purchaseID), "complete purchase")
	return poolID, purchaseID
}

func (h *harness) nftOwner() crypto.Address {
	h.t.Helper()
	owner, err := h.nfts.OwnerOf(collection, tokenID)
	h.mustNoErr(err, "owner of")
	return owner
}

func expectKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
}

func TestOnTimeInstallmentsCollect1050(t *testing.T) {
	h := newHarness(t)
	poolID, purchaseID := h.financed()

	if h.balance(seller) != 2_000 {
		t.Fatalf("seller should receive principal plus down payment, got %d", h.balance(seller))
	}
	purchase, _ := h.engine.Purchase(purchaseID)
	if purchase.Status != records.PurchaseCompleted || purchase.Seller != seller {
		t.Fatalf("unexpected purchase %+v", purchase)
	}
	if h.nftOwner() != purchase.Escrow {
		t.Fatalf("nft should sit in escrow %s", purchase.Escrow)
	}
	before := h.custody()

	h.now = startTime + 3_600
	if _, err := h.engine.RepayLoan(buyer, purchaseID, SelectorNextInstallment, poolID); err != nil {
		t.Fatalf("first installment: %v", err)
	}
	h.now = startTime + int64(durationSecs)/2
	rep, err := h.engine.RepayLoan(buyer, purchaseID, SelectorNextInstallment, poolID)
	if err != nil {
		t.Fatalf("second installment: %v", err)
	}
	if !rep.LoanClosed {
		t.Fatalf("loan should be closed after the last installment")
	}
	if got := h.custody() - before; got != 1_050 {
		t.Fatalf("pool should collect 1050, got %d", got)
	}

	expectKind(t, h.engine.ClaimNFT(buyer, purchaseID, poolID+7), nativecommon.ErrNotFound)
	if err := h.engine.ClaimNFT(buyer, purchaseID, poolID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if h.nftOwner() != buyer {
		t.Fatalf("buyer should own the nft after claim")
	}
	expectKind(t, h.engine.ClaimNFT(buyer, purchaseID, poolID), nativecommon.ErrState)

	payout, err := h.engine.ClosePool(lender, poolID, crypto.Address{})
	if err != nil {
		t.Fatalf("close pool: %v", err)
	}
	if payout.Int64() != 10_050 || h.balance(lender) != 20_050 {
		t.Fatalf("unexpected payout %s, lender balance %d", payout, h.balance(lender))
	}
}

func TestLateFirstInstallmentCollects700(t *testing.T) {
	h := newHarness(t)
	poolID, purchaseID := h.financed()
	before := h.custody()

	h.now = startTime + fiveWeeks
	quote, err := h.engine.Quote(purchaseID, SelectorNextInstallment)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.Amount.Int64() != 700 {
		t.Fatalf("unexpected quote %s", quote.Amount)
	}
	if _, err := h.engine.RepayLoan(buyer, purchaseID, SelectorNextInstallment, poolID); err != nil {
		t.Fatalf("late installment: %v", err)
	}
	if got := h.custody() - before; got != 700 {
		t.Fatalf("pool should collect 700, got %d", got)
	}
	loan, _ := h.engine.Loan(0)
	if loan.FeesCharged.Int64() != 175 {
		t.Fatalf("unexpected default fee %s", loan.FeesCharged)
	}
}

func TestFullSettlementThenClaim(t *testing.T) {
	h := newHarness(t)
	poolID, purchaseID := h.financed()
	expectKind(t, h.engine.ClaimNFT(buyer, purchaseID, poolID), nativecommon.ErrState)

	rep, err := h.engine.RepayLoan(buyer, purchaseID, SelectorFullSettlement, poolID)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if rep.Amount.Int64() != 1_050 {
		t.Fatalf("unexpected settlement %s", rep.Amount)
	}
	if err := h.engine.ClaimNFT(buyer, purchaseID, poolID); err != nil {
		t.Fatalf("claim: %v", err)
	}
}

func TestPurchaseValidation(t *testing.T) {
	h := newHarness(t)
	poolID := h.createPool()

	_, err := h.engine.PurchaseNFT(buyer, collection, tokenID, big.NewInt(1_000), big.NewInt(999), poolID)
	expectKind(t, err, nativecommon.ErrValidation)
	if err.Error() != "financing: invalid principal" {
		t.Fatalf("unexpected message %q", err)
	}
	_, err = h.engine.PurchaseNFT(buyer, collection, tokenID, big.NewInt(1_000), big.NewInt(10_001), poolID)
	expectKind(t, err, nativecommon.ErrValidation)
	if err.Error() != "financing: pool can't fund purchase" {
		t.Fatalf("unexpected message %q", err)
	}
	_, err = h.engine.PurchaseNFT(buyer, collection, tokenID, big.NewInt(1_000), big.NewInt(1_000), 42)
	expectKind(t, err, nativecommon.ErrNotFound)

	pool, _ := h.engine.Pool(poolID)
	if pool.Balance.Int64() != 10_000 {
		t.Fatalf("rejected purchases must not touch the pool, balance %s", pool.Balance)
	}
	if h.balance(buyer) != 5_000 {
		t.Fatalf("rejected purchases must not move funds")
	}
}

func TestCompleteRequiresDepositedNFT(t *testing.T) {
	h := newHarness(t)
	poolID := h.createPool()
	purchaseID := h.purchase(poolID)

	err := h.engine.CompleteNFTPurchase(buyer, purchaseID)
	expectKind(t, err, nativecommon.ErrState)
	if err.Error() != "financing: purchase incomplete" {
		t.Fatalf("unexpected message %q", err)
	}
	expectKind(t, h.engine.CompleteNFTPurchase(seller, purchaseID), nativecommon.ErrUnauthorized)

	h.deposit()
	if err := h.engine.CompleteNFTPurchase(buyer, purchaseID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	expectKind(t, h.engine.CompleteNFTPurchase(buyer, purchaseID), nativecommon.ErrState)
}

func TestRepayLoanRejectsBadSelectorAndCaller(t *testing.T) {
	h := newHarness(t)
	poolID, purchaseID := h.financed()

	_, err := h.engine.RepayLoan(buyer, purchaseID, 2, poolID)
	expectKind(t, err, nativecommon.ErrValidation)
	_, err = h.engine.RepayLoan(lender, purchaseID, SelectorNextInstallment, poolID)
	expectKind(t, err, nativecommon.ErrUnauthorized)
	_, err = h.engine.RepayLoan(buyer, purchaseID, SelectorNextInstallment, 9)
	expectKind(t, err, nativecommon.ErrNotFound)
}

func TestClosePoolWithOpenLoanFails(t *testing.T) {
	h := newHarness(t)
	poolID, _ := h.financed()
	_, err := h.engine.ClosePool(lender, poolID, crypto.Address{})
	expectKind(t, err, nativecommon.ErrState)
	_, err = h.engine.ClosePool(buyer, poolID, crypto.Address{})
	expectKind(t, err, nativecommon.ErrUnauthorized)
}

func TestLiquidationFlow(t *testing.T) {
	h := newHarness(t)
	poolID, purchaseID := h.financed()

	_, err := h.engine.StartLiquidation(admin, purchaseID, big.NewInt(1_500), big.NewInt(2_000), buyer)
	expectKind(t, err, nativecommon.ErrState)
	h.now = startTime + fiveWeeks
	_, err = h.engine.StartLiquidation(lender, purchaseID, big.NewInt(1_500), big.NewInt(2_000), buyer)
	expectKind(t, err, nativecommon.ErrUnauthorized)
	_, err = h.engine.StartLiquidation(admin, purchaseID, big.NewInt(0), big.NewInt(2_000), buyer)
	expectKind(t, err, nativecommon.ErrValidation)
	_, err = h.engine.StartLiquidation(admin, purchaseID, big.NewInt(1_500), big.NewInt(2_000), seller)
	expectKind(t, err, nativecommon.ErrValidation)

	liqID, err := h.engine.StartLiquidation(admin, purchaseID, big.NewInt(1_500), big.NewInt(2_000), buyer)
	if err != nil {
		t.Fatalf("start liquidation: %v", err)
	}
	_, err = h.engine.StartLiquidation(admin, purchaseID, big.NewInt(1_500), big.NewInt(2_000), buyer)
	expectKind(t, err, nativecommon.ErrState)

	expectKind(t, h.engine.CompleteLiquidation(liquidator, liqID, seller), nativecommon.ErrValidation)
	custodyBefore := h.custody()
	if err := h.engine.CompleteLiquidation(liquidator, liqID, buyer); err != nil {
		t.Fatalf("complete liquidation: %v", err)
	}
	if got := h.custody() - custodyBefore; got != 1_500 {
		t.Fatalf("pool custody should gain exactly the discount, got %d", got)
	}
	if h.nftOwner() != liquidator {
		t.Fatalf("liquidator should own the nft")
	}
	pool, _ := h.engine.Pool(poolID)
	if pool.Balance.Int64() != 9_000+1_500 {
		t.Fatalf("unexpected pool balance %s", pool.Balance)
	}
	liq, _ := h.engine.Liquidation(liqID)
	if liq.Status != records.LiquidationCompleted || liq.OutstandingDebt.Int64() != 1_225 || liq.Surplus.Int64() != 275 {
		t.Fatalf("unexpected liquidation %+v", liq)
	}
	expectKind(t, h.engine.CompleteLiquidation(liquidator, liqID, buyer), nativecommon.ErrState)
	expectKind(t, h.engine.ClaimNFT(buyer, purchaseID, poolID), nativecommon.ErrState)

	expectKind(t, h.engine.RefundBorrower(buyer, purchaseID+1, liqID), nativecommon.ErrValidation)
	buyerBefore := h.balance(buyer)
	if err := h.engine.RefundBorrower(buyer, purchaseID, liqID); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if got := h.balance(buyer) - buyerBefore; got != 275 {
		t.Fatalf("borrower should receive the surplus, got %d", got)
	}
	expectKind(t, h.engine.RefundBorrower(buyer, purchaseID, liqID), nativecommon.ErrState)

	esc, _ := h.engine.Escrow(escrow.DeriveAddress(EngineAddress, purchaseID))
	if esc.Status != escrow.StatusReclaimed || esc.Recipient != liquidator {
		t.Fatalf("unexpected escrow %+v", esc)
	}
}

func TestClosePoolWaitsForSurplusRefund(t *testing.T) {
	h := newHarness(t)
	poolID, purchaseID := h.financed()
	h.now = startTime + fiveWeeks
	liqID, err := h.engine.StartLiquidation(admin, purchaseID, big.NewInt(1_500), big.NewInt(2_000), buyer)
	if err != nil {
		t.Fatalf("start liquidation: %v", err)
	}
	if err := h.engine.CompleteLiquidation(liquidator, liqID, buyer); err != nil {
		t.Fatalf("complete liquidation: %v", err)
	}

	lenderBefore := h.balance(lender)
	_, err = h.engine.ClosePool(lender, poolID, crypto.Address{})
	expectKind(t, err, nativecommon.ErrState)
	if err.Error() != "financing: pool owes a liquidation surplus" {
		t.Fatalf("unexpected message %q", err)
	}
	if h.balance(lender) != lenderBefore {
		t.Fatalf("refused close must not pay the lender")
	}

	buyerBefore := h.balance(buyer)
	if err := h.engine.RefundBorrower(buyer, purchaseID, liqID); err != nil {
		t.Fatalf("refund after refused close: %v", err)
	}
	if got := h.balance(buyer) - buyerBefore; got != 275 {
		t.Fatalf("borrower should receive the surplus, got %d", got)
	}
	payout, err := h.engine.ClosePool(lender, poolID, crypto.Address{})
	if err != nil {
		t.Fatalf("close pool: %v", err)
	}
	if payout.Int64() != 10_500-275 || h.balance(lender)-lenderBefore != 10_225 {
		t.Fatalf("unexpected payout %s", payout)
	}
	if h.custody() != 0 {
		t.Fatalf("custody should be drained, got %d", h.custody())
	}
}

func TestCancelPendingPurchase(t *testing.T) {
	h := newHarness(t)
	poolID := h.createPool()
	purchaseID := h.purchase(poolID)
	_, err := h.engine.ClosePool(lender, poolID, crypto.Address{})
	expectKind(t, err, nativecommon.ErrState)

	expectKind(t, h.engine.CancelPurchase(lender, purchaseID), nativecommon.ErrUnauthorized)
	if err := h.engine.CancelPurchase(buyer, purchaseID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if h.balance(buyer) != 5_000 {
		t.Fatalf("down payment should be refunded, buyer has %d", h.balance(buyer))
	}
	pool, _ := h.engine.Pool(poolID)
	if pool.Balance.Int64() != 10_000 {
		t.Fatalf("principal reservation should be released, balance %s", pool.Balance)
	}
	purchase, _ := h.engine.Purchase(purchaseID)
	loan, _ := h.engine.Loan(purchase.LoanID)
	if purchase.Status != records.PurchaseCancelled || loan.Status != records.LoanClosed {
		t.Fatalf("unexpected purchase %+v loan %+v", purchase, loan)
	}
	if got := len(h.recorder.OfType(events.TypePurchaseCancelled)); got != 1 {
		t.Fatalf("expected 1 cancelled event, got %d", got)
	}
	expectKind(t, h.engine.CancelPurchase(buyer, purchaseID), nativecommon.ErrState)
	expectKind(t, h.engine.CompleteNFTPurchase(buyer, purchaseID), nativecommon.ErrState)

	treasury := crypto.DeriveAddress([]byte("treasury"))
	payout, err := h.engine.ClosePool(lender, poolID, treasury)
	if err != nil {
		t.Fatalf("close pool after cancel: %v", err)
	}
	if payout.Int64() != 10_000 || h.balance(treasury) != 10_000 {
		t.Fatalf("payout should go to the named recipient, got %s", payout)
	}
}

func TestCancelReturnsDepositedNFT(t *testing.T) {
	h := newHarness(t)
	poolID := h.createPool()
	purchaseID := h.purchase(poolID)
	h.deposit()

	if _, err := h.engine.TogglePaused(admin); err != nil {
		t.Fatalf("pause: %v", err)
	}
	expectKind(t, h.engine.CancelPurchase(buyer, purchaseID), nativecommon.ErrModulePaused)
	if err := h.engine.CancelPurchase(admin, purchaseID); err != nil {
		t.Fatalf("admin cancel while paused: %v", err)
	}
	if h.nftOwner() != seller {
		t.Fatalf("deposited nft should go back to the seller")
	}
	if h.balance(buyer) != 5_000 {
		t.Fatalf("down payment should be refunded, buyer has %d", h.balance(buyer))
	}
	if _, err := h.engine.TogglePaused(admin); err != nil {
		t.Fatalf("resume: %v", err)
	}

	next := h.purchase(poolID)
	expectKind(t, h.engine.CompleteNFTPurchase(buyer, next), nativecommon.ErrState)
	h.deposit()
	if err := h.engine.CompleteNFTPurchase(buyer, next); err != nil {
		t.Fatalf("complete after redeposit: %v", err)
	}
}

func TestPauseBlocksUserEntryPoints(t *testing.T) {
	h := newHarness(t)
	poolID, purchaseID := h.financed()

	_, err := h.engine.TogglePaused(lender)
	expectKind(t, err, nativecommon.ErrUnauthorized)
	paused, err := h.engine.TogglePaused(admin)
	if err != nil || !paused {
		t.Fatalf("toggle: paused=%v err=%v", paused, err)
	}

	_, err = h.engine.CreatePool(lender, big.NewInt(1), 2, 5, durationSecs, 2)
	expectKind(t, err, nativecommon.ErrModulePaused)
	expectKind(t, h.engine.FundPool(lender, poolID, big.NewInt(1)), nativecommon.ErrModulePaused)
	_, err = h.engine.PurchaseNFT(buyer, collection, uint256.NewInt(2), big.NewInt(1), big.NewInt(1), poolID)
	expectKind(t, err, nativecommon.ErrModulePaused)
	expectKind(t, h.engine.CompleteNFTPurchase(buyer, purchaseID), nativecommon.ErrModulePaused)
	_, err = h.engine.RepayLoan(buyer, purchaseID, SelectorFullSettlement, poolID)
	expectKind(t, err, nativecommon.ErrModulePaused)
	expectKind(t, h.engine.ClaimNFT(buyer, purchaseID, poolID), nativecommon.ErrModulePaused)
	expectKind(t, h.engine.CompleteLiquidation(liquidator, 0, buyer), nativecommon.ErrModulePaused)
	expectKind(t, h.engine.RefundBorrower(buyer, purchaseID, 0), nativecommon.ErrModulePaused)
	expectKind(t, h.engine.CancelPurchase(buyer, purchaseID), nativecommon.ErrModulePaused)
	_, err = h.engine.ClosePool(lender, poolID, crypto.Address{})
	expectKind(t, err, nativecommon.ErrModulePaused)

	h.now = startTime + fiveWeeks
	if _, err := h.engine.StartLiquidation(admin, purchaseID, big.NewInt(1_500), big.NewInt(2_000), buyer); err != nil {
		t.Fatalf("admin entry points stay available while paused: %v", err)
	}
	if _, err := h.engine.Pool(poolID); err != nil {
		t.Fatalf("views stay available while paused: %v", err)
	}

	if paused, _ := h.engine.TogglePaused(admin); paused {
		t.Fatalf("expected resume")
	}
	if err := h.engine.FundPool(lender, poolID, big.NewInt(1)); err != nil {
		t.Fatalf("fund after resume: %v", err)
	}
}

func TestTransferAdmin(t *testing.T) {
	h := newHarness(t)
	next := crypto.DeriveAddress([]byte("next-admin"))
	expectKind(t, h.engine.TransferAdmin(lender, next), nativecommon.ErrUnauthorized)
	if err := h.engine.TransferAdmin(admin, next); err != nil {
		t.Fatalf("transfer admin: %v", err)
	}
	_, err := h.engine.TogglePaused(admin)
	expectKind(t, err, nativecommon.ErrUnauthorized)
	if _, err := h.engine.TogglePaused(next); err != nil {
		t.Fatalf("new admin toggle: %v", err)
	}
}

// failingPulls rejects every TransferFrom after the pre-checks passed.
type failingPulls struct {
	*token.Ledger
}

func (failingPulls) TransferFrom(_, _, _ crypto.Address, _ *big.Int) error {
	return errors.New("token frozen")
}

func TestFailedInteractionLeavesNoTrace(t *testing.T) {
	h := newHarnessWith(t, nil, func(l *token.Ledger) token.Fungible { return failingPulls{l} })
	poolID, err := h.dep.Registry.CreatePool(EngineAddress, big.NewInt(10_000), 2, 5, durationSecs, 2, lender)
	if err != nil {
		t.Fatalf("seed pool: %v", err)
	}

	_, err = h.engine.PurchaseNFT(buyer, collection, tokenID, big.NewInt(1_000), big.NewInt(1_000), poolID)
	if err == nil {
		t.Fatalf("expected purchase to fail")
	}
	pool, _ := h.engine.Pool(poolID)
	if pool.Balance.Int64() != 10_000 {
		t.Fatalf("reservation not reverted, balance %s", pool.Balance)
	}
	if h.dep.Purchases.PurchaseCount() != 0 || h.dep.Pools.LoanCount() != 0 {
		t.Fatalf("records not reverted")
	}
	if got := len(h.recorder.OfType(events.TypePurchaseCreated)); got != 0 {
		t.Fatalf("events of failed operations must not be published, got %d", got)
	}
	if h.dep.Space.Active() {
		t.Fatalf("journal left open")
	}
}

// reentrantFunds calls back into the engine from inside a pull.
type reentrantFunds struct {
	*token.Ledger
	engine *Engine
	err    error
}

func (r *reentrantFunds) TransferFrom(spender, from, to crypto.Address, amount *big.Int) error {
	if r.engine != nil {
		r.err = r.engine.FundPool(from, 0, amount)
	}
	return r.Ledger.TransferFrom(spender, from, to, amount)
}

func TestReentrantCallIsRejected(t *testing.T) {
	var wrapper *reentrantFunds
	h := newHarnessWith(t, nil, func(l *token.Ledger) token.Fungible {
		wrapper = &reentrantFunds{Ledger: l}
		return wrapper
	})
	wrapper.engine = h.engine
	if _, err := h.engine.CreatePool(lender, big.NewInt(10_000), 2, 5, durationSecs, 2); err != nil {
		t.Fatalf("create pool: %v", err)
	}
	expectKind(t, wrapper.err, nativecommon.ErrReentrantCall)
	pool, _ := h.engine.Pool(0)
	if pool.Balance.Int64() != 10_000 {
		t.Fatalf("reentrant call must not change the pool, balance %s", pool.Balance)
	}
}

func TestPurchasesOfIsBuyerScoped(t *testing.T) {
	h := newHarness(t)
	poolID := h.createPool()
	h.purchase(poolID)
	if got := len(h.engine.PurchasesOf(buyer)); got != 1 {
		t.Fatalf("expected 1 purchase, got %d", got)
	}
	if got := len(h.engine.PurchasesOf(lender)); got != 0 {
		t.Fatalf("expected no purchases for lender, got %d", got)
	}
}

func TestEventsPublishedInOrder(t *testing.T) {
	h := newHarness(t)
	h.financed()
	want := []string{
		events.TypePoolCreated,
		events.TypePoolFunded,
		events.TypePurchaseCreated,
		events.TypeEscrowCreated,
		events.TypePurchaseCompleted,
	}
	got := h.recorder.Events()
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(got))
	}
	for i, evt := range got {
		if evt.EventType() != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], evt.EventType())
		}
	}
}

func TestDepositsSurviveRestart(t *testing.T) {
	db := storage.NewMemDB()
	h := newHarnessWith(t, db, nil)
	poolID := h.createPool()
	purchaseID := h.purchase(poolID)
	h.deposit()

	restarted, err := Deploy(db, admin, h.funds, h.nfts, lending.DefaultConfig())
	if err != nil {
		t.Fatalf("redeploy: %v", err)
	}
	restarted.Engine.SetNowFunc(func() int64 { return startTime })
	if err := restarted.Engine.CompleteNFTPurchase(buyer, purchaseID); err != nil {
		t.Fatalf("complete after restart: %v", err)
	}
	purchase, _ := restarted.Engine.Purchase(purchaseID)
	if purchase.Seller != seller {
		t.Fatalf("seller lost across restart")
	}
}
