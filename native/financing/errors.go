package financing

import nativecommon "nftfi/native/common"

var (
	errNotAdmin            = nativecommon.Unauthorized("financing: caller is not the admin")
	errNotBuyer            = nativecommon.Unauthorized("financing: caller is not the buyer")
	errNotPoolOwner        = nativecommon.Unauthorized("financing: caller is not the pool owner")
	errNotBorrower         = nativecommon.Unauthorized("financing: caller is not the borrower")
	errInvalidAmount       = nativecommon.Validation("financing: amount must be positive")
	errInvalidPrincipal    = nativecommon.Validation("financing: invalid principal")
	errPoolCantFund        = nativecommon.Validation("financing: pool can't fund purchase")
	errInvalidSelector     = nativecommon.Validation("financing: cycle selector must be 0 or 1")
	errPoolMismatch        = nativecommon.Validation("financing: pool does not match purchase")
	errBorrowerMismatch    = nativecommon.Validation("financing: borrower does not match liquidation")
	errPurchaseMismatch    = nativecommon.Validation("financing: liquidation does not match purchase")
	errInsufficientBalance = nativecommon.Validation("financing: insufficient balance")
	errInsufficientAllow   = nativecommon.Validation("financing: insufficient allowance")
	errMissingToken        = nativecommon.Validation("financing: token id required")
	errMissingAddress      = nativecommon.Validation("financing: address required")
	errPoolClosed          = nativecommon.State("financing: pool is closed")
	errPurchaseIncomplete  = nativecommon.State("financing: purchase incomplete")
	errPurchaseCompleted   = nativecommon.State("financing: purchase already completed")
	errPurchaseCancelled   = nativecommon.State("financing: purchase cancelled")
	errSurplusOwed         = nativecommon.State("financing: pool owes a liquidation surplus")
	errCustodyShort        = nativecommon.State("financing: custody cannot cover settlement")
	errLoanNotRepaid       = nativecommon.State("financing: loan not repaid")
	errLoanNotOpen         = nativecommon.State("financing: loan not open")
	errLoanNotInDefault    = nativecommon.State("financing: loan not in default")
	errNFTNotHeld          = nativecommon.State("financing: nft not held in escrow")
	errLiquidationPending  = nativecommon.State("financing: liquidation already pending")
	errLiquidationNotOpen  = nativecommon.State("financing: liquidation not pending")
	errLiquidationOpen     = nativecommon.State("financing: liquidation not completed")
	errAlreadyRefunded     = nativecommon.State("financing: surplus already refunded")
	errNoSurplus           = nativecommon.State("financing: no surplus to refund")
)
