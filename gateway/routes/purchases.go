package routes

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"nftfi/crypto"
	"nftfi/integrations/exports"
	"nftfi/native/financing"
	"nftfi/native/lending"
	"nftfi/native/records"
)

type purchaseRequest struct {
	Collection  string `json:"collection"`
	TokenID     string `json:"tokenId"`
	DownPayment string `json:"downPayment"`
	Principal   string `json:"principal"`
	PoolID      uint64 `json:"poolId"`
}

type repayRequest struct {
	Selector uint64 `json:"selector"`
	PoolID   uint64 `json:"poolId"`
}

type claimRequest struct {
	PoolID uint64 `json:"poolId"`
}

func (h *handlers) purchaseNFT(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, err)
		return
	}
	var req purchaseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	collection, err := parseAddress("collection", req.Collection)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	tokenID, err := parseTokenID(req.TokenID)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	downPayment, err := parseAmount("downPayment", req.DownPayment)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	principal, err := parseAmount("principal", req.Principal)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var id uint64
	err = h.d.Do(r.Context(), "purchase_nft", func(e *financing.Engine) error {
		var purchaseErr error
		id, purchaseErr = e.PurchaseNFT(caller, collection, tokenID, downPayment, principal, req.PoolID)
		return purchaseErr
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"purchaseId": id})
}

func (h *handlers) listPurchases(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, err)
		return
	}
	views := []purchaseView{}
	_ = h.d.View(func(e *financing.Engine) error {
		for _, purchase := range e.PurchasesOf(caller) {
			views = append(views, newPurchaseView(purchase))
		}
		return nil
	})
	writeJSON(w, http.StatusOK, map[string]any{"purchases": views})
}

// exportPurchases streams the caller's purchases as csv (default) or jsonl.
func (h *handlers) exportPurchases(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, err)
		return
	}
	render, contentType := exports.PurchasesCSV, "text/csv"
	switch format := r.URL.Query().Get("format"); format {
	case "", "csv":
	case "jsonl":
		render, contentType = exports.PurchasesJSONL, "application/x-ndjson"
	default:
		writeBadRequest(w, fmt.Errorf("unsupported export format %q", format))
		return
	}
	var purchases []*records.Purchase
	_ = h.d.View(func(e *financing.Engine) error {
		purchases = e.PurchasesOf(caller)
		return nil
	})
	data, checksum, err := render(purchases)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Checksum-SHA256", checksum)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *handlers) getPurchase(w http.ResponseWriter, r *http.Request) {
	purchaseID, err := urlID(r, "purchaseID")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var view purchaseView
	err = h.d.View(func(e *financing.Engine) error {
		purchase, err := e.Purchase(purchaseID)
		if err != nil {
			return err
		}
		view = newPurchaseView(purchase)
		return nil
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// buyerCall runs op for the authenticated buyer on the purchase in the URL
// and answers 204 on success.
func (h *handlers) buyerCall(op string, fn func(e *financing.Engine, caller crypto.Address, purchaseID uint64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := callerOf(r)
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, err)
			return
		}
		purchaseID, err := urlID(r, "purchaseID")
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		err = h.d.Do(r.Context(), op, func(e *financing.Engine) error {
			return fn(e, caller, purchaseID)
		})
		if err != nil {
			writeEngineError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *handlers) completePurchase(w http.ResponseWriter, r *http.Request) {
	h.buyerCall("complete_nft_purchase", func(e *financing.Engine, caller crypto.Address, purchaseID uint64) error {
		return e.CompleteNFTPurchase(caller, purchaseID)
	})(w, r)
}

func (h *handlers) cancelPurchase(w http.ResponseWriter, r *http.Request) {
	h.buyerCall("cancel_purchase", func(e *financing.Engine, caller crypto.Address, purchaseID uint64) error {
		return e.CancelPurchase(caller, purchaseID)
	})(w, r)
}

func (h *handlers) claimNFT(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	h.buyerCall("claim_nft", func(e *financing.Engine, caller crypto.Address, purchaseID uint64) error {
		return e.ClaimNFT(caller, purchaseID, req.PoolID)
	})(w, r)
}

func (h *handlers) quote(w http.ResponseWriter, r *http.Request) {
	purchaseID, err := urlID(r, "purchaseID")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	selector := financing.SelectorNextInstallment
	if raw := r.URL.Query().Get("selector"); raw != "" {
		selector, err = strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeBadRequest(w, fmt.Errorf("selector must be 0 or 1"))
			return
		}
	}
	var quote *lending.Repayment
	err = h.d.View(func(e *financing.Engine) error {
		var quoteErr error
		quote, quoteErr = e.Quote(purchaseID, selector)
		return quoteErr
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRepaymentResult(quote))
}

func (h *handlers) repayLoan(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, err)
		return
	}
	purchaseID, err := urlID(r, "purchaseID")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req repayRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	var rep *lending.Repayment
	err = h.d.Do(r.Context(), "repay_loan", func(e *financing.Engine) error {
		var repayErr error
		rep, repayErr = e.RepayLoan(caller, purchaseID, req.Selector, req.PoolID)
		return repayErr
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRepaymentResult(rep))
}

func (h *handlers) getEscrow(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var view escrowView
	err = h.d.View(func(e *financing.Engine) error {
		esc, err := e.Escrow(addr)
		if err != nil {
			return err
		}
		view = newEscrowView(esc)
		return nil
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
