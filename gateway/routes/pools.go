package routes

import (
	"math/big"
	"net/http"

	"nftfi/crypto"
	"nftfi/native/financing"
)

type createPoolRequest struct {
	Amount            string `json:"amount"`
	PaymentCycleCount uint64 `json:"paymentCycleCount"`
	APR               uint64 `json:"apr"`
	DurationSecs      uint64 `json:"durationSecs"`
	DurationMonths    uint64 `json:"durationMonths"`
}

type amountRequest struct {
	Amount string `json:"amount"`
}

func (h *handlers) createPool(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, err)
		return
	}
	var req createPoolRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	value, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var id uint64
	err = h.d.Do(r.Context(), "create_pool", func(e *financing.Engine) error {
		var createErr error
		id, createErr = e.CreatePool(caller, value, req.PaymentCycleCount, req.APR, req.DurationSecs, req.DurationMonths)
		return createErr
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"poolId": id})
}

func (h *handlers) getPool(w http.ResponseWriter, r *http.Request) {
	poolID, err := urlID(r, "poolID")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var view poolView
	err = h.d.View(func(e *financing.Engine) error {
		pool, err := e.Pool(poolID)
		if err != nil {
			return err
		}
		view = newPoolView(pool)
		return nil
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handlers) fundPool(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, err)
		return
	}
	poolID, err := urlID(r, "poolID")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req amountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	value, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	err = h.d.Do(r.Context(), "fund_pool", func(e *financing.Engine) error {
		return e.FundPool(caller, poolID, value)
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) closePool(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, err)
		return
	}
	poolID, err := urlID(r, "poolID")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	// An absent recipient pays the pool owner.
	var recipient crypto.Address
	if raw := r.URL.Query().Get("recipient"); raw != "" {
		if recipient, err = parseAddress("recipient", raw); err != nil {
			writeBadRequest(w, err)
			return
		}
	}
	var payout *big.Int
	err = h.d.Do(r.Context(), "close_pool", func(e *financing.Engine) error {
		var closeErr error
		payout, closeErr = e.ClosePool(caller, poolID, recipient)
		return closeErr
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"payout": amount(payout)})
}

func (h *handlers) getLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := urlID(r, "loanID")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var view loanView
	err = h.d.View(func(e *financing.Engine) error {
		loan, err := e.Loan(loanID)
		if err != nil {
			return err
		}
		view = newLoanView(loan)
		return nil
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handlers) listRepayments(w http.ResponseWriter, r *http.Request) {
	loanID, err := urlID(r, "loanID")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	views := []repaymentView{}
	err = h.d.View(func(e *financing.Engine) error {
		repayments, err := e.Repayments(loanID)
		if err != nil {
			return err
		}
		for _, rep := range repayments {
			views = append(views, repaymentView{
				ID:         rep.ID,
				CycleIndex: rep.CycleIndex,
				AmountPaid: amount(rep.AmountPaid),
				DefaultFee: amount(rep.DefaultFee),
				WasLate:    rep.WasLate,
				PaidAt:     rep.PaidAt,
			})
		}
		return nil
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"repayments": views})
}
