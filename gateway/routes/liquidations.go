package routes

import (
	"math/big"
	"net/http"

	"nftfi/native/financing"
)

type startLiquidationRequest struct {
	PurchaseID      uint64 `json:"purchaseId"`
	DiscountAmount  string `json:"discountAmount"`
	CurrentNFTPrice string `json:"currentNftPrice"`
	Borrower        string `json:"borrower"`
}

type completeLiquidationRequest struct {
	Borrower string `json:"borrower"`
}

type refundRequest struct {
	PurchaseID uint64 `json:"purchaseId"`
}

func (h *handlers) startLiquidation(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, err)
		return
	}
	var req startLiquidationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	discount, err := parseAmount("discountAmount", req.DiscountAmount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	borrower, err := parseAddress("borrower", req.Borrower)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	price := big.NewInt(0)
	if req.CurrentNFTPrice != "" {
		if price, err = parseAmount("currentNftPrice", req.CurrentNFTPrice); err != nil {
			writeBadRequest(w, err)
			return
		}
	}
	var id uint64
	err = h.d.Do(r.Context(), "start_liquidation", func(e *financing.Engine) error {
		var startErr error
		id, startErr = e.StartLiquidation(caller, req.PurchaseID, discount, price, borrower)
		return startErr
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"liquidationId": id})
}

func (h *handlers) getLiquidation(w http.ResponseWriter, r *http.Request) {
	liquidationID, err := urlID(r, "liquidationID")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var view liquidationView
	err = h.d.View(func(e *financing.Engine) error {
		liquidation, err := e.Liquidation(liquidationID)
		if err != nil {
			return err
		}
		view = newLiquidationView(liquidation)
		return nil
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handlers) completeLiquidation(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, err)
		return
	}
	liquidationID, err := urlID(r, "liquidationID")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req completeLiquidationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	borrower, err := parseAddress("borrower", req.Borrower)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	err = h.d.Do(r.Context(), "complete_liquidation", func(e *financing.Engine) error {
		return e.CompleteLiquidation(caller, liquidationID, borrower)
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) refundBorrower(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, err)
		return
	}
	liquidationID, err := urlID(r, "liquidationID")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req refundRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	err = h.d.Do(r.Context(), "refund_borrower", func(e *financing.Engine) error {
		return e.RefundBorrower(caller, req.PurchaseID, liquidationID)
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
