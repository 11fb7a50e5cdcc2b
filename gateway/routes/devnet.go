package routes

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"nftfi/native/financing"
)

type approveRequest struct {
	Amount string `json:"amount"`
}

type nftRequest struct {
	Collection string `json:"collection"`
	TokenID    string `json:"tokenId"`
}

func (h *handlers) mountDevnet(r chi.Router) {
	r.Post("/devnet/approve", h.approveEngine)
	r.Get("/devnet/balances/{address}", h.balanceOf)
	r.Post("/devnet/nfts/mint", h.mintNFT)
	r.Post("/devnet/nfts/deposit", h.depositNFT)
	r.Get("/devnet/nfts/{collection}/{tokenID}", h.ownerOf)
}

// approveEngine sets the caller's allowance for engine pulls.
func (h *handlers) approveEngine(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, err)
		return
	}
	var req approveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	value, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	err = h.d.Do(r.Context(), "devnet_approve", func(e *financing.Engine) error {
		return h.devnet.Funds.Approve(caller, e.Address(), value)
	})
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) balanceOf(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"address": addr.String(),
		"symbol":  h.devnet.Funds.Symbol(),
		"balance": amount(h.devnet.Funds.BalanceOf(addr)),
	})
}

func (h *handlers) decodeNFT(r *http.Request) (nftRequest, error) {
	var req nftRequest
	if err := decodeJSON(r, &req); err != nil {
		return req, err
	}
	if req.Collection == "" || req.TokenID == "" {
		return req, errors.New("collection and tokenId are required")
	}
	return req, nil
}

// mintNFT mints a token of any collection to the caller.
func (h *handlers) mintNFT(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, err)
		return
	}
	req, err := h.decodeNFT(r)
	if err != nil {
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
	if err := h.devnet.NFTs.Mint(collection, caller, tokenID); err != nil {
		writeJSONError(w, http.StatusConflict, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// depositNFT safe-transfers a caller-owned token to the engine, recording the
// caller as its seller.
func (h *handlers) depositNFT(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, err)
		return
	}
	req, err := h.decodeNFT(r)
	if err != nil {
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
	err = h.d.Do(r.Context(), "devnet_deposit_nft", func(e *financing.Engine) error {
		return h.devnet.NFTs.SafeTransferFrom(caller, collection, caller, e.Address(), tokenID)
	})
	if err != nil {
		writeJSONError(w, http.StatusConflict, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) ownerOf(w http.ResponseWriter, r *http.Request) {
	collection, err := parseAddress("collection", chi.URLParam(r, "collection"))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	tokenID, err := parseTokenID(chi.URLParam(r, "tokenID"))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	owner, err := h.devnet.NFTs.OwnerOf(collection, tokenID)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"owner": owner.String()})
}
