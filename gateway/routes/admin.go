package routes

import (
	"net/http"

	"nftfi/native/financing"
)

type transferAdminRequest struct {
	Next string `json:"next"`
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = h.d.View(func(e *financing.Engine) error {
		body = map[string]any{
			"admin":   e.Admin().String(),
			"engine":  e.Address().String(),
			"custody": e.CustodyAddress().String(),
			"paused":  e.Paused(),
		}
		return nil
	})
	writeJSON(w, http.StatusOK, body)
}

func (h *handlers) togglePause(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, err)
		return
	}
	var paused bool
	err = h.d.Do(r.Context(), "toggle_paused", func(e *financing.Engine) error {
		var toggleErr error
		paused, toggleErr = e.TogglePaused(caller)
		return toggleErr
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	h.logger.Info("financing pause toggled via gateway", "paused", paused, "admin", caller.String())
	writeJSON(w, http.StatusOK, map[string]bool{"paused": paused})
}

func (h *handlers) transferAdmin(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, err)
		return
	}
	var req transferAdminRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	next, err := parseAddress("next", req.Next)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	err = h.d.Do(r.Context(), "transfer_admin", func(e *financing.Engine) error {
		return e.TransferAdmin(caller, next)
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
