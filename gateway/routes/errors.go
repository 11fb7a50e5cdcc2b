package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"

	"nftfi/crypto"
	"nftfi/gateway/middleware"
	nativecommon "nftfi/native/common"
	"nftfi/storage"
)

const requestLimit = 1 << 20 // 1 MiB

var errNoCaller = errors.New("caller not authenticated")

// statusFor maps engine error kinds onto HTTP statuses.
func statusFor(err error) int {
	switch nativecommon.KindOf(err) {
	case nativecommon.ErrNotFound:
		return http.StatusNotFound
	case nativecommon.ErrValidation:
		return http.StatusBadRequest
	case nativecommon.ErrState, nativecommon.ErrReentrantCall:
		return http.StatusConflict
	case nativecommon.ErrUnauthorized:
		return http.StatusForbidden
	case nativecommon.ErrModulePaused:
		return http.StatusServiceUnavailable
	}
	if errors.Is(err, storage.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeEngineError(w http.ResponseWriter, err error) {
	writeJSONError(w, statusFor(err), err)
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSONError(w, http.StatusBadRequest, err)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	message := strings.TrimSpace(err.Error())
	if message == "" {
		message = http.StatusText(status)
	}
	body := map[string]string{"error": message}
	if kind := nativecommon.KindOf(err); kind != nil {
		body["kind"] = kind.Error()
	}
	writeJSON(w, status, body)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, requestLimit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func callerOf(r *http.Request) (crypto.Address, error) {
	caller, ok := middleware.CallerFrom(r.Context())
	if !ok {
		return crypto.Address{}, errNoCaller
	}
	return caller, nil
}

func urlID(r *http.Request, name string) (uint64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an unsigned integer", name)
	}
	return id, nil
}

func parseAmount(field, raw string) (*big.Int, error) {
	value, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return nil, fmt.Errorf("%s must be a decimal integer", field)
	}
	return value, nil
}

func parseTokenID(raw string) (*uint256.Int, error) {
	id, err := uint256.FromDecimal(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("tokenId: %w", err)
	}
	return id, nil
}

func parseAddress(field, raw string) (crypto.Address, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(raw))
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%s: %w", field, err)
	}
	return addr, nil
}
