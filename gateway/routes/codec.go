package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"creditguild/config"
	"creditguild/core"
	"creditguild/crypto"
	"creditguild/gateway/middleware"
	"creditguild/native/auction"
	"creditguild/native/common"
	"creditguild/native/lending"
	"creditguild/native/ratelimit"
)

const requestLimit = 1 << 20 // 1 MiB

type errorResponse struct {
	Error string `json:"error"`
	Class string `json:"class"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Class: "bad_request"})
}

// writeError maps protocol failures onto HTTP status codes by error class.
func (a *api) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed",
			slog.String("requestId", middleware.RequestID(r.Context())),
			slog.Any("error", err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Class: common.ClassName(err)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, lending.ErrLoanNotFound),
		errors.Is(err, lending.ErrMarketNotFound),
		errors.Is(err, auction.ErrAuctionNotFound),
		errors.Is(err, ratelimit.ErrUnknownAuthority):
		return http.StatusNotFound
	case errors.Is(err, core.ErrNotInitialised):
		return http.StatusServiceUnavailable
	case errors.Is(err, common.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, common.ErrAdmissionDenied):
		return http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrScheduleViolation):
		return http.StatusPreconditionFailed
	case errors.Is(err, common.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, common.ErrConfigInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, requestLimit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

// callerOf returns the authenticated account. The auth middleware guarantees
// it on every private route.
func callerOf(r *http.Request) [20]byte {
	caller, _ := middleware.Caller(r.Context())
	return caller
}

func loanIDParam(r *http.Request) (uint64, error) {
	raw := chi.URLParam(r, "loanID")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid loan id %q", raw)
	}
	return id, nil
}

func addressParam(r *http.Request, name string) ([20]byte, error) {
	addr, err := crypto.ParseAddress(chi.URLParam(r, name))
	if err != nil {
		return [20]byte{}, fmt.Errorf("invalid %s: %w", name, err)
	}
	return addr, nil
}

// marketParam maps the "global" path segment onto the global buffer key.
func marketParam(r *http.Request) string {
	market := chi.URLParam(r, "market")
	if market == "global" {
		return ""
	}
	return market
}

func parseAmount(field, raw string) (*big.Int, error) {
	amount, err := config.ParseWad(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return amount, nil
}

func parseAddress(field, raw string) ([20]byte, error) {
	addr, err := crypto.ParseAddress(raw)
	if err != nil {
		return [20]byte{}, fmt.Errorf("%s: %w", field, err)
	}
	return addr, nil
}

func formatAmount(value *big.Int) string {
	if value == nil {
		return "0"
	}
	return config.FormatWad(value)
}
