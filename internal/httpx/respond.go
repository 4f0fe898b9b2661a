package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wednesdev-id/semindo-grow-hub-sub004/internal/orders"
	"github.com/wednesdev-id/semindo-grow-hub-sub004/internal/payment"
)

// Semua endpoint membalas amplop seragam:
// sukses: {"success":true,"data":...}
// gagal : {"success":false,"error":{"code":...,"message":...,"details":...}}

type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeOK(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func writeErr(w http.ResponseWriter, status int, code, msg string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Error: &errorBody{Code: code, Message: msg, Details: details}})
}

// writeDomainErr memetakan taksonomi error domain ke status + kode amplop.
func writeDomainErr(w http.ResponseWriter, err error) {
	var shortage *orders.ShortageError
	if errors.As(err, &shortage) {
		writeErr(w, http.StatusConflict, "INSUFFICIENT_STOCK", "insufficient stock", shortage.Details)
		return
	}
	switch {
	case errors.Is(err, orders.ErrValidation):
		writeErr(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, orders.ErrInvalidVoucher):
		writeErr(w, http.StatusConflict, "INVALID_VOUCHER", err.Error(), nil)
	case errors.Is(err, orders.ErrInsufficientStock):
		writeErr(w, http.StatusConflict, "INSUFFICIENT_STOCK", err.Error(), nil)
	case errors.Is(err, orders.ErrCannotCancel):
		writeErr(w, http.StatusConflict, "CANNOT_CANCEL", err.Error(), nil)
	case errors.Is(err, orders.ErrInvalidTransition):
		writeErr(w, http.StatusConflict, "INVALID_TRANSITION", err.Error(), nil)
	case errors.Is(err, orders.ErrForbidden):
		writeErr(w, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
	case errors.Is(err, orders.ErrNotFound):
		writeErr(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
	case errors.Is(err, orders.ErrTransient):
		// aman di-retry dari client
		writeErr(w, http.StatusServiceUnavailable, "TRY_AGAIN", err.Error(), nil)
	case errors.Is(err, payment.ErrSessionClosed):
		writeErr(w, http.StatusConflict, "SESSION_CLOSED", err.Error(), nil)
	default:
		writeErr(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
