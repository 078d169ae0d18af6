package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/nimasrn/payment-gateway/internal/services"
	xhttp "github.com/nimasrn/payment-gateway/pkg/http"
	"github.com/nimasrn/payment-gateway/pkg/logger"
	"github.com/shopspring/decimal"
)

const (
	CodeInvalidRequest        = "INVALID_REQUEST"
	CodeInvalidAmount         = "INVALID_AMOUNT"
	CodeAccountNotFound       = "ACCOUNT_NOT_FOUND"
	CodeSameAccount           = "SAME_ACCOUNT"
	CodeInsufficientBalance   = "INSUFFICIENT_BALANCE"
	CodeCurrencyMismatch      = "CURRENCY_MISMATCH"
	CodeNotFound              = "NOT_FOUND"
	CodeIdempotencyInProgress = "IDEMPOTENCY_IN_PROGRESS"
	CodeIdempotencyKeyReused  = "IDEMPOTENCY_KEY_REUSED"
	CodeServiceUnavailable    = "SERVICE_UNAVAILABLE"
	CodeInternal              = "INTERNAL_ERROR"
)

type envelope struct {
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Amount is a money value that travels as a JSON number with two decimals.
// Quoted strings are accepted on input.
type Amount decimal.Decimal

func (a Amount) Decimal() decimal.Decimal {
	return decimal.Decimal(a)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(a).StringFixed(2)), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(bytes.TrimSpace(b), `"`)
	if len(b) == 0 || string(b) == "null" {
		*a = Amount(decimal.Zero)
		return nil
	}
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return errors.New("transaction_amount must be a number")
	}
	*a = Amount(d)
	return nil
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	return json.Unmarshal(ctx.PostBody(), dst)
}

func encode(success bool, message string, data any, e *errorBody) []byte {
	b, err := json.Marshal(envelope{Success: success, Message: message, Data: data, Error: e})
	if err != nil {
		logger.Error("failed to encode response", "error", err)
		return []byte(`{"success":false,"error":{"code":"INTERNAL_ERROR","message":"internal server error"}}`)
	}
	return b
}

func writeRaw(ctx *xhttp.RequestCtx, status int, body []byte) {
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(body)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, message string, data any) {
	writeRaw(ctx, status, encode(true, message, data, nil))
}

func writeError(ctx *xhttp.RequestCtx, status int, code, message, details string) {
	writeRaw(ctx, status, encode(false, "", nil, &errorBody{Code: code, Message: message, Details: details}))
}

// errorResponse maps a service error to its HTTP status and envelope.
func errorResponse(err error) (int, []byte) {
	status, code := xhttp.StatusInternalServerError, CodeInternal
	switch {
	case errors.Is(err, services.ErrInvalidRequest):
		status, code = xhttp.StatusBadRequest, CodeInvalidRequest
	case errors.Is(err, services.ErrInvalidAmount):
		status, code = xhttp.StatusBadRequest, CodeInvalidAmount
	case errors.Is(err, services.ErrSameAccount):
		status, code = xhttp.StatusBadRequest, CodeSameAccount
	case errors.Is(err, services.ErrCurrencyMismatch):
		status, code = xhttp.StatusBadRequest, CodeCurrencyMismatch
	case errors.Is(err, services.ErrInsufficientBalance):
		status, code = xhttp.StatusBadRequest, CodeInsufficientBalance
	case errors.Is(err, services.ErrAccountNotFound):
		status, code = xhttp.StatusNotFound, CodeAccountNotFound
	case errors.Is(err, services.ErrTransactionNotFound):
		status, code = xhttp.StatusNotFound, CodeNotFound
	}

	if status == xhttp.StatusInternalServerError {
		logger.Error("request failed", "kind", services.Classify(err).String(), "error", err)
		return status, encode(false, "", nil, &errorBody{Code: code, Message: "internal server error"})
	}
	return status, encode(false, "", nil, &errorBody{Code: code, Message: rootMessage(err), Details: err.Error()})
}

func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	status, body := errorResponse(err)
	writeRaw(ctx, status, body)
}

// rootMessage returns the sentinel text at the bottom of a wrapped chain.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func queryInt(ctx *xhttp.RequestCtx, key string) (int, error) {
	v := query(ctx, key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, errors.New(key + " must be a positive integer")
	}
	return n, nil
}
