package services

import (
	"errors"

	"github.com/nimasrn/payment-gateway/internal/repository"
	"github.com/nimasrn/payment-gateway/internal/settlement"
)

var (
	ErrInvalidRequest        = errors.New("invalid request")
	ErrInvalidAmount         = errors.New("invalid transaction amount")
	ErrAccountNotFound       = errors.New("account not found")
	ErrSameAccount           = errors.New("debtor and creditor accounts must be different")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrCurrencyMismatch      = errors.New("currency does not match account currency")
	ErrTransactionNotFound   = errors.New("transaction not found")
	ErrIDGenerationExhausted = errors.New("could not generate a unique transaction id")
)

// Kind groups errors by how a caller should react to them.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindBusinessRule
	KindInvariantViolation
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindBusinessRule:
		return "business_rule"
	case KindInvariantViolation:
		return "invariant_violation"
	}
	return "internal"
}

func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrSameAccount),
		errors.Is(err, ErrCurrencyMismatch):
		return KindValidation
	case errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrTransactionNotFound):
		return KindNotFound
	case errors.Is(err, ErrInsufficientBalance):
		return KindBusinessRule
	case errors.Is(err, settlement.ErrInvariantViolation),
		errors.Is(err, repository.ErrStatusConflict):
		return KindInvariantViolation
	}
	return KindInternal
}
