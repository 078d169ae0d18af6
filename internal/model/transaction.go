package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the lifecycle state of a payment transaction.
type TransactionStatus string

const (
	StatusPending    TransactionStatus = "pending"
	StatusProcessing TransactionStatus = "processing"
	StatusCompleted  TransactionStatus = "completed"
	StatusFailed     TransactionStatus = "failed"
)

var transitions = map[TransactionStatus]map[TransactionStatus]bool{
	StatusPending:    {StatusProcessing: true},
	StatusProcessing: {StatusCompleted: true, StatusFailed: true},
}

func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

func (s TransactionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether to is a legal next state after s.
func (s TransactionStatus) CanTransition(to TransactionStatus) bool {
	return transitions[s][to]
}

type Transaction struct {
	ID           string            `json:"transaction_id"`
	DebtorID     string            `json:"debtor_account_id"`
	CreditorID   string            `json:"creditor_account_id"`
	Amount       decimal.Decimal   `json:"transaction_amount"`
	Currency     string            `json:"currency"`
	Status       TransactionStatus `json:"transaction_status"`
	Description  *string           `json:"description,omitempty"`
	ErrorMessage *string           `json:"error_message,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
}

// StatusChange describes one forward move of a transaction's status, applied
// together with its audit entry.
type StatusChange struct {
	TransactionID string
	From          TransactionStatus
	To            TransactionStatus
	ErrorMessage  *string
	At            time.Time
}

type CreatePaymentRequest struct {
	DebtorID    string
	CreditorID  string
	Amount      decimal.Decimal
	Currency    string
	Description *string
}

// PaymentDetail is the read-model returned for a single transaction.
type PaymentDetail struct {
	Transaction  *Transaction
	DebtorName   string
	CreditorName string
	Logs         []*AuditLogEntry
}

// PaymentSummary is a list item: the transaction plus account display names.
type PaymentSummary struct {
	Transaction  *Transaction
	DebtorName   string
	CreditorName string
}

// PaymentFilter controls List queries. Page is 1-indexed.
type PaymentFilter struct {
	Status *TransactionStatus
	Page   int
	Limit  int
}

type PaymentPage struct {
	Items      []*PaymentSummary
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}
