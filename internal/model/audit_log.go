package model

import "time"

type AuditLogEntry struct {
	ID            int64              `json:"-"`
	TransactionID string             `json:"transaction_id"`
	OldStatus     *TransactionStatus `json:"old_status"`
	NewStatus     TransactionStatus  `json:"new_status"`
	ErrorMessage  *string            `json:"error_message,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}
