package repository

import (
	"time"

	"github.com/nimasrn/payment-gateway/internal/model"
)

type AuditLogEntity struct {
	ID            int64     `db:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	TransactionID string    `db:"transaction_id" gorm:"column:transaction_id;not null;index"`
	OldStatus     *string   `db:"old_status"     gorm:"column:old_status"`
	NewStatus     string    `db:"new_status"     gorm:"column:new_status;not null"`
	ErrorMessage  *string   `db:"error_message"  gorm:"column:error_message"`
	CreatedAt     time.Time `db:"created_at"     gorm:"column:created_at;not null"`
}

func (AuditLogEntity) TableName() string {
	return "transaction_logs"
}

func toAuditLogEntity(m *model.AuditLogEntry) *AuditLogEntity {
	if m == nil {
		return nil
	}
	var old *string
	if m.OldStatus != nil {
		s := string(*m.OldStatus)
		old = &s
	}
	return &AuditLogEntity{
		ID:            m.ID,
		TransactionID: m.TransactionID,
		OldStatus:     old,
		NewStatus:     string(m.NewStatus),
		ErrorMessage:  m.ErrorMessage,
		CreatedAt:     m.CreatedAt,
	}
}

func toAuditLogModel(e *AuditLogEntity) *model.AuditLogEntry {
	if e == nil {
		return nil
	}
	var old *model.TransactionStatus
	if e.OldStatus != nil {
		s := model.TransactionStatus(*e.OldStatus)
		old = &s
	}
	return &model.AuditLogEntry{
		ID:            e.ID,
		TransactionID: e.TransactionID,
		OldStatus:     old,
		NewStatus:     model.TransactionStatus(e.NewStatus),
		ErrorMessage:  e.ErrorMessage,
		CreatedAt:     e.CreatedAt,
	}
}

func toAuditLogModels(entities []*AuditLogEntity) []*model.AuditLogEntry {
	if entities == nil {
		return nil
	}
	models := make([]*model.AuditLogEntry, len(entities))
	for i, e := range entities {
		models[i] = toAuditLogModel(e)
	}
	return models
}
