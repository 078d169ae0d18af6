package repository

import (
	"context"

	"github.com/nimasrn/payment-gateway/internal/model"
	"github.com/nimasrn/payment-gateway/pkg/pg"
)

// AuditLogRepository stores the append-only status history of transactions.
// Entries are never updated or deleted.
type AuditLogRepository struct {
	*pg.DB
}

func NewAuditLogRepository(db *pg.DB) *AuditLogRepository {
	return &AuditLogRepository{
		db,
	}
}

// Append inserts one entry. It joins the transaction carried by ctx, if any.
func (r *AuditLogRepository) Append(ctx context.Context, entry *model.AuditLogEntry) (*model.AuditLogEntry, error) {
	entity := toAuditLogEntity(entry)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toAuditLogModel(entity), nil
}

// ListFor returns the entries of one transaction ordered by (created_at, id).
func (r *AuditLogRepository) ListFor(ctx context.Context, transactionID string) ([]*model.AuditLogEntry, error) {
	var entities []*AuditLogEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toAuditLogModels(entities), nil
}
