package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/nimasrn/payment-gateway/internal/model"
	"github.com/nimasrn/payment-gateway/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrStatusConflict is returned when a conditional status update matched no
	// row because the stored status is not the expected one.
	ErrStatusConflict      = errors.New("transaction status changed concurrently")
	ErrInvalidTransition   = errors.New("invalid status transition")
)

type TransactionRepository struct {
	*pg.DB
}

func NewTransactionRepository(db *pg.DB) *TransactionRepository {
	return &TransactionRepository{
		db,
	}
}

func (r *TransactionRepository) Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	entity := toTransactionEntity(txn)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toTransactionModel(entity), nil
}

func (r *TransactionRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&TransactionEntity{}).
		Where("id = ?", id).
		Count(&count).
		Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *TransactionRepository) Get(ctx context.Context, id string) (*model.Transaction, error) {
	var entity TransactionEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return toTransactionModel(&entity), nil
}

// ApplyStatusChange moves the transaction from change.From to change.To only if
// its stored status still equals change.From. Terminal moves also stamp
// completed_at, and error_message is written when given.
func (r *TransactionRepository) ApplyStatusChange(ctx context.Context, change model.StatusChange) error {
	if !change.From.CanTransition(change.To) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, change.From, change.To)
	}

	updates := map[string]any{
		"status":     string(change.To),
		"updated_at": change.At,
	}
	if change.To.Terminal() {
		updates["completed_at"] = change.At
	}
	if change.ErrorMessage != nil {
		updates["error_message"] = *change.ErrorMessage
	}

	result := r.Write(ctx).WithContext(ctx).
		Model(&TransactionEntity{}).
		Where("id = ? AND status = ?", change.TransactionID, string(change.From)).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s expected %s", ErrStatusConflict, change.TransactionID, change.From)
	}
	return nil
}

type TransactionFilter struct {
	Status *model.TransactionStatus
	Limit  int
	Offset int
}

// List returns one page of transactions, newest first, and the total number
// of rows matching the filter.
func (r *TransactionRepository) List(ctx context.Context, f TransactionFilter) ([]*model.Transaction, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&TransactionEntity{})

	if f.Status != nil {
		q = q.Where("status = ?", string(*f.Status))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*TransactionEntity
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toTransactionModels(entities), total, nil
}
