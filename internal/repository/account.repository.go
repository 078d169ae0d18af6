package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nimasrn/payment-gateway/internal/model"
	"github.com/nimasrn/payment-gateway/pkg/pg"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrNegativeBalance = errors.New("balance cannot be negative")
)

type AccountRepository struct {
	*pg.DB
}

func NewAccountRepository(db *pg.DB) *AccountRepository {
	return &AccountRepository{
		db,
	}
}

func (r *AccountRepository) Get(ctx context.Context, id string) (*model.Account, error) {
	var entity AccountEntity
	err := r.Read(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return toAccountModel(&entity), nil
}

// GetForUpdate reads the account row holding a row lock until the surrounding
// transaction ends. It must be called with a transaction in ctx.
func (r *AccountRepository) GetForUpdate(ctx context.Context, id string) (*model.Account, error) {
	var entity AccountEntity
	err := r.Write(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return toAccountModel(&entity), nil
}

// UpdateBalance overwrites the stored balance. Callers compute the new value
// under the row lock taken by GetForUpdate.
func (r *AccountRepository) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal, at time.Time) error {
	if balance.IsNegative() {
		return ErrNegativeBalance
	}

	result := r.Write(ctx).
		Model(&AccountEntity{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"balance":    balance.Round(2),
			"updated_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) List(ctx context.Context, accountType *model.AccountType) ([]*model.Account, error) {
	q := r.Read(ctx).Model(&AccountEntity{})
	if accountType != nil {
		q = q.Where("type = ?", string(*accountType))
	}

	var entities []*AccountEntity
	if err := q.Order("id ASC").Find(&entities).Error; err != nil {
		return nil, err
	}
	return toAccountModels(entities), nil
}

// Names returns the display name of every requested account that exists.
func (r *AccountRepository) Names(ctx context.Context, ids ...string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	var entities []*AccountEntity
	err := r.Read(ctx).
		Select("id", "name").
		Where("id IN ?", ids).
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	for _, e := range entities {
		names[e.ID] = e.Name
	}
	return names, nil
}

// Seed inserts the given accounts, leaving existing rows untouched. It
// returns how many rows were inserted.
func (r *AccountRepository) Seed(ctx context.Context, accounts []*model.Account) (int64, error) {
	if len(accounts) == 0 {
		return 0, nil
	}
	entities := make([]*AccountEntity, len(accounts))
	for i, a := range accounts {
		entities[i] = toAccountEntity(a)
	}

	result := r.Write(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&entities)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
