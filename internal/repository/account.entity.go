package repository

import (
	"time"

	"github.com/nimasrn/payment-gateway/internal/model"
	"github.com/shopspring/decimal"
)

type AccountEntity struct {
	ID        string          `db:"id"         gorm:"primaryKey;column:id;type:varchar(50)"`
	Name      string          `db:"name"       gorm:"column:name;not null"`
	Type      string          `db:"type"       gorm:"column:type;not null;index"`
	Balance   decimal.Decimal `db:"balance"    gorm:"column:balance;type:numeric(18,2);not null;default:0"`
	Currency  string          `db:"currency"   gorm:"column:currency;type:varchar(3);not null;default:USD"`
	CreatedAt time.Time       `db:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `db:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (AccountEntity) TableName() string {
	return "accounts"
}

func toAccountEntity(m *model.Account) *AccountEntity {
	if m == nil {
		return nil
	}
	return &AccountEntity{
		ID:        m.ID,
		Name:      m.Name,
		Type:      string(m.Type),
		Balance:   m.Balance,
		Currency:  m.Currency,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func toAccountModel(e *AccountEntity) *model.Account {
	if e == nil {
		return nil
	}
	return &model.Account{
		ID:        e.ID,
		Name:      e.Name,
		Type:      model.AccountType(e.Type),
		Balance:   e.Balance,
		Currency:  e.Currency,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func toAccountModels(entities []*AccountEntity) []*model.Account {
	if entities == nil {
		return nil
	}
	models := make([]*model.Account, len(entities))
	for i, e := range entities {
		models[i] = toAccountModel(e)
	}
	return models
}
