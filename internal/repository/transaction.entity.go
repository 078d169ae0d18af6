package repository

import (
	"time"

	"github.com/nimasrn/payment-gateway/internal/model"
	"github.com/shopspring/decimal"
)

type TransactionEntity struct {
	ID           string          `db:"id"            gorm:"primaryKey;column:id;type:varchar(50)"`
	DebtorID     string          `db:"debtor_id"     gorm:"column:debtor_id;not null;index"`
	CreditorID   string          `db:"creditor_id"   gorm:"column:creditor_id;not null;index"`
	Amount       decimal.Decimal `db:"amount"        gorm:"column:amount;type:numeric(18,2);not null"`
	Currency     string          `db:"currency"      gorm:"column:currency;type:varchar(3);not null"`
	Status       string          `db:"status"        gorm:"column:status;not null;index"`
	Description  *string         `db:"description"   gorm:"column:description;type:varchar(500)"`
	ErrorMessage *string         `db:"error_message" gorm:"column:error_message"`
	CreatedAt    time.Time       `db:"created_at"    gorm:"column:created_at;not null;index"`
	UpdatedAt    time.Time       `db:"updated_at"    gorm:"column:updated_at;not null"`
	CompletedAt  *time.Time      `db:"completed_at"  gorm:"column:completed_at"`
}

func (TransactionEntity) TableName() string {
	return "transactions"
}

func toTransactionEntity(m *model.Transaction) *TransactionEntity {
	if m == nil {
		return nil
	}
	return &TransactionEntity{
		ID:           m.ID,
		DebtorID:     m.DebtorID,
		CreditorID:   m.CreditorID,
		Amount:       m.Amount,
		Currency:     m.Currency,
		Status:       string(m.Status),
		Description:  m.Description,
		ErrorMessage: m.ErrorMessage,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
		CompletedAt:  m.CompletedAt,
	}
}

func toTransactionModel(e *TransactionEntity) *model.Transaction {
	if e == nil {
		return nil
	}
	return &model.Transaction{
		ID:           e.ID,
		DebtorID:     e.DebtorID,
		CreditorID:   e.CreditorID,
		Amount:       e.Amount,
		Currency:     e.Currency,
		Status:       model.TransactionStatus(e.Status),
		Description:  e.Description,
		ErrorMessage: e.ErrorMessage,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
		CompletedAt:  e.CompletedAt,
	}
}

func toTransactionModels(entities []*TransactionEntity) []*model.Transaction {
	if entities == nil {
		return nil
	}
	models := make([]*model.Transaction, len(entities))
	for i, e := range entities {
		models[i] = toTransactionModel(e)
	}
	return models
}
