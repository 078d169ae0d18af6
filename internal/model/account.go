package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountTypeDebtor   AccountType = "debtor"
	AccountTypeCreditor AccountType = "creditor"
)

func (t AccountType) Valid() bool {
	return t == AccountTypeDebtor || t == AccountTypeCreditor
}

type Account struct {
	ID        string          `json:"account_id"`
	Name      string          `json:"account_name"`
	Type      AccountType     `json:"account_type"`
	Balance   decimal.Decimal `json:"balance"`
	Currency  string          `json:"currency"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
