// Package seed holds the demo accounts the engine starts with.
package seed

import (
	"context"

	"github.com/nimasrn/payment-gateway/internal/model"
	"github.com/nimasrn/payment-gateway/pkg/logger"
	"github.com/shopspring/decimal"
)

type AccountSeeder interface {
	Seed(ctx context.Context, accounts []*model.Account) (int64, error)
}

func account(id, name string, typ model.AccountType, balance string) *model.Account {
	return &model.Account{
		ID:       id,
		Name:     name,
		Type:     typ,
		Balance:  decimal.RequireFromString(balance),
		Currency: "USD",
	}
}

// DefaultAccounts returns fresh copies of the three debtor and four creditor
// accounts.
func DefaultAccounts() []*model.Account {
	return []*model.Account{
		account("ACC001", "Main Operating Account", model.AccountTypeDebtor, "100000.00"),
		account("ACC002", "Payroll Account", model.AccountTypeDebtor, "50000.00"),
		account("ACC003", "Marketing Budget", model.AccountTypeDebtor, "25000.00"),
		account("SUP001", "Office Supplies Inc.", model.AccountTypeCreditor, "0.00"),
		account("SUP002", "Tech Solutions Ltd.", model.AccountTypeCreditor, "0.00"),
		account("SUP003", "Consulting Partners", model.AccountTypeCreditor, "0.00"),
		account("SUP004", "Cloud Services Provider", model.AccountTypeCreditor, "0.00"),
	}
}

// Run inserts the default accounts that do not exist yet. Existing rows and
// their balances are left alone.
func Run(ctx context.Context, s AccountSeeder) error {
	n, err := s.Seed(ctx, DefaultAccounts())
	if err != nil {
		return err
	}
	logger.Info("accounts seeded", "inserted", n)
	return nil
}
