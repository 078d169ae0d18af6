package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nimasrn/payment-gateway/internal/model"
	"github.com/nimasrn/payment-gateway/internal/repository"
	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrSameAccount         = errors.New("debtor and creditor must differ")
	ErrInvalidAmount       = errors.New("transfer amount must be positive")
	ErrNestedTransaction   = errors.New("transfer must not run inside an open transaction")
	ErrAccountNotFound     = repository.ErrAccountNotFound
)

// AccountStore is the persistence the ledger needs.
type AccountStore interface {
	Get(ctx context.Context, id string) (*model.Account, error)
	GetForUpdate(ctx context.Context, id string) (*model.Account, error)
	UpdateBalance(ctx context.Context, id string, balance decimal.Decimal, at time.Time) error
	List(ctx context.Context, accountType *model.AccountType) ([]*model.Account, error)
}

type TxManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	InTransaction(ctx context.Context) bool
}

// Ledger owns account balances. Transfer is the only way a balance changes.
type Ledger struct {
	accounts AccountStore
	tx       TxManager
	locks    *accountLocks
	now      func() time.Time
}

func New(accounts AccountStore, tx TxManager) *Ledger {
	return &Ledger{
		accounts: accounts,
		tx:       tx,
		locks:    newAccountLocks(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (l *Ledger) Get(ctx context.Context, id string) (*model.Account, error) {
	return l.accounts.Get(ctx, id)
}

func (l *Ledger) List(ctx context.Context, accountType *model.AccountType) ([]*model.Account, error) {
	return l.accounts.List(ctx, accountType)
}

// Transfer moves amount from one account to another. Both account mutexes are
// taken in ascending id order before the database transaction opens and are
// held until it commits. within, when not nil, runs inside the same database
// transaction after both balances are written; an error from it rolls the
// whole transfer back.
func (l *Ledger) Transfer(ctx context.Context, fromID, toID string, amount decimal.Decimal, within func(ctx context.Context) error) error {
	if fromID == toID {
		return ErrSameAccount
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if l.tx.InTransaction(ctx) {
		return ErrNestedTransaction
	}

	unlock := l.locks.lockAll(fromID, toID)
	defer unlock()

	return l.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		ids := []string{fromID, toID}
		sort.Strings(ids)

		rows := make(map[string]*model.Account, 2)
		for _, id := range ids {
			acc, err := l.accounts.GetForUpdate(ctx, id)
			if err != nil {
				return fmt.Errorf("lock account %s: %w", id, err)
			}
			rows[id] = acc
		}

		from, to := rows[fromID], rows[toID]
		if from.Balance.LessThan(amount) {
			return ErrInsufficientBalance
		}

		now := l.now()
		if err := l.accounts.UpdateBalance(ctx, fromID, from.Balance.Sub(amount), now); err != nil {
			return fmt.Errorf("debit %s: %w", fromID, err)
		}
		if err := l.accounts.UpdateBalance(ctx, toID, to.Balance.Add(amount), now); err != nil {
			return fmt.Errorf("credit %s: %w", toID, err)
		}

		if within != nil {
			return within(ctx)
		}
		return nil
	})
}
