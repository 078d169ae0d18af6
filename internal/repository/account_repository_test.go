package repository

import (
	"context"
	"testing"
	"time"

	"github.com/nimasrn/payment-gateway/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountRepository_Get(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepository(db.DB)
	ctx := context.Background()

	seedAccount(t, db, "ACC001", model.AccountTypeDebtor, "100000.00")

	t.Run("existing account", func(t *testing.T) {
		acc, err := repo.Get(ctx, "ACC001")
		require.NoError(t, err)
		assert.Equal(t, "ACC001", acc.ID)
		assert.Equal(t, model.AccountTypeDebtor, acc.Type)
		assert.True(t, decimal.RequireFromString("100000").Equal(acc.Balance))
		assert.Equal(t, "USD", acc.Currency)
	})

	t.Run("missing account", func(t *testing.T) {
		_, err := repo.Get(ctx, "NOPE")
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})
}

func TestAccountRepository_UpdateBalance(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepository(db.DB)
	ctx := context.Background()

	seedAccount(t, db, "ACC001", model.AccountTypeDebtor, "100.00")

	t.Run("within transaction", func(t *testing.T) {
		err := db.WithinTransaction(ctx, func(ctx context.Context) error {
			acc, err := repo.GetForUpdate(ctx, "ACC001")
			if err != nil {
				return err
			}
			return repo.UpdateBalance(ctx, acc.ID, acc.Balance.Sub(decimal.RequireFromString("40.25")), time.Now().UTC())
		})
		require.NoError(t, err)

		acc, err := repo.Get(ctx, "ACC001")
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("59.75").Equal(acc.Balance), acc.Balance.String())
	})

	t.Run("negative balance rejected", func(t *testing.T) {
		err := repo.UpdateBalance(ctx, "ACC001", decimal.RequireFromString("-0.01"), time.Now().UTC())
		assert.ErrorIs(t, err, ErrNegativeBalance)
	})

	t.Run("unknown account", func(t *testing.T) {
		err := repo.UpdateBalance(ctx, "NOPE", decimal.RequireFromString("1"), time.Now().UTC())
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})

	t.Run("rollback leaves balance", func(t *testing.T) {
		err := db.WithinTransaction(ctx, func(ctx context.Context) error {
			if err := repo.UpdateBalance(ctx, "ACC001", decimal.Zero, time.Now().UTC()); err != nil {
				return err
			}
			return assert.AnError
		})
		require.ErrorIs(t, err, assert.AnError)

		acc, err := repo.Get(ctx, "ACC001")
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("59.75").Equal(acc.Balance))
	})
}

func TestAccountRepository_ListAndNames(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepository(db.DB)
	ctx := context.Background()

	seedAccount(t, db, "SUP002", model.AccountTypeCreditor, "0")
	seedAccount(t, db, "ACC001", model.AccountTypeDebtor, "10")
	seedAccount(t, db, "SUP001", model.AccountTypeCreditor, "0")

	all, err := repo.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "ACC001", all[0].ID)
	assert.Equal(t, "SUP001", all[1].ID)
	assert.Equal(t, "SUP002", all[2].ID)

	creditor := model.AccountTypeCreditor
	creditors, err := repo.List(ctx, &creditor)
	require.NoError(t, err)
	assert.Len(t, creditors, 2)

	names, err := repo.Names(ctx, "ACC001", "SUP002", "MISSING")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"ACC001": "ACC001 name", "SUP002": "SUP002 name"}, names)

	empty, err := repo.Names(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestAccountRepository_Seed(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepository(db.DB)
	ctx := context.Background()

	accounts := []*model.Account{
		{ID: "ACC001", Name: "Main", Type: model.AccountTypeDebtor, Balance: decimal.RequireFromString("100"), Currency: "USD"},
		{ID: "SUP001", Name: "Supplies", Type: model.AccountTypeCreditor, Balance: decimal.Zero, Currency: "USD"},
	}

	n, err := repo.Seed(ctx, accounts)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, repo.UpdateBalance(ctx, "ACC001", decimal.RequireFromString("5"), time.Now().UTC()))

	n, err = repo.Seed(ctx, accounts)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	acc, err := repo.Get(ctx, "ACC001")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("5").Equal(acc.Balance), "seeding again must not reset balances")
}
