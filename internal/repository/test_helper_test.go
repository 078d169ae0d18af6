package repository

import (
	"context"
	"testing"
	"time"

	"github.com/nimasrn/payment-gateway/internal/model"
	"github.com/nimasrn/payment-gateway/pkg/pg"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testDB struct {
	*pg.DB
	rawDB *gorm.DB
}

func setupTestDB(t *testing.T) *testDB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(&AccountEntity{}, &TransactionEntity{}, &AuditLogEntity{})
	require.NoError(t, err)

	return &testDB{
		DB:    pg.Wrap(db),
		rawDB: db,
	}
}

func seedAccount(t *testing.T, db *testDB, id string, typ model.AccountType, balance string) {
	t.Helper()
	err := db.rawDB.Create(&AccountEntity{
		ID:       id,
		Name:     id + " name",
		Type:     string(typ),
		Balance:  decimal.RequireFromString(balance),
		Currency: "USD",
	}).Error
	require.NoError(t, err)
}

func newTransaction(id string, at time.Time) *model.Transaction {
	return &model.Transaction{
		ID:         id,
		DebtorID:   "ACC001",
		CreditorID: "SUP001",
		Amount:     decimal.RequireFromString("10.00"),
		Currency:   "USD",
		Status:     model.StatusPending,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
}

func strPtr(s string) *string {
	return &s
}

var bg = context.Background()
