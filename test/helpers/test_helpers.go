package helpers

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/payment-gateway/internal/model"
	"github.com/nimasrn/payment-gateway/internal/repository"
	"github.com/nimasrn/payment-gateway/pkg/pg"
	"github.com/nimasrn/payment-gateway/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB opens a private in-memory sqlite database with the full schema.
// The pool is pinned to one connection so every handle sees the same
// database; callers must not query outside a transaction while holding one.
func SetupTestDB(t *testing.T) *pg.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(
		&repository.AccountEntity{},
		&repository.TransactionEntity{},
		&repository.AuditLogEntity{},
	)
	require.NoError(t, err)

	return pg.Wrap(db)
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	t.Helper()
	mr := miniredis.RunT(t)

	adapter, err := redis.NewRedisAdapter(t.Name(), "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = adapter.Close() })

	return mr, adapter
}

func CreateTestAccount(t *testing.T, db *pg.DB, id string, typ model.AccountType, balance string) *model.Account {
	t.Helper()
	ctx := context.Background()
	acc := &model.Account{
		ID:       id,
		Name:     id + " account",
		Type:     typ,
		Balance:  decimal.RequireFromString(balance),
		Currency: "USD",
	}
	_, err := repository.NewAccountRepository(db).Seed(ctx, []*model.Account{acc})
	require.NoError(t, err)
	return acc
}

func Balance(t *testing.T, db *pg.DB, id string) decimal.Decimal {
	t.Helper()
	acc, err := repository.NewAccountRepository(db).Get(context.Background(), id)
	require.NoError(t, err)
	return acc.Balance
}

// TotalBalance sums every account balance.
func TotalBalance(t *testing.T, db *pg.DB) decimal.Decimal {
	t.Helper()
	accounts, err := repository.NewAccountRepository(db).List(context.Background(), nil)
	require.NoError(t, err)
	total := decimal.Zero
	for _, a := range accounts {
		total = total.Add(a.Balance)
	}
	return total
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func Amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func Ptr[T any](v T) *T {
	return &v
}
