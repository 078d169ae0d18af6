package repository

import (
	"context"
	"testing"
	"time"

	"github.com/nimasrn/payment-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogRepository_AppendAndList(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAuditLogRepository(db.DB)
	ctx := context.Background()
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	pending := model.StatusPending
	processing := model.StatusProcessing

	entries := []*model.AuditLogEntry{
		{TransactionID: "TXN_1", NewStatus: model.StatusPending, CreatedAt: at},
		{TransactionID: "TXN_1", OldStatus: &pending, NewStatus: model.StatusProcessing, CreatedAt: at},
		{TransactionID: "TXN_2", NewStatus: model.StatusPending, CreatedAt: at},
		{TransactionID: "TXN_1", OldStatus: &processing, NewStatus: model.StatusFailed, ErrorMessage: strPtr("boom"), CreatedAt: at.Add(time.Second)},
	}
	for _, e := range entries {
		saved, err := repo.Append(ctx, e)
		require.NoError(t, err)
		assert.NotZero(t, saved.ID)
	}

	logs, err := repo.ListFor(ctx, "TXN_1")
	require.NoError(t, err)
	require.Len(t, logs, 3)

	assert.Nil(t, logs[0].OldStatus)
	assert.Equal(t, model.StatusPending, logs[0].NewStatus)
	require.NotNil(t, logs[1].OldStatus)
	assert.Equal(t, model.StatusPending, *logs[1].OldStatus)
	assert.Equal(t, model.StatusProcessing, logs[1].NewStatus)
	assert.Equal(t, model.StatusFailed, logs[2].NewStatus)
	require.NotNil(t, logs[2].ErrorMessage)
	assert.Equal(t, "boom", *logs[2].ErrorMessage)

	none, err := repo.ListFor(ctx, "TXN_404")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAuditLogRepository_AppendJoinsTransaction(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAuditLogRepository(db.DB)
	ctx := context.Background()

	err := db.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := repo.Append(ctx, &model.AuditLogEntry{TransactionID: "TXN_1", NewStatus: model.StatusPending, CreatedAt: time.Now().UTC()}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	logs, err := repo.ListFor(ctx, "TXN_1")
	require.NoError(t, err)
	assert.Empty(t, logs)
}
