package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nimasrn/payment-gateway/internal/idempotency"
	"github.com/nimasrn/payment-gateway/internal/model"
	"github.com/nimasrn/payment-gateway/internal/services"
	xhttp "github.com/nimasrn/payment-gateway/pkg/http"
	"github.com/nimasrn/payment-gateway/test/helpers"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) Create(ctx context.Context, p model.CreatePaymentRequest) (*model.Transaction, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *MockPaymentService) Get(ctx context.Context, id string) (*model.PaymentDetail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentDetail), args.Error(1)
}

func (m *MockPaymentService) List(ctx context.Context, f model.PaymentFilter) (*model.PaymentPage, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentPage), args.Error(1)
}

type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) ListAccounts(ctx context.Context, t *model.AccountType) ([]*model.Account, error) {
	args := m.Called(ctx, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Account), args.Error(1)
}

type MockHealthService struct {
	mock.Mock
}

func (m *MockHealthService) Get(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) Begin(ctx context.Context, key string, body []byte) (*idempotency.Claim, *idempotency.Response, error) {
	args := m.Called(ctx, key, body)
	claim, _ := args.Get(0).(*idempotency.Claim)
	stored, _ := args.Get(1).(*idempotency.Response)
	return claim, stored, args.Error(2)
}

func (m *MockIdempotencyStore) Complete(ctx context.Context, c *idempotency.Claim, status int, body []byte) error {
	return m.Called(ctx, c, status, body).Error(0)
}

func (m *MockIdempotencyStore) Release(ctx context.Context, c *idempotency.Claim) error {
	return m.Called(ctx, c).Error(0)
}

type response struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *errorBody      `json:"error"`
}

func setupTestContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

func decode(t *testing.T, ctx *xhttp.RequestCtx) response {
	t.Helper()
	var r response
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &r))
	return r
}

func pendingTransaction() *model.Transaction {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return &model.Transaction{
		ID:         "TXN_20250301_ABC123",
		DebtorID:   "ACC001",
		CreditorID: "SUP001",
		Amount:     decimal.RequireFromString("1500.5"),
		Currency:   "USD",
		Status:     model.StatusPending,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
}

const createBody = `{"debtor_account_id":"ACC001","creditor_account_id":"SUP001","transaction_amount":1500.50}`

func TestPaymentHandler_CreatePayment(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		svc := new(MockPaymentService)
		handler := NewPaymentHandler(svc, nil)

		svc.On("Create", mock.Anything, mock.MatchedBy(func(p model.CreatePaymentRequest) bool {
			return p.DebtorID == "ACC001" && p.CreditorID == "SUP001" && p.Amount.Equal(decimal.RequireFromString("1500.50"))
		})).Return(pendingTransaction(), nil)

		ctx := setupTestContext("POST", "/payments", []byte(createBody))
		handler.CreatePayment(ctx)

		assert.Equal(t, 201, ctx.Response.StatusCode())
		r := decode(t, ctx)
		assert.True(t, r.Success)

		var data map[string]any
		require.NoError(t, json.Unmarshal(r.Data, &data))
		assert.Equal(t, "TXN_20250301_ABC123", data["transaction_id"])
		assert.Equal(t, "pending", data["transaction_status"])
		assert.Contains(t, string(r.Data), `"transaction_amount":1500.50`)
		assert.NotContains(t, string(r.Data), "completed_at")

		svc.AssertExpectations(t)
	})

	t.Run("quoted amount accepted", func(t *testing.T) {
		svc := new(MockPaymentService)
		handler := NewPaymentHandler(svc, nil)
		svc.On("Create", mock.Anything, mock.MatchedBy(func(p model.CreatePaymentRequest) bool {
			return p.Amount.Equal(decimal.RequireFromString("10.25"))
		})).Return(pendingTransaction(), nil)

		ctx := setupTestContext("POST", "/payments",
			[]byte(`{"debtor_account_id":"ACC001","creditor_account_id":"SUP001","transaction_amount":"10.25"}`))
		handler.CreatePayment(ctx)
		assert.Equal(t, 201, ctx.Response.StatusCode())
	})

	t.Run("invalid JSON", func(t *testing.T) {
		svc := new(MockPaymentService)
		handler := NewPaymentHandler(svc, nil)

		ctx := setupTestContext("POST", "/payments", []byte("invalid json"))
		handler.CreatePayment(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		r := decode(t, ctx)
		assert.False(t, r.Success)
		assert.Equal(t, CodeInvalidRequest, r.Error.Code)
		svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	errorCases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: must be greater than zero", services.ErrInvalidAmount), 400, CodeInvalidAmount},
		{services.ErrSameAccount, 400, CodeSameAccount},
		{fmt.Errorf("%w: account ACC003 has 100.00, needs 500.00", services.ErrInsufficientBalance), 400, CodeInsufficientBalance},
		{services.ErrCurrencyMismatch, 400, CodeCurrencyMismatch},
		{fmt.Errorf("%w: debtor account NOPE", services.ErrAccountNotFound), 404, CodeAccountNotFound},
		{fmt.Errorf("%w: bad id", services.ErrInvalidRequest), 400, CodeInvalidRequest},
		{errors.New("connection reset"), 500, CodeInternal},
	}
	for _, tc := range errorCases {
		t.Run(tc.code, func(t *testing.T) {
			svc := new(MockPaymentService)
			handler := NewPaymentHandler(svc, nil)
			svc.On("Create", mock.Anything, mock.Anything).Return(nil, tc.err)

			ctx := setupTestContext("POST", "/payments", []byte(createBody))
			handler.CreatePayment(ctx)

			assert.Equal(t, tc.status, ctx.Response.StatusCode())
			r := decode(t, ctx)
			assert.False(t, r.Success)
			require.NotNil(t, r.Error)
			assert.Equal(t, tc.code, r.Error.Code)
			if tc.status == 500 {
				assert.NotContains(t, r.Error.Message, "connection reset")
			}
		})
	}
}

func TestPaymentHandler_CreatePayment_Idempotency(t *testing.T) {
	_, rdb := helpers.SetupTestRedis(t)
	store := idempotency.NewStore(rdb, idempotency.DefaultConfig())

	svc := new(MockPaymentService)
	handler := NewPaymentHandler(svc, store)
	svc.On("Create", mock.Anything, mock.Anything).Return(pendingTransaction(), nil).Once()

	first := setupTestContext("POST", "/payments", []byte(createBody))
	first.Request.Header.Set(HeaderIdempotencyKey, "key-1")
	handler.CreatePayment(first)
	assert.Equal(t, 201, first.Response.StatusCode())
	assert.Empty(t, first.Response.Header.Peek(HeaderIdempotencyHit))

	replay := setupTestContext("POST", "/payments", []byte(createBody))
	replay.Request.Header.Set(HeaderIdempotencyKey, "key-1")
	handler.CreatePayment(replay)
	assert.Equal(t, 201, replay.Response.StatusCode())
	assert.Equal(t, "true", string(replay.Response.Header.Peek(HeaderIdempotencyHit)))
	assert.Equal(t, string(first.Response.Body()), string(replay.Response.Body()))

	reused := setupTestContext("POST", "/payments",
		[]byte(`{"debtor_account_id":"ACC001","creditor_account_id":"SUP001","transaction_amount":1}`))
	reused.Request.Header.Set(HeaderIdempotencyKey, "key-1")
	handler.CreatePayment(reused)
	assert.Equal(t, 422, reused.Response.StatusCode())
	assert.Equal(t, CodeIdempotencyKeyReused, decode(t, reused).Error.Code)

	svc.AssertNumberOfCalls(t, "Create", 1)
}

func TestPaymentHandler_CreatePayment_IdempotencyInProgress(t *testing.T) {
	_, rdb := helpers.SetupTestRedis(t)
	store := idempotency.NewStore(rdb, idempotency.DefaultConfig())

	claim, _, err := store.Begin(context.Background(), "key-2", []byte(createBody))
	require.NoError(t, err)
	require.NotNil(t, claim)

	svc := new(MockPaymentService)
	handler := NewPaymentHandler(svc, store)

	ctx := setupTestContext("POST", "/payments", []byte(createBody))
	ctx.Request.Header.Set(HeaderIdempotencyKey, "key-2")
	handler.CreatePayment(ctx)

	assert.Equal(t, 409, ctx.Response.StatusCode())
	assert.Equal(t, CodeIdempotencyInProgress, decode(t, ctx).Error.Code)
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPaymentHandler_CreatePayment_ServerErrorReleasesKey(t *testing.T) {
	_, rdb := helpers.SetupTestRedis(t)
	store := idempotency.NewStore(rdb, idempotency.DefaultConfig())

	svc := new(MockPaymentService)
	handler := NewPaymentHandler(svc, store)
	svc.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("db down")).Once()
	svc.On("Create", mock.Anything, mock.Anything).Return(pendingTransaction(), nil).Once()

	ctx := setupTestContext("POST", "/payments", []byte(createBody))
	ctx.Request.Header.Set(HeaderIdempotencyKey, "key-3")
	handler.CreatePayment(ctx)
	assert.Equal(t, 500, ctx.Response.StatusCode())

	retry := setupTestContext("POST", "/payments", []byte(createBody))
	retry.Request.Header.Set(HeaderIdempotencyKey, "key-3")
	handler.CreatePayment(retry)
	assert.Equal(t, 201, retry.Response.StatusCode())
	assert.Empty(t, retry.Response.Header.Peek(HeaderIdempotencyHit))
}

func TestPaymentHandler_CreatePayment_StoreFailureReleasesKey(t *testing.T) {
	svc := new(MockPaymentService)
	store := new(MockIdempotencyStore)
	handler := NewPaymentHandler(svc, store)

	claim := &idempotency.Claim{Key: "key-4"}
	store.On("Begin", mock.Anything, "key-4", mock.Anything).Return(claim, nil, nil)
	store.On("Complete", mock.Anything, claim, 201, mock.Anything).Return(errors.New("redis down"))
	store.On("Release", mock.Anything, claim).Return(nil)
	svc.On("Create", mock.Anything, mock.Anything).Return(pendingTransaction(), nil)

	ctx := setupTestContext("POST", "/payments", []byte(createBody))
	ctx.Request.Header.Set(HeaderIdempotencyKey, "key-4")
	handler.CreatePayment(ctx)

	assert.Equal(t, 201, ctx.Response.StatusCode())
	store.AssertCalled(t, "Release", mock.Anything, claim)
}

func TestPaymentHandler_GetPayment(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		svc := new(MockPaymentService)
		handler := NewPaymentHandler(svc, nil)

		txn := pendingTransaction()
		txn.Status = model.StatusProcessing
		pending := model.StatusPending
		svc.On("Get", mock.Anything, txn.ID).Return(&model.PaymentDetail{
			Transaction:  txn,
			DebtorName:   "Main Operating Account",
			CreditorName: "Office Supplies Inc.",
			Logs: []*model.AuditLogEntry{
				{NewStatus: model.StatusPending, CreatedAt: txn.CreatedAt},
				{OldStatus: &pending, NewStatus: model.StatusProcessing, CreatedAt: txn.CreatedAt.Add(2 * time.Second)},
			},
		}, nil)

		ctx := setupTestContext("GET", "/payments/"+txn.ID, nil)
		ctx.SetUserValue("transaction_id", txn.ID)
		handler.GetPayment(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		r := decode(t, ctx)
		var data paymentDetailResponse
		require.NoError(t, json.Unmarshal(r.Data, &data))
		assert.Equal(t, "Main Operating Account", data.DebtorName)
		assert.Equal(t, model.StatusProcessing, data.Status)
		require.Len(t, data.Logs, 2)
		assert.Nil(t, data.Logs[0].OldStatus)
		assert.Equal(t, model.StatusPending, *data.Logs[1].OldStatus)
		assert.Contains(t, string(r.Data), `"old_status":null`)
	})

	t.Run("not found", func(t *testing.T) {
		svc := new(MockPaymentService)
		handler := NewPaymentHandler(svc, nil)
		svc.On("Get", mock.Anything, "TXN_404").Return(nil, fmt.Errorf("%w: TXN_404", services.ErrTransactionNotFound))

		ctx := setupTestContext("GET", "/payments/TXN_404", nil)
		ctx.SetUserValue("transaction_id", "TXN_404")
		handler.GetPayment(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
		assert.Equal(t, CodeNotFound, decode(t, ctx).Error.Code)
	})
}

func TestPaymentHandler_ListPayments(t *testing.T) {
	t.Run("filters and pagination", func(t *testing.T) {
		svc := new(MockPaymentService)
		handler := NewPaymentHandler(svc, nil)

		completed := model.StatusCompleted
		svc.On("List", mock.Anything, model.PaymentFilter{Status: &completed, Page: 2, Limit: 10}).
			Return(&model.PaymentPage{
				Items:      []*model.PaymentSummary{{Transaction: pendingTransaction(), DebtorName: "Main"}},
				Total:      50,
				Page:       2,
				Limit:      10,
				TotalPages: 5,
			}, nil)

		ctx := setupTestContext("GET", "/payments?page=2&limit=10&status=completed", nil)
		handler.ListPayments(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		var data listPaymentsResponse
		require.NoError(t, json.Unmarshal(decode(t, ctx).Data, &data))
		assert.Len(t, data.Items, 1)
		assert.Equal(t, pagination{Total: 50, Page: 2, Limit: 10, TotalPages: 5}, data.Pagination)
		svc.AssertExpectations(t)
	})

	t.Run("bad page", func(t *testing.T) {
		svc := new(MockPaymentService)
		handler := NewPaymentHandler(svc, nil)

		ctx := setupTestContext("GET", "/payments?page=abc", nil)
		handler.ListPayments(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		svc.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
	})

	t.Run("unknown status", func(t *testing.T) {
		svc := new(MockPaymentService)
		handler := NewPaymentHandler(svc, nil)
		svc.On("List", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("%w: unknown status", services.ErrInvalidRequest))

		ctx := setupTestContext("GET", "/payments?status=cancelled", nil)
		handler.ListPayments(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		assert.Equal(t, CodeInvalidRequest, decode(t, ctx).Error.Code)
	})
}

func TestAccountHandler_ListAccounts(t *testing.T) {
	svc := new(MockAccountService)
	handler := NewAccountHandler(svc)

	debtor := model.AccountTypeDebtor
	svc.On("ListAccounts", mock.Anything, &debtor).Return([]*model.Account{
		{ID: "ACC001", Name: "Main Operating Account", Type: debtor, Balance: decimal.RequireFromString("98499.5"), Currency: "USD"},
	}, nil)

	ctx := setupTestContext("GET", "/accounts?type=debtor", nil)
	handler.ListAccounts(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())
	r := decode(t, ctx)
	assert.Contains(t, string(r.Data), `"balance":98499.50`)
	assert.Contains(t, string(r.Data), `"account_type":"debtor"`)
}

func TestHealthHandler_GetHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		svc := new(MockHealthService)
		svc.On("Get", mock.Anything).Return(nil)
		ctx := setupTestContext("GET", "/health", nil)
		NewHealthHandler(svc).GetHealth(ctx)
		assert.Equal(t, 200, ctx.Response.StatusCode())
		assert.Equal(t, "success", string(ctx.Response.Body()))
	})

	t.Run("database down", func(t *testing.T) {
		svc := new(MockHealthService)
		svc.On("Get", mock.Anything).Return(errors.New("database: refused"))
		ctx := setupTestContext("GET", "/health", nil)
		NewHealthHandler(svc).GetHealth(ctx)
		assert.Equal(t, 503, ctx.Response.StatusCode())
	})
}

func TestAmount_JSON(t *testing.T) {
	b, err := json.Marshal(Amount(decimal.RequireFromString("100000")))
	require.NoError(t, err)
	assert.Equal(t, "100000.00", string(b))

	var a Amount
	require.NoError(t, json.Unmarshal([]byte(`"12.5"`), &a))
	assert.True(t, a.Decimal().Equal(decimal.RequireFromString("12.5")))
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &a))
}
