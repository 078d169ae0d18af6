package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/fasthttp/router"
	"github.com/nimasrn/payment-gateway/internal/idempotency"
	"github.com/nimasrn/payment-gateway/internal/model"
	xhttp "github.com/nimasrn/payment-gateway/pkg/http"
	"github.com/nimasrn/payment-gateway/pkg/logger"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderIdempotencyHit = "X-Idempotency-Hit"
)

type PaymentService interface {
	Create(ctx context.Context, p model.CreatePaymentRequest) (*model.Transaction, error)
	Get(ctx context.Context, id string) (*model.PaymentDetail, error)
	List(ctx context.Context, f model.PaymentFilter) (*model.PaymentPage, error)
}

// IdempotencyStore remembers the first response for an Idempotency-Key.
type IdempotencyStore interface {
	Begin(ctx context.Context, key string, body []byte) (*idempotency.Claim, *idempotency.Response, error)
	Complete(ctx context.Context, c *idempotency.Claim, status int, body []byte) error
	Release(ctx context.Context, c *idempotency.Claim) error
}

type PaymentHandler struct {
	svc  PaymentService
	idem IdempotencyStore
}

func RegisterPaymentRoutes(e *router.Group, h *PaymentHandler) {
	e.POST("/payments", h.CreatePayment)
	e.GET("/payments", h.ListPayments)
	e.GET("/payments/{transaction_id}", h.GetPayment)
}

// NewPaymentHandler builds the handler. idem may be nil, in which case the
// Idempotency-Key header is ignored.
func NewPaymentHandler(svc PaymentService, idem IdempotencyStore) *PaymentHandler {
	return &PaymentHandler{
		svc:  svc,
		idem: idem,
	}
}

type createPaymentRequest struct {
	DebtorID    string  `json:"debtor_account_id"`
	CreditorID  string  `json:"creditor_account_id"`
	Amount      Amount  `json:"transaction_amount"`
	Currency    string  `json:"currency"`
	Description *string `json:"description"`
}

type paymentResponse struct {
	ID           string                  `json:"transaction_id"`
	DebtorID     string                  `json:"debtor_account_id"`
	CreditorID   string                  `json:"creditor_account_id"`
	DebtorName   string                  `json:"debtor_name,omitempty"`
	CreditorName string                  `json:"creditor_name,omitempty"`
	Amount       Amount                  `json:"transaction_amount"`
	Currency     string                  `json:"currency"`
	Status       model.TransactionStatus `json:"transaction_status"`
	Description  *string                 `json:"description,omitempty"`
	ErrorMessage *string                 `json:"error_message,omitempty"`
	CreatedAt    time.Time               `json:"created_at"`
	UpdatedAt    time.Time               `json:"updated_at"`
	CompletedAt  *time.Time              `json:"completed_at,omitempty"`
}

type logResponse struct {
	OldStatus    *model.TransactionStatus `json:"old_status"`
	NewStatus    model.TransactionStatus  `json:"new_status"`
	ErrorMessage *string                  `json:"error_message,omitempty"`
	CreatedAt    time.Time                `json:"created_at"`
}

type paymentDetailResponse struct {
	paymentResponse
	Logs []logResponse `json:"logs"`
}

type pagination struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

type listPaymentsResponse struct {
	Items      []paymentResponse `json:"items"`
	Pagination pagination        `json:"pagination"`
}

func toPaymentResponse(t *model.Transaction, debtorName, creditorName string) paymentResponse {
	return paymentResponse{
		ID:           t.ID,
		DebtorID:     t.DebtorID,
		CreditorID:   t.CreditorID,
		DebtorName:   debtorName,
		CreditorName: creditorName,
		Amount:       Amount(t.Amount),
		Currency:     t.Currency,
		Status:       t.Status,
		Description:  t.Description,
		ErrorMessage: t.ErrorMessage,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
		CompletedAt:  t.CompletedAt,
	}
}

/* --------------------------------- Routes ----------------------------------- */

func (h *PaymentHandler) CreatePayment(ctx *xhttp.RequestCtx) {
	key := string(ctx.Request.Header.Peek(HeaderIdempotencyKey))
	if key == "" || h.idem == nil {
		status, body := h.create(ctx)
		writeRaw(ctx, status, body)
		return
	}

	claim, stored, err := h.idem.Begin(ctx, key, ctx.PostBody())
	switch {
	case errors.Is(err, idempotency.ErrInProgress):
		writeError(ctx, xhttp.StatusConflict, CodeIdempotencyInProgress, err.Error(), "")
		return
	case errors.Is(err, idempotency.ErrKeyReused):
		writeError(ctx, xhttp.StatusUnprocessableEntity, CodeIdempotencyKeyReused, err.Error(), "")
		return
	case err != nil:
		logger.Error("idempotency check failed", "key", key, "error", err)
		writeError(ctx, xhttp.StatusServiceUnavailable, CodeServiceUnavailable, "idempotency store unavailable", "")
		return
	case stored != nil:
		ctx.Response.Header.Set(HeaderIdempotencyHit, "true")
		writeRaw(ctx, stored.Status, stored.Body)
		return
	}

	status, body := h.create(ctx)
	if status >= xhttp.StatusInternalServerError {
		// a server fault may be retried with the same key
		h.release(ctx, key, claim)
	} else if err := h.idem.Complete(ctx, claim, status, body); err != nil {
		// nothing to replay; free the key instead of holding it until the lock expires
		logger.Error("idempotent response not stored", "key", key, "status", status, "error", err)
		h.release(ctx, key, claim)
	}
	writeRaw(ctx, status, body)
}

func (h *PaymentHandler) release(ctx context.Context, key string, claim *idempotency.Claim) {
	if err := h.idem.Release(ctx, claim); err != nil {
		logger.Warn("idempotency key not released", "key", key, "error", err)
	}
}

func (h *PaymentHandler) create(ctx *xhttp.RequestCtx) (int, []byte) {
	var req createPaymentRequest
	if err := readJSON(ctx, &req); err != nil {
		return xhttp.StatusBadRequest, encode(false, "", nil, &errorBody{
			Code:    CodeInvalidRequest,
			Message: "invalid JSON body",
			Details: err.Error(),
		})
	}

	txn, err := h.svc.Create(ctx, model.CreatePaymentRequest{
		DebtorID:    req.DebtorID,
		CreditorID:  req.CreditorID,
		Amount:      req.Amount.Decimal(),
		Currency:    req.Currency,
		Description: req.Description,
	})
	if err != nil {
		return errorResponse(err)
	}
	return xhttp.StatusCreated, encode(true, "Payment created", toPaymentResponse(txn, "", ""), nil)
}

func (h *PaymentHandler) GetPayment(ctx *xhttp.RequestCtx) {
	id, _ := ctx.UserValue("transaction_id").(string)
	if id == "" {
		writeError(ctx, xhttp.StatusBadRequest, CodeInvalidRequest, "transaction_id is required", "")
		return
	}

	detail, err := h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}

	resp := paymentDetailResponse{
		paymentResponse: toPaymentResponse(detail.Transaction, detail.DebtorName, detail.CreditorName),
		Logs:            make([]logResponse, len(detail.Logs)),
	}
	for i, l := range detail.Logs {
		resp.Logs[i] = logResponse{
			OldStatus:    l.OldStatus,
			NewStatus:    l.NewStatus,
			ErrorMessage: l.ErrorMessage,
			CreatedAt:    l.CreatedAt,
		}
	}
	writeJSON(ctx, xhttp.StatusOK, "", resp)
}

func (h *PaymentHandler) ListPayments(ctx *xhttp.RequestCtx) {
	var (
		f   model.PaymentFilter
		err error
	)

	if f.Page, err = queryInt(ctx, "page"); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, CodeInvalidRequest, err.Error(), "")
		return
	}
	if f.Limit, err = queryInt(ctx, "limit"); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, CodeInvalidRequest, err.Error(), "")
		return
	}
	if v := query(ctx, "status"); v != "" {
		s := model.TransactionStatus(v)
		f.Status = &s
	}

	page, err := h.svc.List(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}

	resp := listPaymentsResponse{
		Items: make([]paymentResponse, len(page.Items)),
		Pagination: pagination{
			Total:      page.Total,
			Page:       page.Page,
			Limit:      page.Limit,
			TotalPages: page.TotalPages,
		},
	}
	for i, item := range page.Items {
		resp.Items[i] = toPaymentResponse(item.Transaction, item.DebtorName, item.CreditorName)
	}
	writeJSON(ctx, xhttp.StatusOK, "", resp)
}
