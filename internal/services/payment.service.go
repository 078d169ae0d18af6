package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nimasrn/payment-gateway/internal/model"
	"github.com/nimasrn/payment-gateway/internal/repository"
	"github.com/nimasrn/payment-gateway/pkg/logger"
	"github.com/nimasrn/payment-gateway/pkg/prom"
	"github.com/nimasrn/payment-gateway/pkg/worker"
	"github.com/shopspring/decimal"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

var accountIDPattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,50}$`)

type Ledger interface {
	Get(ctx context.Context, id string) (*model.Account, error)
	List(ctx context.Context, accountType *model.AccountType) ([]*model.Account, error)
}

type AccountNames interface {
	Names(ctx context.Context, ids ...string) (map[string]string, error)
}

type TransactionRepository interface {
	Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
	Exists(ctx context.Context, id string) (bool, error)
	Get(ctx context.Context, id string) (*model.Transaction, error)
	List(ctx context.Context, f repository.TransactionFilter) ([]*model.Transaction, int64, error)
}

type AuditLogRepository interface {
	Append(ctx context.Context, entry *model.AuditLogEntry) (*model.AuditLogEntry, error)
	ListFor(ctx context.Context, transactionID string) ([]*model.AuditLogEntry, error)
}

type TxManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Scheduler hands a created transaction to the settlement worker.
type Scheduler interface {
	Schedule(txnID string) (*worker.Handle, error)
}

type PaymentConfig struct {
	MaxAmount            decimal.Decimal
	DefaultCurrency      string
	MaxDescriptionLength int
}

func DefaultPaymentConfig() PaymentConfig {
	return PaymentConfig{
		MaxAmount:            decimal.NewFromInt(1_000_000),
		DefaultCurrency:      "USD",
		MaxDescriptionLength: 500,
	}
}

type PaymentService struct {
	ledger       Ledger
	names        AccountNames
	transactions TransactionRepository
	auditLogs    AuditLogRepository
	tx           TxManager
	scheduler    Scheduler
	config       PaymentConfig
	newID        IDGenerator
	now          func() time.Time
}

func NewPaymentService(ledger Ledger, names AccountNames, transactions TransactionRepository, auditLogs AuditLogRepository, tx TxManager, scheduler Scheduler, config PaymentConfig) *PaymentService {
	return &PaymentService{
		ledger:       ledger,
		names:        names,
		transactions: transactions,
		auditLogs:    auditLogs,
		tx:           tx,
		scheduler:    scheduler,
		config:       config,
		newID:        NewTransactionID,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithIDGenerator replaces the transaction id source.
func (s *PaymentService) WithIDGenerator(gen IDGenerator) *PaymentService {
	s.newID = gen
	return s
}

// Create validates the request and records a pending transaction together
// with its first audit entry, then hands it to the settlement worker. The
// ledger is not touched here.
func (s *PaymentService) Create(ctx context.Context, p model.CreatePaymentRequest) (*model.Transaction, error) {
	txn, err := s.create(ctx, p)
	if err != nil {
		prom.AddPaymentRequest("rejected_" + Classify(err).String())
		return nil, err
	}
	prom.AddPaymentRequest("created")
	return txn, nil
}

func (s *PaymentService) create(ctx context.Context, p model.CreatePaymentRequest) (*model.Transaction, error) {
	p.DebtorID = strings.TrimSpace(p.DebtorID)
	p.CreditorID = strings.TrimSpace(p.CreditorID)
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
	if err := s.validateShape(p); err != nil {
		return nil, err
	}

	if err := s.validateAmount(p.Amount); err != nil {
		return nil, err
	}
	if p.Currency != "" && len(p.Currency) != 3 {
		return nil, fmt.Errorf("%w: currency must be a 3-letter code", ErrInvalidRequest)
	}

	debtor, err := s.account(ctx, p.DebtorID, "debtor")
	if err != nil {
		return nil, err
	}
	creditor, err := s.account(ctx, p.CreditorID, "creditor")
	if err != nil {
		return nil, err
	}

	if debtor.ID == creditor.ID {
		return nil, ErrSameAccount
	}

	if debtor.Balance.LessThan(p.Amount) {
		return nil, fmt.Errorf("%w: account %s has %s, needs %s", ErrInsufficientBalance, debtor.ID, debtor.Balance.StringFixed(2), p.Amount.StringFixed(2))
	}

	currency := p.Currency
	if currency == "" {
		currency = s.config.DefaultCurrency
	}
	if currency == "" {
		currency = debtor.Currency
	}
	if currency != debtor.Currency || currency != creditor.Currency {
		return nil, fmt.Errorf("%w: %s (debtor %s, creditor %s)", ErrCurrencyMismatch, currency, debtor.Currency, creditor.Currency)
	}

	id, err := s.uniqueID(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	txn := &model.Transaction{
		ID:          id,
		DebtorID:    debtor.ID,
		CreditorID:  creditor.ID,
		Amount:      p.Amount,
		Currency:    currency,
		Status:      model.StatusPending,
		Description: p.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		created, err := s.transactions.Create(ctx, txn)
		if err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}
		txn = created

		_, err = s.auditLogs.Append(ctx, &model.AuditLogEntry{
			TransactionID: txn.ID,
			NewStatus:     model.StatusPending,
			CreatedAt:     now,
		})
		if err != nil {
			return fmt.Errorf("append audit entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("payment created",
		"transaction_id", txn.ID,
		"debtor", txn.DebtorID,
		"creditor", txn.CreditorID,
		"amount", txn.Amount.StringFixed(2))

	if _, err := s.scheduler.Schedule(txn.ID); err != nil {
		// the row stays pending without a worker
		logger.Error("payment left pending without settlement", "transaction_id", txn.ID, "error", err)
		return nil, fmt.Errorf("schedule settlement for %s: %w", txn.ID, err)
	}

	return txn, nil
}

func (s *PaymentService) validateShape(p model.CreatePaymentRequest) error {
	if !accountIDPattern.MatchString(p.DebtorID) {
		return fmt.Errorf("%w: debtor_account_id must be 1-50 letters, digits or underscores", ErrInvalidRequest)
	}
	if !accountIDPattern.MatchString(p.CreditorID) {
		return fmt.Errorf("%w: creditor_account_id must be 1-50 letters, digits or underscores", ErrInvalidRequest)
	}
	if p.Description != nil && utf8.RuneCountInString(*p.Description) > s.config.MaxDescriptionLength {
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidRequest, s.config.MaxDescriptionLength)
	}
	return nil
}

func (s *PaymentService) validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	if !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("%w: at most 2 decimal places", ErrInvalidAmount)
	}
	if amount.GreaterThan(s.config.MaxAmount) {
		return fmt.Errorf("%w: exceeds maximum of %s", ErrInvalidAmount, s.config.MaxAmount.StringFixed(2))
	}
	return nil
}

func (s *PaymentService) account(ctx context.Context, id, role string) (*model.Account, error) {
	acc, err := s.ledger.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, fmt.Errorf("%w: %s account %s", ErrAccountNotFound, role, id)
		}
		return nil, fmt.Errorf("get %s account: %w", role, err)
	}
	return acc, nil
}

func (s *PaymentService) uniqueID(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id := s.newID(s.now())
		exists, err := s.transactions.Exists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("check transaction id: %w", err)
		}
		if !exists {
			return id, nil
		}
		logger.Warn("transaction id collision", "id", id, "attempt", attempt+1)
	}
	return "", ErrIDGenerationExhausted
}

// Get returns the transaction with its audit trail and account names. The
// trail is cut at the entry that produced the row's status, so a worker
// committing in between cannot make logs run ahead of the status.
func (s *PaymentService) Get(ctx context.Context, id string) (*model.PaymentDetail, error) {
	txn, err := s.transactions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, id)
		}
		return nil, err
	}

	logs, err := s.auditLogs.ListFor(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	for i, l := range logs {
		if l.NewStatus == txn.Status {
			logs = logs[:i+1]
			break
		}
	}

	names, err := s.names.Names(ctx, txn.DebtorID, txn.CreditorID)
	if err != nil {
		return nil, fmt.Errorf("account names: %w", err)
	}

	return &model.PaymentDetail{
		Transaction:  txn,
		DebtorName:   names[txn.DebtorID],
		CreditorName: names[txn.CreditorID],
		Logs:         logs,
	}, nil
}

func (s *PaymentService) List(ctx context.Context, f model.PaymentFilter) (*model.PaymentPage, error) {
	if f.Status != nil && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, *f.Status)
	}
	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	txns, total, err := s.transactions.List(ctx, repository.TransactionFilter{
		Status: f.Status,
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	ids := make([]string, 0, len(txns)*2)
	for _, t := range txns {
		ids = append(ids, t.DebtorID, t.CreditorID)
	}
	names, err := s.names.Names(ctx, ids...)
	if err != nil {
		return nil, fmt.Errorf("account names: %w", err)
	}

	items := make([]*model.PaymentSummary, len(txns))
	for i, t := range txns {
		items[i] = &model.PaymentSummary{
			Transaction:  t,
			DebtorName:   names[t.DebtorID],
			CreditorName: names[t.CreditorID],
		}
	}

	totalPages := 1
	if total > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(limit)))
	}

	return &model.PaymentPage{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}, nil
}

func (s *PaymentService) ListAccounts(ctx context.Context, accountType *model.AccountType) ([]*model.Account, error) {
	if accountType != nil && !accountType.Valid() {
		return nil, fmt.Errorf("%w: unknown account type %q", ErrInvalidRequest, *accountType)
	}
	return s.ledger.List(ctx, accountType)
}
