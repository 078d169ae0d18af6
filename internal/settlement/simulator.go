package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimasrn/payment-gateway/internal/ledger"
	"github.com/nimasrn/payment-gateway/internal/model"
	"github.com/nimasrn/payment-gateway/internal/repository"
	"github.com/nimasrn/payment-gateway/pkg/logger"
	"github.com/nimasrn/payment-gateway/pkg/prom"
	"github.com/nimasrn/payment-gateway/pkg/worker"
	"github.com/shopspring/decimal"
)

const (
	MessageInsufficientAtSettlement = "Insufficient balance at settlement"
	MessageAccountUnavailable       = "Account unavailable at settlement"
	systemErrorPrefix               = "System error: "
)

// ErrInvariantViolation marks a state the worker cannot explain, such as a
// transaction that is no longer in the status it left it in.
var ErrInvariantViolation = errors.New("settlement invariant violation")

var DefaultFailureMessages = []string{
	"Insufficient funds at payment gateway",
	"Creditor account temporarily unavailable",
	"Transaction timeout - please retry",
	"Anti-fraud system flagged this transaction",
	"Network error during processing",
}

type Config struct {
	PendingDelay       time.Duration
	ProcessingMinDelay time.Duration
	ProcessingMaxDelay time.Duration
	SuccessRate        float64
	FailureMessages    []string
}

func DefaultConfig() Config {
	return Config{
		PendingDelay:       2 * time.Second,
		ProcessingMinDelay: 3 * time.Second,
		ProcessingMaxDelay: 6 * time.Second,
		SuccessRate:        0.9,
		FailureMessages:    DefaultFailureMessages,
	}
}

func (c Config) Validate() error {
	if c.PendingDelay < 0 || c.ProcessingMinDelay < 0 {
		return errors.New("settlement delays must not be negative")
	}
	if c.ProcessingMaxDelay < c.ProcessingMinDelay {
		return errors.New("settlement max delay must not be below min delay")
	}
	if c.SuccessRate < 0 || c.SuccessRate > 1 {
		return fmt.Errorf("settlement success rate %v out of [0,1]", c.SuccessRate)
	}
	if len(c.FailureMessages) == 0 {
		return errors.New("settlement needs at least one failure message")
	}
	return nil
}

type TransactionStore interface {
	Get(ctx context.Context, id string) (*model.Transaction, error)
	ApplyStatusChange(ctx context.Context, change model.StatusChange) error
}

type AuditLog interface {
	Append(ctx context.Context, entry *model.AuditLogEntry) (*model.AuditLogEntry, error)
}

type Ledger interface {
	Transfer(ctx context.Context, fromID, toID string, amount decimal.Decimal, within func(ctx context.Context) error) error
}

type TxManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Publisher receives every transaction that reached a terminal status.
type Publisher interface {
	PublishSettled(ctx context.Context, txn *model.Transaction) error
}

type Deps struct {
	Transactions TransactionStore
	AuditLog     AuditLog
	Ledger       Ledger
	Tx           TxManager
	Clock        Clock
	Rand         Rand
	Publisher    Publisher
}

// Simulator drives each scheduled transaction from pending to a terminal
// status in its own worker. Workers run on the simulator's context, never on
// the context of the request that created the transaction.
type Simulator struct {
	cfg      Config
	deps     Deps
	registry *worker.Registry
	stats    *Stats
	log      *logger.ZapLogger
}

func NewSimulator(ctx context.Context, cfg Config, deps Deps) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Transactions == nil || deps.AuditLog == nil || deps.Ledger == nil || deps.Tx == nil {
		return nil, errors.New("settlement simulator is missing a store")
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock()
	}
	if deps.Rand == nil {
		deps.Rand = NewRand(0)
	}
	return &Simulator{
		cfg:      cfg,
		deps:     deps,
		registry: worker.NewRegistry(ctx),
		stats:    newStats(),
		log:      logger.Named("settlement"),
	}, nil
}

// Schedule starts the settlement worker for txnID. At most one worker per id
// is alive; a second call while one runs returns worker.ErrAlreadyRunning.
func (s *Simulator) Schedule(txnID string) (*worker.Handle, error) {
	scheduledAt := s.deps.Clock.Now()
	h, err := s.registry.Go(txnID, func(ctx context.Context) {
		s.run(ctx, txnID, scheduledAt)
	})
	if err != nil {
		s.stats.rejected.Add(1)
		prom.AddSettlementScheduleRejected()
		s.log.Error("settlement not scheduled", "transaction_id", txnID, "error", err)
		return nil, err
	}
	s.stats.scheduled.Add(1)
	return h, nil
}

// Stop refuses new schedules and waits up to timeout for running workers. It
// returns how many were still running when it gave up.
func (s *Simulator) Stop(timeout time.Duration) int {
	left := s.registry.Shutdown(timeout)
	s.log.Info("settlement simulator stopped", "abandoned", left)
	return left
}

func (s *Simulator) Running(txnID string) bool {
	return s.registry.Running(txnID)
}

func (s *Simulator) Stats() StatsSnapshot {
	return s.stats.snapshot(s.registry.Len())
}

func (s *Simulator) run(ctx context.Context, txnID string, scheduledAt time.Time) {
	prom.SettlementPhaseEnter(string(model.StatusPending))
	if !s.sleep(ctx, s.cfg.PendingDelay) {
		prom.SettlementPhaseLeave(string(model.StatusPending))
		s.abandon(txnID, model.StatusPending)
		return
	}

	err := s.transition(ctx, model.StatusChange{
		TransactionID: txnID,
		From:          model.StatusPending,
		To:            model.StatusProcessing,
		At:            s.deps.Clock.Now(),
	})
	prom.SettlementPhaseLeave(string(model.StatusPending))
	if err != nil {
		s.fail(txnID, model.StatusPending, err)
		return
	}
	s.log.Info("transaction processing", "transaction_id", txnID)

	prom.SettlementPhaseEnter(string(model.StatusProcessing))
	defer prom.SettlementPhaseLeave(string(model.StatusProcessing))

	if !s.sleep(ctx, s.processingDelay()) {
		s.abandon(txnID, model.StatusProcessing)
		return
	}

	txn, err := s.deps.Transactions.Get(ctx, txnID)
	if err != nil {
		s.fail(txnID, model.StatusProcessing, err)
		return
	}
	if txn.Status != model.StatusProcessing {
		s.fail(txnID, model.StatusProcessing, fmt.Errorf("%w: %s found %s", repository.ErrStatusConflict, txnID, txn.Status))
		return
	}

	status, err := s.settle(ctx, txn)
	if err != nil {
		s.fail(txnID, model.StatusProcessing, err)
		return
	}

	s.stats.recordTerminal(status == model.StatusCompleted, s.deps.Clock.Now().Sub(scheduledAt))
	prom.AddSettlementOutcome(string(status), s.deps.Clock.Now().Sub(scheduledAt).Seconds())
	s.publish(ctx, txnID)
}

// settle runs the phase-2 outcome and returns the terminal status written.
func (s *Simulator) settle(ctx context.Context, txn *model.Transaction) (model.TransactionStatus, error) {
	if s.deps.Rand.Float64() < s.cfg.SuccessRate {
		err := s.deps.Ledger.Transfer(ctx, txn.DebtorID, txn.CreditorID, txn.Amount, func(ctx context.Context) error {
			return s.apply(ctx, model.StatusChange{
				TransactionID: txn.ID,
				From:          model.StatusProcessing,
				To:            model.StatusCompleted,
				At:            s.deps.Clock.Now(),
			})
		})
		if err == nil {
			s.log.Info("transaction completed", "transaction_id", txn.ID, "amount", txn.Amount.StringFixed(2))
			return model.StatusCompleted, nil
		}

		var reason string
		switch {
		case errors.Is(err, repository.ErrStatusConflict):
			return "", err
		case errors.Is(err, ledger.ErrInsufficientBalance):
			reason = MessageInsufficientAtSettlement
		case errors.Is(err, ledger.ErrAccountNotFound):
			reason = MessageAccountUnavailable
		default:
			reason = systemErrorPrefix + err.Error()
			s.log.Error("settlement transfer failed", "transaction_id", txn.ID, "error", err)
		}
		return model.StatusFailed, s.failWith(ctx, txn.ID, reason)
	}

	msgs := s.cfg.FailureMessages
	return model.StatusFailed, s.failWith(ctx, txn.ID, msgs[s.deps.Rand.IntN(len(msgs))])
}

func (s *Simulator) failWith(ctx context.Context, txnID, reason string) error {
	err := s.transition(ctx, model.StatusChange{
		TransactionID: txnID,
		From:          model.StatusProcessing,
		To:            model.StatusFailed,
		ErrorMessage:  &reason,
		At:            s.deps.Clock.Now(),
	})
	if err != nil {
		return err
	}
	s.log.Info("transaction failed", "transaction_id", txnID, "reason", reason)
	return nil
}

// transition applies change and its audit entry in one database transaction.
func (s *Simulator) transition(ctx context.Context, change model.StatusChange) error {
	return s.deps.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		return s.apply(ctx, change)
	})
}

func (s *Simulator) apply(ctx context.Context, change model.StatusChange) error {
	if err := s.deps.Transactions.ApplyStatusChange(ctx, change); err != nil {
		return err
	}
	from := change.From
	_, err := s.deps.AuditLog.Append(ctx, &model.AuditLogEntry{
		TransactionID: change.TransactionID,
		OldStatus:     &from,
		NewStatus:     change.To,
		ErrorMessage:  change.ErrorMessage,
		CreatedAt:     change.At,
	})
	return err
}

func (s *Simulator) processingDelay() time.Duration {
	span := s.cfg.ProcessingMaxDelay - s.cfg.ProcessingMinDelay
	return s.cfg.ProcessingMinDelay + time.Duration(s.deps.Rand.Float64()*float64(span))
}

func (s *Simulator) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-s.deps.Clock.After(d):
		return true
	}
}

// fail ends a worker that could not write its next state. A conflict on the
// conditional update means the row moved without this worker; nothing is
// retried and the row is left as found.
func (s *Simulator) fail(txnID string, at model.TransactionStatus, err error) {
	if errors.Is(err, repository.ErrStatusConflict) || errors.Is(err, repository.ErrTransactionNotFound) {
		s.stats.invariantViolations.Add(1)
		prom.AddSettlementInvariantViolation()
		s.log.Error("settlement invariant violated", "transaction_id", txnID, "status", at, "error", fmt.Errorf("%w: %w", ErrInvariantViolation, err))
		return
	}
	s.stats.abandoned.Add(1)
	s.log.Error("settlement aborted", "transaction_id", txnID, "status", at, "error", err)
}

func (s *Simulator) abandon(txnID string, at model.TransactionStatus) {
	s.stats.abandoned.Add(1)
	s.log.Warn("settlement abandoned on shutdown", "transaction_id", txnID, "status", at)
}

func (s *Simulator) publish(ctx context.Context, txnID string) {
	if s.deps.Publisher == nil {
		return
	}
	txn, err := s.deps.Transactions.Get(ctx, txnID)
	if err != nil {
		s.log.Warn("settled transaction not readable for publishing", "transaction_id", txnID, "error", err)
		return
	}
	if err := s.deps.Publisher.PublishSettled(ctx, txn); err != nil {
		s.log.Warn("settlement event not published", "transaction_id", txnID, "error", err)
	}
}
