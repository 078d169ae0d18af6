package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/payment-gateway/internal/model"
	"github.com/nimasrn/payment-gateway/pkg/redis"
)

const TypePaymentSettled = "payment.settled"

// Publisher appends settlement outcomes to a Redis stream.
type Publisher struct {
	redis  redis.RedisAdapter
	stream string
	maxLen int64
}

// NewPublisher writes to stream. When maxLen is positive the stream is trimmed
// to roughly that many entries after each append.
func NewPublisher(redisAdapter redis.RedisAdapter, stream string, maxLen int64) *Publisher {
	return &Publisher{
		redis:  redisAdapter,
		stream: stream,
		maxLen: maxLen,
	}
}

func (p *Publisher) PublishSettled(ctx context.Context, txn *model.Transaction) error {
	values := map[string]interface{}{
		"event_id":            uuid.NewString(),
		"type":                TypePaymentSettled,
		"transaction_id":      txn.ID,
		"transaction_status":  string(txn.Status),
		"debtor_account_id":   txn.DebtorID,
		"creditor_account_id": txn.CreditorID,
		"transaction_amount":  txn.Amount.StringFixed(2),
		"currency":            txn.Currency,
	}
	if txn.CompletedAt != nil {
		values["completed_at"] = txn.CompletedAt.UTC().Format(time.RFC3339Nano)
	}
	if txn.ErrorMessage != nil {
		values["error_message"] = *txn.ErrorMessage
	}

	if _, err := p.redis.XAdd(p.stream, values); err != nil {
		return err
	}
	if p.maxLen > 0 {
		return p.redis.XTrimApprox(p.stream, p.maxLen)
	}
	return nil
}
