package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nimasrn/payment-gateway/pkg/logger"
	"github.com/nimasrn/payment-gateway/pkg/redis"
)

var (
	ErrInProgress = errors.New("request with this idempotency key is in progress")
	// ErrKeyReused is returned when a key comes back with a different body.
	ErrKeyReused = errors.New("idempotency key reused with a different request")
)

type Config struct {
	LockTTL           time.Duration
	ResponseTTL       time.Duration
	LockKeyPrefix     string
	ResponseKeyPrefix string
}

func DefaultConfig() Config {
	return Config{
		LockTTL:           30 * time.Second,
		ResponseTTL:       24 * time.Hour,
		LockKeyPrefix:     "idem:lock:",
		ResponseKeyPrefix: "idem:resp:",
	}
}

// Response is what gets replayed for a repeated key.
type Response struct {
	Status      int    `json:"status"`
	Body        []byte `json:"body"`
	Fingerprint string `json:"fingerprint"`
}

// Claim is held by the request that owns a key until it completes or
// releases it.
type Claim struct {
	Key         string
	Fingerprint string
	released    bool
}

type Store struct {
	redis  redis.RedisAdapter
	config Config
}

func NewStore(redisAdapter redis.RedisAdapter, config Config) *Store {
	return &Store{
		redis:  redisAdapter,
		config: config,
	}
}

func Fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Begin either returns the stored response for key or claims the key for the
// caller. A claimed key that is not yet completed yields ErrInProgress.
func (s *Store) Begin(ctx context.Context, key string, body []byte) (*Claim, *Response, error) {
	fp := Fingerprint(body)

	stored, err := s.stored(key)
	if err != nil {
		return nil, nil, err
	}
	if stored != nil {
		if stored.Fingerprint != fp {
			return nil, nil, ErrKeyReused
		}
		logger.Info("idempotent replay", "key", key, "status", stored.Status)
		return nil, stored, nil
	}

	lockValue := []byte(fmt.Sprintf("%d", time.Now().UnixNano()))
	acquired, err := s.redis.SetNX(s.config.LockKeyPrefix+key, lockValue, s.config.LockTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("acquire idempotency lock: %w", err)
	}
	if !acquired {
		// the owner may have finished between our read and SetNX
		if stored, err := s.stored(key); err == nil && stored != nil && stored.Fingerprint == fp {
			return nil, stored, nil
		}
		return nil, nil, ErrInProgress
	}

	return &Claim{Key: key, Fingerprint: fp}, nil, nil
}

// Complete stores the response for replay and drops the lock.
func (s *Store) Complete(ctx context.Context, c *Claim, status int, body []byte) error {
	if c == nil || c.released {
		return nil
	}
	b, err := json.Marshal(Response{Status: status, Body: body, Fingerprint: c.Fingerprint})
	if err != nil {
		return err
	}
	if err := s.redis.Set(s.config.ResponseKeyPrefix+c.Key, b, s.config.ResponseTTL); err != nil {
		logger.Error("failed to store idempotent response", "key", c.Key, "error", err)
		return err
	}
	return s.Release(ctx, c)
}

// Release drops the lock without storing anything, so the key can be retried.
func (s *Store) Release(ctx context.Context, c *Claim) error {
	if c == nil || c.released {
		return nil
	}
	c.released = true
	if err := s.redis.Del(s.config.LockKeyPrefix + c.Key); err != nil {
		logger.Warn("failed to release idempotency lock", "key", c.Key, "error", err)
		return err
	}
	return nil
}

func (s *Store) stored(key string) (*Response, error) {
	b, err := s.redis.Get(s.config.ResponseKeyPrefix + key)
	if err != nil {
		if errors.Is(err, redis.NilError) {
			return nil, nil
		}
		return nil, fmt.Errorf("read idempotent response: %w", err)
	}
	var r Response
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("decode idempotent response: %w", err)
	}
	return &r, nil
}
