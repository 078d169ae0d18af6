package config

import (
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/nimasrn/payment-gateway/internal/idempotency"
	"github.com/nimasrn/payment-gateway/internal/services"
	"github.com/nimasrn/payment-gateway/internal/settlement"
	"github.com/nimasrn/payment-gateway/pkg/logger"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var config *Config

// Configuration This struct holds config envs and values
// which are used in the payment engine. Only this struct must be used
// to hold any configuration values, no direct access to
// env, ini or any other config source should be made
type Config struct {
	AppEnv      string `env:"APP_ENV,default=dev"`
	AppName     string `env:"APP_NAME,default=payment_gateway"`
	AppHostname string `env:"HOSTNAME,default=localhost"`

	HttpListenAddr     string        `env:"HTTP_LISTEN_ADDR,default=:8080"`
	HttpBaseRequestUrl string        `env:"HTTP_BASE_REQUEST_URI,default=/api/v1"`
	HttpRequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT,default=5s"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	RedisAddr               string `env:"REDIS_ADDR"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX"`

	PromNamespace     string `env:"PROM_NAMESPACE,default=payment_gateway"`
	MetricsListenAddr string `env:"METRICS_LISTEN_ADDR"`
	MetricsURI        string `env:"METRICS_URI,default=/metrics"`

	LogLevel string `env:"LOG_LEVEL"`

	PaymentMaxAmount       string `env:"PAYMENT_MAX_AMOUNT,default=1000000.00"`
	PaymentDefaultCurrency string `env:"PAYMENT_DEFAULT_CURRENCY,default=USD"`

	SettlementPendingDelay       time.Duration `env:"SETTLEMENT_PENDING_DELAY,default=2s"`
	SettlementProcessingMinDelay time.Duration `env:"SETTLEMENT_PROCESSING_MIN_DELAY,default=3s"`
	SettlementProcessingMaxDelay time.Duration `env:"SETTLEMENT_PROCESSING_MAX_DELAY,default=6s"`
	SettlementSuccessRate        float64       `env:"SETTLEMENT_SUCCESS_RATE,default=0.9"`
	SettlementRandomSeed         uint64        `env:"SETTLEMENT_RANDOM_SEED"`
	SettlementShutdownTimeout    time.Duration `env:"SETTLEMENT_SHUTDOWN_TIMEOUT,default=10s"`

	IdempotencyLockTTL time.Duration `env:"IDEMPOTENCY_LOCK_TTL,default=30s"`
	IdempotencyTTL     time.Duration `env:"IDEMPOTENCY_TTL,default=24h"`

	EventsStream       string `env:"EVENTS_STREAM,default=payments:settled"`
	EventsStreamMaxLen int64  `env:"EVENTS_STREAM_MAX_LEN,default=100000"`

	SeedOnStart bool `env:"SEED_ON_START"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		logger.Info("trying to publish env from file", "path", path)
		err = godotenv.Load(path)
		if err != nil {
			return errors.Wrapf(err, "failed to load configuration file %s", path)
		}
	}

	_, err = env.UnmarshalFromEnviron(c)
	if err != nil {
		return errors.Wrap(err, "failed to map env variables to Configuration object")
	}

	if !strings.HasPrefix(c.HttpBaseRequestUrl, "/") {
		return errors.Errorf("HTTP_BASE_REQUEST_URI must begin with '/', got %q", c.HttpBaseRequestUrl)
	}
	if _, err = c.PaymentConfig(); err != nil {
		return err
	}
	if err = c.SettlementConfig().Validate(); err != nil {
		return errors.Wrap(err, "invalid settlement configuration")
	}

	config = c
	return nil
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}

func (c *Config) PaymentConfig() (services.PaymentConfig, error) {
	pc := services.DefaultPaymentConfig()
	if c.PaymentMaxAmount != "" {
		max, err := decimal.NewFromString(c.PaymentMaxAmount)
		if err != nil {
			return pc, errors.Wrapf(err, "PAYMENT_MAX_AMOUNT %q is not a decimal", c.PaymentMaxAmount)
		}
		if !max.IsPositive() {
			return pc, errors.Errorf("PAYMENT_MAX_AMOUNT must be positive, got %s", c.PaymentMaxAmount)
		}
		pc.MaxAmount = max
	}
	if c.PaymentDefaultCurrency != "" {
		pc.DefaultCurrency = c.PaymentDefaultCurrency
	}
	return pc, nil
}

func (c *Config) SettlementConfig() settlement.Config {
	sc := settlement.DefaultConfig()
	sc.PendingDelay = c.SettlementPendingDelay
	sc.ProcessingMinDelay = c.SettlementProcessingMinDelay
	sc.ProcessingMaxDelay = c.SettlementProcessingMaxDelay
	sc.SuccessRate = c.SettlementSuccessRate
	return sc
}

func (c *Config) IdempotencyConfig() idempotency.Config {
	ic := idempotency.DefaultConfig()
	if c.IdempotencyLockTTL > 0 {
		ic.LockTTL = c.IdempotencyLockTTL
	}
	if c.IdempotencyTTL > 0 {
		ic.ResponseTTL = c.IdempotencyTTL
	}
	return ic
}
