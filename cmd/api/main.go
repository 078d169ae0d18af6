package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nimasrn/payment-gateway/internal/config"
	"github.com/nimasrn/payment-gateway/internal/events"
	"github.com/nimasrn/payment-gateway/internal/handlers"
	"github.com/nimasrn/payment-gateway/internal/idempotency"
	"github.com/nimasrn/payment-gateway/internal/ledger"
	"github.com/nimasrn/payment-gateway/internal/repository"
	"github.com/nimasrn/payment-gateway/internal/seed"
	"github.com/nimasrn/payment-gateway/internal/services"
	"github.com/nimasrn/payment-gateway/internal/settlement"
	xhttp "github.com/nimasrn/payment-gateway/pkg/http"
	"github.com/nimasrn/payment-gateway/pkg/logger"
	"github.com/nimasrn/payment-gateway/pkg/pg"
	"github.com/nimasrn/payment-gateway/pkg/prom"
	"github.com/nimasrn/payment-gateway/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	if err = logger.Configure(config.Get().AppEnv, config.Get().LogLevel); err != nil {
		logger.Error("failed to configure logger", "error", err)
		return
	}
	defer logger.Sync()
	logger.Info("starting payment api", "version", version, "commit", commit, "date", date)

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}
	defer db.Close()

	// redis backs idempotency keys and settlement events; the API runs without it
	var redisAdap redis.RedisAdapter
	if config.Get().RedisAddr != "" {
		redisAdap, err = redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
			Addrs:      []string{config.Get().RedisAddr},
			ClientName: "default",
			DB:         config.Get().RedisDatabase,
			Username:   config.Get().RedisUsername,
			Password:   config.Get().RedisPassword,
		})
		if err != nil {
			logger.Error("failed connecting to redis", "error", err)
			return
		}
		defer redisAdap.Close()
	}

	var hostname string
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	err = prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace)
	if err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}
	if addr := config.Get().MetricsListenAddr; addr != "" {
		go func() {
			_ = prom.ListenAndServer(addr, config.Get().MetricsURI)
		}()
	}

	accountRepo := repository.NewAccountRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	auditLogRepo := repository.NewAuditLogRepository(db)

	if config.Get().SeedOnStart {
		if err = seed.Run(context.Background(), accountRepo); err != nil {
			logger.Error("failed to seed accounts", "error", err)
			return
		}
	}

	l := ledger.New(accountRepo, db)

	deps := settlement.Deps{
		Transactions: transactionRepo,
		AuditLog:     auditLogRepo,
		Ledger:       l,
		Tx:           db,
		Rand:         settlement.NewRand(config.Get().SettlementRandomSeed),
	}
	var (
		idem        handlers.IdempotencyStore
		redisHealth services.Pinger
	)
	if redisAdap != nil {
		deps.Publisher = events.NewPublisher(redisAdap, config.Get().EventsStream, config.Get().EventsStreamMaxLen)
		idem = idempotency.NewStore(redisAdap, config.Get().IdempotencyConfig())
		redisHealth = redisAdap
	}

	workersCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	simulator, err := settlement.NewSimulator(workersCtx, config.Get().SettlementConfig(), deps)
	if err != nil {
		logger.Error("failed to create settlement simulator", "error", err)
		return
	}

	paymentConfig, err := config.Get().PaymentConfig()
	if err != nil {
		logger.Error("invalid payment config", "error", err)
		return
	}

	// services
	paymentService := services.NewPaymentService(l, accountRepo, transactionRepo, auditLogRepo, db, simulator, paymentConfig)
	healthService := services.NewHealthService(db, redisHealth)

	// v1 handlers
	paymentHandler := handlers.NewPaymentHandler(paymentService, idem)
	accountHandler := handlers.NewAccountHandler(paymentService)
	healthHandler := handlers.NewHealthHandler(healthService)

	// transport (tcp for now)
	opt := xhttp.DefaultServerOption()
	opt.RequestTimeout = config.Get().HttpRequestTimeout
	s := xhttp.NewServer(opt)
	s.Use(xhttp.RequestIDMiddleware)
	s.Use(xhttp.TimeoutMiddleware(s.RequestTimeout()))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)

	s.Router.GET("/health", healthHandler.GetHealth)
	g := s.Router.Group(config.Get().HttpBaseRequestUrl)
	handlers.RegisterPaymentRoutes(g, paymentHandler)
	handlers.RegisterAccountRoutes(g, accountHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
			c <- syscall.SIGTERM
		}
	}()

	<-c
	s.Shutdown()
	if left := simulator.Stop(config.Get().SettlementShutdownTimeout); left > 0 {
		logger.Warn("settlement workers abandoned on shutdown", "count", left)
	}
	logger.Info("payment api stopped", "stats", simulator.Stats())
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
