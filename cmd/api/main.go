package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/schoolpay-backend/api/responses"
	"github.com/angelmondragon/schoolpay-backend/api/routes"
	"github.com/angelmondragon/schoolpay-backend/internal/orders"
	"github.com/angelmondragon/schoolpay-backend/internal/orderstatus"
	"github.com/angelmondragon/schoolpay-backend/internal/payments"
	"github.com/angelmondragon/schoolpay-backend/internal/transactions"
	"github.com/angelmondragon/schoolpay-backend/internal/webhooklogs"
	edvironwebhook "github.com/angelmondragon/schoolpay-backend/internal/webhooks/edviron"
	"github.com/angelmondragon/schoolpay-backend/pkg/config"
	"github.com/angelmondragon/schoolpay-backend/pkg/db"
	"github.com/angelmondragon/schoolpay-backend/pkg/edviron"
	"github.com/angelmondragon/schoolpay-backend/pkg/logger"
	"github.com/angelmondragon/schoolpay-backend/pkg/metrics"
	"github.com/angelmondragon/schoolpay-backend/pkg/migrate"
	pkgredis "github.com/angelmondragon/schoolpay-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Env:         cfg.App.Env,
		Format:      cfg.App.LogFormat,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	responses.ExposeInternals(!cfg.App.IsProd())

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	deps := routes.Deps{
		Config: cfg,
		Logger: logg,
		DB:     dbClient,
	}

	if cfg.Redis.Enabled() {
		redisClient, err := pkgredis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		deps.Redis = redisClient
		deps.Idempotency = redisClient
		deps.RateLimiter = redisClient
	} else {
		logg.Warn(context.Background(), "redis not configured; idempotency replay and webhook rate limiting disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	paymentMetrics := metrics.NewPaymentMetrics(registry)
	deps.Metrics = registry

	gateway, err := edviron.NewClient(cfg.Gateway, logg, edviron.WithMetrics(paymentMetrics))
	if err != nil {
		logg.Error(context.Background(), "failed to create gateway client", err)
		os.Exit(1)
	}
	if missing := cfg.Gateway.Missing(); len(missing) > 0 {
		logg.Warn(logg.WithField(context.Background(), "missing", missing), "gateway credentials missing; payment calls will fail")
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	statusRepo := orderstatus.NewRepository(dbClient.DB())
	logsRepo := webhooklogs.NewRepository(dbClient.DB())

	paymentService, err := payments.NewService(payments.ServiceParams{
		Gateway:     gateway,
		Orders:      ordersRepo,
		Statuses:    statusRepo,
		Logger:      logg,
		Metrics:     paymentMetrics,
		GatewayName: cfg.Gateway.DefaultGatewayName,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	transactionService, err := transactions.NewService(transactions.ServiceParams{
		Orders:          ordersRepo,
		Statuses:        statusRepo,
		Reads:           transactions.NewRepository(dbClient.DB()),
		DefaultSchoolID: cfg.Gateway.DefaultSchoolID,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create transaction service", err)
		os.Exit(1)
	}

	reconciler, err := edvironwebhook.NewReconciler(edvironwebhook.ReconcilerParams{
		Orders:   ordersRepo,
		Statuses: statusRepo,
		Logs:     logsRepo,
		Logger:   logg,
		Metrics:  paymentMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook reconciler", err)
		os.Exit(1)
	}

	deps.Payments = paymentService
	deps.Transactions = transactionService
	deps.Dashboard = transactionService
	deps.WebhookLogs = logsRepo
	deps.Reconciler = reconciler

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithField(ctx, "addr", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "api server shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}
