package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alifmarket/marketplace-backend/internal/ads"
	"github.com/alifmarket/marketplace-backend/internal/commission"
	"github.com/alifmarket/marketplace-backend/internal/cron"
	"github.com/alifmarket/marketplace-backend/internal/deliveries"
	"github.com/alifmarket/marketplace-backend/internal/notifications"
	"github.com/alifmarket/marketplace-backend/internal/offers"
	"github.com/alifmarket/marketplace-backend/internal/orders"
	"github.com/alifmarket/marketplace-backend/internal/payments"
	"github.com/alifmarket/marketplace-backend/internal/users"
	"github.com/alifmarket/marketplace-backend/pkg/config"
	"github.com/alifmarket/marketplace-backend/pkg/db"
	"github.com/alifmarket/marketplace-backend/pkg/logger"
	"github.com/alifmarket/marketplace-backend/pkg/metrics"
	"github.com/alifmarket/marketplace-backend/pkg/migrate"
	"github.com/alifmarket/marketplace-backend/pkg/outbox"
	"github.com/alifmarket/marketplace-backend/pkg/redis"
)

const lockKeyFormat = "alif:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gormDB := dbClient.DB()
	usersRepo := users.NewRepository(gormDB)
	adsRepo := ads.NewRepository(gormDB)
	offersRepo := offers.NewRepository(gormDB)
	ordersRepo := orders.NewRepository(gormDB)
	paymentsRepo := payments.NewRepository(gormDB)
	deliveriesRepo := deliveries.NewRepository(gormDB)
	notificationsRepo := notifications.NewRepository(gormDB)

	outboxSvc := outbox.NewService(outbox.NewRepository(gormDB), logg)

	notifier, err := notifications.NewNotifier(notificationsRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifier", err)
		os.Exit(1)
	}

	flatPolicy, err := commission.NewFlatPolicy(cfg.Fees.FlatRatePercent)
	if err != nil {
		logg.Error(context.Background(), "invalid flat commission rate", err)
		os.Exit(1)
	}

	ordersSvc, err := orders.NewService(ordersRepo, usersRepo, flatPolicy, dbClient, outboxSvc, deliveriesRepo, notifier, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}
	offersSvc, err := offers.NewService(offersRepo, adsRepo, ordersSvc, dbClient, outboxSvc, notifier, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create offers service", err)
		os.Exit(1)
	}

	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	reconMetrics := metrics.NewReconciliationMetrics(prometheus.DefaultRegisterer)

	orderExpiry, err := cron.NewOrderExpiryJob(cron.OrderExpiryJobParams{
		Logger:      logg,
		Orders:      ordersSvc,
		Metrics:     reconMetrics,
		UnpaidAfter: cfg.Orders.UnpaidExpiry,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order expiry job", err)
		os.Exit(1)
	}
	offerExpiry, err := cron.NewOfferExpiryJob(cron.OfferExpiryJobParams{
		Logger: logg,
		Offers: offersSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create offer expiry job", err)
		os.Exit(1)
	}
	reconciliation, err := cron.NewReconciliationJob(cron.ReconciliationJobParams{
		Logger:       logg,
		Offers:       offersRepo,
		Payments:     paymentsRepo,
		Metrics:      reconMetrics,
		VerifyWindow: cfg.Orders.TransferVerifyWindow,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciliation job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(orderExpiry, offerExpiry, reconciliation),
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Orders.CronInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"metricsPort": cfg.Orders.MetricsPort,
	})
	logg.Info(ctx, "starting cron worker")

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    ":" + cfg.Orders.MetricsPort,
		Handler: metricsMux,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics server stopped unexpectedly", err)
		}
	}()
	defer metricsServer.Close()

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
