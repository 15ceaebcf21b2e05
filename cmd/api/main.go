package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/alifmarket/marketplace-backend/api/routes"
	"github.com/alifmarket/marketplace-backend/internal/ads"
	"github.com/alifmarket/marketplace-backend/internal/commission"
	"github.com/alifmarket/marketplace-backend/internal/deliveries"
	"github.com/alifmarket/marketplace-backend/internal/notifications"
	"github.com/alifmarket/marketplace-backend/internal/offers"
	"github.com/alifmarket/marketplace-backend/internal/orders"
	"github.com/alifmarket/marketplace-backend/internal/payments"
	"github.com/alifmarket/marketplace-backend/internal/users"
	stripewebhook "github.com/alifmarket/marketplace-backend/internal/webhooks/stripe"
	"github.com/alifmarket/marketplace-backend/pkg/config"
	"github.com/alifmarket/marketplace-backend/pkg/db"
	"github.com/alifmarket/marketplace-backend/pkg/logger"
	"github.com/alifmarket/marketplace-backend/pkg/migrate"
	"github.com/alifmarket/marketplace-backend/pkg/outbox"
	"github.com/alifmarket/marketplace-backend/pkg/redis"
	pkgstripe "github.com/alifmarket/marketplace-backend/pkg/stripe"
)

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

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe client", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	usersRepo := users.NewRepository(gormDB)
	adsRepo := ads.NewRepository(gormDB)
	offersRepo := offers.NewRepository(gormDB)
	ordersRepo := orders.NewRepository(gormDB)
	paymentsRepo := payments.NewRepository(gormDB)
	deliveriesRepo := deliveries.NewRepository(gormDB)
	notificationsRepo := notifications.NewRepository(gormDB)
	commissionRepo := commission.NewRepository(gormDB)

	outboxSvc := outbox.NewService(outbox.NewRepository(gormDB), logg)

	notifier, err := notifications.NewNotifier(notificationsRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifier", err)
		os.Exit(1)
	}
	notificationsSvc, err := notifications.NewService(notificationsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	// Orders charge the flat rate today; commission.NewEngine is the
	// drop-in once the rate tables are meant to take effect.
	flatPolicy, err := commission.NewFlatPolicy(cfg.Fees.FlatRatePercent)
	if err != nil {
		logg.Error(context.Background(), "invalid flat commission rate", err)
		os.Exit(1)
	}
	commissionSvc, err := commission.NewService(commissionRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create commission service", err)
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

	paymentsSvc, err := payments.NewService(paymentsRepo, ordersRepo, usersRepo, payments.NewStripeClient(stripeClient), cfg.Stripe, dbClient, outboxSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	deliveriesSvc, err := deliveries.NewService(deliveriesRepo, ordersRepo, paymentsRepo, dbClient, outboxSvc, notifier, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create deliveries service", err)
		os.Exit(1)
	}

	webhookSvc, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		PaymentsRepo:      paymentsRepo,
		OrdersRepo:        ordersRepo,
		UsersRepo:         usersRepo,
		Deliveries:        deliveriesRepo,
		TransactionRunner: dbClient,
		Outbox:            outboxSvc,
		Notifier:          notifier,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook service", err)
		os.Exit(1)
	}
	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Webhooks.IdempotencyTTL, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			StripeClient:  stripeClient,
			Offers:        offersSvc,
			Orders:        ordersSvc,
			Payments:      paymentsSvc,
			Deliveries:    deliveriesSvc,
			Notifications: notificationsSvc,
			Commission:    commissionSvc,
			WebhookSvc:    webhookSvc,
			WebhookGuard:  webhookGuard,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
