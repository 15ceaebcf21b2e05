package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alifmarket/marketplace-backend/api/controllers"
	webhookcontrollers "github.com/alifmarket/marketplace-backend/api/controllers/webhooks"
	"github.com/alifmarket/marketplace-backend/api/middleware"
	"github.com/alifmarket/marketplace-backend/internal/commission"
	"github.com/alifmarket/marketplace-backend/internal/deliveries"
	"github.com/alifmarket/marketplace-backend/internal/notifications"
	"github.com/alifmarket/marketplace-backend/internal/offers"
	"github.com/alifmarket/marketplace-backend/internal/orders"
	"github.com/alifmarket/marketplace-backend/internal/payments"
	stripewebhook "github.com/alifmarket/marketplace-backend/internal/webhooks/stripe"
	"github.com/alifmarket/marketplace-backend/pkg/config"
	"github.com/alifmarket/marketplace-backend/pkg/db"
	"github.com/alifmarket/marketplace-backend/pkg/logger"
	"github.com/alifmarket/marketplace-backend/pkg/redis"
	pkgstripe "github.com/alifmarket/marketplace-backend/pkg/stripe"
)

// Deps carries every service the HTTP surface exposes.
type Deps struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            *db.Client
	Redis         *redis.Client
	StripeClient  *pkgstripe.Client
	Offers        offers.Service
	Orders        orders.Service
	Payments      payments.Service
	Deliveries    deliveries.Service
	Notifications notifications.Service
	Commission    commission.Service
	WebhookSvc    *stripewebhook.Service
	WebhookGuard  *stripewebhook.IdempotencyGuard
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.DB, deps.Redis, logg))
	})

	// Stripe posts here unauthenticated; the controller verifies the
	// payload signature itself, and the surface is throttled per IP.
	webhookPolicy := middleware.NewRateLimitPolicy("stripe-webhook", cfg.Webhooks.RateLimitWindow, cfg.Webhooks.RateLimit)
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Use(middleware.RateLimit(webhookPolicy, deps.Redis, logg))
		r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.WebhookSvc, deps.StripeClient, deps.WebhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.Route("/offers", func(r chi.Router) {
			r.Post("/", controllers.CreateOffer(deps.Offers, logg))
			r.Get("/", controllers.ListOffers(deps.Offers, logg))
			r.Get("/{offerId}", controllers.OfferDetail(deps.Offers, logg))
			r.Patch("/{offerId}", controllers.DecideOffer(deps.Offers, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(deps.Orders, logg))
			r.Get("/{orderId}", controllers.OrderDetail(deps.Orders, logg))
			r.Patch("/{orderId}/status", controllers.UpdateOrderStatus(deps.Orders, logg))
			r.Post("/{orderId}/confirm-delivery", controllers.ConfirmDelivery(deps.Deliveries, logg))
		})

		r.Route("/stripe", func(r chi.Router) {
			r.Post("/create-payment-intent", controllers.CreatePaymentIntent(deps.Payments, logg))
			r.Post("/create-connect-account", controllers.CreateConnectAccount(deps.Payments, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin(logg))

			r.Route("/commissions", func(r chi.Router) {
				r.Get("/categories", controllers.AdminListCategoryRates(deps.Commission, logg))
				r.Put("/categories", controllers.AdminSetCategoryRate(deps.Commission, logg))
				r.Put("/custom", controllers.AdminSetCustomRate(deps.Commission, logg))
				r.Get("/custom/{sellerId}", controllers.AdminListCustomRates(deps.Commission, logg))
			})
		})
	})

	return r
}
