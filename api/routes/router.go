package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/payflow-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/payflow-backend/api/controllers/webhooks"
	"github.com/angelmondragon/payflow-backend/api/middleware"
	checkoutsvc "github.com/angelmondragon/payflow-backend/internal/checkout"
	"github.com/angelmondragon/payflow-backend/internal/collections"
	"github.com/angelmondragon/payflow-backend/internal/contacts"
	"github.com/angelmondragon/payflow-backend/internal/disbursements"
	"github.com/angelmondragon/payflow-backend/internal/notifications"
	"github.com/angelmondragon/payflow-backend/internal/orders"
	"github.com/angelmondragon/payflow-backend/internal/sweeper"
	"github.com/angelmondragon/payflow-backend/internal/webhooks"
	"github.com/angelmondragon/payflow-backend/pkg/config"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
)

// Cache is the slice of the Redis client the HTTP layer needs.
type Cache interface {
	middleware.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(ctx context.Context) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	cache Cache,
	metricsHandler http.Handler,
	checkoutService checkoutsvc.Service,
	collectionsService collections.Service,
	ordersService orders.Service,
	disbursementsService disbursements.Service,
	disbursementSweeper sweeper.Sweeper,
	contactDirectory contacts.Directory,
	notificationsService notifications.Service,
	webhookGuard *webhooks.ReplayGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	checkoutPolicy := middleware.NewRateLimitPolicy(
		"checkout",
		cfg.RateLimit.CheckoutWindow,
		cfg.RateLimit.CheckoutUserLimit,
		cfg.RateLimit.CheckoutIPLimit,
	)
	webhookPolicy := middleware.NewRateLimitPolicy(
		"webhook",
		cfg.RateLimit.WebhookWindow,
		0,
		cfg.RateLimit.WebhookIPLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, map[string]controllers.Pinger{
			"database": dbP,
			"redis":    cache,
		}, logg))
	})

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1/webhooks/mpesa", func(r chi.Router) {
		r.Use(middleware.RateLimit(webhookPolicy, cache, logg))
		r.Post("/stk", webhookcontrollers.MpesaSTK(collectionsService, webhookGuard, logg))
		r.Post("/b2c/result", webhookcontrollers.MpesaB2CResult(disbursementsService, webhookGuard, logg))
		r.Post("/b2c/timeout", webhookcontrollers.MpesaB2CTimeout(disbursementsService, webhookGuard, logg))
	})

	buyer := middleware.RequireRole(logg, enums.UserRoleBuyer)
	seller := middleware.RequireRole(logg, enums.UserRoleSeller)
	checkoutLimit := middleware.RateLimit(checkoutPolicy, cache, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(cache, logg))

		r.With(buyer, checkoutLimit).Post("/checkout", controllers.Checkout(checkoutService, logg))

		r.Route("/orders/{orderId}", func(r chi.Router) {
			r.Use(buyer)
			r.Get("/", controllers.GetOrder(ordersService, logg))
			r.With(checkoutLimit).Post("/pay", controllers.PayOrder(collectionsService, logg))
			r.Get("/payment", controllers.PaymentStatus(collectionsService, logg))
		})

		r.Route("/items/{itemId}", func(r chi.Router) {
			r.With(buyer).Post("/confirm", controllers.ConfirmDelivery(ordersService, logg))
			r.With(buyer).Put("/rating", controllers.RateItem(ordersService, logg))
			r.With(middleware.RequireRole(logg, enums.UserRoleBuyer, enums.UserRoleSeller)).
				Post("/cancel", controllers.CancelItem(ordersService, logg))
		})

		r.With(seller).Post("/seller/items/{itemId}/status", controllers.UpdateItemStatus(ordersService, logg))

		r.Put("/me/contact", controllers.UpdateMyContact(contactDirectory, logg))

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsService, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
		r.Use(middleware.Idempotency(cache, logg))
		r.Post("/disbursements/sweep", controllers.AdminSweep(disbursementSweeper, logg))
		r.Post("/disbursements/retry", controllers.AdminRetry(disbursementSweeper, logg))
		r.Post("/items/{itemId}/disburse", controllers.AdminDisburse(disbursementsService, logg))
	})

	return r
}
