package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/schoolpay-backend/api/controllers"
	dashboardcontrollers "github.com/angelmondragon/schoolpay-backend/api/controllers/dashboard"
	paymentcontrollers "github.com/angelmondragon/schoolpay-backend/api/controllers/payments"
	transactioncontrollers "github.com/angelmondragon/schoolpay-backend/api/controllers/transactions"
	webhookcontrollers "github.com/angelmondragon/schoolpay-backend/api/controllers/webhooks"
	"github.com/angelmondragon/schoolpay-backend/api/middleware"
	"github.com/angelmondragon/schoolpay-backend/pkg/config"
	"github.com/angelmondragon/schoolpay-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/schoolpay-backend/pkg/redis"
)

// Deps carries everything the router wires into handlers. Redis-backed
// stores may be nil; the middleware then passes requests straight through.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	DB    controllers.Pinger
	Redis controllers.Pinger

	Idempotency pkgredis.IdempotencyStore
	RateLimiter pkgredis.RateLimiter
	Metrics     prometheus.Gatherer

	Payments     paymentcontrollers.Service
	Transactions transactioncontrollers.Service
	Dashboard    dashboardcontrollers.Service
	WebhookLogs  dashboardcontrollers.WebhookLogReader
	Reconciler   webhookcontrollers.EdvironReconciler
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logg := d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, map[string]controllers.Pinger{
			"postgres": d.DB,
			"redis":    d.Redis,
		}, logg))
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Metrics, promhttp.HandlerOpts{}))
	}

	// Deliveries are never rejected: every one is logged and acked with 200.
	webhookPolicy := middleware.NewRateLimitPolicy("webhook", cfg.Webhook.RateLimitWindow, cfg.Webhook.RateLimit).ObserveOnly()
	r.With(middleware.RateLimit(webhookPolicy, d.RateLimiter, logg)).
		Post("/api/webhook", webhookcontrollers.EdvironWebhook(d.Reconciler, cfg.Webhook.MaxBodyBytes, logg))

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(d.Idempotency, cfg.FeatureFlags.IdempotencyTTL, logg))

		r.Route("/payment", func(r chi.Router) {
			r.Post("/create-payment", paymentcontrollers.CreatePayment(d.Payments, cfg.Webhook.MaxBodyBytes, logg))
			r.Get("/check-payment-status/{collectRequestId}", paymentcontrollers.CheckPaymentStatus(d.Payments, logg))
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", transactioncontrollers.List(d.Transactions, logg))
			r.Get("/school/{schoolId}", transactioncontrollers.ListBySchool(d.Transactions, logg))
			r.Get("/status/{customOrderId}", transactioncontrollers.Status(d.Transactions, logg))
		})

		r.Route("/dashboard", func(r chi.Router) {
			r.Get("/stats", dashboardcontrollers.Stats(d.Dashboard, logg))
			r.Get("/recent-transactions", dashboardcontrollers.RecentTransactions(d.Dashboard, logg))
			r.Get("/gateway-performance", dashboardcontrollers.GatewayPerformance(d.Dashboard, logg))
			r.Get("/top-schools", dashboardcontrollers.TopSchools(d.Dashboard, logg))
			r.Get("/webhook-logs", dashboardcontrollers.WebhookLogs(d.WebhookLogs, logg))
		})
	})

	return r
}
