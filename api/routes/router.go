package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fensho/marketplace-backend/api/controllers"
	ordercontrollers "github.com/fensho/marketplace-backend/api/controllers/orders"
	webhookcontrollers "github.com/fensho/marketplace-backend/api/controllers/webhooks"
	"github.com/fensho/marketplace-backend/api/middleware"
	"github.com/fensho/marketplace-backend/internal/audit"
	"github.com/fensho/marketplace-backend/internal/catalog"
	"github.com/fensho/marketplace-backend/internal/ledger"
	"github.com/fensho/marketplace-backend/internal/logistics"
	"github.com/fensho/marketplace-backend/internal/orders"
	"github.com/fensho/marketplace-backend/internal/payments"
	"github.com/fensho/marketplace-backend/internal/risk"
	internalwebhooks "github.com/fensho/marketplace-backend/internal/webhooks"
	"github.com/fensho/marketplace-backend/pkg/config"
	"github.com/fensho/marketplace-backend/pkg/db/models"
	"github.com/fensho/marketplace-backend/pkg/enums"
	"github.com/fensho/marketplace-backend/pkg/logger"
	"github.com/fensho/marketplace-backend/pkg/redis"
)

// SellerCatalog is the admin surface of the catalog service.
type SellerCatalog interface {
	UpdateSellerTerms(ctx context.Context, actor audit.Actor, sellerID uuid.UUID, input catalog.SellerTermsInput) (*models.SellerProfile, error)
	IncompleteProducts(ctx context.Context) ([]models.Product, error)
}

// WebhookService handles inbound callbacks and admin simulations.
type WebhookService interface {
	webhookcontrollers.EventService
	SimulateCourierStatus(ctx context.Context, actor audit.Actor, awb, status string) (*internalwebhooks.CourierResult, error)
}

// Deps is everything the HTTP surface dispatches to. Redis is optional;
// without it idempotency keys and rate limits are not enforced.
type Deps struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        controllers.Pinger
	Redis     *redis.Client
	Gatherer  prometheus.Gatherer
	Orders    orders.Service
	Ledger    ledger.Service
	Risk      risk.Service
	Logistics logistics.Service
	Catalog   SellerCatalog
	Payments  payments.Service
	Webhooks  WebhookService
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	var idempotencyStore redis.IdempotencyStore
	readiness := map[string]controllers.Pinger{}
	if deps.DB != nil {
		readiness["postgres"] = deps.DB
	}
	if deps.Redis != nil {
		idempotencyStore = deps.Redis
		readiness["redis"] = deps.Redis
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Get("/health/live", controllers.HealthLive(cfg))
	r.Get("/health/ready", controllers.HealthReady(cfg, readiness, logg))
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/webhooks", func(r chi.Router) {
			r.Use(middleware.RateLimit(
				middleware.NewRateLimitPolicy("webhooks", cfg.Eventing.WebhookRateWindow, cfg.Eventing.WebhookRateLimit),
				rateLimiterOrNil(deps.Redis),
				logg,
			))
			r.Post("/courier/{courier}", webhookcontrollers.Courier(deps.Webhooks, logg))
			r.Post("/fendex", webhookcontrollers.Fendex(deps.Webhooks, logg))
			r.Post("/razorpay", webhookcontrollers.Razorpay(deps.Webhooks, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.Route("/buyer", func(r chi.Router) {
				r.Use(middleware.RequireRole(enums.ActorRoleBuyer, logg))
				r.Use(middleware.Idempotency(idempotencyStore, logg))
				r.Post("/orders", ordercontrollers.Checkout(deps.Orders, logg))
				r.Post("/payments/verify", controllers.BuyerVerifyPayment(deps.Payments, logg))
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(enums.ActorRoleAdmin, logg))
				r.Use(middleware.Idempotency(idempotencyStore, logg))

				r.Get("/orders", ordercontrollers.List(deps.Orders, logg))
				r.Route("/orders/{orderId}", func(r chi.Router) {
					r.Get("/", ordercontrollers.Get(deps.Orders, logg))
					r.Get("/audit", ordercontrollers.Trail(deps.Orders, logg))
					r.Post("/status", ordercontrollers.AdvanceStatus(deps.Orders, logg))
					r.Post("/cod-received", ordercontrollers.ReconcileCOD(deps.Ledger, logg))
					r.Post("/refund", ordercontrollers.Refund(deps.Ledger, logg))
				})

				r.Get("/finance/wallets", controllers.AdminFinanceWallets(deps.Ledger, logg))
				r.Route("/sellers/{sellerId}", func(r chi.Router) {
					r.Post("/payout", controllers.AdminSellerPayout(deps.Ledger, logg))
					r.Get("/wallet", controllers.AdminSellerWallet(deps.Ledger, logg))
					r.Get("/ledger", controllers.AdminSellerLedger(deps.Ledger, logg))
					r.Put("/terms", controllers.AdminSellerTerms(deps.Catalog, logg))
				})
				r.Get("/products/audit", controllers.AdminProductsAudit(deps.Catalog, logg))

				r.Get("/buyers", controllers.AdminBuyers(deps.Risk, logg))
				r.Route("/buyers/{buyerId}", func(r chi.Router) {
					r.Get("/", controllers.AdminBuyer(deps.Risk, logg))
					r.Post("/override-cod", controllers.AdminOverrideCOD(deps.Risk, logg))
					r.Post("/reset-risk", controllers.AdminResetRisk(deps.Risk, logg))
					r.Get("/risk-events", controllers.AdminRiskEvents(deps.Risk, logg))
				})

				r.Get("/courier-configs", controllers.AdminCourierConfigs(deps.Logistics, logg))
				r.Post("/courier-configs", controllers.AdminUpsertCourierConfig(deps.Logistics, logg))
				r.Delete("/courier-configs/{name}", controllers.AdminDeleteCourierConfig(deps.Logistics, logg))
				r.Get("/shipments", controllers.AdminShipments(deps.Logistics, logg))
				r.Post("/shipments/{awb}/status", controllers.AdminSimulateShipmentStatus(deps.Webhooks, logg))
			})
		})
	})

	return r
}

func rateLimiterOrNil(client *redis.Client) middleware.RateLimiter {
	if client == nil {
		return nil
	}
	return client
}
