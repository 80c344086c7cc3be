// Package engine assembles the order lifecycle services from config and
// infrastructure clients. The api and cron-worker binaries share it so both
// run against the same dependency graph.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fensho/marketplace-backend/internal/audit"
	"github.com/fensho/marketplace-backend/internal/catalog"
	"github.com/fensho/marketplace-backend/internal/ledger"
	"github.com/fensho/marketplace-backend/internal/logistics"
	"github.com/fensho/marketplace-backend/internal/orders"
	"github.com/fensho/marketplace-backend/internal/payments"
	"github.com/fensho/marketplace-backend/internal/risk"
	"github.com/fensho/marketplace-backend/internal/webhooks"
	"github.com/fensho/marketplace-backend/pkg/config"
	"github.com/fensho/marketplace-backend/pkg/db"
	"github.com/fensho/marketplace-backend/pkg/logger"
	"github.com/fensho/marketplace-backend/pkg/metrics"
	"github.com/fensho/marketplace-backend/pkg/outbox"
	"github.com/fensho/marketplace-backend/pkg/redis"
)

// Params carries the bootstrapped clients. Redis and Registerer are optional.
type Params struct {
	Config     *config.Config
	DB         *db.Client
	Redis      *redis.Client
	Registerer prometheus.Registerer
	Logger     *logger.Logger
}

// Engine holds every wired domain service.
type Engine struct {
	Audit      audit.Service
	Outbox     *outbox.Service
	OutboxRepo *outbox.Repository
	Risk       risk.Service
	Ledger     ledger.Service
	Logistics  logistics.Service
	Catalog    *catalog.Service
	Orders     orders.Service
	Payments   payments.Service
	Webhooks   *webhooks.Service
	Metrics    *metrics.MarketplaceMetrics
	// Gateway is nil when Razorpay credentials are absent.
	Gateway *payments.Gateway
}

// New wires the services in dependency order: audit and outbox first, then
// the engines checkout composes, then the callback surface on top.
func New(params Params) (*Engine, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	cfg := params.Config
	logg := params.Logger
	conn := params.DB.DB()

	e := &Engine{Metrics: metrics.NewMarketplaceMetrics(params.Registerer)}

	var locker redis.Locker
	if params.Redis != nil {
		locker = params.Redis
	}

	var (
		refundGateway ledger.RefundGateway
		orderGateway  orders.GatewayOrders
	)
	if cfg.Razorpay.Enabled() {
		gw, err := payments.NewGateway(cfg.Razorpay)
		if err != nil {
			return nil, fmt.Errorf("razorpay gateway: %w", err)
		}
		e.Gateway = gw
		refundGateway = gw
		orderGateway = gw
	} else {
		logg.Warn(logg.WithField(context.Background(), "component", "razorpay"), "razorpay credentials missing; online payments disabled")
	}

	var err error
	if e.Audit, err = audit.NewService(audit.NewRepository(conn), logg); err != nil {
		return nil, fmt.Errorf("audit service: %w", err)
	}
	e.OutboxRepo = outbox.NewRepository(conn)
	e.Outbox = outbox.NewService(e.OutboxRepo, logg)

	if e.Risk, err = risk.NewService(risk.ServiceParams{
		Repo:      risk.NewRepository(conn),
		Tx:        params.DB,
		Audit:     e.Audit,
		Logger:    logg,
		Threshold: cfg.Risk.CODBlockThreshold,
	}); err != nil {
		return nil, fmt.Errorf("risk service: %w", err)
	}

	if e.Ledger, err = ledger.NewService(ledger.ServiceParams{
		Repo:    ledger.NewRepository(conn),
		Tx:      params.DB,
		Audit:   e.Audit,
		Outbox:  e.Outbox,
		Locker:  locker,
		Gateway: refundGateway,
		Metrics: e.Metrics,
		Logger:  logg,
		Config:  cfg.Ledger,
	}); err != nil {
		return nil, fmt.Errorf("ledger service: %w", err)
	}

	if e.Logistics, err = logistics.NewService(logistics.ServiceParams{
		Repo:          logistics.NewRepository(conn),
		Tx:            params.DB,
		Audit:         e.Audit,
		Outbox:        e.Outbox,
		Locker:        locker,
		Metrics:       e.Metrics,
		Logger:        logg,
		LegacyCourier: cfg.Logistics.LegacyCourier,
	}); err != nil {
		return nil, fmt.Errorf("logistics service: %w", err)
	}

	if e.Catalog, err = catalog.NewService(catalog.NewRepository(conn), e.Audit, logg); err != nil {
		return nil, fmt.Errorf("catalog service: %w", err)
	}

	if e.Orders, err = orders.NewService(orders.ServiceParams{
		Repo:    orders.NewRepository(conn),
		Tx:      params.DB,
		Outbox:  e.Outbox,
		Audit:   e.Audit,
		Risk:    e.Risk,
		Ledger:  e.Ledger,
		Catalog: e.Catalog,
		Router:  e.Logistics,
		Gateway: orderGateway,
		Metrics: e.Metrics,
		Logger:  logg,
	}); err != nil {
		return nil, fmt.Errorf("orders service: %w", err)
	}

	paymentParams := payments.ServiceParams{
		Repo:   payments.NewRepository(conn),
		Tx:     params.DB,
		Audit:  e.Audit,
		Outbox: e.Outbox,
		Logger: logg,
	}
	webhookParams := webhooks.ServiceParams{
		Tx:           params.DB,
		Audit:        e.Audit,
		Shipments:    e.Logistics,
		Orders:       e.Orders,
		Refunds:      e.Ledger,
		FendexSecret: cfg.Logistics.FendexWebhookSecret,
		Metrics:      e.Metrics,
		Logger:       logg,
	}
	if e.Gateway != nil {
		paymentParams.Verifier = e.Gateway
		webhookParams.Razorpay = e.Gateway
	}

	if e.Payments, err = payments.NewService(paymentParams); err != nil {
		return nil, fmt.Errorf("payments service: %w", err)
	}
	webhookParams.Payments = e.Payments
	if e.Webhooks, err = webhooks.NewService(webhookParams); err != nil {
		return nil, fmt.Errorf("webhooks service: %w", err)
	}

	return e, nil
}
