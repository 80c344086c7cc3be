package orders

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fensho/marketplace-backend/internal/audit"
	"github.com/fensho/marketplace-backend/internal/catalog"
	"github.com/fensho/marketplace-backend/internal/ledger"
	"github.com/fensho/marketplace-backend/internal/logistics"
	"github.com/fensho/marketplace-backend/internal/risk"
	"github.com/fensho/marketplace-backend/pkg/checkout"
	"github.com/fensho/marketplace-backend/pkg/config"
	"github.com/fensho/marketplace-backend/pkg/db"
	"github.com/fensho/marketplace-backend/pkg/db/dbtest"
	"github.com/fensho/marketplace-backend/pkg/db/models"
	"github.com/fensho/marketplace-backend/pkg/enums"
	pkgerrors "github.com/fensho/marketplace-backend/pkg/errors"
	"github.com/fensho/marketplace-backend/pkg/logger"
	"github.com/fensho/marketplace-backend/pkg/outbox"
	"github.com/fensho/marketplace-backend/pkg/pagination"
)

type stubGateway struct {
	receipts []string
	amounts  []decimal.Decimal
	err      error
}

func (g *stubGateway) CreateOrder(_ context.Context, receipt string, amount decimal.Decimal) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	g.receipts = append(g.receipts, receipt)
	g.amounts = append(g.amounts, amount)
	return "order_rzp_" + receipt[:8], nil
}

type engine struct {
	svc       Service
	client    *db.Client
	risk      risk.Service
	ledger    ledger.Service
	logistics logistics.Service
	gateway   *stubGateway
}

var (
	admin = audit.Actor{ID: "admin-7", Role: enums.ActorRoleAdmin}
	ctx   = context.Background()
)

func newEngine(t *testing.T) *engine {
	t.Helper()
	client := dbtest.Client(t)
	conn := client.DB()
	logg := logger.New(logger.Options{ServiceName: "orders-test", Output: &bytes.Buffer{}})
	auditSvc, err := audit.NewService(audit.NewRepository(conn), logg)
	require.NoError(t, err)
	outboxSvc := outbox.NewService(outbox.NewRepository(conn), logg)

	e := &engine{client: client, gateway: &stubGateway{}}
	e.risk, err = risk.NewService(risk.ServiceParams{Repo: risk.NewRepository(conn), Tx: client, Audit: auditSvc, Logger: logg})
	require.NoError(t, err)
	e.ledger, err = ledger.NewService(ledger.ServiceParams{
		Repo:   ledger.NewRepository(conn),
		Tx:     client,
		Audit:  auditSvc,
		Outbox: outboxSvc,
		Logger: logg,
		Config: config.LedgerConfig{CommissionRate: "0.10", TDSRate: "0", SettlementDelayDays: 7},
	})
	require.NoError(t, err)
	e.logistics, err = logistics.NewService(logistics.ServiceParams{
		Repo:          logistics.NewRepository(conn),
		Tx:            client,
		Audit:         auditSvc,
		Outbox:        outboxSvc,
		Logger:        logg,
		LegacyCourier: "FENDEX",
	})
	require.NoError(t, err)
	catalogSvc, err := catalog.NewService(catalog.NewRepository(conn), auditSvc, logg)
	require.NoError(t, err)

	e.svc, err = NewService(ServiceParams{
		Repo:    NewRepository(conn),
		Tx:      client,
		Outbox:  outboxSvc,
		Audit:   auditSvc,
		Risk:    e.risk,
		Ledger:  e.ledger,
		Catalog: catalogSvc,
		Router:  e.logistics,
		Gateway: e.gateway,
		Logger:  logg,
	})
	require.NoError(t, err)
	return e
}

func (e *engine) seller(t *testing.T, sellerType enums.SellerType, state string, commission string) models.SellerProfile {
	t.Helper()
	seller := models.SellerProfile{UserID: uuid.New(), BusinessName: "Chettinad Weaves", Type: sellerType, State: state}
	if commission != "" {
		seller.CommissionRate = decimal.NewNullDecimal(decimal.RequireFromString(commission))
	}
	require.NoError(t, e.client.DB().Create(&seller).Error)
	return seller
}

func (e *engine) product(t *testing.T, seller models.SellerProfile, price string) models.Product {
	t.Helper()
	product := models.Product{
		ID:          uuid.New(),
		SellerID:    seller.UserID,
		Name:        "Brass diya",
		Price:       decimal.RequireFromString(price),
		WeightGrams: 300,
		LengthCM:    decimal.NewFromInt(10),
		WidthCM:     decimal.NewFromInt(10),
		HeightCM:    decimal.NewFromInt(10),
		IsActive:    true,
	}
	require.NoError(t, e.client.DB().Create(&product).Error)
	return product
}

func (e *engine) courier(t *testing.T, name string, priority int) {
	t.Helper()
	_, err := e.logistics.UpsertCourierConfig(ctx, admin, logistics.CourierConfigInput{Name: name, Priority: priority, SupportsCOD: true})
	require.NoError(t, err)
}

func (e *engine) count(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.client.DB().Model(model).Where(query, args...).Count(&n).Error)
	return n
}

func checkoutInput(buyer uuid.UUID, method enums.PaymentMethod, state string, lines ...checkout.LineInput) CheckoutInput {
	return CheckoutInput{BuyerID: buyer, Lines: lines, DestinationState: state, PaymentMethod: method}
}

func reason(t *testing.T, err error) enums.CODBlockReason {
	t.Helper()
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	r, ok := details["reason"].(enums.CODBlockReason)
	require.True(t, ok, "reason detail missing: %+v", details)
	return r
}

func TestCheckoutOnlineSnapshotsAndRoutes(t *testing.T) {
	e := newEngine(t)
	e.courier(t, "DELHIVERY", 1)
	seller := e.seller(t, enums.SellerTypeGST, "Tamil Nadu", "0.08")
	diya := e.product(t, seller, "250.50")
	buyer := uuid.New()

	result, err := e.svc.Checkout(ctx, checkoutInput(buyer, "", "karnataka", checkout.LineInput{ProductID: diya.ID, Quantity: 2}))
	require.NoError(t, err)

	order := result.Order
	assert.Equal(t, enums.PaymentMethodOnline, order.PaymentMethod)
	assert.Equal(t, enums.PaymentStatusPending, order.PaymentStatus)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("501")))
	assert.Equal(t, "KARNATAKA", order.BuyerState)
	assert.Equal(t, seller.UserID, order.SellerID)
	assert.Equal(t, enums.SellerTypeGST, order.SellerType)
	require.NotNil(t, order.GatewayOrderID)
	require.Len(t, e.gateway.amounts, 1)
	assert.True(t, e.gateway.amounts[0].Equal(order.TotalAmount))

	require.Len(t, order.Items, 1)
	item := order.Items[0]
	assert.Equal(t, "TAMIL NADU", item.SellerState)
	assert.Equal(t, enums.ShippingClassLight, item.ShippingClass)
	assert.True(t, item.CommissionRate.Decimal.Equal(decimal.RequireFromString("0.08")))

	require.NotNil(t, result.Routing)
	assert.Equal(t, enums.OrderStatusShipped, order.Status, "routing ran after the order committed")
	require.NotNil(t, order.Shipment)
	assert.Equal(t, "DELHIVERY", *order.Shipment.CourierName)

	profile, err := e.risk.Profile(ctx, buyer)
	require.NoError(t, err)
	assert.Equal(t, 1, profile.LifetimeOrders)
	assert.Equal(t, int64(1), e.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventOrderCreated))
}

func TestCheckoutWithoutCouriersStillPlacesOrder(t *testing.T) {
	e := newEngine(t)
	seller := e.seller(t, enums.SellerTypeGST, "MH", "")
	product := e.product(t, seller, "100")

	result, err := e.svc.Checkout(ctx, checkoutInput(uuid.New(), enums.PaymentMethodCOD, "MH", checkout.LineInput{ProductID: product.ID, Quantity: 1}))
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPendingLogistics, result.Order.Status)
	require.NotNil(t, result.Order.Shipment)
	assert.Equal(t, enums.ShipmentStatusFailed, result.Order.Shipment.Status)
	assert.Nil(t, result.Order.GatewayOrderID)
	assert.Empty(t, e.gateway.receipts, "cod orders never open a gateway order")
}

func TestCheckoutCODGates(t *testing.T) {
	e := newEngine(t)
	e.courier(t, "FENSHO", 1)
	seller := e.seller(t, enums.SellerTypeGST, "MH", "")
	cheap := e.product(t, seller, "200")
	pricey := e.product(t, seller, "2600")

	t.Run("daily limit", func(t *testing.T) {
		buyer := uuid.New()
		limit := 1
		_, err := e.risk.OverrideCOD(ctx, admin, buyer, risk.OverrideInput{DailyCODLimit: &limit})
		require.NoError(t, err)

		_, err = e.svc.Checkout(ctx, checkoutInput(buyer, enums.PaymentMethodCOD, "MH", checkout.LineInput{ProductID: cheap.ID, Quantity: 1}))
		require.NoError(t, err)

		_, err = e.svc.Checkout(ctx, checkoutInput(buyer, enums.PaymentMethodCOD, "MH", checkout.LineInput{ProductID: cheap.ID, Quantity: 1}))
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
		assert.Equal(t, enums.CODBlockDailyLimit, reason(t, err))
		assert.Equal(t, int64(1), e.count(t, &models.Order{}, "buyer_id = ?", buyer))
	})

	t.Run("high risk", func(t *testing.T) {
		buyer := uuid.New()
		_, err := e.risk.EnsureProfile(ctx, nil, buyer)
		require.NoError(t, err)
		require.NoError(t, e.client.DB().Model(&models.BuyerProfile{}).Where("user_id = ?", buyer).Update("risk_score", 60).Error)

		_, err = e.svc.Checkout(ctx, checkoutInput(buyer, enums.PaymentMethodCOD, "MH", checkout.LineInput{ProductID: cheap.ID, Quantity: 1}))
		assert.Equal(t, enums.CODBlockHighRisk, reason(t, err))

		_, err = e.svc.Checkout(ctx, checkoutInput(buyer, enums.PaymentMethodOnline, "MH", checkout.LineInput{ProductID: cheap.ID, Quantity: 1}))
		assert.NoError(t, err, "online checkout ignores the cod gate")
	})

	t.Run("amount limit after pricing", func(t *testing.T) {
		buyer := uuid.New()
		_, err := e.svc.Checkout(ctx, checkoutInput(buyer, enums.PaymentMethodCOD, "MH", checkout.LineInput{ProductID: pricey.ID, Quantity: 2}))
		assert.Equal(t, enums.CODBlockAmountLimit, reason(t, err))
		assert.Equal(t, int64(1), e.count(t, &models.RiskEvent{}, "buyer_id = ? AND type = ?", buyer, enums.RiskEventCODBlock))
	})
}

func TestCheckoutRejections(t *testing.T) {
	e := newEngine(t)
	panSeller := e.seller(t, enums.SellerTypePANOnly, "KA", "")
	local := e.product(t, panSeller, "150")
	buyer := uuid.New()

	_, err := e.svc.Checkout(ctx, checkoutInput(buyer, enums.PaymentMethodOnline, "MH", checkout.LineInput{ProductID: local.ID, Quantity: 1}))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "pan seller out of state")

	_, err = e.svc.Checkout(ctx, checkoutInput(buyer, enums.PaymentMethodOnline, "MH", checkout.LineInput{ProductID: uuid.New(), Quantity: 1}))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = e.svc.Checkout(ctx, checkoutInput(buyer, enums.PaymentMethodOnline, "MH"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = e.svc.Checkout(ctx, checkoutInput(buyer, enums.PaymentMethodOnline, "", checkout.LineInput{ProductID: local.ID, Quantity: 1}))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	e.gateway.err = errors.New("razorpay unavailable")
	_, err = e.svc.Checkout(ctx, checkoutInput(buyer, enums.PaymentMethodOnline, " ka ", checkout.LineInput{ProductID: local.ID, Quantity: 1}))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.Equal(t, int64(0), e.count(t, &models.Order{}, "buyer_id = ?", buyer))
}

func (e *engine) shippedOrder(t *testing.T, method enums.PaymentMethod) *models.Order {
	t.Helper()
	e.courier(t, "FENSHO", 1)
	seller := e.seller(t, enums.SellerTypeGST, "MH", "")
	product := e.product(t, seller, "1000")
	result, err := e.svc.Checkout(ctx, checkoutInput(uuid.New(), method, "GJ", checkout.LineInput{ProductID: product.ID, Quantity: 1}))
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusShipped, result.Order.Status)
	return result.Order
}

func TestAdvanceDeliveredPostsSaleOnce(t *testing.T) {
	e := newEngine(t)
	order := e.shippedOrder(t, enums.PaymentMethodOnline)

	result, err := e.svc.Advance(ctx, admin, order.ID, enums.OrderStatusDelivered)
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Equal(t, enums.OrderStatusShipped, result.PreviousStatus)
	require.NotNil(t, result.Sale)
	assert.True(t, result.Sale.SellerEarning.Equal(decimal.NewFromInt(900)))
	require.NotNil(t, result.Risk)
	assert.Equal(t, 0, result.Risk.Score, "delivered bonus is clamped at zero")

	replay, err := e.svc.Advance(ctx, admin, order.ID, enums.OrderStatusDelivered)
	require.NoError(t, err)
	assert.False(t, replay.Changed)
	assert.Nil(t, replay.Sale)

	assert.Equal(t, int64(2), e.count(t, &models.LedgerEntry{}, "order_id = ?", order.ID))
	wallet, err := e.ledger.Wallet(ctx, order.SellerID)
	require.NoError(t, err)
	assert.True(t, wallet.AvailableBalance.Equal(decimal.NewFromInt(900)))
	require.NoError(t, e.ledger.CheckConsistency(ctx, order.SellerID))

	profile, err := e.risk.Profile(ctx, order.BuyerID)
	require.NoError(t, err)
	assert.Equal(t, 1, profile.DeliveredOrders)

	trail, err := e.svc.Trail(ctx, order.ID)
	require.NoError(t, err)
	var actions []string
	for _, log := range trail {
		actions = append(actions, log.Action)
	}
	assert.Contains(t, actions, audit.ActionOrderStatusUpdate)
	assert.Contains(t, actions, audit.ActionLogisticsRouted)
}

func TestAdvanceUsesSnapshottedSellerRates(t *testing.T) {
	e := newEngine(t)
	e.courier(t, "FENSHO", 1)
	seller := e.seller(t, enums.SellerTypeGST, "MH", "0.05")
	product := e.product(t, seller, "1000")
	placed, err := e.svc.Checkout(ctx, checkoutInput(uuid.New(), enums.PaymentMethodCOD, "MH", checkout.LineInput{ProductID: product.ID, Quantity: 1}))
	require.NoError(t, err)

	require.NoError(t, e.client.DB().Model(&models.SellerProfile{}).Where("user_id = ?", seller.UserID).
		Update("commission_rate", decimal.RequireFromString("0.20")).Error)

	result, err := e.svc.Advance(ctx, admin, placed.Order.ID, enums.OrderStatusDelivered)
	require.NoError(t, err)
	assert.True(t, result.Sale.Commission.Equal(decimal.NewFromInt(50)))
	assert.True(t, result.Sale.Held)
}

func TestAdvanceCancelAndRTOAdjustRisk(t *testing.T) {
	e := newEngine(t)
	cancelled := e.shippedOrder(t, enums.PaymentMethodCOD)

	result, err := e.svc.Advance(ctx, admin, cancelled.ID, enums.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, 10, result.Risk.Score)
	assert.Nil(t, result.Sale)

	_, err = e.svc.Advance(ctx, admin, cancelled.ID, enums.OrderStatusDelivered)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "cancelled is terminal")

	returned := e.shippedOrder(t, enums.PaymentMethodCOD)
	result, err = e.svc.Advance(ctx, audit.SystemActor, returned.ID, enums.OrderStatusRTO)
	require.NoError(t, err)
	assert.Equal(t, 25, result.Risk.Score)
	assert.Equal(t, int64(0), e.count(t, &models.LedgerEntry{}, "order_id = ?", returned.ID))
}

func TestAdvanceRejectsInvalidRequests(t *testing.T) {
	e := newEngine(t)
	seller := e.seller(t, enums.SellerTypeGST, "MH", "")
	product := e.product(t, seller, "100")
	e.courier(t, "FENSHO", 1)
	placed, err := e.svc.Checkout(ctx, checkoutInput(uuid.New(), enums.PaymentMethodCOD, "MH", checkout.LineInput{ProductID: product.ID, Quantity: 1}))
	require.NoError(t, err)

	_, err = e.svc.Advance(ctx, admin, uuid.New(), enums.OrderStatusDelivered)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = e.svc.Advance(ctx, admin, placed.Order.ID, enums.OrderStatus("LOST"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = e.svc.Advance(ctx, admin, placed.Order.ID, enums.OrderStatusPendingLogistics)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "only routing parks orders")

	_, err = e.svc.Advance(ctx, admin, placed.Order.ID, enums.OrderStatusPlaced)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "no way back to placed")
}

func TestListFiltersByBuyerAndStatus(t *testing.T) {
	e := newEngine(t)
	order := e.shippedOrder(t, enums.PaymentMethodCOD)
	_ = e.shippedOrder(t, enums.PaymentMethodCOD)

	page, err := e.svc.List(ctx, OrderFilters{BuyerID: &order.BuyerID}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, order.ID, page.Items[0].ID)

	shipped := enums.OrderStatusShipped
	page, err = e.svc.List(ctx, OrderFilters{Status: &shipped}, pagination.Params{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.NotEmpty(t, page.NextCursor)

	_, err = e.svc.List(ctx, OrderFilters{}, pagination.Params{Cursor: "garbage"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
