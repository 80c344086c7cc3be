package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fensho/marketplace-backend/internal/audit"
	"github.com/fensho/marketplace-backend/internal/catalog"
	"github.com/fensho/marketplace-backend/internal/ledger"
	"github.com/fensho/marketplace-backend/internal/logistics"
	"github.com/fensho/marketplace-backend/internal/orders"
	"github.com/fensho/marketplace-backend/internal/payments"
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
)

const fendexSecret = "fendex-secret"

type stubVerifier struct{ ok bool }

func (s stubVerifier) VerifyWebhookSignature([]byte, string) bool { return s.ok }
func (s stubVerifier) VerifyPaymentSignature(string, string, string) bool {
	return s.ok
}

type stubGatewayOrders struct{ n int }

func (g *stubGatewayOrders) CreateOrder(context.Context, string, decimal.Decimal) (string, error) {
	g.n++
	return fmt.Sprintf("order_rzp_%d", g.n), nil
}

type harness struct {
	svc      *Service
	client   *db.Client
	orders   orders.Service
	ledger   ledger.Service
	verifier *stubVerifier
	seller   models.SellerProfile
	product  models.Product
}

var ctx = context.Background()

func newHarness(t *testing.T) *harness {
	t.Helper()
	client := dbtest.Client(t)
	conn := client.DB()
	logg := logger.New(logger.Options{ServiceName: "webhooks-test", Output: &bytes.Buffer{}})
	auditSvc, err := audit.NewService(audit.NewRepository(conn), logg)
	require.NoError(t, err)
	outboxSvc := outbox.NewService(outbox.NewRepository(conn), logg)

	riskSvc, err := risk.NewService(risk.ServiceParams{Repo: risk.NewRepository(conn), Tx: client, Audit: auditSvc, Logger: logg})
	require.NoError(t, err)
	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		Repo:   ledger.NewRepository(conn),
		Tx:     client,
		Audit:  auditSvc,
		Outbox: outboxSvc,
		Logger: logg,
		Config: config.LedgerConfig{CommissionRate: "0.10", TDSRate: "0", SettlementDelayDays: 7},
	})
	require.NoError(t, err)
	logisticsSvc, err := logistics.NewService(logistics.ServiceParams{
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
	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repo:    orders.NewRepository(conn),
		Tx:      client,
		Outbox:  outboxSvc,
		Audit:   auditSvc,
		Risk:    riskSvc,
		Ledger:  ledgerSvc,
		Catalog: catalogSvc,
		Router:  logisticsSvc,
		Gateway: &stubGatewayOrders{},
		Logger:  logg,
	})
	require.NoError(t, err)

	verifier := &stubVerifier{ok: true}
	paymentsSvc, err := payments.NewService(payments.ServiceParams{
		Repo:     payments.NewRepository(conn),
		Tx:       client,
		Audit:    auditSvc,
		Outbox:   outboxSvc,
		Verifier: verifier,
		Logger:   logg,
	})
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Tx:           client,
		Audit:        auditSvc,
		Shipments:    logisticsSvc,
		Orders:       ordersSvc,
		Payments:     paymentsSvc,
		Refunds:      ledgerSvc,
		Razorpay:     verifier,
		FendexSecret: fendexSecret,
		Logger:       logg,
	})
	require.NoError(t, err)

	_, err = logisticsSvc.UpsertCourierConfig(ctx, audit.SystemActor, logistics.CourierConfigInput{Name: "DELHIVERY", Priority: 1, SupportsCOD: true})
	require.NoError(t, err)

	h := &harness{svc: svc, client: client, orders: ordersSvc, ledger: ledgerSvc, verifier: verifier}
	h.seller = models.SellerProfile{UserID: uuid.New(), BusinessName: "Kolhapur Leather", Type: enums.SellerTypeGST, State: "MH"}
	require.NoError(t, conn.Create(&h.seller).Error)
	h.product = models.Product{
		ID:          uuid.New(),
		SellerID:    h.seller.UserID,
		Name:        "Kolhapuri chappal",
		Price:       decimal.NewFromInt(1000),
		WeightGrams: 600,
		LengthCM:    decimal.NewFromInt(30),
		WidthCM:     decimal.NewFromInt(12),
		HeightCM:    decimal.NewFromInt(8),
		IsActive:    true,
	}
	require.NoError(t, conn.Create(&h.product).Error)
	return h
}

func (h *harness) placeOrder(t *testing.T, method enums.PaymentMethod) *models.Order {
	t.Helper()
	result, err := h.orders.Checkout(ctx, orders.CheckoutInput{
		BuyerID:          uuid.New(),
		Lines:            []checkout.LineInput{{ProductID: h.product.ID, Quantity: 1}},
		DestinationState: "KA",
		PaymentMethod:    method,
	})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusShipped, result.Order.Status)
	require.NotNil(t, result.Order.TrackingAWB)
	return result.Order
}

func (h *harness) reload(t *testing.T, id uuid.UUID) models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, h.client.DB().First(&order, "id = ?", id).Error)
	return order
}

func (h *harness) auditCount(t *testing.T, action string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.client.DB().Model(&models.AuditLog{}).Where("action = ?", action).Count(&n).Error)
	return n
}

func signFendex(body []byte) string {
	mac := hmac.New(sha256.New, []byte(fendexSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestCourierEventDeliveredAdvancesOrderOnce(t *testing.T) {
	h := newHarness(t)
	order := h.placeOrder(t, enums.PaymentMethodCOD)
	awb := *order.TrackingAWB

	transit, err := h.svc.CourierEvent(ctx, "delhivery", awb, "in_transit")
	require.NoError(t, err)
	assert.Nil(t, transit.Transition, "tracking states leave the order status alone")
	stored := h.reload(t, order.ID)
	assert.Equal(t, enums.OrderStatusShipped, stored.Status)
	require.NotNil(t, stored.LogisticsStatus)
	assert.Equal(t, "IN_TRANSIT", *stored.LogisticsStatus)

	delivered, err := h.svc.CourierEvent(ctx, "DELHIVERY", awb, "DELIVERED")
	require.NoError(t, err)
	require.NotNil(t, delivered.Transition)
	assert.Equal(t, enums.OrderStatusDelivered, delivered.Transition.Status)
	require.NotNil(t, delivered.Transition.Sale)
	assert.True(t, delivered.Transition.Sale.Held)

	again, err := h.svc.CourierEvent(ctx, "DELHIVERY", awb, "DELIVERED")
	require.NoError(t, err)
	assert.True(t, again.Duplicate)

	var entries int64
	require.NoError(t, h.client.DB().Model(&models.LedgerEntry{}).Where("order_id = ?", order.ID).Count(&entries).Error)
	assert.Equal(t, int64(3), entries, "sale, commission and hold posted once")
	wallet, err := h.ledger.Wallet(ctx, h.seller.UserID)
	require.NoError(t, err)
	assert.True(t, wallet.HoldBalance.Equal(decimal.NewFromInt(900)))
	assert.Equal(t, int64(2), h.auditCount(t, audit.ActionWebhookReceived))
}

func TestCourierEventConflictsAreAcknowledged(t *testing.T) {
	h := newHarness(t)
	order := h.placeOrder(t, enums.PaymentMethodCOD)
	_, err := h.orders.Advance(ctx, audit.SystemActor, order.ID, enums.OrderStatusCancelled)
	require.NoError(t, err)

	result, err := h.svc.CourierEvent(ctx, "DELHIVERY", *order.TrackingAWB, "DELIVERED")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Conflict)
	assert.Equal(t, enums.OrderStatusCancelled, h.reload(t, order.ID).Status)
	assert.Equal(t, int64(1), h.auditCount(t, audit.ActionWebhookStateConflict))
}

func TestCourierEventRejectsBadInput(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.CourierEvent(ctx, "DELHIVERY", "AWB404", "DELIVERED")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = h.svc.CourierEvent(ctx, "DELHIVERY", "AWB404", "TELEPORTED")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = h.svc.CourierEvent(ctx, "DELHIVERY", "", "DELIVERED")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	var claims int64
	require.NoError(t, h.client.DB().Model(&models.IdempotencyKey{}).Count(&claims).Error)
	assert.Zero(t, claims, "unknown shipments do not burn the claim")
}

func TestFendexEventVerifiesSignature(t *testing.T) {
	h := newHarness(t)
	order := h.placeOrder(t, enums.PaymentMethodCOD)
	body := []byte(fmt.Sprintf(`{"awb":%q,"status":"RTO"}`, *order.TrackingAWB))

	_, err := h.svc.FendexEvent(ctx, body, "00ff")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
	assert.Equal(t, int64(1), h.auditCount(t, audit.ActionWebhookAuthFail))

	result, err := h.svc.FendexEvent(ctx, body, signFendex(body))
	require.NoError(t, err)
	assert.Equal(t, SourceFendex, result.Courier)
	require.NotNil(t, result.Transition)
	assert.Equal(t, enums.OrderStatusRTO, result.Transition.Status)
	assert.Equal(t, 25, result.Transition.Risk.Score)

	var shipment models.Shipment
	require.NoError(t, h.client.DB().First(&shipment, "order_id = ?", order.ID).Error)
	assert.Equal(t, "FENDEX", *shipment.CourierName)
}

func TestSimulateCourierStatus(t *testing.T) {
	h := newHarness(t)
	order := h.placeOrder(t, enums.PaymentMethodOnline)
	admin := audit.Actor{ID: "admin-1", Role: enums.ActorRoleAdmin}

	result, err := h.svc.SimulateCourierStatus(ctx, admin, *order.TrackingAWB, "OUT_FOR_DELIVERY")
	require.NoError(t, err)
	assert.Equal(t, "DELHIVERY", result.Courier)
	assert.Equal(t, int64(1), h.auditCount(t, audit.ActionShipmentSimulate))

	_, err = h.svc.SimulateCourierStatus(ctx, admin, "AWB404", "DELIVERED")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func capturedBody(gatewayOrderID, paymentID string) []byte {
	return []byte(fmt.Sprintf(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":%q,"order_id":%q,"amount":100000}}}}`, paymentID, gatewayOrderID))
}

func refundBody(refundID, paymentID string, paise int64) []byte {
	return []byte(fmt.Sprintf(`{"event":"refund.processed","payload":{"refund":{"entity":{"id":%q,"payment_id":%q,"amount":%d}}}}`, refundID, paymentID, paise))
}

func TestRazorpayCaptureAndRefund(t *testing.T) {
	h := newHarness(t)
	order := h.placeOrder(t, enums.PaymentMethodOnline)
	require.NotNil(t, order.GatewayOrderID)

	captured, err := h.svc.RazorpayEvent(ctx, capturedBody(*order.GatewayOrderID, "pay_W1"), "sig")
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, captured.Outcome)
	assert.Equal(t, enums.PaymentStatusPaid, h.reload(t, order.ID).PaymentStatus)

	replay, err := h.svc.RazorpayEvent(ctx, capturedBody(*order.GatewayOrderID, "pay_W1"), "sig")
	require.NoError(t, err)
	assert.True(t, replay.Duplicate)

	_, err = h.orders.Advance(ctx, audit.SystemActor, order.ID, enums.OrderStatusDelivered)
	require.NoError(t, err)

	refunded, err := h.svc.RazorpayEvent(ctx, refundBody("rfnd_1", "pay_W1", 40000), "sig")
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, refunded.Outcome)
	stored := h.reload(t, order.ID)
	assert.Equal(t, enums.PaymentStatusRefunded, stored.PaymentStatus)
	assert.True(t, stored.RefundAmount.Equal(decimal.NewFromInt(400)))

	wallet, err := h.ledger.Wallet(ctx, h.seller.UserID)
	require.NoError(t, err)
	assert.True(t, wallet.AvailableBalance.Equal(decimal.NewFromInt(500)), "900 earned less 400 reversed")

	again, err := h.svc.RazorpayEvent(ctx, refundBody("rfnd_1", "pay_W1", 40000), "sig")
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	require.NoError(t, h.ledger.CheckConsistency(ctx, h.seller.UserID))
}

func TestRazorpayRejectsAndIgnores(t *testing.T) {
	h := newHarness(t)

	ignored, err := h.svc.RazorpayEvent(ctx, []byte(`{"event":"order.paid","payload":{}}`), "sig")
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, ignored.Outcome)

	_, err = h.svc.RazorpayEvent(ctx, refundBody("rfnd_x", "pay_unknown", 100), "sig")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = h.svc.RazorpayEvent(ctx, []byte(`{"event":"payment.captured","payload":{}}`), "sig")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	h.verifier.ok = false
	_, err = h.svc.RazorpayEvent(ctx, capturedBody("order_x", "pay_x"), "forged")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
	assert.Equal(t, int64(1), h.auditCount(t, audit.ActionWebhookAuthFail))
}

func TestRazorpayCaptureOnCODOrderIsAcknowledged(t *testing.T) {
	h := newHarness(t)
	order := h.placeOrder(t, enums.PaymentMethodCOD)
	gatewayOrderID := "order_manual"
	require.NoError(t, h.client.DB().Model(&models.Order{}).Where("id = ?", order.ID).Update("gateway_order_id", gatewayOrderID).Error)

	result, err := h.svc.RazorpayEvent(ctx, capturedBody(gatewayOrderID, "pay_cod"), "sig")
	require.NoError(t, err)
	assert.Equal(t, OutcomeStateConflict, result.Outcome)
	assert.Equal(t, enums.PaymentStatusPending, h.reload(t, order.ID).PaymentStatus)
	assert.Equal(t, int64(1), h.auditCount(t, audit.ActionWebhookStateConflict))
}
