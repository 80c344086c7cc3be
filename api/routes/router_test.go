package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/fensho/marketplace-backend/internal/audit"
	"github.com/fensho/marketplace-backend/internal/orders"
	internalwebhooks "github.com/fensho/marketplace-backend/internal/webhooks"
	pkgAuth "github.com/fensho/marketplace-backend/pkg/auth"
	"github.com/fensho/marketplace-backend/pkg/config"
	"github.com/fensho/marketplace-backend/pkg/enums"
	pkgerrors "github.com/fensho/marketplace-backend/pkg/errors"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubOrders struct {
	orders.Service
	advance  func(actor audit.Actor, orderID uuid.UUID, status enums.OrderStatus) (*orders.TransitionResult, error)
	checkout func(input orders.CheckoutInput) (*orders.CheckoutResult, error)
}

func (s stubOrders) Advance(_ context.Context, actor audit.Actor, orderID uuid.UUID, status enums.OrderStatus) (*orders.TransitionResult, error) {
	return s.advance(actor, orderID, status)
}

func (s stubOrders) Checkout(_ context.Context, input orders.CheckoutInput) (*orders.CheckoutResult, error) {
	return s.checkout(input)
}

type stubWebhooks struct {
	WebhookService
	courier func(courier, awb, status string) (*internalwebhooks.CourierResult, error)
}

func (s stubWebhooks) CourierEvent(_ context.Context, courier, awb, status string) (*internalwebhooks.CourierResult, error) {
	return s.courier(courier, awb, status)
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "fensho"},
	}
}

func token(t *testing.T, cfg *config.Config, role enums.ActorRole, userID uuid.UUID) string {
	t.Helper()
	signed, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), time.Hour, pkgAuth.AccessTokenPayload{UserID: userID, Role: role})
	require.NoError(t, err)
	return "Bearer " + signed
}

func serve(handler http.Handler, method, path, auth, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestHealthEndpoints(t *testing.T) {
	cfg := testConfig()
	router := NewRouter(Deps{Config: cfg, DB: stubPinger{}})

	rec := serve(router, http.MethodGet, "/health/live", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "test", rec.Header().Get("X-Fensho-Env"))

	rec = serve(router, http.MethodGet, "/health/ready", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthReadyReportsFailingDependency(t *testing.T) {
	router := NewRouter(Deps{Config: testConfig(), DB: stubPinger{err: errors.New("connection refused")}})

	rec := serve(router, http.MethodGet, "/health/ready", "", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, string(pkgerrors.CodeDependency), errorCode(t, rec))
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "fensho_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	router := NewRouter(Deps{Config: testConfig(), Gatherer: reg})
	rec := serve(router, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "fensho_test_total 1")
}

func TestAdminRoutesRequireAdminToken(t *testing.T) {
	cfg := testConfig()
	router := NewRouter(Deps{Config: cfg})
	path := "/api/v1/admin/orders/" + uuid.NewString() + "/status"

	rec := serve(router, http.MethodPost, path, "", `{"status":"DELIVERED"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(router, http.MethodPost, path, token(t, cfg, enums.ActorRoleBuyer, uuid.New()), `{"status":"DELIVERED"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminAdvanceStatus(t *testing.T) {
	cfg := testConfig()
	adminID := uuid.New()
	orderID := uuid.New()
	var gotActor audit.Actor
	svc := stubOrders{
		advance: func(actor audit.Actor, id uuid.UUID, status enums.OrderStatus) (*orders.TransitionResult, error) {
			gotActor = actor
			require.Equal(t, orderID, id)
			require.Equal(t, enums.OrderStatusDelivered, status)
			return &orders.TransitionResult{OrderID: id, PreviousStatus: enums.OrderStatusShipped, Status: status, Changed: true}, nil
		},
	}
	router := NewRouter(Deps{Config: cfg, Orders: svc})

	rec := serve(router, http.MethodPost, "/api/v1/admin/orders/"+orderID.String()+"/status",
		token(t, cfg, enums.ActorRoleAdmin, adminID), `{"status":"DELIVERED"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, adminID.String(), gotActor.ID)
	require.Equal(t, enums.ActorRoleAdmin, gotActor.Role)

	rec = serve(router, http.MethodPost, "/api/v1/admin/orders/"+orderID.String()+"/status",
		token(t, cfg, enums.ActorRoleAdmin, adminID), `{"status":"PENDING_LOGISTICS"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBuyerCheckoutUsesTokenSubject(t *testing.T) {
	cfg := testConfig()
	buyerID := uuid.New()
	productID := uuid.New()
	svc := stubOrders{
		checkout: func(input orders.CheckoutInput) (*orders.CheckoutResult, error) {
			require.Equal(t, buyerID, input.BuyerID)
			require.Equal(t, enums.PaymentMethodCOD, input.PaymentMethod)
			require.Len(t, input.Lines, 1)
			require.Equal(t, productID, input.Lines[0].ProductID)
			require.Equal(t, "Karnataka", input.DestinationState)
			return &orders.CheckoutResult{}, nil
		},
	}
	router := NewRouter(Deps{Config: cfg, Orders: svc})

	body := `{"items":[{"product_id":"` + productID.String() + `","quantity":2}],"destination_state":" Karnataka ","payment_method":"COD"}`
	rec := serve(router, http.MethodPost, "/api/v1/buyer/orders", token(t, cfg, enums.ActorRoleBuyer, buyerID), body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = serve(router, http.MethodPost, "/api/v1/buyer/orders", token(t, cfg, enums.ActorRoleBuyer, buyerID), `{"items":[],"destination_state":"KA"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCourierWebhookRoute(t *testing.T) {
	svc := stubWebhooks{
		courier: func(courier, awb, status string) (*internalwebhooks.CourierResult, error) {
			require.Equal(t, "delhivery", courier)
			require.Equal(t, "AWB-1", awb)
			return &internalwebhooks.CourierResult{Courier: "DELHIVERY", AWB: awb, Status: enums.ShipmentStatusDelivered}, nil
		},
	}
	router := NewRouter(Deps{Config: testConfig(), Webhooks: svc})

	rec := serve(router, http.MethodPost, "/api/v1/webhooks/courier/delhivery", "", `{"awb":"AWB-1","status":"delivered"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(router, http.MethodPost, "/api/v1/webhooks/courier/delhivery", "", `{"status":"delivered"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
