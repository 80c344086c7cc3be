package payments

import (
	"context"
	"fmt"
	"strings"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
	"github.com/shopspring/decimal"

	"github.com/fensho/marketplace-backend/pkg/config"
	pkgerrors "github.com/fensho/marketplace-backend/pkg/errors"
)

const defaultCurrency = "INR"

type orderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type paymentAPI interface {
	Fetch(paymentID string, queryParams map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
	Refund(paymentID string, amount int, data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// Gateway wraps the Razorpay client. Amounts cross the boundary in rupees
// and are converted to paise for the API.
type Gateway struct {
	orders        orderAPI
	payments      paymentAPI
	keySecret     string
	webhookSecret string
	currency      string
}

// NewGateway builds a Razorpay gateway from config.
func NewGateway(cfg config.RazorpayConfig) (*Gateway, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("razorpay key id and secret required")
	}
	client := razorpay.NewClient(cfg.KeyID, cfg.KeySecret)
	return newGateway(client.Order, client.Payment, cfg), nil
}

func newGateway(orders orderAPI, payments paymentAPI, cfg config.RazorpayConfig) *Gateway {
	currency := strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	return &Gateway{
		orders:        orders,
		payments:      payments,
		keySecret:     cfg.KeySecret,
		webhookSecret: cfg.WebhookSecret,
		currency:      currency,
	}
}

// CreateOrder opens a gateway order for amount and returns its id.
func (g *Gateway) CreateOrder(_ context.Context, receipt string, amount decimal.Decimal) (string, error) {
	if !amount.IsPositive() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order amount must be positive")
	}
	resp, err := g.orders.Create(map[string]interface{}{
		"amount":   ToPaise(amount),
		"currency": g.currency,
		"receipt":  receipt,
	}, nil)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create razorpay order")
	}
	id, _ := resp["id"].(string)
	if id == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "razorpay order id missing")
	}
	return id, nil
}

// Refund refunds amount against a captured payment, or the full captured
// amount when amount is nil, and returns the refund id.
func (g *Gateway) Refund(_ context.Context, paymentID string, amount *decimal.Decimal) (string, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}

	var paise int64
	if amount != nil {
		paise = ToPaise(*amount)
	} else {
		payment, err := g.payments.Fetch(paymentID, nil, nil)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch razorpay payment")
		}
		paise = intValue(payment["amount"]) - intValue(payment["amount_refunded"])
	}
	if paise <= 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "nothing left to refund")
	}

	resp, err := g.payments.Refund(paymentID, int(paise), nil, nil)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create razorpay refund")
	}
	id, _ := resp["id"].(string)
	if id == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "razorpay refund id missing")
	}
	return id, nil
}

// VerifyPaymentSignature checks the checkout signature over
// "<gateway order id>|<payment id>".
func (g *Gateway) VerifyPaymentSignature(gatewayOrderID, paymentID, signature string) bool {
	if gatewayOrderID == "" || paymentID == "" || signature == "" {
		return false
	}
	return utils.VerifyPaymentSignature(map[string]interface{}{
		"razorpay_order_id":   gatewayOrderID,
		"razorpay_payment_id": paymentID,
	}, signature, g.keySecret)
}

// VerifyWebhookSignature checks x-razorpay-signature against the raw body.
func (g *Gateway) VerifyWebhookSignature(body []byte, signature string) bool {
	if g.webhookSecret == "" || signature == "" {
		return false
	}
	return utils.VerifyWebhookSignature(string(body), signature, g.webhookSecret)
}

// ToPaise converts rupees to the smallest currency unit.
func ToPaise(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromPaise converts the smallest currency unit back to rupees.
func FromPaise(paise int64) decimal.Decimal {
	return decimal.New(paise, -2)
}

func intValue(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int:
		return int64(n)
	case int64:
		return n
	default:
		return 0
	}
}
