package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/preference"
	"github.com/mercadopago/sdk-go/pkg/refund"
)

// ErrMissingAccessToken is returned when the gateway is enabled without credentials.
var ErrMissingAccessToken = errors.New("payments: missing MERCADOPAGO_ACCESS_TOKEN")

// MercadoPago implements Gateway with the Mercado Pago SDK.
type MercadoPago struct {
	payments    payment.Client
	preferences preference.Client
	refunds     refund.Client
	secret      string
	logger      *slog.Logger
}

// NewMercadoPago builds the SDK clients. secret keys checkout signatures.
func NewMercadoPago(accessToken, secret string, logger *slog.Logger) (*MercadoPago, error) {
	if accessToken == "" {
		return nil, ErrMissingAccessToken
	}
	cfg, err := config.New(accessToken)
	if err != nil {
		return nil, fmt.Errorf("payments: sdk config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("mercado pago client initialized")
	return &MercadoPago{
		payments:    payment.NewClient(cfg),
		preferences: preference.NewClient(cfg),
		refunds:     refund.NewClient(cfg),
		secret:      secret,
		logger:      logger,
	}, nil
}

// Name implements Gateway.
func (g *MercadoPago) Name() string { return "mercadopago" }

// CreateOrder opens a checkout preference.
func (g *MercadoPago) CreateOrder(ctx context.Context, in OrderInput) (GatewayOrder, error) {
	req := preference.Request{ExternalReference: in.Receipt}
	for _, it := range in.Items {
		req.Items = append(req.Items, preference.ItemRequest{
			Title:      it.Title,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			CurrencyID: in.Currency,
		})
	}
	if len(req.Items) == 0 {
		req.Items = []preference.ItemRequest{{
			Title:      in.Receipt,
			Quantity:   1,
			UnitPrice:  in.Amount,
			CurrencyID: in.Currency,
		}}
	}
	resp, err := g.preferences.Create(ctx, req)
	if err != nil {
		return GatewayOrder{}, fmt.Errorf("payments: create preference: %w", err)
	}
	g.logger.Info("gateway order created", slog.String("gateway_order_id", resp.ID), slog.String("receipt", in.Receipt))
	return GatewayOrder{ID: resp.ID, CheckoutURL: resp.InitPoint, Amount: in.Amount, Currency: in.Currency, Gateway: g.Name()}, nil
}

// VerifySignature implements Gateway.
func (g *MercadoPago) VerifySignature(gatewayOrderID, paymentID, signature string) bool {
	return verify(g.secret, gatewayOrderID, paymentID, signature)
}

// FetchPaymentDetails implements Gateway.
func (g *MercadoPago) FetchPaymentDetails(ctx context.Context, paymentID string) (Details, error) {
	id, err := strconv.Atoi(paymentID)
	if err != nil {
		return Details{}, fmt.Errorf("payments: invalid payment id %q", paymentID)
	}
	resp, err := g.payments.Get(ctx, id)
	if err != nil {
		return Details{}, fmt.Errorf("payments: get payment %s: %w", paymentID, err)
	}
	return Details{
		ID:        strconv.Itoa(resp.ID),
		Amount:    resp.TransactionAmount,
		Status:    resp.Status,
		Method:    resp.PaymentMethodID,
		Reference: resp.ExternalReference,
	}, nil
}

// Refund implements Gateway.
func (g *MercadoPago) Refund(ctx context.Context, paymentID string, amount *float64) (string, error) {
	id, err := strconv.Atoi(paymentID)
	if err != nil {
		return "", fmt.Errorf("payments: invalid payment id %q", paymentID)
	}
	var resp *refund.Response
	if amount == nil {
		resp, err = g.refunds.Create(ctx, id)
	} else {
		resp, err = g.refunds.CreatePartialRefund(ctx, id, *amount)
	}
	if err != nil {
		return "", fmt.Errorf("payments: refund %s: %w", paymentID, err)
	}
	return strconv.Itoa(resp.ID), nil
}
