package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"

	"eventregistration/internal/domain"
)

// sessionClient is the subset of the Checkout Session client the gateway calls.
type sessionClient interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Expire(id string, params *stripe.CheckoutSessionExpireParams) (*stripe.CheckoutSession, error)
}

type stripeGateway struct {
	sessions      sessionClient
	webhookSecret string
}

// NewStripeGateway returns a gateway backed by Stripe Checkout.
func NewStripeGateway(secretKey, webhookSecret string) domain.PaymentGateway {
	return &stripeGateway{
		sessions:      session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey},
		webhookSecret: webhookSecret,
	}
}

func (g *stripeGateway) CreateChargeIntent(ctx context.Context, req domain.ChargeIntentRequest) (*domain.ChargeIntent, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:    stripe.String(req.SuccessURL),
		CancelURL:     stripe.String(req.CancelURL),
		CustomerEmail: stripe.String(req.CustomerEmail),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(req.Currency),
					UnitAmount: stripe.Int64(req.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Description: stripe.String(req.Description),
			Metadata:    req.Metadata,
		},
		Metadata: req.Metadata,
	}
	if req.DestinationAccount != "" {
		params.PaymentIntentData.TransferData = &stripe.CheckoutSessionPaymentIntentDataTransferDataParams{
			Destination: stripe.String(req.DestinationAccount),
		}
		if req.PlatformFeeCents > 0 {
			params.PaymentIntentData.ApplicationFeeAmount = stripe.Int64(req.PlatformFeeCents)
		}
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey("checkout-" + req.IdempotencyKey)
	}

	s, err := g.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create stripe checkout session: %w", err)
	}
	return &domain.ChargeIntent{IntentID: s.ID, RedirectURL: s.URL}, nil
}

func (g *stripeGateway) ExpireChargeIntent(ctx context.Context, intentID string) error {
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx
	if _, err := g.sessions.Expire(intentID, params); err != nil {
		return fmt.Errorf("expire stripe checkout session: %w", err)
	}
	return nil
}

// ParseCompletion verifies the Stripe-Signature header and extracts completed, paid checkout sessions.
func (g *stripeGateway) ParseCompletion(payload []byte, signature string) (*domain.GatewayCompletion, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}
	if event.Type != stripe.EventTypeCheckoutSessionCompleted || event.Data == nil {
		return nil, nil
	}
	var s stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
		return nil, fmt.Errorf("%w: decode checkout session: %v", domain.ErrInvalidInput, err)
	}
	if s.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return nil, nil
	}
	return &domain.GatewayCompletion{IntentID: s.ID, AmountCents: s.AmountTotal}, nil
}
