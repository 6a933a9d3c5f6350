package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"eventregistration/internal/domain"
)

// CheckoutConfig configures card checkouts.
type CheckoutConfig struct {
	Currency           string
	PublicBaseURL      string
	PlatformFeePercent decimal.Decimal
}

// CardCheckout creates gateway charge intents and their pending payment records.
type CardCheckout struct {
	gateway  domain.PaymentGateway
	payments domain.PaymentRepository
	orgs     domain.OrganizationRepository
	cfg      CheckoutConfig
	tracer   trace.Tracer
	now      func() time.Time
}

// NewCardCheckout returns a CardCheckout using the given gateway and repositories.
func NewCardCheckout(gateway domain.PaymentGateway, payments domain.PaymentRepository, orgs domain.OrganizationRepository, cfg CheckoutConfig) *CardCheckout {
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	return &CardCheckout{
		gateway:  gateway,
		payments: payments,
		orgs:     orgs,
		cfg:      cfg,
		tracer:   otel.Tracer("eventregistration/services/checkout"),
		now:      time.Now,
	}
}

// ToCents converts an amount to minor units, rounding half up.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromCents converts minor units to an amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// PlatformFeeCents returns round(amountCents * feePercent / 100).
func PlatformFeeCents(amountCents int64, feePercent decimal.Decimal) int64 {
	if amountCents <= 0 || !feePercent.IsPositive() {
		return 0
	}
	return decimal.NewFromInt(amountCents).Mul(feePercent).Div(hundred).Round(0).IntPart()
}

// Start creates a charge intent for amount and stores a pending card payment referencing it.
// Every call is a new payment attempt with its own idempotency key, so a balance that equals
// the deposit still gets a fresh checkout. The platform fee is only charged when the
// organization has a connected payout account.
func (c *CardCheckout) Start(ctx context.Context, event *domain.Event, reg *domain.Registration, amount decimal.Decimal) (*domain.Payment, error) {
	amountCents := ToCents(amount)
	ctx, span := c.tracer.Start(ctx, "checkout.start",
		trace.WithAttributes(
			attribute.String("registration.id", reg.ID),
			attribute.Int64("amount.cents", amountCents),
		),
	)
	defer span.End()

	if amountCents <= 0 {
		return nil, fmt.Errorf("%w: nothing to charge", domain.ErrInvalidInput)
	}

	var feeCents int64
	var destination string
	if event.OrganizationID != "" {
		org, err := c.orgs.GetByID(ctx, event.OrganizationID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "get organization")
			return nil, fmt.Errorf("get organization: %w", err)
		}
		if org != nil && org.PayoutAccountID != nil && *org.PayoutAccountID != "" {
			destination = *org.PayoutAccountID
			feeCents = PlatformFeeCents(amountCents, c.cfg.PlatformFeePercent)
		}
	}

	base := strings.TrimRight(c.cfg.PublicBaseURL, "/")
	intent, err := c.gateway.CreateChargeIntent(ctx, domain.ChargeIntentRequest{
		AmountCents:        amountCents,
		PlatformFeeCents:   feeCents,
		DestinationAccount: destination,
		Currency:           c.cfg.Currency,
		Description:        fmt.Sprintf("%s registration %s", event.Name, reg.ConfirmationCode),
		CustomerEmail:      reg.RegistrantEmail,
		SuccessURL:         fmt.Sprintf("%s/registrations/%s?payment=success", base, reg.ConfirmationCode),
		CancelURL:          fmt.Sprintf("%s/registrations/%s?payment=cancelled", base, reg.ConfirmationCode),
		Metadata: map[string]string{
			"registration_id":   reg.ID,
			"confirmation_code": reg.ConfirmationCode,
			"event_id":          event.ID,
		},
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create charge intent")
		return nil, fmt.Errorf("create charge intent: %w", err)
	}

	now := c.now()
	payment := &domain.Payment{
		RegistrationID:  reg.ID,
		Method:          domain.PaymentCard,
		Status:          domain.PaymentRecordPending,
		Amount:          FromCents(amountCents),
		PlatformFee:     FromCents(feeCents),
		GatewayIntentID: &intent.IntentID,
		CheckoutURL:     &intent.RedirectURL,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := c.payments.Create(ctx, payment); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create payment")
		return nil, fmt.Errorf("create payment: %w", err)
	}
	return payment, nil
}

// Expire closes the checkout behind intentID.
func (c *CardCheckout) Expire(ctx context.Context, intentID string) error {
	ctx, span := c.tracer.Start(ctx, "checkout.expire",
		trace.WithAttributes(attribute.String("gateway.intent_id", intentID)),
	)
	defer span.End()

	if err := c.gateway.ExpireChargeIntent(ctx, intentID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "expire charge intent")
		return err
	}
	return nil
}
