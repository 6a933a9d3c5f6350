package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the status of a registration's balance ledger.
type PaymentStatus string

const (
	PaymentUnpaid              PaymentStatus = "unpaid"
	PaymentPendingCheckPayment PaymentStatus = "pending_check_payment"
	PaymentDepositPaid         PaymentStatus = "deposit_paid"
	PaymentPaidPartial         PaymentStatus = "paid_partial"
	PaymentPaidFull            PaymentStatus = "paid_full"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentUnpaid:              {PaymentPendingCheckPayment, PaymentDepositPaid, PaymentPaidPartial, PaymentPaidFull},
	PaymentPendingCheckPayment: {PaymentDepositPaid, PaymentPaidPartial, PaymentPaidFull},
	PaymentDepositPaid:         {PaymentPaidPartial, PaymentPaidFull},
	PaymentPaidPartial:         {PaymentPaidPartial, PaymentPaidFull},
	PaymentPaidFull:            {},
}

// CanTransitionTo reports whether the status may change to next.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentBalance is the durable amount-due ledger of one registration.
// swagger:model PaymentBalance
type PaymentBalance struct {
	ID              string          `json:"id"`
	RegistrationID  string          `json:"registration_id"`
	TotalAmountDue  decimal.Decimal `json:"total_amount_due"`
	AmountPaid      decimal.Decimal `json:"amount_paid"`
	AmountRemaining decimal.Decimal `json:"amount_remaining"`
	LateFeesApplied decimal.Decimal `json:"late_fees_applied"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewPaymentBalance returns an unpaid ledger for total.
func NewPaymentBalance(registrationID string, total decimal.Decimal, status PaymentStatus, now time.Time) *PaymentBalance {
	return &PaymentBalance{
		RegistrationID:  registrationID,
		TotalAmountDue:  total,
		AmountPaid:      decimal.Zero,
		AmountRemaining: total,
		LateFeesApplied: decimal.Zero,
		PaymentStatus:   status,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// ApplyPayment records amount as paid and moves the status along the transition table.
// Overpayment is clamped so AmountRemaining never goes below zero.
func (b *PaymentBalance) ApplyPayment(amount, depositDue decimal.Decimal, now time.Time) error {
	if !amount.IsPositive() {
		return ErrInvalidInput
	}
	paid := b.AmountPaid.Add(amount)
	owed := b.TotalAmountDue.Add(b.LateFeesApplied)
	remaining := owed.Sub(paid)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	var next PaymentStatus
	switch {
	case remaining.IsZero():
		next = PaymentPaidFull
	case b.PaymentStatus != PaymentDepositPaid && b.PaymentStatus != PaymentPaidPartial &&
		depositDue.IsPositive() && paid.GreaterThanOrEqual(depositDue):
		next = PaymentDepositPaid
	default:
		next = PaymentPaidPartial
	}
	if !b.PaymentStatus.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	b.AmountPaid = paid
	b.AmountRemaining = remaining
	b.PaymentStatus = next
	b.UpdatedAt = now
	return nil
}

// PaymentBalanceRepository defines storage operations for balance ledgers.
type PaymentBalanceRepository interface {
	Create(ctx context.Context, balance *PaymentBalance) error
	GetByRegistrationID(ctx context.Context, registrationID string) (*PaymentBalance, error)
	Update(ctx context.Context, balance *PaymentBalance) error
}

// PaymentRecordStatus is the status of a single payment attempt.
type PaymentRecordStatus string

const (
	PaymentRecordPending   PaymentRecordStatus = "pending"
	PaymentRecordSucceeded PaymentRecordStatus = "succeeded"
	PaymentRecordFailed    PaymentRecordStatus = "failed"
)

// Payment is one payment attempt for a registration, by card or check.
// swagger:model Payment
type Payment struct {
	ID              string              `json:"id"`
	RegistrationID  string              `json:"registration_id"`
	Method          PaymentMethod       `json:"method"`
	Status          PaymentRecordStatus `json:"status"`
	Amount          decimal.Decimal     `json:"amount"`
	PlatformFee     decimal.Decimal     `json:"platform_fee"`
	GatewayIntentID *string             `json:"gateway_intent_id,omitempty"`
	CheckoutURL     *string             `json:"checkout_url,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// PaymentRepository defines storage operations for payment records.
type PaymentRepository interface {
	Create(ctx context.Context, payment *Payment) error
	GetByGatewayIntentID(ctx context.Context, intentID string) (*Payment, error)
	// ListPendingByRegistrationID returns the registration's pending card payments, oldest first.
	ListPendingByRegistrationID(ctx context.Context, registrationID string) ([]*Payment, error)
	// MarkSucceeded flips a pending or failed payment to succeeded. It reports false when the
	// payment had already succeeded, which makes webhook redelivery a no-op.
	MarkSucceeded(ctx context.Context, id string) (bool, error)
	// MarkFailed flips a pending payment to failed. It reports false when the payment was not pending.
	MarkFailed(ctx context.Context, id string) (bool, error)
}

// ChargeIntentRequest asks the gateway for a hosted checkout. Amounts are in minor units.
type ChargeIntentRequest struct {
	AmountCents        int64
	PlatformFeeCents   int64
	DestinationAccount string
	Currency           string
	Description        string
	CustomerEmail      string
	SuccessURL         string
	CancelURL          string
	Metadata           map[string]string
	// IdempotencyKey identifies one payment attempt; gateways replay the first answer for a repeated key.
	IdempotencyKey string
}

// ChargeIntent is the gateway's answer to a ChargeIntentRequest.
type ChargeIntent struct {
	IntentID    string
	RedirectURL string
}

// GatewayCompletion is a verified payment completion reported by the gateway.
type GatewayCompletion struct {
	IntentID    string
	AmountCents int64
}

// PaymentGateway is the card payment provider.
type PaymentGateway interface {
	CreateChargeIntent(ctx context.Context, req ChargeIntentRequest) (*ChargeIntent, error)
	// ExpireChargeIntent closes an open checkout so it can no longer be paid.
	ExpireChargeIntent(ctx context.Context, intentID string) error
	// ParseCompletion verifies a webhook payload. It returns (nil, nil) for events that are not completions.
	ParseCompletion(payload []byte, signature string) (*GatewayCompletion, error)
}

// PaymentService handles payment events after a registration exists.
type PaymentService interface {
	ConfirmCardPayment(ctx context.Context, completion GatewayCompletion) error
	RetryCardPayment(ctx context.Context, registrationID, organizationID string) (*RegistrationResult, error)
	RecordCheckPayment(ctx context.Context, registrationID, organizationID string, amount decimal.Decimal) (*PaymentBalance, error)
	GetRegistrationByCode(ctx context.Context, code string) (*RegistrationDetails, error)
}
