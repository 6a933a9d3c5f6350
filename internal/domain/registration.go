package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// RegistrationKind distinguishes a single registrant from a group.
type RegistrationKind string

const (
	RegistrationIndividual RegistrationKind = "individual"
	RegistrationGroup      RegistrationKind = "group"
)

// RegistrationStatus is the lifecycle status of a registration.
type RegistrationStatus string

const (
	RegistrationIncomplete     RegistrationStatus = "incomplete"
	RegistrationPendingPayment RegistrationStatus = "pending_payment"
	RegistrationCompleted      RegistrationStatus = "completed"
	RegistrationCancelled      RegistrationStatus = "cancelled"
)

var registrationTransitions = map[RegistrationStatus][]RegistrationStatus{
	RegistrationIncomplete:     {RegistrationPendingPayment, RegistrationCompleted, RegistrationCancelled},
	RegistrationPendingPayment: {RegistrationCompleted, RegistrationCancelled},
	RegistrationCompleted:      {RegistrationCancelled},
	RegistrationCancelled:      {},
}

// CanTransitionTo reports whether the status may change to next.
func (s RegistrationStatus) CanTransitionTo(next RegistrationStatus) bool {
	for _, allowed := range registrationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentMethod is how the registrant pays.
type PaymentMethod string

const (
	PaymentCard  PaymentMethod = "card"
	PaymentCheck PaymentMethod = "check"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentCard || m == PaymentCheck
}

// Registration is a created individual or group registration.
// swagger:model Registration
type Registration struct {
	ID               string             `json:"id"`
	EventID          string             `json:"event_id"`
	Kind             RegistrationKind   `json:"kind"`
	ConfirmationCode string             `json:"confirmation_code"`
	RegistrantName   string             `json:"registrant_name"`
	RegistrantEmail  string             `json:"registrant_email"`
	RegistrantPhone  string             `json:"registrant_phone,omitempty"`
	GroupName        string             `json:"group_name,omitempty"`
	HousingType      HousingType        `json:"housing_type"`
	RoomType         RoomType           `json:"room_type,omitempty"`
	MealPackage      bool               `json:"meal_package"`
	Headcount        int                `json:"headcount"`
	LineItems        []ChargeLineItem   `json:"line_items"`
	Subtotal         decimal.Decimal    `json:"subtotal"`
	DiscountAmount   decimal.Decimal    `json:"discount_amount"`
	CouponID         *string            `json:"coupon_id,omitempty"`
	TotalAmount      decimal.Decimal    `json:"total_amount"`
	DepositDue       decimal.Decimal    `json:"deposit_due"`
	PaymentMethod    PaymentMethod      `json:"payment_method"`
	Status           RegistrationStatus `json:"status"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// RegistrationRepository defines storage operations for registrations.
type RegistrationRepository interface {
	// Create inserts the registration. It returns ErrDuplicateCode when the confirmation code is taken.
	Create(ctx context.Context, reg *Registration) error
	CodeExists(ctx context.Context, code string) (bool, error)
	GetByID(ctx context.Context, id string) (*Registration, error)
	GetByConfirmationCode(ctx context.Context, code string) (*Registration, error)
	UpdateStatus(ctx context.Context, id string, status RegistrationStatus) error
	ListByEventID(ctx context.Context, eventID string, params PaginationParams) ([]*Registration, int, error)
}

// TxStores are the repositories bound to one storage transaction.
type TxStores struct {
	Registrations RegistrationRepository
	Balances      PaymentBalanceRepository
	Payments      PaymentRepository
	Capacity      CapacityRepository
}

// UnitOfWork runs fn inside a single storage transaction. The transaction commits when fn
// returns nil and rolls back otherwise.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, stores TxStores) error) error
}

// Registrant identifies the person registering (or the group leader).
type Registrant struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// LineItemRequest asks for count participants of one category. Label distinguishes
// sub-categories of a group (e.g. "female_under_18").
type LineItemRequest struct {
	Category Category `json:"category"`
	Label    string   `json:"label,omitempty"`
	Count    int      `json:"count"`
}

// RegistrationRequest is the input of one registration attempt.
type RegistrationRequest struct {
	EventID       string
	Registrant    Registrant
	GroupName     string
	LineItems     []LineItemRequest
	HousingType   HousingType
	RoomType      RoomType
	MealPackage   bool
	CouponCode    string
	PaymentMethod PaymentMethod
	PriceTier     PriceTier
}

// Kind returns group when more than one line item or participant is requested.
func (r *RegistrationRequest) Kind() RegistrationKind {
	if len(r.LineItems) > 1 {
		return RegistrationGroup
	}
	if len(r.LineItems) == 1 && r.LineItems[0].Count > 1 {
		return RegistrationGroup
	}
	return RegistrationIndividual
}

// CheckInstructions tell a check-paying registrant where to send payment.
type CheckInstructions struct {
	PayableTo      string          `json:"payable_to"`
	MailingAddress string          `json:"mailing_address"`
	AmountDue      decimal.Decimal `json:"amount_due"`
	Memo           string          `json:"memo"`
}

// RegistrationResult is returned to the caller after a registration was persisted.
// PaymentSetupPending is set when the registration exists but the payment link could not be created.
// swagger:model RegistrationResult
type RegistrationResult struct {
	RegistrationID      string             `json:"registration_id"`
	ConfirmationCode    string             `json:"confirmation_code"`
	Kind                RegistrationKind   `json:"kind"`
	Subtotal            decimal.Decimal    `json:"subtotal"`
	DiscountAmount      decimal.Decimal    `json:"discount_amount"`
	CouponApplied       bool               `json:"coupon_applied"`
	TotalAmount         decimal.Decimal    `json:"total_amount"`
	DepositDue          decimal.Decimal    `json:"deposit_due"`
	BalanceRemaining    decimal.Decimal    `json:"balance_remaining"`
	IsEarlyBird         bool               `json:"is_early_bird"`
	PaymentMethod       PaymentMethod      `json:"payment_method"`
	Status              RegistrationStatus `json:"status"`
	CheckoutURL         *string            `json:"checkout_url"`
	PaymentSetupPending bool               `json:"payment_setup_pending"`
	CheckInstructions   *CheckInstructions `json:"check_instructions,omitempty"`
}

// RegistrationState is a step of the registration state machine.
type RegistrationState string

const (
	StateInitiated        RegistrationState = "initiated"
	StatePriced           RegistrationState = "priced"
	StateDiscounted       RegistrationState = "discounted"
	StateSplit            RegistrationState = "split"
	StateCapacityReserved RegistrationState = "capacity_reserved"
	StatePersisted        RegistrationState = "persisted"
	StateCardPending      RegistrationState = "card_pending"
	StateCheckPending     RegistrationState = "check_pending"
	StateResponded        RegistrationState = "responded"
)

// RegistrationDetails bundles a registration with its balance ledger.
type RegistrationDetails struct {
	Registration *Registration   `json:"registration"`
	Balance      *PaymentBalance `json:"balance"`
}

// RegistrationService is the registration and payment orchestration entry point.
type RegistrationService interface {
	Register(ctx context.Context, req RegistrationRequest) (*RegistrationResult, error)
}
