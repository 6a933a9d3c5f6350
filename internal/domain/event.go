package domain

import (
	"context"
	"time"
)

// Event is an event participants register for, together with its pricing snapshot and seat counter.
// swagger:model Event
type Event struct {
	ID                   string             `json:"id"`
	OrganizationID       string             `json:"organization_id"`
	Name                 string             `json:"name"`
	EventCode            string             `json:"event_code"`
	CouponsEnabled       bool               `json:"coupons_enabled"`
	AcceptsCheckPayments bool               `json:"accepts_check_payments"`
	CheckPayableTo       string             `json:"check_payable_to,omitempty"`
	CheckMailingAddress  string             `json:"check_mailing_address,omitempty"`
	CapacityTotal        *int               `json:"capacity_total,omitempty"`
	CapacityRemaining    *int               `json:"capacity_remaining,omitempty"`
	Pricing              EventPricingPolicy `json:"pricing"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// NewEvent returns a new Event with the given fields. ID is typically set by the repository on create.
func NewEvent(organizationID, name string, pricing EventPricingPolicy, createdAt, updatedAt time.Time) *Event {
	return &Event{
		OrganizationID: organizationID,
		Name:           name,
		Pricing:        pricing,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}
}

// Capacity returns the event's seat counter.
func (e *Event) Capacity() CapacityCounter {
	return CapacityCounter{Total: e.CapacityTotal, Remaining: e.CapacityRemaining}
}

// CapacityCounter is a per-event seat counter. A nil field means unlimited and untracked.
type CapacityCounter struct {
	Total     *int `json:"total,omitempty"`
	Remaining *int `json:"remaining,omitempty"`
}

// Tracked reports whether both fields are set.
func (c CapacityCounter) Tracked() bool {
	return c.Total != nil && c.Remaining != nil
}

// Organization owns events and may have a connected payout account for card payments.
type Organization struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	PayoutAccountID *string `json:"payout_account_id,omitempty"`
}

// EventRepository defines the interface for event storage
type EventRepository interface {
	Create(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, id string) (*Event, error)
	GetByEventCode(ctx context.Context, eventCode string) (*Event, error)
	EventCodeExists(ctx context.Context, eventCode string) (bool, error)
	UpdatePricing(ctx context.Context, eventID string, pricing EventPricingPolicy) (*Event, error)
}

// CapacityRepository claims seats with a single conditional update.
type CapacityRepository interface {
	// Reserve decrements remaining capacity by n when at least n seats remain. It reports false when
	// the event is full or untracked.
	Reserve(ctx context.Context, eventID string, n int) (bool, error)
}

// OrganizationRepository defines storage operations for organizations.
type OrganizationRepository interface {
	Create(ctx context.Context, org *Organization) error
	GetByID(ctx context.Context, id string) (*Organization, error)
}

// CreateEventInput holds the organizer-supplied fields of a new event.
type CreateEventInput struct {
	OrganizationID       string
	Name                 string
	CouponsEnabled       bool
	AcceptsCheckPayments bool
	CheckPayableTo       string
	CheckMailingAddress  string
	CapacityTotal        *int
	Pricing              EventPricingPolicy
}

// EventService defines organizer operations on events, coupons and registrations.
// Every method except CreateEvent takes the caller's organization and returns ErrForbidden for
// events of other organizations.
type EventService interface {
	CreateEvent(ctx context.Context, in CreateEventInput) (*Event, error)
	GetEvent(ctx context.Context, eventID, organizationID string) (*Event, error)
	UpdatePricing(ctx context.Context, eventID, organizationID string, pricing EventPricingPolicy) (*Event, error)
	CreateCoupon(ctx context.Context, organizationID string, in CreateCouponInput) (*Coupon, error)
	ListCoupons(ctx context.Context, eventID, organizationID string) ([]*Coupon, error)
	ListRegistrations(ctx context.Context, eventID, organizationID string, params PaginationParams) ([]*Registration, int, error)
}
