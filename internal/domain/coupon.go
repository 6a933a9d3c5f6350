package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType is how a coupon reduces the subtotal.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// UsageLimitType is the redemption policy of a coupon.
type UsageLimitType string

const (
	UsageSingleUse UsageLimitType = "single_use"
	UsageLimited   UsageLimitType = "limited"
	UsageUnlimited UsageLimitType = "unlimited"
)

// Coupon is a promotional code scoped to one event. Code is stored uppercase.
// swagger:model Coupon
type Coupon struct {
	ID              string          `json:"id"`
	EventID         string          `json:"event_id"`
	Code            string          `json:"code"`
	Active          bool            `json:"active"`
	DiscountType    DiscountType    `json:"discount_type"`
	DiscountValue   decimal.Decimal `json:"discount_value"`
	ExpirationDate  *time.Time      `json:"expiration_date,omitempty"`
	UsageLimitType  UsageLimitType  `json:"usage_limit_type"`
	MaxUses         *int            `json:"max_uses,omitempty"`
	UsageCount      int             `json:"usage_count"`
	RestrictToEmail *string         `json:"restrict_to_email,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Expired reports whether the coupon expired before now.
func (c *Coupon) Expired(now time.Time) bool {
	return c.ExpirationDate != nil && c.ExpirationDate.Before(now)
}

// HasUsesLeft reports whether the usage policy still permits a redemption.
func (c *Coupon) HasUsesLeft() bool {
	switch c.UsageLimitType {
	case UsageSingleUse:
		return c.UsageCount < 1
	case UsageLimited:
		return c.MaxUses != nil && c.UsageCount < *c.MaxUses
	case UsageUnlimited:
		return true
	}
	return false
}

// CouponRepository defines storage operations for coupons.
type CouponRepository interface {
	Create(ctx context.Context, coupon *Coupon) error
	// FindByCode returns the coupon of the event whose code matches case-insensitively, or ErrNotFound.
	FindByCode(ctx context.Context, eventID, code string) (*Coupon, error)
	// IncrementUsage atomically increments usage_count when the usage policy still allows it.
	// It reports false when no redemption was left.
	IncrementUsage(ctx context.Context, couponID string) (bool, error)
	ListByEventID(ctx context.Context, eventID string) ([]*Coupon, error)
}

// CreateCouponInput holds the organizer-supplied fields of a new coupon.
type CreateCouponInput struct {
	EventID         string
	Code            string
	DiscountType    DiscountType
	DiscountValue   decimal.Decimal
	ExpirationDate  *time.Time
	UsageLimitType  UsageLimitType
	MaxUses         *int
	RestrictToEmail *string
}
