package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"eventregistration/internal/domain"
)

// Reasons a coupon was not applied.
const (
	CouponReasonNotFound      = "not_found"
	CouponReasonInactive      = "inactive"
	CouponReasonExpired       = "expired"
	CouponReasonExhausted     = "exhausted"
	CouponReasonEmailMismatch = "email_mismatch"
)

// CouponResult is the outcome of applying a coupon. When Accepted is false Total equals the
// original subtotal and Reason says which check failed.
type CouponResult struct {
	Accepted bool
	Total    decimal.Decimal
	Discount decimal.Decimal
	CouponID string
	Code     string
	Reason   string
}

// CouponEngine validates promotional codes and claims a redemption.
type CouponEngine struct {
	coupons domain.CouponRepository
}

// NewCouponEngine returns a CouponEngine backed by the given repository.
func NewCouponEngine(coupons domain.CouponRepository) *CouponEngine {
	return &CouponEngine{coupons: coupons}
}

// NormalizeCouponCode trims and uppercases a code the way it is stored.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Apply validates code for the event and, when every check passes, claims one redemption.
// A rejected coupon is not an error; only storage failures are.
func (e *CouponEngine) Apply(ctx context.Context, eventID, code string, subtotal decimal.Decimal, email string, now time.Time) (*CouponResult, error) {
	rejected := func(reason string) *CouponResult {
		return &CouponResult{Accepted: false, Total: subtotal, Discount: decimal.Zero, Reason: reason}
	}

	normalized := NormalizeCouponCode(code)
	if normalized == "" {
		return rejected(CouponReasonNotFound), nil
	}
	coupon, err := e.coupons.FindByCode(ctx, eventID, normalized)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return rejected(CouponReasonNotFound), nil
		}
		return nil, fmt.Errorf("find coupon: %w", err)
	}
	if !coupon.Active {
		return rejected(CouponReasonInactive), nil
	}
	if coupon.Expired(now) {
		return rejected(CouponReasonExpired), nil
	}
	if !coupon.HasUsesLeft() {
		return rejected(CouponReasonExhausted), nil
	}
	if coupon.RestrictToEmail != nil && !strings.EqualFold(strings.TrimSpace(*coupon.RestrictToEmail), strings.TrimSpace(email)) {
		return rejected(CouponReasonEmailMismatch), nil
	}

	// The read above can be stale; the conditional increment decides.
	claimed, err := e.coupons.IncrementUsage(ctx, coupon.ID)
	if err != nil {
		return nil, fmt.Errorf("increment coupon usage: %w", err)
	}
	if !claimed {
		return rejected(CouponReasonExhausted), nil
	}

	discount, total := ComputeDiscount(coupon.DiscountType, coupon.DiscountValue, subtotal)
	return &CouponResult{
		Accepted: true,
		Total:    total,
		Discount: discount,
		CouponID: coupon.ID,
		Code:     coupon.Code,
	}, nil
}

// ComputeDiscount returns the discount for subtotal and the clamped post-discount total.
// The total is never negative and the discount never exceeds the subtotal.
func ComputeDiscount(discountType domain.DiscountType, value, subtotal decimal.Decimal) (discount, total decimal.Decimal) {
	if subtotal.IsNegative() {
		subtotal = decimal.Zero
	}
	switch discountType {
	case domain.DiscountPercentage:
		discount = subtotal.Mul(value).Div(hundred).Round(2)
	case domain.DiscountFixed:
		discount = decimal.Min(value, subtotal)
	default:
		discount = decimal.Zero
	}
	discount = clamp(discount, decimal.Zero, subtotal)
	total = decimal.Max(decimal.Zero, subtotal.Sub(discount)).Round(2)
	return discount, total
}
