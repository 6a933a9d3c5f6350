package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category is the participant category a price applies to.
type Category string

const (
	CategoryYouth      Category = "youth"
	CategoryChaperone  Category = "chaperone"
	CategoryClergy     Category = "clergy"
	CategoryIndividual Category = "individual"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryYouth, CategoryChaperone, CategoryClergy, CategoryIndividual:
		return true
	}
	return false
}

// HousingType selects where a participant stays.
type HousingType string

const (
	HousingOnCampus  HousingType = "on_campus"
	HousingOffCampus HousingType = "off_campus"
	HousingDayPass   HousingType = "day_pass"
)

// Valid reports whether h is a known housing type.
func (h HousingType) Valid() bool {
	switch h {
	case HousingOnCampus, HousingOffCampus, HousingDayPass:
		return true
	}
	return false
}

// RoomType is an on-campus room occupancy option.
type RoomType string

const (
	RoomSingle RoomType = "single"
	RoomDouble RoomType = "double"
	RoomTriple RoomType = "triple"
	RoomQuad   RoomType = "quad"
)

// Valid reports whether r is a known room type.
func (r RoomType) Valid() bool {
	switch r {
	case RoomSingle, RoomDouble, RoomTriple, RoomQuad:
		return true
	}
	return false
}

// PriceTier lets the caller pick the late tier explicitly. The empty value (PriceTierAuto)
// selects early-bird or regular pricing by date.
type PriceTier string

const (
	PriceTierAuto PriceTier = ""
	PriceTierLate PriceTier = "late"
)

// Valid reports whether t is a known tier selector.
func (t PriceTier) Valid() bool {
	return t == PriceTierAuto || t == PriceTierLate
}

// TierPrices holds the tiered prices of one category. A nil price is not configured.
type TierPrices struct {
	EarlyBird *decimal.Decimal `json:"early_bird,omitempty"`
	Regular   *decimal.Decimal `json:"regular,omitempty"`
	Late      *decimal.Decimal `json:"late,omitempty"`
}

// DepositPolicy determines the amount due upfront.
// Percentage takes precedence over FixedAmount when both are set.
type DepositPolicy struct {
	RequireFullPayment bool             `json:"require_full_payment"`
	Percentage         *decimal.Decimal `json:"percentage,omitempty"`
	FixedAmount        *decimal.Decimal `json:"fixed_amount,omitempty"`
}

// EventPricingPolicy is the read-only pricing snapshot of an event.
// swagger:model EventPricingPolicy
type EventPricingPolicy struct {
	Categories        map[Category]TierPrices                      `json:"categories"`
	EarlyBirdDeadline *time.Time                                   `json:"early_bird_deadline,omitempty"`
	LateDeadline      *time.Time                                   `json:"late_deadline,omitempty"`
	HousingOverrides  map[HousingType]map[Category]decimal.Decimal `json:"housing_overrides,omitempty"`
	RoomPrices        map[RoomType]decimal.Decimal                 `json:"room_prices,omitempty"`
	MealPackagePrice  *decimal.Decimal                             `json:"meal_package_price,omitempty"`
	Deposit           DepositPolicy                                `json:"deposit"`
}

// HousingOverride returns the housing-specific price for the category, if one is configured.
func (p EventPricingPolicy) HousingOverride(housing HousingType, category Category) (decimal.Decimal, bool) {
	byCategory, ok := p.HousingOverrides[housing]
	if !ok {
		return decimal.Zero, false
	}
	price, ok := byCategory[category]
	return price, ok
}

// ChargeLineItem is one priced line of a registration.
type ChargeLineItem struct {
	Category  Category        `json:"category"`
	Label     string          `json:"label,omitempty"`
	Count     int             `json:"count"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// AppliedDiscount records the coupon that reduced a charge.
type AppliedDiscount struct {
	CouponID string          `json:"coupon_id"`
	Code     string          `json:"code"`
	Amount   decimal.Decimal `json:"amount"`
}

// RegistrationCharge is the computed, ephemeral price breakdown of one registration attempt.
type RegistrationCharge struct {
	LineItems        []ChargeLineItem `json:"line_items"`
	Subtotal         decimal.Decimal  `json:"subtotal"`
	Discount         *AppliedDiscount `json:"discount,omitempty"`
	Total            decimal.Decimal  `json:"total"`
	DepositDue       decimal.Decimal  `json:"deposit_due"`
	BalanceRemaining decimal.Decimal  `json:"balance_remaining"`
	IsEarlyBird      bool             `json:"is_early_bird"`
}

// Headcount returns the number of participants across all line items.
func (c *RegistrationCharge) Headcount() int {
	n := 0
	for _, li := range c.LineItems {
		n += li.Count
	}
	return n
}

// DiscountAmount returns the applied discount or zero.
func (c *RegistrationCharge) DiscountAmount() decimal.Decimal {
	if c.Discount == nil {
		return decimal.Zero
	}
	return c.Discount.Amount
}
