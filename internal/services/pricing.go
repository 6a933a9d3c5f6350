package services

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"eventregistration/internal/domain"
)

// ComputeBasePrice returns the per-participant price for category and whether early-bird pricing
// was in effect at now.
//
// A housing override for the category replaces the tier price, even during early-bird. The late
// tier is only used when the caller asks for it.
func ComputeBasePrice(
	policy domain.EventPricingPolicy,
	category domain.Category,
	housing domain.HousingType,
	room domain.RoomType,
	includeMeal bool,
	tier domain.PriceTier,
	now time.Time,
) (decimal.Decimal, bool, error) {
	isEarlyBird := policy.EarlyBirdDeadline != nil && !now.After(*policy.EarlyBirdDeadline)

	price, ok := policy.HousingOverride(housing, category)
	if !ok {
		tierPrice := selectTierPrice(policy.Categories[category], tier, isEarlyBird)
		if tierPrice == nil {
			return decimal.Zero, isEarlyBird, fmt.Errorf("%w: no price for category %q", domain.ErrMissingPriceConfiguration, category)
		}
		price = *tierPrice
	}

	if housing == domain.HousingOnCampus && room != "" {
		if addOn, ok := policy.RoomPrices[room]; ok {
			price = price.Add(addOn)
		}
	}
	if includeMeal && policy.MealPackagePrice != nil {
		price = price.Add(*policy.MealPackagePrice)
	}
	return price, isEarlyBird, nil
}

func selectTierPrice(prices domain.TierPrices, tier domain.PriceTier, isEarlyBird bool) *decimal.Decimal {
	if tier == domain.PriceTierLate && prices.Late != nil {
		return prices.Late
	}
	if isEarlyBird && prices.EarlyBird != nil {
		return prices.EarlyBird
	}
	return prices.Regular
}

// PriceLineItems prices every requested line item and sums their subtotals.
func PriceLineItems(
	policy domain.EventPricingPolicy,
	items []domain.LineItemRequest,
	housing domain.HousingType,
	room domain.RoomType,
	includeMeal bool,
	tier domain.PriceTier,
	now time.Time,
) (*domain.RegistrationCharge, error) {
	charge := &domain.RegistrationCharge{
		LineItems: make([]domain.ChargeLineItem, 0, len(items)),
		Subtotal:  decimal.Zero,
	}
	for _, item := range items {
		unit, earlyBird, err := ComputeBasePrice(policy, item.Category, housing, room, includeMeal, tier, now)
		if err != nil {
			return nil, err
		}
		charge.IsEarlyBird = earlyBird
		sub := unit.Mul(decimal.NewFromInt(int64(item.Count)))
		charge.LineItems = append(charge.LineItems, domain.ChargeLineItem{
			Category:  item.Category,
			Label:     item.Label,
			Count:     item.Count,
			UnitPrice: unit.Round(2),
			Subtotal:  sub.Round(2),
		})
		charge.Subtotal = charge.Subtotal.Add(sub)
	}
	charge.Subtotal = charge.Subtotal.Round(2)
	charge.Total = charge.Subtotal
	return charge, nil
}
