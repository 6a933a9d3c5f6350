package services

import (
	"github.com/shopspring/decimal"

	"eventregistration/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// DepositSplit is the upfront amount and what is left to pay later.
type DepositSplit struct {
	DepositDue       decimal.Decimal
	BalanceRemaining decimal.Decimal
}

// SplitDeposit applies the deposit policy to total. Precedence: full payment, percentage,
// fixed amount, nothing upfront. The deposit is rounded to cents once and the balance is
// derived from it, so DepositDue + BalanceRemaining == total.
func SplitDeposit(total decimal.Decimal, policy domain.DepositPolicy) DepositSplit {
	total = total.Round(2)
	var deposit decimal.Decimal
	switch {
	case policy.RequireFullPayment:
		deposit = total
	case policy.Percentage != nil:
		deposit = total.Mul(*policy.Percentage).Div(hundred)
	case policy.FixedAmount != nil:
		deposit = *policy.FixedAmount
	default:
		deposit = decimal.Zero
	}
	deposit = clamp(deposit.Round(2), decimal.Zero, total)
	return DepositSplit{
		DepositDue:       deposit,
		BalanceRemaining: total.Sub(deposit),
	}
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}
