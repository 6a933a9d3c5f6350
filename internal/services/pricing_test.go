package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"eventregistration/internal/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func timePtr(t time.Time) *time.Time { return &t }

func TestComputeBasePrice(t *testing.T) {
	deadline := time.Date(2026, 3, 1, 23, 59, 59, 0, time.UTC)
	policy := domain.EventPricingPolicy{
		Categories: map[domain.Category]domain.TierPrices{
			domain.CategoryYouth:     {EarlyBird: decPtr("80"), Regular: decPtr("100"), Late: decPtr("130")},
			domain.CategoryChaperone: {Regular: decPtr("60")},
		},
		EarlyBirdDeadline: &deadline,
		HousingOverrides: map[domain.HousingType]map[domain.Category]decimal.Decimal{
			domain.HousingOnCampus: {domain.CategoryYouth: dec("120")},
		},
		RoomPrices:       map[domain.RoomType]decimal.Decimal{domain.RoomSingle: dec("45")},
		MealPackagePrice: decPtr("25.50"),
	}

	tests := []struct {
		name          string
		category      domain.Category
		housing       domain.HousingType
		room          domain.RoomType
		meal          bool
		tier          domain.PriceTier
		now           time.Time
		want          string
		wantEarlyBird bool
		wantErr       error
	}{
		{
			name:          "early bird before deadline",
			category:      domain.CategoryYouth,
			housing:       domain.HousingOffCampus,
			now:           deadline.Add(-48 * time.Hour),
			want:          "80",
			wantEarlyBird: true,
		},
		{
			name:          "early bird at the deadline instant",
			category:      domain.CategoryYouth,
			housing:       domain.HousingOffCampus,
			now:           deadline,
			want:          "80",
			wantEarlyBird: true,
		},
		{
			name:     "regular after deadline",
			category: domain.CategoryYouth,
			housing:  domain.HousingOffCampus,
			now:      deadline.Add(time.Second),
			want:     "100",
		},
		{
			name:          "regular when category has no early bird price",
			category:      domain.CategoryChaperone,
			housing:       domain.HousingDayPass,
			now:           deadline.Add(-time.Hour),
			want:          "60",
			wantEarlyBird: true,
		},
		{
			name:     "late tier on request",
			category: domain.CategoryYouth,
			housing:  domain.HousingOffCampus,
			tier:     domain.PriceTierLate,
			now:      deadline.Add(time.Hour),
			want:     "130",
		},
		{
			name:     "late tier falls back to regular when unset",
			category: domain.CategoryChaperone,
			housing:  domain.HousingOffCampus,
			tier:     domain.PriceTierLate,
			now:      deadline.Add(time.Hour),
			want:     "60",
		},
		{
			name:          "housing override wins during early bird",
			category:      domain.CategoryYouth,
			housing:       domain.HousingOnCampus,
			now:           deadline.Add(-time.Hour),
			want:          "120",
			wantEarlyBird: true,
		},
		{
			name:     "room and meal add-ons on campus",
			category: domain.CategoryYouth,
			housing:  domain.HousingOnCampus,
			room:     domain.RoomSingle,
			meal:     true,
			now:      deadline.Add(time.Hour),
			want:     "190.50",
		},
		{
			name:     "room add-on ignored off campus",
			category: domain.CategoryYouth,
			housing:  domain.HousingOffCampus,
			room:     domain.RoomSingle,
			now:      deadline.Add(time.Hour),
			want:     "100",
		},
		{
			name:     "unpriced room adds nothing",
			category: domain.CategoryChaperone,
			housing:  domain.HousingOnCampus,
			room:     domain.RoomQuad,
			now:      deadline.Add(time.Hour),
			want:     "60",
		},
		{
			name:     "missing category price",
			category: domain.CategoryClergy,
			housing:  domain.HousingOffCampus,
			now:      deadline.Add(time.Hour),
			wantErr:  domain.ErrMissingPriceConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, earlyBird, err := ComputeBasePrice(policy, tt.category, tt.housing, tt.room, tt.meal, tt.tier, tt.now)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, dec(tt.want).Equal(got), "want %s, got %s", tt.want, got)
			assert.Equal(t, tt.wantEarlyBird, earlyBird)
		})
	}
}

func TestComputeBasePrice_EarlyBirdPrecedenceProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		early := decimal.NewFromInt(rapid.Int64Range(0, 10_000).Draw(t, "early"))
		regular := decimal.NewFromInt(rapid.Int64Range(0, 10_000).Draw(t, "regular"))
		deadline := time.Unix(rapid.Int64Range(1_600_000_000, 1_900_000_000).Draw(t, "deadline"), 0)
		offset := time.Duration(rapid.Int64Range(1, 1_000_000).Draw(t, "offset")) * time.Second

		policy := domain.EventPricingPolicy{
			Categories:        map[domain.Category]domain.TierPrices{domain.CategoryYouth: {EarlyBird: &early, Regular: &regular}},
			EarlyBirdDeadline: &deadline,
		}

		before, isEarly, err := ComputeBasePrice(policy, domain.CategoryYouth, domain.HousingOffCampus, "", false, domain.PriceTierAuto, deadline.Add(-offset))
		if err != nil {
			t.Fatal(err)
		}
		if !isEarly || !before.Equal(early) {
			t.Fatalf("before deadline: got %s (early=%v), want %s", before, isEarly, early)
		}
		after, isEarly, err := ComputeBasePrice(policy, domain.CategoryYouth, domain.HousingOffCampus, "", false, domain.PriceTierAuto, deadline.Add(offset))
		if err != nil {
			t.Fatal(err)
		}
		if isEarly || !after.Equal(regular) {
			t.Fatalf("after deadline: got %s (early=%v), want %s", after, isEarly, regular)
		}
	})
}

func TestComputeBasePrice_HousingOverrideProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		override := decimal.New(rapid.Int64Range(0, 1_000_000).Draw(t, "override"), -2)
		deadline := time.Unix(1_800_000_000, 0)
		now := deadline.Add(time.Duration(rapid.Int64Range(-1_000_000, 1_000_000).Draw(t, "offset")) * time.Second)

		policy := domain.EventPricingPolicy{
			Categories:        map[domain.Category]domain.TierPrices{domain.CategoryYouth: {EarlyBird: decPtr("10"), Regular: decPtr("20")}},
			EarlyBirdDeadline: &deadline,
			HousingOverrides: map[domain.HousingType]map[domain.Category]decimal.Decimal{
				domain.HousingOnCampus: {domain.CategoryYouth: override},
			},
		}
		got, _, err := ComputeBasePrice(policy, domain.CategoryYouth, domain.HousingOnCampus, "", false, domain.PriceTierAuto, now)
		if err != nil {
			t.Fatal(err)
		}
		if !got.Equal(override) {
			t.Fatalf("got %s, want override %s", got, override)
		}
	})
}

func TestPriceLineItems(t *testing.T) {
	policy := domain.EventPricingPolicy{
		Categories: map[domain.Category]domain.TierPrices{
			domain.CategoryYouth:     {Regular: decPtr("99.99")},
			domain.CategoryChaperone: {Regular: decPtr("50")},
		},
	}
	items := []domain.LineItemRequest{
		{Category: domain.CategoryYouth, Label: "female_under_18", Count: 3},
		{Category: domain.CategoryChaperone, Count: 2},
	}

	charge, err := PriceLineItems(policy, items, domain.HousingOffCampus, "", false, domain.PriceTierAuto, time.Now())
	require.NoError(t, err)
	require.Len(t, charge.LineItems, 2)
	assert.True(t, dec("299.97").Equal(charge.LineItems[0].Subtotal))
	assert.Equal(t, "female_under_18", charge.LineItems[0].Label)
	assert.True(t, dec("100").Equal(charge.LineItems[1].Subtotal))
	assert.True(t, dec("399.97").Equal(charge.Subtotal))
	assert.True(t, charge.Total.Equal(charge.Subtotal))
	assert.Equal(t, 5, charge.Headcount())
	assert.False(t, charge.IsEarlyBird)

	_, err = PriceLineItems(policy, []domain.LineItemRequest{{Category: domain.CategoryClergy, Count: 1}}, domain.HousingOffCampus, "", false, domain.PriceTierAuto, time.Now())
	require.ErrorIs(t, err, domain.ErrMissingPriceConfiguration)
}

func TestPriceLineItems_SubtotalIsSumOfLinesProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		youth := decimal.New(rapid.Int64Range(0, 100_000).Draw(t, "youth"), -2)
		clergy := decimal.New(rapid.Int64Range(0, 100_000).Draw(t, "clergy"), -2)
		policy := domain.EventPricingPolicy{
			Categories: map[domain.Category]domain.TierPrices{
				domain.CategoryYouth:  {Regular: &youth},
				domain.CategoryClergy: {Regular: &clergy},
			},
		}
		youthCount := rapid.IntRange(1, 200).Draw(t, "youthCount")
		clergyCount := rapid.IntRange(1, 20).Draw(t, "clergyCount")

		charge, err := PriceLineItems(policy, []domain.LineItemRequest{
			{Category: domain.CategoryYouth, Count: youthCount},
			{Category: domain.CategoryClergy, Count: clergyCount},
		}, domain.HousingOffCampus, "", false, domain.PriceTierAuto, time.Now())
		if err != nil {
			t.Fatal(err)
		}
		want := youth.Mul(decimal.NewFromInt(int64(youthCount))).Add(clergy.Mul(decimal.NewFromInt(int64(clergyCount))))
		if !charge.Subtotal.Equal(want) {
			t.Fatalf("subtotal %s, want %s", charge.Subtotal, want)
		}
		if charge.Subtotal.IsNegative() {
			t.Fatalf("negative subtotal %s", charge.Subtotal)
		}
	})
}
