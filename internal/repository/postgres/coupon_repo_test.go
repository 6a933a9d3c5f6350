package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"eventregistration/internal/domain"
)

var couponCols = []string{"id", "event_id", "code", "active", "discount_type", "discount_value", "expiration_date",
	"usage_limit_type", "max_uses", "usage_count", "restrict_to_email", "created_at", "updated_at"}

func TestCouponRepository_Create(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		mock    func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name: "success",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO coupons`).
					WithArgs("ev-1", "SAVE10", true, "percentage", sqlmock.AnyArg(), nil,
						"limited", int64(3), 0, nil, now, now).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("cp-1"))
			},
		},
		{
			name: "duplicate code",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO coupons`).
					WillReturnError(&pq.Error{Code: "23505"})
			},
			wantErr: domain.ErrConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			tt.mock(mock)
			maxUses := 3
			c := &domain.Coupon{
				EventID: "ev-1", Code: "save10", Active: true,
				DiscountType: domain.DiscountPercentage, DiscountValue: decimal.NewFromInt(10),
				UsageLimitType: domain.UsageLimited, MaxUses: &maxUses,
				CreatedAt: now, UpdatedAt: now,
			}
			err = NewCouponRepository(db).Create(ctx, c)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, "cp-1", c.ID)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCouponRepository_FindByCode(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		mock       func(mock sqlmock.Sqlmock)
		wantErr    error
		assertFunc func(t *testing.T, c *domain.Coupon)
	}{
		{
			name: "found case-insensitively",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FROM coupons WHERE event_id = \$1 AND upper\(code\) = upper\(\$2\)`).
					WithArgs("ev-1", "save10").
					WillReturnRows(sqlmock.NewRows(couponCols).
						AddRow("cp-1", "ev-1", "SAVE10", true, "fixed", "25.00", now.Add(24*time.Hour),
							"single_use", nil, int64(0), "a@example.com", now, now))
			},
			assertFunc: func(t *testing.T, c *domain.Coupon) {
				require.Equal(t, domain.DiscountFixed, c.DiscountType)
				require.True(t, decimal.NewFromInt(25).Equal(c.DiscountValue))
				require.Equal(t, domain.UsageSingleUse, c.UsageLimitType)
				require.Nil(t, c.MaxUses)
				require.NotNil(t, c.ExpirationDate)
				require.Equal(t, "a@example.com", *c.RestrictToEmail)
				require.True(t, c.HasUsesLeft())
			},
		},
		{
			name: "not found",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FROM coupons`).
					WithArgs("ev-1", "save10").
					WillReturnError(sql.ErrNoRows)
			},
			wantErr: domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			tt.mock(mock)
			got, err := NewCouponRepository(db).FindByCode(ctx, "ev-1", " save10 ")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.assertFunc(t, got)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCouponRepository_IncrementUsage(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{name: "use claimed", affected: 1, want: true},
		{name: "no uses left", affected: 0, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectExec(`UPDATE coupons\s+SET usage_count = usage_count \+ 1`).
				WithArgs("cp-1").
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			ok, err := NewCouponRepository(db).IncrementUsage(context.Background(), "cp-1")
			require.NoError(t, err)
			require.Equal(t, tt.want, ok)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCouponRepository_ListByEventID(t *testing.T) {
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM coupons WHERE event_id = \$1 ORDER BY created_at DESC`).
		WithArgs("ev-1").
		WillReturnRows(sqlmock.NewRows(couponCols).
			AddRow("cp-2", "ev-1", "GROUP", true, "percentage", "15", nil, "unlimited", nil, int64(7), nil, now, now).
			AddRow("cp-1", "ev-1", "SAVE10", false, "fixed", "10", nil, "limited", int64(5), int64(5), nil, now, now))

	coupons, err := NewCouponRepository(db).ListByEventID(context.Background(), "ev-1")
	require.NoError(t, err)
	require.Len(t, coupons, 2)
	require.Equal(t, "GROUP", coupons[0].Code)
	require.Equal(t, 7, coupons[0].UsageCount)
	require.False(t, coupons[1].Active)
	require.Equal(t, 5, *coupons[1].MaxUses)
	require.NoError(t, mock.ExpectationsWereMet())
}
