package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"eventregistration/internal/domain"
)

const couponColumns = `id, event_id, code, active, discount_type, discount_value, expiration_date,
	usage_limit_type, max_uses, usage_count, restrict_to_email, created_at, updated_at`

type couponRepository struct {
	DB DBTX
}

func NewCouponRepository(db DBTX) domain.CouponRepository {
	return &couponRepository{DB: db}
}

func (r *couponRepository) Create(ctx context.Context, c *domain.Coupon) error {
	query := `
		INSERT INTO coupons (event_id, code, active, discount_type, discount_value, expiration_date,
			usage_limit_type, max_uses, usage_count, restrict_to_email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`
	err := r.DB.QueryRowContext(ctx, query,
		c.EventID, strings.ToUpper(c.Code), c.Active, string(c.DiscountType), c.DiscountValue, nullTime(c.ExpirationDate),
		string(c.UsageLimitType), nullInt(c.MaxUses), c.UsageCount, nullString(c.RestrictToEmail), c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: coupon code %q already exists for this event", domain.ErrConflict, c.Code)
	}
	return err
}

func (r *couponRepository) FindByCode(ctx context.Context, eventID, code string) (*domain.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE event_id = $1 AND upper(code) = upper($2)`
	c, err := scanCoupon(r.DB.QueryRowContext(ctx, query, eventID, strings.TrimSpace(code)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// IncrementUsage claims one redemption in a single conditional update. Concurrent callers
// racing for the last use are serialized by the row lock; the loser matches no row.
func (r *couponRepository) IncrementUsage(ctx context.Context, couponID string) (bool, error) {
	query := `
		UPDATE coupons
		SET usage_count = usage_count + 1, updated_at = now()
		WHERE id = $1 AND active
			AND (usage_limit_type = 'unlimited'
				OR (usage_limit_type = 'single_use' AND usage_count < 1)
				OR (usage_limit_type = 'limited' AND max_uses IS NOT NULL AND usage_count < max_uses))
	`
	result, err := r.DB.ExecContext(ctx, query, couponID)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *couponRepository) ListByEventID(ctx context.Context, eventID string) ([]*domain.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE event_id = $1 ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	coupons := make([]*domain.Coupon, 0)
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		coupons = append(coupons, c)
	}
	return coupons, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCoupon(row rowScanner) (*domain.Coupon, error) {
	c := &domain.Coupon{}
	var discountType, usageLimit string
	var expires sql.NullTime
	var maxUses sql.NullInt64
	var email sql.NullString
	if err := row.Scan(
		&c.ID, &c.EventID, &c.Code, &c.Active, &discountType, &c.DiscountValue, &expires,
		&usageLimit, &maxUses, &c.UsageCount, &email, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.DiscountType = domain.DiscountType(discountType)
	c.UsageLimitType = domain.UsageLimitType(usageLimit)
	c.ExpirationDate = timePtr(expires)
	c.MaxUses = intPtr(maxUses)
	c.RestrictToEmail = stringPtr(email)
	return c, nil
}
