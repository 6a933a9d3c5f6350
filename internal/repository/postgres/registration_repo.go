package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"eventregistration/internal/domain"
)

const registrationColumns = `id, event_id, kind, confirmation_code, registrant_name, registrant_email,
	registrant_phone, group_name, housing_type, room_type, meal_package, headcount, line_items,
	subtotal, discount_amount, coupon_id, total_amount, deposit_due, payment_method, status,
	created_at, updated_at`

type registrationRepository struct {
	DB DBTX
}

func NewRegistrationRepository(db DBTX) domain.RegistrationRepository {
	return &registrationRepository{DB: db}
}

func (r *registrationRepository) Create(ctx context.Context, reg *domain.Registration) error {
	lineItems, err := json.Marshal(reg.LineItems)
	if err != nil {
		return fmt.Errorf("marshal line items: %w", err)
	}
	query := `
		INSERT INTO registrations (event_id, kind, confirmation_code, registrant_name, registrant_email,
			registrant_phone, group_name, housing_type, room_type, meal_package, headcount, line_items,
			subtotal, discount_amount, coupon_id, total_amount, deposit_due, payment_method, status,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING id
	`
	err = r.DB.QueryRowContext(ctx, query,
		reg.EventID, string(reg.Kind), reg.ConfirmationCode, reg.RegistrantName, reg.RegistrantEmail,
		reg.RegistrantPhone, reg.GroupName, string(reg.HousingType), string(reg.RoomType), reg.MealPackage, reg.Headcount, lineItems,
		reg.Subtotal, reg.DiscountAmount, nullString(reg.CouponID), reg.TotalAmount, reg.DepositDue, string(reg.PaymentMethod), string(reg.Status),
		reg.CreatedAt, reg.UpdatedAt,
	).Scan(&reg.ID)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateCode
	}
	return err
}

func (r *registrationRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM registrations WHERE confirmation_code = $1)`, code).Scan(&exists)
	return exists, err
}

func (r *registrationRepository) GetByID(ctx context.Context, id string) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *registrationRepository) GetByConfirmationCode(ctx context.Context, code string) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE confirmation_code = $1`
	return r.getOne(ctx, query, code)
}

func (r *registrationRepository) getOne(ctx context.Context, query string, arg string) (*domain.Registration, error) {
	reg, err := scanRegistration(r.DB.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return reg, nil
}

func (r *registrationRepository) UpdateStatus(ctx context.Context, id string, status domain.RegistrationStatus) error {
	result, err := r.DB.ExecContext(ctx, `UPDATE registrations SET status = $2, updated_at = now() WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *registrationRepository) ListByEventID(ctx context.Context, eventID string, params domain.PaginationParams) ([]*domain.Registration, int, error) {
	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM registrations WHERE event_id = $1`, eventID).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := `SELECT ` + registrationColumns + `
		FROM registrations
		WHERE event_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, eventID, params.PageSize, params.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	regs := make([]*domain.Registration, 0)
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, 0, err
		}
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return regs, total, nil
}

func scanRegistration(row rowScanner) (*domain.Registration, error) {
	reg := &domain.Registration{}
	var kind, housing, room, method, status string
	var lineItems []byte
	var couponID sql.NullString
	if err := row.Scan(
		&reg.ID, &reg.EventID, &kind, &reg.ConfirmationCode, &reg.RegistrantName, &reg.RegistrantEmail,
		&reg.RegistrantPhone, &reg.GroupName, &housing, &room, &reg.MealPackage, &reg.Headcount, &lineItems,
		&reg.Subtotal, &reg.DiscountAmount, &couponID, &reg.TotalAmount, &reg.DepositDue, &method, &status,
		&reg.CreatedAt, &reg.UpdatedAt,
	); err != nil {
		return nil, err
	}
	reg.Kind = domain.RegistrationKind(kind)
	reg.HousingType = domain.HousingType(housing)
	reg.RoomType = domain.RoomType(room)
	reg.PaymentMethod = domain.PaymentMethod(method)
	reg.Status = domain.RegistrationStatus(status)
	reg.CouponID = stringPtr(couponID)
	if len(lineItems) > 0 {
		if err := json.Unmarshal(lineItems, &reg.LineItems); err != nil {
			return nil, fmt.Errorf("unmarshal line items: %w", err)
		}
	}
	return reg, nil
}
