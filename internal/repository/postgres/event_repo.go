package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"eventregistration/internal/domain"
)

const eventColumns = `id, organization_id, name, event_code, coupons_enabled, accepts_check_payments,
	check_payable_to, check_mailing_address, capacity_total, capacity_remaining, pricing_policy,
	created_at, updated_at`

type eventRepository struct {
	DB DBTX
}

func NewEventRepository(db DBTX) domain.EventRepository {
	return &eventRepository{
		DB: db,
	}
}

func (r *eventRepository) Create(ctx context.Context, e *domain.Event) error {
	pricing, err := json.Marshal(e.Pricing)
	if err != nil {
		return fmt.Errorf("marshal pricing policy: %w", err)
	}
	query := `
		INSERT INTO events (organization_id, name, event_code, coupons_enabled, accepts_check_payments,
			check_payable_to, check_mailing_address, capacity_total, capacity_remaining, pricing_policy,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`
	return r.DB.QueryRowContext(ctx, query,
		e.OrganizationID, e.Name, e.EventCode, e.CouponsEnabled, e.AcceptsCheckPayments,
		e.CheckPayableTo, e.CheckMailingAddress, nullInt(e.CapacityTotal), nullInt(e.CapacityRemaining), pricing,
		e.CreatedAt, e.UpdatedAt,
	).Scan(&e.ID)
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	return scanEvent(r.DB.QueryRowContext(ctx, query, id))
}

func (r *eventRepository) GetByEventCode(ctx context.Context, eventCode string) (*domain.Event, error) {
	code := strings.ToLower(strings.TrimSpace(eventCode))
	query := `SELECT ` + eventColumns + ` FROM events WHERE event_code = $1`
	return scanEvent(r.DB.QueryRowContext(ctx, query, code))
}

func (r *eventRepository) EventCodeExists(ctx context.Context, eventCode string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM events WHERE event_code = $1)`,
		strings.ToLower(strings.TrimSpace(eventCode))).Scan(&exists)
	return exists, err
}

func (r *eventRepository) UpdatePricing(ctx context.Context, eventID string, pricing domain.EventPricingPolicy) (*domain.Event, error) {
	raw, err := json.Marshal(pricing)
	if err != nil {
		return nil, fmt.Errorf("marshal pricing policy: %w", err)
	}
	query := `
		UPDATE events SET pricing_policy = $2, updated_at = now()
		WHERE id = $1
		RETURNING ` + eventColumns
	return scanEvent(r.DB.QueryRowContext(ctx, query, eventID, raw))
}

func scanEvent(row *sql.Row) (*domain.Event, error) {
	e := &domain.Event{}
	var capTotal, capRemaining sql.NullInt64
	var pricing []byte
	err := row.Scan(
		&e.ID, &e.OrganizationID, &e.Name, &e.EventCode, &e.CouponsEnabled, &e.AcceptsCheckPayments,
		&e.CheckPayableTo, &e.CheckMailingAddress, &capTotal, &capRemaining, &pricing,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	e.CapacityTotal = intPtr(capTotal)
	e.CapacityRemaining = intPtr(capRemaining)
	if len(pricing) > 0 {
		if err := json.Unmarshal(pricing, &e.Pricing); err != nil {
			return nil, fmt.Errorf("unmarshal pricing policy: %w", err)
		}
	}
	return e, nil
}

type capacityRepository struct {
	DB DBTX
}

// NewCapacityRepository returns the seat counter backed by events.capacity_remaining.
func NewCapacityRepository(db DBTX) domain.CapacityRepository {
	return &capacityRepository{DB: db}
}

func (r *capacityRepository) Reserve(ctx context.Context, eventID string, n int) (bool, error) {
	query := `
		UPDATE events
		SET capacity_remaining = GREATEST(0, capacity_remaining - $2), updated_at = now()
		WHERE id = $1 AND capacity_remaining IS NOT NULL AND capacity_remaining >= $2
	`
	result, err := r.DB.ExecContext(ctx, query, eventID, n)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

type organizationRepository struct {
	DB DBTX
}

func NewOrganizationRepository(db DBTX) domain.OrganizationRepository {
	return &organizationRepository{DB: db}
}

func (r *organizationRepository) Create(ctx context.Context, o *domain.Organization) error {
	query := `INSERT INTO organizations (name, payout_account_id) VALUES ($1, $2) RETURNING id`
	return r.DB.QueryRowContext(ctx, query, o.Name, nullString(o.PayoutAccountID)).Scan(&o.ID)
}

func (r *organizationRepository) GetByID(ctx context.Context, id string) (*domain.Organization, error) {
	o := &domain.Organization{}
	var payout sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id, name, payout_account_id FROM organizations WHERE id = $1`, id).
		Scan(&o.ID, &o.Name, &payout)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	o.PayoutAccountID = stringPtr(payout)
	return o, nil
}
