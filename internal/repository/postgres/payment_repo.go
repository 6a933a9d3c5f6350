package postgres

import (
	"context"
	"database/sql"
	"errors"

	"eventregistration/internal/domain"
)

type paymentBalanceRepository struct {
	DB DBTX
}

func NewPaymentBalanceRepository(db DBTX) domain.PaymentBalanceRepository {
	return &paymentBalanceRepository{DB: db}
}

func (r *paymentBalanceRepository) Create(ctx context.Context, b *domain.PaymentBalance) error {
	query := `
		INSERT INTO payment_balances (registration_id, total_amount_due, amount_paid, amount_remaining,
			late_fees_applied, payment_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	return r.DB.QueryRowContext(ctx, query,
		b.RegistrationID, b.TotalAmountDue, b.AmountPaid, b.AmountRemaining,
		b.LateFeesApplied, string(b.PaymentStatus), b.CreatedAt, b.UpdatedAt,
	).Scan(&b.ID)
}

// GetByRegistrationID locks the ledger row when called inside a transaction so concurrent
// payments against one registration apply one after the other.
func (r *paymentBalanceRepository) GetByRegistrationID(ctx context.Context, registrationID string) (*domain.PaymentBalance, error) {
	query := `
		SELECT id, registration_id, total_amount_due, amount_paid, amount_remaining, late_fees_applied,
			payment_status, created_at, updated_at
		FROM payment_balances
		WHERE registration_id = $1
	`
	if _, inTx := r.DB.(*sql.Tx); inTx {
		query += ` FOR UPDATE`
	}
	b := &domain.PaymentBalance{}
	var status string
	err := r.DB.QueryRowContext(ctx, query, registrationID).Scan(
		&b.ID, &b.RegistrationID, &b.TotalAmountDue, &b.AmountPaid, &b.AmountRemaining, &b.LateFeesApplied,
		&status, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	b.PaymentStatus = domain.PaymentStatus(status)
	return b, nil
}

func (r *paymentBalanceRepository) Update(ctx context.Context, b *domain.PaymentBalance) error {
	query := `
		UPDATE payment_balances
		SET amount_paid = $2, amount_remaining = $3, late_fees_applied = $4, payment_status = $5, updated_at = $6
		WHERE id = $1
	`
	result, err := r.DB.ExecContext(ctx, query,
		b.ID, b.AmountPaid, b.AmountRemaining, b.LateFeesApplied, string(b.PaymentStatus), b.UpdatedAt)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type paymentRepository struct {
	DB DBTX
}

func NewPaymentRepository(db DBTX) domain.PaymentRepository {
	return &paymentRepository{DB: db}
}

func (r *paymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	query := `
		INSERT INTO payments (registration_id, method, status, amount, platform_fee, gateway_intent_id,
			checkout_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	return r.DB.QueryRowContext(ctx, query,
		p.RegistrationID, string(p.Method), string(p.Status), p.Amount, p.PlatformFee,
		nullString(p.GatewayIntentID), nullString(p.CheckoutURL), p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
}

const paymentColumns = `id, registration_id, method, status, amount, platform_fee, gateway_intent_id, checkout_url,
	created_at, updated_at`

func (r *paymentRepository) GetByGatewayIntentID(ctx context.Context, intentID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE gateway_intent_id = $1`
	p, err := scanPayment(r.DB.QueryRowContext(ctx, query, intentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *paymentRepository) ListPendingByRegistrationID(ctx context.Context, registrationID string) ([]*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE registration_id = $1 AND method = 'card' AND status = 'pending'
		ORDER BY created_at ASC`
	rows, err := r.DB.QueryContext(ctx, query, registrationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	payments := make([]*domain.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}

// MarkSucceeded also accepts failed payments: a retired checkout that is paid anyway was still captured.
func (r *paymentRepository) MarkSucceeded(ctx context.Context, id string) (bool, error) {
	return r.setStatus(ctx,
		`UPDATE payments SET status = 'succeeded', updated_at = now() WHERE id = $1 AND status IN ('pending', 'failed')`, id)
}

func (r *paymentRepository) MarkFailed(ctx context.Context, id string) (bool, error) {
	return r.setStatus(ctx,
		`UPDATE payments SET status = 'failed', updated_at = now() WHERE id = $1 AND status = 'pending'`, id)
}

func (r *paymentRepository) setStatus(ctx context.Context, query, id string) (bool, error) {
	result, err := r.DB.ExecContext(ctx, query, id)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	p := &domain.Payment{}
	var method, status string
	var intent, checkoutURL sql.NullString
	if err := row.Scan(
		&p.ID, &p.RegistrationID, &method, &status, &p.Amount, &p.PlatformFee, &intent, &checkoutURL,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Method = domain.PaymentMethod(method)
	p.Status = domain.PaymentRecordStatus(status)
	p.GatewayIntentID = stringPtr(intent)
	p.CheckoutURL = stringPtr(checkoutURL)
	return p, nil
}
