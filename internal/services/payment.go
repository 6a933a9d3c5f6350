package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"eventregistration/internal/domain"
)

var (
	errAlreadyProcessed = errors.New("payment already processed")
	errSettled          = fmt.Errorf("%w: registration is paid in full", domain.ErrInvalidTransition)
)

type paymentService struct {
	eventRepo        domain.EventRepository
	registrationRepo domain.RegistrationRepository
	balances         domain.PaymentBalanceRepository
	payments         domain.PaymentRepository
	uow              domain.UnitOfWork
	checkout         *CardCheckout
	notifier         domain.Notifier
	logger           *slog.Logger
	tracer           trace.Tracer
	now              func() time.Time
}

// NewPaymentService returns the PaymentService handling confirmations and organizer payment actions.
func NewPaymentService(
	eventRepo domain.EventRepository,
	registrationRepo domain.RegistrationRepository,
	balances domain.PaymentBalanceRepository,
	payments domain.PaymentRepository,
	uow domain.UnitOfWork,
	checkout *CardCheckout,
	notifier domain.Notifier,
	logger *slog.Logger,
) domain.PaymentService {
	return &paymentService{
		eventRepo:        eventRepo,
		registrationRepo: registrationRepo,
		balances:         balances,
		payments:         payments,
		uow:              uow,
		checkout:         checkout,
		notifier:         notifier,
		logger:           logger,
		tracer:           otel.Tracer("eventregistration/services/payment"),
		now:              time.Now,
	}
}

// ConfirmCardPayment applies a verified gateway completion. Redelivered completions are no-ops.
func (s *paymentService) ConfirmCardPayment(ctx context.Context, completion domain.GatewayCompletion) error {
	ctx, span := s.tracer.Start(ctx, "payment.confirm_card",
		trace.WithAttributes(attribute.String("gateway.intent_id", completion.IntentID)),
	)
	defer span.End()

	payment, err := s.payments.GetByGatewayIntentID(ctx, completion.IntentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("get payment: %w", err)
	}
	if payment.Status == domain.PaymentRecordSucceeded {
		return nil
	}

	amount := payment.Amount
	if completion.AmountCents > 0 {
		amount = FromCents(completion.AmountCents)
	}

	var reg *domain.Registration
	var balance *domain.PaymentBalance
	var overpaid bool
	err = s.uow.Do(ctx, func(ctx context.Context, st domain.TxStores) error {
		ok, err := st.Payments.MarkSucceeded(ctx, payment.ID)
		if err != nil {
			return fmt.Errorf("mark payment succeeded: %w", err)
		}
		if !ok {
			return errAlreadyProcessed
		}
		reg, balance, err = s.applyPayment(ctx, st, payment.RegistrationID, amount)
		if errors.Is(err, errSettled) {
			// The money was captured, so the payment stays succeeded and the ledger stays closed.
			overpaid = true
			return nil
		}
		return err
	})
	if errors.Is(err, errAlreadyProcessed) {
		return nil
	}
	if err != nil {
		span.RecordError(err)
		return err
	}
	if overpaid {
		span.SetAttributes(attribute.Bool("payment.overpaid", true))
		s.logger.WarnContext(ctx, "card payment captured after registration was paid in full, refund required",
			"registration_id", payment.RegistrationID,
			"payment_id", payment.ID,
			"gateway_intent_id", completion.IntentID,
			"amount", amount.StringFixed(2),
		)
		return nil
	}

	s.sendConfirmation(ctx, reg, balance)
	return nil
}

// applyPayment books amount on the registration's ledger and completes the registration.
// It returns errSettled when the ledger is already paid in full.
func (s *paymentService) applyPayment(ctx context.Context, st domain.TxStores, registrationID string, amount decimal.Decimal) (*domain.Registration, *domain.PaymentBalance, error) {
	reg, err := st.Registrations.GetByID(ctx, registrationID)
	if err != nil {
		return nil, nil, fmt.Errorf("get registration: %w", err)
	}
	balance, err := st.Balances.GetByRegistrationID(ctx, registrationID)
	if err != nil {
		return nil, nil, fmt.Errorf("get payment balance: %w", err)
	}
	if balance.PaymentStatus == domain.PaymentPaidFull {
		return reg, balance, errSettled
	}
	if err := balance.ApplyPayment(amount, reg.DepositDue, s.now()); err != nil {
		return nil, nil, fmt.Errorf("apply payment: %w", err)
	}
	if err := st.Balances.Update(ctx, balance); err != nil {
		return nil, nil, fmt.Errorf("update payment balance: %w", err)
	}
	if reg.Status != domain.RegistrationCompleted {
		if !reg.Status.CanTransitionTo(domain.RegistrationCompleted) {
			return nil, nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, reg.Status, domain.RegistrationCompleted)
		}
		if err := st.Registrations.UpdateStatus(ctx, reg.ID, domain.RegistrationCompleted); err != nil {
			return nil, nil, fmt.Errorf("update registration status: %w", err)
		}
		reg.Status = domain.RegistrationCompleted
	}
	return reg, balance, nil
}

func (s *paymentService) sendConfirmation(ctx context.Context, reg *domain.Registration, balance *domain.PaymentBalance) {
	eventName := ""
	if ev, err := s.eventRepo.GetByID(ctx, reg.EventID); err == nil {
		eventName = ev.Name
	}
	data := &domain.RegistrationConfirmationEmailData{
		Name:             reg.RegistrantName,
		EventName:        eventName,
		ConfirmationCode: reg.ConfirmationCode,
		AmountPaid:       balance.AmountPaid.StringFixed(2),
		AmountRemaining:  balance.AmountRemaining.StringFixed(2),
	}
	if err := s.notifier.Send(ctx, domain.TemplateRegistrationConfirmation, reg.RegistrantEmail, data); err != nil {
		s.logger.ErrorContext(ctx, "confirmation notification failed",
			"registration_id", reg.ID,
			"confirmation_code", reg.ConfirmationCode,
			"template", domain.TemplateRegistrationConfirmation,
			"err", err,
		)
	}
}

// RetryCardPayment creates a fresh checkout for a card registration that still owes money.
// The first checkout asks for the deposit; later ones for the remaining balance.
func (s *paymentService) RetryCardPayment(ctx context.Context, registrationID, organizationID string) (*domain.RegistrationResult, error) {
	reg, event, err := s.authorize(ctx, registrationID, organizationID)
	if err != nil {
		return nil, err
	}
	if reg.PaymentMethod != domain.PaymentCard {
		return nil, fmt.Errorf("%w: registration is not paid by card", domain.ErrInvalidInput)
	}
	if reg.Status == domain.RegistrationCancelled {
		return nil, fmt.Errorf("%w: registration is cancelled", domain.ErrInvalidTransition)
	}
	balance, err := s.balances.GetByRegistrationID(ctx, reg.ID)
	if err != nil {
		return nil, fmt.Errorf("get payment balance: %w", err)
	}
	if !balance.AmountRemaining.IsPositive() {
		return nil, fmt.Errorf("%w: nothing left to pay", domain.ErrInvalidInput)
	}
	amount := balance.AmountRemaining
	if balance.AmountPaid.IsZero() && reg.DepositDue.IsPositive() && reg.DepositDue.LessThan(amount) {
		amount = reg.DepositDue
	}

	if err := s.retirePendingCheckouts(ctx, reg.ID); err != nil {
		return nil, err
	}
	payment, err := s.checkout.Start(ctx, event, reg, amount)
	if err != nil {
		return nil, err
	}
	return &domain.RegistrationResult{
		RegistrationID:   reg.ID,
		ConfirmationCode: reg.ConfirmationCode,
		Kind:             reg.Kind,
		Subtotal:         reg.Subtotal,
		DiscountAmount:   reg.DiscountAmount,
		CouponApplied:    reg.CouponID != nil,
		TotalAmount:      reg.TotalAmount,
		DepositDue:       reg.DepositDue,
		BalanceRemaining: balance.AmountRemaining,
		PaymentMethod:    reg.PaymentMethod,
		Status:           reg.Status,
		CheckoutURL:      payment.CheckoutURL,
	}, nil
}

// retirePendingCheckouts expires the registration's open checkouts and marks their payments failed,
// leaving only the next checkout payable. A retired checkout that is paid anyway is still booked by
// ConfirmCardPayment.
func (s *paymentService) retirePendingCheckouts(ctx context.Context, registrationID string) error {
	pending, err := s.payments.ListPendingByRegistrationID(ctx, registrationID)
	if err != nil {
		return fmt.Errorf("list pending payments: %w", err)
	}
	for _, p := range pending {
		if p.GatewayIntentID != nil {
			if err := s.checkout.Expire(ctx, *p.GatewayIntentID); err != nil {
				s.logger.WarnContext(ctx, "expire checkout failed",
					"registration_id", registrationID,
					"gateway_intent_id", *p.GatewayIntentID,
					"err", err,
				)
			}
		}
		if _, err := s.payments.MarkFailed(ctx, p.ID); err != nil {
			return fmt.Errorf("mark payment failed: %w", err)
		}
	}
	return nil
}

// RecordCheckPayment books a received check against the registration's ledger.
func (s *paymentService) RecordCheckPayment(ctx context.Context, registrationID, organizationID string, amount decimal.Decimal) (*domain.PaymentBalance, error) {
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidInput)
	}
	reg, _, err := s.authorize(ctx, registrationID, organizationID)
	if err != nil {
		return nil, err
	}
	if reg.PaymentMethod != domain.PaymentCheck {
		return nil, fmt.Errorf("%w: registration is not paid by check", domain.ErrInvalidInput)
	}
	var balance *domain.PaymentBalance
	err = s.uow.Do(ctx, func(ctx context.Context, st domain.TxStores) error {
		var err error
		_, balance, err = s.applyPayment(ctx, st, registrationID, amount)
		if err != nil {
			return err
		}
		now := s.now()
		return st.Payments.Create(ctx, &domain.Payment{
			RegistrationID: registrationID,
			Method:         domain.PaymentCheck,
			Status:         domain.PaymentRecordSucceeded,
			Amount:         amount,
			PlatformFee:    decimal.Zero,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return balance, nil
}

// authorize loads the registration and its event and checks the event belongs to organizationID.
func (s *paymentService) authorize(ctx context.Context, registrationID, organizationID string) (*domain.Registration, *domain.Event, error) {
	reg, err := s.registrationRepo.GetByID(ctx, registrationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, domain.ErrNotFound
		}
		return nil, nil, fmt.Errorf("get registration: %w", err)
	}
	event, err := s.eventRepo.GetByID(ctx, reg.EventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, domain.ErrNotFound
		}
		return nil, nil, fmt.Errorf("get event: %w", err)
	}
	if event.OrganizationID != organizationID {
		return nil, nil, domain.ErrForbidden
	}
	return reg, event, nil
}

// GetRegistrationByCode returns the registration and ledger for a confirmation or access code.
func (s *paymentService) GetRegistrationByCode(ctx context.Context, code string) (*domain.RegistrationDetails, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", domain.ErrInvalidInput)
	}
	reg, err := s.registrationRepo.GetByConfirmationCode(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	balance, err := s.balances.GetByRegistrationID(ctx, reg.ID)
	if err != nil {
		return nil, fmt.Errorf("get payment balance: %w", err)
	}
	return &domain.RegistrationDetails{Registration: reg, Balance: balance}, nil
}
