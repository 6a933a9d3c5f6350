package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"eventregistration/internal/domain"
)

const maxHeadcountPerRegistration = 500

var emailRegexp = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

type registrationService struct {
	eventRepo        domain.EventRepository
	registrationRepo domain.RegistrationRepository
	payments         domain.PaymentRepository
	uow              domain.UnitOfWork
	coupons          *CouponEngine
	codes            *CodeIssuer
	capacity         CapacityLedger
	checkout         *CardCheckout
	notifier         domain.Notifier
	logger           *slog.Logger
	maxAttempts      int
	tracer           trace.Tracer
	now              func() time.Time
}

// NewRegistrationService wires the registration orchestrator. codeMaxAttempts bounds both code
// generation and inserts that lose a unique-code race.
func NewRegistrationService(
	eventRepo domain.EventRepository,
	registrationRepo domain.RegistrationRepository,
	couponRepo domain.CouponRepository,
	payments domain.PaymentRepository,
	uow domain.UnitOfWork,
	checkout *CardCheckout,
	notifier domain.Notifier,
	codeMaxAttempts int,
	logger *slog.Logger,
) domain.RegistrationService {
	if codeMaxAttempts <= 0 {
		codeMaxAttempts = DefaultCodeMaxAttempts
	}
	return &registrationService{
		eventRepo:        eventRepo,
		registrationRepo: registrationRepo,
		payments:         payments,
		uow:              uow,
		coupons:          NewCouponEngine(couponRepo),
		codes:            NewRegistrationCodeIssuer(registrationRepo.CodeExists, codeMaxAttempts),
		checkout:         checkout,
		notifier:         notifier,
		logger:           logger,
		maxAttempts:      codeMaxAttempts,
		tracer:           otel.Tracer("eventregistration/services/registration"),
		now:              time.Now,
	}
}

// ValidateRegistrationRequest normalizes req and rejects missing or unknown fields before any pricing.
func ValidateRegistrationRequest(req *domain.RegistrationRequest) error {
	var errs []string
	req.EventID = strings.TrimSpace(req.EventID)
	req.Registrant.Name = strings.TrimSpace(req.Registrant.Name)
	req.Registrant.Email = strings.ToLower(strings.TrimSpace(req.Registrant.Email))
	req.CouponCode = strings.TrimSpace(req.CouponCode)

	if req.EventID == "" {
		errs = append(errs, "event_id is required")
	}
	if req.Registrant.Name == "" {
		errs = append(errs, "registrant name is required")
	}
	if !emailRegexp.MatchString(req.Registrant.Email) {
		errs = append(errs, "registrant email is invalid")
	}
	if len(req.LineItems) == 0 {
		errs = append(errs, "at least one line item is required")
	}
	headcount := 0
	for i, li := range req.LineItems {
		if !li.Category.Valid() {
			errs = append(errs, fmt.Sprintf("line_items[%d]: unknown category %q", i, li.Category))
		}
		if li.Count < 1 {
			errs = append(errs, fmt.Sprintf("line_items[%d]: count must be at least 1", i))
		}
		headcount += li.Count
	}
	if headcount > maxHeadcountPerRegistration {
		errs = append(errs, fmt.Sprintf("headcount must not exceed %d", maxHeadcountPerRegistration))
	}
	if !req.HousingType.Valid() {
		errs = append(errs, fmt.Sprintf("unknown housing_type %q", req.HousingType))
	}
	if req.RoomType != "" && !req.RoomType.Valid() {
		errs = append(errs, fmt.Sprintf("unknown room_type %q", req.RoomType))
	}
	if !req.PaymentMethod.Valid() {
		errs = append(errs, fmt.Sprintf("unknown payment_method %q", req.PaymentMethod))
	}
	if !req.PriceTier.Valid() {
		errs = append(errs, fmt.Sprintf("unknown price_tier %q", req.PriceTier))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(errs, "; "))
	}
	return nil
}

// Register runs one registration attempt. Everything before the registration is persisted either
// completes or fails with no registration written; the coupon redemption claimed while
// discounting is the one write that is kept on failure. Payment setup and notification failures
// after persistence are logged and reported through the result instead of failing the call.
func (s *registrationService) Register(ctx context.Context, req domain.RegistrationRequest) (*domain.RegistrationResult, error) {
	ctx, span := s.tracer.Start(ctx, "registration.register",
		trace.WithAttributes(
			attribute.String("event.id", req.EventID),
			attribute.String("payment.method", string(req.PaymentMethod)),
		),
	)
	defer span.End()

	result, err := s.register(ctx, span, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "register")
		return nil, err
	}
	return result, nil
}

func (s *registrationService) register(ctx context.Context, span trace.Span, req domain.RegistrationRequest) (*domain.RegistrationResult, error) {
	s.advance(ctx, span, domain.StateInitiated, req.EventID)
	if err := ValidateRegistrationRequest(&req); err != nil {
		return nil, err
	}

	event, err := s.eventRepo.GetByID(ctx, req.EventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	if req.PaymentMethod == domain.PaymentCheck && !event.AcceptsCheckPayments {
		return nil, fmt.Errorf("%w: event does not accept check payments", domain.ErrInvalidInput)
	}
	now := s.now()

	charge, err := PriceLineItems(event.Pricing, req.LineItems, req.HousingType, req.RoomType, req.MealPackage, req.PriceTier, now)
	if err != nil {
		if errors.Is(err, domain.ErrMissingPriceConfiguration) {
			s.logger.ErrorContext(ctx, "event pricing misconfigured", "event_id", event.ID, "err", err)
		}
		return nil, err
	}
	s.advance(ctx, span, domain.StatePriced, event.ID)

	if req.CouponCode != "" && event.CouponsEnabled {
		res, err := s.coupons.Apply(ctx, event.ID, req.CouponCode, charge.Subtotal, req.Registrant.Email, now)
		if err != nil {
			return nil, err
		}
		if res.Accepted {
			charge.Discount = &domain.AppliedDiscount{CouponID: res.CouponID, Code: res.Code, Amount: res.Discount}
			charge.Total = res.Total
		} else {
			s.logger.InfoContext(ctx, "coupon not applied", "event_id", event.ID, "code", NormalizeCouponCode(req.CouponCode), "reason", res.Reason)
		}
	}
	s.advance(ctx, span, domain.StateDiscounted, event.ID)

	split := SplitDeposit(charge.Total, event.Pricing.Deposit)
	charge.DepositDue = split.DepositDue
	charge.BalanceRemaining = split.BalanceRemaining
	s.advance(ctx, span, domain.StateSplit, event.ID)

	headcount := charge.Headcount()
	if err := s.capacity.Check(event.Capacity(), headcount); err != nil {
		s.logKeptRedemption(ctx, event.ID, charge, err)
		return nil, err
	}
	s.advance(ctx, span, domain.StateCapacityReserved, event.ID)

	reg, err := s.persist(ctx, event, &req, charge, headcount, now)
	if err != nil {
		s.logKeptRedemption(ctx, event.ID, charge, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("registration.id", reg.ID))
	s.advance(ctx, span, domain.StatePersisted, event.ID)

	result := &domain.RegistrationResult{
		RegistrationID:   reg.ID,
		ConfirmationCode: reg.ConfirmationCode,
		Kind:             reg.Kind,
		Subtotal:         charge.Subtotal,
		DiscountAmount:   charge.DiscountAmount(),
		CouponApplied:    charge.Discount != nil,
		TotalAmount:      charge.Total,
		DepositDue:       charge.DepositDue,
		BalanceRemaining: charge.BalanceRemaining,
		IsEarlyBird:      charge.IsEarlyBird,
		PaymentMethod:    reg.PaymentMethod,
		Status:           reg.Status,
	}

	switch {
	case reg.Status == domain.RegistrationCompleted:
		// Nothing is owed.
	case reg.PaymentMethod == domain.PaymentCard:
		s.startCardPayment(ctx, event, reg, charge, result)
		s.advance(ctx, span, domain.StateCardPending, event.ID)
	case reg.PaymentMethod == domain.PaymentCheck:
		s.startCheckPayment(ctx, event, reg, charge, result, now)
		s.advance(ctx, span, domain.StateCheckPending, event.ID)
	}
	s.advance(ctx, span, domain.StateResponded, event.ID)
	return result, nil
}

// persist issues the confirmation code and writes the registration, its balance ledger and the
// capacity reservation in one transaction. A unique-code violation restarts with a fresh code.
func (s *registrationService) persist(ctx context.Context, event *domain.Event, req *domain.RegistrationRequest, charge *domain.RegistrationCharge, headcount int, now time.Time) (*domain.Registration, error) {
	kind := req.Kind()
	prefix := ConfirmationCodePrefix
	if kind == domain.RegistrationGroup {
		prefix = AccessCodePrefix
	}

	regStatus, balanceStatus := initialStatuses(req.PaymentMethod, charge.Total)

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		code, err := s.codes.Issue(ctx, prefix)
		if err != nil {
			return nil, err
		}

		reg := &domain.Registration{
			EventID:          event.ID,
			Kind:             kind,
			ConfirmationCode: code,
			RegistrantName:   req.Registrant.Name,
			RegistrantEmail:  req.Registrant.Email,
			RegistrantPhone:  strings.TrimSpace(req.Registrant.Phone),
			GroupName:        strings.TrimSpace(req.GroupName),
			HousingType:      req.HousingType,
			RoomType:         req.RoomType,
			MealPackage:      req.MealPackage,
			Headcount:        headcount,
			LineItems:        charge.LineItems,
			Subtotal:         charge.Subtotal,
			DiscountAmount:   charge.DiscountAmount(),
			TotalAmount:      charge.Total,
			DepositDue:       charge.DepositDue,
			PaymentMethod:    req.PaymentMethod,
			Status:           regStatus,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if charge.Discount != nil {
			couponID := charge.Discount.CouponID
			reg.CouponID = &couponID
		}

		err = s.uow.Do(ctx, func(ctx context.Context, st domain.TxStores) error {
			if err := st.Registrations.Create(ctx, reg); err != nil {
				return err
			}
			balance := domain.NewPaymentBalance(reg.ID, charge.Total, balanceStatus, now)
			if err := st.Balances.Create(ctx, balance); err != nil {
				return fmt.Errorf("create payment balance: %w", err)
			}
			return s.capacity.Reserve(ctx, st.Capacity, event.ID, event.Capacity(), headcount)
		})
		if err == nil {
			return reg, nil
		}
		if errors.Is(err, domain.ErrDuplicateCode) {
			s.logger.WarnContext(ctx, "confirmation code collided on insert, retrying", "event_id", event.ID, "attempt", attempt)
			continue
		}
		if errors.Is(err, domain.ErrCapacityExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("persist registration: %w", err)
	}
	return nil, fmt.Errorf("%w: %d inserts collided", domain.ErrCodeGenerationExhausted, s.maxAttempts)
}

// logKeptRedemption records a coupon use that stays counted although the registration failed.
func (s *registrationService) logKeptRedemption(ctx context.Context, eventID string, charge *domain.RegistrationCharge, cause error) {
	if charge.Discount == nil {
		return
	}
	s.logger.WarnContext(ctx, "coupon redemption kept after failed registration",
		"event_id", eventID,
		"coupon_id", charge.Discount.CouponID,
		"code", charge.Discount.Code,
		"err", cause,
	)
}

func initialStatuses(method domain.PaymentMethod, total decimal.Decimal) (domain.RegistrationStatus, domain.PaymentStatus) {
	switch {
	case !total.IsPositive():
		return domain.RegistrationCompleted, domain.PaymentPaidFull
	case method == domain.PaymentCheck:
		return domain.RegistrationPendingPayment, domain.PaymentPendingCheckPayment
	default:
		return domain.RegistrationIncomplete, domain.PaymentUnpaid
	}
}

// amountDueNow is the deposit, or the full total when the policy asks for nothing upfront.
func amountDueNow(charge *domain.RegistrationCharge) decimal.Decimal {
	if charge.DepositDue.IsPositive() {
		return charge.DepositDue
	}
	return charge.Total
}

func (s *registrationService) startCardPayment(ctx context.Context, event *domain.Event, reg *domain.Registration, charge *domain.RegistrationCharge, result *domain.RegistrationResult) {
	payment, err := s.checkout.Start(ctx, event, reg, amountDueNow(charge))
	if err != nil {
		s.logger.ErrorContext(ctx, "card payment setup failed; registration kept pending",
			"registration_id", reg.ID,
			"confirmation_code", reg.ConfirmationCode,
			"event_id", event.ID,
			"err", err,
		)
		result.PaymentSetupPending = true
		return
	}
	result.CheckoutURL = payment.CheckoutURL
}

func (s *registrationService) startCheckPayment(ctx context.Context, event *domain.Event, reg *domain.Registration, charge *domain.RegistrationCharge, result *domain.RegistrationResult, now time.Time) {
	due := amountDueNow(charge)
	payment := &domain.Payment{
		RegistrationID: reg.ID,
		Method:         domain.PaymentCheck,
		Status:         domain.PaymentRecordPending,
		Amount:         due,
		PlatformFee:    decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		s.logger.ErrorContext(ctx, "check payment record not created",
			"registration_id", reg.ID,
			"confirmation_code", reg.ConfirmationCode,
			"event_id", event.ID,
			"err", err,
		)
	}

	result.CheckInstructions = &domain.CheckInstructions{
		PayableTo:      event.CheckPayableTo,
		MailingAddress: event.CheckMailingAddress,
		AmountDue:      due,
		Memo:           reg.ConfirmationCode,
	}

	data := &domain.CheckPaymentEmailData{
		Name:             reg.RegistrantName,
		EventName:        event.Name,
		ConfirmationCode: reg.ConfirmationCode,
		TotalAmount:      charge.Total.StringFixed(2),
		AmountDue:        due.StringFixed(2),
		PayableTo:        event.CheckPayableTo,
		MailingAddress:   event.CheckMailingAddress,
	}
	if err := s.notifier.Send(ctx, domain.TemplateCheckPaymentInstructions, reg.RegistrantEmail, data); err != nil {
		s.logger.ErrorContext(ctx, "check payment notification failed",
			"registration_id", reg.ID,
			"confirmation_code", reg.ConfirmationCode,
			"template", domain.TemplateCheckPaymentInstructions,
			"err", err,
		)
	}
}

func (s *registrationService) advance(ctx context.Context, span trace.Span, state domain.RegistrationState, eventID string) {
	span.AddEvent(string(state))
	s.logger.DebugContext(ctx, "registration state", "state", state, "event_id", eventID)
}
