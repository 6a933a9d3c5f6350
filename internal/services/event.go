package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"eventregistration/internal/domain"
)

type eventService struct {
	eventRepo        domain.EventRepository
	couponRepo       domain.CouponRepository
	registrationRepo domain.RegistrationRepository
	eventCodes       *CodeIssuer
	contextTimeout   time.Duration
}

// NewEventService returns the organizer-facing EventService.
func NewEventService(eventRepo domain.EventRepository,
	couponRepo domain.CouponRepository,
	registrationRepo domain.RegistrationRepository,
	codeMaxAttempts int,
	timeout time.Duration,
) domain.EventService {
	return &eventService{
		eventRepo:        eventRepo,
		couponRepo:       couponRepo,
		registrationRepo: registrationRepo,
		eventCodes:       NewEventCodeIssuer(eventRepo.EventCodeExists, codeMaxAttempts),
		contextTimeout:   timeout,
	}
}

func (s *eventService) CreateEvent(ctx context.Context, in domain.CreateEventInput) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	name := strings.TrimSpace(in.Name)
	if in.OrganizationID == "" {
		return nil, fmt.Errorf("%w: event organization is required", domain.ErrInvalidInput)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: event name is required", domain.ErrInvalidInput)
	}
	if in.CapacityTotal != nil && *in.CapacityTotal < 0 {
		return nil, fmt.Errorf("%w: capacity must not be negative", domain.ErrInvalidInput)
	}
	if errs := ValidatePricingPolicy(in.Pricing); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(errs, "; "))
	}

	now := time.Now()
	event := domain.NewEvent(in.OrganizationID, name, in.Pricing, now, now)
	event.CouponsEnabled = in.CouponsEnabled
	event.AcceptsCheckPayments = in.AcceptsCheckPayments
	event.CheckPayableTo = strings.TrimSpace(in.CheckPayableTo)
	event.CheckMailingAddress = strings.TrimSpace(in.CheckMailingAddress)
	if in.CapacityTotal != nil {
		total := *in.CapacityTotal
		remaining := total
		event.CapacityTotal = &total
		event.CapacityRemaining = &remaining
	}

	code, err := s.eventCodes.Issue(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("generate event code: %w", err)
	}
	event.EventCode = code

	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return event, nil
}

func (s *eventService) GetEvent(ctx context.Context, eventID, organizationID string) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()
	return s.ownedEvent(ctx, eventID, organizationID)
}

func (s *eventService) UpdatePricing(ctx context.Context, eventID, organizationID string, pricing domain.EventPricingPolicy) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := s.ownedEvent(ctx, eventID, organizationID); err != nil {
		return nil, err
	}
	if errs := ValidatePricingPolicy(pricing); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(errs, "; "))
	}
	event, err := s.eventRepo.UpdatePricing(ctx, eventID, pricing)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("update pricing: %w", err)
	}
	return event, nil
}

func (s *eventService) CreateCoupon(ctx context.Context, organizationID string, in domain.CreateCouponInput) (*domain.Coupon, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := s.ownedEvent(ctx, in.EventID, organizationID); err != nil {
		return nil, err
	}

	var errs []string
	code := NormalizeCouponCode(in.Code)
	if code == "" {
		errs = append(errs, "code is required")
	}
	switch in.DiscountType {
	case domain.DiscountPercentage:
		if !in.DiscountValue.IsPositive() || in.DiscountValue.GreaterThan(hundred) {
			errs = append(errs, "percentage discount must be in (0, 100]")
		}
	case domain.DiscountFixed:
		if !in.DiscountValue.IsPositive() {
			errs = append(errs, "fixed discount must be positive")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown discount_type %q", in.DiscountType))
	}
	switch in.UsageLimitType {
	case domain.UsageSingleUse, domain.UsageUnlimited:
	case domain.UsageLimited:
		if in.MaxUses == nil || *in.MaxUses < 1 {
			errs = append(errs, "max_uses must be at least 1 for limited coupons")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown usage_limit_type %q", in.UsageLimitType))
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(errs, "; "))
	}

	now := time.Now()
	coupon := &domain.Coupon{
		EventID:        in.EventID,
		Code:           code,
		Active:         true,
		DiscountType:   in.DiscountType,
		DiscountValue:  in.DiscountValue,
		ExpirationDate: in.ExpirationDate,
		UsageLimitType: in.UsageLimitType,
		MaxUses:        in.MaxUses,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if in.RestrictToEmail != nil {
		if email := strings.ToLower(strings.TrimSpace(*in.RestrictToEmail)); email != "" {
			coupon.RestrictToEmail = &email
		}
	}
	if err := s.couponRepo.Create(ctx, coupon); err != nil {
		return nil, fmt.Errorf("create coupon: %w", err)
	}
	return coupon, nil
}

func (s *eventService) ListCoupons(ctx context.Context, eventID, organizationID string) ([]*domain.Coupon, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := s.ownedEvent(ctx, eventID, organizationID); err != nil {
		return nil, err
	}
	coupons, err := s.couponRepo.ListByEventID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	return coupons, nil
}

func (s *eventService) ListRegistrations(ctx context.Context, eventID, organizationID string, params domain.PaginationParams) ([]*domain.Registration, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := s.ownedEvent(ctx, eventID, organizationID); err != nil {
		return nil, 0, err
	}
	regs, total, err := s.registrationRepo.ListByEventID(ctx, eventID, params)
	if err != nil {
		return nil, 0, fmt.Errorf("list registrations: %w", err)
	}
	return regs, total, nil
}

func (s *eventService) ownedEvent(ctx context.Context, eventID, organizationID string) (*domain.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	if event.OrganizationID != organizationID {
		return nil, domain.ErrForbidden
	}
	return event, nil
}

// ValidatePricingPolicy returns human-readable problems with a pricing policy.
func ValidatePricingPolicy(p domain.EventPricingPolicy) []string {
	var errs []string
	for category, tiers := range p.Categories {
		if !category.Valid() {
			errs = append(errs, fmt.Sprintf("unknown category %q", category))
			continue
		}
		for name, price := range map[string]*decimal.Decimal{"early_bird": tiers.EarlyBird, "regular": tiers.Regular, "late": tiers.Late} {
			if price != nil && price.IsNegative() {
				errs = append(errs, fmt.Sprintf("%s %s price must not be negative", category, name))
			}
		}
	}
	for housing, byCategory := range p.HousingOverrides {
		if !housing.Valid() {
			errs = append(errs, fmt.Sprintf("unknown housing type %q", housing))
		}
		for category, price := range byCategory {
			if !category.Valid() {
				errs = append(errs, fmt.Sprintf("unknown category %q in %s override", category, housing))
			}
			if price.IsNegative() {
				errs = append(errs, fmt.Sprintf("%s %s override must not be negative", housing, category))
			}
		}
	}
	for room, price := range p.RoomPrices {
		if !room.Valid() {
			errs = append(errs, fmt.Sprintf("unknown room type %q", room))
		}
		if price.IsNegative() {
			errs = append(errs, fmt.Sprintf("%s room price must not be negative", room))
		}
	}
	if p.MealPackagePrice != nil && p.MealPackagePrice.IsNegative() {
		errs = append(errs, "meal package price must not be negative")
	}
	d := p.Deposit
	if d.Percentage != nil && (d.Percentage.IsNegative() || d.Percentage.GreaterThan(hundred)) {
		errs = append(errs, "deposit percentage must be between 0 and 100")
	}
	if d.FixedAmount != nil && d.FixedAmount.IsNegative() {
		errs = append(errs, "deposit fixed amount must not be negative")
	}
	return errs
}
