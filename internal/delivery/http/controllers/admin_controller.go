package controllers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"eventregistration/internal/delivery/http/helpers"
	"eventregistration/internal/delivery/http/middleware"
	"eventregistration/internal/domain"
)

// CreateEventRequest is the request body for POST /admin/events.
type CreateEventRequest struct {
	Name                 string                    `json:"name"`
	CouponsEnabled       bool                      `json:"coupons_enabled"`
	AcceptsCheckPayments bool                      `json:"accepts_check_payments"`
	CheckPayableTo       string                    `json:"check_payable_to,omitempty"`
	CheckMailingAddress  string                    `json:"check_mailing_address,omitempty"`
	CapacityTotal        *int                      `json:"capacity_total,omitempty"`
	Pricing              domain.EventPricingPolicy `json:"pricing"`
}

// Validate implements Validator.
func (req CreateEventRequest) Validate() []string {
	var errs []string
	if strings.TrimSpace(req.Name) == "" {
		errs = append(errs, "name is required")
	}
	if req.AcceptsCheckPayments && (strings.TrimSpace(req.CheckPayableTo) == "" || strings.TrimSpace(req.CheckMailingAddress) == "") {
		errs = append(errs, "check_payable_to and check_mailing_address are required when accepting checks")
	}
	return errs
}

// CreateCouponRequest is the request body for POST /admin/events/{eventID}/coupons.
type CreateCouponRequest struct {
	Code            string          `json:"code"`
	DiscountType    string          `json:"discount_type"`
	DiscountValue   decimal.Decimal `json:"discount_value"`
	ExpirationDate  *time.Time      `json:"expiration_date,omitempty"`
	UsageLimitType  string          `json:"usage_limit_type"`
	MaxUses         *int            `json:"max_uses,omitempty"`
	RestrictToEmail *string         `json:"restrict_to_email,omitempty"`
}

// Validate implements Validator.
func (req CreateCouponRequest) Validate() []string {
	var errs []string
	if strings.TrimSpace(req.Code) == "" {
		errs = append(errs, "code is required")
	}
	if req.DiscountType == "" {
		errs = append(errs, "discount_type is required")
	}
	if req.UsageLimitType == "" {
		errs = append(errs, "usage_limit_type is required")
	}
	return errs
}

// RecordCheckPaymentRequest is the request body for POST /admin/registrations/{registrationID}/check-payments.
type RecordCheckPaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// Validate implements Validator.
func (req RecordCheckPaymentRequest) Validate() []string {
	if !req.Amount.IsPositive() {
		return []string{"amount must be positive"}
	}
	return nil
}

// EventSuccessResponse is the success response envelope for event endpoints.
type EventSuccessResponse struct {
	Data  *domain.Event     `json:"data"`
	Error *helpers.APIError `json:"error"`
}

// CouponSuccessResponse is the success response envelope for POST /admin/events/{eventID}/coupons (201).
type CouponSuccessResponse struct {
	Data  *domain.Coupon    `json:"data"`
	Error *helpers.APIError `json:"error"`
}

// RegistrationListResponse is a page of an event's registrations.
type RegistrationListResponse struct {
	Items      []*domain.Registration `json:"items"`
	Pagination helpers.PaginationMeta `json:"pagination"`
}

// PaymentBalanceSuccessResponse is the success response envelope for recorded check payments.
type PaymentBalanceSuccessResponse struct {
	Data  *domain.PaymentBalance `json:"data"`
	Error *helpers.APIError      `json:"error"`
}

type AdminController struct {
	Logger   *slog.Logger
	Events   domain.EventService
	Payments domain.PaymentService
}

func NewAdminController(logger *slog.Logger, events domain.EventService, payments domain.PaymentService) *AdminController {
	return &AdminController{
		Logger:   logger,
		Events:   events,
		Payments: payments,
	}
}

// organization returns the caller's organization or writes 401.
func (c *AdminController) organization(w http.ResponseWriter, r *http.Request) (string, bool) {
	orgID, ok := middleware.OrganizationIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return "", false
	}
	return orgID, true
}

// CreateEvent godoc
// @Summary Create an event
// @Description Creates an event owned by the caller's organization. The event code is server-generated.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param event body CreateEventRequest true "Event"
// @Success 201 {object} controllers.EventSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Router /admin/events [post]
func (c *AdminController) CreateEvent(w http.ResponseWriter, r *http.Request) {
	orgID, ok := c.organization(w, r)
	if !ok {
		return
	}
	var req CreateEventRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	event, err := c.Events.CreateEvent(r.Context(), domain.CreateEventInput{
		OrganizationID:       orgID,
		Name:                 req.Name,
		CouponsEnabled:       req.CouponsEnabled,
		AcceptsCheckPayments: req.AcceptsCheckPayments,
		CheckPayableTo:       req.CheckPayableTo,
		CheckMailingAddress:  req.CheckMailingAddress,
		CapacityTotal:        req.CapacityTotal,
		Pricing:              req.Pricing,
	})
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, event)
}

// GetEvent godoc
// @Summary Get an event
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID"
// @Success 200 {object} controllers.EventSuccessResponse
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /admin/events/{eventID} [get]
func (c *AdminController) GetEvent(w http.ResponseWriter, r *http.Request) {
	orgID, ok := c.organization(w, r)
	if !ok {
		return
	}
	event, err := c.Events.GetEvent(r.Context(), r.PathValue("eventID"), orgID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, event)
}

// UpdatePricing godoc
// @Summary Replace an event's pricing policy
// @Description New registrations are priced with the new policy; existing registrations keep their totals.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID"
// @Param pricing body domain.EventPricingPolicy true "Pricing policy"
// @Success 200 {object} controllers.EventSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Router /admin/events/{eventID}/pricing [put]
func (c *AdminController) UpdatePricing(w http.ResponseWriter, r *http.Request) {
	orgID, ok := c.organization(w, r)
	if !ok {
		return
	}
	var pricing domain.EventPricingPolicy
	if !helpers.DecodeAndValidate(w, r, &pricing) {
		return
	}
	event, err := c.Events.UpdatePricing(r.Context(), r.PathValue("eventID"), orgID, pricing)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, event)
}

// CreateCoupon godoc
// @Summary Create a coupon
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID"
// @Param coupon body CreateCouponRequest true "Coupon"
// @Success 201 {object} controllers.CouponSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Router /admin/events/{eventID}/coupons [post]
func (c *AdminController) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	orgID, ok := c.organization(w, r)
	if !ok {
		return
	}
	var req CreateCouponRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	coupon, err := c.Events.CreateCoupon(r.Context(), orgID, domain.CreateCouponInput{
		EventID:         r.PathValue("eventID"),
		Code:            req.Code,
		DiscountType:    domain.DiscountType(req.DiscountType),
		DiscountValue:   req.DiscountValue,
		ExpirationDate:  req.ExpirationDate,
		UsageLimitType:  domain.UsageLimitType(req.UsageLimitType),
		MaxUses:         req.MaxUses,
		RestrictToEmail: req.RestrictToEmail,
	})
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, coupon)
}

// ListCoupons godoc
// @Summary List an event's coupons
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID"
// @Success 200 {object} helpers.APIResponse
// @Router /admin/events/{eventID}/coupons [get]
func (c *AdminController) ListCoupons(w http.ResponseWriter, r *http.Request) {
	orgID, ok := c.organization(w, r)
	if !ok {
		return
	}
	coupons, err := c.Events.ListCoupons(r.Context(), r.PathValue("eventID"), orgID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, coupons)
}

// ListRegistrations godoc
// @Summary List an event's registrations
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID"
// @Param page query int false "Page (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} helpers.APIResponse "data contains items and pagination"
// @Router /admin/events/{eventID}/registrations [get]
func (c *AdminController) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	orgID, ok := c.organization(w, r)
	if !ok {
		return
	}
	params := helpers.ParsePagination(r)
	regs, total, err := c.Events.ListRegistrations(r.Context(), r.PathValue("eventID"), orgID, params)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, RegistrationListResponse{
		Items:      regs,
		Pagination: helpers.NewPaginationMeta(params.Page, params.PageSize, total),
	})
}

// RetryPayment godoc
// @Summary Create a new checkout for a card registration
// @Description Issues a fresh checkout URL for the deposit, or for the remaining balance once the deposit is paid.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param registrationID path string true "Registration ID"
// @Success 200 {object} controllers.RegisterSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Router /admin/registrations/{registrationID}/retry-payment [post]
func (c *AdminController) RetryPayment(w http.ResponseWriter, r *http.Request) {
	orgID, ok := c.organization(w, r)
	if !ok {
		return
	}
	result, err := c.Payments.RetryCardPayment(r.Context(), r.PathValue("registrationID"), orgID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, result)
}

// RecordCheckPayment godoc
// @Summary Record a received check
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param registrationID path string true "Registration ID"
// @Param payment body RecordCheckPaymentRequest true "Check amount"
// @Success 201 {object} controllers.PaymentBalanceSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 409 {object} helpers.APIResponse "error.code: invalid_transition"
// @Router /admin/registrations/{registrationID}/check-payments [post]
func (c *AdminController) RecordCheckPayment(w http.ResponseWriter, r *http.Request) {
	orgID, ok := c.organization(w, r)
	if !ok {
		return
	}
	var req RecordCheckPaymentRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	balance, err := c.Payments.RecordCheckPayment(r.Context(), r.PathValue("registrationID"), orgID, req.Amount)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, balance)
}
