package controllers

import (
	"log/slog"
	"net/http"
	"strings"

	"eventregistration/internal/delivery/http/helpers"
	"eventregistration/internal/domain"
)

// RegistrantRequest identifies the person registering, or the group leader.
type RegistrantRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// LineItemRequest asks for count participants of one category.
type LineItemRequest struct {
	Category string `json:"category"`
	Label    string `json:"label,omitempty"`
	Count    int    `json:"count"`
}

// RegisterRequest is the request body for POST /events/{eventID}/registrations. An individual
// registration sets category; a group registration sets line_items.
type RegisterRequest struct {
	Registrant    RegistrantRequest `json:"registrant"`
	Category      string            `json:"category,omitempty"`
	GroupName     string            `json:"group_name,omitempty"`
	LineItems     []LineItemRequest `json:"line_items,omitempty"`
	HousingType   string            `json:"housing_type"`
	RoomType      string            `json:"room_type,omitempty"`
	MealPackage   bool              `json:"meal_package"`
	CouponCode    string            `json:"coupon_code,omitempty"`
	PaymentMethod string            `json:"payment_method"`
	PriceTier     string            `json:"price_tier,omitempty"`
}

// Validate implements Validator. Field-level rules are enforced by the registration service.
func (req RegisterRequest) Validate() []string {
	var errs []string
	if strings.TrimSpace(req.Registrant.Name) == "" {
		errs = append(errs, "registrant.name is required")
	}
	if strings.TrimSpace(req.Registrant.Email) == "" {
		errs = append(errs, "registrant.email is required")
	}
	switch {
	case req.Category == "" && len(req.LineItems) == 0:
		errs = append(errs, "category or line_items is required")
	case req.Category != "" && len(req.LineItems) > 0:
		errs = append(errs, "category and line_items are mutually exclusive")
	}
	if req.HousingType == "" {
		errs = append(errs, "housing_type is required")
	}
	if req.PaymentMethod == "" {
		errs = append(errs, "payment_method is required")
	}
	return errs
}

func (req RegisterRequest) toDomain(eventID string) domain.RegistrationRequest {
	items := make([]domain.LineItemRequest, 0, len(req.LineItems)+1)
	if req.Category != "" {
		items = append(items, domain.LineItemRequest{Category: domain.Category(req.Category), Count: 1})
	}
	for _, li := range req.LineItems {
		items = append(items, domain.LineItemRequest{Category: domain.Category(li.Category), Label: li.Label, Count: li.Count})
	}
	return domain.RegistrationRequest{
		EventID: eventID,
		Registrant: domain.Registrant{
			Name:  req.Registrant.Name,
			Email: req.Registrant.Email,
			Phone: strings.TrimSpace(req.Registrant.Phone),
		},
		GroupName:     strings.TrimSpace(req.GroupName),
		LineItems:     items,
		HousingType:   domain.HousingType(req.HousingType),
		RoomType:      domain.RoomType(req.RoomType),
		MealPackage:   req.MealPackage,
		CouponCode:    req.CouponCode,
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		PriceTier:     domain.PriceTier(req.PriceTier),
	}
}

// RegisterSuccessResponse is the success response envelope for POST /events/{eventID}/registrations (201).
type RegisterSuccessResponse struct {
	Data  *domain.RegistrationResult `json:"data"`
	Error *helpers.APIError          `json:"error"`
}

// RegistrationDetailsSuccessResponse is the success response envelope for GET /registrations/{code} (200).
type RegistrationDetailsSuccessResponse struct {
	Data  *domain.RegistrationDetails `json:"data"`
	Error *helpers.APIError           `json:"error"`
}

type RegistrationController struct {
	Logger        *slog.Logger
	Registrations domain.RegistrationService
	Payments      domain.PaymentService
}

func NewRegistrationController(logger *slog.Logger, registrations domain.RegistrationService, payments domain.PaymentService) *RegistrationController {
	return &RegistrationController{
		Logger:        logger,
		Registrations: registrations,
		Payments:      payments,
	}
}

// Register godoc
// @Summary Register for an event
// @Description Prices the requested participants, applies an optional coupon, splits the deposit, reserves capacity and persists the registration. Card payments return a checkout URL; check payments return mailing instructions.
// @Tags registrations
// @Accept json
// @Produce json
// @Param eventID path string true "Event ID"
// @Param registration body RegisterRequest true "Registration"
// @Success 201 {object} controllers.RegisterSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: capacity_exceeded"
// @Failure 422 {object} helpers.APIResponse "error.code: pricing_not_configured"
// @Failure 429 {object} helpers.APIResponse "error.code: rate_limited"
// @Failure 503 {object} helpers.APIResponse "error.code: code_generation_exhausted"
// @Router /events/{eventID}/registrations [post]
func (c *RegistrationController) Register(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventID")
	if eventID == "" {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "missing eventID")
		return
	}
	var req RegisterRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	result, err := c.Registrations.Register(r.Context(), req.toDomain(eventID))
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, result)
}

// GetByCode godoc
// @Summary Look up a registration
// @Description Returns the registration and its balance for a confirmation or group access code.
// @Tags registrations
// @Produce json
// @Param code path string true "Confirmation or access code"
// @Success 200 {object} controllers.RegistrationDetailsSuccessResponse
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /registrations/{code} [get]
func (c *RegistrationController) GetByCode(w http.ResponseWriter, r *http.Request) {
	details, err := c.Payments.GetRegistrationByCode(r.Context(), r.PathValue("code"))
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, details)
}
