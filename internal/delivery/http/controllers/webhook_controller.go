package controllers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"eventregistration/internal/delivery/http/helpers"
	"eventregistration/internal/domain"
)

const maxWebhookBytes = 64 << 10

// SignatureHeader is the header the card gateway signs webhook payloads in.
const SignatureHeader = "Stripe-Signature"

// WebhookAck is the body returned to the gateway.
type WebhookAck struct {
	Received bool `json:"received"`
	Applied  bool `json:"applied"`
}

type WebhookController struct {
	Logger   *slog.Logger
	Gateway  domain.PaymentGateway
	Payments domain.PaymentService
}

func NewWebhookController(logger *slog.Logger, gateway domain.PaymentGateway, payments domain.PaymentService) *WebhookController {
	return &WebhookController{
		Logger:   logger,
		Gateway:  gateway,
		Payments: payments,
	}
}

// HandlePayment godoc
// @Summary Card gateway webhook
// @Description Verifies the gateway signature and applies completed payments. Redelivered events are acknowledged without being applied twice.
// @Tags webhooks
// @Accept json
// @Produce json
// @Success 200 {object} helpers.APIResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /webhooks/payments [post]
func (c *WebhookController) HandlePayment(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "unreadable body")
		return
	}
	completion, err := c.Gateway.ParseCompletion(payload, r.Header.Get(SignatureHeader))
	if err != nil {
		c.Logger.WarnContext(r.Context(), "webhook rejected", "err", err)
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	if completion == nil {
		helpers.WriteJSONSuccess(w, http.StatusOK, WebhookAck{Received: true})
		return
	}
	if err := c.Payments.ConfirmCardPayment(r.Context(), *completion); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.Logger.WarnContext(r.Context(), "webhook for unknown payment", "intent_id", completion.IntentID)
		}
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, WebhookAck{Received: true, Applied: true})
}
