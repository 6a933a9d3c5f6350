package gateway

import (
	"fmt"
	"log/slog"

	"eventregistration/internal/domain"
)

// GatewayConfig holds configuration for creating a payment gateway.
type GatewayConfig struct {
	Provider      string
	SecretKey     string
	WebhookSecret string
}

// NewGateway creates a gateway from config. Provider "stripe" uses Stripe Checkout with Connect
// destination charges; "noop" or empty uses a local gateway that never charges anyone.
func NewGateway(config GatewayConfig, logger *slog.Logger) (domain.PaymentGateway, error) {
	switch config.Provider {
	case "stripe":
		if config.SecretKey == "" || config.WebhookSecret == "" {
			return nil, fmt.Errorf("stripe gateway requires STRIPE_SECRET_KEY and STRIPE_WEBHOOK_SECRET")
		}
		return NewStripeGateway(config.SecretKey, config.WebhookSecret), nil
	case "noop", "":
		logger.Warn("payment gateway is noop, card payments are simulated")
		return NewNoopGateway(), nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", config.Provider)
	}
}
