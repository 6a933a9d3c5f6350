package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"eventregistration/internal/domain"
)

type noopGateway struct{}

// NewNoopGateway returns a gateway for local development. Its checkout URL is the success URL and
// its webhook accepts an unsigned JSON body {"intent_id": "...", "amount_cents": 0}.
func NewNoopGateway() domain.PaymentGateway {
	return &noopGateway{}
}

func (g *noopGateway) CreateChargeIntent(_ context.Context, req domain.ChargeIntentRequest) (*domain.ChargeIntent, error) {
	if req.AmountCents <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidInput)
	}
	return &domain.ChargeIntent{
		IntentID:    "noop_" + uuid.NewString(),
		RedirectURL: req.SuccessURL,
	}, nil
}

func (g *noopGateway) ExpireChargeIntent(_ context.Context, _ string) error {
	return nil
}

type noopCompletion struct {
	IntentID    string `json:"intent_id"`
	AmountCents int64  `json:"amount_cents"`
}

func (g *noopGateway) ParseCompletion(payload []byte, _ string) (*domain.GatewayCompletion, error) {
	var body noopCompletion
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if body.IntentID == "" {
		return nil, nil
	}
	return &domain.GatewayCompletion{IntentID: body.IntentID, AmountCents: body.AmountCents}, nil
}
