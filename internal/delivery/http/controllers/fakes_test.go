package controllers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"eventregistration/internal/delivery/http/helpers"
	"eventregistration/internal/delivery/http/middleware"
	"eventregistration/internal/domain"
)

// testLogger is a no-op logger for controller tests so we don't assert on log output.
var testLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

// fakeRegistrationService implements domain.RegistrationService for handler tests.
type fakeRegistrationService struct {
	result  *domain.RegistrationResult
	err     error
	lastReq *domain.RegistrationRequest
}

func (f *fakeRegistrationService) Register(_ context.Context, req domain.RegistrationRequest) (*domain.RegistrationResult, error) {
	f.lastReq = &req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// fakePaymentService implements domain.PaymentService for handler tests.
type fakePaymentService struct {
	confirmErr      error
	lastCompletion  *domain.GatewayCompletion
	retryResult     *domain.RegistrationResult
	retryErr        error
	lastRetryRegID  string
	lastRetryOrgID  string
	checkBalance    *domain.PaymentBalance
	checkErr        error
	lastCheckAmount decimal.Decimal
	lastCheckOrgID  string
	details         *domain.RegistrationDetails
	detailsErr      error
	lastCode        string
}

func (f *fakePaymentService) ConfirmCardPayment(_ context.Context, completion domain.GatewayCompletion) error {
	f.lastCompletion = &completion
	return f.confirmErr
}

func (f *fakePaymentService) RetryCardPayment(_ context.Context, registrationID, organizationID string) (*domain.RegistrationResult, error) {
	f.lastRetryRegID = registrationID
	f.lastRetryOrgID = organizationID
	if f.retryErr != nil {
		return nil, f.retryErr
	}
	return f.retryResult, nil
}

func (f *fakePaymentService) RecordCheckPayment(_ context.Context, _, organizationID string, amount decimal.Decimal) (*domain.PaymentBalance, error) {
	f.lastCheckAmount = amount
	f.lastCheckOrgID = organizationID
	if f.checkErr != nil {
		return nil, f.checkErr
	}
	return f.checkBalance, nil
}

func (f *fakePaymentService) GetRegistrationByCode(_ context.Context, code string) (*domain.RegistrationDetails, error) {
	f.lastCode = code
	if f.detailsErr != nil {
		return nil, f.detailsErr
	}
	return f.details, nil
}

// fakeEventService implements domain.EventService for handler tests.
type fakeEventService struct {
	event            *domain.Event
	err              error
	lastCreate       *domain.CreateEventInput
	lastPricing      *domain.EventPricingPolicy
	lastEventID      string
	lastOrgID        string
	coupon           *domain.Coupon
	lastCoupon       *domain.CreateCouponInput
	coupons          []*domain.Coupon
	registrations    []*domain.Registration
	registrationsTot int
	lastParams       domain.PaginationParams
}

func (f *fakeEventService) CreateEvent(_ context.Context, in domain.CreateEventInput) (*domain.Event, error) {
	f.lastCreate = &in
	if f.err != nil {
		return nil, f.err
	}
	return f.event, nil
}

func (f *fakeEventService) GetEvent(_ context.Context, eventID, organizationID string) (*domain.Event, error) {
	f.lastEventID, f.lastOrgID = eventID, organizationID
	if f.err != nil {
		return nil, f.err
	}
	return f.event, nil
}

func (f *fakeEventService) UpdatePricing(_ context.Context, eventID, organizationID string, pricing domain.EventPricingPolicy) (*domain.Event, error) {
	f.lastEventID, f.lastOrgID = eventID, organizationID
	f.lastPricing = &pricing
	if f.err != nil {
		return nil, f.err
	}
	return f.event, nil
}

func (f *fakeEventService) CreateCoupon(_ context.Context, organizationID string, in domain.CreateCouponInput) (*domain.Coupon, error) {
	f.lastOrgID = organizationID
	f.lastCoupon = &in
	if f.err != nil {
		return nil, f.err
	}
	return f.coupon, nil
}

func (f *fakeEventService) ListCoupons(_ context.Context, eventID, organizationID string) ([]*domain.Coupon, error) {
	f.lastEventID, f.lastOrgID = eventID, organizationID
	if f.err != nil {
		return nil, f.err
	}
	return f.coupons, nil
}

func (f *fakeEventService) ListRegistrations(_ context.Context, eventID, organizationID string, params domain.PaginationParams) ([]*domain.Registration, int, error) {
	f.lastEventID, f.lastOrgID = eventID, organizationID
	f.lastParams = params
	if f.err != nil {
		return nil, 0, f.err
	}
	return f.registrations, f.registrationsTot, nil
}

// fakeGateway implements domain.PaymentGateway for webhook tests.
type fakeGateway struct {
	completion    *domain.GatewayCompletion
	err           error
	lastSignature string
}

func (f *fakeGateway) CreateChargeIntent(_ context.Context, _ domain.ChargeIntentRequest) (*domain.ChargeIntent, error) {
	return &domain.ChargeIntent{IntentID: "pi_fake", RedirectURL: "https://pay.test/pi_fake"}, nil
}

func (f *fakeGateway) ExpireChargeIntent(_ context.Context, _ string) error {
	return nil
}

func (f *fakeGateway) ParseCompletion(_ []byte, signature string) (*domain.GatewayCompletion, error) {
	f.lastSignature = signature
	return f.completion, f.err
}

// serve routes one request through a mux so path values are populated.
func serve(pattern string, handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, handler)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

// asOrganizer attaches verified claims for orgID to req.
func asOrganizer(req *http.Request, orgID string) *http.Request {
	claims := &domain.TokenClaims{Subject: "organizer-1", OrganizationID: orgID}
	return req.WithContext(middleware.SetClaims(req.Context(), claims))
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// decodeEnvelope decodes the response envelope, unmarshalling data into dest when non-nil.
func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, dest any) *helpers.APIError {
	t.Helper()
	var env struct {
		Data  json.RawMessage   `json:"data"`
		Error *helpers.APIError `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	if dest != nil && env.Error == nil {
		require.NoError(t, json.Unmarshal(env.Data, dest))
	}
	return env.Error
}
