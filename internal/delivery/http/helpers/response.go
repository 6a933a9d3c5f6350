package helpers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"eventregistration/internal/domain"
)

// Error codes for API error responses. Use these with WriteJSONError.
const (
	ErrCodeBadRequest              = "bad_request"
	ErrCodeUnauthorized            = "unauthorized"
	ErrCodeForbidden               = "forbidden"
	ErrCodeNotFound                = "not_found"
	ErrCodeConflict                = "conflict"
	ErrCodePricingNotConfigured    = "pricing_not_configured"
	ErrCodeCapacityExceeded        = "capacity_exceeded"
	ErrCodeInvalidTransition       = "invalid_transition"
	ErrCodeCodeGenerationExhausted = "code_generation_exhausted"
	ErrCodeRateLimited             = "rate_limited"
	ErrCodeInternalError           = "internal_error"
)

// APIError is the error object in the standardized API response envelope.
// swagger:model APIError
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIResponse is the standardized envelope for all API responses.
// On success: Data is set, Error is nil. On error: Data is nil, Error is set.
// swagger:model APIResponse
type APIResponse struct {
	Data  any       `json:"data"`
	Error *APIError `json:"error"`
}

// WriteJSONSuccess sets Content-Type to application/json, writes statusCode, and
// encodes an APIResponse with the given data and error set to nil.
func WriteJSONSuccess(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(APIResponse{Data: data, Error: nil})
}

// WriteJSONError sets Content-Type to application/json, writes statusCode, and
// encodes an APIResponse with data nil and the given error code and message.
func WriteJSONError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(APIResponse{
		Data:  nil,
		Error: &APIError{Code: code, Message: message},
	})
}

// StatusForError maps a service error to its HTTP status and error code.
func StatusForError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidSignature):
		return http.StatusBadRequest, ErrCodeBadRequest
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, ErrCodeForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, ErrCodeConflict
	case errors.Is(err, domain.ErrMissingPriceConfiguration):
		return http.StatusUnprocessableEntity, ErrCodePricingNotConfigured
	case errors.Is(err, domain.ErrCapacityExceeded):
		return http.StatusConflict, ErrCodeCapacityExceeded
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, ErrCodeInvalidTransition
	case errors.Is(err, domain.ErrCodeGenerationExhausted):
		return http.StatusServiceUnavailable, ErrCodeCodeGenerationExhausted
	}
	return http.StatusInternalServerError, ErrCodeInternalError
}

// WriteServiceError writes err with the status from StatusForError. Server-side failures are
// logged and answered with a generic message; a missing price is also logged because it means
// the event is misconfigured.
func WriteServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, code := StatusForError(err)
	message := err.Error()
	switch {
	case status >= http.StatusInternalServerError:
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		if status == http.StatusServiceUnavailable {
			w.Header().Set("Retry-After", "1")
		} else {
			message = "internal server error"
		}
	case code == ErrCodePricingNotConfigured:
		logger.ErrorContext(r.Context(), "event pricing is not configured", "path", r.URL.Path, "err", err)
	}
	WriteJSONError(w, status, code, message)
}
