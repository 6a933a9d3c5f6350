package domain

import "errors"

// Sentinel errors shared by services, repositories and controllers.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")

	// ErrMissingPriceConfiguration is returned when the event has no price for the requested category.
	ErrMissingPriceConfiguration = errors.New("missing price configuration")
	// ErrCapacityExceeded is returned when the event has no seats left for the requested headcount.
	ErrCapacityExceeded = errors.New("capacity exceeded")
	// ErrCodeGenerationExhausted is returned when no unused code could be issued within the attempt budget.
	ErrCodeGenerationExhausted = errors.New("code generation exhausted")
	// ErrDuplicateCode is returned by storage when an insert hits the unique code constraint.
	ErrDuplicateCode = errors.New("duplicate code")
	// ErrInvalidTransition is returned when a status change is not allowed by the transition table.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidSignature is returned when a gateway webhook fails signature verification.
	ErrInvalidSignature = errors.New("invalid signature")
)
