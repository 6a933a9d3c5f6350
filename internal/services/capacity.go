package services

import (
	"context"
	"fmt"

	"eventregistration/internal/domain"
)

// CapacityLedger guards an event's seat counter. Untracked counters always pass without storage access.
type CapacityLedger struct{}

// Check rejects a registration that cannot fit before anything is written or any code is issued.
func (CapacityLedger) Check(counter domain.CapacityCounter, headcount int) error {
	if !counter.Tracked() {
		return nil
	}
	remaining := *counter.Remaining
	if remaining <= 0 || remaining < headcount {
		return fmt.Errorf("%w: %d seats left, %d requested", domain.ErrCapacityExceeded, remaining, headcount)
	}
	return nil
}

// Reserve claims headcount seats with the repository's conditional decrement. It is meant to run
// as the last write of the persistence transaction so a lost race rolls the registration back.
func (CapacityLedger) Reserve(ctx context.Context, repo domain.CapacityRepository, eventID string, counter domain.CapacityCounter, headcount int) error {
	if !counter.Tracked() {
		return nil
	}
	ok, err := repo.Reserve(ctx, eventID, headcount)
	if err != nil {
		return fmt.Errorf("reserve capacity: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: seats taken by a concurrent registration", domain.ErrCapacityExceeded)
	}
	return nil
}
