package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/chronos/internal/repository"
)

var (
	// ErrValidation wraps input rejected before any persistence attempt.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned for capsules the owner does not have.
	ErrNotFound = repository.ErrNotFound
	// ErrLocked is wrapped by LockedError.
	ErrLocked = errors.New("capsule is locked")
)

// LockedError rejects an open attempt before the unlock time.
type LockedError struct {
	UnlockAt time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("capsule is sealed until %s", e.UnlockAt.UTC().Format(time.RFC3339))
}

func (e *LockedError) Unwrap() error { return ErrLocked }

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
