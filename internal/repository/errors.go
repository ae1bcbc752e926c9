// Package repository defines error values that are reused across the
// repositories. These sentinels allow higher layers such as handlers to
// distinguish between failure scenarios without inspecting SQL errors.
package repository

import (
    "errors"
    "fmt"
)

// ErrSessionNotFound is returned when no session with the requested
// identifier exists. Handlers should translate this into an HTTP 404.
var ErrSessionNotFound = errors.New("session not found")

// ErrBookingNotFound is returned when no booking matches the requested
// identifier, access token or reference. The webhook handlers treat this
// as "ignore and acknowledge"; customer-facing handlers translate it
// into an HTTP 404.
var ErrBookingNotFound = errors.New("booking not found")

// ErrSessionNotActive is returned when a booking is attempted against a
// deactivated session.
var ErrSessionNotActive = errors.New("session is not active")

// ErrSessionPassed is returned when a booking is attempted against a
// session whose start time is not in the future.
var ErrSessionPassed = errors.New("session has already passed")

// ErrDuplicateSlot is returned when creating a session whose
// (date, start_time) pair is already taken.
var ErrDuplicateSlot = errors.New("a session already exists at this date and time")

// CapacityError is returned when the requested participant count exceeds
// the remaining spots of a session. It carries the number of spots that
// were still available at the time of the check so the caller can re-show
// the form with an accurate message.
type CapacityError struct {
    Available int
}

func (e *CapacityError) Error() string {
    return fmt.Sprintf("not enough spots available: %d remaining", e.Available)
}
