package types

import (
	"errors"
	"fmt"
)

// Resource-exhaustion errors: callers retry with backoff and surface a
// 503-class response when retries run out.
var (
	ErrPoolExhausted      = errors.New("connection pool exhausted")
	ErrPoolShuttingDown   = errors.New("connection pool is shutting down")
	ErrConnectionCreation = errors.New("failed to create connection")
)

// Lease misuse is a programmer error and is never swallowed.
var ErrLeaseReleased = errors.New("lease has already been released")

// Reservation-state errors are expected business-flow outcomes. Fulfillment
// failures mean "do not charge" and must never be retried automatically.
var (
	ErrReservationNotFound        = errors.New("reservation not found")
	ErrReservationExpired         = errors.New("reservation has expired")
	ErrReservationAlreadyTerminal = errors.New("reservation is already in a terminal state")
	ErrTicketTypeNotFound         = errors.New("ticket type not found")
	ErrTicketTypeUnavailable      = errors.New("ticket type is not available for sale")
	ErrCapacityExceeded           = errors.New("fulfillment would exceed ticket type capacity")
)

var ErrSnapshotNotConfigured = errors.New("catalog snapshot path is not configured")

// InsufficientStockError reports the exact remaining count so the caller can
// show it to the end user.
type InsufficientStockError struct {
	TicketTypeID string
	Requested    uint
	Remaining    int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for ticket type %s: requested %d, %d remaining", e.TicketTypeID, e.Requested, e.Remaining)
}
