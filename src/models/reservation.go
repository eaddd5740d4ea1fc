package models

import (
	"tix/src/types"
	"time"
)

// Reservation is a time-boxed hold against one ticket type's stock. A row
// makes exactly one terminal transition: active to fulfilled, released or
// expired, never back. A hold past ExpiresAt stops counting against stock
// even before the sweep flips its stored status.
type Reservation struct {
	ID            uint       `gorm:"primarykey" json:"id"`
	TicketTypeID  string     `gorm:"index" json:"ticket_type_id,omitempty"`
	Quantity      uint       `json:"quantity,omitempty"`
	SessionID     string     `gorm:"index" json:"session_id,omitempty"`
	Status        string     `gorm:"default:'active'" json:"status,omitempty"`
	ExpiresAt     time.Time  `json:"expires_at,omitempty"`
	FulfilledAt   *time.Time `json:"fulfilled_at,omitempty"`
	TransactionID *string    `json:"transaction_id,omitempty"`

	TicketType TicketType `json:"ticket_type,omitempty"`

	types.Timestamps
}

// Expired reports whether the hold has lapsed, independent of the stored
// status column.
func (r *Reservation) Expired(now time.Time) bool {
	return r.ExpiresAt.Before(now)
}

// Terminal reports whether the reservation has already made its one-way
// transition out of active.
func (r *Reservation) Terminal() bool {
	return r.Status != string(types.RESERVATION_ACTIVE)
}
