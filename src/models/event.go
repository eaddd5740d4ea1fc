package models

import (
	"tix/src/types"
	"time"
)

// Event rows are owned by the catalog bootstrap; nothing else writes them.
type Event struct {
	ID       string     `gorm:"primarykey" json:"id"`
	Title    string     `json:"title,omitempty"`
	Location string     `json:"location,omitempty"`
	StartsAt *time.Time `json:"starts_at,omitempty"`
	Status   string     `gorm:"default:'draft'" json:"status,omitempty"`

	TicketTypes []TicketType `json:"ticket_types,omitempty"`

	types.Timestamps
}
