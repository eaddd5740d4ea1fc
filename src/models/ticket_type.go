package models

import (
	"tix/src/types"
)

// TicketType carries the permanent sold counter. SoldCount moves only when
// a reservation is fulfilled, inside the engine's transaction; nothing else
// may touch it. MaxQuantity nil means unlimited stock.
type TicketType struct {
	ID          string          `gorm:"primarykey" json:"id"`
	EventID     string          `json:"event_id,omitempty"`
	Name        string          `json:"name,omitempty"`
	PriceCents  *int64          `json:"price_cents,omitempty"`
	Status      string          `gorm:"default:'coming-soon'" json:"status,omitempty"`
	MaxQuantity *uint           `json:"max_quantity,omitempty"`
	SoldCount   uint            `json:"sold_count"`
	Metadata    *types.Metadata `gorm:"type:jsonb" json:"metadata,omitempty"`

	Event Event `json:"event,omitempty"`

	Stats *TicketTypeStats `gorm:"-" json:"stats,omitempty"`

	types.Timestamps
}

// TicketTypeStats is a computed view of remaining stock, never persisted.
type TicketTypeStats struct {
	TicketTypeID string `json:"ticket_type_id,omitempty"`
	Remaining    *int64 `json:"remaining,omitempty"`
	Reserved     int64  `json:"reserved"`
}
