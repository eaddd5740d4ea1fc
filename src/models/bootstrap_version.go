package models

import (
	"tix/src/types"
	"time"
)

// BootstrapVersion records one attempt to apply a catalog snapshot. The
// newest successful row's checksum decides whether the next cold start
// re-applies or short-circuits.
type BootstrapVersion struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Version   string    `json:"version,omitempty"`
	Checksum  string    `gorm:"index" json:"checksum,omitempty"`
	Status    string    `json:"status,omitempty"`
	AppliedAt time.Time `json:"applied_at,omitempty"`
	AppliedBy string    `json:"applied_by,omitempty"`

	types.Timestamps
}
