package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type Metadata map[string]any

func (a Metadata) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *Metadata) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

type TicketTypeStatus string

const (
	TICKET_TYPE_AVAILABLE   TicketTypeStatus = "available"
	TICKET_TYPE_SOLD_OUT    TicketTypeStatus = "sold-out"
	TICKET_TYPE_COMING_SOON TicketTypeStatus = "coming-soon"
	TICKET_TYPE_CLOSED      TicketTypeStatus = "closed"
	TICKET_TYPE_TEST        TicketTypeStatus = "test"
)

type ReservationStatus string

const (
	RESERVATION_ACTIVE    ReservationStatus = "active"
	RESERVATION_FULFILLED ReservationStatus = "fulfilled"
	RESERVATION_RELEASED  ReservationStatus = "released"
	RESERVATION_EXPIRED   ReservationStatus = "expired"
)

type BootstrapStatus string

const (
	BOOTSTRAP_SUCCESS BootstrapStatus = "success"
	BOOTSTRAP_FAILED  BootstrapStatus = "failed"
)

// Bootstrap outcome labels returned by Initialize.
const (
	BOOTSTRAP_RESULT_SUCCESS         = "success"
	BOOTSTRAP_RESULT_ALREADY_APPLIED = "already_applied"
)

type PoolState string

const (
	POOL_IDLE          PoolState = "IDLE"
	POOL_ACTIVE        PoolState = "ACTIVE"
	POOL_SHUTTING_DOWN PoolState = "SHUTTING_DOWN"
	POOL_SHUTDOWN      PoolState = "SHUTDOWN"
)

type CartItemType string

const (
	CART_ITEM_TICKET   CartItemType = "ticket"
	CART_ITEM_DONATION CartItemType = "donation"
)

// Per-item rejection reasons reported by availability validation.
const (
	REASON_NOT_FOUND          = "not_found"
	REASON_SOLD_OUT           = "sold_out"
	REASON_NOT_YET_AVAILABLE  = "not_yet_available"
	REASON_SALES_CLOSED       = "sales_closed"
	REASON_INSUFFICIENT_STOCK = "insufficient_stock"
)

type CartItem struct {
	Type         CartItemType `json:"type" binding:"required"`
	TicketTypeID string       `json:"ticket_type_id,omitempty"`
	Qty          uint         `json:"qty,omitempty"`
}

type CartItemError struct {
	TicketTypeID string `json:"ticket_type_id"`
	Reason       string `json:"reason"`
	Message      string `json:"message"`
	Remaining    *int64 `json:"remaining,omitempty"`
}

// ValidationResult accumulates every failing cart line instead of stopping
// at the first, so a caller can present all problems at once.
type ValidationResult struct {
	Valid  bool            `json:"valid"`
	Errors []CartItemError `json:"errors"`
}

type ValidateCartRequestBody struct {
	Items []CartItem `json:"items" binding:"required,min=1,dive,cartitem"`
}

type CreateReservationRequestBody struct {
	TicketTypeID string `json:"ticket_type_id" binding:"required"`
	Qty          uint   `json:"qty" binding:"required,min=1"`
	SessionID    string `json:"session_id" binding:"required"`
}

type SimpleRequestParams struct {
	ID uint `uri:"id" binding:"required"`
}
