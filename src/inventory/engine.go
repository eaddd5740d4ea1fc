package inventory

import (
	"errors"
	"fmt"
	"log"
	"time"
	"tix/src/models"
	"tix/src/types"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Engine owns every mutation of TicketType.SoldCount and
// Reservation.Status. Remaining stock is always computed as
// maxQuantity - soldCount - active non-expired holds; soldCount and the
// reservations table stay separate so an abandoned checkout never
// permanently reduces availability.
type Engine struct {
	db *gorm.DB
}

func NewEngine(db *gorm.DB) *Engine {
	return &Engine{db: db}
}

// ValidateAvailability checks every ticket line in the cart and accumulates
// one error per failing item instead of stopping at the first. Non-ticket
// lines such as donations are skipped.
func (e *Engine) ValidateAvailability(items []types.CartItem) (types.ValidationResult, error) {
	result := types.ValidationResult{Valid: true, Errors: []types.CartItemError{}}
	for _, item := range items {
		if item.Type != types.CART_ITEM_TICKET {
			continue
		}
		itemErr, err := e.checkItem(e.db, item, time.Now())
		if err != nil {
			return types.ValidationResult{}, err
		}
		if itemErr != nil {
			result.Errors = append(result.Errors, *itemErr)
		}
	}
	result.Valid = len(result.Errors) == 0
	return result, nil
}

func (e *Engine) checkItem(tx *gorm.DB, item types.CartItem, now time.Time) (*types.CartItemError, error) {
	var tt models.TicketType
	err := tx.
		Model(&models.TicketType{}).
		Where("id = ?", item.TicketTypeID).
		First(&tt).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &types.CartItemError{
				TicketTypeID: item.TicketTypeID,
				Reason:       types.REASON_NOT_FOUND,
				Message:      fmt.Sprintf("ticket type %s not found", item.TicketTypeID),
			}, nil
		}
		return nil, err
	}
	switch types.TicketTypeStatus(tt.Status) {
	case types.TICKET_TYPE_SOLD_OUT:
		return &types.CartItemError{
			TicketTypeID: item.TicketTypeID,
			Reason:       types.REASON_SOLD_OUT,
			Message:      fmt.Sprintf("%s is sold out", tt.Name),
		}, nil
	case types.TICKET_TYPE_COMING_SOON:
		return &types.CartItemError{
			TicketTypeID: item.TicketTypeID,
			Reason:       types.REASON_NOT_YET_AVAILABLE,
			Message:      fmt.Sprintf("%s is not yet available", tt.Name),
		}, nil
	case types.TICKET_TYPE_CLOSED:
		return &types.CartItemError{
			TicketTypeID: item.TicketTypeID,
			Reason:       types.REASON_SALES_CLOSED,
			Message:      fmt.Sprintf("sales for %s are closed", tt.Name),
		}, nil
	}
	if tt.MaxQuantity == nil {
		return nil, nil
	}
	reserved, err := activeReservedQty(tx, tt.ID, now)
	if err != nil {
		return nil, err
	}
	remaining := int64(*tt.MaxQuantity) - int64(tt.SoldCount) - reserved
	if remaining < 0 {
		remaining = 0
	}
	if int64(item.Qty) > remaining {
		return &types.CartItemError{
			TicketTypeID: item.TicketTypeID,
			Reason:       types.REASON_INSUFFICIENT_STOCK,
			Message:      fmt.Sprintf("only %d remaining for %s", remaining, tt.Name),
			Remaining:    &remaining,
		}, nil
	}
	return nil, nil
}

// activeReservedQty sums the holds that still count against stock. A row
// past its expires_at stops counting here even before the sweep flips its
// stored status, so correctness never waits on a timer.
func activeReservedQty(tx *gorm.DB, ticketTypeID string, now time.Time) (int64, error) {
	var reserved int64
	err := tx.
		Model(&models.Reservation{}).
		Where("ticket_type_id = ? AND status = ? AND expires_at > ?", ticketTypeID, types.RESERVATION_ACTIVE, now).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&reserved).
		Error
	if err != nil {
		return 0, err
	}
	return reserved, nil
}

// CreateReservation holds quantity units of a ticket type for the checkout
// session. Availability is re-checked inside the same transaction, under a
// row lock on the ticket type, so two requests racing for the last unit
// serialize and only one wins. A second call with the same session and
// ticket type while a hold is still active returns the existing hold
// instead of doubling it.
func (e *Engine) CreateReservation(ticketTypeID string, quantity uint, sessionID string, ttl time.Duration) (*models.Reservation, error) {
	if quantity == 0 {
		return nil, errors.New("reservation quantity must be positive")
	}
	var reservation models.Reservation
	err := e.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		err := tx.
			Model(&models.Reservation{}).
			Where("ticket_type_id = ? AND session_id = ? AND status = ? AND expires_at > ?",
				ticketTypeID, sessionID, types.RESERVATION_ACTIVE, now).
			First(&reservation).
			Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var tt models.TicketType
		err = tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", ticketTypeID).
			First(&tt).
			Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return types.ErrTicketTypeNotFound
			}
			return err
		}
		if itemErr := statusError(&tt); itemErr != nil {
			return itemErr
		}
		if tt.MaxQuantity != nil {
			reserved, err := activeReservedQty(tx, tt.ID, now)
			if err != nil {
				return err
			}
			remaining := int64(*tt.MaxQuantity) - int64(tt.SoldCount) - reserved
			if remaining < 0 {
				remaining = 0
			}
			if int64(quantity) > remaining {
				return &types.InsufficientStockError{
					TicketTypeID: ticketTypeID,
					Requested:    quantity,
					Remaining:    remaining,
				}
			}
		}

		reservation = models.Reservation{
			TicketTypeID: ticketTypeID,
			Quantity:     quantity,
			SessionID:    sessionID,
			Status:       string(types.RESERVATION_ACTIVE),
			ExpiresAt:    now.Add(ttl),
		}
		return tx.Create(&reservation).Error
	})
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// FulfillReservation turns an active hold into permanent sold inventory in
// one transaction. The second call for the same reservation fails with
// ErrReservationAlreadyTerminal and never double-increments soldCount; the
// caller must treat any failure here as "do not charge".
func (e *Engine) FulfillReservation(id uint, transactionID string) (*models.Reservation, error) {
	var reservation models.Reservation
	err := e.db.Transaction(func(tx *gorm.DB) error {
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&reservation).
			Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return types.ErrReservationNotFound
			}
			return err
		}
		if reservation.Terminal() {
			return types.ErrReservationAlreadyTerminal
		}
		now := time.Now()
		if reservation.Expired(now) {
			return types.ErrReservationExpired
		}

		err = tx.
			Model(&models.Reservation{}).
			Where("id = ? AND status = ?", id, types.RESERVATION_ACTIVE).
			Updates(map[string]any{
				"status":         types.RESERVATION_FULFILLED,
				"fulfilled_at":   now,
				"transaction_id": transactionID,
			}).
			Error
		if err != nil {
			return err
		}

		// The capacity predicate re-asserts the soldCount invariant at the
		// write itself; zero rows affected means the increment would
		// oversell and the whole transaction rolls back.
		res := tx.
			Model(&models.TicketType{}).
			Where("id = ? AND (max_quantity IS NULL OR sold_count + ? <= max_quantity)",
				reservation.TicketTypeID, reservation.Quantity).
			Update("sold_count", gorm.Expr("sold_count + ?", reservation.Quantity))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return types.ErrCapacityExceeded
		}

		reservation.Status = string(types.RESERVATION_FULFILLED)
		reservation.FulfilledAt = &now
		reservation.TransactionID = &transactionID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// ReleaseReservation releases an active hold when checkout is abandoned.
// Releasing a reservation that already reached a terminal state is a no-op.
func (e *Engine) ReleaseReservation(id uint) error {
	return e.db.Transaction(func(tx *gorm.DB) error {
		var reservation models.Reservation
		err := tx.
			Model(&models.Reservation{}).
			Where("id = ?", id).
			First(&reservation).
			Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return types.ErrReservationNotFound
			}
			return err
		}
		if reservation.Terminal() {
			return nil
		}
		return tx.
			Model(&models.Reservation{}).
			Where("id = ? AND status = ?", id, types.RESERVATION_ACTIVE).
			Update("status", types.RESERVATION_RELEASED).
			Error
	})
}

// GetTicketTypeStats computes the remaining/reserved view for one ticket
// type. Remaining is nil for unlimited ticket types.
func (e *Engine) GetTicketTypeStats(ticketTypeID string) (*models.TicketTypeStats, error) {
	var tt models.TicketType
	err := e.db.
		Model(&models.TicketType{}).
		Where("id = ?", ticketTypeID).
		First(&tt).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrTicketTypeNotFound
		}
		return nil, err
	}
	reserved, err := activeReservedQty(e.db, ticketTypeID, time.Now())
	if err != nil {
		return nil, err
	}
	stats := models.TicketTypeStats{TicketTypeID: ticketTypeID, Reserved: reserved}
	if tt.MaxQuantity != nil {
		remaining := int64(*tt.MaxQuantity) - int64(tt.SoldCount) - reserved
		if remaining < 0 {
			remaining = 0
		}
		stats.Remaining = &remaining
	}
	return &stats, nil
}

func statusError(tt *models.TicketType) error {
	switch types.TicketTypeStatus(tt.Status) {
	case types.TICKET_TYPE_SOLD_OUT, types.TICKET_TYPE_COMING_SOON, types.TICKET_TYPE_CLOSED:
		log.Printf("Reservation refused for ticket type %s with status %s\n", tt.ID, tt.Status)
		return fmt.Errorf("%w: %s is %s", types.ErrTicketTypeUnavailable, tt.ID, tt.Status)
	}
	return nil
}
