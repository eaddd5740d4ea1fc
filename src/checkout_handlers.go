package main

import (
	"errors"
	"log"
	"net/http"
	"tix/src/config"
	"tix/src/inventory"
	"tix/src/models"
	"tix/src/pool"
	"tix/src/types"

	"github.com/gin-gonic/gin"
)

// acquireLease claims a pooled connection for the duration of a request's
// database work. Exhaustion and shutdown surface as 503 so callers retry
// with backoff instead of piling onto a saturated process.
func acquireLease(ctx *gin.Context, operationID string) (*pool.Lease, bool) {
	lease, err := pool.GetPool().AcquireLease(operationID)
	if err != nil {
		log.Printf("Error acquiring lease for %s: %s\n", operationID, err.Error())
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return nil, false
	}
	return lease, true
}

func checkoutHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/checkout/validate", func(ctx *gin.Context) {
			var body types.ValidateCartRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			lease, ok := acquireLease(ctx, "checkout-validate")
			if !ok {
				return
			}
			defer lease.Release()
			engine := inventory.NewEngine(lease.DB())
			result, err := engine.ValidateAvailability(body.Items)
			if err != nil {
				log.Printf("Error validating cart: %s\n", err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": result})
		}).
		POST("/reservations", func(ctx *gin.Context) {
			var body types.CreateReservationRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			lease, ok := acquireLease(ctx, "reservation-create")
			if !ok {
				return
			}
			defer lease.Release()
			engine := inventory.NewEngine(lease.DB())
			reservation, err := engine.CreateReservation(
				body.TicketTypeID,
				body.Qty,
				body.SessionID,
				config.GetReservationTTL(),
			)
			if err != nil {
				var stock *types.InsufficientStockError
				switch {
				case errors.Is(err, types.ErrTicketTypeNotFound):
					ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				case errors.As(err, &stock):
					ctx.JSON(http.StatusConflict, gin.H{"error": stock.Error(), "remaining": stock.Remaining})
				case errors.Is(err, types.ErrTicketTypeUnavailable):
					ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				default:
					log.Printf("Error creating reservation for session [%s]: %s\n", body.SessionID, err.Error())
					ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				}
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": reservation})
		}).
		GET("/reservations/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			lease, ok := acquireLease(ctx, "reservation-lookup")
			if !ok {
				return
			}
			defer lease.Release()
			var reservation models.Reservation
			err := lease.DB().
				Model(&models.Reservation{}).
				Where("id = ?", params.ID).
				Preload("TicketType").
				Preload("TicketType.Event").
				First(&reservation).
				Error
			if err != nil {
				err := errors.New("reservation not found")
				ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": reservation})
		}).
		POST("/reservations/:id/fulfill", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body struct {
				TransactionID string `json:"transaction_id" binding:"required"`
			}
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			lease, ok := acquireLease(ctx, "reservation-fulfill")
			if !ok {
				return
			}
			defer lease.Release()
			engine := inventory.NewEngine(lease.DB())
			reservation, err := engine.FulfillReservation(params.ID, body.TransactionID)
			if err != nil {
				switch {
				case errors.Is(err, types.ErrReservationNotFound):
					ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				case errors.Is(err, types.ErrReservationAlreadyTerminal),
					errors.Is(err, types.ErrReservationExpired),
					errors.Is(err, types.ErrCapacityExceeded):
					ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				default:
					log.Printf("Error fulfilling reservation [%d]: %s\n", params.ID, err.Error())
					ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				}
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": reservation})
		}).
		PUT("/reservations/:id/release", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			lease, ok := acquireLease(ctx, "reservation-release")
			if !ok {
				return
			}
			defer lease.Release()
			engine := inventory.NewEngine(lease.DB())
			if err := engine.ReleaseReservation(params.ID); err != nil {
				if errors.Is(err, types.ErrReservationNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
					return
				}
				log.Printf("Error releasing reservation [%d]: %s\n", params.ID, err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusNoContent)
		})
	return g
}
