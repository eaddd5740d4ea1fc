package main

import (
	"errors"
	"log"
	"net/http"
	"tix/src/db"
	"tix/src/inventory"
	"tix/src/models"
	"tix/src/types"

	"github.com/gin-gonic/gin"
)

type catalogRequestParams struct {
	ID string `uri:"id" binding:"required"`
}

func catalogHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/events", func(ctx *gin.Context) {
			var events []models.Event
			db := db.GetDb()
			err := db.
				Model(&models.Event{}).
				Preload("TicketTypes").
				Order("starts_at asc").
				Find(&events).
				Error
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": events, "count": len(events)})
		}).
		GET("/events/:id", func(ctx *gin.Context) {
			var params catalogRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var event models.Event
			db := db.GetDb()
			err := db.
				Model(&models.Event{}).
				Where("id = ?", params.ID).
				Preload("TicketTypes").
				First(&event).
				Error
			if err != nil {
				err := errors.New("event not found")
				ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": event})
		}).
		GET("/ticket-types/:id", func(ctx *gin.Context) {
			var params catalogRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var tt models.TicketType
			db := db.GetDb()
			err := db.
				Model(&models.TicketType{}).
				Where("id = ?", params.ID).
				Preload("Event").
				First(&tt).
				Error
			if err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": types.ErrTicketTypeNotFound.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": tt})
		}).
		GET("/ticket-types/:id/stats", func(ctx *gin.Context) {
			var params catalogRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			lease, ok := acquireLease(ctx, "ticket-type-stats")
			if !ok {
				return
			}
			defer lease.Release()
			engine := inventory.NewEngine(lease.DB())
			stats, err := engine.GetTicketTypeStats(params.ID)
			if err != nil {
				if errors.Is(err, types.ErrTicketTypeNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
					return
				}
				log.Printf("Error retrieving stats for ticket type [%s]: %s\n", params.ID, err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": stats})
		})
	return g
}
