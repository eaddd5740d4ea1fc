package main

import (
	"log"
	"net/http"
	"tix/src/bootstrap"
	"tix/src/db"
	"tix/src/inventory"
	"tix/src/models"
	"tix/src/pool"

	"github.com/gin-gonic/gin"
)

func adminHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	admin := g.Group("/admin")
	admin.
		GET("/pool/health", func(ctx *gin.Context) {
			health := pool.GetPool().GetHealthStatus()
			status := http.StatusOK
			if health.Status != "healthy" {
				status = http.StatusServiceUnavailable
			}
			ctx.JSON(status, gin.H{"data": health})
		}).
		GET("/pool/stats", func(ctx *gin.Context) {
			stats := pool.GetPool().GetPoolStatistics()
			ctx.JSON(http.StatusOK, gin.H{"data": stats})
		}).
		GET("/bootstrap", func(ctx *gin.Context) {
			var versions []models.BootstrapVersion
			db := db.GetDb()
			err := db.
				Model(&models.BootstrapVersion{}).
				Order("applied_at DESC").
				Limit(20).
				Find(&versions).
				Error
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": versions, "count": len(versions)})
		}).
		POST("/bootstrap/run", func(ctx *gin.Context) {
			result, err := bootstrap.GetService().Initialize()
			if err != nil {
				log.Printf("Error applying catalog snapshot: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": result})
		}).
		POST("/reservations/expire", func(ctx *gin.Context) {
			lease, ok := acquireLease(ctx, "reservation-expire")
			if !ok {
				return
			}
			defer lease.Release()
			engine := inventory.NewEngine(lease.DB())
			expired, err := engine.ExpireDueReservations()
			if err != nil {
				log.Printf("Error expiring lapsed reservations: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"expired": expired})
		})
	return g
}
