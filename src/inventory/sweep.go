package inventory

import (
	"context"
	"log"
	"time"
	"tix/src/lib"
	"tix/src/models"
	"tix/src/pool"
	"tix/src/types"

	"gorm.io/gorm"
)

// ExpireDueReservations flips lapsed active holds to expired. Pure
// bookkeeping: every availability read already treats lapsed holds as
// non-reserving, so nothing is wrong if this never runs.
func (e *Engine) ExpireDueReservations() (int64, error) {
	res := e.db.
		Model(&models.Reservation{}).
		Where("status = ? AND expires_at < ?", types.RESERVATION_ACTIVE, time.Now()).
		Update("status", types.RESERVATION_EXPIRED)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// StartExpirySweep schedules the periodic cleanup plus a health snapshot
// for dashboards.
func StartExpirySweep(db *gorm.DB, interval time.Duration) error {
	engine := NewEngine(db)
	_, err := lib.CreateCronJob(func() {
		expired, err := engine.ExpireDueReservations()
		if err != nil {
			log.Printf("[sweep] Error expiring reservations: %s\n", err.Error())
			return
		}
		if expired > 0 {
			log.Printf("[sweep] Marked %d reservations expired\n", expired)
		}
		stats := pool.GetPool().GetPoolStatistics()
		health := pool.GetPool().GetHealthStatus()
		ctx := context.Background()
		lib.PublishSnapshot(ctx, "tix:pool:stats", stats, 2*interval)
		lib.PublishSnapshot(ctx, "tix:pool:health", health, 2*interval)
	}, interval)
	if err != nil {
		log.Printf("[sweep] Error scheduling expiry sweep: %s\n", err.Error())
		return err
	}
	sched, err := lib.GetScheduler()
	if err != nil {
		return err
	}
	sched.Start()
	return nil
}
