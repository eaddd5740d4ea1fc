package boot

import (
	"log"
	"tix/src/bootstrap"
	"tix/src/config"
	"tix/src/db"
	"tix/src/inventory"
	"tix/src/lib"
	"tix/src/models"
	"tix/src/pool"

	"gorm.io/gorm"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(
		&models.Event{},
		&models.TicketType{},
		&models.Reservation{},
		&models.BootstrapVersion{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return db
}

// InitCatalog applies the configured snapshot before any handler is mounted.
// A failed apply is fatal: serving traffic against a partially seeded catalog
// would sell tickets that do not exist.
func InitCatalog() {
	result, err := bootstrap.GetService().Initialize()
	if err != nil {
		log.Fatalf("error applying catalog snapshot: %s", err.Error())
	}
	log.Printf("Catalog snapshot %s: %s\n", result.Version, result.Status)
}

// InitPool installs the shared lease pool over the raw database handle.
func InitPool() *pool.Pool {
	p := pool.NewPool(pool.New(pool.Config{
		MaxConnections: config.GetPoolMaxConnections(),
		AcquireTimeout: config.GetPoolAcquireTimeout(),
		Factory:        pool.DatabaseFactory,
	}))
	return p
}

func InitScheduler() {
	gdb := db.GetDb()
	if err := inventory.StartExpirySweep(gdb, config.GetExpirySweepInterval()); err != nil {
		log.Printf("Error starting expiry sweep: %s\n", err.Error())
	}
}

func StopScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("Error retrieving Scheduler. Check logs for info")
		return
	}
	err = sched.Shutdown()
	if err != nil {
		log.Println("An error has occurred while stopping Scheduler. Check logs for info")
		return
	}
}
