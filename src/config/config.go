package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := os.Getenv("DATABASE_PORT")
	DATABASE_SSLMODE := os.Getenv("DATABASE_SSLMODE")
	DATABASE_TIMEZONE := os.Getenv("DATABASE_TIMEZONE")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE, DATABASE_TIMEZONE)
	return dsn
}

// Pool and reservation defaults. Each has an env override so serverless
// deployments can tune them without a rebuild.
const (
	DEFAULT_POOL_MAX_CONNECTIONS  = 10
	DEFAULT_POOL_ACQUIRE_TIMEOUT  = 5 * time.Second
	DEFAULT_POOL_SHUTDOWN_TIMEOUT = 10 * time.Second
	DEFAULT_RESERVATION_TTL       = 5 * time.Minute
	DEFAULT_EXPIRY_SWEEP_INTERVAL = time.Minute
)

func GetPoolMaxConnections() int {
	return envInt("POOL_MAX_CONNECTIONS", DEFAULT_POOL_MAX_CONNECTIONS)
}

func GetPoolAcquireTimeout() time.Duration {
	return envDuration("POOL_ACQUIRE_TIMEOUT", DEFAULT_POOL_ACQUIRE_TIMEOUT)
}

func GetPoolShutdownTimeout() time.Duration {
	return envDuration("POOL_SHUTDOWN_TIMEOUT", DEFAULT_POOL_SHUTDOWN_TIMEOUT)
}

func GetReservationTTL() time.Duration {
	return envDuration("RESERVATION_TTL", DEFAULT_RESERVATION_TTL)
}

func GetExpirySweepInterval() time.Duration {
	return envDuration("EXPIRY_SWEEP_INTERVAL", DEFAULT_EXPIRY_SWEEP_INTERVAL)
}

// GetCatalogSnapshotPath points at the versioned catalog artifact applied on
// cold start. Bootstrap fails when it is unset.
func GetCatalogSnapshotPath() string {
	return os.Getenv("CATALOG_SNAPSHOT_PATH")
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	atoi, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return atoi
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
