package lib

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

func TestPublishSnapshot(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	NewRedisClient(rdb)

	snapshot := map[string]any{"state": "ACTIVE", "active_leases": 3}
	payload, _ := json.Marshal(snapshot)
	mock.ExpectSet("tix:pool:stats", payload, time.Minute).SetVal("OK")

	err := PublishSnapshot(context.Background(), "tix:pool:stats", snapshot, time.Minute)
	assert.Nil(t, err)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestPublishSnapshotReturnsWriteError(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	NewRedisClient(rdb)

	snapshot := map[string]any{"state": "ACTIVE"}
	payload, _ := json.Marshal(snapshot)
	mock.ExpectSet("tix:pool:health", payload, time.Minute).SetErr(errors.New("connection refused"))

	err := PublishSnapshot(context.Background(), "tix:pool:health", snapshot, time.Minute)
	assert.NotNil(t, err)
}
