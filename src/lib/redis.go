package lib

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

func GetRedisClient() *redis.Client {
	if redisClient != nil {
		return redisClient
	}
	redisHost := os.Getenv("REDIS_HOST")
	opt, err := redis.ParseURL(redisHost)
	if err != nil {
		log.Printf("[redis] Error parsing connection string: %s\n", err.Error())
		return nil
	}
	rdb := redis.NewClient(opt)
	redisClient = rdb
	return rdb
}

// NewRedisClient Replace redis instance with custom client implementation
func NewRedisClient(c *redis.Client) *redis.Client {
	redisClient = c
	return redisClient
}

// PublishSnapshot writes a JSON-encoded diagnostics snapshot under the given
// key with a TTL. Dashboards read these keys; nothing in the request path
// depends on them, so failures are logged and dropped.
func PublishSnapshot(ctx context.Context, key string, snapshot any, ttl time.Duration) error {
	rdb := GetRedisClient()
	if rdb == nil {
		return nil
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		log.Printf("[redis] Error encoding snapshot for %s: %s\n", key, err.Error())
		return err
	}
	if err := rdb.Set(ctx, key, payload, ttl).Err(); err != nil {
		log.Printf("[redis] Error publishing snapshot %s: %s\n", key, err.Error())
		return err
	}
	return nil
}
