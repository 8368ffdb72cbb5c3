package config

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

var (
	rdb    *redis.Client
	locker *redislock.Client
)

// GetRedisLock returns nil until ConnectRedisWithRetry succeeds; callers fall back to
// in-process locking.
func GetRedisLock() *redislock.Client {
	return locker
}

// cacheKey namespaces keys with REDIS_KEY_PREFIX (default "voicebill:") so the cache can share
// a Redis instance.
func cacheKey(key string) string {
	prefix, ok := os.LookupEnv("REDIS_KEY_PREFIX")
	if !ok {
		prefix = "voicebill:"
	}
	return prefix + key
}

// GetCachedJSON decodes key into dest. A miss, or Redis not being connected, reports false.
func GetCachedJSON(ctx context.Context, key string, dest any) (bool, error) {
	if rdb == nil {
		return false, nil
	}
	val, err := rdb.Get(ctx, cacheKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

func SetCachedJSON(ctx context.Context, key string, obj any, exp time.Duration) error {
	if rdb == nil {
		return nil
	}
	payload, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, cacheKey(key), payload, exp).Err()
}

func DeleteCached(ctx context.Context, keys ...string) error {
	if rdb == nil || len(keys) == 0 {
		return nil
	}
	namespaced := make([]string, len(keys))
	for i, key := range keys {
		namespaced[i] = cacheKey(key)
	}
	return rdb.Del(ctx, namespaced...).Err()
}

// ConnectRedisWithRetry connects the cache and lock clients from REDIS_ADDRESS,
// REDIS_PASSWORD and REDIS_DB.
func ConnectRedisWithRetry() {
	redisAddr := strings.TrimSpace(os.Getenv("REDIS_ADDRESS"))
	if redisAddr == "" {
		redisAddr = "localhost:6379"
		log.Printf("REDIS_ADDRESS not set; defaulting to %s", redisAddr)
	}
	opts := &redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       intFromEnv("REDIS_DB", 0),
		PoolSize: intFromEnv("REDIS_POOL_SIZE", 20),
	}

	ctx := context.Background()
	for attempt := 1; ; attempt++ {
		client := redis.NewClient(opts)
		err := client.Ping(ctx).Err()
		if err == nil {
			rdb = client
			locker = redislock.New(rdb)
			log.Printf("connected to redis (attempt=%d addr=%s db=%d)", attempt, redisAddr, opts.DB)
			return
		}
		_ = client.Close()
		sleep := backoff(attempt)
		log.Printf("failed to connect redis (attempt=%d addr=%s): %v; retrying in %s", attempt, redisAddr, err, sleep)
		time.Sleep(sleep)
	}
}
