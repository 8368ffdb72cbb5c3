package utils

import (
	"context"
	"reflect"

	"github.com/mmdatafocus/voicebill_backend/config"
)

/* generic functions */

func GetTypeName[T any]() string {
	var v T
	return reflect.TypeOf(v).Name()
}

/* Redis */

func redisListKey[T any](ownerId string) string {
	if ownerId == "" {
		return GetTypeName[T]() + "List"
	}
	return GetTypeName[T]() + "List:" + ownerId
}

// StoreRedisList caches an owner-scoped list under TypeList:$owner_id for CACHE_LIFESPAN.
func StoreRedisList[T any](ctx context.Context, list []*T, ownerId string) error {
	return config.SetCachedJSON(ctx, redisListKey[T](ownerId), list, config.CacheLifespan())
}

// RetrieveRedisList returns (nil, nil) on a miss or when Redis is not connected.
func RetrieveRedisList[T any](ctx context.Context, ownerId string) ([]*T, error) {
	var result []*T
	exists, err := config.GetCachedJSON(ctx, redisListKey[T](ownerId), &result)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return result, nil
}

// RemoveRedisList clears TypeList:$owner_id.
func RemoveRedisList[T any](ctx context.Context, ownerId string) error {
	return config.DeleteCached(ctx, redisListKey[T](ownerId))
}
