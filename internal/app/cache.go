package app

import (
	"context"
	"strconv"
	"time"
)

// Cache is the ephemeral key-value store shared by the transition path and readers.
// Implementations: cache.RedisCache, cache.MemoryCache.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
}

const questionKeyPrefix = "regionQuestion:"

// QuestionKey holds the serialized active question of a region.
func QuestionKey(regionID int64) string {
	return questionKeyPrefix + strconv.FormatInt(regionID, 10)
}

// TransitionMarkerKey is present while the region's active cycle is being rewritten.
func TransitionMarkerKey(regionID int64) string {
	return QuestionKey(regionID) + ":in-transition"
}

// Clock returns the current instant. Services default to time.Now.
type Clock func() time.Time
