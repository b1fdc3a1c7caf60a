package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Cache defines the interface for caching operations. It is the single
// source of truth for sticky experiment assignments, recovery plans and
// classification results, and backs the real-time sales window through the
// sorted-set operations.
type Cache interface {
	// Get retrieves a value from the cache
	// Returns the value and a boolean indicating whether the key was found
	Get(ctx context.Context, key string) (string, bool)

	// Set adds a value to the cache with no expiration
	Set(ctx context.Context, key string, value string)

	// SetWithTTL adds a value to the cache with the specified expiration
	// If expiration is 0, the item never expires (but may be evicted)
	SetWithTTL(ctx context.Context, key string, value string, expiration time.Duration)

	// SetNX stores the value only when the key is absent and reports whether
	// this call created it. Racing writers see exactly one true.
	SetNX(ctx context.Context, key string, value string, expiration time.Duration) (bool, error)

	// Delete removes a key from the cache
	Delete(ctx context.Context, key string)

	// DeleteByPrefix removes all keys with the given prefix
	DeleteByPrefix(ctx context.Context, prefix string)

	// Increment atomically adds delta to the counter at key and returns the
	// new value. A missing key counts from zero.
	Increment(ctx context.Context, key string, delta int64) (int64, error)

	// GetCounter reads a counter without mutating it. A missing key reads
	// as zero.
	GetCounter(ctx context.Context, key string) (int64, error)

	// SortedSetAdd adds a member with the given score to the sorted set at key
	SortedSetAdd(ctx context.Context, key string, score float64, member string) error

	// SortedSetRangeByScore returns members with min <= score <= max in
	// ascending score order
	SortedSetRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error)

	// SortedSetRemoveRangeByScore removes members with min <= score <= max
	SortedSetRemoveRangeByScore(ctx context.Context, key string, min, max float64) error

	// Flush removes all items from the cache
	Flush(ctx context.Context)
}

// Predefined cache key prefixes for the retention core
const (
	PrefixSegments    = "segments:v1:"
	PrefixEngagement  = "engagement:v1:"
	PrefixExperiment  = "experiment:v1:"
	PrefixPlan        = "plan:v1:"
	PrefixSalesWindow = "saleswindow:v1:"
	PrefixDailySales  = "dailysales:v1:"
)

// GenerateKey creates a cache key from a prefix and a set of parameters
// It joins all parameters with a colon and appends them to the prefix
func GenerateKey(prefix string, params ...interface{}) string {
	parts := make([]string, len(params)+1)
	parts[0] = strings.TrimSuffix(prefix, ":")

	for i, param := range params {
		parts[i+1] = fmt.Sprintf("%v", param)
	}

	return strings.Join(parts, ":")
}
