package cache

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	goCache "github.com/patrickmn/go-cache"
)

// DefaultExpiration is the default expiration time for cache entries
const DefaultExpiration = 30 * time.Minute

// DefaultCleanupInterval is how often expired items are removed from the cache
const DefaultCleanupInterval = 1 * time.Hour

type scoredMember struct {
	score  float64
	member string
}

// InMemoryCache implements the Cache interface using github.com/patrickmn/go-cache
// for the key-value part. Counters and sorted sets are kept under a mutex so
// that the semantics match the redis implementation closely enough for local
// runs and tests.
type InMemoryCache struct {
	cache *goCache.Cache

	mu       sync.Mutex
	counters map[string]int64
	sets     map[string][]scoredMember
}

// NewInMemoryCache creates a new InMemoryCache instance
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		cache:    goCache.New(DefaultExpiration, DefaultCleanupInterval),
		counters: make(map[string]int64),
		sets:     make(map[string][]scoredMember),
	}
}

func (c *InMemoryCache) Get(_ context.Context, key string) (string, bool) {
	v, found := c.cache.Get(key)
	if !found {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (c *InMemoryCache) Set(ctx context.Context, key string, value string) {
	c.SetWithTTL(ctx, key, value, goCache.NoExpiration)
}

func (c *InMemoryCache) SetWithTTL(_ context.Context, key string, value string, expiration time.Duration) {
	if expiration == 0 {
		expiration = goCache.NoExpiration
	}
	c.cache.Set(key, value, expiration)
}

func (c *InMemoryCache) SetNX(_ context.Context, key string, value string, expiration time.Duration) (bool, error) {
	if expiration == 0 {
		expiration = goCache.NoExpiration
	}
	// Add fails when the key already holds an unexpired value
	if err := c.cache.Add(key, value, expiration); err != nil {
		return false, nil
	}
	return true, nil
}

func (c *InMemoryCache) Delete(_ context.Context, key string) {
	c.cache.Delete(key)
}

func (c *InMemoryCache) DeleteByPrefix(_ context.Context, prefix string) {
	for k := range c.cache.Items() {
		if strings.HasPrefix(k, prefix) {
			c.cache.Delete(k)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.counters {
		if strings.HasPrefix(k, prefix) {
			delete(c.counters, k)
		}
	}
	for k := range c.sets {
		if strings.HasPrefix(k, prefix) {
			delete(c.sets, k)
		}
	}
}

func (c *InMemoryCache) Increment(_ context.Context, key string, delta int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[key] += delta
	return c.counters[key], nil
}

func (c *InMemoryCache) GetCounter(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters[key], nil
}

func (c *InMemoryCache) SortedSetAdd(_ context.Context, key string, score float64, member string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	set := c.sets[key]
	for i := range set {
		if set[i].member == member {
			set[i].score = score
			c.resort(key, set)
			return nil
		}
	}
	set = append(set, scoredMember{score: score, member: member})
	c.resort(key, set)
	return nil
}

// resort keeps members in ascending score order; must hold c.mu
func (c *InMemoryCache) resort(key string, set []scoredMember) {
	sort.SliceStable(set, func(i, j int) bool {
		return set[i].score < set[j].score
	})
	c.sets[key] = set
}

func (c *InMemoryCache) SortedSetRangeByScore(_ context.Context, key string, min, max float64) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var members []string
	for _, m := range c.sets[key] {
		if m.score >= min && m.score <= max {
			members = append(members, m.member)
		}
	}
	return members, nil
}

func (c *InMemoryCache) SortedSetRemoveRangeByScore(_ context.Context, key string, min, max float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	set := c.sets[key]
	kept := set[:0]
	for _, m := range set {
		if m.score < min || m.score > max {
			kept = append(kept, m)
		}
	}
	c.sets[key] = kept
	return nil
}

func (c *InMemoryCache) Flush(_ context.Context) {
	c.cache.Flush()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters = make(map[string]int64)
	c.sets = make(map[string][]scoredMember)
}
