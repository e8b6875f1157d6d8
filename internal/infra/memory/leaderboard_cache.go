package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"roots-quiz-service/internal/domain"
)

// RankingLoader reads the ranked view from the user store.
type RankingLoader interface {
	TopByPoints(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}

// LeaderboardCache caches the top entries with a TTL to avoid repeated
// store scans between mutations.
type LeaderboardCache struct {
	loader RankingLoader
	limit  int
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	entries   []domain.LeaderboardEntry
	expiresAt time.Time
	gen       uint64
}

func NewLeaderboardCache(loader RankingLoader, limit int, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{
		loader: loader,
		limit:  limit,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *LeaderboardCache) Top(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	if entries, ok := c.cached(); ok {
		return entries, nil
	}

	c.mu.RLock()
	gen := c.gen
	c.mu.RUnlock()

	// A load started before an invalidation must not be shared with callers
	// arriving after it, so flights are keyed by generation.
	result, err, _ := c.sf.Do("top:"+strconv.FormatUint(gen, 10), func() (interface{}, error) {
		if entries, ok := c.cached(); ok {
			return entries, nil
		}

		entries, err := c.loader.TopByPoints(ctx, c.limit)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		// An invalidation during the load means entries may be stale.
		if c.gen == gen {
			c.entries = entries
			c.expiresAt = c.clock().Add(c.ttlWithJitter())
		}
		c.mu.Unlock()
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return copyEntries(result.([]domain.LeaderboardEntry)), nil
}

func (c *LeaderboardCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	c.entries = nil
	c.expiresAt = time.Time{}
	c.gen++
	c.mu.Unlock()
	return nil
}

func (c *LeaderboardCache) cached() ([]domain.LeaderboardEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entries != nil && c.expiresAt.After(c.clock()) {
		return copyEntries(c.entries), true
	}
	return nil, false
}

func (c *LeaderboardCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

func copyEntries(in []domain.LeaderboardEntry) []domain.LeaderboardEntry {
	return append([]domain.LeaderboardEntry{}, in...)
}
