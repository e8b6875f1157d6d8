package redis

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"roots-quiz-service/internal/domain"
)

// RankingLoader reads the ranked view from the user store.
type RankingLoader interface {
	TopByPoints(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}

// LeaderboardCache keeps the top entries in a Redis sorted set shared by
// every instance and falls back to the loader on a miss.
// Entries are stored as: ZADD leaderboard:top {points} {email}
// Invalidation bumps:     INCR leaderboard:gen
type LeaderboardCache struct {
	client *redis.Client
	loader RankingLoader
	limit  int
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

const (
	topKey = "leaderboard:top"
	genKey = "leaderboard:gen"
)

func NewLeaderboardCache(client *redis.Client, loader RankingLoader, limit int, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{
		client: client,
		loader: loader,
		limit:  limit,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *LeaderboardCache) Top(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	if entries, err := c.cached(ctx); err == nil && len(entries) > 0 {
		return entries, nil
	}

	gen, err := c.generation(ctx, c.client)
	if err != nil {
		return nil, domain.StoreError("leaderboard generation", err)
	}

	// Flights are keyed by generation so a load begun before Invalidate is
	// never handed to callers that arrive after it.
	result, err, _ := c.sf.Do("top:"+strconv.FormatInt(gen, 10), func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if entries, err := c.cached(ctx); err == nil && len(entries) > 0 {
			return entries, nil
		}

		entries, err := c.loader.TopByPoints(ctx, c.limit)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return entries, nil
		}

		// Only fill the cache when no invalidation happened during the load.
		err = c.client.Watch(ctx, func(tx *redis.Tx) error {
			current, err := c.generation(ctx, tx)
			if err != nil || current != gen {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				members := make([]redis.Z, 0, len(entries))
				for _, e := range entries {
					members = append(members, redis.Z{Score: float64(e.Points), Member: e.Email})
				}
				pipe.Del(ctx, topKey)
				pipe.ZAdd(ctx, topKey, members...)
				if ttl := c.ttlWithJitter(); ttl > 0 {
					pipe.Expire(ctx, topKey, ttl)
				}
				return nil
			})
			return err
		}, genKey)
		if err != nil && !errors.Is(err, redis.TxFailedErr) {
			return nil, domain.StoreError("leaderboard fill", err)
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]domain.LeaderboardEntry{}, result.([]domain.LeaderboardEntry)...), nil
}

func (c *LeaderboardCache) Invalidate(ctx context.Context) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Del(ctx, topKey)
		return nil
	})
	if err != nil {
		return domain.StoreError("leaderboard invalidate", err)
	}
	return nil
}

func (c *LeaderboardCache) cached(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	results, err := c.client.ZRevRangeWithScores(ctx, topKey, 0, int64(c.limit)-1).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]domain.LeaderboardEntry, 0, len(results))
	for _, z := range results {
		email, _ := z.Member.(string)
		entries = append(entries, domain.LeaderboardEntry{Email: email, Points: int(z.Score)})
	}
	return entries, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (c *LeaderboardCache) generation(ctx context.Context, cmd getter) (int64, error) {
	gen, err := cmd.Get(ctx, genKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *LeaderboardCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
