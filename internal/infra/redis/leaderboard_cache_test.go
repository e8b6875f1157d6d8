package redis

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"roots-quiz-service/internal/domain"
	"roots-quiz-service/internal/infra/memory"
)

func TestLeaderboardCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{RankingLoader: seededUsers(t, 12)}
	cache := NewLeaderboardCache(newClient(mr), loader, 10, time.Minute)

	top, err := cache.Top(context.Background())
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 10 || top[0].Points != 11 {
		t.Fatalf("unexpected top %+v", top)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists(topKey) {
		t.Fatalf("expected sorted set to be stored")
	}

	// Second call should hit cache, loader not incremented.
	cached, err := cache.Top(context.Background())
	if err != nil {
		t.Fatalf("top 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if len(cached) != 10 || cached[0].Email != "user11@example.com" || cached[0].Points != 11 {
		t.Fatalf("unexpected cached top %+v", cached)
	}
	for i := 1; i < len(cached); i++ {
		if cached[i-1].Points < cached[i].Points {
			t.Fatalf("cached entries not sorted: %+v", cached)
		}
	}
}

func TestLeaderboardCacheInvalidate(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{RankingLoader: seededUsers(t, 3)}
	cache := NewLeaderboardCache(newClient(mr), loader, 10, time.Minute)
	ctx := context.Background()

	if _, err := cache.Top(ctx); err != nil {
		t.Fatalf("top: %v", err)
	}
	if err := cache.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists(topKey) {
		t.Fatalf("expected sorted set removed")
	}
	if _, err := cache.Top(ctx); err != nil {
		t.Fatalf("top after invalidate: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, got %d", loader.calls)
	}
}

func TestLeaderboardCacheSkipsFillAfterConcurrentInvalidate(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	var cache *LeaderboardCache
	loader := &countingLoader{RankingLoader: seededUsers(t, 3)}
	loader.during = func() {
		if err := cache.Invalidate(context.Background()); err != nil {
			t.Errorf("invalidate: %v", err)
		}
	}
	cache = NewLeaderboardCache(client, loader, 10, time.Minute)

	if _, err := cache.Top(context.Background()); err != nil {
		t.Fatalf("top: %v", err)
	}
	if mr.Exists(topKey) {
		t.Fatalf("stale load must not be cached")
	}
}

func TestLeaderboardCacheTopAfterInvalidateSkipsInFlightLoad(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	users := seededUsers(t, 1)
	loader := &blockingLoader{RankingLoader: users, started: make(chan struct{}), release: make(chan struct{})}
	cache := NewLeaderboardCache(newClient(mr), loader, 10, time.Minute)
	ctx := context.Background()

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		if _, err := cache.Top(ctx); err != nil {
			t.Errorf("first top: %v", err)
		}
	}()
	<-loader.started

	if _, err := users.Update(ctx, "user0@example.com", func(u *domain.User) error {
		u.Points = 5
		return nil
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := cache.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	secondDone := make(chan []domain.LeaderboardEntry, 1)
	go func() {
		top, err := cache.Top(ctx)
		if err != nil {
			t.Errorf("second top: %v", err)
		}
		secondDone <- top
	}()

	var second []domain.LeaderboardEntry
	select {
	case second = <-secondDone:
	case <-time.After(2 * time.Second):
		close(loader.release)
		t.Fatalf("top after invalidate waited on the earlier load")
	}
	close(loader.release)
	<-firstDone

	if len(second) != 1 || second[0].Points != 5 {
		t.Fatalf("expected fresh leaderboard with 5 points, got %+v", second)
	}
	score, err := mr.ZScore(topKey, "user0@example.com")
	if err != nil {
		t.Fatalf("zscore: %v", err)
	}
	if score != 5 {
		t.Fatalf("stale load replaced cached score: %v", score)
	}
}

// blockingLoader reads the store, then parks its first call until release
// is closed.
type blockingLoader struct {
	RankingLoader
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (l *blockingLoader) TopByPoints(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	entries, err := l.RankingLoader.TopByPoints(ctx, limit)
	first := false
	l.once.Do(func() { first = true })
	if first {
		close(l.started)
		<-l.release
	}
	return entries, err
}

type countingLoader struct {
	RankingLoader
	calls  int
	during func()
}

func (l *countingLoader) TopByPoints(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	l.calls++
	if l.during != nil {
		l.during()
	}
	return l.RankingLoader.TopByPoints(ctx, limit)
}

func seededUsers(t *testing.T, n int) *memory.UserStore {
	t.Helper()
	store := memory.NewUserStore()
	for i := 0; i < n; i++ {
		u := domain.NewUser(fmt.Sprintf("id-%d", i), fmt.Sprintf("user%d@example.com", i), "hash", domain.RoleUser, time.Now())
		u.Points = i
		if _, err := store.Insert(context.Background(), u); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	return store
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
