package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"roots-quiz-service/internal/domain"
)

func seededUsers(t *testing.T, n int) *UserStore {
	t.Helper()
	store := NewUserStore()
	for i := 0; i < n; i++ {
		email := fmt.Sprintf("user%d@example.com", i)
		u := domain.NewUser(fmt.Sprintf("id-%d", i), email, "hash", domain.RoleUser, time.Now())
		u.Points = i
		if _, err := store.Insert(context.Background(), u); err != nil {
			t.Fatalf("insert %s: %v", email, err)
		}
	}
	return store
}

func TestUserStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := seededUsers(t, 1)

	if _, err := store.Insert(ctx, domain.NewUser("dup", "user0@example.com", "h", domain.RoleUser, time.Now())); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict on duplicate email, got %v", err)
	}

	if err := store.DeleteByEmail(ctx, "user0@example.com"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.FindByEmail(ctx, "user0@example.com"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected user removed, got %v", err)
	}
}

func TestUserStoreUpdateErrorLeavesDocument(t *testing.T) {
	ctx := context.Background()
	store := seededUsers(t, 1)

	_, err := store.Update(ctx, "user0@example.com", func(u *domain.User) error {
		u.Points = 99
		return errors.New("abort")
	})
	if err == nil {
		t.Fatalf("expected fn error to propagate")
	}
	u, _ := store.FindByEmail(ctx, "user0@example.com")
	if u.Points != 0 {
		t.Fatalf("aborted update must not persist, got %d", u.Points)
	}

	if _, err := store.Update(ctx, "missing@example.com", func(*domain.User) error { return nil }); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
}

func TestUserStoreConcurrentUpdatesAllLand(t *testing.T) {
	ctx := context.Background()
	store := seededUsers(t, 1)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = store.Update(ctx, "user0@example.com", func(u *domain.User) error {
				u.ApplyAnswer(fmt.Sprintf("w%d", i), true)
				return nil
			})
		}(i)
	}
	wg.Wait()

	u, _ := store.FindByEmail(ctx, "user0@example.com")
	if u.Points != 250 || len(u.CorrectList) != 50 {
		t.Fatalf("expected every update to land, got points=%d words=%d", u.Points, len(u.CorrectList))
	}
}

func TestTopByPointsOrdersAndLimits(t *testing.T) {
	store := seededUsers(t, 12)

	top, err := store.TopByPoints(context.Background(), 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 10 {
		t.Fatalf("expected 10 entries, got %d", len(top))
	}
	for i := 1; i < len(top); i++ {
		if top[i-1].Points < top[i].Points {
			t.Fatalf("entries not sorted descending: %+v", top)
		}
	}
	if top[0].Points != 11 {
		t.Fatalf("expected leader with 11 points, got %+v", top[0])
	}
}
