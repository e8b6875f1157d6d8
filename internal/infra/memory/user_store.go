package memory

import (
	"context"
	"sort"
	"sync"

	"roots-quiz-service/internal/domain"
)

// UserStore is an in-memory implementation of app.UserStore. Updates run
// under the store lock, so writes to the same user are serialized.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]domain.User)}
}

func (s *UserStore) FindByEmail(_ context.Context, email string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[email]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u.Clone(), nil
}

func (s *UserStore) Insert(_ context.Context, user domain.User) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Email]; ok {
		return "", domain.ErrUserExists
	}
	user.Version = 1
	s.users[user.Email] = user.Clone()
	return user.ID, nil
}

func (s *UserStore) Update(_ context.Context, email string, fn func(*domain.User) error) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.users[email]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	next := current.Clone()
	if err := fn(&next); err != nil {
		return domain.User{}, err
	}
	next.Version = current.Version + 1
	s.users[email] = next
	return next.Clone(), nil
}

func (s *UserStore) DeleteByEmail(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[email]; !ok {
		return domain.ErrUserNotFound
	}
	delete(s.users, email)
	return nil
}

func (s *UserStore) TopByPoints(_ context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	entries := make([]domain.LeaderboardEntry, 0, len(s.users))
	for _, u := range s.users {
		entries = append(entries, domain.LeaderboardEntry{Email: u.Email, Points: u.Points})
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Points > entries[j].Points
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *UserStore) AppendQuizResult(_ context.Context, email string, result domain.QuizResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return domain.ErrUserNotFound
	}
	u = u.Clone()
	u.QuizResults = append(u.QuizResults, result)
	u.Version++
	s.users[email] = u
	return nil
}
