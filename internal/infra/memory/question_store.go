package memory

import (
	"context"
	"math/rand"
	"strings"
	"sync"

	"roots-quiz-service/internal/domain"
)

// QuestionStore is an in-memory question table (useful for tests/demos).
type QuestionStore struct {
	mu        sync.RWMutex
	questions []domain.Question
	nextID    int64
}

func NewQuestionStore(seed ...domain.Question) *QuestionStore {
	s := &QuestionStore{}
	for _, q := range seed {
		_, _ = s.InsertQuestion(context.Background(), q)
	}
	return s
}

func (s *QuestionStore) SampleRandomQuestion(_ context.Context) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.questions) == 0 {
		return domain.Question{}, domain.ErrNoQuestions
	}
	return s.questions[rand.Intn(len(s.questions))], nil
}

func (s *QuestionStore) SampleDistinctWrongAnswers(_ context.Context, excludeCorrect string, exclude []string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	skip := make(map[string]struct{}, len(exclude)+1)
	skip[excludeCorrect] = struct{}{}
	for _, e := range exclude {
		skip[e] = struct{}{}
	}

	s.mu.RLock()
	pool := make([]string, 0, len(s.questions))
	for _, q := range s.questions {
		if _, ok := skip[q.CorrectAnswer]; ok {
			continue
		}
		skip[q.CorrectAnswer] = struct{}{}
		pool = append(pool, q.CorrectAnswer)
	}
	s.mu.RUnlock()

	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if len(pool) > limit {
		pool = pool[:limit]
	}
	return pool, nil
}

func (s *QuestionStore) InsertQuestion(_ context.Context, q domain.Question) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	q.ID = s.nextID
	s.questions = append(s.questions, q)
	return q.ID, nil
}

func (s *QuestionStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.questions), nil
}

func (s *QuestionStore) Search(_ context.Context, filter domain.QuestionFilter) ([]domain.Question, error) {
	keyword := strings.ToLower(filter.Keyword)

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Question{}
	for _, q := range s.questions {
		if keyword != "" && !strings.Contains(strings.ToLower(q.Prompt), keyword) {
			continue
		}
		if filter.Difficulty != "" && q.Difficulty != filter.Difficulty {
			continue
		}
		if filter.Topic != "" && q.Topic != filter.Topic {
			continue
		}
		out = append(out, q)
	}
	return out, nil
}
