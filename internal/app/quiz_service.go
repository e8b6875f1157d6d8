package app

import (
	"context"
	"log"
	"strings"
	"time"

	"roots-quiz-service/internal/domain"
)

// QuestionStore abstracts the relational table of root/definition pairs.
type QuestionStore interface {
	SampleRandomQuestion(ctx context.Context) (domain.Question, error)
	// SampleDistinctWrongAnswers returns up to limit distinct definitions that
	// differ from excludeCorrect and from every value in exclude.
	SampleDistinctWrongAnswers(ctx context.Context, excludeCorrect string, exclude []string, limit int) ([]string, error)
	InsertQuestion(ctx context.Context, q domain.Question) (int64, error)
	Count(ctx context.Context) (int, error)
	Search(ctx context.Context, filter domain.QuestionFilter) ([]domain.Question, error)
}

// UserStore abstracts the per-user progress documents.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (domain.User, error)
	Insert(ctx context.Context, user domain.User) (string, error)
	// Update applies fn to the current document and persists the result. fn may
	// run more than once when a concurrent write wins; it must be side-effect
	// free apart from mutating the user it is handed.
	Update(ctx context.Context, email string, fn func(*domain.User) error) (domain.User, error)
	DeleteByEmail(ctx context.Context, email string) error
	TopByPoints(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
	AppendQuizResult(ctx context.Context, email string, result domain.QuizResult) error
}

// LeaderboardRepository serves the ranked view, usually through a cache.
type LeaderboardRepository interface {
	Top(ctx context.Context) ([]domain.LeaderboardEntry, error)
	Invalidate(ctx context.Context) error
}

// Notifier pushes events to live listeners. Delivery is fire-and-forget.
type Notifier interface {
	Broadcast(ctx context.Context, event string, payload any) error
}

// QuizService contains the quiz and progress use cases.
type QuizService struct {
	questions   QuestionStore
	users       UserStore
	leaderboard LeaderboardRepository
	notifier    Notifier
	now         func() time.Time
}

func NewQuizService(questions QuestionStore, users UserStore, leaderboard LeaderboardRepository, notifier Notifier) *QuizService {
	return &QuizService{
		questions:   questions,
		users:       users,
		leaderboard: leaderboard,
		notifier:    notifier,
		now:         time.Now,
	}
}

// NextQuiz builds a fresh multiple-choice answer set.
func (s *QuizService) NextQuiz(ctx context.Context) (domain.AnswerSet, error) {
	return BuildAnswerSet(ctx, s.questions)
}

// RecordAnswer applies a correct or incorrect answer for word and returns the
// user's new point total.
func (s *QuizService) RecordAnswer(ctx context.Context, email, word string, correct bool) (int, error) {
	email = normalizeEmail(email)
	word = strings.TrimSpace(word)
	if email == "" || word == "" {
		return 0, domain.Invalid("email and word are required")
	}

	var points int
	_, err := s.users.Update(ctx, email, func(u *domain.User) error {
		if u.Banned {
			return domain.ErrUserBanned
		}
		points = u.ApplyAnswer(word, correct)
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.leaderboardChanged(ctx)
	return points, nil
}

// Leaderboard returns the top users by points.
func (s *QuizService) Leaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	return s.leaderboard.Top(ctx)
}

// AssignBadge awards badge to the user; awarding a held badge is a no-op.
func (s *QuizService) AssignBadge(ctx context.Context, email, badge string) (domain.BadgeOutcome, error) {
	email = normalizeEmail(email)
	badge = strings.TrimSpace(badge)
	if email == "" || badge == "" {
		return 0, domain.Invalid("email and badge are required")
	}

	var outcome domain.BadgeOutcome
	_, err := s.users.Update(ctx, email, func(u *domain.User) error {
		outcome = u.AddBadge(badge)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return outcome, nil
}

// BanUser marks the user as banned.
func (s *QuizService) BanUser(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return domain.Invalid("email is required")
	}
	_, err := s.users.Update(ctx, email, func(u *domain.User) error {
		u.Banned = true
		return nil
	})
	return err
}

// CorrectWords returns the user's mastery list.
func (s *QuizService) CorrectWords(ctx context.Context, email string) (domain.CorrectList, error) {
	u, err := s.findUser(ctx, email)
	if err != nil {
		return nil, err
	}
	return u.CorrectList, nil
}

// WrongWords returns the user's miss counts.
func (s *QuizService) WrongWords(ctx context.Context, email string) (map[string]int, error) {
	u, err := s.findUser(ctx, email)
	if err != nil {
		return nil, err
	}
	return u.WrongList, nil
}

// Points returns the user's current total.
func (s *QuizService) Points(ctx context.Context, email string) (int, error) {
	u, err := s.findUser(ctx, email)
	if err != nil {
		return 0, err
	}
	return u.Points, nil
}

// SubmitQuizResult appends an entry to the user's quiz history.
func (s *QuizService) SubmitQuizResult(ctx context.Context, email, question string, correct bool) error {
	email = normalizeEmail(email)
	if email == "" || strings.TrimSpace(question) == "" {
		return domain.Invalid("email and question are required")
	}
	// tokens issued before a ban are still valid, so the flag is checked here too
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if u.Banned {
		return domain.ErrUserBanned
	}
	return s.users.AppendQuizResult(ctx, email, domain.QuizResult{
		Question:  question,
		Correct:   correct,
		Timestamp: s.now().UTC(),
	})
}

// QuizHistory returns the user's quiz results in submission order.
func (s *QuizService) QuizHistory(ctx context.Context, email string) ([]domain.QuizResult, error) {
	u, err := s.findUser(ctx, email)
	if err != nil {
		return nil, err
	}
	return u.QuizResults, nil
}

// Analytics summarizes the user's quiz history.
func (s *QuizService) Analytics(ctx context.Context, email string) (domain.Analytics, error) {
	u, err := s.findUser(ctx, email)
	if err != nil {
		return domain.Analytics{}, err
	}
	return u.Analytics(), nil
}

// AddQuestion inserts a new root/definition pair.
func (s *QuizService) AddQuestion(ctx context.Context, q domain.Question) (int64, error) {
	q.Prompt = strings.TrimSpace(q.Prompt)
	q.CorrectAnswer = strings.TrimSpace(q.CorrectAnswer)
	if q.Prompt == "" || q.CorrectAnswer == "" {
		return 0, domain.Invalid("question and correctAnswer are required")
	}
	return s.questions.InsertQuestion(ctx, q)
}

// SearchQuestions filters questions by keyword, difficulty and topic.
func (s *QuizService) SearchQuestions(ctx context.Context, filter domain.QuestionFilter) ([]domain.Question, error) {
	filter.Keyword = strings.TrimSpace(filter.Keyword)
	return s.questions.Search(ctx, filter)
}

// QuestionCount reports how many questions are stored.
func (s *QuizService) QuestionCount(ctx context.Context) (int, error) {
	return s.questions.Count(ctx)
}

func (s *QuizService) findUser(ctx context.Context, email string) (domain.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return domain.User{}, domain.Invalid("email is required")
	}
	return s.users.FindByEmail(ctx, email)
}

// leaderboardChanged drops the cached ranking and tells listeners about the
// new one. Failures are logged; the mutation has already been stored.
func (s *QuizService) leaderboardChanged(ctx context.Context) {
	notifyLeaderboard(ctx, s.leaderboard, s.notifier)
}

func notifyLeaderboard(ctx context.Context, leaderboard LeaderboardRepository, notifier Notifier) {
	if err := leaderboard.Invalidate(ctx); err != nil {
		log.Printf("leaderboard invalidate: %v", err)
	}
	if notifier == nil {
		return
	}
	top, err := leaderboard.Top(ctx)
	if err != nil {
		log.Printf("leaderboard reload: %v", err)
		return
	}
	if err := notifier.Broadcast(ctx, domain.EventLeaderboardUpdate, top); err != nil {
		log.Printf("broadcast %s: %v", domain.EventLeaderboardUpdate, err)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
