package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"roots-quiz-service/internal/app"
	"roots-quiz-service/internal/auth"
	"roots-quiz-service/internal/domain"
	"roots-quiz-service/internal/infra/memory"
	"roots-quiz-service/internal/mailer"
)

const adminEmail = "admin@example.com"

type testServer struct {
	*httptest.Server
	hub   *app.Hub
	users *memory.UserStore
}

func newTestServer(t *testing.T, questions ...domain.Question) *testServer {
	t.Helper()
	if questions == nil {
		questions = sampleQuestions()
	}
	tokens, err := auth.NewManager("test-session-secret-123", "test-reset-secret-1234", time.Hour, 15*time.Minute)
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	users := memory.NewUserStore()
	hub := app.NewHub()
	leaderboard := memory.NewLeaderboardCache(users, 10, time.Minute)
	quiz := app.NewQuizService(memory.NewQuestionStore(questions...), users, leaderboard, hub)
	accounts := app.NewAccountService(users, tokens, mailer.Log{}, leaderboard, hub, []string{adminEmail})

	srv := httptest.NewServer(NewAPI(quiz, accounts, tokens, hub).Routes())
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, hub: hub, users: users}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

// signup registers email and returns a session token for it.
func (s *testServer) signup(t *testing.T, email string) string {
	t.Helper()
	creds := map[string]string{"email": email, "password": "secret-pass"}
	if code := s.do(t, http.MethodPost, "/register", "", creds, nil); code != http.StatusCreated {
		t.Fatalf("register %s: status %d", email, code)
	}
	var login loginResponse
	if code := s.do(t, http.MethodPost, "/login", "", creds, &login); code != http.StatusOK {
		t.Fatalf("login %s: status %d", email, code)
	}
	return login.Token
}

func TestRegisterLoginFlow(t *testing.T) {
	srv := newTestServer(t)
	creds := map[string]string{"email": "alice@example.com", "password": "secret-pass"}

	var reg registerResponse
	if code := srv.do(t, http.MethodPost, "/register", "", creds, &reg); code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	if reg.UserID == "" {
		t.Fatalf("expected user id")
	}
	if code := srv.do(t, http.MethodPost, "/register", "", creds, nil); code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate, got %d", code)
	}

	var login loginResponse
	if code := srv.do(t, http.MethodPost, "/login", "", creds, &login); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if login.Token == "" || login.Message != "Login successful" {
		t.Fatalf("unexpected login response %+v", login)
	}

	bad := map[string]string{"email": "alice@example.com", "password": "nope"}
	if code := srv.do(t, http.MethodPost, "/login", "", bad, nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 on bad password, got %d", code)
	}
}

func TestRegisterValidation(t *testing.T) {
	srv := newTestServer(t)
	var resp errorResponse
	code := srv.do(t, http.MethodPost, "/register", "", map[string]string{"email": "not-an-email"}, &resp)
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
	if resp.Error == "" {
		t.Fatalf("expected error message")
	}
}

func TestAnswerEndpointsUpdatePoints(t *testing.T) {
	srv := newTestServer(t)
	token := srv.signup(t, "alice@example.com")
	body := map[string]string{"email": "alice@example.com", "word": "bene"}

	var resp pointsResponse
	for i := 0; i < 2; i++ {
		if code := srv.do(t, http.MethodPost, "/incorrect", token, body, &resp); code != http.StatusOK {
			t.Fatalf("incorrect: status %d", code)
		}
	}
	if resp.Points != 0 {
		t.Fatalf("expected clamped 0 points, got %d", resp.Points)
	}

	var wrong map[string]map[string]int
	if code := srv.do(t, http.MethodGet, "/wrongWords?email=alice@example.com", token, nil, &wrong); code != http.StatusOK {
		t.Fatalf("wrongWords: status %d", code)
	}
	if wrong["wrongList"]["bene"] != 2 {
		t.Fatalf("expected bene missed twice, got %v", wrong)
	}

	for i := 0; i < 3; i++ {
		if code := srv.do(t, http.MethodPost, "/correct", token, body, &resp); code != http.StatusOK {
			t.Fatalf("correct: status %d", code)
		}
	}
	if resp.Points != 15 {
		t.Fatalf("expected 15 points, got %d", resp.Points)
	}

	var correct map[string]json.RawMessage
	if code := srv.do(t, http.MethodGet, "/correctWords?email=alice@example.com", token, nil, &correct); code != http.StatusOK {
		t.Fatalf("correctWords: status %d", code)
	}
	if got := string(correct["correctList"]); got != `["bene"]` {
		t.Fatalf("expected mastered bene, got %s", got)
	}
}

func TestAnswerRequiresToken(t *testing.T) {
	srv := newTestServer(t)
	srv.signup(t, "alice@example.com")
	body := map[string]string{"email": "alice@example.com", "word": "bene"}

	if code := srv.do(t, http.MethodPost, "/correct", "", body, nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
	if code := srv.do(t, http.MethodPost, "/correct", "garbage", body, nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", code)
	}
}

func TestAnswerForOtherUserForbidden(t *testing.T) {
	srv := newTestServer(t)
	srv.signup(t, "alice@example.com")
	bob := srv.signup(t, "bob@example.com")
	body := map[string]string{"email": "alice@example.com", "word": "bene"}

	if code := srv.do(t, http.MethodPost, "/correct", bob, body, nil); code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", code)
	}

	admin := srv.signup(t, adminEmail)
	if code := srv.do(t, http.MethodPost, "/correct", admin, body, nil); code != http.StatusOK {
		t.Fatalf("expected admin to act on any account, got %d", code)
	}
}

func TestAnswerUnknownUser(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.signup(t, adminEmail)
	body := map[string]string{"email": "ghost@example.com", "word": "bene"}
	if code := srv.do(t, http.MethodPost, "/correct", admin, body, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
}

func TestQuizEndpoint(t *testing.T) {
	srv := newTestServer(t)
	var set domain.AnswerSet
	if code := srv.do(t, http.MethodGet, "/quiz", "", nil, &set); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(set.Answers) != 4 {
		t.Fatalf("expected 4 answers, got %v", set.Answers)
	}
	found := false
	for _, a := range set.Answers {
		if a == set.CorrectAnswer {
			found = true
		}
	}
	if !found {
		t.Fatalf("correct answer %q missing from %v", set.CorrectAnswer, set.Answers)
	}
}

func TestQuizEndpointInsufficientData(t *testing.T) {
	srv := newTestServer(t, domain.Question{Prompt: "bene", CorrectAnswer: "well"})
	if code := srv.do(t, http.MethodGet, "/quiz", "", nil, nil); code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", code)
	}
}

func TestQuizEndpointEmptyStore(t *testing.T) {
	srv := newTestServer(t, []domain.Question{}...)
	if code := srv.do(t, http.MethodGet, "/quiz", "", nil, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		email := fmt.Sprintf("user%d@example.com", i)
		srv.signup(t, email)
		if _, err := srv.users.Update(ctx, email, func(u *domain.User) error {
			u.Points = i * 5
			return nil
		}); err != nil {
			t.Fatalf("seed points: %v", err)
		}
	}

	var top []domain.LeaderboardEntry
	if code := srv.do(t, http.MethodGet, "/leaderboard", "", nil, &top); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(top) != 10 {
		t.Fatalf("expected 10 entries, got %d", len(top))
	}
	if top[0].Email != "user11@example.com" || top[0].Points != 55 {
		t.Fatalf("unexpected leader %+v", top[0])
	}
}

func TestAdminRoutes(t *testing.T) {
	srv := newTestServer(t)
	user := srv.signup(t, "alice@example.com")
	admin := srv.signup(t, adminEmail)

	question := map[string]string{"question": "aqua", "correctAnswer": "water", "topic": "nature"}
	if code := srv.do(t, http.MethodPost, "/addQuizQuestion", user, question, nil); code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", code)
	}
	var created questionCreatedResponse
	if code := srv.do(t, http.MethodPost, "/addQuizQuestion", admin, question, &created); code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}

	var found []domain.Question
	if code := srv.do(t, http.MethodGet, "/searchQuestions?keyword=AQU", "", nil, &found); code != http.StatusOK {
		t.Fatalf("search: status %d", code)
	}
	if len(found) != 1 || found[0].CorrectAnswer != "water" {
		t.Fatalf("unexpected search result %+v", found)
	}

	badge := map[string]string{"email": "alice@example.com", "badge": "Rookie"}
	var first, second badgeResponse
	srv.do(t, http.MethodPost, "/awardBadge", admin, badge, &first)
	srv.do(t, http.MethodPost, "/awardBadge", admin, badge, &second)
	if first.Outcome != domain.BadgeAwarded.String() || second.Outcome != domain.BadgeAlreadyPresent.String() {
		t.Fatalf("unexpected badge outcomes %q then %q", first.Outcome, second.Outcome)
	}

	if code := srv.do(t, http.MethodPost, "/banUser", admin, map[string]string{"email": "alice@example.com"}, nil); code != http.StatusOK {
		t.Fatalf("ban: status %d", code)
	}
	creds := map[string]string{"email": "alice@example.com", "password": "secret-pass"}
	if code := srv.do(t, http.MethodPost, "/login", "", creds, nil); code != http.StatusForbidden {
		t.Fatalf("expected banned login to be 403, got %d", code)
	}
}

func TestSubmitQuizAndAnalytics(t *testing.T) {
	srv := newTestServer(t)
	token := srv.signup(t, "alice@example.com")

	for _, correct := range []bool{false, true, true} {
		body := map[string]any{"email": "alice@example.com", "question": "bene", "correct": correct}
		if code := srv.do(t, http.MethodPost, "/submitQuiz", token, body, nil); code != http.StatusOK {
			t.Fatalf("submitQuiz: status %d", code)
		}
	}

	var history []domain.QuizResult
	if code := srv.do(t, http.MethodGet, "/quizHistory?email=alice@example.com", token, nil, &history); code != http.StatusOK {
		t.Fatalf("quizHistory: status %d", code)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 results, got %d", len(history))
	}

	var analytics domain.Analytics
	if code := srv.do(t, http.MethodGet, "/analytics?email=alice@example.com", token, nil, &analytics); code != http.StatusOK {
		t.Fatalf("analytics: status %d", code)
	}
	if analytics.TotalQuizzes != 3 || analytics.CorrectAnswers != 2 || analytics.Streak != 2 {
		t.Fatalf("unexpected analytics %+v", analytics)
	}
}

func TestDeleteAccountEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.signup(t, "alice@example.com")

	creds := map[string]string{"email": "alice@example.com", "password": "secret-pass"}
	if code := srv.do(t, http.MethodDelete, "/deleteAccount", "", creds, nil); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if code := srv.do(t, http.MethodPost, "/login", "", creds, nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after delete, got %d", code)
	}
}

func sampleQuestions() []domain.Question {
	defs := []string{"well", "water", "earth", "sun", "moon", "love"}
	out := make([]domain.Question, 0, len(defs))
	for i, d := range defs {
		out = append(out, domain.Question{Prompt: fmt.Sprintf("root-%d", i), CorrectAnswer: d})
	}
	return out
}
