package http

import (
	"net/http"

	"github.com/go-playground/validator/v10"

	"roots-quiz-service/internal/app"
	"roots-quiz-service/internal/auth"
	"roots-quiz-service/internal/domain"
)

// API wires the quiz use cases to HTTP routes.
type API struct {
	quiz     *app.QuizService
	accounts *app.AccountService
	tokens   *auth.Manager
	ws       *WSHandler
	validate *validator.Validate
}

func NewAPI(quiz *app.QuizService, accounts *app.AccountService, tokens *auth.Manager, hub *app.Hub) *API {
	return &API{
		quiz:     quiz,
		accounts: accounts,
		tokens:   tokens,
		ws:       NewWSHandler(hub, quiz),
		validate: validator.New(),
	}
}

// Routes returns the HTTP handler serving every endpoint.
func (a *API) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /hello", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Hello World!"))
	})
	mux.HandleFunc("GET /ws", a.ws.ServeWS)

	// accounts
	mux.HandleFunc("POST /register", a.HandleRegister)
	mux.HandleFunc("POST /login", a.HandleLogin)
	mux.HandleFunc("POST /forgot-password", a.HandleForgotPassword)
	mux.HandleFunc("POST /reset-password", a.HandleResetPassword)
	mux.HandleFunc("DELETE /deleteAccount", a.HandleDeleteAccount)

	// quiz
	mux.HandleFunc("GET /quiz", a.HandleQuiz)
	mux.HandleFunc("GET /leaderboard", a.HandleLeaderboard)
	mux.HandleFunc("GET /searchQuestions", a.HandleSearchQuestions)
	mux.HandleFunc("POST /correct", a.authenticate(a.HandleAnswer(true)))
	mux.HandleFunc("POST /incorrect", a.authenticate(a.HandleAnswer(false)))

	// progress
	mux.HandleFunc("GET /correctWords", a.authenticate(a.HandleCorrectWords))
	mux.HandleFunc("POST /correctWords", a.authenticate(a.HandleCorrectWords))
	mux.HandleFunc("GET /wrongWords", a.authenticate(a.HandleWrongWords))
	mux.HandleFunc("GET /points", a.authenticate(a.HandlePoints))
	mux.HandleFunc("POST /submitQuiz", a.authenticate(a.HandleSubmitQuiz))
	mux.HandleFunc("GET /quizHistory", a.authenticate(a.HandleQuizHistory))
	mux.HandleFunc("GET /analytics", a.authenticate(a.HandleAnalytics))

	// admin
	mux.HandleFunc("POST /admin-only", a.requireRole(domain.RoleAdmin, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, messageResponse{Message: "Admin route"})
	}))
	mux.HandleFunc("POST /addQuizQuestion", a.requireRole(domain.RoleAdmin, a.HandleAddQuestion))
	mux.HandleFunc("POST /awardBadge", a.requireRole(domain.RoleAdmin, a.HandleAwardBadge))
	mux.HandleFunc("POST /banUser", a.requireRole(domain.RoleAdmin, a.HandleBanUser))
	mux.HandleFunc("POST /sendNotification", a.requireRole(domain.RoleAdmin, a.HandleSendNotification))

	return logRequests(mux)
}
