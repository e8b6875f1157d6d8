package http

import (
	"fmt"
	"net/http"

	"roots-quiz-service/internal/domain"
)

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type answerRequest struct {
	Email string `json:"email" validate:"required,email"`
	Word  string `json:"word" validate:"required"`
}

type resetRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type submitQuizRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Question string `json:"question" validate:"required"`
	Correct  bool   `json:"correct"`
}

type addQuestionRequest struct {
	Question      string   `json:"question" validate:"required"`
	CorrectAnswer string   `json:"correctAnswer" validate:"required"`
	WrongAnswers  []string `json:"wrongAnswers"`
	Difficulty    string   `json:"difficulty"`
	Topic         string   `json:"topic"`
}

type badgeRequest struct {
	Email string `json:"email" validate:"required,email"`
	Badge string `json:"badge" validate:"required"`
}

type notificationRequest struct {
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"required"`
	Message string `json:"message" validate:"required"`
}

type registerResponse struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

type loginResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
	Points  int    `json:"points"`
}

type pointsResponse struct {
	Message string `json:"message,omitempty"`
	Points  int    `json:"points"`
}

type questionCreatedResponse struct {
	Message string `json:"message"`
	ID      int64  `json:"id"`
}

type badgeResponse struct {
	Message string `json:"message"`
	Outcome string `json:"outcome"`
}

func (a *API) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := a.decodeBody(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	id, err := a.accounts.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{Message: "User created successfully", UserID: id})
}

func (a *API) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := a.decodeBody(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	res, err := a.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Message: "Login successful", Token: res.Token, Points: res.Points})
}

func (a *API) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := a.decodeBody(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := a.accounts.ForgotPassword(r.Context(), req.Email); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Password reset email sent"})
}

func (a *API) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := a.decodeBody(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := a.accounts.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Password updated"})
}

func (a *API) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := a.decodeBody(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := a.accounts.DeleteAccount(r.Context(), req.Email, req.Password); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Account deleted successfully"})
}

func (a *API) HandleQuiz(w http.ResponseWriter, r *http.Request) {
	set, err := a.quiz.NextQuiz(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

// HandleAnswer serves /correct and /incorrect.
func (a *API) HandleAnswer(correct bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req answerRequest
		if err := a.decodeBody(r, &req); err != nil {
			writeServiceError(w, err)
			return
		}
		if err := authorizeSubject(r, req.Email); err != nil {
			writeServiceError(w, err)
			return
		}
		points, err := a.quiz.RecordAnswer(r.Context(), req.Email, req.Word, correct)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pointsResponse{Message: "Points updated successfully", Points: points})
	}
}

func (a *API) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	top, err := a.quiz.Leaderboard(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, top)
}

func (a *API) HandleSearchQuestions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	questions, err := a.quiz.SearchQuestions(r.Context(), domain.QuestionFilter{
		Keyword:    q.Get("keyword"),
		Difficulty: q.Get("difficulty"),
		Topic:      q.Get("topic"),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

// subjectEmail reads the target email from the query string, or from the
// JSON body on POST.
func (a *API) subjectEmail(r *http.Request) (string, error) {
	if r.Method == http.MethodPost {
		var req emailRequest
		if err := a.decodeBody(r, &req); err != nil {
			return "", err
		}
		return req.Email, authorizeSubject(r, req.Email)
	}
	email := r.URL.Query().Get("email")
	if email == "" {
		return "", domain.Invalid("email is required")
	}
	return email, authorizeSubject(r, email)
}

func (a *API) HandleCorrectWords(w http.ResponseWriter, r *http.Request) {
	email, err := a.subjectEmail(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	list, err := a.quiz.CorrectWords(r.Context(), email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"correctList": list})
}

func (a *API) HandleWrongWords(w http.ResponseWriter, r *http.Request) {
	email, err := a.subjectEmail(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	list, err := a.quiz.WrongWords(r.Context(), email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"wrongList": list})
}

func (a *API) HandlePoints(w http.ResponseWriter, r *http.Request) {
	email, err := a.subjectEmail(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	points, err := a.quiz.Points(r.Context(), email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pointsResponse{Points: points})
}

func (a *API) HandleSubmitQuiz(w http.ResponseWriter, r *http.Request) {
	var req submitQuizRequest
	if err := a.decodeBody(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := authorizeSubject(r, req.Email); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := a.quiz.SubmitQuizResult(r.Context(), req.Email, req.Question, req.Correct); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Quiz result saved"})
}

func (a *API) HandleQuizHistory(w http.ResponseWriter, r *http.Request) {
	email, err := a.subjectEmail(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	history, err := a.quiz.QuizHistory(r.Context(), email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (a *API) HandleAnalytics(w http.ResponseWriter, r *http.Request) {
	email, err := a.subjectEmail(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	analytics, err := a.quiz.Analytics(r.Context(), email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics)
}

func (a *API) HandleAddQuestion(w http.ResponseWriter, r *http.Request) {
	var req addQuestionRequest
	if err := a.decodeBody(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	// wrongAnswers is accepted for compatibility; distractors are always drawn
	// from the other stored definitions.
	id, err := a.quiz.AddQuestion(r.Context(), domain.Question{
		Prompt:        req.Question,
		CorrectAnswer: req.CorrectAnswer,
		Difficulty:    req.Difficulty,
		Topic:         req.Topic,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, questionCreatedResponse{Message: "Question added successfully", ID: id})
}

func (a *API) HandleAwardBadge(w http.ResponseWriter, r *http.Request) {
	var req badgeRequest
	if err := a.decodeBody(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	outcome, err := a.quiz.AssignBadge(r.Context(), req.Email, req.Badge)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	msg := fmt.Sprintf("Badge %q awarded!", req.Badge)
	if outcome == domain.BadgeAlreadyPresent {
		msg = "Badge already assigned"
	}
	writeJSON(w, http.StatusOK, badgeResponse{Message: msg, Outcome: outcome.String()})
}

func (a *API) HandleBanUser(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := a.decodeBody(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := a.quiz.BanUser(r.Context(), req.Email); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "User banned"})
}

func (a *API) HandleSendNotification(w http.ResponseWriter, r *http.Request) {
	var req notificationRequest
	if err := a.decodeBody(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := a.accounts.SendNotification(r.Context(), req.Email, req.Subject, req.Message); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Notification email sent"})
}
