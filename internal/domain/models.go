package domain

import "time"

// Roles carried by authenticated identities.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// FederatedPasswordSentinel is stored as the password hash of accounts
// created through a federated login. It is not a bcrypt hash, so no
// password ever verifies against it.
const FederatedPasswordSentinel = "!federated"

// EventLeaderboardUpdate is broadcast after leaderboard-affecting mutations.
const EventLeaderboardUpdate = "leaderboardUpdate"

// Question is a root/definition pair from the question store.
type Question struct {
	ID            int64  `json:"id"`
	Prompt        string `json:"question"`
	CorrectAnswer string `json:"correct_answer"`
	Difficulty    string `json:"difficulty,omitempty"`
	Topic         string `json:"topic,omitempty"`
}

// QuestionFilter narrows a question search. Empty fields are ignored.
type QuestionFilter struct {
	Keyword    string
	Difficulty string
	Topic      string
}

// AnswerSet is a question with four shuffled candidate answers.
type AnswerSet struct {
	Question      string   `json:"question"`
	CorrectAnswer string   `json:"correct_answer"`
	Answers       []string `json:"answers"`
}

// QuizResult is one entry of a user's quiz history.
type QuizResult struct {
	Question  string    `json:"question"`
	Correct   bool      `json:"correct"`
	Timestamp time.Time `json:"timestamp"`
}

// LeaderboardEntry is the public view of a user's score.
type LeaderboardEntry struct {
	Email  string `json:"email"`
	Points int    `json:"points"`
}

// Analytics summarizes a user's quiz history.
type Analytics struct {
	TotalQuizzes     int `json:"totalQuizzes"`
	CorrectAnswers   int `json:"correctAnswers"`
	IncorrectAnswers int `json:"incorrectAnswers"`
	Streak           int `json:"streak"`
}

// Event is a notification pushed to live listeners.
type Event struct {
	Name    string `json:"event"`
	Payload any    `json:"data"`
}

// BadgeOutcome reports what AssignBadge did.
type BadgeOutcome int

const (
	BadgeAwarded BadgeOutcome = iota + 1
	BadgeAlreadyPresent
)

func (o BadgeOutcome) String() string {
	switch o {
	case BadgeAwarded:
		return "awarded"
	case BadgeAlreadyPresent:
		return "already_present"
	default:
		return "unknown"
	}
}
