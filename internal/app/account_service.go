package app

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"roots-quiz-service/internal/auth"
	"roots-quiz-service/internal/domain"
)

// Mailer delivers plain-text email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LoginResult is returned by successful logins.
type LoginResult struct {
	Token  string `json:"token"`
	Points int    `json:"points"`
}

// AccountService covers registration, login and account lifecycle.
type AccountService struct {
	users       UserStore
	tokens      *auth.Manager
	mailer      Mailer
	leaderboard LeaderboardRepository
	notifier    Notifier
	admins      map[string]struct{}
	now         func() time.Time
}

func NewAccountService(users UserStore, tokens *auth.Manager, mailer Mailer, leaderboard LeaderboardRepository, notifier Notifier, adminEmails []string) *AccountService {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		admins[normalizeEmail(e)] = struct{}{}
	}
	return &AccountService{
		users:       users,
		tokens:      tokens,
		mailer:      mailer,
		leaderboard: leaderboard,
		notifier:    notifier,
		admins:      admins,
		now:         time.Now,
	}
}

// Register creates a local account and returns its id.
func (s *AccountService) Register(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return "", domain.Invalid("email and password are required")
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return "", domain.ErrUserExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return "", err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", err
	}
	return s.create(ctx, email, hash, false)
}

// Login verifies credentials and issues a session token.
func (s *AccountService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return LoginResult{}, domain.Invalid("email and password are required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return LoginResult{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, err
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return LoginResult{}, domain.ErrInvalidCredentials
	}
	return s.issue(user)
}

// FederatedLogin signs in an identity asserted by an external provider,
// creating the account on first use.
func (s *AccountService) FederatedLogin(ctx context.Context, email string) (LoginResult, bool, error) {
	email = normalizeEmail(email)
	if email == "" {
		return LoginResult{}, false, domain.Invalid("email is required")
	}

	created := false
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		if _, err := s.create(ctx, email, domain.FederatedPasswordSentinel, true); err != nil {
			return LoginResult{}, false, err
		}
		created = true
		user, err = s.users.FindByEmail(ctx, email)
	}
	if err != nil {
		return LoginResult{}, false, err
	}

	res, err := s.issue(user)
	return res, created, err
}

// ForgotPassword mails a short-lived reset token to the user.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return domain.Invalid("email is required")
	}
	if _, err := s.users.FindByEmail(ctx, email); err != nil {
		return err
	}

	token, err := s.tokens.IssueResetToken(email)
	if err != nil {
		return err
	}
	body := "Use this token to reset your password. It expires in 15 minutes.\n\n" + token
	if err := s.mailer.Send(ctx, email, "Password reset", body); err != nil {
		log.Printf("send reset email to %s: %v", email, err)
	}
	return nil
}

// ResetPassword replaces the password of the account named in a reset token.
func (s *AccountService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" || newPassword == "" {
		return domain.Invalid("token and password are required")
	}
	email, err := s.tokens.ParseResetToken(token)
	if err != nil {
		return domain.ErrInvalidCredentials
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	_, err = s.users.Update(ctx, email, func(u *domain.User) error {
		u.PasswordHash = hash
		u.Federated = false
		return nil
	})
	return err
}

// DeleteAccount removes the account after re-verifying its password.
// Federated accounts have no verifiable password and are refused.
func (s *AccountService) DeleteAccount(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return domain.Invalid("email and password are required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.Federated {
		return domain.ErrFederatedAccount
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return domain.ErrInvalidCredentials
	}
	if err := s.users.DeleteByEmail(ctx, email); err != nil {
		return err
	}

	notifyLeaderboard(ctx, s.leaderboard, s.notifier)
	return nil
}

func (s *AccountService) create(ctx context.Context, email, hash string, federated bool) (string, error) {
	role := domain.RoleUser
	if _, ok := s.admins[email]; ok {
		role = domain.RoleAdmin
	}
	user := domain.NewUser(uuid.NewString(), email, hash, role, s.now().UTC())
	user.Federated = federated

	id, err := s.users.Insert(ctx, user)
	if err != nil {
		return "", err
	}
	log.Printf("new user created with id %s", id)
	return id, nil
}

func (s *AccountService) issue(user domain.User) (LoginResult, error) {
	if user.Banned {
		return LoginResult{}, domain.ErrUserBanned
	}
	token, err := s.tokens.IssueToken(auth.Identity{UserID: user.ID, Email: user.Email, Role: user.Role})
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Token: token, Points: user.Points}, nil
}

// SendNotification mails an arbitrary message to a user.
func (s *AccountService) SendNotification(ctx context.Context, to, subject, message string) error {
	to = strings.TrimSpace(to)
	if to == "" || subject == "" || message == "" {
		return domain.Invalid("email, subject and message are required")
	}
	return s.mailer.Send(ctx, to, subject, message)
}
