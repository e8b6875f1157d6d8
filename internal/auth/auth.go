package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

const (
	purposeSession = "session"
	purposeReset   = "reset"
)

var errInvalidToken = errors.New("invalid or expired token")

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID string
	Email  string
	Role   string
}

type claims struct {
	Email   string `json:"email"`
	Role    string `json:"role,omitempty"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// Manager signs and verifies bearer tokens.
type Manager struct {
	secret      []byte
	resetSecret []byte
	ttl         time.Duration
	resetTTL    time.Duration
	now         func() time.Time
}

func NewManager(secret, resetSecret string, ttl, resetTTL time.Duration) (*Manager, error) {
	secret = strings.TrimSpace(secret)
	resetSecret = strings.TrimSpace(resetSecret)
	if len(secret) < 16 || len(resetSecret) < 16 {
		return nil, errors.New("auth secrets must be at least 16 characters")
	}
	if ttl <= 0 || resetTTL <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	return &Manager{
		secret:      []byte(secret),
		resetSecret: []byte(resetSecret),
		ttl:         ttl,
		resetTTL:    resetTTL,
		now:         time.Now,
	}, nil
}

// IssueToken signs a session token for the identity.
func (m *Manager) IssueToken(id Identity) (string, error) {
	if id.Email == "" {
		return "", errors.New("email required")
	}
	return m.sign(m.secret, m.ttl, claims{
		Email:            id.Email,
		Role:             id.Role,
		Purpose:          purposeSession,
		RegisteredClaims: jwt.RegisteredClaims{Subject: id.UserID},
	})
}

// ParseToken verifies a session token.
func (m *Manager) ParseToken(token string) (Identity, error) {
	c, err := m.parse(m.secret, token, purposeSession)
	if err != nil {
		return Identity{}, err
	}
	return Identity{UserID: c.Subject, Email: c.Email, Role: c.Role}, nil
}

// IssueResetToken signs a short-lived password reset token for email.
func (m *Manager) IssueResetToken(email string) (string, error) {
	return m.sign(m.resetSecret, m.resetTTL, claims{Email: email, Purpose: purposeReset})
}

// ParseResetToken verifies a reset token and returns its email.
func (m *Manager) ParseResetToken(token string) (string, error) {
	c, err := m.parse(m.resetSecret, token, purposeReset)
	if err != nil {
		return "", err
	}
	return c.Email, nil
}

func (m *Manager) sign(secret []byte, ttl time.Duration, c claims) (string, error) {
	now := m.now()
	c.IssuedAt = jwt.NewNumericDate(now)
	c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (m *Manager) parse(secret []byte, raw, purpose string) (*claims, error) {
	var c claims
	token, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid || c.Purpose != purpose || c.Email == "" {
		return nil, errInvalidToken
	}
	return &c, nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password required")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// CheckPassword reports whether password matches hash. Hashes that are not
// bcrypt, such as the federated sentinel, never match.
func CheckPassword(hash, password string) bool {
	if hash == "" || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

type identityKey struct{}

// WithIdentity attaches id to ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity attached by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
