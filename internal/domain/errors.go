package domain

import "errors"

// Error kinds. Every error returned by the service layer matches exactly one
// of these through errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInsufficientData = errors.New("insufficient data")
	ErrConflict         = errors.New("conflict")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrStoreFailure     = errors.New("store failure")
)

var (
	// ErrUserNotFound is returned when no user matches the given email.
	ErrUserNotFound = kindError(ErrNotFound, "user not found")
	// ErrNoQuestions is returned when the question store is empty.
	ErrNoQuestions = kindError(ErrNotFound, "no quiz question found")
	// ErrNotEnoughAnswers means fewer than four distinct definitions exist.
	ErrNotEnoughAnswers = kindError(ErrInsufficientData, "not enough distinct answers to build a quiz")
	// ErrUserExists is returned on duplicate registration.
	ErrUserExists = kindError(ErrConflict, "user already exists")
	// ErrVersionConflict means an optimistic update lost every retry.
	ErrVersionConflict = kindError(ErrConflict, "user was modified concurrently")
	// ErrInvalidCredentials covers both unknown email and wrong password on login.
	ErrInvalidCredentials = kindError(ErrUnauthorized, "invalid credentials")
	// ErrUserBanned is returned when a banned user tries to log in.
	ErrUserBanned = kindError(ErrForbidden, "user is banned")
	// ErrFederatedAccount is returned when a password check is attempted on an
	// account created through a federated login.
	ErrFederatedAccount = kindError(ErrForbidden, "federated account has no verifiable password")
)

type kindErr struct {
	kind error
	msg  string
}

func (e *kindErr) Error() string { return e.msg }
func (e *kindErr) Unwrap() error { return e.kind }

func kindError(kind error, msg string) error {
	return &kindErr{kind: kind, msg: msg}
}

// Invalid builds an ErrInvalidInput error carrying msg.
func Invalid(msg string) error {
	return kindError(ErrInvalidInput, msg)
}

type storeErr struct {
	op  string
	err error
}

func (e *storeErr) Error() string { return e.op + ": " + e.err.Error() }
func (e *storeErr) Unwrap() error { return e.err }

func (e *storeErr) Is(target error) bool {
	return target == ErrStoreFailure
}

// StoreError wraps a backing store failure. The cause is kept for logging;
// callers only see that it matches ErrStoreFailure.
func StoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &storeErr{op: op, err: err}
}
