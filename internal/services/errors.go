package services

import "errors"

var (
	// ErrInvalidCredentials is the single answer for unknown email and wrong
	// password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountUnverified means the email verification step was never
	// completed.
	ErrAccountUnverified = errors.New("account email not verified")

	// ErrAccountPending means the role entity is still awaiting an admin
	// decision.
	ErrAccountPending = errors.New("account pending approval")

	// ErrEntityNotFound means the account role has no matching entity row.
	ErrEntityNotFound = errors.New("role entity not found")

	// ErrSessionInvalid is the generic fail-closed answer for a binding
	// context mismatch. Deliberately detail-free.
	ErrSessionInvalid = errors.New("session validation failed")

	// ErrSessionExpired is the generic answer for a missing, expired or
	// already-consumed session token.
	ErrSessionExpired = errors.New("invalid or expired session")

	// ErrCodeMismatch means the supplied verification code is wrong.
	ErrCodeMismatch = errors.New("invalid verification code")

	// ErrTooManyAttempts covers both the verification attempt ceiling and an
	// active registration cool-down.
	ErrTooManyAttempts = errors.New("too many attempts")

	// ErrConflict means a uniqueness constraint (email, phone, license)
	// already holds the submitted value.
	ErrConflict = errors.New("already registered")
)

// AccountRejectedError carries the admin-supplied rejection reason back to
// the caller.
type AccountRejectedError struct {
	Reason string
}

func (e *AccountRejectedError) Error() string {
	if e.Reason == "" {
		return "account rejected"
	}
	return "account rejected: " + e.Reason
}

// ValidationError reports a client-correctable input problem. Its message is
// safe to return verbatim.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func validationErrorf(msg string) error {
	return &ValidationError{Message: msg}
}
