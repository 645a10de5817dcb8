package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a uniqueness violation such as a reused email.
	ErrConflict = errors.New("conflict")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated indicates an action that needs a caller received none.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates the caller failed a role, permission or ownership check.
	ErrForbidden = errors.New("forbidden")
	// ErrRateLimited indicates a rate-limit budget was exhausted.
	ErrRateLimited = errors.New("too many requests")
)

// UserSafeMessage returns a message that can be shown to API clients.
// Unauthenticated and forbidden collapse to the same text.
func UserSafeMessage(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return "too many requests"
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrForbidden), errors.Is(err, ErrInvalidCredentials):
		return "not authorized"
	case errors.Is(err, ErrNotFound):
		return "user not found"
	case errors.Is(err, ErrConflict):
		return "email is already in use"
	case errors.Is(err, ErrValidation):
		return err.Error()
	default:
		return "internal error"
	}
}
