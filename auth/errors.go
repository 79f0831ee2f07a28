package auth

import (
	"errors"
	"fmt"
)

// Sentinel errors for authentication.
var (
	// ErrAuthentication matches every credential failure.
	ErrAuthentication = errors.New("auth: authentication failed")
	// ErrConsentRequired is returned when no usable token exists and the
	// provider may not open a browser for consent.
	ErrConsentRequired = errors.New("auth: interactive consent required")
)

// AuthError wraps a credential failure with the step that failed.
type AuthError struct {
	// Op is the failing step ("secrets", "token", "consent", "exchange").
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth: %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is makes every AuthError match ErrAuthentication.
func (e *AuthError) Is(target error) bool { return target == ErrAuthentication }
