package application

import (
	"errors"
	"fmt"

	"github.com/oksasatya/fluxa/pkg/validation"
)

// Caller-facing failures. None of them carries internal detail.
var (
	ErrDuplicateAccount        = errors.New("an account with this email already exists")
	ErrInvalidCredentials      = errors.New("incorrect email or password")
	ErrInactiveAccount         = errors.New("inactive account")
	ErrOAuthVerificationFailed = errors.New("identity provider verification failed")
	ErrUnauthenticated         = errors.New("could not validate credentials")
	ErrInsufficientPrivilege   = errors.New("not enough permissions")
	ErrInvalidInput            = errors.New("invalid input")
	ErrNotFound                = errors.New("not found")
	ErrInternal                = errors.New("internal error")

	ErrRevocationDisabled   = errors.New("token revocation is not configured")
	ErrTooManyAttempts      = errors.New("too many login attempts")
	ErrInvalidPlan          = errors.New("invalid plan")
	ErrNoActiveSubscription = errors.New("no active subscription")
	ErrInvalidWebhook       = errors.New("invalid webhook payload or signature")
)

// validateInput returns an error matching both ErrInvalidInput and
// *validation.Error so callers can pull per-field details.
func validateInput(in any) error {
	if err := validation.Check(in); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}
