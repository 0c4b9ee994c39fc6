package service

import (
	"errors"
	"fmt"

	"evento/internal/repository"
)

var (
	ErrNotFound                 = errors.New("not found")
	ErrForbidden                = errors.New("forbidden")
	ErrValidation               = errors.New("validation failed")
	ErrConflict                 = errors.New("conflict")
	ErrQuotaExceeded            = errors.New("quota exceeded")
	ErrNotEligible              = errors.New("not eligible for certificate")
	ErrCertificateAlreadyIssued = errors.New("certificate already issued")
	ErrExternalService          = errors.New("external service unavailable")
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrUserInactive             = errors.New("user account is inactive")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// translate maps repository sentinels onto service sentinels and keeps
// the original error in the chain
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	case errors.Is(err, repository.ErrDuplicate):
		return fmt.Errorf("%s: %w", what, ErrConflict)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}
