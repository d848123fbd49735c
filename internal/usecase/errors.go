package usecase

import (
	"errors"
	"fmt"

	"paygate/internal/rate"
)

// Error classes. Handlers map them with errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrPrecondition = errors.New("precondition failed")
	ErrIntegrity    = errors.New("integrity check failed")
	ErrDelivery     = errors.New("delivery failed")
)

var (
	ErrDuplicateActive = fmt.Errorf("%w: an active OTP already exists for this transaction", ErrPrecondition)
	ErrAlreadyUsed     = fmt.Errorf("%w: OTP already used", ErrPrecondition)
	ErrExpired         = fmt.Errorf("%w: OTP expired", ErrPrecondition)
	ErrTokenUsed       = fmt.Errorf("%w: reset token already used", ErrPrecondition)
	ErrTokenExpired    = fmt.Errorf("%w: reset token expired", ErrPrecondition)
	ErrDuplicateTxn    = fmt.Errorf("%w: transaction already exists", ErrPrecondition)
	ErrChecksum        = fmt.Errorf("%w: checksum mismatch", ErrIntegrity)

	// ErrRateLimited and ErrLocked come from the rate package so callers can
	// read the retry delay with errors.As(*rate.LimitError).
	ErrRateLimited = rate.ErrLimited
	ErrLocked      = rate.ErrLocked
)

func validationError(detail string) error {
	return fmt.Errorf("%w: %s", ErrValidation, detail)
}
