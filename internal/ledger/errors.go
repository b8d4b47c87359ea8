package ledger

import (
	"errors"
	"fmt"
	"time"
)

// Business errors returned by the engine. Anything else is an internal failure.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("account not found")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrRateLimited       = errors.New("daily reward already claimed")
)

// RateLimitedError is returned by ClaimDaily while the current window is used up.
type RateLimitedError struct {
	RetryAfter time.Duration // Time left until the next reset boundary
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s, next claim in %s", ErrRateLimited, FormatWait(e.RetryAfter))
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
