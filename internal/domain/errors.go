package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrDelivery     = errors.New("delivery failed")
)

// ErrInvalidCode is the only failure a caller sees when a code cannot be redeemed,
// whether it was wrong, expired, already used or replaced.
var ErrInvalidCode = fmt.Errorf("invalid or expired code: %w", ErrUnauthorized)

// ErrAccountDisabled is returned for any OTP operation on a deactivated user.
var ErrAccountDisabled = fmt.Errorf("account is deactivated: %w", ErrForbidden)
