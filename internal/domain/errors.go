package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrLevelNotFound     = errors.New("level not found")
	ErrRequestNotFound   = errors.New("request not found")
	ErrReportNotFound    = errors.New("daily report not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotPending        = errors.New("request is not pending")
	ErrReferralCycle     = errors.New("referrer would create a cycle")
	ErrEmailTaken        = errors.New("email already registered")
	ErrReferralCodeTaken = errors.New("referral code already in use")
)

// ValidationError rejects malformed input before any mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Invalid is shorthand for a *ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// PreconditionError reports a business rule that blocked the operation,
// such as insufficient balance or a duplicate request.
type PreconditionError struct {
	Reason string
	Err    error
}

func (e *PreconditionError) Error() string {
	if e.Err != nil && e.Reason == "" {
		return e.Err.Error()
	}
	return e.Reason
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// Precondition wraps a sentinel with a caller-facing reason.
func Precondition(err error, reason string) error {
	return &PreconditionError{Reason: reason, Err: err}
}

// CooldownError is returned when an action is attempted before its cool-down ends.
type CooldownError struct {
	Action    string
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s available in %s", e.Action, e.Remaining.Round(time.Second))
}

// IntegrityError means a related record the operation depends on is missing.
type IntegrityError struct {
	Reason string
	Err    error
}

func (e *IntegrityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *IntegrityError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is one of the lookup sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrLevelNotFound) ||
		errors.Is(err, ErrRequestNotFound) ||
		errors.Is(err, ErrReportNotFound)
}
