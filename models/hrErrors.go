package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/hr_backend/geo"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInvalidRange   = errors.New("invalid range")
	ErrSiteInactive   = errors.New("site is inactive")

	ErrOTPNotFound = errors.New("no valid otp for employee")
	ErrOTPExpired  = errors.New("otp expired")
	ErrInvalidCode = errors.New("invalid otp code")
	ErrOutOfRange  = errors.New("position is outside the site radius")

	ErrBlocked           = errors.New("otp issuance is blocked")
	ErrAlreadyCompleted  = errors.New("attendance already completed for the day")
	ErrOverlap           = errors.New("leave overlaps an existing leave")
	ErrLocked            = errors.New("payroll period is locked")
	ErrAlreadyProcessed  = errors.New("payroll already processed")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrQRAlreadyIssued   = errors.New("qr code already issued for site")
	ErrDuplicate         = errors.New("duplicate record")
	ErrBusy              = errors.New("resource is busy, retry")
)

type ErrorKind string

const (
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindNotFound   ErrorKind = "not_found"
	ErrorKindConflict   ErrorKind = "conflict"
	ErrorKindSecurity   ErrorKind = "security"
	ErrorKindInternal   ErrorKind = "internal"
)

// KindOf classifies err into the caller-facing error category.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidRange), errors.Is(err, ErrSiteInactive),
		errors.Is(err, geo.ErrInvalidCoordinates):
		return ErrorKindValidation
	case errors.Is(err, ErrRecordNotFound), errors.Is(err, ErrOTPNotFound):
		return ErrorKindNotFound
	case errors.Is(err, ErrInvalidCode), errors.Is(err, ErrOTPExpired), errors.Is(err, ErrOutOfRange):
		return ErrorKindSecurity
	case errors.Is(err, ErrAlreadyCompleted), errors.Is(err, ErrLocked), errors.Is(err, ErrOverlap),
		errors.Is(err, ErrBlocked), errors.Is(err, ErrAlreadyProcessed), errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrQRAlreadyIssued), errors.Is(err, ErrDuplicate), errors.Is(err, ErrBusy):
		return ErrorKindConflict
	}
	return ErrorKindInternal
}

// ValidationError names the offending field.
type ValidationError struct {
	Field string
	Err   error
}

func NewValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() []error { return []error{ErrInvalidInput, e.Err} }

type BlockedError struct {
	Until time.Time
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("%v until %s", ErrBlocked, e.Until.UTC().Format(time.RFC3339))
}

func (e *BlockedError) Unwrap() error { return ErrBlocked }

type InvalidCodeError struct {
	AttemptsLeft int
	LockedUntil  *time.Time
}

func (e *InvalidCodeError) Error() string {
	if e.LockedUntil != nil {
		return fmt.Sprintf("%v; too many attempts, locked until %s", ErrInvalidCode, e.LockedUntil.UTC().Format(time.RFC3339))
	}
	return fmt.Sprintf("%v; %d attempt(s) left", ErrInvalidCode, e.AttemptsLeft)
}

func (e *InvalidCodeError) Unwrap() error { return ErrInvalidCode }

type OutOfRangeError struct {
	Distance float64
	Radius   float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%v: %.1fm away, allowed %.1fm", ErrOutOfRange, e.Distance, e.Radius)
}

func (e *OutOfRangeError) Unwrap() error { return ErrOutOfRange }
