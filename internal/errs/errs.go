// Package errs provides coded errors shared by the core components.
package errs

import (
	"errors"
	"fmt"
)

// Kind groups codes into the three failure families callers react to.
type Kind string

const (
	KindValidation Kind = "validation"
	KindStore      Kind = "store"
	KindExternal   Kind = "external"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeUnknown Code = "UNKNOWN"

	// Validation
	CodeDuplicateRegistration Code = "DUPLICATE_REGISTRATION"
	CodeEventNotFound         Code = "EVENT_NOT_FOUND"
	CodeParticipationNotFound Code = "PARTICIPATION_NOT_FOUND"
	CodePaymentNotFound       Code = "PAYMENT_NOT_FOUND"
	CodeInvalidStatus         Code = "INVALID_STATUS"
	CodeInvalidInput          Code = "INVALID_INPUT"

	// Store
	CodeStoreFailure Code = "STORE_FAILURE"

	// External
	CodeWeatherUnavailable Code = "WEATHER_UNAVAILABLE"
)

// Kind returns the family a code belongs to.
func (c Code) Kind() Kind {
	switch c {
	case CodeStoreFailure:
		return KindStore
	case CodeWeatherUnavailable:
		return KindExternal
	default:
		return KindValidation
	}
}

// Error is a coded failure with a human-readable reason.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error carrying the same code, so sentinels below work with
// errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Kind reports the error family.
func (e *Error) Kind() Kind { return e.Code.Kind() }

// Sentinels for errors.Is checks.
var (
	ErrDuplicateRegistration = &Error{Code: CodeDuplicateRegistration, Message: "already registered for this event"}
	ErrEventNotFound         = &Error{Code: CodeEventNotFound, Message: "event not found"}
	ErrParticipationNotFound = &Error{Code: CodeParticipationNotFound, Message: "participation not found"}
	ErrPaymentNotFound       = &Error{Code: CodePaymentNotFound, Message: "payment not found"}
)

// New builds a coded error.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Store wraps a persistence failure. The store's own error string is kept.
func Store(op string, err error) *Error {
	return &Error{Code: CodeStoreFailure, Message: op, Err: err}
}

// CodeOf extracts the code from err, or CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// KindOf extracts the family from err. Uncoded errors count as store
// failures since every other path produces a coded error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind()
	}
	return KindStore
}

// Reason returns the short reason string a presentation layer shows.
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Err != nil {
			return e.Message + ": " + e.Err.Error()
		}
		return e.Message
	}
	return err.Error()
}
