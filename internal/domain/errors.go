// Package domain defines the error taxonomy shared by services, gateways and
// HTTP handlers. Every recoverable failure a caller can act on is one of
// these kinds; anything else is treated as an internal error.
package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindAccessDenied
	KindInvalidState
	KindFull
	KindTooEarly
	KindAuth
)

// Error is a typed domain error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Validationf builds a validation error.
func Validationf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a not-found error.
func NotFoundf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// AccessDeniedf builds an access-denied error.
func AccessDeniedf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindAccessDenied, Msg: fmt.Sprintf(format, args...)}
}

// InvalidStatef builds an invalid-state error.
func InvalidStatef(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidState, Msg: fmt.Sprintf(format, args...)}
}

// Fullf builds a capacity-exceeded error.
func Fullf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindFull, Msg: fmt.Sprintf(format, args...)}
}

// TooEarlyf builds an admission-window error.
func TooEarlyf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindTooEarly, Msg: fmt.Sprintf(format, args...)}
}

// Authf builds an authentication error.
func Authf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindAuth, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or KindUnknown for untyped errors.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// Code returns the wire-level error code for err.
func Code(err error) string {
	switch KindOf(err) {
	case KindValidation:
		return "validation_error"
	case KindNotFound:
		return "not_found"
	case KindAccessDenied:
		return "access_denied"
	case KindInvalidState:
		return "invalid_state"
	case KindFull:
		return "full"
	case KindTooEarly:
		return "too_early"
	case KindAuth:
		return "auth_error"
	default:
		return "internal_error"
	}
}
