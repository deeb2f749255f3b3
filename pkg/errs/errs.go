// Package errs defines the error taxonomy shared by every domain package.
//
// Domain packages declare sentinel values with the constructors below and
// compare them with errors.Is. The HTTP layer maps the Kind to a status code.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transport mapping.
type Kind string

const (
	KindValidation      Kind = "validation_error"
	KindNotFound        Kind = "not_found"
	KindAuthorization   Kind = "forbidden"
	KindUnauthenticated Kind = "unauthorized"
	KindConflict        Kind = "conflict"
	KindQuotaExceeded   Kind = "quota_exceeded"
	KindRateLimited     Kind = "rate_limited"
	KindExternalService Kind = "external_service_error"
)

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Code    string
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches another *Error with the same kind and code, so wrapped copies
// produced by With still satisfy errors.Is against the sentinel.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || t == nil || e == nil {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// With returns a copy of e wrapping cause.
func (e *Error) With(cause error) *Error {
	if e == nil {
		return nil
	}
	out := *e
	out.Err = cause
	return &out
}

// WithMessage returns a copy of e with a different message.
func (e *Error) WithMessage(message string) *Error {
	if e == nil {
		return nil
	}
	out := *e
	out.Message = message
	return &out
}

func Validation(code, field string) *Error {
	return &Error{Kind: KindValidation, Code: code, Field: field, Message: "invalid value"}
}

func NotFound(code string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: "not found"}
}

func Authorization(code string) *Error {
	return &Error{Kind: KindAuthorization, Code: code, Message: "forbidden"}
}

func Unauthenticated(code string) *Error {
	return &Error{Kind: KindUnauthenticated, Code: code, Message: "unauthorized"}
}

func Conflict(code string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: "conflict"}
}

func QuotaExceeded(code string) *Error {
	return &Error{Kind: KindQuotaExceeded, Code: code, Message: "usage limit reached for the current billing period"}
}

func RateLimited(code string) *Error {
	return &Error{Kind: KindRateLimited, Code: code, Message: "too many requests"}
}

// ExternalService carries a user-facing degraded message; the cause is kept
// for logs only.
func ExternalService(code string) *Error {
	return &Error{Kind: KindExternalService, Code: code, Message: "the service is temporarily unavailable, please try again later"}
}

// KindOf returns the kind of the first *Error in the chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.Kind, true
	}
	return "", false
}

// As returns the first *Error in the chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e, true
	}
	return nil, false
}
