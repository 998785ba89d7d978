// Package faults defines the error taxonomy shared across the service.
// Handlers map these onto HTTP responses; upstream client faults are
// normalized here so callers never see provider-specific payloads.
package faults

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for HTTP mapping and logging.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindSignature         Kind = "signature"
	KindUpstreamAuth      Kind = "upstream_auth"
	KindUpstreamRateLimit Kind = "upstream_rate_limit"
	KindUpstreamServer    Kind = "upstream_server"
)

// Error carries a kind, an HTTP-equivalent status, and an optional cause.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func statusFor(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindSignature:
		return http.StatusForbidden
	case KindUpstreamRateLimit:
		return http.StatusServiceUnavailable
	case KindUpstreamAuth, KindUpstreamServer:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// New builds an Error of the given kind with its default status.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Status: statusFor(kind), Message: message}
}

// Wrap builds an Error of the given kind around a cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Status: statusFor(kind), Message: message, Err: err}
}

// Validation reports a malformed request. No side effects may have run.
func Validation(message string) *Error { return New(KindValidation, message) }

// NotFound reports a referenced record that does not exist.
func NotFound(message string) *Error { return New(KindNotFound, message) }

// Signature reports a webhook signature or verify-token mismatch.
func Signature(message string) *Error { return New(KindSignature, message) }

// FromUpstreamStatus classifies a non-2xx status from an upstream call
// (completion service or channel delivery) into a normalized fault.
func FromUpstreamStatus(status int, message string) *Error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return New(KindUpstreamAuth, message)
	case status == http.StatusTooManyRequests:
		return New(KindUpstreamRateLimit, message)
	default:
		return New(KindUpstreamServer, message)
	}
}

// KindOf returns the Kind of err, or empty when err is not a taxonomy error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// StatusOf returns the HTTP status for err, defaulting to 500.
func StatusOf(err error) int {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Status
	}
	return http.StatusInternalServerError
}
