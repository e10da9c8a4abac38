package errx

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for routing, trace recording and metrics.
type Kind string

const (
	KindValidation              Kind = "validation"
	KindClassificationAmbiguity Kind = "classification_ambiguity"
	KindExternalService         Kind = "external_service"
	KindToolNotFound            Kind = "tool_not_found"
	KindArithmetic              Kind = "arithmetic"
	KindPersistence             Kind = "persistence"
	KindComplianceUnavailable   Kind = "compliance_unavailable"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes Redis key misses.
	RedisNotFoundMessage = "not found"
	// ServiceUnavailableMessage is the single stable sentence shown to users on
	// terminal external failures. Never replaced by raw error text.
	ServiceUnavailableMessage = "O serviço está temporariamente indisponível. Tente novamente em instantes."
)

// Error wraps an underlying error with a kind, an HTTP status and a safe message.
type Error struct {
	Err     error
	Kind    Kind
	Status  int
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error with the provided information.
func New(err error, status int, message string) *Error {
	return &Error{Err: err, Status: status, Message: message}
}

// NewKind creates a classified Error.
func NewKind(err error, kind Kind, message string) *Error {
	return &Error{Err: err, Kind: kind, Status: statusFor(kind), Message: message}
}

func statusFor(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindToolNotFound:
		return http.StatusNotFound
	case KindExternalService, KindComplianceUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// KindOf extracts the Kind from an error chain, or empty when unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether the target matches the underlying error or the Error itself.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to Error or the wrapped error in a chain.
func (e *Error) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**Error); ok {
		*t = e
		return true
	}
	return false
}
