package errorutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Kind classifies a DomainError for callers and transports.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindConflict     Kind = "conflict"
	KindFailure      Kind = "failure"
	KindCancelled    Kind = "cancelled"
)

var kindStatus = map[Kind]int{
	KindValidation:   http.StatusBadRequest,
	KindNotFound:     http.StatusNotFound,
	KindUnauthorized: http.StatusUnauthorized,
	KindForbidden:    http.StatusForbidden,
	KindConflict:     http.StatusConflict,
	KindFailure:      http.StatusInternalServerError,
	KindCancelled:    http.StatusRequestTimeout,
}

// DomainError standardizes application errors.
type DomainError struct {
	Kind       Kind
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(kind Kind, code, message string, details map[string]any) *DomainError {
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &DomainError{Kind: kind, Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(code, message string) error {
	return NewDomainError(KindValidation, code, message, nil)
}

func NewNotFound(code, message string, details map[string]any) error {
	return NewDomainError(KindNotFound, code, message, details)
}

func NewUnauthorized(message string) error {
	return NewDomainError(KindUnauthorized, "UNAUTHORIZED", message, nil)
}

func NewForbidden(code, message string) error {
	return NewDomainError(KindForbidden, code, message, nil)
}

func NewConflict(code, message string, details map[string]any) error {
	return NewDomainError(KindConflict, code, message, details)
}

func NewInternalError(err error) error {
	de := NewDomainError(KindFailure, "INTERNAL_ERROR", "internal server error", nil)
	de.Err = err
	return de
}

func NewCancelled(err error) error {
	de := NewDomainError(KindCancelled, "CANCELLED", "operation cancelled", nil)
	de.Err = err
	return de
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewCancelled(err).(*DomainError)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		de := NewDomainError(KindNotFound, "NOT_FOUND", "resource not found", nil)
		de.Err = err
		return de
	}
	return NewInternalError(err).(*DomainError)
}

func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}

// KindOf reports the kind of err, or KindFailure for foreign errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return ToDomainError(err).Kind
}
