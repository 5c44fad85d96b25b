package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an application error for HTTP translation
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindRateLimited
	KindExternalProcess
)

// Error is the application error carried from services up to handlers
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string // field-level detail for validation errors
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidation returns a validation error with field-level detail
func NewValidation(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// NewConflict returns a duplicate-resource or already-running error
func NewConflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// NewNotFound returns an unknown-id error
func NewNotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// NewRateLimited returns a cooldown/rate-limit error
func NewRateLimited(message string) *Error {
	return &Error{Kind: KindRateLimited, Message: message}
}

// NewExternalProcess wraps a scraper process failure
func NewExternalProcess(message string, err error) *Error {
	return &Error{Kind: KindExternalProcess, Message: message, Err: err}
}

// KindOf extracts the Kind from an error chain, defaulting to KindInternal
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// FieldsOf extracts field-level validation detail from an error chain
func FieldsOf(err error) map[string]string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Fields
	}
	return nil
}

// Is reports whether err has the given kind
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
