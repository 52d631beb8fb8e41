package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeInvalid      ErrorCode = "INVALID"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeInternal     ErrorCode = "INTERNAL"
)

// FieldError describes a single rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches sentinel errors by identity or by code+message, so wrapped copies still compare equal.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e == t || (e.Code == t.Code && e.Message == t.Message)
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError collects field errors under a single INVALID error.
func ValidationError(fields []FieldError) *Error {
	return &Error{Code: ErrCodeInvalid, Message: "validation failed", Fields: fields}
}

// Common domain errors.
var (
	ErrUserNotFound        = NewError(ErrCodeNotFound, "user not found")
	ErrTaskNotFound        = NewError(ErrCodeNotFound, "task not found")
	ErrParentTaskNotFound  = NewError(ErrCodeNotFound, "parent task not found")
	ErrDependencyNotFound  = NewError(ErrCodeNotFound, "dependency task not found")
	ErrSessionNotFound     = NewError(ErrCodeNotFound, "session not found")
	ErrSelfDependency      = NewError(ErrCodeConflict, "task cannot depend on itself")
	ErrCircularDependency  = NewError(ErrCodeConflict, "circular dependency detected")
	ErrDuplicateDependency = NewError(ErrCodeConflict, "dependency already exists")
	ErrEmailTaken          = NewError(ErrCodeConflict, "user already exists")
	ErrInvalidCredentials  = NewError(ErrCodeUnauthorized, "invalid credentials")
	ErrUnauthorized        = NewError(ErrCodeUnauthorized, "unauthorized")
	ErrInvalidPayload      = NewError(ErrCodeInvalid, "invalid payload")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}
