package services

import (
	"errors"
	"fmt"
)

// Kind classifies service errors so handlers can pick a status code.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
)

// AppError is the error type returned by every service method.
type AppError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newError(kind Kind, format string, args ...interface{}) *AppError {
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func ValidationError(format string, args ...interface{}) error {
	return newError(KindValidation, format, args...)
}

func UnauthorizedError(format string, args ...interface{}) error {
	return newError(KindUnauthorized, format, args...)
}

func ForbiddenError(format string, args ...interface{}) error {
	return newError(KindForbidden, format, args...)
}

func NotFoundError(format string, args ...interface{}) error {
	return newError(KindNotFound, format, args...)
}

func ConflictError(format string, args ...interface{}) error {
	return newError(KindConflict, format, args...)
}

// Wrap attaches a message to err. The kind of a wrapped AppError is kept,
// anything else becomes internal.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{Kind: appErr.Kind, Message: message, Err: err}
	}
	return &AppError{Kind: KindInternal, Message: message, Err: err}
}

// KindOf returns the kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// PublicMessage is the message safe to show to API clients.
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Kind != KindInternal {
		return appErr.Error()
	}
	return "internal server error"
}
