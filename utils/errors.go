package utils

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"
)

type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindNotFound     ErrorKind = "not_found"
	KindConflict     ErrorKind = "conflict"
	KindUpstream     ErrorKind = "upstream"
	KindPersistence  ErrorKind = "persistence"
	KindUnauthorized ErrorKind = "unauthorized"
	KindForbidden    ErrorKind = "forbidden"
)

// AppError carries the HTTP status a handler should answer with. Err is the
// internal cause and is only shown to clients outside production.
type AppError struct {
	Kind    ErrorKind
	Message string
	Status  int
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewValidationError(format string, args ...interface{}) *AppError {
	return &AppError{Kind: KindValidation, Message: fmt.Sprintf(format, args...), Status: http.StatusBadRequest}
}

func NewNotFoundError(format string, args ...interface{}) *AppError {
	return &AppError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...), Status: http.StatusNotFound}
}

// NewConflictError is answered with 400 like every other rule violation.
func NewConflictError(format string, args ...interface{}) *AppError {
	return &AppError{Kind: KindConflict, Message: fmt.Sprintf(format, args...), Status: http.StatusBadRequest}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{Kind: KindUnauthorized, Message: message, Status: http.StatusUnauthorized}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{Kind: KindForbidden, Message: message, Status: http.StatusForbidden}
}

func NewUpstreamError(message string, err error) *AppError {
	return &AppError{Kind: KindUpstream, Message: message, Status: http.StatusInternalServerError, Err: err}
}

func NewPersistenceError(message string, err error) *AppError {
	return &AppError{Kind: KindPersistence, Message: message, Status: http.StatusBadRequest, Err: err}
}

// ErrNoPermission is returned by role checks.
var ErrNoPermission = NewForbiddenError("You do not have permission")

func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func IsKind(err error, kind ErrorKind) bool {
	appErr, ok := GetAppError(err)
	return ok && appErr.Kind == kind
}

// WrapUpstream tags a failed call to another service. Validation and not-found
// answers from the remote side keep their kind so the caller can pass them on.
func WrapUpstream(service string, err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := GetAppError(err); ok {
		switch appErr.Kind {
		case KindValidation, KindNotFound, KindConflict, KindUnauthorized, KindForbidden:
			return appErr
		}
	}
	return NewUpstreamError(service+" service unavailable", err)
}

// IsDuplicateKey matches unique violations from both gorm drivers.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "Duplicate entry")
}

// PersistenceError converts a gorm error into an AppError. Record-not-found
// becomes NotFound with the given entity name.
func PersistenceError(entity string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := GetAppError(err); ok {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NewNotFoundError("%s not found", entity)
	}
	if IsDuplicateKey(err) {
		return NewPersistenceError(entity+" already exists", err)
	}
	return NewPersistenceError("failed to save "+entity, err)
}
