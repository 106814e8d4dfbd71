// Package apperrors defines the typed errors services return and handlers translate into HTTP responses.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation_error"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeForbidden    ErrorType = "forbidden"
	ErrorTypeInternal     ErrorType = "internal_error"
	ErrorTypeBadRequest   ErrorType = "bad_request"
	ErrorTypeUnavailable  ErrorType = "service_unavailable"
)

// AppError is an error with a type and the HTTP status it maps to.
type AppError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    int       `json:"code"`
	Details string    `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func newAppError(t ErrorType, code int, message string, details []string) *AppError {
	detail := ""
	if len(details) > 0 {
		detail = details[0]
	}
	return &AppError{Type: t, Message: message, Code: code, Details: detail}
}

func NewValidationError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeValidation, http.StatusBadRequest, message, details)
}

func NewNotFoundError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeNotFound, http.StatusNotFound, message, details)
}

func NewConflictError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeConflict, http.StatusConflict, message, details)
}

func NewUnauthorizedError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeUnauthorized, http.StatusUnauthorized, message, details)
}

func NewForbiddenError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeForbidden, http.StatusForbidden, message, details)
}

func NewInternalError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeInternal, http.StatusInternalServerError, message, details)
}

func NewBadRequestError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeBadRequest, http.StatusBadRequest, message, details)
}

func NewUnavailableError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeUnavailable, http.StatusServiceUnavailable, message, details)
}

func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

func IsAppError(err error) bool {
	return GetAppError(err) != nil
}

func isType(err error, t ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == t
}

func IsNotFoundError(err error) bool     { return isType(err, ErrorTypeNotFound) }
func IsConflictError(err error) bool     { return isType(err, ErrorTypeConflict) }
func IsValidationError(err error) bool   { return isType(err, ErrorTypeValidation) }
func IsUnauthorizedError(err error) bool { return isType(err, ErrorTypeUnauthorized) }
func IsForbiddenError(err error) bool    { return isType(err, ErrorTypeForbidden) }

// IsDuplicateError reports whether err is a unique constraint violation from Postgres or SQLite.
func IsDuplicateError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "violates unique constraint") ||
		strings.Contains(msg, "unique constraint failed")
}
