// Package apperrors defines the error taxonomy shared by services and
// handlers. Guard failures are recoverable by the caller; none of these is
// fatal to the process.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrConflict     = errors.New("resource conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrValidation   = errors.New("validation failed")

	// Business errors
	ErrRideTaken       = errors.New("ride is already taken by another driver")
	ErrInvalidOTP      = errors.New("invalid OTP")
	ErrNotCancellable  = errors.New("ride cannot be cancelled at this stage")
	ErrNotInProgress   = errors.New("ride not in progress")
	ErrNotCompleted    = errors.New("ride not completed")
	ErrAlreadyPaid     = errors.New("ride already paid")
	ErrAlreadyRated    = errors.New("you have already rated this trip")
	ErrEmailTaken      = errors.New("user already exists")
	ErrBadCredentials  = errors.New("invalid email or password")
)

// APIError carries the HTTP status and code string surfaced to clients.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	err        error
}

func (e *APIError) Error() string { return e.Message }

func (e *APIError) Unwrap() error { return e.err }

func newAPIError(code, message string, status int, sentinel error) *APIError {
	return &APIError{Code: code, Message: message, StatusCode: status, err: sentinel}
}

func NotFound(resource string) *APIError {
	return newAPIError("NOT_FOUND", fmt.Sprintf("%s not found", resource), http.StatusNotFound, ErrNotFound)
}

func Conflict(message string) *APIError {
	return newAPIError("CONFLICT", message, http.StatusConflict, ErrConflict)
}

func Unauthorized(message string) *APIError {
	return newAPIError("UNAUTHORIZED", message, http.StatusUnauthorized, ErrUnauthorized)
}

func Validation(message string) *APIError {
	return newAPIError("VALIDATION_ERROR", message, http.StatusBadRequest, ErrValidation)
}

// StatusFor maps any error to the HTTP status a handler should answer with.
func StatusFor(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict),
		errors.Is(err, ErrRideTaken),
		errors.Is(err, ErrAlreadyRated),
		errors.Is(err, ErrAlreadyPaid),
		errors.Is(err, ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrBadCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrInvalidOTP),
		errors.Is(err, ErrNotCancellable),
		errors.Is(err, ErrNotInProgress),
		errors.Is(err, ErrNotCompleted):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// CodeFor maps any error to the machine-readable code string for the API
// envelope.
func CodeFor(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	switch StatusFor(err) {
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusBadRequest:
		return "VALIDATION_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}
