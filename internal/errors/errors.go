// Package errors provides custom error types for the railmon application.
//
// This package defines domain-specific errors that help with error handling
// and recovery throughout the application. Each error type provides context
// about what went wrong and can be used for specific recovery strategies.
package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// SessionExpiredError indicates that the API rejected the access token.
//
// This error is returned when:
//   - The backend answers 401 on an authenticated route
//   - The refresh token is expired or revoked
//
// Recovery strategy: refresh the access token, then sign in again
type SessionExpiredError struct {
	Message string
}

func (e *SessionExpiredError) Error() string {
	return fmt.Sprintf("session expired: %s", e.Message)
}

// NewSessionExpiredError creates a new session expired error with context
func NewSessionExpiredError(msg string) *SessionExpiredError {
	return &SessionExpiredError{Message: msg}
}

// LoginFailedError indicates that a sign-in attempt failed.
//
// This error is returned when:
//   - Credentials are rejected
//   - The sign-in response carries no access token
//   - The profile call after sign-in fails
//
// Recovery strategy: none automatic; the operator must fix credentials
type LoginFailedError struct {
	Message string
	Err     error
}

func (e *LoginFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("login failed: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("login failed: %s", e.Message)
}

// Unwrap returns the wrapped error for error chain inspection
func (e *LoginFailedError) Unwrap() error {
	return e.Err
}

// NewLoginFailedError creates a new login failed error with context
func NewLoginFailedError(msg string, err error) *LoginFailedError {
	return &LoginFailedError{Message: msg, Err: err}
}

// FetchError wraps transport-level failures while talking to the backend.
//
// This error is returned when:
//   - The request cannot be built or sent
//   - The connection drops or times out
//   - The response body cannot be read or decoded
//
// Recovery strategy: surface to the caller; no automatic retry
type FetchError struct {
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("fetch error: %s", e.Message)
}

// Unwrap returns the wrapped error for error chain inspection
func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a new fetch error with context
func NewFetchError(msg string, err error) *FetchError {
	return &FetchError{Message: msg, Err: err}
}

// APIError is a non-2xx answer from the backend other than 401.
//
// Detail carries the backend's "detail" field when present.
type APIError struct {
	Op         string
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api error: %s: status %d: %s", e.Op, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("api error: %s: status %d", e.Op, e.StatusCode)
}

// NewAPIError creates a new API error
func NewAPIError(op string, statusCode int, detail string) *APIError {
	return &APIError{Op: op, StatusCode: statusCode, Detail: detail}
}

// ValidationError collects field-level validation failures.
//
// Fields maps a field name to a human readable message.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Fields[name]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError creates an empty validation error; use Add to fill it.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// Add records a failure for field. The first message for a field wins.
func (e *ValidationError) Add(field, msg string) {
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = msg
	}
}

// OrNil returns nil when no field failed, so callers can `return v.OrNil()`.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// IsLoginFailed checks if the error chain contains a login failure
func IsLoginFailed(err error) bool {
	var target *LoginFailedError
	return stderrors.As(err, &target)
}

// IsSessionExpired checks if the error chain contains a session expired error
func IsSessionExpired(err error) bool {
	var target *SessionExpiredError
	return stderrors.As(err, &target)
}

// IsFetchError checks if the error chain contains a fetch error
func IsFetchError(err error) bool {
	var target *FetchError
	return stderrors.As(err, &target)
}

// IsValidation checks if the error chain contains a validation error
func IsValidation(err error) bool {
	var target *ValidationError
	return stderrors.As(err, &target)
}

// StatusCode returns the HTTP status carried by an APIError in the chain,
// 401 for a SessionExpiredError, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	if IsSessionExpired(err) {
		return 401
	}
	return 0
}
