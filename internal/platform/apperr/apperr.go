// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package apperr defines the centralized error handling framework for Kaiwa.

It provides a rich error type that bridges the gap between raw HTTP
responses from the backend and the failure taxonomy the rest of the client
reasons about.

Architecture:

  - AppError: A struct containing a machine-readable ErrorCode and user-friendly messages.
  - Taxonomy: Distinct codes for the statuses the client must special-case (401/422/423/429).
  - Mapping: Explicit mapping from HTTP status codes received off the wire to [AppError].

Every error that leaves the transport layer should be wrapped as an [AppError]
to ensure consistent handling and display.
*/
package apperr

import (
	"errors"
	"net/http"
)

// # Error Codes

// Machine-readable identifiers for every failure class the client
// distinguishes. Callers branch on these, never on raw HTTP statuses.
const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeAccountLocked   = "ACCOUNT_LOCKED"
	CodeRateLimited     = "RATE_LIMITED"
	CodeValidation      = "VALIDATION_ERROR"
	CodeConflict        = "CONFLICT"
	CodeNotFound        = "NOT_FOUND"
	CodeUnavailable     = "UNAVAILABLE"
	CodeInternal        = "INTERNAL_ERROR"
)

// FallbackMessage is the fixed phrase shown when the backend supplies no
// usable detail for a failure.
const FallbackMessage = "An unexpected error occurred"

// AppError is the canonical error type for the Kaiwa client.
//
// It carries the originating HTTP status code, a machine-readable code, a
// display-safe message, and an optional slice of field-level validation
// errors decoded from the backend's 422 envelope.
//
// # Display
//
// The Cause field is for logging only and is never shown to the user to
// avoid leaking transport internals (e.g., dial errors with addresses).
type AppError struct {
	// Code is a machine-readable error identifier (e.g. "RATE_LIMITED").
	Code string `json:"code"`
	// Message is a human-readable description safe to display.
	Message string `json:"error"`
	// HTTPStatus is the backend response status, zero for local failures.
	HTTPStatus int `json:"-"`
	// Cause is the underlying error, used for logging only.
	Cause error `json:"-"`
	// Details holds per-field validation errors for VALIDATION_ERROR responses.
	Details []FieldError `json:"details,omitempty"`
}

// FieldError represents a single field-level validation failure.
type FieldError struct {
	// Field is the JSON field name that failed validation.
	Field string `json:"field"`
	// Message is the human-readable description of the failure.
	Message string `json:"message"`
}

// Error implements the error interface. It returns the display-safe message.
func (e *AppError) Error() string { return e.Message }

// Unwrap allows [errors.Is] and [errors.As] to traverse the cause chain.
func (e *AppError) Unwrap() error { return e.Cause }

// # Session Errors

// Unauthenticated creates a 401 [AppError].
//
// The transport raises this only after the refresh protocol has been
// exhausted; seeing it means the session is gone.
func Unauthenticated(msg string) *AppError {
	return &AppError{
		Code:       CodeUnauthenticated,
		Message:    msg,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// AccountLocked creates a 423 [AppError].
//
// Locked accounts are never recoverable by token refresh; the message is
// surfaced verbatim.
func AccountLocked(msg string) *AppError {
	return &AppError{
		Code:       CodeAccountLocked,
		Message:    msg,
		HTTPStatus: http.StatusLocked,
	}
}

// RateLimited creates a 429 [AppError]. The message is surfaced verbatim.
func RateLimited(msg string) *AppError {
	return &AppError{
		Code:       CodeRateLimited,
		Message:    msg,
		HTTPStatus: http.StatusTooManyRequests,
	}
}

// # Input Errors

// Validation creates a 422 [AppError] with optional per-field details.
func Validation(msg string, details ...FieldError) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    msg,
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    details,
	}
}

// Conflict creates a 409 [AppError] for duplicate-resource rejections.
func Conflict(msg string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    msg,
		HTTPStatus: http.StatusConflict,
	}
}

// NotFound creates a 404 [AppError] for a named resource.
//
// Example:
//
//	apperr.NotFound("Chat") // Returns "Chat not found"
func NotFound(resource string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    resource + " not found",
		HTTPStatus: http.StatusNotFound,
	}
}

// # Local Errors

// Unavailable creates an [AppError] for network and timeout failures that
// never produced an HTTP response. The cause is stored for logging but the
// display message stays generic.
func Unavailable(cause error) *AppError {
	return &AppError{
		Code:    CodeUnavailable,
		Message: "Network error. Please try again.",
		Cause:   cause,
	}
}

// Internal creates an [AppError] wrapping an unexpected client-side error.
func Internal(cause error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    FallbackMessage,
		HTTPStatus: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// # Status Mapping

// FromStatus maps an HTTP response status and its decoded message to the
// matching [AppError].
//
// Statuses without a dedicated code fall through to [Internal] for 5xx and
// a bare coded error for the remaining 4xx.
func FromStatus(status int, msg string, details ...FieldError) *AppError {
	if msg == "" {
		msg = FallbackMessage
	}

	switch status {
	case http.StatusUnauthorized:
		return Unauthenticated(msg)
	case http.StatusLocked:
		return AccountLocked(msg)
	case http.StatusTooManyRequests:
		return RateLimited(msg)
	case http.StatusUnprocessableEntity:
		return Validation(msg, details...)
	case http.StatusConflict:
		return Conflict(msg)
	case http.StatusNotFound:
		return &AppError{Code: CodeNotFound, Message: msg, HTTPStatus: status}
	}

	if status >= 500 {
		return &AppError{Code: CodeInternal, Message: msg, HTTPStatus: status}
	}

	return &AppError{Code: CodeValidation, Message: msg, HTTPStatus: status, Details: details}
}

// # Helpers

// IsAppError reports whether err (or any error in its chain) is an [*AppError].
func IsAppError(err error) bool {
	var ae *AppError
	return errors.As(err, &ae)
}

// As extracts the [*AppError] from err's chain. It returns nil if not found.
func As(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}

// HasCode reports whether err carries the given machine-readable code.
func HasCode(err error, code string) bool {
	ae := As(err)
	return ae != nil && ae.Code == code
}
