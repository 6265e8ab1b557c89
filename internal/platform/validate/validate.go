// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package validate provides a chainable Validator that collects field-level
// errors before returning a single [apperr.AppError].
//
// # Architecture
//
// This package is used on both sides of the wire: the client pre-validates
// registration input to save a round trip, and the sandbox backend enforces
// the same rules authoritatively. It ensures that business logic only
// operates on semantically valid data.
package validate

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/taibuivan/kaiwa/internal/platform/apperr"
)

var (
	// uuidRegex matches a UUIDv4 or UUIDv7 string.
	uuidRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

	// ErrInvalidJSON is returned when the request body cannot be decoded.
	ErrInvalidJSON = apperr.Validation("Invalid JSON payload")
)

// # Password Policy

var (
	// passwordClasses are the character classes every password must contain.
	passwordClasses = []struct {
		pattern *regexp.Regexp
		message string
	}{
		{regexp.MustCompile(`[A-Z]`), "at least one uppercase letter"},
		{regexp.MustCompile(`[a-z]`), "at least one lowercase letter"},
		{regexp.MustCompile(`[0-9]`), "at least one number"},
		{regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`), "at least one special character"},
	}

	// weakSequences are obvious keyboard/counting runs rejected as substrings.
	weakSequences = []string{"123456789", "abcdefgh", "qwertyuiop"}

	// weakPasswords are rejected on exact (case-insensitive) match.
	weakPasswords = []string{"password", "password123", "admin", "admin123", "letmein", "12345678"}
)

// Validator collects field-level validation errors via a fluent, chainable API.
//
// # Concurrency
//
// Validator is not safe for concurrent use. A new instance must be created
// for every request/operation.
type Validator struct {
	errs []apperr.FieldError
}

// Required fails if the trimmed value is empty.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.add(field, "This field is required")
	}
	return v
}

// MaxLen fails if the Unicode character count exceeds max.
func (v *Validator) MaxLen(field, value string, max int) *Validator {
	if utf8.RuneCountInString(value) > max {
		v.add(field, fmt.Sprintf("Maximum %d characters", max))
	}
	return v
}

// MinLen fails if the Unicode character count is below min.
func (v *Validator) MinLen(field, value string, min int) *Validator {
	if utf8.RuneCountInString(value) < min {
		v.add(field, fmt.Sprintf("Minimum %d characters", min))
	}
	return v
}

// Range fails if the value is outside the [min, max] range (inclusive).
func (v *Validator) Range(field string, value, min, max int) *Validator {
	if value < min || value > max {
		v.add(field, fmt.Sprintf("Must be between %d and %d", min, max))
	}
	return v
}

// Email fails if the value is not a valid RFC 5322 email address.
func (v *Validator) Email(field, value string) *Validator {
	if _, err := mail.ParseAddress(value); err != nil {
		v.add(field, "Must be a valid email address")
	}
	return v
}

// Password enforces the platform password policy.
//
// # Policy
//
// Passwords must be at least 12 characters, contain an uppercase letter, a
// lowercase letter, a number, and a special character, avoid runs of four or
// more identical characters, and must not match the common weak-password list.
func (v *Validator) Password(field, value string) *Validator {
	if utf8.RuneCountInString(value) < 12 {
		v.add(field, "Password must be at least 12 characters long")
		return v
	}

	for _, class := range passwordClasses {
		if !class.pattern.MatchString(value) {
			v.add(field, "Password must contain "+class.message)
			return v
		}
	}

	if hasLongRepeat(value) {
		v.add(field, "Password cannot contain too many repeated characters")
		return v
	}

	lower := strings.ToLower(value)
	for _, seq := range weakSequences {
		if strings.Contains(lower, seq) {
			v.add(field, "Password is too common or contains obvious sequences")
			return v
		}
	}
	for _, weak := range weakPasswords {
		if lower == weak {
			v.add(field, "Password is too common or contains obvious sequences")
			return v
		}
	}

	return v
}

// PasswordsMatch fails if the confirmation does not equal the password.
func (v *Validator) PasswordsMatch(field, password, confirm string) *Validator {
	if password != confirm {
		v.add(field, "Passwords do not match")
	}
	return v
}

// TermsAccepted fails if the terms checkbox was not ticked.
func (v *Validator) TermsAccepted(field string, accepted bool) *Validator {
	if !accepted {
		v.add(field, "You must accept the terms and conditions")
	}
	return v
}

// UUID fails if the value is not a valid UUID string (case-insensitive).
func (v *Validator) UUID(field, value string) *Validator {
	lower := strings.ToLower(value)
	if !uuidRegex.MatchString(lower) {
		v.add(field, "Must be a valid UUID")
	}
	return v
}

// OneOf fails if the value is not in the allowed set of strings.
func (v *Validator) OneOf(field, value string, allowed ...string) *Validator {
	for _, a := range allowed {
		if value == a {
			return v
		}
	}
	v.add(field, fmt.Sprintf("Must be one of: %s", strings.Join(allowed, ", ")))
	return v
}

// Custom adds a failure with a custom message if the condition is true.
//
// # Example
//
//	v.Custom("score", score < 1 || score > 10, "Must be between 1 and 10")
func (v *Validator) Custom(field string, failed bool, message string) *Validator {
	if failed {
		v.add(field, message)
	}
	return v
}

// Err returns a [apperr.AppError] (VALIDATION_ERROR) if any rules failed,
// or nil if all rules passed.
//
// This is the only output method; call it at the end of the chain.
func (v *Validator) Err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return apperr.Validation("Validation failed", v.errs...)
}

// HasErrors reports whether any validation rule has failed so far.
func (v *Validator) HasErrors() bool {
	return len(v.errs) > 0
}

// add appends a [apperr.FieldError] to the internal slice.
func (v *Validator) add(field, message string) {
	v.errs = append(v.errs, apperr.FieldError{Field: field, Message: message})
}

// hasLongRepeat reports whether s contains four or more identical
// consecutive runes. Backreferences are unavailable in RE2, so this is a
// plain scan.
func hasLongRepeat(s string) bool {
	var prev rune
	run := 0

	for _, r := range s {
		if r == prev {
			run++
			if run >= 4 {
				return true
			}
		} else {
			prev = r
			run = 1
		}
	}

	return false
}

// RequiredError is a shortcut to create a single-field validation error.
func RequiredError(field, message string) *apperr.AppError {
	return apperr.Validation("Validation failed", apperr.FieldError{
		Field:   field,
		Message: message,
	})
}
