// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import "time"

// # Authentication Constraints

const (
	// AccessTokenTTL is the client-side auto-clear interval for the access
	// token. It matches the backend's nominal token lifetime (15m) so a
	// long-lived process never keeps a dead credential in memory.
	AccessTokenTTL = 15 * time.Minute

	// RefreshTokenTTL is the backend-side lifetime of a refresh token.
	// The client only uses it for documentation and sandbox bookkeeping;
	// real expiry is arbitrated by the backend on every refresh call.
	RefreshTokenTTL = 7 * 24 * time.Hour

	// RefreshTokenFile is the file name of the persisted refresh token
	// inside the state directory.
	RefreshTokenFile = "refresh_token"

	// RefreshTokenFileMode keeps the persisted credential owner-readable only.
	RefreshTokenFileMode = 0o600
)

// # Field Identifiers

// Global field names for validation and identity mapping in the
// authentication domain.
const (
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirm_password"
	FieldFirstName       = "first_name"
	FieldLastName        = "last_name"
	FieldTermsAccepted   = "terms_accepted"
	FieldToken           = "token"
	FieldNewPassword     = "new_password"
)
