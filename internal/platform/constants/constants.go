// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package constants provides centralized, immutable values for the entire platform.

It defines default timeouts, rate limits, and cross-cutting keys that are shared
between the client transport and the sandbox backend.

Categories:

  - Client Transport: Per-call deadlines and identification headers.
  - Sandbox Timing: Read/Write/Idle timeouts for the sandbox HTTP server.
  - Rate Limiting: Per-endpoint request budgets mirroring the real backend.
  - Security: Token budgets for account lockout.

Using this package ensures Magic Strings and Magic Numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "kaiwa"
	AppVersion = "0.1.0-dev"

	// UserAgent identifies the client on every outbound request.
	UserAgent = AppName + "/" + AppVersion
)

// # Client Transport

const (
	// DefaultHTTPTimeout is the per-call deadline when configuration
	// supplies none.
	DefaultHTTPTimeout = 10 * time.Second

	// HeaderRequestID carries the per-attempt correlation ID.
	HeaderRequestID = "X-Request-ID"

	// MsgSessionExpired is shown once when the refresh protocol gives up.
	MsgSessionExpired = "Your session has expired. Please log in again."
)

// # Sandbox Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second

	// GlobalRequestTimeout bounds a single request's total processing time.
	GlobalRequestTimeout = 30 * time.Second
)

// # Rate Limiting (per minute, mirroring the production backend)

const (
	RateLimitRegister = 3
	RateLimitLogin    = 10
	RateLimitRefresh  = 20
	RateLimitForgot   = 3
	RateLimitReset    = 5

	// RateLimitCleanupInterval is how often idle limiter entries are purged.
	RateLimitCleanupInterval = time.Minute

	// RateLimitClientTTL is how long an idle client keeps its bucket.
	RateLimitClientTTL = 3 * time.Minute
)

// # Account Lockout

const (
	// MaxLoginAttempts is the number of consecutive failures before lockout.
	MaxLoginAttempts = 5

	// LockoutDuration is how long a locked account rejects logins.
	LockoutDuration = 30 * time.Minute
)

// # JSON Field Identifiers

const (
	FieldAccessToken  = "access_token"
	FieldRefreshToken = "refresh_token"
	FieldTokenType    = "token_type"
	FieldExpiresIn    = "expires_in"
	FieldDetail       = "detail"
	FieldMessage      = "message"
)
