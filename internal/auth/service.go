// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/taibuivan/kaiwa/internal/platform/apperr"
	"github.com/taibuivan/kaiwa/internal/platform/constants"
	"github.com/taibuivan/kaiwa/internal/platform/validate"
)

// # Session States

// State identifies a position in the session lifecycle.
type State string

const (
	// StateUninitialized means the bootstrap has not started yet.
	StateUninitialized State = "uninitialized"

	// StateChecking means an auth-affecting operation is in flight.
	StateChecking State = "checking"

	// StateAuthenticated means a usable session exists and User is set.
	StateAuthenticated State = "authenticated"

	// StateUnauthenticated means no usable session exists.
	StateUnauthenticated State = "unauthenticated"
)

// Snapshot is an immutable copy of the observable session state.
//
// Invariant: IsAuthenticated implies User != nil. IsLoading is true only
// while initialize/login/register/logout is outstanding.
type Snapshot struct {
	State           State
	User            *User
	IsAuthenticated bool
	IsLoading       bool
	Err             string
}

// Result is the discriminated outcome of login and register.
type Result struct {
	Success   bool
	User      *User
	AutoLogin bool
	Err       string
}

// # Contracts & Types

// Backend is the slice of the API surface the controller drives.
//
// It is satisfied by [*API]; tests substitute stubs to script backend
// behavior without a network.
type Backend interface {

	/*
		Register creates a new account.

		Parameters:
		  - context: context.Context
		  - input: RegisterInput

		Returns:
		  - *User: Created profile
		  - error: Conflict, validation, or transport failures
	*/
	Register(context context.Context, input RegisterInput) (*User, error)

	/*
		Login exchanges credentials for a token pair.

		Parameters:
		  - context: context.Context
		  - email: string
		  - password: string

		Returns:
		  - *TokenPair: Fresh credential material
		  - error: Unauthenticated, locked, rate-limited, or transport failures
	*/
	Login(context context.Context, email, password string) (*TokenPair, error)

	/*
		Me fetches the profile for the current access token.

		Parameters:
		  - context: context.Context

		Returns:
		  - *User: Current profile
		  - error: Unauthenticated or transport failures
	*/
	Me(context context.Context) (*User, error)

	/*
		Logout invalidates a refresh token on the backend.

		Parameters:
		  - context: context.Context
		  - refreshToken: string

		Returns:
		  - error: Transport failures
	*/
	Logout(context context.Context, refreshToken string) error

	/*
		Refresh rotates the token pair through the coalesced refresh flight.

		Parameters:
		  - context: context.Context

		Returns:
		  - error: nil when a fresh pair was stored
	*/
	Refresh(context context.Context) error
}

// Controller is the single source of truth for "is there a usable session".
//
// # Review Process
//
// This controller gates every authenticated surface of the client. Any
// change to its state transitions must keep the invariant that
// Authenticated implies a non-nil user and stored tokens.
type Controller struct {
	backend Backend
	tokens  TokenStore
	log     *slog.Logger

	mu        sync.RWMutex
	state     State
	user      *User
	loading   bool
	lastError string

	subscribers []chan Snapshot
}

// NewController constructs a session controller in the Uninitialized state.
//
// The session starts loading so consumers gate until the first bootstrap
// completes.
func NewController(backend Backend, tokens TokenStore, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}

	return &Controller{
		backend: backend,
		tokens:  tokens,
		log:     log,
		state:   StateUninitialized,
		loading: true,
	}
}

// # Observation

// Snapshot returns a copy of the current session state.
func (controller *Controller) Snapshot() Snapshot {
	controller.mu.RLock()
	defer controller.mu.RUnlock()
	return controller.snapshotLocked()
}

// Subscribe returns a channel receiving a snapshot after every state
// change. Delivery is best-effort: a slow consumer misses intermediate
// snapshots but always observes a later, more current one.
func (controller *Controller) Subscribe() <-chan Snapshot {
	channel := make(chan Snapshot, 16)

	controller.mu.Lock()
	controller.subscribers = append(controller.subscribers, channel)
	controller.mu.Unlock()

	return channel
}

// # Bootstrap

/*
InitializeAuth bootstraps the session from stored credentials.

Description: Never fails outward. Every failure path degrades to
Unauthenticated with cleared tokens. With no stored credentials at all the
controller transitions straight to Unauthenticated without any network
call. Safe to call again defensively whenever a consumer observes "not
authenticated and not loading".

Parameters:
  - context: context.Context
*/
func (controller *Controller) InitializeAuth(context context.Context) {

	// 1. Enter Checking exactly once per bootstrap; concurrent calls and
	// calls on a live session are no-ops.
	controller.mu.Lock()
	if controller.state == StateChecking || controller.state == StateAuthenticated {
		controller.mu.Unlock()
		return
	}
	controller.state = StateChecking
	controller.loading = true
	controller.mu.Unlock()
	controller.notify()

	accessToken := controller.tokens.AccessToken()
	refreshToken := controller.tokens.RefreshToken()

	// 2. Nothing stored: offline decision, zero network calls.
	if accessToken == "" && refreshToken == "" {
		controller.becomeUnauthenticated("")
		return
	}

	// 3. No live access token but a persisted refresh token: mint a pair
	// silently before touching the profile endpoint.
	if accessToken == "" {
		if err := controller.backend.Refresh(context); err != nil {
			controller.log.Debug("bootstrap_refresh_failed", slog.Any("error", err))
			controller.tokens.ClearTokens()
			controller.becomeUnauthenticated("")
			return
		}
	}

	// 4. Prove the session by fetching the profile. A stale access token is
	// recovered inside the transport; a failure here means no session.
	user, err := controller.backend.Me(context)
	if err != nil {
		controller.log.Debug("bootstrap_profile_fetch_failed", slog.Any("error", err))
		controller.tokens.ClearTokens()
		controller.becomeUnauthenticated("")
		return
	}

	controller.becomeAuthenticated(user)
}

// # Authentication Flow

/*
Login exchanges credentials for a session.

Description: Calls the backend login (which yields both tokens), stores the
pair, fetches the profile, and transitions to Authenticated. Every failure
resolves to a Result with a normalized display message, never a stray error.

Parameters:
  - context: context.Context
  - email: string
  - password: string

Returns:
  - Result: Success with the profile, or failure with a display message
*/
func (controller *Controller) Login(context context.Context, email, password string) Result {
	controller.beginOperation()

	// 1. Exchange credentials for a token pair
	pair, err := controller.backend.Login(context, email, password)
	if err != nil {
		return controller.failAuth(err)
	}

	// 2. Store both tokens before any authenticated call
	controller.tokens.SetAccessToken(pair.AccessToken)
	controller.tokens.SetRefreshToken(pair.RefreshToken)

	// 3. Hydrate the profile with the fresh credentials
	user, err := controller.backend.Me(context)
	if err != nil {
		controller.tokens.ClearTokens()
		return controller.failAuth(err)
	}

	controller.becomeAuthenticated(user)
	controller.log.Debug("login_succeeded", slog.String("email", email))

	return Result{Success: true, User: user}
}

/*
Register enrolls a new account and immediately logs it in.

Description: Input is validated locally first to save a round trip, then
registration and an automatic login run back to back. A login failure after
successful registration is reported as the overall failure with the login's
error. Registration success without a session is not a reachable outcome.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - Result: Success with AutoLogin set, or failure with a display message
*/
func (controller *Controller) Register(context context.Context, input RegisterInput) Result {
	controller.beginOperation()

	// 1. Local pre-validation mirrors the backend's rules
	validator := &validate.Validator{}
	err := validator.
		Required(FieldFirstName, input.FirstName).
		Required(FieldLastName, input.LastName).
		Email(FieldEmail, input.Email).
		Password(FieldPassword, input.Password).
		PasswordsMatch(FieldConfirmPassword, input.Password, input.ConfirmPassword).
		TermsAccepted(FieldTermsAccepted, input.TermsAccepted).
		Err()
	if err != nil {
		return controller.failAuth(err)
	}

	// 2. Create the account
	if _, err := controller.backend.Register(context, input); err != nil {
		return controller.failAuth(err)
	}

	// 3. Auto-login with the same credentials; its failure is the overall
	// failure, carrying the login's error message
	result := controller.Login(context, input.Email, input.Password)
	if !result.Success {
		return result
	}

	controller.log.Debug("register_succeeded", slog.String("email", input.Email))
	return Result{Success: true, User: result.User, AutoLogin: true}
}

/*
Logout tears down the session.

Description: Best-effort backend invalidation of the current refresh token,
then unconditional local clearing. The local session is gone when this
returns, whatever the backend said.

Parameters:
  - context: context.Context
*/
func (controller *Controller) Logout(context context.Context) {
	controller.beginOperation()

	// 1. Best-effort notify; a failure must not keep the session alive
	if refreshToken := controller.tokens.RefreshToken(); refreshToken != "" {
		if err := controller.backend.Logout(context, refreshToken); err != nil {
			controller.log.Warn("logout_backend_call_failed", slog.Any("error", err))
		}
	}

	// 2. Unconditional local clear
	controller.tokens.ClearTokens()
	controller.becomeUnauthenticated("")
}

// # Profile Maintenance

/*
UpdateUser shallow-merges partial fields into the current profile.

Description: Optimistic local patch with no network round-trip. A no-op when
unauthenticated.

Parameters:
  - partial: map[string]any
*/
func (controller *Controller) UpdateUser(partial map[string]any) {
	controller.mu.Lock()

	if controller.state != StateAuthenticated || controller.user == nil {
		controller.mu.Unlock()
		return
	}

	merged := controller.user.Merge(partial)
	controller.user = &merged
	controller.mu.Unlock()
	controller.notify()
}

// ClearError resets the last error without other side effects.
func (controller *Controller) ClearError() {
	controller.mu.Lock()
	controller.lastError = ""
	controller.mu.Unlock()
	controller.notify()
}

// # Session Expiry

/*
HandleSessionExpired reacts to the transport's unrecoverable-refresh signal.

Description: Transitions to Unauthenticated with the session-expired
indicator. Explicitly checks the session is not already torn down first, so
repeated signals cannot loop.
*/
func (controller *Controller) HandleSessionExpired() {
	controller.mu.Lock()

	if controller.state == StateUnauthenticated {
		controller.mu.Unlock()
		return
	}

	controller.state = StateUnauthenticated
	controller.user = nil
	controller.loading = false
	controller.lastError = constants.MsgSessionExpired
	controller.mu.Unlock()

	controller.log.Debug("session_expired_transition")
	controller.notify()
}

// # State Transitions

// beginOperation marks an auth-affecting operation as in flight.
func (controller *Controller) beginOperation() {
	controller.mu.Lock()
	controller.state = StateChecking
	controller.loading = true
	controller.lastError = ""
	controller.mu.Unlock()
	controller.notify()
}

// becomeAuthenticated installs a live session.
func (controller *Controller) becomeAuthenticated(user *User) {
	controller.mu.Lock()
	controller.state = StateAuthenticated
	controller.user = user
	controller.loading = false
	controller.lastError = ""
	controller.mu.Unlock()
	controller.notify()
}

// becomeUnauthenticated installs the signed-out state with an optional
// display message.
func (controller *Controller) becomeUnauthenticated(message string) {
	controller.mu.Lock()
	controller.state = StateUnauthenticated
	controller.user = nil
	controller.loading = false
	controller.lastError = message
	controller.mu.Unlock()
	controller.notify()
}

// failAuth resolves a failed login/register into a Result and the
// Unauthenticated state.
func (controller *Controller) failAuth(err error) Result {
	message := normalizeError(err)
	controller.becomeUnauthenticated(message)
	return Result{Success: false, Err: message}
}

// snapshotLocked builds a Snapshot. Callers must hold mu.
func (controller *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		State:           controller.state,
		User:            controller.user,
		IsAuthenticated: controller.state == StateAuthenticated,
		IsLoading:       controller.loading,
		Err:             controller.lastError,
	}
}

// notify delivers the current snapshot to all subscribers without blocking.
func (controller *Controller) notify() {
	controller.mu.RLock()
	snapshot := controller.snapshotLocked()
	subscribers := controller.subscribers
	controller.mu.RUnlock()

	for _, subscriber := range subscribers {
		select {
		case subscriber <- snapshot:
		default:
			// Consumers are level-triggered; a missed tick is covered by
			// the next delivery.
		}
	}
}

// # Error Normalization

// normalizeError collapses any backend failure into one display string.
//
// A plain message passes through, structured field errors join their
// messages with ", ", and anything else falls back to a fixed phrase.
func normalizeError(err error) string {
	if err == nil {
		return apperr.FallbackMessage
	}

	if ae := apperr.As(err); ae != nil {
		if len(ae.Details) > 0 {
			messages := make([]string, 0, len(ae.Details))
			for _, detail := range ae.Details {
				messages = append(messages, detail.Message)
			}
			return strings.Join(messages, ", ")
		}

		if ae.Message != "" {
			return ae.Message
		}
	}

	return apperr.FallbackMessage
}
