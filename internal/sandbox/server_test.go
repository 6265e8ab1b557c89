// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sandbox_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/kaiwa/internal/auth"
	"github.com/taibuivan/kaiwa/internal/chat"
	"github.com/taibuivan/kaiwa/internal/platform/apperr"
	"github.com/taibuivan/kaiwa/internal/platform/config"
	"github.com/taibuivan/kaiwa/internal/platform/constants"
	"github.com/taibuivan/kaiwa/internal/platform/sec"
	"github.com/taibuivan/kaiwa/internal/platform/transport"
	"github.com/taibuivan/kaiwa/internal/sandbox"
)

const (
	testSecret   = "sandbox-test-secret"
	testPassword = "Str0ng!Passw0rd"
)

// harness wires the real client stack (transport, auth API, chat service)
// against a sandbox mounted on an httptest server. Every test gets its own
// backend, so rate limit budgets and account state never leak across tests.
type harness struct {
	t       *testing.T
	backend *httptest.Server
	sandbox *sandbox.Server
	store   *auth.MemoryTokenStore
	client  *transport.Client
	api     *auth.API
	chats   *chat.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &config.Config{SandboxPort: "0", SandboxSecret: testSecret}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	server := sandbox.NewServer(ctx, cfg, logger)
	backend := httptest.NewServer(server.Handler())
	t.Cleanup(backend.Close)

	store := auth.NewMemoryTokenStore(0)
	client := transport.NewClient(backend.URL, 5*time.Second, store, logger)

	return &harness{
		t:       t,
		backend: backend,
		sandbox: server,
		store:   store,
		client:  client,
		api:     auth.NewAPI(client),
		chats:   chat.NewService(client),
	}
}

func registerInput(email string) auth.RegisterInput {
	return auth.RegisterInput{
		Email:           email,
		Password:        testPassword,
		ConfirmPassword: testPassword,
		FirstName:       "Tai",
		LastName:        "Bui",
		TermsAccepted:   true,
	}
}

// register enrolls an account without touching the token store.
func (h *harness) register(email string) *auth.User {
	h.t.Helper()

	user, err := h.api.Register(context.Background(), registerInput(email))
	require.NoError(h.t, err)
	return user
}

// login authenticates and stores the resulting pair, as the session
// controller would.
func (h *harness) login(email string) *auth.TokenPair {
	h.t.Helper()

	pair, err := h.api.Login(context.Background(), email, testPassword)
	require.NoError(h.t, err)

	h.store.SetAccessToken(pair.AccessToken)
	h.store.SetRefreshToken(pair.RefreshToken)
	return pair
}

/*
TestSandbox_HealthEndpoint verifies the liveness endpoint and the request-id
echo from the middleware chain.
*/
func TestSandbox_HealthEndpoint(t *testing.T) {
	h := newHarness(t)

	response, err := http.Get(h.backend.URL + "/health")
	require.NoError(t, err)
	defer response.Body.Close()

	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.NotEmpty(t, response.Header.Get(constants.HeaderRequestID))

	payload := map[string]any{}
	require.NoError(t, json.NewDecoder(response.Body).Decode(&payload))
	assert.Equal(t, "healthy", payload["status"])
	assert.Equal(t, constants.AppVersion, payload["version"])
}

/*
TestSandbox_RegisterAndAutoLogin drives the full enrollment path through the
session controller: register, auto-login, profile hydration, stored tokens.
*/
func TestSandbox_RegisterAndAutoLogin(t *testing.T) {
	h := newHarness(t)
	controller := auth.NewController(h.api, h.store, nil)
	h.client.SetSessionExpiredHandler(controller.HandleSessionExpired)

	result := controller.Register(context.Background(), registerInput("tai@kaiwa.app"))

	require.True(t, result.Success, "register failed: %s", result.Err)
	assert.True(t, result.AutoLogin)
	require.NotNil(t, result.User)
	assert.Equal(t, "tai@kaiwa.app", result.User.Email)
	assert.Equal(t, "Tai", result.User.FirstName)
	assert.Equal(t, "Bui", result.User.LastName)
	assert.True(t, result.User.IsActive)
	assert.False(t, result.User.IsVerified)
	assert.NotNil(t, result.User.LastLoginAt, "login must stamp last_login_at")

	snapshot := controller.Snapshot()
	assert.Equal(t, auth.StateAuthenticated, snapshot.State)
	assert.True(t, snapshot.IsAuthenticated)
	assert.False(t, snapshot.IsLoading)
	assert.Empty(t, snapshot.Err)

	assert.NotEmpty(t, h.store.AccessToken())
	assert.NotEmpty(t, h.store.RefreshToken())
}

/*
TestSandbox_DuplicateEmailConflict verifies re-registration is rejected with
the backend's conflict message, case-insensitively.
*/
func TestSandbox_DuplicateEmailConflict(t *testing.T) {
	h := newHarness(t)
	h.register("tai@kaiwa.app")

	_, err := h.api.Register(context.Background(), registerInput("TAI@kaiwa.app"))

	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeConflict))
	assert.Equal(t, "Email already registered", err.Error())
}

/*
TestSandbox_RegisterValidationEnvelope verifies the structured validation
envelope survives the wire: the backend's field errors arrive as typed
details on the client side.
*/
func TestSandbox_RegisterValidationEnvelope(t *testing.T) {
	h := newHarness(t)

	input := registerInput("tai@kaiwa.app")
	input.Password = "weak"
	input.ConfirmPassword = "weak"

	_, err := h.api.Register(context.Background(), input)

	require.Error(t, err)
	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, apperr.CodeValidation, ae.Code)
	require.Len(t, ae.Details, 1)
	assert.Equal(t, "password", ae.Details[0].Field)
	assert.Equal(t, "Password must be at least 12 characters long", ae.Details[0].Message)
}

/*
TestSandbox_LockoutAfterRepeatedFailures verifies the lockout arithmetic:
wrong passwords surface the credential message verbatim until the failure
budget is spent, after which even the correct password is rejected with 423.
*/
func TestSandbox_LockoutAfterRepeatedFailures(t *testing.T) {
	h := newHarness(t)
	h.register("tai@kaiwa.app")

	for attempt := 1; attempt <= constants.MaxLoginAttempts; attempt++ {
		_, err := h.api.Login(context.Background(), "tai@kaiwa.app", "Wr0ng!Passw0rd")
		require.Error(t, err, "attempt %d", attempt)
		assert.True(t, apperr.HasCode(err, apperr.CodeUnauthenticated))
		assert.Equal(t, "Incorrect email or password", err.Error())
	}

	// The correct password no longer helps once the account is locked
	_, err := h.api.Login(context.Background(), "tai@kaiwa.app", testPassword)
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeAccountLocked))
	assert.Equal(t, "Account is temporarily locked due to multiple failed login attempts", err.Error())
}

/*
TestSandbox_DisabledAccountRejectsLogin verifies a deactivated account is
turned away even with correct credentials.
*/
func TestSandbox_DisabledAccountRejectsLogin(t *testing.T) {
	h := newHarness(t)
	h.register("tai@kaiwa.app")
	h.sandbox.State().SetAccountActive("tai@kaiwa.app", false)

	_, err := h.api.Login(context.Background(), "tai@kaiwa.app", testPassword)

	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeUnauthenticated))
	assert.Equal(t, "Account is disabled", err.Error())
}

/*
TestSandbox_RefreshRotationRejectsReplay verifies refresh tokens are
single-use: rotation issues a new pair and revokes the presented token.
*/
func TestSandbox_RefreshRotationRejectsReplay(t *testing.T) {
	h := newHarness(t)
	h.register("tai@kaiwa.app")
	pair := h.login("tai@kaiwa.app")

	require.NoError(t, h.api.Refresh(context.Background()))
	assert.NotEqual(t, pair.RefreshToken, h.store.RefreshToken())
	assert.NotEmpty(t, h.store.AccessToken())

	// The pre-rotation token was revoked by the rotation
	h.store.SetRefreshToken(pair.RefreshToken)
	err := h.api.Refresh(context.Background())

	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeUnauthenticated))
	assert.Equal(t, "Invalid or expired refresh token", err.Error())
}

/*
TestSandbox_ExpiredAccessTokenRecovers verifies the end-to-end refresh
protocol: a dead access token on a protected call is rotated away invisibly
and the call still succeeds.
*/
func TestSandbox_ExpiredAccessTokenRecovers(t *testing.T) {
	h := newHarness(t)
	user := h.register("tai@kaiwa.app")
	h.login("tai@kaiwa.app")

	// Hand the client an access token that is already expired
	expired, err := sec.NewTokenService(testSecret).
		GenerateAccessToken(strconv.FormatInt(user.ID, 10), -time.Minute)
	require.NoError(t, err)
	h.store.SetAccessToken(expired)

	profile, err := h.api.Me(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "tai@kaiwa.app", profile.Email)
	assert.NotEqual(t, expired, h.store.AccessToken(), "refresh must replace the dead token")
}

/*
TestSandbox_LogoutRevokesRefreshToken verifies logout invalidates the token
on the backend so neither a second logout nor a refresh can reuse it.
*/
func TestSandbox_LogoutRevokesRefreshToken(t *testing.T) {
	h := newHarness(t)
	h.register("tai@kaiwa.app")
	pair := h.login("tai@kaiwa.app")

	require.NoError(t, h.api.Logout(context.Background(), pair.RefreshToken))

	err := h.api.Logout(context.Background(), pair.RefreshToken)
	require.Error(t, err)
	assert.Equal(t, "Invalid refresh token", err.Error())

	// The store still holds the revoked token; rotation must fail too
	err = h.api.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeUnauthenticated))
	assert.Equal(t, "Invalid or expired refresh token", err.Error())
}

/*
TestSandbox_RateLimitRegister verifies the per-endpoint budget: the fourth
registration attempt inside the window is rejected with the limit message.
*/
func TestSandbox_RateLimitRegister(t *testing.T) {
	h := newHarness(t)

	for index := 0; index < constants.RateLimitRegister; index++ {
		h.register(fmt.Sprintf("tai+%d@kaiwa.app", index))
	}

	_, err := h.api.Register(context.Background(), registerInput("tai+overflow@kaiwa.app"))

	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeRateLimited))
	assert.Equal(t,
		fmt.Sprintf("Rate limit exceeded: %d per 1 minute", constants.RateLimitRegister),
		err.Error())
}

/*
TestSandbox_PasswordRecoveryFlow drives the whole forgot/reset cycle:
enumeration-safe request, reuse rejection without consuming the token,
single-use consumption on success, and the credential swap.
*/
func TestSandbox_PasswordRecoveryFlow(t *testing.T) {
	h := newHarness(t)
	h.register("tai@kaiwa.app")

	require.NoError(t, h.api.ForgotPassword(context.Background(), "tai@kaiwa.app"))

	// Unknown emails get the identical answer, so the endpoint cannot be
	// used to probe which accounts exist
	require.NoError(t, h.api.ForgotPassword(context.Background(), "ghost@kaiwa.app"))
	assert.Empty(t, h.sandbox.State().ResetTokenFor("ghost@kaiwa.app"))

	resetToken := h.sandbox.State().ResetTokenFor("tai@kaiwa.app")
	require.NotEmpty(t, resetToken)

	// Reusing the current password is rejected and keeps the token alive
	err := h.api.ResetPassword(context.Background(), resetToken, testPassword)
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))
	assert.Equal(t, "Cannot reuse recent passwords", err.Error())

	const rotated = "An0ther!Passw0rd"
	require.NoError(t, h.api.ResetPassword(context.Background(), resetToken, rotated))

	// A successful reset consumes the token
	err = h.api.ResetPassword(context.Background(), resetToken, "Th1rd!Passw0rd")
	require.Error(t, err)
	assert.Equal(t, "Invalid or expired reset token", err.Error())

	// The old password is dead, the new one works
	_, err = h.api.Login(context.Background(), "tai@kaiwa.app", testPassword)
	require.Error(t, err)
	assert.Equal(t, "Incorrect email or password", err.Error())

	_, err = h.api.Login(context.Background(), "tai@kaiwa.app", rotated)
	require.NoError(t, err)
}

/*
TestSandbox_EmailVerification verifies the query-parameter verification
flow flips the profile flag and consumes the token.
*/
func TestSandbox_EmailVerification(t *testing.T) {
	h := newHarness(t)
	user := h.register("tai@kaiwa.app")
	assert.False(t, user.IsVerified)
	h.login("tai@kaiwa.app")

	verifyToken := h.sandbox.State().VerificationTokenFor("tai@kaiwa.app")
	require.NotEmpty(t, verifyToken)

	require.NoError(t, h.api.VerifyEmail(context.Background(), verifyToken))

	profile, err := h.api.Me(context.Background())
	require.NoError(t, err)
	assert.True(t, profile.IsVerified)

	err = h.api.VerifyEmail(context.Background(), verifyToken)
	require.Error(t, err)
	assert.Equal(t, "Invalid or expired verification token", err.Error())
}

/*
TestSandbox_UnauthenticatedRequestIsRejected verifies a protected call with
no session at all surfaces the backend's credential message verbatim and
does not fire the session-expired hook.
*/
func TestSandbox_UnauthenticatedRequestIsRejected(t *testing.T) {
	h := newHarness(t)

	var expired bool
	h.client.SetSessionExpiredHandler(func() { expired = true })

	_, err := h.chats.List(context.Background(), chat.ListFilter{})

	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeUnauthenticated))
	assert.Equal(t, "Could not validate credentials", err.Error())
	assert.False(t, expired)
}
