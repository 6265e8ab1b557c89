// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/kaiwa/internal/auth"
	"github.com/taibuivan/kaiwa/internal/platform/apperr"
	"github.com/taibuivan/kaiwa/internal/platform/constants"
)

// scriptedBackend satisfies auth.Backend with canned responses and call
// counters, so controller flows can be exercised without a network.
type scriptedBackend struct {
	mu sync.Mutex

	registerCalls int
	loginCalls    int
	meCalls       int
	logoutCalls   int
	refreshCalls  int

	registerUser *auth.User
	registerErr  error
	loginPair    *auth.TokenPair
	loginErr     error
	meUser       *auth.User
	meErr        error
	logoutErr    error
	refreshErr   error
}

func (backend *scriptedBackend) Register(_ context.Context, _ auth.RegisterInput) (*auth.User, error) {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	backend.registerCalls++
	return backend.registerUser, backend.registerErr
}

func (backend *scriptedBackend) Login(_ context.Context, _, _ string) (*auth.TokenPair, error) {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	backend.loginCalls++
	return backend.loginPair, backend.loginErr
}

func (backend *scriptedBackend) Me(_ context.Context) (*auth.User, error) {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	backend.meCalls++
	return backend.meUser, backend.meErr
}

func (backend *scriptedBackend) Logout(_ context.Context, _ string) error {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	backend.logoutCalls++
	return backend.logoutErr
}

func (backend *scriptedBackend) Refresh(_ context.Context) error {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	backend.refreshCalls++
	return backend.refreshErr
}

func (backend *scriptedBackend) totalCalls() int {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	return backend.registerCalls + backend.loginCalls + backend.meCalls +
		backend.logoutCalls + backend.refreshCalls
}

// testUser is the profile returned by scripted Me calls.
func testUser() *auth.User {
	return &auth.User{
		ID:        1,
		Email:     "tai@kaiwa.app",
		FirstName: "Tai",
		LastName:  "Bui",
		IsActive:  true,
	}
}

// validRegisterInput passes every local validation rule.
func validRegisterInput() auth.RegisterInput {
	return auth.RegisterInput{
		Email:           "tai@kaiwa.app",
		Password:        "Str0ng!Passw0rd",
		ConfirmPassword: "Str0ng!Passw0rd",
		FirstName:       "Tai",
		LastName:        "Bui",
		TermsAccepted:   true,
	}
}

/*
TestController_InitializeAuth_NoStoredTokens verifies that with nothing
persisted the controller settles offline, without a single backend call.
*/
func TestController_InitializeAuth_NoStoredTokens(t *testing.T) {
	backend := &scriptedBackend{}
	store := auth.NewMemoryTokenStore(time.Minute)
	controller := auth.NewController(backend, store, nil)

	controller.InitializeAuth(context.Background())

	snapshot := controller.Snapshot()
	assert.Equal(t, auth.StateUnauthenticated, snapshot.State)
	assert.False(t, snapshot.IsAuthenticated)
	assert.False(t, snapshot.IsLoading)
	assert.Nil(t, snapshot.User)
	assert.Empty(t, snapshot.Err)
	assert.Zero(t, backend.totalCalls())
}

/*
TestController_InitializeAuth_RestoresSession verifies a stored access
token is proven against the profile endpoint.
*/
func TestController_InitializeAuth_RestoresSession(t *testing.T) {
	backend := &scriptedBackend{meUser: testUser()}
	store := auth.NewMemoryTokenStore(time.Minute)
	store.SetAccessToken(signedToken(t, time.Hour))
	controller := auth.NewController(backend, store, nil)

	controller.InitializeAuth(context.Background())

	snapshot := controller.Snapshot()
	assert.Equal(t, auth.StateAuthenticated, snapshot.State)
	assert.True(t, snapshot.IsAuthenticated)
	require.NotNil(t, snapshot.User)
	assert.Equal(t, "tai@kaiwa.app", snapshot.User.Email)
	assert.Equal(t, 1, backend.meCalls)
	assert.Zero(t, backend.refreshCalls)
}

/*
TestController_InitializeAuth_RefreshPath verifies that a lone refresh
token triggers a silent rotation before the profile fetch.
*/
func TestController_InitializeAuth_RefreshPath(t *testing.T) {
	backend := &scriptedBackend{meUser: testUser()}
	store := auth.NewMemoryTokenStore(time.Minute)
	store.SetRefreshToken("stored-refresh")
	controller := auth.NewController(backend, store, nil)

	controller.InitializeAuth(context.Background())

	snapshot := controller.Snapshot()
	assert.Equal(t, auth.StateAuthenticated, snapshot.State)
	assert.Equal(t, 1, backend.refreshCalls)
	assert.Equal(t, 1, backend.meCalls)
}

/*
TestController_InitializeAuth_FailureDegrades verifies a failed bootstrap
clears stored credentials and settles Unauthenticated without surfacing an
error.
*/
func TestController_InitializeAuth_FailureDegrades(t *testing.T) {
	backend := &scriptedBackend{meErr: apperr.Unauthenticated("Could not validate credentials")}
	store := auth.NewMemoryTokenStore(time.Minute)
	store.SetAccessToken(signedToken(t, time.Hour))
	store.SetRefreshToken("stored-refresh")
	controller := auth.NewController(backend, store, nil)

	controller.InitializeAuth(context.Background())

	snapshot := controller.Snapshot()
	assert.Equal(t, auth.StateUnauthenticated, snapshot.State)
	assert.Empty(t, snapshot.Err)
	assert.Empty(t, store.AccessToken())
	assert.Empty(t, store.RefreshToken())
}

/*
TestController_Login_Success walks the full happy path and checks the
resulting snapshot in one piece.
*/
func TestController_Login_Success(t *testing.T) {
	backend := &scriptedBackend{
		loginPair: &auth.TokenPair{AccessToken: "fresh-access", RefreshToken: "fresh-refresh"},
		meUser:    testUser(),
	}
	store := auth.NewMemoryTokenStore(time.Minute)
	controller := auth.NewController(backend, store, nil)

	result := controller.Login(context.Background(), "tai@kaiwa.app", "Str0ng!Passw0rd")

	require.True(t, result.Success)
	require.NotNil(t, result.User)
	assert.False(t, result.AutoLogin)

	snapshot := controller.Snapshot()
	assert.Equal(t, auth.StateAuthenticated, snapshot.State)
	assert.True(t, snapshot.IsAuthenticated)
	assert.False(t, snapshot.IsLoading)
	assert.Empty(t, snapshot.Err)
	assert.Equal(t, "Tai Bui", snapshot.User.FullName())

	assert.Equal(t, "fresh-access", store.AccessToken())
	assert.Equal(t, "fresh-refresh", store.RefreshToken())
}

/*
TestController_Login_Failure verifies failures carry a display message and
leave no session behind.
*/
func TestController_Login_Failure(t *testing.T) {
	tests := []struct {
		name     string
		loginErr error
		wantMsg  string
	}{
		{
			"plain_message_passes_through",
			apperr.Unauthenticated("Incorrect email or password"),
			"Incorrect email or password",
		},
		{
			"field_errors_join_with_commas",
			apperr.Validation("",
				apperr.FieldError{Field: "email", Message: "Email invalid"},
				apperr.FieldError{Field: "password", Message: "Password too short"},
			),
			"Email invalid, Password too short",
		},
		{
			"account_locked_surfaces_verbatim",
			apperr.AccountLocked("Account locked due to too many failed login attempts. Try again in 30 minutes."),
			"Account locked due to too many failed login attempts. Try again in 30 minutes.",
		},
		{
			"unrecognized_error_falls_back",
			errors.New("connection reset by peer"),
			apperr.FallbackMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &scriptedBackend{loginErr: tt.loginErr}
			store := auth.NewMemoryTokenStore(time.Minute)
			controller := auth.NewController(backend, store, nil)

			result := controller.Login(context.Background(), "tai@kaiwa.app", "wrong")

			assert.False(t, result.Success)
			assert.Equal(t, tt.wantMsg, result.Err)

			snapshot := controller.Snapshot()
			assert.Equal(t, auth.StateUnauthenticated, snapshot.State)
			assert.Equal(t, tt.wantMsg, snapshot.Err)
			assert.Empty(t, store.AccessToken())
		})
	}
}

/*
TestController_Register_Success verifies registration flows straight into
an authenticated session.
*/
func TestController_Register_Success(t *testing.T) {
	backend := &scriptedBackend{
		registerUser: testUser(),
		loginPair:    &auth.TokenPair{AccessToken: "fresh-access", RefreshToken: "fresh-refresh"},
		meUser:       testUser(),
	}
	store := auth.NewMemoryTokenStore(time.Minute)
	controller := auth.NewController(backend, store, nil)

	result := controller.Register(context.Background(), validRegisterInput())

	require.True(t, result.Success)
	assert.True(t, result.AutoLogin)
	require.NotNil(t, result.User)
	assert.Equal(t, 1, backend.registerCalls)
	assert.Equal(t, 1, backend.loginCalls)
	assert.True(t, controller.Snapshot().IsAuthenticated)
}

/*
TestController_Register_AutoLoginFailure verifies a failed automatic login
after successful registration reports the login's error as the overall
outcome.
*/
func TestController_Register_AutoLoginFailure(t *testing.T) {
	backend := &scriptedBackend{
		registerUser: testUser(),
		loginErr:     apperr.Unauthenticated("Incorrect email or password"),
	}
	store := auth.NewMemoryTokenStore(time.Minute)
	controller := auth.NewController(backend, store, nil)

	result := controller.Register(context.Background(), validRegisterInput())

	assert.False(t, result.Success)
	assert.False(t, result.AutoLogin)
	assert.Equal(t, "Incorrect email or password", result.Err)
	assert.Equal(t, 1, backend.registerCalls)
	assert.Equal(t, 1, backend.loginCalls)
	assert.Equal(t, auth.StateUnauthenticated, controller.Snapshot().State)
}

/*
TestController_Register_LocalValidation verifies invalid input never
reaches the backend.
*/
func TestController_Register_LocalValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*auth.RegisterInput)
	}{
		{"weak_password", func(input *auth.RegisterInput) {
			input.Password = "short"
			input.ConfirmPassword = "short"
		}},
		{"mismatched_confirmation", func(input *auth.RegisterInput) {
			input.ConfirmPassword = "Different!Passw0rd"
		}},
		{"terms_not_accepted", func(input *auth.RegisterInput) {
			input.TermsAccepted = false
		}},
		{"invalid_email", func(input *auth.RegisterInput) {
			input.Email = "not-an-email"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &scriptedBackend{}
			controller := auth.NewController(backend, auth.NewMemoryTokenStore(time.Minute), nil)

			input := validRegisterInput()
			tt.mutate(&input)

			result := controller.Register(context.Background(), input)

			assert.False(t, result.Success)
			assert.NotEmpty(t, result.Err)
			assert.Zero(t, backend.registerCalls)
		})
	}
}

/*
TestController_Logout_ClearsDespiteBackendFailure verifies local teardown
happens even when the backend call fails.
*/
func TestController_Logout_ClearsDespiteBackendFailure(t *testing.T) {
	backend := &scriptedBackend{
		loginPair: &auth.TokenPair{AccessToken: "fresh-access", RefreshToken: "fresh-refresh"},
		meUser:    testUser(),
		logoutErr: errors.New("backend unreachable"),
	}
	store := auth.NewMemoryTokenStore(time.Minute)
	controller := auth.NewController(backend, store, nil)

	require.True(t, controller.Login(context.Background(), "tai@kaiwa.app", "pw").Success)

	controller.Logout(context.Background())

	snapshot := controller.Snapshot()
	assert.Equal(t, auth.StateUnauthenticated, snapshot.State)
	assert.Nil(t, snapshot.User)
	assert.Empty(t, snapshot.Err)
	assert.Empty(t, store.AccessToken())
	assert.Empty(t, store.RefreshToken())
	assert.Equal(t, 1, backend.logoutCalls)
}

/*
TestController_UpdateUser verifies the optimistic in-place profile patch.
*/
func TestController_UpdateUser(t *testing.T) {
	backend := &scriptedBackend{
		loginPair: &auth.TokenPair{AccessToken: "fresh-access", RefreshToken: "fresh-refresh"},
		meUser:    testUser(),
	}
	controller := auth.NewController(backend, auth.NewMemoryTokenStore(time.Minute), nil)
	require.True(t, controller.Login(context.Background(), "tai@kaiwa.app", "pw").Success)

	controller.UpdateUser(map[string]any{
		"first_name": "Kai",
		"theme":      "dark",
	})

	user := controller.Snapshot().User
	require.NotNil(t, user)
	assert.Equal(t, "Kai", user.FirstName)
	assert.Equal(t, "Bui", user.LastName)
	assert.Equal(t, "dark", user.Extra["theme"])
}

/*
TestController_UpdateUser_IgnoredWhenSignedOut verifies the patch is a
no-op without a session.
*/
func TestController_UpdateUser_IgnoredWhenSignedOut(t *testing.T) {
	controller := auth.NewController(&scriptedBackend{}, auth.NewMemoryTokenStore(time.Minute), nil)
	controller.InitializeAuth(context.Background())

	controller.UpdateUser(map[string]any{"first_name": "Kai"})

	assert.Nil(t, controller.Snapshot().User)
}

/*
TestController_ClearError verifies the error resets without touching the
rest of the state.
*/
func TestController_ClearError(t *testing.T) {
	backend := &scriptedBackend{loginErr: apperr.Unauthenticated("Incorrect email or password")}
	controller := auth.NewController(backend, auth.NewMemoryTokenStore(time.Minute), nil)

	controller.Login(context.Background(), "tai@kaiwa.app", "wrong")
	require.NotEmpty(t, controller.Snapshot().Err)

	controller.ClearError()

	snapshot := controller.Snapshot()
	assert.Empty(t, snapshot.Err)
	assert.Equal(t, auth.StateUnauthenticated, snapshot.State)
}

/*
TestController_HandleSessionExpired verifies the expiry signal tears down
the session once and ignores repeats.
*/
func TestController_HandleSessionExpired(t *testing.T) {
	backend := &scriptedBackend{
		loginPair: &auth.TokenPair{AccessToken: "fresh-access", RefreshToken: "fresh-refresh"},
		meUser:    testUser(),
	}
	controller := auth.NewController(backend, auth.NewMemoryTokenStore(time.Minute), nil)
	require.True(t, controller.Login(context.Background(), "tai@kaiwa.app", "pw").Success)

	// 1. First signal transitions and records the indicator
	controller.HandleSessionExpired()
	snapshot := controller.Snapshot()
	assert.Equal(t, auth.StateUnauthenticated, snapshot.State)
	assert.Equal(t, constants.MsgSessionExpired, snapshot.Err)

	// 2. A repeated signal changes nothing, breaking any notification loop
	controller.ClearError()
	controller.HandleSessionExpired()
	assert.Empty(t, controller.Snapshot().Err)
}

/*
TestController_Subscribe verifies state changes reach subscribers.
*/
func TestController_Subscribe(t *testing.T) {
	backend := &scriptedBackend{
		loginPair: &auth.TokenPair{AccessToken: "fresh-access", RefreshToken: "fresh-refresh"},
		meUser:    testUser(),
	}
	controller := auth.NewController(backend, auth.NewMemoryTokenStore(time.Minute), nil)
	updates := controller.Subscribe()

	controller.Login(context.Background(), "tai@kaiwa.app", "pw")

	var last auth.Snapshot
	for {
		select {
		case snapshot := <-updates:
			last = snapshot
			continue
		default:
		}
		break
	}

	assert.Equal(t, auth.StateAuthenticated, last.State)
	require.NotNil(t, last.User)
}
