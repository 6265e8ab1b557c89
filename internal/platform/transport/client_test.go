// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package transport_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/kaiwa/internal/platform/apperr"
	"github.com/taibuivan/kaiwa/internal/platform/constants"
	"github.com/taibuivan/kaiwa/internal/platform/transport"
)

// memorySource is a minimal thread-safe TokenSource for transport tests.
type memorySource struct {
	mu      sync.RWMutex
	access  string
	refresh string
}

func (source *memorySource) AccessToken() string {
	source.mu.RLock()
	defer source.mu.RUnlock()
	return source.access
}

func (source *memorySource) SetAccessToken(token string) {
	source.mu.Lock()
	defer source.mu.Unlock()
	source.access = token
}

func (source *memorySource) RefreshToken() string {
	source.mu.RLock()
	defer source.mu.RUnlock()
	return source.refresh
}

func (source *memorySource) SetRefreshToken(token string) {
	source.mu.Lock()
	defer source.mu.Unlock()
	source.refresh = token
}

func (source *memorySource) ClearTokens() {
	source.mu.Lock()
	defer source.mu.Unlock()
	source.access = ""
	source.refresh = ""
}

// rotatingBackend fakes the token half of the backend: access tokens it has
// issued are accepted, the single live refresh token rotates on every
// successful refresh, and a stale refresh token is rejected.
type rotatingBackend struct {
	mu           sync.Mutex
	issued       int
	refreshCalls int
	refreshDelay time.Duration
	validAccess  map[string]bool
	validRefresh string
}

func newRotatingBackend(validRefresh string) *rotatingBackend {
	return &rotatingBackend{
		validAccess:  map[string]bool{},
		validRefresh: validRefresh,
	}
}

func (backend *rotatingBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	payload := struct {
		RefreshToken string `json:"refresh_token"`
	}{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	backend.mu.Lock()
	backend.refreshCalls++
	delay := backend.refreshDelay

	if payload.RefreshToken != backend.validRefresh {
		backend.mu.Unlock()
		writeDetail(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	backend.issued++
	accessToken := fmt.Sprintf("access-%d", backend.issued)
	refreshToken := fmt.Sprintf("refresh-%d", backend.issued)
	backend.validAccess[accessToken] = true
	backend.validRefresh = refreshToken
	backend.mu.Unlock()

	// Widens the window in which concurrent callers can join the flight
	time.Sleep(delay)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"token_type":    "bearer",
		"expires_in":    900,
	})
}

func (backend *rotatingBackend) acceptsBearer(r *http.Request) bool {
	token, found := bearerOf(r)
	if !found {
		return false
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	return backend.validAccess[token]
}

func (backend *rotatingBackend) refreshCount() int {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	return backend.refreshCalls
}

func bearerOf(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if len(header) <= len("Bearer ") || header[:len("Bearer ")] != "Bearer " {
		return "", false
	}
	return header[len("Bearer "):], true
}

func writeDetail(w http.ResponseWriter, status int, detail any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"detail": detail})
}

/*
TestClient_Do_Success verifies bearer injection, request identification,
and response decoding on the plain path.
*/
func TestClient_Do_Success(t *testing.T) {
	var sawBearer, sawRequestID string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawBearer = r.Header.Get("Authorization")
		sawRequestID = r.Header.Get(constants.HeaderRequestID)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"email": "tai@kaiwa.app"})
	}))
	defer server.Close()

	tokens := &memorySource{access: "stored-access"}
	client := transport.NewClient(server.URL, time.Second, tokens, nil)

	out := struct {
		Email string `json:"email"`
	}{}
	err := client.Do(context.Background(), transport.Request{
		Method: http.MethodGet,
		Path:   "/api/auth/me",
		Out:    &out,
	})

	require.NoError(t, err)
	assert.Equal(t, "tai@kaiwa.app", out.Email)
	assert.Equal(t, "Bearer stored-access", sawBearer)
	assert.NotEmpty(t, sawRequestID)
}

/*
TestClient_Do_RefreshOn401 verifies the stale-token recovery: one refresh,
one replay, fresh pair stored.
*/
func TestClient_Do_RefreshOn401(t *testing.T) {
	backend := newRotatingBackend("refresh-0")
	var protectedCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", backend.handleRefresh)
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		protectedCalls.Add(1)
		if !backend.acceptsBearer(r) {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"email": "tai@kaiwa.app"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	tokens := &memorySource{access: "stale-access", refresh: "refresh-0"}
	client := transport.NewClient(server.URL, time.Second, tokens, nil)

	out := struct {
		Email string `json:"email"`
	}{}
	err := client.Do(context.Background(), transport.Request{
		Method: http.MethodGet,
		Path:   "/api/auth/me",
		Out:    &out,
	})

	require.NoError(t, err)
	assert.Equal(t, "tai@kaiwa.app", out.Email)
	assert.Equal(t, int32(2), protectedCalls.Load())
	assert.Equal(t, 1, backend.refreshCount())
	assert.Equal(t, "access-1", tokens.AccessToken())
	assert.Equal(t, "refresh-1", tokens.RefreshToken())
}

/*
TestClient_Do_CoalescesConcurrentRefreshes verifies that racing requests
hitting 401 together share a single refresh flight. With rotation, a second
concurrent refresh would carry a dead token and kill the session, so this
is correctness, not an optimization.
*/
func TestClient_Do_CoalescesConcurrentRefreshes(t *testing.T) {
	backend := newRotatingBackend("refresh-0")
	backend.refreshDelay = 100 * time.Millisecond

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", backend.handleRefresh)
	mux.HandleFunc("/api/chats", func(w http.ResponseWriter, r *http.Request) {
		if !backend.acceptsBearer(r) {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]string{})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	tokens := &memorySource{access: "stale-access", refresh: "refresh-0"}
	client := transport.NewClient(server.URL, 5*time.Second, tokens, nil)

	const workers = 3
	errs := make([]error, workers)
	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func(index int) {
			defer wg.Done()
			out := []map[string]string{}
			errs[index] = client.Do(context.Background(), transport.Request{
				Method: http.MethodGet,
				Path:   "/api/chats",
				Out:    &out,
			})
		}(i)
	}
	wg.Wait()

	for index, err := range errs {
		assert.NoError(t, err, "worker %d", index)
	}
	assert.Equal(t, 1, backend.refreshCount())
	assert.Equal(t, "refresh-1", tokens.RefreshToken())
}

/*
TestClient_Do_NoRefreshTokenExpiresSession verifies a 401 with nothing to
refresh with tears the session down without ever calling the refresh
endpoint.
*/
func TestClient_Do_NoRefreshTokenExpiresSession(t *testing.T) {
	var refreshCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		writeDetail(w, http.StatusUnauthorized, "Invalid refresh token")
	})
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	tokens := &memorySource{access: "stale-access"}
	client := transport.NewClient(server.URL, time.Second, tokens, nil)

	var expired atomic.Bool
	client.SetSessionExpiredHandler(func() { expired.Store(true) })

	err := client.Do(context.Background(), transport.Request{
		Method: http.MethodGet,
		Path:   "/api/auth/me",
	})

	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeUnauthenticated))
	assert.Equal(t, constants.MsgSessionExpired, err.Error())
	assert.Zero(t, refreshCalls.Load())
	assert.True(t, expired.Load())
	assert.Empty(t, tokens.AccessToken())
	assert.Empty(t, tokens.RefreshToken())
}

/*
TestClient_Do_AnonymousUnauthorizedSurfaces verifies a 401 on a call that
carried no credentials, with no session stored, is returned verbatim. A
wrong login password must not masquerade as an expired session.
*/
func TestClient_Do_AnonymousUnauthorizedSurfaces(t *testing.T) {
	var refreshCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
	})
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	tokens := &memorySource{}
	client := transport.NewClient(server.URL, time.Second, tokens, nil)

	var expired atomic.Bool
	client.SetSessionExpiredHandler(func() { expired.Store(true) })

	err := client.Do(context.Background(), transport.Request{
		Method: http.MethodPost,
		Path:   "/api/auth/login",
		Body:   map[string]string{"email": "tai@kaiwa.app", "password": "wrong"},
	})

	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeUnauthenticated))
	assert.Equal(t, "Incorrect email or password", err.Error())
	assert.Zero(t, refreshCalls.Load())
	assert.False(t, expired.Load())
}

/*
TestClient_Do_ExpiredRefreshTokenSkipsRefresh verifies a refresh token
whose own decodable expiry has passed is rejected locally.
*/
func TestClient_Do_ExpiredRefreshTokenSkipsRefresh(t *testing.T) {
	expiredJWT, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	var refreshCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		writeDetail(w, http.StatusUnauthorized, "Invalid refresh token")
	})
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	tokens := &memorySource{access: "stale-access", refresh: expiredJWT}
	client := transport.NewClient(server.URL, time.Second, tokens, nil)

	err = client.Do(context.Background(), transport.Request{
		Method: http.MethodGet,
		Path:   "/api/auth/me",
	})

	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeUnauthenticated))
	assert.Zero(t, refreshCalls.Load())
	assert.Empty(t, tokens.RefreshToken())
}

/*
TestClient_Do_AccountStateFailures verifies 423 and 429 surface verbatim
with no refresh attempt and no token teardown.
*/
func TestClient_Do_AccountStateFailures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		detail   string
		wantCode string
	}{
		{
			"locked_account",
			http.StatusLocked,
			"Account locked due to too many failed login attempts. Try again in 30 minutes.",
			apperr.CodeAccountLocked,
		},
		{
			"rate_limited",
			http.StatusTooManyRequests,
			"Too many requests. Please try again later.",
			apperr.CodeRateLimited,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var refreshCalls atomic.Int32

			mux := http.NewServeMux()
			mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
				refreshCalls.Add(1)
			})
			mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
				writeDetail(w, tt.status, tt.detail)
			})
			server := httptest.NewServer(mux)
			defer server.Close()

			tokens := &memorySource{access: "stored-access", refresh: "stored-refresh"}
			client := transport.NewClient(server.URL, time.Second, tokens, nil)

			err := client.Do(context.Background(), transport.Request{
				Method: http.MethodPost,
				Path:   "/api/auth/login",
				Body:   map[string]string{"email": "tai@kaiwa.app", "password": "pw"},
			})

			require.Error(t, err)
			assert.True(t, apperr.HasCode(err, tt.wantCode))
			assert.Equal(t, tt.detail, err.Error())
			assert.Zero(t, refreshCalls.Load())
			assert.Equal(t, "stored-access", tokens.AccessToken())
			assert.Equal(t, "stored-refresh", tokens.RefreshToken())
		})
	}
}

/*
TestClient_Do_ValidationDetailList verifies the structured validation body
decodes into per-field errors with messages joined for display.
*/
func TestClient_Do_ValidationDetailList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusUnprocessableEntity, []map[string]any{
			{"loc": []any{"body", "email"}, "msg": "Email invalid", "type": "value_error"},
			{"loc": []any{"body", "password"}, "msg": "Password too short", "type": "value_error"},
		})
	}))
	defer server.Close()

	client := transport.NewClient(server.URL, time.Second, &memorySource{}, nil)

	err := client.Do(context.Background(), transport.Request{
		Method: http.MethodPost,
		Path:   "/api/auth/register",
		Body:   map[string]string{"email": "bad"},
	})

	require.Error(t, err)
	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, apperr.CodeValidation, ae.Code)
	assert.Equal(t, "Email invalid, Password too short", ae.Message)

	require.Len(t, ae.Details, 2)
	assert.Equal(t, "email", ae.Details[0].Field)
	assert.Equal(t, "Email invalid", ae.Details[0].Message)
	assert.Equal(t, "password", ae.Details[1].Field)
}

/*
TestClient_Do_SecondUnauthorizedSurfaces verifies a 401 on the replayed
request is returned to the caller without clearing the freshly rotated
tokens.
*/
func TestClient_Do_SecondUnauthorizedSurfaces(t *testing.T) {
	backend := newRotatingBackend("refresh-0")

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", backend.handleRefresh)
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		// Rejects even freshly rotated credentials
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	tokens := &memorySource{access: "stale-access", refresh: "refresh-0"}
	client := transport.NewClient(server.URL, time.Second, tokens, nil)

	err := client.Do(context.Background(), transport.Request{
		Method: http.MethodGet,
		Path:   "/api/auth/me",
	})

	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeUnauthenticated))
	assert.Equal(t, "Could not validate credentials", err.Error())
	assert.Equal(t, 1, backend.refreshCount())
	assert.Equal(t, "access-1", tokens.AccessToken())
	assert.Equal(t, "refresh-1", tokens.RefreshToken())
}

/*
TestClient_Do_NetworkFailureIsUnavailable verifies transport-level failures
map to the availability error without touching stored tokens.
*/
func TestClient_Do_NetworkFailureIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	tokens := &memorySource{access: "stored-access", refresh: "stored-refresh"}
	client := transport.NewClient(server.URL, time.Second, tokens, nil)

	err := client.Do(context.Background(), transport.Request{
		Method: http.MethodGet,
		Path:   "/api/auth/me",
	})

	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeUnavailable))
	assert.Equal(t, "stored-access", tokens.AccessToken())
	assert.Equal(t, "stored-refresh", tokens.RefreshToken())
}

/*
TestClient_Refresh_RotatesPair verifies a direct refresh stores the fresh
pair.
*/
func TestClient_Refresh_RotatesPair(t *testing.T) {
	backend := newRotatingBackend("refresh-0")

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", backend.handleRefresh)
	server := httptest.NewServer(mux)
	defer server.Close()

	tokens := &memorySource{refresh: "refresh-0"}
	client := transport.NewClient(server.URL, time.Second, tokens, nil)

	require.NoError(t, client.Refresh(context.Background()))

	assert.Equal(t, "access-1", tokens.AccessToken())
	assert.Equal(t, "refresh-1", tokens.RefreshToken())

	// A second rotation must carry the rotated token, not the original
	require.NoError(t, client.Refresh(context.Background()))
	assert.Equal(t, "refresh-2", tokens.RefreshToken())
}
