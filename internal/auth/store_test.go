// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/kaiwa/internal/auth"
	"github.com/taibuivan/kaiwa/internal/platform/sec"
)

// signedToken mints a real HS256 token with the given lifetime.
func signedToken(t *testing.T, timeToLive time.Duration) string {
	t.Helper()

	token, err := sec.NewTokenService("test-secret").GenerateAccessToken("tai@kaiwa.app", timeToLive)
	require.NoError(t, err)
	return token
}

/*
TestMemoryTokenStore_AccessLifecycle verifies set, read, and clear of the
volatile tier.
*/
func TestMemoryTokenStore_AccessLifecycle(t *testing.T) {
	store := auth.NewMemoryTokenStore(time.Minute)

	// 1. Starts empty
	assert.Empty(t, store.AccessToken())

	// 2. Set and read back
	store.SetAccessToken("access-abc")
	assert.Equal(t, "access-abc", store.AccessToken())

	// 3. Clearing the access tier leaves the refresh tier alone
	store.SetRefreshToken("refresh-xyz")
	store.ClearAccessToken()
	assert.Empty(t, store.AccessToken())
	assert.Equal(t, "refresh-xyz", store.RefreshToken())
}

/*
TestMemoryTokenStore_AutoClear verifies the access token removes itself
once its lifetime elapses.
*/
func TestMemoryTokenStore_AutoClear(t *testing.T) {
	store := auth.NewMemoryTokenStore(50 * time.Millisecond)

	store.SetAccessToken("short-lived")
	assert.Equal(t, "short-lived", store.AccessToken())

	time.Sleep(150 * time.Millisecond)

	assert.Empty(t, store.AccessToken())
}

/*
TestMemoryTokenStore_Supersede verifies that replacing a token rearms the
clear timer and that the superseded token's timer cannot clear the
successor.
*/
func TestMemoryTokenStore_Supersede(t *testing.T) {
	store := auth.NewMemoryTokenStore(200 * time.Millisecond)

	// 1. First token armed to clear at t=200ms
	store.SetAccessToken("first")

	// 2. Replaced at t=100ms; successor clears at t=300ms
	time.Sleep(100 * time.Millisecond)
	store.SetAccessToken("second")

	// 3. At t=250ms the first token's deadline has passed but the
	// successor must still be present
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, "second", store.AccessToken())

	// 4. At t=400ms the successor's own lifetime has elapsed
	time.Sleep(150 * time.Millisecond)
	assert.Empty(t, store.AccessToken())
}

/*
TestMemoryTokenStore_ClearTokens verifies both tiers are emptied together.
*/
func TestMemoryTokenStore_ClearTokens(t *testing.T) {
	store := auth.NewMemoryTokenStore(time.Minute)
	store.SetAccessToken("access-abc")
	store.SetRefreshToken("refresh-xyz")

	store.ClearTokens()

	assert.Empty(t, store.AccessToken())
	assert.Empty(t, store.RefreshToken())
}

/*
TestTokenStore_IsTokenExpired covers the fail-closed expiry decision.
*/
func TestTokenStore_IsTokenExpired(t *testing.T) {
	// A structurally valid token with no expiry claim at all
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "tai@kaiwa.app",
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		expired bool
	}{
		{"valid_future_expiry", signedToken(t, time.Hour), false},
		{"past_expiry", signedToken(t, -time.Hour), true},
		{"malformed_token", "not-a-jwt", true},
		{"empty_token", "", true},
		{"missing_expiry_claim", noExpiry, true},
	}

	store := auth.NewMemoryTokenStore(time.Minute)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expired, store.IsTokenExpired(tt.token))
		})
	}
}

/*
TestFileTokenStore_RefreshPersistence verifies the refresh token survives
process restarts through the state file and is removed on clear.
*/
func TestFileTokenStore_RefreshPersistence(t *testing.T) {
	dir := t.TempDir()

	// 1. First "process" persists the refresh token
	first := auth.NewFileTokenStore(dir, time.Minute, nil)
	first.SetRefreshToken("persisted-refresh")

	path := filepath.Join(dir, auth.RefreshTokenFile)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// 2. Second "process" reads it back from disk
	second := auth.NewFileTokenStore(dir, time.Minute, nil)
	assert.Equal(t, "persisted-refresh", second.RefreshToken())

	// 3. Clearing removes the file for every instance
	second.ClearTokens()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, first.RefreshToken())
}

/*
TestFileTokenStore_AccessStaysVolatile verifies the access token is never
written to disk.
*/
func TestFileTokenStore_AccessStaysVolatile(t *testing.T) {
	dir := t.TempDir()

	store := auth.NewFileTokenStore(dir, time.Minute, nil)
	store.SetAccessToken("memory-only")
	assert.Equal(t, "memory-only", store.AccessToken())

	// The state directory must stay empty
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// A fresh instance over the same directory sees no access token
	fresh := auth.NewFileTokenStore(dir, time.Minute, nil)
	assert.Empty(t, fresh.AccessToken())
}
