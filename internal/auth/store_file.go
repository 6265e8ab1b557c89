// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileTokenStore implements TokenStore with a persisted refresh tier.
//
// # Tiers
//
// The access token stays in process memory (a restart re-mints it through
// the refresh protocol), while the refresh token is written to an
// owner-only file in the state directory so the session survives restarts.
type FileTokenStore struct {
	volatile *MemoryTokenStore
	path     string
	log      *slog.Logger
}

// NewFileTokenStore creates a TokenStore whose refresh tier lives in
// dir/refresh_token. A non-positive accessTTL falls back to [AccessTokenTTL].
func NewFileTokenStore(dir string, accessTTL time.Duration, log *slog.Logger) *FileTokenStore {
	if log == nil {
		log = slog.Default()
	}

	return &FileTokenStore{
		volatile: NewMemoryTokenStore(accessTTL),
		path:     filepath.Join(dir, RefreshTokenFile),
		log:      log,
	}
}

/*
AccessToken returns the current access token from the volatile tier.

Returns:
  - string: Bearer credential, empty when absent
*/
func (store *FileTokenStore) AccessToken() string {
	return store.volatile.AccessToken()
}

/*
SetAccessToken stores a new access token in the volatile tier and arms the
self-clear timer.

Parameters:
  - token: string
*/
func (store *FileTokenStore) SetAccessToken(token string) {
	store.volatile.SetAccessToken(token)
}

/*
ClearAccessToken removes only the access token.
*/
func (store *FileTokenStore) ClearAccessToken() {
	store.volatile.ClearAccessToken()
}

/*
RefreshToken reads the refresh token from the durable tier.

Description: The file is read on every call so concurrent processes sharing
the state directory observe rotations immediately.

Returns:
  - string: Opaque credential, empty when absent
*/
func (store *FileTokenStore) RefreshToken() string {
	data, err := os.ReadFile(store.path)
	if err != nil {
		if !os.IsNotExist(err) {
			store.log.Warn("refresh_token_read_failed", slog.Any("error", err))
		}
		return ""
	}

	return strings.TrimSpace(string(data))
}

/*
SetRefreshToken writes the refresh token to the durable tier.

Description: Persistence failures degrade the session to this process's
lifetime instead of failing the operation; the next start simply requires a
fresh login.

Parameters:
  - token: string
*/
func (store *FileTokenStore) SetRefreshToken(token string) {
	if token == "" {
		store.removeRefreshFile()
		return
	}

	if err := os.WriteFile(store.path, []byte(token), RefreshTokenFileMode); err != nil {
		store.log.Warn("refresh_token_persist_failed", slog.Any("error", err))
	}
}

/*
ClearTokens removes both tokens.
*/
func (store *FileTokenStore) ClearTokens() {
	store.volatile.ClearTokens()
	store.removeRefreshFile()
}

/*
IsTokenExpired reports whether the token's expiry claim is in the past.
Any decode failure counts as expired (fail-closed).

Parameters:
  - token: string

Returns:
  - bool: true when expired or undecodable
*/
func (store *FileTokenStore) IsTokenExpired(token string) bool {
	return store.volatile.IsTokenExpired(token)
}

// removeRefreshFile deletes the durable tier file if present.
func (store *FileTokenStore) removeRefreshFile() {
	if err := os.Remove(store.path); err != nil && !os.IsNotExist(err) {
		store.log.Warn("refresh_token_clear_failed", slog.Any("error", err))
	}
}
