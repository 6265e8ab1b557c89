// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"sync"
	"time"

	"github.com/taibuivan/kaiwa/internal/platform/sec"
)

// MemoryTokenStore implements TokenStore with both tiers held in memory.
//
// It is the store used in tests and by components that must not touch the
// filesystem. [FileTokenStore] reuses it as the volatile tier engine.
type MemoryTokenStore struct {
	mu         sync.RWMutex
	access     string
	refresh    string
	accessTTL  time.Duration
	clearTimer *time.Timer

	// generation increments on every access-slot mutation. A fired timer
	// callback may already be waiting on the lock when a newer token
	// arrives; the generation check turns such a straggler into a no-op.
	generation uint64
}

// NewMemoryTokenStore creates an in-memory TokenStore.
//
// A non-positive accessTTL falls back to [AccessTokenTTL].
func NewMemoryTokenStore(accessTTL time.Duration) *MemoryTokenStore {
	if accessTTL <= 0 {
		accessTTL = AccessTokenTTL
	}
	return &MemoryTokenStore{accessTTL: accessTTL}
}

/*
AccessToken returns the current access token.

Returns:
  - string: Bearer credential, empty when absent
*/
func (store *MemoryTokenStore) AccessToken() string {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return store.access
}

/*
SetAccessToken stores a new access token and arms the self-clear timer.

Description: The previous timer is cancelled before the new one is armed, so
a superseded token's timer can never clear its successor.

Parameters:
  - token: string
*/
func (store *MemoryTokenStore) SetAccessToken(token string) {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.disarmLocked()
	store.access = token
	store.generation++

	// Empty token means "cleared"; nothing to bound
	if token == "" {
		return
	}

	armedFor := store.generation
	store.clearTimer = time.AfterFunc(store.accessTTL, func() {
		store.expireAccess(armedFor)
	})
}

/*
ClearAccessToken removes only the access token and disarms its timer.
*/
func (store *MemoryTokenStore) ClearAccessToken() {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.disarmLocked()
	store.access = ""
	store.generation++
}

/*
RefreshToken returns the current refresh token.

Returns:
  - string: Opaque credential, empty when absent
*/
func (store *MemoryTokenStore) RefreshToken() string {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return store.refresh
}

/*
SetRefreshToken stores a new refresh token, superseding the previous one.

Parameters:
  - token: string
*/
func (store *MemoryTokenStore) SetRefreshToken(token string) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.refresh = token
}

/*
ClearTokens removes both tokens and disarms the self-clear timer.
*/
func (store *MemoryTokenStore) ClearTokens() {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.disarmLocked()
	store.access = ""
	store.refresh = ""
	store.generation++
}

/*
IsTokenExpired reports whether the token's expiry claim is in the past.
Any decode failure counts as expired (fail-closed).

Parameters:
  - token: string

Returns:
  - bool: true when expired or undecodable
*/
func (store *MemoryTokenStore) IsTokenExpired(token string) bool {
	return sec.IsExpired(token)
}

// expireAccess is the timer callback. It clears the access slot only when
// no mutation superseded the arming set.
func (store *MemoryTokenStore) expireAccess(armedFor uint64) {
	store.mu.Lock()
	defer store.mu.Unlock()

	if store.generation != armedFor {
		return
	}

	store.access = ""
	store.clearTimer = nil
	store.generation++
}

// disarmLocked stops a pending self-clear timer. Callers must hold mu.
func (store *MemoryTokenStore) disarmLocked() {
	if store.clearTimer != nil {
		store.clearTimer.Stop()
		store.clearTimer = nil
	}
}
