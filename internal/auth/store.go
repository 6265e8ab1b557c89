// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

// # Token Data Access

// TokenStore defines the storage contract for the credential pair.
//
// # Tiers
//
// The access token lives in the volatile tier: it is short-lived, cheap to
// re-mint, and must never outlive the process. The refresh token lives in
// the durable tier so a session survives process restarts. Implementations
// must be safe for concurrent use; the transport and the session controller
// share one store.
//
// # Ownership
//
// The store is the only holder of credential material. Collaborators read
// and write through this interface and never keep private copies beyond a
// single call.
type TokenStore interface {

	/*
		AccessToken returns the current access token.

		Returns:
		  - string: Bearer credential, empty when absent
	*/
	AccessToken() string

	/*
		SetAccessToken stores a new access token for all subsequent requests
		and arms the deferred self-clear timer. A previously armed timer is
		cancelled first so a superseded token can never clear its successor.

		Parameters:
		  - token: string
	*/
	SetAccessToken(token string)

	/*
		ClearAccessToken removes only the access token. The session may still
		be salvageable through the refresh tier.
	*/
	ClearAccessToken()

	/*
		RefreshToken returns the current refresh token from the durable tier.

		Returns:
		  - string: Opaque credential, empty when absent
	*/
	RefreshToken() string

	/*
		SetRefreshToken stores a new refresh token in the durable tier,
		superseding the previous one.

		Parameters:
		  - token: string
	*/
	SetRefreshToken(token string)

	/*
		ClearTokens removes both tokens. Called on logout and on
		unrecoverable refresh failure.
	*/
	ClearTokens()

	/*
		IsTokenExpired reports whether the given token's self-describing
		expiry claim is in the past. Any decode failure counts as expired.

		Parameters:
		  - token: string

		Returns:
		  - bool: true when expired or undecodable
	*/
	IsTokenExpired(token string) bool
}
