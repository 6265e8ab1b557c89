// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"net/http"
	"net/url"

	"github.com/taibuivan/kaiwa/internal/platform/transport"
)

// # Endpoint Map

const (
	registerPath       = "/api/auth/register"
	loginPath          = "/api/auth/login"
	logoutPath         = "/api/auth/logout"
	mePath             = "/api/auth/me"
	forgotPasswordPath = "/api/auth/forgot-password"
	resetPasswordPath  = "/api/auth/reset-password"
	verifyEmailPath    = "/api/auth/verify-email"
)

// # Wire Types

// TokenPair is the credential material minted by login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// RegisterInput holds the data required to enroll a new account.
type RegisterInput struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	TermsAccepted   bool   `json:"terms_accepted"`
}

// # Backend Surface

// API is the typed surface over the backend's /api/auth endpoints.
//
// It performs no session bookkeeping of its own; storing tokens and
// transitioning state is the [Controller]'s job.
type API struct {
	client *transport.Client
}

// NewAPI constructs the auth endpoint surface on top of the transport client.
func NewAPI(client *transport.Client) *API {
	return &API{client: client}
}

/*
Register creates a new account.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - *User: Created profile
  - error: Conflict, validation, or transport failures
*/
func (api *API) Register(context context.Context, input RegisterInput) (*User, error) {
	user := &User{}

	err := api.client.Do(context, transport.Request{
		Method: http.MethodPost,
		Path:   registerPath,
		Body:   input,
		Out:    user,
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

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
func (api *API) Login(context context.Context, email, password string) (*TokenPair, error) {
	pair := &TokenPair{}

	err := api.client.Do(context, transport.Request{
		Method: http.MethodPost,
		Path:   loginPath,
		Body:   map[string]string{FieldEmail: email, FieldPassword: password},
		Out:    pair,
	})
	if err != nil {
		return nil, err
	}

	return pair, nil
}

/*
Me fetches the authenticated profile.

Description: Requires a bearer token; a stale one is recovered by the
transport's refresh protocol invisibly to this call.

Parameters:
  - context: context.Context

Returns:
  - *User: Current profile
  - error: Unauthenticated or transport failures
*/
func (api *API) Me(context context.Context) (*User, error) {
	user := &User{}

	err := api.client.Do(context, transport.Request{
		Method: http.MethodGet,
		Path:   mePath,
		Out:    user,
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

/*
Logout invalidates a refresh token on the backend.

Parameters:
  - context: context.Context
  - refreshToken: string

Returns:
  - error: Transport failures; the caller clears local state regardless
*/
func (api *API) Logout(context context.Context, refreshToken string) error {
	return api.client.Do(context, transport.Request{
		Method: http.MethodPost,
		Path:   logoutPath,
		Body:   map[string]string{"refresh_token": refreshToken},
	})
}

/*
Refresh rotates the token pair through the transport's coalesced flight.

Parameters:
  - context: context.Context

Returns:
  - error: nil when a fresh pair was stored
*/
func (api *API) Refresh(context context.Context) error {
	return api.client.Refresh(context)
}

// # Account Recovery

/*
ForgotPassword requests a password-reset token for the email.

Description: The backend answers success regardless of whether the account
exists, so this call cannot be used for enumeration.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - error: Rate-limit or transport failures
*/
func (api *API) ForgotPassword(context context.Context, email string) error {
	return api.client.Do(context, transport.Request{
		Method: http.MethodPost,
		Path:   forgotPasswordPath,
		Body:   map[string]string{FieldEmail: email},
	})
}

/*
ResetPassword completes the forgot-password flow with a reset token.

Parameters:
  - context: context.Context
  - token: string
  - newPassword: string

Returns:
  - error: Validation or transport failures
*/
func (api *API) ResetPassword(context context.Context, token, newPassword string) error {
	return api.client.Do(context, transport.Request{
		Method: http.MethodPost,
		Path:   resetPasswordPath,
		Body:   map[string]string{FieldToken: token, FieldNewPassword: newPassword},
	})
}

/*
VerifyEmail confirms an account's email address.

Description: The token travels as a query parameter, matching the backend's
contract for this one endpoint.

Parameters:
  - context: context.Context
  - token: string

Returns:
  - error: Validation or transport failures
*/
func (api *API) VerifyEmail(context context.Context, token string) error {
	return api.client.Do(context, transport.Request{
		Method: http.MethodPost,
		Path:   verifyEmailPath,
		Query:  url.Values{FieldToken: []string{token}},
	})
}
