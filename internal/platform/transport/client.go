// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package transport performs authenticated HTTP calls against the Kaiwa backend
and transparently recovers from access-token expiry exactly once per logical
request.

Architecture:

  - Request descriptors: Calls are described as values and materialized per
    attempt, so a request can be replayed after a token refresh.
  - Interceptor chain: Bearer injection on the way out; on the way back a 401
    triggers the refresh protocol, 423/429 surface verbatim, and everything
    else maps onto the [apperr] taxonomy.
  - Single flight: Concurrent 401s share one in-flight refresh. The backend
    rotates the refresh token on every use, so N racing refreshes would
    invalidate each other and destroy the session.

The refresh call itself goes through a bare send path that bypasses the
interceptor, preventing recursive interception.
*/
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/taibuivan/kaiwa/internal/platform/apperr"
	"github.com/taibuivan/kaiwa/internal/platform/constants"
	"github.com/taibuivan/kaiwa/internal/platform/sec"
	"github.com/taibuivan/kaiwa/pkg/uuid"
)

// refreshPath is the backend endpoint that rotates the token pair.
const refreshPath = "/api/auth/refresh"

// # Contracts & Types

// TokenSource is the slice of the token store the transport depends on.
//
// It is satisfied by the auth package's stores; the transport never learns
// where the tokens actually live.
type TokenSource interface {
	AccessToken() string
	SetAccessToken(token string)
	RefreshToken() string
	SetRefreshToken(token string)
	ClearTokens()
}

// tokenPairResponse is the success body of the login and refresh endpoints.
type tokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// Client is the authenticated HTTP client for the Kaiwa backend.
//
// # Concurrency
//
// Client is safe for concurrent use. All mutable session state lives in the
// injected [TokenSource]; the client itself only coordinates the shared
// refresh flight and the session-expired notification.
type Client struct {
	baseURL    string
	timeout    time.Duration
	tokens     TokenSource
	httpClient *http.Client
	log        *slog.Logger

	// refreshGroup coalesces concurrent refresh attempts into one flight.
	refreshGroup singleflight.Group

	mu               sync.RWMutex
	onSessionExpired func()
}

// NewClient constructs a transport client for the given backend.
//
// A non-positive timeout falls back to [constants.DefaultHTTPTimeout].
func NewClient(baseURL string, timeout time.Duration, tokens TokenSource, log *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		baseURL:    baseURL,
		timeout:    timeout,
		tokens:     tokens,
		httpClient: &http.Client{},
		log:        log,
	}
}

// SetSessionExpiredHandler registers the hook fired when the refresh
// protocol gives up. The handler is responsible for checking whether the
// session is already torn down, so repeated notifications cannot loop.
func (client *Client) SetSessionExpiredHandler(handler func()) {
	client.mu.Lock()
	defer client.mu.Unlock()
	client.onSessionExpired = handler
}

// # Request Execution

/*
Do executes a request descriptor with bearer injection and the
refresh-and-retry protocol.

Description: On success the response body is decoded into request.Out. A 401
on a not-yet-retried request triggers exactly one coalesced refresh followed
by exactly one replay. A 401 on a call that carried no credentials and has
no session behind it (a wrong login password, most commonly) surfaces
verbatim. 423 and 429 surface verbatim without touching the tokens. Network
failures and timeouts map to UNAVAILABLE and never trigger a refresh.

Parameters:
  - context: context.Context
  - request: Request

Returns:
  - error: nil on success, *apperr.AppError otherwise
*/
func (client *Client) Do(context context.Context, request Request) error {

	hadBearer := client.tokens.AccessToken() != ""

	status, body, err := client.send(context, request, true)
	if err != nil {
		return err
	}

	if isSuccess(status) {
		return decodeInto(request.Out, body)
	}

	failure := decodeFailure(status, body)

	// Account-state failures indicate the request itself is the problem,
	// not token freshness. Never refresh for these.
	if status == http.StatusLocked || status == http.StatusTooManyRequests {
		return failure
	}

	if status != http.StatusUnauthorized {
		return failure
	}

	// A 401 on a call that carried no bearer, with no stored session to
	// recover, is an ordinary rejection. Wrong login credentials land here.
	if !hadBearer && client.tokens.RefreshToken() == "" {
		return failure
	}

	// A missing or locally-expired refresh token makes the 401 unrecoverable
	// without issuing any refresh call.
	if !client.refreshable() {
		return client.expireSession(failure)
	}

	if err := client.Refresh(context); err != nil {
		return client.expireSession(err)
	}

	// Replay the original descriptor exactly once with the fresh token.
	// A second 401 falls through to the caller unchanged.
	status, body, err = client.send(context, request, true)
	if err != nil {
		return err
	}

	if isSuccess(status) {
		return decodeInto(request.Out, body)
	}

	return decodeFailure(status, body)
}

// # Refresh Protocol

/*
Refresh rotates the token pair through the backend's refresh endpoint.

Description: Concurrent callers are coalesced into a single flight; every
waiter observes the same outcome. The session controller also calls this
directly for the silent bootstrap refresh.

Parameters:
  - context: context.Context

Returns:
  - error: nil when the pair was rotated and stored
*/
func (client *Client) Refresh(context context.Context) error {
	_, err, _ := client.refreshGroup.Do("refresh", func() (any, error) {
		return nil, client.refreshOnce(context)
	})
	return err
}

// refreshOnce performs the actual refresh call. Only one invocation runs at
// a time; waiters share its outcome through the flight group.
func (client *Client) refreshOnce(parent context.Context) error {

	// The flight outlives the caller that started it: joined waiters must
	// not lose the refresh when the first caller cancels.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), client.timeout)
	defer cancel()

	// Re-read inside the flight; a parallel login may have replaced the pair.
	refreshToken := client.tokens.RefreshToken()
	if refreshToken == "" {
		return apperr.Unauthenticated("No refresh token available")
	}

	request := Request{
		Method: http.MethodPost,
		Path:   refreshPath,
		Body:   map[string]string{"refresh_token": refreshToken},
	}

	// Bare send: the refresh call must not pass through the interceptor.
	status, body, err := client.send(ctx, request, false)
	if err != nil {
		return err
	}

	if !isSuccess(status) {
		return decodeFailure(status, body)
	}

	pair := tokenPairResponse{}
	if err := decodeInto(&pair, body); err != nil {
		return err
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return fmt.Errorf("transport_refresh_incomplete_pair")
	}

	// Rotation: the old refresh token is dead the moment this response
	// arrives, so both tokens are stored before anyone is released.
	client.tokens.SetAccessToken(pair.AccessToken)
	client.tokens.SetRefreshToken(pair.RefreshToken)

	client.log.Debug("token_refresh_succeeded")
	return nil
}

// refreshable reports whether a refresh attempt is worth making.
//
// An absent token is unrecoverable. A token with a decodable expiry claim in
// the past is unrecoverable. Opaque tokens are not condemned locally; the
// backend arbitrates them.
func (client *Client) refreshable() bool {
	refreshToken := client.tokens.RefreshToken()
	if refreshToken == "" {
		return false
	}

	if expiresAt, err := sec.Expiry(refreshToken); err == nil && !expiresAt.After(time.Now()) {
		return false
	}

	return true
}

// expireSession is the unrecoverable path: clear all tokens, notify the
// session-expired hook, and fail the originating call.
func (client *Client) expireSession(cause error) error {
	client.tokens.ClearTokens()

	client.mu.RLock()
	handler := client.onSessionExpired
	client.mu.RUnlock()

	if handler != nil {
		handler()
	}

	client.log.Debug("session_expired", slog.Any("error", cause))

	failure := apperr.Unauthenticated(constants.MsgSessionExpired)
	failure.Cause = cause
	return failure
}

// # Wire Plumbing

// send materializes the descriptor into a fresh HTTP request and executes
// it under the per-call deadline. withAuth controls bearer injection.
func (client *Client) send(parent context.Context, request Request, withAuth bool) (int, []byte, error) {

	ctx, cancel := context.WithTimeout(parent, client.timeout)
	defer cancel()

	var bodyReader io.Reader
	if request.Body != nil {
		payload, err := json.Marshal(request.Body)
		if err != nil {
			return 0, nil, fmt.Errorf("transport_marshal_failed: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, request.Method, client.baseURL+request.Path, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("transport_build_request_failed: %w", err)
	}

	if len(request.Query) > 0 {
		httpRequest.URL.RawQuery = request.Query.Encode()
	}

	httpRequest.Header.Set("Accept", "application/json")
	httpRequest.Header.Set("User-Agent", constants.UserAgent)
	httpRequest.Header.Set(constants.HeaderRequestID, uuid.New())
	if request.Body != nil {
		httpRequest.Header.Set("Content-Type", "application/json")
	}

	// Absence of a token is not an error; some endpoints are public.
	if withAuth {
		if accessToken := client.tokens.AccessToken(); accessToken != "" {
			httpRequest.Header.Set("Authorization", "Bearer "+accessToken)
		}
	}

	response, err := client.httpClient.Do(httpRequest)
	if err != nil {
		client.log.Debug("request_transport_failed",
			slog.String("method", request.Method),
			slog.String("path", request.Path),
			slog.Any("error", err),
		)
		return 0, nil, apperr.Unavailable(err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return 0, nil, apperr.Unavailable(err)
	}

	return response.StatusCode, body, nil
}

// isSuccess reports whether the status is in the 2xx range.
func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
