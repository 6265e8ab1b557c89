// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/taibuivan/kaiwa/internal/auth"
	"github.com/taibuivan/kaiwa/internal/platform/constants"
	"github.com/taibuivan/kaiwa/pkg/uuid"
)

// # Request Tracing

// requestID attaches a correlation ID to every request for log tracing.
func requestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			// 1. Keep the client's ID when it already sent one
			id := request.Header.Get(constants.HeaderRequestID)
			if id == "" {
				id = uuid.New()
			}

			// 2. Echo it back so the client can correlate its own logs
			writer.Header().Set(constants.HeaderRequestID, id)

			next.ServeHTTP(writer, request)
		})
	}
}

// # Activity Logging

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (recorder *statusRecorder) WriteHeader(code int) {
	recorder.status = code
	recorder.ResponseWriter.WriteHeader(code)
}

// requestLogger logs every request's status and latency at a level that
// tracks the response class.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			startTime := time.Now()
			wrappedWriter := &statusRecorder{ResponseWriter: writer, status: http.StatusOK}

			next.ServeHTTP(wrappedWriter, request)

			logLevel := slog.LevelInfo
			if wrappedWriter.status >= 500 {
				logLevel = slog.LevelError
			} else if wrappedWriter.status >= 400 {
				logLevel = slog.LevelWarn
			}

			logger.Log(request.Context(), logLevel, "http_request_finished",
				slog.String("method", request.Method),
				slog.String("path", request.URL.Path),
				slog.String("ip", realIP(request)),
				slog.Int("status", wrappedWriter.status),
				slog.Int64("latency_ms", time.Since(startTime).Milliseconds()),
			)
		})
	}
}

// # Rate Limiting

type rateLimitClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterSet holds the per-endpoint, per-IP token buckets.
type limiterSet struct {
	mu      sync.Mutex
	clients map[string]*rateLimitClient
}

func newLimiterSet() *limiterSet {
	return &limiterSet{clients: map[string]*rateLimitClient{}}
}

// allow checks one request against the bucket for the given key, creating
// the bucket on first sight.
func (set *limiterSet) allow(key string, perMinute int) bool {
	set.mu.Lock()
	defer set.mu.Unlock()

	clientInfo, found := set.clients[key]
	if !found {
		clientInfo = &rateLimitClient{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		}
		set.clients[key] = clientInfo
	}

	clientInfo.lastSeen = time.Now()
	return clientInfo.limiter.Allow()
}

// janitor drops buckets that have been idle past the TTL until the
// context is cancelled.
func (set *limiterSet) janitor(context context.Context) {
	ticker := time.NewTicker(constants.RateLimitCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			set.mu.Lock()
			for key, clientInfo := range set.clients {
				if time.Since(clientInfo.lastSeen) > constants.RateLimitClientTTL {
					delete(set.clients, key)
				}
			}
			set.mu.Unlock()
		case <-context.Done():
			return
		}
	}
}

// rateLimit enforces a per-IP budget on one endpoint, mirroring the
// production backend's per-route limits and its 429 detail phrasing.
func (server *Server) rateLimit(name string, perMinute int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			key := name + "|" + realIP(request)
			if !server.limiters.allow(key, perMinute) {
				writeDetail(writer, http.StatusTooManyRequests,
					fmt.Sprintf("Rate limit exceeded: %d per 1 minute", perMinute))
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// # Reliability & Safety

// panicRecovery recovers from handler panics, logs the stack, and returns
// a generic 500 so one bad request cannot take the sandbox down.
func panicRecovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			defer func() {
				if err := recover(); err != nil {
					stackTrace := make([]byte, 2048)
					length := runtime.Stack(stackTrace, false)

					logger.ErrorContext(request.Context(), "panic_recovered",
						slog.Any("error", err),
						slog.String("stack", string(stackTrace[:length])),
					)

					writeDetail(writer, http.StatusInternalServerError, "Internal server error")
				}
			}()

			next.ServeHTTP(writer, request)
		})
	}
}

// # Bearer Authentication

// accountContextKey carries the authenticated profile through the request
// context. Unexported so only this package can read or write it.
type accountContextKey struct{}

// requireAccount guards a route group behind bearer authentication.
//
// Every failure mode answers with the same credentials error and a
// WWW-Authenticate challenge, exactly like the production backend.
func (server *Server) requireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

		token, ok := bearerToken(request)
		if !ok {
			writeCredentialsFailure(writer)
			return
		}

		user, appErr := server.state.VerifyAccess(token)
		if appErr != nil {
			writeCredentialsFailure(writer)
			return
		}

		ctx := context.WithValue(request.Context(), accountContextKey{}, user)
		next.ServeHTTP(writer, request.WithContext(ctx))
	})
}

// accountFrom returns the authenticated profile injected by requireAccount.
func accountFrom(request *http.Request) *auth.User {
	user, _ := request.Context().Value(accountContextKey{}).(*auth.User)
	return user
}

// bearerToken extracts the credential from the Authorization header.
func bearerToken(request *http.Request) (string, bool) {
	header := request.Header.Get("Authorization")

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}

	return token, true
}

// writeCredentialsFailure answers a failed bearer check.
func writeCredentialsFailure(writer http.ResponseWriter) {
	writer.Header().Set("WWW-Authenticate", "Bearer")
	writeDetail(writer, http.StatusUnauthorized, "Could not validate credentials")
}

// # Middleware Helpers

// realIP extracts the client IP, respecting common proxy headers.
func realIP(request *http.Request) string {
	if ip := request.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}

	if forwarded := request.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}

	host, _, err := net.SplitHostPort(request.RemoteAddr)
	if err != nil {
		return request.RemoteAddr
	}
	return host
}
