// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package sandbox runs an in-process stand-in for the production Kaiwa backend.

It serves the /api/auth and /api/chats surface the client is written
against, with the same routes, status codes, detail envelopes, rate limits,
and token rotation, backed entirely by process memory. `kaiwa sandbox`
starts it so the client can be exercised end to end with nothing else
installed.

Architecture:

  - State: One mutex-guarded world holding accounts, tokens, and chats.
  - Handlers: Thin HTTP adapters that validate input and call [State].
  - Middleware: Request tracing, structured logging, per-endpoint rate
    limiting, panic recovery, and bearer authentication.

Only this package and cmd/kaiwa import net/http server primitives.
*/
package sandbox

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/taibuivan/kaiwa/internal/platform/config"
	"github.com/taibuivan/kaiwa/internal/platform/constants"
)

// # Server Definitions

// Server wraps the chi router, the in-memory [State], and the [http.Server].
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	state      *State
	limiters   *limiterSet
	log        *slog.Logger
}

// # Server Initialization

// NewServer constructs the sandbox with the full middleware chain and all
// routes registered. The context bounds the rate limiter janitor.
func NewServer(context context.Context, cfg *config.Config, log *slog.Logger) *Server {
	server := &Server{
		state:    NewState(cfg.SandboxSecret),
		limiters: newLimiterSet(),
		log:      log,
	}
	go server.limiters.janitor(context)

	router := chi.NewRouter()

	// # Middleware Chain
	// Global middleware applied in order of execution.
	router.Use(requestID())
	router.Use(requestLogger(log))
	router.Use(chimw.Timeout(constants.GlobalRequestTimeout))
	router.Use(panicRecovery(log))
	router.Use(chimw.CleanPath)

	// # Infrastructure Endpoints
	router.Get("/health", server.health)

	// # Authentication API
	// Per-endpoint budgets match the production backend's limits.
	router.Route("/api/auth", func(api chi.Router) {
		api.With(server.rateLimit("register", constants.RateLimitRegister)).Post("/register", server.register)
		api.With(server.rateLimit("login", constants.RateLimitLogin)).Post("/login", server.login)
		api.With(server.rateLimit("refresh", constants.RateLimitRefresh)).Post("/refresh", server.refresh)
		api.With(server.rateLimit("forgot", constants.RateLimitForgot)).Post("/forgot-password", server.forgotPassword)
		api.With(server.rateLimit("reset", constants.RateLimitReset)).Post("/reset-password", server.resetPassword)
		api.Post("/logout", server.logout)
		api.Post("/verify-email", server.verifyEmail)

		api.Group(func(protected chi.Router) {
			protected.Use(server.requireAccount)
			protected.Get("/me", server.me)
		})
	})

	// # Conversation API
	router.Route("/api/chats", func(api chi.Router) {
		api.Use(server.requireAccount)

		api.Post("/", server.createChat)
		api.Get("/", server.listChats)

		api.Post("/settings", server.createSettings)
		api.Get("/settings/{mode}", server.getSettings)
		api.Put("/settings/{mode}", server.updateSettings)

		api.Get("/{chatID}", server.getChat)
		api.Put("/{chatID}", server.updateChat)
		api.Delete("/{chatID}", server.deleteChat)
		api.Post("/{chatID}/messages", server.createMessage)
		api.Get("/{chatID}/messages", server.listMessages)
	})

	server.router = router
	server.httpServer = &http.Server{
		Addr:              ":" + cfg.SandboxPort,
		Handler:           router,
		ReadTimeout:       constants.DefaultReadTimeout,
		WriteTimeout:      constants.DefaultWriteTimeout,
		IdleTimeout:       constants.DefaultIdleTimeout,
		ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
	}

	return server
}

// # Server Lifecycle

// ListenAndServe starts the sandbox HTTP server.
//
// It blocks until the server is closed or an error occurs.
func (server *Server) ListenAndServe() error {
	server.log.Info("sandbox_starting", slog.String("addr", server.httpServer.Addr))
	return server.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (server *Server) Shutdown(timeout time.Duration) error {
	context, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return server.httpServer.Shutdown(context)
}

// Handler exposes the router so tests can mount the sandbox on an
// in-process listener.
func (server *Server) Handler() http.Handler {
	return server.router
}

// State exposes the in-memory world for seeding and inspection.
func (server *Server) State() *State {
	return server.state
}

// health reports liveness. The store is process memory, so reaching the
// handler at all means everything is healthy.
func (server *Server) health(writer http.ResponseWriter, request *http.Request) {
	writeJSON(writer, http.StatusOK, map[string]any{
		"status":    "healthy",
		"version":   constants.AppVersion,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
