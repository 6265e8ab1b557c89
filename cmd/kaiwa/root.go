// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/taibuivan/kaiwa/internal/auth"
	"github.com/taibuivan/kaiwa/internal/chat"
	"github.com/taibuivan/kaiwa/internal/platform/config"
	"github.com/taibuivan/kaiwa/internal/platform/prefs"
	"github.com/taibuivan/kaiwa/internal/platform/transport"
)

// deps is the assembled client stack for one command invocation.
//
// # Wiring
//
// Every command builds the same stack: config, state directory, two-tier
// token store, transport with the refresh protocol, typed API surfaces, and
// the session controller as the single authority on "is there a session".
type deps struct {
	cfg        *config.Config
	log        *slog.Logger
	store      *auth.FileTokenStore
	client     *transport.Client
	api        *auth.API
	controller *auth.Controller
	chats      *chat.Service
	prefs      *prefs.Store
	responder  *chat.Responder
}

// newDeps loads configuration and wires the full client stack.
func newDeps() (*deps, error) {

	// ── 1. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	stateDir, err := cfg.StateDir()
	if err != nil {
		return nil, err
	}

	// ── 2. Logger ─────────────────────────────────────────────────────────
	// Diagnostics go to stderr so command output stays pipeable.
	log := newLogger(cfg)

	// ── 3. Token store and transport ──────────────────────────────────────
	store := auth.NewFileTokenStore(stateDir, 0, log)
	client := transport.NewClient(cfg.APIBaseURL, cfg.HTTPTimeout, store, log)

	// ── 4. Domain surfaces ────────────────────────────────────────────────
	api := auth.NewAPI(client)
	controller := auth.NewController(api, store, log)
	client.SetSessionExpiredHandler(controller.HandleSessionExpired)

	return &deps{
		cfg:        cfg,
		log:        log,
		store:      store,
		client:     client,
		api:        api,
		controller: controller,
		chats:      chat.NewService(client),
		prefs:      prefs.NewStore(stateDir, log),
		responder:  chat.NewResponder(),
	}, nil
}

// newLogger builds the stderr diagnostics logger from configuration.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelWarn

	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	}
	if cfg.Debug {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With(slog.String("app", "kaiwa"))
}

/*
requireSession bootstraps the session from stored credentials and fails the
command when no usable session results.

Description: A persisted refresh token silently becomes a full session here;
a dead or absent one produces the login hint. Commands call this before any
authenticated endpoint.

Parameters:
  - ctx: context.Context

Returns:
  - *auth.User: The authenticated profile
  - error: When no session could be established
*/
func (d *deps) requireSession(ctx context.Context) (*auth.User, error) {
	d.controller.InitializeAuth(ctx)

	snapshot := d.controller.Snapshot()
	if !snapshot.IsAuthenticated {
		return nil, fmt.Errorf("you are not logged in; run 'kaiwa login' first")
	}

	return snapshot.User, nil
}

// activeMode resolves the assistant mode for a command: the --mode flag if
// given, otherwise the persisted preference.
func (d *deps) activeMode(flagValue string) (chat.Mode, error) {
	raw := flagValue
	if raw == "" {
		raw = d.prefs.Load().ActiveMode
	}

	mode := chat.Mode(raw)
	if !mode.IsValid() {
		return "", fmt.Errorf("unknown assistant mode %q (valid: %s)", raw, modeList())
	}

	return mode, nil
}
