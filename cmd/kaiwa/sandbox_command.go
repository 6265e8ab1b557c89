// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/urfave/cli/v2"

	"github.com/taibuivan/kaiwa/internal/platform/config"
	"github.com/taibuivan/kaiwa/internal/platform/constants"
	"github.com/taibuivan/kaiwa/internal/sandbox"
)

/*
sandboxCommand runs the local development backend until interrupted.

Description: Boots the in-memory API server so the client can be exercised
without a real deployment. The process blocks until SIGINT or SIGTERM, then
drains in-flight requests before exiting.

Parameters:
  - c: *cli.Context

Returns:
  - error: When the listener or the shutdown fails
*/
func sandboxCommand(c *cli.Context) error {
	if c.Args().Len() != 0 {
		return errors.New("sandbox takes no arguments; use --port")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if port := c.String(flagPort); port != "" {
		cfg.SandboxPort = port
	}

	log := newLogger(cfg)
	server := sandbox.NewServer(c.Context, cfg, log)

	styleHeading.Printf("Kaiwa sandbox listening on :%s\n", cfg.SandboxPort)
	styleFaint.Printf("Point the client at it with KAIWA_API_BASE_URL=http://localhost:%s\n", cfg.SandboxPort)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until the signal context is cancelled or the listener dies.
	select {
	case <-c.Context.Done():
		log.Info("shutdown_signal_received")
	case err := <-serverErr:
		return fmt.Errorf("sandbox server: %w", err)
	}

	if err := server.Shutdown(constants.ShutdownTimeout); err != nil {
		return fmt.Errorf("sandbox shutdown: %w", err)
	}

	styleFaint.Println("Sandbox stopped.")
	return nil
}
