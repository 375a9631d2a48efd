// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/kraklabs/autodebug/internal/config"
	"github.com/kraklabs/autodebug/internal/errors"
	"github.com/kraklabs/autodebug/internal/httpapi"
	"github.com/kraklabs/autodebug/internal/investigate"
	"github.com/kraklabs/autodebug/pkg/llm"
)

func runServe(logger *slog.Logger, projectRoot string, port int) {
	cfg, err := config.Load(logger, projectRoot)
	if err != nil {
		errors.FatalError(errors.NewWriteFailed("failed to load configuration", projectRoot, "check .autodebug/config.yaml", err), false)
	}

	client, err := llm.NewClient(cfg.GeminiAPIKeys, cfg.Models)
	if err != nil {
		errors.FatalError(errors.NewUpstreamExhausted("no usable LLM credentials", err.Error(),
			"set GEMINI_API_KEY and retry", err), false)
	}

	server := &httpapi.Server{
		Pipeline:    &investigate.Pipeline{Client: client},
		Config:      cfg,
		Version:     version,
		ProjectRoot: projectRoot,
		Logger:      logger,
	}

	addr := fmt.Sprintf(":%d", port)
	httpServer := &http.Server{Addr: addr, Handler: server.Routes()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	logger.Info("http.listen", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		errors.FatalError(errors.NewWriteFailed("HTTP server failed", addr, "check the port is not already in use", err), false)
	}
}
