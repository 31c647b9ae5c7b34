// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/kraklabs/idfind/internal/config"
	"github.com/kraklabs/idfind/internal/errors"
	"github.com/kraklabs/idfind/internal/server"
	"github.com/kraklabs/idfind/internal/ui"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// runServer loads the runtime config (if --config was given), binds the
// listen address, and runs the Multiplexer until interrupted.
func runServer(globals GlobalFlags) {
	cfg := config.Default()
	if globals.Config != "" {
		loaded, err := config.Load(globals.Config)
		if err != nil {
			errors.FatalError(errors.NewConfigError(
				"Cannot load idfind.yaml",
				err.Error(),
				"Check the path passed to --config, or omit it to run with defaults",
				err,
			), globals.JSON)
		}
		cfg = loaded
	}

	logLevel := parseLogLevel(cfg.LogLevel)
	if globals.Debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	ui.InitColors(globals.NoColor)

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
			logger.Info("metrics.http.start", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics.http.error", "err", err)
			}
		}()
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		errors.FatalError(errors.NewNetworkError(
			"Cannot bind search server",
			err.Error(),
			"Check that the configured listen_addr is free and not already bound",
			err,
		), globals.JSON)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutdown.signal", "signal", sig.String())
		cancel()
	}()

	if !globals.Quiet {
		ui.Successf("idfind server listening on %s", cfg.ListenAddr)
	}

	m := server.New(logger)
	if err := m.Serve(ctx, ln); err != nil && ctx.Err() == nil {
		errors.FatalError(errors.NewNetworkError(
			"Search server stopped unexpectedly",
			err.Error(),
			"Check the logs above for the underlying accept error",
			err,
		), globals.JSON)
	}
}

func parseLogLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
