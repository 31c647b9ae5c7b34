// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/kraklabs/idfind/internal/errors"
	"github.com/kraklabs/idfind/internal/index"
	"github.com/kraklabs/idfind/internal/indexer"
	"github.com/kraklabs/idfind/internal/metrics"
	"github.com/kraklabs/idfind/internal/output"
	"github.com/kraklabs/idfind/internal/ui"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schollz/progressbar/v3"
)

// indexResult is the JSON shape printed by --json for index mode.
type indexResult struct {
	ProjectRoot     string  `json:"project_root"`
	FilesEnumerated int     `json:"files_enumerated"`
	FilesIndexed    int     `json:"files_indexed"`
	ElapsedSeconds  float64 `json:"elapsed_seconds"`
	DatabasePath    string  `json:"database_path"`
}

// runIndex walks dir, builds a trigram index, and saves it as sdb.json in
// the current working directory.
func runIndex(dir, includeExt string, globals GlobalFlags, metricsAddr string) {
	logLevel := slog.LevelInfo
	if globals.Debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	ui.InitColors(globals.NoColor)

	absDir, err := filepath.Abs(dir)
	if err != nil {
		errors.FatalError(errors.NewInputError(
			"Cannot resolve project directory",
			err.Error(),
			"Pass a valid directory path to --project/-p",
		), globals.JSON)
	}
	info, statErr := os.Stat(absDir)
	if statErr != nil {
		errors.FatalError(errors.FromFileError("Cannot read project directory", absDir, statErr), globals.JSON)
	}
	if !info.IsDir() {
		errors.FatalError(errors.NewInputError(
			"Project path is not a directory",
			fmt.Sprintf("%s is a file, not a directory", absDir),
			"Pass a directory to --project/-p",
		), globals.JSON)
	}

	if metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			srv := &http.Server{Addr: metricsAddr, Handler: mux}
			logger.Info("metrics.http.start", "addr", metricsAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics.http.error", "err", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutdown.signal", "signal", sig.String())
		cancel()
	}()

	if !globals.Quiet && !globals.JSON {
		ui.Header("Indexing " + absDir)
	}

	progCfg := NewProgressConfig(globals)
	var bar *progressbar.ProgressBar
	opts := indexer.Options{
		IncludeExt: splitExt(includeExt),
		Progress: func(done, total int) {
			if bar == nil && total > 0 {
				bar = NewProgressBar(progCfg, int64(total), "Indexing")
			}
			if bar != nil {
				_ = bar.Set(done)
			}
		},
	}

	idx, stats, err := indexer.Build(ctx, absDir, opts)
	if bar != nil {
		_ = bar.Finish()
	}
	metrics.RecordIndexedFiles("indexed", stats.FilesIndexed)
	metrics.RecordIndexedFiles("skipped", stats.FilesEnumerated-stats.FilesIndexed)
	if err != nil && ctx.Err() != nil {
		errors.FatalError(errors.NewInternalError(
			"Indexing cancelled",
			"build was interrupted before completion",
			"A cancelled build is never saved; re-run idfind -m index to start over",
			err,
		), globals.JSON)
	}
	metrics.RecordIndexDuration(stats.Elapsed.Seconds())

	dbPath := filepath.Join(".", "sdb.json")
	if err := index.Save(idx, dbPath); err != nil {
		errors.FatalError(errors.NewDatabaseError(
			"Cannot write index database",
			err.Error(),
			"Check write permissions in the current directory",
			err,
		), globals.JSON)
	}

	if globals.JSON {
		_ = output.JSON(indexResult{
			ProjectRoot:     idx.ProjectRoot,
			FilesEnumerated: stats.FilesEnumerated,
			FilesIndexed:    stats.FilesIndexed,
			ElapsedSeconds:  stats.Elapsed.Seconds(),
			DatabasePath:    dbPath,
		})
		return
	}

	if !globals.Quiet {
		ui.Successf("Indexed %d/%d files in %s", stats.FilesIndexed, stats.FilesEnumerated, stats.Elapsed.Round(time.Millisecond))
		fmt.Printf("Database written to %s\n", ui.DimText(dbPath))
		if ui.HighSkipRatio(stats.FilesIndexed, stats.FilesEnumerated) {
			ui.Warningf("Skipped %d/%d files (unreadable, not UTF-8, or too short to index)", stats.FilesEnumerated-stats.FilesIndexed, stats.FilesEnumerated)
		}
	}
}

func splitExt(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
