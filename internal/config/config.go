// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package config loads the optional runtime configuration file for idfind's
// server mode. The index and index database themselves need no
// configuration (an index is fully self-describing, see internal/index);
// this package only covers how the server binds and reports itself.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level shape of idfind.yaml. Fields the file omits keep
// their Default() values; running without a config file uses Default().
type Config struct {
	// ListenAddr is the address the search server binds for client
	// connections using the framed transport protocol.
	ListenAddr string `yaml:"listen_addr"`

	// MetricsAddr, if non-empty, is the address a Prometheus /metrics
	// endpoint is served on via promhttp.Handler(). Empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel is the slog level name: debug, info, warn, or error.
	LogLevel string `yaml:"log_level"`

	// DefaultIncludeExt is a list of file extensions (without dots) read
	// from the file. Index mode does not load the config file, so no index
	// build applies this list.
	DefaultIncludeExt []string `yaml:"default_include_ext"`
}

// Default returns the configuration the server runs with when no file is
// given, matching the distilled spec's hard-coded bind address.
func Default() Config {
	return Config{
		ListenAddr: "127.0.0.1:4141",
		LogLevel:   "info",
	}
}

// Load reads and parses the YAML config file at path, filling in defaults
// for any field the file omits.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:4141"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg, nil
}
