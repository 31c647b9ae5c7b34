// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package main implements the idfind CLI: a trigram-indexed substring
// search tool with four modes selected by --mode/-m.
//
// Usage:
//
//	idfind -m index -p <dir>                 Build an index for a directory
//	idfind -m cli -d <file>                   Interactive query prompt
//	idfind -m server                          Run the search server
//	idfind -m search -d <file> -e <needle>    One-shot remote query
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/idfind/internal/errors"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GlobalFlags carries the flags every idfind subcommand understands,
// threaded through from main rather than re-parsed per mode.
type GlobalFlags struct {
	JSON    bool
	Quiet   bool
	Debug   bool
	NoColor bool
	Config  string
}

func main() {
	fs := flag.NewFlagSet("idfind", flag.ExitOnError)

	showVersion := fs.Bool("version", false, "Show version and exit")
	mode := fs.StringP("mode", "m", "", "Mode: index, cli, server, or search")
	project := fs.StringP("project", "p", "", "Project directory to index (index mode)")
	database := fs.StringP("database", "d", "", "Index database path (cli/search modes)")
	expr := fs.StringP("expression", "e", "", "Search expression (search mode)")
	includeExt := fs.String("include-ext", "", "Comma-separated extension whitelist (no dots)")
	debug := fs.Bool("debug", false, "Enable debug logging")
	jsonOut := fs.Bool("json", false, "Machine-readable JSON output")
	quiet := fs.BoolP("quiet", "q", false, "Suppress progress output")
	noColor := fs.Bool("no-color", false, "Disable colored output")
	metricsAddr := fs.String("metrics-addr", "", "Prometheus metrics listen address (empty disables)")
	configPath := fs.String("config", "", "Path to idfind.yaml runtime config (server mode)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `idfind - trigram-indexed substring search

Usage:
  idfind --mode <mode> [options]

Modes:
  index   --project/-p <dir>              Build a database for a directory tree
  cli     --database/-d <file>            Interactive query prompt against a database
  server                                  Run the search server (framed TCP)
  search  --database/-d --expression/-e   Send one query to a running server

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  idfind -m index -p .
  idfind -m cli -d sdb.json
  idfind -m server --config idfind.yaml
  idfind -m search -d sdb.json -e "needle"
`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}

	if *showVersion {
		fmt.Printf("idfind version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	globals := GlobalFlags{
		JSON:    *jsonOut,
		Quiet:   *quiet,
		Debug:   *debug,
		NoColor: *noColor,
		Config:  *configPath,
	}

	if *mode == "" {
		errors.FatalError(errors.NewInputError(
			"Missing required --mode/-m flag",
			"no mode was given on the command line",
			"Pass one of: index, cli, server, search",
		), globals.JSON)
	}

	switch *mode {
	case "index":
		if *project == "" {
			errors.FatalError(errors.NewInputError(
				"Missing required --project/-p flag for index mode",
				"index mode needs a directory to walk",
				"Pass --project <dir> or -p <dir>",
			), globals.JSON)
		}
		runIndex(*project, *includeExt, globals, *metricsAddr)
	case "cli":
		if *database == "" {
			errors.FatalError(errors.NewInputError(
				"Missing required --database/-d flag for cli mode",
				"cli mode needs a database file to load",
				"Pass --database <file> or -d <file>",
			), globals.JSON)
		}
		runCLI(*database, globals)
	case "server":
		runServer(globals)
	case "search":
		if *database == "" || *expr == "" {
			errors.FatalError(errors.NewInputError(
				"Missing required flags for search mode",
				"search mode needs both --database/-d and --expression/-e",
				"Pass -d <file> -e <needle>",
			), globals.JSON)
		}
		runSearch(*database, *expr, globals)
	default:
		errors.FatalError(errors.NewInputError(
			fmt.Sprintf("Unknown mode %q", *mode),
			"mode must be one of index, cli, server, search",
			"Run idfind --help for usage",
		), globals.JSON)
	}
}
