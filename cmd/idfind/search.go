// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"fmt"
	"net"
	"path/filepath"
	"time"

	"github.com/kraklabs/idfind/internal/config"
	"github.com/kraklabs/idfind/internal/errors"
	"github.com/kraklabs/idfind/internal/output"
	"github.com/kraklabs/idfind/internal/query"
	"github.com/kraklabs/idfind/internal/transport"
	"github.com/kraklabs/idfind/internal/ui"
)

// searchResult is the JSON shape printed by --json for search mode.
type searchResult struct {
	Hits  int              `json:"hits"`
	Lines []searchHitLines `json:"lines"`
}

type searchHitLines struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// runSearch sends one request to a running server for dbPath, then
// re-verifies the candidates it gets back locally before reporting hits -
// the server computes candidates only and never verifies.
func runSearch(dbPath, needle string, globals GlobalFlags) {
	ui.InitColors(globals.NoColor)

	addr := config.Default().ListenAddr
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		errors.FatalError(errors.NewNetworkError(
			"Cannot connect to idfind server",
			err.Error(),
			fmt.Sprintf("Make sure idfind -m server is running on %s", addr),
			err,
		), globals.JSON)
	}
	defer conn.Close()

	if err := transport.Send(conn, transport.Request{DBName: dbPath, Needle: needle}); err != nil {
		errors.FatalError(errors.NewNetworkError(
			"Failed to send search request",
			err.Error(),
			"Retry the search once the server is reachable",
			err,
		), globals.JSON)
	}

	resp, err := transport.Receive[transport.Response](conn)
	if err != nil {
		errors.FatalError(errors.NewNetworkError(
			"Failed to read search response",
			err.Error(),
			"The connection may have been dropped by the server",
			err,
		), globals.JSON)
	}

	if resp.Error {
		if globals.JSON {
			_ = output.JSON(searchResult{})
			return
		}
		fmt.Println("[!] " + resp.Message)
		return
	}

	// resp.Message is the server's project root; the candidates in
	// resp.Files are sound but not precise, so verify locally rather than
	// trusting the server's unverified posting-list lookup.
	matches := query.VerifyCandidates(filepath.Clean(resp.Message), resp.Files, needle)

	if globals.JSON {
		lines := make([]searchHitLines, 0, len(matches))
		for _, m := range matches {
			lines = append(lines, searchHitLines{Path: m.Path, Line: m.Line, Text: m.Text})
		}
		_ = output.JSON(searchResult{Hits: len(matches), Lines: lines})
		return
	}

	if len(matches) == 0 {
		fmt.Println(ui.NotFound())
		return
	}
	fmt.Println(ui.MatchSummary(len(matches)))
	for _, m := range matches {
		fmt.Println(ui.Highlight(m.Render(), needle))
	}
}
