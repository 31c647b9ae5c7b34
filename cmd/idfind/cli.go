// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/kraklabs/idfind/internal/errors"
	"github.com/kraklabs/idfind/internal/index"
	"github.com/kraklabs/idfind/internal/query"
	"github.com/kraklabs/idfind/internal/trigram"
	"github.com/kraklabs/idfind/internal/ui"
)

// runCLI loads the database at dbPath and serves an interactive "> " query
// prompt on stdin. A line shorter than trigram.MinQueryLen ends the
// session, matching the remote protocol's short-needle rejection.
func runCLI(dbPath string, globals GlobalFlags) {
	ui.InitColors(globals.NoColor)

	idx, err := index.Load(dbPath)
	if err != nil {
		errors.FatalError(errors.FromFileError("Cannot open index database", dbPath, err), globals.JSON)
	}

	eng := query.New(idx, idx.ProjectRoot)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		needle := scanner.Text()
		if trigram.CodepointLen(needle) < trigram.MinQueryLen {
			return
		}

		n, err := eng.Find(needle)
		if err != nil {
			ui.Errorf("query failed: %v", err)
			continue
		}
		if n == 0 {
			fmt.Println(ui.NotFound())
			continue
		}
		fmt.Println(ui.MatchSummary(n))
	}
}
