// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package query implements the candidate/verify search algorithm: tokenize
// the needle, intersect posting lists via internal/index, then re-verify
// each candidate file with a literal line-by-line scan.
package query

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/kraklabs/idfind/internal/index"
	"github.com/kraklabs/idfind/internal/trigram"
)

// maxRenderLen is the longest line rendered in full; longer matching lines
// are replaced with a sentinel to keep output readable.
const maxRenderLen = 100

// Match is one verified hit: needle appears as a literal substring of Line.
type Match struct {
	Path string
	Line int // 1-based
	Text string
}

// Engine runs candidate lookup and verification against one loaded Index,
// resolving relative candidate paths against an explicit root rather than
// depending on the process working directory.
type Engine struct {
	idx     *index.Index
	root    string
	workers int
}

// New returns an Engine that resolves candidate paths under root.
func New(idx *index.Index, root string) *Engine {
	return &Engine{idx: idx, root: root}
}

// WithWorkers overrides the verification worker pool size (default
// runtime.NumCPU()).
func (e *Engine) WithWorkers(n int) *Engine {
	e.workers = n
	return e
}

// Candidates tokenizes needle and returns the index's candidate paths
// without verifying them. Needles shorter than trigram.MinQueryLen return
// nil, matching the query engine's rejection rule.
func (e *Engine) Candidates(needle string) []string {
	if trigram.CodepointLen(needle) < trigram.MinQueryLen {
		return nil
	}
	return e.idx.Candidates(needle)
}

// Find runs Candidates, then verifies each candidate by reading it from
// disk (joined against the Engine's root) and literal-scanning its lines
// for needle. It returns the total number of matching lines across all
// files. Unreadable files contribute zero rather than failing the whole
// query.
func (e *Engine) Find(needle string) (int, error) {
	if trigram.CodepointLen(needle) < trigram.MinQueryLen {
		return 0, nil
	}

	paths := e.Candidates(needle)
	if len(paths) == 0 {
		return 0, nil
	}

	workers := e.workers
	if workers <= 0 {
		workers = runtime.NumCPU()
		if workers < 1 {
			workers = 1
		}
	}
	if workers > len(paths) {
		workers = len(paths)
	}

	jobs := make(chan string, len(paths))
	for _, p := range paths {
		jobs <- p
	}
	close(jobs)

	var total int64
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			var local int64
			for p := range jobs {
				local += int64(countMatches(filepath.Join(e.root, p), needle))
			}
			mu.Lock()
			total += local
			mu.Unlock()
		}()
	}
	wg.Wait()

	return int(total), nil
}

// FindVerbose behaves like Find but also returns every individual matching
// line, in the <path>:<lineno>:<line> shape from the query engine's output
// contract. Lines longer than maxRenderLen are replaced with a sentinel.
func (e *Engine) FindVerbose(needle string) ([]Match, error) {
	if trigram.CodepointLen(needle) < trigram.MinQueryLen {
		return nil, nil
	}

	paths := e.Candidates(needle)
	if len(paths) == 0 {
		return nil, nil
	}

	var mu sync.Mutex
	var matches []Match
	var wg sync.WaitGroup
	wg.Add(len(paths))
	for _, p := range paths {
		go func(p string) {
			defer wg.Done()
			local := scanFile(filepath.Join(e.root, p), p, needle)
			if len(local) == 0 {
				return
			}
			mu.Lock()
			matches = append(matches, local...)
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	return matches, nil
}

// VerifyCandidates re-verifies an explicit list of candidate relative paths
// against root, without consulting any index. This is what the "search"
// client uses on the candidates a remote server returns: the server
// computes candidates only and never verifies, so the client always
// re-scans before reporting a hit.
func VerifyCandidates(root string, candidates []string, needle string) []Match {
	if trigram.CodepointLen(needle) < trigram.MinQueryLen || len(candidates) == 0 {
		return nil
	}

	var mu sync.Mutex
	var matches []Match
	var wg sync.WaitGroup
	wg.Add(len(candidates))
	for _, p := range candidates {
		go func(p string) {
			defer wg.Done()
			local := scanFile(filepath.Join(root, p), p, needle)
			if len(local) == 0 {
				return
			}
			mu.Lock()
			matches = append(matches, local...)
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	return matches
}

// countMatches returns the number of lines in the file at path that
// contain needle as a literal substring. A read failure contributes zero.
func countMatches(path, needle string) int {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<24)
	for scanner.Scan() {
		if strings.Contains(scanner.Text(), needle) {
			count++
		}
	}
	return count
}

// scanFile returns every matching line of the file at fullPath, rendered
// relative to displayPath.
func scanFile(fullPath, displayPath, needle string) []Match {
	f, err := os.Open(fullPath)
	if err != nil {
		return nil
	}
	defer f.Close()

	var out []Match
	lineno := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<24)
	for scanner.Scan() {
		lineno++
		line := scanner.Text()
		if !strings.Contains(line, needle) {
			continue
		}
		text := line
		if trigram.CodepointLen(text) > maxRenderLen {
			text = "*[long matching line]*"
		}
		out = append(out, Match{Path: displayPath, Line: lineno, Text: text})
	}
	return out
}

// Render formats a Match in the <path>:<lineno>:<line> shape used by the
// interactive and remote search surfaces.
func (m Match) Render() string {
	return fmt.Sprintf("%s:%d:%s", m.Path, m.Line, m.Text)
}
