// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package indexer

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/kraklabs/idfind/internal/index"
	"github.com/kraklabs/idfind/internal/trigram"
)

// Options configures a single Build run.
type Options struct {
	// IncludeExt whitelists file extensions (without dots) to index. Empty
	// means "index everything not in SkipExtensions".
	IncludeExt []string

	// Workers is the size of the tokenizer worker pool. 0 selects
	// runtime.NumCPU().
	Workers int

	// Progress, if non-nil, is invoked roughly every 100ms during the
	// tokenize/insert phase with the number of files inserted so far and
	// the total enumerated. It is always called one final time with
	// done=files indexed, total=total once the build completes.
	Progress func(done, total int)
}

// Stats summarizes one Build run.
type Stats struct {
	FilesEnumerated int
	FilesIndexed    int
	Elapsed         time.Duration
}

type readResult struct {
	path    string
	content string
}

type tokenizeResult struct {
	path     string
	trigrams map[string]struct{}
}

// Build walks root, filters, reads, tokenizes, and inserts every accepted
// file into a fresh index.Index. It implements the three-stage pipeline
// from the indexing design: a single reader goroutine feeds a pool of
// tokenizer workers, whose output drains into a single inserter goroutine
// that is the Index's sole writer.
//
// Build runs to completion; ctx cancellation stops the pipeline early
// (Reader stops submitting new files, the partially built Index is
// returned as-is alongside ctx.Err() so callers can discard it - a
// cancelled build is never meant to be saved).
func Build(ctx context.Context, root string, opts Options) (*index.Index, Stats, error) {
	start := time.Now()

	files, err := Enumerate(root, opts.IncludeExt)
	if err != nil {
		return nil, Stats{}, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
		if workers < 1 {
			workers = 1
		}
	}

	idx := index.New(root)

	readCh := make(chan readResult, workers*2)
	tokenCh := make(chan tokenizeResult, workers*2)

	var inserted atomic.Uint64
	total := len(files)

	var stopProgress chan struct{}
	var progressDone chan struct{}
	if opts.Progress != nil {
		stopProgress = make(chan struct{})
		progressDone = make(chan struct{})
		go func() {
			defer close(progressDone)
			ticker := time.NewTicker(100 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					opts.Progress(int(inserted.Load()), total)
				case <-stopProgress:
					opts.Progress(int(inserted.Load()), total)
					return
				}
			}
		}()
	}

	// Reader: single producer, reads enumerated files as text.
	go func() {
		defer close(readCh)
		for _, rel := range files {
			select {
			case <-ctx.Done():
				return
			default:
			}

			data, err := os.ReadFile(filepath.Join(root, rel))
			if err != nil {
				continue
			}
			if !utf8.Valid(data) {
				continue
			}
			content := string(data)
			if trigram.CodepointLen(content) < 3 {
				continue
			}

			select {
			case readCh <- readResult{path: rel, content: content}:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Tokenizer workers: parallel, each computes a deduplicated trigram set
	// per file and drops files below the indexing length gate.
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for r := range readCh {
				set := trigram.Set(r.content)
				if set == nil {
					continue
				}
				select {
				case tokenCh <- tokenizeResult{path: r.path, trigrams: set}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(tokenCh)
	}()

	// Inserter: single consumer, the Index's sole writer.
	for r := range tokenCh {
		idx.AddFile(r.path, r.trigrams)
		inserted.Add(1)
	}

	if stopProgress != nil {
		close(stopProgress)
		<-progressDone
	}

	stats := Stats{
		FilesEnumerated: total,
		FilesIndexed:    idx.FileCount(),
		Elapsed:         time.Since(start),
	}

	if err := ctx.Err(); err != nil {
		return idx, stats, err
	}
	return idx, stats, nil
}
