// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package index holds the in-memory trigram inverted index: the file-id to
// path table, the trigram to posting-set table, and the candidate/find query
// algorithm over them.
//
// An Index is built exclusively by the indexer pipeline (package indexer),
// then persisted and reopened read-only. There is no mutation-after-load
// path: AddFile is only ever called during a single build.
package index

import (
	"sort"
	"sync"

	"github.com/kraklabs/idfind/internal/trigram"
)

// Index is the trigram inverted index for one project root.
//
//   - ProjectRoot is the absolute, canonicalized directory all paths in
//     IDToPath are resolved relative to.
//   - NextID is the file-id to assign next; equals len(IDToPath).
//   - IDToPath maps a file-id to its project-root-relative path.
//   - TrigramToIDs maps a trigram to the set of file-ids whose content
//     contained it at index time.
type Index struct {
	mu sync.RWMutex

	ProjectRoot  string
	NextID       uint32
	IDToPath     map[uint32]string
	TrigramToIDs map[string]map[uint32]struct{}
}

// New returns an empty Index rooted at projectRoot, ready for AddFile calls
// from a single indexer pipeline run.
func New(projectRoot string) *Index {
	return &Index{
		ProjectRoot:  projectRoot,
		IDToPath:     make(map[uint32]string),
		TrigramToIDs: make(map[string]map[uint32]struct{}),
	}
}

// AddFile assigns the next file-id to path, records it, and inserts that id
// into every trigram's posting set. trigrams is assumed pre-deduplicated by
// the caller (the indexer's tokenizer stage). Callers must not add the same
// path twice in a single build; AddFile does not check for duplicates.
//
// AddFile is the single mutation point of an Index and must only be called
// by the indexer pipeline's sole inserter goroutine.
func (idx *Index) AddFile(path string, trigrams map[string]struct{}) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	id := idx.NextID
	idx.NextID++
	idx.IDToPath[id] = path

	for tri := range trigrams {
		set, ok := idx.TrigramToIDs[tri]
		if !ok {
			set = make(map[uint32]struct{}, 1)
			idx.TrigramToIDs[tri] = set
		}
		set[id] = struct{}{}
	}
}

// Candidates returns the paths that might contain needle, tokenized into
// trigrams and intersected against their posting sets. If any needle
// trigram is absent from the index, Candidates returns nil immediately: no
// file can contain a needle whose trigrams were never seen.
//
// Candidates is sound (every file that truly contains needle is returned)
// but not precise (it may also return files that don't, since the trigram
// filter only proves every 3-gram of needle is present somewhere in the
// file, not that they occur contiguously in the needle's order).
func (idx *Index) Candidates(needle string) []string {
	ids := idx.CandidateIDs(needle)
	if len(ids) == 0 {
		return nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if p, ok := idx.IDToPath[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// CandidateIDs computes the same intersection as Candidates but returns raw
// file-ids instead of resolved paths, letting callers that already hold a
// path table (e.g. a server worker serving remote clients) skip a redundant
// lookup.
func (idx *Index) CandidateIDs(needle string) []uint32 {
	trigrams := trigram.Trigrams(needle)
	if len(trigrams) == 0 {
		return nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	sets := make([]map[uint32]struct{}, 0, len(trigrams))
	for _, tri := range trigrams {
		set, ok := idx.TrigramToIDs[tri]
		if !ok || len(set) == 0 {
			return nil
		}
		sets = append(sets, set)
	}

	// Fold the intersection smallest-set-first: this is order-independent
	// for correctness but substantially cheaper in practice, since each
	// fold only needs to walk the current (shrinking) accumulator.
	sort.Slice(sets, func(i, j int) bool { return len(sets[i]) < len(sets[j]) })

	acc := make(map[uint32]struct{}, len(sets[0]))
	for id := range sets[0] {
		acc[id] = struct{}{}
	}
	for _, set := range sets[1:] {
		for id := range acc {
			if _, ok := set[id]; !ok {
				delete(acc, id)
			}
		}
		if len(acc) == 0 {
			return nil
		}
	}

	ids := make([]uint32, 0, len(acc))
	for id := range acc {
		ids = append(ids, id)
	}
	return ids
}

// Path returns the path recorded for id, and whether id is present.
func (idx *Index) Path(id uint32) (string, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	p, ok := idx.IDToPath[id]
	return p, ok
}

// FileCount returns the number of indexed files.
func (idx *Index) FileCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.IDToPath)
}
