// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package index

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// DefaultFileName is the conventional database file name. Save and Load
// always take an explicit path; they do not fall back to this name.
const DefaultFileName = "sdb.json"

// document is the self-describing on-disk shape of an Index. Field names
// are literal and match the original implementation's serialized schema
// exactly, so a database produced by either tool is textually compatible.
type document struct {
	CurID       uint32              `json:"cur_id"`
	ProjectRoot string              `json:"project_root"`
	IdxDB       map[string]string   `json:"idx_db"`
	StrDB       map[string][]uint32 `json:"str_db"`
}

// Save JSON-encodes idx and writes it to path. Overwriting an existing file
// is permitted.
func Save(idx *Index, path string) error {
	idx.mu.RLock()
	doc := document{
		CurID:       idx.NextID,
		ProjectRoot: idx.ProjectRoot,
		IdxDB:       make(map[string]string, len(idx.IDToPath)),
		StrDB:       make(map[string][]uint32, len(idx.TrigramToIDs)),
	}
	for id, p := range idx.IDToPath {
		doc.IdxDB[strconv.FormatUint(uint64(id), 10)] = p
	}
	for tri, set := range idx.TrigramToIDs {
		ids := make([]uint32, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		doc.StrDB[tri] = ids
	}
	idx.mu.RUnlock()

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write index %s: %w", path, err)
	}
	return nil
}

// Load reads and decodes the database at path into a read-only Index.
// Load failures - missing file, malformed JSON, a schema that doesn't
// decode into document - are returned with their original cause intact via
// error wrapping, so errors.Is/errors.As still reach the underlying
// *os.PathError or *json.SyntaxError.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read index %s: %w", path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode index %s: %w", path, err)
	}

	idx := &Index{
		ProjectRoot:  doc.ProjectRoot,
		NextID:       doc.CurID,
		IDToPath:     make(map[uint32]string, len(doc.IdxDB)),
		TrigramToIDs: make(map[string]map[uint32]struct{}, len(doc.StrDB)),
	}
	for key, p := range doc.IdxDB {
		id, err := strconv.ParseUint(key, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("decode index %s: invalid file id %q: %w", path, key, err)
		}
		idx.IDToPath[uint32(id)] = p
	}
	for tri, ids := range doc.StrDB {
		set := make(map[uint32]struct{}, len(ids))
		for _, id := range ids {
			set[id] = struct{}{}
		}
		idx.TrigramToIDs[tri] = set
	}

	return idx, nil
}
