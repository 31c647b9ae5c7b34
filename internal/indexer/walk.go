// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package indexer walks a project tree, filters and reads its files, and
// feeds them through a parallel tokenize/insert pipeline into an
// internal/index.Index.
package indexer

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// SkipExtensions are file extensions (without the leading dot, lowercase)
// that are never indexed, regardless of an include filter. Apart from json,
// these are binary formats; indexing them as text would be meaningless or
// unsafe.
var SkipExtensions = map[string]struct{}{
	"png": {}, "jpg": {}, "jpeg": {}, "pdf": {},
	"pyc": {}, "zip": {}, "tgz": {}, "tar": {},
	"gz": {}, "so": {}, "bin": {}, "wasm": {},
	"o": {}, "rlib": {}, "json": {}, "dat": {},
	"whl": {}, "wav": {}, "pcm": {}, "avif": {},
	"rmeta": {}, "a": {},
}

// isHidden reports whether name is a hidden entry: it starts with '.' and
// has at least one more character. "." is not hidden by this rule and ".."
// is; Enumerate never sees either name, since WalkDir does not yield them.
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && len(name) > 1
}

// includeExtension reports whether ext (lowercase, no leading dot) should be
// indexed given an optional whitelist. ext is always rejected if it's in
// SkipExtensions; otherwise it's accepted when allow is empty, or when ext
// appears in allow.
func includeExtension(ext string, allow map[string]struct{}) bool {
	if _, skip := SkipExtensions[ext]; skip {
		return false
	}
	if len(allow) == 0 {
		return true
	}
	_, ok := allow[ext]
	return ok
}

// Enumerate walks root and returns the root-relative paths of every regular
// file that should be indexed: hidden files/directories are skipped
// entirely (filepath.SkipDir on hidden directories), extensions in
// SkipExtensions are always excluded, and when includeExt is non-empty only
// those extensions are accepted. Returned paths never carry a leading
// "./".
func Enumerate(root string, includeExt []string) ([]string, error) {
	allow := make(map[string]struct{}, len(includeExt))
	for _, e := range includeExt {
		allow[strings.ToLower(e)] = struct{}{}
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}

		name := d.Name()
		if d.IsDir() {
			if isHidden(name) {
				return filepath.SkipDir
			}
			return nil
		}
		if isHidden(name) {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
		if !includeExtension(ext, allow) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = strings.TrimPrefix(filepath.ToSlash(rel), "./")
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
