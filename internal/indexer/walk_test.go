// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package indexer

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

// TestEnumerateHiddenSkip mirrors scenario S4: a hidden directory's
// contents never appear in the enumerated set.
func TestEnumerateHiddenSkip(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".git/config", "abcdef")
	writeFile(t, dir, "src/x.txt", "abcdef")

	got, err := Enumerate(dir, nil)
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	sort.Strings(got)
	want := []string{"src/x.txt"}
	if len(got) != len(want) || got[0] != want[0] {
		t.Fatalf("Enumerate = %v, want %v", got, want)
	}
}

// TestEnumerateIncludeFilter mirrors scenario S5: an include-extension
// filter whitelists only the named extensions.
func TestEnumerateIncludeFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.rs", "fn main() {}")
	writeFile(t, dir, "b.txt", "hello")
	writeFile(t, dir, "c.md", "# title")

	got, err := Enumerate(dir, []string{"rs", "txt"})
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	sort.Strings(got)
	want := []string{"a.rs", "b.txt"}
	if len(got) != len(want) {
		t.Fatalf("Enumerate = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Enumerate = %v, want %v", got, want)
		}
	}
}

// TestEnumerateSkipExtensions mirrors invariant 7: the hard-coded skip set
// excludes files regardless of an include filter naming them explicitly.
func TestEnumerateSkipExtensions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "image.png", "not real png data")
	writeFile(t, dir, "a.txt", "hello")

	got, err := Enumerate(dir, []string{"png", "txt"})
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(got) != 1 || got[0] != "a.txt" {
		t.Fatalf("Enumerate = %v, want [a.txt]", got)
	}
}

func TestEnumerateNoLeadingDotSlash(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "hello")

	got, err := Enumerate(dir, nil)
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	for _, p := range got {
		if len(p) >= 2 && p[:2] == "./" {
			t.Fatalf("path %q has leading ./", p)
		}
	}
}

func TestIsHidden(t *testing.T) {
	cases := map[string]bool{
		".":        false,
		"..":       true,
		".git":     true,
		".gitkeep": true,
		"a.txt":    false,
	}
	for name, want := range cases {
		if got := isHidden(name); got != want {
			t.Errorf("isHidden(%q) = %v, want %v", name, got, want)
		}
	}
}
