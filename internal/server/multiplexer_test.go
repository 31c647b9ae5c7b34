// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package server

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kraklabs/idfind/internal/index"
	"github.com/kraklabs/idfind/internal/indexer"
	"github.com/kraklabs/idfind/internal/transport"
)

func buildTestDB(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		full := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	idx, _, err := indexer.Build(context.Background(), root, indexer.Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	dbPath := filepath.Join(t.TempDir(), "sdb.json")
	if err := index.Save(idx, dbPath); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return dbPath
}

func startTestServer(t *testing.T) net.Addr {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		ln.Close()
	})

	m := New(nil)
	go m.Serve(ctx, ln)
	return ln.Addr()
}

func roundTrip(t *testing.T, addr net.Addr, req transport.Request) transport.Response {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr.String(), 2*time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if err := transport.Send(conn, req); err != nil {
		t.Fatalf("Send: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	resp, err := transport.Receive[transport.Response](conn)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	return resp
}

func TestServerServesCandidates(t *testing.T) {
	dbPath := buildTestDB(t, map[string]string{"a.txt": "abcdef", "b.txt": "abcxyz"})
	addr := startTestServer(t)

	resp := roundTrip(t, addr, transport.Request{DBName: dbPath, Needle: "bcd"})
	if resp.Error {
		t.Fatalf("Response.Error = true, message %q", resp.Message)
	}
	if len(resp.Files) != 1 || resp.Files[0] != "a.txt" {
		t.Fatalf("Files = %v, want [a.txt]", resp.Files)
	}
}

func TestServerShortNeedleRejected(t *testing.T) {
	dbPath := buildTestDB(t, map[string]string{"a.txt": "abcdef"})
	addr := startTestServer(t)

	resp := roundTrip(t, addr, transport.Request{DBName: dbPath, Needle: "ab"})
	if !resp.Error || resp.Message != shortInputMessage {
		t.Fatalf("Response = %+v, want error %q", resp, shortInputMessage)
	}
}

func TestServerUnknownDatabaseDropsConnection(t *testing.T) {
	addr := startTestServer(t)

	conn, err := net.DialTimeout("tcp", addr.String(), 2*time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	req := transport.Request{DBName: filepath.Join(t.TempDir(), "missing.json"), Needle: "abc"}
	if err := transport.Send(conn, req); err != nil {
		t.Fatalf("Send: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := transport.Receive[transport.Response](conn); err == nil {
		t.Fatal("Receive: want error (connection dropped for unknown db), got nil")
	}
}

// TestServerBadDatabaseRespawnsIndependentlyEachTime exercises the
// two-in-a-row failure scenario: workerFor never caches a failed load (no
// entry is created), so a second request for the same bad dbname spawns
// its own independent attempt and fails the same way, rather than either
// succeeding from stale state or wedging the router.
func TestServerBadDatabaseRespawnsIndependentlyEachTime(t *testing.T) {
	addr := startTestServer(t)
	dbname := filepath.Join(t.TempDir(), "missing.json")
	req := transport.Request{DBName: dbname, Needle: "abc"}

	for attempt := 1; attempt <= 2; attempt++ {
		conn, err := net.DialTimeout("tcp", addr.String(), 2*time.Second)
		if err != nil {
			t.Fatalf("attempt %d: Dial: %v", attempt, err)
		}

		if err := transport.Send(conn, req); err != nil {
			conn.Close()
			t.Fatalf("attempt %d: Send: %v", attempt, err)
		}

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, err := transport.Receive[transport.Response](conn); err == nil {
			conn.Close()
			t.Fatalf("attempt %d: Receive: want error (connection dropped), got nil", attempt)
		}
		conn.Close()
	}
}

func TestServerSameDatabaseServedBySameWorker(t *testing.T) {
	dbPath := buildTestDB(t, map[string]string{"a.txt": "abcdef"})
	addr := startTestServer(t)

	first := roundTrip(t, addr, transport.Request{DBName: dbPath, Needle: "bcd"})
	second := roundTrip(t, addr, transport.Request{DBName: dbPath, Needle: "abc"})

	if first.Error || second.Error {
		t.Fatalf("unexpected error responses: %+v %+v", first, second)
	}
	if first.Message != second.Message {
		t.Fatalf("project root differs across requests: %q vs %q", first.Message, second.Message)
	}
}
