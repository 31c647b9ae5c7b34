// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package server implements the TCP multiplexer that serves framed search
// requests against one or more loaded indexes, spawning a single-writer
// worker goroutine per database on first use.
package server

import (
	"context"
	"log/slog"
	"net"
	"sync"

	"github.com/kraklabs/idfind/internal/index"
	"github.com/kraklabs/idfind/internal/metrics"
	"github.com/kraklabs/idfind/internal/query"
	"github.com/kraklabs/idfind/internal/transport"
)

// shortInputMessage is preserved verbatim, typo included, for wire
// compatibility with clients that match on this exact string.
const shortInputMessage = "Input to short"

// job is one query handed from the router to a database's worker.
type job struct {
	needle string
	conn   net.Conn
}

// routeRequest is one decoded frame handed from a connection's I/O
// goroutine to the single router goroutine that owns the worker map.
type routeRequest struct {
	dbname string
	needle string
	conn   net.Conn
}

// workerEntry is one routing-table slot. done is closed by the worker
// goroutine when it exits (load never re-attempted mid-life, queue
// closed, or context cancelled), letting the router notice a dead
// worker and respawn on the next request instead of forwarding into a
// channel nobody drains.
type workerEntry struct {
	ch   chan job
	done chan struct{}
}

func (e *workerEntry) dead() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// Multiplexer accepts framed connections and routes each request to the
// per-database worker, spawning it on first use. The worker map is owned
// solely by the router goroutine started in Serve, so it needs no lock -
// matching the single-threaded map ownership of the design it's grounded
// on. Connection goroutines only decode a frame and hand the result to the
// router over a channel; they never touch the map directly.
type Multiplexer struct {
	workers map[string]*workerEntry
	route   chan routeRequest

	mu     sync.Mutex // guards active only, for the metrics gauge
	active int
	log    *slog.Logger
}

// New returns an idle Multiplexer. Call Serve to start accepting
// connections on a listener.
func New(log *slog.Logger) *Multiplexer {
	if log == nil {
		log = slog.Default()
	}
	return &Multiplexer{
		workers: make(map[string]*workerEntry),
		route:   make(chan routeRequest),
		log:     log,
	}
}

// Serve accepts connections from ln until ctx is cancelled or Accept
// returns an error. It never returns nil; callers should distinguish a
// deliberate shutdown from a listener error using ctx.Err().
func (m *Multiplexer) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	go m.router(ctx)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		go m.decodeConnection(ctx, conn)
	}
}

// decodeConnection receives exactly one Request frame and hands it to the
// router. A frame-decode failure or a router that isn't accepting (server
// shutting down) silently drops the connection; this goroutine never
// touches the worker map.
func (m *Multiplexer) decodeConnection(ctx context.Context, conn net.Conn) {
	req, err := transport.Receive[transport.Request](conn)
	if err != nil {
		m.log.Debug("dropping connection: frame decode failed", "error", err)
		conn.Close()
		return
	}

	select {
	case m.route <- routeRequest{dbname: req.DBName, needle: req.Needle, conn: conn}:
	case <-ctx.Done():
		conn.Close()
	}
}

// router is the sole owner of the worker map: it looks up or spawns the
// worker for each incoming request and forwards the query to it. Running
// this as one dedicated goroutine is what lets the map stay lock-free.
func (m *Multiplexer) router(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case rr := <-m.route:
			entry := m.workerFor(ctx, rr.dbname)
			if entry == nil {
				rr.conn.Close()
				continue
			}
			select {
			case entry.ch <- job{needle: rr.needle, conn: rr.conn}:
			default:
				// Worker's inbox is full or has exited uncleanly; rather
				// than block routing of other databases, drop this
				// connection and let the caller retry.
				m.log.Debug("worker busy or gone, dropping connection", "dbname", rr.dbname)
				rr.conn.Close()
			}
		}
	}
}

// workerFor returns the routing entry for dbname, spawning its worker if
// this is the first request for that database or if a prior worker for it
// has since exited. A load failure removes no entry (there is none yet,
// or the dead one was already discarded) and returns nil; the next request
// for the same dbname retries and will fail again - an accepted limitation
// carried over from the distilled design.
func (m *Multiplexer) workerFor(ctx context.Context, dbname string) *workerEntry {
	if entry, ok := m.workers[dbname]; ok {
		if !entry.dead() {
			return entry
		}
		delete(m.workers, dbname)
	}

	idx, err := index.Load(dbname)
	if err != nil {
		m.log.Error("failed to load database, worker will not start", "dbname", dbname, "error", err)
		metrics.RecordServerRequest(dbname, "load_error")
		return nil
	}

	entry := &workerEntry{ch: make(chan job, 8), done: make(chan struct{})}
	m.workers[dbname] = entry
	m.bumpActive(1)

	eng := query.New(idx, idx.ProjectRoot)
	go m.runWorker(ctx, dbname, eng, idx.ProjectRoot, entry)

	return entry
}

// runWorker is the single writer for one loaded Index: it serializes every
// query against it, computing candidates only (no client-side
// verification happens server-side; the caller always re-verifies).
func (m *Multiplexer) runWorker(ctx context.Context, dbname string, eng *query.Engine, projectRoot string, entry *workerEntry) {
	defer close(entry.done)
	defer m.bumpActive(-1)

	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-entry.ch:
			if !ok {
				return
			}
			m.serve(dbname, eng, projectRoot, j)
		}
	}
}

func (m *Multiplexer) serve(dbname string, eng *query.Engine, projectRoot string, j job) {
	defer j.conn.Close()

	var resp transport.Response
	var result string
	if len([]rune(j.needle)) < 3 {
		resp = transport.ErrResponse(shortInputMessage)
		result = "short_needle"
	} else {
		files := eng.Candidates(j.needle)
		resp = transport.NewResponse(projectRoot, files)
		result = "ok"
	}

	metrics.RecordServerRequest(dbname, result)

	if err := transport.Send(j.conn, resp); err != nil {
		m.log.Debug("failed to send response", "dbname", dbname, "error", err)
	}
}

func (m *Multiplexer) bumpActive(delta int) {
	m.mu.Lock()
	m.active += delta
	n := m.active
	m.mu.Unlock()
	metrics.SetActiveWorkers(n)
}
