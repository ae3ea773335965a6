// Package server implements the user-facing API of a rendezvous and relay
// server: an acceptor loop, a bounded worker pool, and the lifecycle glue
// wiring the routing table, address registry, sweeper, and failure hook
// together around each accepted Session.
package server

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"gossiprouter/address"
	"gossiprouter/routing"
	"gossiprouter/session"
	"gossiprouter/sweeper"
)

// Config bundles every knob spec.md §6's CLI surface exposes.
type Config struct {
	BindAddr string
	Port     uint16

	// Backlog is accepted for parity with the original's SO_BACKLOG option.
	// Go's net.Listen has no portable knob for the TCP listen backlog, so
	// this field is recorded but not wired to a syscall — see DESIGN.md.
	Backlog int

	ExpiryMillis    int64
	SoLingerMillis  int64
	SoTimeoutMillis int64

	// IncludeLoopbacks opts a session back into receiving its own multicast
	// sends. The zero value (false) matches spec.md §8 scenario 4's mandatory
	// "sender does not receive its own message" default — callers must opt
	// in explicitly rather than rely on a constructor-side default for a
	// plain bool, which Go's zero value cannot distinguish from "unset".
	IncludeLoopbacks bool

	// MaxWorkers bounds the accept-side worker pool; <= 0 substitutes a
	// sane default rather than meaning "unbounded".
	MaxWorkers int64

	// JMX is accepted and stored for CLI parity but is otherwise inert: the
	// management facade it names is out of scope (spec.md §1's Non-goals).
	JMX bool

	Log *zap.Logger
}

const defaultMaxWorkers = 512

// Server owns a TCP listener, the routing/address indices, the idle
// sweeper, and the failure-notification hook list, and spawns one Session
// per accepted connection on a bounded worker pool.
type Server struct {
	cfg Config
	log *zap.Logger

	table    *routing.Table[*session.Session]
	registry *address.Registry
	hooks    *session.Hooks
	sweep    *sweeper.Sweeper[*session.Session]
	sem      *semaphore.Weighted

	listener net.Listener
	running  atomic.Bool

	mu   sync.Mutex
	live map[*session.Session]struct{}
	wg   sync.WaitGroup
}

func New(cfg Config) *Server {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = defaultMaxWorkers
	}

	table := routing.NewTable[*session.Session]()
	hooks := session.NewHooks()
	hooks.Register(session.NewSuspectNotifier(log))

	srv := &Server{
		cfg:      cfg,
		log:      log,
		table:    table,
		registry: address.NewRegistry(),
		hooks:    hooks,
		sem:      semaphore.NewWeighted(cfg.MaxWorkers),
		live:     make(map[*session.Session]struct{}),
	}
	expiry := time.Duration(cfg.ExpiryMillis) * time.Millisecond
	srv.sweep = sweeper.New(expiry, expiry, srv.table.Sessions, log)
	return srv
}

// Start binds the listener, launches the sweeper, and begins accepting.
// Starting an already-running server fails loudly, per spec.md §7.
func (srv *Server) Start() error {
	if !srv.running.CompareAndSwap(false, true) {
		return fmt.Errorf("server: already started")
	}

	addr := fmt.Sprintf("%s:%d", srv.cfg.BindAddr, srv.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		srv.running.Store(false)
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	srv.listener = ln
	srv.sweep.Start()

	go srv.acceptLoop()
	srv.log.Info("server started", zap.String("addr", addr))
	return nil
}

func (srv *Server) acceptLoop() {
	for {
		conn, err := srv.listener.Accept()
		if err != nil {
			if !srv.running.Load() {
				return
			}
			srv.log.Warn("accept failed", zap.Error(err))
			continue
		}
		go srv.handleAccept(conn)
	}
}

// handleAccept applies socket options, enforces the worker-pool bound with
// a reject-and-close backpressure policy, and runs the Session to
// completion.
func (srv *Server) handleAccept(conn net.Conn) {
	if !srv.sem.TryAcquire(1) {
		srv.log.Warn("rejecting connection, worker pool exhausted", zap.Stringer("remote", conn.RemoteAddr()))
		_ = conn.Close()
		return
	}
	defer srv.sem.Release(1)

	srv.applySocketOptions(conn)

	sess := session.New(conn, session.Config{
		Table:            srv.table,
		Registry:         srv.registry,
		Hooks:            srv.hooks,
		Log:              srv.log,
		ReadTimeout:      time.Duration(srv.cfg.SoTimeoutMillis) * time.Millisecond,
		DiscardLoopbacks: !srv.cfg.IncludeLoopbacks,
	})

	srv.trackSession(sess)
	srv.wg.Add(1)
	defer srv.wg.Done()
	defer srv.untrackSession(sess)

	sess.Run()
}

func (srv *Server) applySocketOptions(conn net.Conn) {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	if srv.cfg.SoLingerMillis > 0 {
		seconds := int(srv.cfg.SoLingerMillis / 1000)
		if seconds < 1 {
			seconds = 1
		}
		if err := tcpConn.SetLinger(seconds); err != nil {
			srv.log.Warn("SetLinger failed", zap.Error(err))
		}
	}
}

func (srv *Server) trackSession(sess *session.Session) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	srv.live[sess] = struct{}{}
}

func (srv *Server) untrackSession(sess *session.Session) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	delete(srv.live, sess)
}

func (srv *Server) liveSessions() []*session.Session {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	out := make([]*session.Session, 0, len(srv.live))
	for s := range srv.live {
		out = append(out, s)
	}
	return out
}

// Clear closes every live session and empties the routing table and
// address registry, but leaves the listening socket (and the sweeper)
// running — distinct from Stop, matching the original's clear()/stop()
// split.
func (srv *Server) Clear() {
	for _, sess := range srv.liveSessions() {
		sess.Close()
	}
	srv.wg.Wait()
	srv.table.Clear()
	srv.registry.Clear()
}

// Stop performs the full teardown order: close the listener (so the
// acceptor exits), cancel the sweeper, close every session, then clear the
// indices. Stop is idempotent: stopping an already-stopped (or
// never-started) server is a no-op.
func (srv *Server) Stop() error {
	if !srv.running.CompareAndSwap(true, false) {
		return nil
	}
	if srv.listener != nil {
		_ = srv.listener.Close()
	}
	srv.sweep.Stop()
	srv.Clear()
	srv.log.Info("server stopped")
	return nil
}

// Shutdown blocks until ctx is done or Stop completes, whichever first; it
// exists for callers wiring signal-triggered shutdown (cmd/gossiprouter).
func (srv *Server) Shutdown(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- srv.Stop() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DumpRoutingTable renders every group and its member addresses, for
// diagnostics and tests that want a human-readable assertion target
// instead of reaching into internals.
func (srv *Server) DumpRoutingTable() string {
	var b strings.Builder
	for _, g := range srv.table.Groups() {
		fmt.Fprintf(&b, "%s:\n", g)
		for _, addr := range srv.table.Members(g) {
			fmt.Fprintf(&b, "  %s\n", addr)
		}
	}
	return b.String()
}

// DumpAddressMappings renders every logical->physical binding currently
// known to the address registry.
func (srv *Server) DumpAddressMappings() string {
	var b strings.Builder
	for addr, phys := range srv.registry.DumpPhysical() {
		fmt.Fprintf(&b, "%s -> %s\n", addr, phys)
	}
	return b.String()
}

// Addr returns the listener's bound address; useful in tests that bind to
// port 0 and need to discover the chosen port.
func (srv *Server) Addr() net.Addr {
	if srv.listener == nil {
		return nil
	}
	return srv.listener.Addr()
}
