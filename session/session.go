// Package session implements one Session per accepted socket: the read
// loop, command dispatch, the CONNECT handshake, relay fan-out, and the
// write-serialization discipline required by spec.md §4.4/§4.5.
package session

import (
	"bytes"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"gossiprouter/address"
	"gossiprouter/hook"
	"gossiprouter/routing"
	"gossiprouter/wire"
)

// Table is the concrete routing table type a Session is registered into.
type Table = routing.Table[*Session]

// Hooks is the concrete failure-notification list a Session reports to.
type Hooks = hook.List[*Session]

// NewHooks constructs an empty failure-notification list for Sessions.
func NewHooks() *Hooks {
	return hook.NewList[*Session]()
}

// Session owns one accepted connection: its socket, a framed reader, and a
// write-serialized framed writer. It is created inactive and flips active
// false->true exactly once, in Run; Close flips it back exactly once.
type Session struct {
	conn   net.Conn
	reader readerFunc

	readTimeout time.Duration

	table    *Table
	registry *address.Registry
	hooks    *Hooks
	log      *zap.Logger

	discardLoopbacks bool

	writeMu sync.Mutex
	active  atomic.Bool

	mu               sync.Mutex
	logicalAddresses []address.Logical
	knownGroups      map[string]struct{}

	lastActivityMillis atomic.Int64
}

// readerFunc reads exactly one record from the session's connection. It is
// a field (not just a direct wire.ReadRecord(s.conn) call) so tests can
// substitute a reader that injects timeouts or malformed frames.
type readerFunc = func(net.Conn) (*wire.Record, error)

// Config bundles the collaborators a Session needs. None of them are
// package-level singletons — every Session is wired explicitly, per
// spec.md §9.
type Config struct {
	Table            *Table
	Registry         *address.Registry
	Hooks            *Hooks
	Log              *zap.Logger
	ReadTimeout      time.Duration
	DiscardLoopbacks bool
}

func New(conn net.Conn, cfg Config) *Session {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	s := &Session{
		conn:             conn,
		reader:           defaultReader,
		readTimeout:      cfg.ReadTimeout,
		table:            cfg.Table,
		registry:         cfg.Registry,
		hooks:            cfg.Hooks,
		log:              log,
		discardLoopbacks: cfg.DiscardLoopbacks,
		knownGroups:      make(map[string]struct{}),
	}
	s.touch()
	return s
}

func defaultReader(conn net.Conn) (*wire.Record, error) {
	return wire.ReadRecord(conn)
}

// Run flips the session active and runs the read loop until it exits, then
// tears the session down. It must be called at most once, from the
// goroutine the acceptor spawned for this connection.
func (s *Session) Run() {
	if !s.active.CompareAndSwap(false, true) {
		return
	}
	s.readLoop()
	s.Close()
}

func (s *Session) touch() {
	s.lastActivityMillis.Store(time.Now().UnixMilli())
}

// LastActivityMillis returns the unix-millisecond timestamp of the last
// record this session successfully decoded (or its creation time, if none
// yet). Used by the sweeper.
func (s *Session) LastActivityMillis() int64 {
	return s.lastActivityMillis.Load()
}

// IsActive reports whether the session is still accepting reads/writes.
func (s *Session) IsActive() bool {
	return s.active.Load()
}

func (s *Session) addLogicalAddress(addr address.Logical) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logicalAddresses = append(s.logicalAddresses, addr)
}

func (s *Session) removeLogicalAddress(addr address.Logical) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.logicalAddresses {
		if a == addr {
			s.logicalAddresses = append(s.logicalAddresses[:i], s.logicalAddresses[i+1:]...)
			return
		}
	}
}

// LogicalAddresses returns a snapshot of the addresses this session has
// registered.
func (s *Session) LogicalAddresses() []address.Logical {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]address.Logical, len(s.logicalAddresses))
	copy(out, s.logicalAddresses)
	return out
}

func (s *Session) noteGroup(group string) {
	if group == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.knownGroups[group] = struct{}{}
}

// KnownGroups returns a snapshot of every group this session has touched.
func (s *Session) KnownGroups() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.knownGroups))
	for g := range s.knownGroups {
		out = append(out, g)
	}
	return out
}

// Close tears the session down: closes the socket, then removes every
// routing-table and address-mapping entry this session contributed. It is
// idempotent via a compare-and-set on active, so a sweep, a CLOSE command,
// and an abnormal read error racing each other each run teardown exactly
// once between them.
func (s *Session) Close() {
	if !s.active.CompareAndSwap(true, false) {
		return
	}
	_ = s.conn.Close()

	for _, addr := range s.LogicalAddresses() {
		s.table.Remove("", addr)
		s.registry.Remove(addr)
	}
}

// WriteFrame writes a fully-encoded frame atomically with respect to any
// other write on this session (e.g. a concurrent SUSPECT notification).
func (s *Session) WriteFrame(b []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.conn.Write(b)
	return err
}

// WriteRecord encodes and writes a GossipRecord.
func (s *Session) WriteRecord(rec *wire.Record) error {
	var buf bytes.Buffer
	if err := rec.WriteTo(&buf); err != nil {
		return err
	}
	return s.WriteFrame(buf.Bytes())
}

// WriteStatus writes a single status byte (CONNECT_OK / OP_FAIL /
// DISCONNECT_OK).
func (s *Session) WriteStatus(cmd wire.Command) error {
	return s.WriteFrame([]byte{byte(cmd)})
}

// WriteGossipGetReply writes the GOSSIP_GET response: a 16-bit count
// followed by that many PingData records.
func (s *Session) WriteGossipGetReply(members []wire.PingData) error {
	var buf bytes.Buffer
	if err := wire.WriteU16(&buf, uint16(len(members))); err != nil {
		return err
	}
	for i := range members {
		if err := members[i].WriteTo(&buf); err != nil {
			return err
		}
	}
	return s.WriteFrame(buf.Bytes())
}

// RemoteAddr exposes the underlying socket's remote address, for logging.
func (s *Session) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}
