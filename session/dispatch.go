package session

import (
	"errors"
	"net"
	"time"

	"go.uber.org/zap"

	"gossiprouter/address"
	"gossiprouter/wire"
)

func groupOf(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// readLoop decodes and dispatches records until the connection yields a
// non-timeout error. A socket read timeout is retried forever; it never
// tears the session down (spec requirement: SO_TIMEOUT must not terminate
// a session).
func (s *Session) readLoop() {
	for {
		if s.readTimeout > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		}

		rec, err := s.reader(s.conn)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if !s.IsActive() {
				// Our own Close() (CLOSE command, TTL sweep) already closed
				// the socket out from under this read; this is an orderly
				// shutdown, not an abnormal termination, so no SUSPECT fires.
				return
			}
			s.hooks.Notify(s, err)
			return
		}

		s.touch()
		s.noteGroup(groupOf(rec.Group))
		s.dispatch(rec)
	}
}

func (s *Session) dispatch(rec *wire.Record) {
	switch rec.Command {
	case wire.CmdConnect:
		s.handleConnect(rec)
	case wire.CmdDisconnect:
		if err := s.handleDisconnect(rec); err != nil {
			s.log.Warn("DISCONNECT write failed", zap.Error(err))
		}
	case wire.CmdMessage:
		s.handleMessage(rec)
	case wire.CmdGossipGet:
		if err := s.handleGossipGet(rec); err != nil {
			s.log.Warn("GOSSIP_GET reply failed", zap.Error(err))
		}
	case wire.CmdPing:
		// no-op; touch() in readLoop already refreshed the timestamp.
	case wire.CmdClose:
		s.Close()
	default:
		s.log.Warn("ignoring unknown command", zap.Stringer("command", rec.Command))
	}
}

// handleConnect implements the CONNECT handshake in spec order: close any
// prior session holding addr, bind the name, register the address in the
// routing table, set the physical mapping, then reply. Routing-table state
// is appended only after the steps that can be rolled back have all
// succeeded; the only step that can actually fail at this layer is the
// final write, so a write failure rolls back the registration before
// tearing the session down.
func (s *Session) handleConnect(rec *wire.Record) {
	if rec.Addr == nil {
		s.log.Warn("CONNECT without addr")
		s.failConnect()
		return
	}
	addr := *rec.Addr
	group := groupOf(rec.Group)

	if s.registry.HasPhysical(addr) {
		var prior *Session
		var found bool
		if group != "" {
			prior, found = s.table.Find(group, addr)
		} else {
			prior, found = s.table.FindAcrossGroups(addr)
		}
		if found && prior != s {
			s.log.Info("closing prior session for reconnecting address", zap.Stringer("addr", addr))
			prior.Close()
		}
	}

	if rec.LogicalName != nil {
		s.registry.BindName(addr, *rec.LogicalName)
	}

	s.addLogicalAddress(addr)
	s.table.Add(group, addr, s)
	s.noteGroup(group)

	if rec.Physical != nil {
		s.registry.SetPhysical(addr, *rec.Physical)
	}

	if err := s.WriteStatus(wire.CmdConnectOK); err != nil {
		s.log.Warn("CONNECT_OK write failed, rolling back", zap.Error(err))
		s.table.Remove(group, addr)
		s.registry.Remove(addr)
		s.removeLogicalAddress(addr)
		s.Close()
	}
}

// failConnect replies OP_FAIL to a CONNECT this session cannot honor. The
// write error, if any, is swallowed: the read loop's next read will
// surface the same dead socket.
func (s *Session) failConnect() {
	_ = s.WriteStatus(wire.CmdOpFail)
}

func (s *Session) handleDisconnect(rec *wire.Record) error {
	if rec.Addr == nil {
		return s.WriteStatus(wire.CmdOpFail)
	}
	addr := *rec.Addr
	group := groupOf(rec.Group)

	s.table.Remove(group, addr)
	s.registry.Remove(addr)
	s.removeLogicalAddress(addr)

	return s.WriteStatus(wire.CmdDisconnectOK)
}

func (s *Session) handleMessage(rec *wire.Record) {
	if len(rec.Payload) == 0 {
		s.log.Debug("dropping MESSAGE with empty payload")
		return
	}
	group := groupOf(rec.Group)
	if rec.Addr != nil {
		s.relayUnicast(group, *rec.Addr, rec.Payload)
		return
	}
	s.relayMulticast(group, rec.Payload)
}

func (s *Session) handleGossipGet(rec *wire.Record) error {
	group := groupOf(rec.Group)
	members := s.table.Members(group)

	pings := make([]wire.PingData, 0, len(members))
	for _, addr := range members {
		var namePtr *string
		if name, ok := s.registry.Name(addr); ok {
			namePtr = &name
		}
		var physPtr *address.Physical
		if phys, ok := s.registry.Physical(addr); ok {
			physPtr = &phys
		}
		pings = append(pings, wire.PingData{
			LogicalAddr: addr,
			IsServer:    true,
			LogicalName: namePtr,
			Physical:    physPtr,
		})
	}
	return s.WriteGossipGetReply(pings)
}
