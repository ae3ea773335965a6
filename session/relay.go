package session

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"gossiprouter/address"
	"gossiprouter/wire"
)

// relayUnicast looks up (group, dest) and writes a MESSAGE record carrying
// payload to that session alone. A missing destination is dropped
// silently. A write failure removes the destination's routing-table entry
// and closes the destination session rather than surfacing anything to the
// sender — the sender never learns whether delivery succeeded.
func (s *Session) relayUnicast(group string, dest address.Logical, payload []byte) {
	target, ok := s.table.Find(group, dest)
	if !ok {
		s.log.Debug("MESSAGE to unknown destination dropped", zap.Stringer("dest", dest))
		return
	}

	rec := &wire.Record{Command: wire.CmdMessage, Addr: &dest, Payload: payload}
	if err := target.WriteRecord(rec); err != nil {
		s.log.Warn("unicast relay write failed, dropping destination", zap.Stringer("dest", dest), zap.Error(err))
		s.table.Remove(group, dest)
		target.Close()
	}
}

// relayMulticast fans payload out to every session currently in group,
// skipping the sender when discardLoopbacks is set. Individual write
// failures are aggregated with multierr for observability but never abort
// the fan-out for the remaining members.
func (s *Session) relayMulticast(group string, payload []byte) {
	var errs error
	s.table.ForEachInGroup(group, func(addr address.Logical, target *Session) {
		if s.discardLoopbacks && target == s {
			return
		}
		rec := &wire.Record{Command: wire.CmdMessage, Addr: &addr, Payload: payload}
		if err := target.WriteRecord(rec); err != nil {
			errs = multierr.Append(errs, err)
			s.log.Warn("multicast relay write failed", zap.Stringer("dest", addr), zap.Error(err))
		}
	})
	if errs != nil {
		s.log.Debug("multicast relay completed with partial failures", zap.Error(errs))
	}
}
