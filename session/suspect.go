package session

import (
	"go.uber.org/zap"

	"gossiprouter/address"
	"gossiprouter/hook"
	"gossiprouter/wire"
)

// SuspectNotifier is the default failure-notification listener: on abnormal
// termination it walks every group the torn session had touched and sends
// a SUSPECT record, naming each of the torn session's logical addresses,
// to every other session still registered there. Errors during
// notification are swallowed — the destination may itself already be
// dead — so this never reports anything back to the caller.
type SuspectNotifier struct {
	log *zap.Logger
}

func NewSuspectNotifier(log *zap.Logger) *SuspectNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &SuspectNotifier{log: log}
}

var _ hook.Listener[*Session] = (*SuspectNotifier)(nil)

func (n *SuspectNotifier) ConnectionTorn(owner *Session, cause error) {
	deadAddrs := owner.LogicalAddresses()
	if len(deadAddrs) == 0 {
		return
	}

	targets := make(map[*Session]struct{})
	for _, group := range owner.KnownGroups() {
		owner.table.ForEachInGroup(group, func(_ address.Logical, target *Session) {
			if target == owner {
				return
			}
			targets[target] = struct{}{}
		})
	}

	for target := range targets {
		for _, deadAddr := range deadAddrs {
			addr := deadAddr
			rec := &wire.Record{Command: wire.CmdSuspect, Addr: &addr}
			if err := target.WriteRecord(rec); err != nil {
				n.log.Debug("SUSPECT delivery failed, destination likely already dead",
					zap.Stringer("target", target.RemoteAddr()),
					zap.Stringer("addr", addr),
					zap.Error(err))
			}
		}
	}
}
