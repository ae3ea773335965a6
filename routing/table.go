// Package routing implements the router's concurrent two-level index:
// group name -> logical address -> session handle.
package routing

import (
	"sync"

	"gossiprouter/address"
)

// Table is the concurrent two-level group -> logical address -> session
// index described in spec.md §4.3. S is the session handle type; Table
// never calls a method on S, it only stores and hands back handles — this
// keeps the routing table from holding a compile-time reference to the
// session package, and sessions from needing to embed a back-pointer into
// the table (spec.md §9's "non-owning handle" design note). S must be
// comparable so Sessions can dedupe a handle registered under several
// (group, addr) pairs.
type Table[S comparable] struct {
	mu     sync.Mutex // guards structural mutation of the outer map: create/delete a group
	groups map[string]*group[S]
}

type group[S comparable] struct {
	mu      sync.Mutex // serializes mutation and fan-out within one group
	members map[address.Logical]S
}

func NewTable[S comparable]() *Table[S] {
	return &Table[S]{groups: make(map[string]*group[S])}
}

// Add inserts (addr -> session) into groupName, creating the group if this
// is its first member. Concurrent adds to the same group never race the
// outer map's create, and the insert itself also happens under the table's
// own monitor, so it cannot land in a group removeGroupIfEmpty has just
// deleted.
func (t *Table[S]) Add(groupName string, addr address.Logical, session S) {
	t.mu.Lock()
	defer t.mu.Unlock()
	g := t.getOrCreateGroup(groupName)
	g.mu.Lock()
	g.members[addr] = session
	g.mu.Unlock()
}

// getOrCreateGroup must be called with t.mu held.
func (t *Table[S]) getOrCreateGroup(name string) *group[S] {
	g, ok := t.groups[name]
	if !ok {
		g = &group[S]{members: make(map[address.Logical]S)}
		t.groups[name] = g
	}
	return g
}

// Remove removes addr from groupName's member map. If groupName is "", addr
// is removed from every group. Any inner map that transitions to empty has
// its group key removed too, via a check-then-remove held on the table's
// monitor so a concurrent Add can't race the removal.
func (t *Table[S]) Remove(groupName string, addr address.Logical) {
	if groupName != "" {
		t.removeFromGroup(groupName, addr)
		return
	}
	for _, name := range t.Groups() {
		t.removeFromGroup(name, addr)
	}
}

func (t *Table[S]) removeFromGroup(groupName string, addr address.Logical) {
	t.mu.Lock()
	g, ok := t.groups[groupName]
	t.mu.Unlock()
	if !ok {
		return
	}
	g.mu.Lock()
	delete(g.members, addr)
	empty := len(g.members) == 0
	g.mu.Unlock()

	if empty {
		t.removeGroupIfEmpty(groupName)
	}
}

func (t *Table[S]) removeGroupIfEmpty(groupName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	g, ok := t.groups[groupName]
	if !ok {
		return
	}
	g.mu.Lock()
	empty := len(g.members) == 0
	g.mu.Unlock()
	if empty {
		delete(t.groups, groupName)
	}
}

// Find returns the session registered at (groupName, addr), if any.
func (t *Table[S]) Find(groupName string, addr address.Logical) (S, bool) {
	t.mu.Lock()
	g, ok := t.groups[groupName]
	t.mu.Unlock()
	if !ok {
		var zero S
		return zero, false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.members[addr]
	return s, ok
}

// FindAcrossGroups scans every group for addr and returns the first session
// found, used by the CONNECT handshake's existing-connection check when the
// incoming record carries no group to scope the search to.
func (t *Table[S]) FindAcrossGroups(addr address.Logical) (S, bool) {
	for _, name := range t.Groups() {
		if s, ok := t.Find(name, addr); ok {
			return s, true
		}
	}
	var zero S
	return zero, false
}

// Members returns a weakly-consistent snapshot of the addresses registered
// in groupName — a session joining or leaving mid-snapshot may or may not
// be reflected, by design (spec.md §5).
func (t *Table[S]) Members(groupName string) []address.Logical {
	t.mu.Lock()
	g, ok := t.groups[groupName]
	t.mu.Unlock()
	if !ok {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]address.Logical, 0, len(g.members))
	for addr := range g.members {
		out = append(out, addr)
	}
	return out
}

// ForEachInGroup invokes fn once per (address, session) currently in
// groupName, holding the group's monitor for the duration so the fan-out
// serializes with any concurrent Add/Remove targeting the same group.
func (t *Table[S]) ForEachInGroup(groupName string, fn func(address.Logical, S)) {
	t.mu.Lock()
	g, ok := t.groups[groupName]
	t.mu.Unlock()
	if !ok {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for addr, s := range g.members {
		fn(addr, s)
	}
}

// Groups returns a snapshot of every non-empty group name currently in the
// table.
func (t *Table[S]) Groups() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.groups))
	for name := range t.groups {
		out = append(out, name)
	}
	return out
}

// Sessions returns every distinct session handle registered anywhere in the
// table, deduplicated — used by the sweeper, which treats a session as a
// whole rather than per (group, addr) entry.
func (t *Table[S]) Sessions() []S {
	t.mu.Lock()
	groups := make([]*group[S], 0, len(t.groups))
	for _, g := range t.groups {
		groups = append(groups, g)
	}
	t.mu.Unlock()

	seen := make(map[S]struct{})
	var out []S
	for _, g := range groups {
		g.mu.Lock()
		for _, s := range g.members {
			if _, ok := seen[s]; !ok {
				seen[s] = struct{}{}
				out = append(out, s)
			}
		}
		g.mu.Unlock()
	}
	return out
}

// Clear empties the table.
func (t *Table[S]) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.groups = make(map[string]*group[S])
}
