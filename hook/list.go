// Package hook implements the failure-notification plug-in list: a
// registration-order, copy-on-write list of one-method listeners invoked
// whenever an owner (a Session, in this router) terminates abnormally.
//
// The list is generic over the owner type so that it carries no dependency
// on the session package — the capability is "a thing that tore down and a
// reason why", nothing more (spec.md §9's guidance to model this as
// function values / one-method objects rather than a class hierarchy).
package hook

import "sync"

// Listener is notified when owner S terminates abnormally.
type Listener[S any] interface {
	ConnectionTorn(owner S, cause error)
}

// ListenerFunc adapts a plain function to Listener.
type ListenerFunc[S any] func(owner S, cause error)

func (f ListenerFunc[S]) ConnectionTorn(owner S, cause error) {
	f(owner, cause)
}

// List is a copy-on-write collection of Listeners, invoked in registration
// order.
type List[S any] struct {
	mu        sync.Mutex
	listeners []Listener[S]
}

func NewList[S any]() *List[S] {
	return &List[S]{}
}

// Register appends listener to the list.
func (l *List[S]) Register(listener Listener[S]) {
	l.mu.Lock()
	defer l.mu.Unlock()
	next := make([]Listener[S], len(l.listeners)+1)
	copy(next, l.listeners)
	next[len(l.listeners)] = listener
	l.listeners = next
}

// Notify invokes every registered listener, in registration order.
func (l *List[S]) Notify(owner S, cause error) {
	l.mu.Lock()
	listeners := l.listeners
	l.mu.Unlock()
	for _, ln := range listeners {
		ln.ConnectionTorn(owner, cause)
	}
}
