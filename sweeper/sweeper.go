// Package sweeper implements the router's idle-eviction timer: a single
// periodic task, grounded in org.jgroups.stack.GossipRouter.sweep(), that
// closes any victim whose last-activity timestamp has aged past a
// configured TTL.
package sweeper

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Victim is anything the sweeper can age-check and evict. The sweeper does
// not dedupe victims itself; it closes each one its Source returns, and
// routing.Table[S].Sessions returns each session once.
type Victim interface {
	LastActivityMillis() int64
	Close()
}

// Source supplies the current set of victims to scan, typically
// routing.Table[S].Sessions.
type Source[S Victim] func() []S

// Sweeper runs one ticker-driven goroutine that, every interval, scans the
// current victim set outside any lock, collects everything older than TTL
// into a victim list, and only then closes each one — matching the
// original's two-phase "collect, then close" discipline so closing a
// victim never mutates the structure being scanned.
type Sweeper[S Victim] struct {
	interval time.Duration
	ttl      time.Duration
	source   Source[S]
	log      *zap.Logger

	mu      sync.Mutex
	ticker  *time.Ticker
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// New constructs a Sweeper. If ttl <= 0 the sweeper never evicts anything
// (spec: the periodic timer only fires if expiry_ms > 0); Start still
// succeeds but launches no goroutine and no ticker.
func New[S Victim](interval, ttl time.Duration, source Source[S], log *zap.Logger) *Sweeper[S] {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper[S]{interval: interval, ttl: ttl, source: source, log: log}
}

// Start launches the sweeper's goroutine. Starting an already-running
// sweeper is a no-op.
func (sw *Sweeper[S]) Start() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.running || sw.ttl <= 0 {
		return
	}
	sw.ticker = time.NewTicker(sw.interval)
	sw.stopCh = make(chan struct{})
	sw.doneCh = make(chan struct{})
	sw.running = true

	go sw.run(sw.ticker, sw.stopCh, sw.doneCh)
}

func (sw *Sweeper[S]) run(ticker *time.Ticker, stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	for {
		select {
		case <-stopCh:
			ticker.Stop()
			return
		case <-ticker.C:
			sw.sweepOnce()
		}
	}
}

func (sw *Sweeper[S]) sweepOnce() {
	now := time.Now().UnixMilli()
	ttlMillis := sw.ttl.Milliseconds()

	var victims []S
	for _, v := range sw.source() {
		if now-v.LastActivityMillis() > ttlMillis {
			victims = append(victims, v)
		}
	}
	if len(victims) == 0 {
		return
	}

	for _, v := range victims {
		v.Close()
	}
	sw.log.Debug("swept idle sessions", zap.Int("count", len(victims)))
}

// Stop halts the sweeper goroutine and waits for it to exit. Stopping an
// already-stopped (or never-started) sweeper is a no-op.
func (sw *Sweeper[S]) Stop() {
	sw.mu.Lock()
	if !sw.running {
		sw.mu.Unlock()
		return
	}
	sw.running = false
	stopCh := sw.stopCh
	doneCh := sw.doneCh
	sw.mu.Unlock()

	close(stopCh)
	<-doneCh
}
