package transport

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultKeepAliveInterval is the heartbeat period shared by all
// sessions.
const DefaultKeepAliveInterval = 30 * time.Second

// KeepAlive runs one periodic heartbeat timer per session id. A timer
// stops itself as soon as its ping callback reports the session is
// gone, so a timer can never outlive its binding. Starting a timer for
// an id that already has one first cancels the old timer; two timers
// never run concurrently for one id.
type KeepAlive struct {
	clock    Clock
	interval time.Duration

	mu     sync.Mutex
	timers map[string]chan struct{}
}

// NewKeepAlive creates a scheduler. A zero interval means
// DefaultKeepAliveInterval.
func NewKeepAlive(clock Clock, interval time.Duration) *KeepAlive {
	if clock == nil {
		clock = RealClock()
	}
	if interval == 0 {
		interval = DefaultKeepAliveInterval
	}
	return &KeepAlive{
		clock:    clock,
		interval: interval,
		timers:   make(map[string]chan struct{}),
	}
}

// Start begins the heartbeat timer for a session. On each tick, ping is
// invoked; when it returns false the timer stops itself and is removed.
// ping must report false when the binding no longer exists or the
// heartbeat write failed.
func (k *KeepAlive) Start(sessionID string, ping func() bool) {
	stop := make(chan struct{})

	k.mu.Lock()
	if old, ok := k.timers[sessionID]; ok {
		close(old)
	}
	k.timers[sessionID] = stop
	k.mu.Unlock()

	go k.run(sessionID, stop, ping)
}

// Stop cancels the timer for a session. Stopping an absent id is a
// no-op, so teardown stays idempotent.
func (k *KeepAlive) Stop(sessionID string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if stop, ok := k.timers[sessionID]; ok {
		close(stop)
		delete(k.timers, sessionID)
	}
}

// Active returns the number of running timers.
func (k *KeepAlive) Active() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.timers)
}

// StopAll cancels every timer. Used during shutdown.
func (k *KeepAlive) StopAll() {
	k.mu.Lock()
	defer k.mu.Unlock()

	for id, stop := range k.timers {
		close(stop)
		delete(k.timers, id)
	}
}

// run is the timer goroutine for one session.
func (k *KeepAlive) run(sessionID string, stop chan struct{}, ping func() bool) {
	ticker := k.clock.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			if ping() {
				continue
			}
			slog.Debug("keepalive: session gone, stopping timer", "session_id", sessionID)
			k.remove(sessionID, stop)
			return
		}
	}
}

// remove clears the timer entry only if it still belongs to this run.
func (k *KeepAlive) remove(sessionID string, stop chan struct{}) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.timers[sessionID] == stop {
		delete(k.timers, sessionID)
	}
}
