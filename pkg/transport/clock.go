// Package transport implements the gateway's session transport layer:
// the process-local registry of open streams, the per-session keep-alive
// scheduler, and the protocol router that multiplexes the modern unified
// endpoint and the legacy split endpoints onto session identifiers.
package transport

import "time"

// Clock abstracts wall-clock time and ticker creation so timer behavior
// is testable without real waits.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker is the subset of time.Ticker the scheduler needs.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// realClock implements Clock with the time package.
type realClock struct{}

// RealClock returns the wall-clock implementation of Clock.
func RealClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) NewTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (t realTicker) Chan() <-chan time.Time {
	return t.t.C
}

func (t realTicker) Stop() {
	t.t.Stop()
}
