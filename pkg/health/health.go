// Package health provides readiness state tracking and HTTP health
// check handlers for the gateway.
package health

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

// Readiness states.
const (
	stateStarting int32 = iota
	stateReady
	stateDraining
)

// Checker tracks the gateway's readiness state. Safe for concurrent use.
type Checker struct {
	state    atomic.Int32
	sessions func() int
}

// NewChecker creates a Checker in the starting state.
func NewChecker() *Checker {
	return &Checker{}
}

// TrackSessions registers a gauge for live transport sessions, reported
// by the readiness endpoint. Must be called before the handlers serve.
func (c *Checker) TrackSessions(fn func() int) {
	c.sessions = fn
}

// SetReady transitions to the ready state.
func (c *Checker) SetReady() {
	c.state.Store(stateReady)
}

// SetDraining transitions to the draining state.
func (c *Checker) SetDraining() {
	c.state.Store(stateDraining)
}

// IsReady returns true when the state is ready.
func (c *Checker) IsReady() bool {
	return c.state.Load() == stateReady
}

// State returns the current state as a string.
func (c *Checker) State() string {
	switch c.state.Load() {
	case stateReady:
		return "ready"
	case stateDraining:
		return "draining"
	default:
		return "starting"
	}
}

// statusResponse is the JSON body returned by health endpoints.
type statusResponse struct {
	Status            string `json:"status"`
	TransportSessions *int   `json:"transportSessions,omitempty"`
}

// LivenessHandler always responds 200; wire it to /healthz.
func (*Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, statusResponse{Status: "ok"})
	}
}

// ReadinessHandler responds 200 when ready and 503 while starting or
// draining; wire it to /readyz. The body carries the live transport
// session count when a gauge is registered.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		code := http.StatusOK
		if !c.IsReady() {
			code = http.StatusServiceUnavailable
		}
		body := statusResponse{Status: c.State()}
		if c.sessions != nil {
			n := c.sessions()
			body.TransportSessions = &n
		}
		writeStatus(w, code, body)
	}
}

func writeStatus(w http.ResponseWriter, code int, body statusResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
