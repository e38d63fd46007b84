package transport

import (
	"context"
	"sync"
)

// MessageSink receives inbound protocol messages for one open stream.
type MessageSink interface {
	// HandleMessage processes one raw protocol message.
	HandleMessage(ctx context.Context, body []byte) error

	// Close releases the sink. Safe to call more than once.
	Close() error
}

// Engine is the protocol engine the transport layer carries bytes for.
// The transport never interprets message contents.
type Engine interface {
	// Connect is called when a new stream opens. The returned sink
	// receives the session's inbound messages; outbound messages are
	// written to the stream by the engine.
	Connect(ctx context.Context, sessionID string, stream *Stream) (MessageSink, error)
}

// Binding is the ephemeral, process-local association between a session
// id and an open output stream. It is never persisted. Close is
// idempotent and closes both the sink and the stream.
type Binding struct {
	SessionID string
	Stream    *Stream
	Sink      MessageSink

	done      chan struct{}
	closeOnce sync.Once
}

// NewBinding creates a binding for one open stream.
func NewBinding(sessionID string, stream *Stream, sink MessageSink) *Binding {
	return &Binding{
		SessionID: sessionID,
		Stream:    stream,
		Sink:      sink,
		done:      make(chan struct{}),
	}
}

// Close tears down the binding's stream and sink.
func (b *Binding) Close() {
	b.closeOnce.Do(func() {
		if b.Sink != nil {
			_ = b.Sink.Close()
		}
		b.Stream.Close()
		if b.done != nil {
			close(b.done)
		}
	})
}

// Done returns a channel closed when the binding is torn down, so the
// blocked stream handler can return on termination.
func (b *Binding) Done() <-chan struct{} {
	return b.done
}

// Registry is the process-local map of live bindings. It holds at most
// one binding per session id and is safe for concurrent use. Bindings
// in other process instances are invisible to it; routing a session to
// the instance holding its binding is the deployment layer's job.
type Registry struct {
	mu       sync.Mutex
	bindings map[string]*Binding
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{bindings: make(map[string]*Binding)}
}

// Register installs a binding, replacing any existing binding for the
// same session id. The replaced binding, if any, is returned so the
// caller can tear it down.
func (r *Registry) Register(b *Binding) *Binding {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.bindings[b.SessionID]
	r.bindings[b.SessionID] = b
	return old
}

// Get returns the binding for a session id, or nil.
func (r *Registry) Get(sessionID string) *Binding {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bindings[sessionID]
}

// Remove deletes and returns the binding for a session id, or nil when
// none exists. Removing an absent id is not an error.
func (r *Registry) Remove(sessionID string) *Binding {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.bindings[sessionID]
	delete(r.bindings, sessionID)
	return b
}

// removeBinding deletes the entry only if it still maps to b. This
// keeps a teardown of a replaced binding from evicting its successor.
func (r *Registry) removeBinding(b *Binding) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bindings[b.SessionID] != b {
		return false
	}
	delete(r.bindings, b.SessionID)
	return true
}

// Len returns the number of live bindings.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bindings)
}

// SessionIDs returns the ids of all live bindings.
func (r *Registry) SessionIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.bindings))
	for id := range r.bindings {
		ids = append(ids, id)
	}
	return ids
}
