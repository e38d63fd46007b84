package transport

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// SessionIDHeader carries the session id on the unified endpoint.
const SessionIDHeader = "Mcp-Session-Id"

// legacySessionParam carries the session id on the legacy message
// endpoint.
const legacySessionParam = "sessionId"

// Router dispatches the two transport variants onto the registry:
//
//	GET    /mcp                 establish unified stream
//	POST   /mcp                 send message (header session id)
//	DELETE /mcp                 terminate session
//	GET    /sse                 establish legacy stream
//	POST   /messages?sessionId= send message (legacy)
//
// Both variants share identical session semantics.
type Router struct {
	registry  *Registry
	keepalive *KeepAlive
	engine    Engine
	genID     func() string
}

// RouterConfig configures a Router.
type RouterConfig struct {
	Registry  *Registry
	KeepAlive *KeepAlive
	Engine    Engine

	// GenerateID overrides session id generation, for tests.
	GenerateID func() string
}

// NewRouter creates a protocol router.
func NewRouter(cfg RouterConfig) *Router {
	if cfg.GenerateID == nil {
		cfg.GenerateID = uuid.NewString
	}
	return &Router{
		registry:  cfg.Registry,
		keepalive: cfg.KeepAlive,
		engine:    cfg.Engine,
		genID:     cfg.GenerateID,
	}
}

// Handler returns the HTTP handler serving both transport variants.
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", rt.handleUnified)
	mux.HandleFunc("/sse", rt.handleLegacyStream)
	mux.HandleFunc("/messages", rt.handleLegacyMessage)
	return mux
}

// Shutdown tears down every live binding and timer.
func (rt *Router) Shutdown() {
	for _, id := range rt.registry.SessionIDs() {
		rt.teardown(id)
	}
	rt.keepalive.StopAll()
}

// handleUnified serves the modern single-endpoint variant, multiplexing
// by HTTP verb.
func (rt *Router) handleUnified(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rt.handleStream(w, r)
	case http.MethodPost:
		rt.handleMessage(w, r, r.Header.Get(SessionIDHeader))
	case http.MethodDelete:
		rt.handleTerminate(w, r)
	default:
		writeTransportError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleLegacyStream serves GET on the legacy stream endpoint.
func (rt *Router) handleLegacyStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeTransportError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rt.handleStream(w, r)
}

// handleLegacyMessage serves POST on the legacy message endpoint, with
// the session id in a query parameter.
func (rt *Router) handleLegacyMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeTransportError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rt.handleMessage(w, r, r.URL.Query().Get(legacySessionParam))
}

// handleStream establishes a new output stream. A fresh binding is
// always created; an existing binding under the same id is replaced
// without negotiation. The handler then blocks until the connection
// closes, which is the stream-close hook tearing the binding down.
func (rt *Router) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(SessionIDHeader)
	if sessionID == "" {
		sessionID = rt.genID()
		w.Header().Set(SessionIDHeader, sessionID)
	}

	stream, err := NewStream(w)
	if err != nil {
		writeTransportError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	sink, err := rt.engine.Connect(r.Context(), sessionID, stream)
	if err != nil {
		slog.Error("transport: engine connect failed", "session_id", sessionID, "error", err)
		stream.Close()
		return
	}

	binding := NewBinding(sessionID, stream, sink)
	if old := rt.registry.Register(binding); old != nil {
		old.Close()
	}
	rt.startKeepAlive(sessionID)

	slog.Debug("transport: stream established", "session_id", sessionID)

	// Block until the client disconnects or the session is terminated.
	select {
	case <-r.Context().Done():
	case <-binding.Done():
	}
	rt.teardownBinding(binding)
}

// handleMessage forwards a message to the bound stream's handler, or
// treats the request as session initialization when no binding exists.
func (rt *Router) handleMessage(w http.ResponseWriter, r *http.Request, sessionID string) {
	if sessionID != "" {
		if binding := rt.registry.Get(sessionID); binding != nil {
			rt.forwardMessage(w, r, binding)
			return
		}
	}

	// Session initialization: allocate an id if needed and acknowledge
	// without creating a binding.
	if sessionID == "" {
		sessionID = rt.genID()
	}
	w.Header().Set(SessionIDHeader, sessionID)
	writeTransportJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// forwardMessage hands the request body to the binding's message sink.
// Nothing is written before the sink returns, so a handler failure can
// still produce a clean 500.
func (rt *Router) forwardMessage(w http.ResponseWriter, r *http.Request, binding *Binding) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeTransportError(w, http.StatusBadRequest, "reading request body")
		return
	}

	if err := binding.Sink.HandleMessage(r.Context(), body); err != nil {
		slog.Error("transport: message handler failed", "session_id", binding.SessionID, "error", err)
		writeTransportError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeTransportJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// handleTerminate serves DELETE: tears down the binding when present.
// Termination never touches the durable session record; that expires on
// its own TTL.
func (rt *Router) handleTerminate(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(SessionIDHeader)
	if sessionID == "" {
		writeTransportError(w, http.StatusBadRequest, "missing session id")
		return
	}

	if !rt.teardown(sessionID) {
		writeTransportError(w, http.StatusNotFound, "session not found")
		return
	}
	writeTransportJSON(w, http.StatusAccepted, map[string]string{"status": "terminated"})
}

// startKeepAlive begins heartbeats for a session. The timer pings the
// current binding; a missing binding or a failed write stops the timer
// and converges on the shared teardown path.
func (rt *Router) startKeepAlive(sessionID string) {
	rt.keepalive.Start(sessionID, func() bool {
		binding := rt.registry.Get(sessionID)
		if binding == nil {
			return false
		}
		if err := binding.Stream.WriteComment("keepalive"); err != nil {
			slog.Debug("transport: keepalive write failed", "session_id", sessionID, "error", err)
			rt.teardownBinding(binding)
			return false
		}
		return true
	})
}

// teardown removes the binding for a session id, stops its timer, and
// closes it. Returns false when no binding existed. Idempotent.
func (rt *Router) teardown(sessionID string) bool {
	binding := rt.registry.Remove(sessionID)
	if binding == nil {
		return false
	}
	rt.keepalive.Stop(sessionID)
	binding.Close()
	slog.Debug("transport: binding torn down", "session_id", sessionID)
	return true
}

// teardownBinding tears down one specific binding. When the binding has
// already been replaced in the registry, its successor and timer are
// left untouched.
func (rt *Router) teardownBinding(binding *Binding) {
	if rt.registry.removeBinding(binding) {
		rt.keepalive.Stop(binding.SessionID)
	}
	binding.Close()
}

// writeTransportJSON writes a JSON response.
func writeTransportJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeTransportError writes a JSON error response.
func writeTransportError(w http.ResponseWriter, status int, msg string) {
	writeTransportJSON(w, status, map[string]string{"error": msg})
}
