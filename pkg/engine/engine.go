// Package engine bridges the transport layer to the MCP protocol
// engine. Each open stream becomes a custom go-sdk transport: inbound
// POST bodies are decoded into JSON-RPC messages and queued for the
// server session, and outbound messages are written to the stream as
// SSE message events. The engine never interprets tool semantics; the
// SDK owns them.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/mcp-calendar-gateway/pkg/transport"
)

// incomingBuffer bounds queued inbound messages per session.
const incomingBuffer = 16

// ErrSessionClosed is returned when a message arrives for a closed
// session connection.
var ErrSessionClosed = errors.New("engine: session closed")

// Engine adapts an mcp.Server to the transport layer's Engine
// interface. One server serves every session; each stream gets its own
// server session.
type Engine struct {
	server *mcp.Server
}

// New creates an engine around an MCP server.
func New(server *mcp.Server) *Engine {
	return &Engine{server: server}
}

// Connect opens a server session over the given stream and returns the
// sink that feeds it inbound messages.
func (e *Engine) Connect(ctx context.Context, sessionID string, stream *transport.Stream) (transport.MessageSink, error) {
	c := &conn{
		sessionID: sessionID,
		stream:    stream,
		incoming:  make(chan jsonrpc.Message, incomingBuffer),
		done:      make(chan struct{}),
	}

	if _, err := e.server.Connect(ctx, c, nil); err != nil {
		return nil, fmt.Errorf("connecting server session: %w", err)
	}
	return c, nil
}

// conn is one session's bridge. It implements the SDK's Transport and
// Connection on one side and the transport layer's MessageSink on the
// other.
type conn struct {
	sessionID string
	stream    *transport.Stream
	incoming  chan jsonrpc.Message
	done      chan struct{}
	closeOnce sync.Once
}

// Connect implements mcp.Transport.
func (c *conn) Connect(_ context.Context) (mcp.Connection, error) {
	return c, nil
}

// SessionID implements mcp.Connection.
func (c *conn) SessionID() string {
	return c.sessionID
}

// Read delivers the next inbound message to the server session.
func (c *conn) Read(ctx context.Context) (jsonrpc.Message, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, io.EOF
	case msg := <-c.incoming:
		return msg, nil
	}
}

// Write sends an outbound message to the client over the stream.
func (c *conn) Write(_ context.Context, msg jsonrpc.Message) error {
	data, err := jsonrpc.EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}
	if err := c.stream.WriteEvent("message", data); err != nil {
		return fmt.Errorf("writing message event: %w", err)
	}
	return nil
}

// HandleMessage implements transport.MessageSink: decode one raw
// message and queue it for the server session.
func (c *conn) HandleMessage(ctx context.Context, body []byte) error {
	msg, err := jsonrpc.DecodeMessage(body)
	if err != nil {
		return fmt.Errorf("decoding message: %w", err)
	}

	select {
	case <-c.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	case c.incoming <- msg:
		return nil
	}
}

// Close ends the session connection. The server session observes EOF on
// its next read. Safe to call more than once.
func (c *conn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

// Verify interface compliance.
var (
	_ transport.Engine      = (*Engine)(nil)
	_ transport.MessageSink = (*conn)(nil)
	_ mcp.Transport         = (*conn)(nil)
	_ mcp.Connection        = (*conn)(nil)
)
