package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/mcp-calendar-gateway/pkg/gateway"
)

func TestApplyFlagOverrides(t *testing.T) {
	t.Run("flags win over config", func(t *testing.T) {
		cfg := gateway.DefaultConfig()
		applyFlagOverrides(cfg, serverOptions{transport: "stdio", address: ":7070"})

		assert.Equal(t, "stdio", cfg.Server.Transport)
		assert.Equal(t, ":7070", cfg.Server.Address)
	})

	t.Run("empty flags leave config alone", func(t *testing.T) {
		cfg := gateway.DefaultConfig()
		applyFlagOverrides(cfg, serverOptions{})

		assert.Equal(t, "http", cfg.Server.Transport)
		assert.Equal(t, ":8080", cfg.Server.Address)
	})
}

// TestServeHTTP_ShutdownWithOpenStream verifies a live stream does not
// make shutdown wait out its timeout: the transport drains first, the
// stream handler returns, and the server closes promptly.
func TestServeHTTP_ShutdownWithOpenStream(t *testing.T) {
	gw, err := gateway.New(gateway.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Close() })

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- serveHTTP(ctx, gw, addr) }()

	base := "http://" + addr
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond, "server never came up")

	resp, err := http.Get(base + "/mcp")
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Wait for the stream's binding to register, visible through the
	// readiness gauge.
	require.Eventually(t, func() bool {
		r, err := http.Get(base + "/readyz")
		if err != nil {
			return false
		}
		defer func() { _ = r.Body.Close() }()
		body, err := io.ReadAll(r.Body)
		return err == nil && strings.Contains(string(body), `"transportSessions":1`)
	}, 5*time.Second, 20*time.Millisecond, "stream never registered")

	start := time.Now()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("serveHTTP did not return")
	}
	assert.Less(t, time.Since(start), shutdownTimeout,
		"drain must end the stream instead of waiting out the shutdown timeout")
}
