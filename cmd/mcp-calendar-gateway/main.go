// Package main provides the entry point for the mcp-calendar-gateway
// server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/mcp-calendar-gateway/internal/server"
	"github.com/txn2/mcp-calendar-gateway/pkg/gateway"
)

// shutdownTimeout bounds graceful HTTP server shutdown.
const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type serverOptions struct {
	configPath  string
	transport   string
	address     string
	showVersion bool
}

func parseFlags() serverOptions {
	opts := serverOptions{}
	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.transport, "transport", "", "Transport type: http, stdio (overrides config)")
	flag.StringVar(&opts.address, "address", "", "Server address for HTTP transport (overrides config)")
	flag.BoolVar(&opts.showVersion, "version", false, "Show version and exit")
	flag.Parse()
	return opts
}

func setupSignalHandler() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx
}

func run() error {
	opts := parseFlags()

	if opts.showVersion {
		fmt.Printf("mcp-calendar-gateway version %s\n", server.Version)
		return nil
	}

	ctx := setupSignalHandler()

	gw, cfg, err := server.New(opts.configPath)
	if err != nil {
		return err
	}
	defer func() { _ = gw.Close() }()

	applyFlagOverrides(cfg, opts)

	switch cfg.Server.Transport {
	case "http":
		return serveHTTP(ctx, gw, cfg.Server.Address)
	case "stdio":
		return serveStdio(ctx, gw)
	default:
		return fmt.Errorf("unknown transport: %s", cfg.Server.Transport)
	}
}

// applyFlagOverrides lets CLI flags win over file configuration.
func applyFlagOverrides(cfg *gateway.Config, opts serverOptions) {
	if opts.transport != "" {
		cfg.Server.Transport = opts.transport
	}
	if opts.address != "" {
		cfg.Server.Address = opts.address
	}
}

// serveHTTP runs the gateway behind an HTTP server until the context is
// cancelled, then drains gracefully.
func serveHTTP(ctx context.Context, gw *gateway.Gateway, address string) error {
	srv := &http.Server{
		Addr:              address,
		Handler:           gw.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "address", address)
		errCh <- srv.ListenAndServe()
	}()
	gw.SetReady()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")

	// Tear down live streams first: their handlers block until the
	// binding closes, and Shutdown waits for them.
	gw.Drain()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// serveStdio runs a single MCP session over stdin and stdout.
func serveStdio(ctx context.Context, gw *gateway.Gateway) error {
	gw.SetReady()

	session, err := gw.Server().Connect(ctx, &mcp.StdioTransport{}, nil)
	if err != nil {
		return fmt.Errorf("connecting stdio session: %w", err)
	}
	if err := session.Wait(); err != nil {
		return fmt.Errorf("stdio session: %w", err)
	}
	return nil
}
