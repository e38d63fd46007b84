package gateway

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/mcp-calendar-gateway/pkg/cache"
	cachepostgres "github.com/txn2/mcp-calendar-gateway/pkg/cache/postgres"
	cachesqlite "github.com/txn2/mcp-calendar-gateway/pkg/cache/sqlite"
	"github.com/txn2/mcp-calendar-gateway/pkg/calendar"
	"github.com/txn2/mcp-calendar-gateway/pkg/database"
	"github.com/txn2/mcp-calendar-gateway/pkg/database/migrate"
	"github.com/txn2/mcp-calendar-gateway/pkg/engine"
	"github.com/txn2/mcp-calendar-gateway/pkg/health"
	"github.com/txn2/mcp-calendar-gateway/pkg/middleware"
	"github.com/txn2/mcp-calendar-gateway/pkg/session"
	sessionpostgres "github.com/txn2/mcp-calendar-gateway/pkg/session/postgres"
	sessionsqlite "github.com/txn2/mcp-calendar-gateway/pkg/session/sqlite"
	"github.com/txn2/mcp-calendar-gateway/pkg/tools"
	"github.com/txn2/mcp-calendar-gateway/pkg/transport"
)

// DriverMemory keeps all state in process memory.
const DriverMemory = "memory"

// Gateway owns every component of the calendar gateway and exposes the
// combined HTTP handler.
type Gateway struct {
	cfg *Config
	db  *sql.DB

	sessions *session.Manager
	caches   *cache.Manager
	toolkit  *tools.Toolkit
	server   *mcp.Server

	registry  *transport.Registry
	keepalive *transport.KeepAlive
	router    *transport.Router

	checker *health.Checker
}

// New assembles a gateway from configuration. The database is opened
// and migrated eagerly; partition stores open lazily on first use.
func New(cfg *Config) (*Gateway, error) {
	g := &Gateway{
		cfg:     cfg,
		checker: health.NewChecker(),
	}

	if cfg.Database.Driver != DriverMemory {
		db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		if err := migrate.Run(db, cfg.Database.Driver); err != nil {
			_ = db.Close()
			return nil, err
		}
		g.db = db
	}

	g.sessions = session.NewManager(g.openSessionStore)
	g.caches = cache.NewManager(g.openCacheStore)

	client, err := newCalendarClient(cfg.Backend)
	if err != nil {
		g.closePartial()
		return nil, err
	}

	toolCache, err := g.caches.Partition(cache.DefaultPartition)
	if err != nil {
		_ = client.Close()
		g.closePartial()
		return nil, err
	}

	g.toolkit = tools.NewToolkit(client, toolCache, cfg.ttlPolicy())
	g.server = tools.NewServer(cfg.Server.Name, cfg.Server.Version, g.toolkit)

	g.registry = transport.NewRegistry()
	g.keepalive = transport.NewKeepAlive(nil, cfg.Server.KeepAliveInterval)
	g.router = transport.NewRouter(transport.RouterConfig{
		Registry:  g.registry,
		KeepAlive: g.keepalive,
		Engine:    engine.New(g.server),
	})
	g.checker.TrackSessions(func() int {
		return len(g.registry.SessionIDs())
	})

	slog.Info("gateway assembled",
		"name", cfg.Server.Name,
		"version", cfg.Server.Version,
		"driver", cfg.Database.Driver,
		"backend", cfg.Backend.Kind,
	)
	return g, nil
}

// openSessionStore builds the session store for one partition,
// selecting the backend by configured driver.
func (g *Gateway) openSessionStore(partition string) (*session.Store, error) {
	var backend session.Backend
	switch g.cfg.Database.Driver {
	case database.DriverPostgres:
		backend = sessionpostgres.New(g.db, sessionpostgres.Config{Partition: partition})
	case database.DriverSQLite:
		backend = sessionsqlite.New(g.db, sessionsqlite.Config{Partition: partition})
	case DriverMemory:
		backend = session.NewMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported database driver %q", g.cfg.Database.Driver)
	}

	store := session.NewStore(backend, session.Options{TTL: g.cfg.Session.TTL})
	store.StartSweepRoutine(g.cfg.Session.SweepInterval)
	return store, nil
}

// openCacheStore builds the cache store for one partition.
func (g *Gateway) openCacheStore(partition string) (*cache.Store, error) {
	var backend cache.Backend
	switch g.cfg.Database.Driver {
	case database.DriverPostgres:
		backend = cachepostgres.New(g.db, cachepostgres.Config{Partition: partition})
	case database.DriverSQLite:
		backend = cachesqlite.New(g.db, cachesqlite.Config{Partition: partition})
	case DriverMemory:
		backend = cache.NewMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported database driver %q", g.cfg.Database.Driver)
	}

	return cache.NewStore(backend, cache.Options{Policy: g.cfg.ttlPolicy()}), nil
}

// newCalendarClient builds the upstream client from configuration.
func newCalendarClient(cfg BackendConfig) (calendar.Client, error) {
	switch cfg.Kind {
	case "noop":
		return calendar.NewNoopClient(), nil
	default:
		return nil, fmt.Errorf("unsupported backend kind %q", cfg.Kind)
	}
}

// Handler returns the complete HTTP surface:
//
//	/mcp, /sse, /messages    MCP transports
//	/internal/session/...    session sub-protocol (auth when configured)
//	/internal/cache/...      cache sub-protocol (auth when configured)
//	/healthz, /readyz        health checks
func (g *Gateway) Handler() http.Handler {
	auth := middleware.Auth(middleware.AuthConfig{
		APIKeyHash: g.cfg.Auth.APIKeyHash,
		JWTSecret:  g.cfg.Auth.JWTSecret,
	})

	mux := http.NewServeMux()

	transportHandler := g.router.Handler()
	mux.Handle("/mcp", transportHandler)
	mux.Handle("/sse", transportHandler)
	mux.Handle("/messages", transportHandler)

	mux.Handle("/internal/session/",
		http.StripPrefix("/internal/session", auth(session.NewHandler(g.sessions))))
	mux.Handle("/internal/cache/",
		http.StripPrefix("/internal/cache", auth(cache.NewHandler(g.caches, g.cfg.ttlPolicy()))))

	mux.HandleFunc("/healthz", g.checker.LivenessHandler())
	mux.HandleFunc("/readyz", g.checker.ReadinessHandler())

	return mux
}

// Server returns the MCP server, for serving over transports the router
// does not own (stdio).
func (g *Gateway) Server() *mcp.Server {
	return g.server
}

// SetReady marks the gateway ready to serve.
func (g *Gateway) SetReady() {
	g.checker.SetReady()
}

// Drain marks the gateway draining and tears down every live transport
// binding, unblocking open stream handlers so the HTTP server can shut
// down without waiting out its timeout. Safe to call more than once;
// Close runs it as its first step.
func (g *Gateway) Drain() {
	g.checker.SetDraining()
	if g.router != nil {
		g.router.Shutdown()
	}
}

// Close drains live transport state and closes every component. The
// durable session and cache records are untouched; they expire on their
// own TTLs.
func (g *Gateway) Close() error {
	g.Drain()

	if g.toolkit != nil {
		if err := g.toolkit.Close(); err != nil {
			slog.Warn("closing toolkit", "error", err)
		}
	}
	return g.closePartial()
}

// closePartial closes the stores and database handle. Split out so New
// can unwind a failed assembly.
func (g *Gateway) closePartial() error {
	var firstErr error
	if g.sessions != nil {
		if err := g.sessions.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if g.caches != nil {
		if err := g.caches.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if g.db != nil {
		if err := g.db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
	}
	return firstErr
}
