// Package tools provides the calendar MCP toolkit: the tools and
// resource templates exposed to agents, reading through the result
// cache and falling back to the upstream calendar client.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/mcp-calendar-gateway/pkg/cache"
	"github.com/txn2/mcp-calendar-gateway/pkg/calendar"
)

// Toolkit provides the calendar MCP tools.
type Toolkit struct {
	client calendar.Client
	cache  *cache.Store
	policy cache.TTLPolicy
}

// NewToolkit creates a toolkit over the given client and cache.
func NewToolkit(client calendar.Client, store *cache.Store, policy cache.TTLPolicy) *Toolkit {
	return &Toolkit{
		client: client,
		cache:  store,
		policy: policy,
	}
}

// NewServer creates an MCP server with the toolkit registered.
func NewServer(name, version string, t *Toolkit) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil)
	t.Register(server)
	return server
}

// Register registers all tools and resource templates with the server.
func (t *Toolkit) Register(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_calendars",
		Description: "List the calendars owned by a user",
	}, t.handleListCalendars)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_events",
		Description: "List the events in one of a user's calendars",
	}, t.handleListEvents)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_preferences",
		Description: "Get a user's calendar preferences",
	}, t.handleGetPreferences)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "clear_cache",
		Description: "Clear all cached calendar data for a user",
	}, t.handleClearCache)

	t.registerResourceTemplates(server)
}

// Close closes the upstream client.
func (t *Toolkit) Close() error {
	return t.client.Close()
}

type listCalendarsArgs struct {
	UserID string `json:"user_id,omitempty" jsonschema:"the user whose calendars to list"`
}

func (t *Toolkit) handleListCalendars(ctx context.Context, _ *mcp.CallToolRequest, args listCalendarsArgs) (*mcp.CallToolResult, any, error) {
	if args.UserID == "" {
		return errorResult("user_id is required"), nil, nil
	}

	key := cache.NewKey(cache.CategoryCalendars, args.UserID, "")
	data, err := t.cachedFetch(ctx, key, func(ctx context.Context) (any, error) {
		return t.client.ListCalendars(ctx, args.UserID)
	})
	if err != nil {
		return errorResult("listing calendars failed"), nil, nil
	}
	return textResult(data), nil, nil
}

type listEventsArgs struct {
	UserID     string `json:"user_id,omitempty" jsonschema:"the user whose events to list"`
	CalendarID string `json:"calendar_id,omitempty" jsonschema:"the calendar to list events from"`
}

func (t *Toolkit) handleListEvents(ctx context.Context, _ *mcp.CallToolRequest, args listEventsArgs) (*mcp.CallToolResult, any, error) {
	if args.UserID == "" || args.CalendarID == "" {
		return errorResult("user_id and calendar_id are required"), nil, nil
	}

	key := cache.NewKey(cache.CategoryEvents, args.UserID, args.CalendarID)
	data, err := t.cachedFetch(ctx, key, func(ctx context.Context) (any, error) {
		return t.client.ListEvents(ctx, args.UserID, args.CalendarID)
	})
	if err != nil {
		return errorResult("listing events failed"), nil, nil
	}
	return textResult(data), nil, nil
}

type getPreferencesArgs struct {
	UserID string `json:"user_id,omitempty" jsonschema:"the user whose preferences to get"`
}

func (t *Toolkit) handleGetPreferences(ctx context.Context, _ *mcp.CallToolRequest, args getPreferencesArgs) (*mcp.CallToolResult, any, error) {
	if args.UserID == "" {
		return errorResult("user_id is required"), nil, nil
	}

	key := cache.NewKey(cache.CategoryPreferences, args.UserID, "")
	data, err := t.cachedFetch(ctx, key, func(ctx context.Context) (any, error) {
		return t.client.GetPreferences(ctx, args.UserID)
	})
	if err != nil {
		return errorResult("getting preferences failed"), nil, nil
	}
	return textResult(data), nil, nil
}

type clearCacheArgs struct {
	UserID string `json:"user_id,omitempty" jsonschema:"the user whose cached data to clear"`
}

func (t *Toolkit) handleClearCache(ctx context.Context, _ *mcp.CallToolRequest, args clearCacheArgs) (*mcp.CallToolResult, any, error) {
	if args.UserID == "" {
		return errorResult("user_id is required"), nil, nil
	}

	removed, err := t.cache.ClearForOwner(ctx, args.UserID)
	if err != nil {
		return errorResult("clearing cache failed"), nil, nil
	}
	return textResult([]byte(fmt.Sprintf(`{"removed":%d}`, removed))), nil, nil
}

// cachedFetch returns cached data for key when fresh, otherwise calls
// fetch, stores the result, and returns it. Fetch results are stored
// as serialized JSON so the cache never depends on domain types.
func (t *Toolkit) cachedFetch(ctx context.Context, key cache.Key, fetch func(context.Context) (any, error)) (json.RawMessage, error) {
	ttl := t.policy.TTLFor(key.Category)

	res, err := t.cache.Get(ctx, key.String(), ttl)
	if err != nil {
		return nil, err
	}
	if res != nil {
		return res.Data, nil
	}

	value, err := fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", key.Category, err)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("serializing %s: %w", key.Category, err)
	}

	if err := t.cache.Put(ctx, key.String(), data); err != nil {
		return nil, err
	}
	return data, nil
}

// textResult wraps JSON data in a text content result.
func textResult(data json.RawMessage) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}

// errorResult returns a tool-level error result.
func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}
