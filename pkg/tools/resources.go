package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/yosida95/uritemplate/v3"

	"github.com/txn2/mcp-calendar-gateway/pkg/cache"
)

// Resource template URI patterns.
const (
	calendarsTemplateURI   = "calendar://{user_id}/calendars"
	eventsTemplateURI      = "calendar://{user_id}/events/{calendar_id}"
	preferencesTemplateURI = "calendar://{user_id}/preferences"
)

// registerResourceTemplates registers the read-only calendar resources.
func (t *Toolkit) registerResourceTemplates(server *mcp.Server) {
	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: calendarsTemplateURI,
		Name:        "Calendars",
		Description: "The calendars owned by a user",
		MIMEType:    "application/json",
	}, t.handleCalendarsResource)

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: eventsTemplateURI,
		Name:        "Calendar Events",
		Description: "The events in one of a user's calendars",
		MIMEType:    "application/json",
	}, t.handleEventsResource)

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: preferencesTemplateURI,
		Name:        "Calendar Preferences",
		Description: "A user's calendar preferences",
		MIMEType:    "application/json",
	}, t.handlePreferencesResource)
}

func (t *Toolkit) handleCalendarsResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	vars, err := parseTemplateVars(calendarsTemplateURI, uri)
	if err != nil || vars["user_id"] == "" {
		return nil, mcp.ResourceNotFoundError(uri) //nolint:wrapcheck // MCP protocol error returned as-is for SDK type matching
	}
	userID := vars["user_id"]

	key := cache.NewKey(cache.CategoryCalendars, userID, "")
	data, err := t.cachedFetch(ctx, key, func(ctx context.Context) (any, error) {
		return t.client.ListCalendars(ctx, userID)
	})
	if err != nil {
		return nil, fmt.Errorf("reading calendars resource: %w", err)
	}
	return jsonResource(uri, data), nil
}

func (t *Toolkit) handleEventsResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	vars, err := parseTemplateVars(eventsTemplateURI, uri)
	if err != nil || vars["user_id"] == "" || vars["calendar_id"] == "" {
		return nil, mcp.ResourceNotFoundError(uri) //nolint:wrapcheck // MCP protocol error returned as-is for SDK type matching
	}
	userID, calendarID := vars["user_id"], vars["calendar_id"]

	key := cache.NewKey(cache.CategoryEvents, userID, calendarID)
	data, err := t.cachedFetch(ctx, key, func(ctx context.Context) (any, error) {
		return t.client.ListEvents(ctx, userID, calendarID)
	})
	if err != nil {
		return nil, fmt.Errorf("reading events resource: %w", err)
	}
	return jsonResource(uri, data), nil
}

func (t *Toolkit) handlePreferencesResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	vars, err := parseTemplateVars(preferencesTemplateURI, uri)
	if err != nil || vars["user_id"] == "" {
		return nil, mcp.ResourceNotFoundError(uri) //nolint:wrapcheck // MCP protocol error returned as-is for SDK type matching
	}
	userID := vars["user_id"]

	key := cache.NewKey(cache.CategoryPreferences, userID, "")
	data, err := t.cachedFetch(ctx, key, func(ctx context.Context) (any, error) {
		return t.client.GetPreferences(ctx, userID)
	})
	if err != nil {
		return nil, fmt.Errorf("reading preferences resource: %w", err)
	}
	return jsonResource(uri, data), nil
}

// parseTemplateVars extracts named variables from a URI using a URI
// template. Returns an error when the URI does not match the template.
func parseTemplateVars(templateStr, uri string) (map[string]string, error) {
	tmpl, err := uritemplate.New(templateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid template %q: %w", templateStr, err)
	}

	match := tmpl.Match(uri)
	if match == nil {
		return nil, fmt.Errorf("uri %q does not match template %q", uri, templateStr)
	}

	result := make(map[string]string)
	for _, name := range tmpl.Varnames() {
		result[name] = match.Get(name).String()
	}
	return result, nil
}

// jsonResource wraps JSON data in a read-resource result.
func jsonResource(uri string, data []byte) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(data),
			},
		},
	}
}
