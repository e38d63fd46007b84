package calendar

import "context"

// Client is the interface to the upstream calendar server. The gateway
// treats it as an opaque collaborator: calls are never retried, and an
// in-flight call is never cancelled when the owning stream goes away.
type Client interface {
	// ListCalendars returns the calendars owned by a user.
	ListCalendars(ctx context.Context, userID string) ([]Calendar, error)

	// ListEvents returns the events in one of a user's calendars.
	ListEvents(ctx context.Context, userID, calendarID string) ([]Event, error)

	// GetPreferences returns a user's calendar preferences.
	GetPreferences(ctx context.Context, userID string) (*Preferences, error)

	// Close releases client resources.
	Close() error
}
