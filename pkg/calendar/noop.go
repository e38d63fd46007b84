package calendar

import "context"

// NoopClient is a no-op client implementation for testing and for
// configurations without an upstream calendar server.
type NoopClient struct{}

// NewNoopClient creates a new no-op client.
func NewNoopClient() *NoopClient {
	return &NoopClient{}
}

// ListCalendars returns an empty list for no-op.
func (*NoopClient) ListCalendars(_ context.Context, _ string) ([]Calendar, error) {
	return []Calendar{}, nil
}

// ListEvents returns an empty list for no-op.
func (*NoopClient) ListEvents(_ context.Context, _, _ string) ([]Event, error) {
	return []Event{}, nil
}

// GetPreferences returns empty preferences for no-op.
func (*NoopClient) GetPreferences(_ context.Context, _ string) (*Preferences, error) {
	return &Preferences{}, nil
}

// Close is a no-op.
func (*NoopClient) Close() error {
	return nil
}

// Verify interface compliance.
var _ Client = (*NoopClient)(nil)
