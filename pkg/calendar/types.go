// Package calendar defines the backend collaborator contract for the
// gateway: the client interface used to reach the upstream calendar
// server, and the minimal domain types the gateway caches and serializes.
package calendar

import "time"

// Calendar describes a calendar owned by a user.
type Calendar struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
	Primary     bool   `json:"primary,omitempty"`
}

// Event describes a single calendar event.
type Event struct {
	ID         string    `json:"id"`
	CalendarID string    `json:"calendar_id"`
	Title      string    `json:"title"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Location   string    `json:"location,omitempty"`
	AllDay     bool      `json:"all_day,omitempty"`
}

// Preferences holds per-user calendar preferences.
type Preferences struct {
	TimeZone          string `json:"time_zone,omitempty"`
	WeekStart         string `json:"week_start,omitempty"`
	DefaultCalendarID string `json:"default_calendar_id,omitempty"`
}
