package models

import (
	"context"
	"time"
)

// NativeEvent is a provider's own event representation. Only the provider
// that produced it knows its concrete type.
type NativeEvent interface {
	NativeID() string
}

// Client is the per-provider integration every calendar backend exposes.
type Client interface {
	UpdateEvent(ctx context.Context, sourceEventID string, req *UpdateRequest) error
	GetEvents(ctx context.Context, calendarID string, start, end time.Time) ([]NativeEvent, error)
	GetConnectedEmail(ctx context.Context) (string, error)
}

// CalendarInfo describes one calendar visible to a connected account.
type CalendarInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Primary bool   `json:"primary,omitempty"`
}

// CalendarLister is implemented by clients that can enumerate calendars.
// It backs account connection; updates never need it.
type CalendarLister interface {
	ListCalendars(ctx context.Context) ([]CalendarInfo, error)
}
