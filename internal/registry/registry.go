// Package registry stores which calendars an account has connected and
// resolves the connection that owns an event.
package registry

import (
	"context"
	"strings"
	"time"

	"meetwith/internal/apperr"
	"meetwith/internal/models"

	"github.com/goccy/go-json"
)

// CalendarEntry is one calendar inside a connection.
type CalendarEntry struct {
	CalendarID string `json:"calendarId"`
	Name       string `json:"name,omitempty"`
	Enabled    bool   `json:"enabled"`
	Sync       bool   `json:"sync"`
}

// ConnectedCalendar is an account's link to one provider account. Payload
// carries the provider credentials and is only read by the integration
// factory.
type ConnectedCalendar struct {
	AccountAddress string          `json:"accountAddress"`
	Email          string          `json:"email"`
	Provider       models.Provider `json:"provider"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Calendars      []CalendarEntry `json:"calendars"`
	Disabled       bool            `json:"disabled,omitempty"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Calendar returns the entry for calendarID.
func (c *ConnectedCalendar) Calendar(calendarID string) (CalendarEntry, bool) {
	for _, e := range c.Calendars {
		if e.CalendarID == calendarID {
			return e, true
		}
	}
	return CalendarEntry{}, false
}

// ListOptions filters GetConnectedCalendars.
type ListOptions struct {
	ActiveOnly bool
}

// Store persists connected calendars.
type Store interface {
	GetConnectedCalendars(ctx context.Context, accountAddress string, opts ListOptions) ([]ConnectedCalendar, error)
	SaveConnectedCalendar(ctx context.Context, cal ConnectedCalendar) error
}

// Resolve finds the connection that owns ev for accountAddress. The
// provider must match the event source, the email must match
// case-insensitively and the calendar must be connected and enabled.
// Lookups are never cached.
func Resolve(ctx context.Context, store Store, accountAddress string, ev *models.UnifiedEvent) (*ConnectedCalendar, CalendarEntry, error) {
	conns, err := store.GetConnectedCalendars(ctx, accountAddress, ListOptions{ActiveOnly: true})
	if err != nil {
		return nil, CalendarEntry{}, apperr.Storage("list connected calendars", err)
	}
	for i := range conns {
		conn := &conns[i]
		if conn.Provider != ev.Source || !strings.EqualFold(conn.Email, ev.AccountEmail) {
			continue
		}
		if entry, ok := conn.Calendar(ev.CalendarID); ok && entry.Enabled {
			return conn, entry, nil
		}
	}
	return nil, CalendarEntry{}, apperr.CalendarNotFound(ev.CalendarID)
}

func normalize(cal ConnectedCalendar) ConnectedCalendar {
	cal.AccountAddress = strings.ToLower(cal.AccountAddress)
	cal.Email = strings.ToLower(cal.Email)
	if cal.Calendars == nil {
		cal.Calendars = []CalendarEntry{}
	}
	return cal
}
