package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultTitle is used when a provider event carries no summary.
const DefaultTitle = "(No title)"

// eventNamespace seeds the deterministic internal event ids.
var eventNamespace = uuid.MustParse("5f3c1d0e-8a54-4c52-9b1e-6f0d2a7c9e41")

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	StatusConfirmed EventStatus = "CONFIRMED"
	StatusTentative EventStatus = "TENTATIVE"
	StatusCancelled EventStatus = "CANCELLED"
)

// Permissions is the capability set the connected account has on an event.
type Permissions struct {
	CanEdit         bool `json:"canEdit"`
	CanInviteGuests bool `json:"canInviteGuests"`
	CanSeeGuestList bool `json:"canSeeGuestList"`
}

// FullPermissions is granted to organizers and calendar owners.
var FullPermissions = Permissions{CanEdit: true, CanInviteGuests: true, CanSeeGuestList: true}

// UnifiedEvent represents a calendar event independent of any specific
// calendar provider. It is rebuilt from the provider copy on every read.
type UnifiedEvent struct {
	ID            string            `json:"id"`
	SourceEventID string            `json:"sourceEventId"`
	Title         string            `json:"title"`
	Description   string            `json:"description,omitempty"`
	Start         time.Time         `json:"start"`
	End           time.Time         `json:"end"`
	IsAllDay      bool              `json:"isAllDay"`
	Source        Provider          `json:"source"`
	CalendarID    string            `json:"calendarId"`
	CalendarName  string            `json:"calendarName,omitempty"`
	AccountEmail  string            `json:"accountEmail"`
	MeetingURL    string            `json:"meeting_url,omitempty"`
	WebLink       string            `json:"webLink,omitempty"`
	Attendees     []UnifiedAttendee `json:"attendees"`
	Status        EventStatus       `json:"status"`
	LastModified  time.Time         `json:"lastModified"`
	ETag          string            `json:"etag,omitempty"`
	ProviderData  ProviderData      `json:"providerData,omitempty"`
	Permissions   Permissions       `json:"permissions"`
	Recurrence    *Recurrence       `json:"recurrence,omitempty"`
}

// CalendarRef carries the calendar context a mapper needs to place an event.
type CalendarRef struct {
	ID           string
	Name         string
	AccountEmail string
}

// EventID derives the internal id for a provider event. The id is stable
// for a given provider, calendar and source id, so stateless mappers assign
// the same id on every ingestion.
func EventID(source Provider, calendarID, sourceEventID string) string {
	return uuid.NewSHA1(eventNamespace, []byte(string(source)+"|"+calendarID+"|"+sourceEventID)).String()
}

// ParseEventStatus maps a provider status tag onto the unified enum.
// Unknown values are treated as confirmed.
func ParseEventStatus(s string) EventStatus {
	switch EventStatus(upper(s)) {
	case StatusTentative:
		return StatusTentative
	case StatusCancelled, "CANCELED":
		return StatusCancelled
	}
	return StatusConfirmed
}

// Clone returns a copy that shares no mutable state with e.
func (e *UnifiedEvent) Clone() *UnifiedEvent {
	c := *e
	if e.Attendees != nil {
		c.Attendees = make([]UnifiedAttendee, len(e.Attendees))
		for i, a := range e.Attendees {
			a.ProviderData = a.ProviderData.Clone()
			c.Attendees[i] = a
		}
	}
	c.ProviderData = e.ProviderData.Clone()
	if e.Recurrence != nil {
		r := *e.Recurrence
		r.ByDay = append([]string(nil), e.Recurrence.ByDay...)
		if e.Recurrence.Until != nil {
			u := *e.Recurrence.Until
			r.Until = &u
		}
		c.Recurrence = &r
	}
	return &c
}
