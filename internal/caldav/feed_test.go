package caldav

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"meetwith/internal/models"
)

const feedICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//Feed//EN\r\n" +
	"X-WR-CALNAME:Holidays\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:once\r\n" +
	"DTSTAMP:20250101T000000Z\r\n" +
	"SUMMARY:One-off\r\n" +
	"DTSTART:20250110T090000Z\r\n" +
	"DTEND:20250110T100000Z\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:weekly\r\n" +
	"DTSTAMP:20250101T000000Z\r\n" +
	"SUMMARY:Weekly\r\n" +
	"DTSTART:20241206T090000Z\r\n" +
	"DTEND:20241206T100000Z\r\n" +
	"RRULE:FREQ=WEEKLY\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:past\r\n" +
	"DTSTAMP:20250101T000000Z\r\n" +
	"SUMMARY:Past\r\n" +
	"DTSTART:20240101T090000Z\r\n" +
	"DTEND:20240101T100000Z\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func newFeedServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = io.WriteString(w, feedICS)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFeedURL(t *testing.T) {
	tests := map[string]string{
		"webcal://example.com/cal.ics": "https://example.com/cal.ics",
		"WEBCAL://example.com/cal.ics": "https://example.com/cal.ics",
		"https://example.com/cal.ics":  "https://example.com/cal.ics",
	}
	for in, want := range tests {
		if got := FeedURL(in); got != want {
			t.Errorf("FeedURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFeedGetEventsFiltersWindow(t *testing.T) {
	srv := newFeedServer(t)
	c := NewFeedClient(testLogger(), srv.Client(), srv.URL)

	// Friday 2025-01-10, 08:00-11:00 UTC.
	start := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 10, 11, 0, 0, 0, time.UTC)
	events, err := c.GetEvents(context.Background(), srv.URL, start, end)
	if err != nil {
		t.Fatalf("GetEvents: %v", err)
	}

	got := map[string]bool{}
	for _, ev := range events {
		got[ev.NativeID()] = true
	}
	if !got["once"] || !got["weekly"] || got["past"] || len(events) != 2 {
		t.Errorf("events = %v", got)
	}
}

func TestFeedIsReadOnly(t *testing.T) {
	c := NewFeedClient(testLogger(), nil, "webcal://example.com/cal.ics")
	err := c.UpdateEvent(context.Background(), "once", &models.UpdateRequest{})
	if !errors.Is(err, ErrReadOnly) {
		t.Errorf("UpdateEvent error = %v", err)
	}
}

func TestFeedListCalendars(t *testing.T) {
	srv := newFeedServer(t)
	c := NewFeedClient(testLogger(), srv.Client(), srv.URL)

	cals, err := c.ListCalendars(context.Background())
	if err != nil {
		t.Fatalf("ListCalendars: %v", err)
	}
	if len(cals) != 1 || cals[0].Name != "Holidays" || cals[0].ID != srv.URL {
		t.Errorf("calendars = %+v", cals)
	}
}
