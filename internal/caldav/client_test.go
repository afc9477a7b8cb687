package caldav

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"meetwith/internal/models"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
)

type fakeDAV struct {
	objects  []caldav.CalendarObject
	queries  []*caldav.CalendarQuery
	putPath  string
	putCal   *ical.Calendar
	putErr   error
	queryErr error
}

func (f *fakeDAV) FindCurrentUserPrincipal(ctx context.Context) (string, error) {
	return "/1234/principal/", nil
}

func (f *fakeDAV) FindCalendarHomeSet(ctx context.Context, principal string) (string, error) {
	return "/1234/calendars/", nil
}

func (f *fakeDAV) FindCalendars(ctx context.Context, homeSet string) ([]caldav.Calendar, error) {
	return []caldav.Calendar{{Path: "/1234/calendars/home/", Name: "Home"}, {Path: "/1234/calendars/work/", Name: "Work"}}, nil
}

func (f *fakeDAV) QueryCalendar(ctx context.Context, calendar string, query *caldav.CalendarQuery) ([]caldav.CalendarObject, error) {
	f.queries = append(f.queries, query)
	return f.objects, f.queryErr
}

func (f *fakeDAV) PutCalendarObject(ctx context.Context, path string, cal *ical.Calendar) (*caldav.CalendarObject, error) {
	f.putPath, f.putCal = path, cal
	return &caldav.CalendarObject{Path: path}, f.putErr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFakeClient(t *testing.T) (*CalDAVClient, *fakeDAV) {
	obj := sampleObject(t)
	dav := &fakeDAV{objects: []caldav.CalendarObject{{Path: obj.Path, ETag: obj.ETag, Data: obj.Calendar}}}
	c := newClient(dav, testLogger(), models.ProviderICloud, "me@icloud.com")
	c.now = func() time.Time { return time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC) }
	return c, dav
}

func TestUpdateEventMergesIntoStoredEvent(t *testing.T) {
	c, dav := newFakeClient(t)

	u := ToUnified(sampleObject(t), testCal, models.ProviderICloud)
	u.Title = "Standup (moved)"
	u.Start = u.Start.Add(time.Hour)
	u.End = u.End.Add(time.Hour)
	req := &models.UpdateRequest{CalendarID: testCal.ID, Native: FromUnified(u, models.ProviderICloud)}

	if err := c.UpdateEvent(context.Background(), "uid-1@example.com", req); err != nil {
		t.Fatalf("UpdateEvent: %v", err)
	}
	if dav.putPath != "/1234/calendars/home/uid-1.ics" {
		t.Errorf("put path = %q", dav.putPath)
	}

	var ve *ical.Component
	for _, comp := range dav.putCal.Children {
		if comp.Name == ical.CompEvent {
			ve = comp
		}
	}
	if got := propText(ve, ical.PropSummary); got != "Standup (moved)" {
		t.Errorf("summary = %q", got)
	}
	if got := propValue(ve, ical.PropDateTimeStart); got != "20250110T100000Z" {
		t.Errorf("DTSTART = %q", got)
	}
	if got := propValue(ve, "X-CUSTOM-THING"); got != "keep me" {
		t.Errorf("unmanaged property lost: %q", got)
	}
	if got := propValue(ve, ical.PropSequence); got != "4" {
		t.Errorf("SEQUENCE = %q", got)
	}
	if len(ve.Props.Values(ical.PropAttendee)) != 3 {
		t.Errorf("attendees = %d", len(ve.Props.Values(ical.PropAttendee)))
	}

	// The lookup filters by UID.
	filter := dav.queries[0].CompFilter.Comps[0]
	if len(filter.Props) != 1 || filter.Props[0].TextMatch.Text != "uid-1@example.com" {
		t.Errorf("query filter = %+v", filter)
	}
}

func TestUpdateEventNotFound(t *testing.T) {
	c, dav := newFakeClient(t)
	dav.objects = nil

	req := &models.UpdateRequest{CalendarID: testCal.ID, Native: FromUnified(&models.UnifiedEvent{SourceEventID: "missing"}, models.ProviderICloud)}
	if err := c.UpdateEvent(context.Background(), "missing", req); err == nil {
		t.Fatal("expected error for unknown UID")
	}
	if dav.putCal != nil {
		t.Error("nothing should be written")
	}
}

func TestUpdateEventPutFails(t *testing.T) {
	c, dav := newFakeClient(t)
	dav.putErr = errors.New("412 precondition failed")

	u := ToUnified(sampleObject(t), testCal, models.ProviderICloud)
	req := &models.UpdateRequest{CalendarID: testCal.ID, Native: FromUnified(u, models.ProviderICloud)}
	if err := c.UpdateEvent(context.Background(), "uid-1@example.com", req); err == nil {
		t.Fatal("expected error")
	}
}

func TestGetEventsUsesTimeRange(t *testing.T) {
	c, dav := newFakeClient(t)
	start := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 10, 11, 0, 0, 0, time.UTC)

	events, err := c.GetEvents(context.Background(), testCal.ID, start, end)
	if err != nil {
		t.Fatalf("GetEvents: %v", err)
	}
	if len(events) != 1 || events[0].NativeID() != "uid-1@example.com" {
		t.Errorf("events = %v", events)
	}
	filter := dav.queries[0].CompFilter.Comps[0]
	if !filter.Start.Equal(start) || !filter.End.Equal(end) {
		t.Errorf("range = %v..%v", filter.Start, filter.End)
	}
}

func TestListCalendars(t *testing.T) {
	c, _ := newFakeClient(t)
	cals, err := c.ListCalendars(context.Background())
	if err != nil {
		t.Fatalf("ListCalendars: %v", err)
	}
	if len(cals) != 2 || cals[1].ID != "/1234/calendars/work/" {
		t.Errorf("calendars = %+v", cals)
	}
	email, _ := c.GetConnectedEmail(context.Background())
	if email != "me@icloud.com" {
		t.Errorf("email = %q", email)
	}
}

func TestCustomTransportSetsAuth(t *testing.T) {
	var user, pass, agent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ = r.BasicAuth()
		agent = r.UserAgent()
	}))
	defer srv.Close()

	client := &http.Client{Transport: &customTransport{Username: "u", Password: "p", Transport: http.DefaultTransport}}
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if user != "u" || pass != "p" || agent != "meetwith/1.0" {
		t.Errorf("auth = %q/%q agent=%q", user, pass, agent)
	}
}

func objectFromICS(t *testing.T, data string) *Object {
	t.Helper()
	cal, err := ical.NewDecoder(strings.NewReader(data)).Decode()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, comp := range cal.Children {
		if comp.Name == ical.CompEvent {
			return &Object{Path: "/1234/calendars/home/uid-1.ics", ETag: `"e1"`, Calendar: cal, Event: comp}
		}
	}
	t.Fatal("no VEVENT")
	return nil
}

// updateThrough runs a title change through the mapper and the client and
// returns the stored event as it reads back afterwards.
func updateThrough(t *testing.T, data string, edit func(*models.UnifiedEvent)) (*ical.Component, *models.UnifiedEvent) {
	t.Helper()
	obj := objectFromICS(t, data)
	dav := &fakeDAV{objects: []caldav.CalendarObject{{Path: obj.Path, ETag: obj.ETag, Data: obj.Calendar}}}
	c := newClient(dav, testLogger(), models.ProviderICloud, "me@icloud.com")

	u := ToUnified(objectFromICS(t, data), testCal, models.ProviderICloud)
	u.Title = "Renamed"
	if edit != nil {
		edit(u)
	}
	req := &models.UpdateRequest{CalendarID: testCal.ID, Native: FromUnified(u, models.ProviderICloud)}
	if err := c.UpdateEvent(context.Background(), "uid-1@example.com", req); err != nil {
		t.Fatalf("UpdateEvent: %v", err)
	}

	var ve *ical.Component
	for _, comp := range dav.putCal.Children {
		if comp.Name == ical.CompEvent {
			ve = comp
		}
	}
	if ve == nil {
		t.Fatal("no VEVENT stored")
	}
	back := ToUnified(&Object{Path: obj.Path, Calendar: dav.putCal, Event: ve}, testCal, models.ProviderICloud)
	return ve, back
}

func TestUpdateEventKeepsRecurrenceRule(t *testing.T) {
	tests := []struct {
		name string
		rule string
		edit func(*models.UnifiedEvent)
		want string
	}{
		{name: "by month", rule: "FREQ=YEARLY;BYMONTH=3;BYDAY=2SU", want: "FREQ=YEARLY;BYMONTH=3;BYDAY=2SU"},
		{name: "by set position", rule: "FREQ=MONTHLY;BYDAY=MO,TU,WE,TH,FR;BYSETPOS=-1;WKST=SU", want: "FREQ=MONTHLY;BYDAY=MO,TU,WE,TH,FR;BYSETPOS=-1;WKST=SU"},
		{name: "sub-daily", rule: "FREQ=HOURLY;INTERVAL=4;COUNT=6", want: "FREQ=HOURLY;INTERVAL=4;COUNT=6"},
		{
			name: "edited",
			rule: "FREQ=WEEKLY;BYDAY=MO,WE,FR;COUNT=10",
			edit: func(u *models.UnifiedEvent) { u.Recurrence.Count = 5 },
			want: "FREQ=WEEKLY;COUNT=5;BYDAY=MO,WE,FR",
		},
		{
			name: "removed",
			rule: "FREQ=WEEKLY;BYDAY=MO,WE,FR;COUNT=10",
			edit: func(u *models.UnifiedEvent) { u.Recurrence = nil },
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := strings.Replace(sampleICS, "RRULE:FREQ=WEEKLY;BYDAY=MO,WE,FR;COUNT=10", "RRULE:"+tt.rule, 1)
			ve, back := updateThrough(t, data, tt.edit)
			if got := propValue(ve, ical.PropRecurrenceRule); got != tt.want {
				t.Errorf("RRULE = %q, want %q", got, tt.want)
			}
			if back.Title != "Renamed" {
				t.Errorf("title = %q", back.Title)
			}
		})
	}
}

func TestUpdateEventKeepsOrganizer(t *testing.T) {
	data := strings.Replace(sampleICS,
		"ORGANIZER;CN=Me:mailto:me@icloud.com\r\n",
		"ORGANIZER;CN=Boss:mailto:boss@x.com\r\n"+
			"ATTENDEE;ROLE=CHAIR;PARTSTAT=ACCEPTED:mailto:chair@x.com\r\n", 1)

	ve, back := updateThrough(t, data, nil)

	orgs := ve.Props.Values(ical.PropOrganizer)
	if len(orgs) != 1 || orgs[0].Value != "mailto:boss@x.com" {
		t.Fatalf("ORGANIZER = %+v", orgs)
	}
	if orgs[0].Params.Get(ical.ParamCommonName) != "Boss" {
		t.Errorf("organizer CN = %q", orgs[0].Params.Get(ical.ParamCommonName))
	}

	var chairRole string
	for _, att := range ve.Props.Values(ical.PropAttendee) {
		if mailAddress(att.Value) == "boss@x.com" {
			t.Error("organizer-only entry written as an attendee")
		}
		if mailAddress(att.Value) == "chair@x.com" {
			chairRole = att.Params.Get(ical.ParamRole)
		}
	}
	if chairRole != "CHAIR" {
		t.Errorf("chair role = %q", chairRole)
	}

	if len(back.Attendees) != 5 || back.Attendees[0].Email != "boss@x.com" || !back.Attendees[0].IsOrganizer {
		t.Errorf("attendees after update = %+v", back.Attendees)
	}
	if got := back.ProviderData[models.ProviderICloud].String("organizer"); got != "boss@x.com" {
		t.Errorf("organizer = %q", got)
	}
	if back.Permissions.CanEdit {
		t.Error("non-organizer account granted edit")
	}
}
