package office365

import (
	"reflect"
	"testing"
	"time"

	"meetwith/internal/models"

	"github.com/goccy/go-json"
)

var testCal = models.CalendarRef{ID: "AAMkCal", Name: "Calendar", AccountEmail: "me@contoso.com"}

const sampleJSON = `{
  "id": "AAMkEvt",
  "subject": "Design review",
  "body": {"contentType": "text", "content": "Agenda"},
  "start": {"dateTime": "2025-01-10T09:00:00.0000000", "timeZone": "UTC"},
  "end": {"dateTime": "2025-01-10T10:00:00.0000000", "timeZone": "UTC"},
  "location": {"displayName": "Room 7"},
  "isAllDay": false,
  "isCancelled": false,
  "isOrganizer": true,
  "showAs": "busy",
  "importance": "high",
  "sensitivity": "normal",
  "categories": ["Blue category"],
  "hideAttendees": false,
  "changeKey": "ck1",
  "lastModifiedDateTime": "2025-01-02T10:00:00Z",
  "webLink": "https://outlook.office365.com/owa/?itemid=AAMkEvt",
  "organizer": {"emailAddress": {"name": "Me", "address": "me@contoso.com"}},
  "attendees": [
    {"type": "required", "status": {"response": "accepted"}, "emailAddress": {"name": "Ann", "address": "ann@contoso.com"}},
    {"type": "optional", "status": {"response": "tentativelyAccepted"}, "emailAddress": {"name": "Bob", "address": "bob@contoso.com"}},
    {"type": "required", "status": {"response": "none"}, "emailAddress": {"address": "cy@contoso.com"}}
  ],
  "onlineMeeting": {"joinUrl": "https://teams.microsoft.com/l/meetup-join/abc"},
  "recurrence": {
    "pattern": {"type": "relativeMonthly", "interval": 1, "daysOfWeek": ["tuesday"], "index": "second"},
    "range": {"type": "numbered", "startDate": "2025-01-14", "numberOfOccurrences": 6}
  }
}`

func sampleEvent(t *testing.T) *Event {
	t.Helper()
	var ev Event
	if err := json.Unmarshal([]byte(sampleJSON), &ev); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	return &ev
}

func TestToUnified(t *testing.T) {
	u := ToUnified(sampleEvent(t), testCal)

	if u.SourceEventID != "AAMkEvt" || u.Source != models.ProviderOffice {
		t.Fatalf("identity = %q/%q", u.SourceEventID, u.Source)
	}
	if !u.Start.Equal(time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", u.Start)
	}
	if u.Description != "Agenda" || u.ETag != "ck1" {
		t.Errorf("description/etag = %q/%q", u.Description, u.ETag)
	}
	if u.MeetingURL != "https://teams.microsoft.com/l/meetup-join/abc" {
		t.Errorf("MeetingURL = %q", u.MeetingURL)
	}
	if u.Permissions != models.FullPermissions {
		t.Errorf("permissions = %+v", u.Permissions)
	}

	// Organizer is folded in first, then the three guests.
	if len(u.Attendees) != 4 {
		t.Fatalf("attendees = %d", len(u.Attendees))
	}
	want := []struct {
		email     string
		status    models.AttendeeStatus
		organizer bool
	}{
		{"me@contoso.com", models.AttendeeAccepted, true},
		{"ann@contoso.com", models.AttendeeAccepted, false},
		{"bob@contoso.com", models.AttendeeTentative, false},
		{"cy@contoso.com", models.AttendeeNeedsAction, false},
	}
	for i, w := range want {
		a := u.Attendees[i]
		if a.Email != w.email || a.Status != w.status || a.IsOrganizer != w.organizer {
			t.Errorf("attendee %d = %+v, want %+v", i, a, w)
		}
	}

	r := u.Recurrence
	if r == nil || r.Frequency != models.FrequencyMonthly || r.Count != 6 || len(r.ByDay) != 1 || r.ByDay[0] != "2TU" {
		t.Errorf("recurrence = %+v", r)
	}
	if got := u.ProviderData[models.ProviderOffice].String("importance"); got != "high" {
		t.Errorf("importance = %q", got)
	}
}

func TestEventStatus(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want models.EventStatus
	}{
		{"busy", Event{ShowAs: "busy"}, models.StatusConfirmed},
		{"tentative", Event{ShowAs: "tentative"}, models.StatusTentative},
		{"cancelled wins", Event{ShowAs: "tentative", IsCancelled: true}, models.StatusCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eventStatus(&tt.ev); got != tt.want {
				t.Errorf("eventStatus = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAttendeeStatusMapping(t *testing.T) {
	tests := map[string]models.AttendeeStatus{
		"accepted":            models.AttendeeAccepted,
		"organizer":           models.AttendeeAccepted,
		"declined":            models.AttendeeDeclined,
		"tentativelyAccepted": models.AttendeeTentative,
		"none":                models.AttendeeNeedsAction,
		"notResponded":        models.AttendeeNeedsAction,
		"somethingNew":        models.AttendeeNeedsAction,
	}
	for in, want := range tests {
		if got := attendeeStatus(in); got != want {
			t.Errorf("attendeeStatus(%q) = %q, want %q", in, got, want)
		}
	}
	if response(models.AttendeeNeedsAction) != "none" || response(models.AttendeeTentative) != "tentativelyAccepted" {
		t.Error("outbound response mapping broken")
	}
}

func TestGuestPermissions(t *testing.T) {
	hidden := true
	ev := &Event{
		Organizer:     &recipient{EmailAddress: emailAddress{Address: "boss@contoso.com"}},
		HideAttendees: &hidden,
	}
	if got := permissions(ev, testCal.AccountEmail); got != (models.Permissions{}) {
		t.Errorf("permissions = %+v", got)
	}
	ev.HideAttendees = nil
	if got := permissions(ev, testCal.AccountEmail); got != (models.Permissions{CanSeeGuestList: true}) {
		t.Errorf("permissions = %+v", got)
	}
}

func TestRoundTrip(t *testing.T) {
	orig := sampleEvent(t)
	u := ToUnified(orig, testCal)
	u.MeetingURL = ""
	ev := FromUnified(u)

	if ev.Subject != orig.Subject || ev.Body.Content != "Agenda" || ev.Body.ContentType != "text" {
		t.Errorf("text = %q/%+v", ev.Subject, ev.Body)
	}
	if ev.Start.DateTime != "2025-01-10T09:00:00" || ev.Start.TimeZone != "UTC" {
		t.Errorf("start = %+v", ev.Start)
	}
	if ev.Location.DisplayName != "Room 7" {
		t.Errorf("location = %q", ev.Location.DisplayName)
	}
	if ev.Importance != "high" || ev.ShowAs != "busy" || len(ev.Categories) != 1 {
		t.Errorf("provider fields = %q/%q/%v", ev.Importance, ev.ShowAs, ev.Categories)
	}
	// Organizer is not sent back as an attendee.
	if len(ev.Attendees) != 3 {
		t.Fatalf("attendees = %d", len(ev.Attendees))
	}
	for i, a := range ev.Attendees {
		if a.EmailAddress.Address != orig.Attendees[i].EmailAddress.Address ||
			a.Status.Response != orig.Attendees[i].Status.Response ||
			a.Type != orig.Attendees[i].Type {
			t.Errorf("attendee %d = %+v", i, a)
		}
	}
	pr := ev.Recurrence
	if pr == nil || pr.Pattern.Type != "relativeMonthly" || pr.Pattern.Index != "second" ||
		len(pr.Pattern.DaysOfWeek) != 1 || pr.Pattern.DaysOfWeek[0] != "tuesday" ||
		pr.Range.Type != "numbered" || pr.Range.NumberOfOccurrences != 6 || pr.Range.StartDate != "2025-01-14" {
		t.Errorf("recurrence = %+v", pr)
	}
}

func TestTentativeStatusSetsShowAs(t *testing.T) {
	u := ToUnified(sampleEvent(t), testCal)
	u.Status = models.StatusTentative
	if got := FromUnified(u).ShowAs; got != "tentative" {
		t.Errorf("ShowAs = %q", got)
	}
}

func TestWeeklyRecurrenceDefaultsToStartDay(t *testing.T) {
	start := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC) // Friday
	pr := graphRecurrence(&models.Recurrence{Frequency: models.FrequencyWeekly, Interval: 2}, start, nil)
	if pr.Pattern.Type != "weekly" || pr.Pattern.Interval != 2 || len(pr.Pattern.DaysOfWeek) != 1 || pr.Pattern.DaysOfWeek[0] != "friday" {
		t.Errorf("pattern = %+v", pr.Pattern)
	}
	if pr.Range.Type != "noEnd" || pr.Range.StartDate != "2025-01-10" {
		t.Errorf("range = %+v", pr.Range)
	}
}

func TestForeignProviderDataSurvives(t *testing.T) {
	u := ToUnified(sampleEvent(t), testCal)
	u.ProviderData[models.ProviderGoogle] = models.Fields{"colorId": "11"}

	b, err := json.Marshal(FromUnified(u))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Event
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got := ToUnified(&back, testCal)
	if got.ProviderData[models.ProviderGoogle].String("colorId") != "11" {
		t.Errorf("google provider data = %v", got.ProviderData[models.ProviderGoogle])
	}
}

func TestUpdateRoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		recurrence string
	}{
		{
			name:       "relative monthly",
			recurrence: `{"pattern": {"type": "relativeMonthly", "interval": 1, "daysOfWeek": ["tuesday"], "index": "second"}, "range": {"type": "numbered", "startDate": "2025-01-14", "numberOfOccurrences": 6}}`,
		},
		{
			name:       "absolute yearly",
			recurrence: `{"pattern": {"type": "absoluteYearly", "interval": 1, "month": 3, "dayOfMonth": 10}, "range": {"type": "endDate", "startDate": "2025-03-10", "endDate": "2030-03-10"}}`,
		},
		{
			name:       "weekly",
			recurrence: `{"pattern": {"type": "weekly", "interval": 2, "daysOfWeek": ["monday", "wednesday"]}, "range": {"type": "noEnd", "startDate": "2025-01-13"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := sampleEvent(t)
			orig.Recurrence = nil
			if err := json.Unmarshal([]byte(tt.recurrence), &orig.Recurrence); err != nil {
				t.Fatalf("unmarshal recurrence: %v", err)
			}
			u := ToUnified(orig, testCal)
			u.Title = "Renamed"

			b, err := json.Marshal(FromUnified(u))
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			var patch Event
			if err := json.Unmarshal(b, &patch); err != nil {
				t.Fatalf("unmarshal patch: %v", err)
			}

			// Graph applies the patch onto the stored event; the organizer is
			// not writable and stays as it was.
			stored := *orig
			stored.Subject = patch.Subject
			stored.Attendees = patch.Attendees
			stored.Recurrence = patch.Recurrence
			back := ToUnified(&stored, testCal)

			if !reflect.DeepEqual(stored.Recurrence, orig.Recurrence) {
				t.Errorf("recurrence = %+v, want %+v", stored.Recurrence, orig.Recurrence)
			}
			if !back.Recurrence.Equal(u.Recurrence) {
				t.Errorf("unified recurrence = %+v, want %+v", back.Recurrence, u.Recurrence)
			}
			if back.Title != "Renamed" {
				t.Errorf("title = %q", back.Title)
			}
			if len(back.Attendees) != len(u.Attendees) {
				t.Fatalf("attendees = %d, want %d", len(back.Attendees), len(u.Attendees))
			}
			if !back.Attendees[0].IsOrganizer || back.Attendees[0].Email != "me@contoso.com" {
				t.Errorf("organizer = %+v", back.Attendees[0])
			}
			for i := range u.Attendees {
				if back.Attendees[i].Email != u.Attendees[i].Email || back.Attendees[i].Status != u.Attendees[i].Status {
					t.Errorf("attendee %d = %+v, want %+v", i, back.Attendees[i], u.Attendees[i])
				}
			}
		})
	}
}
