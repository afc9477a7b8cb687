package google

import (
	"strings"
	"time"

	"meetwith/internal/models"

	"google.golang.org/api/calendar/v3"
)

const (
	dateLayout = "2006-01-02"
	// foreignDataKey is the private extended property holding provider data
	// that belongs to other providers.
	foreignDataKey = "mwwProviderData"
)

// Event adapts a Google Calendar event to models.NativeEvent.
type Event struct {
	*calendar.Event
}

func (e Event) NativeID() string {
	if e.Event == nil {
		return ""
	}
	return e.Id
}

// Mapper exposes ToUnified/FromUnified behind the provider-neutral
// signatures the integration layer uses.
type Mapper struct{}

func (Mapper) ToUnified(native models.NativeEvent, cal models.CalendarRef) (*models.UnifiedEvent, error) {
	ev, err := asEvent(native)
	if err != nil {
		return nil, err
	}
	return ToUnified(ev.Event, cal), nil
}

func (Mapper) FromUnified(ev *models.UnifiedEvent) (models.NativeEvent, error) {
	return Event{FromUnified(ev)}, nil
}

// ToUnified converts a Google Calendar event into the unified model. It
// never fails: missing optional fields fall back to defaults.
func ToUnified(ev *calendar.Event, cal models.CalendarRef) *models.UnifiedEvent {
	u := &models.UnifiedEvent{
		ID:            models.EventID(models.ProviderGoogle, cal.ID, ev.Id),
		SourceEventID: ev.Id,
		Title:         ev.Summary,
		Description:   ev.Description,
		Source:        models.ProviderGoogle,
		CalendarID:    cal.ID,
		CalendarName:  cal.Name,
		AccountEmail:  cal.AccountEmail,
		WebLink:       ev.HtmlLink,
		Status:        models.ParseEventStatus(ev.Status),
		ETag:          ev.Etag,
		Attendees:     []models.UnifiedAttendee{},
		Recurrence:    models.FindRRule(ev.Recurrence),
	}
	if strings.TrimSpace(u.Title) == "" {
		u.Title = models.DefaultTitle
	}

	var startAllDay bool
	u.Start, startAllDay = parseDateTime(ev.Start)
	u.End, _ = parseDateTime(ev.End)
	u.IsAllDay = startAllDay
	if u.End.Before(u.Start) {
		u.End = u.Start
	}
	if t, err := time.Parse(time.RFC3339, ev.Updated); err == nil {
		u.LastModified = t
	}

	organizerEmail := ""
	if ev.Organizer != nil {
		organizerEmail = strings.ToLower(ev.Organizer.Email)
	}
	for _, att := range ev.Attendees {
		if att == nil {
			continue
		}
		a := models.UnifiedAttendee{
			Email:       att.Email,
			Name:        att.DisplayName,
			IsOrganizer: att.Organizer || (organizerEmail != "" && strings.EqualFold(att.Email, organizerEmail)),
			Status:      attendeeStatus(att.ResponseStatus),
		}
		if f := attendeeFields(att); len(f) > 0 {
			a.ProviderData = models.ProviderData{models.ProviderGoogle: f}
		}
		u.Attendees = append(u.Attendees, a)
	}
	u.Attendees = models.DedupeAttendees(u.Attendees)

	u.Permissions = permissions(ev, cal.AccountEmail)
	u.MeetingURL = models.FirstMeetingURL(conferenceURI(ev.ConferenceData), ev.HangoutLink, ev.Location)
	u.ProviderData = providerData(ev)
	return u
}

// FromUnified builds the Google patch for an update. Only fields the
// unified model carries, plus the google provider data, are set.
func FromUnified(u *models.UnifiedEvent) *calendar.Event {
	own := u.ProviderData[models.ProviderGoogle]

	ev := &calendar.Event{
		Id:          u.SourceEventID,
		Summary:     u.Title,
		Description: u.Description,
		Status:      strings.ToLower(string(u.Status)),
		Etag:        u.ETag,
		// An empty description has to be sent explicitly.
		ForceSendFields: []string{"Description"},
	}
	if ev.Status == "" {
		ev.Status = "confirmed"
	}

	ev.Location = own.String("location")
	if u.MeetingURL != "" {
		ev.Location = u.MeetingURL
	}

	if u.IsAllDay {
		ev.Start = &calendar.EventDateTime{Date: u.Start.Format(dateLayout)}
		ev.End = &calendar.EventDateTime{Date: u.End.Format(dateLayout)}
	} else {
		ev.Start = &calendar.EventDateTime{DateTime: u.Start.Format(time.RFC3339), TimeZone: zoneName(u.Start)}
		ev.End = &calendar.EventDateTime{DateTime: u.End.Format(time.RFC3339), TimeZone: zoneName(u.End)}
	}

	for _, a := range u.Attendees {
		if a.Email == "" {
			continue
		}
		att := &calendar.EventAttendee{
			Email:          a.Email,
			DisplayName:    a.Name,
			Organizer:      a.IsOrganizer,
			ResponseStatus: responseStatus(a.Status),
		}
		f := a.ProviderData[models.ProviderGoogle]
		if v, ok := f.Bool("optional"); ok {
			att.Optional = v
		}
		if v, ok := f.Bool("resource"); ok {
			att.Resource = v
		}
		att.Comment = f.String("comment")
		ev.Attendees = append(ev.Attendees, att)
	}

	// Removing every guest or the rule only reaches Google as an explicit [].
	if len(ev.Attendees) == 0 {
		ev.Attendees = []*calendar.EventAttendee{}
		ev.ForceSendFields = append(ev.ForceSendFields, "Attendees")
	}

	raw := own.String("rrule")
	if rule := models.RuleValue(u.Recurrence, raw); rule != "" {
		ev.Recurrence = append([]string{"RRULE:" + rule}, own.Strings("recurrenceExtras")...)
	} else if raw != "" {
		ev.Recurrence = []string{}
		ev.ForceSendFields = append(ev.ForceSendFields, "Recurrence")
	}

	ev.ColorId = own.String("colorId")
	ev.Visibility = own.String("visibility")
	ev.Transparency = own.String("transparency")
	if v, ok := own.Bool("guestsCanModify"); ok {
		ev.GuestsCanModify = v
		ev.ForceSendFields = append(ev.ForceSendFields, "GuestsCanModify")
	}
	if v, ok := own.Bool("guestsCanInviteOthers"); ok {
		ev.GuestsCanInviteOthers = &v
	}
	if v, ok := own.Bool("guestsCanSeeOtherGuests"); ok {
		ev.GuestsCanSeeOtherGuests = &v
	}
	if n, ok := own.Int("sequence"); ok {
		ev.Sequence = n
	}

	if raw, err := models.EncodeForeign(u.ProviderData, models.ProviderGoogle); err == nil && raw != "" {
		ev.ExtendedProperties = &calendar.EventExtendedProperties{
			Private: map[string]string{foreignDataKey: raw},
		}
	}
	return ev
}

func parseDateTime(dt *calendar.EventDateTime) (time.Time, bool) {
	if dt == nil {
		return time.Time{}, false
	}
	loc := time.UTC
	if dt.TimeZone != "" {
		if l, err := time.LoadLocation(dt.TimeZone); err == nil {
			loc = l
		}
	}
	if dt.Date != "" {
		t, err := time.ParseInLocation(dateLayout, dt.Date, loc)
		if err != nil {
			return time.Time{}, true
		}
		return t, true
	}
	t, err := time.Parse(time.RFC3339, dt.DateTime)
	if err != nil {
		return time.Time{}, false
	}
	if dt.TimeZone != "" {
		t = t.In(loc)
	}
	return t, false
}

func zoneName(t time.Time) string {
	name := t.Location().String()
	if name == "Local" {
		return ""
	}
	return name
}

func attendeeStatus(s string) models.AttendeeStatus {
	switch s {
	case "accepted":
		return models.AttendeeAccepted
	case "declined":
		return models.AttendeeDeclined
	case "tentative":
		return models.AttendeeTentative
	}
	return models.AttendeeNeedsAction
}

// responseStatus is the inverse of attendeeStatus. Google has all four
// states, so nothing collapses.
func responseStatus(s models.AttendeeStatus) string {
	switch s {
	case models.AttendeeAccepted:
		return "accepted"
	case models.AttendeeDeclined:
		return "declined"
	case models.AttendeeTentative:
		return "tentative"
	}
	return "needsAction"
}

func attendeeFields(att *calendar.EventAttendee) models.Fields {
	f := models.Fields{}
	if att.Optional {
		f["optional"] = true
	}
	if att.Resource {
		f["resource"] = true
	}
	if att.Self {
		f["self"] = true
	}
	if att.Comment != "" {
		f["comment"] = att.Comment
	}
	return f
}

// permissions grants everything to the organizer. Guests get one
// permission per guest flag; the two optional flags default to true on
// Google's side when absent.
func permissions(ev *calendar.Event, accountEmail string) models.Permissions {
	if ev.Organizer == nil {
		return models.FullPermissions
	}
	if ev.Organizer.Self || (accountEmail != "" && strings.EqualFold(ev.Organizer.Email, accountEmail)) {
		return models.FullPermissions
	}
	for _, att := range ev.Attendees {
		if att != nil && att.Self && att.Organizer {
			return models.FullPermissions
		}
	}
	return models.Permissions{
		CanEdit:         ev.GuestsCanModify,
		CanInviteGuests: ev.GuestsCanInviteOthers == nil || *ev.GuestsCanInviteOthers,
		CanSeeGuestList: ev.GuestsCanSeeOtherGuests == nil || *ev.GuestsCanSeeOtherGuests,
	}
}

func conferenceURI(cd *calendar.ConferenceData) string {
	if cd == nil {
		return ""
	}
	for _, ep := range cd.EntryPoints {
		if ep != nil && ep.EntryPointType == "video" && ep.Uri != "" {
			return ep.Uri
		}
	}
	return ""
}

func providerData(ev *calendar.Event) models.ProviderData {
	f := models.Fields{}
	set := func(key, value string) {
		if value != "" {
			f[key] = value
		}
	}
	set("colorId", ev.ColorId)
	set("visibility", ev.Visibility)
	set("transparency", ev.Transparency)
	set("iCalUID", ev.ICalUID)
	set("eventType", ev.EventType)
	set("location", ev.Location)
	set("hangoutLink", ev.HangoutLink)
	if ev.GuestsCanModify {
		f["guestsCanModify"] = true
	}
	if ev.GuestsCanInviteOthers != nil {
		f["guestsCanInviteOthers"] = *ev.GuestsCanInviteOthers
	}
	if ev.GuestsCanSeeOtherGuests != nil {
		f["guestsCanSeeOtherGuests"] = *ev.GuestsCanSeeOtherGuests
	}
	if ev.Sequence != 0 {
		f["sequence"] = ev.Sequence
	}
	var extras []string
	for _, line := range ev.Recurrence {
		if !strings.HasPrefix(strings.ToUpper(line), "RRULE") {
			extras = append(extras, line)
		} else if _, seen := f["rrule"]; !seen {
			f["rrule"] = models.RuleBody(line)
		}
	}
	if len(extras) > 0 {
		f["recurrenceExtras"] = extras
	}

	var pd models.ProviderData
	if ev.ExtendedProperties != nil {
		pd = models.DecodeForeign(ev.ExtendedProperties.Private[foreignDataKey], models.ProviderGoogle)
	}
	if len(f) > 0 {
		if pd == nil {
			pd = models.ProviderData{}
		}
		pd[models.ProviderGoogle] = f
	}
	return pd
}
