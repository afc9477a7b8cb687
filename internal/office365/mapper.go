package office365

import (
	"fmt"
	"strings"
	"time"

	"meetwith/internal/models"
)

const dateLayout = "2006-01-02"

var graphDays = map[string]string{
	"MO": "monday", "TU": "tuesday", "WE": "wednesday", "TH": "thursday",
	"FR": "friday", "SA": "saturday", "SU": "sunday",
}

var graphIndex = map[int]string{1: "first", 2: "second", 3: "third", 4: "fourth", -1: "last"}

// Mapper exposes ToUnified/FromUnified behind the provider-neutral
// signatures the integration layer uses.
type Mapper struct{}

func (Mapper) ToUnified(native models.NativeEvent, cal models.CalendarRef) (*models.UnifiedEvent, error) {
	ev, err := asEvent(native)
	if err != nil {
		return nil, err
	}
	return ToUnified(ev, cal), nil
}

func (Mapper) FromUnified(ev *models.UnifiedEvent) (models.NativeEvent, error) {
	return FromUnified(ev), nil
}

func asEvent(native models.NativeEvent) (*Event, error) {
	if ev, ok := native.(*Event); ok && ev != nil {
		return ev, nil
	}
	return nil, fmt.Errorf("office365: unexpected native event %T", native)
}

// ToUnified converts a Graph event into the unified model.
func ToUnified(ev *Event, cal models.CalendarRef) *models.UnifiedEvent {
	u := &models.UnifiedEvent{
		ID:            models.EventID(models.ProviderOffice, cal.ID, ev.ID),
		SourceEventID: ev.ID,
		Title:         ev.Subject,
		Source:        models.ProviderOffice,
		CalendarID:    cal.ID,
		CalendarName:  cal.Name,
		AccountEmail:  cal.AccountEmail,
		WebLink:       ev.WebLink,
		IsAllDay:      ev.IsAllDay,
		ETag:          ev.ChangeKey,
		Status:        eventStatus(ev),
		Attendees:     []models.UnifiedAttendee{},
	}
	if strings.TrimSpace(u.Title) == "" {
		u.Title = models.DefaultTitle
	}
	if ev.Body != nil {
		u.Description = ev.Body.Content
	}
	u.Start = parseDateTime(ev.Start)
	u.End = parseDateTime(ev.End)
	if u.End.Before(u.Start) {
		u.End = u.Start
	}
	if t, err := time.Parse(time.RFC3339, ev.LastModifiedDateTime); err == nil {
		u.LastModified = t
	}

	organizer := ""
	if ev.Organizer != nil {
		organizer = ev.Organizer.EmailAddress.Address
	}
	seenOrganizer := false
	for _, att := range ev.Attendees {
		a := models.UnifiedAttendee{
			Email:  att.EmailAddress.Address,
			Name:   att.EmailAddress.Name,
			Status: models.AttendeeNeedsAction,
		}
		if att.Status != nil {
			a.Status = attendeeStatus(att.Status.Response)
		}
		if organizer != "" && strings.EqualFold(a.Email, organizer) {
			a.IsOrganizer = true
			seenOrganizer = true
		}
		if att.Type != "" && att.Type != "required" {
			a.ProviderData = models.ProviderData{models.ProviderOffice: models.Fields{"type": att.Type}}
		}
		u.Attendees = append(u.Attendees, a)
	}
	// Graph lists the organizer separately; fold it in so the attendee list
	// carries the owner like every other provider.
	if organizer != "" && !seenOrganizer {
		u.Attendees = append([]models.UnifiedAttendee{{
			Email:        organizer,
			Name:         ev.Organizer.EmailAddress.Name,
			IsOrganizer:  true,
			Status:       models.AttendeeAccepted,
			ProviderData: models.ProviderData{models.ProviderOffice: models.Fields{"organizerOnly": true}},
		}}, u.Attendees...)
	}
	u.Attendees = models.DedupeAttendees(u.Attendees)

	u.Permissions = permissions(ev, cal.AccountEmail)

	joinURL, loc := "", ""
	if ev.OnlineMeeting != nil {
		joinURL = ev.OnlineMeeting.JoinURL
	}
	if ev.Location != nil {
		loc = ev.Location.DisplayName
	}
	u.MeetingURL = models.FirstMeetingURL(joinURL, ev.OnlineMeetingURL, loc)

	u.Recurrence = recurrence(ev.Recurrence)
	u.ProviderData = providerData(ev, loc)
	return u
}

// FromUnified builds the Graph PATCH body for an update.
func FromUnified(u *models.UnifiedEvent) *Event {
	own := u.ProviderData[models.ProviderOffice]

	contentType := own.String("bodyContentType")
	if contentType == "" {
		contentType = "text"
	}
	ev := &Event{
		Subject:  u.Title,
		Body:     &itemBody{ContentType: contentType, Content: u.Description},
		IsAllDay: u.IsAllDay,
	}

	if u.IsAllDay {
		ev.Start = &dateTimeTimeZone{DateTime: u.Start.Format(dateLayout) + "T00:00:00", TimeZone: "UTC"}
		ev.End = &dateTimeTimeZone{DateTime: u.End.Format(dateLayout) + "T00:00:00", TimeZone: "UTC"}
	} else {
		ev.Start = &dateTimeTimeZone{DateTime: u.Start.UTC().Format(outlookTimeFormat), TimeZone: "UTC"}
		ev.End = &dateTimeTimeZone{DateTime: u.End.UTC().Format(outlookTimeFormat), TimeZone: "UTC"}
	}

	loc := own.String("location")
	if u.MeetingURL != "" {
		loc = u.MeetingURL
	}
	ev.Location = &location{DisplayName: loc}

	for _, a := range u.Attendees {
		f := a.ProviderData[models.ProviderOffice]
		if organizerOnly, _ := f.Bool("organizerOnly"); organizerOnly || a.Email == "" {
			continue
		}
		typ := f.String("type")
		if typ == "" {
			typ = "required"
		}
		ev.Attendees = append(ev.Attendees, attendee{
			Type:         typ,
			Status:       &responseStatus{Response: response(a.Status)},
			EmailAddress: emailAddress{Name: a.Name, Address: a.Email},
		})
	}

	ev.ShowAs = own.String("showAs")
	if u.Status == models.StatusTentative {
		ev.ShowAs = "tentative"
	} else if ev.ShowAs == "tentative" {
		ev.ShowAs = "busy"
	}
	ev.Importance = own.String("importance")
	ev.Sensitivity = own.String("sensitivity")
	ev.OnlineMeetingProvider = own.String("onlineMeetingProvider")
	ev.Categories = own.Strings("categories")
	ev.IsOnlineMeeting = boolField(own, "isOnlineMeeting")
	ev.IsReminderOn = boolField(own, "isReminderOn")
	ev.AllowNewTimeProposals = boolField(own, "allowNewTimeProposals")
	ev.HideAttendees = boolField(own, "hideAttendees")

	if u.Recurrence != nil {
		ev.Recurrence = graphRecurrence(u.Recurrence, u.Start, own)
	}

	if raw, err := models.EncodeForeign(u.ProviderData, models.ProviderOffice); err == nil && raw != "" {
		ev.SingleValueExtendedProperties = []extendedProperty{{ID: extendedPropertyID, Value: raw}}
	}
	return ev
}

func parseDateTime(dt *dateTimeTimeZone) time.Time {
	if dt == nil || dt.DateTime == "" {
		return time.Time{}
	}
	loc := time.UTC
	if dt.TimeZone != "" && dt.TimeZone != "UTC" {
		if l, err := time.LoadLocation(dt.TimeZone); err == nil {
			loc = l
		}
	}
	t, err := time.ParseInLocation(parseTimeFormat, dt.DateTime, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

func eventStatus(ev *Event) models.EventStatus {
	switch {
	case ev.IsCancelled:
		return models.StatusCancelled
	case ev.ShowAs == "tentative":
		return models.StatusTentative
	}
	return models.StatusConfirmed
}

func attendeeStatus(s string) models.AttendeeStatus {
	switch s {
	case "accepted", "organizer":
		return models.AttendeeAccepted
	case "declined":
		return models.AttendeeDeclined
	case "tentativelyAccepted":
		return models.AttendeeTentative
	}
	return models.AttendeeNeedsAction
}

func response(s models.AttendeeStatus) string {
	switch s {
	case models.AttendeeAccepted:
		return "accepted"
	case models.AttendeeDeclined:
		return "declined"
	case models.AttendeeTentative:
		return "tentativelyAccepted"
	}
	return "none"
}

func permissions(ev *Event, accountEmail string) models.Permissions {
	if ev.IsOrganizer {
		return models.FullPermissions
	}
	if ev.Organizer != nil && accountEmail != "" && strings.EqualFold(ev.Organizer.EmailAddress.Address, accountEmail) {
		return models.FullPermissions
	}
	return models.Permissions{
		CanSeeGuestList: ev.HideAttendees == nil || !*ev.HideAttendees,
	}
}

func recurrence(pr *patternedRecurrence) *models.Recurrence {
	if pr == nil {
		return nil
	}
	r := &models.Recurrence{Interval: pr.Pattern.Interval}
	if r.Interval <= 0 {
		r.Interval = 1
	}
	switch pr.Pattern.Type {
	case "daily":
		r.Frequency = models.FrequencyDaily
	case "weekly":
		r.Frequency = models.FrequencyWeekly
	case "absoluteMonthly", "relativeMonthly":
		r.Frequency = models.FrequencyMonthly
	case "absoluteYearly", "relativeYearly":
		r.Frequency = models.FrequencyYearly
	default:
		return nil
	}

	prefix := ""
	if strings.HasPrefix(pr.Pattern.Type, "relative") {
		for n, name := range graphIndex {
			if name == pr.Pattern.Index {
				prefix = fmt.Sprint(n)
			}
		}
		if prefix == "" {
			prefix = "1"
		}
	}
	for _, day := range pr.Pattern.DaysOfWeek {
		for code, name := range graphDays {
			if strings.EqualFold(day, name) {
				r.ByDay = append(r.ByDay, prefix+code)
			}
		}
	}

	switch pr.Range.Type {
	case "numbered":
		r.Count = pr.Range.NumberOfOccurrences
	case "endDate":
		if t, err := time.Parse(dateLayout, pr.Range.EndDate); err == nil {
			r.Until = &t
		}
	}
	return r
}

func graphRecurrence(r *models.Recurrence, start time.Time, own models.Fields) *patternedRecurrence {
	pr := &patternedRecurrence{}
	pr.Pattern.Interval = r.Interval
	if pr.Pattern.Interval <= 0 {
		pr.Pattern.Interval = 1
	}

	index := 0
	for _, byDay := range r.ByDay {
		n, code := models.Weekday(byDay)
		if code == "" {
			continue
		}
		if n != 0 {
			index = n
		}
		pr.Pattern.DaysOfWeek = append(pr.Pattern.DaysOfWeek, graphDays[code])
	}

	switch r.Frequency {
	case models.FrequencyDaily:
		pr.Pattern.Type = "daily"
		pr.Pattern.DaysOfWeek = nil
	case models.FrequencyWeekly:
		pr.Pattern.Type = "weekly"
		if len(pr.Pattern.DaysOfWeek) == 0 {
			pr.Pattern.DaysOfWeek = []string{strings.ToLower(start.Weekday().String())}
		}
	case models.FrequencyMonthly, models.FrequencyYearly:
		kind := "Monthly"
		if r.Frequency == models.FrequencyYearly {
			kind = "Yearly"
			pr.Pattern.Month = int(start.Month())
			if m, ok := own.Int("month"); ok {
				pr.Pattern.Month = int(m)
			}
		}
		if index != 0 && len(pr.Pattern.DaysOfWeek) > 0 {
			pr.Pattern.Type = "relative" + kind
			pr.Pattern.Index = graphIndex[index]
			if pr.Pattern.Index == "" {
				pr.Pattern.Index = "first"
			}
		} else {
			pr.Pattern.Type = "absolute" + kind
			pr.Pattern.DaysOfWeek = nil
			pr.Pattern.DayOfMonth = start.Day()
			if d, ok := own.Int("dayOfMonth"); ok {
				pr.Pattern.DayOfMonth = int(d)
			}
		}
	}

	pr.Range.StartDate = own.String("recurrenceStart")
	if pr.Range.StartDate == "" {
		pr.Range.StartDate = start.Format(dateLayout)
	}
	switch {
	case r.Count > 0:
		pr.Range.Type = "numbered"
		pr.Range.NumberOfOccurrences = r.Count
	case r.Until != nil:
		pr.Range.Type = "endDate"
		pr.Range.EndDate = r.Until.UTC().Format(dateLayout)
	default:
		pr.Range.Type = "noEnd"
	}
	return pr
}

func providerData(ev *Event, loc string) models.ProviderData {
	f := models.Fields{}
	set := func(key, value string) {
		if value != "" {
			f[key] = value
		}
	}
	set("importance", ev.Importance)
	set("sensitivity", ev.Sensitivity)
	set("showAs", ev.ShowAs)
	set("onlineMeetingProvider", ev.OnlineMeetingProvider)
	set("iCalUId", ev.ICalUID)
	set("type", ev.Type)
	set("seriesMasterId", ev.SeriesMasterID)
	set("location", loc)
	if ev.Body != nil {
		set("bodyContentType", ev.Body.ContentType)
	}
	if len(ev.Categories) > 0 {
		f["categories"] = append([]string(nil), ev.Categories...)
	}
	for key, v := range map[string]*bool{
		"isOnlineMeeting":       ev.IsOnlineMeeting,
		"isReminderOn":          ev.IsReminderOn,
		"allowNewTimeProposals": ev.AllowNewTimeProposals,
		"hideAttendees":         ev.HideAttendees,
	} {
		if v != nil {
			f[key] = *v
		}
	}
	if pr := ev.Recurrence; pr != nil {
		set("recurrenceStart", pr.Range.StartDate)
		if pr.Pattern.DayOfMonth > 0 {
			f["dayOfMonth"] = pr.Pattern.DayOfMonth
		}
		if pr.Pattern.Month > 0 {
			f["month"] = pr.Pattern.Month
		}
	}

	var pd models.ProviderData
	for _, prop := range ev.SingleValueExtendedProperties {
		if strings.EqualFold(prop.ID, extendedPropertyID) {
			pd = models.DecodeForeign(prop.Value, models.ProviderOffice)
		}
	}
	if len(f) > 0 {
		if pd == nil {
			pd = models.ProviderData{}
		}
		pd[models.ProviderOffice] = f
	}
	return pd
}

func boolField(f models.Fields, key string) *bool {
	if v, ok := f.Bool(key); ok {
		return &v
	}
	return nil
}
