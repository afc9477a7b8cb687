package caldav

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"meetwith/internal/models"

	"github.com/emersion/go-ical"
)

const (
	// propProviderData holds provider data that belongs to other providers.
	propProviderData = "X-MWW-PROVIDER-DATA"
	propConference   = "CONFERENCE"
	propGoogleMeet   = "X-GOOGLE-CONFERENCE"
	propCalendarName = "X-WR-CALNAME"
)

// Object is one VEVENT together with the calendar resource it lives in.
// Patches built by FromUnified carry only Event.
type Object struct {
	Path     string
	ETag     string
	Calendar *ical.Calendar
	Event    *ical.Component
}

func (o *Object) NativeID() string {
	if o == nil || o.Event == nil {
		return ""
	}
	return propText(o.Event, ical.PropUID)
}

// Mapper converts between iCalendar events and the unified model. The same
// encoding serves every iCalendar-based provider; Provider selects whose
// provider data slot is used.
type Mapper struct {
	Provider models.Provider
}

func (m Mapper) ToUnified(native models.NativeEvent, cal models.CalendarRef) (*models.UnifiedEvent, error) {
	obj, err := asObject(native)
	if err != nil {
		return nil, err
	}
	return ToUnified(obj, cal, m.Provider), nil
}

func (m Mapper) FromUnified(ev *models.UnifiedEvent) (models.NativeEvent, error) {
	return FromUnified(ev, m.Provider), nil
}

func asObject(native models.NativeEvent) (*Object, error) {
	if obj, ok := native.(*Object); ok && obj != nil && obj.Event != nil {
		return obj, nil
	}
	return nil, fmt.Errorf("caldav: unexpected native event %T", native)
}

// ToUnified converts a VEVENT into the unified model.
func ToUnified(obj *Object, cal models.CalendarRef, provider models.Provider) *models.UnifiedEvent {
	ve := obj.Event
	uid := propText(ve, ical.PropUID)
	u := &models.UnifiedEvent{
		ID:            models.EventID(provider, cal.ID, uid),
		SourceEventID: uid,
		Title:         propText(ve, ical.PropSummary),
		Description:   propText(ve, ical.PropDescription),
		Source:        provider,
		CalendarID:    cal.ID,
		CalendarName:  cal.Name,
		AccountEmail:  cal.AccountEmail,
		WebLink:       propValue(ve, ical.PropURL),
		Status:        models.ParseEventStatus(propValue(ve, ical.PropStatus)),
		ETag:          obj.ETag,
		Attendees:     []models.UnifiedAttendee{},
	}
	if strings.TrimSpace(u.Title) == "" {
		u.Title = models.DefaultTitle
	}

	if prop := ve.Props.Get(ical.PropDateTimeStart); prop != nil {
		u.IsAllDay = prop.Params.Get(ical.ParamValue) == "DATE"
		if t, err := prop.DateTime(time.UTC); err == nil {
			u.Start = t
		}
	}
	if prop := ve.Props.Get(ical.PropDateTimeEnd); prop != nil {
		if t, err := prop.DateTime(time.UTC); err == nil {
			u.End = t
		}
	} else if prop := ve.Props.Get(ical.PropDuration); prop != nil {
		if d, err := prop.Duration(); err == nil {
			u.End = u.Start.Add(d)
		}
	} else if u.IsAllDay {
		u.End = u.Start.AddDate(0, 0, 1)
	}
	if u.End.Before(u.Start) {
		u.End = u.Start
	}
	if prop := ve.Props.Get(ical.PropLastModified); prop != nil {
		if t, err := prop.DateTime(time.UTC); err == nil {
			u.LastModified = t
		}
	}

	organizer := ""
	var organizerProp *ical.Prop
	if prop := ve.Props.Get(ical.PropOrganizer); prop != nil {
		organizer = mailAddress(prop.Value)
		organizerProp = prop
	}
	seenOrganizer := false
	for _, prop := range ve.Props.Values(ical.PropAttendee) {
		a := models.UnifiedAttendee{
			Email:  mailAddress(prop.Value),
			Name:   prop.Params.Get(ical.ParamCommonName),
			Status: partStat(prop.Params.Get(ical.ParamParticipationStatus)),
		}
		role := strings.ToUpper(prop.Params.Get(ical.ParamRole))
		if role == "CHAIR" || (organizer != "" && strings.EqualFold(a.Email, organizer)) {
			a.IsOrganizer = true
			seenOrganizer = seenOrganizer || strings.EqualFold(a.Email, organizer)
		}
		if role != "" && role != "REQ-PARTICIPANT" {
			a.ProviderData = models.ProviderData{provider: models.Fields{"role": role}}
		}
		u.Attendees = append(u.Attendees, a)
	}
	if organizer != "" && !seenOrganizer {
		u.Attendees = append([]models.UnifiedAttendee{{
			Email:        organizer,
			Name:         organizerProp.Params.Get(ical.ParamCommonName),
			IsOrganizer:  true,
			Status:       models.AttendeeAccepted,
			ProviderData: models.ProviderData{provider: models.Fields{"organizerOnly": true}},
		}}, u.Attendees...)
	}
	u.Attendees = models.DedupeAttendees(u.Attendees)

	u.Permissions = permissions(organizer, cal.AccountEmail)
	u.MeetingURL = models.FirstMeetingURL(propValue(ve, propConference), propValue(ve, propGoogleMeet), propText(ve, ical.PropLocation))
	if prop := ve.Props.Get(ical.PropRecurrenceRule); prop != nil {
		u.Recurrence = models.ParseRRule(prop.Value)
	}
	u.ProviderData = providerData(obj, provider)
	return u
}

// FromUnified builds a VEVENT holding the fields an update may change. The
// client merges it into the stored event, so unmanaged properties survive.
func FromUnified(u *models.UnifiedEvent, provider models.Provider) *Object {
	own := u.ProviderData[provider]
	ve := ical.NewComponent(ical.CompEvent)

	ve.Props.SetText(ical.PropUID, u.SourceEventID)
	ve.Props.SetText(ical.PropSummary, u.Title)
	if u.Description != "" {
		ve.Props.SetText(ical.PropDescription, u.Description)
	}
	status := u.Status
	if status == "" {
		status = models.StatusConfirmed
	}
	ve.Props.SetText(ical.PropStatus, string(status))

	dtstart := ical.NewProp(ical.PropDateTimeStart)
	dtend := ical.NewProp(ical.PropDateTimeEnd)
	if u.IsAllDay {
		dtstart.SetDate(u.Start)
		dtend.SetDate(u.End)
	} else {
		dtstart.SetDateTime(zoned(u.Start))
		dtend.SetDateTime(zoned(u.End))
	}
	ve.Props.Set(dtstart)
	ve.Props.Set(dtend)

	loc := own.String("location")
	if u.MeetingURL != "" {
		loc = u.MeetingURL
	}
	if loc != "" {
		ve.Props.SetText(ical.PropLocation, loc)
	}

	// Several attendees may be flagged as organizer (a CHAIR, for one), but
	// ORGANIZER names the one read from the event, or else the first.
	organizer := own.String("organizer")
	organizerSet := false
	for _, a := range u.Attendees {
		if a.Email == "" {
			continue
		}
		f := a.ProviderData[provider]
		if a.IsOrganizer && !organizerSet && (organizer == "" || strings.EqualFold(a.Email, organizer)) {
			organizerSet = true
			org := ical.NewProp(ical.PropOrganizer)
			org.Value = "mailto:" + a.Email
			if a.Name != "" {
				org.Params.Set(ical.ParamCommonName, a.Name)
			}
			ve.Props.Set(org)
		}
		if organizerOnly, _ := f.Bool("organizerOnly"); organizerOnly {
			continue
		}
		att := ical.NewProp(ical.PropAttendee)
		att.Value = "mailto:" + a.Email
		if a.Name != "" {
			att.Params.Set(ical.ParamCommonName, a.Name)
		}
		att.Params.Set(ical.ParamParticipationStatus, partStatParam(a.Status))
		role := f.String("role")
		if role == "" {
			role = "REQ-PARTICIPANT"
		}
		att.Params.Set(ical.ParamRole, role)
		ve.Props.Add(att)
	}

	if rule := models.RuleValue(u.Recurrence, own.String("rrule")); rule != "" {
		// Set Value directly: SetText would escape the commas in BYDAY.
		rrule := ical.NewProp(ical.PropRecurrenceRule)
		rrule.Value = rule
		ve.Props.Set(rrule)
	}

	if v := own.String("class"); v != "" {
		ve.Props.SetText(ical.PropClass, v)
	}
	if v := own.String("transp"); v != "" {
		ve.Props.SetText(ical.PropTransparency, v)
	}
	if n, ok := own.Int("priority"); ok {
		prop := ical.NewProp(ical.PropPriority)
		prop.Value = strconv.FormatInt(n, 10)
		ve.Props.Set(prop)
	}
	if cats := own.Strings("categories"); len(cats) > 0 {
		prop := ical.NewProp(ical.PropCategories)
		prop.Value = strings.Join(cats, ",")
		ve.Props.Set(prop)
	}
	if raw, err := models.EncodeForeign(u.ProviderData, provider); err == nil && raw != "" {
		ve.Props.SetText(propProviderData, raw)
	}

	return &Object{Path: own.String("path"), ETag: u.ETag, Event: ve}
}

func permissions(organizer, accountEmail string) models.Permissions {
	if organizer == "" || (accountEmail != "" && strings.EqualFold(organizer, accountEmail)) {
		return models.FullPermissions
	}
	// The guest list is part of the resource any attendee can read.
	return models.Permissions{CanSeeGuestList: true}
}

func providerData(obj *Object, provider models.Provider) models.ProviderData {
	ve := obj.Event
	f := models.Fields{}
	set := func(key, value string) {
		if value != "" {
			f[key] = value
		}
	}
	set("class", propValue(ve, ical.PropClass))
	set("transp", propValue(ve, ical.PropTransparency))
	set("location", propText(ve, ical.PropLocation))
	set("path", obj.Path)
	set("rrule", propValue(ve, ical.PropRecurrenceRule))
	set("organizer", mailAddress(propValue(ve, ical.PropOrganizer)))
	if n, err := strconv.Atoi(propValue(ve, ical.PropPriority)); err == nil {
		f["priority"] = n
	}
	if n, err := strconv.Atoi(propValue(ve, ical.PropSequence)); err == nil {
		f["sequence"] = n
	}
	if v := propValue(ve, ical.PropCategories); v != "" {
		f["categories"] = strings.Split(v, ",")
	}

	pd := models.DecodeForeign(propText(ve, propProviderData), provider)
	if len(f) > 0 {
		if pd == nil {
			pd = models.ProviderData{}
		}
		pd[provider] = f
	}
	return pd
}

func partStat(s string) models.AttendeeStatus {
	switch strings.ToUpper(s) {
	case "ACCEPTED":
		return models.AttendeeAccepted
	case "DECLINED":
		return models.AttendeeDeclined
	case "TENTATIVE":
		return models.AttendeeTentative
	}
	return models.AttendeeNeedsAction
}

func partStatParam(s models.AttendeeStatus) string {
	switch s {
	case models.AttendeeAccepted, models.AttendeeDeclined, models.AttendeeTentative:
		return string(s)
	}
	return "NEEDS-ACTION"
}

// zoned returns t in a location go-ical can name in a TZID parameter.
func zoned(t time.Time) time.Time {
	switch t.Location().String() {
	case "", "Local", "UTC":
		return t.UTC()
	}
	return t
}

func mailAddress(v string) string {
	if len(v) >= 7 && strings.EqualFold(v[:7], "mailto:") {
		return v[7:]
	}
	return v
}

func propValue(c *ical.Component, name string) string {
	if prop := c.Props.Get(name); prop != nil {
		return prop.Value
	}
	return ""
}

func propText(c *ical.Component, name string) string {
	prop := c.Props.Get(name)
	if prop == nil {
		return ""
	}
	text, err := prop.Text()
	if err != nil {
		return prop.Value
	}
	return text
}
