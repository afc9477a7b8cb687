package caldav

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"meetwith/internal/models"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
)

const (
	ICloudEndpoint = "https://caldav.icloud.com/"
)

// managedProps are replaced wholesale on update. Everything else on the
// stored VEVENT is left untouched.
var managedProps = []string{
	ical.PropSummary,
	ical.PropDescription,
	ical.PropStatus,
	ical.PropDateTimeStart,
	ical.PropDateTimeEnd,
	ical.PropDuration,
	ical.PropLocation,
	ical.PropAttendee,
	ical.PropRecurrenceRule,
	ical.PropClass,
	ical.PropTransparency,
	ical.PropPriority,
	ical.PropCategories,
	propProviderData,
}

// customTransport handles adding Basic Auth and custom headers to requests.
type customTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

// RoundTrip adds required headers and authentication to each request.
func (t *customTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "meetwith/1.0")
	return t.Transport.RoundTrip(req)
}

// davClient is the subset of *caldav.Client the integration uses.
type davClient interface {
	FindCurrentUserPrincipal(ctx context.Context) (string, error)
	FindCalendarHomeSet(ctx context.Context, principal string) (string, error)
	FindCalendars(ctx context.Context, calendarHomeSet string) ([]caldav.Calendar, error)
	QueryCalendar(ctx context.Context, calendar string, query *caldav.CalendarQuery) ([]caldav.CalendarObject, error)
	PutCalendarObject(ctx context.Context, path string, cal *ical.Calendar) (*caldav.CalendarObject, error)
}

// CalDAVClient is a client for interacting with a CalDAV server.
type CalDAVClient struct {
	dav      davClient
	logger   *slog.Logger
	username string
	provider models.Provider
	now      func() time.Time
}

// NewClient creates a CalDAV client for endpoint using basic auth.
func NewClient(logger *slog.Logger, provider models.Provider, endpoint, username, password string) (*CalDAVClient, error) {
	transport := &customTransport{
		Username:  username,
		Password:  password,
		Transport: http.DefaultTransport,
	}
	httpClient := &http.Client{Transport: transport}

	caldavClient, err := caldav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}

	return newClient(caldavClient, logger, provider, username), nil
}

// NewICloudClient creates a CalDAV client against iCloud with an
// app-specific password.
func NewICloudClient(logger *slog.Logger, username, password string) (*CalDAVClient, error) {
	return NewClient(logger, models.ProviderICloud, ICloudEndpoint, username, password)
}

func newClient(dav davClient, logger *slog.Logger, provider models.Provider, username string) *CalDAVClient {
	return &CalDAVClient{dav: dav, logger: logger, username: username, provider: provider, now: time.Now}
}

// UpdateEvent merges the patch into the stored event with the same UID and
// writes the whole resource back.
func (c *CalDAVClient) UpdateEvent(ctx context.Context, sourceEventID string, req *models.UpdateRequest) error {
	patch, err := asObject(req.Native)
	if err != nil {
		return err
	}

	obj, err := c.findByUID(ctx, req.CalendarID, sourceEventID)
	if err != nil {
		return err
	}

	mergeEvent(obj.Event, patch.Event)
	seq, _ := strconv.Atoi(propValue(obj.Event, ical.PropSequence))
	seqProp := ical.NewProp(ical.PropSequence)
	seqProp.Value = strconv.Itoa(seq + 1)
	obj.Event.Props.Set(seqProp)
	now := c.now().UTC()
	obj.Event.Props.SetDateTime(ical.PropDateTimeStamp, now)
	obj.Event.Props.SetDateTime(ical.PropLastModified, now)

	c.logger.Debug("Writing CalDAV event", "path", obj.Path, "uid", sourceEventID)
	if _, err := c.dav.PutCalendarObject(ctx, obj.Path, obj.Calendar); err != nil {
		return fmt.Errorf("failed to update event on CalDAV server: %w", err)
	}
	return nil
}

// GetEvents returns the master VEVENT of every resource overlapping
// [start, end].
func (c *CalDAVClient) GetEvents(ctx context.Context, calendarID string, start, end time.Time) ([]models.NativeEvent, error) {
	query := eventQuery(caldav.CompFilter{Name: ical.CompEvent, Start: start.UTC(), End: end.UTC()})
	objects, err := c.dav.QueryCalendar(ctx, calendarID, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar: %w", err)
	}

	var out []models.NativeEvent
	for _, obj := range objects {
		if o := masterObject(obj); o != nil {
			out = append(out, o)
		}
	}
	c.logger.Info("Fetched events from CalDAV", "count", len(out), "calendar", calendarID)
	return out, nil
}

// GetConnectedEmail returns the account name, which for iCloud is the
// Apple ID.
func (c *CalDAVClient) GetConnectedEmail(ctx context.Context) (string, error) {
	return c.username, nil
}

// ListCalendars discovers the user's calendars.
func (c *CalDAVClient) ListCalendars(ctx context.Context) ([]models.CalendarInfo, error) {
	principalPath, err := c.dav.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find principal path: %w", err)
	}

	homeSetPath, err := c.dav.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to find calendar home set: %w", err)
	}

	calendars, err := c.dav.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to find calendars: %w", err)
	}

	out := make([]models.CalendarInfo, 0, len(calendars))
	for _, cal := range calendars {
		out = append(out, models.CalendarInfo{ID: cal.Path, Name: cal.Name})
	}
	return out, nil
}

func (c *CalDAVClient) findByUID(ctx context.Context, calendarID, uid string) (*Object, error) {
	query := eventQuery(caldav.CompFilter{
		Name:  ical.CompEvent,
		Props: []caldav.PropFilter{{Name: ical.PropUID, TextMatch: &caldav.TextMatch{Text: uid}}},
	})
	objects, err := c.dav.QueryCalendar(ctx, calendarID, query)
	if err != nil {
		return nil, fmt.Errorf("failed to find event %s: %w", uid, err)
	}
	for _, obj := range objects {
		if o := masterObject(obj); o != nil && o.NativeID() == uid {
			return o, nil
		}
	}
	return nil, fmt.Errorf("event %s not found in %s", uid, calendarID)
}

func eventQuery(filter caldav.CompFilter) *caldav.CalendarQuery {
	return &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     ical.CompCalendar,
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name:  ical.CompCalendar,
			Comps: []caldav.CompFilter{filter},
		},
	}
}

// masterObject picks the VEVENT without RECURRENCE-ID; overrides share the
// resource but are not addressed separately.
func masterObject(obj caldav.CalendarObject) *Object {
	if obj.Data == nil {
		return nil
	}
	var fallback *ical.Component
	for _, comp := range obj.Data.Children {
		if comp.Name != ical.CompEvent {
			continue
		}
		if comp.Props.Get(ical.PropRecurrenceID) == nil {
			return &Object{Path: obj.Path, ETag: obj.ETag, Calendar: obj.Data, Event: comp}
		}
		if fallback == nil {
			fallback = comp
		}
	}
	if fallback == nil {
		return nil
	}
	return &Object{Path: obj.Path, ETag: obj.ETag, Calendar: obj.Data, Event: fallback}
}

func mergeEvent(dst, patch *ical.Component) {
	for _, name := range managedProps {
		delete(dst.Props, name)
		if values := patch.Props[name]; len(values) > 0 {
			dst.Props[name] = values
		}
	}
	if values := patch.Props[ical.PropOrganizer]; len(values) > 0 {
		dst.Props[ical.PropOrganizer] = values
	}
}
