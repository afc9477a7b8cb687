package caldav

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"meetwith/internal/models"

	"github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"
)

// ErrReadOnly is returned when writing to a subscribed feed.
var ErrReadOnly = errors.New("webcal feeds are read-only")

// FeedClient reads a published iCalendar feed (webcal subscription).
type FeedClient struct {
	http   *http.Client
	url    string
	logger *slog.Logger
}

// NewFeedClient returns a client for the feed at rawURL. webcal:// URLs are
// fetched over https.
func NewFeedClient(logger *slog.Logger, httpClient *http.Client, rawURL string) *FeedClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &FeedClient{http: httpClient, url: FeedURL(rawURL), logger: logger}
}

// FeedURL normalizes a webcal:// URL to https://.
func FeedURL(raw string) string {
	if len(raw) >= 9 && strings.EqualFold(raw[:9], "webcal://") {
		return "https://" + raw[9:]
	}
	return raw
}

func (c *FeedClient) UpdateEvent(ctx context.Context, sourceEventID string, req *models.UpdateRequest) error {
	return ErrReadOnly
}

func (c *FeedClient) GetConnectedEmail(ctx context.Context) (string, error) {
	return "", errors.New("webcal feeds have no account")
}

// GetEvents downloads the feed and keeps the events overlapping
// [start, end]. Recurring events match when any occurrence overlaps.
func (c *FeedClient) GetEvents(ctx context.Context, calendarID string, start, end time.Time) ([]models.NativeEvent, error) {
	cal, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}

	var out []models.NativeEvent
	for _, comp := range cal.Children {
		if comp.Name != ical.CompEvent || comp.Props.Get(ical.PropRecurrenceID) != nil {
			continue
		}
		if overlaps(comp, start, end) {
			out = append(out, &Object{Path: c.url, Calendar: cal, Event: comp})
		}
	}
	c.logger.Info("Fetched events from feed", "count", len(out), "url", c.url)
	return out, nil
}

// ListCalendars reports the feed as a single calendar.
func (c *FeedClient) ListCalendars(ctx context.Context) ([]models.CalendarInfo, error) {
	cal, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	name := propText(cal.Component, propCalendarName)
	if name == "" {
		name = c.url
	}
	return []models.CalendarInfo{{ID: c.url, Name: name, Primary: true}}, nil
}

func (c *FeedClient) fetch(ctx context.Context) (*ical.Calendar, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/calendar")
	req.Header.Set("User-Agent", "meetwith/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed failed with status %d", resp.StatusCode)
	}

	cal, err := ical.NewDecoder(resp.Body).Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to decode feed: %w", err)
	}
	return cal, nil
}

func overlaps(ve *ical.Component, start, end time.Time) bool {
	u := ToUnified(&Object{Event: ve}, models.CalendarRef{}, models.ProviderWebcal)
	if u.Start.IsZero() {
		return false
	}
	duration := u.End.Sub(u.Start)
	if !u.Start.After(end) && !u.End.Before(start) {
		return true
	}

	prop := ve.Props.Get(ical.PropRecurrenceRule)
	if prop == nil || u.Start.After(end) {
		return false
	}
	opt, err := rrule.StrToROption(prop.Value)
	if err != nil {
		return false
	}
	opt.Dtstart = u.Start
	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return false
	}
	return len(rule.Between(start.Add(-duration), end, true)) > 0
}
