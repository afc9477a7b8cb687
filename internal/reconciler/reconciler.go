// Package reconciler pushes event updates to the owning calendar provider
// and returns the provider's confirmed copy of the event.
package reconciler

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"meetwith/internal/apperr"
	"meetwith/internal/integration"
	"meetwith/internal/models"
	"meetwith/internal/notify"
	"meetwith/internal/registry"
)

// DefaultRefetchMargin widens the confirmation window on both sides of the
// event, so providers that shift times slightly still return it.
const DefaultRefetchMargin = time.Hour

// ClientFactory returns the integration client for a connection.
type ClientFactory interface {
	Client(ctx context.Context, conn *registry.ConnectedCalendar) (models.Client, error)
}

// Reconciler applies unified event updates. It keeps no state between
// calls and is safe for concurrent use.
type Reconciler struct {
	logger   *slog.Logger
	store    registry.Store
	clients  ClientFactory
	reporter notify.Reporter
	margin   time.Duration
	now      func() time.Time
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithReporter sets where confirmed updates are reported.
func WithReporter(r notify.Reporter) Option {
	return func(rc *Reconciler) { rc.reporter = r }
}

// WithRefetchMargin overrides DefaultRefetchMargin. Non-positive values
// keep the default.
func WithRefetchMargin(d time.Duration) Option {
	return func(rc *Reconciler) {
		if d > 0 {
			rc.margin = d
		}
	}
}

// New creates a new Reconciler.
func New(logger *slog.Logger, store registry.Store, clients ClientFactory, opts ...Option) *Reconciler {
	r := &Reconciler{
		logger:   logger,
		store:    store,
		clients:  clients,
		reporter: notify.NewLogReporter(logger),
		margin:   DefaultRefetchMargin,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// UpdateCalendarEvent writes ev to the calendar it belongs to and returns
// the event as the provider now stores it. Every step either succeeds or
// ends the call; nothing is retried and a provider-side write that was
// already accepted is not rolled back.
func (r *Reconciler) UpdateCalendarEvent(ctx context.Context, accountAddress string, ev *models.UnifiedEvent) (*models.UnifiedEvent, error) {
	if ev == nil || strings.TrimSpace(ev.SourceEventID) == "" {
		return nil, apperr.MissingField("sourceEventId")
	}
	if ev.End.Before(ev.Start) {
		return nil, apperr.InvalidTimeRange()
	}

	log := r.logger.With("account", accountAddress, "provider", ev.Source, "sourceEventId", ev.SourceEventID)

	conn, entry, err := registry.Resolve(ctx, r.store, accountAddress, ev)
	if err != nil {
		log.Warn("Calendar resolution failed", "calendarId", ev.CalendarID, "error", err)
		return nil, err
	}

	mapper, err := integration.MapperFor(conn.Provider)
	if err != nil {
		log.Error("No mapper for provider", "error", err)
		return nil, apperr.UpdateFailed(err)
	}
	client, err := r.clients.Client(ctx, conn)
	if err != nil {
		log.Error("Failed to acquire calendar integration", "email", conn.Email, "error", err)
		return nil, apperr.UpdateFailed(err)
	}

	native, err := mapper.FromUnified(ev)
	if err != nil {
		log.Error("Failed to build provider request", "error", err)
		return nil, apperr.UpdateFailed(err)
	}
	participants := models.ParticipantsFor(ev.Attendees)
	req := &models.UpdateRequest{
		CalendarID:   entry.CalendarID,
		Participants: participants,
		Native:       native,
	}

	if err := client.UpdateEvent(ctx, ev.SourceEventID, req); err != nil {
		log.Error("Failed to update calendar event", "calendarId", entry.CalendarID, "error", err)
		return nil, apperr.UpdateFailed(err)
	}
	log.Debug("Provider accepted update.", "calendarId", entry.CalendarID, "participants", len(participants))

	start, end := r.Window(ev)
	events, err := client.GetEvents(ctx, entry.CalendarID, start, end)
	if err != nil {
		log.Error("Failed to re-fetch updated event", "calendarId", entry.CalendarID, "error", err)
		cerr := apperr.ConfirmationFailed(ev.SourceEventID)
		cerr.Err = err
		return nil, cerr
	}

	var fresh models.NativeEvent
	for _, e := range events {
		if e.NativeID() == ev.SourceEventID {
			fresh = e
			break
		}
	}
	if fresh == nil {
		log.Warn("Updated event missing from re-fetch", "calendarId", entry.CalendarID, "from", start, "to", end, "fetched", len(events))
		return nil, apperr.ConfirmationFailed(ev.SourceEventID)
	}

	name := entry.Name
	if name == "" {
		name = ev.CalendarName
	}
	result, err := mapper.ToUnified(fresh, models.CalendarRef{ID: entry.CalendarID, Name: name, AccountEmail: conn.Email})
	if err != nil {
		log.Error("Failed to convert re-fetched event", "error", err)
		cerr := apperr.ConfirmationFailed(ev.SourceEventID)
		cerr.Err = err
		return nil, cerr
	}
	if result.LastModified.IsZero() {
		result.LastModified = r.now().UTC()
	}

	outcome := notify.Outcome{
		AccountAddress: accountAddress,
		Event:          result,
		Participants:   models.ParticipantsFor(result.Attendees),
		At:             r.now().UTC(),
	}
	if err := r.reporter.Report(ctx, outcome); err != nil {
		log.Warn("Failed to report calendar update", "error", err)
	}

	log.Debug("Update confirmed.", "calendarId", entry.CalendarID)
	return result, nil
}

// Window is the re-fetch range for ev: the event widened by the margin on
// both sides.
func (r *Reconciler) Window(ev *models.UnifiedEvent) (time.Time, time.Time) {
	return ev.Start.Add(-r.margin), ev.End.Add(r.margin)
}
