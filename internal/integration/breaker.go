package integration

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"meetwith/internal/caldav"
	"meetwith/internal/models"

	"github.com/sony/gobreaker"
)

func newBreaker(name string, timeout time.Duration, logger *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		// Caller mistakes say nothing about provider health.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, caldav.ErrReadOnly) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed.", "provider", name, "from", from.String(), "to", to.String())
		},
	})
}

// breakerClient routes every provider call through the provider's breaker.
type breakerClient struct {
	models.Client
	cb *gobreaker.CircuitBreaker
}

func (b *breakerClient) UpdateEvent(ctx context.Context, sourceEventID string, req *models.UpdateRequest) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.Client.UpdateEvent(ctx, sourceEventID, req)
	})
	return err
}

func (b *breakerClient) GetEvents(ctx context.Context, calendarID string, start, end time.Time) ([]models.NativeEvent, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.Client.GetEvents(ctx, calendarID, start, end)
	})
	if err != nil {
		return nil, err
	}
	events, _ := res.([]models.NativeEvent)
	return events, nil
}

func (b *breakerClient) GetConnectedEmail(ctx context.Context) (string, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.Client.GetConnectedEmail(ctx)
	})
	if err != nil {
		return "", err
	}
	email, _ := res.(string)
	return email, nil
}

func (b *breakerClient) ListCalendars(ctx context.Context) ([]models.CalendarInfo, error) {
	lister, ok := b.Client.(models.CalendarLister)
	if !ok {
		return nil, errors.New("calendar listing not supported")
	}
	res, err := b.cb.Execute(func() (interface{}, error) {
		return lister.ListCalendars(ctx)
	})
	if err != nil {
		return nil, err
	}
	cals, _ := res.([]models.CalendarInfo)
	return cals, nil
}
