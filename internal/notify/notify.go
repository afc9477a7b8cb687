// Package notify reports the outcome of calendar updates so that a
// dispatcher can notify participants.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"meetwith/internal/models"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// Outcome is a confirmed calendar update.
type Outcome struct {
	AccountAddress string               `json:"accountAddress"`
	Event          *models.UnifiedEvent `json:"event"`
	Participants   []models.Participant `json:"participants"`
	At             time.Time            `json:"at"`
}

// Reporter receives update outcomes. Implementations must be safe for
// concurrent use.
type Reporter interface {
	Report(ctx context.Context, o Outcome) error
}

// LogReporter writes outcomes to the log.
type LogReporter struct {
	logger *slog.Logger
}

func NewLogReporter(logger *slog.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

func (r *LogReporter) Report(ctx context.Context, o Outcome) error {
	r.logger.Info("Calendar event updated.",
		"account", o.AccountAddress,
		"provider", o.Event.Source,
		"sourceEventId", o.Event.SourceEventID,
		"title", o.Event.Title,
		"participants", len(o.Participants))
	return nil
}

type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisReporter appends outcomes to a Redis stream as JSON under the
// "data" field.
type RedisReporter struct {
	client streamAdder
	stream string
	close  func() error
}

// NewRedisReporter connects to redisURL (redis://host:port/db).
func NewRedisReporter(redisURL, stream string) (*RedisReporter, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opt)
	return &RedisReporter{client: client, stream: stream, close: client.Close}, nil
}

// Close releases the Redis connection pool.
func (r *RedisReporter) Close() error {
	if r.close == nil {
		return nil
	}
	return r.close()
}

func (r *RedisReporter) Report(ctx context.Context, o Outcome) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome: %w", err)
	}

	err = r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		ID:     "*",
		Values: map[string]interface{}{
			"type": "calendar.event.updated",
			"data": string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", r.stream, err)
	}
	return nil
}

// Multi fans an outcome out to several reporters and returns the first
// error after trying all of them.
type Multi []Reporter

func (m Multi) Report(ctx context.Context, o Outcome) error {
	var first error
	for _, r := range m {
		if err := r.Report(ctx, o); err != nil && first == nil {
			first = err
		}
	}
	return first
}
