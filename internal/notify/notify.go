// Package notify publishes domain events to interested consumers.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Event types
const (
	ApplicationCreated      = "application.created"
	ApplicationStageChanged = "application.stage_changed"
	JobPrefix               = "job."
)

// Sink receives events. Callers never fail a write because Publish failed.
type Sink interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// Envelope is what goes over the wire
type Envelope struct {
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func envelope(eventType string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal event payload")
	}
	return json.Marshal(Envelope{Type: eventType, Payload: body, OccurredAt: time.Now().UTC()})
}

// Redis publishes events on a pub/sub channel
type Redis struct {
	client  *redis.Client
	channel string
}

// NewRedis connects to the server at url (redis://...) and publishes on channel
func NewRedis(url, channel string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	return NewRedisWithClient(redis.NewClient(opts), channel), nil
}

// NewRedisWithClient publishes on channel through an existing client
func NewRedisWithClient(client *redis.Client, channel string) *Redis {
	return &Redis{client: client, channel: channel}
}

// Publish implements Sink
func (r *Redis) Publish(ctx context.Context, eventType string, payload any) error {
	msg, err := envelope(eventType, payload)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, msg).Err(); err != nil {
		return errors.Wrapf(err, "publish %s", eventType)
	}
	return nil
}

// Ping checks the connection
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the connection pool
func (r *Redis) Close() error {
	return r.client.Close()
}

// Log writes events to the logger only. Used when no broker is configured.
type Log struct {
	log *logrus.Entry
}

// NewLog creates a Log sink
func NewLog(log *logrus.Logger) *Log {
	return &Log{log: log.WithField("component", "notify")}
}

// Publish implements Sink
func (l *Log) Publish(_ context.Context, eventType string, payload any) error {
	msg, err := envelope(eventType, payload)
	if err != nil {
		return err
	}
	l.log.WithField("event", eventType).Info(string(msg))
	return nil
}
