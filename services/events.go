package services

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"bid-analytics/utils"
)

// EventKind names a loader notification.
type EventKind string

const (
	EventLoading EventKind = "loading"
	EventError   EventKind = "error"
	EventWarning EventKind = "warning"
	EventLoaded  EventKind = "loaded"
)

// Event is one notification emitted by a Loader. Loading is only meaningful
// for EventLoading; Count carries the record count for EventLoaded and the
// rejected count for EventWarning.
type Event struct {
	Kind     EventKind `json:"kind"`
	LoadID   string    `json:"load_id,omitempty"`
	SourceID string    `json:"source_id"`
	Loading  bool      `json:"loading"`
	Message  string    `json:"message,omitempty"`
	Count    int       `json:"count,omitempty"`
	Time     time.Time `json:"time"`
}

// Observer receives loader events. Notify must not block for long; it runs
// on the loading goroutine.
type Observer interface {
	Notify(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Notify(e Event) { f(e) }

// ChannelObserver forwards events to a buffered channel and drops them when
// the reader falls behind.
type ChannelObserver struct {
	ch chan Event
}

// NewChannelObserver creates a ChannelObserver with the given buffer size.
func NewChannelObserver(buffer int) *ChannelObserver {
	return &ChannelObserver{ch: make(chan Event, buffer)}
}

func (c *ChannelObserver) Notify(e Event) {
	select {
	case c.ch <- e:
	default:
	}
}

// Events returns the receive side of the channel.
func (c *ChannelObserver) Events() <-chan Event { return c.ch }

// RedisPublisher publishes loader events as JSON on a Redis pub/sub channel
// so presentation processes elsewhere can subscribe.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	timeout time.Duration
	logger  *utils.Logger
}

// NewRedisPublisher connects to addr and verifies the connection.
func NewRedisPublisher(ctx context.Context, addr, channel string, logger *utils.Logger) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}
	return &RedisPublisher{client: client, channel: channel, timeout: 2 * time.Second, logger: logger}, nil
}

func (p *RedisPublisher) Notify(e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		p.logger.Error("[events] Marshal event: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.logger.Warn("[events] Publish to %s failed: %v", p.channel, err)
	}
}

// Close releases the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

func newLoadID() string {
	return uuid.NewString()
}
