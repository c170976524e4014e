// Package eventbus fans status changes out to other api-server replicas and carries
// them to Kafka for downstream consumers.
package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

type Event struct {
	Type      string          `json:"type"`
	Origin    string          `json:"origin,omitempty"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// StatusChanged tells other sessions which collections of a company changed.
type StatusChanged struct {
	CompID    int64    `json:"comp_id"`
	Domain    string   `json:"domain"`
	RootType  string   `json:"root_type"`
	RootID    int64    `json:"root_id"`
	NewStatus int      `json:"new_status"`
	Types     []string `json:"types"`
	Affected  int      `json:"affected"`
}

const (
	ChannelStatus = "md:events:status"

	TypeStatusChanged = "status_changed"
	TypeRecordSaved   = "record_saved"
)

type Bus struct {
	client redis.UniversalClient
	origin string
}

// NewBus returns a bus whose published events carry origin, so a replica can skip
// its own messages.
func NewBus(client redis.UniversalClient, origin string) *Bus {
	return &Bus{client: client, origin: origin}
}

func (b *Bus) Origin() string {
	return b.origin
}

func NewEvent(eventType string, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Type:      eventType,
		Timestamp: time.Now().Unix(),
		Data:      data,
	}, nil
}

func (b *Bus) Publish(ctx context.Context, channel string, event Event) error {
	event.Origin = b.origin
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channel, payload).Err()
}

// PublishStatusChanged wraps change in an event of the given type on ChannelStatus.
func (b *Bus) PublishStatusChanged(ctx context.Context, eventType string, change StatusChanged) error {
	event, err := NewEvent(eventType, change)
	if err != nil {
		return err
	}
	return b.Publish(ctx, ChannelStatus, event)
}

func (b *Bus) Subscribe(ctx context.Context, channels ...string) <-chan *Event {
	sub := b.client.Subscribe(ctx, channels...)
	ch := make(chan *Event, 100)

	go func() {
		defer close(ch)
		for msg := range sub.Channel() {
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue
			}
			if event.Origin != "" && event.Origin == b.origin {
				continue
			}
			ch <- &event
		}
	}()

	go func() {
		<-ctx.Done()
		_ = sub.Close()
	}()

	return ch
}

// DecodeStatusChanged extracts the payload of a status or save event.
func DecodeStatusChanged(event *Event) (StatusChanged, error) {
	var change StatusChanged
	err := json.Unmarshal(event.Data, &change)
	return change, err
}
