package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"roots-quiz-service/internal/domain"
)

// EventSink receives events relayed from other instances.
type EventSink interface {
	Publish(ev domain.Event)
}

// Broadcaster fans notifications out across instances through Redis pub/sub.
// Every instance runs Relay to push received events into its local hub, so
// an event published anywhere reaches every connected listener.
type Broadcaster struct {
	client  *redis.Client
	channel string
}

func NewBroadcaster(client *redis.Client, channel string) *Broadcaster {
	return &Broadcaster{client: client, channel: channel}
}

type wireEvent struct {
	Name    string          `json:"event"`
	Payload json.RawMessage `json:"data"`
}

func (b *Broadcaster) Broadcast(ctx context.Context, event string, payload any) error {
	data, err := json.Marshal(domain.Event{Name: event, Payload: payload})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return domain.StoreError("publish event", err)
	}
	return nil
}

// Relay subscribes to the channel and forwards events to sink until ctx is
// done. ready, if non-nil, is closed once the subscription is active.
func (b *Broadcaster) Relay(ctx context.Context, sink EventSink, ready chan<- struct{}) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return domain.StoreError("subscribe events", err)
	}
	if ready != nil {
		close(ready)
	}

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var ev wireEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("relay: dropping malformed event: %v", err)
				continue
			}
			sink.Publish(domain.Event{Name: ev.Name, Payload: ev.Payload})
		}
	}
}
