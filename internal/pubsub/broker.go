package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/roomgrid/tictactoe-rooms/internal/entity"
)

const roomChannelPrefix = "room-events:"

// Event is one committed room change fanned out to subscribers.
// Snapshots are idempotent replacements, not deltas; Closed marks the
// room's deletion and is the last event on its channel.
type Event struct {
	RoomID string       `json:"room_id"`
	Room   *entity.Room `json:"room,omitempty"`
	Closed bool         `json:"closed,omitempty"`
}

// Broker fans committed room snapshots out over Redis Pub/Sub, one
// channel per room. Publishing happens after the commit transaction,
// so two racing writers can deliver their snapshots out of commit
// order; the room Version carries the per-room total order and
// consumers must drop snapshots at or below the last one applied.
type Broker struct {
	logger *slog.Logger
	client *redis.Client
}

func NewBroker(logger *slog.Logger, client *redis.Client) *Broker {
	return &Broker{
		logger: logger,
		client: client,
	}
}

func (that *Broker) PublishRoom(ctx context.Context, room *entity.Room) error {
	return that.publish(ctx, room.ID, &Event{RoomID: room.ID, Room: room})
}

func (that *Broker) PublishRoomClosed(ctx context.Context, roomID string) error {
	return that.publish(ctx, roomID, &Event{RoomID: roomID, Closed: true})
}

func (that *Broker) publish(ctx context.Context, roomID string, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("could not marshal event: %w", err)
	}

	if err = that.client.Publish(ctx, roomChannelPrefix+roomID, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// SubscribeRoom returns a channel of events for one room and a stop
// function. The channel is closed after stop is called or the context
// ends.
func (that *Broker) SubscribeRoom(ctx context.Context, roomID string) (<-chan *Event, func()) {
	log := that.logger.With("method", "SubscribeRoom", "roomID", roomID)

	sub := that.client.Subscribe(ctx, roomChannelPrefix+roomID)
	events := make(chan *Event)

	go func() {
		defer close(events)

		for msg := range sub.Channel() {
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error("failed to unmarshal event", "error", err)
				continue
			}

			select {
			case events <- &event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, func() {
		if err := sub.Close(); err != nil {
			log.Error("failed to close subscription", "error", err)
		}
	}
}
