package pubsub

import (
	"testing"
	"time"

	"github.com/roomgrid/tictactoe-rooms/internal/entity"
	"github.com/roomgrid/tictactoe-rooms/testing/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const receiveTimeout = 5 * time.Second

func receiveEvent(t *testing.T, events <-chan *Event) *Event {
	t.Helper()

	select {
	case event, ok := <-events:
		require.True(t, ok, "event channel closed")
		return event
	case <-time.After(receiveTimeout):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestBroker_PublishSubscribe(t *testing.T) {
	ctx, st := suite.New(t)

	broker := NewBroker(st.Logger, st.Storage)

	events, stop := broker.SubscribeRoom(ctx, "R1")
	defer stop()

	// the subscription has to be registered before the first publish
	time.Sleep(250 * time.Millisecond)

	t.Run("Snapshots arrive in commit order", func(t *testing.T) {
		// Given: three committed versions of the room
		now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		for version := int64(1); version <= 3; version++ {
			room := entity.NewRoom("R1", now)
			room.Version = version
			require.NoError(t, broker.PublishRoom(ctx, room))
		}

		// Then: the subscriber observes them in order
		for version := int64(1); version <= 3; version++ {
			event := receiveEvent(t, events)
			require.NotNil(t, event.Room)
			assert.Equal(t, version, event.Room.Version)
			assert.Equal(t, "R1", event.RoomID)
		}
	})

	t.Run("Deletion is delivered as a closed event", func(t *testing.T) {
		// When: the room is closed
		require.NoError(t, broker.PublishRoomClosed(ctx, "R1"))

		// Then: subscribers get a tombstone, not a snapshot
		event := receiveEvent(t, events)
		assert.True(t, event.Closed)
		assert.Nil(t, event.Room)
	})
}

func TestBroker_SubscriptionIsPerRoom(t *testing.T) {
	ctx, st := suite.New(t)

	broker := NewBroker(st.Logger, st.Storage)

	events, stop := broker.SubscribeRoom(ctx, "R1")
	defer stop()

	time.Sleep(250 * time.Millisecond)

	// When: an unrelated room commits
	other := entity.NewRoom("R2", time.Now())
	other.Version = 1
	require.NoError(t, broker.PublishRoom(ctx, other))

	// Then: the R1 subscriber sees nothing
	select {
	case event := <-events:
		t.Fatalf("unexpected event for room %s", event.RoomID)
	case <-time.After(500 * time.Millisecond):
	}
}
