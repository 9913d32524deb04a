package usecase

import (
	"testing"
	"time"

	"github.com/roomgrid/tictactoe-rooms/internal/apperror"
	"github.com/roomgrid/tictactoe-rooms/internal/board"
	"github.com/roomgrid/tictactoe-rooms/testing/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const staleThreshold = 30 * time.Second

func TestReaper_Sweep(t *testing.T) {
	t.Run("Evicts only stale players and keeps the room", func(t *testing.T) {
		ctx, st := suite.New(t)
		manager, roomRepo, clock := newTestManager(st)

		reaper := NewReaper(st.Logger, roomRepo, manager, time.Second, staleThreshold)

		_, _, err := manager.CreateOrJoin(ctx, "R1", "alice")
		require.NoError(t, err)
		_, _, err = manager.CreateOrJoin(ctx, "R1", "bob")
		require.NoError(t, err)

		// Given: alice heartbeats while bob goes silent past the threshold
		clock.Advance(staleThreshold + time.Second)
		require.NoError(t, manager.Heartbeat(ctx, "R1", "alice"))

		// When: the reaper sweeps
		reaper.Sweep(ctx)

		// Then: bob is evicted, alice keeps her slot
		room, err := manager.Snapshot(ctx, "R1")
		require.NoError(t, err)
		assert.Len(t, room.Players, 1)
		assert.Contains(t, room.Players, "alice")

		// And: the freed mark is available for a new joiner
		_, joiner, err := manager.CreateOrJoin(ctx, "R1", "carol")
		require.NoError(t, err)
		assert.Equal(t, board.MarkO, joiner.Mark)
	})

	t.Run("A room emptied by eviction is deleted", func(t *testing.T) {
		ctx, st := suite.New(t)
		manager, roomRepo, clock := newTestManager(st)

		reaper := NewReaper(st.Logger, roomRepo, manager, time.Second, staleThreshold)

		_, _, err := manager.CreateOrJoin(ctx, "R1", "alice")
		require.NoError(t, err)

		// Given: everyone in the room is stale
		clock.Advance(staleThreshold + time.Second)

		// When: the reaper sweeps
		reaper.Sweep(ctx)

		// Then: the room is gone
		_, err = manager.Snapshot(ctx, "R1")
		assert.ErrorIs(t, err, apperror.ErrRoomNotFound)
	})

	t.Run("Players within the threshold survive a sweep", func(t *testing.T) {
		ctx, st := suite.New(t)
		manager, roomRepo, clock := newTestManager(st)

		reaper := NewReaper(st.Logger, roomRepo, manager, time.Second, staleThreshold)

		_, _, err := manager.CreateOrJoin(ctx, "R1", "alice")
		require.NoError(t, err)

		// Given: one missed heartbeat, still inside the threshold
		clock.Advance(staleThreshold / 2)

		// When: the reaper sweeps
		reaper.Sweep(ctx)

		// Then: nothing changes
		room, err := manager.Snapshot(ctx, "R1")
		require.NoError(t, err)
		assert.Len(t, room.Players, 1)
	})
}
