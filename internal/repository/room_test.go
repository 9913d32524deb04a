package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/roomgrid/tictactoe-rooms/internal/apperror"
	"github.com/roomgrid/tictactoe-rooms/internal/entity"
	"github.com/roomgrid/tictactoe-rooms/testing/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRejected = errors.New("rejected")

var testTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestRoomRepository_Mutate(t *testing.T) {
	t.Run("Creates a room when none exists", func(t *testing.T) {
		ctx, st := suite.New(t)

		roomRepo := NewRoomRepository(st.Storage)

		// When: Mutate runs against an absent room
		committed, err := roomRepo.Mutate(ctx, "R1", func(current *entity.Room) (*entity.Room, error) {
			// Then: the callback sees no current state
			assert.Nil(t, current)

			return entity.NewRoom("R1", testTime), nil
		})

		// Then: the room is committed with version 1
		require.NoError(t, err)
		require.NotNil(t, committed)
		assert.Equal(t, int64(1), committed.Version)

		stored, err := roomRepo.GetByID(ctx, "R1")
		require.NoError(t, err)
		assert.Equal(t, committed.Version, stored.Version)
	})

	t.Run("Version increases by one per commit", func(t *testing.T) {
		ctx, st := suite.New(t)

		roomRepo := NewRoomRepository(st.Storage)

		touch := func(current *entity.Room) (*entity.Room, error) {
			if current == nil {
				current = entity.NewRoom("R1", testTime)
			}
			return current, nil
		}

		for want := int64(1); want <= 3; want++ {
			committed, err := roomRepo.Mutate(ctx, "R1", touch)
			require.NoError(t, err)
			assert.Equal(t, want, committed.Version)
		}
	})

	t.Run("Returning nil deletes the room", func(t *testing.T) {
		ctx, st := suite.New(t)

		roomRepo := NewRoomRepository(st.Storage)

		_, err := roomRepo.Mutate(ctx, "R1", func(*entity.Room) (*entity.Room, error) {
			return entity.NewRoom("R1", testTime), nil
		})
		require.NoError(t, err)

		// When: the callback returns nil state
		committed, err := roomRepo.Mutate(ctx, "R1", func(*entity.Room) (*entity.Room, error) {
			return nil, nil
		})

		// Then: the room is gone
		require.NoError(t, err)
		assert.Nil(t, committed)

		_, err = roomRepo.GetByID(ctx, "R1")
		assert.ErrorIs(t, err, apperror.ErrRoomNotFound)
	})

	t.Run("A callback error aborts without writing", func(t *testing.T) {
		ctx, st := suite.New(t)

		roomRepo := NewRoomRepository(st.Storage)

		// When: the callback rejects the mutation
		_, err := roomRepo.Mutate(ctx, "R1", func(*entity.Room) (*entity.Room, error) {
			return nil, errRejected
		})

		// Then: the error surfaces and nothing was stored
		require.ErrorIs(t, err, errRejected)

		_, err = roomRepo.GetByID(ctx, "R1")
		assert.ErrorIs(t, err, apperror.ErrRoomNotFound)
	})

	t.Run("A concurrent write fails the commit with ErrConflict", func(t *testing.T) {
		ctx, st := suite.New(t)

		roomRepo := NewRoomRepository(st.Storage)

		_, err := roomRepo.Mutate(ctx, "R1", func(*entity.Room) (*entity.Room, error) {
			return entity.NewRoom("R1", testTime), nil
		})
		require.NoError(t, err)

		// When: another writer touches the key between read and commit
		_, err = roomRepo.Mutate(ctx, "R1", func(current *entity.Room) (*entity.Room, error) {
			require.NoError(t, st.Storage.Set(ctx, "room:R1", `{"id":"R1"}`, 0).Err())
			return current, nil
		})

		// Then: the transaction fails instead of silently overwriting
		assert.ErrorIs(t, err, apperror.ErrConflict)
	})
}

func TestRoomRepository_GetByID(t *testing.T) {
	t.Run("GetByID_NotFound", func(t *testing.T) {
		ctx, st := suite.New(t)

		roomRepo := NewRoomRepository(st.Storage)

		// When: GetByID is called with a non-existent ID
		_, err := roomRepo.GetByID(ctx, "nope")

		// Then: absence is reported, not storage failure
		require.ErrorIs(t, err, apperror.ErrRoomNotFound)
		assert.NotErrorIs(t, err, apperror.ErrStorageUnavailable)
	})
}

func TestRoomRepository_ActiveRoomIDs(t *testing.T) {
	ctx, st := suite.New(t)

	roomRepo := NewRoomRepository(st.Storage)

	for _, id := range []string{"R1", "R2"} {
		_, err := roomRepo.Mutate(ctx, id, func(*entity.Room) (*entity.Room, error) {
			return entity.NewRoom(id, testTime), nil
		})
		require.NoError(t, err)
	}

	ids, err := roomRepo.ActiveRoomIDs(ctx)

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"R1", "R2"}, ids)
}
