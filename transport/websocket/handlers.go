package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roomgrid/tictactoe-rooms/internal/apperror"
	"github.com/roomgrid/tictactoe-rooms/internal/pubsub"
	"github.com/roomgrid/tictactoe-rooms/internal/usecase"
)

func (that *Server) handleJoin(ctx context.Context, cl *client, msg *Message) error {
	log := that.logger.With("method", "handleJoin", "clientID", cl.id)

	payloadReq, err := decodePayload(msg)
	if err != nil {
		return err
	}

	if payloadReq.RoomID == "" || payloadReq.Name == "" {
		return that.sendError(cl, msg.Action, "room_id and name are required")
	}

	// switching rooms must free the old symbol slot instead of leaving
	// a ghost participant behind for the reaper
	if prevRoomID, prevName, joined := cl.session(); joined && prevRoomID != payloadReq.RoomID {
		if unsubscribe := cl.clearSession(); unsubscribe != nil {
			unsubscribe()
		}

		if err := that.coordinator.Leave(ctx, prevRoomID, prevName); err != nil {
			log.Error("failed to leave previous room", "roomID", prevRoomID, "error", err)
		}
	}

	room, player, err := that.coordinator.CreateOrJoin(ctx, payloadReq.RoomID, payloadReq.Name)
	if err != nil {
		log.Error("failed to join room", "roomID", payloadReq.RoomID, "error", err)
		return that.sendRejection(cl, msg.Action, err)
	}

	events, unsubscribe := that.broker.SubscribeRoom(ctx, room.ID)
	cl.setSession(room.ID, player.Name, unsubscribe)

	go that.forwardEvents(cl, events)

	log.Info("player joined room", "roomID", room.ID, "name", player.Name, "mark", player.Mark)

	return that.sendMessage(cl, msg.Action, Payload{Room: room, Player: player})
}

func (that *Server) handleMove(ctx context.Context, cl *client, msg *Message) error {
	log := that.logger.With("method", "handleMove", "clientID", cl.id)

	payloadReq, err := decodePayload(msg)
	if err != nil {
		return err
	}

	roomID, name, joined := cl.session()
	if !joined {
		return that.sendError(cl, msg.Action, "join a room first")
	}

	if payloadReq.Cell == nil {
		return that.sendError(cl, msg.Action, "cell is required")
	}

	room, err := that.coordinator.MakeMove(ctx, roomID, name, *payloadReq.Cell)
	if err != nil {
		log.Error("failed to make move", "roomID", roomID, "error", err)
		return that.sendRejection(cl, msg.Action, err)
	}

	return that.sendMessage(cl, msg.Action, Payload{Room: room})
}

func (that *Server) handleRestart(ctx context.Context, cl *client, msg *Message) error {
	log := that.logger.With("method", "handleRestart", "clientID", cl.id)

	roomID, name, joined := cl.session()
	if !joined {
		return that.sendError(cl, msg.Action, "join a room first")
	}

	room, err := that.coordinator.Restart(ctx, roomID, name)
	if err != nil {
		log.Error("failed to restart room", "roomID", roomID, "error", err)
		return that.sendRejection(cl, msg.Action, err)
	}

	log.Info("room restarted", "roomID", roomID)

	return that.sendMessage(cl, msg.Action, Payload{Room: room})
}

func (that *Server) handleLeave(ctx context.Context, cl *client, msg *Message) error {
	log := that.logger.With("method", "handleLeave", "clientID", cl.id)

	roomID, name, joined := cl.session()
	if !joined {
		return that.sendError(cl, msg.Action, "join a room first")
	}

	if unsubscribe := cl.clearSession(); unsubscribe != nil {
		unsubscribe()
	}

	if err := that.coordinator.Leave(ctx, roomID, name); err != nil {
		log.Error("failed to leave room", "roomID", roomID, "error", err)
		return that.sendRejection(cl, msg.Action, err)
	}

	log.Info("player left room", "roomID", roomID, "name", name)

	return that.sendMessage(cl, msg.Action, Payload{RoomID: roomID})
}

func (that *Server) handleHeartbeat(ctx context.Context, cl *client, msg *Message) error {
	roomID, name, joined := cl.session()
	if !joined {
		return that.sendError(cl, msg.Action, "join a room first")
	}

	// a heartbeat racing room deletion is a silent no-op
	if err := that.coordinator.Heartbeat(ctx, roomID, name); err != nil {
		return fmt.Errorf("failed to heartbeat: %w", err)
	}

	return nil
}

// forwardEvents pushes committed room snapshots to the client until
// its subscription is closed. Publishes happen after the storage
// transaction, so a slow writer can deliver an older version behind a
// newer one; Version is the order authority and stale snapshots are
// dropped rather than forwarded. A closed event is terminal.
func (that *Server) forwardEvents(cl *client, events <-chan *pubsub.Event) {
	var lastVersion int64

	for event := range events {
		if event.Closed {
			cl.queue(that.logger, newMessage(actionRoomClosed, Payload{RoomID: event.RoomID}))
			return
		}

		if event.Room == nil || event.Room.Version <= lastVersion {
			continue
		}

		lastVersion = event.Room.Version

		cl.queue(that.logger, newMessage(actionRoomState, Payload{Room: event.Room}))
	}
}

func (that *Server) sendMessage(cl *client, action string, payload Payload) error {
	cl.queue(that.logger, newMessage(action, payload))
	return nil
}

// sendRejection maps coordinator errors to client-facing rejections;
// anything outside the taxonomy stays internal.
func (that *Server) sendRejection(cl *client, action string, err error) error {
	for _, known := range []error{
		apperror.ErrRoomFull,
		apperror.ErrRoomNotFound,
		apperror.ErrNotInRoom,
		apperror.ErrNotYourTurn,
		apperror.ErrGameFinished,
		apperror.ErrCellOccupied,
		apperror.ErrInvalidCell,
		apperror.ErrConflict,
		usecase.ErrEmptyName,
	} {
		if errors.Is(err, known) {
			return that.sendError(cl, action, known.Error())
		}
	}

	if errors.Is(err, apperror.ErrStorageUnavailable) {
		return that.sendError(cl, action, "storage unavailable, try again")
	}

	return that.sendError(cl, action, "internal error")
}

func (that *Server) sendError(cl *client, action, errorMsg string) error {
	cl.queue(that.logger, newMessage(action, Payload{Error: errorMsg}))
	return nil
}

func newMessage(action string, payload Payload) *Message {
	raw, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}

	return &Message{
		Action:  action,
		Payload: raw,
	}
}

func decodePayload(msg *Message) (*Payload, error) {
	var payload Payload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
	}

	return &payload, nil
}
