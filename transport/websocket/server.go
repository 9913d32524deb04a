package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/roomgrid/tictactoe-rooms/internal/entity"
	"github.com/roomgrid/tictactoe-rooms/internal/pubsub"
)

type coordinator interface {
	CreateOrJoin(ctx context.Context, roomID, name string) (*entity.Room, *entity.Player, error)
	MakeMove(ctx context.Context, roomID, name string, cell int) (*entity.Room, error)
	Restart(ctx context.Context, roomID, name string) (*entity.Room, error)
	Leave(ctx context.Context, roomID, name string) error
	Heartbeat(ctx context.Context, roomID, name string) error
}

type roomSubscriber interface {
	SubscribeRoom(ctx context.Context, roomID string) (<-chan *pubsub.Event, func())
}

type Server struct {
	logger      *slog.Logger
	coordinator coordinator
	broker      roomSubscriber
	upgrader    websocket.Upgrader

	handlers map[string]func(ctx context.Context, cl *client, msg *Message) error
}

func New(logger *slog.Logger, coordinator coordinator, broker roomSubscriber) *Server {
	server := &Server{
		logger:      logger,
		coordinator: coordinator,
		broker:      broker,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},

		handlers: make(map[string]func(context.Context, *client, *Message) error),
	}

	server.handlers[actionRoomJoin] = server.handleJoin
	server.handlers[actionRoomMove] = server.handleMove
	server.handlers[actionRoomRestart] = server.handleRestart
	server.handlers[actionRoomLeave] = server.handleLeave
	server.handlers[actionRoomHeartbeat] = server.handleHeartbeat

	return server
}

// Start - starts the websocket server.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.serveConnection(ctx, w, r)
	})

	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     mux,
		IdleTimeout: 30 * time.Second,
	}

	if err := srv.ListenAndServe(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func (that *Server) serveConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "serveConnection")

	conn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	cl := newClient(conn)
	log = log.With("clientID", cl.id)
	log.Info("websocket connection established")

	go cl.writePump(that.logger)

	that.readLoop(connCtx, cl)
	that.disconnect(connCtx, cl)
}

func (that *Server) readLoop(ctx context.Context, cl *client) {
	log := that.logger.With("method", "readLoop", "clientID", cl.id)

	for {
		var msg Message
		if err := cl.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error("connection closed unexpectedly", "error", err)
			}
			return
		}

		handler, ok := that.handlers[msg.Action]
		if !ok {
			log.Warn("unknown action", "action", msg.Action)
			that.sendError(cl, msg.Action, "unknown action")
			continue
		}

		if err := handler(ctx, cl, &msg); err != nil {
			log.Error("error processing message", "action", msg.Action, "error", err)
		}
	}
}

// disconnect covers the non-graceful path: a closed connection leaves
// the room on the player's behalf. The reaper backstops the case where
// this call itself fails.
func (that *Server) disconnect(ctx context.Context, cl *client) {
	log := that.logger.With("method", "disconnect", "clientID", cl.id)

	roomID, name, joined := cl.session()

	if unsubscribe := cl.clearSession(); unsubscribe != nil {
		unsubscribe()
	}

	if joined {
		if err := that.coordinator.Leave(ctx, roomID, name); err != nil {
			log.Error("failed to leave room on disconnect", "roomID", roomID, "error", err)
		}
	}

	close(cl.done)

	if err := cl.conn.Close(); err != nil {
		log.Debug("failed to close connection", "error", err)
	}

	log.Info("websocket connection closed")
}
