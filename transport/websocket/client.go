package websocket

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// client is one websocket connection. A client belongs to at most one
// room at a time; joining binds it to the room's snapshot feed until
// it leaves or disconnects.
type client struct {
	id   string
	conn *websocket.Conn
	send chan *Message
	done chan struct{}

	mu          sync.Mutex
	roomID      string
	name        string
	unsubscribe func()
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan *Message, 16),
		done: make(chan struct{}),
	}
}

// writePump serializes all writes to the connection. It runs until the
// connection is torn down; send itself is never closed because the
// event forwarder may still be queueing when the client disconnects.
func (that *client) writePump(logger *slog.Logger) {
	log := logger.With("method", "writePump", "clientID", that.id)

	for {
		select {
		case <-that.done:
			return
		case msg := <-that.send:
			if err := that.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error("failed to set write deadline", "error", err)
				return
			}

			if err := that.conn.WriteJSON(msg); err != nil {
				log.Error("failed to write message", "error", err)
				return
			}
		}
	}
}

// queue hands a message to the write pump without blocking. Snapshots
// are idempotent replacements, so dropping one under backpressure is
// safe; the next snapshot supersedes it.
func (that *client) queue(logger *slog.Logger, msg *Message) {
	select {
	case that.send <- msg:
	default:
		logger.Warn("dropping message for slow client", "clientID", that.id, "action", msg.Action)
	}
}

func (that *client) session() (string, string, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.roomID, that.name, that.roomID != ""
}

func (that *client) setSession(roomID, name string, unsubscribe func()) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.unsubscribe != nil {
		that.unsubscribe()
	}

	that.roomID = roomID
	that.name = name
	that.unsubscribe = unsubscribe
}

// clearSession detaches the client from its room and returns the
// pending unsubscribe, or nil if there was none.
func (that *client) clearSession() func() {
	that.mu.Lock()
	defer that.mu.Unlock()

	unsubscribe := that.unsubscribe
	that.roomID = ""
	that.name = ""
	that.unsubscribe = nil

	return unsubscribe
}
