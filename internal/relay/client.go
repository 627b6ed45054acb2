package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"pizza-tracker/internal/common/logger"
	"pizza-tracker/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// LocationSink receives GPS fixes published over a rider's connection.
// The service layer implements it: store the fix, then relay it.
type LocationSink interface {
	PublishLocation(ctx context.Context, p LocationPayload) error
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The storefront pages are served from the same origin in
	// production; the demo modes dial from CLI tools.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Conn is one websocket connection: a read pump handling join/leave and
// rider publishes, a write pump draining the buffered send queue.
type Conn struct {
	ws   *websocket.Conn
	send chan []byte

	hub  *Hub
	auth Authorizer
	sink LocationSink
	lg   *logger.Logger

	// rooms this connection was admitted to; touched only by readPump.
	joined map[string]bool
}

// ServeWS upgrades the request and runs the connection until it closes.
// Closing drops all room memberships; nothing else is retained.
func ServeWS(hub *Hub, auth Authorizer, sink LocationSink, lg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			lg.Error("ws_upgrade_failed", err, nil)
			return
		}
		c := &Conn{
			ws:     ws,
			send:   make(chan []byte, sendBuffer),
			hub:    hub,
			auth:   auth,
			sink:   sink,
			lg:     lg,
			joined: make(map[string]bool),
		}
		go c.writePump()
		c.readPump(r.Context())
	}
}

func (c *Conn) enqueue(msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Conn) readPump(ctx context.Context) {
	defer func() {
		c.hub.Drop(c)
		close(c.send)
		_ = c.ws.Close()
	}()
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.lg.Debug("ws_read_error", map[string]any{"error": err.Error()})
			}
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.reply(ServerMessage{Type: MsgError, Error: "bad message"})
			continue
		}
		c.handle(ctx, msg)
	}
}

func (c *Conn) handle(ctx context.Context, msg ClientMessage) {
	switch msg.Type {
	case MsgJoin:
		if err := c.auth.Authorize(msg.Room, msg.Token); err != nil {
			c.reply(ServerMessage{Type: MsgError, Room: msg.Room, Error: errText(err)})
			return
		}
		c.hub.Join(c, msg.Room)
		c.joined[msg.Room] = true
		c.reply(ServerMessage{Type: MsgJoined, Room: msg.Room})
	case MsgLeave:
		c.hub.Leave(c, msg.Room)
		delete(c.joined, msg.Room)
		c.reply(ServerMessage{Type: MsgLeft, Room: msg.Room})
	case MsgPublishLocation:
		if msg.Location == nil {
			c.reply(ServerMessage{Type: MsgError, Error: "missing location"})
			return
		}
		// Only a connection admitted to its own rider room may publish
		// that rider's position.
		if !c.joined[RiderRoom(msg.Location.RiderID)] {
			c.reply(ServerMessage{Type: MsgError, Error: errText(domain.ErrUnauthorized)})
			return
		}
		if err := c.sink.PublishLocation(ctx, *msg.Location); err != nil {
			c.reply(ServerMessage{Type: MsgError, Error: errText(err)})
		}
	default:
		c.reply(ServerMessage{Type: MsgError, Error: "unknown message type"})
	}
}

func (c *Conn) reply(msg ServerMessage) {
	body, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.enqueue(body)
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func errText(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrNotFound):
		return "not found"
	default:
		return err.Error()
	}
}
