// Package websocket pushes live session events to judges and displays and
// accepts judge commands over the same socket.
// file: websocket/connection.go
package websocket

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go-lift-control/logger"
	"go-lift-control/models"
)

// WSConn is an interface for the WebSocket connection.
type WSConn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	ReadMessage() (int, []byte, error)
	Close() error
	RemoteAddr() net.Addr
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
}

// Connection represents a single WebSocket connection for one client.
type Connection struct {
	hub       *Hub
	conn      WSConn
	send      chan []byte
	sessionID string
	actor     models.Actor
}

// Configuration constants.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	maxMessageSize = 2048
	sendBuffer     = 256
)

// pingPeriod must stay below pongWait. Tests shorten it.
var pingPeriod = (pongWait * 9) / 10

// Upgrader upgrades HTTP requests to WebSocket connections.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// judges connect from tablets on the venue network
		return true
	},
}

// ServeWs upgrades the request and attaches the client to sessionID as actor.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request, sessionID string, actor models.Actor) {
	logger.Info.Printf("[ServeWs] Upgrading to WS: remoteAddr=%v, session=%q, actor=%s", r.RemoteAddr, sessionID, actor.ID)
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error
		logger.Error.Printf("[ServeWs] WebSocket upgrade error: %v", err)
		return
	}
	c := h.Attach(wsConn, sessionID, actor)
	go c.readPump()
	go c.writePump()
}

// Attach registers an established connection without starting its pumps.
func (h *Hub) Attach(conn WSConn, sessionID string, actor models.Actor) *Connection {
	c := &Connection{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		sessionID: sessionID,
		actor:     actor,
	}
	h.register(c)
	return c
}

// readPump handles inbound messages from the client.
func (c *Connection) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn.Printf("[readPump] Read error from %v: %v", c.conn.RemoteAddr(), err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			logger.Debug.Printf("[readPump] Ignoring non-text messageType=%d", messageType)
			continue
		}

		var cmd Command
		if err := json.Unmarshal(message, &cmd); err != nil {
			logger.Warn.Printf("[readPump] Invalid JSON from %v: %v", c.conn.RemoteAddr(), err)
			c.reply(errorReply("", "INVALID_MESSAGE", "message is not valid JSON"))
			continue
		}
		c.reply(c.hub.handleCommand(context.Background(), c, cmd))
	}
}

// writePump handles outbound messages to the client, including periodic pings.
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				logger.Debug.Printf("[writePump] Send channel closed for %v", c.conn.RemoteAddr())
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Warn.Printf("[writePump] Error writing to %v: %v", c.conn.RemoteAddr(), err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Warn.Printf("[writePump] Ping error for %v: %v", c.conn.RemoteAddr(), err)
				return
			}
		}
	}
}

// reply queues a direct response to this client only.
func (c *Connection) reply(r Reply) {
	out, err := marshalJSON(r)
	if err != nil {
		logger.Error.Printf("[reply] Error marshalling %s reply: %v", r.Action, err)
		return
	}
	c.hub.deliver(c, out)
}
