// file: websocket/hub.go
package websocket

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"go-lift-control/logger"
	"go-lift-control/models"
	"go-lift-control/services"
)

var _ services.EventPublisher = (*Hub)(nil)

// marshalJSON encodes every outbound message; tests replace it.
var marshalJSON = json.Marshal

// Commands is the part of the live engine judges can drive over the socket.
type Commands interface {
	ClaimNextAttempt(ctx context.Context, sessionID string, actor models.Actor) (services.ClaimResult, error)
	ReleaseAttempt(ctx context.Context, sessionID, attemptID string, actor models.Actor) (*models.QueueItem, error)
	SubmitVote(ctx context.Context, sessionID, attemptID string, actor models.Actor, decision models.Decision, notes string) (services.VoteResult, error)
}

// SubscriberGauge receives the subscriber count of a session whenever it changes.
type SubscriberGauge interface {
	SubscriberCount(sessionID string, count int)
}

// Hub fans events out to the clients subscribed to each session.
type Hub struct {
	commands Commands
	gauge    SubscriberGauge

	mu       sync.RWMutex
	sessions map[string]map[*Connection]bool
}

// NewHub creates a hub. commands may be nil for a display-only hub; gauge may be nil.
func NewHub(commands Commands, gauge SubscriberGauge) *Hub {
	return &Hub{
		commands: commands,
		gauge:    gauge,
		sessions: make(map[string]map[*Connection]bool),
	}
}

// SetCommands connects the engine after construction, since the engine
// publishes through the hub. Call it before serving clients.
func (h *Hub) SetCommands(commands Commands) {
	h.commands = commands
}

// Command is an inbound client message.
type Command struct {
	Action    string          `json:"action"`
	AttemptID string          `json:"attemptId"`
	Decision  models.Decision `json:"decision"`
	Notes     string          `json:"notes"`
}

// Reply answers one Command on the issuing connection.
type Reply struct {
	Action  string      `json:"action"`
	OK      bool        `json:"ok"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

func errorReply(action, code, message string) Reply {
	return Reply{Action: action, Code: code, Message: message}
}

// Publish broadcasts event to every client of its session. Slow clients drop
// messages rather than stall the engine.
func (h *Hub) Publish(event models.Event) {
	out, err := marshalJSON(event)
	if err != nil {
		logger.Error.Printf("[Hub.Publish] Error marshalling %s event: %v", event.Type, err)
		return
	}
	h.broadcastToSession(event.SessionID, out)
}

// Subscribers returns how many clients watch sessionID.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// CloseAll disconnects every client.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, conns := range h.sessions {
		for c := range conns {
			close(c.send)
		}
		delete(h.sessions, id)
	}
}

func (h *Hub) handleCommand(ctx context.Context, c *Connection, cmd Command) Reply {
	logger.Debug.Printf("[handleCommand] Action=%s, actor=%s, session=%s", cmd.Action, c.actor.ID, c.sessionID)
	if h.commands == nil {
		return errorReply(cmd.Action, "READ_ONLY", "this connection only receives updates")
	}

	var (
		result interface{}
		err    error
	)
	switch cmd.Action {
	case "claimAttempt":
		result, err = h.commands.ClaimNextAttempt(ctx, c.sessionID, c.actor)
	case "releaseAttempt":
		result, err = h.commands.ReleaseAttempt(ctx, c.sessionID, cmd.AttemptID, c.actor)
	case "submitVote":
		result, err = h.commands.SubmitVote(ctx, c.sessionID, cmd.AttemptID, c.actor, cmd.Decision, cmd.Notes)
	default:
		logger.Debug.Printf("[handleCommand] Unhandled action: %s", cmd.Action)
		return errorReply(cmd.Action, "UNKNOWN_ACTION", "unknown action")
	}

	if err != nil {
		if e, ok := services.AsError(err); ok {
			if e.Kind == services.KindConflict {
				logger.Info.Printf("[handleCommand] %s by %s: %v", cmd.Action, c.actor.ID, err)
			}
			return errorReply(cmd.Action, e.Code, e.Message)
		}
		logger.Error.Printf("[handleCommand] %s by %s failed: %v", cmd.Action, c.actor.ID, err)
		return errorReply(cmd.Action, "INTERNAL", "internal error")
	}
	return Reply{Action: cmd.Action, OK: true, Result: result}
}

// ------------------------ registry ------------------------

func (h *Hub) register(c *Connection) {
	h.mu.Lock()
	conns := h.sessions[c.sessionID]
	if conns == nil {
		conns = make(map[*Connection]bool)
		h.sessions[c.sessionID] = conns
	}
	conns[c] = true
	n := len(conns)
	h.mu.Unlock()

	logger.Info.Printf("[Hub] %s joined session=%s (%d connected)", c.actor.ID, c.sessionID, n)
	h.afterMembershipChange(c.sessionID, n)
}

func (h *Hub) unregister(c *Connection) {
	h.mu.Lock()
	conns := h.sessions[c.sessionID]
	if _, ok := conns[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(conns, c)
	close(c.send)
	n := len(conns)
	if n == 0 {
		delete(h.sessions, c.sessionID)
	}
	h.mu.Unlock()

	logger.Info.Printf("[Hub] %s left session=%s (%d connected)", c.actor.ID, c.sessionID, n)
	h.afterMembershipChange(c.sessionID, n)
}

func (h *Hub) afterMembershipChange(sessionID string, n int) {
	if h.gauge != nil {
		h.gauge.SubscriberCount(sessionID, n)
	}
	h.broadcastPresence(sessionID)
}

// presenceMessage lists the judges connected to a session.
type presenceMessage struct {
	Action          string   `json:"action"`
	SessionID       string   `json:"sessionId"`
	ConnectedJudges []string `json:"connectedJudges"`
	Subscribers     int      `json:"subscribers"`
}

// broadcastPresence tells a session which judges are connected.
func (h *Hub) broadcastPresence(sessionID string) {
	h.mu.RLock()
	judges := []string{}
	seen := make(map[string]bool)
	for c := range h.sessions[sessionID] {
		if c.actor.Role == models.RoleJudge && !seen[c.actor.ID] {
			seen[c.actor.ID] = true
			judges = append(judges, c.actor.ID)
		}
	}
	total := len(h.sessions[sessionID])
	h.mu.RUnlock()
	sort.Strings(judges)

	out, err := marshalJSON(presenceMessage{
		Action:          "presence",
		SessionID:       sessionID,
		ConnectedJudges: judges,
		Subscribers:     total,
	})
	if err != nil {
		logger.Error.Printf("[Hub.broadcastPresence] Error marshalling presence for session=%s: %v", sessionID, err)
		return
	}
	h.broadcastToSession(sessionID, out)
}

func (h *Hub) broadcastToSession(sessionID string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.sessions[sessionID] {
		select {
		case c.send <- message:
		default:
			logger.Warn.Printf("[Hub] Dropping message for connection %v", c.conn.RemoteAddr())
		}
	}
}

// deliver sends to one connection if it is still registered.
func (h *Hub) deliver(c *Connection, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.sessions[c.sessionID][c] {
		return
	}
	select {
	case c.send <- message:
	default:
		logger.Warn.Printf("[Hub] Dropping reply for connection %v", c.conn.RemoteAddr())
	}
}
