package realtime

import (
	"log/slog"
	"sync"

	v1 "github.com/sennadevos/Chat-Application/contracts/realtime/v1"
)

// Hub tracks connected clients by user id and provides the "send to a user's
// private address" primitive consumed by the dispatcher.
//
// A user may hold several concurrent connections (multiple tabs/devices);
// Deliver fans the envelope out to all of them.
type Hub struct {
	log *slog.Logger

	mu    sync.RWMutex
	users map[string]map[string]*Client // userID -> sessionID -> client
}

// NewHub constructs a Hub instance.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:   log,
		users: make(map[string]map[string]*Client),
	}
}

// Register attaches a connected client to its user's address.
func (h *Hub) Register(client *Client) {
	if client == nil || client.UserID == "" || client.SessionID == "" {
		return
	}

	h.mu.Lock()
	sessions, ok := h.users[client.UserID]
	if !ok {
		sessions = make(map[string]*Client)
		h.users[client.UserID] = sessions
	}
	sessions[client.SessionID] = client
	h.mu.Unlock()

	h.log.Info("hub.client.register", "user_id", client.UserID, "session_id", client.SessionID)
}

// Unregister detaches a client and signals its shutdown.
func (h *Hub) Unregister(userID, sessionID string) {
	if userID == "" || sessionID == "" {
		return
	}

	var cl *Client

	h.mu.Lock()
	if sessions, ok := h.users[userID]; ok {
		cl = sessions[sessionID]
		delete(sessions, sessionID)
		if len(sessions) == 0 {
			delete(h.users, userID)
		}
	}
	h.mu.Unlock()

	// Signal client shutdown after removal so a concurrent Deliver holding a
	// pointer observes Done and skips it.
	if cl != nil {
		cl.Close()
	}

	h.log.Info("hub.client.unregister", "user_id", userID, "session_id", sessionID)
}

// Connections reports the number of live connections for userID.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

// Deliver sends env to every connection of userID.
// Non-blocking: a full queue or a closing client drops rather than stall.
// Returns false when the user is unreachable (offline or all sends dropped).
func (h *Hub) Deliver(userID string, env v1.Envelope) bool {
	h.mu.RLock()
	sessions := h.users[userID]
	clients := make([]*Client, 0, len(sessions))
	for _, c := range sessions {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	delivered := false
	for _, c := range clients {
		if c == nil {
			continue
		}

		select {
		case <-c.Done():
			// Skip clients that are shutting down.
			continue
		default:
		}

		select {
		case c.Send <- env:
			delivered = true
		default:
			// Drop rather than block dispatch on a slow recipient.
			h.log.Warn("hub.deliver.drop", "user_id", userID, "session_id", c.SessionID)
		}
	}
	return delivered
}
