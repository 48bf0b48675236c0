// Package ws implements the push channel of the support subsystem: a
// WebSocket endpoint carrying JSON event envelopes, with per-thread rooms so
// message delivery stays scoped to a thread's participants.
//
// The wire protocol mirrors the HTTP layer's camelCase JSON:
//
//	→ {"event":"join_thread",  "data":{"token":"…","threadId":"…"}}
//	→ {"event":"send_message", "data":{"token":"…","threadId":"…","text":"…"}}
//	← {"event":"joined_thread","data":{"threadId":"…"}}
//	← {"event":"new_message",  "data":{…SupportMessage…}}
//	← {"event":"error",        "data":{"message":"…"}}
//
// Messages are broadcast only after persistence, so every member (including
// the sender) receives the same server-confirmed row.
package ws

import (
	"encoding/json"
	"sync"
)

// Envelope is one framed event on the push channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Event names understood by the hub.
const (
	EventJoinThread   = "join_thread"
	EventSendMessage  = "send_message"
	EventJoinedThread = "joined_thread"
	EventNewMessage   = "new_message"
	EventError        = "error"
)

// JoinPayload is the inbound body of a join_thread event.
type JoinPayload struct {
	Token    string `json:"token"`
	ThreadID string `json:"threadId"`
}

// SendPayload is the inbound body of a send_message event.
type SendPayload struct {
	Token    string `json:"token"`
	ThreadID string `json:"threadId"`
	Text     string `json:"text"`
}

// ErrorPayload is the outbound body of an error event.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Hub tracks connected clients and their room memberships. A room is keyed
// by thread ID; a client may sit in many rooms at once (a consultant keeps
// earlier rooms when switching threads, matching join-only semantics).
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]struct{})}
}

// Join subscribes c to the room for threadID. Joining the same room twice is
// a no-op, so repeated joins never duplicate delivery.
func (h *Hub) Join(c *Client, threadID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[threadID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[threadID] = room
	}
	room[c] = struct{}{}
}

// Remove detaches c from every room. Called when the connection closes.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for threadID, room := range h.rooms {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, threadID)
		}
	}
}

// Broadcast sends an event to every client currently in the thread's room.
// Slow clients are skipped rather than blocking the room (their send buffer
// is full; the read loop will reap them).
func (h *Hub) Broadcast(threadID, event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		return
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: raw})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[threadID] {
		c.trySend(frame)
	}
}

// RoomSize reports the number of clients in a thread's room.
func (h *Hub) RoomSize(threadID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[threadID])
}
