package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/campushub/portal-support/internal/auth"
	"github.com/campushub/portal-support/internal/domain"
	"github.com/campushub/portal-support/internal/services"
)

// Verifier resolves a bearer token to the acting user. Satisfied by
// services.AuthService.
type Verifier interface {
	Verify(ctx context.Context, token string) (*domain.User, *auth.Claims, error)
}

// SupportAccess is the slice of the support service the push channel needs.
type SupportAccess interface {
	IsMember(ctx context.Context, userID, threadID string) error
	Append(ctx context.Context, userID, threadID, text string) (*domain.SupportMessage, error)
}

// Handler upgrades HTTP requests to WebSocket connections and dispatches
// inbound events. Every authenticated event carries its own token, so a
// connection never holds ambient credentials.
type Handler struct {
	hub      *Hub
	verifier Verifier
	support  SupportAccess
	upgrader websocket.Upgrader
}

// NewHandler wires the push endpoint to its collaborators.
func NewHandler(hub *Hub, verifier Verifier, support SupportAccess) *Handler {
	return &Handler{
		hub:      hub,
		verifier: verifier,
		support:  support,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// CORS posture is enforced by the HTTP layer; the socket accepts
			// any origin the router let through.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Serve is the Gin route handler for GET /ws.
func (h *Handler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	client := newClient(conn)
	go h.readLoop(client)
}

// readLoop consumes inbound envelopes until the connection drops, then
// detaches the client from all rooms.
func (h *Handler) readLoop(c *Client) {
	defer func() {
		h.hub.Remove(c)
		c.close()
		log.Debug().Str("user_id", c.userID).Msg("ws connection closed")
	}()

	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(readDeadline))

		var env Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			c.sendError("malformed event")
			continue
		}

		switch env.Event {
		case EventJoinThread:
			h.handleJoin(c, env.Data)
		case EventSendMessage:
			h.handleSend(c, env.Data)
		default:
			c.sendError("unknown event")
		}
	}
}

// handleJoin authorizes the user for the thread and subscribes the client to
// its room. Join is idempotent at the hub level.
func (h *Handler) handleJoin(c *Client, data json.RawMessage) {
	var p JoinPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ThreadID == "" {
		c.sendError("malformed join_thread")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	u, _, err := h.verifier.Verify(ctx, p.Token)
	if err != nil {
		c.sendError("unauthorized")
		return
	}
	c.userID = u.ID

	if err := h.support.IsMember(ctx, u.ID, p.ThreadID); err != nil {
		c.sendError(memberErrText(err))
		return
	}

	h.hub.Join(c, p.ThreadID)
	c.sendEvent(EventJoinedThread, gin.H{"threadId": p.ThreadID})
}

// handleSend persists the message through the support service and broadcasts
// the stored row to the thread room. The sender receives the same confirmed
// echo as everyone else; nothing is delivered on failure.
func (h *Handler) handleSend(c *Client, data json.RawMessage) {
	var p SendPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ThreadID == "" {
		c.sendError("malformed send_message")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	u, _, err := h.verifier.Verify(ctx, p.Token)
	if err != nil {
		c.sendError("unauthorized")
		return
	}
	c.userID = u.ID

	msg, err := h.support.Append(ctx, u.ID, p.ThreadID, p.Text)
	if err != nil {
		if errors.Is(err, services.ErrEmptyMessage) {
			// Blank sends are dropped without an error event.
			return
		}
		c.sendError(memberErrText(err))
		return
	}

	h.hub.Broadcast(p.ThreadID, EventNewMessage, msg)
}

// memberErrText maps service errors to client-safe strings.
func memberErrText(err error) string {
	switch {
	case errors.Is(err, services.ErrThreadNotFound):
		return "thread not found"
	case errors.Is(err, services.ErrNotThreadMember):
		return "not authorized for this thread"
	default:
		return "internal error"
	}
}
