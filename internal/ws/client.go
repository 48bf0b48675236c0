package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// readDeadline allows two or three missed heartbeats before reaping.
	readDeadline = 90 * time.Second
	// writeTimeout keeps a stuck peer from blocking the write pump.
	writeTimeout = 10 * time.Second
	// pingInterval drives the server-side heartbeat.
	pingInterval = 30 * time.Second
	// readLimit caps a single inbound frame.
	readLimit = int64(8 << 10)
	// sendBuffer is the per-client outbound queue length.
	sendBuffer = 32
)

// Client is one live WebSocket connection. Reads are handled by the owning
// handler's read loop; writes go through the buffered send channel so that
// broadcasts never write to the conn concurrently.
type Client struct {
	conn *websocket.Conn
	send chan []byte

	// userID is set once the first authenticated event arrives; used only
	// for log context.
	userID string
}

// newClient wraps an upgraded connection and starts its write pump.
func newClient(conn *websocket.Conn) *Client {
	c := &Client{conn: conn, send: make(chan []byte, sendBuffer)}
	go c.writePump()
	return c
}

// trySend queues a frame without blocking; a full buffer drops the frame.
func (c *Client) trySend(frame []byte) {
	select {
	case c.send <- frame:
	default:
		log.Warn().Str("user_id", c.userID).Msg("ws send buffer full, dropping frame")
	}
}

// sendEvent marshals and queues one envelope.
func (c *Client) sendEvent(event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		return
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: raw})
	if err != nil {
		return
	}
	c.trySend(frame)
}

// sendError queues an error event.
func (c *Client) sendError(msg string) {
	c.sendEvent(EventError, ErrorPayload{Message: msg})
}

// writePump drains the send channel onto the connection and emits pings.
// It exits when the send channel closes or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// close shuts the outbound side; writePump then closes the conn.
func (c *Client) close() {
	close(c.send)
}
