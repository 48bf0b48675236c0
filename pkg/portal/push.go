package portal

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Push channel event names, mirroring the backend's wire protocol.
const (
	eventJoinThread   = "join_thread"
	eventSendMessage  = "send_message"
	eventJoinedThread = "joined_thread"
	eventNewMessage   = "new_message"
	eventError        = "error"
)

// Reconnect backoff bounds.
const (
	reconnectBase = 500 * time.Millisecond
	reconnectMax  = 30 * time.Second
)

// pushEnvelope frames one event on the push channel.
type pushEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// PushConn is the long-lived push channel: one WebSocket per authenticated
// session, carrying room joins and confirmed message echoes. On disconnect
// it re-establishes the connection with exponential backoff and re-joins
// every room it was in, so a dropped network path does not silently strand
// an open support view.
type PushConn struct {
	url    string
	sess   *SessionContext
	dialer *websocket.Dialer

	// onMessage receives every inbound confirmed message; set before
	// Connect. Called from the read goroutine.
	onMessage func(ThreadMessage)

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	closed    bool
	joined    map[string]struct{}
}

// NewPushConn builds a push connection for the given WebSocket URL, e.g.
// "wss://portal.example.edu/ws".
func NewPushConn(url string, sess *SessionContext) *PushConn {
	return &PushConn{
		url:    url,
		sess:   sess,
		dialer: websocket.DefaultDialer,
		joined: make(map[string]struct{}),
	}
}

// SetHandler registers the inbound message callback. Must be called before
// Connect.
func (p *PushConn) SetHandler(fn func(ThreadMessage)) { p.onMessage = fn }

// Connect dials the push channel and starts the read loop. Subsequent
// disconnects are handled internally; Connect itself fails only if the
// first dial fails.
func (p *PushConn) Connect(ctx context.Context) error {
	conn, _, err := p.dialer.DialContext(ctx, p.url, nil)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.conn = conn
	p.connected = true
	p.mu.Unlock()

	go p.readLoop(conn)
	return nil
}

// Connected reports whether the channel is currently usable. Support sends
// check this to fail fast instead of queueing into a dead socket.
func (p *PushConn) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Close shuts the channel down permanently; no reconnect is attempted.
func (p *PushConn) Close() {
	p.mu.Lock()
	p.closed = true
	p.connected = false
	conn := p.conn
	p.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

// JoinRoom subscribes to a thread's room. Idempotent: joining a room the
// connection is already in does not duplicate delivery (the hub dedupes,
// and the local set keeps the rejoin list minimal).
func (p *PushConn) JoinRoom(threadID string) error {
	p.mu.Lock()
	p.joined[threadID] = struct{}{}
	p.mu.Unlock()
	return p.writeEvent(eventJoinThread, map[string]string{
		"token":    p.sess.Token(),
		"threadId": threadID,
	})
}

// Send emits one support message over the push channel. The confirmed echo
// arrives through the handler like any other member's message; nothing is
// inserted locally here.
func (p *PushConn) Send(threadID, text string) error {
	return p.writeEvent(eventSendMessage, map[string]string{
		"token":    p.sess.Token(),
		"threadId": threadID,
		"text":     text,
	})
}

// writeEvent marshals and writes one envelope, failing fast with
// ErrNotConnected when the channel is down.
func (p *PushConn) writeEvent(event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(pushEnvelope{Event: event, Data: raw})
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected || p.conn == nil {
		return ErrNotConnected
	}
	if err := p.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		p.connected = false
		return ErrNotConnected
	}
	return nil
}

// readLoop consumes inbound frames until the connection drops, then hands
// off to the reconnect loop.
func (p *PushConn) readLoop(conn *websocket.Conn) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var env pushEnvelope
		if err := json.Unmarshal(frame, &env); err != nil {
			log.Warn().Err(err).Msg("push: malformed frame")
			continue
		}
		switch env.Event {
		case eventNewMessage:
			var msg ThreadMessage
			if err := json.Unmarshal(env.Data, &msg); err != nil {
				log.Warn().Err(err).Msg("push: malformed message event")
				continue
			}
			if p.onMessage != nil {
				p.onMessage(msg)
			}
		case eventJoinedThread:
			// Join acknowledgement; nothing to do.
		case eventError:
			var pe struct {
				Message string `json:"message"`
			}
			_ = json.Unmarshal(env.Data, &pe)
			log.Warn().Str("message", pe.Message).Msg("push: server error event")
		}
	}

	p.mu.Lock()
	p.connected = false
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return
	}
	go p.reconnectLoop()
}

// reconnectLoop re-dials with exponential backoff and re-joins every room
// the connection held before the drop.
func (p *PushConn) reconnectLoop() {
	backoff := reconnectBase
	for {
		time.Sleep(backoff)

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		conn, _, err := p.dialer.DialContext(ctx, p.url, nil)
		cancel()
		if err != nil {
			if backoff *= 2; backoff > reconnectMax {
				backoff = reconnectMax
			}
			log.Debug().Err(err).Dur("next_retry", backoff).Msg("push: reconnect failed")
			continue
		}

		p.mu.Lock()
		p.conn = conn
		p.connected = true
		rooms := make([]string, 0, len(p.joined))
		for id := range p.joined {
			rooms = append(rooms, id)
		}
		p.mu.Unlock()

		go p.readLoop(conn)
		for _, id := range rooms {
			if err := p.JoinRoom(id); err != nil {
				log.Warn().Err(err).Str("thread_id", id).Msg("push: rejoin failed")
			}
		}
		log.Info().Int("rooms", len(rooms)).Msg("push: reconnected")
		return
	}
}
