package portal

import (
	"context"
	"strings"
	"sync"
)

// SupportSession drives the live support view for one actor. Students hold
// a single implicit thread (EnsureThread); consultants list and switch
// between threads (ListThreads, SelectThread). Message delivery is
// confirmed-echo only: sends go out over the push channel and the message
// appears in the list when the server broadcasts it back.
//
// The currently selected thread id is a mutable cell dereferenced at event
// delivery time, so a push event for a thread deselected mid-flight is
// dropped instead of leaking into the active view.
type SupportSession struct {
	client *Client
	sess   *SessionContext
	push   *PushConn

	mu       sync.Mutex
	active   string
	threads  []Thread
	messages []ThreadMessage
}

// NewSupportSession wires the engine to its transport. It registers itself
// as the push channel's message handler.
func NewSupportSession(client *Client, sess *SessionContext, push *PushConn) *SupportSession {
	s := &SupportSession{client: client, sess: sess, push: push}
	push.SetHandler(s.onPush)
	return s
}

// ActiveThreadID returns the currently selected thread id, or "".
func (s *SupportSession) ActiveThreadID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Threads returns the last fetched thread list.
func (s *SupportSession) Threads() []Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Thread, len(s.threads))
	copy(out, s.threads)
	return out
}

// Messages returns a snapshot of the active thread's message list.
func (s *SupportSession) Messages() []ThreadMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ThreadMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// EnsureThread idempotently obtains the student's thread and selects it.
// Call once per activation of the support view.
func (s *SupportSession) EnsureThread(ctx context.Context) (*Thread, error) {
	thread, err := s.client.EnsureThread(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.SelectThread(ctx, thread.ID); err != nil {
		return nil, err
	}
	return thread, nil
}

// ListThreads fetches the consultant's threads, most recently active first.
func (s *SupportSession) ListThreads(ctx context.Context) ([]Thread, error) {
	threads, err := s.client.ListThreads(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.threads = threads
	s.mu.Unlock()
	return threads, nil
}

// SelectThread makes threadID the active thread: the message list is
// reloaded wholesale and the push channel joins the thread's room. A
// history response that arrives after the selection moved on is discarded.
func (s *SupportSession) SelectThread(ctx context.Context, threadID string) error {
	s.mu.Lock()
	s.active = threadID
	s.messages = nil
	s.mu.Unlock()

	// Join first so no confirmed echo is missed while history loads; the
	// two operations have no ordering dependency. A down channel is not a
	// selection failure: JoinRoom records the room either way, so the
	// reconnect loop joins it once the channel comes back.
	if s.push != nil {
		if err := s.push.JoinRoom(threadID); err != nil && err != ErrNotConnected {
			return err
		}
	}

	msgs, err := s.client.ThreadMessages(ctx, threadID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != threadID {
		// Selection moved on while the history was in flight.
		return nil
	}
	s.messages = s.markMine(msgs)
	return nil
}

// Send emits one message into the active thread over the push channel. It
// fails fast when no thread is selected or the channel is down; the text is
// never consumed on a failure path, so the caller can retry verbatim.
func (s *SupportSession) Send(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	threadID := s.active
	s.mu.Unlock()
	if threadID == "" {
		return ErrNoThread
	}
	if s.push == nil || !s.push.Connected() {
		return ErrNotConnected
	}
	return s.push.Send(threadID, text)
}

// onPush handles one inbound confirmed message. The active-thread check
// happens here, at delivery time, never at subscribe time.
func (s *SupportSession) onPush(msg ThreadMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.ThreadID != s.active {
		return
	}
	if actor := s.sess.Actor(); actor != nil {
		msg.Mine = msg.SenderID == actor.ID
	}
	s.messages = append(s.messages, msg)
}

// markMine derives the viewer-relative ownership flag on a history load.
func (s *SupportSession) markMine(msgs []ThreadMessage) []ThreadMessage {
	actor := s.sess.Actor()
	if actor == nil {
		return msgs
	}
	for i := range msgs {
		msgs[i].Mine = msgs[i].SenderID == actor.ID
	}
	return msgs
}
