package portal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// supportBackend serves the HTTP half of the support engine: thread lookup
// and history. The push half is faked by calling onPush directly.
type supportBackend struct {
	thread   Thread
	messages map[string][]ThreadMessage
}

func (b *supportBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /support/thread", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"thread": b.thread})
	})
	mux.HandleFunc("GET /support/threads", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"threads": []Thread{b.thread}})
	})
	mux.HandleFunc("GET /support/threads/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"messages": b.messages[r.PathValue("id")]})
	})
	return mux
}

func newSupportFixture(t *testing.T) (*SupportSession, *SessionContext, *supportBackend) {
	t.Helper()
	backend := &supportBackend{
		thread:   Thread{ID: "thread-1", StudentID: "u1", ConsultantID: "c1"},
		messages: map[string][]ThreadMessage{},
	}
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	sess := NewSessionContext(nil)
	sess.SetAuth("tok", &Actor{ID: "u1", Role: "STUDENT", DisplayName: "Ayesha"})
	client := NewClient(srv.URL, sess)
	push := NewPushConn("ws://unreachable.invalid/ws", sess)
	return NewSupportSession(client, sess, push), sess, backend
}

func TestSupportSession_EnsureThreadSelectsAndLoadsHistory(t *testing.T) {
	s, _, backend := newSupportFixture(t)
	backend.messages["thread-1"] = []ThreadMessage{
		{ID: "m1", ThreadID: "thread-1", SenderID: "u1", SenderName: "Ayesha", Text: "hello"},
		{ID: "m2", ThreadID: "thread-1", SenderID: "c1", SenderName: "Consultant", Text: "hi"},
	}

	thread, err := s.EnsureThread(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "thread-1", thread.ID)
	assert.Equal(t, "thread-1", s.ActiveThreadID())

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].Mine, "viewer's own message is marked")
	assert.False(t, msgs[1].Mine)
}

func TestSupportSession_PushGuardDropsForeignThreads(t *testing.T) {
	s, _, _ := newSupportFixture(t)
	require.NoError(t, s.SelectThread(context.Background(), "thread-1"))

	// An event tagged for a different thread never reaches the active view.
	s.onPush(ThreadMessage{ID: "x1", ThreadID: "thread-2", SenderID: "c1", Text: "stray"})
	assert.Empty(t, s.Messages())

	s.onPush(ThreadMessage{ID: "x2", ThreadID: "thread-1", SenderID: "u1", Text: "mine"})
	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "mine", msgs[0].Text)
	assert.True(t, msgs[0].Mine)
}

func TestSupportSession_SwitchingThreadsClearsView(t *testing.T) {
	s, _, backend := newSupportFixture(t)
	backend.messages["thread-1"] = []ThreadMessage{
		{ID: "m1", ThreadID: "thread-1", SenderID: "u1", Text: "old thread"},
	}
	backend.messages["thread-2"] = []ThreadMessage{
		{ID: "m2", ThreadID: "thread-2", SenderID: "c1", Text: "new thread"},
	}
	ctx := context.Background()

	require.NoError(t, s.SelectThread(ctx, "thread-1"))
	require.Len(t, s.Messages(), 1)

	require.NoError(t, s.SelectThread(ctx, "thread-2"))
	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "new thread", msgs[0].Text)

	// Late events for the deselected thread stay out.
	s.onPush(ThreadMessage{ID: "m3", ThreadID: "thread-1", SenderID: "u1", Text: "late"})
	assert.Len(t, s.Messages(), 1)
}

func TestSupportSession_SendFailsFast(t *testing.T) {
	s, _, _ := newSupportFixture(t)

	assert.ErrorIs(t, s.Send("   "), ErrEmptyMessage)
	assert.ErrorIs(t, s.Send("no thread selected yet"), ErrNoThread)

	require.NoError(t, s.SelectThread(context.Background(), "thread-1"))
	// The push channel was never connected; the text must not be consumed.
	assert.ErrorIs(t, s.Send("try again later"), ErrNotConnected)
	assert.Empty(t, s.Messages())
}

func TestSupportSession_SelectDuringOutageJoinsOnReconnect(t *testing.T) {
	backend := &supportBackend{
		thread:   Thread{ID: "thread-1", StudentID: "u1", ConsultantID: "c1"},
		messages: map[string][]ThreadMessage{},
	}
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	ps := newPushServer(t)
	ps.dropNext = true
	sess := NewSessionContext(nil)
	sess.SetAuth("tok", &Actor{ID: "u1", Role: "STUDENT"})
	push := NewPushConn(ps.wsURL(), sess)
	s := NewSupportSession(NewClient(srv.URL, sess), sess, push)
	ctx := context.Background()

	require.NoError(t, push.Connect(ctx))
	t.Cleanup(push.Close)

	require.NoError(t, s.SelectThread(ctx, "thread-1"))
	assert.Equal(t, "thread-1", waitJoin(t, ps))

	// The server dropped the connection right after the ack. A thread
	// selected during the outage must not succeed silently deaf: its room
	// has to be joined once the channel comes back.
	require.Eventually(t, func() bool { return !push.Connected() }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, s.SelectThread(ctx, "thread-2"))
	assert.Equal(t, "thread-2", s.ActiveThreadID())

	joined := map[string]bool{}
	joined[waitJoin(t, ps)] = true
	joined[waitJoin(t, ps)] = true
	assert.True(t, joined["thread-2"], "active thread never joined: %v", joined)
	require.Eventually(t, push.Connected, 5*time.Second, 50*time.Millisecond)
}

func TestSupportSession_ListThreads(t *testing.T) {
	s, _, backend := newSupportFixture(t)
	backend.thread.LastMessage = &ThreadMessage{
		ID: "m9", ThreadID: "thread-1", SenderID: "u1", Text: "latest", CreatedAt: time.Now().UTC(),
	}

	threads, err := s.ListThreads(context.Background())
	require.NoError(t, err)
	require.Len(t, threads, 1)
	require.NotNil(t, threads[0].LastMessage)
	assert.Equal(t, "latest", threads[0].LastMessage.Text)
	assert.Equal(t, threads, s.Threads())
}
