package portal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// aiBackend is a minimal in-memory stand-in for the assistant endpoints.
type aiBackend struct {
	mu      sync.Mutex
	nextID  int
	pairs   []Pair // all persisted pairs in send order
	deleted []string
}

func (b *aiBackend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /chat", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Message        string `json:"message"`
			ConversationID string `json:"conversationId"`
		}
		json.NewDecoder(r.Body).Decode(&in)

		b.mu.Lock()
		b.nextID++
		pairID := "pair-" + strconv.Itoa(b.nextID)
		reply := "answer to: " + in.Message
		now := time.Now().UTC()
		b.pairs = append(b.pairs, Pair{
			ID: pairID, Prompt: in.Message, Reply: &reply,
			PromptCreatedAt: now, ReplyCreatedAt: &now,
		})
		b.mu.Unlock()

		json.NewEncoder(w).Encode(ChatResult{
			Response:       reply,
			ConversationID: "conv-1",
			PairID:         pairID,
		})
	})

	mux.HandleFunc("GET /ai/conversations/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		var msgs []AiMessage
		for _, p := range b.pairs {
			msgs = append(msgs, AiMessage{ID: p.ID, Sender: "user", Text: p.Prompt, CreatedAt: p.PromptCreatedAt})
			if p.Reply != nil {
				msgs = append(msgs, AiMessage{ID: p.ID + "-r", Sender: "ai", Text: *p.Reply, CreatedAt: *p.ReplyCreatedAt})
			}
		}
		b.mu.Unlock()
		json.NewEncoder(w).Encode(Conversation{
			ConversationID: r.PathValue("id"),
			Title:          "Test Conversation",
			Messages:       msgs,
		})
	})

	mux.HandleFunc("GET /ai/history/dates", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		n := len(b.pairs)
		b.mu.Unlock()
		var dates []DateBlock
		if n > 0 {
			dates = append(dates, DateBlock{
				Date:  time.Now().UTC().Format("2006-01-02"),
				Count: n * 2,
			})
		}
		json.NewEncoder(w).Encode(map[string]any{"dates": dates})
	})

	mux.HandleFunc("DELETE /ai/pairs/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		b.mu.Lock()
		for i := range b.pairs {
			if b.pairs[i].ID == id {
				b.pairs = append(b.pairs[:i], b.pairs[i+1:]...)
				break
			}
		}
		b.deleted = append(b.deleted, id)
		b.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}

func newAIFixture(t *testing.T) (*AIConversation, *SessionContext, *aiBackend) {
	t.Helper()
	backend := &aiBackend{}
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)
	sess := NewSessionContext(nil)
	client := NewClient(srv.URL, sess)
	return NewAIConversation(client, sess), sess, backend
}

func TestAIConversation_EmptySendIsNoop(t *testing.T) {
	ai, _, _ := newAIFixture(t)

	pair, err := ai.SendMessage(context.Background(), "   ")
	require.NoError(t, err)
	assert.Nil(t, pair)
	assert.Empty(t, ai.Pairs())
}

func TestAIConversation_SendAdoptsConversationID(t *testing.T) {
	ai, sess, _ := newAIFixture(t)

	pair, err := ai.SendMessage(context.Background(), "  where is the library?  ")
	require.NoError(t, err)
	require.NotNil(t, pair)
	assert.Equal(t, "where is the library?", pair.Prompt)
	require.NotNil(t, pair.Reply)
	assert.Equal(t, "answer to: where is the library?", *pair.Reply)
	assert.NotEmpty(t, pair.ID)

	assert.Equal(t, "conv-1", ai.ConversationID())
	assert.Equal(t, "conv-1", sess.ConversationID(), "adopted id is persisted")
}

func TestAIConversation_TranscriptStaysOrdered(t *testing.T) {
	ai, _, _ := newAIFixture(t)
	ctx := context.Background()

	_, err := ai.SendMessage(ctx, "first")
	require.NoError(t, err)
	_, err = ai.SendMessage(ctx, "second")
	require.NoError(t, err)

	pairs := ai.Pairs()
	require.Len(t, pairs, 2)
	assert.Equal(t, "first", pairs[0].Prompt)
	assert.Equal(t, "second", pairs[1].Prompt)
	require.NotNil(t, pairs[0].Reply)
	require.NotNil(t, pairs[1].Reply)
}

func TestAIConversation_BackendFailureGetsFallbackReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	sess := NewSessionContext(nil)
	ai := NewAIConversation(NewClient(srv.URL, sess), sess)

	pair, err := ai.SendMessage(context.Background(), "anyone there?")
	require.NoError(t, err, "transient failures are absorbed into the transcript")
	require.NotNil(t, pair)
	require.NotNil(t, pair.Reply)
	assert.Equal(t, FallbackReply, *pair.Reply)

	// The prompt stays visible; the engine is immediately usable again.
	assert.Len(t, ai.Pairs(), 1)
	_, err = ai.SendMessage(context.Background(), "retry")
	require.NoError(t, err)
	assert.Len(t, ai.Pairs(), 2)
}

func TestAIConversation_UnauthorizedSurfacesAfterFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)
	sess := NewSessionContext(nil)
	sess.SetAuth("stale", &Actor{ID: "u1"})
	ai := NewAIConversation(NewClient(srv.URL, sess), sess)

	pair, err := ai.SendMessage(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	require.NotNil(t, pair)
	require.NotNil(t, pair.Reply)
	assert.Equal(t, FallbackReply, *pair.Reply)
	assert.Empty(t, sess.Token(), "session dropped so the shell can show login")
}

func TestAIConversation_SingleSendInFlight(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		json.NewEncoder(w).Encode(ChatResult{Response: "late answer", ConversationID: "conv-1", PairID: "p1"})
	}))
	t.Cleanup(srv.Close)
	sess := NewSessionContext(nil)
	ai := NewAIConversation(NewClient(srv.URL, sess), sess)

	done := make(chan error, 1)
	go func() {
		_, err := ai.SendMessage(context.Background(), "slow question")
		done <- err
	}()

	<-entered
	_, err := ai.SendMessage(context.Background(), "impatient second question")
	assert.ErrorIs(t, err, ErrSendInFlight)
	assert.Len(t, ai.Pairs(), 1, "rejected send must not touch the transcript")

	close(release)
	require.NoError(t, <-done)

	// Once the first send lands, the engine accepts input again.
	_, err = ai.SendMessage(context.Background(), "third question")
	require.NoError(t, err)
}

func TestAIConversation_DeleteDuringInFlightSend(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var chatCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", func(w http.ResponseWriter, r *http.Request) {
		chatCalls++
		if chatCalls == 1 {
			json.NewEncoder(w).Encode(ChatResult{Response: "a1", ConversationID: "conv-1", PairID: "p1"})
			return
		}
		close(entered)
		<-release
		json.NewEncoder(w).Encode(ChatResult{Response: "a2", ConversationID: "conv-1", PairID: "p2"})
	})
	mux.HandleFunc("DELETE /ai/pairs/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /ai/history/dates", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"dates": []DateBlock{}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	sess := NewSessionContext(nil)
	ai := NewAIConversation(NewClient(srv.URL, sess), sess)
	ctx := context.Background()

	first, err := ai.SendMessage(ctx, "first")
	require.NoError(t, err)
	require.Equal(t, "p1", first.ID)

	var (
		pair    *Pair
		sendErr error
	)
	done := make(chan struct{})
	go func() {
		pair, sendErr = ai.SendMessage(ctx, "second")
		close(done)
	}()

	// Shrink the transcript underneath the outstanding send.
	<-entered
	require.NoError(t, ai.DeletePair(ctx, "p1"))
	close(release)

	<-done
	require.NoError(t, sendErr)
	require.NotNil(t, pair)
	assert.Equal(t, "p2", pair.ID)
	require.NotNil(t, pair.Reply)
	assert.Equal(t, "a2", *pair.Reply)

	pairs := ai.Pairs()
	require.Len(t, pairs, 1)
	assert.Equal(t, "p2", pairs[0].ID)
	assert.Equal(t, "second", pairs[0].Prompt)
}

func TestAIConversation_RestoreRebuildsPairs(t *testing.T) {
	ai, sess, _ := newAIFixture(t)
	ctx := context.Background()

	_, err := ai.SendMessage(ctx, "first")
	require.NoError(t, err)
	_, err = ai.SendMessage(ctx, "second")
	require.NoError(t, err)
	want := ai.Pairs()

	// A fresh engine against the same session restores the same transcript.
	restored := NewAIConversation(ai.client, sess)
	require.NoError(t, restored.Restore(ctx))
	got := restored.Pairs()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Prompt, got[i].Prompt)
		require.NotNil(t, got[i].Reply)
		assert.Equal(t, *want[i].Reply, *got[i].Reply)
	}
	assert.Equal(t, "conv-1", restored.ConversationID())
}

func TestAIConversation_RestoreWithoutPointerIsNoop(t *testing.T) {
	ai, _, _ := newAIFixture(t)
	require.NoError(t, ai.Restore(context.Background()))
	assert.Empty(t, ai.Pairs())
}

func TestAIConversation_DeletePairRefreshesAggregates(t *testing.T) {
	ai, _, backend := newAIFixture(t)
	ctx := context.Background()

	first, err := ai.SendMessage(ctx, "keep me")
	require.NoError(t, err)
	second, err := ai.SendMessage(ctx, "delete me")
	require.NoError(t, err)

	dates, err := ai.HistoryDates(ctx)
	require.NoError(t, err)
	require.Len(t, dates, 1)
	assert.Equal(t, 4, dates[0].Count)

	require.NoError(t, ai.DeletePair(ctx, second.ID))
	assert.Equal(t, []string{second.ID}, backend.deleted)

	// Local transcript and cached aggregates both reflect the deletion.
	pairs := ai.Pairs()
	require.Len(t, pairs, 1)
	assert.Equal(t, first.ID, pairs[0].ID)
	dates = ai.Dates()
	require.Len(t, dates, 1)
	assert.Equal(t, 2, dates[0].Count)
}

func TestPairsFromTranscript_FoldsSenderRuns(t *testing.T) {
	now := time.Now().UTC()
	msgs := []AiMessage{
		{ID: "m1", Sender: "user", Text: "q1", CreatedAt: now},
		{ID: "m2", Sender: "ai", Text: "a1", CreatedAt: now},
		{ID: "m3", Sender: "user", Text: "q2", CreatedAt: now},
		// q2 never got an answer.
	}
	pairs := pairsFromTranscript(msgs)
	require.Len(t, pairs, 2)
	assert.Equal(t, "m1", pairs[0].ID)
	require.NotNil(t, pairs[0].Reply)
	assert.Equal(t, "a1", *pairs[0].Reply)
	assert.Nil(t, pairs[1].Reply)

	// A stray assistant message with no open pair is dropped, not paired
	// retroactively.
	stray := pairsFromTranscript([]AiMessage{{ID: "x", Sender: "ai", Text: "orphan", CreatedAt: now}})
	assert.Empty(t, stray)
}

func TestAIConversation_PromptIsTrimmedOnce(t *testing.T) {
	ai, _, backend := newAIFixture(t)

	_, err := ai.SendMessage(context.Background(), "\n  padded question  \t")
	require.NoError(t, err)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Len(t, backend.pairs, 1)
	assert.Equal(t, "padded question", backend.pairs[0].Prompt)
	assert.False(t, strings.ContainsAny(backend.pairs[0].Prompt, "\n\t"))
}
