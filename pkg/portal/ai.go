package portal

import (
	"context"
	"strings"
	"sync"
	"time"
)

// FallbackReply is attached to a pending pair when the backend cannot be
// reached, so the transcript never shows a question without an answer.
const FallbackReply = "Error communicating with the assistant. Please try again."

// AIConversation drives one logical conversation with the assistant:
// optimistic prompt display, single-in-flight sends, conversation-id
// adoption and restore, and date-grouped history with delete-then-refresh
// aggregate consistency.
type AIConversation struct {
	client *Client
	sess   *SessionContext

	mu       sync.Mutex
	inflight bool
	nextSeq  uint64
	pairs    []Pair
	convID   string
	dates    []DateBlock // last fetched aggregates
}

// NewAIConversation builds an engine bound to a client and session. Call
// Restore afterwards to pick up a persisted conversation.
func NewAIConversation(client *Client, sess *SessionContext) *AIConversation {
	return &AIConversation{client: client, sess: sess, convID: sess.ConversationID()}
}

// ConversationID returns the server-assigned conversation id, or "" before
// the first authenticated send.
func (a *AIConversation) ConversationID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.convID
}

// Pairs returns a snapshot of the transcript in send order.
func (a *AIConversation) Pairs() []Pair {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Pair, len(a.pairs))
	copy(out, a.pairs)
	return out
}

// Dates returns the last fetched history aggregates.
func (a *AIConversation) Dates() []DateBlock {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]DateBlock, len(a.dates))
	copy(out, a.dates)
	return out
}

// SendMessage submits one prompt. The pending pair is visible immediately;
// the reply is attached when the backend answers, or FallbackReply when it
// does not. Empty input is a no-op. A second call while one send is
// outstanding returns ErrSendInFlight without touching state.
func (a *AIConversation) SendMessage(ctx context.Context, text string) (*Pair, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	a.mu.Lock()
	if a.inflight {
		a.mu.Unlock()
		return nil, ErrSendInFlight
	}
	a.inflight = true
	a.nextSeq++
	seq := a.nextSeq
	promptAt := time.Now().UTC()
	a.pairs = append(a.pairs, Pair{Prompt: text, PromptCreatedAt: promptAt, seq: seq})
	convID := a.convID
	a.mu.Unlock()

	res, err := a.client.SendChat(ctx, text, convID)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.inflight = false

	// Relocate the pending pair by its sequence tag: deletes or a restore may
	// have shifted or dropped it while the lock was released, so the index
	// from before the call cannot be trusted.
	idx := a.pairIndexBySeqLocked(seq)

	if err != nil {
		// Absorb the failure into the transcript; the pair stays retryable
		// by re-sending, never half-open.
		reply := FallbackReply
		now := time.Now().UTC()
		pair := Pair{Prompt: text, PromptCreatedAt: promptAt, Reply: &reply, ReplyCreatedAt: &now}
		if idx >= 0 {
			a.pairs[idx].Reply = &reply
			a.pairs[idx].ReplyCreatedAt = &now
			a.pairs[idx].seq = 0
			pair = a.pairs[idx]
		}
		if err == ErrUnauthenticated {
			return &pair, err
		}
		return &pair, nil
	}

	now := time.Now().UTC()
	pair := Pair{ID: res.PairID, Prompt: text, PromptCreatedAt: promptAt, Reply: &res.Response, ReplyCreatedAt: &now}
	if idx >= 0 {
		a.pairs[idx].ID = res.PairID
		a.pairs[idx].Reply = &res.Response
		a.pairs[idx].ReplyCreatedAt = &now
		a.pairs[idx].seq = 0
		pair = a.pairs[idx]
	}
	if res.ConversationID != "" && res.ConversationID != a.convID {
		a.convID = res.ConversationID
		a.sess.SetConversationID(res.ConversationID)
	}
	return &pair, nil
}

// pairIndexBySeqLocked finds a pending pair by its sequence tag. Returns -1
// when the pair no longer exists locally. Caller holds the mutex.
func (a *AIConversation) pairIndexBySeqLocked(seq uint64) int {
	for i := range a.pairs {
		if a.pairs[i].seq == seq {
			return i
		}
	}
	return -1
}

// Restore replaces local state wholesale from the persisted conversation
// id, if any. A missing or stale id leaves the engine empty rather than
// failing startup.
func (a *AIConversation) Restore(ctx context.Context) error {
	id := a.sess.ConversationID()
	if id == "" {
		return nil
	}
	conv, err := a.client.GetConversation(ctx, id)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.convID = conv.ConversationID
	a.pairs = pairsFromTranscript(conv.Messages)
	return nil
}

// HistoryDates fetches and caches the per-day aggregates. Safe to call
// repeatedly; the cache is replaced, not merged.
func (a *AIConversation) HistoryDates(ctx context.Context) ([]DateBlock, error) {
	dates, err := a.client.HistoryDates(ctx)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.dates = dates
	a.mu.Unlock()
	return dates, nil
}

// PairsForDate fetches the pairs of one calendar day (YYYY-MM-DD).
func (a *AIConversation) PairsForDate(ctx context.Context, date string) ([]Pair, error) {
	return a.client.PairsForDate(ctx, date)
}

// DeletePair irreversibly removes one pair, then refreshes the date
// aggregates so cached counts stay consistent. Confirmation is the
// caller's responsibility.
func (a *AIConversation) DeletePair(ctx context.Context, id string) error {
	if err := a.client.DeletePair(ctx, id); err != nil {
		return err
	}
	a.dropLocalPair(id)
	_, err := a.HistoryDates(ctx)
	return err
}

// DeleteDate irreversibly removes every pair of one calendar day, then
// refreshes the date aggregates.
func (a *AIConversation) DeleteDate(ctx context.Context, date string) error {
	if err := a.client.DeleteDate(ctx, date); err != nil {
		return err
	}
	_, err := a.HistoryDates(ctx)
	return err
}

func (a *AIConversation) dropLocalPair(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.pairs {
		if a.pairs[i].ID == id {
			a.pairs = append(a.pairs[:i], a.pairs[i+1:]...)
			return
		}
	}
}

// pairsFromTranscript folds a flat sender-tagged transcript back into
// prompt/reply pairs. Each user message opens a pair (keyed by the user
// message id); the assistant message that follows closes it.
func pairsFromTranscript(msgs []AiMessage) []Pair {
	var pairs []Pair
	for _, m := range msgs {
		switch m.Sender {
		case "user":
			pairs = append(pairs, Pair{
				ID:              m.ID,
				Prompt:          m.Text,
				PromptCreatedAt: m.CreatedAt,
			})
		case "ai":
			if n := len(pairs); n > 0 && pairs[n-1].Reply == nil {
				text := m.Text
				at := m.CreatedAt
				pairs[n-1].Reply = &text
				pairs[n-1].ReplyCreatedAt = &at
			}
		}
	}
	return pairs
}
