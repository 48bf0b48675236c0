package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client is the request/response channel: stateless, one request one
// response, shared by both engines. It attaches the session's bearer token
// to every call and treats an authorization rejection as session expiry.
type Client struct {
	// BaseURL is the API root including the base path, e.g.
	// "https://portal.example.edu/api/v1".
	BaseURL string

	// HTTPClient defaults to a client with a 15s timeout.
	HTTPClient *http.Client

	sess *SessionContext
}

// NewClient builds a Client bound to a session context.
func NewClient(baseURL string, sess *SessionContext) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		sess:       sess,
	}
}

// ChatResult is the backend's answer to one assistant send.
type ChatResult struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversationId"`
	PairID         string `json:"pairId"`
}

// AiMessage is one utterance in a restored conversation transcript.
type AiMessage struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"` // "user" or "ai"
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Conversation is a restored assistant conversation.
type Conversation struct {
	ConversationID string      `json:"conversationId"`
	Title          string      `json:"title"`
	Messages       []AiMessage `json:"messages"`
}

// DateBlock is the per-day aggregate of assistant history.
type DateBlock struct {
	Date    string    `json:"date"` // YYYY-MM-DD
	Count   int       `json:"count"`
	FirstAt time.Time `json:"firstAt"`
	LastAt  time.Time `json:"lastAt"`
	Snippet string    `json:"snippet"`
}

// Pair is one prompt/reply unit. Reply is nil while (or if) no answer was
// recorded.
type Pair struct {
	ID              string     `json:"id"`
	Prompt          string     `json:"prompt"`
	Reply           *string    `json:"reply"`
	PromptCreatedAt time.Time  `json:"promptCreatedAt"`
	ReplyCreatedAt  *time.Time `json:"replyCreatedAt"`

	// seq identifies a pending pair while its send is in flight; zero for
	// pairs loaded from the server.
	seq uint64
}

// ThreadParty is the visible identity of a thread participant.
type ThreadParty struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
}

// Thread is one student↔consultant support thread.
type Thread struct {
	ID           string         `json:"id"`
	StudentID    string         `json:"studentId"`
	ConsultantID string         `json:"consultantId"`
	CreatedAt    time.Time      `json:"createdAt"`
	Student      *ThreadParty   `json:"student,omitempty"`
	Consultant   *ThreadParty   `json:"consultant,omitempty"`
	LastMessage  *ThreadMessage `json:"lastMessage,omitempty"`
}

// ThreadMessage is one support message. Mine is derived client-side by
// comparing SenderID to the acting identity; it never travels on the wire.
type ThreadMessage struct {
	ID         string    `json:"id"`
	ThreadID   string    `json:"threadId"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
	Mine       bool      `json:"-"`
}

// SendChat posts one assistant message, threading into conversationID when
// non-empty. Works for anonymous sessions too (no persistence server-side).
func (c *Client) SendChat(ctx context.Context, message, conversationID string) (*ChatResult, error) {
	body := map[string]string{"message": message}
	if conversationID != "" {
		body["conversationId"] = conversationID
	}
	var out ChatResult
	if err := c.do(ctx, http.MethodPost, "/chat", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetConversation fetches the full transcript of one conversation.
func (c *Client) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var out Conversation
	if err := c.do(ctx, http.MethodGet, "/ai/conversations/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// HistoryDates fetches the per-day aggregates, newest day first.
func (c *Client) HistoryDates(ctx context.Context) ([]DateBlock, error) {
	var out struct {
		Dates []DateBlock `json:"dates"`
	}
	if err := c.do(ctx, http.MethodGet, "/ai/history/dates", nil, &out); err != nil {
		return nil, err
	}
	return out.Dates, nil
}

// PairsForDate fetches the prompt/reply pairs of one calendar day.
func (c *Client) PairsForDate(ctx context.Context, date string) ([]Pair, error) {
	var out struct {
		Pairs []Pair `json:"pairs"`
	}
	if err := c.do(ctx, http.MethodGet, "/ai/history/dates/"+url.PathEscape(date), nil, &out); err != nil {
		return nil, err
	}
	return out.Pairs, nil
}

// DeleteDate removes every pair of one calendar day.
func (c *Client) DeleteDate(ctx context.Context, date string) error {
	return c.do(ctx, http.MethodDelete, "/ai/history/dates/"+url.PathEscape(date), nil, nil)
}

// DeletePair removes one prompt/reply pair by its pair (prompt) id.
func (c *Client) DeletePair(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/ai/pairs/"+url.PathEscape(id), nil, nil)
}

// EnsureThread idempotently fetches-or-creates the student's support thread.
func (c *Client) EnsureThread(ctx context.Context) (*Thread, error) {
	var out struct {
		Thread *Thread `json:"thread"`
	}
	if err := c.do(ctx, http.MethodPost, "/support/thread", nil, &out); err != nil {
		return nil, err
	}
	return out.Thread, nil
}

// ListThreads fetches the consultant's threads, most recently active first.
func (c *Client) ListThreads(ctx context.Context) ([]Thread, error) {
	var out struct {
		Threads []Thread `json:"threads"`
	}
	if err := c.do(ctx, http.MethodGet, "/support/threads", nil, &out); err != nil {
		return nil, err
	}
	return out.Threads, nil
}

// ThreadMessages fetches the full ordered history of one thread.
func (c *Client) ThreadMessages(ctx context.Context, threadID string) ([]ThreadMessage, error) {
	var out struct {
		Messages []ThreadMessage `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, "/support/threads/"+url.PathEscape(threadID)+"/messages", nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// apiError is the backend's structured error envelope.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// do performs one JSON round trip. A 401 invalidates the session and maps
// to ErrUnauthenticated so the caller can drop into a login state.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if tok := c.sess.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.sess.invalidate()
		return ErrUnauthenticated
	}
	if resp.StatusCode >= 400 {
		var ae apiError
		if derr := json.NewDecoder(resp.Body).Decode(&ae); derr == nil && ae.Message != "" {
			return fmt.Errorf("portal: %s (%s)", ae.Message, ae.Code)
		}
		return fmt.Errorf("portal: unexpected status %d", resp.StatusCode)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
