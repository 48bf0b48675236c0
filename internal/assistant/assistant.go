// Package assistant produces the AI side of a conversation: given a user
// prompt and optional profile context, it returns a reply composed from the
// university knowledge index.
//
// The responder never fails and never returns an empty reply; when retrieval
// finds nothing relevant it falls back to a fixed decline sentence. Failure
// absorption is deliberate: the conversation engine stores whatever string
// comes back, so errors must not surface as broken pairs.
package assistant

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/campushub/portal-support/internal/knowledge"
)

// FallbackReply is returned when nothing in the knowledge base clears the
// relevance threshold.
const FallbackReply = "I don't have that information in the university knowledge base. Please contact the student support desk."

// Profile is the answering context for a logged-in user. All fields are
// optional; a nil Profile means an anonymous session.
type Profile struct {
	FullName   string
	Role       string
	Department string
	Semester   string
}

// FirstName returns the leading word of the full name, or "".
func (p *Profile) FirstName() string {
	if p == nil {
		return ""
	}
	parts := strings.Fields(p.FullName)
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

// Responder answers a single prompt. Implementations must be safe for
// concurrent use and must always return a non-empty reply.
type Responder interface {
	Reply(ctx context.Context, prompt string, profile *Profile) string
}

// Retrieval answers prompts from a knowledge index: the best-scoring facts
// above Threshold are joined into the reply, with a second fact added only
// when it scores close to the first.
type Retrieval struct {
	Index     knowledge.Index
	Threshold float64

	// MaxReplyRunes caps the reply length; 0 disables the cap.
	MaxReplyRunes int
}

// NewRetrieval returns a Retrieval responder with the given index and a
// sane default threshold when thr is non-positive.
func NewRetrieval(idx knowledge.Index, thr float64) *Retrieval {
	if thr <= 0 {
		thr = 0.2
	}
	return &Retrieval{Index: idx, Threshold: thr, MaxReplyRunes: 1500}
}

// Reply implements Responder.
func (r *Retrieval) Reply(_ context.Context, prompt string, profile *Profile) string {
	prompt = strings.TrimSpace(prompt)

	if reply, ok := r.smallTalk(prompt, profile); ok {
		return reply
	}

	if r.Index == nil {
		return FallbackReply
	}

	results := r.Index.TopK(prompt, 5)
	if len(results) == 0 || results[0].Score < r.Threshold {
		return FallbackReply
	}

	reply := results[0].Snippet
	if len(results) > 1 && results[1].Score >= results[0].Score*0.9 {
		reply += "\n" + results[1].Snippet
	}
	return r.clip(reply)
}

// smallTalk short-circuits greetings so the assistant can use the profile's
// first name instead of searching the knowledge base for "hello".
func (r *Retrieval) smallTalk(prompt string, profile *Profile) (string, bool) {
	p := strings.ToLower(strings.TrimRight(prompt, "!.?"))
	switch p {
	case "hi", "hello", "hey", "salam", "assalam o alaikum":
		if name := profile.FirstName(); name != "" {
			return "Hello " + name + "! How can I help you with the university today?", true
		}
		return "Hello! How can I help you with the university today?", true
	case "thanks", "thank you", "shukriya":
		return "You're welcome! Ask me anything else about the university.", true
	}
	return "", false
}

// clip truncates the reply to MaxReplyRunes when configured.
func (r *Retrieval) clip(s string) string {
	if r.MaxReplyRunes > 0 && utf8.RuneCountInString(s) > r.MaxReplyRunes {
		return string([]rune(s)[:r.MaxReplyRunes])
	}
	return s
}
