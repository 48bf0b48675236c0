// Package services – AiService
//
// This file implements the AI conversation engine's server half: it validates
// prompts, lazily creates conversations, asks the assistant for a reply, and
// persists the prompt/reply pair atomically. It also serves the date-grouped
// history views and the two delete operations, cleaning up conversations that
// end up empty.
//
// Observability: public methods are OpenTelemetry-instrumented; spans include
// user/conversation identifiers.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/campushub/portal-support/internal/assistant"
	"github.com/campushub/portal-support/internal/domain"
	"github.com/campushub/portal-support/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// historySnippetRunes caps the per-day preview text.
const historySnippetRunes = 120

// AiService coordinates conversation persistence and assistant replies.
type AiService struct {
	DB        *gorm.DB
	Responder assistant.Responder

	// MaxPromptRunes caps accepted prompts; 0 disables the cap.
	MaxPromptRunes int
	// HistoryWindow bounds how far back history queries reach (default 1 year).
	HistoryWindow time.Duration
	// TitleMaxLen caps auto-generated conversation titles by rune length.
	TitleMaxLen int
}

// NewAiService constructs an AiService with portal defaults.
func NewAiService(db *gorm.DB, r assistant.Responder) *AiService {
	return &AiService{
		DB:             db,
		Responder:      r,
		MaxPromptRunes: 2000,
		HistoryWindow:  365 * 24 * time.Hour,
		TitleMaxLen:    80,
	}
}

// ConverseResult is the outcome of one prompt/reply exchange.
type ConverseResult struct {
	Reply          string
	ConversationID string // empty for anonymous sends
	PairID         string // prompt message ID; empty for anonymous sends
}

// Converse handles one send. For an anonymous user (userID == "") the reply
// is computed but nothing is persisted. For a logged-in user the prompt and
// reply are stored in conversationID (or a lazily created conversation when
// the id is empty or stale), and both rows commit together.
func (s *AiService) Converse(ctx context.Context, userID, conversationID, prompt string) (*ConverseResult, error) {
	tr := otel.Tracer("services/AiService")
	ctx, span := tr.Start(ctx, "Converse",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("conversation.id", conversationID),
		),
	)
	defer span.End()

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if s.MaxPromptRunes > 0 && utf8.RuneCountInString(prompt) > s.MaxPromptRunes {
		return nil, ErrTooLong
	}

	var profile *assistant.Profile
	if userID != "" {
		if u, err := repo.GetUser(ctx, s.DB, userID); err == nil {
			profile = &assistant.Profile{
				FullName:   u.FullName,
				Role:       u.Role,
				Department: u.Department,
				Semester:   u.Semester,
			}
		}
	}

	reply := s.Responder.Reply(ctx, prompt, profile)

	if userID == "" {
		return &ConverseResult{Reply: reply}, nil
	}

	res := &ConverseResult{Reply: reply}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conv, err := s.resolveConversation(ctx, tx, userID, conversationID, prompt)
		if err != nil {
			return err
		}
		res.ConversationID = conv.ID

		promptMsg, err := repo.CreateAiMessage(tx, conv.ID, domain.AiSenderUser, prompt)
		if err != nil {
			return err
		}
		res.PairID = promptMsg.ID

		if _, err := repo.CreateAiMessage(tx, conv.ID, domain.AiSenderAssistant, reply); err != nil {
			return err
		}
		return repo.TouchConversation(tx, conv.ID)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// resolveConversation returns the referenced conversation when it exists and
// belongs to the user, and otherwise creates a fresh one titled from the
// first prompt. A stale or foreign id silently starts a new conversation, so
// a client restoring an old pointer never breaks the send path.
func (s *AiService) resolveConversation(ctx context.Context, tx *gorm.DB, userID, conversationID, prompt string) (*domain.AiConversation, error) {
	if conversationID != "" {
		conv, err := repo.GetConversation(ctx, tx, conversationID, userID)
		if err == nil {
			return conv, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return repo.CreateConversation(tx, userID, s.titleFromPrompt(prompt))
}

// ConversationWithMessages returns one conversation and its full ordered
// message list. Used by clients to restore a persisted conversation pointer.
func (s *AiService) ConversationWithMessages(ctx context.Context, userID, conversationID string) (*domain.AiConversation, []domain.AiMessage, error) {
	tr := otel.Tracer("services/AiService")
	ctx, span := tr.Start(ctx, "ConversationWithMessages",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)),
	)
	defer span.End()

	conv, err := repo.GetConversation(ctx, s.DB, conversationID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	msgs, err := repo.ListConversationMessages(ctx, s.DB, conv.ID)
	if err != nil {
		return nil, nil, err
	}
	return conv, msgs, nil
}

// ConversationSummary is one row of the conversation listing.
type ConversationSummary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	LastSnippet string    `json:"lastSnippet"`
}

// ListConversations returns the user's conversations within the history
// window, most recently active first, each with a preview of its last message.
func (s *AiService) ListConversations(ctx context.Context, userID string) ([]ConversationSummary, error) {
	tr := otel.Tracer("services/AiService")
	ctx, span := tr.Start(ctx, "ListConversations",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	convs, err := repo.ListConversations(ctx, s.DB, userID, s.windowStart())
	if err != nil {
		return nil, err
	}
	out := make([]ConversationSummary, 0, len(convs))
	for _, c := range convs {
		sum := ConversationSummary{
			ID:        c.ID,
			Title:     c.Title,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		}
		if last, err := repo.LastConversationMessage(ctx, s.DB, c.ID); err == nil {
			sum.LastSnippet = snippet(last.Text)
		}
		out = append(out, sum)
	}
	return out, nil
}

// HistoryDates returns the per-calendar-day aggregates of the user's AI
// history, newest day first. The snippet is the first prompt of that day.
func (s *AiService) HistoryDates(ctx context.Context, userID string) ([]domain.AiDateBlock, error) {
	tr := otel.Tracer("services/AiService")
	ctx, span := tr.Start(ctx, "HistoryDates",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	blocks, err := repo.DateAggregates(ctx, s.DB, userID, s.windowStart())
	if err != nil {
		return nil, err
	}
	for i := range blocks {
		if first, err := repo.FirstPromptOfDay(ctx, s.DB, userID, blocks[i].Date); err == nil {
			blocks[i].Snippet = snippet(first.Text)
		}
	}
	return blocks, nil
}

// PairsForDate returns the prompt/reply pairs of one calendar day in strict
// prompt order. A prompt whose reply never arrived yields a pair with a nil
// reply rather than being dropped.
func (s *AiService) PairsForDate(ctx context.Context, userID, date string) ([]domain.AiPair, error) {
	tr := otel.Tracer("services/AiService")
	ctx, span := tr.Start(ctx, "PairsForDate",
		trace.WithAttributes(attribute.String("history.date", date)),
	)
	defer span.End()

	start, end, err := dayBounds(date)
	if err != nil {
		return nil, err
	}
	msgs, err := repo.ListMessagesBetween(ctx, s.DB, userID, start, end)
	if err != nil {
		return nil, err
	}
	return pairMessages(msgs), nil
}

// DeleteDate removes every AI message of the user on the given day and
// garbage-collects conversations left empty. Deleting a day with no messages
// is a no-op success. Irreversible; confirmation is the caller's contract.
func (s *AiService) DeleteDate(ctx context.Context, userID, date string) error {
	tr := otel.Tracer("services/AiService")
	ctx, span := tr.Start(ctx, "DeleteDate",
		trace.WithAttributes(attribute.String("history.date", date)),
	)
	defer span.End()

	start, end, err := dayBounds(date)
	if err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		msgs, err := repo.ListMessagesBetween(ctx, tx, userID, start, end)
		if err != nil || len(msgs) == 0 {
			return err
		}
		ids := make([]string, 0, len(msgs))
		convIDs := make(map[string]struct{})
		for _, m := range msgs {
			ids = append(ids, m.ID)
			convIDs[m.ConversationID] = struct{}{}
		}
		if err := repo.DeleteAiMessages(tx, ids); err != nil {
			return err
		}
		return s.reapEmptyConversations(tx, convIDs)
	})
}

// DeletePair removes one prompt and its immediate assistant reply (when one
// exists), then garbage-collects the conversation if it became empty.
// Irreversible; confirmation is the caller's contract.
func (s *AiService) DeletePair(ctx context.Context, userID, pairID string) error {
	tr := otel.Tracer("services/AiService")
	ctx, span := tr.Start(ctx, "DeletePair",
		trace.WithAttributes(attribute.String("pair.id", pairID)),
	)
	defer span.End()

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prompt, err := repo.GetAiMessage(ctx, tx, pairID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPairNotFound
		}
		if err != nil {
			return err
		}
		if prompt.Sender != domain.AiSenderUser {
			return ErrNotAPrompt
		}
		if _, err := repo.GetConversation(ctx, tx, prompt.ConversationID, userID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPairNotFound
			}
			return err
		}

		ids := []string{prompt.ID}
		msgs, err := repo.ListConversationMessages(ctx, tx, prompt.ConversationID)
		if err != nil {
			return err
		}
		for i := range msgs {
			if msgs[i].ID == prompt.ID && i+1 < len(msgs) && msgs[i+1].Sender == domain.AiSenderAssistant {
				ids = append(ids, msgs[i+1].ID)
				break
			}
		}
		if err := repo.DeleteAiMessages(tx, ids); err != nil {
			return err
		}
		return s.reapEmptyConversations(tx, map[string]struct{}{prompt.ConversationID: {}})
	})
}

// reapEmptyConversations deletes any of the given conversations that no
// longer hold messages.
func (s *AiService) reapEmptyConversations(tx *gorm.DB, convIDs map[string]struct{}) error {
	for id := range convIDs {
		n, err := repo.CountConversationMessages(tx, id)
		if err != nil {
			return err
		}
		if n == 0 {
			if err := repo.DeleteConversation(tx, id); err != nil {
				return err
			}
		}
	}
	return nil
}

// windowStart returns the earliest timestamp history queries consider.
func (s *AiService) windowStart() time.Time {
	w := s.HistoryWindow
	if w <= 0 {
		w = 365 * 24 * time.Hour
	}
	return time.Now().UTC().Add(-w)
}

// titleFromPrompt derives a conversation title from the first prompt:
// title-cased leading words, clipped to TitleMaxLen runes.
func (s *AiService) titleFromPrompt(prompt string) string {
	words := strings.Fields(prompt)
	if len(words) > 8 {
		words = words[:8]
	}
	title := cases.Title(language.English).String(strings.Join(words, " "))
	max := s.TitleMaxLen
	if max <= 0 {
		max = 80
	}
	if utf8.RuneCountInString(title) > max {
		title = string([]rune(title)[:max])
	}
	if title == "" {
		title = "New conversation"
	}
	return title
}

// pairMessages folds an ordered message stream into prompt/reply pairs: each
// user message opens a pair and an immediately following assistant message in
// the same conversation closes it.
func pairMessages(msgs []domain.AiMessage) []domain.AiPair {
	pairs := make([]domain.AiPair, 0, len(msgs)/2)
	for i := 0; i < len(msgs); i++ {
		m := msgs[i]
		if m.Sender != domain.AiSenderUser {
			continue
		}
		p := domain.AiPair{
			ID:              m.ID,
			Prompt:          m.Text,
			PromptCreatedAt: m.CreatedAt,
		}
		if i+1 < len(msgs) &&
			msgs[i+1].Sender == domain.AiSenderAssistant &&
			msgs[i+1].ConversationID == m.ConversationID {
			reply := msgs[i+1].Text
			replyAt := msgs[i+1].CreatedAt
			p.Reply = &reply
			p.ReplyCreatedAt = &replyAt
		}
		pairs = append(pairs, p)
	}
	return pairs
}

// dayBounds parses a YYYY-MM-DD date into its UTC [start, end) interval.
func dayBounds(date string) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, ErrInvalidDate
	}
	return day, day.Add(24 * time.Hour), nil
}

// snippet truncates text for history previews.
func snippet(text string) string {
	if utf8.RuneCountInString(text) <= historySnippetRunes {
		return text
	}
	return string([]rune(text)[:historySnippetRunes]) + "…"
}
