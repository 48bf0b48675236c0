// Package repo – AI conversation persistence.
//
// Repository functions for AiConversation and AiMessage rows. Calendar-day
// aggregation is computed here with SQLite's date() over the stored UTC
// timestamps; the service layer owns pairing and snippet rules.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campushub/portal-support/internal/domain"
)

// CreateConversation inserts a new conversation owned by userID. Intended to
// run inside the same transaction that stores the first prompt.
func CreateConversation(tx *gorm.DB, userID, title string) (*domain.AiConversation, error) {
	c := &domain.AiConversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// GetConversation fetches a conversation by ID ensuring it belongs to userID.
// Returns ErrNotFound when missing or owned by someone else.
func GetConversation(ctx context.Context, db *gorm.DB, id, userID string) (*domain.AiConversation, error) {
	var c domain.AiConversation
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListConversations returns the user's conversations created at or after
// since, most recently updated first.
func ListConversations(ctx context.Context, db *gorm.DB, userID string, since time.Time) ([]domain.AiConversation, error) {
	var out []domain.AiConversation
	err := db.WithContext(ctx).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Order("updated_at desc").
		Find(&out).Error
	return out, err
}

// CreateAiMessage appends one message row to a conversation. Meant for use
// inside a transaction so a prompt and its reply commit together.
func CreateAiMessage(tx *gorm.DB, conversationID, sender, text string) (*domain.AiMessage, error) {
	m := &domain.AiMessage{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Sender:         sender,
		Text:           text,
		CreatedAt:      time.Now().UTC(),
	}
	if err := tx.Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// ListConversationMessages returns all messages of a conversation in strict
// creation order (ties broken by ID for determinism).
func ListConversationMessages(ctx context.Context, db *gorm.DB, conversationID string) ([]domain.AiMessage, error) {
	var out []domain.AiMessage
	err := db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at asc, id asc").
		Find(&out).Error
	return out, err
}

// LastConversationMessage returns the newest message of a conversation, or
// ErrNotFound for an empty conversation.
func LastConversationMessage(ctx context.Context, db *gorm.DB, conversationID string) (*domain.AiMessage, error) {
	var m domain.AiMessage
	err := db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at desc, id desc").
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetAiMessage fetches one message by primary key.
func GetAiMessage(ctx context.Context, db *gorm.DB, id string) (*domain.AiMessage, error) {
	var m domain.AiMessage
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMessagesBetween returns every AI message of the user created in
// [start, end), across all conversations, in strict creation order. Used for
// per-day history reads and deletes.
func ListMessagesBetween(ctx context.Context, db *gorm.DB, userID string, start, end time.Time) ([]domain.AiMessage, error) {
	var out []domain.AiMessage
	err := db.WithContext(ctx).
		Joins("JOIN ai_conversations ON ai_conversations.id = ai_messages.conversation_id").
		Where("ai_conversations.user_id = ? AND ai_messages.created_at >= ? AND ai_messages.created_at < ?", userID, start, end).
		Order("ai_messages.created_at asc, ai_messages.id asc").
		Find(&out).Error
	return out, err
}

// dateAggRow is the raw scan target for DateAggregates. The timestamp bounds
// come back as TEXT: MIN()/MAX() strip the column's declared type in SQLite,
// so they must be parsed here instead of scanned into time.Time.
type dateAggRow struct {
	Day     string
	Count   int
	FirstAt string
	LastAt  string
}

// sqliteTimeLayouts covers the textual forms SQLite hands back for datetime
// values that lost their declared type.
var sqliteTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseSQLiteTime(s string) time.Time {
	for _, layout := range sqliteTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// DateAggregates groups the user's AI messages by calendar day (UTC), newest
// day first. Snippets are not computed here; see FirstPromptOfDay.
func DateAggregates(ctx context.Context, db *gorm.DB, userID string, since time.Time) ([]domain.AiDateBlock, error) {
	var rows []dateAggRow
	err := db.WithContext(ctx).
		Model(&domain.AiMessage{}).
		Select("date(ai_messages.created_at) AS day, count(ai_messages.id) AS count, min(ai_messages.created_at) AS first_at, max(ai_messages.created_at) AS last_at").
		Joins("JOIN ai_conversations ON ai_conversations.id = ai_messages.conversation_id").
		Where("ai_conversations.user_id = ? AND ai_messages.created_at >= ?", userID, since).
		Group("date(ai_messages.created_at)").
		Order("day desc").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]domain.AiDateBlock, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.AiDateBlock{
			Date:    r.Day,
			Count:   r.Count,
			FirstAt: parseSQLiteTime(r.FirstAt),
			LastAt:  parseSQLiteTime(r.LastAt),
		})
	}
	return out, nil
}

// FirstPromptOfDay returns the first user-sent message of the given calendar
// day (YYYY-MM-DD, UTC), or ErrNotFound when the day holds no prompts.
func FirstPromptOfDay(ctx context.Context, db *gorm.DB, userID, day string) (*domain.AiMessage, error) {
	var m domain.AiMessage
	err := db.WithContext(ctx).
		Joins("JOIN ai_conversations ON ai_conversations.id = ai_messages.conversation_id").
		Where("ai_conversations.user_id = ? AND date(ai_messages.created_at) = ? AND ai_messages.sender = ?", userID, day, domain.AiSenderUser).
		Order("ai_messages.created_at asc, ai_messages.id asc").
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// DeleteAiMessages hard-deletes the given message rows by ID.
func DeleteAiMessages(tx *gorm.DB, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return tx.Unscoped().Where("id IN ?", ids).Delete(&domain.AiMessage{}).Error
}

// CountConversationMessages returns the number of messages remaining in a
// conversation. Used to garbage-collect emptied conversations after deletes.
func CountConversationMessages(tx *gorm.DB, conversationID string) (int64, error) {
	var n int64
	err := tx.Model(&domain.AiMessage{}).
		Where("conversation_id = ?", conversationID).
		Count(&n).Error
	return n, err
}

// DeleteConversation hard-deletes a conversation row.
func DeleteConversation(tx *gorm.DB, id string) error {
	return tx.Unscoped().Where("id = ?", id).Delete(&domain.AiConversation{}).Error
}

// TouchConversation bumps a conversation's updated_at so recency ordering in
// listings reflects the latest exchange.
func TouchConversation(tx *gorm.DB, id string) error {
	return tx.Model(&domain.AiConversation{}).
		Where("id = ?", id).
		Update("updated_at", time.Now().UTC()).Error
}
