// Package repo – support thread persistence.
//
// Repository functions for SupportThread and SupportMessage rows. Thread
// uniqueness per (student, consultant) pair is backed by a composite unique
// index; idempotent ensure-or-create lives in the service layer.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campushub/portal-support/internal/domain"
)

// CreateThread inserts a thread for the (student, consultant) pair.
// The unique pair index rejects duplicates at the DB level.
func CreateThread(ctx context.Context, db *gorm.DB, studentID, consultantID string) (*domain.SupportThread, error) {
	t := &domain.SupportThread{
		ID:           uuid.NewString(),
		StudentID:    studentID,
		ConsultantID: consultantID,
		CreatedAt:    time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

// GetThread fetches a thread by ID with both participants preloaded, or
// ErrNotFound if missing.
func GetThread(ctx context.Context, db *gorm.DB, id string) (*domain.SupportThread, error) {
	var t domain.SupportThread
	err := db.WithContext(ctx).
		Preload("Student").
		Preload("Consultant").
		Where("id = ?", id).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetThreadByPair fetches the unique thread for a (student, consultant)
// pair, or ErrNotFound when the pair has never talked.
func GetThreadByPair(ctx context.Context, db *gorm.DB, studentID, consultantID string) (*domain.SupportThread, error) {
	var t domain.SupportThread
	err := db.WithContext(ctx).
		Preload("Consultant").
		Where("student_id = ? AND consultant_id = ?", studentID, consultantID).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListConsultantThreads returns all threads handled by the consultant with
// students preloaded, newest thread first. Activity-based ordering is applied
// by the service once last messages are attached.
func ListConsultantThreads(ctx context.Context, db *gorm.DB, consultantID string) ([]domain.SupportThread, error) {
	var out []domain.SupportThread
	err := db.WithContext(ctx).
		Preload("Student").
		Where("consultant_id = ?", consultantID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// LastThreadMessage returns the newest message of a thread, or ErrNotFound
// for a thread with no messages yet.
func LastThreadMessage(ctx context.Context, db *gorm.DB, threadID string) (*domain.SupportMessage, error) {
	var m domain.SupportMessage
	err := db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at desc, id desc").
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListThreadMessages returns the full message history of a thread in strict
// creation order.
func ListThreadMessages(ctx context.Context, db *gorm.DB, threadID string) ([]domain.SupportMessage, error) {
	var out []domain.SupportMessage
	err := db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at asc, id asc").
		Find(&out).Error
	return out, err
}

// CreateSupportMessage appends one immutable message to a thread.
func CreateSupportMessage(ctx context.Context, db *gorm.DB, threadID, senderID, senderName, text string) (*domain.SupportMessage, error) {
	m := &domain.SupportMessage{
		ID:         uuid.NewString(),
		ThreadID:   threadID,
		SenderID:   senderID,
		SenderName: senderName,
		Text:       text,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}
