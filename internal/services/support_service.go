// Package services: SupportService
//
// This file implements the support thread engine's server half: idempotent
// thread creation for students, thread listing for consultants, per-thread
// history, and message appends. The append path is shared by the WebSocket
// layer, which broadcasts the persisted message back to the thread room.
// Delivery is always the server-confirmed row, never a client echo.
package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/campushub/portal-support/internal/domain"
	"github.com/campushub/portal-support/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SupportService owns student↔consultant threads and their messages.
type SupportService struct {
	DB *gorm.DB

	// MaxMessageRunes caps accepted message text; 0 disables the cap.
	MaxMessageRunes int
}

// NewSupportService constructs a SupportService with portal defaults.
func NewSupportService(db *gorm.DB) *SupportService {
	return &SupportService{DB: db, MaxMessageRunes: 4000}
}

// EnsureThread idempotently returns the thread between the acting student
// and the default consultant, creating it on first access. Calling it twice
// for the same student yields a thread with the same ID.
func (s *SupportService) EnsureThread(ctx context.Context, userID string) (*domain.SupportThread, error) {
	tr := otel.Tracer("services/SupportService")
	ctx, span := tr.Start(ctx, "EnsureThread",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	u, err := repo.GetUser(ctx, s.DB, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if u.Role == domain.RoleConsultant {
		return nil, ErrConsultantThread
	}

	consultant, err := repo.FirstConsultant(ctx, s.DB)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoConsultant
	}
	if err != nil {
		return nil, err
	}

	thread, err := repo.GetThreadByPair(ctx, s.DB, u.ID, consultant.ID)
	if err == nil {
		return thread, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	thread, err = repo.CreateThread(ctx, s.DB, u.ID, consultant.ID)
	if err != nil {
		// Lost a create race; the unique pair index guarantees the winner
		// made the thread we want.
		if existing, gerr := repo.GetThreadByPair(ctx, s.DB, u.ID, consultant.ID); gerr == nil {
			return existing, nil
		}
		return nil, err
	}
	thread.Consultant = consultant
	return thread, nil
}

// ListThreads returns all threads handled by the acting consultant, ordered
// by most recent activity (last message time, falling back to thread
// creation), with each thread's last message attached.
func (s *SupportService) ListThreads(ctx context.Context, userID string) ([]domain.SupportThread, error) {
	tr := otel.Tracer("services/SupportService")
	ctx, span := tr.Start(ctx, "ListThreads",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	u, err := repo.GetUser(ctx, s.DB, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if u.Role != domain.RoleConsultant {
		return nil, ErrNotConsultant
	}

	threads, err := repo.ListConsultantThreads(ctx, s.DB, u.ID)
	if err != nil {
		return nil, err
	}
	for i := range threads {
		if last, err := repo.LastThreadMessage(ctx, s.DB, threads[i].ID); err == nil {
			threads[i].LastMessage = last
		}
	}
	sort.SliceStable(threads, func(a, b int) bool {
		return activityTime(&threads[a]).After(activityTime(&threads[b]))
	})
	return threads, nil
}

// Messages returns the full ordered history of a thread the user belongs to.
func (s *SupportService) Messages(ctx context.Context, userID, threadID string) ([]domain.SupportMessage, error) {
	tr := otel.Tracer("services/SupportService")
	ctx, span := tr.Start(ctx, "Messages",
		trace.WithAttributes(attribute.String("thread.id", threadID)),
	)
	defer span.End()

	if _, err := s.memberThread(ctx, userID, threadID); err != nil {
		return nil, err
	}
	return repo.ListThreadMessages(ctx, s.DB, threadID)
}

// Append validates and persists one message from userID into threadID and
// returns the stored row (server-assigned ID and timestamp included).
func (s *SupportService) Append(ctx context.Context, userID, threadID, text string) (*domain.SupportMessage, error) {
	tr := otel.Tracer("services/SupportService")
	ctx, span := tr.Start(ctx, "Append",
		trace.WithAttributes(
			attribute.String("thread.id", threadID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if s.MaxMessageRunes > 0 && len([]rune(text)) > s.MaxMessageRunes {
		return nil, ErrTooLong
	}

	if _, err := s.memberThread(ctx, userID, threadID); err != nil {
		return nil, err
	}
	u, err := repo.GetUser(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}
	return repo.CreateSupportMessage(ctx, s.DB, threadID, u.ID, u.FullName, text)
}

// IsMember reports whether userID participates in threadID. Used by the
// WebSocket layer for room-join authorization.
func (s *SupportService) IsMember(ctx context.Context, userID, threadID string) error {
	_, err := s.memberThread(ctx, userID, threadID)
	return err
}

// memberThread loads a thread and enforces membership.
func (s *SupportService) memberThread(ctx context.Context, userID, threadID string) (*domain.SupportThread, error) {
	t, err := repo.GetThread(ctx, s.DB, threadID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrThreadNotFound
	}
	if err != nil {
		return nil, err
	}
	if userID != t.StudentID && userID != t.ConsultantID {
		return nil, ErrNotThreadMember
	}
	return t, nil
}

// activityTime is the recency key for thread ordering.
func activityTime(t *domain.SupportThread) time.Time {
	if t.LastMessage != nil {
		return t.LastMessage.CreatedAt
	}
	return t.CreatedAt
}
