// Package handlers – Support thread endpoints
//
// This file implements the HTTP half of the support subsystem. Students call
// the ensure-thread endpoint to obtain (or lazily create) their channel to a
// consultant; consultants list the threads assigned to them; both sides load
// a thread's message history before joining its WebSocket room. Message
// sending itself happens over the push channel (internal/ws), not here.
//
// Endpoints:
//   - POST /support/thread
//   - GET  /support/threads
//   - GET  /support/threads/:id/messages
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campushub/portal-support/internal/http/middleware"
	"github.com/campushub/portal-support/internal/services"
	"github.com/campushub/portal-support/internal/utils"
)

// SupportHandler exposes the support thread endpoints over SupportService.
type SupportHandler struct {
	Svc *services.SupportService
}

// NewSupportHandler constructs a SupportHandler.
func NewSupportHandler(svc *services.SupportService) *SupportHandler {
	return &SupportHandler{Svc: svc}
}

// EnsureThread handles POST /support/thread. Calling it repeatedly for the
// same student returns the same thread.
func (h *SupportHandler) EnsureThread(c *gin.Context) {
	thread, err := h.Svc.EnsureThread(c.Request.Context(), middleware.UserID(c))
	switch {
	case errors.Is(err, services.ErrConsultantThread):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "consultants cannot open a student thread")
	case errors.Is(err, services.ErrNoConsultant):
		fail(c, http.StatusServiceUnavailable, ErrCodeCreateFailed, "no consultant is available")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, "could not open support thread")
	default:
		ok(c, http.StatusOK, gin.H{"thread": thread})
	}
}

// ListThreads handles GET /support/threads for consultants, most recently
// active thread first.
func (h *SupportHandler) ListThreads(c *gin.Context) {
	threads, err := h.Svc.ListThreads(c.Request.Context(), middleware.UserID(c))
	switch {
	case errors.Is(err, services.ErrNotConsultant):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "consultant role required")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list threads")
	default:
		ok(c, http.StatusOK, gin.H{"threads": threads})
	}
}

// Messages handles GET /support/threads/:id/messages for thread members.
// An optional ?limit=N keeps only the newest N messages (still in
// chronological order) for clients that render a tail first.
func (h *SupportHandler) Messages(c *gin.Context) {
	msgs, err := h.Svc.Messages(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	switch {
	case errors.Is(err, services.ErrThreadNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "thread not found")
	case errors.Is(err, services.ErrNotThreadMember):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "not a member of this thread")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not load messages")
	default:
		if limit := utils.AtoiDefault(c.Query("limit"), 0); limit > 0 && limit < len(msgs) {
			msgs = msgs[len(msgs)-limit:]
		}
		ok(c, http.StatusOK, gin.H{"messages": msgs})
	}
}
