// Package handlers – AI assistant endpoints
//
// This file implements the conversational assistant surface: the chat
// endpoint itself plus conversation restore, the date-grouped history views
// and the two deletion operations (single question/answer pair, whole day).
//
// The chat endpoint accepts anonymous callers: without a valid bearer token
// the assistant still answers, but nothing is persisted and no conversation
// ID is returned. Authenticated sends thread into the caller's conversation
// (creating one titled from the first prompt when needed).
//
// Endpoints:
//   - POST   /chat
//   - GET    /ai/conversations
//   - GET    /ai/conversations/:id
//   - GET    /ai/history/dates
//   - GET    /ai/history/dates/:date
//   - DELETE /ai/history/dates/:date
//   - DELETE /ai/pairs/:id
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campushub/portal-support/internal/http/middleware"
	"github.com/campushub/portal-support/internal/services"
)

// AiHandler exposes the assistant endpoints over AiService.
type AiHandler struct {
	Svc *services.AiService
}

// NewAiHandler constructs an AiHandler.
func NewAiHandler(svc *services.AiService) *AiHandler {
	return &AiHandler{Svc: svc}
}

// chatRequest is the JSON body of POST /chat. ConversationID is optional:
// empty (or stale) IDs start a fresh conversation for authenticated users.
type chatRequest struct {
	Message        string `json:"message" binding:"required"`
	ConversationID string `json:"conversationId"`
}

// Chat handles POST /chat.
func (h *AiHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message is required")
		return
	}

	res, err := h.Svc.Converse(c.Request.Context(), middleware.UserID(c), req.ConversationID, req.Message)
	switch {
	case errors.Is(err, services.ErrEmptyPrompt):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message must not be empty")
	case errors.Is(err, services.ErrTooLong):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message is too long")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeAnswerFailed, "could not answer")
	default:
		body := gin.H{"response": res.Reply}
		if res.ConversationID != "" {
			body["conversationId"] = res.ConversationID
			body["pairId"] = res.PairID
		}
		ok(c, http.StatusOK, body)
	}
}

// ListConversations handles GET /ai/conversations for the authenticated user.
func (h *AiHandler) ListConversations(c *gin.Context) {
	list, err := h.Svc.ListConversations(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list conversations")
		return
	}
	ok(c, http.StatusOK, gin.H{"conversations": list})
}

// GetConversation handles GET /ai/conversations/:id and returns the ordered
// transcript for restore.
func (h *AiHandler) GetConversation(c *gin.Context) {
	conv, msgs, err := h.Svc.ConversationWithMessages(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	switch {
	case errors.Is(err, services.ErrConversationNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load conversation")
	default:
		ok(c, http.StatusOK, gin.H{
			"conversationId": conv.ID,
			"title":          conv.Title,
			"messages":       msgs,
		})
	}
}

// HistoryDates handles GET /ai/history/dates: per-day aggregates of the
// user's assistant history, newest day first.
func (h *AiHandler) HistoryDates(c *gin.Context) {
	dates, err := h.Svc.HistoryDates(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not load history")
		return
	}
	ok(c, http.StatusOK, gin.H{"dates": dates})
}

// PairsForDate handles GET /ai/history/dates/:date (date in YYYY-MM-DD).
func (h *AiHandler) PairsForDate(c *gin.Context) {
	pairs, err := h.Svc.PairsForDate(c.Request.Context(), middleware.UserID(c), c.Param("date"))
	switch {
	case errors.Is(err, services.ErrInvalidDate):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "date must be YYYY-MM-DD")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not load history")
	default:
		ok(c, http.StatusOK, gin.H{"date": c.Param("date"), "pairs": pairs})
	}
}

// DeleteDate handles DELETE /ai/history/dates/:date. Deleting a day with no
// messages succeeds without effect.
func (h *AiHandler) DeleteDate(c *gin.Context) {
	err := h.Svc.DeleteDate(c.Request.Context(), middleware.UserID(c), c.Param("date"))
	switch {
	case errors.Is(err, services.ErrInvalidDate):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "date must be YYYY-MM-DD")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not delete history")
	default:
		noContent(c)
	}
}

// DeletePair handles DELETE /ai/pairs/:id where :id is the prompt message ID.
func (h *AiHandler) DeletePair(c *gin.Context) {
	err := h.Svc.DeletePair(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	switch {
	case errors.Is(err, services.ErrPairNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "pair not found")
	case errors.Is(err, services.ErrNotAPrompt):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "id does not identify a question")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not delete pair")
	default:
		noContent(c)
	}
}
