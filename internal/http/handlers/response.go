// Package handlers implements the HTTP endpoints of the portal API.
//
// This file holds the shared response helpers. Every error leaves the API as
// an ErrorResponse with a stable machine-readable code, so clients can branch
// on failures without parsing prose.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campushub/portal-support/internal/http/middleware"
)

// ErrorResponse is the error envelope returned by every endpoint. RequestID
// echoes the X-Request-ID header so a client report can be matched to server
// logs; Code is one of the constants in errors.go; Message is safe to show
// to end users.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// fail aborts the request with the standard error envelope. Server-side
// failures (5xx) also go to the request-scoped logger; client errors are
// already covered by the access log.
func fail(c *gin.Context, status int, code, msg string) {
	rid := c.Writer.Header().Get("X-Request-ID")

	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: rid,
		Code:      code,
		Message:   msg,
	})
}

// Fail lets packages outside handlers (router fallbacks, middleware) emit
// the same envelope.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) { c.JSON(status, body) }

func noContent(c *gin.Context) { c.Status(http.StatusNoContent) }
