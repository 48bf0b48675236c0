// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides bearer-token authentication. Two variants exist:
//
//   - RequireAuth: rejects the request with 401 unless a valid token is
//     presented. Used by everything except the AI chat endpoint.
//   - OptionalAuth: resolves the actor when a token is present but lets
//     anonymous requests through. Used by the AI chat endpoint, which also
//     serves logged-out visitors (without persistence).
//
// On success both variants store the acting user under "userID"/"userRole"
// and the full domain.User under "user" in the Gin context. A rejected
// credential is indistinguishable from an absent one to downstream handlers:
// the actor is simply unauthenticated.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campushub/portal-support/internal/auth"
	"github.com/campushub/portal-support/internal/domain"
)

// Context keys set by the auth middleware.
const (
	CtxUserIDKey   = "userID"
	CtxUserRoleKey = "userRole"
	CtxUserKey     = "user"
)

// TokenVerifier resolves a bearer token to the acting user.
// Satisfied by services.AuthService.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*domain.User, *auth.Claims, error)
}

// RequireAuth returns middleware that enforces a valid bearer token.
func RequireAuth(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := resolve(c, v)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": c.Writer.Header().Get("X-Request-ID"),
				"code":       "unauthorized",
				"message":    "missing or invalid credentials",
			})
			return
		}
		attach(c, u)
		c.Next()
	}
}

// OptionalAuth returns middleware that resolves the actor when possible and
// otherwise continues anonymously.
func OptionalAuth(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if u, ok := resolve(c, v); ok {
			attach(c, u)
		}
		c.Next()
	}
}

// UserID returns the authenticated user id from the context, or "".
func UserID(c *gin.Context) string {
	if v, ok := c.Get(CtxUserIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// UserFrom returns the authenticated user from the context, or nil.
func UserFrom(c *gin.Context) *domain.User {
	if v, ok := c.Get(CtxUserKey); ok {
		if u, ok := v.(*domain.User); ok {
			return u
		}
	}
	return nil
}

func resolve(c *gin.Context, v TokenVerifier) (*domain.User, bool) {
	token := bearerToken(c)
	if token == "" {
		return nil, false
	}
	u, _, err := v.Verify(c.Request.Context(), token)
	if err != nil {
		return nil, false
	}
	return u, true
}

func attach(c *gin.Context, u *domain.User) {
	c.Set(CtxUserIDKey, u.ID)
	c.Set(CtxUserRoleKey, u.Role)
	c.Set(CtxUserKey, u)
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
