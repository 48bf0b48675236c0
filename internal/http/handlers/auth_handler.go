// Package handlers – Auth endpoints
//
// This file implements registration, login, logout and the current-user
// endpoint. Authentication is stateless JWT: login mints a bearer token,
// logout revokes the token's JTI until its natural expiry, and Verify (used
// by the auth middleware) rejects revoked or malformed tokens.
//
// Endpoints:
//   - POST /auth/register
//   - POST /auth/login
//   - POST /auth/logout
//   - GET  /auth/me
package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campushub/portal-support/internal/domain"
	"github.com/campushub/portal-support/internal/http/middleware"
	"github.com/campushub/portal-support/internal/services"
)

// AuthHandler exposes authentication endpoints over AuthService.
type AuthHandler struct {
	Svc *services.AuthService
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(svc *services.AuthService) *AuthHandler {
	return &AuthHandler{Svc: svc}
}

// registerRequest is the JSON body of POST /auth/register.
type registerRequest struct {
	FullName   string `json:"fullName" binding:"required"`
	Email      string `json:"email" binding:"required"`
	Password   string `json:"password" binding:"required"`
	Role       string `json:"role" binding:"required"`
	Department string `json:"department"`
	Semester   string `json:"semester"`
}

// loginRequest is the JSON body of POST /auth/login.
type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// userView is the public projection of a user account.
type userView struct {
	ID         string `json:"id"`
	FullName   string `json:"fullName"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	IsApproved bool   `json:"isApproved"`
	Department string `json:"department,omitempty"`
	Semester   string `json:"semester,omitempty"`
}

func viewOf(u *domain.User) userView {
	return userView{
		ID:         u.ID,
		FullName:   u.FullName,
		Email:      u.Email,
		Role:       u.Role,
		IsApproved: u.IsApproved,
		Department: u.Department,
		Semester:   u.Semester,
	}
}

// Register handles POST /auth/register.
//
// Students are active immediately; staff roles are created pending approval.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "fullName, email, password and role are required")
		return
	}

	u, err := h.Svc.Register(c.Request.Context(), services.RegisterInput{
		FullName:   req.FullName,
		Email:      req.Email,
		Password:   req.Password,
		Role:       req.Role,
		Department: req.Department,
		Semester:   req.Semester,
	})
	switch {
	case errors.Is(err, services.ErrInvalidRole):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown role")
	case errors.Is(err, services.ErrEmailTaken):
		fail(c, http.StatusConflict, ErrCodeConflict, "email already registered")
	case errors.Is(err, services.ErrInvalidCredentials):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid registration details")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, "could not create account")
	default:
		ok(c, http.StatusCreated, gin.H{"user": viewOf(u)})
	}
}

// Login handles POST /auth/login and returns a bearer token plus the user.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email and password are required")
		return
	}

	token, u, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid email or password")
	case errors.Is(err, services.ErrAccountPending):
		fail(c, http.StatusForbidden, ErrCodeAccountPending, "account awaiting approval")
	case errors.Is(err, services.ErrAccountBlocked):
		fail(c, http.StatusForbidden, ErrCodeAccountBlocked, "account is blocked")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "login failed")
	default:
		ok(c, http.StatusOK, gin.H{
			"token":     token,
			"expiresIn": int(h.Svc.Tokens.TTL() / time.Second),
			"user":      viewOf(u),
		})
	}
}

// Logout handles POST /auth/logout. Revoking an already-invalid token is a
// successful no-op, so logout never fails for the client.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := bearerFrom(c)
	if token != "" {
		if err := h.Svc.Logout(c.Request.Context(), token); err != nil {
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "logout failed")
			return
		}
	}
	noContent(c)
}

// Me handles GET /auth/me for the authenticated user.
func (h *AuthHandler) Me(c *gin.Context) {
	u := middleware.UserFrom(c)
	if u == nil {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "missing or invalid credentials")
		return
	}
	ok(c, http.StatusOK, gin.H{"user": viewOf(u)})
}

// bearerFrom extracts the raw bearer token, or "".
func bearerFrom(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
