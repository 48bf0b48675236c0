// Package handlers – Admin endpoints
//
// This file implements staff-side account management. Accounts created here
// are approved immediately; the approve endpoint unblocks accounts left
// pending by self-registration. Both operations are gated by the caller's
// role against the target's role.
//
// Endpoints:
//   - POST /admin/users
//   - POST /admin/users/:id/approve
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campushub/portal-support/internal/http/middleware"
	"github.com/campushub/portal-support/internal/services"
)

// AdminHandler exposes account management endpoints over AuthService.
type AdminHandler struct {
	Svc *services.AuthService
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(svc *services.AuthService) *AdminHandler {
	return &AdminHandler{Svc: svc}
}

// createUserRequest is the JSON body of POST /admin/users.
type createUserRequest struct {
	FullName   string `json:"fullName" binding:"required"`
	Email      string `json:"email" binding:"required"`
	Password   string `json:"password" binding:"required"`
	Role       string `json:"role" binding:"required"`
	Department string `json:"department"`
	Semester   string `json:"semester"`
}

// CreateUser handles POST /admin/users.
func (h *AdminHandler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "fullName, email, password and role are required")
		return
	}

	u, err := h.Svc.AdminCreateUser(c.Request.Context(), middleware.UserFrom(c), services.RegisterInput{
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
	case errors.Is(err, services.ErrInvalidCredentials):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid account details")
	case errors.Is(err, services.ErrNotAllowed):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "not allowed to create this account")
	case errors.Is(err, services.ErrEmailTaken):
		fail(c, http.StatusConflict, ErrCodeConflict, "email already registered")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, "could not create account")
	default:
		ok(c, http.StatusCreated, gin.H{"user": viewOf(u)})
	}
}

// ApproveUser handles POST /admin/users/:id/approve.
func (h *AdminHandler) ApproveUser(c *gin.Context) {
	u, err := h.Svc.ApproveUser(c.Request.Context(), middleware.UserFrom(c), c.Param("id"))
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "user not found")
	case errors.Is(err, services.ErrNotAllowed):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "not allowed to approve this account")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not approve account")
	default:
		ok(c, http.StatusOK, gin.H{"user": viewOf(u)})
	}
}
