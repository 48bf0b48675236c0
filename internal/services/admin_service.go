// Package services – admin account management
//
// This file implements the staff-side account operations: creating accounts
// that are active immediately and approving pending ones. Both are gated by
// the role-management ruleset, so an organizer can never touch staff and
// nobody can manage an admin.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/campushub/portal-support/internal/auth"
	"github.com/campushub/portal-support/internal/domain"
	"github.com/campushub/portal-support/internal/repo"
)

// CanManage reports whether callerRole may create or approve an account with
// targetRole. Admins manage every non-admin role, sub-admins everything below
// admin and sub-admin, and student organizers only students.
func CanManage(callerRole, targetRole string) bool {
	switch callerRole {
	case domain.RoleAdmin:
		return targetRole != domain.RoleAdmin
	case domain.RoleSubAdmin:
		return targetRole != domain.RoleAdmin && targetRole != domain.RoleSubAdmin
	case domain.RoleStudentOrganizer:
		return targetRole == domain.RoleStudent
	}
	return false
}

// AdminCreateUser creates an account on behalf of a staff caller. Unlike
// self-registration, the account is approved immediately, so a consultant
// created here can anchor support threads right away.
func (s *AuthService) AdminCreateUser(ctx context.Context, caller *domain.User, in RegisterInput) (*domain.User, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.FullName == "" || in.Email == "" || len(in.Password) < 6 {
		return nil, ErrInvalidCredentials
	}
	if in.Role == "" {
		in.Role = domain.RoleStudent
	}
	if !domain.ValidRole(in.Role) {
		return nil, ErrInvalidRole
	}
	if caller == nil || !CanManage(caller.Role, in.Role) {
		return nil, ErrNotAllowed
	}

	if _, err := repo.GetUserByEmail(ctx, s.DB, in.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	return repo.CreateUser(ctx, s.DB, &domain.User{
		FullName:     in.FullName,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		IsApproved:   true,
		Department:   strings.TrimSpace(in.Department),
		Semester:     strings.TrimSpace(in.Semester),
	})
}

// ApproveUser marks a pending account approved. Approving an already-approved
// account is a no-op success.
func (s *AuthService) ApproveUser(ctx context.Context, caller *domain.User, targetID string) (*domain.User, error) {
	u, err := repo.GetUser(ctx, s.DB, targetID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if caller == nil || !CanManage(caller.Role, u.Role) {
		return nil, ErrNotAllowed
	}
	if u.IsApproved {
		return u, nil
	}
	if err := repo.SetUserApproved(ctx, s.DB, u.ID); err != nil {
		return nil, err
	}
	u.IsApproved = true
	return u, nil
}
