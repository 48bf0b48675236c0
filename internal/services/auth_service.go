// Package services – AuthService
//
// This file implements account registration, login, logout, and bearer-token
// verification. Students are approved on registration; staff roles start
// pending and are approved elsewhere. Logout revokes the token's jti so the
// same token can never verify again, even before its natural expiry.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/campushub/portal-support/internal/auth"
	"github.com/campushub/portal-support/internal/domain"
	"github.com/campushub/portal-support/internal/repo"
)

// AuthService owns the account and session lifecycle.
type AuthService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Tokens mints and parses access tokens.
	Tokens *auth.Manager
}

// RegisterInput carries the fields accepted at self-registration.
type RegisterInput struct {
	FullName   string
	Email      string
	Password   string
	Role       string
	Department string
	Semester   string
}

// Register creates a new account. Student accounts are usable immediately;
// any other role starts unapproved and cannot log in until approved.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
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

	if _, err := repo.GetUserByEmail(ctx, s.DB, in.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &domain.User{
		FullName:     in.FullName,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		IsApproved:   in.Role == domain.RoleStudent,
		Department:   strings.TrimSpace(in.Department),
		Semester:     strings.TrimSpace(in.Semester),
	}
	return repo.CreateUser(ctx, s.DB, u)
}

// Login verifies credentials and account gates, then mints a bearer token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := repo.GetUserByEmail(ctx, s.DB, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return "", nil, ErrInvalidCredentials
	}
	if u.IsBlocked {
		return "", nil, ErrAccountBlocked
	}
	if !u.IsApproved {
		return "", nil, ErrAccountPending
	}

	token, _, _, err := s.Tokens.Mint(u.ID, u.Role)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

// Logout revokes the token's jti until the token would have expired anyway.
// An already-invalid token is a no-op success: the session is gone either way.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := s.Tokens.Parse(token)
	if err != nil {
		return nil
	}
	exp := time.Now().UTC().Add(s.Tokens.TTL())
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	return repo.RevokeToken(ctx, s.DB, claims.ID, exp)
}

// Verify parses a bearer token, rejects revoked or blocked sessions, and
// returns the acting user. All failures map to auth.ErrInvalidToken so the
// transport can uniformly answer 401.
func (s *AuthService) Verify(ctx context.Context, token string) (*domain.User, *auth.Claims, error) {
	claims, err := s.Tokens.Parse(token)
	if err != nil {
		return nil, nil, auth.ErrInvalidToken
	}
	revoked, err := repo.IsTokenRevoked(ctx, s.DB, claims.ID, time.Now())
	if err != nil {
		return nil, nil, err
	}
	if revoked {
		return nil, nil, auth.ErrInvalidToken
	}
	u, err := repo.GetUser(ctx, s.DB, claims.Subject)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, auth.ErrInvalidToken
	}
	if err != nil {
		return nil, nil, err
	}
	if u.IsBlocked {
		return nil, nil, auth.ErrInvalidToken
	}
	return u, claims, nil
}

// SeedAdmin ensures the default admin account exists. Called once at startup.
func (s *AuthService) SeedAdmin(ctx context.Context, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	_, err := repo.GetUserByEmail(ctx, s.DB, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = repo.CreateUser(ctx, s.DB, &domain.User{
		FullName:     "Main Admin",
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		IsApproved:   true,
	})
	return err
}
