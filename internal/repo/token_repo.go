// Package repo – revoked-token store.
//
// A small keyed store of revoked JWT IDs with expiry-bounded lifetimes.
// Lookups treat an expired revocation row as absent, since the token it
// revoked can no longer verify anyway; expired rows are purged lazily.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campushub/portal-support/internal/domain"
)

// RevokeToken records jti as revoked until expiresAt. Revoking the same jti
// twice is a no-op success.
func RevokeToken(ctx context.Context, db *gorm.DB, jti string, expiresAt time.Time) error {
	rec := &domain.RevokedToken{
		ID:        uuid.NewString(),
		JTI:       jti,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: time.Now().UTC(),
	}
	err := db.WithContext(ctx).Create(rec).Error
	if err != nil && isUniqueViolation(err) {
		return nil
	}
	return err
}

// IsTokenRevoked reports whether jti has an unexpired revocation record.
func IsTokenRevoked(ctx context.Context, db *gorm.DB, jti string, now time.Time) (bool, error) {
	var rec domain.RevokedToken
	err := db.WithContext(ctx).
		Where("jti = ? AND expires_at > ?", jti, now.UTC()).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// PurgeExpiredTokens removes revocation rows whose tokens have expired.
// Returns the number of rows deleted.
func PurgeExpiredTokens(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now.UTC()).
		Delete(&domain.RevokedToken{})
	return res.RowsAffected, res.Error
}

// isUniqueViolation reports whether err looks like a unique-constraint
// failure. SQLite has no typed error here, so we match the driver message.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
