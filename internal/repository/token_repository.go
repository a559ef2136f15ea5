package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/medchain/identity-service/internal/models"
	"gorm.io/gorm"
)

// TokenRepository handles the revoked-token set
type TokenRepository struct {
	db *gorm.DB
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Revoke records a token id. Revoking an already revoked id is a no-op.
func (r *TokenRepository) Revoke(ctx context.Context, jti string) error {
	err := r.db.WithContext(ctx).Create(&models.RevokedToken{JTI: jti}).Error
	if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether a token id is in the revocation set. Errors
// propagate so callers can fail closed on store outage.
func (r *TokenRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.RevokedToken{}).
		Where("jti = ?", jti).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return count > 0, nil
}
