package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/medchain/identity-service/internal/models"
	"gorm.io/gorm"
)

// UserRepository handles account database operations
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new account. A unique-index violation on the email or
// phone hash surfaces as ErrConflict.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrConflict
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves an account by id
func (r *UserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetByEmailHash retrieves an account by its deterministic email hash.
// Accounts are never queryable by plaintext email.
func (r *UserRepository) GetByEmailHash(ctx context.Context, emailHash string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email_hash = ?", emailHash).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email hash: %w", err)
	}
	return &user, nil
}

// ExistsByEmailHash reports whether an account with the email hash exists
func (r *UserRepository) ExistsByEmailHash(ctx context.Context, emailHash string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("email_hash = ?", emailHash).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check email hash: %w", err)
	}
	return count > 0, nil
}

// ExistsByTelephoneHash reports whether an account with the phone hash exists
func (r *UserRepository) ExistsByTelephoneHash(ctx context.Context, telephoneHash string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("telephone_hash = ?", telephoneHash).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check telephone hash: %w", err)
	}
	return count > 0, nil
}

// IncrementFailedLogins bumps the consecutive failed-login counter in place
func (r *UserRepository) IncrementFailedLogins(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("failed_login_attempts", gorm.Expr("failed_login_attempts + ?", 1)).Error; err != nil {
		return fmt.Errorf("failed to record failed login: %w", err)
	}
	return nil
}

// RecordLogin updates last-login metadata and clears the failed counter
func (r *UserRepository) RecordLogin(ctx context.Context, id uint, ip string, at time.Time) error {
	updates := map[string]interface{}{
		"last_login_at":         at,
		"last_login_ip":         ip,
		"failed_login_attempts": 0,
	}
	if err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return nil
}

// UpdatePassword replaces the password hash and stamps the change time
func (r *UserRepository) UpdatePassword(ctx context.Context, id uint, passwordHash string) error {
	updates := map[string]interface{}{
		"password":             passwordHash,
		"last_password_change": time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// SetMFA enables or disables multi-factor auth for an account
func (r *UserRepository) SetMFA(ctx context.Context, id uint, enabled bool, secretEncrypted *string) error {
	updates := map[string]interface{}{
		"mfa_enabled":          enabled,
		"mfa_secret_encrypted": secretEncrypted,
	}
	if err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update MFA settings: %w", err)
	}
	return nil
}
