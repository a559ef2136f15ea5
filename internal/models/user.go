package models

import (
	"time"
)

// User is the durable account record. Every PII column is stored encrypted;
// equality lookups go through the deterministic hash columns, never through
// plaintext.
type User struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	Role                Role       `gorm:"type:varchar(32);not null;default:'patient'" json:"role"`
	EmailEncrypted      string     `gorm:"type:text;not null" json:"-"`
	EmailHash           string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"-"`
	Password            string     `gorm:"type:varchar(255);not null" json:"-"`
	NameEncrypted       string     `gorm:"type:text" json:"-"`
	TelephoneEncrypted  *string    `gorm:"type:text" json:"-"`
	TelephoneHash       *string    `gorm:"type:varchar(64);uniqueIndex" json:"-"`
	MFAEnabled          bool       `gorm:"default:false" json:"mfa_enabled"`
	MFASecretEncrypted  *string    `gorm:"type:text" json:"-"`
	AccountVerified     bool       `gorm:"default:false" json:"account_verified"`
	FailedLoginAttempts int        `gorm:"default:0" json:"-"`
	LastPasswordChange  time.Time  `json:"-"`
	LastLoginAt         *time.Time `json:"last_login_at,omitempty"`
	LastLoginIP         string     `gorm:"type:varchar(45)" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (User) TableName() string {
	return "users"
}
