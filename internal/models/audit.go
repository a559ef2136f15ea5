package models

import (
	"time"
)

// AuditLog is an append-only security event record. Writes are asynchronous
// and best-effort; a failed write never fails the triggering request.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Event     string    `gorm:"type:varchar(100);not null;index" json:"event"`
	Subject   string    `gorm:"type:varchar(255);index" json:"subject"`
	IPAddress string    `gorm:"type:varchar(45)" json:"ip_address"`
	UserAgent string    `gorm:"type:text" json:"user_agent"`
	Metadata  string    `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"timestamp"`
}

// TableName overrides the table name
func (AuditLog) TableName() string {
	return "audit_logs"
}

// RevokedToken records the jti of an access or refresh token invalidated by
// logout. Present jti means the token is unconditionally rejected, expiry
// notwithstanding.
type RevokedToken struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	JTI       string    `gorm:"type:varchar(36);not null;uniqueIndex" json:"jti"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

// TableName overrides the table name
func (RevokedToken) TableName() string {
	return "revoked_tokens"
}
