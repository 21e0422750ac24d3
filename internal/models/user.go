package models

import "time"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User is a tenant account. Every tenant-scoped row carries its ID as user_id.
type User struct {
	BaseModel
	Username    string `json:"username" gorm:"uniqueIndex;size:64;not null"`
	Password    string `json:"-" gorm:"not null"`
	Role        string `json:"role" gorm:"size:20;not null"`
	DisplayName string `json:"display_name" gorm:"size:100"`
	Email       string `json:"email" gorm:"size:255"`

	// Routes inbound webhook calls to this tenant
	WebhookKey string `json:"webhook_key" gorm:"uniqueIndex;size:64;not null"`

	// LINE Messaging API credentials, empty means "fall back to the global settings"
	LineChannelSecret      string `json:"-" gorm:"size:255"`
	LineChannelAccessToken string `json:"-" gorm:"type:text"`

	MessageQuota   int   `json:"message_quota" gorm:"not null"`
	IsActive       bool  `json:"is_active" gorm:"not null"`
	CanCreateUsers bool  `json:"can_create_users" gorm:"not null"`
	CreatedBy      *uint `json:"created_by" gorm:"index"`
}

// IsAdmin reports whether the user has the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CanManageUsers reports whether the user may create and manage other accounts
func (u *User) CanManageUsers() bool {
	return u.IsAdmin() || u.CanCreateUsers
}

// UserToken is an opaque access token. Only the sha256 of the token is stored.
type UserToken struct {
	BaseModel
	UserID     uint       `json:"user_id" gorm:"not null;index"`
	TokenHash  string     `json:"-" gorm:"uniqueIndex;size:64;not null"`
	LastUsedAt *time.Time `json:"last_used_at"`
}

// RefreshToken is an opaque refresh token with a fixed expiry.
type RefreshToken struct {
	BaseModel
	UserID    uint      `json:"user_id" gorm:"not null;index"`
	TokenHash string    `json:"-" gorm:"uniqueIndex;size:64;not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null;index"`
}
