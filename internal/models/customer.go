package models

import "time"

// Customer binds a tenant-chosen alias to a LINE user id.
type Customer struct {
	BaseModel
	UserID     uint   `json:"user_id" gorm:"not null;uniqueIndex:idx_customers_user_line"`
	LineUID    string `json:"line_uid" gorm:"size:64;not null;uniqueIndex:idx_customers_user_line"`
	CustomName string `json:"custom_name" gorm:"size:100;index"`
	Note       string `json:"note" gorm:"type:text"`
}

// LineUser mirrors the LINE profile of a platform user as seen by one tenant.
type LineUser struct {
	BaseModel
	UserID        uint       `json:"user_id" gorm:"not null;uniqueIndex:idx_line_users_user_line"`
	LineUID       string     `json:"line_uid" gorm:"size:64;not null;uniqueIndex:idx_line_users_user_line"`
	DisplayName   string     `json:"display_name" gorm:"size:255"`
	PictureURL    string     `json:"picture_url" gorm:"type:text"`
	StatusMessage string     `json:"status_message" gorm:"type:text"`
	LastEventAt   *time.Time `json:"last_event_at"`
}

const (
	SenderUser   = "user"
	SenderSystem = "system"

	MessageStatusReceived = "received"
	MessageStatusSent     = "sent"
	MessageStatusFailed   = "failed"
)

// Message is an append-only log of inbound and outbound messages. Outbound rows
// are the basis of monthly quota accounting.
type Message struct {
	BaseModel
	UserID      uint   `json:"user_id" gorm:"not null;index:idx_messages_quota,priority:1"`
	CustomerID  uint   `json:"customer_id" gorm:"not null;index"`
	LineUID     string `json:"line_uid" gorm:"size:64"`
	Sender      string `json:"sender" gorm:"size:10;not null;index:idx_messages_quota,priority:2"`
	MessageType string `json:"message_type" gorm:"size:20"`
	Content     string `json:"content" gorm:"type:text"`
	Status      string `json:"status" gorm:"size:20"`
	Error       string `json:"error,omitempty" gorm:"type:text"`
}
