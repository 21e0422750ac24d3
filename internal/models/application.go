package models

import "time"

const (
	ApplicationPending  = "pending"
	ApplicationApproved = "approved"
	ApplicationRejected = "rejected"
)

// UserApplication is a self-registration request awaiting admin review.
type UserApplication struct {
	BaseModel
	Username     string     `json:"username" gorm:"size:64;not null;index"`
	Password     string     `json:"-" gorm:"not null"`
	DisplayName  string     `json:"display_name" gorm:"size:100"`
	Email        string     `json:"email" gorm:"size:255"`
	Reason       string     `json:"reason" gorm:"type:text"`
	Status       string     `json:"status" gorm:"size:20;not null;index"`
	RejectReason string     `json:"reject_reason" gorm:"type:text"`
	ReviewedBy   *uint      `json:"reviewed_by"`
	ReviewedAt   *time.Time `json:"reviewed_at"`
	UserID       *uint      `json:"user_id"`
}

// ActivityLog is an append-only audit row, one per recorded HTTP request.
type ActivityLog struct {
	BaseModel
	UserID      *uint  `json:"user_id" gorm:"index"`
	Username    string `json:"username" gorm:"size:64"`
	Method      string `json:"method" gorm:"size:10;index"`
	Path        string `json:"path" gorm:"size:255;index"`
	Query       string `json:"query" gorm:"type:text"`
	RequestBody string `json:"request_body" gorm:"type:text"`
	StatusCode  int    `json:"status_code"`
	IPAddress   string `json:"ip_address" gorm:"size:64"`
	UserAgent   string `json:"user_agent" gorm:"type:text"`
	DurationMs  int64  `json:"duration_ms"`
}
