package models

import (
	"time"
)

// BaseModel provides common fields for all database models
type BaseModel struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// All lists every model managed by the migration, parents first.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Setting{},
		&UserToken{},
		&RefreshToken{},
		&Customer{},
		&LineUser{},
		&Template{},
		&Message{},
		&UserApplication{},
		&ActivityLog{},
	}
}

// Setting is a process-wide key/value pair. It predates per-user credentials and is
// consulted as the global step of the configuration chain.
type Setting struct {
	BaseModel
	Key   string `json:"key" gorm:"uniqueIndex;size:100;not null"`
	Value string `json:"value" gorm:"type:text"`
}

// Well-known setting keys
const (
	SettingLineChannelSecret      = "line_channel_secret"
	SettingLineChannelAccessToken = "line_channel_access_token"
	SettingInviteCode             = "invite_code"
)

// KnownSettingKeys are the keys accepted by the global settings endpoint.
var KnownSettingKeys = []string{
	SettingLineChannelSecret,
	SettingLineChannelAccessToken,
	SettingInviteCode,
}
