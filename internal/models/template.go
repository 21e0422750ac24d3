package models

import "gorm.io/datatypes"

// Template is a named message body with {{placeholder}} tokens. Variables maps a
// placeholder to the spreadsheet column that fills it by default.
type Template struct {
	BaseModel
	UserID    uint              `json:"user_id" gorm:"not null;index"`
	Name      string            `json:"name" gorm:"size:100;not null"`
	Content   string            `json:"content" gorm:"type:text;not null"`
	Variables datatypes.JSONMap `json:"variables"`
}

// DefaultTemplateName and DefaultTemplateContent seed every new account.
const (
	DefaultTemplateName    = "Default notification"
	DefaultTemplateContent = "Hello {{name}}, this is a notification from us."
)
