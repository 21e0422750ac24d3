package services

import (
	"context"
	"encoding/json"
	"strings"

	"notifyhub/internal/models"

	"gorm.io/gorm"
)

const redactedValue = "***"

// sensitiveFields are replaced before a request body is stored
var sensitiveFields = map[string]bool{
	"password":                  true,
	"old_password":              true,
	"new_password":              true,
	"token":                     true,
	"access_token":              true,
	"refresh_token":             true,
	"line_channel_secret":       true,
	"line_channel_access_token": true,
	"invite_code":               true,
}

// ActivityLogService records and lists the audit trail
type ActivityLogService struct {
	db *gorm.DB
}

// NewActivityLogService creates a new activity log service
func NewActivityLogService(db *gorm.DB) *ActivityLogService {
	return &ActivityLogService{db: db}
}

// ActivityLogFilter narrows a listing, zero values match everything
type ActivityLogFilter struct {
	UserID uint
	Method string
	Path   string
	Limit  int
	Offset int
}

// ActivityLogPage is one page of the audit trail
type ActivityLogPage struct {
	Logs   []models.ActivityLog `json:"logs"`
	Total  int64                `json:"total"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

// Record stores one entry
func (s *ActivityLogService) Record(ctx context.Context, entry *models.ActivityLog) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return Wrap(err, "failed to record activity")
	}
	return nil
}

// List returns entries newest first
func (s *ActivityLogService) List(ctx context.Context, filter ActivityLogFilter) (*ActivityLogPage, error) {
	limit, offset := clampPage(filter.Limit, filter.Offset)

	query := s.db.WithContext(ctx).Model(&models.ActivityLog{})
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Method != "" {
		query = query.Where("method = ?", strings.ToUpper(filter.Method))
	}
	if filter.Path != "" {
		query = query.Where(`path LIKE ? ESCAPE '\'`, escapeLike(filter.Path)+"%")
	}

	page := &ActivityLogPage{Logs: []models.ActivityLog{}, Limit: limit, Offset: offset}
	if err := query.Count(&page.Total).Error; err != nil {
		return nil, Wrap(err, "failed to count activity logs")
	}
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&page.Logs).Error; err != nil {
		return nil, Wrap(err, "failed to list activity logs")
	}
	return page, nil
}

// RedactJSON masks sensitive fields at any depth. Bodies that are not JSON
// are returned as they are.
func RedactJSON(body []byte) string {
	var value interface{}
	if err := json.Unmarshal(body, &value); err != nil {
		return string(body)
	}
	redacted, err := json.Marshal(redactValue(value))
	if err != nil {
		return string(body)
	}
	return string(redacted)
}

func redactValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		for key, inner := range v {
			if sensitiveFields[strings.ToLower(key)] {
				v[key] = redactedValue
				continue
			}
			v[key] = redactValue(inner)
		}
		return v
	case []interface{}:
		for i, inner := range v {
			v[i] = redactValue(inner)
		}
		return v
	default:
		return v
	}
}
