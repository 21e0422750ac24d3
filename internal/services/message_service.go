package services

import (
	"context"

	"notifyhub/internal/models"

	"gorm.io/gorm"
)

// MessageService reads the message log of a tenant
type MessageService struct {
	db *gorm.DB
}

// NewMessageService creates a new message service
func NewMessageService(db *gorm.DB) *MessageService {
	return &MessageService{db: db}
}

// MessagePage is one page of message history
type MessagePage struct {
	Messages []models.Message `json:"messages"`
	Total    int64            `json:"total"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

// List returns messages of userID newest first. customerID 0 means all customers.
func (s *MessageService) List(ctx context.Context, userID, customerID uint, limit, offset int) (*MessagePage, error) {
	limit, offset = clampPage(limit, offset)
	db := s.db.WithContext(ctx)

	if customerID != 0 {
		if _, err := findCustomer(db, userID, customerID); err != nil {
			return nil, err
		}
	}

	query := db.Model(&models.Message{}).Where("user_id = ?", userID)
	if customerID != 0 {
		query = query.Where("customer_id = ?", customerID)
	}

	page := &MessagePage{Messages: []models.Message{}, Limit: limit, Offset: offset}
	if err := query.Count(&page.Total).Error; err != nil {
		return nil, Wrap(err, "failed to count messages")
	}
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&page.Messages).Error; err != nil {
		return nil, Wrap(err, "failed to list messages")
	}
	return page, nil
}
