package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"notifyhub/internal/metrics"
	"notifyhub/internal/models"
	"notifyhub/pkg/logging"

	"gorm.io/gorm"
)

// fallbackRecipientName is used when no better name for a recipient is known
const fallbackRecipientName = "Customer"

// Recipient addresses one customer, by id or by LINE user id
type Recipient struct {
	CustomerID uint                   `json:"customer_id"`
	LineUID    string                 `json:"line_uid"`
	CustomName string                 `json:"custom_name"`
	Variables  map[string]interface{} `json:"variables"`
}

// SendRequest is a template dispatch to a list of recipients
type SendRequest struct {
	TemplateID uint                   `json:"template_id"`
	Variables  map[string]interface{} `json:"variables"`
	Recipients []Recipient            `json:"recipients"`
}

// SendResult summarizes a dispatch
type SendResult struct {
	Success        bool     `json:"success"`
	Sent           int      `json:"sent"`
	Failed         int      `json:"failed"`
	Errors         []string `json:"errors"`
	QuotaRemaining int64    `json:"quota_remaining"`
}

// NotificationService renders templates and pushes them through LINE
type NotificationService struct {
	db       *gorm.DB
	settings *SettingsService
	stats    *StatsService
	line     *LineClient
	metrics  *metrics.Metrics
}

// NewNotificationService creates a new notification service
func NewNotificationService(db *gorm.DB, settings *SettingsService, stats *StatsService, line *LineClient, m *metrics.Metrics) *NotificationService {
	return &NotificationService{
		db:       db,
		settings: settings,
		stats:    stats,
		line:     line,
		metrics:  m,
	}
}

// Send delivers the rendered template to every recipient, one push each. A
// message row is written for every attempted push.
func (s *NotificationService) Send(ctx context.Context, user *models.User, req SendRequest) (*SendResult, error) {
	if len(req.Recipients) == 0 {
		return nil, ValidationError("at least one recipient is required")
	}

	db := s.db.WithContext(ctx)
	template, err := findTemplate(db, user.ID, req.TemplateID)
	if err != nil {
		return nil, err
	}

	creds, err := s.settings.ResolveLineCredentials(ctx, user)
	if err != nil {
		return nil, err
	}
	if creds.ChannelAccessToken == "" {
		return nil, ValidationError("LINE channel access token is not configured")
	}

	global := stringifyVars(req.Variables)
	result := &SendResult{Errors: []string{}}

	for i, recipient := range req.Recipients {
		customer, err := s.resolveCustomer(db, user.ID, recipient)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("recipient %d: %s", i+1, PublicMessage(err)))
			s.metrics.ObserveNotification(err)
			continue
		}

		name := s.recipientName(db, user.ID, recipient, customer)
		vars := mergeVars(global, stringifyVars(recipient.Variables))
		text := Render(template.Content, name, vars)

		pushErr := s.line.PushText(ctx, creds.ChannelAccessToken, customer.LineUID, text)
		s.metrics.ObserveNotification(pushErr)

		message := &models.Message{
			UserID:      user.ID,
			CustomerID:  customer.ID,
			LineUID:     customer.LineUID,
			Sender:      models.SenderSystem,
			MessageType: "text",
			Content:     text,
			Status:      models.MessageStatusSent,
		}
		if pushErr != nil {
			message.Status = models.MessageStatusFailed
			message.Error = pushErr.Error()
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", name, pushErr.Error()))
			logging.Warnf("Push to %s failed for user %d: %v", customer.LineUID, user.ID, pushErr)
		} else {
			result.Sent++
		}

		if err := db.Create(message).Error; err != nil {
			logging.Errorf("Failed to log message for user %d: %v", user.ID, err)
		}
	}

	result.Success = result.Sent > 0
	if remaining, err := s.stats.Remaining(ctx, user); err == nil {
		result.QuotaRemaining = remaining
	} else {
		logging.Warnf("Failed to compute remaining quota for user %d: %v", user.ID, err)
	}

	logging.Infof("Notification dispatch for user %d: template=%d sent=%d failed=%d",
		user.ID, template.ID, result.Sent, result.Failed)
	return result, nil
}

func (s *NotificationService) resolveCustomer(db *gorm.DB, userID uint, recipient Recipient) (*models.Customer, error) {
	if recipient.CustomerID != 0 {
		return findCustomer(db, userID, recipient.CustomerID)
	}

	lineUID := strings.TrimSpace(recipient.LineUID)
	if lineUID == "" {
		return nil, ValidationError("recipient requires customer_id or line_uid")
	}

	var customer *models.Customer
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		customer, _, err = findOrCreateCustomer(tx, userID, lineUID, strings.TrimSpace(recipient.CustomName))
		return err
	})
	if err != nil {
		return nil, Wrap(err, "failed to resolve recipient")
	}
	return customer, nil
}

// recipientName picks the explicit name, then the customer alias, then the
// cached LINE display name.
func (s *NotificationService) recipientName(db *gorm.DB, userID uint, recipient Recipient, customer *models.Customer) string {
	if name := strings.TrimSpace(recipient.CustomName); name != "" {
		return name
	}
	if customer.CustomName != "" {
		return customer.CustomName
	}

	var lineUser models.LineUser
	err := db.Where("user_id = ? AND line_uid = ?", userID, customer.LineUID).First(&lineUser).Error
	if err == nil && lineUser.DisplayName != "" {
		return lineUser.DisplayName
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		logging.Warnf("Failed to load line user %s: %v", customer.LineUID, err)
	}
	return fallbackRecipientName
}

// mergeVars overlays override on base into a new map
func mergeVars(base, override map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}
