package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"notifyhub/internal/config"
	"notifyhub/internal/metrics"
	"notifyhub/internal/models"
	"notifyhub/pkg/logging"

	"gorm.io/gorm"
)

// WebhookEnvelope is the body LINE posts to the webhook endpoint
type WebhookEnvelope struct {
	Destination string         `json:"destination"`
	Events      []WebhookEvent `json:"events"`
}

// WebhookEvent is the subset of a LINE webhook event we process
type WebhookEvent struct {
	Type            string         `json:"type"`
	WebhookEventID  string         `json:"webhookEventId"`
	Timestamp       int64          `json:"timestamp"`
	Source          EventSource    `json:"source"`
	Message         *EventMessage  `json:"message,omitempty"`
	DeliveryContext *EventDelivery `json:"deliveryContext,omitempty"`
}

type EventSource struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type EventMessage struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text"`
}

type EventDelivery struct {
	IsRedelivery bool `json:"isRedelivery"`
}

// WebhookService ingests LINE webhook calls for a tenant
type WebhookService struct {
	db       *gorm.DB
	cfg      *config.Config
	settings *SettingsService
	line     *LineClient
	dedup    EventDeduper
	metrics  *metrics.Metrics
}

// NewWebhookService creates a new webhook service. dedup may be nil.
func NewWebhookService(db *gorm.DB, cfg *config.Config, settings *SettingsService, line *LineClient, dedup EventDeduper, m *metrics.Metrics) *WebhookService {
	return &WebhookService{
		db:       db,
		cfg:      cfg,
		settings: settings,
		line:     line,
		dedup:    dedup,
		metrics:  m,
	}
}

// Handle authenticates and processes one webhook call addressed by webhookKey.
// It returns the number of processed events.
func (s *WebhookService) Handle(ctx context.Context, webhookKey string, body []byte, signature string) (int, error) {
	tenant, err := s.findTenant(ctx, webhookKey)
	if err != nil {
		return 0, err
	}
	if !tenant.IsActive {
		return 0, ForbiddenError("account disabled")
	}

	creds, err := s.settings.ResolveLineCredentials(ctx, tenant)
	if err != nil {
		return 0, err
	}
	if err := s.checkSignature(tenant, creds.ChannelSecret, body, signature); err != nil {
		return 0, err
	}

	var envelope WebhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return 0, ValidationError("invalid webhook payload")
	}

	processed := 0
	for _, event := range envelope.Events {
		ok, err := s.handleEvent(ctx, tenant, creds.ChannelAccessToken, event)
		if err != nil {
			return processed, err
		}
		if ok {
			processed++
		}
	}
	return processed, nil
}

func (s *WebhookService) findTenant(ctx context.Context, key string) (*models.User, error) {
	if key == "" {
		return nil, NotFoundError("webhook key missing")
	}
	var tenant models.User
	err := s.db.WithContext(ctx).Where("webhook_key = ?", key).First(&tenant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError("unknown webhook key")
		}
		return nil, Wrap(err, "failed to load tenant")
	}
	return &tenant, nil
}

func (s *WebhookService) checkSignature(tenant *models.User, secret string, body []byte, signature string) error {
	if secret == "" || signature == "" {
		if s.cfg.WebhookRequireSignature {
			return UnauthorizedError("signature verification unavailable")
		}
		logging.Warnf("Webhook signature check skipped for user %d (secret set: %t, header set: %t)",
			tenant.ID, secret != "", signature != "")
		return nil
	}
	if !VerifyLineSignature(secret, body, signature) {
		return UnauthorizedError("invalid signature")
	}
	return nil
}

// handleEvent reports whether event was processed
func (s *WebhookService) handleEvent(ctx context.Context, tenant *models.User, accessToken string, event WebhookEvent) (bool, error) {
	lineUID := event.Source.UserID
	if lineUID == "" {
		return false, nil
	}

	claimed := false
	if s.dedup != nil && s.cfg.WebhookDedupEnabled && event.WebhookEventID != "" {
		seen, err := s.dedup.Seen(ctx, event.WebhookEventID)
		if err != nil {
			logging.Warnf("Webhook dedup lookup failed, processing event %s: %v", event.WebhookEventID, err)
		} else if seen {
			logging.Debugf("Skipping redelivered webhook event %s", event.WebhookEventID)
			return false, nil
		} else {
			claimed = true
		}
	}
	s.metrics.ObserveWebhookEvent(event.Type)

	eventAt := time.Now().UTC()
	if event.Timestamp > 0 {
		eventAt = time.UnixMilli(event.Timestamp).UTC()
	}

	if event.Type == "unfollow" {
		err := s.db.WithContext(ctx).Model(&models.LineUser{}).
			Where("user_id = ? AND line_uid = ?", tenant.ID, lineUID).
			Update("last_event_at", eventAt).Error
		if err != nil {
			s.release(ctx, claimed, event.WebhookEventID)
			return false, Wrap(err, "failed to update line user")
		}
		return true, nil
	}

	// Profile lookup happens outside the transaction
	profile := s.fetchProfile(ctx, accessToken, lineUID)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lineUser, err := upsertLineUser(tx, tenant.ID, lineUID, profile, eventAt)
		if err != nil {
			return err
		}
		customer, created, err := findOrCreateCustomer(tx, tenant.ID, lineUID, lineUser.DisplayName)
		if err != nil {
			return err
		}
		if !created && customer.CustomName == "" && lineUser.DisplayName != "" {
			if err := tx.Model(customer).Update("custom_name", lineUser.DisplayName).Error; err != nil {
				return err
			}
		}

		if event.Type == "message" && event.Message != nil && event.Message.Type == "text" {
			return tx.Create(&models.Message{
				UserID:      tenant.ID,
				CustomerID:  customer.ID,
				LineUID:     lineUID,
				Sender:      models.SenderUser,
				MessageType: event.Message.Type,
				Content:     event.Message.Text,
				Status:      models.MessageStatusReceived,
			}).Error
		}
		return nil
	})
	if err != nil {
		s.release(ctx, claimed, event.WebhookEventID)
		return false, Wrap(err, "failed to store webhook event")
	}
	return true, nil
}

// release forgets a claimed event id after its processing failed
func (s *WebhookService) release(ctx context.Context, claimed bool, id string) {
	if !claimed {
		return
	}
	if err := s.dedup.Forget(context.WithoutCancel(ctx), id); err != nil {
		logging.Errorf("Failed to release webhook event %s, its redelivery will be skipped: %v", id, err)
	}
}

func (s *WebhookService) fetchProfile(ctx context.Context, accessToken, lineUID string) *LineProfile {
	if accessToken == "" {
		return nil
	}
	profile, err := s.line.GetProfile(ctx, accessToken, lineUID)
	if err != nil {
		logging.Warnf("Failed to fetch LINE profile of %s: %v", lineUID, err)
		return nil
	}
	return profile
}

// upsertLineUser creates the line user of (userID, lineUID) or refreshes it from profile
func upsertLineUser(tx *gorm.DB, userID uint, lineUID string, profile *LineProfile, eventAt time.Time) (*models.LineUser, error) {
	var lineUser models.LineUser
	err := tx.Where("user_id = ? AND line_uid = ?", userID, lineUID).First(&lineUser).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		lineUser = models.LineUser{UserID: userID, LineUID: lineUID, LastEventAt: &eventAt}
		if profile != nil {
			lineUser.DisplayName = profile.DisplayName
			lineUser.PictureURL = profile.PictureURL
			lineUser.StatusMessage = profile.StatusMessage
		}
		if err := tx.Create(&lineUser).Error; err != nil {
			return nil, err
		}
		return &lineUser, nil
	}

	updates := map[string]interface{}{"last_event_at": eventAt}
	if profile != nil {
		updates["display_name"] = profile.DisplayName
		updates["picture_url"] = profile.PictureURL
		updates["status_message"] = profile.StatusMessage
	}
	if err := tx.Model(&lineUser).Updates(updates).Error; err != nil {
		return nil, err
	}
	lineUser.LastEventAt = &eventAt
	if profile != nil {
		lineUser.DisplayName = profile.DisplayName
		lineUser.PictureURL = profile.PictureURL
		lineUser.StatusMessage = profile.StatusMessage
	}
	return &lineUser, nil
}
