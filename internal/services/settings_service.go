package services

import (
	"context"
	"errors"
	"fmt"

	"notifyhub/internal/config"
	"notifyhub/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Sources of a resolved configuration value
const (
	SourceUser    = "user"
	SourceGlobal  = "global"
	SourceDefault = "default"
	SourceNone    = "none"
)

// SettingsService resolves configuration in the order tenant column, global
// settings row, process configuration.
type SettingsService struct {
	db  *gorm.DB
	cfg *config.Config
}

// NewSettingsService creates a new settings service
func NewSettingsService(db *gorm.DB, cfg *config.Config) *SettingsService {
	return &SettingsService{db: db, cfg: cfg}
}

// LineCredentials are the effective messaging credentials of a tenant
type LineCredentials struct {
	ChannelSecret      string `json:"-"`
	ChannelAccessToken string `json:"-"`
	SecretSource       string `json:"secret_source"`
	TokenSource        string `json:"token_source"`
}

// Get returns a global setting, empty when absent
func (s *SettingsService) Get(ctx context.Context, key string) (string, error) {
	var setting models.Setting
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", Wrap(err, "failed to read setting")
	}
	return setting.Value, nil
}

// GetAll returns every known global setting, missing ones as empty strings
func (s *SettingsService) GetAll(ctx context.Context) (map[string]string, error) {
	var settings []models.Setting
	if err := s.db.WithContext(ctx).Find(&settings).Error; err != nil {
		return nil, Wrap(err, "failed to read settings")
	}

	out := make(map[string]string, len(models.KnownSettingKeys))
	for _, key := range models.KnownSettingKeys {
		out[key] = ""
	}
	for _, setting := range settings {
		out[setting.Key] = setting.Value
	}
	return out, nil
}

// SetMany upserts global settings. Unknown keys are rejected.
func (s *SettingsService) SetMany(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return ValidationError("no settings provided")
	}
	for key := range values {
		if !isKnownSetting(key) {
			return ValidationError("unknown setting %q", key)
		}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for key, value := range values {
			setting := models.Setting{Key: key, Value: value}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
			}).Create(&setting).Error
			if err != nil {
				return Wrap(err, fmt.Sprintf("failed to save setting %s", key))
			}
		}
		return nil
	})
}

// EnsureDefaults creates an empty row for every known key that is missing
func (s *SettingsService) EnsureDefaults(ctx context.Context) error {
	for _, key := range models.KnownSettingKeys {
		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).Create(&models.Setting{Key: key}).Error
		if err != nil {
			return Wrap(err, fmt.Sprintf("failed to seed setting %s", key))
		}
	}
	return nil
}

// ResolveLineCredentials returns the messaging credentials that apply to user
func (s *SettingsService) ResolveLineCredentials(ctx context.Context, user *models.User) (*LineCredentials, error) {
	secret, secretSource, err := s.resolve(ctx, user.LineChannelSecret, models.SettingLineChannelSecret, s.cfg.LineChannelSecret)
	if err != nil {
		return nil, err
	}
	token, tokenSource, err := s.resolve(ctx, user.LineChannelAccessToken, models.SettingLineChannelAccessToken, s.cfg.LineChannelAccessToken)
	if err != nil {
		return nil, err
	}
	return &LineCredentials{
		ChannelSecret:      secret,
		ChannelAccessToken: token,
		SecretSource:       secretSource,
		TokenSource:        tokenSource,
	}, nil
}

// ResolveInviteCode returns the invite code gating self-registration, empty when none
func (s *SettingsService) ResolveInviteCode(ctx context.Context) (string, error) {
	code, _, err := s.resolve(ctx, "", models.SettingInviteCode, s.cfg.InviteCode)
	return code, err
}

func (s *SettingsService) resolve(ctx context.Context, tenantValue, key, fallback string) (string, string, error) {
	if tenantValue != "" {
		return tenantValue, SourceUser, nil
	}
	global, err := s.Get(ctx, key)
	if err != nil {
		return "", "", err
	}
	if global != "" {
		return global, SourceGlobal, nil
	}
	if fallback != "" {
		return fallback, SourceDefault, nil
	}
	return "", SourceNone, nil
}

// TenantCredentialsInput updates a tenant's own credentials; nil leaves a field untouched
type TenantCredentialsInput struct {
	LineChannelSecret      *string `json:"line_channel_secret"`
	LineChannelAccessToken *string `json:"line_channel_access_token"`
}

// UpdateTenantCredentials stores the messaging credentials of one tenant
func (s *SettingsService) UpdateTenantCredentials(ctx context.Context, userID uint, in TenantCredentialsInput) error {
	updates := make(map[string]interface{})
	if in.LineChannelSecret != nil {
		updates["line_channel_secret"] = *in.LineChannelSecret
	}
	if in.LineChannelAccessToken != nil {
		updates["line_channel_access_token"] = *in.LineChannelAccessToken
	}
	if len(updates) == 0 {
		return ValidationError("no settings provided")
	}

	result := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(updates)
	if result.Error != nil {
		return Wrap(result.Error, "failed to update settings")
	}
	if result.RowsAffected == 0 {
		return NotFoundError("user not found")
	}
	return nil
}

// RotateWebhookKey issues a new webhook key for the tenant
func (s *SettingsService) RotateWebhookKey(ctx context.Context, userID uint) (string, error) {
	key := NewWebhookKey()
	result := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("webhook_key", key)
	if result.Error != nil {
		return "", Wrap(result.Error, "failed to rotate webhook key")
	}
	if result.RowsAffected == 0 {
		return "", NotFoundError("user not found")
	}
	return key, nil
}

// NewWebhookKey returns a fresh random webhook key
func NewWebhookKey() string {
	return uuid.NewString()
}

func isKnownSetting(key string) bool {
	for _, known := range models.KnownSettingKeys {
		if known == key {
			return true
		}
	}
	return false
}

// MaskSecret keeps the last four characters of a secret
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
