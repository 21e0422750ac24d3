package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"notifyhub/internal/config"
	"notifyhub/internal/models"
	"notifyhub/pkg/logging"

	"gorm.io/gorm"
)

const mailTimeout = 10 * time.Second

// ApplicationService handles self-registration requests and their review
type ApplicationService struct {
	db       *gorm.DB
	cfg      *config.Config
	settings *SettingsService
	mailer   Mailer
}

// NewApplicationService creates a new application service
func NewApplicationService(db *gorm.DB, cfg *config.Config, settings *SettingsService, mailer Mailer) *ApplicationService {
	return &ApplicationService{db: db, cfg: cfg, settings: settings, mailer: mailer}
}

// ApplicationInput is the public registration form
type ApplicationInput struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Reason      string `json:"reason"`
	InviteCode  string `json:"invite_code"`
}

// Submit stores a pending application
func (s *ApplicationService) Submit(ctx context.Context, in ApplicationInput) (*models.UserApplication, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := validateUsername(in.Username); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	if err := validateEmail(in.Email); err != nil {
		return nil, err
	}

	code, err := s.settings.ResolveInviteCode(ctx)
	if err != nil {
		return nil, err
	}
	if code != "" && subtle.ConstantTimeCompare([]byte(code), []byte(strings.TrimSpace(in.InviteCode))) != 1 {
		return nil, ForbiddenError("invalid invite code")
	}

	hashed, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	application := &models.UserApplication{
		Username:    in.Username,
		Password:    hashed,
		DisplayName: strings.TrimSpace(in.DisplayName),
		Email:       in.Email,
		Reason:      strings.TrimSpace(in.Reason),
		Status:      models.ApplicationPending,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var users, pending int64
		if err := tx.Model(&models.User{}).Where("username = ?", in.Username).Count(&users).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.UserApplication{}).
			Where("username = ? AND status = ?", in.Username, models.ApplicationPending).
			Count(&pending).Error; err != nil {
			return err
		}
		if users > 0 || pending > 0 {
			return ConflictError("username %s is already taken", in.Username)
		}
		return tx.Create(application).Error
	})
	if err != nil {
		return nil, Wrap(err, "failed to submit application")
	}

	logging.Infof("Application %d submitted for username %s", application.ID, application.Username)
	return application, nil
}

// List returns applications newest first, optionally filtered by status
func (s *ApplicationService) List(ctx context.Context, status string) ([]models.UserApplication, error) {
	query := s.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if status != "" {
		switch status {
		case models.ApplicationPending, models.ApplicationApproved, models.ApplicationRejected:
			query = query.Where("status = ?", status)
		default:
			return nil, ValidationError("unknown status %q", status)
		}
	}

	applications := []models.UserApplication{}
	if err := query.Find(&applications).Error; err != nil {
		return nil, Wrap(err, "failed to list applications")
	}
	return applications, nil
}

// Approve moves a pending application to approved and creates its account
// and default template in the same transaction.
func (s *ApplicationService) Approve(ctx context.Context, reviewer *models.User, id uint) (*models.UserApplication, error) {
	var application models.UserApplication
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadPendingApplication(tx, id, &application); err != nil {
			return err
		}

		user := &models.User{
			Username:     application.Username,
			Password:     application.Password,
			Role:         models.RoleUser,
			DisplayName:  application.DisplayName,
			Email:        application.Email,
			MessageQuota: s.cfg.DefaultMessageQuota,
			IsActive:     true,
		}
		if err := createAccount(tx, user); err != nil {
			return err
		}

		now := time.Now().UTC()
		reviewerID := reviewer.ID
		return transition(tx, &application, map[string]interface{}{
			"status":      models.ApplicationApproved,
			"reviewed_by": &reviewerID,
			"reviewed_at": &now,
			"user_id":     &user.ID,
		})
	})
	if err != nil {
		return nil, Wrap(err, "failed to approve application")
	}

	logging.Infof("Application %d approved by %s", application.ID, reviewer.Username)
	s.notifyApplicant(ctx, &application, true)
	return &application, nil
}

// Reject moves a pending application to rejected
func (s *ApplicationService) Reject(ctx context.Context, reviewer *models.User, id uint, reason string) (*models.UserApplication, error) {
	var application models.UserApplication
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadPendingApplication(tx, id, &application); err != nil {
			return err
		}

		now := time.Now().UTC()
		reviewerID := reviewer.ID
		return transition(tx, &application, map[string]interface{}{
			"status":        models.ApplicationRejected,
			"reject_reason": strings.TrimSpace(reason),
			"reviewed_by":   &reviewerID,
			"reviewed_at":   &now,
		})
	})
	if err != nil {
		return nil, Wrap(err, "failed to reject application")
	}

	logging.Infof("Application %d rejected by %s", application.ID, reviewer.Username)
	s.notifyApplicant(ctx, &application, false)
	return &application, nil
}

func loadPendingApplication(tx *gorm.DB, id uint, application *models.UserApplication) error {
	err := tx.First(application, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NotFoundError("application not found")
		}
		return err
	}
	if application.Status != models.ApplicationPending {
		return ValidationError("application is already %s", application.Status)
	}
	return nil
}

// transition applies updates only while the row is still pending, so two
// concurrent reviews cannot both succeed.
func transition(tx *gorm.DB, application *models.UserApplication, updates map[string]interface{}) error {
	result := tx.Model(&models.UserApplication{}).
		Where("id = ? AND status = ?", application.ID, models.ApplicationPending).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ValidationError("application is no longer pending")
	}
	return tx.First(application, application.ID).Error
}

func (s *ApplicationService) notifyApplicant(ctx context.Context, application *models.UserApplication, approved bool) {
	if application.Email == "" || s.mailer == nil {
		return
	}
	subject, htmlContent, textContent := applicationEmail(approved, application.Username, application.RejectReason)

	mailCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mailTimeout)
	defer cancel()
	if err := s.mailer.Send(mailCtx, application.Email, application.DisplayName, subject, htmlContent, textContent); err != nil {
		logging.Errorf("Failed to email applicant %s: %v", application.Username, err)
	}
}
