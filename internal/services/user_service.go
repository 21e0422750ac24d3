package services

import (
	"context"
	"errors"
	"strings"

	"notifyhub/internal/config"
	"notifyhub/internal/models"
	"notifyhub/pkg/logging"

	"gorm.io/gorm"
)

// UserService manages tenant accounts
type UserService struct {
	db  *gorm.DB
	cfg *config.Config
}

// NewUserService creates a new user service
func NewUserService(db *gorm.DB, cfg *config.Config) *UserService {
	return &UserService{db: db, cfg: cfg}
}

// CreateUserInput is the payload of an account creation
type CreateUserInput struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	Role           string `json:"role"`
	DisplayName    string `json:"display_name"`
	Email          string `json:"email"`
	MessageQuota   *int   `json:"message_quota"`
	CanCreateUsers bool   `json:"can_create_users"`
}

// UpdateUserInput is a partial update, nil fields are left alone
type UpdateUserInput struct {
	Password       *string `json:"password"`
	Role           *string `json:"role"`
	DisplayName    *string `json:"display_name"`
	Email          *string `json:"email"`
	MessageQuota   *int    `json:"message_quota"`
	IsActive       *bool   `json:"is_active"`
	CanCreateUsers *bool   `json:"can_create_users"`
}

// Create creates an account together with its default template
func (s *UserService) Create(ctx context.Context, actor *models.User, in CreateUserInput) (*models.User, error) {
	if !actor.CanManageUsers() {
		return nil, ForbiddenError("not allowed to create users")
	}

	in.Username = strings.TrimSpace(in.Username)
	if in.Role == "" {
		in.Role = models.RoleUser
	}
	if err := validateUsername(in.Username); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	if err := validateRole(in.Role); err != nil {
		return nil, err
	}
	if err := validateEmail(in.Email); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && (in.Role != models.RoleUser || in.CanCreateUsers) {
		return nil, ForbiddenError("only admins can grant admin or user management rights")
	}

	quota := s.cfg.DefaultMessageQuota
	if in.MessageQuota != nil {
		if *in.MessageQuota < 0 {
			return nil, ValidationError("message_quota must not be negative")
		}
		quota = *in.MessageQuota
	}

	hashed, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	creator := actor.ID
	user := &models.User{
		Username:       in.Username,
		Password:       hashed,
		Role:           in.Role,
		DisplayName:    in.DisplayName,
		Email:          in.Email,
		MessageQuota:   quota,
		IsActive:       true,
		CanCreateUsers: in.CanCreateUsers,
		CreatedBy:      &creator,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return createAccount(tx, user)
	})
	if err != nil {
		return nil, err
	}

	logging.Infof("User %s created by %s", user.Username, actor.Username)
	return user, nil
}

// createAccount inserts user and its default template using tx
func createAccount(tx *gorm.DB, user *models.User) error {
	var count int64
	if err := tx.Model(&models.User{}).Where("username = ?", user.Username).Count(&count).Error; err != nil {
		return Wrap(err, "failed to check username")
	}
	if count > 0 {
		return ConflictError("username %s already exists", user.Username)
	}

	if user.WebhookKey == "" {
		user.WebhookKey = NewWebhookKey()
	}
	if err := tx.Create(user).Error; err != nil {
		return Wrap(err, "failed to create user")
	}

	template := &models.Template{
		UserID:  user.ID,
		Name:    models.DefaultTemplateName,
		Content: models.DefaultTemplateContent,
	}
	if err := tx.Create(template).Error; err != nil {
		return Wrap(err, "failed to create default template")
	}
	return nil
}

// List returns every user for admins, otherwise the users created by actor
func (s *UserService) List(ctx context.Context, actor *models.User) ([]models.User, error) {
	if !actor.CanManageUsers() {
		return nil, ForbiddenError("not allowed to list users")
	}

	query := s.db.WithContext(ctx).Order("id ASC")
	if !actor.IsAdmin() {
		query = query.Where("created_by = ?", actor.ID)
	}

	var users []models.User
	if err := query.Find(&users).Error; err != nil {
		return nil, Wrap(err, "failed to list users")
	}
	return users, nil
}

// Get returns a user visible to actor
func (s *UserService) Get(ctx context.Context, actor *models.User, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError("user not found")
		}
		return nil, Wrap(err, "failed to load user")
	}
	if !canSee(actor, &user) {
		return nil, NotFoundError("user not found")
	}
	return &user, nil
}

// Update applies a partial update
func (s *UserService) Update(ctx context.Context, actor *models.User, id uint, in UpdateUserInput) (*models.User, error) {
	user, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	self := user.ID == actor.ID

	updates := map[string]interface{}{}
	if in.Password != nil {
		if err := validatePassword(*in.Password); err != nil {
			return nil, err
		}
		hashed, err := HashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		updates["password"] = hashed
	}
	if in.Role != nil {
		if err := validateRole(*in.Role); err != nil {
			return nil, err
		}
		if !actor.IsAdmin() && *in.Role != models.RoleUser {
			return nil, ForbiddenError("only admins can grant the admin role")
		}
		if self && *in.Role != user.Role {
			return nil, ValidationError("cannot change your own role")
		}
		updates["role"] = *in.Role
	}
	if in.DisplayName != nil {
		updates["display_name"] = *in.DisplayName
	}
	if in.Email != nil {
		if err := validateEmail(*in.Email); err != nil {
			return nil, err
		}
		updates["email"] = *in.Email
	}
	if in.MessageQuota != nil {
		if *in.MessageQuota < 0 {
			return nil, ValidationError("message_quota must not be negative")
		}
		if self && !actor.IsAdmin() {
			return nil, ForbiddenError("only admins can change their own message quota")
		}
		updates["message_quota"] = *in.MessageQuota
	}
	if in.IsActive != nil {
		if self && !*in.IsActive {
			return nil, ValidationError("cannot disable your own account")
		}
		updates["is_active"] = *in.IsActive
	}
	if in.CanCreateUsers != nil {
		if !actor.IsAdmin() {
			return nil, ForbiddenError("only admins can grant user management rights")
		}
		updates["can_create_users"] = *in.CanCreateUsers
	}

	if len(updates) == 0 {
		return user, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(user).Updates(updates).Error; err != nil {
			return err
		}
		// A disabled account or a password reset ends every session
		if _, ok := updates["password"]; ok || (in.IsActive != nil && !*in.IsActive) {
			if err := deleteSessions(tx, user.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, Wrap(err, "failed to update user")
	}

	return s.Get(ctx, actor, id)
}

// Delete removes a user and every row it owns
func (s *UserService) Delete(ctx context.Context, actor *models.User, id uint) error {
	user, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if user.ID == actor.ID {
		return ValidationError("cannot delete your own account")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owned := []interface{}{
			&models.Message{},
			&models.Customer{},
			&models.LineUser{},
			&models.Template{},
		}
		for _, model := range owned {
			if err := tx.Where("user_id = ?", user.ID).Delete(model).Error; err != nil {
				return err
			}
		}
		if err := deleteSessions(tx, user.ID); err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("created_by = ?", user.ID).Update("created_by", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.UserApplication{}).Where("user_id = ?", user.ID).Update("user_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(user).Error
	})
	if err != nil {
		return Wrap(err, "failed to delete user")
	}

	logging.Infof("User %s deleted by %s", user.Username, actor.Username)
	return nil
}

// FindByWebhookKey resolves the tenant addressed by a webhook call
func (s *UserService) FindByWebhookKey(ctx context.Context, key string) (*models.User, error) {
	if key == "" {
		return nil, NotFoundError("webhook key missing")
	}
	var user models.User
	err := s.db.WithContext(ctx).Where("webhook_key = ?", key).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError("unknown webhook key")
		}
		return nil, Wrap(err, "failed to load user")
	}
	return &user, nil
}

// EnsureAdmin seeds the admin account when no admin exists yet
func (s *UserService) EnsureAdmin(ctx context.Context) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
		return Wrap(err, "failed to count admins")
	}
	if count > 0 {
		return nil
	}

	hashed, err := HashPassword(s.cfg.AdminPassword)
	if err != nil {
		return err
	}
	admin := &models.User{
		Username:       s.cfg.AdminUsername,
		Password:       hashed,
		Role:           models.RoleAdmin,
		DisplayName:    "Administrator",
		MessageQuota:   s.cfg.DefaultMessageQuota,
		IsActive:       true,
		CanCreateUsers: true,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return createAccount(tx, admin)
	})
	if err != nil {
		return err
	}

	logging.Warnf("Seeded admin account %q, change its password", admin.Username)
	return nil
}

func canSee(actor, user *models.User) bool {
	if actor.IsAdmin() || actor.ID == user.ID {
		return true
	}
	return actor.CanCreateUsers && user.CreatedBy != nil && *user.CreatedBy == actor.ID
}

func deleteSessions(tx *gorm.DB, userID uint) error {
	if err := tx.Where("user_id = ?", userID).Delete(&models.UserToken{}).Error; err != nil {
		return err
	}
	return tx.Where("user_id = ?", userID).Delete(&models.RefreshToken{}).Error
}
