package services

import (
	"context"
	"errors"
	"time"

	"notifyhub/internal/config"
	"notifyhub/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthService issues and validates opaque session tokens
type AuthService struct {
	db  *gorm.DB
	cfg *config.Config
}

// NewAuthService creates a new auth service
func NewAuthService(db *gorm.DB, cfg *config.Config) *AuthService {
	return &AuthService{db: db, cfg: cfg}
}

// Session is the result of a login or refresh
type Session struct {
	User             *models.User
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// HashPassword hashes a plaintext password with bcrypt
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", Wrap(err, "failed to hash password")
	}
	return string(hashed), nil
}

// CheckPassword compares a bcrypt hash with a plaintext password
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Login validates credentials and issues a fresh access and refresh token
func (s *AuthService) Login(ctx context.Context, username, password string) (*Session, error) {
	if username == "" || password == "" {
		return nil, UnauthorizedError("username and password are required")
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, UnauthorizedError("invalid username or password")
		}
		return nil, Wrap(err, "failed to load user")
	}
	if !CheckPassword(user.Password, password) {
		return nil, UnauthorizedError("invalid username or password")
	}
	if !user.IsActive {
		return nil, UnauthorizedError("account disabled")
	}

	session := &Session{User: &user}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		access, err := s.issueAccessToken(tx, user.ID)
		if err != nil {
			return err
		}
		refresh, expiresAt, err := s.issueRefreshToken(tx, user.ID)
		if err != nil {
			return err
		}
		session.AccessToken = access
		session.RefreshToken = refresh
		session.RefreshExpiresAt = expiresAt
		return nil
	})
	if err != nil {
		return nil, Wrap(err, "failed to create session")
	}
	return session, nil
}

// Logout deletes the presented tokens. Either may be empty.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	db := s.db.WithContext(ctx)
	if accessToken != "" {
		if err := db.Where("token_hash = ?", HashToken(accessToken)).Delete(&models.UserToken{}).Error; err != nil {
			return Wrap(err, "failed to delete access token")
		}
	}
	if refreshToken != "" {
		if err := db.Where("token_hash = ?", HashToken(refreshToken)).Delete(&models.RefreshToken{}).Error; err != nil {
			return Wrap(err, "failed to delete refresh token")
		}
	}
	return nil
}

// Refresh exchanges a valid refresh token for a new access token. All previous
// access tokens of the user are revoked.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, UnauthorizedError("refresh token missing")
	}

	var stored models.RefreshToken
	err := s.db.WithContext(ctx).Where("token_hash = ?", HashToken(refreshToken)).First(&stored).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, UnauthorizedError("invalid refresh token")
		}
		return nil, Wrap(err, "failed to load refresh token")
	}
	if !stored.ExpiresAt.After(time.Now()) {
		s.db.WithContext(ctx).Delete(&stored)
		return nil, UnauthorizedError("refresh token expired")
	}

	user, err := s.loadActiveUser(ctx, stored.UserID)
	if err != nil {
		return nil, err
	}

	session := &Session{User: user, RefreshToken: refreshToken, RefreshExpiresAt: stored.ExpiresAt}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.UserToken{}).Error; err != nil {
			return err
		}
		access, err := s.issueAccessToken(tx, user.ID)
		if err != nil {
			return err
		}
		session.AccessToken = access
		return nil
	})
	if err != nil {
		return nil, Wrap(err, "failed to refresh session")
	}
	return session, nil
}

// Authenticate resolves the user owning an access token
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	if accessToken == "" {
		return nil, UnauthorizedError("authentication required")
	}

	var token models.UserToken
	err := s.db.WithContext(ctx).Where("token_hash = ?", HashToken(accessToken)).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, UnauthorizedError("invalid or expired token")
		}
		return nil, Wrap(err, "failed to load token")
	}
	if s.cfg.AccessTokenTTL > 0 && time.Since(token.CreatedAt) > s.cfg.AccessTokenTTL {
		s.db.WithContext(ctx).Delete(&token)
		return nil, UnauthorizedError("invalid or expired token")
	}

	user, err := s.loadActiveUser(ctx, token.UserID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	s.db.WithContext(ctx).Model(&token).UpdateColumn("last_used_at", &now)
	return user, nil
}

// ChangePassword replaces the password of user after checking the old one
func (s *AuthService) ChangePassword(ctx context.Context, user *models.User, oldPassword, newPassword string) error {
	if !CheckPassword(user.Password, oldPassword) {
		return ValidationError("current password is incorrect")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	hashed, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("password", hashed).Error; err != nil {
		return Wrap(err, "failed to update password")
	}
	return nil
}

func (s *AuthService) loadActiveUser(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, UnauthorizedError("user no longer exists")
		}
		return nil, Wrap(err, "failed to load user")
	}
	if !user.IsActive {
		return nil, UnauthorizedError("account disabled")
	}
	return &user, nil
}

func (s *AuthService) issueAccessToken(tx *gorm.DB, userID uint) (string, error) {
	token, err := GenerateToken()
	if err != nil {
		return "", err
	}
	if err := tx.Create(&models.UserToken{UserID: userID, TokenHash: HashToken(token)}).Error; err != nil {
		return "", err
	}
	return token, nil
}

func (s *AuthService) issueRefreshToken(tx *gorm.DB, userID uint) (string, time.Time, error) {
	token, err := GenerateToken()
	if err != nil {
		return "", time.Time{}, err
	}
	expiresAt := time.Now().UTC().Add(s.cfg.RefreshTokenTTL)

	// Expired refresh tokens of this user are dropped while we are here
	if err := tx.Where("user_id = ? AND expires_at <= ?", userID, time.Now().UTC()).Delete(&models.RefreshToken{}).Error; err != nil {
		return "", time.Time{}, err
	}
	if err := tx.Create(&models.RefreshToken{UserID: userID, TokenHash: HashToken(token), ExpiresAt: expiresAt}).Error; err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}
