package services

import (
	"context"
	"testing"
	"time"

	"notifyhub/internal/config"
	"notifyhub/internal/database"
	"notifyhub/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testPassword = "secret123"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLiteMemory(t.Name())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Mode:                "test",
		AccessTokenTTL:      2 * time.Hour,
		RefreshTokenTTL:     7 * 24 * time.Hour,
		LoginRateLimit:      5,
		LoginRateWindow:     time.Minute,
		AdminUsername:       "admin",
		AdminPassword:       "admin",
		LineAPITimeout:      5 * time.Second,
		WebhookDedupEnabled: true,
		DefaultMessageQuota: 100,
	}
}

func createTestUser(t *testing.T, db *gorm.DB, username, role string) *models.User {
	t.Helper()
	hashed, err := HashPassword(testPassword)
	require.NoError(t, err)

	user := &models.User{
		Username:     username,
		Password:     hashed,
		Role:         role,
		MessageQuota: 100,
		IsActive:     true,
	}
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return createAccount(tx, user)
	}))
	return user
}

func createTestCustomer(t *testing.T, db *gorm.DB, userID uint, lineUID, name string) *models.Customer {
	t.Helper()
	customer := &models.Customer{UserID: userID, LineUID: lineUID, CustomName: name}
	require.NoError(t, db.Create(customer).Error)
	return customer
}

func strPtr(s string) *string { return &s }

func testCtx() context.Context { return context.Background() }
