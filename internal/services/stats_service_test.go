package services

import (
	"testing"
	"time"

	"notifyhub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthStart(t *testing.T) {
	got := MonthStart(time.Date(2024, time.March, 17, 23, 59, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), got)

	taipei := time.FixedZone("UTC+8", 8*3600)
	got = MonthStart(time.Date(2024, time.April, 1, 3, 0, 0, 0, taipei))
	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestStatsService_QuotaExhausted(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice", models.RoleUser)
	require.NoError(t, db.Model(user).Update("message_quota", 2).Error)
	customer := createTestCustomer(t, db, user.ID, "U1", "Amy")

	for i := 0; i < 3; i++ {
		require.NoError(t, db.Create(&models.Message{UserID: user.ID, CustomerID: customer.ID, Sender: models.SenderSystem, Status: models.MessageStatusSent}).Error)
	}
	require.NoError(t, db.Create(&models.Message{UserID: user.ID, CustomerID: customer.ID, Sender: models.SenderUser, Status: models.MessageStatusReceived}).Error)

	svc := NewStatsService(db)
	stats, err := svc.ForUser(testCtx(), user)
	require.NoError(t, err)

	assert.EqualValues(t, 1, stats.Templates)
	assert.EqualValues(t, 1, stats.Customers)
	assert.EqualValues(t, 3, stats.MessagesSentThisMonth)
	assert.EqualValues(t, 1, stats.MessagesReceivedThisMonth)
	assert.Equal(t, 2, stats.MessageQuota)
	assert.EqualValues(t, 3, stats.Used)
	assert.EqualValues(t, 0, stats.Remaining)
}

func TestStatsService_IgnoresPreviousMonths(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice", models.RoleUser)
	customer := createTestCustomer(t, db, user.ID, "U1", "Amy")

	old := &models.Message{UserID: user.ID, CustomerID: customer.ID, Sender: models.SenderSystem}
	require.NoError(t, db.Create(old).Error)
	lastMonth := MonthStart(time.Now()).Add(-time.Hour)
	require.NoError(t, db.Model(old).UpdateColumn("created_at", lastMonth).Error)
	require.NoError(t, db.Create(&models.Message{UserID: user.ID, CustomerID: customer.ID, Sender: models.SenderSystem}).Error)

	svc := NewStatsService(db)
	remaining, err := svc.Remaining(testCtx(), user)
	require.NoError(t, err)
	assert.EqualValues(t, 99, remaining)
}
