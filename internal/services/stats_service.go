package services

import (
	"context"
	"time"

	"notifyhub/internal/models"

	"gorm.io/gorm"
)

// StatsService computes dashboard counters and quota usage
type StatsService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStatsService creates a new stats service
func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{db: db, now: time.Now}
}

// Stats are the counters of one tenant
type Stats struct {
	Templates                 int64 `json:"templates"`
	Customers                 int64 `json:"customers"`
	LineUsers                 int64 `json:"line_users"`
	MessagesSentThisMonth     int64 `json:"messages_sent_this_month"`
	MessagesReceivedThisMonth int64 `json:"messages_received_this_month"`
	MessageQuota              int   `json:"message_quota"`
	Used                      int64 `json:"used"`
	Remaining                 int64 `json:"remaining"`
}

// MonthStart is the first instant of the calendar month of t, in UTC
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// ForUser returns the stats of user
func (s *StatsService) ForUser(ctx context.Context, user *models.User) (*Stats, error) {
	db := s.db.WithContext(ctx)
	since := MonthStart(s.now())
	stats := &Stats{MessageQuota: user.MessageQuota}

	counts := []struct {
		model interface{}
		query string
		args  []interface{}
		out   *int64
	}{
		{&models.Template{}, "user_id = ?", []interface{}{user.ID}, &stats.Templates},
		{&models.Customer{}, "user_id = ?", []interface{}{user.ID}, &stats.Customers},
		{&models.LineUser{}, "user_id = ?", []interface{}{user.ID}, &stats.LineUsers},
		{&models.Message{}, "user_id = ? AND sender = ? AND created_at >= ?", []interface{}{user.ID, models.SenderSystem, since}, &stats.MessagesSentThisMonth},
		{&models.Message{}, "user_id = ? AND sender = ? AND created_at >= ?", []interface{}{user.ID, models.SenderUser, since}, &stats.MessagesReceivedThisMonth},
	}
	for _, c := range counts {
		if err := db.Model(c.model).Where(c.query, c.args...).Count(c.out).Error; err != nil {
			return nil, Wrap(err, "failed to compute stats")
		}
	}

	stats.Used = stats.MessagesSentThisMonth
	stats.Remaining = remainingQuota(user.MessageQuota, stats.Used)
	return stats, nil
}

// Remaining returns how many outbound messages user may still send this month
func (s *StatsService) Remaining(ctx context.Context, user *models.User) (int64, error) {
	var used int64
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("user_id = ? AND sender = ? AND created_at >= ?", user.ID, models.SenderSystem, MonthStart(s.now())).
		Count(&used).Error
	if err != nil {
		return 0, Wrap(err, "failed to compute quota usage")
	}
	return remainingQuota(user.MessageQuota, used), nil
}

func remainingQuota(quota int, used int64) int64 {
	if remaining := int64(quota) - used; remaining > 0 {
		return remaining
	}
	return 0
}
