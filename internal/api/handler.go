package api

import (
	"strconv"

	"notifyhub/internal/config"
	"notifyhub/internal/metrics"
	"notifyhub/internal/response"
	"notifyhub/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Dependencies are the shared resources the HTTP layer is built from
type Dependencies struct {
	Config  *config.Config
	DB      *gorm.DB
	Redis   *redis.Client // optional
	Metrics *metrics.Metrics
	Mailer  services.Mailer // optional, derived from Config when nil
}

// Handler holds the services behind every endpoint
type Handler struct {
	cfg     *config.Config
	metrics *metrics.Metrics

	auth          *services.AuthService
	users         *services.UserService
	templates     *services.TemplateService
	customers     *services.CustomerService
	messages      *services.MessageService
	notifications *services.NotificationService
	imports       *services.ImportService
	settings      *services.SettingsService
	stats         *services.StatsService
	webhooks      *services.WebhookService
	applications  *services.ApplicationService
	activity      *services.ActivityLogService

	loginLimiter services.RateLimiter
	stop         []func()
}

// NewHandler wires the services. Redis, when present, backs the login rate
// limiter and webhook redelivery tracking; otherwise both stay in process.
func NewHandler(deps Dependencies) *Handler {
	cfg := deps.Config
	db := deps.DB

	mailer := deps.Mailer
	if mailer == nil {
		mailer = services.NewMailer(cfg)
	}

	settings := services.NewSettingsService(db, cfg)
	stats := services.NewStatsService(db)
	line := services.NewLineClient(cfg.LineAPIBaseURL, cfg.LineAPITimeout, deps.Metrics)

	h := &Handler{
		cfg:           cfg,
		metrics:       deps.Metrics,
		auth:          services.NewAuthService(db, cfg),
		users:         services.NewUserService(db, cfg),
		templates:     services.NewTemplateService(db),
		customers:     services.NewCustomerService(db),
		messages:      services.NewMessageService(db),
		notifications: services.NewNotificationService(db, settings, stats, line, deps.Metrics),
		imports:       services.NewImportService(db),
		settings:      settings,
		stats:         stats,
		applications:  services.NewApplicationService(db, cfg, settings, mailer),
		activity:      services.NewActivityLogService(db),
	}

	var dedup services.EventDeduper
	if deps.Redis != nil {
		h.loginLimiter = services.NewRedisRateLimiter(deps.Redis, "login_rate:", cfg.LoginRateLimit, cfg.LoginRateWindow)
		dedup = services.NewRedisEventDeduper(deps.Redis)
	} else {
		h.loginLimiter = services.NewMemoryRateLimiter(cfg.LoginRateLimit, cfg.LoginRateWindow)
		memory := services.NewMemoryEventDeduper()
		h.stop = append(h.stop, memory.Stop)
		dedup = memory
	}
	h.webhooks = services.NewWebhookService(db, cfg, settings, line, dedup, deps.Metrics)

	return h
}

// Close stops background work started by NewHandler
func (h *Handler) Close() {
	for _, stop := range h.stop {
		stop()
	}
}

// parseID reads a positive numeric path parameter, answering 400 otherwise
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		response.ErrorJSON(c, 400, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// queryUint reads an optional numeric query parameter, 0 when absent
func queryUint(c *gin.Context, name string) (uint, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		response.ErrorJSON(c, 400, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *gin.Context, name string, fallback int) int {
	if v, err := strconv.Atoi(c.Query(name)); err == nil {
		return v
	}
	return fallback
}

// bindJSON decodes the body, answering 400 on malformed input
func bindJSON(c *gin.Context, out interface{}) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		response.ErrorJSON(c, 400, "Invalid request format: "+err.Error())
		return false
	}
	return true
}
