package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server configuration
	Port               string
	Mode               string
	LogLevel           string
	CookieSecure       bool
	CORSAllowedOrigins []string

	// Database configuration
	DatabaseURL string
	SQLitePath  string

	// Redis configuration (optional)
	RedisURL string

	// Session configuration
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	LoginRateLimit  int
	LoginRateWindow time.Duration

	// Seed admin account
	AdminUsername string
	AdminPassword string

	// LINE messaging platform defaults (last step of the credential chain)
	LineAPIBaseURL         string
	LineAPITimeout         time.Duration
	LineChannelSecret      string
	LineChannelAccessToken string

	// Webhook behaviour
	WebhookRequireSignature bool
	WebhookDedupEnabled     bool

	// Tenant defaults
	InviteCode          string
	DefaultMessageQuota int

	// Brevo email configuration
	BrevoAPIKey    string
	BrevoFromEmail string
	BrevoFromName  string

	// Activity log path prefixes that are never recorded
	ActivityLogExclude []string
}

var AppConfig *Config

func InitConfig() error {
	// Load .env file; a missing file is fine
	_ = godotenv.Load()

	AppConfig = Load()
	return nil
}

// Load reads the configuration from the environment without touching AppConfig.
func Load() *Config {
	mode := normalizeMode(getEnv("GIN_MODE", "debug"))

	return &Config{
		Port:                    getEnv("PORT", "8080"),
		Mode:                    mode,
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		CookieSecure:            getEnvBool("COOKIE_SECURE", mode == "release"),
		CORSAllowedOrigins:      getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		DatabaseURL:             getEnv("DATABASE_URL", ""),
		SQLitePath:              getEnv("SQLITE_PATH", "notifyhub.db"),
		RedisURL:                getEnv("REDIS_URL", ""),
		AccessTokenTTL:          time.Duration(getEnvInt("ACCESS_TOKEN_TTL_MINUTES", 120)) * time.Minute,
		RefreshTokenTTL:         time.Duration(getEnvInt("REFRESH_TOKEN_TTL_DAYS", 7)) * 24 * time.Hour,
		LoginRateLimit:          getEnvInt("LOGIN_RATE_LIMIT", 10),
		LoginRateWindow:         time.Duration(getEnvInt("LOGIN_RATE_WINDOW_SECONDS", 60)) * time.Second,
		AdminUsername:           getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:           getEnv("ADMIN_PASSWORD", "admin"),
		LineAPIBaseURL:          strings.TrimRight(getEnv("LINE_API_BASE_URL", "https://api.line.me"), "/"),
		LineAPITimeout:          time.Duration(getEnvInt("LINE_API_TIMEOUT_SECONDS", 10)) * time.Second,
		LineChannelSecret:       getEnv("LINE_CHANNEL_SECRET", ""),
		LineChannelAccessToken:  getEnv("LINE_CHANNEL_ACCESS_TOKEN", ""),
		WebhookRequireSignature: getEnvBool("WEBHOOK_REQUIRE_SIGNATURE", false),
		WebhookDedupEnabled:     getEnvBool("WEBHOOK_DEDUP_ENABLED", true),
		InviteCode:              getEnv("INVITE_CODE", ""),
		DefaultMessageQuota:     getEnvInt("DEFAULT_MESSAGE_QUOTA", 1000),
		BrevoAPIKey:             getEnv("BREVO_API_KEY", ""),
		BrevoFromEmail:          getEnv("BREVO_FROM_EMAIL", ""),
		BrevoFromName:           getEnv("BREVO_FROM_NAME", "NotifyHub"),
		ActivityLogExclude:      getEnvList("ACTIVITY_LOG_EXCLUDE", []string{"/health", "/metrics", "/api/activity-logs"}),
	}
}

// normalizeMode maps GIN_MODE onto a mode gin accepts, debug when unknown
func normalizeMode(mode string) string {
	switch m := strings.ToLower(strings.TrimSpace(mode)); m {
	case "debug", "release", "test":
		return m
	default:
		return "debug"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
