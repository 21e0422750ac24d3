package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"notifyhub/internal/models"
	"notifyhub/internal/services"
	"notifyhub/pkg/logging"

	"github.com/gin-gonic/gin"
)

// maxLoggedBody is how much of a request body is captured
const maxLoggedBody = 8 << 10

// WebhookPath is the endpoint whose actor is resolved from the webhook key
const WebhookPath = "/api/webhook"

// WebhookUserResolver maps a webhook key to its tenant
type WebhookUserResolver func(ctx context.Context, key string) (*models.User, error)

// ActivityLog writes one audit row per request whose path is not excluded
func ActivityLog(logs *services.ActivityLogService, resolve WebhookUserResolver, exclude []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if c.Request.Method == http.MethodOptions || isExcluded(path, exclude) {
			c.Next()
			return
		}

		start := time.Now()
		body := captureBody(c.Request)

		c.Next()

		entry := &models.ActivityLog{
			Method:      c.Request.Method,
			Path:        path,
			Query:       c.Request.URL.RawQuery,
			RequestBody: body,
			StatusCode:  c.Writer.Status(),
			IPAddress:   c.ClientIP(),
			UserAgent:   c.Request.UserAgent(),
			DurationMs:  time.Since(start).Milliseconds(),
		}

		user := CurrentUser(c)
		if user == nil && path == WebhookPath && resolve != nil {
			if key := c.Query("key"); key != "" {
				user, _ = resolve(c.Request.Context(), key)
			}
		}
		if user != nil {
			id := user.ID
			entry.UserID = &id
			entry.Username = user.Username
		}

		// Keys in the query string are not recorded
		if entry.Query != "" && strings.Contains(entry.Query, "key=") {
			entry.Query = redactQuery(c)
		}

		if err := logs.Record(context.WithoutCancel(c.Request.Context()), entry); err != nil {
			logging.Errorf("Failed to write activity log for %s %s: %v", entry.Method, entry.Path, err)
		}
	}
}

// captureBody reads up to maxLoggedBody bytes and puts them back in front of the body
func captureBody(r *http.Request) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		return "[multipart]"
	}

	buf, err := io.ReadAll(io.LimitReader(r.Body, maxLoggedBody+1))
	r.Body = readCloser{io.MultiReader(bytes.NewReader(buf), r.Body), r.Body}
	if err != nil || len(buf) == 0 {
		return ""
	}
	if len(buf) > maxLoggedBody {
		return "[truncated]"
	}
	return services.RedactJSON(buf)
}

type readCloser struct {
	io.Reader
	io.Closer
}

func isExcluded(path string, exclude []string) bool {
	for _, prefix := range exclude {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func redactQuery(c *gin.Context) string {
	values := c.Request.URL.Query()
	if values.Has("key") {
		values.Set("key", "***")
	}
	return values.Encode()
}
