package api

import (
	"net/http"

	"notifyhub/internal/middleware"
	"notifyhub/internal/response"
	"notifyhub/internal/services"

	"github.com/gin-gonic/gin"
)

// GetSettings returns the caller's messaging configuration with secrets masked
func (h *Handler) GetSettings(c *gin.Context) {
	user := middleware.CurrentUser(c)

	creds, err := h.settings.ResolveLineCredentials(c.Request.Context(), user)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.SuccessJSON(c, gin.H{
		"line_channel_secret":       services.MaskSecret(user.LineChannelSecret),
		"line_channel_access_token": services.MaskSecret(user.LineChannelAccessToken),
		"secret_source":             creds.SecretSource,
		"token_source":              creds.TokenSource,
		"webhook_key":               user.WebhookKey,
		"webhook_path":              middleware.WebhookPath + "?key=" + user.WebhookKey,
	})
}

// UpdateSettings stores the caller's messaging credentials
func (h *Handler) UpdateSettings(c *gin.Context) {
	var in services.TenantCredentialsInput
	if !bindJSON(c, &in) {
		return
	}
	if err := h.settings.UpdateTenantCredentials(c.Request.Context(), middleware.CurrentUser(c).ID, in); err != nil {
		response.FromError(c, err)
		return
	}
	response.MessageJSON(c, "settings updated")
}

// RotateWebhookKey issues a new webhook key for the caller
func (h *Handler) RotateWebhookKey(c *gin.Context) {
	key, err := h.settings.RotateWebhookKey(c.Request.Context(), middleware.CurrentUser(c).ID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessJSON(c, gin.H{
		"webhook_key":  key,
		"webhook_path": middleware.WebhookPath + "?key=" + key,
	})
}

// GetGlobalSettings returns the process-wide settings
func (h *Handler) GetGlobalSettings(c *gin.Context) {
	values, err := h.settings.GetAll(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessJSON(c, values)
}

// UpdateGlobalSettings upserts process-wide settings
func (h *Handler) UpdateGlobalSettings(c *gin.Context) {
	var values map[string]string
	if !bindJSON(c, &values) {
		return
	}
	if len(values) == 0 {
		response.ErrorJSON(c, http.StatusBadRequest, "no settings provided")
		return
	}
	if err := h.settings.SetMany(c.Request.Context(), values); err != nil {
		response.FromError(c, err)
		return
	}
	response.MessageJSON(c, "settings updated")
}
