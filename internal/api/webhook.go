package api

import (
	"io"
	"net/http"

	"notifyhub/internal/response"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 1 << 20

// Webhook receives LINE platform events for the tenant named by ?key=
func (h *Handler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "failed to read request body")
		return
	}

	processed, err := h.webhooks.Handle(c.Request.Context(), c.Query("key"), body, c.GetHeader("X-Line-Signature"))
	if err != nil {
		response.FromError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"processed": processed,
	})
}
