package api

import (
	"notifyhub/internal/middleware"
	"notifyhub/internal/response"

	"github.com/gin-gonic/gin"
)

// ListMessages returns the caller's message history
func (h *Handler) ListMessages(c *gin.Context) {
	customerID, ok := queryUint(c, "customer_id")
	if !ok {
		return
	}

	page, err := h.messages.List(c.Request.Context(), middleware.CurrentUser(c).ID, customerID,
		queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessJSON(c, page)
}
