package api

import (
	"notifyhub/internal/response"
	"notifyhub/internal/services"

	"github.com/gin-gonic/gin"
)

// ListActivityLogs returns the audit trail, newest first
func (h *Handler) ListActivityLogs(c *gin.Context) {
	userID, ok := queryUint(c, "user_id")
	if !ok {
		return
	}

	page, err := h.activity.List(c.Request.Context(), services.ActivityLogFilter{
		UserID: userID,
		Method: c.Query("method"),
		Path:   c.Query("path"),
		Limit:  queryInt(c, "limit", 50),
		Offset: queryInt(c, "offset", 0),
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessJSON(c, page)
}
