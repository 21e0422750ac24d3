package api

import (
	"notifyhub/internal/middleware"
	"notifyhub/internal/response"

	"github.com/gin-gonic/gin"
)

// Stats returns the dashboard counters. Admins may pass ?user_id= to inspect another tenant.
func (h *Handler) Stats(c *gin.Context) {
	actor := middleware.CurrentUser(c)
	target := actor

	userID, ok := queryUint(c, "user_id")
	if !ok {
		return
	}
	if userID != 0 && userID != actor.ID {
		if !actor.IsAdmin() {
			response.ErrorJSON(c, 403, "admin privileges required")
			return
		}
		user, err := h.users.Get(c.Request.Context(), actor, userID)
		if err != nil {
			response.FromError(c, err)
			return
		}
		target = user
	}

	stats, err := h.stats.ForUser(c.Request.Context(), target)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessJSON(c, stats)
}
