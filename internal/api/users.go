package api

import (
	"notifyhub/internal/middleware"
	"notifyhub/internal/response"
	"notifyhub/internal/services"

	"github.com/gin-gonic/gin"
)

// ListUsers lists the accounts visible to the caller
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessJSON(c, users)
}

// GetUser returns one account
func (h *Handler) GetUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	user, err := h.users.Get(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessJSON(c, user)
}

// CreateUser creates an account with its default template
func (h *Handler) CreateUser(c *gin.Context) {
	var in services.CreateUserInput
	if !bindJSON(c, &in) {
		return
	}
	user, err := h.users.Create(c.Request.Context(), middleware.CurrentUser(c), in)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.CreatedJSON(c, user)
}

// UpdateUser applies a partial update to an account
func (h *Handler) UpdateUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var in services.UpdateUserInput
	if !bindJSON(c, &in) {
		return
	}
	user, err := h.users.Update(c.Request.Context(), middleware.CurrentUser(c), id, in)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessJSON(c, user)
}

// DeleteUser deletes an account and everything it owns
func (h *Handler) DeleteUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.users.Delete(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.MessageJSON(c, "user deleted")
}
