package api

import (
	"notifyhub/internal/middleware"
	"notifyhub/internal/response"
	"notifyhub/internal/services"

	"github.com/gin-gonic/gin"
)

// RejectRequest carries the reason shown to the applicant
type RejectRequest struct {
	Reason string `json:"reason"`
}

// SubmitApplication accepts a public registration request
func (h *Handler) SubmitApplication(c *gin.Context) {
	var in services.ApplicationInput
	if !bindJSON(c, &in) {
		return
	}
	application, err := h.applications.Submit(c.Request.Context(), in)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.CreatedJSON(c, application)
}

// ListApplications lists registration requests, optionally by ?status=
func (h *Handler) ListApplications(c *gin.Context) {
	applications, err := h.applications.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessJSON(c, applications)
}

// ApproveApplication approves a pending request and creates the account
func (h *Handler) ApproveApplication(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	application, err := h.applications.Approve(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessJSON(c, application)
}

// RejectApplication rejects a pending request
func (h *Handler) RejectApplication(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req RejectRequest
	_ = c.ShouldBindJSON(&req)

	application, err := h.applications.Reject(c.Request.Context(), middleware.CurrentUser(c), id, req.Reason)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessJSON(c, application)
}
