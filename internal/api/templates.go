package api

import (
	"notifyhub/internal/middleware"
	"notifyhub/internal/response"
	"notifyhub/internal/services"

	"github.com/gin-gonic/gin"
)

// ListTemplates lists the caller's templates
func (h *Handler) ListTemplates(c *gin.Context) {
	templates, err := h.templates.List(c.Request.Context(), middleware.CurrentUser(c).ID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessJSON(c, templates)
}

// GetTemplate returns one template
func (h *Handler) GetTemplate(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	template, err := h.templates.Get(c.Request.Context(), middleware.CurrentUser(c).ID, id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessJSON(c, template)
}

// CreateTemplate creates a template
func (h *Handler) CreateTemplate(c *gin.Context) {
	var in services.TemplateInput
	if !bindJSON(c, &in) {
		return
	}
	template, err := h.templates.Create(c.Request.Context(), middleware.CurrentUser(c).ID, in)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.CreatedJSON(c, template)
}

// UpdateTemplate updates a template
func (h *Handler) UpdateTemplate(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var in services.TemplateInput
	if !bindJSON(c, &in) {
		return
	}
	template, err := h.templates.Update(c.Request.Context(), middleware.CurrentUser(c).ID, id, in)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessJSON(c, template)
}

// DeleteTemplate deletes a template
func (h *Handler) DeleteTemplate(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.templates.Delete(c.Request.Context(), middleware.CurrentUser(c).ID, id); err != nil {
		response.FromError(c, err)
		return
	}
	response.MessageJSON(c, "template deleted")
}

// TemplateVariables lists the placeholders used by a template
func (h *Handler) TemplateVariables(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	template, err := h.templates.Get(c.Request.Context(), middleware.CurrentUser(c).ID, id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessJSON(c, gin.H{
		"template_id": template.ID,
		"variables":   services.ExtractVariables(template.Content),
		"mapping":     template.Variables,
	})
}
