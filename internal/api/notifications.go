package api

import (
	"net/http"

	"notifyhub/internal/middleware"
	"notifyhub/internal/response"
	"notifyhub/internal/services"

	"github.com/gin-gonic/gin"
)

// SendNotification renders a template and pushes it to every recipient
func (h *Handler) SendNotification(c *gin.Context) {
	var req services.SendRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.TemplateID == 0 {
		response.ErrorJSON(c, http.StatusBadRequest, "template_id is required")
		return
	}

	result, err := h.notifications.Send(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	status := http.StatusOK
	if result.Sent == 0 {
		status = http.StatusBadRequest
	}
	c.JSON(status, result)
}

// ImportPreview matches an uploaded spreadsheet against the customer directory
func (h *Handler) ImportPreview(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "file is required")
		return
	}
	if fileHeader.Size > services.MaxImportSize {
		response.ErrorJSON(c, http.StatusBadRequest, "file is too large")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "failed to open upload")
		return
	}
	defer file.Close()

	preview, err := h.imports.Preview(c.Request.Context(), middleware.CurrentUser(c).ID, fileHeader.Filename, file)
	if err != nil {
		response.FromError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"headers":   preview.Headers,
		"matched":   preview.Matched,
		"unmatched": preview.Unmatched,
	})
}
