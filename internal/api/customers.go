package api

import (
	"notifyhub/internal/middleware"
	"notifyhub/internal/response"
	"notifyhub/internal/services"

	"github.com/gin-gonic/gin"
)

// ListCustomers lists the caller's customers, optionally filtered by ?q=
func (h *Handler) ListCustomers(c *gin.Context) {
	customers, err := h.customers.List(c.Request.Context(), middleware.CurrentUser(c).ID, c.Query("q"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessJSON(c, customers)
}

// SaveCustomer creates a customer, or updates it when the body carries an id
func (h *Handler) SaveCustomer(c *gin.Context) {
	var in services.CustomerInput
	if !bindJSON(c, &in) {
		return
	}
	userID := middleware.CurrentUser(c).ID

	if in.ID != nil && *in.ID != 0 {
		customer, err := h.customers.Update(c.Request.Context(), userID, *in.ID, in)
		if err != nil {
			response.FromError(c, err)
			return
		}
		response.SuccessJSON(c, customer)
		return
	}

	customer, err := h.customers.Create(c.Request.Context(), userID, in)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.CreatedJSON(c, customer)
}

// UpdateCustomer updates a customer
func (h *Handler) UpdateCustomer(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var in services.CustomerInput
	if !bindJSON(c, &in) {
		return
	}
	customer, err := h.customers.Update(c.Request.Context(), middleware.CurrentUser(c).ID, id, in)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessJSON(c, customer)
}

// DeleteCustomer deletes a customer and its messages
func (h *Handler) DeleteCustomer(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.customers.Delete(c.Request.Context(), middleware.CurrentUser(c).ID, id); err != nil {
		response.FromError(c, err)
		return
	}
	response.MessageJSON(c, "customer deleted")
}
