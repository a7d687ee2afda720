package handlers

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/kingsmedia/herald/app/dto"
	businessflow "github.com/kingsmedia/herald/business_flow"
	"github.com/kingsmedia/herald/utils"
)

// ContactHandlerInterface defines the contract for contact list handlers
type ContactHandlerInterface interface {
	List(cCtx fiber.Ctx) error
	FilterOptions(cCtx fiber.Ctx) error
	Unsubscribe(cCtx fiber.Ctx) error
}

// ContactHandler implements ContactHandlerInterface
type ContactHandler struct {
	flow businessflow.ContactFlow
}

func NewContactHandler(flow businessflow.ContactFlow) ContactHandlerInterface {
	return &ContactHandler{flow: flow}
}

// ErrorResponse standard JSON error
func (h *ContactHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

// SuccessResponse standard JSON success
func (h *ContactHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// List returns a filtered page of the contact list
func (h *ContactHandler) List(c fiber.Ctx) error {
	req := dto.ListContactsRequest{
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
	}
	if v := c.Query("designation"); v != "" {
		req.Designation = &v
	}
	if v := c.Query("zone"); v != "" {
		req.Zone = &v
	}
	if v := c.Query("country"); v != "" {
		req.Country = &v
	}

	result, err := h.flow.List(h.createRequestContext(c, "/api/v1/contacts"), &req)
	if err != nil {
		log.Println("Contact listing failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list contacts", "CONTACT_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Contacts retrieved", result)
}

// FilterOptions returns the distinct designation/zone/country values
func (h *ContactHandler) FilterOptions(c fiber.Ctx) error {
	result, err := h.flow.FilterOptions(h.createRequestContext(c, "/api/v1/contacts/filter-options"))
	if err != nil {
		log.Println("Filter options failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load filter options", "FILTER_OPTIONS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Filter options retrieved", result)
}

// Unsubscribe handles the public link embedded in outgoing emails
func (h *ContactHandler) Unsubscribe(c fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		token = c.Params("token")
	}

	result, err := h.flow.Unsubscribe(h.createRequestContext(c, "/unsubscribe"), token)
	if err != nil {
		if businessflow.IsUnsubscribeTokenUnknown(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Unknown unsubscribe token", "UNSUBSCRIBE_TOKEN_UNKNOWN", nil)
		}
		log.Println("Unsubscribe failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to unsubscribe", "UNSUBSCRIBE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "You have been unsubscribed", result)
}

// createRequestContext mirrors other handlers for request-scoped values
func (h *ContactHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}
