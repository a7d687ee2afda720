package handlers

import (
	"context"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/kingsmedia/herald/app/dto"
	businessflow "github.com/kingsmedia/herald/business_flow"
	"github.com/kingsmedia/herald/utils"
)

// CredentialHandlerInterface defines the contract for KingsChat credential handlers
type CredentialHandlerInterface interface {
	Store(cCtx fiber.Ctx) error
	Get(cCtx fiber.Ctx) error
}

// CredentialHandler implements CredentialHandlerInterface
type CredentialHandler struct {
	flow      businessflow.CredentialFlow
	validator *validator.Validate
}

func NewCredentialHandler(flow businessflow.CredentialFlow) CredentialHandlerInterface {
	return &CredentialHandler{
		flow:      flow,
		validator: validator.New(),
	}
}

// ErrorResponse standard JSON error
func (h *CredentialHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
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
func (h *CredentialHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Store saves or replaces the KingsChat sender account tokens
func (h *CredentialHandler) Store(c fiber.Ctx) error {
	var req dto.ChatCredentialRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	result, err := h.flow.Store(h.createRequestContext(c, "/api/v1/credentials/kingschat"), &req)
	if err != nil {
		log.Println("Credential store failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to store credential", "CREDENTIAL_STORE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Credential stored", result)
}

// Get returns the stored account without echoing tokens
func (h *CredentialHandler) Get(c fiber.Ctx) error {
	result, err := h.flow.Get(h.createRequestContext(c, "/api/v1/credentials/kingschat"))
	if err != nil {
		if businessflow.IsCredentialNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "No KingsChat credential configured", "CREDENTIAL_NOT_FOUND", nil)
		}
		log.Println("Credential lookup failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to lookup credential", "CREDENTIAL_LOOKUP_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Credential retrieved", result)
}

// createRequestContext mirrors other handlers for request-scoped values
func (h *CredentialHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}
