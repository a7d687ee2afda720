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

// ChatDispatchHandlerInterface defines the contract for KingsChat broadcast handlers
type ChatDispatchHandlerInterface interface {
	Create(cCtx fiber.Ctx) error
	List(cCtx fiber.Ctx) error
	Get(cCtx fiber.Ctx) error
	Recipients(cCtx fiber.Ctx) error
	Report(cCtx fiber.Ctx) error
}

// ChatDispatchHandler implements ChatDispatchHandlerInterface
type ChatDispatchHandler struct {
	flow       businessflow.ChatDispatchFlow
	reportFlow businessflow.ReportFlow
	validator  *validator.Validate
}

func NewChatDispatchHandler(flow businessflow.ChatDispatchFlow, reportFlow businessflow.ReportFlow) ChatDispatchHandlerInterface {
	return &ChatDispatchHandler{
		flow:       flow,
		reportFlow: reportFlow,
		validator:  validator.New(),
	}
}

// ErrorResponse standard JSON error
func (h *ChatDispatchHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
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
func (h *ChatDispatchHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Create stores a pending KingsChat dispatch for the runner to pick up
func (h *ChatDispatchHandler) Create(c fiber.Ctx) error {
	var req dto.CreateChatDispatchRequest
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

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	result, err := h.flow.Create(h.createRequestContext(c, "/api/v1/dispatches/kingschat"), &req, metadata)
	if err != nil {
		if businessflow.IsValidationFailure(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Dispatch validation failed", "DISPATCH_VALIDATION_FAILED", nil)
		}
		log.Println("KingsChat dispatch creation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create dispatch", "DISPATCH_CREATE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Dispatch created", result)
}

// List returns dispatches newest first with per-dispatch recipient counts
func (h *ChatDispatchHandler) List(c fiber.Ctx) error {
	req := dto.ListDispatchesRequest{
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
	}

	result, err := h.flow.List(h.createRequestContext(c, "/api/v1/dispatches/kingschat"), &req)
	if err != nil {
		log.Println("KingsChat dispatch listing failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list dispatches", "DISPATCH_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Dispatches retrieved", result)
}

// Get returns one dispatch with counts and error log
func (h *ChatDispatchHandler) Get(c fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid dispatch id", "INVALID_DISPATCH_ID", nil)
	}

	result, err := h.flow.Get(h.createRequestContext(c, "/api/v1/dispatches/kingschat/:id"), id)
	if err != nil {
		if businessflow.IsDispatchNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Dispatch not found", "DISPATCH_NOT_FOUND", nil)
		}
		log.Println("KingsChat dispatch lookup failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to lookup dispatch", "DISPATCH_LOOKUP_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Dispatch retrieved", result)
}

// Recipients returns a page of recipient tasks for one dispatch
func (h *ChatDispatchHandler) Recipients(c fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid dispatch id", "INVALID_DISPATCH_ID", nil)
	}

	page := queryInt(c, "page", 1)
	pageSize := queryInt(c, "page_size", 20)

	result, err := h.flow.Recipients(h.createRequestContext(c, "/api/v1/dispatches/kingschat/:id/recipients"), id, page, pageSize)
	if err != nil {
		if businessflow.IsDispatchNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Dispatch not found", "DISPATCH_NOT_FOUND", nil)
		}
		log.Println("KingsChat recipient listing failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list recipients", "RECIPIENT_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Recipients retrieved", result)
}

// Report streams an xlsx delivery report for a completed dispatch
func (h *ChatDispatchHandler) Report(c fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid dispatch id", "INVALID_DISPATCH_ID", nil)
	}

	filename, content, err := h.reportFlow.ChatDispatchReport(h.createRequestContext(c, "/api/v1/dispatches/kingschat/:id/report"), id)
	if err != nil {
		if businessflow.IsDispatchNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Dispatch not found", "DISPATCH_NOT_FOUND", nil)
		}
		if businessflow.IsDispatchNotCompleted(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Report is only available for completed dispatches", "DISPATCH_NOT_COMPLETED", nil)
		}
		log.Println("KingsChat dispatch report failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to build report", "REPORT_BUILD_FAILED", nil)
	}

	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(content)
}

// createRequestContext mirrors other handlers for request-scoped values
func (h *ChatDispatchHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}
