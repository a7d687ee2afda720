package handlers

import (
	"context"
	"crypto/subtle"
	"log"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/kingsmedia/herald/app/dto"
	businessflow "github.com/kingsmedia/herald/business_flow"
	"github.com/kingsmedia/herald/utils"
)

// WebhookHandlerInterface defines the contract for delivery event webhooks
type WebhookHandlerInterface interface {
	BrevoEvent(cCtx fiber.Ctx) error
}

// WebhookHandler implements WebhookHandlerInterface
type WebhookHandler struct {
	flow  businessflow.StatusFlow
	token string
}

// NewWebhookHandler wires the Brevo event endpoint. token is the shared
// secret Brevo sends back so the endpoint rejects spoofed events.
func NewWebhookHandler(flow businessflow.StatusFlow, token string) WebhookHandlerInterface {
	return &WebhookHandler{flow: flow, token: token}
}

// ErrorResponse standard JSON error
func (h *WebhookHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
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
func (h *WebhookHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// BrevoEvent applies a Brevo delivery event to the matching recipient. Once
// the shared token checks out the endpoint always acknowledges with 200;
// malformed payloads and processing failures are logged, not surfaced, so
// the provider does not keep retrying them.
func (h *WebhookHandler) BrevoEvent(c fiber.Ctx) error {
	if h.token != "" {
		provided := c.Query("token")
		if provided == "" {
			provided = c.Get("X-Webhook-Token")
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(h.token)) != 1 {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid webhook token", "INVALID_WEBHOOK_TOKEN", nil)
		}
	}

	// Processing failures are acknowledged with 200: a non-2xx response makes
	// the provider retry the event and a broken flow would turn that into a
	// retry storm.
	var event dto.BrevoWebhookEvent
	if err := c.Bind().JSON(&event); err != nil {
		log.Println("Brevo webhook: malformed payload", err)
		return h.SuccessResponse(c, fiber.StatusOK, "Event acknowledged", nil)
	}

	if err := h.flow.HandleBrevoEvent(h.createRequestContext(c, "/api/v1/webhooks/brevo"), &event); err != nil {
		log.Println("Brevo webhook processing failed", err)
		return h.SuccessResponse(c, fiber.StatusOK, "Event acknowledged", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Event processed", nil)
}

// createRequestContext mirrors other handlers for request-scoped values
func (h *WebhookHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}
