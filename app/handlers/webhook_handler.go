package handlers

import (
	"github.com/gofiber/fiber/v3"
	businessflow "github.com/harukisato/machidori/business_flow"
)

// WebhookHandlerInterface defines the contract for webhook handlers
type WebhookHandlerInterface interface {
	HandleWebhook(c fiber.Ctx) error
}

// WebhookHandler handles inbound channel events
type WebhookHandler struct {
	webhookFlow businessflow.WebhookFlow
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(webhookFlow businessflow.WebhookFlow) *WebhookHandler {
	return &WebhookHandler{
		webhookFlow: webhookFlow,
	}
}

// HandleWebhook verifies and processes one webhook delivery. The raw body
// is passed through untouched because the signature covers its exact bytes.
func (h *WebhookHandler) HandleWebhook(c fiber.Ctx) error {
	shopUUID := c.Params("shop_uuid")
	signature := c.Get("X-Line-Signature")
	body := c.Body()

	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := h.webhookFlow.HandleWebhook(ctx, shopUUID, body, signature)
	if err != nil {
		return businessErrorResponse(c, err)
	}

	return successResponse(c, fiber.StatusOK, "Webhook processed", resp)
}
