package handlers

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/pillpoint/pharmacy-backend/internal/services"
)

// SMSHandler handles inbound SMS webhook requests
type SMSHandler struct {
	engine *services.ConversationEngine
}

// NewSMSHandler creates a new SMS webhook handler
func NewSMSHandler(engine *services.ConversationEngine) *SMSHandler {
	return &SMSHandler{engine: engine}
}

// TwilioWebhookPayload represents an incoming message from Twilio
type TwilioWebhookPayload struct {
	MessageSid string `form:"MessageSid"`
	AccountSid string `form:"AccountSid"`
	From       string `form:"From"` // Patient number (+15551234567)
	To         string `form:"To"`   // Your Twilio number
	Body       string `form:"Body"` // Message text
	NumMedia   string `form:"NumMedia"`
}

// HandleWebhook processes incoming SMS replies. Once the payload parses, the
// response is always 200: interpretation failures degrade to fixed replies
// inside the engine and must never fail the webhook delivery.
func (h *SMSHandler) HandleWebhook(c *fiber.Ctx) error {
	var payload TwilioWebhookPayload

	if err := c.BodyParser(&payload); err != nil {
		log.Printf("Error parsing webhook: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook payload",
		})
	}

	log.Printf("📩 Message from %s: %s", payload.From, payload.Body)

	// Skip status callbacks and other bodyless events
	if payload.From == "" || payload.Body == "" {
		return c.SendStatus(fiber.StatusOK)
	}

	// Twilio sandbox numbers may arrive with a channel prefix
	from := strings.TrimPrefix(payload.From, "whatsapp:")

	reply, err := h.engine.HandleInbound(c.UserContext(), from, payload.Body)
	if err != nil {
		log.Printf("Error processing message from %s: %v", from, err)
		return c.SendStatus(fiber.StatusOK)
	}

	log.Printf("📤 Replied to %s: %s", from, reply)
	return c.SendStatus(fiber.StatusOK)
}

// TestWebhookPayload is the JSON shape for the development test endpoint
type TestWebhookPayload struct {
	From    string `json:"from"`
	Message string `json:"message"`
}

// HandleTestWebhook processes test messages without Twilio (for development)
func (h *SMSHandler) HandleTestWebhook(c *fiber.Ctx) error {
	var payload TestWebhookPayload

	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid test payload",
		})
	}

	log.Printf("🧪 Test webhook received from %s: %s", payload.From, payload.Message)

	reply, err := h.engine.HandleInbound(c.UserContext(), payload.From, payload.Message)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"response": reply,
	})
}
