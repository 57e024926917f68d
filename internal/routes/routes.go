package routes

import (
	"os"

	"github.com/gofiber/fiber/v2"

	"github.com/pillpoint/pharmacy-backend/internal/handlers"
	"github.com/pillpoint/pharmacy-backend/internal/middleware"
	"github.com/pillpoint/pharmacy-backend/internal/services"
	"github.com/pillpoint/pharmacy-backend/internal/storage"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, store storage.Store, engine *services.ConversationEngine) {

	// Root endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Pharmacy Delivery Backend",
			"version": "1.0.0",
			"endpoints": fiber.Map{
				"health":   "/health",
				"webhook":  "/sms",
				"test_sms": "/test/sms",
				"admin":    "/admin",
			},
		})
	})

	healthHandler := handlers.NewHealthHandler("1.0.0")
	app.Get("/health", healthHandler.Check)

	// ========== WEBHOOK ROUTES ==========
	smsHandler := handlers.NewSMSHandler(engine)

	// SMS webhook - signature validation is mandatory outside development
	if os.Getenv("ENVIRONMENT") == "development" || os.Getenv("DISABLE_WEBHOOK_VALIDATION") == "true" {
		app.Post("/sms", smsHandler.HandleWebhook)
		if os.Getenv("ENVIRONMENT") == "development" {
			println("⚠️  SMS webhook validation DISABLED for development")
		}
	} else {
		app.Post("/sms", middleware.ValidateTwilioSignature(), smsHandler.HandleWebhook)
	}

	// ========== TEST ROUTES (Development Only) ==========
	if os.Getenv("ENVIRONMENT") == "development" {
		app.Post("/test/sms", smsHandler.HandleTestWebhook)
	}

	// ========== ADMIN ROUTES ==========
	adminHandler := handlers.NewAdminHandler(store)
	admin := app.Group("/admin")
	admin.Get("/deliveries", adminHandler.GetDeliveries)
	admin.Post("/deliveries", adminHandler.CreateDelivery)
	admin.Put("/deliveries/:id", adminHandler.UpdateDelivery)
	admin.Delete("/deliveries/:id", adminHandler.DeleteDelivery)
	admin.Get("/history", adminHandler.GetHistoryPhoneNumbers)
	admin.Get("/history/:phone", adminHandler.GetHistory)
}
