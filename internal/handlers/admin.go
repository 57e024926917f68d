package handlers

import (
	"log"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/pillpoint/pharmacy-backend/internal/models"
	"github.com/pillpoint/pharmacy-backend/internal/storage"
)

// AdminHandler handles staff operations over deliveries and history
type AdminHandler struct {
	store storage.Store
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(store storage.Store) *AdminHandler {
	return &AdminHandler{store: store}
}

// GetDeliveries lists all deliveries, newest first
func (h *AdminHandler) GetDeliveries(c *fiber.Ctx) error {
	deliveries, err := h.store.GetAllDeliveries()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch deliveries",
		})
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"deliveries": deliveries,
		"count":      len(deliveries),
	})
}

// CreateDelivery adds a new delivery in pending status
func (h *AdminHandler) CreateDelivery(c *fiber.Ctx) error {
	var req struct {
		PatientName     string `json:"patient_name"`
		PhoneNumber     string `json:"phone_number"`
		DeliveryAddress string `json:"delivery_address"`
		DeliveryTime    string `json:"delivery_time"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.PatientName == "" || req.PhoneNumber == "" || req.DeliveryAddress == "" || req.DeliveryTime == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "patient_name, phone_number, delivery_address and delivery_time are required",
		})
	}

	delivery, err := h.store.CreateDelivery(&models.Delivery{
		PatientName:     req.PatientName,
		PhoneNumber:     req.PhoneNumber,
		DeliveryAddress: req.DeliveryAddress,
		DeliveryTime:    req.DeliveryTime,
		Status:          models.StatusPending,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create delivery",
		})
	}

	log.Printf("✅ Delivery %d created for %s", delivery.ID, delivery.PatientName)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":  true,
		"delivery": delivery,
	})
}

// UpdateDelivery edits address, time, status or correction note.
// Status edits are a staff override: any value inside the closed enum is
// accepted, free-text outside it is rejected.
func (h *AdminHandler) UpdateDelivery(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid delivery id",
		})
	}

	var req struct {
		DeliveryAddress *string `json:"delivery_address"`
		DeliveryTime    *string `json:"delivery_time"`
		Status          *string `json:"status"`
		CorrectionNote  *string `json:"correction_note"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	delivery, err := h.store.GetDelivery(uint(id))
	if err != nil {
		if storage.IsNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Delivery not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch delivery",
		})
	}

	if req.Status != nil {
		status := models.DeliveryStatus(*req.Status)
		if !models.ValidStatus(status) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid status value",
			})
		}
		delivery.Status = status
	}
	if req.DeliveryAddress != nil {
		delivery.DeliveryAddress = *req.DeliveryAddress
	}
	if req.DeliveryTime != nil {
		delivery.DeliveryTime = *req.DeliveryTime
	}
	if req.CorrectionNote != nil {
		delivery.CorrectionNote = req.CorrectionNote
	}

	if err := h.store.UpdateDelivery(delivery); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update delivery",
		})
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"delivery": delivery,
	})
}

// DeleteDelivery removes a delivery record (admin only; the conversation
// engine never deletes)
func (h *AdminHandler) DeleteDelivery(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid delivery id",
		})
	}

	if err := h.store.DeleteDelivery(uint(id)); err != nil {
		if storage.IsNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Delivery not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete delivery",
		})
	}

	log.Printf("🗑 Delivery %d deleted by admin", id)
	return c.JSON(fiber.Map{
		"success": true,
	})
}

// GetHistoryPhoneNumbers lists every phone number with recorded history
func (h *AdminHandler) GetHistoryPhoneNumbers(c *fiber.Ctx) error {
	numbers, err := h.store.GetHistoryPhoneNumbers()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch phone numbers",
		})
	}

	return c.JSON(fiber.Map{
		"success":       true,
		"phone_numbers": numbers,
		"count":         len(numbers),
	})
}

// GetHistory returns the full conversation for one phone number in
// chronological order
func (h *AdminHandler) GetHistory(c *fiber.Ctx) error {
	phone := c.Params("phone")
	// Phone numbers arrive percent-encoded ("+" as %2B)
	if decoded, err := url.PathUnescape(phone); err == nil {
		phone = decoded
	}
	if phone == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing phone number",
		})
	}

	messages, err := h.store.GetHistory(phone)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch history",
		})
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"messages": messages,
		"count":    len(messages),
	})
}
