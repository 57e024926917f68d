package storage

import (
	"github.com/pillpoint/pharmacy-backend/internal/models"
)

// Store defines the interface for storage operations. A single instance is
// constructed in main and handed to the engine, handlers and jobs as a
// dependency; nothing reopens connections per call.
type Store interface {
	// Delivery operations
	CreateDelivery(delivery *models.Delivery) (*models.Delivery, error)
	GetDelivery(id uint) (*models.Delivery, error)
	GetAllDeliveries() ([]*models.Delivery, error)
	GetActiveDelivery(phone string) (*models.Delivery, error)
	GetNextPendingDelivery() (*models.Delivery, error)
	GetStaleActiveDeliveries(cutoffDays int) ([]*models.Delivery, error)
	UpdateDelivery(delivery *models.Delivery) error
	UpdateDeliveryStatus(id uint, status models.DeliveryStatus) error
	ApplyCorrection(id uint, address, deliveryTime *string, note string) error
	DeleteDelivery(id uint) error

	// Message history operations
	AppendMessage(phone string, deliveryID *uint, role, message string) error
	GetRecentMessages(phone string, deliveryID *uint, limit int) ([]*models.MessageHistory, error)
	GetHistory(phone string) ([]*models.MessageHistory, error)
	GetHistoryPhoneNumbers() ([]string, error)
}

// ErrNotFound is returned when a lookup matches no record.
type ErrNotFound struct {
	What string
}

func (e *ErrNotFound) Error() string {
	return e.What + " not found"
}

// IsNotFound reports whether err is a not-found lookup error.
func IsNotFound(err error) bool {
	_, ok := err.(*ErrNotFound)
	return ok
}
