package storage

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/pillpoint/pharmacy-backend/internal/models"
)

// DatabaseStore implements Store on top of PostgreSQL via GORM
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a database-backed store
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

// Delivery operations

func (s *DatabaseStore) CreateDelivery(delivery *models.Delivery) (*models.Delivery, error) {
	if delivery.Status == "" {
		delivery.Status = models.StatusPending
	}
	if err := s.db.Create(delivery).Error; err != nil {
		return nil, err
	}
	return delivery, nil
}

func (s *DatabaseStore) GetDelivery(id uint) (*models.Delivery, error) {
	var delivery models.Delivery
	err := s.db.First(&delivery, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &ErrNotFound{What: "delivery"}
	}
	if err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (s *DatabaseStore) GetAllDeliveries() ([]*models.Delivery, error) {
	var deliveries []*models.Delivery
	err := s.db.Order("created_at DESC").Find(&deliveries).Error
	return deliveries, err
}

// GetActiveDelivery returns the most recently created delivery for the phone
// number that is still in a conversation-active status. Older active records
// for the same number are treated as stale and ignored.
func (s *DatabaseStore) GetActiveDelivery(phone string) (*models.Delivery, error) {
	var delivery models.Delivery
	err := s.db.
		Where("phone_number = ? AND status IN ?", phone, models.ActiveStatuses()).
		Order("created_at DESC").
		First(&delivery).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &ErrNotFound{What: "active delivery"}
	}
	if err != nil {
		return nil, err
	}
	return &delivery, nil
}

// GetNextPendingDelivery returns the oldest pending delivery, used by the
// notification job to pick the next patient to text.
func (s *DatabaseStore) GetNextPendingDelivery() (*models.Delivery, error) {
	var delivery models.Delivery
	err := s.db.
		Where("status = ?", models.StatusPending).
		Order("created_at ASC").
		First(&delivery).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &ErrNotFound{What: "pending delivery"}
	}
	if err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (s *DatabaseStore) GetStaleActiveDeliveries(cutoffDays int) ([]*models.Delivery, error) {
	cutoff := time.Now().AddDate(0, 0, -cutoffDays)
	var deliveries []*models.Delivery
	err := s.db.
		Where("status IN ? AND updated_at < ?", models.ActiveStatuses(), cutoff).
		Find(&deliveries).Error
	return deliveries, err
}

func (s *DatabaseStore) UpdateDelivery(delivery *models.Delivery) error {
	return s.db.Save(delivery).Error
}

func (s *DatabaseStore) UpdateDeliveryStatus(id uint, status models.DeliveryStatus) error {
	return s.db.Model(&models.Delivery{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// ApplyCorrection writes the corrected fields, the correction note and the
// ready status in a single UPDATE so a crash cannot leave them half-applied.
func (s *DatabaseStore) ApplyCorrection(id uint, address, deliveryTime *string, note string) error {
	updates := map[string]interface{}{
		"correction_note": note,
		"status":          models.StatusReady,
	}
	if address != nil {
		updates["delivery_address"] = *address
	}
	if deliveryTime != nil {
		updates["delivery_time"] = *deliveryTime
	}
	return s.db.Model(&models.Delivery{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (s *DatabaseStore) DeleteDelivery(id uint) error {
	return s.db.Delete(&models.Delivery{}, id).Error
}

// Message history operations

func (s *DatabaseStore) AppendMessage(phone string, deliveryID *uint, role, message string) error {
	entry := models.MessageHistory{
		PhoneNumber: phone,
		DeliveryID:  deliveryID,
		Role:        role,
		Message:     message,
	}
	return s.db.Create(&entry).Error
}

// GetRecentMessages returns the last `limit` history rows for the phone
// number in chronological order. When deliveryID is set, rows are scoped to
// that delivery so an earlier delivery's conversation never leaks into
// context for a new one.
func (s *DatabaseStore) GetRecentMessages(phone string, deliveryID *uint, limit int) ([]*models.MessageHistory, error) {
	query := s.db.Where("phone_number = ?", phone)
	if deliveryID != nil {
		query = query.Where("delivery_id = ?", *deliveryID)
	}

	var messages []*models.MessageHistory
	err := query.Order("created_at DESC").Limit(limit).Find(&messages).Error
	if err != nil {
		return nil, err
	}

	// Reverse newest-first into chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (s *DatabaseStore) GetHistory(phone string) ([]*models.MessageHistory, error) {
	var messages []*models.MessageHistory
	err := s.db.
		Where("phone_number = ?", phone).
		Order("created_at ASC").
		Find(&messages).Error
	return messages, err
}

func (s *DatabaseStore) GetHistoryPhoneNumbers() ([]string, error) {
	var numbers []string
	err := s.db.Model(&models.MessageHistory{}).
		Distinct().
		Order("phone_number").
		Pluck("phone_number", &numbers).Error
	return numbers, err
}
